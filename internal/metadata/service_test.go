package metadata

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carmarket-search/internal/common/errors"
	"carmarket-search/internal/common/logger"
	"carmarket-search/internal/models"
)

func setupRepo(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresRepository(sqlx.NewDb(db, "sqlmock")), mock
}

func setupRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

var itemColumns = []string{"id", "type", "value", "display_value", "sort_order"}

// ==========================
// Repository
// ==========================

func TestRepository_ListMakes(t *testing.T) {
	repo, mock := setupRepo(t)

	mock.ExpectQuery(`SELECT id, name, display_name, .* FROM car_makes WHERE is_active = true ORDER BY sort_order ASC, name ASC`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "display_name", "logo_url", "sort_order"}).
			AddRow("m1", "toyota", "Toyota", "", 1).
			AddRow("m2", "honda", "Honda", "https://cdn/honda.png", 2))

	makes, err := repo.ListMakes(context.Background())
	require.NoError(t, err)
	require.Len(t, makes, 2)
	assert.Equal(t, "Toyota", makes[0].DisplayName)
	assert.Equal(t, "https://cdn/honda.png", makes[1].LogoURL)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_ListByType(t *testing.T) {
	repo, mock := setupRepo(t)

	mock.ExpectQuery(`FROM car_metadata WHERE type = \$1 AND is_active = true ORDER BY sort_order ASC, value ASC`).
		WithArgs("body_type").
		WillReturnRows(sqlmock.NewRows(itemColumns).
			AddRow("b1", "body_type", "suv", "SUV", 1).
			AddRow("b2", "body_type", "sedan", "Sedan", 2))

	items, err := repo.ListByType(context.Background(), models.MetadataBodyType)
	require.NoError(t, err)
	assert.Equal(t, []string{"suv", "sedan"}, []string{items[0].Value, items[1].Value})
	assert.Equal(t, models.MetadataBodyType, items[0].Type)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ==========================
// Service
// ==========================

func TestService_GetModelsByMake(t *testing.T) {
	t.Run("known make", func(t *testing.T) {
		repo, mock := setupRepo(t)
		svc := NewService(repo, nil, time.Minute, logger.NewTestLogger(t))

		mock.ExpectQuery(`SELECT id FROM car_makes WHERE id = \$1 AND is_active = true`).
			WithArgs("m1").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("m1"))
		mock.ExpectQuery(`FROM car_models WHERE make_id = \$1 AND is_active = true`).
			WithArgs("m1").
			WillReturnRows(sqlmock.NewRows([]string{"id", "make_id", "name", "display_name", "sort_order"}).
				AddRow("c1", "m1", "corolla", "Corolla", 1))

		out, err := svc.GetModelsByMake(context.Background(), "m1")
		require.NoError(t, err)
		require.Len(t, out, 1)
		assert.Equal(t, "Corolla", out[0].DisplayName)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown make", func(t *testing.T) {
		repo, mock := setupRepo(t)
		svc := NewService(repo, nil, time.Minute, logger.NewTestLogger(t))

		mock.ExpectQuery(`SELECT id FROM car_makes`).
			WithArgs("nope").
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		_, err := svc.GetModelsByMake(context.Background(), "nope")
		assert.True(t, errors.HasCode(err, errors.ErrCodeMakeNotFound))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestService_CachesInRedis(t *testing.T) {
	repo, mock := setupRepo(t)
	mr, client := setupRedis(t)
	svc := NewService(repo, client, 10*time.Minute, logger.NewTestLogger(t))

	mock.ExpectQuery(`FROM car_metadata WHERE type = \$1`).
		WithArgs("fuel_type").
		WillReturnRows(sqlmock.NewRows(itemColumns).AddRow("f1", "fuel_type", "petrol", "Petrol", 1))

	first, err := svc.GetMetadataByType(context.Background(), models.MetadataFuelType)
	require.NoError(t, err)
	second, err := svc.GetMetadataByType(context.Background(), models.MetadataFuelType)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.True(t, mr.Exists("metadata:type:fuel_type"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestService_StorageErrorWrapped(t *testing.T) {
	repo, mock := setupRepo(t)
	svc := NewService(repo, nil, time.Minute, logger.NewNoOpLogger())

	mock.ExpectQuery(`FROM car_makes`).WillReturnError(stderrors.New("relation does not exist"))

	_, err := svc.GetAllMakes(context.Background())
	assert.True(t, errors.HasCode(err, errors.ErrCodeQueryExecutionFailed))
}

func TestService_GetAllMetadata(t *testing.T) {
	repo, mock := setupRepo(t)
	mock.MatchExpectationsInOrder(false)
	svc := NewService(repo, nil, time.Minute, logger.NewNoOpLogger())

	for _, tp := range []models.MetadataType{
		models.MetadataFuelType, models.MetadataTransmissionType, models.MetadataBodyType,
		models.MetadataCondition, models.MetadataPriceType, models.MetadataCarFeature, models.MetadataColor,
	} {
		mock.ExpectQuery(`FROM car_metadata WHERE type = \$1`).
			WithArgs(string(tp)).
			WillReturnRows(sqlmock.NewRows(itemColumns).AddRow(string(tp)+"-1", string(tp), "v", "V", 1))
	}
	mock.ExpectQuery(`FROM car_makes WHERE is_active`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "display_name", "logo_url", "sort_order"}).
			AddRow("m1", "toyota", "Toyota", "", 1))

	all, err := svc.GetAllMetadata(context.Background())
	require.NoError(t, err)

	assert.Len(t, all.FuelTypes, 1)
	assert.Equal(t, models.MetadataColor, all.Colors[0].Type)
	assert.Equal(t, "toyota", all.Makes[0].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestService_VocabularyAndMakeNames(t *testing.T) {
	repo, mock := setupRepo(t)
	svc := NewService(repo, nil, time.Minute, logger.NewNoOpLogger())

	mock.ExpectQuery(`FROM car_metadata WHERE is_active = true ORDER BY type`).
		WillReturnRows(sqlmock.NewRows(itemColumns).
			AddRow("b1", "body_type", "suv", "SUV", 1).
			AddRow("f1", "fuel_type", "electric", "Electric", 1))
	mock.ExpectQuery(`FROM car_makes`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "display_name", "logo_url", "sort_order"}).
			AddRow("m1", "Toyota", "Toyota", "", 1))

	vocab, err := svc.Vocabulary(context.Background())
	require.NoError(t, err)
	assert.True(t, vocab.Known(models.MetadataBodyType, "SUV"))
	assert.False(t, vocab.Known(models.MetadataBodyType, "truck"))

	names, err := svc.MakeNames(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Toyota"}, names)
}
