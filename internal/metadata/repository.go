// Package metadata serves the admin-managed car vocabulary: makes, models and
// typed enum values such as fuel or body types.
package metadata

import (
	"context"

	"github.com/jmoiron/sqlx"

	"carmarket-search/internal/models"
)

const (
	queryMakes = `SELECT id, name, display_name, COALESCE(logo_url, '') AS logo_url, sort_order
		FROM car_makes WHERE is_active = true ORDER BY sort_order ASC, name ASC`

	queryMakeExists = `SELECT id FROM car_makes WHERE id = $1 AND is_active = true`

	queryModelsByMake = `SELECT id, make_id, name, display_name, sort_order
		FROM car_models WHERE make_id = $1 AND is_active = true ORDER BY sort_order ASC, name ASC`

	queryItemsByType = `SELECT id, type, value, display_value, sort_order
		FROM car_metadata WHERE type = $1 AND is_active = true ORDER BY sort_order ASC, value ASC`

	queryAllItems = `SELECT id, type, value, display_value, sort_order
		FROM car_metadata WHERE is_active = true ORDER BY type ASC, sort_order ASC, value ASC`
)

// Repository reads active vocabulary rows.
type Repository interface {
	ListMakes(ctx context.Context) ([]models.CarMake, error)
	MakeExists(ctx context.Context, makeID string) (bool, error)
	ListModelsByMake(ctx context.Context, makeID string) ([]models.CarModel, error)
	ListByType(ctx context.Context, t models.MetadataType) ([]models.MetadataItem, error)
	ListAllItems(ctx context.Context) ([]models.MetadataItem, error)
}

type PostgresRepository struct {
	db *sqlx.DB
}

func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) ListMakes(ctx context.Context) ([]models.CarMake, error) {
	makes := []models.CarMake{}
	if err := r.db.SelectContext(ctx, &makes, queryMakes); err != nil {
		return nil, err
	}
	return makes, nil
}

func (r *PostgresRepository) MakeExists(ctx context.Context, makeID string) (bool, error) {
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, queryMakeExists, makeID); err != nil {
		return false, err
	}
	return len(ids) > 0, nil
}

func (r *PostgresRepository) ListModelsByMake(ctx context.Context, makeID string) ([]models.CarModel, error) {
	out := []models.CarModel{}
	if err := r.db.SelectContext(ctx, &out, queryModelsByMake, makeID); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *PostgresRepository) ListByType(ctx context.Context, t models.MetadataType) ([]models.MetadataItem, error) {
	items := []models.MetadataItem{}
	if err := r.db.SelectContext(ctx, &items, queryItemsByType, string(t)); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *PostgresRepository) ListAllItems(ctx context.Context) ([]models.MetadataItem, error) {
	items := []models.MetadataItem{}
	if err := r.db.SelectContext(ctx, &items, queryAllItems); err != nil {
		return nil, err
	}
	return items, nil
}
