package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"carmarket-search/internal/common/errors"
	"carmarket-search/internal/common/logger"
	"carmarket-search/internal/models"
	"carmarket-search/internal/search/predicate"
)

const cachePrefix = "metadata:"

// TypeSlugs maps URL path segments onto metadata types.
var TypeSlugs = map[string]models.MetadataType{
	"fuel-types":         models.MetadataFuelType,
	"transmission-types": models.MetadataTransmissionType,
	"body-types":         models.MetadataBodyType,
	"conditions":         models.MetadataCondition,
	"price-types":        models.MetadataPriceType,
	"car-features":       models.MetadataCarFeature,
	"colors":             models.MetadataColor,
}

// Service answers vocabulary lookups, read-through cached in Redis when a
// client is configured.
type Service struct {
	repo   Repository
	redis  *redis.Client
	ttl    time.Duration
	logger logger.Logger
}

// NewService builds the service; client may be nil to disable caching.
func NewService(repo Repository, client *redis.Client, ttl time.Duration, log logger.Logger) *Service {
	return &Service{
		repo:   repo,
		redis:  client,
		ttl:    ttl,
		logger: log.WithFields(map[string]interface{}{"component": "metadata"}),
	}
}

func (s *Service) GetAllMakes(ctx context.Context) ([]models.CarMake, error) {
	return cached(ctx, s, "makes", s.repo.ListMakes)
}

// GetModelsByMake returns MAKE_NOT_FOUND for unknown or inactive makes.
func (s *Service) GetModelsByMake(ctx context.Context, makeID string) ([]models.CarModel, error) {
	return cached(ctx, s, "models:"+makeID, func(ctx context.Context) ([]models.CarModel, error) {
		ok, err := s.repo.MakeExists(ctx, makeID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, errors.NewMakeNotFoundError(makeID)
		}
		return s.repo.ListModelsByMake(ctx, makeID)
	})
}

func (s *Service) GetMetadataByType(ctx context.Context, t models.MetadataType) ([]models.MetadataItem, error) {
	return cached(ctx, s, "type:"+string(t), func(ctx context.Context) ([]models.MetadataItem, error) {
		return s.repo.ListByType(ctx, t)
	})
}

// GetAllMetadata fans out one lookup per vocabulary.
func (s *Service) GetAllMetadata(ctx context.Context) (*models.AllMetadata, error) {
	var all models.AllMetadata

	targets := []struct {
		t   models.MetadataType
		dst *[]models.MetadataItem
	}{
		{models.MetadataFuelType, &all.FuelTypes},
		{models.MetadataTransmissionType, &all.TransmissionTypes},
		{models.MetadataBodyType, &all.BodyTypes},
		{models.MetadataCondition, &all.Conditions},
		{models.MetadataPriceType, &all.PriceTypes},
		{models.MetadataCarFeature, &all.CarFeatures},
		{models.MetadataColor, &all.Colors},
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, target := range targets {
		g.Go(func() error {
			items, err := s.GetMetadataByType(gctx, target.t)
			if err != nil {
				return err
			}
			*target.dst = items
			return nil
		})
	}
	g.Go(func() error {
		makes, err := s.GetAllMakes(gctx)
		if err != nil {
			return err
		}
		all.Makes = makes
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &all, nil
}

// Vocabulary snapshots every active enum value for predicate building.
func (s *Service) Vocabulary(ctx context.Context) (predicate.Vocabulary, error) {
	items, err := cached(ctx, s, "items", s.repo.ListAllItems)
	if err != nil {
		return nil, err
	}
	return predicate.NewVocabulary(items), nil
}

// MakeNames returns active make names as stored, for utterance matching.
func (s *Service) MakeNames(ctx context.Context) ([]string, error) {
	makes, err := s.GetAllMakes(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(makes))
	for _, m := range makes {
		names = append(names, m.Name)
	}
	return names, nil
}

func cached[T any](ctx context.Context, s *Service, name string, load func(context.Context) (T, error)) (T, error) {
	key := cachePrefix + name

	if s.redis != nil {
		raw, err := s.redis.Get(ctx, key).Bytes()
		if err == nil {
			var value T
			if jsonErr := json.Unmarshal(raw, &value); jsonErr == nil {
				return value, nil
			}
		} else if err != redis.Nil {
			s.logger.Warn("metadata cache read failed", map[string]interface{}{"key": key, "error": err})
		}
	}

	value, err := load(ctx)
	if err != nil {
		var zero T
		if _, ok := errors.AsStandardError(err); ok {
			return zero, err
		}
		return zero, errors.NewQueryExecutionFailedError(string(models.QueryTypeMetadata), fmt.Errorf("%s: %w", name, err))
	}

	if s.redis != nil {
		if data, err := json.Marshal(value); err == nil {
			if err := s.redis.Set(ctx, key, data, s.ttl).Err(); err != nil {
				s.logger.Warn("metadata cache write failed", map[string]interface{}{"key": key, "error": err})
			}
		}
	}
	return value, nil
}
