package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"carmarket-search/internal/common/logger"
	"carmarket-search/internal/common/metrics"
	"carmarket-search/internal/models"
	"carmarket-search/internal/search/predicate"
	"carmarket-search/internal/search/sortpage"
)

const cacheKeyPrefix = "search:listings:"

// CachingExecutor is a read-through Redis cache in front of another executor.
// Redis failures are logged and fall through to the wrapped executor.
type CachingExecutor struct {
	next   Executor
	redis  *redis.Client
	ttl    time.Duration
	logger logger.Logger
}

func NewCachingExecutor(next Executor, client *redis.Client, ttl time.Duration, log logger.Logger) *CachingExecutor {
	return &CachingExecutor{
		next:   next,
		redis:  client,
		ttl:    ttl,
		logger: log.WithFields(map[string]interface{}{"component": "search-cache"}),
	}
}

func (c *CachingExecutor) Backend() string { return c.next.Backend() }

// CacheKey identifies one window of one predicate set.
func CacheKey(preds []predicate.Predicate, sort sortpage.Sort, page sortpage.Page) string {
	return fmt.Sprintf("%s%s:%s:%s:%d:%d", cacheKeyPrefix, predicate.Key(preds), sort.By, sort.Order, page.Number, page.Limit)
}

func (c *CachingExecutor) Execute(ctx context.Context, preds []predicate.Predicate, sort sortpage.Sort, page sortpage.Page) (*Result, error) {
	key := CacheKey(preds, sort, page)

	cached, err := c.redis.Get(ctx, key).Result()
	switch {
	case err == nil:
		var result Result
		if jsonErr := json.Unmarshal([]byte(cached), &result); jsonErr == nil {
			metrics.SearchCache.WithLabelValues("hit").Inc()
			return &result, nil
		}
		metrics.SearchCache.WithLabelValues("error").Inc()
	case err == redis.Nil:
		metrics.SearchCache.WithLabelValues("miss").Inc()
	default:
		metrics.SearchCache.WithLabelValues("error").Inc()
		c.logger.Warn("search cache read failed", map[string]interface{}{"key": key, "error": err})
	}

	result, err := c.next.Execute(ctx, preds, sort, page)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(result); err == nil {
		if err := c.redis.Set(ctx, key, data, c.ttl).Err(); err != nil {
			c.logger.Warn("search cache write failed", map[string]interface{}{"key": key, "error": err})
		}
	}
	return result, nil
}

// FindByID is not cached so moderation changes show up immediately.
func (c *CachingExecutor) FindByID(ctx context.Context, id string) (*models.Listing, error) {
	return c.next.FindByID(ctx, id)
}
