// internal/common/database/redis.go
package database

import (
	"context"
	"time"

	"carmarket-search/internal/common/config"
	"carmarket-search/internal/common/errors"

	"github.com/redis/go-redis/v9"
)

// RedisClient backs the result and metadata caches.
type RedisClient struct {
	Client *redis.Client
}

// NewRedis never dials; an unreachable server shows up on Ping.
func NewRedis(cfg config.RedisConfig) (*RedisClient, error) {
	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = 10
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  config.GetDuration(cfg.DialTimeout),
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
		PoolSize:     poolSize,
		MinIdleConns: poolSize / 4,
	})

	return &RedisClient{Client: rdb}, nil
}

func (c *RedisClient) Name() string { return "redis" }

func (c *RedisClient) Ping(ctx context.Context) error {
	if err := c.Client.Ping(ctx).Err(); err != nil {
		return errors.NewStorageUnavailableError(c.Name(), err)
	}
	return nil
}

func (c *RedisClient) Close() error {
	if c.Client == nil {
		return nil
	}
	return c.Client.Close()
}
