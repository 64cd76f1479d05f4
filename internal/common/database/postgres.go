// internal/common/database/postgres.go
package database

import (
	"context"
	"database/sql"
	"fmt"

	"carmarket-search/internal/common/config"
	"carmarket-search/internal/common/errors"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// PostgresClient owns the listing database pool. Executors take DB directly;
// metadata reads go through X for struct scanning.
type PostgresClient struct {
	DB *sql.DB
}

// NewPostgres opens the pool; nothing is dialed until Ping or the first query.
func NewPostgres(cfg config.PostgresConfig) (*PostgresClient, error) {
	db, err := sql.Open("postgres", cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("open postgres %s/%s: %w", cfg.Host, cfg.Database, err)
	}

	lifetime := config.GetDuration(cfg.ConnLifetime)
	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxIdle)
	db.SetConnMaxLifetime(lifetime)
	db.SetConnMaxIdleTime(lifetime)

	return &PostgresClient{DB: db}, nil
}

func (c *PostgresClient) Name() string { return "postgres" }

func (c *PostgresClient) Ping(ctx context.Context) error {
	if err := c.DB.PingContext(ctx); err != nil {
		return errors.NewStorageUnavailableError(c.Name(), err)
	}
	return nil
}

func (c *PostgresClient) Close() error {
	if c.DB == nil {
		return nil
	}
	return c.DB.Close()
}

// X returns an sqlx view over the same pool.
func (c *PostgresClient) X() *sqlx.DB {
	return sqlx.NewDb(c.DB, "postgres")
}
