// Package app wires the search engine and the assistant from configuration.
// Both the HTTP API and the workflow worker manager build on it.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"carmarket-search/internal/assistant/extractor"
	"carmarket-search/internal/assistant/intent"
	assistant "carmarket-search/internal/assistant/service"
	"carmarket-search/internal/assistant/summarizer"
	"carmarket-search/internal/assistant/textcompletion"
	"carmarket-search/internal/common/config"
	"carmarket-search/internal/common/database"
	"carmarket-search/internal/common/logger"
	"carmarket-search/internal/common/observability"
	"carmarket-search/internal/metadata"
	"carmarket-search/internal/search/executor"
	search "carmarket-search/internal/search/service"
)

const (
	connectAttempts = 10
	connectDelay    = 2 * time.Second
)

type App struct {
	Config *config.Config

	Postgres      *database.PostgresClient
	Elasticsearch *database.ElasticsearchClient
	Redis         *database.RedisClient

	Metadata   *metadata.Service
	Search     *search.Service
	LLM        textcompletion.Client
	Extractor  *extractor.Extractor
	Summarizer *summarizer.Summarizer
	Classifier *intent.Classifier
	Assistant  *assistant.Service

	logger logger.Logger
}

// Build connects storage and assembles every service. Postgres is mandatory;
// Elasticsearch only for that backend, Redis only when configured.
func Build(ctx context.Context, cfg *config.Config, obs *observability.Observability, log logger.Logger) (*App, error) {
	a := &App{Config: cfg, logger: log}

	if err := a.connect(ctx); err != nil {
		a.Close()
		return nil, err
	}

	a.Metadata = metadata.NewService(
		metadata.NewPostgresRepository(a.Postgres.X()),
		a.redisClient(),
		config.GetDuration(cfg.Search.MetadataTTL),
		log,
	)

	exec, err := a.executor()
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Search = search.NewService(exec, a.Metadata, search.Options{
		DefaultLimit:  cfg.Search.DefaultLimit,
		MaxLimit:      cfg.Search.MaxLimit,
		Observability: obs,
	}, log)

	a.LLM, err = textcompletion.New(ctx, cfg.APIs.GenAI, log)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("text completion: %w", err)
	}

	ac := cfg.Assistant
	a.Extractor = extractor.New(a.LLM, a.Metadata, extractor.Options{
		MinConfidence: &ac.MinConfidence,
		Timeout:       config.GetDuration(ac.ExtractionTimeout),
		Observability: obs,
	}, log)
	a.Summarizer = summarizer.New(a.LLM, summarizer.Options{
		Temperature:   ac.Temperature,
		MaxTokens:     ac.MaxTokens,
		Timeout:       config.GetDuration(ac.SummaryTimeout),
		Observability: obs,
	}, log)
	a.Classifier = intent.NewClassifier(a.LLM, a.Metadata, config.GetDuration(ac.ExtractionTimeout), log)
	a.Assistant = assistant.NewService(a.Classifier, a.Extractor, a.Summarizer, a.Search, a.LLM, assistant.Options{
		Temperature: ac.Temperature,
		Timeout:     config.GetDuration(ac.SummaryTimeout),
	}, log)

	mode := "rules"
	if a.LLM != nil {
		mode = a.LLM.Provider()
	}
	log.Info("services assembled", map[string]interface{}{
		"backend":      a.Search.Backend(),
		"cacheEnabled": cfg.Search.CacheEnabled,
		"assistant":    mode,
	})
	return a, nil
}

func (a *App) connect(ctx context.Context) error {
	cfg := a.Config.Database

	err := retryWithBackoff(ctx, func() error {
		pg, err := database.NewPostgres(cfg.Postgres)
		if err != nil {
			return err
		}
		if err := pg.Ping(ctx); err != nil {
			pg.Close()
			return err
		}
		a.Postgres = pg
		return nil
	}, connectAttempts, connectDelay, a.logger, "PostgreSQL connection")
	if err != nil {
		return err
	}
	a.logger.Info("PostgreSQL connected", nil)

	if a.Config.Search.Backend == config.BackendElasticsearch {
		err = retryWithBackoff(ctx, func() error {
			es, err := database.NewElasticsearch(cfg.Elasticsearch)
			if err != nil {
				return err
			}
			if err := es.Ping(ctx); err != nil {
				return err
			}
			a.Elasticsearch = es
			return nil
		}, connectAttempts, connectDelay, a.logger, "Elasticsearch connection")
		if err != nil {
			return err
		}
		a.logger.Info("Elasticsearch connected", map[string]interface{}{"index": a.Elasticsearch.Index})
	}

	if cfg.Redis.Address != "" {
		rdb, _ := database.NewRedis(cfg.Redis)
		if err := rdb.Ping(ctx); err != nil {
			rdb.Close()
			if a.Config.Search.CacheEnabled {
				return err
			}
			// metadata reads go straight to postgres
			a.logger.Warn("redis unavailable, metadata cache disabled", map[string]interface{}{"error": err})
			return nil
		}
		a.Redis = rdb
		a.logger.Info("Redis connected", nil)
	}
	return nil
}

func (a *App) executor() (executor.Executor, error) {
	var exec executor.Executor
	switch a.Config.Search.Backend {
	case config.BackendPostgres:
		exec = executor.NewPostgresExecutor(a.Postgres.DB)
	case config.BackendElasticsearch:
		exec = executor.NewElasticsearchExecutor(a.Elasticsearch.Client, a.Elasticsearch.Index).
			WithMaxResultWindow(a.Config.Database.Elasticsearch.MaxResultWindow)
	default:
		return nil, fmt.Errorf("unsupported search backend %q", a.Config.Search.Backend)
	}

	if a.Config.Search.CacheEnabled && a.Redis != nil {
		exec = executor.NewCachingExecutor(exec, a.Redis.Client, config.GetDuration(a.Config.Search.CacheTTL), a.logger)
	}
	return exec, nil
}

func (a *App) redisClient() *redis.Client {
	if a.Redis == nil {
		return nil
	}
	return a.Redis.Client
}

// Pingers lists the connected stores for readiness checks.
func (a *App) Pingers() []database.Pinger {
	var out []database.Pinger
	if a.Postgres != nil {
		out = append(out, a.Postgres)
	}
	if a.Elasticsearch != nil {
		out = append(out, a.Elasticsearch)
	}
	if a.Redis != nil {
		out = append(out, a.Redis)
	}
	return out
}

func (a *App) Close() {
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			a.logger.Warn("closing redis", map[string]interface{}{"error": err})
		}
	}
	if a.Postgres != nil {
		if err := a.Postgres.Close(); err != nil {
			a.logger.Warn("closing postgres", map[string]interface{}{"error": err})
		}
	}
}
