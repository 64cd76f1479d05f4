// cmd/worker-manager/main.go
package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"carmarket-search/internal/app"
	"carmarket-search/internal/common/camunda"
	"carmarket-search/internal/common/config"
	"carmarket-search/internal/common/database"
	"carmarket-search/internal/common/logger"
	"carmarket-search/internal/common/observability"

	aaq "carmarket-search/internal/workers/ai-conversation/answer-assistant-query"
	pui "carmarket-search/internal/workers/ai-conversation/parse-user-intent"
	elq "carmarket-search/internal/workers/listings/extract-listing-query"
	sl "carmarket-search/internal/workers/listings/search-listings"
	slr "carmarket-search/internal/workers/listings/summarize-listing-results"
)

func main() {
	bootLog := logger.New("info", "console")
	bootLog.Info("Starting worker manager...")

	cfg, err := config.Load()
	if err != nil {
		bootLog.Fatal("config load failed", zap.Error(err))
	}
	if err := config.ValidateForWorkers(cfg); err != nil {
		bootLog.Fatal("invalid worker configuration", zap.Error(err))
	}

	zapLog, err := logger.NewWithOptions(logger.Options{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		FilePath:   cfg.Logging.FilePath,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})
	if err != nil {
		bootLog.Fatal("logger init failed", zap.Error(err))
	}
	defer zapLog.Sync()

	// Wrap zap logger with our logger interface
	log := logger.NewZapAdapter(zapLog.With(zap.String("service", "worker-manager")))

	obs := observability.New("worker-manager")
	defer obs.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, obs, log)
	if err != nil {
		zapLog.Fatal("startup failed", zap.Error(err))
	}
	defer a.Close()

	zeebe, err := camunda.NewClientWithConfig(ctx, &camunda.ClientConfig{
		GatewayAddress:         cfg.Camunda.BrokerAddress,
		UsePlaintextConnection: true,
		ConnectionTimeout:      config.GetDuration(cfg.Camunda.RequestTimeout),
	})
	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	defer zeebe.Close()
	zapLog.Info("Zeebe client connected successfully")

	// --- Register workers ---
	var workers []worker.JobWorker
	start := func(taskType string, handler camunda.JobHandler) {
		if w := camunda.StartWorker(zeebe.GetClient(), taskType, config.GetWorkerConfig(cfg, taskType), handler, log); w != nil {
			workers = append(workers, w)
		}
	}

	start(sl.TaskType, sl.NewHandler(
		&sl.Config{Timeout: workerTimeout(cfg, sl.TaskType)},
		a.Search, obs, log,
	))

	extractCfg := elq.LoadConfig()
	extractCfg.Timeout = workerTimeout(cfg, elq.TaskType)
	start(elq.TaskType, elq.NewHandler(extractCfg, a.Extractor, obs, log))

	start(slr.TaskType, slr.NewHandler(
		&slr.Config{Timeout: workerTimeout(cfg, slr.TaskType)},
		a.Summarizer, obs, log,
	))

	start(pui.TaskType, pui.NewHandler(
		&pui.Config{Timeout: workerTimeout(cfg, pui.TaskType)},
		a.Classifier, obs, log,
	))
	start(aaq.TaskType, aaq.NewHandler(
		&aaq.Config{Timeout: workerTimeout(cfg, aaq.TaskType)},
		a.Assistant, obs, log,
	))

	log.Info("workers registered", map[string]interface{}{"count": len(workers)})

	// --- Health & Metrics Server ---
	srv := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           healthRouter(append(a.Pingers(), zeebe)),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info("Health/Metrics server listening", map[string]interface{}{"address": cfg.Server.Address})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Health/Metrics server failed", map[string]interface{}{"error": err})
		}
	}()

	// --- Graceful Shutdown ---
	<-ctx.Done()
	log.Info("Shutdown signal received, stopping workers...", nil)

	for _, w := range workers {
		w.Close()
		w.AwaitClose()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Error during health server shutdown", map[string]interface{}{"error": err})
	}

	log.Info("Worker manager stopped", nil)
}

func workerTimeout(cfg *config.Config, taskType string) time.Duration {
	return config.GetDuration(config.GetWorkerConfig(cfg, taskType).Timeout)
}

func healthRouter(pingers []database.Pinger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})
	r.Get("/ready", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status, checks := http.StatusOK, map[string]string{}
		for _, p := range pingers {
			if err := p.Ping(ctx); err != nil {
				checks[p.Name()] = err.Error()
				status = http.StatusServiceUnavailable
				continue
			}
			checks[p.Name()] = "ok"
		}
		writeJSON(w, status, map[string]interface{}{"checks": checks})
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	return r
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
