// cmd/search-api/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"carmarket-search/internal/app"
	"carmarket-search/internal/common/config"
	"carmarket-search/internal/common/logger"
	"carmarket-search/internal/common/observability"
	transport "carmarket-search/internal/transport/http"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New("info", "console")
		bootLog.Fatal("config load failed", zap.Error(err))
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
		logger.New("info", "console").Fatal("logger init failed", zap.Error(err))
	}
	defer zapLog.Sync()

	log := logger.NewZapAdapter(zapLog.With(
		zap.String("service", "search-api"),
		zap.String("version", cfg.App.Version),
	))
	log.Info("Starting search API...", map[string]interface{}{"environment": cfg.App.Environment})

	obs := observability.New("search-api")
	defer obs.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, obs, log)
	if err != nil {
		zapLog.Fatal("startup failed", zap.Error(err))
	}
	defer a.Close()

	router := transport.NewRouter(transport.Deps{
		Search:    a.Search,
		Assistant: a.Assistant,
		Metadata:  a.Metadata,
		Pingers:   a.Pingers(),
	}, transport.Options{
		ServiceName:    cfg.App.Name,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		RequestTimeout: config.GetDuration(cfg.Server.WriteTimeout),
	}, log)

	srv := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           router,
		ReadTimeout:       config.GetDuration(cfg.Server.ReadTimeout),
		ReadHeaderTimeout: 5 * time.Second,
		// leave room for the router timeout to answer first
		WriteTimeout: config.GetDuration(cfg.Server.WriteTimeout) + 5*time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", map[string]interface{}{"address": cfg.Server.Address})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("Shutdown signal received, draining requests...", nil)
	case err := <-errCh:
		log.Error("HTTP server failed", map[string]interface{}{"error": err})
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Error during HTTP shutdown", map[string]interface{}{"error": err})
	}

	log.Info("Search API stopped", nil)
}
