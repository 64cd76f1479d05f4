// Package http exposes search, listing detail, metadata and the assistant
// over a chi router.
package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/riandyrn/otelchi"

	assistant "carmarket-search/internal/assistant/service"
	"carmarket-search/internal/common/database"
	"carmarket-search/internal/common/logger"
	"carmarket-search/internal/models"
	search "carmarket-search/internal/search/service"
)

// Assistant answers utterances.
type Assistant interface {
	Process(ctx context.Context, req assistant.Request) assistant.Response
}

// Metadata serves the admin-managed vocabularies.
type Metadata interface {
	GetAllMakes(ctx context.Context) ([]models.CarMake, error)
	GetModelsByMake(ctx context.Context, makeID string) ([]models.CarModel, error)
	GetMetadataByType(ctx context.Context, t models.MetadataType) ([]models.MetadataItem, error)
	GetAllMetadata(ctx context.Context) (*models.AllMetadata, error)
}

type Deps struct {
	Search    *search.Service
	Assistant Assistant
	Metadata  Metadata
	// Pingers are checked by /ready.
	Pingers []database.Pinger
}

type Options struct {
	ServiceName    string
	AllowedOrigins []string
	RequestTimeout time.Duration
}

type handler struct {
	deps   Deps
	logger logger.Logger
}

// NewRouter builds the API router with tracing, CORS, request ids, access
// logging and Prometheus instrumentation.
func NewRouter(deps Deps, opts Options, log logger.Logger) http.Handler {
	if opts.ServiceName == "" {
		opts.ServiceName = "search-api"
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}

	h := &handler{deps: deps, logger: log.WithFields(map[string]interface{}{"component": "http"})}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(requestID)
	r.Use(middleware.Recoverer)
	r.Use(otelchi.Middleware(opts.ServiceName, otelchi.WithChiRoutes(r)))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", requestIDHeader},
		ExposedHeaders:   []string{requestIDHeader},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(accessLog(h.logger))
	r.Use(middleware.Timeout(opts.RequestTimeout))

	r.Get("/health", h.health)
	r.Get("/ready", h.ready)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Get("/search", h.search)
	r.Get("/listings/{id}", h.listing)

	r.Route("/assistant", func(r chi.Router) {
		r.Get("/welcome", h.welcome)
		r.Post("/query", h.assistantQuery)
	})

	r.Route("/metadata", func(r chi.Router) {
		r.Get("/all", h.allMetadata)
		r.Get("/makes", h.makes)
		r.Get("/makes/{makeId}/models", h.models)
		r.Get("/{type}", h.metadataByType)
	})

	return r
}
