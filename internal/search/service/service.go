// Package service orchestrates a listing search: predicates, sort, window, storage.
package service

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"carmarket-search/internal/common/errors"
	"carmarket-search/internal/common/logger"
	"carmarket-search/internal/common/metrics"
	"carmarket-search/internal/common/observability"
	"carmarket-search/internal/models"
	"carmarket-search/internal/search/executor"
	"carmarket-search/internal/search/filterspec"
	"carmarket-search/internal/search/predicate"
	"carmarket-search/internal/search/sortpage"
)

type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
}

// ResultEnvelope is the response of every search path. Total does not depend
// on the window and len(Items) <= Pagination.Limit.
type ResultEnvelope struct {
	Items          []models.Listing          `json:"items"`
	Pagination     Pagination                `json:"pagination"`
	AppliedFilters filterspec.FilterSpec     `json:"appliedFilters"`
	DroppedFields  []filterspec.DroppedField `json:"droppedFields,omitempty"`
}

// VocabularySource supplies the enum vocabulary used to reject unknown values.
type VocabularySource interface {
	Vocabulary(ctx context.Context) (predicate.Vocabulary, error)
}

type Options struct {
	DefaultLimit  int
	MaxLimit      int
	Observability *observability.Observability
}

type Service struct {
	executor executor.Executor
	vocab    VocabularySource
	parser   *filterspec.Parser
	maxLimit int
	obs      *observability.Observability
	logger   logger.Logger
}

// NewService wires a search service. vocab may be nil, in which case enum
// facets are not checked against a vocabulary.
func NewService(exec executor.Executor, vocab VocabularySource, opts Options, log logger.Logger) *Service {
	obs := opts.Observability
	if obs == nil {
		obs = &observability.Observability{}
	}
	parser := filterspec.NewParser(opts.DefaultLimit, opts.MaxLimit)
	return &Service{
		executor: exec,
		vocab:    vocab,
		parser:   parser,
		maxLimit: parser.MaxLimit,
		obs:      obs,
		logger:   log.WithFields(map[string]interface{}{"component": "search-service"}),
	}
}

// Parser returns the filter parser configured with this service's page bounds.
func (s *Service) Parser() *filterspec.Parser {
	return s.parser
}

func (s *Service) Backend() string {
	return s.executor.Backend()
}

// Search never fails on filter content; only storage errors surface.
func (s *Service) Search(ctx context.Context, spec filterspec.FilterSpec) (envelope *ResultEnvelope, err error) {
	backend := s.executor.Backend()
	start := time.Now()

	ctx, span := s.obs.StartSpan(ctx, "search.listings", attribute.String("search.backend", backend))
	defer func() {
		status := "success"
		if err != nil {
			status = "error"
		}
		metrics.SearchRequests.WithLabelValues(backend, status).Inc()
		metrics.SearchDuration.WithLabelValues(backend).Observe(time.Since(start).Seconds())
		observability.EndSpan(span, err)
	}()

	preds := predicate.Build(spec, s.vocabulary(ctx))
	sort := sortpage.Resolve(spec.SortBy, spec.SortOrder)
	page := sortpage.NewPageWithMax(spec.Page, spec.Limit, s.maxLimit)

	applied := spec
	applied.SortBy, applied.SortOrder = sort.By, sort.Order
	applied.Page, applied.Limit = page.Number, page.Limit

	var result *executor.Result
	if predicate.Unsatisfiable(preds) {
		result = &executor.Result{Rows: []models.Listing{}}
	} else {
		result, err = s.executor.Execute(ctx, preds, sort, page)
		if err != nil {
			s.logger.Error("search failed", map[string]interface{}{
				"backend": backend,
				"error":   err,
			})
			return nil, err
		}
	}

	span.SetAttributes(
		attribute.Int64("search.total", result.Total),
		attribute.Int("search.predicates", len(preds)),
	)
	s.obs.RecordSearchResults(ctx, backend, result.Total)

	items := result.Rows
	if items == nil {
		items = []models.Listing{}
	}
	if len(items) > page.Limit {
		items = items[:page.Limit]
	}

	s.logger.Debug("search completed", map[string]interface{}{
		"total":      result.Total,
		"returned":   len(items),
		"page":       page.Number,
		"durationMs": time.Since(start).Milliseconds(),
	})

	return &ResultEnvelope{
		Items: items,
		Pagination: Pagination{
			Page:       page.Number,
			Limit:      page.Limit,
			Total:      result.Total,
			TotalPages: page.TotalPages(result.Total),
		},
		AppliedFilters: applied,
	}, nil
}

// SearchValues parses raw filters best-effort and runs the search, reporting
// dropped facets on the envelope.
func (s *Service) SearchValues(ctx context.Context, raw map[string]interface{}) (*ResultEnvelope, error) {
	spec, dropped := s.parser.FromMap(raw)
	if len(dropped) > 0 {
		s.logger.Warn("ignored malformed filters", map[string]interface{}{"dropped": dropped})
	}

	envelope, err := s.Search(ctx, spec)
	if err != nil {
		return nil, err
	}
	envelope.DroppedFields = dropped
	return envelope, nil
}

// FindListing returns one public listing or LISTING_NOT_FOUND.
func (s *Service) FindListing(ctx context.Context, id string) (*models.Listing, error) {
	if id == "" {
		return nil, errors.NewListingNotFoundError(id)
	}
	return s.executor.FindByID(ctx, id)
}

func (s *Service) vocabulary(ctx context.Context) predicate.Vocabulary {
	if s.vocab == nil {
		return nil
	}
	vocab, err := s.vocab.Vocabulary(ctx)
	if err != nil {
		s.logger.Warn("vocabulary unavailable, enum facets unchecked", map[string]interface{}{"error": err})
		return nil
	}
	return vocab
}
