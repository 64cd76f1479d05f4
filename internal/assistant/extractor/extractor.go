// Package extractor turns a free-text utterance into structured search
// criteria, either through the text-completion service or with local rules.
package extractor

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"carmarket-search/internal/assistant/textcompletion"
	"carmarket-search/internal/common/logger"
	"carmarket-search/internal/common/observability"
	"carmarket-search/internal/search/filterspec"
	"carmarket-search/internal/search/predicate"
)

const DefaultMinConfidence = 0.3

// ExtractedQuery is the structured reading of one utterance.
type ExtractedQuery struct {
	Query string `json:"query,omitempty"`

	Makes  []string `json:"makes,omitempty"`
	Models []string `json:"models,omitempty"`

	YearMin    *int     `json:"yearMin,omitempty"`
	YearMax    *int     `json:"yearMax,omitempty"`
	PriceMin   *float64 `json:"priceMin,omitempty"`
	PriceMax   *float64 `json:"priceMax,omitempty"`
	MileageMax *int     `json:"mileageMax,omitempty"`

	BodyTypes    []string `json:"bodyTypes,omitempty"`
	FuelTypes    []string `json:"fuelTypes,omitempty"`
	Transmission string   `json:"transmission,omitempty"`
	Condition    string   `json:"condition,omitempty"`
	Location     string   `json:"location,omitempty"`
	Features     []string `json:"features,omitempty"`

	SortBy    string `json:"sortBy,omitempty"`
	SortOrder string `json:"sortOrder,omitempty"`

	ExtractedKeywords []string `json:"extractedKeywords"`
	Confidence        float64  `json:"confidence"`
}

// ToFilterSpec maps the first value of each multi-valued facet onto a
// FilterSpec, so the NL and HTTP paths build identical predicates.
func (q ExtractedQuery) ToFilterSpec() filterspec.FilterSpec {
	spec := filterspec.New()
	spec.Query = q.Query
	spec.Make = first(q.Makes)
	spec.Model = first(q.Models)
	spec.YearMin, spec.YearMax = q.YearMin, q.YearMax
	spec.PriceMin, spec.PriceMax = q.PriceMin, q.PriceMax
	spec.MileageMax = q.MileageMax
	spec.BodyType = first(q.BodyTypes)
	spec.FuelType = first(q.FuelTypes)
	spec.Transmission = q.Transmission
	spec.Condition = q.Condition
	spec.Location = q.Location
	if filterspec.SortFields[q.SortBy] {
		spec.SortBy = q.SortBy
	}
	if q.SortOrder == filterspec.OrderASC || q.SortOrder == filterspec.OrderDESC {
		spec.SortOrder = q.SortOrder
	}
	return spec
}

// HasFacets reports whether anything beyond free text was extracted.
func (q ExtractedQuery) HasFacets() bool {
	return facetCount(q) > 0
}

func first(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

func facetCount(q ExtractedQuery) int {
	n := 0
	for _, set := range []bool{
		len(q.Makes) > 0,
		len(q.Models) > 0,
		q.YearMin != nil || q.YearMax != nil,
		q.PriceMin != nil || q.PriceMax != nil,
		q.MileageMax != nil,
		len(q.BodyTypes) > 0,
		len(q.FuelTypes) > 0,
		q.Transmission != "",
		q.Condition != "",
		len(q.Features) > 0,
	} {
		if set {
			n++
		}
	}
	return n
}

// VocabularySource supplies the terms the rules matcher recognizes.
type VocabularySource interface {
	Vocabulary(ctx context.Context) (predicate.Vocabulary, error)
	MakeNames(ctx context.Context) ([]string, error)
}

type Options struct {
	// MinConfidence nil selects DefaultMinConfidence; zero trusts every extraction.
	MinConfidence *float64
	Timeout       time.Duration
	Observability *observability.Observability
}

// Extractor never fails: every problem degrades to a low-confidence query.
type Extractor struct {
	llm           textcompletion.Client
	vocab         VocabularySource
	minConfidence float64
	timeout       time.Duration
	obs           *observability.Observability
	logger        logger.Logger
}

// New wires an extractor. A nil llm selects rules mode; a nil vocab makes the
// rules matcher use its built-in term lists.
func New(llm textcompletion.Client, vocab VocabularySource, opts Options, log logger.Logger) *Extractor {
	minConfidence := DefaultMinConfidence
	if opts.MinConfidence != nil {
		minConfidence = *opts.MinConfidence
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.Observability == nil {
		opts.Observability = &observability.Observability{}
	}
	return &Extractor{
		llm:           llm,
		vocab:         vocab,
		minConfidence: minConfidence,
		timeout:       opts.Timeout,
		obs:           opts.Observability,
		logger:        log.WithFields(map[string]interface{}{"component": "query-extractor"}),
	}
}

// Mode is "llm" or "rules".
func (e *Extractor) Mode() string {
	if e.llm != nil {
		return "llm"
	}
	return "rules"
}

func (e *Extractor) Extract(ctx context.Context, utterance string) ExtractedQuery {
	ctx, span := e.obs.StartSpan(ctx, "assistant.extract", attribute.String("extract.mode", e.Mode()))
	defer span.End()

	var q ExtractedQuery
	if e.llm != nil {
		q = e.extractWithLLM(ctx, utterance)
	} else {
		q = e.extractWithRules(ctx, utterance)
	}
	if q.ExtractedKeywords == nil {
		q.ExtractedKeywords = []string{}
	}

	span.SetAttributes(attribute.Float64("extract.confidence", q.Confidence))
	e.logger.Debug("query extracted", map[string]interface{}{
		"mode":       e.Mode(),
		"confidence": q.Confidence,
		"keywords":   q.ExtractedKeywords,
	})
	return q
}

// FilterSpec applies the confidence threshold: below it only the free-text
// query is searched.
func (e *Extractor) FilterSpec(q ExtractedQuery, utterance string) filterspec.FilterSpec {
	if q.Confidence < e.minConfidence {
		spec := filterspec.New()
		spec.Query = q.Query
		if spec.Query == "" {
			spec.Query = utterance
		}
		return spec
	}
	return q.ToFilterSpec()
}
