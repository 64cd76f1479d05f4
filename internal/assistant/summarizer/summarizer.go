// Package summarizer writes the assistant's reply for a listing search:
// a short synopsis, refinement suggestions and per-listing actions.
package summarizer

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"carmarket-search/internal/assistant/extractor"
	"carmarket-search/internal/assistant/textcompletion"
	"carmarket-search/internal/common/logger"
	"carmarket-search/internal/common/observability"
	"carmarket-search/internal/models"
	"carmarket-search/internal/search/filterspec"
	"carmarket-search/internal/search/service"
)

const (
	MaxSuggestions = 4
	MaxActions     = 5
	TopListings    = 5

	ActionViewListing = "view_listing"
)

type Suggestion struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Query string `json:"query"`
	Icon  string `json:"icon,omitempty"`
}

type Action struct {
	Label  string                 `json:"label"`
	Action string                 `json:"action"`
	Data   map[string]interface{} `json:"data,omitempty"`
}

type Summary struct {
	Message        string       `json:"message"`
	Suggestions    []Suggestion `json:"suggestions"`
	Actions        []Action     `json:"actions"`
	AppliedFilters string       `json:"appliedFilters"`
}

type Options struct {
	Temperature   float64
	MaxTokens     int
	Timeout       time.Duration
	Observability *observability.Observability
}

type Summarizer struct {
	llm    textcompletion.Client
	opts   Options
	obs    *observability.Observability
	logger logger.Logger
}

// New wires a summarizer; a nil llm always uses the template message.
func New(llm textcompletion.Client, opts Options, log logger.Logger) *Summarizer {
	if opts.Temperature <= 0 {
		opts.Temperature = 0.7
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 300
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	obs := opts.Observability
	if obs == nil {
		obs = &observability.Observability{}
	}
	return &Summarizer{
		llm:    llm,
		opts:   opts,
		obs:    obs,
		logger: log.WithFields(map[string]interface{}{"component": "result-summarizer"}),
	}
}

// Summarize never fails; completion problems fall back to a fixed template.
// Applied filters and suggestions follow envelope.AppliedFilters, the spec
// that was searched; q only contributes the features, which are not a facet.
func (s *Summarizer) Summarize(ctx context.Context, utterance string, envelope *service.ResultEnvelope, q extractor.ExtractedQuery) Summary {
	ctx, span := s.obs.StartSpan(ctx, "assistant.summarize")
	defer span.End()

	var items []models.Listing
	var total int64
	spec := filterspec.New()
	if envelope != nil {
		items, total = envelope.Items, envelope.Pagination.Total
		spec = envelope.AppliedFilters
	}
	top := items
	if len(top) > TopListings {
		top = top[:TopListings]
	}
	span.SetAttributes(attribute.Int64("summary.total", total))

	applied := DescribeFilters(spec)
	return Summary{
		Message:        s.message(ctx, utterance, top, total, applied),
		Suggestions:    Suggestions(top, spec, q.Features),
		Actions:        Actions(top),
		AppliedFilters: applied,
	}
}

func (s *Summarizer) message(ctx context.Context, utterance string, top []models.Listing, total int64, applied string) string {
	if s.llm == nil {
		return FallbackMessage(top, total)
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	text, err := s.llm.Complete(ctx, textcompletion.Request{
		SystemPrompt: summarySystemPrompt,
		UserPrompt:   summaryUserPrompt(utterance, top, total, applied),
		Temperature:  s.opts.Temperature,
		MaxTokens:    s.opts.MaxTokens,
	})
	if err != nil {
		s.logger.Warn("summary completion failed, using template", map[string]interface{}{"error": err})
		return FallbackMessage(top, total)
	}
	return text
}

const summarySystemPrompt = `You are a helpful car marketplace assistant.
Generate a natural, conversational response about available car listings.

Guidelines:
1. Be enthusiastic and helpful
2. Highlight key details (price, year, mileage, features)
3. If multiple results, mention the total count
4. If no results, suggest alternatives politely
5. Keep response concise (3-5 sentences)
6. Use natural language, not bullet points
7. Mention if there are more results beyond what's shown`

type listingSummary struct {
	Make         string  `json:"make"`
	Model        string  `json:"model"`
	Year         int     `json:"year"`
	Price        float64 `json:"price"`
	Mileage      int     `json:"mileage"`
	BodyType     string  `json:"bodyType"`
	FuelType     string  `json:"fuelType"`
	Transmission string  `json:"transmission"`
	Condition    string  `json:"condition"`
	Location     string  `json:"location"`
}

func summaryUserPrompt(utterance string, top []models.Listing, total int64, applied string) string {
	rows := make([]listingSummary, 0, len(top))
	for _, l := range top {
		location := l.City
		if location == "" {
			location = l.Location
		}
		rows = append(rows, listingSummary{
			Make:         l.CarDetail.Make,
			Model:        l.CarDetail.Model,
			Year:         l.CarDetail.Year,
			Price:        l.Price,
			Mileage:      l.CarDetail.Mileage,
			BodyType:     l.CarDetail.BodyType,
			FuelType:     l.CarDetail.FuelType,
			Transmission: l.CarDetail.Transmission,
			Condition:    l.CarDetail.Condition,
			Location:     location,
		})
	}
	data, _ := json.MarshalIndent(rows, "", "  ")

	return fmt.Sprintf(`User query: "%s"

Found %d total listings. Here are the top %d:

%s

Applied filters: %s

Generate a friendly response summarizing these results.`, utterance, total, len(top), data, applied)
}

// FallbackMessage is the deterministic synopsis used without a completion.
func FallbackMessage(top []models.Listing, total int64) string {
	if len(top) == 0 {
		return "I couldn't find any cars matching your criteria in our current inventory. Try adjusting your filters or browse all available vehicles."
	}

	var b strings.Builder
	plural := ""
	if total > 1 {
		plural = "s"
	}
	fmt.Fprintf(&b, "Great news! I found %d car%s matching your criteria. ", total, plural)

	car := top[0].CarDetail
	fmt.Fprintf(&b, "The top result is a %d %s %s for $%s. ", car.Year, car.Make, car.Model, FormatNumber(top[0].Price))

	if total > int64(len(top)) {
		fmt.Fprintf(&b, "I'm showing you the top %d results. ", len(top))
	}
	b.WriteString("Click on any car to see full details!")
	return b.String()
}

// Suggestions proposes refinements for facets the searched spec left unset,
// or broader searches when nothing matched.
func Suggestions(top []models.Listing, spec filterspec.FilterSpec, features []string) []Suggestion {
	if len(top) == 0 {
		return []Suggestion{
			{ID: "all-cars", Label: "View all cars", Query: "Show me all available cars", Icon: "🚗"},
			{ID: "expand-budget", Label: "Expand budget", Query: "Show cars under $50,000", Icon: "💰"},
			{ID: "different-type", Label: "Different type", Query: "Show me SUVs", Icon: "🚙"},
		}
	}

	suggestions := []Suggestion{}
	if spec.PriceMax == nil {
		suggestions = append(suggestions, Suggestion{ID: "price-filter", Label: "Set budget", Query: "Show cars under $30,000", Icon: "💰"})
	}
	if spec.BodyType == "" {
		if body := mostCommonBodyType(top); body != "" {
			suggestions = append(suggestions, Suggestion{
				ID: "body-type", Label: fmt.Sprintf("More %ss", body), Query: fmt.Sprintf("Show me %s only", body), Icon: "🚙",
			})
		}
	}
	if len(features) == 0 {
		suggestions = append(suggestions, Suggestion{ID: "features", Label: "With specific features", Query: "Show cars with GPS and sunroof", Icon: "⚙️"})
	}

	if len(suggestions) > MaxSuggestions {
		suggestions = suggestions[:MaxSuggestions]
	}
	return suggestions
}

// mostCommonBodyType breaks ties by first appearance.
func mostCommonBodyType(listings []models.Listing) string {
	counts := map[string]int{}
	var order []string
	for _, l := range listings {
		body := l.CarDetail.BodyType
		if body == "" {
			continue
		}
		if counts[body] == 0 {
			order = append(order, body)
		}
		counts[body]++
	}
	sort.SliceStable(order, func(i, j int) bool { return counts[order[i]] > counts[order[j]] })
	if len(order) == 0 {
		return ""
	}
	return order[0]
}

func Actions(top []models.Listing) []Action {
	actions := make([]Action, 0, len(top))
	for _, l := range top {
		if len(actions) == MaxActions {
			break
		}
		actions = append(actions, Action{
			Label:  fmt.Sprintf("View %d %s %s", l.CarDetail.Year, l.CarDetail.Make, l.CarDetail.Model),
			Action: ActionViewListing,
			Data:   map[string]interface{}{"listingId": l.ID},
		})
	}
	return actions
}
