// Package service answers assistant utterances: it classifies the intent and
// routes to the handler for it. Every path returns a response; failures
// degrade to fixed messages.
package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"carmarket-search/internal/assistant/extractor"
	"carmarket-search/internal/assistant/intent"
	"carmarket-search/internal/assistant/summarizer"
	"carmarket-search/internal/assistant/textcompletion"
	"carmarket-search/internal/common/logger"
	"carmarket-search/internal/common/metrics"
	"carmarket-search/internal/models"
	"carmarket-search/internal/search/filterspec"
	search "carmarket-search/internal/search/service"
)

const (
	contextListings  = filterspec.MaxLimit
	contextCharLimit = 2000
)

type Request struct {
	Query          string `json:"query" validate:"required,max=500"`
	ConversationID string `json:"conversationId,omitempty" validate:"omitempty,max=100"`
}

type ListingData struct {
	Listings       []models.Listing `json:"listings"`
	TotalCount     int64            `json:"totalCount"`
	AppliedFilters string           `json:"appliedFilters"`
	QueryStats     QueryStats       `json:"queryStats"`
}

// QueryStats describes how the utterance was read.
type QueryStats struct {
	Mode       string   `json:"mode"`
	Confidence float64  `json:"confidence"`
	Keywords   []string `json:"keywords"`
}

type Response struct {
	Intent         *intent.Intent          `json:"intent"`
	Message        string                  `json:"message"`
	Data           *ListingData            `json:"data,omitempty"`
	Suggestions    []summarizer.Suggestion `json:"suggestions,omitempty"`
	Actions        []summarizer.Action     `json:"actions,omitempty"`
	ConversationID string                  `json:"conversationId,omitempty"`
}

// Searcher is the listing search the assistant runs on behalf of the shopper.
type Searcher interface {
	Search(ctx context.Context, spec filterspec.FilterSpec) (*search.ResultEnvelope, error)
}

type Options struct {
	Temperature float64
	Timeout     time.Duration
}

type Service struct {
	classifier *intent.Classifier
	extractor  *extractor.Extractor
	summarizer *summarizer.Summarizer
	search     Searcher
	llm        textcompletion.Client
	opts       Options
	logger     logger.Logger
}

// NewService wires the assistant. llm may be nil; the free-form intents then
// answer with their fixed messages.
func NewService(
	classifier *intent.Classifier,
	ext *extractor.Extractor,
	sum *summarizer.Summarizer,
	searcher Searcher,
	llm textcompletion.Client,
	opts Options,
	log logger.Logger,
) *Service {
	if opts.Temperature <= 0 {
		opts.Temperature = 0.7
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	return &Service{
		classifier: classifier,
		extractor:  ext,
		summarizer: sum,
		search:     searcher,
		llm:        llm,
		opts:       opts,
		logger:     log.WithFields(map[string]interface{}{"component": "assistant"}),
	}
}

// Process classifies the query and builds the reply for its intent.
func (s *Service) Process(ctx context.Context, req Request) (resp Response) {
	conversationID := strings.TrimSpace(req.ConversationID)
	if conversationID == "" {
		conversationID = uuid.NewString()
	}
	log := s.logger.WithFields(map[string]interface{}{"conversationId": conversationID})

	defer func() {
		if r := recover(); r != nil {
			log.Error("assistant query panicked", map[string]interface{}{"panic": fmt.Sprint(r)})
			resp = FallbackResponse()
			metrics.AssistantRequests.WithLabelValues("fallback").Inc()
		}
		resp.ConversationID = conversationID
	}()

	utterance := strings.TrimSpace(req.Query)
	classification := s.classifier.Classify(ctx, utterance)
	log.Info("intent classified", map[string]interface{}{
		"intent":     classification.Intent,
		"confidence": classification.Confidence,
	})
	metrics.AssistantRequests.WithLabelValues(string(classification.Intent)).Inc()

	switch classification.Intent {
	case intent.CarListing:
		return s.handleCarListing(ctx, utterance)
	case intent.CarSpecs:
		return s.handleCarSpecs(ctx, utterance)
	case intent.CarCompare:
		return s.handleCarCompare(ctx, utterance, classification.Entities)
	case intent.UserInfo:
		return s.handleUserInfo()
	default:
		return s.handleFAQ(ctx, utterance)
	}
}

func (s *Service) handleCarListing(ctx context.Context, utterance string) Response {
	q := s.extractor.Extract(ctx, utterance)
	spec := s.extractor.FilterSpec(q, utterance)

	envelope, err := s.search.Search(ctx, spec)
	if err != nil {
		s.logger.Error("assistant search failed", map[string]interface{}{"error": err})
		return Response{
			Intent:  intentPtr(intent.CarListing),
			Message: "I'm having trouble accessing our inventory right now. Please try again or browse our listings page.",
			Suggestions: []summarizer.Suggestion{
				{ID: "1", Label: "View all cars", Query: "Show me all available cars", Icon: "🚗"},
			},
		}
	}

	summary := s.summarizer.Summarize(ctx, utterance, envelope, q)
	top := envelope.Items
	if len(top) > summarizer.TopListings {
		top = top[:summarizer.TopListings]
	}

	return Response{
		Intent:  intentPtr(intent.CarListing),
		Message: summary.Message,
		Data: &ListingData{
			Listings:       top,
			TotalCount:     envelope.Pagination.Total,
			AppliedFilters: summary.AppliedFilters,
			QueryStats: QueryStats{
				Mode:       s.extractor.Mode(),
				Confidence: q.Confidence,
				Keywords:   q.ExtractedKeywords,
			},
		},
		Suggestions: summary.Suggestions,
		Actions:     summary.Actions,
	}
}

func (s *Service) handleCarSpecs(ctx context.Context, utterance string) Response {
	resp := Response{
		Intent: intentPtr(intent.CarSpecs),
		Suggestions: []summarizer.Suggestion{
			{ID: "1", Label: "View available cars", Query: "What cars do you have available?", Icon: "🚗"},
			{ID: "2", Label: "Compare cars", Query: "Compare two cars", Icon: "⚖️"},
		},
	}

	cars, err := s.inventory(ctx)
	if err != nil {
		resp.Message = "I'm having trouble fetching car specifications right now. Please try again or contact our support team."
		resp.Suggestions = []summarizer.Suggestion{}
		return resp
	}

	lines := make([]string, 0, len(cars))
	for _, c := range cars {
		lines = append(lines, fmt.Sprintf("%s %s (%d): %s, %s, %s", c.Make, c.Model, c.Year, c.BodyType, c.FuelType, c.Transmission))
	}

	system := fmt.Sprintf(`You are a knowledgeable car expert assistant for a car marketplace.
The user is asking about car specifications or features.

Available car information in our database:
%s

Provide detailed, accurate information about the car specifications requested.
If the specific car is not in our database, provide general knowledge about that car model.
Be conversational and helpful.`, truncate(strings.Join(lines, "\n"), contextCharLimit))

	resp.Message = s.complete(ctx, system, utterance, 500,
		"I'd be happy to help you with car specifications. Could you please specify which car model you're interested in?")
	return resp
}

func (s *Service) handleCarCompare(ctx context.Context, utterance string, entities intent.Entities) Response {
	resp := Response{
		Intent: intentPtr(intent.CarCompare),
		Suggestions: []summarizer.Suggestion{
			{ID: "1", Label: "View available", Query: "Show me these cars in stock", Icon: "🚗"},
			{ID: "2", Label: "More specs", Query: "Tell me more about specifications", Icon: "📊"},
		},
	}

	var comparison string
	if len(entities.CarMakes) >= 2 || len(entities.CarModels) >= 2 {
		cars, err := s.inventory(ctx)
		if err != nil {
			resp.Message = "I can help you compare cars! Please specify which two vehicles you'd like to compare."
			resp.Suggestions = []summarizer.Suggestion{}
			return resp
		}
		var lines []string
		for _, c := range cars {
			if mentions(entities.CarMakes, c.Make) || mentions(entities.CarModels, c.Model) {
				lines = append(lines, fmt.Sprintf("%s %s (%d): %s, %s, %s", c.Make, c.Model, c.Year, c.BodyType, c.FuelType, c.Transmission))
			}
		}
		comparison = strings.Join(lines, "\n")
	}

	var available string
	if comparison != "" {
		available = "Available cars in our database:\n" + comparison + "\n"
	}
	system := fmt.Sprintf(`You are a car comparison expert for a car marketplace.
The user wants to compare different cars.

%s
Provide a detailed comparison covering:
- Performance and engine specs
- Fuel efficiency
- Features and technology
- Safety ratings
- Price range
- Reliability and maintenance
- Pros and cons of each

Be objective and help them make an informed decision.`, available)

	resp.Message = s.complete(ctx, system, utterance, 700,
		"I'd be happy to help you compare cars! Please specify which two cars you'd like to compare.")
	return resp
}

const faqSystemPrompt = `You are a helpful customer service assistant for a car marketplace.
Answer frequently asked questions about:
- Business operations and hours
- Buying process and financing options
- Vehicle inspection and test drives
- Return policies and warranties
- Shipping and delivery
- Payment methods
- Account management

Be professional, friendly, and concise. If you don't know something, offer to connect them with support.`

func (s *Service) handleFAQ(ctx context.Context, utterance string) Response {
	return Response{
		Intent:  intentPtr(intent.FAQ),
		Message: s.complete(ctx, faqSystemPrompt, utterance, 400, "I'd be happy to help answer your questions about our car marketplace!"),
		Suggestions: []summarizer.Suggestion{
			{ID: "1", Label: "Financing options", Query: "What financing options do you offer?", Icon: "💳"},
			{ID: "2", Label: "Test drive", Query: "How do I schedule a test drive?", Icon: "🔑"},
			{ID: "3", Label: "Return policy", Query: "What's your return policy?", Icon: "↩️"},
		},
	}
}

// handleUserInfo answers anonymously; account lookups need an authenticated caller.
func (s *Service) handleUserInfo() Response {
	return Response{
		Intent:  intentPtr(intent.UserInfo),
		Message: "I'd be happy to help with your account information, but it seems you're not logged in. Please log in to view your profile, listings, and favorites.",
		Suggestions: []summarizer.Suggestion{
			{ID: "1", Label: "Log in", Query: "How do I log in?", Icon: "🔑"},
		},
	}
}

// complete returns fallback when no completion is configured or it fails.
func (s *Service) complete(ctx context.Context, system, user string, maxTokens int, fallback string) string {
	if s.llm == nil {
		return fallback
	}
	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	text, err := s.llm.Complete(ctx, textcompletion.Request{
		SystemPrompt: system,
		UserPrompt:   user,
		Temperature:  s.opts.Temperature,
		MaxTokens:    maxTokens,
	})
	if err != nil {
		s.logger.Warn("assistant completion failed, using fallback", map[string]interface{}{"error": err})
		return fallback
	}
	return text
}

// inventory samples public listings as prompt context.
func (s *Service) inventory(ctx context.Context) ([]models.CarDetail, error) {
	spec := filterspec.New()
	spec.Limit = contextListings
	envelope, err := s.search.Search(ctx, spec)
	if err != nil {
		s.logger.Error("inventory context unavailable", map[string]interface{}{"error": err})
		return nil, err
	}
	cars := make([]models.CarDetail, 0, len(envelope.Items))
	for _, l := range envelope.Items {
		cars = append(cars, l.CarDetail)
	}
	return cars, nil
}

// Welcome is the greeting shown before the first query.
func Welcome() Response {
	return Response{
		Message: "👋 Hi! I'm your car marketplace assistant. I can help you with:\n\n" +
			"🚗 Car specifications and features\n" +
			"📋 Available cars in our inventory\n" +
			"⚖️ Comparing different car models\n" +
			"❓ Frequently asked questions\n\n" +
			"How can I assist you today?",
		Suggestions: []summarizer.Suggestion{
			{ID: "1", Label: "Show available cars", Query: "What cars do you have available?", Icon: "🚗"},
			{ID: "2", Label: "Compare cars", Query: "Compare Honda Civic vs Toyota Corolla", Icon: "⚖️"},
			{ID: "3", Label: "Car specs", Query: "What are the specs of BMW X5?", Icon: "📊"},
			{ID: "4", Label: "How to buy", Query: "How do I buy a car from you?", Icon: "❓"},
		},
	}
}

// FallbackResponse is returned when a query could not be handled at all.
func FallbackResponse() Response {
	return Response{
		Message: "I'm having trouble understanding your question. Could you please rephrase it or try asking something else?",
		Suggestions: []summarizer.Suggestion{
			{ID: "1", Label: "View all cars", Query: "Show me all available cars", Icon: "🚗"},
			{ID: "2", Label: "Get help", Query: "How can I buy a car?", Icon: "❓"},
		},
	}
}

func intentPtr(i intent.Intent) *intent.Intent { return &i }

func mentions(names []string, value string) bool {
	for _, n := range names {
		if n != "" && strings.Contains(strings.ToLower(value), strings.ToLower(n)) {
			return true
		}
	}
	return false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
