package service

import (
	"context"
	stderrors "errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carmarket-search/internal/assistant/extractor"
	"carmarket-search/internal/assistant/intent"
	"carmarket-search/internal/assistant/summarizer"
	"carmarket-search/internal/assistant/textcompletion"
	"carmarket-search/internal/common/logger"
	"carmarket-search/internal/models"
	"carmarket-search/internal/search/filterspec"
	search "carmarket-search/internal/search/service"
)

type fakeSearch struct {
	items []models.Listing
	total int64
	err   error
	specs []filterspec.FilterSpec
}

func (f *fakeSearch) Search(ctx context.Context, spec filterspec.FilterSpec) (*search.ResultEnvelope, error) {
	f.specs = append(f.specs, spec)
	if f.err != nil {
		return nil, f.err
	}
	return &search.ResultEnvelope{
		Items:          f.items,
		Pagination:     search.Pagination{Page: 1, Limit: spec.Limit, Total: f.total},
		AppliedFilters: spec,
	}, nil
}

type recordingLLM struct {
	reply    string
	err      error
	requests []textcompletion.Request
}

func (r *recordingLLM) Provider() string { return "stub" }

func (r *recordingLLM) Complete(ctx context.Context, req textcompletion.Request) (string, error) {
	r.requests = append(r.requests, req)
	return r.reply, r.err
}

type staticMakes []string

func (m staticMakes) MakeNames(ctx context.Context) ([]string, error) { return m, nil }

func listing(id, mk, model, body string, year int, price float64) models.Listing {
	return models.Listing{
		ID: id, Price: price, Status: models.ListingStatusApproved, IsActive: true,
		CarDetail: models.CarDetail{Make: mk, Model: model, Year: year, BodyType: body, FuelType: "petrol", Transmission: "automatic"},
	}
}

func newTestService(t *testing.T, searcher Searcher, llm textcompletion.Client) *Service {
	log := logger.NewTestLogger(t)
	makes := staticMakes{"Honda", "Toyota", "BMW"}
	return NewService(
		intent.NewClassifier(nil, makes, 0, log),
		extractor.New(nil, nil, extractor.Options{}, log),
		summarizer.New(nil, summarizer.Options{}, log),
		searcher,
		llm,
		Options{},
		log,
	)
}

// ==========================
// car_listing
// ==========================

func TestProcess_CarListing(t *testing.T) {
	items := []models.Listing{
		listing("a", "Toyota", "RAV4", "suv", 2021, 24500),
		listing("b", "Toyota", "RAV4", "suv", 2019, 21000),
		listing("c", "Toyota", "C-HR", "suv", 2020, 19000),
		listing("d", "Toyota", "Highlander", "suv", 2018, 23000),
		listing("e", "Toyota", "4Runner", "suv", 2017, 24000),
		listing("f", "Toyota", "Venza", "suv", 2021, 24900),
	}
	searcher := &fakeSearch{items: items, total: 9}
	svc := newTestService(t, searcher, nil)

	resp := svc.Process(context.Background(), Request{Query: "Show me Toyota SUVs under $25,000", ConversationID: "conv-1"})

	require.NotNil(t, resp.Intent)
	assert.Equal(t, intent.CarListing, *resp.Intent)
	assert.Equal(t, "conv-1", resp.ConversationID)

	require.Len(t, searcher.specs, 1)
	spec := searcher.specs[0]
	assert.Equal(t, "Toyota", spec.Make)
	assert.Equal(t, "suv", spec.BodyType)
	assert.Equal(t, 25000.0, *spec.PriceMax)

	require.NotNil(t, resp.Data)
	assert.Len(t, resp.Data.Listings, 5)
	assert.Equal(t, int64(9), resp.Data.TotalCount)
	assert.Equal(t, "Make: Toyota, Type: suv, Price: $0-$25000", resp.Data.AppliedFilters)
	assert.Equal(t, "rules", resp.Data.QueryStats.Mode)
	assert.Len(t, resp.Actions, 5)
	assert.True(t, strings.HasPrefix(resp.Message, "Great news! I found 9 cars"))
	assert.LessOrEqual(t, len(resp.Suggestions), 4)
}

func TestProcess_LowConfidenceReportsFreeTextSearch(t *testing.T) {
	log := logger.NewTestLogger(t)
	extractionLLM := &recordingLLM{reply: `{"makes":["Honda","Toyota"],"priceMax":30000,"confidence":0.2}`}
	searcher := &fakeSearch{items: []models.Listing{listing("a", "Honda", "Civic", "sedan", 2019, 18000)}, total: 1}
	svc := NewService(
		intent.NewClassifier(nil, staticMakes{"Honda", "Toyota"}, 0, log),
		extractor.New(extractionLLM, nil, extractor.Options{MinConfidence: filterspec.FloatPtr(0.5)}, log),
		summarizer.New(nil, summarizer.Options{}, log),
		searcher,
		nil,
		Options{},
		log,
	)
	utterance := "Show me Honda or Toyota cars under $30,000"

	resp := svc.Process(context.Background(), Request{Query: utterance})

	require.Len(t, searcher.specs, 1)
	spec := searcher.specs[0]
	assert.Equal(t, utterance, spec.Query)
	assert.Empty(t, spec.Make)
	assert.Nil(t, spec.PriceMax)

	require.NotNil(t, resp.Data)
	assert.Equal(t, `Keywords: "Show me Honda or Toyota cars under $30,000"`, resp.Data.AppliedFilters)
	assert.Equal(t, 0.2, resp.Data.QueryStats.Confidence)

	labels := make([]string, 0, len(resp.Suggestions))
	for _, sg := range resp.Suggestions {
		labels = append(labels, sg.Label)
	}
	assert.Contains(t, labels, "Set budget")
}

func TestProcess_CarListingSearchFailure(t *testing.T) {
	svc := newTestService(t, &fakeSearch{err: stderrors.New("STORAGE_UNAVAILABLE")}, nil)

	resp := svc.Process(context.Background(), Request{Query: "find me a sedan"})

	assert.Equal(t, intent.CarListing, *resp.Intent)
	assert.Contains(t, resp.Message, "trouble accessing our inventory")
	require.Len(t, resp.Suggestions, 1)
	assert.Equal(t, "View all cars", resp.Suggestions[0].Label)
	assert.Nil(t, resp.Data)
}

func TestProcess_GeneratesConversationID(t *testing.T) {
	svc := newTestService(t, &fakeSearch{}, nil)

	resp := svc.Process(context.Background(), Request{Query: "show me cars"})
	_, err := uuid.Parse(resp.ConversationID)
	assert.NoError(t, err)
}

// ==========================
// Free-form intents
// ==========================

func TestProcess_FreeFormIntents(t *testing.T) {
	tests := []struct {
		name         string
		query        string
		llm          *recordingLLM
		wantIntent   intent.Intent
		wantMessage  string
		wantMaxToken int
	}{
		{
			name: "specs with completion", query: "What are the specs of BMW X5?",
			llm: &recordingLLM{reply: "The X5 has a turbocharged inline-six."}, wantIntent: intent.CarSpecs,
			wantMessage: "The X5 has a turbocharged inline-six.", wantMaxToken: 500,
		},
		{
			name: "specs completion failure", query: "What are the specs of BMW X5?",
			llm: &recordingLLM{err: stderrors.New("LLM_TIMEOUT")}, wantIntent: intent.CarSpecs,
			wantMessage: "I'd be happy to help you with car specifications. Could you please specify which car model you're interested in?", wantMaxToken: 500,
		},
		{
			name: "compare", query: "Compare Honda Civic vs Toyota Corolla",
			llm: &recordingLLM{reply: "Both are reliable compacts."}, wantIntent: intent.CarCompare,
			wantMessage: "Both are reliable compacts.", wantMaxToken: 700,
		},
		{
			name: "faq failure", query: "How do I schedule a test drive?",
			llm: &recordingLLM{err: stderrors.New("boom")}, wantIntent: intent.FAQ,
			wantMessage: "I'd be happy to help answer your questions about our car marketplace!", wantMaxToken: 400,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			searcher := &fakeSearch{items: []models.Listing{listing("a", "Honda", "Civic", "sedan", 2020, 18000)}, total: 1}
			svc := newTestService(t, searcher, tt.llm)

			resp := svc.Process(context.Background(), Request{Query: tt.query})

			assert.Equal(t, tt.wantIntent, *resp.Intent)
			assert.Equal(t, tt.wantMessage, resp.Message)
			require.Len(t, tt.llm.requests, 1)
			assert.Equal(t, tt.wantMaxToken, tt.llm.requests[0].MaxTokens)
			assert.NotEmpty(t, resp.Suggestions)
		})
	}
}

func TestProcess_CompareIncludesMatchingInventory(t *testing.T) {
	llm := &recordingLLM{reply: "ok"}
	searcher := &fakeSearch{items: []models.Listing{
		listing("a", "Honda", "Civic", "sedan", 2020, 18000),
		listing("b", "Ford", "F-150", "truck", 2018, 28000),
	}, total: 2}
	svc := newTestService(t, searcher, llm)

	svc.Process(context.Background(), Request{Query: "Compare Honda Civic vs Toyota Corolla"})

	require.Len(t, llm.requests, 1)
	assert.Contains(t, llm.requests[0].SystemPrompt, "Honda Civic (2020): sedan, petrol, automatic")
	assert.NotContains(t, llm.requests[0].SystemPrompt, "F-150")
	assert.Equal(t, filterspec.MaxLimit, searcher.specs[0].Limit)
}

func TestProcess_SpecsInventoryFailure(t *testing.T) {
	svc := newTestService(t, &fakeSearch{err: stderrors.New("down")}, &recordingLLM{reply: "unused"})

	resp := svc.Process(context.Background(), Request{Query: "what is the horsepower of a civic"})
	assert.Equal(t, intent.CarSpecs, *resp.Intent)
	assert.Contains(t, resp.Message, "trouble fetching car specifications")
	assert.Empty(t, resp.Suggestions)
}

func TestProcess_UserInfoAnonymous(t *testing.T) {
	svc := newTestService(t, &fakeSearch{}, nil)

	resp := svc.Process(context.Background(), Request{Query: "show me my favorites"})
	assert.Equal(t, intent.UserInfo, *resp.Intent)
	assert.Contains(t, resp.Message, "not logged in")
	require.Len(t, resp.Suggestions, 1)
	assert.Equal(t, "Log in", resp.Suggestions[0].Label)
}

func TestProcess_PanicFallsBack(t *testing.T) {
	svc := newTestService(t, nil, nil)

	resp := svc.Process(context.Background(), Request{Query: "show me cars", ConversationID: "c-9"})
	assert.Nil(t, resp.Intent)
	assert.Equal(t, FallbackResponse().Message, resp.Message)
	assert.Equal(t, "c-9", resp.ConversationID)
}

// ==========================
// Welcome
// ==========================

func TestWelcome(t *testing.T) {
	w := Welcome()
	assert.Nil(t, w.Intent)
	assert.Contains(t, w.Message, "How can I assist you today?")
	assert.Len(t, w.Suggestions, 4)
}
