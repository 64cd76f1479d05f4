package intent

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"carmarket-search/internal/assistant/textcompletion"
	"carmarket-search/internal/common/logger"
)

type stubLLM struct {
	text string
	err  error
}

func (s stubLLM) Provider() string { return "stub" }

func (s stubLLM) Complete(ctx context.Context, req textcompletion.Request) (string, error) {
	return s.text, s.err
}

type staticMakes []string

func (m staticMakes) MakeNames(ctx context.Context) ([]string, error) { return m, nil }

var makes = staticMakes{"Honda", "Toyota", "BMW"}

// ==========================
// Keyword mode
// ==========================

func TestClassify_Keywords(t *testing.T) {
	tests := []struct {
		utterance string
		want      Intent
	}{
		{"What cars do you have available?", CarListing},
		{"Show me SUVs under $30,000", CarListing},
		{"Compare Honda Civic vs Toyota Corolla", CarCompare},
		{"What are the specs of BMW X5?", CarSpecs},
		{"How do I buy a car from you?", FAQ},
		{"What financing options do you offer?", FAQ},
		{"Show me my listings", UserInfo},
		{"How many favorites do I have? my favorites please", UserInfo},
	}

	c := NewClassifier(nil, makes, time.Second, logger.NewTestLogger(t))
	for _, tt := range tests {
		t.Run(tt.utterance, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Classify(context.Background(), tt.utterance).Intent)
		})
	}
}

func TestClassify_KeywordEntities(t *testing.T) {
	c := NewClassifier(nil, makes, time.Second, logger.NewTestLogger(t))

	got := c.Classify(context.Background(), "Compare Honda Civic vs Toyota Corolla")
	assert.Equal(t, []string{"Honda", "Toyota"}, got.Entities.CarMakes)
	assert.Equal(t, []string{"civic", "corolla"}, got.Entities.CarModels)

	got = c.Classify(context.Background(), "honda vs toyota")
	assert.Equal(t, []string{"Honda", "Toyota"}, got.Entities.CarMakes)
	assert.Empty(t, got.Entities.CarModels)
}

// ==========================
// LLM mode
// ==========================

func TestClassify_LLM(t *testing.T) {
	llm := stubLLM{text: `{"intent":"car_compare","confidence":0.92,"extractedEntities":{"carMakes":["Honda","Toyota"],"carModels":["Civic","Corolla"]}}`}
	c := NewClassifier(llm, nil, time.Second, logger.NewTestLogger(t))

	got := c.Classify(context.Background(), "civic or corolla?")
	assert.Equal(t, CarCompare, got.Intent)
	assert.Equal(t, 0.92, got.Confidence)
	assert.Equal(t, []string{"Civic", "Corolla"}, got.Entities.CarModels)
}

func TestClassify_LLMFallsBackToKeywords(t *testing.T) {
	tests := []struct {
		name string
		llm  stubLLM
	}{
		{name: "error", llm: stubLLM{err: stderrors.New("boom")}},
		{name: "prose", llm: stubLLM{text: "That sounds like a FAQ."}},
		{name: "unknown intent", llm: stubLLM{text: `{"intent":"small_talk"}`}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewClassifier(tt.llm, makes, time.Second, logger.NewTestLogger(t))
			got := c.Classify(context.Background(), "What is your return policy?")
			assert.Equal(t, FAQ, got.Intent)
			assert.Equal(t, 0.6, got.Confidence)
		})
	}
}
