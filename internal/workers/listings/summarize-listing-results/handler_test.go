// internal/workers/listings/summarize-listing-results/handler_test.go
package summarizelistingresults

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carmarket-search/internal/assistant/summarizer"
	"carmarket-search/internal/common/errors"
	"carmarket-search/internal/common/logger"
	"carmarket-search/internal/models"
)

func createTestHandler(t *testing.T) *Handler {
	log := logger.NewTestLogger(t)
	return NewHandler(LoadConfig(), summarizer.New(nil, summarizer.Options{}, log), nil, log)
}

// decodeInput builds the input the way the engine hands it over: as JSON.
func decodeInput(t *testing.T, raw string) *Input {
	var input Input
	require.NoError(t, json.Unmarshal([]byte(raw), &input))
	return &input
}

// ==========================
// Execute
// ==========================

func TestHandler_Execute_Matches(t *testing.T) {
	input := decodeInput(t, `{
		"utterance": "honda under 30k",
		"envelope": {
			"items": [{"id":"h1","title":"2020 Honda Civic","price":18500,"carDetail":{"make":"Honda","model":"Civic","year":2020,"bodyType":"sedan"}}],
			"pagination": {"page":1,"limit":10,"total":1,"totalPages":1},
			"appliedFilters": {"make":"Honda","priceMax":30000}
		},
		"extractedQuery": {"makes":["Honda"],"priceMax":30000,"extractedKeywords":["honda"],"confidence":0.6}
	}`)

	output, err := createTestHandler(t).Execute(context.Background(), input)
	require.NoError(t, err)

	assert.Contains(t, output.Summary.Message, "1 car")
	assert.Contains(t, output.Summary.Message, "$18,500")
	assert.LessOrEqual(t, len(output.Summary.Suggestions), summarizer.MaxSuggestions)
	require.NotEmpty(t, output.Summary.Actions)
	assert.Equal(t, summarizer.ActionViewListing, output.Summary.Actions[0].Action)
}

func TestHandler_Execute_NoMatches(t *testing.T) {
	input := decodeInput(t, `{
		"utterance": "flying car",
		"envelope": {"items": [], "pagination": {"page":1,"limit":10,"total":0,"totalPages":0}},
		"extractedQuery": {"extractedKeywords":[],"confidence":0.3}
	}`)

	output, err := createTestHandler(t).Execute(context.Background(), input)
	require.NoError(t, err)

	assert.Contains(t, output.Summary.Message, "couldn't find")
	assert.NotEmpty(t, output.Summary.Suggestions)
	assert.Empty(t, output.Summary.Actions)
}

func TestHandler_Execute_MissingEnvelope(t *testing.T) {
	_, err := createTestHandler(t).Execute(context.Background(), &Input{Utterance: "anything"})
	assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidRequest))
}

func TestHandler_Execute_ListingFieldsSurviveDecode(t *testing.T) {
	input := decodeInput(t, `{"envelope":{"items":[{"id":"x","carDetail":{"make":"Ford"}}]}}`)
	assert.Equal(t, []models.Listing{{ID: "x", CarDetail: models.CarDetail{Make: "Ford"}}}, input.Envelope.Items)
}
