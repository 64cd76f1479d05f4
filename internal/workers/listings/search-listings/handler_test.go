// internal/workers/listings/search-listings/handler_test.go
package searchlistings

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"carmarket-search/internal/common/errors"
	"carmarket-search/internal/common/logger"
	"carmarket-search/internal/models"
	"carmarket-search/internal/search/filterspec"
	search "carmarket-search/internal/search/service"
)

// ==========================
// Mock Searcher
// ==========================

type MockSearcher struct {
	mock.Mock
}

func (m *MockSearcher) SearchValues(ctx context.Context, raw map[string]interface{}) (*search.ResultEnvelope, error) {
	args := m.Called(ctx, raw)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*search.ResultEnvelope), args.Error(1)
}

func createTestHandler(t *testing.T, searcher Searcher) *Handler {
	return NewHandler(LoadConfig(), searcher, nil, logger.NewTestLogger(t))
}

// ==========================
// Execute
// ==========================

func TestHandler_Execute_Success(t *testing.T) {
	searcher := new(MockSearcher)
	raw := map[string]interface{}{"make": "Toyota", "priceMax": 25000.0}
	envelope := &search.ResultEnvelope{
		Items:          []models.Listing{{ID: "t1", Title: "2021 Toyota RAV4"}},
		Pagination:     search.Pagination{Page: 1, Limit: 10, Total: 1, TotalPages: 1},
		AppliedFilters: filterspec.New(),
	}
	searcher.On("SearchValues", mock.Anything, raw).Return(envelope, nil)

	output, err := createTestHandler(t, searcher).Execute(context.Background(), &Input{RawFilters: raw})
	require.NoError(t, err)

	assert.Same(t, envelope, output.Envelope)
	searcher.AssertExpectations(t)
}

func TestHandler_Execute_NilFiltersListAll(t *testing.T) {
	searcher := new(MockSearcher)
	searcher.On("SearchValues", mock.Anything, map[string]interface{}{}).
		Return(&search.ResultEnvelope{Items: []models.Listing{}}, nil)

	output, err := createTestHandler(t, searcher).Execute(context.Background(), &Input{})
	require.NoError(t, err)
	assert.Empty(t, output.Envelope.Items)
	searcher.AssertExpectations(t)
}

func TestHandler_Execute_StorageFailure(t *testing.T) {
	searcher := new(MockSearcher)
	searcher.On("SearchValues", mock.Anything, mock.Anything).
		Return(nil, errors.NewStorageUnavailableError("postgres", stderrors.New("dial tcp")))

	_, err := createTestHandler(t, searcher).Execute(context.Background(), &Input{})
	require.Error(t, err)

	bpmn := errors.ConvertToBPMNError(errors.Normalize(err))
	assert.Equal(t, "STORAGE_UNAVAILABLE", bpmn.Code)
	assert.Equal(t, 3, bpmn.Retries)
}

func TestInput_DecodesJobVariables(t *testing.T) {
	var input Input
	require.NoError(t, json.Unmarshal([]byte(`{"rawFilters":{"bodyType":"suv","yearMin":2019}}`), &input))

	assert.Equal(t, "suv", input.RawFilters["bodyType"])
	assert.Equal(t, 2019.0, input.RawFilters["yearMin"])
}
