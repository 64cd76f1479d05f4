// internal/workers/ai-conversation/answer-assistant-query/handler_test.go
package answerassistantquery

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	assistant "carmarket-search/internal/assistant/service"
	"carmarket-search/internal/common/errors"
	"carmarket-search/internal/common/logger"
)

type MockAssistant struct {
	mock.Mock
}

func (m *MockAssistant) Process(ctx context.Context, req assistant.Request) assistant.Response {
	args := m.Called(ctx, req)
	return args.Get(0).(assistant.Response)
}

func createTestHandler(t *testing.T, a Assistant) *Handler {
	return NewHandler(LoadConfig(), a, nil, logger.NewTestLogger(t))
}

// ==========================
// Execute
// ==========================

func TestHandler_Execute_Success(t *testing.T) {
	a := new(MockAssistant)
	a.On("Process", mock.Anything, assistant.Request{Query: "cheap suvs", ConversationID: "c-9"}).
		Return(assistant.Response{Message: "Here you go", ConversationID: "c-9"})

	output, err := createTestHandler(t, a).Execute(context.Background(), &Input{Query: "  cheap suvs ", ConversationID: "c-9"})
	require.NoError(t, err)

	assert.Equal(t, "Here you go", output.AssistantResponse.Message)
	assert.Equal(t, "c-9", output.AssistantResponse.ConversationID)
	a.AssertExpectations(t)
}

func TestHandler_Execute_InvalidInput(t *testing.T) {
	tests := []struct {
		name  string
		input *Input
	}{
		{"missing query", &Input{}},
		{"blank query", &Input{Query: "   "}},
		{"query too long", &Input{Query: strings.Repeat("a", 501)}},
		{"conversation id too long", &Input{Query: "hi", ConversationID: strings.Repeat("c", 101)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := new(MockAssistant)
			_, err := createTestHandler(t, a).Execute(context.Background(), tt.input)

			assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidRequest))
			a.AssertNotCalled(t, "Process", mock.Anything, mock.Anything)
		})
	}
}
