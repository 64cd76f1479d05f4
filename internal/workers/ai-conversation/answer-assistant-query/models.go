// internal/workers/ai-conversation/answer-assistant-query/models.go
package answerassistantquery

import assistant "carmarket-search/internal/assistant/service"

type Input struct {
	Query          string `json:"query" validate:"required,max=500"`
	ConversationID string `json:"conversationId" validate:"omitempty,max=100"`
}

type Output struct {
	AssistantResponse assistant.Response `json:"assistantResponse"`
}
