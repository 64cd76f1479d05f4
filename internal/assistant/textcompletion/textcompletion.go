// Package textcompletion is the client side of the opaque text-completion
// service used by the assistant. Callers own their fallbacks: every error or
// empty completion must degrade to a fixed template.
package textcompletion

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"carmarket-search/internal/common/config"
	"carmarket-search/internal/common/errors"
	"carmarket-search/internal/common/logger"
	"carmarket-search/internal/common/metrics"
)

// ErrEmptyCompletion is returned when the service answers with a null or blank text.
var ErrEmptyCompletion = stderrors.New("EMPTY_COMPLETION")

type Request struct {
	SystemPrompt string  `json:"systemPrompt"`
	UserPrompt   string  `json:"userPrompt"`
	Temperature  float64 `json:"temperature"`
	MaxTokens    int     `json:"maxTokens"`
}

type Response struct {
	Text *string `json:"text"`
}

// Client completes one prompt pair.
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
	Provider() string
}

// New builds the configured provider. It returns (nil, nil) for provider "none".
func New(ctx context.Context, cfg config.GenAIConfig, log logger.Logger) (Client, error) {
	timeout := time.Duration(cfg.Timeout) * time.Millisecond

	var client Client
	switch cfg.Provider {
	case config.ProviderHTTP:
		client = NewHTTPClient(cfg.BaseURL, cfg.APIKey, timeout, cfg.MaxRetries)
	case config.ProviderGemini:
		gemini, err := NewGeminiClient(ctx, cfg.APIKey, cfg.Model, cfg.BaseURL)
		if err != nil {
			return nil, err
		}
		client = gemini
	case config.ProviderNone, "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown genai provider %q", cfg.Provider)
	}

	return NewInstrumented(client, log), nil
}

// Instrumented records metrics and normalizes errors onto the LLM error codes.
type Instrumented struct {
	next   Client
	logger logger.Logger
}

func NewInstrumented(next Client, log logger.Logger) *Instrumented {
	return &Instrumented{
		next:   next,
		logger: log.WithFields(map[string]interface{}{"component": "textcompletion", "provider": next.Provider()}),
	}
}

func (c *Instrumented) Provider() string { return c.next.Provider() }

func (c *Instrumented) Complete(ctx context.Context, req Request) (string, error) {
	start := time.Now()
	text, err := c.next.Complete(ctx, req)
	if err == nil && strings.TrimSpace(text) == "" {
		err = ErrEmptyCompletion
	}

	status := "success"
	if err != nil {
		status = "error"
		if ctx.Err() != nil || stderrors.Is(err, context.DeadlineExceeded) {
			status = "timeout"
		}
	}
	metrics.LLMRequests.WithLabelValues(c.next.Provider(), status).Inc()

	if err != nil {
		c.logger.Warn("text completion failed", map[string]interface{}{
			"error":      err,
			"durationMs": time.Since(start).Milliseconds(),
		})
		if status == "timeout" {
			return "", errors.NewLLMTimeoutError("complete")
		}
		return "", errors.NewLLMCompletionFailedError(err)
	}
	return strings.TrimSpace(text), nil
}
