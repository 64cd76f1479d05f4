package camunda

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carmarket-search/internal/common/config"
	"carmarket-search/internal/common/errors"
	"carmarket-search/internal/common/logger"
)

func testClient() *Client {
	return &Client{config: &ClientConfig{
		ConnectionTimeout: time.Second,
		RetryConfig:       &RetryConfig{MaxRetries: 2, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond},
	}}
}

// ==========================
// Retry classification
// ==========================

func TestIsRetryableZeebeError(t *testing.T) {
	tests := []struct {
		msg  string
		want bool
	}{
		{"rpc error: code = Unavailable desc = connection refused", true},
		{"context deadline exceeded", true},
		{"write: broken pipe", true},
		{"rpc error: code = NotFound desc = job not found", false},
		{"permission denied", false},
	}

	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			assert.Equal(t, tt.want, isRetryableZeebeError(stderrors.New(tt.msg)))
		})
	}
}

// ==========================
// ExecuteWithRetry
// ==========================

func TestExecuteWithRetry(t *testing.T) {
	t.Run("transient then success", func(t *testing.T) {
		calls := 0
		err := testClient().ExecuteWithRetry(context.Background(), func(context.Context) error {
			calls++
			if calls == 1 {
				return stderrors.New("connection refused")
			}
			return nil
		}, "topology")

		require.NoError(t, err)
		assert.Equal(t, 2, calls)
	})

	t.Run("permanent error is not retried", func(t *testing.T) {
		calls := 0
		err := testClient().ExecuteWithRetry(context.Background(), func(context.Context) error {
			calls++
			return stderrors.New("permission denied")
		}, "topology")

		assert.Equal(t, 1, calls)
		assert.True(t, errors.HasCode(err, errors.ErrCodeInternal))
	})

	t.Run("exhausted retries surface as unavailable", func(t *testing.T) {
		calls := 0
		err := testClient().ExecuteWithRetry(context.Background(), func(context.Context) error {
			calls++
			return stderrors.New("unavailable")
		}, "topology")

		assert.Equal(t, 3, calls)
		assert.True(t, errors.HasCode(err, errors.ErrCodeStorageUnavailable))
	})
}

func TestStartWorker_Disabled(t *testing.T) {
	w := StartWorker(nil, "search-listings", config.WorkerConfig{Enabled: false}, nil, logger.NewTestLogger(t))
	assert.Nil(t, w)
}
