package app

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"carmarket-search/internal/common/database"
	"carmarket-search/internal/common/logger"
)

func TestRetryWithBackoff(t *testing.T) {
	t.Run("succeeds after transient failures", func(t *testing.T) {
		calls := 0
		err := retryWithBackoff(context.Background(), func() error {
			calls++
			if calls < 3 {
				return stderrors.New("connection refused")
			}
			return nil
		}, 5, time.Millisecond, logger.NewTestLogger(t), "dial")

		assert.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("gives up after max attempts", func(t *testing.T) {
		calls := 0
		err := retryWithBackoff(context.Background(), func() error {
			calls++
			return stderrors.New("connection refused")
		}, 3, time.Millisecond, logger.NewNoOpLogger(), "dial")

		assert.ErrorContains(t, err, "dial failed after 3 attempts")
		assert.Equal(t, 3, calls)
	})

	t.Run("stops on cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		calls := 0
		err := retryWithBackoff(ctx, func() error {
			calls++
			return stderrors.New("timeout")
		}, 5, time.Hour, logger.NewNoOpLogger(), "dial")

		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, calls)
	})
}

func TestPingersOnlyConnected(t *testing.T) {
	a := &App{logger: logger.NewNoOpLogger(), Redis: &database.RedisClient{}}
	pingers := a.Pingers()

	assert.Len(t, pingers, 1)
	assert.Equal(t, "redis", pingers[0].Name())
}
