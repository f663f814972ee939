package gmail

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiter_WaitTurn(t *testing.T) {
	t.Run("spaces consecutive calls", func(t *testing.T) {
		limiter := NewRateLimiter(20)
		start := time.Now()
		for i := 0; i < 3; i++ {
			require.NoError(t, limiter.WaitTurn(context.Background()))
		}
		assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
	})

	t.Run("stops waiting when the context is done", func(t *testing.T) {
		limiter := NewRateLimiter(1)
		require.NoError(t, limiter.WaitTurn(context.Background()))

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()
		require.ErrorIs(t, limiter.WaitTurn(ctx), context.DeadlineExceeded)
	})

	t.Run("treats non-positive rates as one per second", func(t *testing.T) {
		assert.Equal(t, time.Second, NewRateLimiter(0).interval)
	})
}
