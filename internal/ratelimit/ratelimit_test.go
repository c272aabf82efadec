package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRateLimiter(t *testing.T) {
	t.Parallel()

	limiter := NewRateLimiter(600)
	require.NotNil(t, limiter)

	assert.InDelta(t, 10.0, float64(limiter.Limit()), 0.001)
	assert.Equal(t, 600, limiter.Burst())
}

func TestNewRateLimiter_BurstAllowsImmediateRequests(t *testing.T) {
	t.Parallel()

	limiter := NewRateLimiter(60)
	ctx := context.Background()

	// The full burst is available immediately.
	start := time.Now()
	for range 10 {
		require.NoError(t, limiter.Wait(ctx))
	}
	assert.Less(t, time.Since(start), time.Second)
}
