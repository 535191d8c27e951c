package ratelimiter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiter_Basic(t *testing.T) {
	// 1 token per 100ms, max 5 tokens in bucket
	rl := NewRateLimiter(100*time.Millisecond, 5)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, rl.Wait(ctx), "token %d", i+1)
	}

	start := time.Now()
	require.NoError(t, rl.Wait(ctx))
	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
}

func TestRateLimiter_TryAcquire(t *testing.T) {
	rl := NewRateLimiterFromRPS(1, 2)

	assert.True(t, rl.TryAcquire())
	assert.True(t, rl.TryAcquire())
	assert.False(t, rl.TryAcquire(), "bucket should be empty")

	stats := rl.GetStats()
	assert.Equal(t, 2, stats.Capacity)
	assert.Equal(t, int64(1000), stats.RateMs)
	assert.Equal(t, 0, stats.Available)
}

func TestRateLimiter_WaitHonoursContext(t *testing.T) {
	rl := NewRateLimiterFromRPS(1, 1)
	require.True(t, rl.TryAcquire())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.Error(t, rl.Wait(ctx))
}

func TestRegistry_SharesPerURL(t *testing.T) {
	r := NewRegistry()
	a := r.Get("https://example.com/history", 2, 2)
	b := r.Get("https://example.com/history", 2, 2)
	c := r.Get("https://other.example.com/history", 2, 2)

	assert.Same(t, a, b)
	assert.NotSame(t, a, c)
	assert.Len(t, r.Stats(), 2)

	assert.Same(t, ForURL("u", 5, 1), ForURL("u", 5, 1))
	assert.Contains(t, AllStats(), "u_5_1")
}
