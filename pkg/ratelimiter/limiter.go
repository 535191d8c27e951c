package ratelimiter

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter throttles calls against one upstream.
type RateLimiter struct {
	limiter *rate.Limiter
	burst   int
	rps     int
}

// NewRateLimiter creates a limiter that refills one token every ratePerToken.
func NewRateLimiter(ratePerToken time.Duration, burst int) *RateLimiter {
	rps := 1
	if ratePerToken > 0 {
		rps = max(int(time.Second/ratePerToken), 1)
	}
	return NewRateLimiterFromRPS(rps, burst)
}

func NewRateLimiterFromRPS(rps int, burst int) *RateLimiter {
	if rps <= 0 {
		rps = 1
	}
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		burst:   burst,
		rps:     rps,
	}
}

// Wait blocks until a token is available or ctx is done.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	return rl.limiter.Wait(ctx)
}

// TryAcquire takes a token without blocking.
func (rl *RateLimiter) TryAcquire() bool {
	return rl.limiter.Allow()
}

type Stats struct {
	Available int   `json:"available_tokens"`
	Capacity  int   `json:"capacity"`
	RateMs    int64 `json:"rate_ms"`
}

func (rl *RateLimiter) GetStats() Stats {
	return Stats{
		Available: max(int(rl.limiter.Tokens()), 0),
		Capacity:  rl.burst,
		RateMs:    (time.Second / time.Duration(rl.rps)).Milliseconds(),
	}
}
