package ratelimiter

import (
	"fmt"
	"sync"
)

// Registry hands out one limiter per upstream, so every poller reading the
// same history endpoint shares a budget.
type Registry struct {
	mu       sync.Mutex
	limiters map[string]*RateLimiter
}

func NewRegistry() *Registry {
	return &Registry{limiters: make(map[string]*RateLimiter)}
}

var defaultRegistry = NewRegistry()

// ForURL returns the shared limiter of the default registry.
func ForURL(url string, rps, burst int) *RateLimiter {
	return defaultRegistry.Get(url, rps, burst)
}

// AllStats reports the default registry.
func AllStats() map[string]Stats {
	return defaultRegistry.Stats()
}

func (r *Registry) Get(url string, rps, burst int) *RateLimiter {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := fmt.Sprintf("%s_%d_%d", url, rps, burst)
	if l, ok := r.limiters[key]; ok {
		return l
	}
	l := NewRateLimiterFromRPS(rps, burst)
	r.limiters[key] = l
	return l
}

func (r *Registry) Stats() map[string]Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]Stats, len(r.limiters))
	for k, l := range r.limiters {
		out[k] = l.GetStats()
	}
	return out
}
