package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fystack/taixiu-predictor/pkg/common/config"
	"github.com/fystack/taixiu-predictor/pkg/ratelimiter"
)

func testSourceConfig(url string) config.SourceConfig {
	return config.SourceConfig{
		URL: url,
		Client: config.ClientConfig{
			Timeout:    time.Second,
			MaxRetries: 3,
			RetryDelay: time.Millisecond,
		},
		Breaker: config.BreakerConfig{MaxFailures: 2, OpenTimeout: time.Minute},
	}
}

func newTestHTTPSource(url string) *HTTPSource {
	return NewHTTPSource(testSourceConfig(url), WithLimiter(ratelimiter.NewRateLimiterFromRPS(1000, 100)))
}

func TestHTTPSource_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		_, _ = w.Write([]byte(`{"history":[{"session":"11","dice":[6,5,4],"total":15,"result":"Tài"},{"session":"10","dice":[1,1,2],"total":4,"result":"Xỉu"}]}`))
	}))
	defer srv.Close()

	sessions, err := newTestHTTPSource(srv.URL).Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, int64(10), sessions[0].ID)
	assert.Equal(t, int64(11), sessions[1].ID)
}

func TestHTTPSource_RetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"history":[{"session":1,"total":12}]}`))
	}))
	defer srv.Close()

	sessions, err := newTestHTTPSource(srv.URL).Fetch(context.Background())
	require.NoError(t, err)
	assert.Len(t, sessions, 1)
	assert.Equal(t, int32(3), calls.Load())
}

func TestHTTPSource_EmptyHistory(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{"history":[]}`))
	}))
	defer srv.Close()

	s := newTestHTTPSource(srv.URL)
	for i := 0; i < 3; i++ {
		_, err := s.Fetch(context.Background())
		assert.ErrorIs(t, err, ErrEmptyHistory)
		assert.NotErrorIs(t, err, ErrSourceUnavailable)
	}
	assert.Equal(t, int32(3), calls.Load(), "empty history is not retried")
	assert.Equal(t, gobreaker.StateClosed, s.BreakerState(), "empty history does not trip the breaker")
}

func TestHTTPSource_BreakerOpens(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	s := newTestHTTPSource(srv.URL)
	for i := 0; i < 2; i++ {
		_, err := s.Fetch(context.Background())
		assert.ErrorIs(t, err, ErrSourceUnavailable)
	}
	assert.Equal(t, int32(6), calls.Load(), "three attempts per fetch")
	assert.Equal(t, gobreaker.StateOpen, s.BreakerState())

	_, err := s.Fetch(context.Background())
	assert.ErrorIs(t, err, ErrSourceUnavailable)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, int32(6), calls.Load(), "open breaker short-circuits")
}

func TestHTTPSource_MalformedPayload(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`<html>`))
	}))
	defer srv.Close()

	_, err := newTestHTTPSource(srv.URL).Fetch(context.Background())
	assert.ErrorIs(t, err, ErrSourceUnavailable)
	assert.Equal(t, int32(1), calls.Load(), "decode errors are permanent")
}

func TestHTTPSource_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newTestHTTPSource(srv.URL).Fetch(ctx)
	assert.ErrorIs(t, err, ErrSourceUnavailable)
}

func TestHTTPSource_FailsOverToMirror(t *testing.T) {
	var primaryCalls atomic.Int32
	primary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		primaryCalls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer primary.Close()
	mirror := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"history":[{"session":5,"dice":[2,2,2],"total":6,"result":"Xỉu"}]}`))
	}))
	defer mirror.Close()

	cfg := testSourceConfig(primary.URL)
	cfg.Mirrors = []string{mirror.URL}
	src := NewHTTPSource(cfg, WithLimiter(ratelimiter.NewRateLimiterFromRPS(1000, 100)))

	sessions, err := src.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, int32(1), primaryCalls.Load())

	// the primary is cooling down, so the next fetch goes straight to the mirror
	_, err = src.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), primaryCalls.Load())
}
