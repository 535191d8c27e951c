package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"github.com/fystack/taixiu-predictor/internal/game"
	"github.com/fystack/taixiu-predictor/pkg/common/config"
	"github.com/fystack/taixiu-predictor/pkg/common/logger"
	"github.com/fystack/taixiu-predictor/pkg/ratelimiter"
	"github.com/fystack/taixiu-predictor/pkg/retry"
)

const maxPayloadBytes = 8 << 20

// HTTPSource polls an upstream history endpoint. Each Fetch goes through the
// circuit breaker, then up to MaxRetries attempts spaced by RetryDelay, each
// attempt waiting on the shared rate limiter.
type HTTPSource struct {
	mirrors    *mirrorPool
	client     *http.Client
	limiter    *ratelimiter.RateLimiter
	breaker    *gobreaker.CircuitBreaker
	maxRetries int
	retryDelay time.Duration
	log        *slog.Logger
}

type HTTPOption func(*HTTPSource)

func WithHTTPClient(c *http.Client) HTTPOption {
	return func(s *HTTPSource) { s.client = c }
}

func WithLogger(l *slog.Logger) HTTPOption {
	return func(s *HTTPSource) { s.log = l }
}

func WithLimiter(l *ratelimiter.RateLimiter) HTTPOption {
	return func(s *HTTPSource) { s.limiter = l }
}

func NewHTTPSource(cfg config.SourceConfig, opts ...HTTPOption) *HTTPSource {
	s := &HTTPSource{
		client:     &http.Client{Timeout: cfg.Client.Timeout},
		maxRetries: cfg.Client.MaxRetries,
		retryDelay: cfg.Client.RetryDelay,
		log:        logger.L(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.mirrors = newMirrorPool(append([]string{cfg.URL}, cfg.Mirrors...), cfg.MirrorCooldown)
	if s.limiter == nil {
		s.limiter = ratelimiter.ForURL(cfg.URL, cfg.Client.Throttle.RPS, cfg.Client.Throttle.Burst)
	}
	if s.maxRetries <= 0 {
		s.maxRetries = retry.DefaultMaxAttempts
	}

	maxFailures := cfg.Breaker.MaxFailures
	if maxFailures == 0 {
		maxFailures = 3
	}
	s.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "history:" + cfg.URL,
		Timeout: cfg.Breaker.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		// an empty but well-formed answer means the upstream is alive
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrEmptyHistory)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			s.log.Warn("History source breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
	return s
}

func (s *HTTPSource) Name() string { return "http" }

// BreakerState exposes the breaker for health reporting.
func (s *HTTPSource) BreakerState() gobreaker.State {
	return s.breaker.State()
}

// Fetch returns the upstream history sorted by session. Failures wrap
// ErrSourceUnavailable; a well-formed but empty answer is ErrEmptyHistory.
func (s *HTTPSource) Fetch(ctx context.Context) ([]game.Session, error) {
	res, err := s.breaker.Execute(func() (any, error) {
		var sessions []game.Session
		err := retry.Constant(ctx, func() error {
			var err error
			sessions, err = s.fetchOnce(ctx)
			return err
		}, s.retryDelay, s.maxRetries)
		return sessions, err
	})
	if err != nil {
		if errors.Is(err, ErrEmptyHistory) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
	}
	return res.([]game.Session), nil
}

func (s *HTTPSource) fetchOnce(ctx context.Context) ([]game.Session, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, retry.Permanent(err)
	}

	url := s.mirrors.Next()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, retry.Permanent(err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		s.log.Warn("History fetch failed", "url", url, "error", err)
		s.mirrors.MarkFailed(url)
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		err := fmt.Errorf("unexpected status %d", resp.StatusCode)
		s.log.Warn("History fetch failed", "url", url, "status", resp.StatusCode)
		s.mirrors.MarkFailed(url)
		return nil, err
	}
	s.mirrors.MarkHealthy(url)

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPayloadBytes))
	if err != nil {
		return nil, err
	}
	decoded, err := DecodeHistory(body)
	if err != nil {
		return nil, retry.Permanent(err)
	}
	if decoded.Skipped > 0 {
		s.log.Warn("Skipped malformed sessions", "count", decoded.Skipped)
	}
	if len(decoded.Sessions) == 0 {
		return nil, retry.Permanent(ErrEmptyHistory)
	}
	return decoded.Sessions, nil
}
