// Package source provides the history feeds the worker predicts from: an
// HTTP poller, a websocket stream and a dice simulator.
package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/fystack/taixiu-predictor/internal/game"
	"github.com/fystack/taixiu-predictor/pkg/common/config"
	"github.com/fystack/taixiu-predictor/pkg/common/enum"
	"github.com/fystack/taixiu-predictor/pkg/common/logger"
)

var (
	ErrSourceUnavailable = errors.New("history source unavailable")
	ErrEmptyHistory      = errors.New("history source returned no sessions")
)

// Provider returns the upstream history, oldest session first.
type Provider interface {
	Name() string
	Fetch(ctx context.Context) ([]game.Session, error)
}

// Streamer pushes sessions as they settle until ctx is done.
type Streamer interface {
	Name() string
	Stream(ctx context.Context, out chan<- game.Session) error
}

// New builds the source selected by cfg. The result implements Provider,
// Streamer or both.
func New(cfg config.SourceConfig, log *slog.Logger) (any, error) {
	if log == nil {
		log = logger.L()
	}
	switch cfg.Type {
	case enum.SourceTypeHTTP:
		return NewHTTPSource(cfg, WithLogger(log)), nil
	case enum.SourceTypeWebsocket:
		return NewWSSource(cfg, log), nil
	case enum.SourceTypeSimulate:
		seed := cfg.Seed
		if seed == 0 {
			s, err := game.NewSeed()
			if err != nil {
				return nil, err
			}
			seed = s
		}
		log.Info("Simulating dice", "seed", seed)
		return NewSimSource(seed, 1, 0, 0), nil
	default:
		return nil, fmt.Errorf("unsupported source type: %s", cfg.Type)
	}
}
