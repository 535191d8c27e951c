package source

import (
	"context"
	"sync"

	"github.com/fystack/taixiu-predictor/internal/game"
)

// SimSource rolls fair dice. Every Fetch settles one new round on top of the
// backfilled rounds, so a poller sees a live-looking feed.
type SimSource struct {
	mu      sync.Mutex
	roller  *game.Roller
	history *game.History
}

// NewSimSource seeds the roller and backfills rounds sessions starting at
// firstSession. capacity bounds the retained history.
func NewSimSource(seed, firstSession int64, backfill, capacity int) *SimSource {
	s := &SimSource{
		roller:  game.NewRoller(seed, firstSession),
		history: game.NewHistory(capacity),
	}
	s.history.InsertMany(s.roller.RollN(backfill))
	return s
}

func (s *SimSource) Name() string { return "simulate" }

func (s *SimSource) Fetch(ctx context.Context) ([]game.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history.Insert(s.roller.Roll())
	return s.history.Snapshot(), nil
}
