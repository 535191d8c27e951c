package historystore

import (
	"errors"

	"github.com/fystack/taixiu-predictor/internal/game"
	"github.com/fystack/taixiu-predictor/pkg/common/constant"
	"github.com/fystack/taixiu-predictor/pkg/events"
	"github.com/fystack/taixiu-predictor/pkg/infra"
)

var ErrStreamRequired = errors.New("stream name is required")

func historyKey(stream string) string {
	return constant.HistoryKeyPrefix + stream
}

func latestKey(stream string) string {
	return constant.LatestKeyPrefix + stream
}

// Store persists the bounded session history and the last published
// prediction of each stream.
type Store interface {
	LoadHistory(stream string) ([]game.Session, error)
	SaveHistory(stream string, sessions []game.Session) error

	LoadLatest(stream string) (*events.PredictionEvent, error)
	SaveLatest(stream string, ev events.PredictionEvent) error

	Close() error
}

type historyStore struct {
	store infra.KVStore
}

func NewHistoryStore(store infra.KVStore) Store {
	return &historyStore{store: store}
}

// LoadHistory returns nil when nothing was saved yet.
func (hs *historyStore) LoadHistory(stream string) ([]game.Session, error) {
	if stream == "" {
		return nil, ErrStreamRequired
	}
	var sessions []game.Session
	ok, err := hs.store.GetAny(historyKey(stream), &sessions)
	if err != nil || !ok {
		return nil, err
	}
	return sessions, nil
}

func (hs *historyStore) SaveHistory(stream string, sessions []game.Session) error {
	if stream == "" {
		return ErrStreamRequired
	}
	if sessions == nil {
		sessions = []game.Session{}
	}
	return hs.store.SetAny(historyKey(stream), sessions)
}

func (hs *historyStore) LoadLatest(stream string) (*events.PredictionEvent, error) {
	if stream == "" {
		return nil, ErrStreamRequired
	}
	var ev events.PredictionEvent
	ok, err := hs.store.GetAny(latestKey(stream), &ev)
	if err != nil || !ok {
		return nil, err
	}
	return &ev, nil
}

func (hs *historyStore) SaveLatest(stream string, ev events.PredictionEvent) error {
	if stream == "" {
		return ErrStreamRequired
	}
	return hs.store.SetAny(latestKey(stream), ev)
}

func (hs *historyStore) Close() error {
	return hs.store.Close()
}
