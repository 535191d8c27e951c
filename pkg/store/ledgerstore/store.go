package ledgerstore

import (
	"errors"

	"github.com/fystack/taixiu-predictor/internal/predictor"
	"github.com/fystack/taixiu-predictor/pkg/common/constant"
	"github.com/fystack/taixiu-predictor/pkg/infra"
)

var ErrStreamRequired = errors.New("stream name is required")

func ledgerKey(stream string) string {
	return constant.LedgerKeyPrefix + stream
}

// Store persists per-model vote ledgers so performance weighting survives a
// restart.
type Store interface {
	Load(stream string) (predictor.LedgerSnapshot, error)
	Save(stream string, snapshot predictor.LedgerSnapshot) error
	// Restore loads the saved snapshot into l without overwriting entries.
	Restore(stream string, l *predictor.MemoryLedger) (int, error)
}

type ledgerStore struct {
	store infra.KVStore
}

func NewLedgerStore(store infra.KVStore) Store {
	return &ledgerStore{store: store}
}

func (ls *ledgerStore) Load(stream string) (predictor.LedgerSnapshot, error) {
	if stream == "" {
		return nil, ErrStreamRequired
	}
	snapshot := predictor.LedgerSnapshot{}
	ok, err := ls.store.GetAny(ledgerKey(stream), &snapshot)
	if err != nil {
		return nil, err
	}
	if !ok {
		return predictor.LedgerSnapshot{}, nil
	}
	return snapshot, nil
}

func (ls *ledgerStore) Save(stream string, snapshot predictor.LedgerSnapshot) error {
	if stream == "" {
		return ErrStreamRequired
	}
	if snapshot == nil {
		snapshot = predictor.LedgerSnapshot{}
	}
	return ls.store.SetAny(ledgerKey(stream), snapshot)
}

func (ls *ledgerStore) Restore(stream string, l *predictor.MemoryLedger) (int, error) {
	snapshot, err := ls.Load(stream)
	if err != nil {
		return 0, err
	}
	return l.Restore(snapshot), nil
}
