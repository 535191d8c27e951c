package predictor

import (
	"sort"
	"sync"

	"github.com/fystack/taixiu-predictor/internal/game"
)

// Ledger remembers what each model predicted after a given session. Entries
// are write-once: a second Record for the same model and session is ignored.
type Ledger interface {
	Record(model string, sessionID int64, prediction game.Outcome) bool
	Lookup(model string, sessionID int64) (game.Outcome, bool)
}

// LedgerSnapshot is the serialisable form of a ledger, model -> session -> vote.
type LedgerSnapshot map[string]map[int64]game.Outcome

type MemoryLedger struct {
	mu    sync.RWMutex
	votes LedgerSnapshot
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{votes: make(LedgerSnapshot)}
}

func (l *MemoryLedger) Record(model string, sessionID int64, prediction game.Outcome) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	byModel, ok := l.votes[model]
	if !ok {
		byModel = make(map[int64]game.Outcome)
		l.votes[model] = byModel
	}
	if _, exists := byModel[sessionID]; exists {
		return false
	}
	byModel[sessionID] = prediction
	return true
}

func (l *MemoryLedger) Lookup(model string, sessionID int64) (game.Outcome, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	o, ok := l.votes[model][sessionID]
	return o, ok
}

// Len returns the number of entries recorded for model.
func (l *MemoryLedger) Len(model string) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.votes[model])
}

func (l *MemoryLedger) Models() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	names := make([]string, 0, len(l.votes))
	for name := range l.votes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Prune drops entries for sessions older than minSessionID and returns how
// many were removed.
func (l *MemoryLedger) Prune(minSessionID int64) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	removed := 0
	for _, byModel := range l.votes {
		for id := range byModel {
			if id < minSessionID {
				delete(byModel, id)
				removed++
			}
		}
	}
	return removed
}

func (l *MemoryLedger) Snapshot() LedgerSnapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make(LedgerSnapshot, len(l.votes))
	for model, byModel := range l.votes {
		cp := make(map[int64]game.Outcome, len(byModel))
		for id, o := range byModel {
			cp[id] = o
		}
		out[model] = cp
	}
	return out
}

// Restore merges snap into the ledger without overwriting existing entries
// and returns how many entries were added.
func (l *MemoryLedger) Restore(snap LedgerSnapshot) int {
	added := 0
	for model, byModel := range snap {
		for id, o := range byModel {
			if l.Record(model, id, o) {
				added++
			}
		}
	}
	return added
}

func (l *MemoryLedger) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.votes = make(LedgerSnapshot)
}
