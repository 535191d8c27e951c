package predictor

import (
	"math"

	"github.com/fystack/taixiu-predictor/internal/game"
)

// Tracker turns a model's recent ledger hit rate into a weight multiplier.
type Tracker struct {
	ledger Ledger
	p      PerformanceParams
}

func NewTracker(ledger Ledger, p PerformanceParams) *Tracker {
	return &Tracker{ledger: ledger, p: p}
}

// Score walks the last Lookback transitions. The vote recorded after session
// h[n-(i+2)] is judged against the outcome of h[n-(i+1)]. Missing entries and
// abstains are skipped.
func (t *Tracker) Score(history []game.Session, model string) (correct, total int) {
	if t.ledger == nil {
		return 0, 0
	}
	n := len(history)
	for i := 0; i < t.p.Lookback && i+2 <= n; i++ {
		session := history[n-(i+2)]
		actual := history[n-(i+1)]
		predicted, ok := t.ledger.Lookup(model, session.ID)
		if !ok || !predicted.Valid() || !actual.Outcome.Valid() {
			continue
		}
		total++
		if predicted == actual.Outcome {
			correct++
		}
	}
	return correct, total
}

// Multiplier is 1 with no evidence and moves linearly with accuracy around
// 50%, clamped to [Floor, Ceiling].
func (t *Tracker) Multiplier(history []game.Session, model string) float64 {
	correct, total := t.Score(history, model)
	if total == 0 {
		return 1
	}
	half := float64(total) / 2
	m := 1 + (float64(correct)-half)/half
	return math.Min(math.Max(m, t.p.Floor), t.p.Ceiling)
}
