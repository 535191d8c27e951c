package game

import (
	"strings"

	"github.com/samber/lo"
)

// Tail returns the last n records (or all of them when shorter).
func Tail(history []Session, n int) []Session {
	if n <= 0 {
		return nil
	}
	if len(history) <= n {
		return history
	}
	return history[len(history)-n:]
}

// Outcomes projects records onto their outcomes.
func Outcomes(history []Session) []Outcome {
	return lo.Map(history, func(s Session, _ int) Outcome { return s.Outcome })
}

// Totals projects records onto their totals. Malformed records contribute 0.
func Totals(history []Session) []int {
	return lo.Map(history, func(s Session, _ int) int { return s.Total })
}

// Count returns how many outcomes equal o.
func Count(outcomes []Outcome, o Outcome) int {
	return lo.Count(outcomes, o)
}

// Switches counts adjacent pairs whose outcomes differ.
func Switches(outcomes []Outcome) int {
	n := 0
	for i := 1; i < len(outcomes); i++ {
		if outcomes[i] != outcomes[i-1] {
			n++
		}
	}
	return n
}

// AllEqual reports whether every outcome equals o. Empty input is false.
func AllEqual(outcomes []Outcome, o Outcome) bool {
	return len(outcomes) > 0 && lo.EveryBy(outcomes, func(x Outcome) bool { return x == o })
}

// PatternKey renders outcomes as a compact key such as "TXXT".
func PatternKey(outcomes []Outcome) string {
	var b strings.Builder
	b.Grow(len(outcomes))
	for _, o := range outcomes {
		switch o {
		case High:
			b.WriteByte('T')
		case Low:
			b.WriteByte('X')
		default:
			b.WriteByte('-')
		}
	}
	return b.String()
}
