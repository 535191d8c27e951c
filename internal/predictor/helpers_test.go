package predictor

import (
	"github.com/fystack/taixiu-predictor/internal/game"
)

// seq builds a history from a T/X string, one record per character with ids
// starting at 1. Tài rounds total 12, Xỉu rounds total 9.
func seq(pattern string) []game.Session {
	out := make([]game.Session, 0, len(pattern))
	for i, c := range pattern {
		dice := [3]int{3, 3, 3}
		if c == 'T' {
			dice = [3]int{4, 4, 4}
		}
		out = append(out, game.NewSession(int64(i+1), dice))
	}
	return out
}

func repeat(s string, n int) string {
	out := ""
	for i := 0; i < n; i++ {
		out += s
	}
	return out
}

func mustEngine(p Params, opts ...Option) *Engine {
	e, err := New(p, opts...)
	if err != nil {
		panic(err)
	}
	return e
}
