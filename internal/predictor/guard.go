package predictor

import (
	"fmt"

	"github.com/fystack/taixiu-predictor/internal/game"
)

// Guard flags histories that are too erratic or too one-sided to trust.
type Guard struct {
	p GuardParams
}

func NewGuard(p GuardParams) Guard {
	return Guard{p: p}
}

// Check reports whether the recent window is unstable and why.
func (g Guard) Check(history []game.Session) (bool, string) {
	if len(history) == 0 {
		return false, ""
	}
	outs := game.Outcomes(game.Tail(history, g.p.Window))
	if sw := game.Switches(outs); g.p.SwitchLimit > 0 && sw >= g.p.SwitchLimit {
		return true, fmt.Sprintf("%d switches in the last %d rounds", sw, len(outs))
	}

	last := history[len(history)-1].Outcome
	run := 0
	for i := len(history) - 1; i >= 0 && history[i].Outcome == last && last.Valid(); i-- {
		run++
	}
	if g.p.StreakLimit > 0 && run >= g.p.StreakLimit {
		return true, fmt.Sprintf("run of %d %s", run, last)
	}
	return false, ""
}
