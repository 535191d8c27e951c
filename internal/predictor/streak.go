package predictor

import (
	"math"

	"github.com/fystack/taixiu-predictor/internal/game"
)

// Streak describes the run ending at the latest record.
type Streak struct {
	Length           int
	Current          game.Outcome
	BreakProbability float64
	Switches         int
	Imbalance        float64
}

// AnalyzeStreak measures the current run and estimates how likely it is to
// break. The estimate is the highest value among matching tiers, so it never
// drops as the run grows.
func AnalyzeStreak(history []game.Session, p StreakParams) Streak {
	if len(history) == 0 {
		return Streak{}
	}
	current := history[len(history)-1].Outcome
	if !current.Valid() {
		return Streak{}
	}

	length := 0
	for i := len(history) - 1; i >= 0 && history[i].Outcome == current; i-- {
		length++
	}

	window := game.Outcomes(game.Tail(history, p.Window))
	switches := game.Switches(window)
	high := game.Count(window, game.High)
	low := game.Count(window, game.Low)
	imbalance := 0.0
	if len(window) > 0 {
		imbalance = math.Abs(float64(high-low)) / float64(len(window))
	}

	prob := 0.0
	for _, t := range p.Tiers {
		if length < t.MinStreak || switches < t.MinSwitches {
			continue
		}
		v := t.Base + imbalance*t.ImbalanceCoef
		if t.SwitchDivisor > 0 {
			v += float64(switches) / t.SwitchDivisor
		}
		prob = math.Max(prob, math.Min(v, t.Ceiling))
	}

	return Streak{
		Length:           length,
		Current:          current,
		BreakProbability: prob,
		Switches:         switches,
		Imbalance:        imbalance,
	}
}
