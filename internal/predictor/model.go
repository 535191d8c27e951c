package predictor

import (
	"fmt"
	"math"

	"github.com/fystack/taixiu-predictor/internal/game"
)

const (
	ModelTrend        = "trend"
	ModelShort        = "short"
	ModelMean         = "mean"
	ModelSwitch       = "switch"
	ModelBridge       = "bridge"
	ModelLongStreak   = "long_streak"
	ModelAlternation  = "alternation"
	ModelHeuristic    = "heuristic"
	ModelScoreOutlier = "score_outlier"
	ModelCycle        = "cycle"
)

// Model is one independent voter. Evaluate must be pure: the same history
// always yields the same vote.
type Model interface {
	Name() string
	Evaluate(history []game.Session) Vote
}

// Vote is a model's opinion on the next round. Prediction is None when the
// model abstains.
type Vote struct {
	Model      string       `json:"model"`
	Prediction game.Outcome `json:"prediction"`
	Reason     string       `json:"reason"`
	// BreakProbability is only set by models that estimate it.
	BreakProbability float64 `json:"break_probability,omitempty"`
}

func (v Vote) Abstained() bool { return !v.Prediction.Valid() }

func abstain(model, format string, args ...any) Vote {
	return Vote{Model: model, Prediction: game.None, Reason: fmt.Sprintf(format, args...)}
}

func vote(model string, o game.Outcome, format string, args ...any) Vote {
	if !o.Valid() {
		return abstain(model, "no usable outcome")
	}
	return Vote{Model: model, Prediction: o, Reason: fmt.Sprintf(format, args...)}
}

// followOrBreak is the long-run override shared by the continuation models.
func followOrBreak(model string, st Streak, p FollowParams) (Vote, bool) {
	if p.StreakOverride <= 0 || st.Length < p.StreakOverride || !st.Current.Valid() {
		return Vote{}, false
	}
	if st.BreakProbability > p.BreakCutoff {
		return vote(model, st.Current.Opposite(), "streak of %d %s likely breaks (%.2f)", st.Length, st.Current, st.BreakProbability), true
	}
	return vote(model, st.Current, "following streak of %d %s (%.2f)", st.Length, st.Current, st.BreakProbability), true
}

// mostCommonPattern scans every window of the given length and returns the
// most frequent one. Ties go to the pattern seen first.
func mostCommonPattern(outcomes []game.Outcome, length int) ([]game.Outcome, int) {
	if length <= 0 || len(outcomes) < length {
		return nil, 0
	}
	counts := make(map[string]int)
	order := make([]string, 0, len(outcomes))
	first := make(map[string]int)
	for i := 0; i+length <= len(outcomes); i++ {
		key := game.PatternKey(outcomes[i : i+length])
		if _, seen := counts[key]; !seen {
			order = append(order, key)
			first[key] = i
		}
		counts[key]++
	}
	best, bestCount := "", 0
	for _, k := range order {
		if counts[k] > bestCount {
			best, bestCount = k, counts[k]
		}
	}
	start := first[best]
	return outcomes[start : start+length], bestCount
}

func mean(values []int) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0
	for _, v := range values {
		sum += v
	}
	return float64(sum) / float64(len(values))
}

// meanAbsDeviation returns the mean of values and their mean absolute
// deviation around it.
func meanAbsDeviation(values []int) (float64, float64) {
	m := mean(values)
	if len(values) == 0 {
		return 0, 0
	}
	dev := 0.0
	for _, v := range values {
		dev += math.Abs(float64(v) - m)
	}
	return m, dev / float64(len(values))
}

func stddev(values []int) (float64, float64) {
	m := mean(values)
	if len(values) == 0 {
		return 0, 0
	}
	sq := 0.0
	for _, v := range values {
		d := float64(v) - m
		sq += d * d
	}
	return m, math.Sqrt(sq / float64(len(values)))
}

// leading returns the side with more occurrences, None on a tie.
func leading(outcomes []game.Outcome) (game.Outcome, int, int) {
	high := game.Count(outcomes, game.High)
	low := game.Count(outcomes, game.Low)
	switch {
	case high > low:
		return game.High, high, low
	case low > high:
		return game.Low, high, low
	}
	return game.None, high, low
}
