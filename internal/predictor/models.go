package predictor

import (
	"math"
	"strings"

	"github.com/fystack/taixiu-predictor/internal/game"
)

type TrendModel struct {
	p      TrendParams
	streak StreakParams
}

func NewTrendModel(p TrendParams, streak StreakParams) *TrendModel {
	return &TrendModel{p: p, streak: streak}
}

func (m *TrendModel) Name() string { return ModelTrend }

// Evaluate weighs recent outcomes exponentially, looks for a recurring
// pattern, then falls back to the weighted balance.
func (m *TrendModel) Evaluate(history []game.Session) Vote {
	if len(history) < max(m.p.MinHistory, 1) {
		return abstain(m.Name(), "need %d records, have %d", m.p.MinHistory, len(history))
	}
	if v, ok := followOrBreak(m.Name(), AnalyzeStreak(history, m.streak), m.p.FollowParams); ok {
		return v
	}

	outs := game.Outcomes(game.Tail(history, m.p.Window))
	var highW, lowW float64
	for i, o := range outs {
		w := math.Pow(m.p.Base, float64(i))
		switch o {
		case game.High:
			highW += w
		case game.Low:
			lowW += w
		}
	}

	recent := outs
	if len(recent) > m.p.PatternWindow {
		recent = recent[len(recent)-m.p.PatternWindow:]
	}
	if pat, n := mostCommonPattern(recent, m.p.PatternLen); n >= m.p.PatternMinRepeat {
		return vote(m.Name(), pat[len(pat)-1].Opposite(), "pattern %s repeated %d times", game.PatternKey(pat), n)
	}

	if total := highW + lowW; total > 0 {
		imbalance := math.Abs(highW-lowW) / total
		if imbalance >= m.p.ImbalanceThreshold {
			heavier := game.High
			if lowW > highW {
				heavier = game.Low
			}
			return vote(m.Name(), heavier, "weighted trend favours %s (%.2f)", heavier, imbalance)
		}
	}

	last := outs[len(outs)-1]
	return vote(m.Name(), last.Opposite(), "balanced trend, reversing %s", last)
}

type ShortModel struct {
	p      ShortParams
	streak StreakParams
}

func NewShortModel(p ShortParams, streak StreakParams) *ShortModel {
	return &ShortModel{p: p, streak: streak}
}

func (m *ShortModel) Name() string { return ModelShort }

func (m *ShortModel) Evaluate(history []game.Session) Vote {
	if len(history) < max(m.p.MinHistory, 1) {
		return abstain(m.Name(), "need %d records, have %d", m.p.MinHistory, len(history))
	}
	if v, ok := followOrBreak(m.Name(), AnalyzeStreak(history, m.streak), m.p.FollowParams); ok {
		return v
	}

	outs := game.Outcomes(game.Tail(history, m.p.Window))
	if pat, n := mostCommonPattern(outs, m.p.PatternLen); n >= m.p.PatternMinRepeat {
		return vote(m.Name(), pat[len(pat)-1].Opposite(), "short pattern %s repeated %d times", game.PatternKey(pat), n)
	}
	last := outs[len(outs)-1]
	return vote(m.Name(), last.Opposite(), "no short pattern, reversing %s", last)
}

type MeanModel struct {
	p      MeanParams
	streak StreakParams
}

func NewMeanModel(p MeanParams, streak StreakParams) *MeanModel {
	return &MeanModel{p: p, streak: streak}
}

func (m *MeanModel) Name() string { return ModelMean }

// Evaluate bets on the minority side once the window drifts away from an even
// split, otherwise it reverses the latest outcome.
func (m *MeanModel) Evaluate(history []game.Session) Vote {
	if len(history) < max(m.p.MinHistory, 1) {
		return abstain(m.Name(), "need %d records, have %d", m.p.MinHistory, len(history))
	}
	if v, ok := followOrBreak(m.Name(), AnalyzeStreak(history, m.streak), m.p.FollowParams); ok {
		return v
	}

	window := game.Tail(history, m.p.Window)
	outs := game.Outcomes(window)
	avg, dev := meanAbsDeviation(game.Totals(window))
	lead, high, low := leading(outs)
	imbalance := math.Abs(float64(high-low)) / float64(len(outs))

	if imbalance < m.p.ImbalanceThreshold && dev < m.p.MaxDeviation {
		last := outs[len(outs)-1]
		return vote(m.Name(), last.Opposite(), "even split (%.2f), low deviation %.1f, reversing %s", imbalance, dev, last)
	}
	if lead.Valid() {
		return vote(m.Name(), lead.Opposite(), "%s over-represented %d/%d, expecting reversion", lead, max(high, low), len(outs))
	}
	if avg < m.p.TieMean {
		return vote(m.Name(), game.High, "even split with low mean %.1f", avg)
	}
	return vote(m.Name(), game.Low, "even split with high mean %.1f", avg)
}

type SwitchModel struct {
	p      SwitchParams
	streak StreakParams
}

func NewSwitchModel(p SwitchParams, streak StreakParams) *SwitchModel {
	return &SwitchModel{p: p, streak: streak}
}

func (m *SwitchModel) Name() string { return ModelSwitch }

func (m *SwitchModel) Evaluate(history []game.Session) Vote {
	if len(history) < max(m.p.MinHistory, 1) {
		return abstain(m.Name(), "need %d records, have %d", m.p.MinHistory, len(history))
	}
	if v, ok := followOrBreak(m.Name(), AnalyzeStreak(history, m.streak), m.p.FollowParams); ok {
		return v
	}

	outs := game.Outcomes(game.Tail(history, m.p.Window))
	switches := game.Switches(outs)
	last := outs[len(outs)-1]
	if switches >= m.p.Choppy {
		return vote(m.Name(), last.Opposite(), "choppy market, %d switches", switches)
	}
	return vote(m.Name(), last, "steady market, %d switches, following %s", switches, last)
}

type BridgeModel struct {
	p      BridgeParams
	streak StreakParams
}

func NewBridgeModel(p BridgeParams, streak StreakParams) *BridgeModel {
	return &BridgeModel{p: p, streak: streak}
}

func (m *BridgeModel) Name() string { return ModelBridge }

// Evaluate adjusts the analyzer's break probability for long runs, volatile
// totals and repeating patterns. The vote carries the adjusted probability.
func (m *BridgeModel) Evaluate(history []game.Session) Vote {
	if len(history) < max(m.p.MinHistory, 1) {
		return abstain(m.Name(), "need %d records, have %d", m.p.MinHistory, len(history))
	}
	st := AnalyzeStreak(history, m.streak)
	if !st.Current.Valid() {
		return abstain(m.Name(), "latest record has no outcome")
	}

	window := game.Tail(history, m.p.Window)
	outs := game.Outcomes(window)
	_, dev := meanAbsDeviation(game.Totals(window))
	pat, repeats := mostCommonPattern(outs, m.p.PatternLen)
	lastRun := outs[max(len(outs)-m.p.PatternRun, 0):]

	prob := st.BreakProbability
	var reason string
	switch {
	case st.Length >= m.p.LongStreak:
		prob = math.Min(prob+m.p.LongBoost, m.p.LongCap)
		reason = "run of %d %s is overextended"
	case st.Length >= m.p.VolatileStreak && dev > m.p.VolatileDeviation:
		prob = math.Min(prob+m.p.VolatileBoost, m.p.VolatileCap)
		reason = "run of %d %s with volatile totals"
	case repeats >= m.p.PatternMinRepeat && game.AllEqual(lastRun, st.Current):
		prob = math.Min(prob+m.p.PatternBoost, m.p.PatternCap)
		reason = "run of %d %s on a repeating pattern " + game.PatternKey(pat)
	default:
		prob = math.Max(prob-m.p.Decay, m.p.DecayFloor)
		reason = "no break signal on run of %d %s"
	}

	v := vote(m.Name(), st.Current, "following: "+reason, st.Length, st.Current)
	if prob > m.p.BreakCutoff {
		v = vote(m.Name(), st.Current.Opposite(), "breaking: "+reason, st.Length, st.Current)
	}
	v.BreakProbability = prob
	return v
}

type LongStreakModel struct {
	p LongStreakParams
}

func NewLongStreakModel(p LongStreakParams) *LongStreakModel {
	return &LongStreakModel{p: p}
}

func (m *LongStreakModel) Name() string { return ModelLongStreak }

func (m *LongStreakModel) Evaluate(history []game.Session) Vote {
	if len(history) < max(m.p.MinHistory, m.p.Run) || m.p.Run <= 0 {
		return abstain(m.Name(), "need %d records, have %d", max(m.p.MinHistory, m.p.Run), len(history))
	}
	last := history[len(history)-1].Outcome
	if !game.AllEqual(game.Outcomes(game.Tail(history, m.p.Run)), last) {
		return abstain(m.Name(), "no run of %d", m.p.Run)
	}
	return vote(m.Name(), last.Opposite(), "%s repeated %d times, expecting reversal", last, m.p.Run)
}

type AlternationModel struct {
	p AlternationParams
}

func NewAlternationModel(p AlternationParams) *AlternationModel {
	return &AlternationModel{p: p}
}

func (m *AlternationModel) Name() string { return ModelAlternation }

// Evaluate matches the trailing outcomes against the literal patterns in
// order. The first match wins.
func (m *AlternationModel) Evaluate(history []game.Session) Vote {
	if len(history) < max(m.p.MinHistory, 1) {
		return abstain(m.Name(), "need %d records, have %d", m.p.MinHistory, len(history))
	}
	for _, lp := range m.p.Patterns {
		n := len(lp.Sequence)
		if len(history) < n {
			continue
		}
		if game.PatternKey(game.Outcomes(game.Tail(history, n))) != strings.ToUpper(lp.Sequence) {
			continue
		}
		predict := game.Low
		if strings.EqualFold(lp.Predict, "T") {
			predict = game.High
		}
		label := lp.Label
		if label == "" {
			label = lp.Sequence
		}
		return vote(m.Name(), predict, "pattern %s detected", label)
	}
	return abstain(m.Name(), "no alternation pattern")
}

// HeuristicModel is an ordered rule chain. It reuses the alternation and
// long-run detectors before falling back to total and count rules.
type HeuristicModel struct {
	p           HeuristicParams
	alternation *AlternationModel
	longStreak  *LongStreakModel
}

func NewHeuristicModel(p HeuristicParams, alternation AlternationParams, longStreak LongStreakParams) *HeuristicModel {
	alternation.MinHistory = 0
	longStreak.MinHistory = p.LongStreakMinHistory
	return &HeuristicModel{
		p:           p,
		alternation: NewAlternationModel(alternation),
		longStreak:  NewLongStreakModel(longStreak),
	}
}

func (m *HeuristicModel) Name() string { return ModelHeuristic }

func (m *HeuristicModel) Evaluate(history []game.Session) Vote {
	if len(history) < max(m.p.MinHistory, 1) {
		return abstain(m.Name(), "need %d records, have %d", m.p.MinHistory, len(history))
	}
	if v := m.alternation.Evaluate(history); !v.Abstained() {
		return m.relabel(v)
	}
	if v := m.longStreak.Evaluate(history); !v.Abstained() {
		return m.relabel(v)
	}

	window := game.Tail(history, m.p.Window)
	outs := game.Outcomes(window)
	avg, dev := meanAbsDeviation(game.Totals(window))
	switch {
	case avg > m.p.HighMean && dev < m.p.MaxDeviation:
		return vote(m.Name(), game.High, "high mean %.1f with low deviation", avg)
	case avg < m.p.LowMean && dev < m.p.MaxDeviation:
		return vote(m.Name(), game.Low, "low mean %.1f with low deviation", avg)
	}

	high := game.Count(outs, game.High)
	low := game.Count(outs, game.Low)
	switch {
	case high > low+m.p.CountLead:
		return vote(m.Name(), game.Low, "%s dominates %d/%d", game.High, high, len(outs))
	case low > high+m.p.CountLead:
		return vote(m.Name(), game.High, "%s dominates %d/%d", game.Low, low, len(outs))
	}

	if pat, n := mostCommonPattern(outs, m.p.PatternLen); n >= m.p.PatternMinRepeat {
		return vote(m.Name(), pat[len(pat)-1].Opposite(), "pattern %s repeated %d times", game.PatternKey(pat), n)
	}

	recent := game.Outcomes(game.Tail(history, m.p.RecentWindow))
	if game.Count(recent, game.High)*2 > len(recent) {
		return vote(m.Name(), game.Low, "reversing recent %s lean", game.High)
	}
	return vote(m.Name(), game.High, "reversing recent %s lean", game.Low)
}

func (m *HeuristicModel) relabel(v Vote) Vote {
	v.Reason = v.Model + ": " + v.Reason
	v.Model = m.Name()
	return v
}

type ScoreOutlierModel struct {
	p OutlierParams
}

func NewScoreOutlierModel(p OutlierParams) *ScoreOutlierModel {
	return &ScoreOutlierModel{p: p}
}

func (m *ScoreOutlierModel) Name() string { return ModelScoreOutlier }

// Evaluate reverses the latest outcome when its total sits outside the
// trailing band.
func (m *ScoreOutlierModel) Evaluate(history []game.Session) Vote {
	if len(history) < max(m.p.MinHistory, m.p.Window+1) {
		return abstain(m.Name(), "need %d records, have %d", max(m.p.MinHistory, m.p.Window+1), len(history))
	}
	latest := history[len(history)-1]
	trailing := history[len(history)-1-m.p.Window : len(history)-1]
	avg, sd := stddev(game.Totals(trailing))
	if sd == 0 {
		return abstain(m.Name(), "flat totals")
	}
	z := (float64(latest.Total) - avg) / sd
	if math.Abs(z) <= m.p.Sigmas {
		return abstain(m.Name(), "total %d within %.1f sigma", latest.Total, m.p.Sigmas)
	}
	return vote(m.Name(), latest.Outcome.Opposite(), "total %d is %.1f sigma from %.1f", latest.Total, z, avg)
}

type CycleModel struct {
	p CycleParams
}

func NewCycleModel(p CycleParams) *CycleModel {
	return &CycleModel{p: p}
}

func (m *CycleModel) Name() string { return ModelCycle }

// Evaluate compares the short window against the expected count derived from
// the long-window cycle and votes against a side running hot.
func (m *CycleModel) Evaluate(history []game.Session) Vote {
	need := max(m.p.MinHistory, m.p.LongWindow)
	if len(history) < need || m.p.SubWindow <= 0 || m.p.LongWindow < m.p.SubWindow {
		return abstain(m.Name(), "need %d records, have %d", need, len(history))
	}
	long := game.Outcomes(game.Tail(history, m.p.LongWindow))
	short := game.Outcomes(game.Tail(history, m.p.ShortWindow))

	best, bestExcess := game.None, 0.0
	for _, side := range []game.Outcome{game.High, game.Low} {
		chunks := 0
		sum := 0
		for i := 0; i+m.p.SubWindow <= len(long); i += m.p.SubWindow {
			sum += game.Count(long[i:i+m.p.SubWindow], side)
			chunks++
		}
		expected := float64(sum) / float64(chunks) * float64(len(short)) / float64(m.p.SubWindow)
		excess := float64(game.Count(short, side)) - expected
		if excess >= m.p.Margin && excess > bestExcess {
			best, bestExcess = side, excess
		}
	}
	if !best.Valid() {
		return abstain(m.Name(), "no cycle deviation")
	}
	return vote(m.Name(), best.Opposite(), "%s running %.1f above its cycle", best, bestExcess)
}
