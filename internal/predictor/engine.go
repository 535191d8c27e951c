package predictor

import (
	"fmt"
	"math"
	"strings"

	"github.com/samber/lo"

	"github.com/fystack/taixiu-predictor/internal/game"
)

type Stage string

const (
	StageInsufficient Stage = "insufficient_data"
	StageBasic        Stage = "basic_heuristic"
	StageFull         Stage = "full_aggregation"
)

type Risk string

const (
	RiskLow    Risk = "low"
	RiskMedium Risk = "medium"
	RiskHigh   Risk = "high"
)

const LabelWait = "Wait"

// ModelVote is a vote as it entered the accumulators.
type ModelVote struct {
	Vote
	Weight     float64 `json:"weight"`
	Multiplier float64 `json:"multiplier"`
}

// Result is one prediction for the round after SessionID.
type Result struct {
	SessionID        int64        `json:"session_id"`
	NextSessionID    int64        `json:"next_session_id"`
	Prediction       game.Outcome `json:"prediction"`
	Label            string       `json:"label"`
	Confidence       float64      `json:"confidence"`
	Explanation      string       `json:"explanation"`
	HighScore        float64      `json:"high_score"`
	LowScore         float64      `json:"low_score"`
	BreakProbability float64      `json:"break_probability"`
	Unstable         bool         `json:"unstable"`
	Risk             Risk         `json:"risk"`
	Stage            Stage        `json:"stage"`
	Votes            []ModelVote  `json:"votes,omitempty"`
}

// Waiting reports whether the engine declined to pick a side.
func (r Result) Waiting() bool { return !r.Prediction.Valid() }

type Option func(*Engine)

// WithLedger shares a ledger owned by the caller, e.g. one restored from disk.
func WithLedger(l Ledger) Option {
	return func(e *Engine) { e.ledger = l }
}

// WithRandom injects the coin used on empty history.
func WithRandom(r RandomSource) Option {
	return func(e *Engine) { e.random = r }
}

// WithModel appends an extra voter with the given base weight.
func WithModel(m Model, weight float64) Option {
	return func(e *Engine) {
		e.models = append(e.models, m)
		e.weights[m.Name()] = weight
	}
}

// Engine is one prediction context. It is safe for concurrent use; the only
// mutable state is the ledger.
type Engine struct {
	params    Params
	models    []Model
	weights   map[string]float64
	heuristic *HeuristicModel
	guard     Guard
	ledger    Ledger
	tracker   *Tracker
	random    RandomSource
}

func New(params Params, opts ...Option) (*Engine, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid predictor params: %w", err)
	}
	heuristic := NewHeuristicModel(params.Heuristic, params.Alternation, params.LongStreak)
	e := &Engine{
		params:    params,
		weights:   make(map[string]float64),
		heuristic: heuristic,
		guard:     NewGuard(params.Guard),
	}

	add := func(base ModelBase, m Model) {
		if base.IsDisabled() {
			return
		}
		e.models = append(e.models, m)
		e.weights[m.Name()] = base.Weight
	}
	add(params.Heuristic.ModelBase, heuristic)
	add(params.Bridge.ModelBase, NewBridgeModel(params.Bridge, params.Streak))
	add(params.Alternation.ModelBase, NewAlternationModel(params.Alternation))
	add(params.LongStreak.ModelBase, NewLongStreakModel(params.LongStreak))
	add(params.Trend.ModelBase, NewTrendModel(params.Trend, params.Streak))
	add(params.Short.ModelBase, NewShortModel(params.Short, params.Streak))
	add(params.Mean.ModelBase, NewMeanModel(params.Mean, params.Streak))
	add(params.Switch.ModelBase, NewSwitchModel(params.Switch, params.Streak))
	add(params.ScoreOutlier.ModelBase, NewScoreOutlierModel(params.ScoreOutlier))
	add(params.Cycle.ModelBase, NewCycleModel(params.Cycle))

	for _, opt := range opts {
		opt(e)
	}
	if e.ledger == nil {
		e.ledger = NewMemoryLedger()
	}
	if e.random == nil {
		e.random = defaultRandom()
	}
	e.tracker = NewTracker(e.ledger, params.Performance)
	return e, nil
}

func (e *Engine) Ledger() Ledger { return e.ledger }

func (e *Engine) Params() Params { return e.params }

// ModelNames lists voters in evaluation order.
func (e *Engine) ModelNames() []string {
	names := make([]string, len(e.models))
	for i, m := range e.models {
		names[i] = m.Name()
	}
	return names
}

// Predict computes the next-round prediction. history must be ordered by
// session id and is never modified.
func (e *Engine) Predict(history []game.Session) Result {
	agg := e.params.Aggregate
	if len(history) == 0 {
		coin := game.High
		if e.random.Float64() >= 0.5 {
			coin = game.Low
		}
		return Result{
			Prediction:  coin,
			Label:       coin.String(),
			Confidence:  agg.ConfidenceFloor,
			Explanation: "no history available, coin flip",
			Risk:        RiskHigh,
			Stage:       StageInsufficient,
		}
	}

	latest := history[len(history)-1]
	st := AnalyzeStreak(history, e.params.Streak)
	unstable, guardReason := e.guard.Check(history)
	res := Result{
		SessionID:        latest.ID,
		NextSessionID:    latest.ID + 1,
		BreakProbability: st.BreakProbability,
		Unstable:         unstable,
	}

	if len(history) < agg.FullAggregationMinHistory {
		return e.basic(history, res)
	}

	res.Stage = StageFull
	votes := make([]Vote, len(e.models))
	for i, m := range e.models {
		votes[i] = m.Evaluate(history)
		e.ledger.Record(m.Name(), latest.ID, votes[i].Prediction)
	}

	var high, low float64
	var highVoters, lowVoters int
	reasons := make([]string, 0, len(votes))
	bridge := Vote{}
	for _, v := range votes {
		if v.Model == ModelBridge {
			bridge = v
		}
		mult := e.tracker.Multiplier(history, v.Model)
		w := e.weights[v.Model] * mult
		res.Votes = append(res.Votes, ModelVote{Vote: v, Weight: w, Multiplier: mult})
		switch v.Prediction {
		case game.High:
			high += w
			highVoters++
		case game.Low:
			low += w
			lowVoters++
		default:
			continue
		}
		reasons = append(reasons, fmt.Sprintf("[%s] %s", v.Model, v.Reason))
	}

	if agg.ConsensusMinAgree > 0 {
		if highVoters >= agg.ConsensusMinAgree {
			high += agg.ConsensusBonus
		}
		if lowVoters >= agg.ConsensusMinAgree {
			low += agg.ConsensusBonus
		}
	}

	if side, boost := e.trustBoost(votes); boost > 1 {
		if side == game.High {
			high *= boost
		} else {
			low *= boost
		}
	}

	if unstable {
		high *= agg.GuardDamping
		low *= agg.GuardDamping
		reasons = append(reasons, "unstable: "+guardReason)
	}

	if agg.DominantWindow > 0 && len(history) >= agg.DominantWindow {
		outs := game.Outcomes(game.Tail(history, agg.DominantWindow))
		switch {
		case game.Count(outs, game.High) >= agg.DominantCount:
			low += agg.DominantBonus
		case game.Count(outs, game.Low) >= agg.DominantCount:
			high += agg.DominantBonus
		}
	}

	if bridge.BreakProbability > agg.BreakBonusCutoff {
		switch bridge.Prediction {
		case game.High:
			high += agg.BreakBonus
		case game.Low:
			low += agg.BreakBonus
		}
	}
	res.BreakProbability = math.Max(res.BreakProbability, bridge.BreakProbability)

	res.HighScore, res.LowScore = high, low
	res.Prediction = e.decide(high, low)
	res.Label = labelOf(res.Prediction)
	res.Confidence = e.confidence(high, low, res.Prediction)
	res.Risk = e.risk(unstable, res.BreakProbability)
	if len(reasons) == 0 {
		res.Explanation = "no model produced a vote"
	} else {
		res.Explanation = strings.Join(reasons, " | ")
	}
	return res
}

// basic answers with the heuristic chain alone, reversing the latest outcome
// when even that has too little data.
func (e *Engine) basic(history []game.Session, res Result) Result {
	agg := e.params.Aggregate
	latest := history[len(history)-1]
	v := e.heuristic.Evaluate(history)
	if v.Abstained() {
		v = vote(ModelHeuristic, latest.Outcome.Opposite(), "short history, reversing last result %s", latest.Outcome)
	}
	if v.Abstained() {
		coin := game.High
		if e.random.Float64() >= 0.5 {
			coin = game.Low
		}
		v = vote(ModelHeuristic, coin, "latest record has no outcome, coin flip")
	}

	res.Stage = StageBasic
	res.Prediction = v.Prediction
	res.Label = labelOf(v.Prediction)
	res.Confidence = agg.ConfidenceFloor
	res.Explanation = fmt.Sprintf("[%s] %s", v.Model, v.Reason)
	res.Risk = e.risk(res.Unstable, res.BreakProbability)
	res.Votes = []ModelVote{{Vote: v, Weight: e.weights[ModelHeuristic], Multiplier: 1}}
	return res
}

// trustBoost returns the multiplier earned when every trusted model that
// voted agrees.
func (e *Engine) trustBoost(votes []Vote) (game.Outcome, float64) {
	agg := e.params.Aggregate
	if len(agg.TrustedModels) == 0 || len(agg.TrustBoosts) == 0 {
		return game.None, 1
	}
	side := game.None
	n := 0
	for _, v := range votes {
		if v.Abstained() || !lo.Contains(agg.TrustedModels, v.Model) {
			continue
		}
		if side != game.None && v.Prediction != side {
			return game.None, 1
		}
		side = v.Prediction
		n++
	}
	best, bestAt := 1.0, 0
	for count, boost := range agg.TrustBoosts {
		if n >= count && count > bestAt {
			best, bestAt = boost, count
		}
	}
	return side, best
}

func (e *Engine) decide(high, low float64) game.Outcome {
	agg := e.params.Aggregate
	if agg.Forced() {
		if high > low {
			return game.High
		}
		return game.Low
	}
	sum := high + low
	if sum <= 0 || math.Abs(high-low)/sum < agg.TieBand {
		return game.None
	}
	if high > low {
		return game.High
	}
	return game.Low
}

// confidence is the winning share of the accumulated mass, pulled toward the
// floor when the mass is thin and clamped to the configured band.
func (e *Engine) confidence(high, low float64, prediction game.Outcome) float64 {
	agg := e.params.Aggregate
	sum := high + low
	if !prediction.Valid() || sum <= 0 {
		return agg.ConfidenceFloor
	}
	raw := math.Max(high, low) / sum * 100
	if agg.MassThreshold > 0 && sum < agg.MassThreshold {
		raw = agg.ConfidenceFloor + (raw-agg.ConfidenceFloor)*(sum/agg.MassThreshold)
	}
	return math.Min(math.Max(raw, agg.ConfidenceFloor), agg.ConfidenceCeiling)
}

func (e *Engine) risk(unstable bool, breakProb float64) Risk {
	agg := e.params.Aggregate
	switch {
	case unstable || breakProb >= agg.RiskHighBreak:
		return RiskHigh
	case breakProb >= agg.RiskMediumBreak:
		return RiskMedium
	}
	return RiskLow
}

func labelOf(o game.Outcome) string {
	if !o.Valid() {
		return LabelWait
	}
	return o.String()
}
