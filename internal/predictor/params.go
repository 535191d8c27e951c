package predictor

import (
	"errors"
	"fmt"
	"strings"

	"github.com/imdario/mergo"
	"github.com/samber/lo"
)

var ErrUnknownPreset = errors.New("unknown predictor preset")

const (
	PresetCanonical = "canonical"
	PresetClassic   = "classic"
	PresetAdvanced  = "advanced"
)

// BreakTier is one row of the break-probability table. A tier matches when
// the streak and the window switch count reach its minimums; its value is
// Base + switches/SwitchDivisor + imbalance*ImbalanceCoef capped at Ceiling.
// A zero SwitchDivisor drops the switches term.
type BreakTier struct {
	MinStreak     int     `yaml:"min_streak"`
	MinSwitches   int     `yaml:"min_switches"`
	Base          float64 `yaml:"base"`
	SwitchDivisor float64 `yaml:"switch_divisor"`
	ImbalanceCoef float64 `yaml:"imbalance_coef"`
	Ceiling       float64 `yaml:"ceiling"`
}

type StreakParams struct {
	Window int         `yaml:"window"`
	Tiers  []BreakTier `yaml:"tiers"`
}

// FollowParams is the streak override shared by the continuation models:
// at StreakOverride or longer they vote break above BreakCutoff, else follow.
type FollowParams struct {
	StreakOverride int     `yaml:"streak_override"`
	BreakCutoff    float64 `yaml:"break_cutoff"`
}

// ModelBase is embedded by every sub-model's parameters. A nil Disabled
// leaves the model on.
type ModelBase struct {
	Disabled   *bool   `yaml:"disabled"`
	Weight     float64 `yaml:"weight"`
	MinHistory int     `yaml:"min_history"`
}

func (b ModelBase) IsDisabled() bool {
	return b.Disabled != nil && *b.Disabled
}

type TrendParams struct {
	ModelBase          `yaml:",inline"`
	FollowParams       `yaml:",inline"`
	Window             int     `yaml:"window"`
	Base               float64 `yaml:"base"`
	PatternWindow      int     `yaml:"pattern_window"`
	PatternLen         int     `yaml:"pattern_len"`
	PatternMinRepeat   int     `yaml:"pattern_min_repeat"`
	ImbalanceThreshold float64 `yaml:"imbalance_threshold"`
}

type ShortParams struct {
	ModelBase        `yaml:",inline"`
	FollowParams     `yaml:",inline"`
	Window           int `yaml:"window"`
	PatternLen       int `yaml:"pattern_len"`
	PatternMinRepeat int `yaml:"pattern_min_repeat"`
}

type MeanParams struct {
	ModelBase          `yaml:",inline"`
	FollowParams       `yaml:",inline"`
	Window             int     `yaml:"window"`
	ImbalanceThreshold float64 `yaml:"imbalance_threshold"`
	MaxDeviation       float64 `yaml:"max_deviation"`
	TieMean            float64 `yaml:"tie_mean"`
}

type SwitchParams struct {
	ModelBase    `yaml:",inline"`
	FollowParams `yaml:",inline"`
	Window       int `yaml:"window"`
	Choppy       int `yaml:"choppy"`
}

type BridgeParams struct {
	ModelBase         `yaml:",inline"`
	Window            int     `yaml:"window"`
	LongStreak        int     `yaml:"long_streak"`
	LongBoost         float64 `yaml:"long_boost"`
	LongCap           float64 `yaml:"long_cap"`
	VolatileStreak    int     `yaml:"volatile_streak"`
	VolatileDeviation float64 `yaml:"volatile_deviation"`
	VolatileBoost     float64 `yaml:"volatile_boost"`
	VolatileCap       float64 `yaml:"volatile_cap"`
	PatternLen        int     `yaml:"pattern_len"`
	PatternMinRepeat  int     `yaml:"pattern_min_repeat"`
	PatternRun        int     `yaml:"pattern_run"`
	PatternBoost      float64 `yaml:"pattern_boost"`
	PatternCap        float64 `yaml:"pattern_cap"`
	Decay             float64 `yaml:"decay"`
	DecayFloor        float64 `yaml:"decay_floor"`
	BreakCutoff       float64 `yaml:"break_cutoff"`
}

type LongStreakParams struct {
	ModelBase `yaml:",inline"`
	Run       int `yaml:"run"`
}

// LiteralPattern maps a trailing sequence written with T (Tài) and X (Xỉu)
// onto the outcome it predicts.
type LiteralPattern struct {
	Sequence string `yaml:"sequence"`
	Predict  string `yaml:"predict"`
	Label    string `yaml:"label"`
}

type AlternationParams struct {
	ModelBase `yaml:",inline"`
	Patterns  []LiteralPattern `yaml:"patterns"`
}

type HeuristicParams struct {
	ModelBase            `yaml:",inline"`
	Window               int     `yaml:"window"`
	LongStreakMinHistory int     `yaml:"long_streak_min_history"`
	HighMean             float64 `yaml:"high_mean"`
	LowMean              float64 `yaml:"low_mean"`
	MaxDeviation         float64 `yaml:"max_deviation"`
	CountLead            int     `yaml:"count_lead"`
	PatternLen           int     `yaml:"pattern_len"`
	PatternMinRepeat     int     `yaml:"pattern_min_repeat"`
	RecentWindow         int     `yaml:"recent_window"`
}

type OutlierParams struct {
	ModelBase `yaml:",inline"`
	Window    int     `yaml:"window"`
	Sigmas    float64 `yaml:"sigmas"`
}

type CycleParams struct {
	ModelBase   `yaml:",inline"`
	LongWindow  int     `yaml:"long_window"`
	SubWindow   int     `yaml:"sub_window"`
	ShortWindow int     `yaml:"short_window"`
	Margin      float64 `yaml:"margin"`
}

type GuardParams struct {
	Window      int `yaml:"window"`
	SwitchLimit int `yaml:"switch_limit"`
	StreakLimit int `yaml:"streak_limit"`
}

type PerformanceParams struct {
	Lookback int     `yaml:"lookback"`
	Floor    float64 `yaml:"floor"`
	Ceiling  float64 `yaml:"ceiling"`
}

type AggregateParams struct {
	FullAggregationMinHistory int             `yaml:"full_aggregation_min_history"`
	ConsensusMinAgree         int             `yaml:"consensus_min_agree"`
	ConsensusBonus            float64         `yaml:"consensus_bonus"`
	TrustedModels             []string        `yaml:"trusted_models"`
	TrustBoosts               map[int]float64 `yaml:"trust_boosts"`
	GuardDamping              float64         `yaml:"guard_damping"`
	DominantWindow            int             `yaml:"dominant_window"`
	DominantCount             int             `yaml:"dominant_count"`
	DominantBonus             float64         `yaml:"dominant_bonus"`
	BreakBonusCutoff          float64         `yaml:"break_bonus_cutoff"`
	BreakBonus                float64         `yaml:"break_bonus"`
	TieBand                   float64         `yaml:"tie_band"`
	ForceChoice               *bool           `yaml:"force_choice"`
	ConfidenceFloor           float64         `yaml:"confidence_floor"`
	ConfidenceCeiling         float64         `yaml:"confidence_ceiling"`
	MassThreshold             float64         `yaml:"mass_threshold"`
	RiskHighBreak             float64         `yaml:"risk_high_break"`
	RiskMediumBreak           float64         `yaml:"risk_medium_break"`
}

// Forced reports whether ties and the wait band still pick a side.
func (a AggregateParams) Forced() bool {
	return a.ForceChoice != nil && *a.ForceChoice
}

// Params is the full tunable surface of the engine. Variant behaviours are
// presets of this one table.
type Params struct {
	Streak       StreakParams      `yaml:"streak"`
	Trend        TrendParams       `yaml:"trend"`
	Short        ShortParams       `yaml:"short"`
	Mean         MeanParams        `yaml:"mean"`
	Switch       SwitchParams      `yaml:"switch"`
	Bridge       BridgeParams      `yaml:"bridge"`
	LongStreak   LongStreakParams  `yaml:"long_streak"`
	Alternation  AlternationParams `yaml:"alternation"`
	Heuristic    HeuristicParams   `yaml:"heuristic"`
	ScoreOutlier OutlierParams     `yaml:"score_outlier"`
	Cycle        CycleParams       `yaml:"cycle"`
	Guard        GuardParams       `yaml:"guard"`
	Performance  PerformanceParams `yaml:"performance"`
	Aggregate    AggregateParams   `yaml:"aggregate"`
}

// CanonicalParams returns the default table.
func CanonicalParams() Params {
	return Params{
		Streak: StreakParams{
			Window: 20,
			Tiers: []BreakTier{
				{MinStreak: 8, Base: 0.70, SwitchDivisor: 20, ImbalanceCoef: 0.2, Ceiling: 0.95},
				{MinStreak: 5, Base: 0.45, SwitchDivisor: 15, ImbalanceCoef: 0.3, Ceiling: 0.90},
				{MinStreak: 3, MinSwitches: 8, Base: 0.40, Ceiling: 0.40},
			},
		},
		Trend: TrendParams{
			ModelBase:          ModelBase{Weight: 0.20, MinHistory: 5},
			FollowParams:       FollowParams{StreakOverride: 6, BreakCutoff: 0.8},
			Window:             20,
			Base:               1.25,
			PatternWindow:      12,
			PatternLen:         5,
			PatternMinRepeat:   3,
			ImbalanceThreshold: 0.3,
		},
		Short: ShortParams{
			ModelBase:        ModelBase{Weight: 0.20, MinHistory: 5},
			FollowParams:     FollowParams{StreakOverride: 5, BreakCutoff: 0.8},
			Window:           10,
			PatternLen:       4,
			PatternMinRepeat: 3,
		},
		Mean: MeanParams{
			ModelBase:          ModelBase{Weight: 0.25, MinHistory: 5},
			FollowParams:       FollowParams{StreakOverride: 5, BreakCutoff: 0.8},
			Window:             15,
			ImbalanceThreshold: 0.3,
			MaxDeviation:       3,
			TieMean:            10.5,
		},
		Switch: SwitchParams{
			ModelBase:    ModelBase{Weight: 0.15, MinHistory: 5},
			FollowParams: FollowParams{StreakOverride: 5, BreakCutoff: 0.8},
			Window:       12,
			Choppy:       7,
		},
		Bridge: BridgeParams{
			ModelBase:         ModelBase{Weight: 0.20, MinHistory: 5},
			Window:            25,
			LongStreak:        7,
			LongBoost:         0.20,
			LongCap:           0.95,
			VolatileStreak:    5,
			VolatileDeviation: 3.5,
			VolatileBoost:     0.15,
			VolatileCap:       0.90,
			PatternLen:        4,
			PatternMinRepeat:  4,
			PatternRun:        5,
			PatternBoost:      0.10,
			PatternCap:        0.85,
			Decay:             0.20,
			DecayFloor:        0.10,
			BreakCutoff:       0.70,
		},
		LongStreak: LongStreakParams{
			ModelBase: ModelBase{Weight: 0.35, MinHistory: 7},
			Run:       7,
		},
		Alternation: AlternationParams{
			ModelBase: ModelBase{Weight: 0.30, MinHistory: 5},
			Patterns: []LiteralPattern{
				{Sequence: "TXTXT", Predict: "X", Label: "1T1X"},
				{Sequence: "XTXTX", Predict: "T", Label: "1X1T"},
				{Sequence: "TTXXTT", Predict: "X", Label: "2T2X2T"},
				{Sequence: "XXTTXX", Predict: "T", Label: "2X2T2X"},
			},
		},
		Heuristic: HeuristicParams{
			ModelBase:            ModelBase{Weight: 0.25, MinHistory: 5},
			Window:               7,
			LongStreakMinHistory: 10,
			HighMean:             11,
			LowMean:              7,
			MaxDeviation:         2.5,
			CountLead:            2,
			PatternLen:           4,
			PatternMinRepeat:     2,
			RecentWindow:         3,
		},
		ScoreOutlier: OutlierParams{
			ModelBase: ModelBase{Weight: 0.20, MinHistory: 100},
			Window:    30,
			Sigmas:    2,
		},
		Cycle: CycleParams{
			ModelBase:   ModelBase{Weight: 0.20, MinHistory: 50},
			LongWindow:  50,
			SubWindow:   10,
			ShortWindow: 15,
			Margin:      3,
		},
		Guard: GuardParams{
			Window:      20,
			SwitchLimit: 12,
			StreakLimit: 9,
		},
		Performance: PerformanceParams{
			Lookback: 15,
			Floor:    0.6,
			Ceiling:  1.4,
		},
		Aggregate: AggregateParams{
			FullAggregationMinHistory: 5,
			ConsensusMinAgree:         5,
			ConsensusBonus:            0.15,
			TrustedModels:             []string{ModelBridge, ModelLongStreak, ModelAlternation, ModelTrend},
			TrustBoosts:               map[int]float64{3: 1.25, 4: 1.5},
			GuardDamping:              0.7,
			DominantWindow:            15,
			DominantCount:             10,
			DominantBonus:             0.2,
			BreakBonusCutoff:          0.7,
			BreakBonus:                0.25,
			TieBand:                   0.05,
			ConfidenceFloor:           50,
			ConfidenceCeiling:         95,
			MassThreshold:             1.0,
			RiskHighBreak:             0.8,
			RiskMediumBreak:           0.5,
		},
	}
}

// ClassicParams mirrors the simplest variant: six voters, no consensus or
// trust boosts, and a label is always forced.
func ClassicParams() Params {
	p := CanonicalParams()
	p.LongStreak.Disabled = lo.ToPtr(true)
	p.Alternation.Disabled = lo.ToPtr(true)
	p.ScoreOutlier.Disabled = lo.ToPtr(true)
	p.Cycle.Disabled = lo.ToPtr(true)
	p.Aggregate.ConsensusMinAgree = 0
	p.Aggregate.TrustedModels = nil
	p.Aggregate.TrustBoosts = nil
	p.Aggregate.ForceChoice = lo.ToPtr(true)
	p.Aggregate.MassThreshold = 0
	return p
}

// AdvancedParams only aggregates on a large sample; below it the heuristic
// rule chain answers alone.
func AdvancedParams() Params {
	p := CanonicalParams()
	p.Aggregate.FullAggregationMinHistory = 500
	p.Aggregate.TrustBoosts = map[int]float64{3: 2, 4: 3}
	p.Aggregate.ConfidenceFloor = 10
	p.Aggregate.ConfidenceCeiling = 99.99
	return p
}

// Preset resolves a preset by name. Empty means canonical.
func Preset(name string) (Params, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", PresetCanonical:
		return CanonicalParams(), nil
	case PresetClassic:
		return ClassicParams(), nil
	case PresetAdvanced:
		return AdvancedParams(), nil
	}
	return Params{}, fmt.Errorf("%w: %s", ErrUnknownPreset, name)
}

// Resolve loads a preset and overlays every non-zero field of overrides.
func Resolve(preset string, overrides *Params) (Params, error) {
	p, err := Preset(preset)
	if err != nil {
		return Params{}, err
	}
	if overrides != nil {
		// without dereferencing, a set *bool replaces the preset's even when false
		if err := mergo.Merge(&p, *overrides, mergo.WithOverride, mergo.WithoutDereference); err != nil {
			return Params{}, fmt.Errorf("merge predictor overrides: %w", err)
		}
	}
	return p, p.Validate()
}

// Validate checks the invariants the engine relies on.
func (p Params) Validate() error {
	if p.Streak.Window <= 0 {
		return errors.New("streak window must be > 0")
	}
	for i, t := range p.Streak.Tiers {
		if t.MinStreak <= 0 || t.Ceiling <= 0 || t.Ceiling > 1 {
			return fmt.Errorf("streak tier %d: min_streak > 0 and ceiling in (0,1] required", i)
		}
	}
	if p.Guard.Window <= 0 {
		return errors.New("guard window must be > 0")
	}
	perf := p.Performance
	if perf.Lookback <= 0 || perf.Floor <= 0 || perf.Floor > 1 || perf.Ceiling < 1 {
		return fmt.Errorf("performance bounds invalid: lookback=%d floor=%v ceiling=%v", perf.Lookback, perf.Floor, perf.Ceiling)
	}
	agg := p.Aggregate
	if agg.ConfidenceFloor <= 0 || agg.ConfidenceCeiling > 100 || agg.ConfidenceFloor >= agg.ConfidenceCeiling {
		return fmt.Errorf("confidence band invalid: [%v, %v]", agg.ConfidenceFloor, agg.ConfidenceCeiling)
	}
	if agg.GuardDamping <= 0 || agg.GuardDamping > 1 {
		return fmt.Errorf("guard damping must be in (0,1], got %v", agg.GuardDamping)
	}
	if agg.FullAggregationMinHistory < 1 {
		return errors.New("full_aggregation_min_history must be >= 1")
	}
	for _, lp := range p.Alternation.Patterns {
		if strings.Trim(lp.Sequence, "TX") != "" || lp.Sequence == "" {
			return fmt.Errorf("alternation pattern %q must use only T and X", lp.Sequence)
		}
		if lp.Predict != "T" && lp.Predict != "X" {
			return fmt.Errorf("alternation pattern %q predicts %q, want T or X", lp.Sequence, lp.Predict)
		}
	}
	return nil
}
