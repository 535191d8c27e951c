package predictor

import (
	"sync"
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fystack/taixiu-predictor/internal/game"
)

func TestMemoryLedger_WriteOnce(t *testing.T) {
	l := NewMemoryLedger()
	assert.True(t, l.Record(ModelTrend, 10, game.High))
	assert.False(t, l.Record(ModelTrend, 10, game.Low))

	got, ok := l.Lookup(ModelTrend, 10)
	require.True(t, ok)
	assert.Equal(t, game.High, got)

	_, ok = l.Lookup(ModelTrend, 11)
	assert.False(t, ok)
	_, ok = l.Lookup(ModelMean, 10)
	assert.False(t, ok)
}

func TestMemoryLedger_RecordsAbstains(t *testing.T) {
	l := NewMemoryLedger()
	l.Record(ModelCycle, 1, game.None)
	got, ok := l.Lookup(ModelCycle, 1)
	assert.True(t, ok)
	assert.Equal(t, game.None, got)
	assert.Equal(t, 1, l.Len(ModelCycle))
}

func TestMemoryLedger_PruneSnapshotRestore(t *testing.T) {
	l := NewMemoryLedger()
	for id := int64(1); id <= 5; id++ {
		l.Record(ModelTrend, id, game.High)
		l.Record(ModelBridge, id, game.Low)
	}
	assert.Equal(t, 4, l.Prune(3))
	assert.Equal(t, 3, l.Len(ModelTrend))
	assert.Equal(t, []string{ModelBridge, ModelTrend}, l.Models())

	snap := l.Snapshot()
	snap[ModelTrend][99] = game.Low
	_, ok := l.Lookup(ModelTrend, 99)
	assert.False(t, ok, "snapshot must be a copy")

	restored := NewMemoryLedger()
	restored.Record(ModelTrend, 3, game.Low)
	restored.Restore(l.Snapshot())
	got, _ := restored.Lookup(ModelTrend, 3)
	assert.Equal(t, game.Low, got, "restore never overwrites")
	assert.Equal(t, 3, restored.Len(ModelBridge))

	restored.Reset()
	assert.Empty(t, restored.Models())
}

func TestMemoryLedger_Concurrent(t *testing.T) {
	l := NewMemoryLedger()
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for id := int64(0); id < 100; id++ {
				o := game.High
				if w%2 == 1 {
					o = game.Low
				}
				l.Record(ModelShort, id, o)
				l.Lookup(ModelShort, id)
			}
		}(w)
	}
	wg.Wait()
	assert.Equal(t, 100, l.Len(ModelShort))
}

func TestTracker_Multiplier(t *testing.T) {
	h := seq("TXTXTX")
	l := NewMemoryLedger()
	l.Record("m", 1, game.Low)  // h2 Xỉu, correct
	l.Record("m", 2, game.High) // h3 Tài, correct
	l.Record("m", 3, game.High) // h4 Xỉu, wrong
	l.Record("m", 4, game.None) // abstain, skipped

	tr := NewTracker(l, CanonicalParams().Performance)
	correct, total := tr.Score(h, "m")
	assert.Equal(t, 2, correct)
	assert.Equal(t, 3, total)
	assert.InDelta(t, 1+0.5/1.5, tr.Multiplier(h, "m"), 1e-9)

	assert.Equal(t, 1.0, tr.Multiplier(h, "unknown"))
	assert.Equal(t, 1.0, NewTracker(nil, CanonicalParams().Performance).Multiplier(h, "m"))
}

func TestTracker_Clamped(t *testing.T) {
	h := seq("TTTTTTTTTTTTTTTTTTTT")
	wrong, right := NewMemoryLedger(), NewMemoryLedger()
	for _, s := range h {
		wrong.Record("m", s.ID, game.Low)
		right.Record("m", s.ID, game.High)
	}
	p := CanonicalParams().Performance
	assert.Equal(t, p.Floor, NewTracker(wrong, p).Multiplier(h, "m"))
	assert.Equal(t, p.Ceiling, NewTracker(right, p).Multiplier(h, "m"))

	correct, total := NewTracker(right, p).Score(h, "m")
	assert.Equal(t, p.Lookback, total)
	assert.Equal(t, p.Lookback, correct)
}

func TestResolve_MergesOverrides(t *testing.T) {
	p, err := Resolve(PresetClassic, &Params{
		Trend:     TrendParams{ModelBase: ModelBase{Weight: 0.5}},
		Aggregate: AggregateParams{DominantCount: 11},
	})
	require.NoError(t, err)
	assert.Equal(t, 0.5, p.Trend.Weight)
	assert.Equal(t, 20, p.Trend.Window)
	assert.Equal(t, 11, p.Aggregate.DominantCount)
	assert.True(t, p.Aggregate.Forced())
	assert.True(t, p.LongStreak.IsDisabled())

	_, err = Resolve("nope", nil)
	assert.ErrorIs(t, err, ErrUnknownPreset)

	_, err = Resolve("", &Params{Performance: PerformanceParams{Floor: 2}})
	assert.Error(t, err)
}

func TestResolve_OverrideTurnsBoolsOff(t *testing.T) {
	p, err := Resolve(PresetClassic, &Params{
		LongStreak: LongStreakParams{ModelBase: ModelBase{Disabled: lo.ToPtr(false)}},
		Aggregate:  AggregateParams{ForceChoice: lo.ToPtr(false)},
	})
	require.NoError(t, err)
	assert.False(t, p.LongStreak.IsDisabled())
	assert.False(t, p.Aggregate.Forced())
	assert.True(t, p.Cycle.IsDisabled(), "unset overrides keep the preset")

	e, err := New(p)
	require.NoError(t, err)
	names := lo.Map(e.models, func(m Model, _ int) string { return m.Name() })
	assert.Contains(t, names, ModelLongStreak)
	assert.NotContains(t, names, ModelCycle)

	// the preset itself is untouched
	assert.True(t, ClassicParams().LongStreak.IsDisabled())
}

func TestParams_ValidateAlternationPatterns(t *testing.T) {
	p := CanonicalParams()
	p.Alternation.Patterns = append(p.Alternation.Patterns, LiteralPattern{Sequence: "TQX", Predict: "T"})
	assert.Error(t, p.Validate())

	p = CanonicalParams()
	p.Alternation.Patterns = []LiteralPattern{{Sequence: "TT", Predict: "Y"}}
	assert.Error(t, p.Validate())
}
