// Package replay feeds a recorded history through an engine one round at a
// time and scores every prediction against what actually came next.
package replay

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/samber/lo"

	"github.com/fystack/taixiu-predictor/internal/game"
	"github.com/fystack/taixiu-predictor/internal/predictor"
	"github.com/fystack/taixiu-predictor/internal/source"
)

// Tally counts directional calls and how many came true.
type Tally struct {
	Calls int `json:"calls"`
	Hits  int `json:"hits"`
}

func (t Tally) HitRate() float64 {
	if t.Calls == 0 {
		return 0
	}
	return float64(t.Hits) / float64(t.Calls)
}

func (t *Tally) add(hit bool) {
	t.Calls++
	if hit {
		t.Hits++
	}
}

type ModelReport struct {
	Name string `json:"name"`
	Tally
	Abstains int `json:"abstains"`
}

// Report summarises a replay. Waits counts rounds where the engine declined
// to pick a side. Models only covers full-aggregation rounds.
type Report struct {
	Rounds        int                       `json:"rounds"`
	Waits         int                       `json:"waits"`
	Overall       Tally                     `json:"overall"`
	ByStage       map[predictor.Stage]Tally `json:"by_stage"`
	ByRisk        map[predictor.Risk]Tally  `json:"by_risk"`
	Models        []ModelReport             `json:"models"`
	LongestMisses int                       `json:"longest_misses"`
}

type options struct {
	warmup int
	window int
}

type Option func(*options)

// WithWarmup skips scoring the first n rounds. The engine still sees them as
// history.
func WithWarmup(n int) Option {
	return func(o *options) { o.warmup = n }
}

// WithWindow limits the history handed to the engine to the last n rounds,
// like a live History of that capacity would.
func WithWindow(n int) Option {
	return func(o *options) { o.window = n }
}

// Run predicts round i from rounds [0, i) for every i and scores the result.
// The engine's ledger accumulates as it would live, so pass a fresh engine.
func Run(history []game.Session, engine *predictor.Engine, opts ...Option) Report {
	o := options{warmup: 1}
	for _, opt := range opts {
		opt(&o)
	}

	rep := Report{
		ByStage: make(map[predictor.Stage]Tally),
		ByRisk:  make(map[predictor.Risk]Tally),
	}
	models := make(map[string]*ModelReport)
	misses := 0

	for i := max(o.warmup, 1); i < len(history); i++ {
		start := 0
		if o.window > 0 && i > o.window {
			start = i - o.window
		}
		res := engine.Predict(history[start:i])
		actual := history[i].Outcome
		rep.Rounds++

		for _, v := range fullVotes(res) {
			m, ok := models[v.Model]
			if !ok {
				m = &ModelReport{Name: v.Model}
				models[v.Model] = m
			}
			if v.Abstained() {
				m.Abstains++
				continue
			}
			m.add(v.Prediction == actual)
		}

		if res.Waiting() {
			rep.Waits++
			continue
		}
		hit := res.Prediction == actual
		rep.Overall.add(hit)
		stage := rep.ByStage[res.Stage]
		stage.add(hit)
		rep.ByStage[res.Stage] = stage
		risk := rep.ByRisk[res.Risk]
		risk.add(hit)
		rep.ByRisk[res.Risk] = risk

		if hit {
			misses = 0
		} else {
			misses++
			rep.LongestMisses = max(rep.LongestMisses, misses)
		}
	}

	rep.Models = lo.Map(lo.Values(models), func(m *ModelReport, _ int) ModelReport { return *m })
	sort.Slice(rep.Models, func(i, j int) bool { return rep.Models[i].Name < rep.Models[j].Name })
	return rep
}

// fullVotes returns the sub-model votes of a full-aggregation round. Basic
// rounds carry a heuristic fallback vote that is not part of aggregation.
func fullVotes(res predictor.Result) []predictor.ModelVote {
	if res.Stage != predictor.StageFull {
		return nil
	}
	return res.Votes
}

// ReadHistory decodes a history payload as served by the upstream API.
func ReadHistory(r io.Reader) ([]game.Session, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	dec, err := source.DecodeHistory(b)
	if err != nil {
		return nil, err
	}
	if len(dec.Sessions) == 0 {
		return nil, source.ErrEmptyHistory
	}
	return dec.Sessions, nil
}

// Format renders a report as a small text table.
func (r Report) Format(w io.Writer) error {
	var b strings.Builder
	fmt.Fprintf(&b, "rounds: %d  waits: %d  overall: %d/%d (%.2f%%)  longest misses: %d\n",
		r.Rounds, r.Waits, r.Overall.Hits, r.Overall.Calls, r.Overall.HitRate()*100, r.LongestMisses)

	stages := lo.Keys(r.ByStage)
	sort.Slice(stages, func(i, j int) bool { return stages[i] < stages[j] })
	for _, s := range stages {
		t := r.ByStage[s]
		fmt.Fprintf(&b, "  stage %-18s %5d/%-5d %6.2f%%\n", s, t.Hits, t.Calls, t.HitRate()*100)
	}
	risks := lo.Keys(r.ByRisk)
	sort.Slice(risks, func(i, j int) bool { return risks[i] < risks[j] })
	for _, k := range risks {
		t := r.ByRisk[k]
		fmt.Fprintf(&b, "  risk  %-18s %5d/%-5d %6.2f%%\n", k, t.Hits, t.Calls, t.HitRate()*100)
	}
	for _, m := range r.Models {
		fmt.Fprintf(&b, "  model %-18s %5d/%-5d %6.2f%%  abstains %d\n", m.Name, m.Hits, m.Calls, m.HitRate()*100, m.Abstains)
	}
	_, err := io.WriteString(w, b.String())
	return err
}
