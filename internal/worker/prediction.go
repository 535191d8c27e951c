package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/fystack/taixiu-predictor/internal/game"
	"github.com/fystack/taixiu-predictor/internal/metrics"
	"github.com/fystack/taixiu-predictor/internal/predictor"
	"github.com/fystack/taixiu-predictor/internal/source"
	"github.com/fystack/taixiu-predictor/pkg/common/logger"
	"github.com/fystack/taixiu-predictor/pkg/events"
	"github.com/fystack/taixiu-predictor/pkg/repository"
	"github.com/fystack/taixiu-predictor/pkg/store/historystore"
	"github.com/fystack/taixiu-predictor/pkg/store/ledgerstore"
)

const streamBuffer = 64

var ErrNoSource = errors.New("worker has no history source")

// Deps groups what a PredictionWorker needs. Only Stream, Engine, Ledger and
// one of Provider or Streamer are required; the rest are skipped when nil.
type Deps struct {
	Stream   string
	Provider source.Provider
	Streamer source.Streamer
	Engine   *predictor.Engine
	Ledger   *predictor.MemoryLedger
	History  *game.History

	HistoryStore historystore.Store
	LedgerStore  ledgerstore.Store
	Emitter      events.Emitter
	Archive      repository.PredictionArchive
	Metrics      *metrics.Metrics

	PollInterval time.Duration
	// LedgerRetention keeps ledger entries this many sessions behind the
	// newest one, further capped by the oldest session still in History.
	LedgerRetention int
}

// PredictionWorker ingests sessions, predicts the next round and fans the
// result out to storage, NATS, metrics and the archive.
type PredictionWorker struct {
	ctx    context.Context
	cancel context.CancelFunc
	logger *slog.Logger
	deps   Deps
	wg     sync.WaitGroup

	// tickMu serialises ingest so each batch is predicted once.
	tickMu sync.Mutex

	mu      sync.RWMutex
	latest  *Snapshot
	lastErr error
}

func NewPredictionWorker(ctx context.Context, deps Deps) (*PredictionWorker, error) {
	if deps.Engine == nil || deps.Ledger == nil {
		return nil, errors.New("worker needs an engine and its ledger")
	}
	if deps.Provider == nil && deps.Streamer == nil {
		return nil, ErrNoSource
	}
	if deps.History == nil {
		deps.History = game.NewHistory(game.DefaultHistoryCapacity)
	}
	if deps.PollInterval <= 0 {
		deps.PollInterval = 5 * time.Second
	}

	ctx, cancel := context.WithCancel(ctx)
	w := &PredictionWorker{
		ctx:    ctx,
		cancel: cancel,
		logger: logger.With(slog.String("stream", deps.Stream)),
		deps:   deps,
	}
	if err := w.restore(); err != nil {
		cancel()
		return nil, err
	}
	return w, nil
}

// restore reloads history, ledger and the last prediction saved by a previous
// run.
func (w *PredictionWorker) restore() error {
	if hs := w.deps.HistoryStore; hs != nil {
		sessions, err := hs.LoadHistory(w.deps.Stream)
		if err != nil {
			return fmt.Errorf("load history: %w", err)
		}
		n := w.deps.History.InsertMany(sessions)

		latest, err := hs.LoadLatest(w.deps.Stream)
		if err != nil {
			return fmt.Errorf("load latest prediction: %w", err)
		}
		if latest != nil {
			if s, ok := w.deps.History.Latest(); ok && s.ID == latest.SessionID {
				w.latest = &Snapshot{Latest: s, Event: *latest, Result: resultFromEvent(*latest), At: time.Now()}
			}
		}
		w.logger.Info("Restored history", "sessions", n)
	}
	if ls := w.deps.LedgerStore; ls != nil {
		n, err := ls.Restore(w.deps.Stream, w.deps.Ledger)
		if err != nil {
			return fmt.Errorf("restore ledger: %w", err)
		}
		w.logger.Info("Restored vote ledger", "entries", n)
	}
	return nil
}

func resultFromEvent(ev events.PredictionEvent) predictor.Result {
	return predictor.Result{
		SessionID:        ev.SessionID,
		NextSessionID:    ev.NextSessionID,
		Prediction:       ev.Prediction,
		Label:            ev.Label,
		Confidence:       ev.Confidence,
		Explanation:      ev.Explanation,
		BreakProbability: ev.BreakProbability,
		Risk:             ev.Risk,
		Stage:            ev.Stage,
	}
}

func (w *PredictionWorker) Start() {
	if w.deps.Streamer != nil {
		w.logger.Info("Starting prediction worker", "source", w.deps.Streamer.Name())
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			w.runStream()
		}()
		return
	}
	w.logger.Info("Starting prediction worker", "source", w.deps.Provider.Name(), "poll_interval", w.deps.PollInterval)
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.run()
	}()
}

// Stop cancels the loops and waits for them to exit.
func (w *PredictionWorker) Stop() {
	w.cancel()
	w.wg.Wait()
	w.logger.Info("Worker stopped")
}

// run polls the provider at PollInterval, starting immediately.
func (w *PredictionWorker) run() {
	ticker := time.NewTicker(w.deps.PollInterval)
	defer ticker.Stop()

	for {
		if err := w.Tick(w.ctx); err != nil && w.ctx.Err() == nil {
			w.logTickError(err)
		}
		select {
		case <-w.ctx.Done():
			w.logger.Info("Context done, stopping worker loop")
			return
		case <-ticker.C:
		}
	}
}

func (w *PredictionWorker) runStream() {
	sessions := make(chan game.Session, streamBuffer)
	streamErr := make(chan error, 1)
	go func() {
		streamErr <- w.deps.Streamer.Stream(w.ctx, sessions)
	}()

	for {
		select {
		case <-w.ctx.Done():
			<-streamErr
			w.logger.Info("Context done, stopping worker loop")
			return
		case err := <-streamErr:
			if err != nil {
				w.logTickError(err)
			}
			return
		case s := <-sessions:
			batch := []game.Session{s}
		drain:
			for {
				select {
				case more := <-sessions:
					batch = append(batch, more)
				default:
					break drain
				}
			}
			if _, err := w.Ingest(batch); err != nil {
				w.logTickError(err)
			}
		}
	}
}

func (w *PredictionWorker) logTickError(err error) {
	w.setErr(err)
	if errors.Is(err, source.ErrEmptyHistory) {
		w.logger.Warn("Upstream returned empty history")
	} else {
		w.logger.Error("Worker tick failed", "err", err)
	}
	if w.deps.Metrics != nil {
		w.deps.Metrics.ObserveFetchError(w.deps.Stream, w.sourceName())
	}
	if w.deps.Emitter != nil {
		_ = w.deps.Emitter.EmitError(w.deps.Stream, err)
	}
}

func (w *PredictionWorker) sourceName() string {
	if w.deps.Provider != nil {
		return w.deps.Provider.Name()
	}
	return w.deps.Streamer.Name()
}

// Tick fetches the provider once and predicts when new sessions arrived.
func (w *PredictionWorker) Tick(ctx context.Context) error {
	if w.deps.Provider == nil {
		return ErrNoSource
	}
	sessions, err := w.deps.Provider.Fetch(ctx)
	if err != nil {
		return err
	}
	_, err = w.Ingest(sessions)
	return err
}

// Ingest merges sessions into History and, if anything changed or no
// prediction exists yet, predicts the next round. It returns the number of
// new sessions.
func (w *PredictionWorker) Ingest(sessions []game.Session) (int, error) {
	w.tickMu.Lock()
	defer w.tickMu.Unlock()

	added := 0
	var fresh []game.Session
	for _, s := range sessions {
		if w.deps.History.Insert(s) {
			added++
			fresh = append(fresh, s)
		}
	}
	if w.deps.Metrics != nil {
		w.deps.Metrics.ObserveIngest(w.deps.Stream, added, w.deps.History.Len())
	}

	prev, hasPrev := w.Latest()
	if added == 0 && hasPrev {
		return 0, nil
	}
	history := w.deps.History.Snapshot()
	if len(history) == 0 {
		return 0, source.ErrEmptyHistory
	}

	w.settle(prev, hasPrev, fresh)

	start := time.Now()
	res := w.deps.Engine.Predict(history)
	took := time.Since(start)

	latest := history[len(history)-1]
	snap := Snapshot{
		Latest: latest,
		Result: res,
		Event:  events.NewPredictionEvent(latest, res),
		At:     time.Now(),
	}
	w.mu.Lock()
	w.latest = &snap
	w.lastErr = nil
	w.mu.Unlock()

	if w.deps.Metrics != nil {
		w.deps.Metrics.ObservePrediction(w.deps.Stream, res, took)
	}
	w.logger.Info("Predicted next session",
		"session", res.NextSessionID,
		"label", res.Label,
		"confidence", fmt.Sprintf("%.2f", res.Confidence),
		"stage", res.Stage,
		"risk", res.Risk,
		"new_sessions", added,
	)

	w.pruneLedger(latest.ID)
	w.persist(history, snap)
	w.publish(fresh, snap)
	return added, nil
}

// settle scores the previous prediction against the session it targeted and
// settles archived predictions for every new session.
func (w *PredictionWorker) settle(prev Snapshot, hasPrev bool, fresh []game.Session) {
	for _, s := range fresh {
		if hasPrev && w.deps.Metrics != nil && s.ID == prev.Result.NextSessionID && prev.Result.Prediction.Valid() {
			w.deps.Metrics.ObserveSettled(w.deps.Stream, s.Outcome == prev.Result.Prediction)
		}
		if w.deps.Archive != nil {
			if _, err := w.deps.Archive.Settle(w.ctx, w.deps.Stream, s); err != nil {
				w.logger.Warn("Failed to settle archived prediction", "session", s.ID, "err", err)
			}
		}
	}
}

func (w *PredictionWorker) pruneLedger(latestID int64) {
	minID := w.deps.History.OldestID()
	if r := int64(w.deps.LedgerRetention); r > 0 {
		minID = max(minID, latestID-r)
	}
	if n := w.deps.Ledger.Prune(minID); n > 0 {
		w.logger.Debug("Pruned vote ledger", "entries", n, "min_session", minID)
	}
}

func (w *PredictionWorker) persist(history []game.Session, snap Snapshot) {
	if hs := w.deps.HistoryStore; hs != nil {
		if err := hs.SaveHistory(w.deps.Stream, history); err != nil {
			w.logger.Error("Failed to save history", "err", err)
		}
		if err := hs.SaveLatest(w.deps.Stream, snap.Event); err != nil {
			w.logger.Error("Failed to save latest prediction", "err", err)
		}
	}
	if ls := w.deps.LedgerStore; ls != nil {
		if err := ls.Save(w.deps.Stream, w.deps.Ledger.Snapshot()); err != nil {
			w.logger.Error("Failed to save vote ledger", "err", err)
		}
	}
}

func (w *PredictionWorker) publish(fresh []game.Session, snap Snapshot) {
	if e := w.deps.Emitter; e != nil {
		for _, s := range fresh {
			if err := e.EmitSession(w.deps.Stream, s); err != nil {
				w.logger.Warn("Failed to emit session", "session", s.ID, "err", err)
			}
		}
		if err := e.EmitPrediction(w.deps.Stream, snap.Event); err != nil {
			w.logger.Warn("Failed to emit prediction", "session", snap.Event.SessionID, "err", err)
		}
	}
	if a := w.deps.Archive; a != nil {
		if err := a.Archive(w.ctx, w.deps.Stream, snap.Event); err != nil {
			w.logger.Warn("Failed to archive prediction", "session", snap.Event.SessionID, "err", err)
		}
	}
}

// Latest returns the most recent prediction.
func (w *PredictionWorker) Latest() (Snapshot, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.latest == nil {
		return Snapshot{}, false
	}
	return *w.latest, true
}

// History returns a copy of the retained sessions.
func (w *PredictionWorker) History() []game.Session {
	return w.deps.History.Snapshot()
}

// LastError is the error of the most recent failed tick, cleared by the next
// successful prediction.
func (w *PredictionWorker) LastError() error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.lastErr
}

func (w *PredictionWorker) setErr(err error) {
	w.mu.Lock()
	w.lastErr = err
	w.mu.Unlock()
}

func (w *PredictionWorker) Stream() string {
	return w.deps.Stream
}
