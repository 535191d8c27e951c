package worker

import (
	"context"
	"sync"
	"time"

	"github.com/fystack/taixiu-predictor/pkg/common/logger"
	"github.com/fystack/taixiu-predictor/pkg/events"
	"github.com/fystack/taixiu-predictor/pkg/infra"
	"github.com/fystack/taixiu-predictor/pkg/store/historystore"
)

const defaultShutdownTimeout = 30 * time.Second

type Manager struct {
	ctx          context.Context
	workers      []Worker
	kvstore      infra.KVStore
	historyStore historystore.Store
	emitter      events.Emitter
	closers      []namedCloser

	shutdownTimeout time.Duration
}

type namedCloser struct {
	name  string
	close func() error
}

func NewManager(
	ctx context.Context,
	kvstore infra.KVStore,
	historyStore historystore.Store,
	emitter events.Emitter,
) *Manager {
	return &Manager{
		ctx:             ctx,
		kvstore:         kvstore,
		historyStore:    historyStore,
		emitter:         emitter,
		shutdownTimeout: defaultShutdownTimeout,
	}
}

// Start launches all injected workers
func (m *Manager) Start() {
	for _, w := range m.workers {
		w.Start()
	}
}

// Stop shuts down all workers concurrently with a timeout, then closes resources.
func (m *Manager) Stop() {
	done := make(chan struct{})
	go func() {
		var wg sync.WaitGroup
		for _, w := range m.workers {
			if w != nil {
				wg.Add(1)
				go func(w Worker) {
					defer wg.Done()
					w.Stop()
				}(w)
			}
		}
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("All workers stopped")
	case <-time.After(m.shutdownTimeout):
		logger.Warn("Worker shutdown timed out, proceeding with resource cleanup",
			"timeout", m.shutdownTimeout)
	}

	if m.emitter != nil {
		m.closeResource("emitter", m.emitter, func() error { m.emitter.Close(); return nil })
	}
	for _, c := range m.closers {
		m.closeResource(c.name, c.close, c.close)
	}
	if m.historyStore != nil {
		m.closeResource("history store", m.historyStore, m.historyStore.Close)
	} else if m.kvstore != nil {
		m.closeResource("KV store", m.kvstore, m.kvstore.Close)
	}

	logger.Info("Manager stopped")
}

// closeResource is a helper to close resources with consistent error handling
func (m *Manager) closeResource(name string, resource interface{}, closer func() error) {
	if resource != nil {
		if err := closer(); err != nil {
			logger.Error("Failed to close "+name, "err", err)
		}
	}
}

// AddCloser registers an extra resource closed after the workers stop, in
// registration order and before the KV store.
func (m *Manager) AddCloser(name string, closer func() error) {
	m.closers = append(m.closers, namedCloser{name: name, close: closer})
}

// Inject workers into manager
func (m *Manager) AddWorkers(workers ...Worker) {
	m.workers = append(m.workers, workers...)
}
