package main

import (
	"context"
	"fmt"

	"github.com/fystack/taixiu-predictor/internal/game"
	"github.com/fystack/taixiu-predictor/internal/metrics"
	"github.com/fystack/taixiu-predictor/internal/predictor"
	"github.com/fystack/taixiu-predictor/internal/source"
	"github.com/fystack/taixiu-predictor/internal/worker"
	"github.com/fystack/taixiu-predictor/pkg/common/config"
	"github.com/fystack/taixiu-predictor/pkg/common/logger"
	"github.com/fystack/taixiu-predictor/pkg/common/stringutils"
	"github.com/fystack/taixiu-predictor/pkg/events"
	"github.com/fystack/taixiu-predictor/pkg/infra"
	"github.com/fystack/taixiu-predictor/pkg/kvstore"
	"github.com/fystack/taixiu-predictor/pkg/repository"
	"github.com/fystack/taixiu-predictor/pkg/store/historystore"
	"github.com/fystack/taixiu-predictor/pkg/store/ledgerstore"
)

// app is everything serve wires together.
type app struct {
	cfg     config.Config
	worker  *worker.PredictionWorker
	manager *worker.Manager
	metrics *metrics.Metrics
	archive repository.PredictionArchive
}

func newEngine(cfg config.Config, ledger *predictor.MemoryLedger) (*predictor.Engine, error) {
	params, err := cfg.Predictor.Params()
	if err != nil {
		return nil, err
	}
	return predictor.New(params, predictor.WithLedger(ledger))
}

func newSource(cfg config.Config) (source.Provider, source.Streamer, error) {
	src, err := source.New(cfg.Source, logger.With("stream", cfg.Stream))
	if err != nil {
		return nil, nil, err
	}
	provider, _ := src.(source.Provider)
	streamer, _ := src.(source.Streamer)
	return provider, streamer, nil
}

func newApp(ctx context.Context, cfg config.Config) (*app, error) {
	cfg.KVStore.Badger.Directory = stringutils.ExpandTildePath(cfg.KVStore.Badger.Directory)
	kv, err := kvstore.NewFromConfig(cfg.KVStore, cfg.Environment)
	if err != nil {
		return nil, fmt.Errorf("open kvstore: %w", err)
	}
	logger.Info("KV store ready", "type", cfg.KVStore.Type, "name", kv.GetName())

	hs := historystore.NewHistoryStore(kv)
	ls := ledgerstore.NewLedgerStore(kv)

	ledger := predictor.NewMemoryLedger()
	engine, err := newEngine(cfg, ledger)
	if err != nil {
		_ = kv.Close()
		return nil, fmt.Errorf("build engine: %w", err)
	}

	provider, streamer, err := newSource(cfg)
	if err != nil {
		_ = kv.Close()
		return nil, err
	}

	var emitter events.Emitter
	var natsClose func() error
	if cfg.NATS.Enabled {
		nc, err := infra.GetNATSConnection(cfg.NATS, cfg.Environment)
		if err != nil {
			_ = kv.Close()
			return nil, fmt.Errorf("connect nats: %w", err)
		}
		mq, err := infra.NewNATsMessageQueueManager(ctx, cfg.NATS.StreamName, []string{cfg.NATS.SubjectPrefix + ".>"}, nc)
		if err != nil {
			nc.Close()
			_ = kv.Close()
			return nil, err
		}
		emitter = events.NewEmitter(mq.NewProducer(), cfg.NATS.SubjectPrefix)
		natsClose = func() error { nc.Close(); return nil }
	}

	var archive repository.PredictionArchive
	if cfg.Database.URL != "" {
		db, err := infra.NewDBConnection(cfg.Database, cfg.Environment)
		if err != nil {
			_ = kv.Close()
			return nil, fmt.Errorf("connect database: %w", err)
		}
		if err := repository.Migrate(db); err != nil {
			_ = kv.Close()
			return nil, fmt.Errorf("migrate database: %w", err)
		}
		archive = repository.NewPredictionArchive(db)
		logger.Info("Prediction archive enabled", "database", stringutils.Redact(cfg.Database.URL))
	}

	m := metrics.New()
	w, err := worker.NewPredictionWorker(ctx, worker.Deps{
		Stream:          cfg.Stream,
		Provider:        provider,
		Streamer:        streamer,
		Engine:          engine,
		Ledger:          ledger,
		History:         game.NewHistory(cfg.History.Capacity),
		HistoryStore:    hs,
		LedgerStore:     ls,
		Emitter:         emitter,
		Archive:         archive,
		Metrics:         m,
		PollInterval:    cfg.Source.PollInterval,
		LedgerRetention: cfg.History.LedgerRetention,
	})
	if err != nil {
		_ = kv.Close()
		return nil, err
	}

	manager := worker.NewManager(ctx, kv, hs, emitter)
	if natsClose != nil {
		manager.AddCloser("NATS connection", natsClose)
	}
	manager.AddWorkers(w)

	return &app{cfg: cfg, worker: w, manager: manager, metrics: m, archive: archive}, nil
}
