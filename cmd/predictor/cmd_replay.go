package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fystack/taixiu-predictor/internal/game"
	"github.com/fystack/taixiu-predictor/internal/predictor"
	"github.com/fystack/taixiu-predictor/internal/replay"
)

var (
	replayFile   string
	replayWarmup int
	replayWindow int
	replayFormat string
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Backtest the engine over a recorded history",
	Long: `Feed a recorded history through the engine one round at a time and
report aggregate, per-stage, per-risk and per-model hit rates.

Without --file the configured source is fetched once.

Example usage:
  predictor replay --file history.json
  predictor replay --file history.json --window 1000 --format json`,
	RunE: runReplay,
}

func init() {
	replayCmd.Flags().StringVar(&replayFile, "file", "", "History payload file ({\"history\":[...]})")
	replayCmd.Flags().IntVar(&replayWarmup, "warmup", 1, "Rounds fed to the engine before scoring starts")
	replayCmd.Flags().IntVar(&replayWindow, "window", 0, "Limit the engine to the last N rounds (0 uses history.capacity)")
	replayCmd.Flags().StringVar(&replayFormat, "format", "table", "Output format: table, json")
}

func runReplay(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	var history []game.Session
	if replayFile != "" {
		f, err := os.Open(replayFile)
		if err != nil {
			return err
		}
		defer f.Close()
		if history, err = replay.ReadHistory(f); err != nil {
			return err
		}
	} else {
		provider, _, err := newSource(cfg)
		if err != nil {
			return err
		}
		if provider == nil {
			return errors.New("replay needs --file or a polling source")
		}
		if history, err = provider.Fetch(cmd.Context()); err != nil {
			return fmt.Errorf("fetch history: %w", err)
		}
	}

	engine, err := newEngine(cfg, predictor.NewMemoryLedger())
	if err != nil {
		return err
	}
	window := replayWindow
	if window == 0 {
		window = cfg.History.Capacity
	}
	rep := replay.Run(history, engine, replay.WithWarmup(replayWarmup), replay.WithWindow(window))

	switch replayFormat {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	default:
		return rep.Format(os.Stdout)
	}
}
