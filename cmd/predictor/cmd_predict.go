package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fystack/taixiu-predictor/internal/game"
	"github.com/fystack/taixiu-predictor/internal/predictor"
	"github.com/fystack/taixiu-predictor/internal/worker"
	"github.com/fystack/taixiu-predictor/pkg/events"
)

var predictDetail bool

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Fetch the upstream history once and print the next-round prediction",
	Long: `Fetch the configured history source once, predict the round after the
latest session and print it in the API response format.

Example usage:
  predictor predict --config configs/config.yaml
  predictor predict --detail`,
	RunE: runPredict,
}

func init() {
	predictCmd.Flags().BoolVar(&predictDetail, "detail", false, "Include per-model votes")
}

func runPredict(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	provider, _, err := newSource(cfg)
	if err != nil {
		return err
	}
	if provider == nil {
		return errors.New("predict needs a polling source (http or simulate)")
	}

	sessions, err := provider.Fetch(cmd.Context())
	if err != nil {
		return fmt.Errorf("fetch history: %w", err)
	}
	history := game.NewHistory(cfg.History.Capacity)
	history.InsertMany(sessions)
	snapshot := history.Snapshot()
	latest, ok := history.Latest()
	if !ok {
		return errors.New("no usable sessions")
	}

	engine, err := newEngine(cfg, predictor.NewMemoryLedger())
	if err != nil {
		return err
	}
	res := engine.Predict(snapshot)

	data := NewPredictionData(worker.Snapshot{
		Latest: latest,
		Result: res,
		Event:  events.NewPredictionEvent(latest, res),
	})
	if predictDetail {
		data.Detail = &res
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(APIResponse{Status: "success", Message: msgPredictionOK, Data: data})
}
