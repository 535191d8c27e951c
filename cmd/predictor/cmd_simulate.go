package main

import (
	"encoding/json"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/fystack/taixiu-predictor/internal/game"
	"github.com/fystack/taixiu-predictor/pkg/common/logger"
)

var (
	simRounds  int
	simSeed    int64
	simFirst   int64
	simOutFile string
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Roll fair dice and write a history payload",
	Long: `Roll a seeded sequence of fair three-dice rounds and write it in the
upstream history format, ready for replay.

Example usage:
  predictor simulate --rounds 2000 --seed 42 --out history.json
  predictor simulate --rounds 2000 | predictor replay --file /dev/stdin`,
	RunE: runSimulate,
}

func init() {
	simulateCmd.Flags().IntVar(&simRounds, "rounds", 1000, "Number of rounds")
	simulateCmd.Flags().Int64Var(&simSeed, "seed", 0, "RNG seed (0 picks one)")
	simulateCmd.Flags().Int64Var(&simFirst, "first-session", 1, "Id of the first round")
	simulateCmd.Flags().StringVar(&simOutFile, "out", "", "Output file (default: stdout)")
}

type historyPayload struct {
	History []game.Session `json:"history"`
}

func runSimulate(cmd *cobra.Command, args []string) error {
	seed := simSeed
	if seed == 0 {
		s, err := game.NewSeed()
		if err != nil {
			return err
		}
		seed = s
	}

	var out io.Writer = os.Stdout
	if simOutFile != "" {
		f, err := os.Create(simOutFile)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}

	sessions := game.NewRoller(seed, simFirst).RollN(simRounds)
	logger.Info("Simulated rounds", "rounds", len(sessions), "seed", seed)

	enc := json.NewEncoder(out)
	enc.SetEscapeHTML(false)
	return enc.Encode(historyPayload{History: sessions})
}
