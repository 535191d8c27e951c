package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/fystack/taixiu-predictor/pkg/common/config"
	"github.com/fystack/taixiu-predictor/pkg/common/constant"
	"github.com/fystack/taixiu-predictor/pkg/common/logger"
)

var (
	configPath string
	debug      bool
)

var rootCmd = &cobra.Command{
	Use:   "predictor",
	Short: "Tai/Xiu next-round prediction service",
	Long: `predictor ingests settled Tai/Xiu rounds from an upstream history API,
a websocket feed or a dice simulator, and predicts the next round with a
weighted ensemble of pattern models.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", constant.DefaultConfigPath, "Path to config file (empty for env and defaults only)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logs")

	rootCmd.AddCommand(serveCmd, predictCmd, replayCmd, simulateCmd, natsPrinterCmd, kvDumpCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads the config and initialises the logger from it. A missing
// default config file falls back to env and defaults.
func loadConfig() (config.Config, error) {
	path := configPath
	if path == constant.DefaultConfigPath {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			path = ""
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}

	level := logger.ParseLevel(cfg.LogLevel)
	if debug {
		level = slog.LevelDebug
	}
	logger.Init(&logger.Options{
		Level:      level,
		TimeFormat: time.RFC3339,
		NoColor:    cfg.Environment == constant.EnvProduction,
	})
	logger.Info("Config loaded", "environment", cfg.Environment, "stream", cfg.Stream, "source", cfg.Source.Type)
	return cfg, nil
}
