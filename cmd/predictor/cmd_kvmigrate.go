package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"

	"github.com/fystack/taixiu-predictor/pkg/common/config"
	"github.com/fystack/taixiu-predictor/pkg/common/stringutils"
	"github.com/fystack/taixiu-predictor/pkg/infra"
	"github.com/fystack/taixiu-predictor/pkg/kvstore"
)

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorBold   = "\033[1m"
)

var (
	migrateFile   string
	migrateDryRun bool
)

var kvMigrateCmd = &cobra.Command{
	Use:   "kv-migrate",
	Short: "Copy persisted history and ledgers between KV stores",
	Long: `Copy keys between KV stores, e.g. from the embedded badger store to a
shared redis when scaling out.

The migration file looks like:

  source:
    type: badger
    badger: {directory: data/badger, prefix: taixiu}
  destination:
    type: redis
    redis: {url: "localhost:6379", prefix: taixiu}
  prefixes: [history_, ledger_, latest_prediction_]
  verify: true`,
	RunE: runKVMigrate,
}

func init() {
	kvMigrateCmd.Flags().StringVar(&migrateFile, "file", "", "YAML migration file")
	kvMigrateCmd.Flags().BoolVar(&migrateDryRun, "dry-run", false, "Print the keys without writing")
	_ = kvMigrateCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(kvMigrateCmd)
}

type MigrationConfig struct {
	Source      config.KVStoreConfig `yaml:"source"`
	Destination config.KVStoreConfig `yaml:"destination"`
	Prefixes    []string             `yaml:"prefixes"`
	Verify      bool                 `yaml:"verify"`
}

func loadMigrationConfig(path string) (*MigrationConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %q: %w", path, err)
	}
	var cfg MigrationConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing YAML config: %w", err)
	}
	if len(cfg.Prefixes) == 0 {
		return nil, fmt.Errorf("at least one prefix is required in config")
	}
	return &cfg, nil
}

func openStore(cfg config.KVStoreConfig, environment string) (infra.KVStore, error) {
	cfg.Badger.Directory = stringutils.ExpandTildePath(cfg.Badger.Directory)
	return kvstore.NewFromConfig(cfg, environment)
}

func runKVMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := loadMigrationConfig(migrateFile)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "%s%sConfiguration:%s\n", colorBold, colorBlue, colorReset)
	fmt.Fprintf(out, "  Source:      %s%s%s\n", colorYellow, cfg.Source.Type, colorReset)
	fmt.Fprintf(out, "  Destination: %s%s%s\n", colorYellow, cfg.Destination.Type, colorReset)
	fmt.Fprintf(out, "  Prefixes:    %s%s%s\n", colorYellow, strings.Join(cfg.Prefixes, ", "), colorReset)
	fmt.Fprintf(out, "  Verify:      %s%v%s\n", colorYellow, cfg.Verify, colorReset)
	if migrateDryRun {
		fmt.Fprintf(out, "  Mode:        %sDRY RUN%s\n", colorRed, colorReset)
	}

	env := os.Getenv("PREDICTOR_ENVIRONMENT")
	src, err := openStore(cfg.Source, env)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer src.Close()
	dst, err := openStore(cfg.Destination, env)
	if err != nil {
		return fmt.Errorf("open destination: %w", err)
	}
	defer dst.Close()

	start := time.Now()
	res, err := kvstore.Migrate(src, dst, kvstore.MigrateOptions{
		Prefixes: cfg.Prefixes,
		Verify:   cfg.Verify,
		DryRun:   migrateDryRun,
		Progress: func(done, total int) {
			if done%100 == 0 || done == total {
				fmt.Fprintf(out, "\r  Progress: %s (%d/%d)", progressBar(float64(done)/float64(total)*100, 20), done, total)
			}
		},
	})
	if res.Copied > 0 {
		fmt.Fprintln(out)
	}
	if err != nil {
		return err
	}

	if migrateDryRun {
		for i, k := range res.Keys {
			if i >= 10 {
				fmt.Fprintf(out, "  ... and %d more keys\n", len(res.Keys)-10)
				break
			}
			fmt.Fprintf(out, "  %s\n", k)
		}
		fmt.Fprintf(out, "\n%s%sWould migrate %d keys, no data was modified%s\n", colorBold, colorYellow, res.Total, colorReset)
		return nil
	}
	fmt.Fprintf(out, "\n%s%sMigrated %d/%d keys in %s%s\n",
		colorBold, colorGreen, res.Copied, res.Total, time.Since(start).Round(time.Millisecond), colorReset)
	return nil
}

func progressBar(progress float64, width int) string {
	filled := int(progress / 100 * float64(width))
	return "[" + strings.Repeat("█", filled) + strings.Repeat("░", width-filled) + "]"
}
