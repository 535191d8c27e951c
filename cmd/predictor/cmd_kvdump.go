package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fystack/taixiu-predictor/pkg/common/constant"
	"github.com/fystack/taixiu-predictor/pkg/common/stringutils"
	"github.com/fystack/taixiu-predictor/pkg/kvstore"
)

var (
	dumpPrefixes []string
	dumpMaxBytes int
)

var kvDumpCmd = &cobra.Command{
	Use:   "kv-dump",
	Short: "Print the persisted history, ledger and latest prediction keys",
	RunE:  runKVDump,
}

func init() {
	kvDumpCmd.Flags().StringSliceVar(&dumpPrefixes, "prefix",
		[]string{constant.HistoryKeyPrefix, constant.LedgerKeyPrefix, constant.LatestKeyPrefix},
		"Key prefixes to list")
	kvDumpCmd.Flags().IntVar(&dumpMaxBytes, "max-bytes", 512, "Truncate values longer than this (0 prints everything)")
}

func runKVDump(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cfg.KVStore.Badger.Directory = stringutils.ExpandTildePath(cfg.KVStore.Badger.Directory)

	kv, err := kvstore.NewFromConfig(cfg.KVStore, cfg.Environment)
	if err != nil {
		return err
	}
	defer kv.Close()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "=== %s contents ===\n\n", kv.GetName())

	keyCount := 0
	for _, prefix := range dumpPrefixes {
		pairs, err := kv.List(prefix)
		if err != nil {
			return fmt.Errorf("list %s: %w", prefix, err)
		}
		for _, p := range pairs {
			keyCount++
			val := p.Value
			if dumpMaxBytes > 0 && len(val) > dumpMaxBytes {
				val = append(val[:dumpMaxBytes:dumpMaxBytes], "..."...)
			}
			fmt.Fprintf(out, "Key:   %s\n", p.Key)
			fmt.Fprintf(out, "Value: %s\n", val)
			fmt.Fprintf(out, "Size:  %d bytes\n", len(p.Value))
			fmt.Fprintln(out, "---")
		}
	}

	fmt.Fprintf(out, "\nTotal keys found: %d\n", keyCount)
	return nil
}
