package kvstore

import (
	"fmt"

	"github.com/fystack/taixiu-predictor/pkg/infra"
)

type MigrateOptions struct {
	Prefixes []string
	// Verify reads every key back from the destination after writing it.
	Verify bool
	DryRun bool
	// Progress, when set, is called after each copied key.
	Progress func(done, total int)
}

type MigrateResult struct {
	Keys   []string
	Total  int
	Copied int
}

// Migrate copies the raw values under each prefix from src to dst. Values are
// copied as stored, so both stores must use the same codec.
func Migrate(src, dst infra.KVStore, opts MigrateOptions) (MigrateResult, error) {
	var res MigrateResult
	if len(opts.Prefixes) == 0 {
		return res, ErrPrefixEmpty
	}

	var allPairs []*infra.KVPair
	for _, prefix := range opts.Prefixes {
		pairs, err := src.List(prefix)
		if err != nil {
			return res, fmt.Errorf("listing keys with prefix %q: %w", prefix, err)
		}
		allPairs = append(allPairs, pairs...)
	}
	res.Total = len(allPairs)
	for _, kv := range allPairs {
		res.Keys = append(res.Keys, kv.Key)
	}
	if opts.DryRun {
		return res, nil
	}

	for i, kv := range allPairs {
		if err := dst.Set(kv.Key, string(kv.Value)); err != nil {
			return res, fmt.Errorf("setting key %q: %w", kv.Key, err)
		}
		res.Copied++

		if opts.Verify {
			got, err := dst.Get(kv.Key)
			if err != nil {
				return res, fmt.Errorf("verifying key %q: %w", kv.Key, err)
			}
			if got != string(kv.Value) {
				return res, fmt.Errorf("verification failed for key %q", kv.Key)
			}
		}
		if opts.Progress != nil {
			opts.Progress(i+1, res.Total)
		}
	}
	return res, nil
}
