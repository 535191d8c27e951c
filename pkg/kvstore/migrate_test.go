package kvstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fystack/taixiu-predictor/pkg/infra"
)

func seedStore(t *testing.T) *MemoryStore {
	t.Helper()
	src := NewMemoryStore(nil)
	require.NoError(t, src.SetAny("history_sunwin", []int{1, 2, 3}))
	require.NoError(t, src.SetAny("ledger_sunwin", map[string]int{"trend": 1}))
	require.NoError(t, src.Set("unrelated", "x"))
	return src
}

func TestMigrate(t *testing.T) {
	src := seedStore(t)
	dst, err := NewBadgerStore("", "taixiu", infra.JSON)
	require.NoError(t, err)
	defer dst.Close()

	var calls int
	res, err := Migrate(src, dst, MigrateOptions{
		Prefixes: []string{"history_", "ledger_"},
		Verify:   true,
		Progress: func(done, total int) {
			calls++
			assert.Equal(t, 2, total)
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Total)
	assert.Equal(t, 2, res.Copied)
	assert.Equal(t, 2, calls)

	var got []int
	found, err := dst.GetAny("history_sunwin", &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []int{1, 2, 3}, got)

	_, err = dst.Get("unrelated")
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestMigrate_DryRun(t *testing.T) {
	src := seedStore(t)
	dst := NewMemoryStore(nil)

	res, err := Migrate(src, dst, MigrateOptions{Prefixes: []string{"history_"}, DryRun: true})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Total)
	assert.Zero(t, res.Copied)
	assert.Equal(t, []string{"history_sunwin"}, res.Keys)

	_, err = dst.Get("history_sunwin")
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestMigrate_RequiresPrefix(t *testing.T) {
	_, err := Migrate(NewMemoryStore(nil), NewMemoryStore(nil), MigrateOptions{})
	assert.ErrorIs(t, err, ErrPrefixEmpty)
}

func TestMigrate_DestinationClosed(t *testing.T) {
	dst := NewMemoryStore(nil)
	require.NoError(t, dst.Close())
	_, err := Migrate(seedStore(t), dst, MigrateOptions{Prefixes: []string{"history_"}})
	assert.ErrorIs(t, err, ErrStoreClosed)
}
