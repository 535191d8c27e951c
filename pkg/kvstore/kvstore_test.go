package kvstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fystack/taixiu-predictor/pkg/common/config"
	"github.com/fystack/taixiu-predictor/pkg/common/enum"
	"github.com/fystack/taixiu-predictor/pkg/infra"
)

type record struct {
	Session int64  `json:"session"`
	Result  string `json:"result"`
}

func stores(t *testing.T) map[string]infra.KVStore {
	t.Helper()
	badgerStore, err := NewBadgerStore("", "taixiu", infra.JSON)
	require.NoError(t, err)
	t.Cleanup(func() { _ = badgerStore.Close() })

	return map[string]infra.KVStore{
		"badger": badgerStore,
		"memory": NewMemoryStore(infra.JSON),
	}
}

func TestStore_SetGet(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Set("latest", "1001"))
			v, err := s.Get("latest")
			require.NoError(t, err)
			assert.Equal(t, "1001", v)

			_, err = s.Get("missing")
			assert.ErrorIs(t, err, ErrKeyNotFound)

			assert.ErrorIs(t, s.Set("", "x"), ErrKeyEmpty)
		})
	}
}

func TestStore_SetAnyGetAny(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			in := record{Session: 42, Result: "Tài"}
			require.NoError(t, s.SetAny("history_sunwin", in))

			var out record
			found, err := s.GetAny("history_sunwin", &out)
			require.NoError(t, err)
			assert.True(t, found)
			assert.Equal(t, in, out)

			found, err = s.GetAny("history_other", &out)
			require.NoError(t, err)
			assert.False(t, found)

			assert.ErrorIs(t, s.SetAny("k", nil), ErrNilValue)
		})
	}
}

func TestStore_ListAndDelete(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Set("ledger_a", "1"))
			require.NoError(t, s.Set("ledger_b", "2"))
			require.NoError(t, s.Set("history_a", "3"))

			pairs, err := s.List("ledger_")
			require.NoError(t, err)
			require.Len(t, pairs, 2)
			assert.Equal(t, "ledger_a", pairs[0].Key)
			assert.Equal(t, []byte("2"), pairs[1].Value)

			require.NoError(t, s.Delete("ledger_a"))
			pairs, err = s.List("ledger_")
			require.NoError(t, err)
			assert.Len(t, pairs, 1)

			_, err = s.List("")
			assert.ErrorIs(t, err, ErrPrefixEmpty)
		})
	}
}

func TestMemoryStore_Closed(t *testing.T) {
	s := NewMemoryStore(nil)
	require.NoError(t, s.Close())
	assert.ErrorIs(t, s.Set("k", "v"), ErrStoreClosed)
	_, err := s.Get("k")
	assert.ErrorIs(t, err, ErrStoreClosed)
}

func TestNewFromConfig(t *testing.T) {
	s, err := NewFromConfig(config.KVStoreConfig{Type: enum.KVStoreTypeMemory}, "development")
	require.NoError(t, err)
	assert.Equal(t, "memory", s.GetName())

	s, err = NewFromConfig(config.KVStoreConfig{
		Type:   enum.KVStoreTypeBadger,
		Badger: config.BadgerConfig{Directory: t.TempDir(), Prefix: "taixiu"},
	}, "development")
	require.NoError(t, err)
	assert.Equal(t, "badger", s.GetName())
	require.NoError(t, s.Close())

	_, err = NewFromConfig(config.KVStoreConfig{Type: "etcd"}, "development")
	assert.Error(t, err)
}
