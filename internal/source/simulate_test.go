package source

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fystack/taixiu-predictor/pkg/common/config"
	"github.com/fystack/taixiu-predictor/pkg/common/enum"
)

func TestSimSource_Deterministic(t *testing.T) {
	a := NewSimSource(7, 100, 20, 50)
	b := NewSimSource(7, 100, 20, 50)

	ha, err := a.Fetch(context.Background())
	require.NoError(t, err)
	hb, err := b.Fetch(context.Background())
	require.NoError(t, err)

	assert.Len(t, ha, 21, "backfill plus one settled round")
	assert.Equal(t, ha, hb)
	assert.Equal(t, int64(100), ha[0].ID)
	assert.Equal(t, int64(120), ha[len(ha)-1].ID)
	for _, s := range ha {
		assert.True(t, s.HasDice())
		assert.True(t, s.Outcome.Valid())
	}
}

func TestSimSource_Bounded(t *testing.T) {
	s := NewSimSource(1, 1, 0, 10)
	var last int
	for i := 0; i < 15; i++ {
		h, err := s.Fetch(context.Background())
		require.NoError(t, err)
		last = len(h)
	}
	assert.Equal(t, 10, last)
}

func TestSimSource_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewSimSource(1, 1, 0, 10).Fetch(ctx)
	assert.Error(t, err)
}

func TestNew(t *testing.T) {
	src, err := New(config.SourceConfig{Type: enum.SourceTypeSimulate, Seed: 3}, nil)
	require.NoError(t, err)
	_, ok := src.(Provider)
	assert.True(t, ok)

	src, err = New(config.SourceConfig{Type: enum.SourceTypeWebsocket, URL: "ws://localhost:1"}, nil)
	require.NoError(t, err)
	_, ok = src.(Streamer)
	assert.True(t, ok)

	src, err = New(config.SourceConfig{Type: enum.SourceTypeHTTP, URL: "http://localhost:1"}, nil)
	require.NoError(t, err)
	_, ok = src.(Provider)
	assert.True(t, ok)

	_, err = New(config.SourceConfig{Type: "ftp"}, nil)
	assert.Error(t, err)
}
