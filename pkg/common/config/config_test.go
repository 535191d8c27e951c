package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fystack/taixiu-predictor/pkg/common/enum"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_FileWithDefaults(t *testing.T) {
	path := writeConfig(t, `
environment: development
stream: sunwin
source:
  type: http
  url: "https://example.com/api/taixiu/history"
  poll_interval: 3s
kvstore:
  type: memory
predictor:
  preset: classic
  overrides:
    trend:
      weight: 0.3
    aggregate:
      trust_boosts:
        3: 1.75
server:
  port: 9000
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "sunwin", cfg.Stream)
	assert.Equal(t, enum.SourceTypeHTTP, cfg.Source.Type)
	assert.Equal(t, 3*time.Second, cfg.Source.PollInterval)
	assert.Equal(t, 3, cfg.Source.Client.MaxRetries, "default retry count")
	assert.Equal(t, 2*time.Second, cfg.Source.Client.RetryDelay)
	assert.Equal(t, enum.KVStoreTypeMemory, cfg.KVStore.Type)
	assert.Equal(t, 1000, cfg.History.Capacity)
	assert.Equal(t, 9000, cfg.Server.Port)

	p, err := cfg.Predictor.Params()
	require.NoError(t, err)
	assert.Equal(t, 0.3, p.Trend.Weight)
	assert.Equal(t, 1.75, p.Aggregate.TrustBoosts[3])
	assert.True(t, p.Aggregate.Forced(), "classic preset kept")
}

func TestLoad_OverrideEnablesPresetModel(t *testing.T) {
	path := writeConfig(t, `
source:
  type: simulate
predictor:
  preset: classic
  overrides:
    long_streak:
      disabled: false
    aggregate:
      force_choice: false
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	p, err := cfg.Predictor.Params()
	require.NoError(t, err)
	assert.False(t, p.LongStreak.IsDisabled())
	assert.False(t, p.Aggregate.Forced())
	assert.True(t, p.Alternation.IsDisabled())
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
environment: development
source:
  type: http
  url: "https://example.com/history"
`)
	t.Setenv("PREDICTOR_SOURCE_TYPE", "simulate")
	t.Setenv("PREDICTOR_SOURCE_SEED", "42")
	t.Setenv("PREDICTOR_SERVER_PORT", "7070")
	t.Setenv("PREDICTOR_ENGINE_PRESET", "advanced")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, enum.SourceTypeSimulate, cfg.Source.Type)
	assert.Equal(t, int64(42), cfg.Source.Seed)
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "advanced", cfg.Predictor.Preset)
}

func TestLoad_NoFileUsesDefaults(t *testing.T) {
	t.Setenv("PREDICTOR_SOURCE_TYPE", "simulate")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, enum.KVStoreTypeBadger, cfg.KVStore.Type)
	assert.False(t, cfg.NATS.Enabled)
}

func TestLoad_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad environment", "environment: staging\nsource:\n  type: simulate\n"},
		{"http without url", "source:\n  type: http\n"},
		{"unknown source", "source:\n  type: carrier-pigeon\n"},
		{"unknown preset", "source:\n  type: simulate\npredictor:\n  preset: turbo\n"},
		{"bad override", "source:\n  type: simulate\npredictor:\n  overrides:\n    performance:\n      floor: 3\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
