package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_MissingFileYieldsDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "fixwise.db", cfg.Store.Path)
	assert.Equal(t, 4, cfg.Batch.Workers)
	assert.Empty(t, cfg.Engine.EnabledLayers)
	assert.Equal(t, time.Duration(0), cfg.LayerTimeout())
}

func TestLoadConfig_ReadsYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fixwise.yaml")
	yaml := `
engine:
  enabled_layers: [1, 2, 4]
  timeout_ms_per_layer: 2500
  max_growth_ratio: 0.3
  apply_learned: true
store:
  path: /var/lib/fixwise/rules.db
batch:
  workers: 8
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2, 4}, cfg.Engine.EnabledLayers)
	assert.Equal(t, 2500*time.Millisecond, cfg.LayerTimeout())
	assert.InDelta(t, 0.3, cfg.Engine.MaxGrowthRatio, 1e-9)
	assert.True(t, cfg.Engine.ApplyLearned)
	assert.Equal(t, "/var/lib/fixwise/rules.db", cfg.Store.Path)
	assert.Equal(t, 8, cfg.Batch.Workers)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("FIXWISE_DB", "/tmp/override.db")
	t.Setenv("FIXWISE_WORKERS", "16")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "/tmp/override.db", cfg.Store.Path)
	assert.Equal(t, 16, cfg.Batch.Workers)
}

func TestLoadConfig_IgnoresBadWorkerEnv(t *testing.T) {
	t.Setenv("FIXWISE_WORKERS", "not-a-number")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Batch.Workers)
}

func TestLoadConfig_RejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("engine: [not: a: map"), 0o644))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}
