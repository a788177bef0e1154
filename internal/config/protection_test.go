package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "protection.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
whipsaw:
  max_cycles_per_period: 2
  protection_period_days: 14
grace_period:
  decay_rate: 0.9
score_threshold: 0.55
`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.Whipsaw.MaxCyclesPerPeriod)
	assert.Equal(t, 14, cfg.Whipsaw.ProtectionPeriodDays)
	assert.Equal(t, 0.9, cfg.Grace.DecayRate)
	assert.Equal(t, 0.55, cfg.ScoreThreshold)

	// Untouched sections keep their defaults
	assert.Equal(t, 3, cfg.Holding.MinimumHoldingDays)
	assert.Equal(t, 3, cfg.CoreAsset.MaxCoreAssets)
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "protection.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
grace_period:
  decay_rate: 1.5
score_threshold: 2.0
`), 0644))

	_, err := Load(path)
	require.Error(t, err)
	// Both violations show up in one pass
	assert.Contains(t, err.Error(), "decay_rate")
	assert.Contains(t, err.Error(), "score_threshold")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "protection.yaml")
	cfg := Default()
	cfg.ScoreThreshold = 0.42
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0.42, loaded.ScoreThreshold)
	assert.Equal(t, cfg.Whipsaw, loaded.Whipsaw)
}
