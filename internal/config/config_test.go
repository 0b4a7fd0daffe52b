package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
symbol: BTCUSDT
fees:
  taker_rate: 0.0004
  maker_rate: 0.0002
  funding_rate: 0.0001
thresholds:
  whale_qty_btc: 1.0
modes:
  - name: trend_rider
    style: trend
    entry_cooldown_sec: 60
    base_leverage_cap: 15
    base_position_pct: 5
    max_size_multiplier: 1.5
`

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestNewLoaderParsesModesAndFees(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, sampleConfig)

	loader, err := NewLoader(path)
	require.NoError(t, err)

	cfg, version := loader.Current()
	assert.Equal(t, "BTCUSDT", cfg.Symbol)
	assert.Equal(t, 0.0004, cfg.Fees.TakerRate)
	assert.Equal(t, int64(1), version)

	modes, err := cfg.ModeConfigs()
	require.NoError(t, err)
	require.Len(t, modes, 1)
	assert.Equal(t, "trend_rider", modes[0].Name)
	assert.Equal(t, 60*time.Second, modes[0].EntryCooldown)
}

func TestReloadIfUpdatedOnlyReparsesOnMtimeChange(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, sampleConfig)

	loader, err := NewLoader(path)
	require.NoError(t, err)

	updated, err := loader.ReloadIfUpdated()
	require.NoError(t, err)
	assert.False(t, updated, "an untouched file must not trigger a reparse")

	// Bump the mtime forward so the loader sees a real change, even on
	// filesystems with coarse mtime resolution.
	future := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(path, future, future))

	updated, err = loader.ReloadIfUpdated()
	require.NoError(t, err)
	assert.True(t, updated)

	_, version := loader.Current()
	assert.Equal(t, int64(2), version)
}
