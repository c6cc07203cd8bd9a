package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "engine.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaults(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 0.0005, cfg.TakerFee)
	assert.Equal(t, 0.005, cfg.MaintenanceMargin)
	assert.Equal(t, 60, cfg.EMAWindow)
	assert.Equal(t, time.Hour, cfg.FundingPeriod.Std())
	require.NoError(t, cfg.validate())
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
taker_fee: 0.001
funding_period: 8h
tick_interval: 250ms
ema_window: 30
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0.001, cfg.TakerFee)
	assert.Equal(t, 8*time.Hour, cfg.FundingPeriod.Std())
	assert.Equal(t, 250*time.Millisecond, cfg.TickInterval.Std())
	assert.Equal(t, 30, cfg.EMAWindow)

	// Untouched fields keep their defaults.
	assert.Equal(t, 0.0002, cfg.MakerRebate)
	assert.Equal(t, 0.005, cfg.MaintenanceMargin)
}

func TestLoadRejectsBadRatios(t *testing.T) {
	path := writeConfig(t, "initial_margin: 0.001\n")

	_, err := Load(path)
	assert.ErrorContains(t, err, "initial_margin")
}

func TestLoadRejectsBadDuration(t *testing.T) {
	path := writeConfig(t, "funding_period: soon\n")

	_, err := Load(path)
	assert.ErrorContains(t, err, "duration")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestDurationAcceptsIntegerNanoseconds(t *testing.T) {
	path := writeConfig(t, "tick_interval: 1000000000\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, time.Second, cfg.TickInterval.Std())
}
