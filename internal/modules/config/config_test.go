package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsBuiltins(t *testing.T) {
	d, err := loadDefaults(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 14, d.RSIPeriod)
	assert.Equal(t, 35.0, d.RSIOversold)
	assert.Equal(t, 65.0, d.RSIOverbought)
	assert.Equal(t, 1, d.RSIConfirm)
	assert.Equal(t, 9, d.FastMA)
	assert.Equal(t, 21, d.SlowMA)
	assert.Equal(t, 5.0, d.OrderPercent)
	assert.Equal(t, 5.0, d.MinNotional)
	assert.True(t, d.SilentDustClear)
}

func TestLoadDefaultsEnvOverride(t *testing.T) {
	t.Setenv("RSI_PERIOD", "7")
	t.Setenv("SILENT_DUST_CLEAR", "false")

	d, err := loadDefaults(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 7, d.RSIPeriod)
	assert.False(t, d.SilentDustClear)
}

func TestLoadDefaultsYamlOverEnv(t *testing.T) {
	t.Setenv("RSI_PERIOD", "7")

	path := filepath.Join(t.TempDir(), "defaults.yaml")
	require.NoError(t, os.WriteFile(path, []byte("rsi_period: 21\nfast_ma: 5\n"), 0o644))

	d, err := loadDefaults(path)
	require.NoError(t, err)
	assert.Equal(t, 21, d.RSIPeriod, "yaml перекрывает ENV")
	assert.Equal(t, 5, d.FastMA)
	assert.Equal(t, 21, d.SlowMA, "незатронутые поля остаются")
}

func TestLoadDefaultsBadYaml(t *testing.T) {
	path := filepath.Join(t.TempDir(), "defaults.yaml")
	require.NoError(t, os.WriteFile(path, []byte("rsi_period: [broken"), 0o644))

	_, err := loadDefaults(path)
	assert.Error(t, err)
}

func TestEnvHelpers(t *testing.T) {
	t.Setenv("X_INT", "12")
	t.Setenv("X_FLOAT", "1.5")
	t.Setenv("X_BOOL", "true")
	t.Setenv("X_JUNK", "zzz")

	assert.Equal(t, 12, intFromEnv("X_INT", 0))
	assert.Equal(t, 0, intFromEnv("X_JUNK", 0))
	assert.Equal(t, 1.5, floatFromEnv("X_FLOAT", 0))
	assert.True(t, boolFromEnv("X_BOOL", false))
	assert.True(t, boolFromEnv("X_JUNK", true), "мусор не трогает дефолт")
	assert.Equal(t, 42, intFromEnv("X_MISSING", 42))
}
