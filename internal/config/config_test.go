package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/empirephoenix/hardened-lua/internal/config"
)

func TestLoad_DefaultsAreValidWithoutAFile(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	require.Equal(t, 1_000_000, cfg.Limits.MaxInstructions)
	require.Equal(t, "console", cfg.Logging.Format)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
limits:
  max_instructions: 500
  max_string_size: 2048
logging:
  level: debug
  format: json
`), 0o644))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	require.Equal(t, 500, cfg.Limits.MaxInstructions)
	require.Equal(t, 2048, cfg.Limits.MaxStringSize)
	require.Equal(t, "debug", cfg.Logging.Level)
	require.Equal(t, "json", cfg.Logging.Format)
}

func TestLoad_EnvOverridesDefaults(t *testing.T) {
	t.Setenv("LUASANDBOX_LIMITS_MAX_INSTRUCTIONS", "42")
	cfg, err := config.Load("")
	require.NoError(t, err)
	require.Equal(t, 42, cfg.Limits.MaxInstructions)
}

func TestLoad_MissingFileErrors(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.Error(t, err)
}

func TestValidate_RejectsUnknownLogLevel(t *testing.T) {
	cfg := config.Config{
		Limits:  config.LimitsConfig{MaxInstructions: 1, MaxStringSize: 1, MaxSourceLen: 1, OrphanCheckSecs: 1},
		Logging: config.LoggingConfig{Level: "verbose", Format: "console"},
	}
	require.Error(t, cfg.Validate())
}
