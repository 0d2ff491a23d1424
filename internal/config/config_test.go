package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, warnings, err := Load(filepath.Join(t.TempDir(), "config.json"))
	require.NoError(t, err)
	require.Empty(t, warnings)
	require.Equal(t, DefaultModel, cfg.Model)
	require.Equal(t, DefaultLanguage, cfg.Language)
	require.Equal(t, DefaultMaxDuration, cfg.MaxDurationSeconds)
	require.True(t, cfg.Indicator.Enable)
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `{"model": "small.en", "language": "de", "max_duration": 45}`)
	cfg, warnings, err := Load(path)
	require.NoError(t, err)
	require.Empty(t, warnings)
	require.Equal(t, "small.en", cfg.Model)
	require.Equal(t, "de", cfg.Language)
	require.Equal(t, 45, cfg.MaxDurationSeconds)
	// Unset fields keep their defaults.
	require.Equal(t, 2, cfg.SilenceThreshold)
}

func TestLoadEnvironmentWinsOverFile(t *testing.T) {
	path := writeConfig(t, `{"model": "small.en", "max_duration": 45}`)
	t.Setenv("MURMUR_MODEL", "tiny.en")
	t.Setenv("MURMUR_MAX_DURATION", "10")

	cfg, _, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "tiny.en", cfg.Model)
	require.Equal(t, 10, cfg.MaxDurationSeconds)
}

func TestLoadClampsMaxDuration(t *testing.T) {
	cfg, warnings, err := Load(writeConfig(t, `{"max_duration": 600}`))
	require.NoError(t, err)
	require.Equal(t, MaxDurationSeconds, cfg.MaxDurationSeconds)
	require.Len(t, warnings, 1)
	require.Equal(t, "max_duration", warnings[0].Field)

	cfg, warnings, err = Load(writeConfig(t, `{"max_duration": 0}`))
	require.NoError(t, err)
	require.Equal(t, MinDurationSeconds, cfg.MaxDurationSeconds)
	require.Len(t, warnings, 1)
}

func TestLoadBadJSON(t *testing.T) {
	_, _, err := Load(writeConfig(t, `{"model": `))
	require.Error(t, err)
	require.Contains(t, err.Error(), "parse config")
}

func TestLoadBadEnvValue(t *testing.T) {
	t.Setenv("MURMUR_MAX_DURATION", "soon")
	_, _, err := Load(filepath.Join(t.TempDir(), "config.json"))
	require.Error(t, err)
}

func TestModelPathResolvesNameUnderDataDir(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/data")
	path, err := ModelPath("base.en")
	require.NoError(t, err)
	require.Equal(t, "/data/murmur/models/ggml-base.en.bin", path)
}

func TestModelPathKeepsExplicitPaths(t *testing.T) {
	path, err := ModelPath("/models/custom.bin")
	require.NoError(t, err)
	require.Equal(t, "/models/custom.bin", path)

	path, err = ModelPath("~/models/custom.bin")
	require.NoError(t, err)
	home, err2 := os.UserHomeDir()
	require.NoError(t, err2)
	require.Equal(t, filepath.Join(home, "models", "custom.bin"), path)
}

func TestModelPathEmptyFallsBackToDefault(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/data")
	path, err := ModelPath("  ")
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(path, "ggml-"+DefaultModel+".bin"))
}

func TestWarningString(t *testing.T) {
	w := Warning{Field: "max_duration", Message: "clamped"}
	require.Equal(t, "config: max_duration: clamped", w.String())
}
