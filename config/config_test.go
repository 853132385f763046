package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, "somnus", cfg.App.Name)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 7*24*time.Hour, cfg.Memory.STMRetention)
	assert.Equal(t, 365*24*time.Hour, cfg.Memory.LTMRetention)
	assert.Equal(t, 64, cfg.Memory.STMMaxSessions)
	assert.Equal(t, 64, cfg.Engine.MaxBatchSize)
	assert.Equal(t, "badger", cfg.Storage.Type)
	assert.True(t, cfg.Metrics.Enabled)
	assert.False(t, cfg.Tracing.Enabled)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  port: 9999
log:
  level: debug
storage:
  type: memory
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path, nil)
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "memory", cfg.Storage.Type)
	// Unset keys fall back to defaults.
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 64, cfg.Engine.MaxBatchSize)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml", nil)
	assert.Error(t, err)
}

func TestLoadUnsupportedFormat(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("port = 1"), 0o644))

	_, err := Load(path, nil)
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SOMNUS_SERVER_PORT", "7070")
	t.Setenv("SOMNUS_LOG_LEVEL", "warn")

	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestCLIOverridesWinOverEnv(t *testing.T) {
	t.Setenv("SOMNUS_SERVER_PORT", "7070")

	cfg, err := Load("", map[string]interface{}{
		"server.port": 6060,
	})
	require.NoError(t, err)

	assert.Equal(t, 6060, cfg.Server.Port)
}

func TestValidationFailure(t *testing.T) {
	_, err := Load("", map[string]interface{}{
		"log.level": "verbose",
	})
	require.Error(t, err)

	verrs, ok := err.(ValidationErrors)
	require.True(t, ok, "expected ValidationErrors, got %T", err)
	require.NotEmpty(t, verrs)
	assert.Contains(t, verrs[0].Field, "Level")
}

func TestValidationStorageType(t *testing.T) {
	_, err := Load("", map[string]interface{}{
		"storage.type": "cassandra",
	})
	assert.Error(t, err)
}

func TestHotReloadableChanged(t *testing.T) {
	a := HotReloadableConfig{LogLevel: "info", LogFormat: "json", MetricsEnabled: true, MetricsPath: "/metrics", MetricsPort: 9091}
	b := a
	assert.False(t, a.Changed(b))

	b.LogLevel = "debug"
	assert.True(t, a.Changed(b))
}

func TestExtractHotReloadable(t *testing.T) {
	cfg := DefaultConfig()
	h := ExtractHotReloadable(cfg)

	assert.Equal(t, cfg.Log.Level, h.LogLevel)
	assert.Equal(t, cfg.Metrics.Port, h.MetricsPort)
}

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	assert.NoError(t, cfg.Validate())
}

func TestConfigString(t *testing.T) {
	cfg := DefaultConfig()
	s := cfg.String()
	assert.Contains(t, s, "somnus")
	assert.Contains(t, s, "badger")
}
