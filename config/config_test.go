package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "dexd", cfg.ServiceName)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Equal(t, "data/snapshot", cfg.Snapshot.Dir)
	assert.True(t, cfg.Snapshot.Restore)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := []byte(`
service_name: dex-test
log_level: debug
http:
  port: 9999
snapshot:
  restore: false
`)
	require.NoError(t, os.WriteFile(path, content, 0600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "dex-test", cfg.ServiceName)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 9999, cfg.HTTP.Port)
	assert.False(t, cfg.Snapshot.Restore)

	// Values absent from the file keep their defaults.
	assert.Equal(t, "/metrics", cfg.MetricsPath)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("DEX_LOG_LEVEL", "warn")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.LogLevel)
}
