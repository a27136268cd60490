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
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	t.Setenv("TEST_LEDGER_DB", "/var/lib/ledger.db")

	path := writeConfig(t, `
storage:
  database_path: ${TEST_LEDGER_DB}
server:
  port: 9090
scheduler:
  enabled: true
  resync_interval: 3h
  sweep_interval: 1m
  snapshot_path: /tmp/scrape.json
attribution:
  pending_window: 90m
observability:
  logging:
    level: debug
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/ledger.db", cfg.Storage.DatabasePath)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.True(t, cfg.Scheduler.Enabled)
	assert.Equal(t, 3*time.Hour, cfg.Scheduler.ResyncInterval)
	assert.Equal(t, time.Minute, cfg.Scheduler.SweepInterval)
	assert.Equal(t, "/tmp/scrape.json", cfg.Scheduler.SnapshotPath)
	assert.Equal(t, 90*time.Minute, cfg.Attribution.PendingWindow)
	assert.Equal(t, "debug", cfg.Observability.Logging.Level)

	// untouched fields keep defaults
	assert.Equal(t, 0.01, cfg.Attribution.AmountTolerance)
	assert.Equal(t, "text", cfg.Observability.Logging.Format)
	assert.NotEmpty(t, cfg.Server.AllowedOrigins)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "server: [not, a, map"))
	assert.Error(t, err)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("LEDGER_DB_PATH", "test.db")
	t.Setenv("LEDGER_PORT", "7070")
	t.Setenv("LEDGER_SCHEDULER_ENABLED", "true")
	t.Setenv("LEDGER_RESYNC_INTERVAL", "30m")
	t.Setenv("LEDGER_PENDING_WINDOW", "4h")
	t.Setenv("LEDGER_ALLOWED_ORIGINS", "http://a.test, http://b.test")

	cfg := LoadFromEnv()
	assert.Equal(t, "test.db", cfg.Storage.DatabasePath)
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.True(t, cfg.Scheduler.Enabled)
	assert.Equal(t, 30*time.Minute, cfg.Scheduler.ResyncInterval)
	assert.Equal(t, 4*time.Hour, cfg.Attribution.PendingWindow)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.Server.AllowedOrigins)
}

func TestLoadFromEnv_Defaults(t *testing.T) {
	t.Setenv("LEDGER_DB_PATH", "")
	t.Setenv("LEDGER_PENDING_WINDOW", "not-a-duration")

	cfg := LoadFromEnv()
	assert.Equal(t, "utility_ledger.db", cfg.Storage.DatabasePath)
	assert.Equal(t, 2*time.Hour, cfg.Attribution.PendingWindow)
	assert.Equal(t, "info", cfg.Observability.Logging.Level)
}

func TestLoadOrEnvWithPath_FallbackToEnv(t *testing.T) {
	t.Setenv("LEDGER_DB_PATH", "fallback.db")

	cfg := LoadOrEnvWithPath(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Equal(t, "fallback.db", cfg.Storage.DatabasePath)
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Defaults().Validate())

	cfg := Defaults()
	cfg.Storage.DatabasePath = ""
	cfg.Server.Port = 0
	cfg.Scheduler.Enabled = true
	cfg.Scheduler.ResyncInterval = 0
	cfg.Observability.Logging.Format = "xml"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database_path")
	assert.Contains(t, err.Error(), "server.port")
	assert.Contains(t, err.Error(), "resync_interval")
	assert.Contains(t, err.Error(), "format")
}
