package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate clears every variable LoadConfig reads and points it at dir.
func isolate(t *testing.T, dir string) {
	t.Helper()
	for _, key := range []string{
		"REMAPP_BEARER_TOKEN", "REMAPP_USERNAME", "REMAPP_EMAIL", "REMAPP_PASSWORD",
		"REMAPP_USE_LOCAL_LIST", "REMAPP_INCREMENTAL_MODE", "REMAPP_REHYDRATE_ONLY",
		"REMAPP_OUTPUT_DIR", "REMAPP_DETAIL_SLEEP_SECONDS", "OFFPLAN_DB_PATH",
		"OFFPLAN_LOG_LEVEL", "PORT",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
	t.Setenv("OFFPLAN_CONFIG_PATH", "")
	t.Setenv("REMAPP_ENV_PATH", filepath.Join(dir, ".env"))
	t.Chdir(dir)
}

func TestLoadConfig_Defaults(t *testing.T) {
	isolate(t, t.TempDir())

	cfg, err := LoadConfig()
	require.NoError(t, err)

	r := cfg.Scraping.Remapp
	assert.True(t, r.UseLocalList)
	assert.True(t, r.IncrementalMode)
	assert.False(t, r.RehydrateOnly)
	assert.Equal(t, 500*time.Millisecond, r.DetailSleep())
	assert.Equal(t, 5*time.Second, r.Backoff())
	assert.Equal(t, 5, r.RetryPolicy.MaxRetries)
	assert.Equal(t, 10, r.PageScanLimit)
	assert.Equal(t, 50, r.LogEvery)
	assert.Equal(t, 24*time.Hour, cfg.App.CacheTTL())
	assert.Empty(t, r.Token)
}

func TestLoadConfig_EnvFileAndOverrides(t *testing.T) {
	dir := t.TempDir()
	isolate(t, dir)

	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte(
		"REMAPP_EMAIL=agent@example.com\nREMAPP_PASSWORD='secret'\nREMAPP_BEARER_TOKEN=from-file\n",
	), 0o600))
	t.Setenv("REMAPP_BEARER_TOKEN", "from-env")
	t.Setenv("REMAPP_INCREMENTAL_MODE", "0")
	t.Setenv("REMAPP_REHYDRATE_ONLY", "Yes")
	t.Setenv("REMAPP_DETAIL_SLEEP_SECONDS", "0")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	r := cfg.Scraping.Remapp
	assert.Equal(t, "from-env", r.Token)
	assert.Equal(t, "agent@example.com", r.Username)
	assert.Equal(t, "secret", r.Password)
	assert.False(t, r.IncrementalMode)
	assert.True(t, r.RehydrateOnly)
	assert.Zero(t, r.DetailSleep())
}

func TestLoadConfig_YAMLFile(t *testing.T) {
	dir := t.TempDir()
	isolate(t, dir)

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "configs"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "configs", "app.yaml"), []byte(`
app:
  port: 8081
  log_level: debug
scraping:
  remapp:
    output_dir: cache
    page_scan_limit: 3
    retry_policy:
      max_retries: 2
      backoff_seconds: 1.5
database:
  path: offplan.db
`), 0o644))

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 8081, cfg.App.Port)
	assert.Equal(t, "debug", cfg.App.LogLevel)
	assert.Equal(t, "cache", cfg.Scraping.Remapp.OutputDir)
	assert.Equal(t, 3, cfg.Scraping.Remapp.PageScanLimit)
	assert.Equal(t, 1500*time.Millisecond, cfg.Scraping.Remapp.Backoff())
	assert.Equal(t, "offplan.db", cfg.Database.Path)
	// Untouched keys keep their defaults.
	assert.Equal(t, 50, cfg.Scraping.Remapp.LogEvery)
}

func TestLoadConfig_InvalidValues(t *testing.T) {
	isolate(t, t.TempDir())
	t.Setenv("PORT", "eighty")

	_, err := LoadConfig()
	require.ErrorContains(t, err, "PORT")
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Scraping.Remapp.RetryPolicy.MaxRetries = 0
	require.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Scraping.Remapp.PageScanLimit = 0
	require.Error(t, cfg.Validate())

	require.NoError(t, Default().Validate())
}
