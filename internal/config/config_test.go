package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chTempDir(t *testing.T) string {
	// Change to temp dir so no stray config.yaml is found
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chTempDir(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "harvester.db", cfg.Store.DatabaseURL)
	assert.InDelta(t, 1.0, cfg.Scraper.BaseDelaySecs, 0.001)
	assert.Equal(t, 10, cfg.Scraper.TimeoutSecs)
	assert.Equal(t, 2, cfg.Scraper.MaxRetries)
	assert.Equal(t, "harvester_metrics.json", cfg.Scraper.MetricsPath)
	assert.NotEmpty(t, cfg.Scraper.UserAgent)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 60, cfg.Server.RatePerMin)
	assert.Equal(t, 300, cfg.Monitor.IntervalSecs)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Empty(t, cfg.Sources)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chTempDir(t)

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/harvester
scraper:
  base_delay_secs: 0.5
  max_retries: 4
log:
  level: debug
  format: console
sources:
  - name: acme
    website: https://acme.example
    enabled: true
    adapter: feed
    url: https://acme.example/feed
  - name: dormant
    enabled: false
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/harvester", cfg.Store.DatabaseURL)
	assert.InDelta(t, 0.5, cfg.Scraper.BaseDelaySecs, 0.001)
	assert.Equal(t, 4, cfg.Scraper.MaxRetries)
	assert.Equal(t, "debug", cfg.Log.Level)

	require.Len(t, cfg.Sources, 2)
	assert.Equal(t, "acme", cfg.Sources[0].Name)
	assert.Equal(t, "feed", cfg.Sources[0].Adapter)
	assert.True(t, cfg.Sources[0].Enabled)
	assert.False(t, cfg.Sources[1].Enabled)

	// Defaults survive a partial file.
	assert.Equal(t, 10, cfg.Scraper.TimeoutSecs)
}

func TestLoadFromEnv(t *testing.T) {
	chTempDir(t)
	t.Setenv("HARVESTER_SCRAPER_MAX_RETRIES", "7")
	t.Setenv("HARVESTER_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.Scraper.MaxRetries)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestScraperConfigHelpers(t *testing.T) {
	c := ScraperConfig{BaseDelaySecs: 1.5, TimeoutSecs: 30}
	assert.Equal(t, 1500*time.Millisecond, c.BaseDelay())
	assert.Equal(t, 30*time.Second, c.Timeout())
}

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	assert.NotNil(t, zap.L())

	require.NoError(t, InitLogger(LogConfig{Level: "info", Format: "json"}))
}

func TestInitLogger_BadLevel(t *testing.T) {
	assert.Error(t, InitLogger(LogConfig{Level: "shouting", Format: "json"}))
}
