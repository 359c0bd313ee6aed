package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_CreatesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	_, err = os.Stat(path)
	require.NoError(t, err, "default config should be written")

	assert.Equal(t, 8089, cfg.Server.Port)
	assert.Equal(t, "duckdb", cfg.Storage.Backend)
	assert.Equal(t, filepath.Join(dir, "data"), cfg.Storage.DataDirectory)
	assert.Equal(t, filepath.Join(dir, "data", "uploads"), cfg.Storage.UploadsDirectory)
	assert.Equal(t, filepath.Join(dir, "data", "datasets.duckdb"), cfg.DatabasePath())
	assert.Equal(t, "0.0.0.0:8089", cfg.GetServerAddr())
	assert.Equal(t, 30*time.Minute, cfg.IdleTimeout())
	assert.Equal(t, 5*time.Minute, cfg.CleanupInterval())
	assert.Equal(t, 5*time.Minute, cfg.CacheTTL())
	assert.Equal(t, []string{".xlsx", ".xlsm", ".json"}, cfg.AllowedExtensions())
}

func TestLoadConfig_FileValues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  port: 9000
  bind_address: 127.0.0.1
storage:
  backend: memory
  data_directory: /srv/soc
filter:
  timezone: Asia/Jakarta
cache:
  backend: redis
  redis_addr: redis:6379
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.GetServerAddr())
	assert.Equal(t, "memory", cfg.Storage.Backend)
	assert.Equal(t, "/srv/soc", cfg.Storage.DataDirectory)
	assert.Equal(t, "redis", cfg.Cache.Backend)
	assert.Equal(t, "redis:6379", cfg.Cache.RedisAddr)
	// Unset keys keep their defaults.
	assert.Equal(t, 20, cfg.Processing.MaxDatasets)
	assert.Equal(t, "soc:", cfg.Cache.KeyPrefix)

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "Asia/Jakarta", loc.String())
}

func TestLoadConfig_EnvironmentOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	t.Setenv("PORT", "7070")
	t.Setenv("DATA_DIR", "/var/lib/soc")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("UPSTREAM_URL", "https://tools.example.com/api")
	t.Setenv("CACHE_BACKEND", "none")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "/var/lib/soc", cfg.Storage.DataDirectory)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "https://tools.example.com/api", cfg.Upstream.BaseURL)
	assert.Equal(t, "none", cfg.Cache.Backend)
}

func TestLoadConfig_Invalid(t *testing.T) {
	dir := t.TempDir()

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("server: [unclosed"), 0644))
	_, err := LoadConfig(bad)
	assert.Error(t, err)

	backend := filepath.Join(dir, "backend.yaml")
	require.NoError(t, os.WriteFile(backend, []byte("storage:\n  backend: postgres\n"), 0644))
	_, err = LoadConfig(backend)
	assert.ErrorContains(t, err, "storage backend")

	zone := filepath.Join(dir, "zone.yaml")
	require.NoError(t, os.WriteFile(zone, []byte("filter:\n  timezone: Mars/Olympus\n"), 0644))
	_, err = LoadConfig(zone)
	assert.ErrorContains(t, err, "timezone")
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.Processing.MaxDatasets = 3
	cfg.Upstream.Token = "t0ken"
	require.NoError(t, cfg.Save(path))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 3, loaded.Processing.MaxDatasets)
	assert.Equal(t, "t0ken", loaded.Upstream.Token)
}

func TestEnsureDirectories(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.Storage.DataDirectory = filepath.Join(dir, "d")
	cfg.Storage.UploadsDirectory = filepath.Join(dir, "d", "u")

	require.NoError(t, cfg.EnsureDirectories())
	info, err := os.Stat(cfg.Storage.UploadsDirectory)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestLocation_Empty(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Filter.Timezone = ""
	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)
}
