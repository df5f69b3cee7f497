package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	return dir
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8000/api", cfg.Source.BaseURL)
	assert.Equal(t, "/rates", cfg.Source.RatesPath)
	assert.Equal(t, 30, cfg.Source.TimeoutSecs)
	assert.Equal(t, "nominatim", cfg.Geocode.Provider)
	assert.Equal(t, "https://nominatim.openstreetmap.org/search", cfg.Geocode.BaseURL)
	assert.Equal(t, "rate-map/1.0", cfg.Geocode.UserAgent)
	assert.InDelta(t, 1.0, cfg.Geocode.RateLimit, 0.001)
	assert.Equal(t, 10, cfg.Geocode.TimeoutSecs)
	assert.Equal(t, "file", cfg.Cache.Driver)
	assert.Equal(t, "geocode_cache.json", cfg.Cache.Path)
	assert.Equal(t, "geocode:", cfg.Cache.RedisPrefix)
	assert.Equal(t, 5, cfg.Pipeline.Concurrency)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
cache:
  driver: sqlite
  path: cache.db
geocode:
  provider: google
  google_api_key: key-123
log:
  level: debug
  format: console
pipeline:
  concurrency: 8
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Cache.Driver)
	assert.Equal(t, "cache.db", cfg.Cache.Path)
	assert.Equal(t, "google", cfg.Geocode.Provider)
	assert.Equal(t, "key-123", cfg.Geocode.GoogleAPIKey)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 8, cfg.Pipeline.Concurrency)
	// Defaults still apply for unset values
	assert.Equal(t, "/rates", cfg.Source.RatesPath)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
cache:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("RATEMAP_CACHE_DRIVER", "redis")
	t.Setenv("RATEMAP_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "redis", cfg.Cache.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chdirTemp(t)

	t.Setenv("RATEMAP_SERVER_PORT", "3000")
	t.Setenv("RATEMAP_SOURCE_TOKEN", "s3cret")
	t.Setenv("RATEMAP_GEOCODE_RATE_LIMIT", "0.5")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, "s3cret", cfg.Source.Token)
	assert.InDelta(t, 0.5, cfg.Geocode.RateLimit, 0.001)
}

func TestLoadMalformedFile(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("log: [unterminated"), 0644))

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config: read file")
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config with all defaults populated for validation tests.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Geocode.Provider = "nominatim"
	cfg.Geocode.UserAgent = "rate-map/1.0"
	cfg.Geocode.RateLimit = 1
	cfg.Cache.Driver = "file"
	cfg.Cache.Path = "geocode_cache.json"
	cfg.Pipeline.Concurrency = 5
	cfg.Server.Port = 8080
	return cfg
}

func TestValidate_Defaults(t *testing.T) {
	cfg := validDefaults()
	assert.NoError(t, cfg.Validate("resolve"))
	assert.NoError(t, cfg.Validate("serve"))
	assert.NoError(t, cfg.Validate("cache"))
}

func TestValidate_GoogleNeedsKey(t *testing.T) {
	cfg := validDefaults()
	cfg.Geocode.Provider = "google"

	err := cfg.Validate("resolve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "geocode.google_api_key is required")

	cfg.Geocode.GoogleAPIKey = "key"
	assert.NoError(t, cfg.Validate("resolve"))
}

func TestValidate_UnknownProviderAndDriver(t *testing.T) {
	cfg := validDefaults()
	cfg.Geocode.Provider = "mapbox"
	cfg.Cache.Driver = "etcd"

	err := cfg.Validate("resolve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), `geocode.provider "mapbox" is not supported`)
	assert.Contains(t, err.Error(), `cache.driver "etcd" is not supported`)
}

func TestValidate_CacheDriverRequirements(t *testing.T) {
	tests := []struct {
		driver string
		want   string
	}{
		{"postgres", "cache.database_url is required"},
		{"redis", "cache.redis_addr is required"},
		{"sqlite", "cache.path is required"},
	}
	for _, tt := range tests {
		t.Run(tt.driver, func(t *testing.T) {
			cfg := validDefaults()
			cfg.Cache.Driver = tt.driver
			cfg.Cache.Path = ""

			err := cfg.Validate("cache")
			assert.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	cfg := validDefaults()
	cfg.Cache.Driver = "memory"
	cfg.Cache.Path = ""
	assert.NoError(t, cfg.Validate("cache"))
}

func TestValidate_ConcurrencyBounds(t *testing.T) {
	cfg := validDefaults()

	cfg.Pipeline.Concurrency = 0
	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "pipeline.concurrency must be between 1 and 50")

	cfg.Pipeline.Concurrency = 51
	assert.Error(t, cfg.Validate("serve"))

	cfg.Pipeline.Concurrency = 50
	assert.NoError(t, cfg.Validate("serve"))
}

func TestValidate_ServePort(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.Port = 0

	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")
	assert.NoError(t, cfg.Validate("resolve"), "resolve does not need a port")
}

func TestValidate_UnknownMode(t *testing.T) {
	cfg := validDefaults()
	err := cfg.Validate("unknown")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}
