//go:build !integration

package main

import (
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sells-group/rate-map/internal/config"
)

// withConfig installs c as the global config for the duration of the test.
func withConfig(t *testing.T, c *config.Config) {
	t.Helper()
	old := cfg
	cfg = c
	t.Cleanup(func() { cfg = old })
}

// chdirTemp moves into a fresh temp dir so no config.yaml is picked up.
func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	return dir
}

// testConfig returns a config with an in-memory cache and an unthrottled
// Nominatim provider pointed at geocodeURL.
func testConfig(geocodeURL string) *config.Config {
	c := &config.Config{}
	c.Source.BaseURL = "http://127.0.0.1:1"
	c.Source.RatesPath = "/rates"
	c.Source.TimeoutSecs = 5
	c.Geocode.Provider = "nominatim"
	c.Geocode.BaseURL = geocodeURL
	c.Geocode.UserAgent = "rate-map-test"
	c.Geocode.TimeoutSecs = 5
	c.Cache.Driver = "memory"
	c.Pipeline.Concurrency = 2
	c.Server.Port = 8080
	c.Log.Level = "info"
	c.Log.Format = "json"
	return c
}

// newNominatimStub answers every search with Idukki and counts hits.
func newNominatimStub(t *testing.T) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"lat":"9.85","lon":"77.10","display_name":"Idukki, Kerala, India"}]`))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}
