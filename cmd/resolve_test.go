//go:build !integration

package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/rate-map/internal/marker"
)

const recordsJSON = `[
  {"id": 1, "commodity": "Cardamom", "rate": "950.50", "unit": "kg",
   "district": "Idukki", "state": "Kerala"},
  {"id": 2, "commodity": "Pepper", "rate": 610, "unit": "kg",
   "latitude": "9.59", "longitude": "76.52"},
  {"id": 3, "commodity": "Tea", "rate": 240, "unit": "kg"},
  {"id": 4, "commodity": "Cardamom", "rate": 940, "unit": "kg",
   "district": {"name": "Idukki"}, "state": {"name": "Kerala"}}
]`

func writeInput(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rates.json")
	require.NoError(t, os.WriteFile(path, []byte(recordsJSON), 0o644))
	return path
}

func newTestEnv(t *testing.T) (*resolveEnv, func() int32) {
	t.Helper()
	geo, hits := newNominatimStub(t)
	withConfig(t, testConfig(geo.URL))

	env, err := initEnv(context.Background(), "resolve")
	require.NoError(t, err)
	t.Cleanup(env.Close)
	return env, hits.Load
}

func TestRunResolve_NDJSONStreamsImmediateFirst(t *testing.T) {
	env, hits := newTestEnv(t)

	var out bytes.Buffer
	err := runResolve(context.Background(), &out, env, resolveOptions{Input: writeInput(t), Format: formatNDJSON})
	require.NoError(t, err)

	var markers []marker.Marker
	sc := bufio.NewScanner(&out)
	for sc.Scan() {
		var m marker.Marker
		require.NoError(t, json.Unmarshal(sc.Bytes(), &m))
		markers = append(markers, m)
	}

	require.Len(t, markers, 3, "the record without a location is dropped")
	assert.Equal(t, marker.SourceExact, markers[0].Source)
	assert.Equal(t, marker.SourceDistrict, markers[1].Source)
	assert.Equal(t, marker.SourceDistrict, markers[2].Source)
	assert.InDelta(t, 9.85, markers[1].Latitude, 1e-9)
	assert.Equal(t, int32(1), hits(), "duplicate queries share one lookup")
}

func TestRunResolve_SecondRunUsesCache(t *testing.T) {
	env, hits := newTestEnv(t)
	input := writeInput(t)

	var out bytes.Buffer
	require.NoError(t, runResolve(context.Background(), &out, env, resolveOptions{Input: input, Format: formatJSON}))
	require.NoError(t, runResolve(context.Background(), &out, env, resolveOptions{Input: input, Format: formatJSON}))
	assert.Equal(t, int32(1), hits())
}

func TestRunResolve_JSONAndShapefile(t *testing.T) {
	env, _ := newTestEnv(t)
	shpPath := filepath.Join(t.TempDir(), "markers.shp")

	var out bytes.Buffer
	err := runResolve(context.Background(), &out, env, resolveOptions{
		Input:     writeInput(t),
		Format:    formatJSON,
		Shapefile: shpPath,
	})
	require.NoError(t, err)

	var markers []marker.Marker
	require.NoError(t, json.Unmarshal(out.Bytes(), &markers))
	assert.Len(t, markers, 3)

	for _, ext := range []string{".shp", ".shx", ".dbf"} {
		_, err := os.Stat(shpPath[:len(shpPath)-4] + ext)
		assert.NoError(t, err, "missing %s", ext)
	}
}

func TestRunResolve_YAML(t *testing.T) {
	env, _ := newTestEnv(t)

	var out bytes.Buffer
	require.NoError(t, runResolve(context.Background(), &out, env, resolveOptions{Input: writeInput(t), Format: formatYAML}))

	var markers []marker.Marker
	require.NoError(t, yaml.Unmarshal(out.Bytes(), &markers))
	require.Len(t, markers, 3)
	assert.Equal(t, "Pepper", markers[0].Label)
}

func TestRunResolve_FromSource(t *testing.T) {
	newTestEnv(t)
	src := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rates", r.URL.Path)
		_, _ = w.Write([]byte(recordsJSON))
	}))
	defer src.Close()

	cfg.Source.BaseURL = src.URL
	env, err := initEnv(context.Background(), "resolve")
	require.NoError(t, err)
	defer env.Close()

	var out bytes.Buffer
	require.NoError(t, runResolve(context.Background(), &out, env, resolveOptions{Format: formatGeoJSON}))

	var fc struct {
		Features []json.RawMessage `json:"features"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &fc))
	assert.Len(t, fc.Features, 3)
}

func TestRunResolve_SourceFailure(t *testing.T) {
	env, _ := newTestEnv(t)

	var out bytes.Buffer
	err := runResolve(context.Background(), &out, env, resolveOptions{Format: formatNDJSON})
	require.Error(t, err)
	assert.Empty(t, out.String(), "nothing is emitted when the fetch fails")
}

func TestRunResolve_MissingInputFile(t *testing.T) {
	env, _ := newTestEnv(t)

	err := runResolve(context.Background(), &bytes.Buffer{}, env, resolveOptions{Input: "/nonexistent/rates.json", Format: formatJSON})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open input")
}
