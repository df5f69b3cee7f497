package main

import (
	"encoding/json"
	"io"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/rate-map/internal/export"
	"github.com/sells-group/rate-map/internal/marker"
)

// Output formats accepted by --format.
const (
	formatNDJSON  = "ndjson"
	formatJSON    = "json"
	formatYAML    = "yaml"
	formatGeoJSON = "geojson"
)

func validFormat(f string) bool {
	switch f {
	case formatNDJSON, formatJSON, formatYAML, formatGeoJSON:
		return true
	}
	return false
}

// writeMarkers renders a complete marker list in format. ndjson is handled by
// the caller as markers arrive.
func writeMarkers(w io.Writer, format string, markers []marker.Marker) error {
	if markers == nil {
		markers = []marker.Marker{}
	}
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return eris.Wrap(enc.Encode(markers), "write json")
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(markers); err != nil {
			return eris.Wrap(err, "write yaml")
		}
		return eris.Wrap(enc.Close(), "write yaml")
	case formatGeoJSON:
		data, err := export.GeoJSON(markers)
		if err != nil {
			return err
		}
		_, err = w.Write(append(data, '\n'))
		return eris.Wrap(err, "write geojson")
	default:
		return eris.Errorf("unsupported format: %s", format)
	}
}
