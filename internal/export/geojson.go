// Package export writes marker sets as GeoJSON and ESRI shapefiles.
package export

import (
	"encoding/json"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/sells-group/rate-map/internal/marker"
)

// FeatureCollection converts markers to GeoJSON Point features in input order.
func FeatureCollection(markers []marker.Marker) *geojson.FeatureCollection {
	fc := &geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(markers))}
	for _, m := range markers {
		fc.Features = append(fc.Features, &geojson.Feature{
			Geometry: geom.NewPointFlat(geom.XY, []float64{m.Longitude, m.Latitude}),
			Properties: map[string]any{
				"label":       m.Label,
				"description": m.Description,
				"source":      string(m.Source),
			},
		})
	}
	return fc
}

// GeoJSON encodes markers as a FeatureCollection.
func GeoJSON(markers []marker.Marker) ([]byte, error) {
	data, err := json.Marshal(FeatureCollection(markers))
	if err != nil {
		return nil, eris.Wrap(err, "export: encode geojson")
	}
	return data, nil
}
