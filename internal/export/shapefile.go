package export

import (
	"unicode/utf8"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/rate-map/internal/marker"
)

// DBF attribute columns, in order.
var shapeFields = []shp.Field{
	shp.StringField("LABEL", 80),
	shp.StringField("DESCR", 254),
	shp.StringField("SOURCE", 10),
}

// Shapefile writes markers as a POINT shapefile at path (plus the .shx and
// .dbf siblings). Attribute values longer than their column are truncated.
func Shapefile(path string, markers []marker.Marker) error {
	w, err := shp.Create(path, shp.POINT)
	if err != nil {
		return eris.Wrapf(err, "export: create shapefile %s", path)
	}
	defer w.Close()

	if err := w.SetFields(shapeFields); err != nil {
		return eris.Wrap(err, "export: set shapefile fields")
	}

	for _, m := range markers {
		row := int(w.Write(&shp.Point{X: m.Longitude, Y: m.Latitude}))
		values := []string{m.Label, m.Description, string(m.Source)}
		for i, v := range values {
			if err := w.WriteAttribute(row, i, truncate(v, int(shapeFields[i].Size))); err != nil {
				return eris.Wrapf(err, "export: write attribute %d of row %d", i, row)
			}
		}
	}

	zap.L().Debug("export: wrote shapefile", zap.String("path", path), zap.Int("markers", len(markers)))
	return nil
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
