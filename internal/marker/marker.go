// Package marker defines map markers and the stream a resolution pass emits
// them on.
package marker

// Source records how a marker's coordinate was obtained.
type Source string

const (
	SourceExact    Source = "exact"    // coordinate carried by the record
	SourceDistrict Source = "district" // resolved from "{district}, {state}, India"
	SourceState    Source = "state"    // resolved from "{state}, India"
)

// Marker is a map-renderable point. Markers are values; once emitted they are
// never modified.
type Marker struct {
	Latitude    float64 `json:"lat" yaml:"lat"`
	Longitude   float64 `json:"lon" yaml:"lon"`
	Label       string  `json:"label" yaml:"label"`
	Description string  `json:"description" yaml:"description"`
	Source      Source  `json:"source" yaml:"source"`
}
