// Package resolve decides, per rate record, whether a marker can be emitted
// immediately, needs a deferred geocode lookup, or must be dropped.
package resolve

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/sells-group/rate-map/internal/marker"
	"github.com/sells-group/rate-map/internal/model"
	"github.com/sells-group/rate-map/pkg/geocode"
)

// Country is appended to every named-place query.
const Country = "India"

// Kind is the classification outcome.
type Kind int

const (
	KindDrop      Kind = iota // no usable location data
	KindImmediate             // explicit coordinate present
	KindDeferred              // named place needs a lookup
)

func (k Kind) String() string {
	switch k {
	case KindImmediate:
		return "immediate"
	case KindDeferred:
		return "deferred"
	default:
		return "drop"
	}
}

// Descriptor is the location a record carries, in priority order of use.
type Descriptor struct {
	Coordinate *model.Coordinate // ExplicitCoordinate
	District   string            // NamedPlace, optional
	State      string            // NamedPlace
}

// Unresolvable reports whether d carries neither a coordinate nor a state.
func (d Descriptor) Unresolvable() bool {
	return d.Coordinate == nil && d.State == ""
}

// Classification is the result of Classify. Exactly one of Marker (immediate)
// or Query (deferred) is meaningful, depending on Kind.
type Classification struct {
	Kind   Kind
	Marker marker.Marker // immediate: complete marker
	Query  string        // deferred: normalized lookup key
	Source marker.Source // deferred: district or state
	Label  string
	Desc   string
}

// MarkerAt builds the marker for a deferred classification once its query has
// resolved to c.
func (c Classification) MarkerAt(coord model.Coordinate) marker.Marker {
	return marker.Marker{
		Latitude:    coord.Latitude,
		Longitude:   coord.Longitude,
		Label:       c.Label,
		Description: c.Desc,
		Source:      c.Source,
	}
}

// Describe extracts the location descriptor of rec.
func Describe(rec model.Record) Descriptor {
	var d Descriptor
	if c, ok := explicitCoordinate(rec); ok {
		d.Coordinate = &c
	}
	d.District = model.PlaceName(rec.District)
	d.State = model.PlaceName(rec.State)
	return d
}

// explicitCoordinate returns the first usable pair among the nested
// coordinates object, the top-level fields and the company. Pairs that are out
// of range or exactly (0, 0) are skipped; the backend writes zeros for unset
// coordinates.
func explicitCoordinate(rec model.Record) (model.Coordinate, bool) {
	pairs := make([][2]*model.FlexFloat, 0, 3)
	if rec.Coordinates != nil {
		pairs = append(pairs, [2]*model.FlexFloat{rec.Coordinates.Latitude, rec.Coordinates.Longitude})
	}
	pairs = append(pairs, [2]*model.FlexFloat{rec.Latitude, rec.Longitude})
	if rec.Company != nil {
		pairs = append(pairs, [2]*model.FlexFloat{rec.Company.Latitude, rec.Company.Longitude})
	}

	for _, p := range pairs {
		c, ok := model.Pair(p[0], p[1])
		if !ok || !c.Valid() || (c.Latitude == 0 && c.Longitude == 0) {
			continue
		}
		return c, true
	}
	return model.Coordinate{}, false
}

// Classify maps a record to its resolution path:
//  1. explicit coordinate: immediate marker tagged exact;
//  2. district and state: deferred "{district}, {state}, India";
//  3. state only: deferred "{state}, India";
//  4. otherwise dropped.
func Classify(rec model.Record) Classification {
	d := Describe(rec)
	label := Label(rec)
	desc := Description(rec, d)

	switch {
	case d.Coordinate != nil:
		return Classification{
			Kind: KindImmediate,
			Marker: marker.Marker{
				Latitude:    d.Coordinate.Latitude,
				Longitude:   d.Coordinate.Longitude,
				Label:       label,
				Description: desc,
				Source:      marker.SourceExact,
			},
			Label: label,
			Desc:  desc,
		}
	case d.District != "" && d.State != "":
		return Classification{
			Kind:   KindDeferred,
			Query:  geocode.NormalizeQuery(fmt.Sprintf("%s, %s, %s", d.District, d.State, Country)),
			Source: marker.SourceDistrict,
			Label:  label,
			Desc:   desc,
		}
	case d.State != "":
		return Classification{
			Kind:   KindDeferred,
			Query:  geocode.NormalizeQuery(fmt.Sprintf("%s, %s", d.State, Country)),
			Source: marker.SourceState,
			Label:  label,
			Desc:   desc,
		}
	default:
		return Classification{Kind: KindDrop}
	}
}

// Label is the marker title: company name, else commodity, else the record id.
func Label(rec model.Record) string {
	if rec.Company != nil && strings.TrimSpace(rec.Company.Name) != "" {
		return strings.TrimSpace(rec.Company.Name)
	}
	if c := strings.TrimSpace(rec.Commodity); c != "" {
		return c
	}
	return fmt.Sprintf("Rate #%d", rec.ID)
}

var printer = message.NewPrinter(language.MustParse("en-IN"))

// Description is the marker body: "<commodity>: ₹<rate>/<unit> · <place>".
func Description(rec model.Record, d Descriptor) string {
	var b strings.Builder
	c := strings.TrimSpace(rec.Commodity)
	b.WriteString(c)
	if rec.Rate.Set() {
		if c != "" {
			b.WriteString(": ")
		}
		b.WriteString(printer.Sprintf("₹%.2f", float64(rec.Rate)))
		if u := strings.TrimSpace(rec.Unit); u != "" {
			b.WriteString("/")
			b.WriteString(u)
		}
	}

	var place []string
	if d.District != "" {
		place = append(place, d.District)
	}
	if d.State != "" {
		place = append(place, d.State)
	}
	if len(place) > 0 {
		if b.Len() > 0 {
			b.WriteString(" · ")
		}
		b.WriteString(strings.Join(place, ", "))
	}
	return b.String()
}
