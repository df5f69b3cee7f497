package model

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// Coordinate is a WGS84 latitude/longitude pair in decimal degrees.
type Coordinate struct {
	Latitude  float64 `json:"lat" yaml:"lat"`
	Longitude float64 `json:"lon" yaml:"lon"`
}

// Valid reports whether c is finite and within WGS84 bounds.
func (c Coordinate) Valid() bool {
	if math.IsNaN(c.Latitude) || math.IsNaN(c.Longitude) ||
		math.IsInf(c.Latitude, 0) || math.IsInf(c.Longitude, 0) {
		return false
	}
	return c.Latitude >= -90 && c.Latitude <= 90 &&
		c.Longitude >= -180 && c.Longitude <= 180
}

// Record is a commodity-rate record as returned by the rates REST endpoint.
// Every location-bearing field is optional.
type Record struct {
	ID          int64      `json:"id"`
	Commodity   string     `json:"commodity"`
	Rate        FlexFloat  `json:"rate"`
	Unit        string     `json:"unit"`
	Company     *Company   `json:"company,omitempty"`
	District    *Place     `json:"district,omitempty"`
	State       *Place     `json:"state,omitempty"`
	Coordinates *GeoPoint  `json:"coordinates,omitempty"`
	Latitude    *FlexFloat `json:"latitude,omitempty"`
	Longitude   *FlexFloat `json:"longitude,omitempty"`
}

// Company is the trading company a rate was published by.
type Company struct {
	ID        int64      `json:"id"`
	Name      string     `json:"name"`
	Latitude  *FlexFloat `json:"latitude,omitempty"`
	Longitude *FlexFloat `json:"longitude,omitempty"`
}

// Place is a named administrative area (district or state).
type Place struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// UnmarshalJSON accepts either a bare string or an object with a name.
func (p *Place) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &p.Name)
	}
	type plain Place
	var v plain
	if err := json.Unmarshal(data, &v); err != nil {
		return eris.Wrap(err, "model: decode place")
	}
	*p = Place(v)
	return nil
}

// GeoPoint is the nested coordinate sub-object of a record.
type GeoPoint struct {
	Latitude  *FlexFloat `json:"lat,omitempty"`
	Longitude *FlexFloat `json:"lon,omitempty"`
}

// FlexFloat decodes JSON numbers and numeric strings. An empty string decodes
// to NaN so it reads as unset; null leaves a pointer field nil.
type FlexFloat float64

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexFloat) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		return nil
	}
	s = strings.Trim(s, `"`)
	if strings.TrimSpace(s) == "" {
		*f = FlexFloat(math.NaN())
		return nil
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return eris.Wrapf(err, "model: parse number %q", s)
	}
	*f = FlexFloat(v)
	return nil
}

// Set reports whether f holds a number.
func (f *FlexFloat) Set() bool {
	return f != nil && !math.IsNaN(float64(*f))
}

// Pair returns the coordinate formed by lat and lon when both are set.
func Pair(lat, lon *FlexFloat) (Coordinate, bool) {
	if !lat.Set() || !lon.Set() {
		return Coordinate{}, false
	}
	return Coordinate{Latitude: float64(*lat), Longitude: float64(*lon)}, true
}

// PlaceName returns the trimmed name of p, or "" when p is nil.
func PlaceName(p *Place) string {
	if p == nil {
		return ""
	}
	return strings.TrimSpace(p.Name)
}
