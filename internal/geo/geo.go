// Package geo provides the geographic primitives shared by the safety engine:
// coordinates, bounding boxes, and spherical distance/bearing math.
package geo

import (
	"errors"
	"fmt"
	"math"

	"github.com/golang/geo/s2"
)

// Sentinel errors for coordinate validation.
var (
	// ErrInvalidCoordinate indicates a latitude/longitude outside the valid
	// range or a non-finite value. This is a caller bug, not a transient
	// condition.
	ErrInvalidCoordinate = errors.New("invalid coordinate")

	// ErrInvalidBounds indicates a bounding box that does not satisfy
	// north >= south after normalization.
	ErrInvalidBounds = errors.New("invalid bounds")
)

const (
	// EarthRadiusMeters is the mean Earth radius used for spherical math.
	EarthRadiusMeters = 6371000.0

	// MetersPerDegreeLat is the standard meters-per-degree-latitude constant
	// used to convert cell sizes between meters and degrees.
	MetersPerDegreeLat = 111000.0
)

// LatLng is a geographic coordinate in degrees.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Valid reports whether the coordinate is finite and within range.
func (p LatLng) Valid() bool {
	if math.IsNaN(p.Lat) || math.IsInf(p.Lat, 0) || math.IsNaN(p.Lng) || math.IsInf(p.Lng, 0) {
		return false
	}
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

// Validate returns ErrInvalidCoordinate if the coordinate is out of range.
func (p LatLng) Validate() error {
	if !p.Valid() {
		return fmt.Errorf("%w: lat=%v lng=%v", ErrInvalidCoordinate, p.Lat, p.Lng)
	}
	return nil
}

// Bounds is a geographic bounding box. After NewBounds normalization,
// North >= South and East > West always hold; a viewport crossing the
// antimeridian is represented with East > 180.
type Bounds struct {
	North float64 `json:"north"`
	South float64 `json:"south"`
	East  float64 `json:"east"`
	West  float64 `json:"west"`
}

// NewBounds constructs a normalized bounding box. An east edge numerically
// smaller than the west edge is treated as antimeridian wraparound and
// unwrapped by adding 360 degrees.
func NewBounds(north, south, east, west float64) (Bounds, error) {
	for _, v := range []float64{north, south, east, west} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Bounds{}, fmt.Errorf("%w: non-finite edge", ErrInvalidBounds)
		}
	}
	if north < south {
		return Bounds{}, fmt.Errorf("%w: north %v < south %v", ErrInvalidBounds, north, south)
	}
	if north > 90 || south < -90 {
		return Bounds{}, fmt.Errorf("%w: latitude out of range", ErrInvalidBounds)
	}
	if east < west {
		// Antimeridian wraparound
		east += 360
	}
	return Bounds{North: north, South: south, East: east, West: west}, nil
}

// Center returns the midpoint of the bounding box.
func (b Bounds) Center() LatLng {
	lng := (b.East + b.West) / 2
	if lng > 180 {
		lng -= 360
	}
	return LatLng{Lat: (b.North + b.South) / 2, Lng: lng}
}

// LatSpan returns the latitude extent in degrees.
func (b Bounds) LatSpan() float64 { return b.North - b.South }

// LngSpan returns the longitude extent in degrees.
func (b Bounds) LngSpan() float64 { return b.East - b.West }

// Contains reports whether the point lies inside the box.
func (b Bounds) Contains(p LatLng) bool {
	lng := p.Lng
	if lng < b.West {
		lng += 360
	}
	return p.Lat >= b.South && p.Lat <= b.North && lng >= b.West && lng <= b.East
}

// Distance returns the great-circle distance between two points in meters.
func Distance(a, b LatLng) float64 {
	p := s2.LatLngFromDegrees(a.Lat, a.Lng)
	q := s2.LatLngFromDegrees(b.Lat, b.Lng)
	return float64(p.Distance(q)) * EarthRadiusMeters
}

// Bearing returns the initial bearing from a to b in degrees [0, 360).
func Bearing(a, b LatLng) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	y := math.Sin(dLng) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLng)

	deg := math.Atan2(y, x) * 180 / math.Pi
	return math.Mod(deg+360, 360)
}

// DestinationOffset returns the degree spans covered by the given distance in
// meters at the given latitude. Longitude degrees shrink with cos(lat); near
// the poles the correction is floored to keep the span finite.
func DestinationOffset(lat float64, meters float64) (latDeg, lngDeg float64) {
	latDeg = meters / MetersPerDegreeLat
	cosLat := math.Cos(lat * math.Pi / 180)
	if cosLat < 0.01 {
		cosLat = 0.01
	}
	lngDeg = meters / (MetersPerDegreeLat * cosLat)
	return latDeg, lngDeg
}
