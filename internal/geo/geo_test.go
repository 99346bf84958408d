package geo_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guardian-safety/guardian/internal/geo"
)

func TestNewBounds(t *testing.T) {
	b, err := geo.NewBounds(52.4, 52.3, 5.0, 4.8)
	require.NoError(t, err)
	assert.Equal(t, 52.4, b.North)
	assert.InDelta(t, 0.2, b.LngSpan(), 1e-9)
}

func TestNewBounds_AntimeridianWraparound(t *testing.T) {
	// Viewport straddling the date line: west=179, east=-179
	b, err := geo.NewBounds(10, -10, -179, 179)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, b.LngSpan(), 1e-9)
	assert.Greater(t, b.East, b.West)
}

func TestNewBounds_Invalid(t *testing.T) {
	tests := []struct {
		name                      string
		north, south, east, west float64
	}{
		{"north below south", 10, 20, 5, 4},
		{"NaN edge", math.NaN(), 0, 5, 4},
		{"latitude out of range", 95, 0, 5, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := geo.NewBounds(tt.north, tt.south, tt.east, tt.west)
			require.ErrorIs(t, err, geo.ErrInvalidBounds)
		})
	}
}

func TestLatLng_Validate(t *testing.T) {
	assert.NoError(t, geo.LatLng{Lat: 40.7128, Lng: -74.0060}.Validate())
	assert.ErrorIs(t, geo.LatLng{Lat: 91, Lng: 0}.Validate(), geo.ErrInvalidCoordinate)
	assert.ErrorIs(t, geo.LatLng{Lat: math.Inf(1), Lng: 0}.Validate(), geo.ErrInvalidCoordinate)
}

func TestDistance(t *testing.T) {
	amsterdam := geo.LatLng{Lat: 52.370216, Lng: 4.895168}
	rotterdam := geo.LatLng{Lat: 51.9225, Lng: 4.47917}

	d := geo.Distance(amsterdam, rotterdam)

	// Roughly 57 km between the two city centers.
	assert.InDelta(t, 57000, d, 2000)
	assert.Zero(t, geo.Distance(amsterdam, amsterdam))
}

func TestBearing(t *testing.T) {
	origin := geo.LatLng{Lat: 52.0, Lng: 4.0}

	north := geo.Bearing(origin, geo.LatLng{Lat: 53.0, Lng: 4.0})
	east := geo.Bearing(origin, geo.LatLng{Lat: 52.0, Lng: 5.0})

	assert.InDelta(t, 0, north, 0.5)
	assert.InDelta(t, 90, east, 1.0)
}

func TestDestinationOffset_LongitudeCorrection(t *testing.T) {
	latDeg, lngDegEquator := geo.DestinationOffset(0, 1000)
	_, lngDegNorth := geo.DestinationOffset(60, 1000)

	assert.InDelta(t, 1000.0/111000.0, latDeg, 1e-9)
	// At 60 degrees latitude a degree of longitude is half as wide.
	assert.InDelta(t, lngDegEquator*2, lngDegNorth, lngDegEquator*0.01)
}
