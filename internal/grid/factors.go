package grid

import (
	"math"
	"time"

	"github.com/guardian-safety/guardian/internal/geo"
)

// Factors are the eight independent sub-scores feeding a cell's safety
// score. All values are in [0, 100].
type Factors struct {
	TimeOfDay          float64 `json:"timeOfDay"`
	LocationDensity    float64 `json:"locationDensity"`
	HistoricalIncidents float64 `json:"historicalIncidents"`
	Lighting           float64 `json:"lighting"`
	Accessibility      float64 `json:"accessibility"`
	CrowdLevel         float64 `json:"crowdLevel"`
	Weather            float64 `json:"weather"`
	EmergencyProximity float64 `json:"emergencyProximity"`
}

// FactorProvider supplies the per-cell safety factors. Implementations must
// keep every factor within [0, 100].
//
// The shipped implementation is synthetic; a production deployment
// substitutes providers backed by real incident, lighting, and census data
// without touching the scoring logic.
type FactorProvider interface {
	Factors(loc geo.LatLng, at time.Time) Factors
}

// SyntheticFactorProvider derives factors from deterministic
// pseudo-random functions of coordinates and local time. The same
// (location, hour, weekday) always yields the same factors.
type SyntheticFactorProvider struct{}

// NewSyntheticFactorProvider returns the deterministic stand-in provider.
func NewSyntheticFactorProvider() *SyntheticFactorProvider {
	return &SyntheticFactorProvider{}
}

// Factors computes the eight sub-scores for a location at a point in time.
func (p *SyntheticFactorProvider) Factors(loc geo.LatLng, at time.Time) Factors {
	hour := at.Hour()
	weekday := int(at.Weekday())

	return Factors{
		TimeOfDay:          timeOfDayFactor(hour),
		LocationDensity:    CoordinateNoise(loc, 1.0),
		HistoricalIncidents: 100 - CoordinateNoise(loc, 2.0)*0.6, // skewed toward fewer incidents
		Lighting:           lightingFactor(loc, hour),
		Accessibility:      40 + CoordinateNoise(loc, 4.0)*0.6,
		CrowdLevel:         crowdFactor(loc, hour, weekday),
		Weather:            55 + CoordinateNoise(loc, 6.0)*0.45,
		EmergencyProximity: 30 + CoordinateNoise(loc, 7.0)*0.7,
	}
}

// CoordinateNoise is a deterministic hash of a coordinate into [0, 100).
// The sin-product construction gives a stable, spatially varied value
// without any external data source.
func CoordinateNoise(loc geo.LatLng, salt float64) float64 {
	v := math.Sin(loc.Lat*12.9898+loc.Lng*78.233+salt*37.719) * 43758.5453
	return (v - math.Floor(v)) * 100
}

func timeOfDayFactor(hour int) float64 {
	switch {
	case hour >= 7 && hour < 18:
		return 85
	case hour >= 18 && hour < 22:
		return 65
	case hour >= 5 && hour < 7:
		return 55
	default:
		// Late night 22:00-05:00
		return 35
	}
}

func lightingFactor(loc geo.LatLng, hour int) float64 {
	base := 50 + CoordinateNoise(loc, 3.0)*0.5
	if hour >= 7 && hour < 19 {
		// Daylight makes street lighting irrelevant.
		return clampFactor(base + 30)
	}
	return clampFactor(base)
}

func crowdFactor(loc geo.LatLng, hour, weekday int) float64 {
	base := 40 + CoordinateNoise(loc, 5.0)*0.5
	if hour >= 8 && hour < 20 {
		base += 20
	}
	if weekday == 0 || weekday == 6 {
		base += 5
	}
	return clampFactor(base)
}

func clampFactor(v float64) float64 {
	return math.Max(0, math.Min(100, v))
}
