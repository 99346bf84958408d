package safety

import (
	"time"

	"github.com/guardian-safety/guardian/internal/geo"
	"github.com/guardian-safety/guardian/internal/grid"
)

// SyntheticBaseline derives the 19 sub-scores from deterministic
// pseudo-random functions of coordinates plus the shared factor provider.
// The same (location, hour, weekday) always yields the same profile.
type SyntheticBaseline struct {
	factors grid.FactorProvider
}

// NewSyntheticBaseline creates the deterministic stand-in baseline source.
// A nil factor provider defaults to the synthetic one.
func NewSyntheticBaseline(factors grid.FactorProvider) *SyntheticBaseline {
	if factors == nil {
		factors = grid.NewSyntheticFactorProvider()
	}
	return &SyntheticBaseline{factors: factors}
}

// Baseline computes the baseline sub-scores for a location. The ranges are
// shaped per dimension so profiles stay plausible.
func (b *SyntheticBaseline) Baseline(loc geo.LatLng, at time.Time) (Metrics, error) {
	noise := func(salt float64) float64 { return grid.CoordinateNoise(loc, salt) }
	f := b.factors.Factors(loc, at)

	return Metrics{
		CrimeRate:             40 + noise(11)*0.55,
		IncidentRecency:       50 + noise(12)*0.5,
		Traffic:               45 + noise(13)*0.5,
		DemographicSafety:     50 + noise(14)*0.45,
		TimeBasedRisk:         f.TimeOfDay,
		CommunalTension:       55 + noise(15)*0.4,
		PoliticalStability:    60 + noise(16)*0.35,
		EmergencyAccess:       f.EmergencyProximity,
		Infrastructure:        45 + noise(17)*0.5,
		CrowdDensity:          f.CrowdLevel,
		Lighting:              f.Lighting,
		Economic:              45 + noise(18)*0.5,
		Tourism:               50 + noise(19)*0.45,
		Transport:             45 + noise(20)*0.5,
		Digital:               60 + noise(21)*0.35,
		Health:                50 + noise(22)*0.45,
		Environmental:         f.Weather,
		Social:                50 + noise(23)*0.45,
		PolicingEffectiveness: 45 + noise(24)*0.5,
		WeatherImpact:         f.Weather,
	}, nil
}
