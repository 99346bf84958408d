// Package safety computes the composite safety profile for a point and
// radius: nineteen weighted sub-scores aggregated into an overall score,
// cached with a TTL and augmented by an external inference provider for
// high-priority requests.
package safety

import (
	"math"
	"time"
)

// Priority selects how much work an analysis is allowed to do. High priority
// adds the external AI-augmented branch.
type Priority string

const (
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

// Overall score clamp range.
const (
	MinOverallSafety = 20.0
	MaxOverallSafety = 100.0
)

// Metrics is the 19-dimension composite safety profile for a location.
// Every sub-score is in [0, 100]; higher is safer.
type Metrics struct {
	CrimeRate             float64 `json:"crimeRate"`
	IncidentRecency       float64 `json:"incidentRecency"`
	Traffic               float64 `json:"traffic"`
	DemographicSafety     float64 `json:"demographicSafety"`
	TimeBasedRisk         float64 `json:"timeBasedRisk"`
	CommunalTension       float64 `json:"communalTension"`
	PoliticalStability    float64 `json:"politicalStability"`
	EmergencyAccess       float64 `json:"emergencyAccess"`
	Infrastructure        float64 `json:"infrastructure"`
	CrowdDensity          float64 `json:"crowdDensity"`
	Lighting              float64 `json:"lighting"`
	Economic              float64 `json:"economic"`
	Tourism               float64 `json:"tourism"`
	Transport             float64 `json:"transport"`
	Digital               float64 `json:"digital"`
	Health                float64 `json:"health"`
	Environmental         float64 `json:"environmental"`
	Social                float64 `json:"social"`
	PolicingEffectiveness float64 `json:"policingEffectiveness"`

	// Meta fields. OverallSafety is the weighted sum of the sub-scores,
	// clamped to [20, 100].
	OverallSafety         float64   `json:"overallSafety"`
	DataSourceReliability float64   `json:"dataSourceReliability"`
	AIConfidenceScore     float64   `json:"aiConfidenceScore"`
	WeatherImpact         float64   `json:"weatherImpact"`
	SeasonalAdjustment    float64   `json:"seasonalAdjustment"`
	LastUpdated           time.Time `json:"lastUpdated"`

	// Generation tags the analysis pass that produced this profile so
	// superseded in-flight results can be discarded by the caller.
	Generation uint64 `json:"generation"`
}

// Sub-score weights. They sum to 1.0.
const (
	weightCrimeRate          = 0.10
	weightIncidentRecency    = 0.08
	weightTraffic            = 0.04
	weightDemographicSafety  = 0.06
	weightTimeBasedRisk      = 0.08
	weightCommunalTension    = 0.05
	weightPoliticalStability = 0.04
	weightEmergencyAccess    = 0.07
	weightInfrastructure     = 0.06
	weightCrowdDensity       = 0.05
	weightLighting           = 0.07
	weightEconomic           = 0.04
	weightTourism            = 0.03
	weightTransport          = 0.05
	weightDigital            = 0.02
	weightHealth             = 0.05
	weightEnvironmental      = 0.05
	weightSocial             = 0.04
	weightPolicing           = 0.02
)

// WeightedSum returns the weighted aggregate of the 19 sub-scores before
// clamping. Exposed so tests can verify the overall-score invariant.
func (m *Metrics) WeightedSum() float64 {
	return m.CrimeRate*weightCrimeRate +
		m.IncidentRecency*weightIncidentRecency +
		m.Traffic*weightTraffic +
		m.DemographicSafety*weightDemographicSafety +
		m.TimeBasedRisk*weightTimeBasedRisk +
		m.CommunalTension*weightCommunalTension +
		m.PoliticalStability*weightPoliticalStability +
		m.EmergencyAccess*weightEmergencyAccess +
		m.Infrastructure*weightInfrastructure +
		m.CrowdDensity*weightCrowdDensity +
		m.Lighting*weightLighting +
		m.Economic*weightEconomic +
		m.Tourism*weightTourism +
		m.Transport*weightTransport +
		m.Digital*weightDigital +
		m.Health*weightHealth +
		m.Environmental*weightEnvironmental +
		m.Social*weightSocial +
		m.PolicingEffectiveness*weightPolicing
}

// ComputeOverall recalculates OverallSafety from the sub-scores.
func (m *Metrics) ComputeOverall() {
	m.OverallSafety = math.Max(MinOverallSafety, math.Min(MaxOverallSafety, m.WeightedSum()))
}
