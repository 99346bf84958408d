package models

import "github.com/guardian-safety/guardian/internal/safety"

// AnalysisResponse is the composite safety profile for a point and radius.
type AnalysisResponse struct {
	Location Point   `json:"location"`
	RadiusKm float64 `json:"radiusKm"`
	Priority string  `json:"priority"`

	Metrics safety.Metrics `json:"metrics"`
}
