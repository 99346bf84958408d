// Package incidents provides cached access to nearby incident reports and
// emergency-service listings. Retrieval is delegated to narrow source
// interfaces; all scoring happens downstream in the safety aggregator.
package incidents

import (
	"context"
	"errors"
	"time"

	"github.com/guardian-safety/guardian/internal/geo"
)

// Sentinel errors for incident lookups.
var (
	// ErrSourceUnavailable indicates the upstream source failed and no stale
	// data was available to serve.
	ErrSourceUnavailable = errors.New("incident source unavailable")
)

// Incident is a single reported incident near a location.
type Incident struct {
	ID          string     `json:"id"`
	Location    geo.LatLng `json:"location"`
	Category    string     `json:"category"`
	Severity    string     `json:"severity"`
	Description string     `json:"description"`
	ReportedAt  time.Time  `json:"reportedAt"`

	// Impact is the incident's effect on local safety in [-1, 0]; more
	// negative means worse.
	Impact float64 `json:"impact"`
}

// EmergencyService is a nearby police station, hospital, or fire station.
type EmergencyService struct {
	Name           string     `json:"name"`
	Kind           string     `json:"kind"`
	Location       geo.LatLng `json:"location"`
	DistanceMeters float64    `json:"distanceMeters"`
}

// IncidentSource returns raw incident lists by point and radius.
type IncidentSource interface {
	NearbyIncidents(ctx context.Context, loc geo.LatLng, radiusKm float64) ([]Incident, error)
}

// PlacesSource returns raw emergency-service listings by point and radius.
type PlacesSource interface {
	NearbyEmergencyServices(ctx context.Context, loc geo.LatLng, radiusKm float64) ([]EmergencyService, error)
}
