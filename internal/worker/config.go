// Package worker provides the background jobs for Guardian: periodic cache
// warming for watch regions, eviction sweeps, and the threat-analysis loop.
package worker

import (
	"time"

	"github.com/guardian-safety/guardian/internal/geo"
)

// WatchTarget is a geographic region whose safety profiles are kept warm in
// the background so viewport loads hit the cache.
type WatchTarget struct {
	// Name is the human-readable name of the target.
	Name string

	// Points are the lat/lng coordinates to warm.
	// Typically dense urban centers and transit hubs.
	Points []geo.LatLng

	// Priority determines warm order (lower = higher priority).
	Priority int
}

// WarmConfig holds configuration for the cache warm job.
type WarmConfig struct {
	// Targets are the regions to warm. If empty, uses DefaultWatchTargets.
	Targets []WatchTarget

	// Concurrency is the number of concurrent warm operations.
	// Default: 3
	Concurrency int

	// Timeout is the timeout for each point.
	// Default: 30 seconds
	Timeout time.Duration

	// WarmComposite enables composite safety profile warming.
	// Default: true
	WarmComposite bool

	// WarmIncidents enables incident list warming.
	// Default: true
	WarmIncidents bool

	// RadiusKm is the analysis radius used when warming.
	// Default: 2.0
	RadiusKm float64
}

// DefaultWarmConfig returns the default warm configuration.
func DefaultWarmConfig() WarmConfig {
	return WarmConfig{
		Targets:       DefaultWatchTargets(),
		Concurrency:   3,
		Timeout:       30 * time.Second,
		WarmComposite: true,
		WarmIncidents: true,
		RadiusKm:      2.0,
	}
}

// DefaultWatchTargets returns the default watch regions: the New York
// metropolitan core, where the bulk of the user base is.
func DefaultWatchTargets() []WatchTarget {
	return []WatchTarget{
		{
			Name:     "Manhattan",
			Priority: 1,
			Points: []geo.LatLng{
				{Lat: 40.7128, Lng: -74.0060}, // Lower Manhattan
				{Lat: 40.7580, Lng: -73.9855}, // Times Square
				{Lat: 40.7831, Lng: -73.9712}, // Upper West Side
				{Lat: 40.8075, Lng: -73.9626}, // Morningside Heights
			},
		},
		{
			Name:     "Brooklyn",
			Priority: 1,
			Points: []geo.LatLng{
				{Lat: 40.6928, Lng: -73.9903}, // Downtown Brooklyn
				{Lat: 40.7182, Lng: -73.9584}, // Williamsburg
				{Lat: 40.6782, Lng: -73.9442}, // Crown Heights
			},
		},
		{
			Name:     "Queens",
			Priority: 2,
			Points: []geo.LatLng{
				{Lat: 40.7447, Lng: -73.9485}, // Long Island City
				{Lat: 40.7498, Lng: -73.8801}, // Jackson Heights
			},
		},
		{
			Name:     "Bronx",
			Priority: 2,
			Points: []geo.LatLng{
				{Lat: 40.8448, Lng: -73.8648}, // Bronx Park
			},
		},
		{
			Name:     "Jersey City",
			Priority: 3,
			Points: []geo.LatLng{
				{Lat: 40.7178, Lng: -74.0431}, // Exchange Place
			},
		},
		{
			Name:     "Hoboken",
			Priority: 3,
			Points: []geo.LatLng{
				{Lat: 40.7440, Lng: -74.0324}, // Hoboken Terminal
			},
		},
	}
}

// AllPoints returns all points from all targets, ordered by priority.
func (c WarmConfig) AllPoints() []geo.LatLng {
	var points []geo.LatLng
	for _, target := range c.Targets {
		points = append(points, target.Points...)
	}
	return points
}

// TotalPoints returns the total number of points to warm.
func (c WarmConfig) TotalPoints() int {
	total := 0
	for _, target := range c.Targets {
		total += len(target.Points)
	}
	return total
}
