package incidents

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/guardian-safety/guardian/internal/geo"
)

// ServiceConfig holds configuration for the incidents service.
type ServiceConfig struct {
	// Incidents is the incident list source.
	Incidents IncidentSource

	// Places is the emergency-service source.
	Places PlacesSource

	// Logger for service operations.
	Logger zerolog.Logger

	// IncidentTTL is how long incident lists are cached (default: 20 minutes).
	IncidentTTL time.Duration

	// PlacesTTL is how long emergency-service listings are cached
	// (default: 30 minutes).
	PlacesTTL time.Duration

	// StaleIfErrorTTL allows serving stale data on source errors
	// (default: 1 hour).
	StaleIfErrorTTL time.Duration
}

// Service caches incident and emergency-service lookups keyed by rounded
// point and radius.
type Service struct {
	incidents IncidentSource
	places    PlacesSource
	logger    zerolog.Logger

	incidentTTL     time.Duration
	placesTTL       time.Duration
	staleIfErrorTTL time.Duration

	mu            sync.RWMutex
	incidentCache map[string]*incidentEntry
	placesCache   map[string]*placesEntry
}

type incidentEntry struct {
	items     []Incident
	fetchedAt time.Time
	expiresAt time.Time
}

type placesEntry struct {
	items     []EmergencyService
	fetchedAt time.Time
	expiresAt time.Time
}

// NewService creates an incidents service.
func NewService(cfg ServiceConfig) *Service {
	incidentTTL := cfg.IncidentTTL
	if incidentTTL == 0 {
		incidentTTL = 20 * time.Minute
	}
	placesTTL := cfg.PlacesTTL
	if placesTTL == 0 {
		placesTTL = 30 * time.Minute
	}
	staleIfErrorTTL := cfg.StaleIfErrorTTL
	if staleIfErrorTTL == 0 {
		staleIfErrorTTL = time.Hour
	}

	return &Service{
		incidents:       cfg.Incidents,
		places:          cfg.Places,
		logger:          cfg.Logger,
		incidentTTL:     incidentTTL,
		placesTTL:       placesTTL,
		staleIfErrorTTL: staleIfErrorTTL,
		incidentCache:   make(map[string]*incidentEntry),
		placesCache:     make(map[string]*placesEntry),
	}
}

// cacheKey rounds the point to four decimal places (~11 m) so nearby lookups
// share entries.
func cacheKey(loc geo.LatLng, radiusKm float64) string {
	return fmt.Sprintf("%.4f:%.4f:%.1f", loc.Lat, loc.Lng, radiusKm)
}

// Nearby returns incidents near the point, from cache when fresh.
func (s *Service) Nearby(ctx context.Context, loc geo.LatLng, radiusKm float64) ([]Incident, error) {
	if s.incidents == nil {
		return nil, nil
	}

	key := cacheKey(loc, radiusKm)
	now := time.Now()

	s.mu.RLock()
	entry, ok := s.incidentCache[key]
	if ok && now.Before(entry.expiresAt) {
		items := entry.items
		s.mu.RUnlock()
		return items, nil
	}
	s.mu.RUnlock()

	items, err := s.incidents.NearbyIncidents(ctx, loc, radiusKm)
	if err != nil {
		s.logger.Error().Err(err).Str("key", key).Msg("incident lookup failed")

		// Serve stale data if it is not too old.
		s.mu.RLock()
		defer s.mu.RUnlock()
		if entry != nil && now.Before(entry.fetchedAt.Add(s.staleIfErrorTTL)) {
			s.logger.Warn().Str("key", key).Msg("serving stale incident list")
			return entry.items, nil
		}
		return nil, ErrSourceUnavailable
	}

	s.mu.Lock()
	s.incidentCache[key] = &incidentEntry{
		items:     items,
		fetchedAt: now,
		expiresAt: now.Add(s.incidentTTL),
	}
	s.mu.Unlock()

	s.logger.Debug().Str("key", key).Int("count", len(items)).Msg("incident list refreshed")
	return items, nil
}

// NearbyEmergencyServices returns emergency services near the point, from
// cache when fresh.
func (s *Service) NearbyEmergencyServices(ctx context.Context, loc geo.LatLng, radiusKm float64) ([]EmergencyService, error) {
	if s.places == nil {
		return nil, nil
	}

	key := cacheKey(loc, radiusKm)
	now := time.Now()

	s.mu.RLock()
	entry, ok := s.placesCache[key]
	if ok && now.Before(entry.expiresAt) {
		items := entry.items
		s.mu.RUnlock()
		return items, nil
	}
	s.mu.RUnlock()

	items, err := s.places.NearbyEmergencyServices(ctx, loc, radiusKm)
	if err != nil {
		s.logger.Error().Err(err).Str("key", key).Msg("emergency service lookup failed")

		s.mu.RLock()
		defer s.mu.RUnlock()
		if entry != nil && now.Before(entry.fetchedAt.Add(s.staleIfErrorTTL)) {
			return entry.items, nil
		}
		return nil, ErrSourceUnavailable
	}

	s.mu.Lock()
	s.placesCache[key] = &placesEntry{
		items:     items,
		fetchedAt: now,
		expiresAt: now.Add(s.placesTTL),
	}
	s.mu.Unlock()

	return items, nil
}

// Sweep removes expired entries. Called periodically by the worker.
func (s *Service) Sweep() int {
	now := time.Now()
	removed := 0

	s.mu.Lock()
	defer s.mu.Unlock()

	for key, entry := range s.incidentCache {
		if now.After(entry.fetchedAt.Add(s.staleIfErrorTTL)) {
			delete(s.incidentCache, key)
			removed++
		}
	}
	for key, entry := range s.placesCache {
		if now.After(entry.fetchedAt.Add(s.staleIfErrorTTL)) {
			delete(s.placesCache, key)
			removed++
		}
	}
	return removed
}
