package safety

import (
	"context"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/guardian-safety/guardian/internal/geo"
	"github.com/guardian-safety/guardian/internal/incidents"
	"github.com/guardian-safety/guardian/internal/inference"
)

// BaselineSource supplies the 19 baseline sub-scores for a location. The
// shipped implementation is synthetic; a production deployment substitutes a
// source backed by real data without touching the aggregation logic.
type BaselineSource interface {
	Baseline(loc geo.LatLng, at time.Time) (Metrics, error)
}

// ServiceConfig holds configuration for the aggregator.
type ServiceConfig struct {
	// Incidents resolves nearby incidents and emergency services. Optional;
	// the corresponding branches are skipped when nil.
	Incidents *incidents.Service

	// Inference mediates the AI-augmented branch. Optional; high-priority
	// analyses skip the branch when nil.
	Inference *inference.Queue

	// Baseline supplies the baseline sub-scores. Defaults to the synthetic
	// source.
	Baseline BaselineSource

	// Logger for service operations.
	Logger zerolog.Logger

	// CacheTTL is how long composite profiles are cached (default: 45 minutes).
	CacheTTL time.Duration

	// BranchTimeout bounds each fan-out branch (default: 10 seconds).
	BranchTimeout time.Duration

	// Now overrides the clock for tests.
	Now func() time.Time
}

// Service is the composite metrics aggregator. Results are cached by
// (lat rounded to 4dp, lng rounded to 4dp, radius) and individual fan-out
// branch failures degrade to fallback values rather than failing the call.
type Service struct {
	incidents     *incidents.Service
	inference     *inference.Queue
	baseline      BaselineSource
	logger        zerolog.Logger
	cacheTTL      time.Duration
	branchTimeout time.Duration
	now           func() time.Time

	generation atomic.Uint64

	mu    sync.RWMutex
	cache map[string]*cacheEntry
}

type cacheEntry struct {
	metrics   Metrics
	writtenAt time.Time
	expiresAt time.Time
}

// NewService creates the aggregator.
func NewService(cfg ServiceConfig) *Service {
	baseline := cfg.Baseline
	if baseline == nil {
		baseline = NewSyntheticBaseline(nil)
	}
	cacheTTL := cfg.CacheTTL
	if cacheTTL == 0 {
		cacheTTL = 45 * time.Minute
	}
	branchTimeout := cfg.BranchTimeout
	if branchTimeout == 0 {
		branchTimeout = 10 * time.Second
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Service{
		incidents:     cfg.Incidents,
		inference:     cfg.Inference,
		baseline:      baseline,
		logger:        cfg.Logger,
		cacheTTL:      cacheTTL,
		branchTimeout: branchTimeout,
		now:           now,
		cache:         make(map[string]*cacheEntry),
	}
}

func cacheKey(loc geo.LatLng, radiusKm float64) string {
	return fmt.Sprintf("%.4f:%.4f:%.1f", loc.Lat, loc.Lng, radiusKm)
}

// branchResults collects the fan-out outputs. Each branch has its own slot
// and error; a failed branch contributes only its fallback.
type branchResults struct {
	baseline    Metrics
	baselineErr error

	incidentList []incidents.Incident
	incidentErr  error
	incidentsRan bool

	services    []incidents.EmergencyService
	servicesErr error

	aiText string
	aiErr  error
	aiRan  bool
}

// Analyze returns the composite safety profile for a point and radius.
// Provider failures never surface to the caller; the result is always a
// best-effort profile. Only invalid input (a caller bug) is rejected.
func (s *Service) Analyze(ctx context.Context, loc geo.LatLng, radiusKm float64, priority Priority) (Metrics, error) {
	if err := loc.Validate(); err != nil {
		return Metrics{}, err
	}
	if radiusKm <= 0 || math.IsNaN(radiusKm) || math.IsInf(radiusKm, 0) {
		return Metrics{}, fmt.Errorf("%w: radius %v km", geo.ErrInvalidCoordinate, radiusKm)
	}

	key := cacheKey(loc, radiusKm)
	now := s.now()

	s.mu.RLock()
	if entry, ok := s.cache[key]; ok && now.Before(entry.expiresAt) {
		metrics := entry.metrics
		s.mu.RUnlock()
		return metrics, nil
	}
	s.mu.RUnlock()

	res := s.fanOut(ctx, loc, radiusKm, priority, now)
	metrics := s.combine(res, now)
	metrics.Generation = s.generation.Load()

	s.mu.Lock()
	s.cache[key] = &cacheEntry{
		metrics:   metrics,
		writtenAt: now,
		expiresAt: now.Add(s.cacheTTL),
	}
	s.mu.Unlock()

	s.logger.Debug().
		Str("key", key).
		Float64("overall", metrics.OverallSafety).
		Str("priority", string(priority)).
		Msg("composite safety profile computed")

	return metrics, nil
}

// fanOut runs the sub-analyses concurrently. Branches succeed or fail
// independently; the aggregate never blocks on a branch beyond its timeout.
func (s *Service) fanOut(ctx context.Context, loc geo.LatLng, radiusKm float64, priority Priority, now time.Time) *branchResults {
	branchCtx, cancel := context.WithTimeout(ctx, s.branchTimeout)
	defer cancel()

	res := &branchResults{}
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		res.baseline, res.baselineErr = s.baseline.Baseline(loc, now)
	}()

	if s.incidents != nil {
		res.incidentsRan = true

		wg.Add(1)
		go func() {
			defer wg.Done()
			res.incidentList, res.incidentErr = s.incidents.Nearby(branchCtx, loc, radiusKm)
		}()

		wg.Add(1)
		go func() {
			defer wg.Done()
			res.services, res.servicesErr = s.incidents.NearbyEmergencyServices(branchCtx, loc, radiusKm)
		}()
	}

	if priority == PriorityHigh && s.inference != nil {
		res.aiRan = true
		wg.Add(1)
		go func() {
			defer wg.Done()
			prompt := fmt.Sprintf(
				"Assess the current safety conditions within %.1f km of %.4f, %.4f.",
				radiusKm, loc.Lat, loc.Lng,
			)
			res.aiText, res.aiErr = s.inference.Analyze(branchCtx, prompt)
		}()
	}

	wg.Wait()
	return res
}

// combine assembles the final profile from whatever branches succeeded.
func (s *Service) combine(res *branchResults, now time.Time) Metrics {
	failed, total := 0, 1

	m := res.baseline
	if res.baselineErr != nil {
		s.logger.Warn().Err(res.baselineErr).Msg("baseline metrics unavailable, using fallback profile")
		m = FallbackProfile(now)
		failed++
	}

	reliability := 75.0

	if res.incidentsRan {
		total += 2
		if res.incidentErr != nil {
			reliability -= 10
			failed++
		} else {
			m.CrimeRate, m.IncidentRecency = applyIncidents(m.CrimeRate, m.IncidentRecency, res.incidentList, now)
		}

		if res.servicesErr != nil {
			reliability -= 5
			failed++
		} else {
			m.EmergencyAccess = emergencyAccessScore(res.services)
		}
	}

	aiConfidence := 50.0
	if res.aiRan {
		total++
		if res.aiErr == nil && res.aiText != "" {
			aiConfidence = 85
			reliability = math.Min(95, reliability+15)
		} else {
			failed++
			s.logger.Warn().Err(res.aiErr).Msg("AI-augmented analysis unavailable, using heuristic confidence")
		}
	}

	if failed >= total {
		// Every branch failed: pure heuristic fallback, never an error.
		s.logger.Warn().Msg("all sub-analyses failed, serving heuristic fallback profile")
		m = FallbackProfile(now)
		m.ComputeOverall()
		return m
	}

	m.DataSourceReliability = math.Max(30, reliability)
	m.AIConfidenceScore = aiConfidence
	m.SeasonalAdjustment = seasonalAdjustment(now)
	m.LastUpdated = now
	m.ComputeOverall()
	return m
}

// applyIncidents lowers the crime and recency scores for recent
// negative-impact incidents.
func applyIncidents(crimeRate, recency float64, list []incidents.Incident, now time.Time) (float64, float64) {
	for _, inc := range list {
		age := now.Sub(inc.ReportedAt)
		if age > 24*time.Hour || inc.Impact >= 0 {
			continue
		}
		penalty := -inc.Impact * 15
		if age < 2*time.Hour {
			penalty *= 2
		}
		crimeRate -= penalty
		recency -= penalty * 1.5
	}
	return math.Max(0, crimeRate), math.Max(0, recency)
}

// emergencyAccessScore rewards nearby emergency services, saturating at five.
func emergencyAccessScore(services []incidents.EmergencyService) float64 {
	n := len(services)
	if n > 5 {
		n = 5
	}
	return math.Min(100, 35+float64(n)*13)
}

// seasonalAdjustment is a coarse daylight-hours proxy.
func seasonalAdjustment(now time.Time) float64 {
	switch now.Month() {
	case time.May, time.June, time.July, time.August:
		return 55
	case time.November, time.December, time.January, time.February:
		return 45
	default:
		return 50
	}
}

// FallbackProfile is the pure-heuristic profile served when every
// sub-analysis fails: fixed plausible defaults with confidence 50.
func FallbackProfile(now time.Time) Metrics {
	return Metrics{
		CrimeRate: 60, IncidentRecency: 65, Traffic: 60, DemographicSafety: 62,
		TimeBasedRisk: 60, CommunalTension: 65, PoliticalStability: 70,
		EmergencyAccess: 55, Infrastructure: 60, CrowdDensity: 55, Lighting: 60,
		Economic: 58, Tourism: 60, Transport: 58, Digital: 65, Health: 62,
		Environmental: 60, Social: 60, PolicingEffectiveness: 58,

		DataSourceReliability: 50,
		AIConfidenceScore:     50,
		WeatherImpact:         50,
		SeasonalAdjustment:    50,
		LastUpdated:           now,
	}
}

// Generation returns the current analysis generation.
func (s *Service) Generation() uint64 { return s.generation.Load() }

// BumpGeneration marks all in-flight analyses as superseded (for example
// after a viewport change). Callers compare a result's Generation against
// the current one and drop stale completions.
func (s *Service) BumpGeneration() uint64 { return s.generation.Add(1) }

// InvalidateCache clears all cached profiles.
func (s *Service) InvalidateCache() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache = make(map[string]*cacheEntry)
}

// Sweep removes expired cache entries. Called periodically by the worker.
func (s *Service) Sweep() int {
	now := s.now()
	removed := 0

	s.mu.Lock()
	defer s.mu.Unlock()
	for key, entry := range s.cache {
		if now.After(entry.expiresAt) {
			delete(s.cache, key)
			removed++
		}
	}
	return removed
}

// CacheSize returns the number of cached profiles.
func (s *Service) CacheSize() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.cache)
}
