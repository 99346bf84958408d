package threat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/guardian-safety/guardian/internal/geo"
	"github.com/guardian-safety/guardian/internal/grid"
	"github.com/guardian-safety/guardian/internal/incidents"
	"github.com/guardian-safety/guardian/internal/movement"
	"github.com/guardian-safety/guardian/internal/notify"
	"github.com/guardian-safety/guardian/internal/safety"
)

// Deterministic location-hash salts for the heuristic category scores.
const (
	socialHashSalt = 31.417
	infraHashSalt  = 32.761
)

// AnalyzerConfig holds configuration for the threat analyzer.
type AnalyzerConfig struct {
	// Safety supplies the composite profile for the environmental analysis.
	Safety *safety.Service

	// Incidents supplies the recent-incident context. Optional.
	Incidents *incidents.Service

	// Movement supplies the sample history for the behavioral analysis.
	// Optional; without it the behavioral branch is skipped and periodic
	// runs have no location to analyze.
	Movement *movement.Tracker

	// Registry receives the merged alerts.
	Registry *Registry

	// Sinks receive notifications for newly raised alerts.
	Sinks []notify.Sink

	// Logger for analyzer operations.
	Logger zerolog.Logger

	// Period between scheduled analysis passes (default: 30 seconds).
	Period time.Duration

	// Cooldown bounds the analysis frequency regardless of trigger source
	// (default: 60 seconds).
	Cooldown time.Duration

	// SafetyThreshold is the overall-safety score below which the
	// environmental analysis raises an alert (default: 45).
	SafetyThreshold float64

	// InfraThreshold is the infrastructure proxy score below which the
	// infrastructure analysis raises an alert (default: 40).
	InfraThreshold float64

	// BranchTimeout bounds each category analysis (default: 15 seconds).
	BranchTimeout time.Duration

	// Now overrides the clock for tests.
	Now func() time.Time
}

// Analyzer runs the four category analyses on a fixed period plus ad-hoc
// triggers (movement anomalies), merging results into the registry.
type Analyzer struct {
	safety          *safety.Service
	incidents       *incidents.Service
	movement        *movement.Tracker
	registry        *Registry
	sinks           []notify.Sink
	logger          zerolog.Logger
	period          time.Duration
	cooldown        time.Duration
	safetyThreshold float64
	infraThreshold  float64
	branchTimeout   time.Duration
	now             func() time.Time

	trigger chan struct{}

	mu      sync.Mutex
	lastRun time.Time
}

// NewAnalyzer creates the threat analyzer.
func NewAnalyzer(cfg AnalyzerConfig) *Analyzer {
	period := cfg.Period
	if period == 0 {
		period = 30 * time.Second
	}
	cooldown := cfg.Cooldown
	if cooldown == 0 {
		cooldown = 60 * time.Second
	}
	safetyThreshold := cfg.SafetyThreshold
	if safetyThreshold == 0 {
		safetyThreshold = 45
	}
	infraThreshold := cfg.InfraThreshold
	if infraThreshold == 0 {
		infraThreshold = 40
	}
	branchTimeout := cfg.BranchTimeout
	if branchTimeout == 0 {
		branchTimeout = 15 * time.Second
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Analyzer{
		safety:          cfg.Safety,
		incidents:       cfg.Incidents,
		movement:        cfg.Movement,
		registry:        cfg.Registry,
		sinks:           cfg.Sinks,
		logger:          cfg.Logger,
		period:          period,
		cooldown:        cooldown,
		safetyThreshold: safetyThreshold,
		infraThreshold:  infraThreshold,
		branchTimeout:   branchTimeout,
		now:             now,
		trigger:         make(chan struct{}, 1),
	}
}

// Run drives the periodic analysis loop until the context is cancelled.
func (a *Analyzer) Run(ctx context.Context) error {
	ticker := time.NewTicker(a.period)
	defer ticker.Stop()

	a.logger.Info().
		Dur("period", a.period).
		Dur("cooldown", a.cooldown).
		Msg("threat analyzer started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			a.TryRun(ctx)
		case <-a.trigger:
			a.TryRun(ctx)
		}
	}
}

// Trigger requests an out-of-cycle analysis pass (movement anomaly). The
// request coalesces with any already pending one; the cooldown still applies.
func (a *Analyzer) Trigger() {
	select {
	case a.trigger <- struct{}{}:
	default:
	}
}

// TryRun performs an analysis pass at the latest known location unless the
// cooldown has not elapsed. Reports whether a pass actually ran.
func (a *Analyzer) TryRun(ctx context.Context) bool {
	now := a.now()

	a.mu.Lock()
	if !a.lastRun.IsZero() && now.Sub(a.lastRun) < a.cooldown {
		a.mu.Unlock()
		a.logger.Debug().Msg("analysis pass skipped, cooldown active")
		return false
	}
	if a.movement == nil {
		a.mu.Unlock()
		a.logger.Debug().Msg("analysis pass skipped, no movement tracker")
		return false
	}
	latest, ok := a.movement.Latest()
	if !ok {
		// A pass that never ran must not consume the cooldown.
		a.mu.Unlock()
		a.logger.Debug().Msg("analysis pass skipped, no location yet")
		return false
	}
	a.lastRun = now
	a.mu.Unlock()

	loc := latest.Location

	if _, err := a.RunOnce(ctx, loc); err != nil {
		a.logger.Error().Err(err).Msg("analysis pass failed")
		return false
	}
	return true
}

// RunOnce analyzes the given location immediately (no cooldown check),
// merges the results into the registry, and notifies the sinks for any new
// alerts. Returns the newly raised alerts.
func (a *Analyzer) RunOnce(ctx context.Context, loc geo.LatLng) ([]Alert, error) {
	alerts, err := a.Analyze(ctx, loc)
	if err != nil {
		return nil, err
	}

	inserted := a.registry.Merge(ctx, alerts)
	for _, alert := range inserted {
		a.notifySinks(ctx, alert)
	}

	a.logger.Info().
		Int("alerts", len(alerts)).
		Int("new", len(inserted)).
		Float64("lat", loc.Lat).
		Float64("lng", loc.Lng).
		Msg("analysis pass completed")
	return inserted, nil
}

// Analyze runs the four category analyses concurrently and returns the
// combined alerts. Individual category failures are tolerated; an error is
// returned only when the input is invalid or every category failed.
func (a *Analyzer) Analyze(ctx context.Context, loc geo.LatLng) ([]Alert, error) {
	if err := loc.Validate(); err != nil {
		return nil, err
	}

	branchCtx, cancel := context.WithTimeout(ctx, a.branchTimeout)
	defer cancel()

	now := a.now()

	type branch struct {
		name    Category
		analyze func() ([]Alert, error)
	}
	branches := []branch{
		{CategoryEnvironmental, func() ([]Alert, error) { return a.analyzeEnvironmental(branchCtx, loc, now) }},
		{CategoryBehavioral, func() ([]Alert, error) { return a.analyzeBehavioral(loc, now) }},
		{CategorySocial, func() ([]Alert, error) { return a.analyzeSocial(loc, now) }},
		{CategoryInfrastructure, func() ([]Alert, error) { return a.analyzeInfrastructure(loc, now) }},
	}

	results := make([][]Alert, len(branches))
	errs := make([]error, len(branches))

	var wg sync.WaitGroup
	for i, b := range branches {
		wg.Add(1)
		go func(i int, b branch) {
			defer wg.Done()
			results[i], errs[i] = b.analyze()
			if errs[i] != nil {
				a.logger.Warn().Err(errs[i]).Str("category", string(b.name)).Msg("category analysis failed")
			}
		}(i, b)
	}
	wg.Wait()

	var alerts []Alert
	failed := 0
	for i := range branches {
		if errs[i] != nil {
			failed++
			continue
		}
		alerts = append(alerts, results[i]...)
	}

	if failed == len(branches) {
		return nil, errors.Join(errs...)
	}
	return alerts, nil
}

// analyzeEnvironmental alerts on a below-threshold composite safety score
// and on recent negative-impact incidents.
func (a *Analyzer) analyzeEnvironmental(ctx context.Context, loc geo.LatLng, now time.Time) ([]Alert, error) {
	if a.safety == nil {
		return nil, errors.New("safety service not configured")
	}

	m, err := a.safety.Analyze(ctx, loc, 2.0, safety.PriorityNormal)
	if err != nil {
		return nil, err
	}

	var alerts []Alert
	if m.OverallSafety < a.safetyThreshold {
		score := 100 - m.OverallSafety
		alerts = append(alerts, Alert{
			Timestamp: now,
			Location:  loc,
			Category:  CategoryEnvironmental,
			Title:     "Low area safety score",
			Severity: Severity{
				Level:      LevelForScore(score),
				Score:      score,
				Confidence: m.DataSourceReliability,
			},
			Recommendation: "Stay alert and consider moving toward a busier, better-lit area.",
			Rationale:      fmt.Sprintf("Composite safety score %.0f is below the %.0f alert threshold.", m.OverallSafety, a.safetyThreshold),
		})
	}

	if a.incidents != nil {
		list, incErr := a.incidents.Nearby(ctx, loc, 2.0)
		if incErr != nil {
			// Incident context is additive; the composite result already
			// stands on its own.
			a.logger.Debug().Err(incErr).Msg("incident context unavailable for environmental analysis")
		} else if recent := countRecentNegative(list, now); recent > 0 {
			score := 50 + float64(recent)*8
			if score > 78 {
				score = 78
			}
			alerts = append(alerts, Alert{
				Timestamp: now,
				Location:  loc,
				Category:  CategoryEnvironmental,
				Title:     "Recent incidents reported nearby",
				Severity: Severity{
					Level:      LevelForScore(score),
					Score:      score,
					Confidence: 75,
				},
				Recommendation: "Avoid the immediate area of the reported incidents.",
				Rationale:      fmt.Sprintf("%d negative incident(s) reported within 2 km in the last 2 hours.", recent),
			})
		}
	}

	return alerts, nil
}

func countRecentNegative(list []incidents.Incident, now time.Time) int {
	n := 0
	for _, inc := range list {
		if inc.Impact < 0 && now.Sub(inc.ReportedAt) <= 2*time.Hour {
			n++
		}
	}
	return n
}

// analyzeBehavioral inspects the movement history for erratic headings and
// prolonged stationary periods.
func (a *Analyzer) analyzeBehavioral(loc geo.LatLng, now time.Time) ([]Alert, error) {
	if a.movement == nil {
		return nil, nil
	}

	var alerts []Alert

	if dispersion := a.movement.HeadingDispersion(12); dispersion > 0.8 {
		alerts = append(alerts, Alert{
			Timestamp: now,
			Location:  loc,
			Category:  CategoryBehavioral,
			Title:     "Erratic movement pattern",
			Severity: Severity{
				Level:      LevelMedium,
				Score:      60,
				Confidence: 65,
			},
			Recommendation: "If you feel disoriented or followed, head to a populated public place.",
			Rationale:      fmt.Sprintf("Heading dispersion %.2f indicates frequent direction changes.", dispersion),
		})
	}

	if still := a.movement.StationarySince(100); still > 30*time.Minute {
		alerts = append(alerts, Alert{
			Timestamp: now,
			Location:  loc,
			Category:  CategoryBehavioral,
			Title:     "Prolonged stationary period",
			Severity: Severity{
				Level:      LevelLow,
				Score:      30,
				Confidence: 60,
			},
			Recommendation: "Check in with a trusted contact if this stop is unplanned.",
			Rationale:      fmt.Sprintf("No significant movement for %s within a 100 m radius.", still.Round(time.Minute)),
		})
	}

	return alerts, nil
}

// analyzeSocial applies the time-of-day and day-of-week risk windows,
// modulated by a deterministic location hash.
func (a *Analyzer) analyzeSocial(loc geo.LatLng, now time.Time) ([]Alert, error) {
	hash := grid.CoordinateNoise(loc, socialHashSalt)
	hour := now.Hour()

	var alerts []Alert

	if hour >= 22 || hour < 5 {
		score := 55 + hash*0.25
		alerts = append(alerts, Alert{
			Timestamp: now,
			Location:  loc,
			Category:  CategorySocial,
			Title:     "Late-night risk window",
			Severity: Severity{
				Level:      LevelForScore(score),
				Score:      score,
				Confidence: 70,
			},
			Recommendation: "Prefer well-lit main streets and share your live location.",
			Rationale:      fmt.Sprintf("Late-night hours (%02d:00) carry elevated risk in this area.", hour),
		})
	}

	weekday := now.Weekday()
	if (weekday == time.Friday || weekday == time.Saturday) && hour >= 18 && hour < 22 {
		score := 40 + hash*0.2
		alerts = append(alerts, Alert{
			Timestamp: now,
			Location:  loc,
			Category:  CategorySocial,
			Title:     "Weekend evening crowd risk",
			Severity: Severity{
				Level:      LevelForScore(score),
				Score:      score,
				Confidence: 70,
			},
			Recommendation: "Expect dense nightlife crowds; keep valuables secured.",
			Rationale:      fmt.Sprintf("Weekend evening window (%s %02d:00).", weekday, hour),
		})
	}

	return alerts, nil
}

// analyzeInfrastructure alerts when the deterministic infrastructure proxy
// score falls below the threshold.
func (a *Analyzer) analyzeInfrastructure(loc geo.LatLng, now time.Time) ([]Alert, error) {
	proxy := grid.CoordinateNoise(loc, infraHashSalt)
	if proxy >= a.infraThreshold {
		return nil, nil
	}

	score := 45 + (a.infraThreshold-proxy)*0.75
	return []Alert{{
		Timestamp: now,
		Location:  loc,
		Category:  CategoryInfrastructure,
		Title:     "Poor infrastructure conditions",
		Severity: Severity{
			Level:      LevelForScore(score),
			Score:      score,
			Confidence: 60,
		},
		Recommendation: "Watch for broken lighting and degraded walkways on this stretch.",
		Rationale:      fmt.Sprintf("Infrastructure quality proxy %.0f is below the %.0f threshold.", proxy, a.infraThreshold),
	}}, nil
}

func (a *Analyzer) notifySinks(ctx context.Context, alert Alert) {
	n := notify.Notification{
		ID:       alert.ID,
		Category: string(alert.Category),
		Title:    alert.Title,
		Message:  alert.Rationale,
		Severity: string(alert.Severity.Level),
		Score:    alert.Severity.Score,
	}
	for _, sink := range a.sinks {
		if err := sink.Notify(ctx, n); err != nil {
			a.logger.Warn().
				Err(err).
				Str("sink", sink.Name()).
				Str("alert_id", alert.ID).
				Msg("alert notification failed")
		}
	}
}
