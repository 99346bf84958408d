package threat_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guardian-safety/guardian/internal/geo"
	"github.com/guardian-safety/guardian/internal/movement"
	"github.com/guardian-safety/guardian/internal/notify"
	"github.com/guardian-safety/guardian/internal/safety"
	"github.com/guardian-safety/guardian/internal/threat"
)

var downtown = geo.LatLng{Lat: 40.7128, Lng: -74.0060}

// flatBaseline returns the same value for every sub-score, pinning the
// composite overall score for threshold tests.
type flatBaseline struct{ v float64 }

func (b flatBaseline) Baseline(_ geo.LatLng, _ time.Time) (safety.Metrics, error) {
	v := b.v
	return safety.Metrics{
		CrimeRate: v, IncidentRecency: v, Traffic: v, DemographicSafety: v,
		TimeBasedRisk: v, CommunalTension: v, PoliticalStability: v,
		EmergencyAccess: v, Infrastructure: v, CrowdDensity: v, Lighting: v,
		Economic: v, Tourism: v, Transport: v, Digital: v, Health: v,
		Environmental: v, Social: v, PolicingEffectiveness: v,
	}, nil
}

type captureSink struct {
	mu  sync.Mutex
	got []notify.Notification
}

func (s *captureSink) Notify(_ context.Context, n notify.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, n)
	return nil
}

func (s *captureSink) Name() string { return "capture" }

func (s *captureSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.got)
}

type analyzerFixture struct {
	analyzer *threat.Analyzer
	registry *threat.Registry
	sink     *captureSink
}

func newFixture(baseline safety.BaselineSource, tracker *movement.Tracker, clock *time.Time) analyzerFixture {
	nowFn := func() time.Time { return *clock }

	var svc *safety.Service
	if baseline != nil {
		svc = safety.NewService(safety.ServiceConfig{
			Baseline: baseline,
			Logger:   zerolog.Nop(),
			Now:      nowFn,
		})
	}

	reg := threat.NewRegistry(threat.RegistryConfig{Logger: zerolog.Nop(), Now: nowFn})
	sink := &captureSink{}

	return analyzerFixture{
		analyzer: threat.NewAnalyzer(threat.AnalyzerConfig{
			Safety:   svc,
			Movement: tracker,
			Registry: reg,
			Sinks:    []notify.Sink{sink},
			Logger:   zerolog.Nop(),
			Now:      nowFn,
		}),
		registry: reg,
		sink:     sink,
	}
}

func byCategory(alerts []threat.Alert, cat threat.Category) []threat.Alert {
	var out []threat.Alert
	for _, a := range alerts {
		if a.Category == cat {
			out = append(out, a)
		}
	}
	return out
}

func TestAnalyze_LowSafetyRaisesEnvironmentalAlert(t *testing.T) {
	now := time.Date(2026, 8, 18, 13, 0, 0, 0, time.UTC)
	fx := newFixture(flatBaseline{v: 25}, nil, &now)

	alerts, err := fx.analyzer.Analyze(context.Background(), downtown)
	require.NoError(t, err)

	env := byCategory(alerts, threat.CategoryEnvironmental)
	require.Len(t, env, 1)
	assert.Equal(t, "Low area safety score", env[0].Title)
	assert.GreaterOrEqual(t, env[0].Severity.Level.Rank(), threat.LevelMedium.Rank())
}

func TestAnalyze_HealthySafetyNoEnvironmentalAlert(t *testing.T) {
	now := time.Date(2026, 8, 18, 13, 0, 0, 0, time.UTC)
	fx := newFixture(flatBaseline{v: 85}, nil, &now)

	alerts, err := fx.analyzer.Analyze(context.Background(), downtown)
	require.NoError(t, err)
	assert.Empty(t, byCategory(alerts, threat.CategoryEnvironmental))
}

func TestAnalyze_LateNightSocialAlert(t *testing.T) {
	// 02:00, no incidents: the late-night window alone must produce a
	// social alert of at least medium severity.
	now := time.Date(2026, 8, 23, 2, 0, 0, 0, time.UTC)
	fx := newFixture(flatBaseline{v: 85}, nil, &now)

	inserted, err := fx.analyzer.RunOnce(context.Background(), downtown)
	require.NoError(t, err)

	social := byCategory(inserted, threat.CategorySocial)
	require.NotEmpty(t, social)
	assert.Equal(t, "Late-night risk window", social[0].Title)
	assert.GreaterOrEqual(t, social[0].Severity.Level.Rank(), threat.LevelMedium.Rank())

	assert.NotEmpty(t, byCategory(fx.registry.Active(), threat.CategorySocial),
		"raised alerts land in the registry")
	assert.Equal(t, len(inserted), fx.sink.count(), "each new alert reaches the sink")
}

func TestAnalyze_MiddayNoSocialAlert(t *testing.T) {
	now := time.Date(2026, 8, 18, 13, 0, 0, 0, time.UTC) // Tuesday afternoon
	fx := newFixture(flatBaseline{v: 85}, nil, &now)

	alerts, err := fx.analyzer.Analyze(context.Background(), downtown)
	require.NoError(t, err)
	assert.Empty(t, byCategory(alerts, threat.CategorySocial))
}

func TestAnalyze_StationarySubjectRaisesBehavioralAlert(t *testing.T) {
	now := time.Date(2026, 8, 23, 2, 0, 0, 0, time.UTC)
	tracker := movement.NewTracker(movement.TrackerConfig{Logger: zerolog.Nop()})
	for i := 0; i <= 8; i++ {
		tracker.Ingest(movement.Sample{
			Timestamp: now.Add(time.Duration(i-8) * 5 * time.Minute),
			Location:  downtown,
		})
	}
	fx := newFixture(flatBaseline{v: 85}, tracker, &now)

	alerts, err := fx.analyzer.Analyze(context.Background(), downtown)
	require.NoError(t, err)

	behavioral := byCategory(alerts, threat.CategoryBehavioral)
	require.Len(t, behavioral, 1)
	assert.Equal(t, "Prolonged stationary period", behavioral[0].Title)
	assert.Equal(t, threat.LevelLow, behavioral[0].Severity.Level)
}

func TestAnalyze_ErraticMovementRaisesBehavioralAlert(t *testing.T) {
	now := time.Date(2026, 8, 18, 13, 0, 0, 0, time.UTC)
	tracker := movement.NewTracker(movement.TrackerConfig{Logger: zerolog.Nop()})

	// Walk a tight box: the heading vectors cancel out.
	loc := downtown
	at := now.Add(-20 * time.Minute)
	tracker.Ingest(movement.Sample{Timestamp: at, Location: loc})
	deltas := []geo.LatLng{
		{Lat: 0.00075, Lng: 0}, {Lat: 0, Lng: 0.00099},
		{Lat: -0.00075, Lng: 0}, {Lat: 0, Lng: -0.00099},
	}
	for i := 0; i < 12; i++ {
		d := deltas[i%4]
		loc.Lat += d.Lat
		loc.Lng += d.Lng
		at = at.Add(time.Minute)
		tracker.Ingest(movement.Sample{Timestamp: at, Location: loc})
	}
	fx := newFixture(flatBaseline{v: 85}, tracker, &now)

	alerts, err := fx.analyzer.Analyze(context.Background(), downtown)
	require.NoError(t, err)

	behavioral := byCategory(alerts, threat.CategoryBehavioral)
	require.NotEmpty(t, behavioral)
	assert.Equal(t, "Erratic movement pattern", behavioral[0].Title)
	assert.Equal(t, threat.LevelMedium, behavioral[0].Severity.Level)
}

func TestAnalyze_PartialFailureTolerated(t *testing.T) {
	// No safety service: the environmental branch fails, the other
	// categories still produce their results.
	now := time.Date(2026, 8, 23, 2, 0, 0, 0, time.UTC)
	fx := newFixture(nil, nil, &now)

	alerts, err := fx.analyzer.Analyze(context.Background(), downtown)
	require.NoError(t, err, "one failed category must not fail the pass")
	assert.NotEmpty(t, byCategory(alerts, threat.CategorySocial))
}

func TestAnalyze_InvalidLocationRejected(t *testing.T) {
	now := time.Date(2026, 8, 23, 2, 0, 0, 0, time.UTC)
	fx := newFixture(flatBaseline{v: 85}, nil, &now)

	_, err := fx.analyzer.Analyze(context.Background(), geo.LatLng{Lat: 91, Lng: 0})
	require.ErrorIs(t, err, geo.ErrInvalidCoordinate)
}

func TestTryRun_CooldownBoundsFrequency(t *testing.T) {
	now := time.Date(2026, 8, 23, 2, 0, 0, 0, time.UTC)
	tracker := movement.NewTracker(movement.TrackerConfig{Logger: zerolog.Nop()})
	tracker.Ingest(movement.Sample{Timestamp: now.Add(-time.Minute), Location: downtown})
	fx := newFixture(flatBaseline{v: 85}, tracker, &now)
	ctx := context.Background()

	assert.True(t, fx.analyzer.TryRun(ctx))
	assert.False(t, fx.analyzer.TryRun(ctx), "a second pass inside the cooldown is skipped")

	now = now.Add(61 * time.Second)
	assert.True(t, fx.analyzer.TryRun(ctx), "the cooldown has elapsed")
}

func TestTryRun_SkippedPassDoesNotConsumeCooldown(t *testing.T) {
	now := time.Date(2026, 8, 23, 2, 0, 0, 0, time.UTC)
	tracker := movement.NewTracker(movement.TrackerConfig{Logger: zerolog.Nop()})
	fx := newFixture(flatBaseline{v: 85}, tracker, &now)
	ctx := context.Background()

	// No samples yet: the pass is skipped without starting the cooldown.
	assert.False(t, fx.analyzer.TryRun(ctx))

	// The first real fix must be analyzable immediately.
	tracker.Ingest(movement.Sample{Timestamp: now.Add(-time.Minute), Location: downtown})
	assert.True(t, fx.analyzer.TryRun(ctx))
}

func TestRunOnce_RepeatedAlertsNotifyOnce(t *testing.T) {
	now := time.Date(2026, 8, 23, 2, 0, 0, 0, time.UTC)
	fx := newFixture(flatBaseline{v: 85}, nil, &now)
	ctx := context.Background()

	first, err := fx.analyzer.RunOnce(ctx, downtown)
	require.NoError(t, err)
	require.NotEmpty(t, first)
	notified := fx.sink.count()

	now = now.Add(2 * time.Minute)
	again, err := fx.analyzer.RunOnce(ctx, downtown)
	require.NoError(t, err)
	assert.Empty(t, again, "the same conditions refresh existing alerts")
	assert.Equal(t, notified, fx.sink.count(), "refreshes do not re-notify")
}
