package worker_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guardian-safety/guardian/internal/geo"
	"github.com/guardian-safety/guardian/internal/safety"
	"github.com/guardian-safety/guardian/internal/worker"
)

func TestDefaultWarmConfig(t *testing.T) {
	cfg := worker.DefaultWarmConfig()

	assert.Equal(t, 3, cfg.Concurrency)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.True(t, cfg.WarmComposite)
	assert.True(t, cfg.WarmIncidents)
	assert.Equal(t, 2.0, cfg.RadiusKm)
	assert.NotEmpty(t, cfg.Targets)
}

func TestDefaultWatchTargets(t *testing.T) {
	targets := worker.DefaultWatchTargets()

	assert.GreaterOrEqual(t, len(targets), 5)

	var manhattan *worker.WatchTarget
	for i := range targets {
		if targets[i].Name == "Manhattan" {
			manhattan = &targets[i]
			break
		}
	}
	require.NotNil(t, manhattan)
	assert.Equal(t, 1, manhattan.Priority)
	assert.NotEmpty(t, manhattan.Points)

	cfg := worker.WarmConfig{Targets: targets}
	assert.Equal(t, len(cfg.AllPoints()), cfg.TotalPoints())
}

func TestWarmJob_Run(t *testing.T) {
	svc := safety.NewService(safety.ServiceConfig{Logger: zerolog.Nop()})

	job := worker.NewWarmJob(worker.WarmJobConfig{
		Config: worker.WarmConfig{
			Targets: []worker.WatchTarget{
				{
					Name:     "test",
					Priority: 1,
					Points: []geo.LatLng{
						{Lat: 40.7128, Lng: -74.0060},
						{Lat: 40.7580, Lng: -73.9855},
					},
				},
			},
			Concurrency:   2,
			Timeout:       5 * time.Second,
			WarmComposite: true,
		},
		Logger:        zerolog.Nop(),
		SafetyService: svc,
	})

	result := job.Run(context.Background())

	assert.Equal(t, 2, result.TotalPoints)
	assert.Equal(t, 2, result.Successful)
	assert.Zero(t, result.Failed)
	assert.Equal(t, 2, svc.CacheSize(), "warm pass fills the composite cache")

	metrics := job.GetMetrics()
	assert.Equal(t, int64(1), metrics.TotalRuns)
	assert.Equal(t, int64(2), metrics.CompositeWarms)
	assert.False(t, metrics.LastRunAt.IsZero())
}

func TestWarmJob_RecordsFailures(t *testing.T) {
	svc := safety.NewService(safety.ServiceConfig{Logger: zerolog.Nop()})

	job := worker.NewWarmJob(worker.WarmJobConfig{
		Config: worker.WarmConfig{
			Targets: []worker.WatchTarget{
				{
					Name:   "test",
					Points: []geo.LatLng{{Lat: 95, Lng: 0}}, // out of range
				},
			},
			Concurrency:   1,
			WarmComposite: true,
		},
		Logger:        zerolog.Nop(),
		SafetyService: svc,
	})

	result := job.Run(context.Background())

	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0].Error, "invalid coordinate")
}

func TestScheduler_StopsOnContextCancel(t *testing.T) {
	sched := worker.NewScheduler(worker.SchedulerConfig{Logger: zerolog.Nop()})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sched.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}
