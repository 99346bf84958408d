package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/guardian-safety/guardian/internal/incidents"
	"github.com/guardian-safety/guardian/internal/safety"
	"github.com/guardian-safety/guardian/internal/threat"
)

// SchedulerConfig holds configuration for the periodic scheduler.
type SchedulerConfig struct {
	// WarmJob is run on every warm interval. Optional.
	WarmJob *WarmJob

	// Analyzer is the threat analysis loop; the scheduler runs it in its
	// own goroutine. Optional.
	Analyzer *threat.Analyzer

	// Safety and Incidents are swept for expired cache entries. Optional.
	Safety    *safety.Service
	Incidents *incidents.Service

	// Registry is purged of stale and dismissed alerts. Optional.
	Registry *threat.Registry

	// Logger for scheduler operations.
	Logger zerolog.Logger

	// WarmInterval between cache warm passes (default: 5 minutes).
	WarmInterval time.Duration

	// SweepInterval between eviction sweeps (default: 10 minutes).
	SweepInterval time.Duration
}

// Scheduler drives the periodic engine work: cache warming, eviction sweeps,
// and the threat-analysis loop.
type Scheduler struct {
	warmJob       *WarmJob
	analyzer      *threat.Analyzer
	safetyService *safety.Service
	incidents     *incidents.Service
	registry      *threat.Registry
	logger        zerolog.Logger
	warmInterval  time.Duration
	sweepInterval time.Duration
}

// NewScheduler creates the periodic scheduler.
func NewScheduler(cfg SchedulerConfig) *Scheduler {
	warmInterval := cfg.WarmInterval
	if warmInterval == 0 {
		warmInterval = 5 * time.Minute
	}
	sweepInterval := cfg.SweepInterval
	if sweepInterval == 0 {
		sweepInterval = 10 * time.Minute
	}

	return &Scheduler{
		warmJob:       cfg.WarmJob,
		analyzer:      cfg.Analyzer,
		safetyService: cfg.Safety,
		incidents:     cfg.Incidents,
		registry:      cfg.Registry,
		logger:        cfg.Logger,
		warmInterval:  warmInterval,
		sweepInterval: sweepInterval,
	}
}

// Run blocks until the context is cancelled, driving all periodic work.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info().
		Dur("warm_interval", s.warmInterval).
		Dur("sweep_interval", s.sweepInterval).
		Msg("scheduler started")

	if s.analyzer != nil {
		go func() {
			if err := s.analyzer.Run(ctx); err != nil && ctx.Err() == nil {
				s.logger.Error().Err(err).Msg("threat analyzer stopped unexpectedly")
			}
		}()
	}

	// Warm once at startup so the first viewport load hits the cache.
	if s.warmJob != nil {
		s.warmJob.Run(ctx)
	}

	warmTicker := time.NewTicker(s.warmInterval)
	defer warmTicker.Stop()
	sweepTicker := time.NewTicker(s.sweepInterval)
	defer sweepTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("scheduler stopped")
			return ctx.Err()
		case <-warmTicker.C:
			if s.warmJob != nil {
				s.warmJob.Run(ctx)
			}
		case <-sweepTicker.C:
			s.sweep()
		}
	}
}

// sweep evicts expired cache entries and stale alerts.
func (s *Scheduler) sweep() {
	removed := 0
	if s.safetyService != nil {
		removed += s.safetyService.Sweep()
	}
	if s.incidents != nil {
		removed += s.incidents.Sweep()
	}
	purged := 0
	if s.registry != nil {
		purged = s.registry.Purge()
	}

	s.logger.Debug().
		Int("cache_entries_removed", removed).
		Int("alerts_purged", purged).
		Msg("eviction sweep completed")
}
