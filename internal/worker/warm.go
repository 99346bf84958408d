package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/guardian-safety/guardian/internal/geo"
	"github.com/guardian-safety/guardian/internal/incidents"
	"github.com/guardian-safety/guardian/internal/safety"
)

// WarmJob keeps the safety and incident caches hot for the watch regions.
type WarmJob struct {
	config WarmConfig
	logger zerolog.Logger

	// Services (optional, nil if not configured)
	safetyService   *safety.Service
	incidentService *incidents.Service

	// Metrics
	metrics *WarmMetrics
}

// WarmMetrics tracks warm job statistics.
type WarmMetrics struct {
	mu sync.RWMutex

	// Counters
	TotalRuns       int64
	SuccessfulWarms int64
	FailedWarms     int64
	CompositeWarms  int64
	IncidentWarms   int64

	// Timings
	LastRunAt       time.Time
	LastRunDuration time.Duration
	TotalDuration   time.Duration
}

// WarmJobConfig holds configuration for creating a WarmJob.
type WarmJobConfig struct {
	Config          WarmConfig
	Logger          zerolog.Logger
	SafetyService   *safety.Service
	IncidentService *incidents.Service
}

// NewWarmJob creates a new cache warm job.
func NewWarmJob(cfg WarmJobConfig) *WarmJob {
	config := cfg.Config
	if len(config.Targets) == 0 {
		config = DefaultWarmConfig()
	}
	if config.Concurrency <= 0 {
		config.Concurrency = 3
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.RadiusKm == 0 {
		config.RadiusKm = 2.0
	}

	return &WarmJob{
		config:          config,
		logger:          cfg.Logger,
		safetyService:   cfg.SafetyService,
		incidentService: cfg.IncidentService,
		metrics:         &WarmMetrics{},
	}
}

// WarmResult contains the result of one warm pass.
type WarmResult struct {
	StartTime   time.Time
	EndTime     time.Time
	Duration    time.Duration
	TotalPoints int
	Successful  int
	Failed      int
	Errors      []WarmError
}

// WarmError records one failed point.
type WarmError struct {
	Point geo.LatLng
	Error string
}

// Run executes the warm job for all configured targets.
func (j *WarmJob) Run(ctx context.Context) *WarmResult {
	startTime := time.Now()
	result := &WarmResult{
		StartTime:   startTime,
		TotalPoints: j.config.TotalPoints(),
	}

	j.logger.Info().
		Int("total_points", result.TotalPoints).
		Int("concurrency", j.config.Concurrency).
		Msg("starting cache warm job")

	points := j.config.AllPoints()

	pointsChan := make(chan geo.LatLng, len(points))
	resultsChan := make(chan pointResult, len(points))

	var wg sync.WaitGroup
	for i := 0; i < j.config.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			j.warmWorker(ctx, pointsChan, resultsChan)
		}()
	}

	for _, p := range points {
		pointsChan <- p
	}
	close(pointsChan)

	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	for pr := range resultsChan {
		if pr.success {
			result.Successful++
		} else {
			result.Failed++
		}
		result.Errors = append(result.Errors, pr.errors...)
	}

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(startTime)

	j.updateMetrics(result)

	j.logger.Info().
		Dur("duration", result.Duration).
		Int("successful", result.Successful).
		Int("failed", result.Failed).
		Msg("cache warm job completed")

	return result
}

type pointResult struct {
	point   geo.LatLng
	success bool
	errors  []WarmError
}

func (j *WarmJob) warmWorker(ctx context.Context, points <-chan geo.LatLng, results chan<- pointResult) {
	for point := range points {
		select {
		case <-ctx.Done():
			return
		default:
			results <- j.warmPoint(ctx, point)
		}
	}
}

func (j *WarmJob) warmPoint(ctx context.Context, point geo.LatLng) pointResult {
	result := pointResult{
		point:   point,
		success: true,
	}

	pointCtx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	if j.config.WarmComposite && j.safetyService != nil {
		if _, err := j.safetyService.Analyze(pointCtx, point, j.config.RadiusKm, safety.PriorityNormal); err != nil {
			result.errors = append(result.errors, WarmError{Point: point, Error: err.Error()})
			result.success = false
		} else {
			atomic.AddInt64(&j.metrics.CompositeWarms, 1)
		}
	}

	if j.config.WarmIncidents && j.incidentService != nil {
		if _, err := j.incidentService.Nearby(pointCtx, point, j.config.RadiusKm); err != nil {
			result.errors = append(result.errors, WarmError{Point: point, Error: err.Error()})
			result.success = false
		} else {
			atomic.AddInt64(&j.metrics.IncidentWarms, 1)
		}
	}

	return result
}

func (j *WarmJob) updateMetrics(result *WarmResult) {
	j.metrics.mu.Lock()
	defer j.metrics.mu.Unlock()

	j.metrics.TotalRuns++
	j.metrics.SuccessfulWarms += int64(result.Successful)
	j.metrics.FailedWarms += int64(result.Failed)
	j.metrics.LastRunAt = result.EndTime
	j.metrics.LastRunDuration = result.Duration
	j.metrics.TotalDuration += result.Duration
}

// GetMetrics returns a copy of the current metrics.
func (j *WarmJob) GetMetrics() WarmMetrics {
	j.metrics.mu.RLock()
	defer j.metrics.mu.RUnlock()

	return WarmMetrics{
		TotalRuns:       j.metrics.TotalRuns,
		SuccessfulWarms: j.metrics.SuccessfulWarms,
		FailedWarms:     j.metrics.FailedWarms,
		CompositeWarms:  atomic.LoadInt64(&j.metrics.CompositeWarms),
		IncidentWarms:   atomic.LoadInt64(&j.metrics.IncidentWarms),
		LastRunAt:       j.metrics.LastRunAt,
		LastRunDuration: j.metrics.LastRunDuration,
		TotalDuration:   j.metrics.TotalDuration,
	}
}

// MetricsSnapshot returns a snapshot of the current metrics as a map.
func (j *WarmJob) MetricsSnapshot() map[string]interface{} {
	m := j.GetMetrics()
	return map[string]interface{}{
		"total_runs":        m.TotalRuns,
		"successful_warms":  m.SuccessfulWarms,
		"failed_warms":      m.FailedWarms,
		"composite_warms":   m.CompositeWarms,
		"incident_warms":    m.IncidentWarms,
		"last_run_at":       m.LastRunAt,
		"last_run_duration": m.LastRunDuration.String(),
		"total_duration":    m.TotalDuration.String(),
	}
}
