package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"

	"github.com/guardian-safety/guardian/internal/geo"
	"github.com/guardian-safety/guardian/internal/threat"
)

// PubSubHandler handles Pub/Sub job messages for the worker.
type PubSubHandler struct {
	client           *pubsub.Client
	subscriber       *pubsub.Subscriber
	subscriptionName string
	warmJob          *WarmJob
	analyzer         *threat.Analyzer
	logger           zerolog.Logger
}

// PubSubConfig holds configuration for the Pub/Sub handler.
type PubSubConfig struct {
	ProjectID        string
	SubscriptionName string
	WarmJob          *WarmJob
	Analyzer         *threat.Analyzer
	Logger           zerolog.Logger
}

// JobMessage represents a worker job message.
type JobMessage struct {
	JobType string `json:"job_type"`

	// Lat/Lng target an analysis_trigger at a specific location. When
	// omitted, the analyzer falls back to the latest tracked position.
	Lat *float64 `json:"lat,omitempty"`
	Lng *float64 `json:"lng,omitempty"`
}

// NewPubSubHandler creates a new Pub/Sub handler.
func NewPubSubHandler(ctx context.Context, cfg PubSubConfig) (*PubSubHandler, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	subscriber := client.Subscriber(cfg.SubscriptionName)

	// Configure receive settings.
	subscriber.ReceiveSettings.MaxOutstandingMessages = 10
	subscriber.ReceiveSettings.MaxExtension = 10 * time.Minute

	return &PubSubHandler{
		client:           client,
		subscriber:       subscriber,
		subscriptionName: cfg.SubscriptionName,
		warmJob:          cfg.WarmJob,
		analyzer:         cfg.Analyzer,
		logger:           cfg.Logger,
	}, nil
}

// Start begins processing Pub/Sub messages.
func (h *PubSubHandler) Start(ctx context.Context) error {
	h.logger.Info().
		Str("subscription", h.subscriptionName).
		Msg("starting pubsub handler")

	return h.subscriber.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		h.handleMessage(ctx, msg)
	})
}

// Close closes the Pub/Sub client.
func (h *PubSubHandler) Close() error {
	return h.client.Close()
}

func (h *PubSubHandler) handleMessage(ctx context.Context, msg *pubsub.Message) {
	startTime := time.Now()

	logger := h.logger.With().
		Str("message_id", msg.ID).
		Str("publish_time", msg.PublishTime.Format(time.RFC3339)).
		Logger()

	logger.Debug().Msg("received pubsub message")

	var job JobMessage
	if err := json.Unmarshal(msg.Data, &job); err != nil {
		logger.Error().Err(err).Msg("failed to parse message")
		msg.Nack()
		return
	}

	var err error
	switch job.JobType {
	case "cache_warm":
		err = h.handleCacheWarm(ctx)
	case "analysis_trigger":
		err = h.handleAnalysisTrigger(ctx, job)
	case "health_check":
		err = h.handleHealthCheck(ctx)
	default:
		logger.Warn().Str("job_type", job.JobType).Msg("unknown job type")
		msg.Ack() // Ack unknown messages to prevent redelivery
		return
	}

	if err != nil {
		logger.Error().Err(err).Msg("job failed")
		msg.Nack()
		return
	}

	logger.Info().
		Str("job_type", job.JobType).
		Dur("duration", time.Since(startTime)).
		Msg("job completed successfully")

	msg.Ack()
}

func (h *PubSubHandler) handleCacheWarm(ctx context.Context) error {
	if h.warmJob == nil {
		return fmt.Errorf("warm job not configured")
	}

	result := h.warmJob.Run(ctx)

	// Consider it successful if more than half succeeded.
	if result.Failed > result.Successful {
		return fmt.Errorf("too many warm failures: %d/%d", result.Failed, result.TotalPoints)
	}
	return nil
}

func (h *PubSubHandler) handleAnalysisTrigger(ctx context.Context, job JobMessage) error {
	if h.analyzer == nil {
		return fmt.Errorf("analyzer not configured")
	}

	if job.Lat != nil && job.Lng != nil {
		loc := geo.LatLng{Lat: *job.Lat, Lng: *job.Lng}
		_, err := h.analyzer.RunOnce(ctx, loc)
		return err
	}

	h.analyzer.Trigger()
	return nil
}

func (h *PubSubHandler) handleHealthCheck(ctx context.Context) error {
	h.logger.Debug().Msg("running health check")

	if h.warmJob == nil {
		return nil
	}

	// Warm a single point to verify the analysis path end to end.
	testPoint := geo.LatLng{Lat: 40.7128, Lng: -74.0060} // Lower Manhattan

	singlePointConfig := WarmConfig{
		Targets: []WatchTarget{
			{
				Name:     "health-check",
				Priority: 1,
				Points:   []geo.LatLng{testPoint},
			},
		},
		Concurrency:   1,
		Timeout:       10 * time.Second,
		WarmComposite: true,
		WarmIncidents: false, // Skip incident lookups for health check
		RadiusKm:      2.0,
	}

	healthCheckJob := NewWarmJob(WarmJobConfig{
		Config:        singlePointConfig,
		Logger:        h.logger,
		SafetyService: h.warmJob.safetyService,
	})

	result := healthCheckJob.Run(ctx)
	if result.Failed > 0 {
		return fmt.Errorf("health check failed: %d errors", result.Failed)
	}

	h.logger.Debug().Msg("health check passed")
	return nil
}
