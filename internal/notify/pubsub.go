package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"
)

// PubSubSink publishes notifications to a Pub/Sub topic for downstream
// delivery (push services, escalation pipelines).
type PubSubSink struct {
	client    *pubsub.Client
	publisher *pubsub.Publisher
	topicID   string
	logger    zerolog.Logger
}

// PubSubSinkConfig holds configuration for the Pub/Sub sink.
type PubSubSinkConfig struct {
	ProjectID string
	TopicID   string
	Logger    zerolog.Logger
}

// NewPubSubSink creates a Pub/Sub backed notification sink.
func NewPubSubSink(ctx context.Context, cfg PubSubSinkConfig) (*PubSubSink, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	return &PubSubSink{
		client:    client,
		publisher: client.Publisher(cfg.TopicID),
		topicID:   cfg.TopicID,
		logger:    cfg.Logger,
	}, nil
}

func (s *PubSubSink) Notify(ctx context.Context, n Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("encoding notification: %w", err)
	}

	result := s.publisher.Publish(ctx, &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"category": n.Category,
			"severity": n.Severity,
		},
	})

	id, err := result.Get(ctx)
	if err != nil {
		return fmt.Errorf("publishing to %s: %w", s.topicID, err)
	}

	s.logger.Debug().
		Str("message_id", id).
		Str("alert_id", n.ID).
		Msg("alert published")
	return nil
}

func (s *PubSubSink) Name() string { return "pubsub" }

// Close stops the publisher and releases the client.
func (s *PubSubSink) Close() error {
	s.publisher.Stop()
	return s.client.Close()
}
