// Package notify fans threat alerts out to delivery sinks (structured log,
// Pub/Sub). Sinks are best-effort; a failed delivery never blocks analysis.
package notify

import (
	"context"

	"github.com/rs/zerolog"
)

// Notification is the sink-facing projection of a threat alert.
type Notification struct {
	ID       string  `json:"id"`
	Category string  `json:"category"`
	Title    string  `json:"title"`
	Message  string  `json:"message"`
	Severity string  `json:"severity"`
	Score    float64 `json:"score"`
}

// Sink delivers notifications to one destination.
type Sink interface {
	// Notify delivers one notification. Implementations must be safe for
	// concurrent use.
	Notify(ctx context.Context, n Notification) error

	// Name identifies the sink in logs.
	Name() string
}

// LogSink writes notifications to the structured log. Always configured; the
// delivery of record when no external sink is wired.
type LogSink struct {
	logger zerolog.Logger
}

// NewLogSink creates a log-backed sink.
func NewLogSink(logger zerolog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Notify(_ context.Context, n Notification) error {
	s.logger.Warn().
		Str("alert_id", n.ID).
		Str("category", n.Category).
		Str("severity", n.Severity).
		Float64("score", n.Score).
		Str("title", n.Title).
		Msg(n.Message)
	return nil
}

func (s *LogSink) Name() string { return "log" }
