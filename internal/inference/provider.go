// Package inference mediates calls to an external text-inference provider.
// All calls go through a FIFO queue that enforces the provider's quota:
// a minimum spacing between calls and a rolling hourly cap. Over-quota calls
// wait for the next window instead of failing.
package inference

import (
	"context"
	"errors"
)

// Sentinel errors for inference operations.
var (
	// ErrProviderUnavailable indicates the provider is down or the circuit
	// breaker is open.
	ErrProviderUnavailable = errors.New("inference provider unavailable")

	// ErrQueueClosed indicates the queue has been shut down.
	ErrQueueClosed = errors.New("inference queue closed")
)

// Provider is the capability interface for an external inference backend.
// The engine treats failures and timeouts uniformly and never assumes
// availability.
type Provider interface {
	// Analyze submits a prompt and returns the generated text.
	Analyze(ctx context.Context, prompt string) (string, error)

	// Name returns the provider identifier for logging and metrics.
	Name() string
}
