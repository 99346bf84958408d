package threat

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// RegistryConfig holds configuration for the alert registry.
type RegistryConfig struct {
	// Logger for registry operations.
	Logger zerolog.Logger

	// History archives raised and dismissed alerts. Optional; archival
	// failures are logged and never block the registry.
	History Repository

	// TTL is how long an alert stays active (default: AlertTTL).
	TTL time.Duration

	// Now overrides the clock for tests.
	Now func() time.Time
}

// Subscriber receives the full active alert list after every mutation.
type Subscriber func(active []Alert)

// Registry holds the active threat alerts. Mutations come from the analyzer
// (merge, purge) and the user (dismiss); every mutation pushes the complete
// active list to all subscribers.
type Registry struct {
	logger  zerolog.Logger
	history Repository
	ttl     time.Duration
	now     func() time.Time

	mu      sync.Mutex
	alerts  map[string]*Alert
	subs    map[uint64]Subscriber
	nextSub uint64
}

// NewRegistry creates an empty alert registry.
func NewRegistry(cfg RegistryConfig) *Registry {
	ttl := cfg.TTL
	if ttl == 0 {
		ttl = AlertTTL
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Registry{
		logger:  cfg.Logger,
		history: cfg.History,
		ttl:     ttl,
		now:     now,
		alerts:  make(map[string]*Alert),
		subs:    make(map[uint64]Subscriber),
	}
}

// Merge folds a batch of freshly analyzed alerts into the registry. An
// incoming alert matching a live alert's (category, title) refreshes that
// alert in place instead of duplicating it. Expired and dismissed entries
// are dropped in the same pass. Returns the genuinely new alerts.
func (r *Registry) Merge(ctx context.Context, incoming []Alert) []Alert {
	now := r.now()

	r.mu.Lock()
	removed := r.purgeLocked(now)

	var inserted []Alert
	for _, a := range incoming {
		if existing := r.findLive(a.Category, a.Title); existing != nil {
			existing.Timestamp = now
			existing.Severity = a.Severity
			existing.Rationale = a.Rationale
			continue
		}

		if a.ID == "" {
			a.ID = uuid.NewString()
		}
		if a.Timestamp.IsZero() {
			a.Timestamp = now
		}
		stored := a
		r.alerts[stored.ID] = &stored
		inserted = append(inserted, stored)
	}

	active, subs := r.snapshotLocked(now)
	r.mu.Unlock()

	for _, a := range inserted {
		r.archive(ctx, a)
	}
	if len(incoming) > 0 || removed > 0 {
		publish(subs, active)
	}
	return inserted
}

// Dismiss marks an alert dismissed, removing it from the active list
// immediately. Returns false for an unknown ID.
func (r *Registry) Dismiss(ctx context.Context, id string) bool {
	r.mu.Lock()
	alert, ok := r.alerts[id]
	if !ok || alert.Dismissed {
		r.mu.Unlock()
		return ok
	}
	alert.Dismissed = true
	active, subs := r.snapshotLocked(r.now())
	r.mu.Unlock()

	if r.history != nil {
		if err := r.history.MarkDismissed(ctx, id); err != nil {
			r.logger.Warn().Err(err).Str("alert_id", id).Msg("failed to archive dismissal")
		}
	}

	r.logger.Info().Str("alert_id", id).Msg("alert dismissed")
	publish(subs, active)
	return true
}

// Active returns the live alerts, newest first.
func (r *Registry) Active() []Alert {
	r.mu.Lock()
	defer r.mu.Unlock()
	active, _ := r.snapshotLocked(r.now())
	return active
}

// Subscribe registers a callback for active-list pushes. The returned
// function unsubscribes.
func (r *Registry) Subscribe(fn Subscriber) func() {
	r.mu.Lock()
	id := r.nextSub
	r.nextSub++
	r.subs[id] = fn
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		delete(r.subs, id)
		r.mu.Unlock()
	}
}

// Purge drops expired and dismissed alerts, notifying subscribers if
// anything changed. Called by the worker's eviction sweep.
func (r *Registry) Purge() int {
	now := r.now()

	r.mu.Lock()
	removed := r.purgeLocked(now)
	var active []Alert
	var subs []Subscriber
	if removed > 0 {
		active, subs = r.snapshotLocked(now)
	}
	r.mu.Unlock()

	if removed > 0 {
		publish(subs, active)
	}
	return removed
}

// findLive returns the live alert with the given category and title, if any.
// Caller holds the lock.
func (r *Registry) findLive(cat Category, title string) *Alert {
	for _, a := range r.alerts {
		if !a.Dismissed && a.Category == cat && a.Title == title {
			return a
		}
	}
	return nil
}

// purgeLocked removes dismissed and expired entries. Caller holds the lock.
func (r *Registry) purgeLocked(now time.Time) int {
	removed := 0
	for id, a := range r.alerts {
		if a.Dismissed || now.Sub(a.Timestamp) > r.ttl {
			delete(r.alerts, id)
			removed++
		}
	}
	return removed
}

// snapshotLocked returns the active list (newest first) and the current
// subscribers. Caller holds the lock; callbacks run after release.
func (r *Registry) snapshotLocked(now time.Time) ([]Alert, []Subscriber) {
	active := make([]Alert, 0, len(r.alerts))
	for _, a := range r.alerts {
		if a.Dismissed || now.Sub(a.Timestamp) > r.ttl {
			continue
		}
		active = append(active, *a)
	}
	sort.Slice(active, func(i, j int) bool {
		return active[i].Timestamp.After(active[j].Timestamp)
	})

	subs := make([]Subscriber, 0, len(r.subs))
	for _, fn := range r.subs {
		subs = append(subs, fn)
	}
	return active, subs
}

func (r *Registry) archive(ctx context.Context, a Alert) {
	if r.history == nil {
		return
	}
	if err := r.history.SaveAlert(ctx, a); err != nil {
		r.logger.Warn().Err(err).Str("alert_id", a.ID).Msg("failed to archive alert")
	}
}

func publish(subs []Subscriber, active []Alert) {
	for _, fn := range subs {
		fn(active)
	}
}
