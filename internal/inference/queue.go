package inference

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// QueueConfig holds configuration for the rate-limited request queue.
type QueueConfig struct {
	// Provider is the inference backend.
	Provider Provider

	// Logger for queue operations.
	Logger zerolog.Logger

	// MinInterval is the minimum spacing between provider calls
	// (default: 12 seconds).
	MinInterval time.Duration

	// WindowLimit is the maximum number of calls per rolling window
	// (default: 25).
	WindowLimit int

	// Window is the rolling quota window (default: 1 hour).
	Window time.Duration

	// CallTimeout bounds each provider call (default: 30 seconds).
	CallTimeout time.Duration

	// Depth is the submission channel buffer (default: 64). Submissions
	// beyond the buffer block until the dispatcher catches up, preserving
	// FIFO order.
	Depth int
}

type queueRequest struct {
	ctx    context.Context
	prompt string
	result chan queueResult
}

type queueResult struct {
	text string
	err  error
}

// Queue serializes provider calls and enforces the quota policy. A single
// dispatcher goroutine executes calls strictly in submission order, so no
// two calls ever run concurrently or closer together than MinInterval.
type Queue struct {
	provider    Provider
	logger      zerolog.Logger
	minInterval time.Duration
	windowLimit int
	window      time.Duration
	callTimeout time.Duration

	requests chan *queueRequest

	closeOnce sync.Once
	closed    chan struct{}
	drained   chan struct{}

	mu       sync.Mutex
	history  []time.Time // call times within the rolling window
	executed int64
	deferred int64
}

// NewQueue creates the queue and starts its dispatcher.
func NewQueue(cfg QueueConfig) *Queue {
	if cfg.MinInterval == 0 {
		cfg.MinInterval = 12 * time.Second
	}
	if cfg.WindowLimit == 0 {
		cfg.WindowLimit = 25
	}
	if cfg.Window == 0 {
		cfg.Window = time.Hour
	}
	if cfg.CallTimeout == 0 {
		cfg.CallTimeout = 30 * time.Second
	}
	if cfg.Depth == 0 {
		cfg.Depth = 64
	}

	q := &Queue{
		provider:    cfg.Provider,
		logger:      cfg.Logger,
		minInterval: cfg.MinInterval,
		windowLimit: cfg.WindowLimit,
		window:      cfg.Window,
		callTimeout: cfg.CallTimeout,
		requests:    make(chan *queueRequest, cfg.Depth),
		closed:      make(chan struct{}),
		drained:     make(chan struct{}),
	}
	go q.dispatch()
	return q
}

// Analyze submits a prompt and blocks until the queued call completes, the
// caller's context is canceled, or the queue is closed.
func (q *Queue) Analyze(ctx context.Context, prompt string) (string, error) {
	req := &queueRequest{
		ctx:    ctx,
		prompt: prompt,
		result: make(chan queueResult, 1),
	}

	select {
	case q.requests <- req:
	case <-ctx.Done():
		return "", ctx.Err()
	case <-q.closed:
		return "", ErrQueueClosed
	}

	select {
	case res := <-req.result:
		return res.text, res.err
	case <-ctx.Done():
		// The dispatcher will notice the dead context and skip the call.
		return "", ctx.Err()
	}
}

// Close stops the dispatcher. Pending requests receive ErrQueueClosed.
func (q *Queue) Close() {
	q.closeOnce.Do(func() { close(q.closed) })
	<-q.drained
}

// Stats reports queue counters.
func (q *Queue) Stats() (executed, deferred int64, pending int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.executed, q.deferred, len(q.requests)
}

func (q *Queue) dispatch() {
	defer close(q.drained)

	for {
		select {
		case <-q.closed:
			q.failPending()
			return
		case req := <-q.requests:
			q.serve(req)
		}
	}
}

// serve waits out the quota policy, then executes the call.
func (q *Queue) serve(req *queueRequest) {
	for {
		delay := q.nextDelay(time.Now())
		if delay <= 0 {
			break
		}

		q.mu.Lock()
		q.deferred++
		q.mu.Unlock()

		q.logger.Debug().Dur("delay", delay).Msg("inference call deferred by quota")

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-req.ctx.Done():
			timer.Stop()
			req.result <- queueResult{err: req.ctx.Err()}
			return
		case <-q.closed:
			timer.Stop()
			req.result <- queueResult{err: ErrQueueClosed}
			return
		}
	}

	if err := req.ctx.Err(); err != nil {
		// Caller gave up while queued; do not burn quota.
		req.result <- queueResult{err: err}
		return
	}

	q.recordCall(time.Now())

	callCtx, cancel := context.WithTimeout(req.ctx, q.callTimeout)
	text, err := q.provider.Analyze(callCtx, req.prompt)
	cancel()

	if err != nil {
		q.logger.Warn().Err(err).Str("provider", q.provider.Name()).Msg("inference call failed")
	}
	req.result <- queueResult{text: text, err: err}
}

// nextDelay returns how long the dispatcher must wait before the next call
// is allowed: the longer of the minimum spacing and, once the window cap is
// reached, the time until the oldest windowed call ages out.
func (q *Queue) nextDelay(now time.Time) time.Duration {
	q.mu.Lock()
	defer q.mu.Unlock()

	// Prune calls outside the rolling window.
	cutoff := now.Add(-q.window)
	kept := q.history[:0]
	for _, t := range q.history {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	q.history = kept

	var delay time.Duration
	if n := len(q.history); n > 0 {
		if since := now.Sub(q.history[n-1]); since < q.minInterval {
			delay = q.minInterval - since
		}
		if n >= q.windowLimit {
			if until := q.history[0].Add(q.window).Sub(now); until > delay {
				delay = until
			}
		}
	}
	return delay
}

func (q *Queue) recordCall(at time.Time) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.history = append(q.history, at)
	q.executed++
}

func (q *Queue) failPending() {
	for {
		select {
		case req := <-q.requests:
			req.result <- queueResult{err: ErrQueueClosed}
		default:
			return
		}
	}
}
