// Package retry retransmits protocol frames on a fixed delay until they are
// acknowledged or the retry budget runs out.
//
// Retries never block. Each attempt arms a timer; when it fires without an
// acknowledgement the frame is sent again. The timer callback is handed to a
// dispatch function so the owner can run it on its own event loop.
package retry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/clelom/titan/internal/clock"
	"github.com/clelom/titan/internal/metrics"
)

// Default retry budgets, in retransmissions after the first send.
const (
	ConfigRetries = 6
	DataRetries   = 3
	// DelayUnits is the fixed delay between attempts, in protocol time units.
	DelayUnits = 50
)

// Policy bounds the retransmissions of one kind of frame.
type Policy struct {
	Name    string
	Retries int
	Delay   time.Duration
	// AckOnSend completes the delivery as soon as send succeeds, for frames
	// acknowledged by the link layer rather than by a reply.
	AckOnSend bool
}

// ConfigPolicy returns the policy for configuration frames given the length
// of one protocol time unit.
func ConfigPolicy(unit time.Duration) Policy {
	return Policy{Name: "config", Retries: ConfigRetries, Delay: DelayUnits * unit}
}

// DataPolicy returns the policy for steady-state data frames. They count as
// delivered once the link layer acknowledges them.
func DataPolicy(unit time.Duration) Policy {
	return Policy{Name: "data", Retries: DataRetries, Delay: DelayUnits * unit, AckOnSend: true}
}

// Key identifies one outstanding delivery.
type Key struct {
	Dest uint16
	Kind uint8
	ID   uint16
}

// Result is the outcome of a delivery.
type Result struct {
	Key      Key
	Attempts int
	Acked    bool
}

type delivery struct {
	key      Key
	policy   Policy
	send     func() error
	done     func(Result)
	attempts int
	timer    clock.Timer
}

// Tracker holds the outstanding deliveries of one endpoint.
type Tracker struct {
	clock    clock.Clock
	dispatch func(func())
	logger   *slog.Logger
	metrics  *metrics.Metrics

	mu      sync.Mutex
	pending map[Key]*delivery
}

// NewTracker creates a tracker. dispatch runs timer callbacks; nil runs them
// directly on the timer's goroutine.
func NewTracker(c clock.Clock, dispatch func(func()), logger *slog.Logger, m *metrics.Metrics) *Tracker {
	if dispatch == nil {
		dispatch = func(f func()) { f() }
	}
	return &Tracker{
		clock:    c,
		dispatch: dispatch,
		logger:   logger,
		metrics:  m,
		pending:  make(map[Key]*delivery),
	}
}

// Start sends a frame now and keeps resending it until Ack is called for key
// or the policy is exhausted. done, if not nil, receives the outcome once.
// Starting a key that is already pending replaces the old delivery, which
// completes unacknowledged.
func (t *Tracker) Start(ctx context.Context, key Key, p Policy, send func() error, done func(Result)) {
	d := &delivery{key: key, policy: p, send: send, done: done}
	t.mu.Lock()
	old := t.pending[key]
	t.pending[key] = d
	t.mu.Unlock()
	if old != nil {
		if old.timer != nil {
			old.timer.Stop()
		}
		old.finish(false)
	}
	t.attempt(ctx, d)
}

func (t *Tracker) attempt(ctx context.Context, d *delivery) {
	d.attempts++
	if d.attempts > 1 {
		t.metrics.Retry(d.policy.Name)
		t.logger.Debug("Retransmitting frame.", "dest", d.key.Dest, "kind", d.key.Kind, "id", d.key.ID, "attempt", d.attempts)
	}
	err := d.send()
	if err == nil && d.policy.AckOnSend {
		t.mu.Lock()
		if t.pending[d.key] == d {
			delete(t.pending, d.key)
		}
		t.mu.Unlock()
		d.finish(true)
		return
	}
	if err != nil {
		t.logger.Debug("Frame transmission failed.", "dest", d.key.Dest, "error", err)
	}
	d.timer = t.clock.AfterFunc(d.policy.Delay, func() {
		t.dispatch(func() { t.expire(ctx, d) })
	})
}

func (t *Tracker) expire(ctx context.Context, d *delivery) {
	t.mu.Lock()
	if t.pending[d.key] != d {
		t.mu.Unlock()
		return
	}
	if d.attempts > d.policy.Retries {
		delete(t.pending, d.key)
		t.mu.Unlock()
		t.metrics.DeliveryFailed(d.policy.Name)
		t.logger.Warn("Delivery failed after retries.", "dest", d.key.Dest, "kind", d.key.Kind, "id", d.key.ID, "attempts", d.attempts)
		d.finish(false)
		return
	}
	t.mu.Unlock()
	if ctx.Err() != nil {
		return
	}
	t.attempt(ctx, d)
}

// Ack completes the delivery for key and reports whether one was pending.
func (t *Tracker) Ack(key Key) bool {
	t.mu.Lock()
	d, ok := t.pending[key]
	if ok {
		delete(t.pending, key)
	}
	t.mu.Unlock()
	if !ok {
		return false
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.finish(true)
	return true
}

// Cancel drops every outstanding delivery without reporting results.
func (t *Tracker) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for k, d := range t.pending {
		if d.timer != nil {
			d.timer.Stop()
		}
		delete(t.pending, k)
	}
}

// Pending returns the number of outstanding deliveries.
func (t *Tracker) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

func (d *delivery) finish(acked bool) {
	if d.done != nil {
		d.done(Result{Key: d.key, Attempts: d.attempts, Acked: acked})
	}
}
