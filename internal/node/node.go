package node

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/clelom/titan/internal/clock"
	"github.com/clelom/titan/internal/configcache"
	"github.com/clelom/titan/internal/ctxlog"
	"github.com/clelom/titan/internal/executor"
	"github.com/clelom/titan/internal/metrics"
	"github.com/clelom/titan/internal/packet"
	"github.com/clelom/titan/internal/radio"
	"github.com/clelom/titan/internal/registry"
	"github.com/clelom/titan/internal/retry"
)

// EventQueue is the number of pending loop events.
const EventQueue = 256

// DefaultTimeUnit is the length of one protocol time unit.
const DefaultTimeUnit = time.Millisecond

// ErrRadioClosed is returned by Run when the transceiver stops delivering.
var ErrRadioClosed = errors.New("radio closed")

// Options configures a Node.
type Options struct {
	ID    uint16
	Kinds *registry.Registry
	Radio radio.Transceiver
	// Clock drives retransmissions. Nil means the wall clock.
	Clock clock.Clock
	// TimeUnit scales the retry delay. Zero means DefaultTimeUnit.
	TimeUnit time.Duration
	// Cache holds configurations for CacheStart. Nil means a fresh
	// in-memory cache.
	Cache   *configcache.Cache
	Metrics *metrics.Metrics
}

type event func(ctx context.Context)

// Node is a sensor node running the dataflow engine.
type Node struct {
	id      uint16
	kinds   *registry.Registry
	radio   radio.Transceiver
	exec    *executor.Executor
	cache   *configcache.Cache
	tracker *retry.Tracker
	metrics *metrics.Metrics
	logger  *slog.Logger
	unit    time.Duration
	events  chan event
	stopped chan struct{}
	stop    sync.Once

	master    uint16
	hasMaster bool
	asm       *assembly
	held      *executor.Plan
	seq       uint16
}

// New creates a node. The logger in ctx is used for every message the node
// logs.
func New(ctx context.Context, opts Options) *Node {
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	if opts.TimeUnit <= 0 {
		opts.TimeUnit = DefaultTimeUnit
	}
	if opts.Cache == nil {
		opts.Cache = configcache.New(nil)
	}
	n := &Node{
		id:      opts.ID,
		kinds:   opts.Kinds,
		radio:   opts.Radio,
		cache:   opts.Cache,
		metrics: opts.Metrics,
		logger:  ctxlog.FromContext(ctx).With("node", opts.ID),
		unit:    opts.TimeUnit,
		events:  make(chan event, EventQueue),
		stopped: make(chan struct{}),
	}
	n.exec = executor.New(opts.Kinds, executor.Options{
		NodeID:   opts.ID,
		Reporter: n,
		Sender:   n,
		Metrics:  opts.Metrics,
	})
	n.tracker = retry.NewTracker(opts.Clock, n.post, n.logger, opts.Metrics)
	return n
}

// ID returns the node address.
func (n *Node) ID() uint16 { return n.id }

// Executor exposes the task graph for inspection. It must only be used from
// the run loop or while the loop is stopped.
func (n *Node) Executor() *executor.Executor { return n.exec }

// Cache returns the configuration cache.
func (n *Node) Cache() *configcache.Cache { return n.cache }

func (n *Node) bind(ctx context.Context) context.Context {
	return ctxlog.WithLogger(ctx, n.logger)
}

// post hands f to the run loop. It blocks while the event queue is full,
// and drops f once Run has returned.
func (n *Node) post(f func()) {
	select {
	case n.events <- func(context.Context) { f() }:
	case <-n.stopped:
	}
}

// Sample queues a packet for a task's external input, such as a reading from
// the node's sensor. It never blocks and may be called from any goroutine;
// it reports false when the sample was dropped.
func (n *Node) Sample(task uint8, p packet.Packet) bool {
	select {
	case n.events <- func(ctx context.Context) { _ = n.exec.External(ctx, task, p) }:
		return true
	default:
		n.metrics.ActivationDropped(n.id)
		return false
	}
}

// Run processes frames and events until ctx is done or the radio closes.
// After every event the pending task activations are drained. A node is not
// restarted once Run has returned.
func (n *Node) Run(ctx context.Context) error {
	ctx = n.bind(ctx)
	n.logger.Info("Node started.")
	defer n.stop.Do(func() { close(n.stopped) })
	defer n.tracker.Cancel()
	frames := n.radio.Frames()
	for {
		select {
		case <-ctx.Done():
			n.logger.Info("Node stopped.")
			return nil
		case f, ok := <-frames:
			if !ok {
				return ErrRadioClosed
			}
			n.handle(ctx, f)
		case ev := <-n.events:
			ev(ctx)
		}
		n.exec.Drain(ctx, 0)
	}
}

// Poll handles every frame and event that is ready without waiting, then
// drains the task activations. It returns the number of frames and events
// handled. Poll must not be used concurrently with Run.
func (n *Node) Poll(ctx context.Context) int {
	ctx = n.bind(ctx)
	handled := 0
	for {
		select {
		case f, ok := <-n.radio.Frames():
			if !ok {
				n.exec.Drain(ctx, 0)
				return handled
			}
			n.handle(ctx, f)
		case ev := <-n.events:
			ev(ctx)
		default:
			n.exec.Drain(ctx, 0)
			return handled
		}
		handled++
		n.exec.Drain(ctx, 0)
	}
}

// Reset simulates a power cycle: the task graph, partial configurations and
// pending retransmissions are lost. The cache survives; with a persister it
// is reloaded from storage.
func (n *Node) Reset(ctx context.Context) error {
	ctx = n.bind(ctx)
	n.tracker.Cancel()
	n.exec.Clear(ctx, 0)
	n.asm = nil
	n.held = nil
	n.hasMaster = false
	if err := n.cache.Restore(ctx); err != nil {
		return err
	}
	n.logger.Info("Node reset.", "cached", n.cache.Len())
	return nil
}
