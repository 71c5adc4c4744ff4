// Package master implements the coordinator side of the configuration
// protocol: it pushes configurations to nodes, retransmits until they answer
// and surfaces the outcome of every push.
package master

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/clelom/titan/internal/clock"
	"github.com/clelom/titan/internal/ctxlog"
	"github.com/clelom/titan/internal/errcode"
	"github.com/clelom/titan/internal/metrics"
	"github.com/clelom/titan/internal/radio"
	"github.com/clelom/titan/internal/retry"
	"github.com/clelom/titan/internal/wire"
	"github.com/google/uuid"
)

// ResultQueue is the number of undelivered results kept before new ones are
// dropped.
const ResultQueue = 64

// ErrNoResponse is the error of a push the node never answered.
var ErrNoResponse = errors.New("no response from node")

// Options configures a Master.
type Options struct {
	ID    uint16
	Radio radio.Transceiver
	// Clock drives retransmissions. Nil means the wall clock.
	Clock clock.Clock
	// TimeUnit scales the retry delay. Zero means one millisecond.
	TimeUnit time.Duration
	Metrics  *metrics.Metrics
}

// Result is the outcome of one configuration push.
type Result struct {
	// DeliveryID correlates the push with its log lines.
	DeliveryID uuid.UUID
	Node       uint16
	ConfigID   uint8
	OK         bool
	// Report is set when the node answered with an error.
	Report   *errcode.Report
	Attempts int
	// FromCache is set when the node applied its cached copy.
	FromCache bool
	Err       error
}

// Received is a data packet or error report a node sent to the master.
type Received struct {
	Src    uint16
	Data   *wire.Data
	Report *errcode.Report
}

type push struct {
	id        uuid.UUID
	cfg       wire.Config
	node      uint16
	fromCache bool
	report    *errcode.Report
}

type event func(ctx context.Context)

// Master is the coordinator endpoint. Like a node it owns its state from a
// single loop driven by Run or Poll.
type Master struct {
	id      uint16
	radio   radio.Transceiver
	tracker *retry.Tracker
	metrics *metrics.Metrics
	logger  *slog.Logger
	unit    time.Duration
	events  chan event
	results chan Result
	stopped chan struct{}
	stop    sync.Once

	pending    map[retry.Key]*push
	discovered map[uint16][]uint16
	received   []Received
	seq        uint16
}

// New creates a master.
func New(ctx context.Context, opts Options) *Master {
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	if opts.TimeUnit <= 0 {
		opts.TimeUnit = time.Millisecond
	}
	m := &Master{
		id:         opts.ID,
		radio:      opts.Radio,
		metrics:    opts.Metrics,
		logger:     ctxlog.FromContext(ctx).With("master", opts.ID),
		unit:       opts.TimeUnit,
		events:     make(chan event, 256),
		results:    make(chan Result, ResultQueue),
		stopped:    make(chan struct{}),
		pending:    make(map[retry.Key]*push),
		discovered: make(map[uint16][]uint16),
	}
	m.tracker = retry.NewTracker(opts.Clock, m.post, m.logger, opts.Metrics)
	return m
}

// ID returns the master address.
func (m *Master) ID() uint16 { return m.id }

// Results delivers the outcome of every configuration push.
func (m *Master) Results() <-chan Result { return m.results }

// Discovered returns the task kinds each node reported, by node address.
func (m *Master) Discovered() map[uint16][]uint16 {
	out := make(map[uint16][]uint16, len(m.discovered))
	for id, kinds := range m.discovered {
		out[id] = slices.Clone(kinds)
	}
	return out
}

// Received returns the data and error reports received so far.
func (m *Master) Received() []Received { return slices.Clone(m.received) }

// Pending returns the number of unanswered pushes and deliveries.
func (m *Master) Pending() int { return m.tracker.Pending() }

func (m *Master) bind(ctx context.Context) context.Context {
	return ctxlog.WithLogger(ctx, m.logger)
}

func (m *Master) post(f func()) {
	m.Do(func(context.Context) { f() })
}

// Run processes frames and retransmission timers until ctx is done. A master
// is not restarted once Run has returned.
func (m *Master) Run(ctx context.Context) error {
	ctx = m.bind(ctx)
	defer m.stop.Do(func() { close(m.stopped) })
	defer m.tracker.Cancel()
	frames := m.radio.Frames()
	for {
		select {
		case <-ctx.Done():
			return nil
		case f, ok := <-frames:
			if !ok {
				return radio.ErrClosed
			}
			m.handle(ctx, f)
		case ev := <-m.events:
			ev(ctx)
		}
	}
}

// Poll handles every frame and event that is ready without waiting and
// returns how many it handled. It must not be used concurrently with Run.
func (m *Master) Poll(ctx context.Context) int {
	ctx = m.bind(ctx)
	handled := 0
	for {
		select {
		case f, ok := <-m.radio.Frames():
			if !ok {
				return handled
			}
			m.handle(ctx, f)
		case ev := <-m.events:
			ev(ctx)
		default:
			return handled
		}
		handled++
	}
}

// Do runs f on the loop. Configure, Start, Discover and Clear must be called
// from the loop; Do lets other goroutines reach it while Run is active. Once
// Run has returned f is dropped.
func (m *Master) Do(f func(ctx context.Context)) {
	select {
	case m.events <- f:
	case <-m.stopped:
	}
}
