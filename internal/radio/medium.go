package radio

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/clelom/titan/internal/errcode"
	"github.com/clelom/titan/internal/wire"
)

// DefaultInboxDepth is the number of frames an endpoint buffers before the
// medium drops further frames for it.
const DefaultInboxDepth = 64

// Filter decides whether a frame reaches the endpoint to. Returning false
// loses it for that receiver.
type Filter func(f Frame, to uint16) bool

// Medium is an in-memory broadcast radio shared by endpoints of one process.
type Medium struct {
	mu     sync.RWMutex
	ports  map[uint16]*Port
	filter Filter
	depth  int
	logger *slog.Logger
}

// NewMedium creates an empty medium.
func NewMedium(logger *slog.Logger) *Medium {
	return &Medium{ports: make(map[uint16]*Port), depth: DefaultInboxDepth, logger: logger}
}

// SetFilter installs a loss model. A nil filter delivers every frame.
func (m *Medium) SetFilter(f Filter) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.filter = f
}

// Attach creates the endpoint for id.
func (m *Medium) Attach(id uint16) (*Port, error) {
	if id == BroadcastAddr {
		return nil, fmt.Errorf("attach: %#x is the broadcast address", id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.ports[id]; exists {
		return nil, fmt.Errorf("attach: endpoint %d already attached", id)
	}
	p := &Port{id: id, medium: m, inbox: make(chan Frame, m.depth)}
	m.ports[id] = p
	return p, nil
}

// Endpoints returns the attached addresses in ascending order.
func (m *Medium) Endpoints() []uint16 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]uint16, 0, len(m.ports))
	for id := range m.ports {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// deliver reports whether a unicast frame reached its receiver.
func (m *Medium) deliver(f Frame) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !f.Broadcast() {
		p, ok := m.ports[f.Dst]
		return ok && m.reaches(f, f.Dst) && p.push(f)
	}
	for id, p := range m.ports {
		if id != f.Src && m.reaches(f, id) {
			p.push(f)
		}
	}
	return true
}

func (m *Medium) reaches(f Frame, to uint16) bool {
	if m.filter == nil || m.filter(f, to) {
		return true
	}
	m.logger.Debug("Frame lost on medium.", "src", f.Src, "dst", f.Dst, "to", to)
	return false
}

func (m *Medium) detach(id uint16) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.ports, id)
}

// Port is an endpoint attached to a Medium.
type Port struct {
	id     uint16
	medium *Medium

	mu     sync.Mutex
	closed bool
	inbox  chan Frame
}

var _ Transceiver = (*Port)(nil)

func (p *Port) ID() uint16 { return p.id }

func (p *Port) Frames() <-chan Frame { return p.inbox }

func (p *Port) Send(ctx context.Context, dst uint16, payload []byte) error {
	if len(payload) > wire.MTU {
		return errcode.New(errcode.OutboundBufferFull, errcode.SourceFramework, "frame of %d bytes exceeds MTU %d", len(payload), wire.MTU)
	}
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	f := Frame{Src: p.id, Dst: dst, Payload: slices.Clone(payload)}
	if !p.medium.deliver(f) && !f.Broadcast() {
		return ErrNoAck
	}
	return nil
}

func (p *Port) push(f Frame) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false
	}
	select {
	case p.inbox <- f:
		return true
	default:
		p.medium.logger.Warn("Endpoint inbox full, frame dropped.", "endpoint", p.id, "src", f.Src)
		return false
	}
}

func (p *Port) Close() error {
	p.medium.detach(p.id)
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.closed = true
		close(p.inbox)
	}
	return nil
}
