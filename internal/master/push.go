package master

import (
	"context"

	"github.com/clelom/titan/internal/errcode"
	"github.com/clelom/titan/internal/radio"
	"github.com/clelom/titan/internal/retry"
	"github.com/clelom/titan/internal/wire"
	"github.com/google/uuid"
)

func configKey(node uint16, configID uint8) retry.Key {
	return retry.Key{Dest: node, Kind: uint8(wire.TypeConfig), ID: uint16(configID)}
}

// Configure pushes cfg to node. The frames are retransmitted with the
// configuration retry policy until the node answers with CfgSuccess or an
// error report; the outcome arrives on Results. A push for the same node
// and configuration id replaces an unanswered one.
func (m *Master) Configure(ctx context.Context, node uint16, cfg wire.Config) (uuid.UUID, error) {
	cfg.Master = m.id
	frames, err := wire.SplitConfig(cfg, wire.MTU)
	if err != nil {
		return uuid.Nil, err
	}
	p := &push{id: uuid.New(), cfg: cfg, node: node}
	m.start(m.bind(ctx), p, frames)
	return p.id, nil
}

// ConfigureFromCache asks node to apply its cached copy of cfg. When the
// node has no matching entry the master falls back to a full push that
// the node stores for next time.
func (m *Master) ConfigureFromCache(ctx context.Context, node uint16, cfg wire.Config) (uuid.UUID, error) {
	cfg.Master = m.id
	if err := cfg.Validate(); err != nil {
		return uuid.Nil, err
	}
	frame := wire.EncodeCacheStart(wire.CacheStart{Header: wire.ConfigHeader{
		Delayed:  cfg.Delayed,
		NumTasks: uint8(len(cfg.Tasks)),
		NumConns: uint8(len(cfg.Conns)),
		Master:   m.id,
		ConfigID: cfg.ConfigID,
	}})
	p := &push{id: uuid.New(), cfg: cfg, node: node, fromCache: true}
	m.start(m.bind(ctx), p, [][]byte{frame})
	return p.id, nil
}

// Clear removes every task from node.
func (m *Master) Clear(ctx context.Context, node uint16, configID uint8) (uuid.UUID, error) {
	return m.Configure(ctx, node, wire.Config{ConfigID: configID})
}

// Start activates a delayed configuration the node acknowledged earlier.
func (m *Master) Start(ctx context.Context, node uint16, configID uint8) {
	ctx = m.bind(ctx)
	frame := wire.EncodeCfgStart(wire.CfgStart{Master: m.id, ConfigID: configID})
	m.deliver(ctx, node, wire.TypeCfgStart, frame)
}

// Discover broadcasts a discovery request. Replies are collected in
// Discovered.
func (m *Master) Discover(ctx context.Context, scope wire.Scope) {
	ctx = m.bind(ctx)
	m.logger.Debug("Discovering nodes.", "scope", scope)
	m.transmit(ctx, radio.BroadcastAddr, wire.TypeDiscover, wire.EncodeDiscover(wire.Discover{Source: m.id, Scope: scope}))
}

// Forward relays frame to dest through the nodes in range, allowing at most
// hops relays.
func (m *Master) Forward(ctx context.Context, dest uint16, hops uint8, frame []byte) error {
	ctx = m.bind(ctx)
	out, err := wire.EncodeForward(wire.Forward{Hops: hops, Visited: []uint16{m.id}, Dest: dest, Inner: frame})
	if err != nil {
		return err
	}
	m.transmit(ctx, radio.BroadcastAddr, wire.TypeForward, out)
	return nil
}

// SendData delivers a packet to the communicator of node.
func (m *Master) SendData(ctx context.Context, node uint16, d wire.Data) error {
	ctx = m.bind(ctx)
	frame, err := wire.EncodeData(d)
	if err != nil {
		return err
	}
	m.deliver(ctx, node, wire.TypeData, frame)
	return nil
}

func (m *Master) start(ctx context.Context, p *push, frames [][]byte) {
	key := configKey(p.node, p.cfg.ConfigID)
	m.pending[key] = p
	m.logger.Info("Pushing configuration.", "delivery", p.id, "node", p.node, "config", p.cfg.ConfigID, "frames", len(frames), "cache", p.fromCache)
	send := func() error {
		for _, f := range frames {
			t, _ := wire.PeekType(f)
			m.transmit(ctx, p.node, t, f)
		}
		return nil
	}
	m.tracker.Start(ctx, key, retry.ConfigPolicy(m.unit), send, func(r retry.Result) {
		m.finish(p, r)
	})
}

func (m *Master) finish(p *push, r retry.Result) {
	key := configKey(p.node, p.cfg.ConfigID)
	if m.pending[key] != p {
		// Replaced by a newer push for the same key.
		return
	}
	delete(m.pending, key)
	res := Result{
		DeliveryID: p.id,
		Node:       p.node,
		ConfigID:   p.cfg.ConfigID,
		Report:     p.report,
		Attempts:   r.Attempts,
		FromCache:  p.fromCache,
	}
	switch {
	case !r.Acked:
		res.Err = ErrNoResponse
		m.logger.Warn("Configuration push failed.", "delivery", p.id, "node", p.node, "config", p.cfg.ConfigID, "attempts", r.Attempts)
	case p.report != nil:
		res.Err = &errcode.Error{Code: p.report.Code, Source: p.report.Source}
		m.logger.Warn("Node rejected configuration.", "delivery", p.id, "node", p.node, "config", p.cfg.ConfigID, "code", p.report.Code)
	default:
		res.OK = true
		m.logger.Info("Configuration acknowledged.", "delivery", p.id, "node", p.node, "config", p.cfg.ConfigID, "attempts", r.Attempts)
	}
	select {
	case m.results <- res:
	default:
		m.logger.Warn("Result queue full, result dropped.", "delivery", p.id)
	}
}

// deliver sends a link-acknowledged frame with the data retry policy.
func (m *Master) deliver(ctx context.Context, dst uint16, t wire.MsgType, frame []byte) {
	m.seq++
	key := retry.Key{Dest: dst, Kind: uint8(t), ID: m.seq}
	m.tracker.Start(ctx, key, retry.DataPolicy(m.unit), func() error {
		return m.transmit(ctx, dst, t, frame)
	}, nil)
}

func (m *Master) transmit(ctx context.Context, dst uint16, t wire.MsgType, frame []byte) error {
	m.metrics.FrameSent(m.id, t.String())
	return m.radio.Send(ctx, dst, frame)
}
