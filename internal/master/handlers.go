package master

import (
	"context"

	"github.com/clelom/titan/internal/errcode"
	"github.com/clelom/titan/internal/radio"
	"github.com/clelom/titan/internal/wire"
)

// HandleFrame processes one frame addressed to the master. It must be called
// from the loop.
func (m *Master) HandleFrame(ctx context.Context, f radio.Frame) {
	m.handle(m.bind(ctx), f)
}

func (m *Master) handle(ctx context.Context, f radio.Frame) {
	t, err := wire.PeekType(f.Payload)
	if err != nil {
		m.logger.Debug("Dropping undecodable frame.", "src", f.Src, "error", err)
		return
	}
	m.metrics.FrameReceived(m.id, t.String())

	switch t {
	case wire.TypeCfgSuccess:
		err = m.onSuccess(f)
	case wire.TypeError:
		err = m.onError(ctx, f)
	case wire.TypeDiscoverReply:
		err = m.onDiscoverReply(f)
	case wire.TypeData:
		err = m.onData(f)
	default:
		m.logger.Debug("Ignoring frame meant for a node.", "type", t, "src", f.Src)
	}
	if err != nil {
		m.logger.Warn("Failed to decode frame.", "type", t, "src", f.Src, "error", err)
	}
}

func (m *Master) onSuccess(f radio.Frame) error {
	s, err := wire.DecodeCfgSuccess(f.Payload)
	if err != nil {
		return err
	}
	if !m.tracker.Ack(configKey(s.NodeID, s.ConfigID)) {
		m.logger.Debug("Success for no pending push.", "node", s.NodeID, "config", s.ConfigID)
	}
	return nil
}

func (m *Master) onError(ctx context.Context, f radio.Frame) error {
	rep, err := wire.DecodeError(f.Payload)
	if err != nil {
		return err
	}
	key := configKey(rep.NodeID, rep.ConfigID)
	p, ok := m.pending[key]
	if !ok {
		m.logger.Warn("Node reported an error.", "node", rep.NodeID, "config", rep.ConfigID, "source", rep.Source, "code", rep.Code)
		m.received = append(m.received, Received{Src: f.Src, Report: &rep})
		return nil
	}
	if p.fromCache && rep.Code == errcode.NoCacheEntry {
		m.logger.Info("Node has no cached copy, sending full configuration.", "delivery", p.id, "node", p.node, "config", p.cfg.ConfigID)
		cfg := p.cfg
		cfg.Store = true
		frames, err := wire.SplitConfig(cfg, wire.MTU)
		if err != nil {
			return err
		}
		m.start(ctx, &push{id: p.id, cfg: cfg, node: p.node}, frames)
		return nil
	}
	p.report = &rep
	m.tracker.Ack(key)
	return nil
}

func (m *Master) onDiscoverReply(f radio.Frame) error {
	r, err := wire.DecodeDiscoverReply(f.Payload)
	if err != nil {
		return err
	}
	m.logger.Debug("Node discovered.", "node", r.NodeID, "kinds", r.Kinds)
	m.discovered[r.NodeID] = r.Kinds
	return nil
}

func (m *Master) onData(f radio.Frame) error {
	d, err := wire.DecodeData(f.Payload)
	if err != nil {
		return err
	}
	m.received = append(m.received, Received{Src: f.Src, Data: &d})
	return nil
}
