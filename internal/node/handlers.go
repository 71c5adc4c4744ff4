package node

import (
	"context"

	"github.com/clelom/titan/internal/errcode"
	"github.com/clelom/titan/internal/executor"
	"github.com/clelom/titan/internal/radio"
	"github.com/clelom/titan/internal/registry"
	"github.com/clelom/titan/internal/wire"
)

// HandleFrame processes one received frame. Like every other method that
// touches node state, it must be called from the goroutine running the loop.
func (n *Node) HandleFrame(ctx context.Context, f radio.Frame) {
	n.handle(n.bind(ctx), f)
}

func (n *Node) handle(ctx context.Context, f radio.Frame) {
	t, err := wire.PeekType(f.Payload)
	if err != nil {
		n.logger.Debug("Dropping undecodable frame.", "src", f.Src, "error", err)
		n.raise(ctx, n.exec.ConfigID(), err)
		return
	}
	n.metrics.FrameReceived(n.id, t.String())

	switch t {
	case wire.TypeConfig, wire.TypeCacheStore:
		err = n.onConfig(ctx, f, t == wire.TypeCacheStore)
	case wire.TypeCfgTask:
		err = n.onCfgTask(ctx, f)
	case wire.TypeCfgConn:
		err = n.onCfgConn(ctx, f)
	case wire.TypeCfgStart:
		err = n.onCfgStart(ctx, f)
	case wire.TypeCacheStart:
		err = n.onCacheStart(ctx, f)
	case wire.TypeDiscover:
		err = n.onDiscover(ctx, f)
	case wire.TypeForward:
		err = n.onForward(ctx, f)
	case wire.TypeData:
		err = n.onData(ctx, f)
	default:
		n.logger.Debug("Ignoring frame meant for a master.", "type", t, "src", f.Src)
	}
	if err != nil {
		n.raise(ctx, n.reportConfigID(), err)
	}
}

func (n *Node) reportConfigID() uint8 {
	if n.asm != nil {
		return n.asm.header.ConfigID
	}
	return n.exec.ConfigID()
}

func (n *Node) setMaster(id uint16) {
	n.master = id
	n.hasMaster = true
}

func (n *Node) onConfig(ctx context.Context, f radio.Frame, store bool) error {
	cf, err := wire.DecodeConfig(f.Payload)
	if err != nil {
		return err
	}
	n.setMaster(cf.Header.Master)
	if cf.Header.NumTasks == 0 {
		n.asm = nil
		n.held = nil
		n.exec.Clear(ctx, cf.Header.ConfigID)
		n.logger.Info("Configuration cleared.", "config", cf.Header.ConfigID)
		n.sendSuccess(ctx, cf.Header.ConfigID)
		return nil
	}
	n.logger.Debug("Configuration started.", "config", cf.Header.ConfigID, "tasks", cf.Header.NumTasks, "conns", cf.Header.NumConns, "delayed", cf.Header.Delayed)
	// A new ConfigMsg restarts reassembly, also for a retransmission.
	n.asm = nil
	a, err := newAssembly(cf, store)
	if err != nil {
		n.raise(ctx, cf.Header.ConfigID, err)
		return nil
	}
	n.asm = a
	n.checkComplete(ctx)
	return nil
}

func (n *Node) onCfgTask(ctx context.Context, f radio.Frame) error {
	seg, err := wire.DecodeCfgTask(f.Payload)
	if err != nil {
		return err
	}
	if n.asm == nil || n.asm.header.ConfigID != seg.ConfigID {
		n.logger.Debug("Ignoring task segment for no open configuration.", "config", seg.ConfigID)
		return nil
	}
	if err := n.asm.addTasks(seg.Tasks); err != nil {
		n.asm = nil
		n.raise(ctx, seg.ConfigID, err)
		return nil
	}
	n.checkComplete(ctx)
	return nil
}

func (n *Node) onCfgConn(ctx context.Context, f radio.Frame) error {
	seg, err := wire.DecodeCfgConn(f.Payload)
	if err != nil {
		return err
	}
	if n.asm == nil || n.asm.header.ConfigID != seg.ConfigID {
		n.logger.Debug("Ignoring connection segment for no open configuration.", "config", seg.ConfigID)
		return nil
	}
	if err := n.asm.addConns(seg.Conns); err != nil {
		n.asm = nil
		n.raise(ctx, seg.ConfigID, err)
		return nil
	}
	n.checkComplete(ctx)
	return nil
}

func (n *Node) checkComplete(ctx context.Context) {
	if !n.asm.complete() {
		return
	}
	a := n.asm
	n.asm = nil
	cfg := a.config()
	if a.store {
		if err := n.cache.Store(ctx, cfg); err != nil {
			n.raise(ctx, cfg.ConfigID, err)
		}
	}
	n.install(ctx, cfg)
}

// install applies a complete configuration. A delayed configuration is only
// validated and held until a CfgStart names it.
func (n *Node) install(ctx context.Context, cfg wire.Config) {
	plan, err := planFor(cfg)
	if err == nil {
		if cfg.Delayed {
			if err = n.exec.Validate(plan); err == nil {
				n.held = &plan
				n.logger.Info("Delayed configuration held.", "config", cfg.ConfigID)
			}
		} else {
			n.held = nil
			err = n.exec.Apply(ctx, plan)
		}
	}
	if err != nil {
		n.logger.Warn("Configuration rejected.", "config", cfg.ConfigID, "error", err)
		n.raise(ctx, cfg.ConfigID, err)
		return
	}
	n.sendSuccess(ctx, cfg.ConfigID)
}

func (n *Node) onCfgStart(ctx context.Context, f radio.Frame) error {
	m, err := wire.DecodeCfgStart(f.Payload)
	if err != nil {
		return err
	}
	n.setMaster(m.Master)
	if n.held == nil || n.held.ConfigID != m.ConfigID {
		n.logger.Debug("No held configuration to start.", "config", m.ConfigID)
		return nil
	}
	plan := *n.held
	n.held = nil
	if err := n.exec.Stage(ctx, plan); err != nil {
		n.raise(ctx, m.ConfigID, err)
	}
	return nil
}

func (n *Node) onCacheStart(ctx context.Context, f radio.Frame) error {
	m, err := wire.DecodeCacheStart(f.Payload)
	if err != nil {
		return err
	}
	h := m.Header
	n.setMaster(h.Master)
	n.asm = nil
	cfg, err := n.cache.Load(h.ConfigID)
	if err == nil && (len(cfg.Tasks) != int(h.NumTasks) || len(cfg.Conns) != int(h.NumConns)) {
		err = errcode.New(errcode.NoCacheEntry, errcode.SourceFramework, "cached config %d does not match %d tasks and %d connections", h.ConfigID, h.NumTasks, h.NumConns)
	}
	n.metrics.CacheLookup(n.id, err == nil)
	if err != nil {
		n.logger.Info("Cache start failed.", "config", h.ConfigID, "error", err)
		n.raise(ctx, h.ConfigID, err)
		return nil
	}
	n.logger.Debug("Starting configuration from cache.", "config", h.ConfigID)
	cfg.Delayed = h.Delayed
	cfg.Master = h.Master
	n.install(ctx, cfg)
	return nil
}

func (n *Node) onDiscover(ctx context.Context, f radio.Frame) error {
	m, err := wire.DecodeDiscover(f.Payload)
	if err != nil {
		return err
	}
	var filter func(*registry.Kind) bool
	switch m.Scope {
	case wire.ScopeTasks:
		filter = func(k *registry.Kind) bool { return k.Category != registry.Environment }
	case wire.ScopeEnvironment:
		filter = func(k *registry.Kind) bool { return k.Category == registry.Environment }
	}
	reply := wire.EncodeDiscoverReply(wire.DiscoverReply{NodeID: n.id, Kinds: n.kinds.KindUIDs(filter)})
	n.deliver(ctx, m.Source, wire.TypeDiscoverReply, reply)
	return nil
}

func (n *Node) onForward(ctx context.Context, f radio.Frame) error {
	m, err := wire.DecodeForward(f.Payload)
	if err != nil {
		return err
	}
	if m.Dest == n.id {
		n.handle(ctx, radio.Frame{Src: f.Src, Dst: n.id, Payload: m.Inner})
		return nil
	}
	if m.Seen(n.id) || m.Hops == 0 {
		n.logger.Debug("Not relaying forward frame.", "dest", m.Dest, "hops", m.Hops)
		return nil
	}
	m.Hops--
	m.Visited = append(m.Visited, n.id)
	frame, err := wire.EncodeForward(m)
	if err != nil {
		return err
	}
	n.transmit(ctx, radio.BroadcastAddr, wire.TypeForward, frame)
	return nil
}

func (n *Node) onData(ctx context.Context, f radio.Frame) error {
	m, err := wire.DecodeData(f.Payload)
	if err != nil {
		return err
	}
	task, ok := n.exec.Find(func(e *registry.Entry) bool { return e.Kind.Category == registry.Network })
	if !ok {
		return errcode.New(errcode.NoTaskContext, errcode.SourceFramework, "no communicator task for data from %d", f.Src)
	}
	// Emit reports its own faults.
	_ = n.exec.Emit(ctx, task, m.Port, m.Packet)
	return nil
}

var _ executor.Sender = (*Node)(nil)
