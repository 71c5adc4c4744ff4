package executor

import (
	"context"
	"log/slog"

	"github.com/clelom/titan/internal/ctxlog"
	"github.com/clelom/titan/internal/errcode"
	"github.com/clelom/titan/internal/interconnect"
	"github.com/clelom/titan/internal/metrics"
	"github.com/clelom/titan/internal/packet"
	"github.com/clelom/titan/internal/registry"
	"github.com/clelom/titan/internal/scheduler"
)

// Sender transmits a packet to a communicator port on a remote node.
type Sender interface {
	SendData(ctx context.Context, dest uint16, port uint8, p packet.Packet) error
}

// Options configures an Executor.
type Options struct {
	NodeID   uint16
	Reporter errcode.Reporter
	Sender   Sender
	Metrics  *metrics.Metrics
}

// Executor runs the installed task graph of one node.
type Executor struct {
	opts     Options
	kinds    *registry.Registry
	current  *graph
	staged   *graph
	queue    scheduler.Queue
	external [packet.MaxTasks]interconnect.FIFO
	resume   [packet.MaxTasks]bool
}

// New creates an executor with no tasks installed. kinds supplies the task
// kinds; its slots are not used.
func New(kinds *registry.Registry, opts Options) *Executor {
	return &Executor{
		opts:    opts,
		kinds:   kinds,
		current: &graph{reg: kinds.Fork()},
	}
}

// ConfigID returns the identifier of the installed configuration.
func (e *Executor) ConfigID() uint8 { return e.current.configID }

// Registry returns the installed task slots.
func (e *Executor) Registry() *registry.Registry { return e.current.reg }

// Links returns the installed link table.
func (e *Executor) Links() *interconnect.Table { return &e.current.links }

// Pending returns the number of queued activations.
func (e *Executor) Pending() int { return e.queue.Len() }

// Apply installs p immediately. Every queued packet and activation is
// discarded and all tasks start from fresh state. If p is invalid the
// installed graph keeps running unchanged.
func (e *Executor) Apply(ctx context.Context, p Plan) error {
	g, err := build(e.kinds, p, nil)
	if err != nil {
		return err
	}
	e.staged = nil
	e.current = g
	e.queue.Reset()
	for i := range e.external {
		e.external[i].Reset()
	}
	e.resume = [packet.MaxTasks]bool{}
	e.publishTopology()
	ctxlog.FromContext(ctx).Info("Configuration applied.", "config", p.ConfigID, "tasks", g.reg.Len(), "links", g.links.Len())
	return nil
}

// Validate checks that p could be installed without installing it.
func (e *Executor) Validate(p Plan) error {
	_, err := build(e.kinds, p, nil)
	return err
}

// Stage validates p and installs it at the next task boundary, before the
// following activation is popped. Tasks with an identical descriptor keep
// their private state, links with identical endpoints keep their queued
// packets and pending activations of surviving tasks stay queued.
func (e *Executor) Stage(ctx context.Context, p Plan) error {
	g, err := build(e.kinds, p, e.current.reg)
	if err != nil {
		return err
	}
	e.staged = g
	ctxlog.FromContext(ctx).Info("Configuration staged.", "config", p.ConfigID, "tasks", g.reg.Len(), "links", g.links.Len())
	return nil
}

// Clear removes every task and link.
func (e *Executor) Clear(ctx context.Context, configID uint8) {
	_ = e.Apply(ctx, Plan{ConfigID: configID})
}

func (e *Executor) swapStaged(ctx context.Context) {
	g := e.staged
	if g == nil {
		return
	}
	e.staged = nil
	g.carryQueues(&e.current.links)
	for i := range e.external {
		old, had := e.current.reg.Get(uint8(i))
		now, has := g.reg.Get(uint8(i))
		if !had || !has || old != now {
			e.external[i].Reset()
			e.resume[i] = false
		}
	}
	e.queue.Retain(func(a scheduler.Activation) bool {
		old, had := e.current.reg.Get(a.Task)
		now, has := g.reg.Get(a.Task)
		return had && has && old == now
	})
	e.current = g
	e.publishTopology()
	ctxlog.FromContext(ctx).Info("Staged configuration swapped in.", "config", g.configID)
}

func (e *Executor) publishTopology() {
	e.opts.Metrics.Topology(e.opts.NodeID, e.current.reg.Len(), e.current.links.Len())
}

// Enqueue schedules an activation. Activations for a full queue are dropped.
func (e *Executor) Enqueue(task, port uint8) {
	if !e.queue.Enqueue(scheduler.Activation{Task: task, Port: port}) {
		e.opts.Metrics.ActivationDropped(e.opts.NodeID)
	}
}

// External hands a packet from outside the graph to a task and schedules it
// on registry.PortExternal. Only kinds marked External accept it.
func (e *Executor) External(ctx context.Context, task uint8, p packet.Packet) error {
	entry, ok := e.current.reg.Get(task)
	if !ok {
		err := errcode.New(errcode.NoTaskContext, errcode.SourceFramework, "no task %d for external input", task)
		e.report(ctx, errcode.SourceFramework, errcode.NoTaskContext)
		return err
	}
	if !entry.Kind.External {
		e.report(ctx, task, errcode.UnexpectedInput)
		return errcode.New(errcode.UnexpectedInput, task, "task kind %s takes no external input", entry.Kind.Name)
	}
	if err := e.external[task].Push(p); err != nil {
		e.opts.Metrics.PacketDropped(e.opts.NodeID)
		e.report(ctx, task, errcode.OutFifoFull)
		return err
	}
	e.Enqueue(task, registry.PortExternal)
	return nil
}

// Emit routes p as if task had produced it on output port. It is how data
// arriving from the network leaves the communicator task.
func (e *Executor) Emit(ctx context.Context, task, port uint8, p packet.Packet) error {
	entry, ok := e.current.reg.Get(task)
	if !ok {
		e.report(ctx, errcode.SourceFramework, errcode.NoTaskContext)
		return errcode.New(errcode.NoTaskContext, errcode.SourceFramework, "no task %d to emit from", task)
	}
	if port >= entry.Config.OutPorts {
		e.report(ctx, task, errcode.UnexpectedPort)
		return errcode.New(errcode.UnexpectedPort, task, "task %d has no output port %d", task, port)
	}
	e.route(ctx, task, []output{{port: port, pkt: p}})
	return nil
}

// Find returns the runID of the first installed task accepted by match.
func (e *Executor) Find(match func(*registry.Entry) bool) (uint8, bool) {
	for i := uint8(0); i < packet.MaxTasks; i++ {
		if entry, ok := e.current.reg.Get(i); ok && match(entry) {
			return i, true
		}
	}
	return 0, false
}

// Step runs at most one activation and reports whether one was run.
func (e *Executor) Step(ctx context.Context) bool {
	e.swapStaged(ctx)
	a, ok := e.queue.Pop()
	if !ok {
		return false
	}
	e.opts.Metrics.Activation(e.opts.NodeID)
	e.run(ctx, a)
	return true
}

// Drain runs activations until the queue is empty or limit activations ran.
// A non-positive limit drains completely. It returns the number of
// activations run.
func (e *Executor) Drain(ctx context.Context, limit int) int {
	n := 0
	for limit <= 0 || n < limit {
		if ctx.Err() != nil || !e.Step(ctx) {
			break
		}
		n++
	}
	return n
}

func (e *Executor) run(ctx context.Context, a scheduler.Activation) {
	logger := ctxlog.FromContext(ctx)
	entry, ok := e.current.reg.Get(a.Task)
	if !ok {
		logger.Warn("Activation for an unconfigured slot.", "task", a.Task, "port", a.Port)
		e.report(ctx, errcode.SourceFramework, errcode.NoTaskContext)
		return
	}
	if a.Port != registry.PortExternal && a.Port >= entry.Config.InPorts {
		logger.Warn("Activation on a port the task does not have.", "task", a.Task, "port", a.Port)
		e.report(ctx, a.Task, errcode.UnexpectedPort)
		return
	}

	tc := &taskContext{
		ctx:    ctx,
		exec:   e,
		entry:  entry,
		logger: logger.With("task", a.Task, "kind", entry.Kind.Name),
	}
	wasResumed := e.resume[a.Task]
	e.resume[a.Task] = false
	for resumed := wasResumed; resumed || e.available(a.Task, a.Port) > 0; {
		resumed = false
		before := e.available(a.Task, a.Port)
		if err := entry.Kind.Run(tc, a.Port); err != nil {
			code, coded := errcode.CodeOf(err)
			if !coded {
				code = errcode.UnexpectedInput
			}
			tc.logger.Warn("Task failed.", "error", err)
			e.report(ctx, a.Task, code)
		}
		if tc.resume || e.available(a.Task, a.Port) >= before {
			// The task yielded or left its input untouched; do not spin on it.
			break
		}
	}
	e.route(ctx, a.Task, tc.outputs)
	switch {
	case tc.resume:
		e.resume[a.Task] = true
		e.Enqueue(a.Task, a.Port)
	case wasResumed && e.available(a.Task, a.Port) > 0:
		// Input that arrived while the task was catching up.
		e.Enqueue(a.Task, a.Port)
	}
}

// available counts the packets waiting for task on port.
func (e *Executor) available(task, port uint8) int {
	if port == registry.PortExternal {
		return e.external[task].Len()
	}
	n := 0
	for _, i := range e.current.links.Into(interconnect.Endpoint{Task: task, Port: port}) {
		n += e.current.links.Get(i).Queue.Len()
	}
	return n
}

func (e *Executor) pop(task, port uint8) (packet.Packet, bool) {
	if port == registry.PortExternal {
		p, err := e.external[task].Pop()
		return p, err == nil
	}
	for _, i := range e.current.links.Into(interconnect.Endpoint{Task: task, Port: port}) {
		if p, err := e.current.links.Get(i).Queue.Pop(); err == nil {
			return p, true
		}
	}
	return packet.Packet{}, false
}

type output struct {
	port uint8
	pkt  packet.Packet
}

func (e *Executor) route(ctx context.Context, task uint8, outs []output) {
	for _, o := range outs {
		idx := e.current.links.From(interconnect.Endpoint{Task: task, Port: o.port})
		if len(idx) == 0 {
			ctxlog.FromContext(ctx).Debug("Output on an unconnected port dropped.", "task", task, "port", o.port)
			continue
		}
		for _, i := range idx {
			l := e.current.links.Get(i)
			if err := l.Queue.Push(o.pkt); err != nil {
				e.opts.Metrics.PacketDropped(e.opts.NodeID)
				e.report(ctx, task, errcode.OutFifoFull)
				continue
			}
			e.Enqueue(l.Dst.Task, l.Dst.Port)
		}
	}
}

func (e *Executor) report(ctx context.Context, source uint8, code errcode.Code) {
	e.opts.Metrics.Error(e.opts.NodeID, code.String())
	if e.opts.Reporter == nil {
		return
	}
	e.opts.Reporter.Report(ctx, errcode.Report{
		NodeID:   e.opts.NodeID,
		ConfigID: e.current.configID,
		Source:   source,
		Code:     code,
	})
}

// taskContext implements registry.TaskContext for one activation.
type taskContext struct {
	ctx     context.Context
	exec    *Executor
	entry   *registry.Entry
	logger  *slog.Logger
	outputs []output
	resume  bool
}

var _ registry.TaskContext = (*taskContext)(nil)

func (tc *taskContext) Context() context.Context        { return tc.ctx }
func (tc *taskContext) Logger() *slog.Logger            { return tc.logger }
func (tc *taskContext) Config() *packet.TaskConfig      { return &tc.entry.Config }
func (tc *taskContext) State() any                      { return tc.entry.Config.State }
func (tc *taskContext) SetState(s any)                  { tc.entry.Config.State = s }
func (tc *taskContext) Report(code errcode.Code)        { tc.exec.report(tc.ctx, tc.entry.Config.TaskID, code) }
func (tc *taskContext) Out(port uint8, p packet.Packet) { tc.outputs = append(tc.outputs, output{port: port, pkt: p}) }
func (tc *taskContext) Resume()                         { tc.resume = true }

// In reports InFifoEmpty when nothing is queued on port.
func (tc *taskContext) In(port uint8) (packet.Packet, bool) {
	p, ok := tc.exec.pop(tc.entry.Config.TaskID, port)
	if !ok {
		tc.exec.report(tc.ctx, tc.entry.Config.TaskID, errcode.InFifoEmpty)
	}
	return p, ok
}

func (tc *taskContext) Send(dest uint16, port uint8, p packet.Packet) error {
	if tc.exec.opts.Sender == nil {
		return errcode.New(errcode.NotImplemented, tc.entry.Config.TaskID, "node has no network")
	}
	return tc.exec.opts.Sender.SendData(tc.ctx, dest, port, p)
}
