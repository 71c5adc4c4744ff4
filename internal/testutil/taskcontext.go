package testutil

import (
	"context"
	"log/slog"

	"github.com/clelom/titan/internal/errcode"
	"github.com/clelom/titan/internal/packet"
	"github.com/clelom/titan/internal/registry"
)

// Output is one packet a task emitted through a TaskContext.
type Output struct {
	Port   uint8
	Packet packet.Packet
}

// Sent is one packet a task handed to the network.
type Sent struct {
	Dest   uint16
	Port   uint8
	Packet packet.Packet
}

// TaskContext is a registry.TaskContext that runs a single task without an
// executor. Packets are fed with Feed and everything the task produces is
// recorded.
type TaskContext struct {
	Ctx     context.Context
	Log     *slog.Logger
	Cfg     packet.TaskConfig
	Inputs  map[uint8][]packet.Packet
	Outputs []Output
	Sends   []Sent
	Codes   []errcode.Code
	SendErr error
	// Resumed is set when the task asked for another activation. The test
	// clears it before running the task again.
	Resumed bool
}

var _ registry.TaskContext = (*TaskContext)(nil)

// NewTaskContext initializes a task of kind k with config data. The Init error
// is returned as is.
func NewTaskContext(ctx context.Context, k registry.Kind, data []byte) (*TaskContext, error) {
	tc := &TaskContext{
		Ctx:    ctx,
		Log:    slog.New(slog.DiscardHandler),
		Cfg:    packet.TaskConfig{TaskType: k.UID, Data: data},
		Inputs: make(map[uint8][]packet.Packet),
	}
	if k.Init != nil {
		if err := k.Init(&tc.Cfg); err != nil {
			return nil, err
		}
	}
	return tc, nil
}

// Feed queues p on port.
func (tc *TaskContext) Feed(port uint8, p packet.Packet) {
	tc.Inputs[port] = append(tc.Inputs[port], p)
}

func (tc *TaskContext) Context() context.Context   { return tc.Ctx }
func (tc *TaskContext) Logger() *slog.Logger       { return tc.Log }
func (tc *TaskContext) Config() *packet.TaskConfig { return &tc.Cfg }
func (tc *TaskContext) State() any                 { return tc.Cfg.State }
func (tc *TaskContext) SetState(s any)             { tc.Cfg.State = s }
func (tc *TaskContext) Report(code errcode.Code)   { tc.Codes = append(tc.Codes, code) }
func (tc *TaskContext) Resume()                    { tc.Resumed = true }

func (tc *TaskContext) In(port uint8) (packet.Packet, bool) {
	q := tc.Inputs[port]
	if len(q) == 0 {
		tc.Codes = append(tc.Codes, errcode.InFifoEmpty)
		return packet.Packet{}, false
	}
	tc.Inputs[port] = q[1:]
	return q[0], true
}

func (tc *TaskContext) Out(port uint8, p packet.Packet) {
	tc.Outputs = append(tc.Outputs, Output{Port: port, Packet: p})
}

func (tc *TaskContext) Send(dest uint16, port uint8, p packet.Packet) error {
	if tc.SendErr != nil {
		return tc.SendErr
	}
	tc.Sends = append(tc.Sends, Sent{Dest: dest, Port: port, Packet: p})
	return nil
}
