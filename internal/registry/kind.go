package registry

import (
	"context"
	"log/slog"

	"github.com/clelom/titan/internal/errcode"
	"github.com/clelom/titan/internal/packet"
)

// Category groups task kinds for discovery.
type Category uint8

const (
	// Processing kinds transform data received on their input ports.
	Processing Category = iota
	// Environment kinds sample the physical world.
	Environment
	// Network kinds bridge the task graph and the radio.
	Network
)

// PortExternal is the port an activation carries when data arrived from
// outside the task graph, such as a sensor sample.
const PortExternal uint8 = 0xFF

// Kind describes a task implementation. The set of kinds is fixed at build
// time.
type Kind struct {
	UID       uint16
	Name      string
	Category  Category
	Singleton bool
	// External kinds accept packets from outside the task graph on
	// PortExternal.
	External bool
	// Init validates cfg.Data and sets cfg.InPorts, cfg.OutPorts and the
	// initial cfg.State.
	Init func(cfg *packet.TaskConfig) error
	// Run handles one activation on port. It reads input with TaskContext.In
	// and emits results with TaskContext.Out.
	Run func(tc TaskContext, port uint8) error
}

// TaskContext is the view a task has of the runtime during one activation.
type TaskContext interface {
	Context() context.Context
	Logger() *slog.Logger
	Config() *packet.TaskConfig
	State() any
	SetState(s any)
	// In pops the next packet queued on an input port, or on PortExternal.
	In(port uint8) (packet.Packet, bool)
	// Out queues a packet on an output port. Routing happens after Run returns.
	Out(port uint8, p packet.Packet)
	// Resume ends the activation once Run returns and schedules another one
	// on the same port after the outputs are routed. Run is called for it
	// even when no input is queued, so a task can spread a burst of output
	// over several activations.
	Resume()
	// Send transmits a packet to a port of a remote node's communicator.
	Send(dest uint16, port uint8, p packet.Packet) error
	// Report raises a coded fault with the task as source.
	Report(code errcode.Code)
}
