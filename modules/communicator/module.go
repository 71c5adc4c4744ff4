// Package communicator provides the network task. Packets arriving on one of
// its input ports are sent to a port of a remote communicator; data received
// from the network leaves on the output port named by the sender.
package communicator

import (
	"github.com/clelom/titan/internal/errcode"
	"github.com/clelom/titan/internal/packet"
	"github.com/clelom/titan/internal/registry"
)

// UID is the task kind identifier.
const UID uint16 = 0

// Route is the remote endpoint of one input port.
type Route struct {
	Dest uint16
	Port uint8
}

// Module implements the registry.Module interface for this package.
type Module struct{}

// Register registers the communicator task kind.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterKind(registry.Kind{
		UID:       UID,
		Name:      "communicator",
		Category:  registry.Network,
		Singleton: true,
		Init:      initTask,
		Run:       run,
	})
}

// Config encodes routes as task config bytes: one {destHi, destLo, port}
// triple per input port.
func Config(routes ...Route) []byte {
	out := make([]byte, 0, 3*len(routes))
	for _, r := range routes {
		out = append(out, byte(r.Dest>>8), byte(r.Dest), r.Port)
	}
	return out
}

func initTask(cfg *packet.TaskConfig) error {
	if len(cfg.Data)%3 != 0 {
		return errcode.New(errcode.BadConfig, cfg.TaskID, "communicator config of %d bytes is not a list of routes", len(cfg.Data))
	}
	routes := make([]Route, len(cfg.Data)/3)
	for i := range routes {
		b := cfg.Data[3*i:]
		routes[i] = Route{Dest: uint16(b[0])<<8 | uint16(b[1]), Port: b[2]}
	}
	cfg.InPorts = uint8(len(routes))
	cfg.OutPorts = packet.MaxPortsPerTask
	cfg.State = routes
	return nil
}

func run(tc registry.TaskContext, port uint8) error {
	p, ok := tc.In(port)
	if !ok {
		return nil
	}
	routes := tc.State().([]Route)
	if int(port) >= len(routes) {
		return errcode.New(errcode.UnexpectedPort, tc.Config().TaskID, "communicator has no route for port %d", port)
	}
	r := routes[port]
	return tc.Send(r.Dest, r.Port, p)
}
