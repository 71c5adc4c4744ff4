// Package sensor provides the node's sample source. Samples are handed to the
// task from outside the graph with node.Node.Sample and leave on output 0.
package sensor

import (
	"github.com/clelom/titan/internal/errcode"
	"github.com/clelom/titan/internal/packet"
	"github.com/clelom/titan/internal/registry"
)

// UID is the task kind identifier.
const UID uint16 = 6

// Module implements the registry.Module interface for this package.
type Module struct{}

// Register registers the sensor task kind.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterKind(registry.Kind{
		UID:       UID,
		Name:      "sensor",
		Category:  registry.Environment,
		Singleton: true,
		External:  true,
		Init: func(cfg *packet.TaskConfig) error {
			if len(cfg.Data) > 1 {
				return errcode.New(errcode.BadConfig, cfg.TaskID, "sensor takes a channel byte, got %d bytes", len(cfg.Data))
			}
			cfg.OutPorts = 1
			return nil
		},
		Run: func(tc registry.TaskContext, port uint8) error {
			if port != registry.PortExternal {
				return errcode.New(errcode.UnexpectedInput, tc.Config().TaskID, "sensor has no inputs")
			}
			p, ok := tc.In(port)
			if !ok {
				return nil
			}
			tc.Out(0, p)
			return nil
		},
	})
}
