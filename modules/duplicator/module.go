// Package duplicator provides a task that copies each input packet to all of
// its output ports.
package duplicator

import (
	"github.com/clelom/titan/internal/errcode"
	"github.com/clelom/titan/internal/packet"
	"github.com/clelom/titan/internal/registry"
)

// UID is the task kind identifier.
const UID uint16 = 3

// DefaultOutPorts is used when the config is empty.
const DefaultOutPorts = 2

// Module implements the registry.Module interface for this package.
type Module struct{}

// Register registers the duplicator task kind.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterKind(registry.Kind{
		UID:  UID,
		Name: "duplicator",
		Init: func(cfg *packet.TaskConfig) error {
			cfg.InPorts = 1
			cfg.OutPorts = DefaultOutPorts
			switch len(cfg.Data) {
			case 0:
			case 1:
				if cfg.Data[0] == 0 {
					return errcode.New(errcode.BadConfig, cfg.TaskID, "duplicator needs at least one output")
				}
				cfg.OutPorts = cfg.Data[0]
			default:
				return errcode.New(errcode.BadConfig, cfg.TaskID, "duplicator takes one config byte, got %d", len(cfg.Data))
			}
			return nil
		},
		Run: func(tc registry.TaskContext, port uint8) error {
			p, ok := tc.In(port)
			if !ok {
				return nil
			}
			for i := uint8(0); i < tc.Config().OutPorts; i++ {
				tc.Out(i, p)
			}
			return nil
		},
	})
}
