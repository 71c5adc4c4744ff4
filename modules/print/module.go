package print

import (
	"fmt"

	"github.com/clelom/titan/internal/packet"
	"github.com/clelom/titan/internal/registry"
)

// UID is the task kind identifier.
const UID uint16 = 1

// Module implements the registry.Module interface for this package.
type Module struct{}

// Register registers the print task kind.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterKind(registry.Kind{
		UID:  UID,
		Name: "print",
		Init: func(cfg *packet.TaskConfig) error {
			cfg.InPorts = 1
			return nil
		},
		Run: func(tc registry.TaskContext, port uint8) error {
			p, ok := tc.In(port)
			if !ok {
				return nil
			}
			tc.Logger().Info("Packet received.", "type", p.Type, "len", p.Length, "data", format(p))
			return nil
		},
	})
}

// format renders the payload by element type.
func format(p packet.Packet) string {
	switch p.Type {
	case packet.Int16, packet.Uint16, packet.Buf16:
		v, _ := p.Int16s()
		if p.Type == packet.Int16 {
			return fmt.Sprint(v)
		}
		u := make([]uint16, len(v))
		for i, x := range v {
			u[i] = uint16(x)
		}
		return fmt.Sprint(u)
	case packet.Int32, packet.Uint32:
		v, _ := p.Int32s()
		return fmt.Sprint(v)
	}
	return fmt.Sprintf("% x", p.Bytes())
}
