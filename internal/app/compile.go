package app

import (
	"fmt"

	"github.com/clelom/titan/internal/config"
	"github.com/clelom/titan/internal/endpoint"
	"github.com/clelom/titan/internal/packet"
	"github.com/clelom/titan/internal/wire"
)

// compile turns a configuration block into the wire configuration pushed to
// its target node. RunIDs follow the declaration order of the tasks.
func (a *App) compile(c *config.Configuration) (uint16, wire.Config, error) {
	target, ok := a.model.NodeByName(c.Target)
	if !ok {
		return 0, wire.Config{}, fmt.Errorf("unknown target node %q", c.Target)
	}
	cfg := wire.Config{
		ConfigID: c.ConfigID,
		Delayed:  c.Delayed,
		Master:   a.model.Master.ID,
		Store:    c.Cache,
	}
	for i, t := range c.Tasks {
		k, ok := a.kinds.KindByName(t.Kind)
		if !ok {
			return 0, wire.Config{}, fmt.Errorf("task %q: unknown kind %q", t.Name, t.Kind)
		}
		cfg.Tasks = append(cfg.Tasks, wire.TaskDesc{Kind: k.UID, RunID: uint8(i), Config: t.Data})
	}
	for _, conn := range c.Connections {
		src, err := port(c, conn.From)
		if err != nil {
			return 0, wire.Config{}, err
		}
		dst, err := port(c, conn.To)
		if err != nil {
			return 0, wire.Config{}, err
		}
		cfg.Conns = append(cfg.Conns, packet.Connection{
			SrcRunID: src.Task, SrcPort: src.Port,
			DstRunID: dst.Task, DstPort: dst.Port,
		})
	}
	if _, err := wire.SplitConfig(cfg, wire.MTU); err != nil {
		return 0, wire.Config{}, err
	}
	return target.ID, cfg, nil
}

type runPort struct {
	Task uint8
	Port uint8
}

func port(c *config.Configuration, e endpoint.Endpoint) (runPort, error) {
	i, ok := c.TaskIndex(e.Task)
	if !ok {
		return runPort{}, fmt.Errorf("connection endpoint %s: unknown task", e)
	}
	if e.Port > 0xFF {
		return runPort{}, fmt.Errorf("connection endpoint %s: port out of range", e)
	}
	return runPort{Task: uint8(i), Port: uint8(e.Port)}, nil
}
