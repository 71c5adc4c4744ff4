package executor

import (
	"github.com/clelom/titan/internal/errcode"
	"github.com/clelom/titan/internal/interconnect"
	"github.com/clelom/titan/internal/packet"
	"github.com/clelom/titan/internal/registry"
)

// Plan is a complete task graph to install: tasks first, then the
// connections between them.
type Plan struct {
	ConfigID uint8
	Tasks    []packet.TaskConfig
	Conns    []packet.Connection
}

// graph is an installed or staged plan.
type graph struct {
	configID uint8
	reg      *registry.Registry
	links    interconnect.Table
}

// build instantiates p on a fork of base. Tasks whose descriptor matches an
// entry of keep are adopted with their state instead of being initialized.
func build(base *registry.Registry, p Plan, keep *registry.Registry) (*graph, error) {
	g := &graph{configID: p.ConfigID, reg: base.Fork()}
	for _, cfg := range p.Tasks {
		if keep != nil {
			if old, ok := keep.Get(cfg.TaskID); ok && old.Config.SameDescriptor(&cfg) {
				if err := g.reg.Adopt(old); err != nil {
					return nil, err
				}
				continue
			}
		}
		if _, err := g.reg.Add(cfg); err != nil {
			return nil, err
		}
	}
	for _, c := range p.Conns {
		if err := g.connect(c); err != nil {
			return nil, err
		}
	}
	return g, nil
}

func (g *graph) connect(c packet.Connection) error {
	src, ok := g.reg.Get(c.SrcRunID)
	if !ok {
		return errcode.New(errcode.BadConfig, errcode.SourceFramework, "connection from unknown task %d", c.SrcRunID)
	}
	dst, ok := g.reg.Get(c.DstRunID)
	if !ok {
		return errcode.New(errcode.BadConfig, errcode.SourceFramework, "connection to unknown task %d", c.DstRunID)
	}
	if c.SrcPort >= src.Config.OutPorts {
		return errcode.New(errcode.UnexpectedPort, c.SrcRunID, "task %d has no output port %d", c.SrcRunID, c.SrcPort)
	}
	if c.DstPort >= dst.Config.InPorts {
		return errcode.New(errcode.UnexpectedPort, c.DstRunID, "task %d has no input port %d", c.DstRunID, c.DstPort)
	}
	_, err := g.links.Add(
		interconnect.Endpoint{Task: c.SrcRunID, Port: c.SrcPort},
		interconnect.Endpoint{Task: c.DstRunID, Port: c.DstPort},
	)
	return err
}

// carryQueues moves queued packets from old links into new links with the
// same endpoints.
func (g *graph) carryQueues(old *interconnect.Table) {
	used := make([]bool, old.Len())
	for i := 0; i < g.links.Len(); i++ {
		nl := g.links.Get(i)
		for j := 0; j < old.Len(); j++ {
			ol := old.Get(j)
			if used[j] || ol.Src != nl.Src || ol.Dst != nl.Dst {
				continue
			}
			nl.Queue = ol.Queue
			used[j] = true
			break
		}
	}
}
