package app

import (
	"github.com/clelom/titan/internal/errcode"
	"github.com/clelom/titan/internal/registry"
)

// Summary is the state of the simulated network after a run.
type Summary struct {
	Nodes  []NodeSummary
	Pushes []PushSummary
	// Data counts the data packets each node sent to the master.
	Data    map[uint16]int
	Reports []errcode.Report
}

// NodeSummary describes the installed graph of one node.
type NodeSummary struct {
	Name     string
	ID       uint16
	ConfigID uint8
	Tasks    []registry.TaskInfo
	Links    int
	Cached   []uint8
}

// PushSummary is the outcome of one configuration push.
type PushSummary struct {
	Configuration string
	Node          uint16
	ConfigID      uint8
	OK            bool
	FromCache     bool
	Attempts      int
	Error         string
}

// summarize reads the final state of every endpoint. The loops must have
// stopped.
func (a *App) summarize(net *network) *Summary {
	s := &Summary{Data: make(map[uint16]int)}
	for _, n := range net.nodes {
		exec := n.node.Executor()
		s.Nodes = append(s.Nodes, NodeSummary{
			Name:     n.spec.Name,
			ID:       n.spec.ID,
			ConfigID: exec.ConfigID(),
			Tasks:    exec.Registry().Snapshot(),
			Links:    exec.Links().Len(),
			Cached:   n.node.Cache().IDs(),
		})
	}
	for _, r := range net.results {
		p := PushSummary{
			Node:      r.Node,
			ConfigID:  r.ConfigID,
			OK:        r.OK,
			FromCache: r.FromCache,
			Attempts:  r.Attempts,
		}
		if c := a.configuration(r); c != nil {
			p.Configuration = c.Name
		}
		if r.Err != nil {
			p.Error = r.Err.Error()
		}
		s.Pushes = append(s.Pushes, p)
	}
	for _, rcv := range net.master.Received() {
		switch {
		case rcv.Data != nil:
			s.Data[rcv.Src]++
		case rcv.Report != nil:
			s.Reports = append(s.Reports, *rcv.Report)
		}
	}
	return s
}
