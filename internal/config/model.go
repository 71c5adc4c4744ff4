package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/clelom/titan/internal/endpoint"
)

// DefaultTimeUnit is the retry time unit when the topology sets none.
const DefaultTimeUnit = time.Millisecond

// Model is the unified, format-agnostic representation of a simulated
// network: one master, its nodes, the configurations pushed to them and the
// samplers feeding their sensors.
type Model struct {
	Master         *Master
	Nodes          []*Node
	Configurations []*Configuration
	Samplers       []*Sampler
}

// Master is the `master` block.
type Master struct {
	ID       uint16
	TimeUnit time.Duration
}

// Node is a `node` block.
type Node struct {
	Name string
	ID   uint16
}

// Configuration is a `configuration` block: a task graph for one node.
type Configuration struct {
	Name        string
	ConfigID    uint8
	Target      string
	Delayed     bool
	Cache       bool
	Tasks       []*Task
	Connections []*Connection
}

// Task is a `task` block inside a configuration. RunIDs follow declaration
// order.
type Task struct {
	Name string
	Kind string
	Data []byte
}

// Connection links two task ports of the same configuration.
type Connection struct {
	From endpoint.Endpoint
	To   endpoint.Endpoint
}

// Sampler feeds a generated waveform into a sensor task.
type Sampler struct {
	Name     string
	Node     string
	Task     string
	Waveform string
	// Bin is the number of periods per Window samples.
	Bin       int
	Amplitude int
	Window    int
	Every     time.Duration
}

// Waveforms a sampler can generate.
const (
	WaveSine   = "sine"
	WaveSquare = "square"
	WaveNoise  = "noise"
)

// NewModel returns an empty model.
func NewModel() *Model { return &Model{} }

// NodeByName looks up a node.
func (m *Model) NodeByName(name string) (*Node, bool) {
	for _, n := range m.Nodes {
		if n.Name == name {
			return n, true
		}
	}
	return nil, false
}

// TaskIndex returns the runID of the named task.
func (c *Configuration) TaskIndex(name string) (int, bool) {
	for i, t := range c.Tasks {
		if t.Name == name {
			return i, true
		}
	}
	return 0, false
}

// SamplerRunID returns the runID of the task s feeds. The last
// configuration for the node that declares the task wins.
func (m *Model) SamplerRunID(s *Sampler) (uint8, bool) {
	var (
		runID uint8
		found bool
	)
	for _, c := range m.Configurations {
		if c.Target != s.Node {
			continue
		}
		if i, ok := c.TaskIndex(s.Task); ok {
			runID, found = uint8(i), true
		}
	}
	return runID, found
}

// Validate checks references between blocks. Task kinds are resolved later
// against the compiled-in kinds.
func (m *Model) Validate() error {
	if m.Master == nil {
		return errors.New("topology has no master block")
	}
	ids := map[uint16]string{m.Master.ID: "master"}
	names := map[string]bool{}
	for _, n := range m.Nodes {
		if other, dup := ids[n.ID]; dup {
			return fmt.Errorf("node %q reuses address %d of %s", n.Name, n.ID, other)
		}
		if names[n.Name] {
			return fmt.Errorf("node %q declared twice", n.Name)
		}
		ids[n.ID] = n.Name
		names[n.Name] = true
	}

	var errs []error
	for _, c := range m.Configurations {
		errs = append(errs, c.validate(m))
	}
	for _, s := range m.Samplers {
		errs = append(errs, s.validate(m))
	}
	return errors.Join(errs...)
}

func (c *Configuration) validate(m *Model) error {
	if _, ok := m.NodeByName(c.Target); !ok {
		return fmt.Errorf("configuration %q targets unknown node %q", c.Name, c.Target)
	}
	if c.ConfigID > 0x0F {
		return fmt.Errorf("configuration %q: config_id %d exceeds 15", c.Name, c.ConfigID)
	}
	seen := map[string]bool{}
	for _, t := range c.Tasks {
		if seen[t.Name] {
			return fmt.Errorf("configuration %q declares task %q twice", c.Name, t.Name)
		}
		seen[t.Name] = true
	}
	for _, conn := range c.Connections {
		for _, e := range []endpoint.Endpoint{conn.From, conn.To} {
			if !seen[e.Task] {
				return fmt.Errorf("configuration %q connects unknown task %q", c.Name, e.Task)
			}
			if e.Port > 0xFF {
				return fmt.Errorf("configuration %q: port %s out of range", c.Name, e)
			}
		}
	}
	return nil
}

func (s *Sampler) validate(m *Model) error {
	if _, ok := m.NodeByName(s.Node); !ok {
		return fmt.Errorf("sampler %q feeds unknown node %q", s.Name, s.Node)
	}
	if _, ok := m.SamplerRunID(s); !ok {
		return fmt.Errorf("sampler %q: node %q has no task %q", s.Name, s.Node, s.Task)
	}
	switch s.Waveform {
	case WaveSine, WaveSquare, WaveNoise:
	default:
		return fmt.Errorf("sampler %q: unknown waveform %q", s.Name, s.Waveform)
	}
	if s.Every <= 0 || s.Window <= 0 {
		return fmt.Errorf("sampler %q needs a positive interval and window", s.Name)
	}
	return nil
}
