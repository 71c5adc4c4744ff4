package registry

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/clelom/titan/internal/errcode"
	"github.com/clelom/titan/internal/packet"
)

// Module is the interface that all task modules implement to be registered.
type Module interface {
	Register(r *Registry)
}

// Entry is one configured task instance.
type Entry struct {
	Config packet.TaskConfig
	Kind   *Kind
}

// Registry holds the known task kinds and the configured task slots of one
// node. It is not safe for concurrent use; the node's run loop owns it.
type Registry struct {
	kinds map[uint16]*Kind
	slots [packet.MaxTasks]*Entry
	n     int
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{kinds: make(map[uint16]*Kind)}
}

// Fork returns an empty registry that shares the receiver's task kinds.
func (r *Registry) Fork() *Registry {
	return &Registry{kinds: r.kinds}
}

// RegisterKind makes a task kind available for configuration.
func (r *Registry) RegisterKind(k Kind) {
	if _, exists := r.kinds[k.UID]; exists {
		panic(fmt.Sprintf("task kind %d already registered", k.UID))
	}
	if k.Run == nil {
		panic(fmt.Sprintf("task kind %d (%s) has no Run function", k.UID, k.Name))
	}
	slog.Debug("Registering task kind.", "uid", k.UID, "name", k.Name)
	r.kinds[k.UID] = &k
}

// Kind looks up a registered kind.
func (r *Registry) Kind(uid uint16) (*Kind, bool) {
	k, ok := r.kinds[uid]
	return k, ok
}

// KindByName looks up a registered kind by its name.
func (r *Registry) KindByName(name string) (*Kind, bool) {
	for _, k := range r.kinds {
		if k.Name == name {
			return k, true
		}
	}
	return nil, false
}

// KindUIDs lists the registered kinds accepted by filter, sorted. A nil
// filter lists every kind.
func (r *Registry) KindUIDs(filter func(*Kind) bool) []uint16 {
	out := make([]uint16, 0, len(r.kinds))
	for uid, k := range r.kinds {
		if filter == nil || filter(k) {
			out = append(out, uid)
		}
	}
	slices.Sort(out)
	return out
}

// Add instantiates cfg in slot cfg.TaskID. The kind's Init fills in ports
// and private state. On failure the registry is left unchanged.
func (r *Registry) Add(cfg packet.TaskConfig) (*Entry, error) {
	runID := cfg.TaskID
	if r.n == len(r.slots) || int(runID) >= len(r.slots) {
		return nil, errcode.New(errcode.NoMemory, runID, "no free slot for task %d", runID)
	}
	if r.slots[runID] != nil {
		return nil, errcode.New(errcode.BadConfig, runID, "slot %d already holds a task", runID)
	}
	k, ok := r.kinds[cfg.TaskType]
	if !ok {
		return nil, errcode.New(errcode.NotImplemented, runID, "unknown task kind %d", cfg.TaskType)
	}
	if k.Singleton && r.hasKind(k.UID) {
		return nil, errcode.New(errcode.MultipleInstanceNotAllowed, runID, "task kind %s allows a single instance", k.Name)
	}
	if k.Init != nil {
		if err := k.Init(&cfg); err != nil {
			if _, coded := errcode.CodeOf(err); coded {
				return nil, err
			}
			return nil, &errcode.Error{Code: errcode.BadConfig, Source: runID, Err: err}
		}
	}
	if cfg.InPorts > packet.MaxPortsPerTask || cfg.OutPorts > packet.MaxPortsPerTask {
		return nil, errcode.New(errcode.BadConfig, runID, "task declares %d/%d ports, limit %d", cfg.InPorts, cfg.OutPorts, packet.MaxPortsPerTask)
	}
	e := &Entry{Config: cfg, Kind: k}
	r.slots[runID] = e
	r.n++
	return e, nil
}

// Adopt places an existing entry, with its private state, into this
// registry. It is used to carry unchanged tasks across a reconfiguration.
func (r *Registry) Adopt(e *Entry) error {
	runID := e.Config.TaskID
	if int(runID) >= len(r.slots) {
		return errcode.New(errcode.NoMemory, runID, "no slot %d", runID)
	}
	if r.slots[runID] != nil {
		return errcode.New(errcode.BadConfig, runID, "slot %d already holds a task", runID)
	}
	if e.Kind.Singleton && r.hasKind(e.Kind.UID) {
		return errcode.New(errcode.MultipleInstanceNotAllowed, runID, "task kind %s allows a single instance", e.Kind.Name)
	}
	r.slots[runID] = e
	r.n++
	return nil
}

func (r *Registry) hasKind(uid uint16) bool {
	for _, e := range r.slots {
		if e != nil && e.Kind.UID == uid {
			return true
		}
	}
	return false
}

// Get returns the task in slot runID.
func (r *Registry) Get(runID uint8) (*Entry, bool) {
	if int(runID) >= len(r.slots) || r.slots[runID] == nil {
		return nil, false
	}
	return r.slots[runID], true
}

// Remove decommissions the task in slot runID.
func (r *Registry) Remove(runID uint8) error {
	if _, ok := r.Get(runID); !ok {
		return errcode.New(errcode.NoTaskContext, runID, "slot %d is empty", runID)
	}
	r.slots[runID] = nil
	r.n--
	return nil
}

// Reset removes every configured task. Registered kinds are kept.
func (r *Registry) Reset() {
	r.slots = [packet.MaxTasks]*Entry{}
	r.n = 0
}

// Len returns the number of configured tasks.
func (r *Registry) Len() int { return r.n }

// TaskInfo is a read-only view of a configured task.
type TaskInfo struct {
	RunID    uint8
	Kind     uint16
	Name     string
	InPorts  uint8
	OutPorts uint8
	Config   []byte
}

// Snapshot lists the configured tasks ordered by runID.
func (r *Registry) Snapshot() []TaskInfo {
	out := make([]TaskInfo, 0, r.n)
	for _, e := range r.slots {
		if e == nil {
			continue
		}
		out = append(out, TaskInfo{
			RunID:    e.Config.TaskID,
			Kind:     e.Kind.UID,
			Name:     e.Kind.Name,
			InPorts:  e.Config.InPorts,
			OutPorts: e.Config.OutPorts,
			Config:   slices.Clone(e.Config.Data),
		})
	}
	return out
}
