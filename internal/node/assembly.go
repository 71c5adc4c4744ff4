package node

import (
	"slices"

	"github.com/clelom/titan/internal/errcode"
	"github.com/clelom/titan/internal/executor"
	"github.com/clelom/titan/internal/packet"
	"github.com/clelom/titan/internal/wire"
)

// assembly collects the frames of one configuration until every task and
// connection announced by its header has arrived.
type assembly struct {
	header wire.ConfigHeader
	store  bool
	tasks  []wire.TaskDesc
	conns  []packet.Connection
}

func newAssembly(f wire.ConfigFrame, store bool) (*assembly, error) {
	a := &assembly{header: f.Header, store: store}
	if err := a.addTasks(f.Tasks.Tasks); err != nil {
		return nil, err
	}
	if f.Conns != nil {
		if err := a.addConns(f.Conns.Conns); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// addTasks replaces descriptors that arrive twice for the same runID.
func (a *assembly) addTasks(tasks []wire.TaskDesc) error {
	for _, d := range tasks {
		i := slices.IndexFunc(a.tasks, func(o wire.TaskDesc) bool { return o.RunID == d.RunID })
		if i >= 0 {
			a.tasks[i] = d
			continue
		}
		a.tasks = append(a.tasks, d)
	}
	if len(a.tasks) > int(a.header.NumTasks) {
		return errcode.New(errcode.SegmentSizeMismatch, errcode.SourceFramework, "config %d announced %d tasks, received %d", a.header.ConfigID, a.header.NumTasks, len(a.tasks))
	}
	return nil
}

func (a *assembly) addConns(conns []packet.Connection) error {
	for _, c := range conns {
		if !slices.Contains(a.conns, c) {
			a.conns = append(a.conns, c)
		}
	}
	if len(a.conns) > int(a.header.NumConns) {
		return errcode.New(errcode.SegmentSizeMismatch, errcode.SourceFramework, "config %d announced %d connections, received %d", a.header.ConfigID, a.header.NumConns, len(a.conns))
	}
	return nil
}

func (a *assembly) complete() bool {
	return len(a.tasks) == int(a.header.NumTasks) && len(a.conns) == int(a.header.NumConns)
}

func (a *assembly) config() wire.Config {
	return wire.Config{
		ConfigID: a.header.ConfigID,
		Delayed:  a.header.Delayed,
		Master:   a.header.Master,
		Tasks:    a.tasks,
		Conns:    a.conns,
		Store:    a.store,
	}
}

// planFor turns a wire configuration into an executor plan.
func planFor(cfg wire.Config) (executor.Plan, error) {
	p := executor.Plan{ConfigID: cfg.ConfigID, Conns: cfg.Conns}
	for _, d := range cfg.Tasks {
		tc, err := packet.NewTaskConfig(d.RunID, d.Kind, d.Config)
		if err != nil {
			return executor.Plan{}, err
		}
		p.Tasks = append(p.Tasks, tc)
	}
	return p, nil
}
