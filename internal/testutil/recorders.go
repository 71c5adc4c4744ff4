package testutil

import (
	"context"
	"sync"

	"github.com/clelom/titan/internal/errcode"
	"github.com/clelom/titan/internal/packet"
	"github.com/clelom/titan/internal/registry"
)

// Reports records every error report it receives.
type Reports struct {
	mu   sync.Mutex
	list []errcode.Report
}

// Report implements errcode.Reporter.
func (r *Reports) Report(_ context.Context, rep errcode.Report) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.list = append(r.list, rep)
}

// All returns a copy of the recorded reports.
func (r *Reports) All() []errcode.Report {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]errcode.Report(nil), r.list...)
}

// Codes returns the codes of the recorded reports in order.
func (r *Reports) Codes() []errcode.Code {
	var out []errcode.Code
	for _, rep := range r.All() {
		out = append(out, rep.Code)
	}
	return out
}

// Delivery is one packet seen by a RecordingKind.
type Delivery struct {
	Task uint8
	Port uint8
	Data []byte
}

// Recorder collects the packets consumed by recording tasks.
type Recorder struct {
	mu   sync.Mutex
	seen []Delivery
}

// Seen returns a copy of the recorded deliveries.
func (r *Recorder) Seen() []Delivery {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Delivery(nil), r.seen...)
}

// Kind returns a pass-through task kind with the given uid. Instances have
// config[0] input ports (default 1) and one output port; each consumed packet
// is recorded and copied to output 0. The number of runs is kept as task
// state.
func (r *Recorder) Kind(uid uint16, name string) registry.Kind {
	return registry.Kind{
		UID:      uid,
		Name:     name,
		External: true,
		Init: func(cfg *packet.TaskConfig) error {
			cfg.InPorts = 1
			if len(cfg.Data) > 0 {
				cfg.InPorts = cfg.Data[0]
			}
			cfg.OutPorts = 1
			cfg.State = 0
			return nil
		},
		Run: func(tc registry.TaskContext, port uint8) error {
			p, ok := tc.In(port)
			if !ok {
				return nil
			}
			tc.SetState(tc.State().(int) + 1)
			r.mu.Lock()
			r.seen = append(r.seen, Delivery{Task: tc.Config().TaskID, Port: port, Data: append([]byte(nil), p.Bytes()...)})
			r.mu.Unlock()
			tc.Out(0, p)
			return nil
		},
	}
}
