// Package fft provides the spectrum task: it collects int16 samples and
// emits the squared magnitude of their spectrum.
package fft

import (
	"github.com/clelom/titan/internal/errcode"
	"github.com/clelom/titan/internal/fixpt"
	"github.com/clelom/titan/internal/packet"
	"github.com/clelom/titan/internal/registry"
)

const (
	// UID is the task kind identifier.
	UID uint16 = 12
	// DefaultTargetBits is the width the spectrum is normalized to before the
	// magnitude is taken.
	DefaultTargetBits = 15
	// ChunkLen is the number of uint16 bins per output packet.
	ChunkLen = 15
	// ChunksPerActivation bounds the packets emitted by one activation so a
	// single output link can take them all.
	ChunksPerActivation = packet.FIFODepth
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// state is the sample buffer of one task instance.
type state struct {
	logSize uint8
	target  int
	buf     []int32
	n       int
	out     []uint16
	// pending holds the bins of the last window not emitted yet.
	pending []uint16
}

// Register registers the fft task kind.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterKind(registry.Kind{
		UID:  UID,
		Name: "fft",
		Init: initTask,
		Run:  run,
	})
}

// initTask reads config [logSize, targetBits?]. logSize is the log2 of the
// number of output bins; twice as many samples make up one window.
func initTask(cfg *packet.TaskConfig) error {
	if len(cfg.Data) < 1 || len(cfg.Data) > 2 {
		return errcode.New(errcode.BadConfig, cfg.TaskID, "fft takes 1 or 2 config bytes, got %d", len(cfg.Data))
	}
	s := &state{logSize: cfg.Data[0], target: DefaultTargetBits}
	if !fixpt.SupportedLogSize(s.logSize) {
		return errcode.New(errcode.BadConfig, cfg.TaskID, "fft log size %d not supported", s.logSize)
	}
	if len(cfg.Data) == 2 {
		s.target = int(cfg.Data[1])
		if s.target < 1 || s.target > 16 {
			return errcode.New(errcode.BadConfig, cfg.TaskID, "fft target width %d out of range", s.target)
		}
	}
	s.buf = make([]int32, fixpt.BufferLen(s.logSize))
	s.out = make([]uint16, 1<<s.logSize)
	cfg.InPorts = 1
	cfg.OutPorts = 1
	cfg.State = s
	return nil
}

// run emits the pending spectrum before taking more input. Windows larger
// than ChunksPerActivation packets are spread over several activations.
func run(tc registry.TaskContext, port uint8) error {
	s := tc.State().(*state)
	budget := ChunksPerActivation
	if len(s.pending) > 0 {
		s.emit(tc, budget)
		if len(s.pending) > 0 {
			tc.Resume()
		}
		return nil
	}
	p, ok := tc.In(port)
	if !ok {
		return nil
	}
	samples, err := p.Int16s()
	if err != nil {
		return &errcode.Error{Code: errcode.InvalidType, Source: tc.Config().TaskID, Err: err}
	}
	for _, v := range samples {
		s.buf[s.n] = int32(v)
		s.n++
		if s.n == len(s.buf) {
			if len(s.pending) > 0 {
				// The previous window's tail is lost.
				tc.Report(errcode.OutFifoFull)
			}
			s.transform()
			s.pending = s.out
			budget -= s.emit(tc, budget)
			s.n = 0
		}
	}
	if len(s.pending) > 0 {
		tc.Resume()
	}
	return nil
}

// transform turns a full window of real samples into s.out. The samples are
// packed as complex pairs, so an FFT of 2^logSize points covers twice as
// many real samples.
func (s *state) transform() {
	// One bit of headroom per butterfly stage and two for the reconstruction.
	fixpt.Normalize32(s.buf, 30-int(s.logSize)-2)
	fixpt.FFT(s.logSize, s.buf)
	fixpt.RealSpectrumReconstruct(s.logSize, s.buf)
	fixpt.Normalize32(s.buf, s.target)
	fixpt.MagnitudeSquared(s.logSize, s.out, s.buf)
}

// Spectrum runs one window through the same pipeline as the task. It is
// used by tools that want to preview what a node would report.
func Spectrum(logSize uint8, target int, samples []int16) []uint16 {
	if !fixpt.SupportedLogSize(logSize) || len(samples) < fixpt.BufferLen(logSize) {
		return nil
	}
	s := &state{logSize: logSize, target: target, buf: make([]int32, fixpt.BufferLen(logSize)), out: make([]uint16, 1<<logSize)}
	for i := range s.buf {
		s.buf[i] = int32(samples[i])
	}
	s.transform()
	return s.out
}

// emit writes up to budget chunks of s.pending and returns how many it wrote.
func (s *state) emit(tc registry.TaskContext, budget int) int {
	sent := 0
	for len(s.pending) > 0 && sent < budget {
		n := min(len(s.pending), ChunkLen)
		chunk := make([]int16, n)
		for i, b := range s.pending[:n] {
			chunk[i] = int16(b)
		}
		var p packet.Packet
		if err := p.PutInt16s(packet.Uint16, chunk); err != nil {
			tc.Report(errcode.MalformedPacket)
			s.pending = nil
			return sent
		}
		tc.Out(0, p)
		s.pending = s.pending[n:]
		sent++
	}
	return sent
}
