package app

import (
	"context"
	"hash/fnv"
	"math"
	"math/rand/v2"
	"time"

	"github.com/clelom/titan/internal/config"
	"github.com/clelom/titan/internal/ctxlog"
	"github.com/clelom/titan/internal/packet"
)

// samplesPerPacket is the number of 16 bit readings in one sensor packet.
const samplesPerPacket = packet.Size / 2

// waveform generates the readings of one sampler. Noise is seeded from the
// sampler name so every run produces the same sequence.
type waveform struct {
	spec *config.Sampler
	i    int
	rng  *rand.Rand
}

func newWaveform(s *config.Sampler) *waveform {
	h := fnv.New64a()
	h.Write([]byte(s.Name))
	seed := h.Sum64()
	return &waveform{spec: s, rng: rand.New(rand.NewPCG(seed, seed>>1))}
}

func (w *waveform) next() int16 {
	s := w.spec
	phase := float64(w.i%s.Window) * float64(s.Bin) / float64(s.Window)
	w.i++

	amp := float64(s.Amplitude)
	var v float64
	switch s.Waveform {
	case config.WaveSquare:
		if phase-math.Floor(phase) < 0.5 {
			v = amp
		} else {
			v = -amp
		}
	case config.WaveNoise:
		v = float64(w.rng.IntN(2*s.Amplitude+1) - s.Amplitude)
	default:
		v = amp * math.Sin(2*math.Pi*phase)
	}
	return int16(max(math.MinInt16, min(math.MaxInt16, math.Round(v))))
}

// packet returns the next full packet of readings.
func (w *waveform) packet() packet.Packet {
	values := make([]int16, samplesPerPacket)
	for i := range values {
		values[i] = w.next()
	}
	var p packet.Packet
	// samplesPerPacket always fits.
	_ = p.PutInt16s(packet.Int16, values)
	return p
}

// runSampler feeds one packet into the sampler's task every interval until
// ctx is done.
func (a *App) runSampler(ctx context.Context, net *network, s *config.Sampler) error {
	ctx = ctxlog.With(ctx, "sampler", s.Name)
	logger := ctxlog.FromContext(ctx)
	target, ok := net.nodeByName(s.Node)
	if !ok {
		logger.Warn("Sampler targets an unknown node.", "node", s.Node)
		return nil
	}
	runID, ok := a.model.SamplerRunID(s)
	if !ok {
		logger.Warn("Sampler task is not part of any configuration.", "task", s.Task)
		return nil
	}
	logger.Info("Sampler started.", "node", s.Node, "task", s.Task, "waveform", s.Waveform, "every", s.Every)

	w := newWaveform(s)
	ticker := time.NewTicker(s.Every)
	defer ticker.Stop()
	sent, dropped := 0, 0
	for {
		select {
		case <-ctx.Done():
			logger.Info("Sampler stopped.", "sent", sent, "dropped", dropped)
			return nil
		case <-ticker.C:
			if target.node.Sample(runID, w.packet()) {
				sent++
			} else {
				dropped++
			}
		}
	}
}
