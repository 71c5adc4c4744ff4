package executor

import (
	"fmt"
	"math"
	"testing"

	"github.com/clelom/titan/internal/errcode"
	"github.com/clelom/titan/internal/fixpt"
	"github.com/clelom/titan/internal/packet"
	"github.com/clelom/titan/internal/registry"
	"github.com/clelom/titan/internal/testutil"
	"github.com/clelom/titan/modules/communicator"
	"github.com/clelom/titan/modules/duplicator"
	"github.com/clelom/titan/modules/fft"
	"github.com/clelom/titan/modules/sensor"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newModuleFixture builds an executor over the shipped task kinds plus a
// recording sink.
func newModuleFixture() *fixture {
	f := &fixture{rec: &testutil.Recorder{}, reports: &testutil.Reports{}, sent: &sender{}}
	kinds := registry.New()
	for _, m := range []registry.Module{&communicator.Module{}, &duplicator.Module{}, &fft.Module{}, &sensor.Module{}} {
		m.Register(kinds)
	}
	kinds.RegisterKind(f.rec.Kind(kindRecord, "record"))
	f.exec = New(kinds, Options{NodeID: 4, Reporter: f.reports, Sender: f.sent})
	return f
}

func tone(n, bin int) []int16 {
	out := make([]int16, n)
	for i := range out {
		out[i] = int16(math.Round(1000 * math.Sin(2*math.Pi*float64(bin*i)/float64(n))))
	}
	return out
}

func TestExecutor_SpectrumPipelineDeliversEveryChunk(t *testing.T) {
	t.Parallel()
	for logSize := uint8(fixpt.MinLogSize); logSize <= fixpt.MaxLogSize; logSize++ {
		t.Run(fmt.Sprintf("log size %d", logSize), func(t *testing.T) {
			t.Parallel()
			// --- Arrange ---
			ctx, _ := testutil.Context(t)
			f := newModuleFixture()
			require.NoError(t, f.exec.Apply(ctx, Plan{
				ConfigID: 2,
				Tasks: []packet.TaskConfig{
					task(0, sensor.UID),
					task(1, fft.UID, logSize),
					task(2, kindRecord),
				},
				Conns: []packet.Connection{conn(0, 0, 1, 0), conn(1, 0, 2, 0)},
			}))
			samples := tone(2<<logSize, 1)

			// --- Act ---
			for rest := samples; len(rest) > 0; {
				n := min(len(rest), 15)
				var p packet.Packet
				require.NoError(t, p.PutInt16s(packet.Int16, rest[:n]))
				require.NoError(t, f.exec.External(ctx, 0, p))
				f.exec.Drain(ctx, 0)
				rest = rest[n:]
			}

			// --- Assert ---
			var want []testutil.Delivery
			for bins := fft.Spectrum(logSize, fft.DefaultTargetBits, samples); len(bins) > 0; {
				n := min(len(bins), fft.ChunkLen)
				chunk := make([]int16, n)
				for i, b := range bins[:n] {
					chunk[i] = int16(b)
				}
				var p packet.Packet
				require.NoError(t, p.PutInt16s(packet.Uint16, chunk))
				want = append(want, testutil.Delivery{Task: 2, Port: 0, Data: append([]byte(nil), p.Bytes()...)})
				bins = bins[n:]
			}
			require.Len(t, want, (1<<logSize+fft.ChunkLen-1)/fft.ChunkLen)
			if diff := cmp.Diff(want, f.rec.Seen()); diff != "" {
				t.Errorf("deliveries mismatch (-want +got):\n%s", diff)
			}
			assert.Empty(t, f.reports.All())
			assert.Zero(t, f.exec.Pending())
		})
	}
}

func TestExecutor_SpectrumBacklogDoesNotStrandInput(t *testing.T) {
	t.Parallel()
	// --- Arrange ---
	ctx, _ := testutil.Context(t)
	f := newModuleFixture()
	require.NoError(t, f.exec.Apply(ctx, Plan{
		Tasks: []packet.TaskConfig{
			task(0, sensor.UID),
			task(1, fft.UID, fixpt.MaxLogSize),
			task(2, kindRecord),
		},
		Conns: []packet.Connection{conn(0, 0, 1, 0), conn(1, 0, 2, 0)},
	}))
	window := 2 << fixpt.MaxLogSize
	samples := append(tone(window, 3), tone(window, 3)...)
	packets := 0

	// --- Act ---
	// Two windows are fed without draining in between, so new input queues
	// up while the first spectrum is still going out.
	for rest := samples; len(rest) > 0; {
		n := min(len(rest), 15)
		var p packet.Packet
		require.NoError(t, p.PutInt16s(packet.Int16, rest[:n]))
		require.NoError(t, f.exec.External(ctx, 0, p))
		packets++
		if packets%3 == 0 {
			f.exec.Drain(ctx, 0)
		}
		rest = rest[n:]
	}
	f.exec.Drain(ctx, 0)

	// --- Assert ---
	chunks := (1<<fixpt.MaxLogSize + fft.ChunkLen - 1) / fft.ChunkLen
	assert.Len(t, f.rec.Seen(), 2*chunks)
	assert.Empty(t, f.reports.All())
	assert.Zero(t, f.exec.Pending())
}

func TestExecutor_ExternalInputNeedsExternalKind(t *testing.T) {
	t.Parallel()
	testCases := []struct {
		name string
		task packet.TaskConfig
	}{
		{name: "communicator", task: task(0, communicator.UID, communicator.Config(communicator.Route{Dest: 9, Port: 2})...)},
		{name: "duplicator", task: task(0, duplicator.UID)},
		{name: "fft", task: task(0, fft.UID, 4)},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			// --- Arrange ---
			ctx, _ := testutil.Context(t)
			f := newModuleFixture()
			require.NoError(t, f.exec.Apply(ctx, Plan{ConfigID: 1, Tasks: []packet.TaskConfig{tc.task}}))

			// --- Act ---
			err := f.exec.External(ctx, 0, pkt(t, 1))
			ran := f.exec.Drain(ctx, 0)

			// --- Assert ---
			assert.ErrorIs(t, err, errcode.ErrUnexpectedInput)
			assert.Zero(t, ran)
			want := []errcode.Report{{NodeID: 4, ConfigID: 1, Source: 0, Code: errcode.UnexpectedInput}}
			if diff := cmp.Diff(want, f.reports.All()); diff != "" {
				t.Errorf("reports mismatch (-want +got):\n%s", diff)
			}
			assert.Empty(t, f.sent.sent)
		})
	}
}

func TestExecutor_SensorTakesExternalInput(t *testing.T) {
	t.Parallel()
	ctx, _ := testutil.Context(t)
	f := newModuleFixture()
	require.NoError(t, f.exec.Apply(ctx, Plan{
		Tasks: []packet.TaskConfig{task(0, sensor.UID), task(1, kindRecord)},
		Conns: []packet.Connection{conn(0, 0, 1, 0)},
	}))

	require.NoError(t, f.exec.External(ctx, 0, pkt(t, 5)))
	f.exec.Drain(ctx, 0)

	assert.Equal(t, []testutil.Delivery{{Task: 1, Port: 0, Data: []byte{5}}}, f.rec.Seen())
	assert.Empty(t, f.reports.All())
}
