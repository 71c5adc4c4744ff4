package fft

import (
	"fmt"
	"math"
	"testing"

	"github.com/clelom/titan/internal/errcode"
	"github.com/clelom/titan/internal/packet"
	"github.com/clelom/titan/internal/registry"
	"github.com/clelom/titan/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func kind(t *testing.T) registry.Kind {
	t.Helper()
	r := registry.New()
	(&Module{}).Register(r)
	k, ok := r.Kind(UID)
	require.True(t, ok)
	return *k
}

// cosine returns n samples of a cosine completing bin periods.
func cosine(n, bin int) []int16 {
	out := make([]int16, n)
	for i := range out {
		out[i] = int16(math.Round(1000 * math.Cos(2*math.Pi*float64(bin*i)/float64(n))))
	}
	return out
}

func feed(t *testing.T, tc *testutil.TaskContext, samples []int16) {
	t.Helper()
	for len(samples) > 0 {
		n := min(len(samples), 15)
		var p packet.Packet
		require.NoError(t, p.PutInt16s(packet.Int16, samples[:n]))
		tc.Feed(0, p)
		require.NoError(t, run(tc, 0))
		for tc.Resumed {
			tc.Resumed = false
			require.NoError(t, run(tc, 0))
		}
		samples = samples[n:]
	}
}

func bins(t *testing.T, outs []testutil.Output) []uint16 {
	t.Helper()
	var all []uint16
	for _, o := range outs {
		assert.Equal(t, uint8(0), o.Port)
		assert.Equal(t, packet.Uint16, o.Packet.Type)
		v, err := o.Packet.Int16s()
		require.NoError(t, err)
		for _, x := range v {
			all = append(all, uint16(x))
		}
	}
	return all
}

func argmax(v []uint16) int {
	best := 0
	for i, x := range v {
		if x > v[best] {
			best = i
		}
	}
	return best
}

func TestFFT_PeaksAtSignalBin(t *testing.T) {
	t.Parallel()
	testCases := []struct {
		logSize uint8
		bin     int
		packets int
	}{
		{logSize: 2, bin: 1, packets: 1},
		{logSize: 3, bin: 2, packets: 1},
		{logSize: 5, bin: 7, packets: 3},
		{logSize: 7, bin: 20, packets: 9},
		{logSize: 8, bin: 100, packets: 18},
	}
	for _, tc := range testCases {
		t.Run(fmt.Sprintf("log size %d", tc.logSize), func(t *testing.T) {
			t.Parallel()
			// --- Arrange ---
			ctx, _ := testutil.Context(t)
			task, err := testutil.NewTaskContext(ctx, kind(t), []byte{tc.logSize})
			require.NoError(t, err)
			n := 2 << tc.logSize

			// --- Act ---
			feed(t, task, cosine(n, tc.bin))

			// --- Assert ---
			require.Len(t, task.Outputs, tc.packets)
			spectrum := bins(t, task.Outputs)
			require.Len(t, spectrum, 1<<tc.logSize)
			assert.Equal(t, tc.bin, argmax(spectrum))
			// The largest component is normalized to bit 15.
			assert.GreaterOrEqual(t, spectrum[tc.bin], uint16(1<<14))
			assert.Equal(t, Spectrum(tc.logSize, DefaultTargetBits, cosine(n, tc.bin)), spectrum)
		})
	}
}

func TestFFT_WaitsForFullWindow(t *testing.T) {
	t.Parallel()
	ctx, _ := testutil.Context(t)
	task, err := testutil.NewTaskContext(ctx, kind(t), []byte{3})
	require.NoError(t, err)
	samples := cosine(16, 2)

	feed(t, task, samples[:15])
	partial := len(task.Outputs)
	feed(t, task, samples[15:])
	feed(t, task, samples[:15])

	assert.Equal(t, 0, partial)
	assert.Len(t, task.Outputs, 1)
}

func TestFFT_SpreadsLargeWindowOverActivations(t *testing.T) {
	t.Parallel()
	// --- Arrange ---
	ctx, _ := testutil.Context(t)
	task, err := testutil.NewTaskContext(ctx, kind(t), []byte{8})
	require.NoError(t, err)
	samples := cosine(512, 9)
	for len(samples) > 15 {
		var p packet.Packet
		require.NoError(t, p.PutInt16s(packet.Int16, samples[:15]))
		task.Feed(0, p)
		require.NoError(t, run(task, 0))
		samples = samples[15:]
	}
	var last packet.Packet
	require.NoError(t, last.PutInt16s(packet.Int16, samples))
	task.Feed(0, last)
	task.Feed(0, last)

	// --- Act ---
	var perActivation []int
	require.NoError(t, run(task, 0))
	perActivation = append(perActivation, len(task.Outputs))
	for task.Resumed {
		task.Resumed = false
		before := len(task.Outputs)
		require.NoError(t, run(task, 0))
		perActivation = append(perActivation, len(task.Outputs)-before)
	}

	// --- Assert ---
	assert.Equal(t, []int{ChunksPerActivation, 5, 5, 3}, perActivation)
	assert.Len(t, task.Inputs[0], 1, "input waits until the spectrum is out")
	assert.Equal(t, 9, argmax(bins(t, task.Outputs)))
	assert.Empty(t, task.Codes)

	require.NoError(t, run(task, 0))
	assert.Empty(t, task.Inputs[0])
	assert.False(t, task.Resumed)
}

func TestFFT_DCAndSilence(t *testing.T) {
	t.Parallel()
	flat := make([]int16, 16)
	for i := range flat {
		flat[i] = 500
	}

	dc := Spectrum(3, DefaultTargetBits, flat)
	silent := Spectrum(3, DefaultTargetBits, make([]int16, 16))

	assert.Equal(t, 0, argmax(dc))
	assert.Greater(t, dc[0], uint16(60000))
	assert.Equal(t, make([]uint16, 8), silent)
}

func TestFFT_RejectsConfig(t *testing.T) {
	t.Parallel()
	testCases := []struct {
		name string
		data []byte
	}{
		{name: "empty", data: nil},
		{name: "log size zero", data: []byte{0}},
		{name: "log size too large", data: []byte{9}},
		{name: "target zero", data: []byte{4, 0}},
		{name: "target too wide", data: []byte{4, 17}},
		{name: "too long", data: []byte{4, 15, 1}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			ctx, _ := testutil.Context(t)

			_, err := testutil.NewTaskContext(ctx, kind(t), tc.data)

			assert.ErrorIs(t, err, errcode.ErrBadConfig)
		})
	}
}

func TestFFT_RejectsWrongType(t *testing.T) {
	t.Parallel()
	ctx, _ := testutil.Context(t)
	task, err := testutil.NewTaskContext(ctx, kind(t), []byte{2})
	require.NoError(t, err)
	var p packet.Packet
	require.NoError(t, p.PutInt32s(packet.Int32, []int32{1, 2}))
	task.Feed(0, p)

	err = run(task, 0)

	code, ok := errcode.CodeOf(err)
	require.True(t, ok)
	assert.Equal(t, errcode.InvalidType, code)
	assert.Empty(t, task.Outputs)
}
