package fixpt

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSineTableStride(t *testing.T) {
	t.Parallel()
	// The smallest transform reads {0, 16384, 0}.
	tab, ok := tableFor(1)
	require.True(t, ok)
	assert.Equal(t, []int32{0, 16384, 0}, []int32{tab.at(0), tab.at(1), tab.at(2)})

	tab, _ = tableFor(2)
	assert.Equal(t, int32(11585), tab.at(1))
	assert.Equal(t, int32(-11585), tab.at(5))
}

func TestFFT_ZeroInputStaysZero(t *testing.T) {
	t.Parallel()
	for logSize := uint8(MinLogSize); logSize <= MaxLogSize; logSize++ {
		data := make([]int32, BufferLen(logSize))
		FFT(logSize, data)
		RealSpectrumReconstruct(logSize, data)

		for i, v := range data {
			require.Zerof(t, v, "logSize %d index %d", logSize, i)
		}
	}
}

func TestFFT_ExactForScaledIntegers(t *testing.T) {
	t.Parallel()
	const one = 1 << twiddleScale
	// x = [1, 2, 3, 4] as complex points with zero imaginary part.
	data := []int32{1 * one, 0, 2 * one, 0, 3 * one, 0, 4 * one, 0}

	FFT(2, data)

	want := []int32{10 * one, 0, -2 * one, 2 * one, -2 * one, 0, -2 * one, -2 * one}
	if diff := cmp.Diff(want, data); diff != "" {
		t.Errorf("FFT() mismatch (-want +got):\n%s", diff)
	}
}

func TestFFT_SinePeaksAtItsBin(t *testing.T) {
	t.Parallel()
	testCases := []struct {
		logSize uint8
		bin     int
	}{
		{logSize: 3, bin: 2},
		{logSize: 5, bin: 7},
		{logSize: 6, bin: 5},
		{logSize: 8, bin: 100},
	}
	for _, tc := range testCases {
		// --- Arrange ---
		n := BufferLen(tc.logSize)
		data := make([]int32, n)
		for i := range data {
			data[i] = int32(math.Round((1 << 20) * math.Sin(2*math.Pi*float64(tc.bin*i)/float64(n))))
		}
		out := make([]uint16, 1<<tc.logSize)

		// --- Act ---
		FFT(tc.logSize, data)
		RealSpectrumReconstruct(tc.logSize, data)
		Normalize32(data, 15)
		MagnitudeSquared(tc.logSize, out, data)

		// --- Assert ---
		peak := 0
		for i, v := range out {
			if v > out[peak] {
				peak = i
			}
		}
		assert.Equalf(t, tc.bin, peak, "logSize %d", tc.logSize)
		for i, v := range out {
			if i != peak {
				assert.Lessf(t, int(v)*8, int(out[peak]), "logSize %d bin %d leaks", tc.logSize, i)
			}
		}
	}
}

func TestKernel_UnsupportedLogSizeIsNoop(t *testing.T) {
	t.Parallel()
	for _, logSize := range []uint8{0, 9, 200} {
		data := make([]int32, 1024)
		for i := range data {
			data[i] = int32(i*31 - 7)
		}
		orig := append([]int32(nil), data...)
		out := []uint16{7, 7}

		FFT(logSize, data)
		RealSpectrumReconstruct(logSize, data)
		MagnitudeSquared(logSize, out, data)

		assert.Equal(t, orig, data)
		assert.Equal(t, []uint16{7, 7}, out)
		assert.False(t, SupportedLogSize(logSize))
	}
}

func TestMagnitudeSquared(t *testing.T) {
	t.Parallel()
	data := []int32{-256, 256, 1 << 16, 1 << 16}
	out := make([]uint16, 2)

	MagnitudeSquared(1, out, data)

	// (256^2 + 256^2) >> 16 = 2; the second bin saturates.
	assert.Equal(t, []uint16{2, math.MaxUint16}, out)
}
