package fixpt

import "math"

// MagnitudeSquared writes (re^2 + im^2) >> 16 for each of the 2^logSize
// complex bins of data into out. Results that do not fit 16 bits saturate at
// math.MaxUint16. Inputs should be normalized to 15 bits beforehand to keep
// the full range.
func MagnitudeSquared(logSize uint8, out []uint16, data []int32) {
	if !SupportedLogSize(logSize) {
		return
	}
	n := 1 << logSize
	if len(out) < n || len(data) < BufferLen(logSize) {
		return
	}
	for i := 0; i < n; i++ {
		re := abs64(data[2*i])
		im := abs64(data[2*i+1])
		v := (re*re + im*im) >> 16
		if v > math.MaxUint16 {
			v = math.MaxUint16
		}
		out[i] = uint16(v)
	}
}

func abs64(v int32) uint64 {
	if v < 0 {
		return uint64(-int64(v))
	}
	return uint64(v)
}
