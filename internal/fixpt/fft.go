package fixpt

const (
	// MinLogSize and MaxLogSize bound the transform size to 2..256 complex points.
	MinLogSize = 1
	MaxLogSize = 8

	// twiddleScale is the fixed-point scale of the sine table.
	twiddleScale = 14
)

// SupportedLogSize reports whether a transform of 2^logSize complex points
// can be computed.
func SupportedLogSize(logSize uint8) bool {
	return logSize >= MinLogSize && logSize <= MaxLogSize
}

// BufferLen returns the int32 buffer length used by a transform of
// 2^logSize complex points.
func BufferLen(logSize uint8) int {
	return 2 << logSize
}

// FFT computes the forward DFT of 2^logSize complex points in place. data
// holds interleaved real and imaginary parts and must have BufferLen(logSize)
// elements. Every twiddle multiply first drops the operand by 14 bits, so each
// stage costs one bit of precision but cannot overflow 32 bits given one bit
// of headroom per stage.
func FFT(logSize uint8, data []int32) {
	sine, ok := tableFor(logSize)
	if !ok || len(data) < BufferLen(logSize) {
		return
	}
	n := uint(1) << logSize
	n2 := n << 1
	quarter := n2 >> 2

	// Bit reversal of complex pairs.
	var j uint
	for i := uint(1); i < n; i++ {
		m := n
		for {
			m >>= 1
			if j+m <= n-1 {
				break
			}
		}
		j = (j & (m - 1)) + m
		if j <= i {
			continue
		}
		data[j<<1], data[i<<1] = data[i<<1], data[j<<1]
		data[j<<1+1], data[i<<1+1] = data[i<<1+1], data[j<<1+1]
	}

	// Danielson-Lanczos butterflies.
	k := uint(logSize)
	for mmax := uint(2); n2 > mmax; mmax <<= 1 {
		k--
		istep := mmax << 1
		for m := uint(0); m < mmax; m += 2 {
			w := ((m >> 1) << k) << 1
			wr := sine.at(w + quarter)
			wi := -sine.at(w)
			for i := m; i < n2; i += istep {
				j := i + mmax
				re := scaleDown(data[j], twiddleScale)
				im := scaleDown(data[j+1], twiddleScale)
				tr := re*wr - im*wi
				ti := im*wr + re*wi
				data[j] = data[i] - tr
				data[j+1] = data[i+1] - ti
				data[i] += tr
				data[i+1] += ti
			}
		}
	}
}

// RealSpectrumReconstruct turns the FFT of 2^(logSize+1) real samples, packed
// as 2^logSize complex points, into the first 2^logSize bins of the real
// signal's spectrum. Outputs are halved. Bin 0 holds the DC term with a zero
// imaginary part.
func RealSpectrumReconstruct(logSize uint8, data []int32) {
	sine, ok := tableFor(logSize)
	if !ok || len(data) < BufferLen(logSize) {
		return
	}
	n := uint(1) << logSize
	quarter := n >> 1

	for i := uint(1); i < n>>1; i++ {
		i1 := i << 1
		i2 := i1 + 1
		i3 := n<<1 - i1
		i4 := i3 + 1

		h1r := data[i1] + data[i3]
		h1i := data[i2] - data[i4]
		h2r := scaleDown(data[i2]+data[i4], twiddleScale)
		h2i := scaleDown(-data[i1]+data[i3], twiddleScale)

		wr := sine.at(i + quarter)
		wi := -sine.at(i)

		a := wr * h2r
		b := wi * h2i
		data[i1] = scaleDown(h1r+a-b, 1)
		data[i3] = scaleDown(h1r-a+b, 1)
		a = wr * h2i
		b = wi * h2r
		data[i2] = scaleDown(h1i+a+b, 1)
		data[i4] = scaleDown(-h1i+a+b, 1)
	}
	data[0] += data[1]
	data[1] = 0
	data[n+1] = -data[n+1]
}
