package fixpt

// FindMaxBitWidth32 returns the position of the highest set bit over the
// absolute values of values, or 0 if none is set above bit 0. The values are
// ORed rather than compared; the OR keeps the top bit of the true maximum.
// math.MinInt32 has no positive counterpart and contributes nothing, so a
// buffer holding only that value reports 0.
func FindMaxBitWidth32(values []int32) int {
	var acc int32
	for _, v := range values {
		if v < 0 {
			v = -v
		}
		acc |= v
	}
	for i := 30; i > 0; i-- {
		if acc&(1<<i) != 0 {
			return i
		}
	}
	return 0
}

// FindMaxBitWidthU32 is FindMaxBitWidth32 for unsigned data.
func FindMaxBitWidthU32(values []uint32) int {
	var acc uint32
	for _, v := range values {
		acc |= v
	}
	for i := 31; i > 0; i-- {
		if acc&(1<<i) != 0 {
			return i
		}
	}
	return 0
}

// Normalize32 scales values in place so that their highest set bit lands on
// target and returns the applied shift (negative means scaled down). Negative
// values are shifted as sign and magnitude, so rounding is toward zero.
func Normalize32(values []int32, target int) int {
	shift := target - FindMaxBitWidth32(values)
	Shift32(values, shift)
	return shift
}

// Shift32 applies a sign-magnitude shift: left for shift > 0, right for
// shift < 0.
func Shift32(values []int32, shift int) {
	switch {
	case shift < 0:
		for i, v := range values {
			values[i] = scaleDown(v, uint(-shift))
		}
	case shift > 0:
		s := uint(shift)
		for i, v := range values {
			if v < 0 {
				values[i] = -((-v) << s)
			} else {
				values[i] = v << s
			}
		}
	}
}

// NormalizeU32 scales unsigned values in place so that their highest set bit
// lands on target and returns the applied shift.
func NormalizeU32(values []uint32, target int) int {
	shift := target - FindMaxBitWidthU32(values)
	switch {
	case shift < 0:
		for i := range values {
			values[i] >>= uint(-shift)
		}
	case shift > 0:
		for i := range values {
			values[i] <<= uint(shift)
		}
	}
	return shift
}

func scaleDown(v int32, s uint) int32 {
	if v < 0 {
		return -((-v) >> s)
	}
	return v >> s
}
