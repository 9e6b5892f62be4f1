package tensor

import "math"

// F16 is an IEEE 754 binary16 value stored as its bit pattern.
type F16 uint16

// BF16 is a bfloat16 value (truncated float32) stored as its bit pattern.
type BF16 uint16

// Float32 widens the half value. Widening is exact: every binary16 value is
// representable as a float32.
func (h F16) Float32() float32 {
	sign := uint32(h>>15) & 0x1
	exp := uint32(h>>10) & 0x1F
	frac := uint32(h & 0x3FF)
	var f uint32
	switch exp {
	case 0:
		if frac == 0 {
			f = sign << 31
		} else {
			// subnormal: renormalize into the float32 exponent range
			e := uint32(127 - 15 + 1)
			for (frac & 0x400) == 0 {
				frac <<= 1
				e--
			}
			frac &= 0x3FF
			f = (sign << 31) | (e << 23) | (frac << 13)
		}
	case 0x1F:
		f = (sign << 31) | 0x7F800000 | (frac << 13)
	default:
		e := exp + (127 - 15)
		f = (sign << 31) | (e << 23) | (frac << 13)
	}
	return math.Float32frombits(f)
}

// F16FromFloat32 narrows f to binary16 with IEEE round-to-nearest-even,
// handling subnormals, overflow to infinity, and NaN payloads.
func F16FromFloat32(f float32) F16 {
	u := math.Float32bits(f)
	sign := (u >> 31) & 0x1
	exp := int((u >> 23) & 0xFF)
	frac := u & 0x7FFFFF

	if exp == 0xFF {
		// Inf/NaN
		if frac != 0 {
			return F16((sign << 15) | 0x7C00 | (frac >> 13) | 1)
		}
		return F16((sign << 15) | 0x7C00)
	}

	e := exp - 127
	if e > 15 {
		// overflow -> inf
		return F16((sign << 15) | 0x7C00)
	}
	if e < -14 {
		// subnormal or zero
		if e < -24 {
			return F16(sign << 15)
		}
		// add the implicit leading 1 then shift into subnormal range
		frac |= 0x800000
		shift := uint32(-14 - e)
		rnd := uint32(1<<(shift-1)) - 1 + ((frac >> shift) & 1)
		frac = (frac + rnd) >> shift
		return F16((sign << 15) | (frac >> 13))
	}

	exp16 := uint32(e + 15)
	rnd := uint32(0xFFF + ((frac >> 13) & 1))
	frac = frac + rnd
	if (frac & 0x800000) != 0 {
		// rounding carried into the exponent
		exp16++
		frac = 0
		if exp16 >= 0x1F {
			return F16((sign << 15) | 0x7C00)
		}
	}
	return F16((sign << 15) | (exp16 << 10) | (frac >> 13))
}

// Float32 widens the bfloat16 value. Exact for every input.
func (b BF16) Float32() float32 {
	return math.Float32frombits(uint32(b) << 16)
}

// BF16FromFloat32 narrows f to bfloat16 with round-to-nearest-even on the
// truncated 16 bits.
func BF16FromFloat32(f float32) BF16 {
	u := math.Float32bits(f)
	if f != f {
		// quiet NaN, keeping the sign
		return BF16(u>>16 | 0x0040)
	}
	rnd := uint32(0x7FFF + ((u >> 16) & 1))
	return BF16((u + rnd) >> 16)
}
