package cpu

import (
	xcpu "golang.org/x/sys/cpu"

	"github.com/born-ml/fusedopt/internal/tensor"
)

// vectorBits is the SIMD register width the block loops are shaped for.
// The default models a 256-bit (AVX2-class) register; AVX-512 hardware
// doubles it. Non-x86 targets keep the 256-bit shape, where the block loop
// is simply an unrolled scalar loop the compiler can still vectorize.
var vectorBits = detectVectorBits()

// maxVectorBits bounds vectorBits; the half-precision kernels size their
// lane-group scratch for it.
const maxVectorBits = 512

func detectVectorBits() int {
	if xcpu.X86.HasAVX512F {
		return maxVectorBits
	}
	return 256
}

// LaneCount returns the number of elements of dt one block of the wide pass
// covers: vectorBits / (8 * sizeof(dt)). Half-precision types count their
// storage width, so a block decodes into two float32 lane groups.
func LaneCount(dt tensor.DataType) int {
	return vectorBits / (8 * dt.Size())
}

// VectorBits returns the register width the kernels are currently shaped
// for, in bits.
func VectorBits() int {
	return vectorBits
}
