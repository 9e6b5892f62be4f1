package cpu

import (
	"testing"

	"github.com/born-ml/fusedopt/internal/tensor"
)

func TestLaneCount(t *testing.T) {
	f32 := LaneCount(tensor.Float32)
	f64 := LaneCount(tensor.Float64)
	f16 := LaneCount(tensor.Float16)
	bf16 := LaneCount(tensor.BFloat16)

	if f32*32 != VectorBits() {
		t.Errorf("float32 lanes * 32 = %d, want %d", f32*32, VectorBits())
	}
	if f64*2 != f32 {
		t.Errorf("float64 lanes = %d, want half of float32's %d", f64, f32)
	}
	if f16 != 2*f32 || bf16 != 2*f32 {
		t.Errorf("half lanes = %d/%d, want double float32's %d", f16, bf16, f32)
	}
	if f64 < 1 {
		t.Errorf("float64 lanes = %d, want >= 1", f64)
	}
}

func TestLaneCountWidestShape(t *testing.T) {
	old := vectorBits
	vectorBits = maxVectorBits
	defer func() { vectorBits = old }()

	if got := LaneCount(tensor.Float16); got != 32 {
		t.Errorf("float16 lanes at %d bits = %d, want 32", maxVectorBits, got)
	}
	// The half-precision kernels stage one lane group on the stack; the
	// widest register shape must still fit.
	if LaneCount(tensor.Float16)/2 > maxHalfGroup {
		t.Errorf("lane group of %d exceeds scratch capacity %d",
			LaneCount(tensor.Float16)/2, maxHalfGroup)
	}
}
