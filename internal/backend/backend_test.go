package backend

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/fusedopt/internal/tensor"
)

func TestRegisterAndLookup(t *testing.T) {
	called := false
	RegisterFusedAdam(tensor.CUDA, func(args FusedAdamArgs) {
		called = true
	})
	t.Cleanup(func() { delete(fusedAdamKernels, tensor.CUDA) })

	require.True(t, HasFusedAdam(tensor.CUDA))
	fn := FusedAdam(tensor.CUDA)
	fn(FusedAdamArgs{})
	assert.True(t, called)
}

func TestDuplicateRegistrationPanics(t *testing.T) {
	RegisterFusedAdam(tensor.Vulkan, func(FusedAdamArgs) {})
	t.Cleanup(func() { delete(fusedAdamKernels, tensor.Vulkan) })

	assert.Panics(t, func() {
		RegisterFusedAdam(tensor.Vulkan, func(FusedAdamArgs) {})
	})
}

func TestNilKernelPanics(t *testing.T) {
	assert.Panics(t, func() {
		RegisterFusedAdam(tensor.Metal, nil)
	})
}

func TestMissingKernelPanics(t *testing.T) {
	assert.False(t, HasFusedAdam(tensor.WebGPU))
	assert.Panics(t, func() {
		FusedAdam(tensor.WebGPU)
	})
}

func TestAdamModeString(t *testing.T) {
	assert.Equal(t, "adam", ModeOriginal.String())
	assert.Equal(t, "adamw", ModeAdamW.String())
}

func TestParseAdamMode(t *testing.T) {
	m, ok := ParseAdamMode("adamw")
	require.True(t, ok)
	assert.Equal(t, ModeAdamW, m)

	m, ok = ParseAdamMode("adam")
	require.True(t, ok)
	assert.Equal(t, ModeOriginal, m)

	_, ok = ParseAdamMode("sgd")
	assert.False(t, ok)
}
