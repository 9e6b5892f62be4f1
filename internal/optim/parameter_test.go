package optim_test

import (
	"testing"

	"github.com/born-ml/fusedopt/internal/optim"
	"github.com/born-ml/fusedopt/internal/tensor"
)

func TestParameter_Accessors(t *testing.T) {
	raw, err := tensor.FromFloat32([]float32{1, 2, 3}, tensor.Shape{3})
	if err != nil {
		t.Fatal(err)
	}
	param := optim.NewParameter("layer1.weight", raw)

	if param.Name() != "layer1.weight" {
		t.Errorf("Name: got %q", param.Name())
	}
	if param.Value() != raw {
		t.Error("Value should return the wrapped tensor")
	}
	if param.Grad() != nil {
		t.Error("Grad should start nil")
	}

	grad, err := tensor.FromFloat32([]float32{0.1, 0.2, 0.3}, tensor.Shape{3})
	if err != nil {
		t.Fatal(err)
	}
	param.SetGrad(grad)
	if param.Grad() != grad {
		t.Error("Grad should return the attached tensor")
	}

	param.ZeroGrad()
	if param.Grad() != nil {
		t.Error("Grad should be nil after ZeroGrad")
	}
}
