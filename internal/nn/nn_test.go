package nn

import (
	"testing"

	"github.com/gogh-ml/gogh/internal/backend/cpu"
	"github.com/gogh-ml/gogh/internal/tensor"
)

// TestReLU_Forward tests ReLU activation.
func TestReLU_Forward(t *testing.T) {
	backend := cpu.New()
	relu := NewReLU[*cpu.CPUBackend](false)

	input, _ := tensor.FromSlice([]float32{-2, -1, 0, 1, 2}, tensor.Shape{5}, backend)
	output := relu.Forward(input)

	expected := []float32{0, 0, 0, 1, 2}
	actual := output.Raw().AsFloat32()
	for i, v := range expected {
		if actual[i] != v {
			t.Errorf("output[%d] = %f, want %f", i, actual[i], v)
		}
	}

	// Input must survive: later probes read earlier activations
	inputData := input.Raw().AsFloat32()
	if inputData[0] != -2 {
		t.Errorf("ReLU modified its input: %v", inputData)
	}
}

// TestReLU_InplaceFlag tests that the inplace flag is retained but
// Forward still allocates a fresh output.
func TestReLU_InplaceFlag(t *testing.T) {
	backend := cpu.New()
	relu := NewReLU[*cpu.CPUBackend](true)

	if !relu.Inplace() {
		t.Error("Inplace() = false, want true")
	}

	input, _ := tensor.FromSlice([]float32{-1, 1}, tensor.Shape{2}, backend)
	output := relu.Forward(input)

	if output.Raw() == input.Raw() {
		t.Error("Forward returned the input tensor, expected fresh output")
	}
	if input.Raw().AsFloat32()[0] != -1 {
		t.Error("Forward modified the input in place")
	}
}

// TestMaxPool2D_Forward tests max pooling values and shape.
func TestMaxPool2D_Forward(t *testing.T) {
	backend := cpu.New()
	pool := NewMaxPool2D(2, 2, backend)

	input, _ := tensor.FromSlice([]float32{
		1, 2, 5, 6,
		3, 4, 7, 8,
		9, 10, 13, 14,
		11, 12, 15, 16,
	}, tensor.Shape{1, 1, 4, 4}, backend)

	output := pool.Forward(input)

	if !output.Shape().Equal(tensor.Shape{1, 1, 2, 2}) {
		t.Fatalf("output shape = %v, want [1 1 2 2]", output.Shape())
	}

	expected := []float32{4, 8, 12, 16}
	actual := output.Raw().AsFloat32()
	for i, v := range expected {
		if actual[i] != v {
			t.Errorf("output[%d] = %f, want %f", i, actual[i], v)
		}
	}
}

// TestSequential_Forward tests chaining conv -> relu -> pool.
func TestSequential_Forward(t *testing.T) {
	backend := cpu.New()

	model := NewSequential[*cpu.CPUBackend](
		NewConv2D(1, 2, 3, 3, 1, 1, true, backend),
		NewReLU[*cpu.CPUBackend](false),
		NewMaxPool2D(2, 2, backend),
	)

	if model.Len() != 3 {
		t.Errorf("Len() = %d, want 3", model.Len())
	}

	input := tensor.Randn[float32](tensor.Shape{1, 1, 8, 8}, backend)
	output := model.Forward(input)

	expectedShape := tensor.Shape{1, 2, 4, 4}
	if !output.Shape().Equal(expectedShape) {
		t.Errorf("output shape = %v, want %v", output.Shape(), expectedShape)
	}

	// Only the conv layer carries parameters
	params := model.Parameters()
	if len(params) != 2 {
		t.Errorf("Parameters() returned %d params, want 2", len(params))
	}
}

// TestSequential_StateDictRoundtrip tests saving and restoring parameters.
func TestSequential_StateDictRoundtrip(t *testing.T) {
	backend := cpu.New()

	src := NewSequential[*cpu.CPUBackend](
		NewConv2D(1, 2, 3, 3, 1, 1, true, backend),
		NewReLU[*cpu.CPUBackend](false),
		NewConv2D(2, 4, 3, 3, 1, 1, true, backend),
	)
	dst := NewSequential[*cpu.CPUBackend](
		NewConv2D(1, 2, 3, 3, 1, 1, true, backend),
		NewReLU[*cpu.CPUBackend](false),
		NewConv2D(2, 4, 3, 3, 1, 1, true, backend),
	)

	stateDict := src.StateDict()

	// Conv layers at indices 0 and 2, each with weight and bias
	expectedKeys := []string{"0.weight", "0.bias", "2.weight", "2.bias"}
	for _, key := range expectedKeys {
		if _, ok := stateDict[key]; !ok {
			t.Errorf("StateDict missing key %q", key)
		}
	}
	if len(stateDict) != len(expectedKeys) {
		t.Errorf("StateDict has %d keys, want %d", len(stateDict), len(expectedKeys))
	}

	if err := dst.LoadStateDict(stateDict); err != nil {
		t.Fatalf("LoadStateDict failed: %v", err)
	}

	srcWeight := src.Module(0).StateDict()["weight"].AsFloat32()
	dstWeight := dst.Module(0).StateDict()["weight"].AsFloat32()
	for i := range srcWeight {
		if srcWeight[i] != dstWeight[i] {
			t.Fatalf("weight[%d] = %f, want %f after roundtrip", i, dstWeight[i], srcWeight[i])
		}
	}
}

// TestParameter_Gradients tests parameter gradient bookkeeping.
func TestParameter_Gradients(t *testing.T) {
	backend := cpu.New()

	w := tensor.Ones[float32](tensor.Shape{2, 2}, backend)
	param := NewParameter("weight", w)

	if param.Name() != "weight" {
		t.Errorf("Name() = %s, want weight", param.Name())
	}
	if param.Grad() != nil {
		t.Error("Grad() should be nil before backward")
	}

	grad := tensor.Ones[float32](tensor.Shape{2, 2}, backend)
	param.SetGrad(grad)
	if param.Grad() != grad {
		t.Error("Grad() should return the set gradient")
	}

	param.ZeroGrad()
	if param.Grad() != nil {
		t.Error("Grad() should be nil after ZeroGrad")
	}
}
