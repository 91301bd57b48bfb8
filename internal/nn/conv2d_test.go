package nn

import (
	"testing"

	"github.com/gogh-ml/gogh/internal/autodiff"
	"github.com/gogh-ml/gogh/internal/backend/cpu"
	"github.com/gogh-ml/gogh/internal/tensor"
)

// TestConv2D_Creation tests Conv2D layer creation.
func TestConv2D_Creation(t *testing.T) {
	backend := cpu.New()

	// VGG-style conv: 3 -> 64 channels, 3x3 kernel, padding 1
	conv := NewConv2D(3, 64, 3, 3, 1, 1, true, backend)

	if conv.InChannels() != 3 {
		t.Errorf("Expected in_channels=3, got %d", conv.InChannels())
	}
	if conv.OutChannels() != 64 {
		t.Errorf("Expected out_channels=64, got %d", conv.OutChannels())
	}

	kernelSize := conv.KernelSize()
	if kernelSize[0] != 3 || kernelSize[1] != 3 {
		t.Errorf("Expected kernel_size=[3,3], got %v", kernelSize)
	}

	weightShape := conv.weight.Tensor().Shape()
	expectedShape := tensor.Shape{64, 3, 3, 3}
	if !weightShape.Equal(expectedShape) {
		t.Errorf("Weight shape: expected %v, got %v", expectedShape, weightShape)
	}

	biasShape := conv.bias.Tensor().Shape()
	expectedBiasShape := tensor.Shape{64}
	if !biasShape.Equal(expectedBiasShape) {
		t.Errorf("Bias shape: expected %v, got %v", expectedBiasShape, biasShape)
	}

	params := conv.Parameters()
	if len(params) != 2 {
		t.Errorf("Expected 2 parameters (weight, bias), got %d", len(params))
	}
}

// TestConv2D_ForwardShape tests that padding 1 preserves spatial dims.
func TestConv2D_ForwardShape(t *testing.T) {
	backend := cpu.New()

	conv := NewConv2D(3, 8, 3, 3, 1, 1, true, backend)

	input := tensor.Zeros[float32](tensor.Shape{1, 3, 16, 16}, backend)
	output := conv.Forward(input)

	// out_h = (16 + 2*1 - 3) / 1 + 1 = 16
	expectedShape := tensor.Shape{1, 8, 16, 16}
	if !output.Shape().Equal(expectedShape) {
		t.Errorf("Output shape: expected %v, got %v", expectedShape, output.Shape())
	}
}

// TestConv2D_ForwardValues tests forward pass with known values.
func TestConv2D_ForwardValues(t *testing.T) {
	backend := cpu.New()

	conv := NewConv2D(1, 1, 2, 2, 1, 0, false, backend) // no bias

	weightData := conv.weight.Tensor().Raw().AsFloat32()
	weightData[0], weightData[1] = 1.0, 2.0
	weightData[2], weightData[3] = 3.0, 4.0

	input := tensor.Zeros[float32](tensor.Shape{1, 1, 3, 3}, backend)
	inputData := input.Raw().AsFloat32()
	for i := 0; i < 9; i++ {
		inputData[i] = float32(i + 1)
	}

	output := conv.Forward(input)

	// Top-left window: 1*1 + 2*2 + 4*3 + 5*4 = 37
	expected := []float32{37, 47, 67, 77}
	actual := output.Raw().AsFloat32()
	for i, v := range expected {
		if actual[i] != v {
			t.Errorf("output[%d] = %f, want %f", i, actual[i], v)
		}
	}
}

// TestConv2D_WithBias tests that bias is broadcast per output channel.
func TestConv2D_WithBias(t *testing.T) {
	backend := cpu.New()

	conv := NewConv2D(1, 2, 1, 1, 1, 0, true, backend)

	weightData := conv.weight.Tensor().Raw().AsFloat32()
	weightData[0] = 1.0 // channel 0: identity
	weightData[1] = 1.0 // channel 1: identity

	biasData := conv.bias.Tensor().Raw().AsFloat32()
	biasData[0] = 10.0
	biasData[1] = 20.0

	input := tensor.Zeros[float32](tensor.Shape{1, 1, 2, 2}, backend)
	inputData := input.Raw().AsFloat32()
	for i := range inputData {
		inputData[i] = float32(i + 1)
	}

	output := conv.Forward(input)

	expected := []float32{11, 12, 13, 14, 21, 22, 23, 24}
	actual := output.Raw().AsFloat32()
	for i, v := range expected {
		if actual[i] != v {
			t.Errorf("output[%d] = %f, want %f", i, actual[i], v)
		}
	}
}

// TestConv2D_ComputeOutputSize tests output size computation.
func TestConv2D_ComputeOutputSize(t *testing.T) {
	backend := cpu.New()

	tests := []struct {
		name             string
		kernel, stride   int
		padding          int
		inputH, inputW   int
		expectH, expectW int
	}{
		{"vgg_same", 3, 1, 1, 224, 224, 224, 224},
		{"no_padding", 3, 1, 0, 28, 28, 26, 26},
		{"strided", 3, 2, 1, 32, 32, 16, 16},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conv := NewConv2D(1, 1, tt.kernel, tt.kernel, tt.stride, tt.padding, false, backend)
			size := conv.ComputeOutputSize(tt.inputH, tt.inputW)
			if size[0] != tt.expectH || size[1] != tt.expectW {
				t.Errorf("ComputeOutputSize(%d, %d) = %v, want [%d %d]",
					tt.inputH, tt.inputW, size, tt.expectH, tt.expectW)
			}
		})
	}
}

// TestConv2D_LoadStateDict tests loading pretrained weights.
func TestConv2D_LoadStateDict(t *testing.T) {
	backend := cpu.New()

	conv := NewConv2D(1, 1, 2, 2, 1, 0, true, backend)

	weight, err := tensor.NewRaw(tensor.Shape{1, 1, 2, 2}, tensor.Float32, tensor.CPU)
	if err != nil {
		t.Fatalf("failed to create weight: %v", err)
	}
	copy(weight.AsFloat32(), []float32{1, 2, 3, 4})

	bias, err := tensor.NewRaw(tensor.Shape{1}, tensor.Float32, tensor.CPU)
	if err != nil {
		t.Fatalf("failed to create bias: %v", err)
	}
	bias.AsFloat32()[0] = 5

	err = conv.LoadStateDict(map[string]*tensor.RawTensor{
		"weight": weight,
		"bias":   bias,
	})
	if err != nil {
		t.Fatalf("LoadStateDict failed: %v", err)
	}

	loaded := conv.weight.Tensor().Raw().AsFloat32()
	for i, v := range []float32{1, 2, 3, 4} {
		if loaded[i] != v {
			t.Errorf("weight[%d] = %f, want %f", i, loaded[i], v)
		}
	}
	if conv.bias.Tensor().Raw().AsFloat32()[0] != 5 {
		t.Errorf("bias = %f, want 5", conv.bias.Tensor().Raw().AsFloat32()[0])
	}
}

// TestConv2D_LoadStateDict_ShapeMismatch tests shape validation.
func TestConv2D_LoadStateDict_ShapeMismatch(t *testing.T) {
	backend := cpu.New()

	conv := NewConv2D(1, 1, 2, 2, 1, 0, false, backend)

	wrong, err := tensor.NewRaw(tensor.Shape{1, 1, 3, 3}, tensor.Float32, tensor.CPU)
	if err != nil {
		t.Fatalf("failed to create tensor: %v", err)
	}

	err = conv.LoadStateDict(map[string]*tensor.RawTensor{"weight": wrong})
	if err == nil {
		t.Error("Expected error for weight shape mismatch")
	}
}

// TestConv2D_IntegrationWithAutodiff tests gradient flow through the layer.
func TestConv2D_IntegrationWithAutodiff(t *testing.T) {
	backend := autodiff.New(cpu.New())
	backend.Tape().StartRecording()

	conv := NewConv2D(1, 1, 2, 2, 1, 0, false, backend)

	input := tensor.Ones[float32](tensor.Shape{1, 1, 3, 3}, backend)
	output := conv.Forward(input)

	loss := tensor.New[float32](backend.Sum(output.Raw()), backend)
	gradients := autodiff.Backward(loss, backend)

	gradInput := gradients[input.Raw()]
	if gradInput == nil {
		t.Fatal("Expected gradient to flow back to conv input")
	}
	if !gradInput.Shape().Equal(tensor.Shape{1, 1, 3, 3}) {
		t.Errorf("input grad shape = %v, want [1 1 3 3]", gradInput.Shape())
	}
}
