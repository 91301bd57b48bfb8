package cpu

import (
	"testing"

	"github.com/gogh-ml/gogh/internal/tensor"
)

func TestConv2D_BasicForward(t *testing.T) {
	backend := New()

	// Input: [1, 1, 3, 3]
	// 1 2 3
	// 4 5 6
	// 7 8 9
	input := newFloat32(t, tensor.Shape{1, 1, 3, 3}, []float32{
		1, 2, 3,
		4, 5, 6,
		7, 8, 9,
	})

	// Kernel: [1, 1, 2, 2], identity-like diagonal
	kernel := newFloat32(t, tensor.Shape{1, 1, 2, 2}, []float32{
		1, 0,
		0, 1,
	})

	output := backend.Conv2D(input, kernel, 1, 0)

	// out_h = (3 + 2*0 - 2) / 1 + 1 = 2
	expectedShape := tensor.Shape{1, 1, 2, 2}
	if !output.Shape().Equal(expectedShape) {
		t.Fatalf("Expected shape %v, got %v", expectedShape, output.Shape())
	}

	// Diagonal sums of each 2x2 patch
	expected := []float32{6, 8, 12, 14}
	for i, exp := range expected {
		if got := output.AsFloat32()[i]; got != exp {
			t.Errorf("Output[%d]: expected %.1f, got %.1f", i, exp, got)
		}
	}
}

func TestConv2D_WithPadding(t *testing.T) {
	backend := New()

	input := newFloat32(t, tensor.Shape{1, 1, 3, 3}, []float32{
		1, 1, 1,
		1, 1, 1,
		1, 1, 1,
	})
	kernel := newFloat32(t, tensor.Shape{1, 1, 3, 3}, []float32{
		1, 1, 1,
		1, 1, 1,
		1, 1, 1,
	})

	// Stride=1, Padding=1 preserves spatial dimensions
	output := backend.Conv2D(input, kernel, 1, 1)

	expectedShape := tensor.Shape{1, 1, 3, 3}
	if !output.Shape().Equal(expectedShape) {
		t.Fatalf("Expected shape %v, got %v", expectedShape, output.Shape())
	}

	// Corners see 4 valid elements, edges 6, center 9
	expected := []float32{
		4, 6, 4,
		6, 9, 6,
		4, 6, 4,
	}
	for i, exp := range expected {
		if got := output.AsFloat32()[i]; got != exp {
			t.Errorf("Output[%d]: expected %.1f, got %.1f", i, exp, got)
		}
	}
}

func TestConv2D_MultiChannel(t *testing.T) {
	backend := New()

	// Input: [1, 2, 2, 2], two channels
	input := newFloat32(t, tensor.Shape{1, 2, 2, 2}, []float32{
		1, 2, 3, 4, // channel 0
		10, 20, 30, 40, // channel 1
	})

	// Kernel: [1, 2, 2, 2], sums both channels
	kernel := newFloat32(t, tensor.Shape{1, 2, 2, 2}, []float32{
		1, 1, 1, 1,
		1, 1, 1, 1,
	})

	output := backend.Conv2D(input, kernel, 1, 0)

	if !output.Shape().Equal(tensor.Shape{1, 1, 1, 1}) {
		t.Fatalf("Expected shape [1 1 1 1], got %v", output.Shape())
	}

	// (1+2+3+4) + (10+20+30+40) = 110
	if got := output.AsFloat32()[0]; got != 110 {
		t.Errorf("Expected 110, got %.1f", got)
	}
}

func TestConv2D_ChannelMismatch(t *testing.T) {
	backend := New()

	input := newFloat32(t, tensor.Shape{1, 3, 4, 4}, make([]float32, 48))
	kernel := newFloat32(t, tensor.Shape{1, 2, 2, 2}, make([]float32, 8))

	defer func() {
		if r := recover(); r == nil {
			t.Error("expected panic for channel mismatch")
		}
	}()
	backend.Conv2D(input, kernel, 1, 0)
}

func TestConv2DInputBackward(t *testing.T) {
	backend := New()

	// Single 2x2 input, 2x2 kernel, 1x1 output
	input := newFloat32(t, tensor.Shape{1, 1, 2, 2}, []float32{1, 2, 3, 4})
	kernel := newFloat32(t, tensor.Shape{1, 1, 2, 2}, []float32{5, 6, 7, 8})
	grad := newFloat32(t, tensor.Shape{1, 1, 1, 1}, []float32{2})

	inputGrad := backend.Conv2DInputBackward(input, kernel, grad, 1, 0)

	if !inputGrad.Shape().Equal(input.Shape()) {
		t.Fatalf("Expected shape %v, got %v", input.Shape(), inputGrad.Shape())
	}

	// d(out)/d(in[i]) = kernel[i], scaled by upstream grad 2
	expected := []float32{10, 12, 14, 16}
	for i, exp := range expected {
		if got := inputGrad.AsFloat32()[i]; got != exp {
			t.Errorf("InputGrad[%d]: expected %.1f, got %.1f", i, exp, got)
		}
	}
}

func TestConv2DKernelBackward(t *testing.T) {
	backend := New()

	input := newFloat32(t, tensor.Shape{1, 1, 2, 2}, []float32{1, 2, 3, 4})
	kernel := newFloat32(t, tensor.Shape{1, 1, 2, 2}, []float32{5, 6, 7, 8})
	grad := newFloat32(t, tensor.Shape{1, 1, 1, 1}, []float32{3})

	kernelGrad := backend.Conv2DKernelBackward(input, kernel, grad, 1, 0)

	if !kernelGrad.Shape().Equal(kernel.Shape()) {
		t.Fatalf("Expected shape %v, got %v", kernel.Shape(), kernelGrad.Shape())
	}

	// d(out)/d(kernel[i]) = input[i], scaled by upstream grad 3
	expected := []float32{3, 6, 9, 12}
	for i, exp := range expected {
		if got := kernelGrad.AsFloat32()[i]; got != exp {
			t.Errorf("KernelGrad[%d]: expected %.1f, got %.1f", i, exp, got)
		}
	}
}

func TestConv2DBackward_WithPadding(t *testing.T) {
	backend := New()

	// 3x3 input, 3x3 kernel, padding 1: output stays 3x3
	input := newFloat32(t, tensor.Shape{1, 1, 3, 3}, []float32{
		1, 1, 1,
		1, 1, 1,
		1, 1, 1,
	})
	kernel := newFloat32(t, tensor.Shape{1, 1, 3, 3}, []float32{
		1, 1, 1,
		1, 1, 1,
		1, 1, 1,
	})
	grad := newFloat32(t, tensor.Shape{1, 1, 3, 3}, []float32{
		1, 1, 1,
		1, 1, 1,
		1, 1, 1,
	})

	inputGrad := backend.Conv2DInputBackward(input, kernel, grad, 1, 1)

	// Mirror of the forward padding pattern
	expected := []float32{
		4, 6, 4,
		6, 9, 6,
		4, 6, 4,
	}
	for i, exp := range expected {
		if got := inputGrad.AsFloat32()[i]; got != exp {
			t.Errorf("InputGrad[%d]: expected %.1f, got %.1f", i, exp, got)
		}
	}

	kernelGrad := backend.Conv2DKernelBackward(input, kernel, grad, 1, 1)
	for i, exp := range expected {
		if got := kernelGrad.AsFloat32()[i]; got != exp {
			t.Errorf("KernelGrad[%d]: expected %.1f, got %.1f", i, exp, got)
		}
	}
}
