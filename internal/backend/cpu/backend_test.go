package cpu

import (
	"math"
	"testing"

	"github.com/gogh-ml/gogh/internal/tensor"
)

func newFloat32(t *testing.T, shape tensor.Shape, data []float32) *tensor.RawTensor {
	t.Helper()

	raw, err := tensor.NewRaw(shape, tensor.Float32, tensor.CPU)
	if err != nil {
		t.Fatalf("NewRaw: %v", err)
	}
	copy(raw.AsFloat32(), data)
	return raw
}

func TestAdd_SameShape(t *testing.T) {
	backend := New()

	a := newFloat32(t, tensor.Shape{2, 2}, []float32{1, 2, 3, 4})
	b := newFloat32(t, tensor.Shape{2, 2}, []float32{10, 20, 30, 40})

	result := backend.Add(a, b)

	expected := []float32{11, 22, 33, 44}
	for i, exp := range expected {
		if got := result.AsFloat32()[i]; got != exp {
			t.Errorf("Add[%d]: expected %.1f, got %.1f", i, exp, got)
		}
	}
}

func TestAdd_InplaceFastPath(t *testing.T) {
	backend := New()

	a := newFloat32(t, tensor.Shape{3}, []float32{1, 2, 3})
	b := newFloat32(t, tensor.Shape{3}, []float32{1, 1, 1})

	// a is unique, so the backend may reuse its buffer
	result := backend.Add(a, b)
	if result != a {
		t.Fatal("expected inplace reuse of unique lhs tensor")
	}

	expected := []float32{2, 3, 4}
	for i, exp := range expected {
		if got := result.AsFloat32()[i]; got != exp {
			t.Errorf("Add[%d]: expected %.1f, got %.1f", i, exp, got)
		}
	}
}

func TestAdd_SharedBufferAllocates(t *testing.T) {
	backend := New()

	a := newFloat32(t, tensor.Shape{3}, []float32{1, 2, 3})
	b := newFloat32(t, tensor.Shape{3}, []float32{1, 1, 1})

	restore := a.ForceNonUnique()
	defer restore()

	result := backend.Add(a, b)
	if result == a {
		t.Fatal("shared buffer must not be mutated in place")
	}
	if a.AsFloat32()[0] != 1 {
		t.Error("input tensor was modified")
	}
}

func TestAdd_Broadcast(t *testing.T) {
	backend := New()

	// [1, 3, 1, 1] against [1, 3, 2, 2]: per-channel bias pattern
	a := newFloat32(t, tensor.Shape{1, 3, 1, 1}, []float32{1, 2, 3})
	b := newFloat32(t, tensor.Shape{1, 3, 2, 2}, []float32{
		0, 0, 0, 0,
		10, 10, 10, 10,
		100, 100, 100, 100,
	})

	result := backend.Add(a, b)

	if !result.Shape().Equal(tensor.Shape{1, 3, 2, 2}) {
		t.Fatalf("expected shape [1 3 2 2], got %v", result.Shape())
	}

	expected := []float32{
		1, 1, 1, 1,
		12, 12, 12, 12,
		103, 103, 103, 103,
	}
	for i, exp := range expected {
		if got := result.AsFloat32()[i]; got != exp {
			t.Errorf("Add[%d]: expected %.1f, got %.1f", i, exp, got)
		}
	}
}

func TestSub_Broadcast(t *testing.T) {
	backend := New()

	a := newFloat32(t, tensor.Shape{2, 2}, []float32{5, 6, 7, 8})
	b := newFloat32(t, tensor.Shape{1, 2}, []float32{1, 2})

	result := backend.Sub(a, b)

	expected := []float32{4, 4, 6, 6}
	for i, exp := range expected {
		if got := result.AsFloat32()[i]; got != exp {
			t.Errorf("Sub[%d]: expected %.1f, got %.1f", i, exp, got)
		}
	}
}

func TestMulDiv(t *testing.T) {
	backend := New()

	a := newFloat32(t, tensor.Shape{4}, []float32{2, 4, 6, 8})
	b := newFloat32(t, tensor.Shape{4}, []float32{2, 2, 3, 4})

	bCopy := b.CloneData()

	mul := backend.Mul(a.CloneData(), bCopy)
	expectedMul := []float32{4, 8, 18, 32}
	for i, exp := range expectedMul {
		if got := mul.AsFloat32()[i]; got != exp {
			t.Errorf("Mul[%d]: expected %.1f, got %.1f", i, exp, got)
		}
	}

	div := backend.Div(a.CloneData(), b)
	expectedDiv := []float32{1, 2, 2, 2}
	for i, exp := range expectedDiv {
		if got := div.AsFloat32()[i]; got != exp {
			t.Errorf("Div[%d]: expected %.1f, got %.1f", i, exp, got)
		}
	}
}

func TestMatMul(t *testing.T) {
	backend := New()

	// [2,3] @ [3,2] -> [2,2]
	a := newFloat32(t, tensor.Shape{2, 3}, []float32{
		1, 2, 3,
		4, 5, 6,
	})
	b := newFloat32(t, tensor.Shape{3, 2}, []float32{
		7, 8,
		9, 10,
		11, 12,
	})

	result := backend.MatMul(a, b)

	if !result.Shape().Equal(tensor.Shape{2, 2}) {
		t.Fatalf("expected shape [2 2], got %v", result.Shape())
	}

	expected := []float32{
		58, 64,
		139, 154,
	}
	for i, exp := range expected {
		if got := result.AsFloat32()[i]; got != exp {
			t.Errorf("MatMul[%d]: expected %.1f, got %.1f", i, exp, got)
		}
	}
}

func TestMatMul_ShapeMismatch(t *testing.T) {
	backend := New()

	a := newFloat32(t, tensor.Shape{2, 3}, make([]float32, 6))
	b := newFloat32(t, tensor.Shape{2, 2}, make([]float32, 4))

	defer func() {
		if r := recover(); r == nil {
			t.Error("expected panic for mismatched inner dimensions")
		}
	}()
	backend.MatMul(a, b)
}

func TestReshape(t *testing.T) {
	backend := New()

	a := newFloat32(t, tensor.Shape{2, 3}, []float32{1, 2, 3, 4, 5, 6})
	result := backend.Reshape(a, tensor.Shape{3, 2})

	if !result.Shape().Equal(tensor.Shape{3, 2}) {
		t.Fatalf("expected shape [3 2], got %v", result.Shape())
	}
	for i, exp := range []float32{1, 2, 3, 4, 5, 6} {
		if got := result.AsFloat32()[i]; got != exp {
			t.Errorf("Reshape[%d]: expected %.1f, got %.1f", i, exp, got)
		}
	}
}

func TestReshape_IncompatibleShape(t *testing.T) {
	backend := New()

	a := newFloat32(t, tensor.Shape{2, 3}, make([]float32, 6))

	defer func() {
		if r := recover(); r == nil {
			t.Error("expected panic for incompatible reshape")
		}
	}()
	backend.Reshape(a, tensor.Shape{4, 2})
}

func TestTranspose2D(t *testing.T) {
	backend := New()

	a := newFloat32(t, tensor.Shape{2, 3}, []float32{
		1, 2, 3,
		4, 5, 6,
	})

	result := backend.Transpose(a)

	if !result.Shape().Equal(tensor.Shape{3, 2}) {
		t.Fatalf("expected shape [3 2], got %v", result.Shape())
	}

	expected := []float32{
		1, 4,
		2, 5,
		3, 6,
	}
	for i, exp := range expected {
		if got := result.AsFloat32()[i]; got != exp {
			t.Errorf("Transpose[%d]: expected %.1f, got %.1f", i, exp, got)
		}
	}
}

func TestReLU(t *testing.T) {
	backend := New()

	a := newFloat32(t, tensor.Shape{5}, []float32{-2, -0.5, 0, 0.5, 2})
	result := backend.ReLU(a)

	expected := []float32{0, 0, 0, 0.5, 2}
	for i, exp := range expected {
		if got := result.AsFloat32()[i]; got != exp {
			t.Errorf("ReLU[%d]: expected %.1f, got %.1f", i, exp, got)
		}
	}

	// Input must survive for the backward pass
	if a.AsFloat32()[0] != -2 {
		t.Error("ReLU modified its input")
	}
}

func TestScalarOps(t *testing.T) {
	backend := New()

	a := newFloat32(t, tensor.Shape{3}, []float32{1, 2, 3})

	mul := backend.MulScalar(a, float32(2))
	for i, exp := range []float32{2, 4, 6} {
		if got := mul.AsFloat32()[i]; got != exp {
			t.Errorf("MulScalar[%d]: expected %.1f, got %.1f", i, exp, got)
		}
	}

	add := backend.AddScalar(a, float32(10))
	for i, exp := range []float32{11, 12, 13} {
		if got := add.AsFloat32()[i]; got != exp {
			t.Errorf("AddScalar[%d]: expected %.1f, got %.1f", i, exp, got)
		}
	}

	sub := backend.SubScalar(a, float32(1))
	for i, exp := range []float32{0, 1, 2} {
		if got := sub.AsFloat32()[i]; got != exp {
			t.Errorf("SubScalar[%d]: expected %.1f, got %.1f", i, exp, got)
		}
	}

	div := backend.DivScalar(a, float32(2))
	for i, exp := range []float32{0.5, 1, 1.5} {
		if got := div.AsFloat32()[i]; got != exp {
			t.Errorf("DivScalar[%d]: expected %.1f, got %.1f", i, exp, got)
		}
	}
}

func TestSumMean(t *testing.T) {
	backend := New()

	a := newFloat32(t, tensor.Shape{2, 2}, []float32{1, 2, 3, 4})

	sum := backend.Sum(a)
	if got := sum.AsFloat32()[0]; got != 10 {
		t.Errorf("Sum: expected 10, got %.1f", got)
	}

	mean := backend.Mean(a)
	if got := mean.AsFloat32()[0]; math.Abs(float64(got)-2.5) > 1e-6 {
		t.Errorf("Mean: expected 2.5, got %f", got)
	}
}
