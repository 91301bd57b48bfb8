package autodiff_test

import (
	"math"
	"testing"

	"github.com/gogh-ml/gogh/internal/autodiff"
	"github.com/gogh-ml/gogh/internal/backend/cpu"
	"github.com/gogh-ml/gogh/internal/tensor"
)

// TestAutodiffBackend_Name tests the Name method.
func TestAutodiffBackend_Name(t *testing.T) {
	backend := autodiff.New(cpu.New())
	expected := "Autodiff(CPU)"
	if backend.Name() != expected {
		t.Errorf("Name() = %s, want %s", backend.Name(), expected)
	}
}

// TestAutodiffBackend_Device tests the Device method.
func TestAutodiffBackend_Device(t *testing.T) {
	backend := autodiff.New(cpu.New())
	if backend.Device() != tensor.CPU {
		t.Errorf("Device() = %v, want %v", backend.Device(), tensor.CPU)
	}
}

// TestTape_Recording tests tape recording on/off.
func TestTape_Recording(t *testing.T) {
	backend := autodiff.New(cpu.New())
	tape := backend.Tape()

	// Initially not recording
	if tape.IsRecording() {
		t.Error("Tape should not be recording initially")
	}

	tape.StartRecording()
	if !tape.IsRecording() {
		t.Error("Tape should be recording after StartRecording()")
	}

	tape.StopRecording()
	if tape.IsRecording() {
		t.Error("Tape should not be recording after StopRecording()")
	}
}

// TestTape_Clear tests tape clearing.
func TestTape_Clear(t *testing.T) {
	backend := autodiff.New(cpu.New())
	tape := backend.Tape()

	tape.StartRecording()

	a, _ := tensor.FromSlice([]float32{1, 2}, tensor.Shape{2}, backend)
	b, _ := tensor.FromSlice([]float32{3, 4}, tensor.Shape{2}, backend)
	backend.Add(a.Raw(), b.Raw())

	if tape.NumOps() == 0 {
		t.Error("Tape should have recorded operations")
	}

	tape.Clear()

	if tape.NumOps() != 0 {
		t.Errorf("Tape should be empty after Clear(), got %d ops", tape.NumOps())
	}

	// Clear() preserves recording state so the tape can be reset between
	// optimization iterations without re-arming it
	if !tape.IsRecording() {
		t.Error("Tape should still be recording after Clear() (recording state preserved)")
	}
}

// TestAutodiffBackend_NoRecording tests that operations are not recorded when tape is off.
func TestAutodiffBackend_NoRecording(t *testing.T) {
	backend := autodiff.New(cpu.New())
	tape := backend.Tape()

	// Don't start recording

	a, _ := tensor.FromSlice([]float32{1, 2}, tensor.Shape{2}, backend)
	b, _ := tensor.FromSlice([]float32{3, 4}, tensor.Shape{2}, backend)

	backend.Add(a.Raw(), b.Raw())

	if tape.NumOps() != 0 {
		t.Errorf("Expected 0 operations recorded (tape off), got %d", tape.NumOps())
	}
}

// TestBackward_SimpleAddition tests backward pass for simple addition.
func TestBackward_SimpleAddition(t *testing.T) {
	backend := autodiff.New(cpu.New())
	tape := backend.Tape()

	tape.StartRecording()

	// y = a + b
	a, _ := tensor.FromSlice([]float32{2, 3}, tensor.Shape{2}, backend)
	b, _ := tensor.FromSlice([]float32{4, 5}, tensor.Shape{2}, backend)

	resultRaw := backend.Add(a.Raw(), b.Raw())
	result := tensor.New[float32](resultRaw, backend)

	gradients := autodiff.Backward(result, backend)

	// dy/da = 1, dy/db = 1
	gradA := gradients[a.Raw()]
	gradB := gradients[b.Raw()]

	if gradA == nil || gradB == nil {
		t.Fatal("Expected gradients for both inputs")
	}

	expectedGrad := []float32{1, 1}

	actualGradA := gradA.AsFloat32()
	actualGradB := gradB.AsFloat32()

	for i, v := range expectedGrad {
		if actualGradA[i] != v {
			t.Errorf("grad_a[%d] = %f, want %f", i, actualGradA[i], v)
		}
		if actualGradB[i] != v {
			t.Errorf("grad_b[%d] = %f, want %f", i, actualGradB[i], v)
		}
	}
}

// TestBackward_Multiplication tests the product rule.
func TestBackward_Multiplication(t *testing.T) {
	backend := autodiff.New(cpu.New())
	tape := backend.Tape()

	tape.StartRecording()

	// y = a * b
	a, _ := tensor.FromSlice([]float32{2, 3}, tensor.Shape{2}, backend)
	b, _ := tensor.FromSlice([]float32{4, 5}, tensor.Shape{2}, backend)

	resultRaw := backend.Mul(a.Raw(), b.Raw())
	result := tensor.New[float32](resultRaw, backend)

	gradients := autodiff.Backward(result, backend)

	// dy/da = b, dy/db = a
	gradA := gradients[a.Raw()].AsFloat32()
	gradB := gradients[b.Raw()].AsFloat32()

	expectedA := []float32{4, 5}
	expectedB := []float32{2, 3}

	for i := range expectedA {
		if gradA[i] != expectedA[i] {
			t.Errorf("grad_a[%d] = %f, want %f", i, gradA[i], expectedA[i])
		}
		if gradB[i] != expectedB[i] {
			t.Errorf("grad_b[%d] = %f, want %f", i, gradB[i], expectedB[i])
		}
	}
}

// TestBackward_Subtraction tests that the subtrahend gradient is negated.
func TestBackward_Subtraction(t *testing.T) {
	backend := autodiff.New(cpu.New())
	backend.Tape().StartRecording()

	a, _ := tensor.FromSlice([]float32{5, 7}, tensor.Shape{2}, backend)
	b, _ := tensor.FromSlice([]float32{1, 2}, tensor.Shape{2}, backend)

	resultRaw := backend.Sub(a.Raw(), b.Raw())
	result := tensor.New[float32](resultRaw, backend)

	gradients := autodiff.Backward(result, backend)

	gradA := gradients[a.Raw()].AsFloat32()
	gradB := gradients[b.Raw()].AsFloat32()

	for i := 0; i < 2; i++ {
		if gradA[i] != 1 {
			t.Errorf("grad_a[%d] = %f, want 1", i, gradA[i])
		}
		if gradB[i] != -1 {
			t.Errorf("grad_b[%d] = %f, want -1", i, gradB[i])
		}
	}
}

// TestBackward_GradientAccumulation tests that gradients accumulate
// when the same tensor feeds multiple operations.
func TestBackward_GradientAccumulation(t *testing.T) {
	backend := autodiff.New(cpu.New())
	backend.Tape().StartRecording()

	// y = x*x, dy/dx = 2x (x feeds Mul twice, gradients must accumulate)
	x, _ := tensor.FromSlice([]float32{3}, tensor.Shape{1}, backend)

	resultRaw := backend.Mul(x.Raw(), x.Raw())
	result := tensor.New[float32](resultRaw, backend)

	gradients := autodiff.Backward(result, backend)

	gradX := gradients[x.Raw()].AsFloat32()
	if gradX[0] != 6 {
		t.Errorf("grad_x = %f, want 6 (2x at x=3)", gradX[0])
	}
}

// TestBackward_MatMul tests matrix multiplication gradients.
func TestBackward_MatMul(t *testing.T) {
	backend := autodiff.New(cpu.New())
	backend.Tape().StartRecording()

	// C = A @ B, then loss = sum(C)
	// dL/dA = ones @ B^T, dL/dB = A^T @ ones
	a, _ := tensor.FromSlice([]float32{1, 2, 3, 4}, tensor.Shape{2, 2}, backend)
	b, _ := tensor.FromSlice([]float32{5, 6, 7, 8}, tensor.Shape{2, 2}, backend)

	c := backend.MatMul(a.Raw(), b.Raw())
	loss := tensor.New[float32](backend.Sum(c), backend)

	gradients := autodiff.Backward(loss, backend)

	gradA := gradients[a.Raw()].AsFloat32()
	gradB := gradients[b.Raw()].AsFloat32()

	// ones(2,2) @ B^T = [[11, 15], [11, 15]]
	expectedA := []float32{11, 15, 11, 15}
	// A^T @ ones(2,2) = [[4, 4], [6, 6]]
	expectedB := []float32{4, 4, 6, 6}

	for i := range expectedA {
		if math.Abs(float64(gradA[i]-expectedA[i])) > 1e-5 {
			t.Errorf("grad_a[%d] = %f, want %f", i, gradA[i], expectedA[i])
		}
		if math.Abs(float64(gradB[i]-expectedB[i])) > 1e-5 {
			t.Errorf("grad_b[%d] = %f, want %f", i, gradB[i], expectedB[i])
		}
	}
}

// TestBackward_ReLU tests that gradients are masked at non-positive inputs.
func TestBackward_ReLU(t *testing.T) {
	backend := autodiff.New(cpu.New())
	backend.Tape().StartRecording()

	x, _ := tensor.FromSlice([]float32{-2, -0.5, 0, 1, 3}, tensor.Shape{5}, backend)

	resultRaw := backend.ReLU(x.Raw())
	result := tensor.New[float32](resultRaw, backend)

	gradients := autodiff.Backward(result, backend)

	gradX := gradients[x.Raw()].AsFloat32()
	expected := []float32{0, 0, 0, 1, 1}

	for i, v := range expected {
		if gradX[i] != v {
			t.Errorf("grad_x[%d] = %f, want %f", i, gradX[i], v)
		}
	}
}

// TestBackward_Reshape tests that gradients flow back through reshape.
func TestBackward_Reshape(t *testing.T) {
	backend := autodiff.New(cpu.New())
	backend.Tape().StartRecording()

	x, _ := tensor.FromSlice([]float32{1, 2, 3, 4}, tensor.Shape{2, 2}, backend)
	scale, _ := tensor.FromSlice([]float32{2, 2, 2, 2}, tensor.Shape{4}, backend)

	flat := backend.Reshape(x.Raw(), tensor.Shape{4})
	resultRaw := backend.Mul(flat, scale.Raw())
	result := tensor.New[float32](resultRaw, backend)

	gradients := autodiff.Backward(result, backend)

	gradX := gradients[x.Raw()]
	if gradX == nil {
		t.Fatal("Expected gradient to flow back through Reshape to x")
	}

	if !gradX.Shape().Equal(tensor.Shape{2, 2}) {
		t.Errorf("grad_x shape = %v, want [2 2]", gradX.Shape())
	}

	for i, v := range gradX.AsFloat32() {
		if v != 2 {
			t.Errorf("grad_x[%d] = %f, want 2", i, v)
		}
	}
}

// TestBackward_Transpose tests that gradients flow back through transpose.
func TestBackward_Transpose(t *testing.T) {
	backend := autodiff.New(cpu.New())
	backend.Tape().StartRecording()

	x, _ := tensor.FromSlice([]float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3}, backend)
	w, _ := tensor.FromSlice([]float32{1, 0, 0, 1, 1, 1}, tensor.Shape{3, 2}, backend)

	xt := backend.Transpose(x.Raw(), 1, 0) // [3, 2]
	resultRaw := backend.Mul(xt, w.Raw())
	result := tensor.New[float32](resultRaw, backend)

	gradients := autodiff.Backward(result, backend)

	gradX := gradients[x.Raw()]
	if gradX == nil {
		t.Fatal("Expected gradient to flow back through Transpose to x")
	}

	if !gradX.Shape().Equal(tensor.Shape{2, 3}) {
		t.Errorf("grad_x shape = %v, want [2 3]", gradX.Shape())
	}

	// grad through transpose is w transposed back: [[1, 0, 1], [0, 1, 1]]
	expected := []float32{1, 0, 1, 0, 1, 1}
	for i, v := range expected {
		if gradX.AsFloat32()[i] != v {
			t.Errorf("grad_x[%d] = %f, want %f", i, gradX.AsFloat32()[i], v)
		}
	}
}

// TestBackward_ScalarOps tests gradients through scalar arithmetic.
func TestBackward_ScalarOps(t *testing.T) {
	backend := autodiff.New(cpu.New())
	backend.Tape().StartRecording()

	// y = (x * 3 + 1) / 2, dy/dx = 1.5
	x, _ := tensor.FromSlice([]float32{2, 4}, tensor.Shape{2}, backend)

	scaled := backend.MulScalar(x.Raw(), float32(3))
	shifted := backend.AddScalar(scaled, float32(1))
	resultRaw := backend.DivScalar(shifted, float32(2))
	result := tensor.New[float32](resultRaw, backend)

	gradients := autodiff.Backward(result, backend)

	gradX := gradients[x.Raw()].AsFloat32()
	for i, v := range gradX {
		if math.Abs(float64(v-1.5)) > 1e-6 {
			t.Errorf("grad_x[%d] = %f, want 1.5", i, v)
		}
	}
}

// TestBackward_Sum tests that the sum reduction spreads the gradient.
func TestBackward_Sum(t *testing.T) {
	backend := autodiff.New(cpu.New())
	backend.Tape().StartRecording()

	x, _ := tensor.FromSlice([]float32{1, 2, 3, 4}, tensor.Shape{2, 2}, backend)

	result := tensor.New[float32](backend.Sum(x.Raw()), backend)
	gradients := autodiff.Backward(result, backend)

	gradX := gradients[x.Raw()]
	if !gradX.Shape().Equal(tensor.Shape{2, 2}) {
		t.Errorf("grad_x shape = %v, want [2 2]", gradX.Shape())
	}

	for i, v := range gradX.AsFloat32() {
		if v != 1 {
			t.Errorf("grad_x[%d] = %f, want 1", i, v)
		}
	}
}

// TestBackward_Mean tests that the mean reduction spreads grad/N.
func TestBackward_Mean(t *testing.T) {
	backend := autodiff.New(cpu.New())
	backend.Tape().StartRecording()

	x, _ := tensor.FromSlice([]float32{1, 2, 3, 4}, tensor.Shape{4}, backend)

	result := tensor.New[float32](backend.Mean(x.Raw()), backend)
	gradients := autodiff.Backward(result, backend)

	gradX := gradients[x.Raw()].AsFloat32()
	for i, v := range gradX {
		if math.Abs(float64(v-0.25)) > 1e-6 {
			t.Errorf("grad_x[%d] = %f, want 0.25", i, v)
		}
	}
}

// TestBackward_MSEChain tests the mean((x - target)²) pattern end to end.
// This is the loss shape used by the content and style probes.
func TestBackward_MSEChain(t *testing.T) {
	backend := autodiff.New(cpu.New())
	backend.Tape().StartRecording()

	x, _ := tensor.FromSlice([]float32{2, 4}, tensor.Shape{2}, backend)
	target, _ := tensor.FromSlice([]float32{1, 1}, tensor.Shape{2}, backend)

	diff := backend.Sub(x.Raw(), target.Raw())
	sq := backend.Mul(diff, diff)
	loss := tensor.New[float32](backend.Mean(sq), backend)

	lossVal := loss.Raw().AsFloat32()[0]
	// mean((1)², (3)²) = 5
	if math.Abs(float64(lossVal-5)) > 1e-6 {
		t.Errorf("loss = %f, want 5", lossVal)
	}

	gradients := autodiff.Backward(loss, backend)

	// d/dx mean((x-t)²) = 2(x-t)/N
	gradX := gradients[x.Raw()].AsFloat32()
	expected := []float32{1, 3}
	for i, v := range expected {
		if math.Abs(float64(gradX[i]-v)) > 1e-5 {
			t.Errorf("grad_x[%d] = %f, want %f", i, gradX[i], v)
		}
	}
}

// TestBackward_Broadcast tests gradient reduction over broadcast dims.
func TestBackward_Broadcast(t *testing.T) {
	backend := autodiff.New(cpu.New())
	backend.Tape().StartRecording()

	// bias [1, 2, 1, 1] broadcast against x [1, 2, 2, 2]
	x, _ := tensor.FromSlice([]float32{1, 2, 3, 4, 5, 6, 7, 8}, tensor.Shape{1, 2, 2, 2}, backend)
	bias, _ := tensor.FromSlice([]float32{10, 20}, tensor.Shape{1, 2, 1, 1}, backend)

	sum := backend.Add(x.Raw(), bias.Raw())
	loss := tensor.New[float32](backend.Sum(sum), backend)

	gradients := autodiff.Backward(loss, backend)

	gradBias := gradients[bias.Raw()]
	if gradBias == nil {
		t.Fatal("Expected gradient for broadcast bias")
	}

	if !gradBias.Shape().Equal(tensor.Shape{1, 2, 1, 1}) {
		t.Errorf("grad_bias shape = %v, want [1 2 1 1]", gradBias.Shape())
	}

	// Each bias element covers a 2x2 spatial plane
	for i, v := range gradBias.AsFloat32() {
		if v != 4 {
			t.Errorf("grad_bias[%d] = %f, want 4", i, v)
		}
	}
}

// TestBackward_InplaceProtection tests that recorded inputs survive
// subsequent operations on the same tensors.
func TestBackward_InplaceProtection(t *testing.T) {
	backend := autodiff.New(cpu.New())
	backend.Tape().StartRecording()

	a, _ := tensor.FromSlice([]float32{2, 3}, tensor.Shape{2}, backend)
	b, _ := tensor.FromSlice([]float32{4, 5}, tensor.Shape{2}, backend)

	// a feeds Mul, then Add must not clobber a's buffer in place
	product := backend.Mul(a.Raw(), b.Raw())
	sum := backend.Add(product, a.Raw())
	loss := tensor.New[float32](backend.Sum(sum), backend)

	gradients := autodiff.Backward(loss, backend)

	// d/da (a*b + a) = b + 1
	gradA := gradients[a.Raw()].AsFloat32()
	expected := []float32{5, 6}
	for i, v := range expected {
		if math.Abs(float64(gradA[i]-v)) > 1e-5 {
			t.Errorf("grad_a[%d] = %f, want %f", i, gradA[i], v)
		}
	}

	// a itself must be untouched
	if a.Raw().AsFloat32()[0] != 2 || a.Raw().AsFloat32()[1] != 3 {
		t.Errorf("input a was modified in place: %v", a.Raw().AsFloat32())
	}
}
