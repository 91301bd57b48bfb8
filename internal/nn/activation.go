package nn

import (
	"github.com/gogh-ml/gogh/internal/tensor"
)

// ReLU is a Rectified Linear Unit activation module.
//
// Applies the element-wise function: f(x) = max(0, x)
//
// The inplace flag mirrors the convention of pretrained checkpoint
// definitions where activations may be marked as inplace. Forward always
// produces a fresh output tensor regardless of the flag, since overwriting
// the input would corrupt recorded activations that later loss probes read.
// The flag is retained so graph assembly can detect and replace inplace
// activations.
//
// Example:
//
//	relu := nn.NewReLU[Backend](false)
//	output := relu.Forward(input)  // All negative values become 0
type ReLU[B tensor.Backend] struct {
	inplace bool
}

// NewReLU creates a new ReLU activation module.
func NewReLU[B tensor.Backend](inplace bool) *ReLU[B] {
	return &ReLU[B]{inplace: inplace}
}

// Forward applies ReLU activation: f(x) = max(0, x).
func (r *ReLU[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	backend := input.Backend()
	resultRaw := backend.ReLU(input.Raw())
	return tensor.New[float32, B](resultRaw, backend)
}

// Inplace reports whether this activation was declared inplace.
func (r *ReLU[B]) Inplace() bool {
	return r.inplace
}

// Parameters returns an empty slice (ReLU has no trainable parameters).
func (r *ReLU[B]) Parameters() []*Parameter[B] {
	return nil
}

// StateDict returns an empty map (ReLU has no parameters).
func (r *ReLU[B]) StateDict() map[string]*tensor.RawTensor {
	return map[string]*tensor.RawTensor{}
}

// LoadStateDict is a no-op for ReLU.
func (r *ReLU[B]) LoadStateDict(_ map[string]*tensor.RawTensor) error {
	return nil
}

// String returns a string representation of the activation.
func (r *ReLU[B]) String() string {
	if r.inplace {
		return "ReLU(inplace=true)"
	}
	return "ReLU()"
}
