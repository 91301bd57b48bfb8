package style

import (
	"github.com/gogh-ml/gogh/internal/nn"
	"github.com/gogh-ml/gogh/internal/tensor"
)

// StyleLoss is a pass-through probe that compares the Gram matrix of
// the feature map flowing through it against a frozen target Gram
// matrix. Spatial arrangement cancels out in the Gram statistics, so
// the probe measures texture rather than layout.
type StyleLoss[B tensor.Backend] struct {
	target *tensor.Tensor[float32, B] // [C, C] Gram matrix
	loss   *tensor.Tensor[float32, B]
}

// NewStyleLoss creates a style probe. The target feature map is reduced
// to its Gram matrix immediately and the feature map itself is not
// retained.
func NewStyleLoss[B tensor.Backend](target *tensor.Tensor[float32, B]) *StyleLoss[B] {
	return &StyleLoss[B]{target: GramMatrix(target).Detach()}
}

// Forward records the mean squared difference between the input's Gram
// matrix and the target, then passes the input through unchanged.
func (l *StyleLoss[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	gram := GramMatrix(input)
	diff := gram.Sub(l.target)
	l.loss = diff.Mul(diff).Mean()
	return input
}

// Loss returns the scalar loss tensor from the most recent Forward, or
// nil before the first evaluation.
func (l *StyleLoss[B]) Loss() *tensor.Tensor[float32, B] {
	return l.loss
}

// Target returns the frozen target Gram matrix.
func (l *StyleLoss[B]) Target() *tensor.Tensor[float32, B] {
	return l.target
}

// Parameters returns an empty slice: probes are never trained.
func (l *StyleLoss[B]) Parameters() []*nn.Parameter[B] {
	return []*nn.Parameter[B]{}
}

// StateDict returns an empty map.
func (l *StyleLoss[B]) StateDict() map[string]*tensor.RawTensor {
	return map[string]*tensor.RawTensor{}
}

// LoadStateDict is a no-op for probes.
func (l *StyleLoss[B]) LoadStateDict(_ map[string]*tensor.RawTensor) error {
	return nil
}
