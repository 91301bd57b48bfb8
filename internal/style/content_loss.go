package style

import (
	"fmt"

	"github.com/gogh-ml/gogh/internal/nn"
	"github.com/gogh-ml/gogh/internal/tensor"
)

// ContentLoss is a pass-through probe that measures how far the feature
// map flowing through it has drifted from a frozen target.
//
// The target is captured once at assembly time and detached, so no
// gradient ever reaches it. Forward stores the mean squared difference
// in the probe's loss slot and returns its input unchanged; layers
// downstream never see the probe.
type ContentLoss[B tensor.Backend] struct {
	target *tensor.Tensor[float32, B]
	loss   *tensor.Tensor[float32, B]
}

// NewContentLoss creates a content probe frozen on the given target
// feature map.
func NewContentLoss[B tensor.Backend](target *tensor.Tensor[float32, B]) *ContentLoss[B] {
	return &ContentLoss[B]{target: target.Detach()}
}

// Forward records the mean squared difference against the target and
// passes the input through unchanged.
func (l *ContentLoss[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	if !input.Shape().Equal(l.target.Shape()) {
		panic(fmt.Sprintf("style: content probe shape mismatch: input %v, target %v",
			input.Shape(), l.target.Shape()))
	}

	diff := input.Sub(l.target)
	l.loss = diff.Mul(diff).Mean()
	return input
}

// Loss returns the scalar loss tensor from the most recent Forward, or
// nil before the first evaluation.
func (l *ContentLoss[B]) Loss() *tensor.Tensor[float32, B] {
	return l.loss
}

// Target returns the frozen target feature map.
func (l *ContentLoss[B]) Target() *tensor.Tensor[float32, B] {
	return l.target
}

// Parameters returns an empty slice: probes are never trained.
func (l *ContentLoss[B]) Parameters() []*nn.Parameter[B] {
	return []*nn.Parameter[B]{}
}

// StateDict returns an empty map.
func (l *ContentLoss[B]) StateDict() map[string]*tensor.RawTensor {
	return map[string]*tensor.RawTensor{}
}

// LoadStateDict is a no-op for probes.
func (l *ContentLoss[B]) LoadStateDict(_ map[string]*tensor.RawTensor) error {
	return nil
}
