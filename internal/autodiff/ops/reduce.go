package ops

import "github.com/gogh-ml/gogh/internal/tensor"

// SumOp represents a full reduction: output = sum(x), a scalar.
//
// Backward: every element contributed with weight 1, so the input
// gradient is the scalar output gradient broadcast to the input shape.
type SumOp struct {
	input  *tensor.RawTensor
	output *tensor.RawTensor
}

// NewSumOp creates a new SumOp.
func NewSumOp(input, output *tensor.RawTensor) *SumOp {
	return &SumOp{input: input, output: output}
}

// Backward computes input gradient for the sum reduction.
func (op *SumOp) Backward(outputGrad *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	g := scalarValue(outputGrad)
	inputGrad := fillLike(op.input.Shape(), op.input.DType(), op.input.Device(), g)

	return []*tensor.RawTensor{inputGrad}
}

// Inputs returns the input tensors.
func (op *SumOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.input}
}

// Output returns the scalar output tensor.
func (op *SumOp) Output() *tensor.RawTensor {
	return op.output
}

// MeanOp represents a full reduction: output = mean(x), a scalar.
//
// Backward: each element contributed with weight 1/N, so the input
// gradient is outputGrad/N broadcast to the input shape.
type MeanOp struct {
	input  *tensor.RawTensor
	output *tensor.RawTensor
}

// NewMeanOp creates a new MeanOp.
func NewMeanOp(input, output *tensor.RawTensor) *MeanOp {
	return &MeanOp{input: input, output: output}
}

// Backward computes input gradient for the mean reduction.
func (op *MeanOp) Backward(outputGrad *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	n := op.input.NumElements()
	g := scalarValue(outputGrad) / float64(n)
	inputGrad := fillLike(op.input.Shape(), op.input.DType(), op.input.Device(), g)

	return []*tensor.RawTensor{inputGrad}
}

// Inputs returns the input tensors.
func (op *MeanOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.input}
}

// Output returns the scalar output tensor.
func (op *MeanOp) Output() *tensor.RawTensor {
	return op.output
}
