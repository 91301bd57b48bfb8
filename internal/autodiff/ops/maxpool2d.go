package ops

import (
	"github.com/gogh-ml/gogh/internal/tensor"
)

// MaxPool2DOp records a max pooling operation for autodiff.
//
// Forward:
//
//	output[n,c,h,w] = max(input[n,c,h*stride+kh,w*stride+kw] for kh,kw in kernel)
//
// Backward: gradients flow only to the positions that held the max value;
// every other position in a pooling window receives zero. The winning flat
// indices are recorded during construction, before the input can change.
type MaxPool2DOp struct {
	input      *tensor.RawTensor
	output     *tensor.RawTensor
	maxIndices []int // Flat indices of max positions for gradient routing
	kernelSize int
	stride     int
}

// NewMaxPool2DOp creates a new MaxPool2D operation.
func NewMaxPool2DOp(input, output *tensor.RawTensor, kernelSize, stride int) *MaxPool2DOp {
	return &MaxPool2DOp{
		input:      input,
		output:     output,
		maxIndices: computeMaxIndices(input, output, kernelSize, stride),
		kernelSize: kernelSize,
		stride:     stride,
	}
}

// computeMaxIndices finds which input position held the max value for
// each output position.
func computeMaxIndices(input, output *tensor.RawTensor, kernelSize, stride int) []int {
	inputShape := input.Shape()
	outputShape := output.Shape()

	N := inputShape[0]
	C := inputShape[1]
	H := inputShape[2]
	W := inputShape[3]
	HOut := outputShape[2]
	WOut := outputShape[3]

	maxIndices := make([]int, N*C*HOut*WOut)

	switch input.DType() {
	case tensor.Float32:
		maxIndicesKernel(maxIndices, input.AsFloat32(), N, C, H, W, HOut, WOut, kernelSize, stride)
	case tensor.Float64:
		maxIndicesKernel(maxIndices, input.AsFloat64(), N, C, H, W, HOut, WOut, kernelSize, stride)
	default:
		panic("MaxPool2D: unsupported dtype")
	}

	return maxIndices
}

func maxIndicesKernel[T tensor.DType](maxIndices []int, inputData []T, N, C, H, W, HOut, WOut, kernelSize, stride int) {
	outIdx := 0
	for n := 0; n < N; n++ {
		for c := 0; c < C; c++ {
			for outH := 0; outH < HOut; outH++ {
				for outW := 0; outW < WOut; outW++ {
					hStart := outH * stride
					wStart := outW * stride

					maxPos := ((n*C+c)*H+hStart)*W + wStart
					maxVal := inputData[maxPos]

					for kh := 0; kh < kernelSize; kh++ {
						for kw := 0; kw < kernelSize; kw++ {
							inputIdx := ((n*C+c)*H+hStart+kh)*W + wStart + kw
							if v := inputData[inputIdx]; v > maxVal {
								maxVal = v
								maxPos = inputIdx
							}
						}
					}

					maxIndices[outIdx] = maxPos
					outIdx++
				}
			}
		}
	}
}

// Inputs returns the input tensors.
func (op *MaxPool2DOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.input}
}

// Output returns the output tensor.
func (op *MaxPool2DOp) Output() *tensor.RawTensor {
	return op.output
}

// Backward routes the output gradient to the recorded max positions.
// This implements the subgradient of the max function:
//
//	∂max(x_i)/∂x_j = 1 if j = argmax(x_i), else 0
func (op *MaxPool2DOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	inputGrad := backend.MaxPool2DBackward(op.input, outputGrad, op.maxIndices, op.kernelSize, op.stride)

	return []*tensor.RawTensor{inputGrad}
}
