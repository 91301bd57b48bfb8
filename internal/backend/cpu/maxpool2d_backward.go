package cpu

import (
	"fmt"

	"github.com/gogh-ml/gogh/internal/tensor"
)

// MaxPool2DBackward computes the gradient w.r.t. the pooling input.
//
// Gradients flow only to the positions that held the max value in the
// forward pass; every other position in a pooling window receives zero.
// maxIndices holds the flat input index of the winner for each output
// position, recorded during the forward pass.
func (cpu *CPUBackend) MaxPool2DBackward(input, grad *tensor.RawTensor, maxIndices []int, kernelSize, stride int) *tensor.RawTensor {
	inputShape := input.Shape()
	gradShape := grad.Shape()

	expectedLen := gradShape.NumElements()
	if len(maxIndices) != expectedLen {
		panic(fmt.Sprintf("MaxPool2DBackward: maxIndices length %d != expected %d", len(maxIndices), expectedLen))
	}

	inputGrad, err := tensor.NewRaw(inputShape, grad.DType(), cpu.device)
	if err != nil {
		panic(fmt.Sprintf("MaxPool2DBackward: failed to create gradient tensor: %v", err))
	}

	switch grad.DType() {
	case tensor.Float32:
		routePoolGradients(inputGrad.AsFloat32(), grad.AsFloat32(), maxIndices)
	case tensor.Float64:
		routePoolGradients(inputGrad.AsFloat64(), grad.AsFloat64(), maxIndices)
	default:
		panic("MaxPool2DBackward: unsupported dtype")
	}

	return inputGrad
}

func routePoolGradients[T tensor.DType](inputGradData, gradData []T, maxIndices []int) {
	for i := range inputGradData {
		inputGradData[i] = 0
	}

	for outIdx, maxPos := range maxIndices {
		inputGradData[maxPos] += gradData[outIdx]
	}
}
