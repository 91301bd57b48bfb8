package cpu

import (
	"github.com/gogh-ml/gogh/internal/tensor"
)

// Element-wise kernels shared by float32 and float64 via generics.
// All slices are assumed to have matching lengths; the dispatch layer
// in ops.go guarantees this.

func addInplaceKernel[T tensor.DType](a, b []T) {
	for i := range a {
		a[i] += b[i]
	}
}

func subInplaceKernel[T tensor.DType](a, b []T) {
	for i := range a {
		a[i] -= b[i]
	}
}

func mulInplaceKernel[T tensor.DType](a, b []T) {
	for i := range a {
		a[i] *= b[i]
	}
}

func divInplaceKernel[T tensor.DType](a, b []T) {
	for i := range a {
		a[i] /= b[i]
	}
}

func addKernel[T tensor.DType](dst, a, b []T) {
	for i := range a {
		dst[i] = a[i] + b[i]
	}
}

func subKernel[T tensor.DType](dst, a, b []T) {
	for i := range a {
		dst[i] = a[i] - b[i]
	}
}

func mulKernel[T tensor.DType](dst, a, b []T) {
	for i := range a {
		dst[i] = a[i] * b[i]
	}
}

func divKernel[T tensor.DType](dst, a, b []T) {
	for i := range a {
		dst[i] = a[i] / b[i]
	}
}

// Broadcasting kernels. Dimensions of size 1 in either input are walked
// with stride 0 so the single value repeats along that axis.

func addBroadcastKernel[T tensor.DType](dst, a, b []T, aShape, bShape, outShape tensor.Shape) {
	outStrides := outShape.ComputeStrides()
	aStrides := broadcastStrides(aShape, outShape)
	bStrides := broadcastStrides(bShape, outShape)

	n := outShape.NumElements()
	for i := 0; i < n; i++ {
		aIdx := sourceIndex(i, outStrides, aStrides)
		bIdx := sourceIndex(i, outStrides, bStrides)
		dst[i] = a[aIdx] + b[bIdx]
	}
}

func subBroadcastKernel[T tensor.DType](dst, a, b []T, aShape, bShape, outShape tensor.Shape) {
	outStrides := outShape.ComputeStrides()
	aStrides := broadcastStrides(aShape, outShape)
	bStrides := broadcastStrides(bShape, outShape)

	n := outShape.NumElements()
	for i := 0; i < n; i++ {
		aIdx := sourceIndex(i, outStrides, aStrides)
		bIdx := sourceIndex(i, outStrides, bStrides)
		dst[i] = a[aIdx] - b[bIdx]
	}
}

func mulBroadcastKernel[T tensor.DType](dst, a, b []T, aShape, bShape, outShape tensor.Shape) {
	outStrides := outShape.ComputeStrides()
	aStrides := broadcastStrides(aShape, outShape)
	bStrides := broadcastStrides(bShape, outShape)

	n := outShape.NumElements()
	for i := 0; i < n; i++ {
		aIdx := sourceIndex(i, outStrides, aStrides)
		bIdx := sourceIndex(i, outStrides, bStrides)
		dst[i] = a[aIdx] * b[bIdx]
	}
}

func divBroadcastKernel[T tensor.DType](dst, a, b []T, aShape, bShape, outShape tensor.Shape) {
	outStrides := outShape.ComputeStrides()
	aStrides := broadcastStrides(aShape, outShape)
	bStrides := broadcastStrides(bShape, outShape)

	n := outShape.NumElements()
	for i := 0; i < n; i++ {
		aIdx := sourceIndex(i, outStrides, aStrides)
		bIdx := sourceIndex(i, outStrides, bStrides)
		dst[i] = a[aIdx] / b[bIdx]
	}
}

// transposeKernel permutes src into dst according to axes.
func transposeKernel[T tensor.DType](dst, src []T, shape tensor.Shape, axes []int) {
	ndim := len(shape)
	srcStrides := shape.ComputeStrides()

	dstShape := make(tensor.Shape, ndim)
	for i, ax := range axes {
		dstShape[i] = shape[ax]
	}
	dstStrides := dstShape.ComputeStrides()

	coords := make([]int, ndim)
	n := shape.NumElements()
	for i := 0; i < n; i++ {
		idx := i
		for dim := 0; dim < ndim; dim++ {
			coords[dim] = idx / srcStrides[dim]
			idx %= srcStrides[dim]
		}

		dstIdx := 0
		for dstDim, srcDim := range axes {
			dstIdx += coords[srcDim] * dstStrides[dstDim]
		}

		dst[dstIdx] = src[i]
	}
}

// broadcastStrides computes strides for walking inShape as if it had
// outShape. Broadcast dimensions (size 1 or left-padded) get stride 0.
func broadcastStrides(inShape, outShape tensor.Shape) []int {
	outDim := len(outShape)
	strides := make([]int, outDim)

	inDim := len(inShape)
	offset := outDim - inDim

	origStrides := inShape.ComputeStrides()

	for i := 0; i < outDim; i++ {
		inIdx := i - offset
		switch {
		case inIdx < 0 || inIdx >= inDim:
			strides[i] = 0
		case inShape[inIdx] == 1:
			strides[i] = 0
		default:
			strides[i] = origStrides[inIdx]
		}
	}

	return strides
}

// sourceIndex maps a flat output index to the flat index in a
// (possibly broadcast) source array.
func sourceIndex(outIdx int, outStrides, inStrides []int) int {
	ndim := len(outStrides)
	flatIdx := 0

	for i := 0; i < ndim; i++ {
		coord := outIdx / outStrides[i]
		outIdx %= outStrides[i]
		flatIdx += coord * inStrides[i]
	}

	return flatIdx
}
