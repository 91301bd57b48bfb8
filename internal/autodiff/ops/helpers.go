package ops

import (
	"fmt"

	"github.com/gogh-ml/gogh/internal/tensor"
)

// reduceBroadcast reduces a gradient tensor to match the target shape.
// This is necessary when broadcasting was used in the forward pass.
//
// Example:
//
//	Forward: a[3,1] + b[3,4] -> c[3,4]  (a was broadcast along dim 1)
//	Backward: grad_c[3,4] -> grad_a[3,1] (sum along dim 1)
func reduceBroadcast(grad *tensor.RawTensor, targetShape tensor.Shape, backend tensor.Backend) *tensor.RawTensor {
	gradShape := grad.Shape()

	// If shapes already match, clone to avoid aliasing issues
	// (prevents inplace operations from modifying shared gradients)
	if gradShape.Equal(targetShape) {
		return grad.Clone()
	}

	if len(targetShape) == 0 {
		return backend.Sum(grad)
	}

	// NumPy broadcasting aligns shapes from the right: sum away any
	// leading dimensions the target never had
	gradDims := len(gradShape)
	targetDims := len(targetShape)

	result := grad
	if targetDims < gradDims {
		// Collapse each extra leading dimension to size 1, then drop them
		for i := 0; i < gradDims-targetDims; i++ {
			result = sumAlongDimension(result, i)
		}
		result = backend.Reshape(result, result.Shape()[gradDims-targetDims:].Clone())
	}

	// Sum along dimensions where the target is 1
	resultShape := result.Shape()
	for i := 0; i < targetDims; i++ {
		if targetShape[i] == 1 && resultShape[i] > 1 {
			result = sumAlongDimension(result, i)
		}
	}

	if !result.Shape().Equal(targetShape) {
		result = backend.Reshape(result, targetShape)
	}

	return result
}

// sumAlongDimension sums a tensor along the specified dimension,
// keeping that dimension with size 1.
func sumAlongDimension(t *tensor.RawTensor, dim int) *tensor.RawTensor {
	shape := t.Shape()
	if dim < 0 || dim >= len(shape) {
		panic(fmt.Sprintf("sumAlongDimension: invalid dimension %d for shape %v", dim, shape))
	}

	outShape := shape.Clone()
	outShape[dim] = 1

	result, err := tensor.NewRaw(outShape, t.DType(), t.Device())
	if err != nil {
		panic(fmt.Sprintf("sumAlongDimension: failed to create result: %v", err))
	}

	switch t.DType() {
	case tensor.Float32:
		sumDimKernel(t.AsFloat32(), result.AsFloat32(), shape, dim)
	case tensor.Float64:
		sumDimKernel(t.AsFloat64(), result.AsFloat64(), shape, dim)
	default:
		panic(fmt.Sprintf("sumAlongDimension: unsupported dtype %s", t.DType()))
	}

	return result
}

// sumDimKernel accumulates data into result with the dim coordinate
// collapsed to zero.
func sumDimKernel[T tensor.DType](data, result []T, shape tensor.Shape, dim int) {
	for i := range result {
		result[i] = 0
	}

	strides := shape.ComputeStrides()

	outShape := shape.Clone()
	outShape[dim] = 1
	outStrides := outShape.ComputeStrides()

	n := shape.NumElements()
	for i := 0; i < n; i++ {
		outIdx := 0
		temp := i
		for d := 0; d < len(shape); d++ {
			coord := temp / strides[d]
			temp %= strides[d]
			if d != dim {
				outIdx += coord * outStrides[d]
			}
		}
		result[outIdx] += data[i]
	}
}

// negateGradient returns -grad.
func negateGradient(grad *tensor.RawTensor, backend tensor.Backend) *tensor.RawTensor {
	switch grad.DType() {
	case tensor.Float32:
		return backend.MulScalar(grad, float32(-1))
	case tensor.Float64:
		return backend.MulScalar(grad, float64(-1))
	default:
		panic(fmt.Sprintf("negateGradient: unsupported dtype %s", grad.DType()))
	}
}

// fillLike creates a tensor with the given shape and dtype where every
// element holds value.
func fillLike(shape tensor.Shape, dtype tensor.DataType, device tensor.Device, value float64) *tensor.RawTensor {
	result, err := tensor.NewRaw(shape, dtype, device)
	if err != nil {
		panic(fmt.Sprintf("fillLike: failed to create tensor: %v", err))
	}

	switch dtype {
	case tensor.Float32:
		data := result.AsFloat32()
		v := float32(value)
		for i := range data {
			data[i] = v
		}
	case tensor.Float64:
		data := result.AsFloat64()
		for i := range data {
			data[i] = value
		}
	default:
		panic(fmt.Sprintf("fillLike: unsupported dtype %s", dtype))
	}

	return result
}

// scalarValue extracts the single element of a scalar tensor as float64.
func scalarValue(t *tensor.RawTensor) float64 {
	if t.NumElements() != 1 {
		panic(fmt.Sprintf("scalarValue: expected scalar, got shape %v", t.Shape()))
	}

	switch t.DType() {
	case tensor.Float32:
		return float64(t.AsFloat32()[0])
	case tensor.Float64:
		return t.AsFloat64()[0]
	default:
		panic(fmt.Sprintf("scalarValue: unsupported dtype %s", t.DType()))
	}
}
