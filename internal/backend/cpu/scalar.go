package cpu

import (
	"fmt"

	"github.com/gogh-ml/gogh/internal/tensor"
)

// Scalar operations - element-wise operations with a scalar value.
// The scalar's dynamic type must match the tensor's dtype.

// MulScalar multiplies each element of the tensor by a scalar value.
func (cpu *CPUBackend) MulScalar(x *tensor.RawTensor, scalar any) *tensor.RawTensor {
	result, err := tensor.NewRaw(x.Shape(), x.DType(), cpu.device)
	if err != nil {
		panic(fmt.Sprintf("mulScalar: failed to create result tensor: %v", err))
	}

	switch x.DType() {
	case tensor.Float32:
		mulScalarKernel(result.AsFloat32(), x.AsFloat32(), scalar.(float32))
	case tensor.Float64:
		mulScalarKernel(result.AsFloat64(), x.AsFloat64(), scalar.(float64))
	default:
		panic(fmt.Sprintf("mulScalar: unsupported dtype %v", x.DType()))
	}

	return result
}

// AddScalar adds a scalar value to each element of the tensor.
func (cpu *CPUBackend) AddScalar(x *tensor.RawTensor, scalar any) *tensor.RawTensor {
	result, err := tensor.NewRaw(x.Shape(), x.DType(), cpu.device)
	if err != nil {
		panic(fmt.Sprintf("addScalar: failed to create result tensor: %v", err))
	}

	switch x.DType() {
	case tensor.Float32:
		addScalarKernel(result.AsFloat32(), x.AsFloat32(), scalar.(float32))
	case tensor.Float64:
		addScalarKernel(result.AsFloat64(), x.AsFloat64(), scalar.(float64))
	default:
		panic(fmt.Sprintf("addScalar: unsupported dtype %v", x.DType()))
	}

	return result
}

// SubScalar subtracts a scalar value from each element of the tensor.
func (cpu *CPUBackend) SubScalar(x *tensor.RawTensor, scalar any) *tensor.RawTensor {
	result, err := tensor.NewRaw(x.Shape(), x.DType(), cpu.device)
	if err != nil {
		panic(fmt.Sprintf("subScalar: failed to create result tensor: %v", err))
	}

	switch x.DType() {
	case tensor.Float32:
		subScalarKernel(result.AsFloat32(), x.AsFloat32(), scalar.(float32))
	case tensor.Float64:
		subScalarKernel(result.AsFloat64(), x.AsFloat64(), scalar.(float64))
	default:
		panic(fmt.Sprintf("subScalar: unsupported dtype %v", x.DType()))
	}

	return result
}

// DivScalar divides each element of the tensor by a scalar value.
func (cpu *CPUBackend) DivScalar(x *tensor.RawTensor, scalar any) *tensor.RawTensor {
	result, err := tensor.NewRaw(x.Shape(), x.DType(), cpu.device)
	if err != nil {
		panic(fmt.Sprintf("divScalar: failed to create result tensor: %v", err))
	}

	switch x.DType() {
	case tensor.Float32:
		divScalarKernel(result.AsFloat32(), x.AsFloat32(), scalar.(float32))
	case tensor.Float64:
		divScalarKernel(result.AsFloat64(), x.AsFloat64(), scalar.(float64))
	default:
		panic(fmt.Sprintf("divScalar: unsupported dtype %v", x.DType()))
	}

	return result
}

func mulScalarKernel[T tensor.DType](dst, src []T, scalar T) {
	for i := range src {
		dst[i] = src[i] * scalar
	}
}

func addScalarKernel[T tensor.DType](dst, src []T, scalar T) {
	for i := range src {
		dst[i] = src[i] + scalar
	}
}

func subScalarKernel[T tensor.DType](dst, src []T, scalar T) {
	for i := range src {
		dst[i] = src[i] - scalar
	}
}

func divScalarKernel[T tensor.DType](dst, src []T, scalar T) {
	for i := range src {
		dst[i] = src[i] / scalar
	}
}
