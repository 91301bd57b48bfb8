package cpu

import (
	"fmt"

	"github.com/gogh-ml/gogh/internal/tensor"
)

// Sum computes the total sum of all elements (scalar result).
func (cpu *CPUBackend) Sum(x *tensor.RawTensor) *tensor.RawTensor {
	result, err := tensor.NewRaw(tensor.Shape{}, x.DType(), cpu.device)
	if err != nil {
		panic(fmt.Sprintf("sum: %v", err))
	}

	switch x.DType() {
	case tensor.Float32:
		result.AsFloat32()[0] = sumKernel(x.AsFloat32())
	case tensor.Float64:
		result.AsFloat64()[0] = sumKernel(x.AsFloat64())
	default:
		panic(fmt.Sprintf("sum: unsupported dtype %s", x.DType()))
	}

	return result
}

// Mean computes the arithmetic mean of all elements (scalar result).
func (cpu *CPUBackend) Mean(x *tensor.RawTensor) *tensor.RawTensor {
	n := x.NumElements()
	if n == 0 {
		panic("mean: empty tensor")
	}

	result, err := tensor.NewRaw(tensor.Shape{}, x.DType(), cpu.device)
	if err != nil {
		panic(fmt.Sprintf("mean: %v", err))
	}

	switch x.DType() {
	case tensor.Float32:
		result.AsFloat32()[0] = sumKernel(x.AsFloat32()) / float32(n)
	case tensor.Float64:
		result.AsFloat64()[0] = sumKernel(x.AsFloat64()) / float64(n)
	default:
		panic(fmt.Sprintf("mean: unsupported dtype %s", x.DType()))
	}

	return result
}

func sumKernel[T tensor.DType](src []T) T {
	var sum T
	for _, v := range src {
		sum += v
	}
	return sum
}
