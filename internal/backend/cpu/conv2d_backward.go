package cpu

import (
	"fmt"

	"github.com/gogh-ml/gogh/internal/tensor"
)

// Conv2DInputBackward computes the gradient w.r.t. the convolution input.
//
// Transposed convolution: every output gradient value is distributed back
// to the input positions its window covered, weighted by the kernel.
//
// Reference: "A guide to convolution arithmetic for deep learning"
// (Dumoulin & Visin, 2016).
func (cpu *CPUBackend) Conv2DInputBackward(input, kernel, grad *tensor.RawTensor, stride, padding int) *tensor.RawTensor {
	inputShape := input.Shape()
	kernelShape := kernel.Shape()
	gradShape := grad.Shape()

	N := inputShape[0]
	CIn := inputShape[1]
	H := inputShape[2]
	W := inputShape[3]
	COut := kernelShape[0]
	KH := kernelShape[2]
	KW := kernelShape[3]
	HOut := gradShape[2]
	WOut := gradShape[3]

	inputGrad, err := tensor.NewRaw(tensor.Shape{N, CIn, H, W}, grad.DType(), cpu.device)
	if err != nil {
		panic(fmt.Sprintf("Conv2DInputBackward: failed to create gradient tensor: %v", err))
	}

	switch grad.DType() {
	case tensor.Float32:
		conv2dInputBackward(inputGrad.AsFloat32(), grad.AsFloat32(), kernel.AsFloat32(),
			N, CIn, H, W, COut, KH, KW, HOut, WOut, stride, padding)
	case tensor.Float64:
		conv2dInputBackward(inputGrad.AsFloat64(), grad.AsFloat64(), kernel.AsFloat64(),
			N, CIn, H, W, COut, KH, KW, HOut, WOut, stride, padding)
	default:
		panic("Conv2DInputBackward: unsupported dtype")
	}

	return inputGrad
}

//nolint:gocognit // Complexity inherent to convolution backprop
func conv2dInputBackward[T tensor.DType](
	inputGradData, gradData, kernelData []T,
	N, CIn, H, W, COut, KH, KW, HOut, WOut, stride, padding int,
) {
	for i := range inputGradData {
		inputGradData[i] = 0
	}

	for n := 0; n < N; n++ {
		// Pre-slice batch planes to keep bounds checks out of the hot loops
		inputGradBatch := inputGradData[n*CIn*H*W : (n+1)*CIn*H*W]
		gradBatch := gradData[n*COut*HOut*WOut : (n+1)*COut*HOut*WOut]

		for outH := 0; outH < HOut; outH++ {
			for outW := 0; outW < WOut; outW++ {
				for cOut := 0; cOut < COut; cOut++ {
					gradVal := gradBatch[cOut*HOut*WOut+outH*WOut+outW]

					kernelCOut := kernelData[cOut*CIn*KH*KW : (cOut+1)*CIn*KH*KW]

					for cIn := 0; cIn < CIn; cIn++ {
						inputGradCIn := inputGradBatch[cIn*H*W : (cIn+1)*H*W]
						kernelCIn := kernelCOut[cIn*KH*KW : (cIn+1)*KH*KW]

						for kh := 0; kh < KH; kh++ {
							for kw := 0; kw < KW; kw++ {
								h := outH*stride - padding + kh
								w := outW*stride - padding + kw

								if h >= 0 && h < H && w >= 0 && w < W {
									inputGradCIn[h*W+w] += gradVal * kernelCIn[kh*KW+kw]
								}
							}
						}
					}
				}
			}
		}
	}
}

// Conv2DKernelBackward computes the gradient w.r.t. the convolution kernel.
//
// Each kernel weight accumulates input[n, c_in, h, w] * grad[n, c_out, h_out, w_out]
// over all batch samples and output positions, where
// h = h_out*stride - padding + kh, w = w_out*stride - padding + kw.
func (cpu *CPUBackend) Conv2DKernelBackward(input, kernel, grad *tensor.RawTensor, stride, padding int) *tensor.RawTensor {
	inputShape := input.Shape()
	kernelShape := kernel.Shape()
	gradShape := grad.Shape()

	N := inputShape[0]
	CIn := inputShape[1]
	H := inputShape[2]
	W := inputShape[3]
	COut := kernelShape[0]
	KH := kernelShape[2]
	KW := kernelShape[3]
	HOut := gradShape[2]
	WOut := gradShape[3]

	kernelGrad, err := tensor.NewRaw(tensor.Shape{COut, CIn, KH, KW}, grad.DType(), cpu.device)
	if err != nil {
		panic(fmt.Sprintf("Conv2DKernelBackward: failed to create gradient tensor: %v", err))
	}

	switch grad.DType() {
	case tensor.Float32:
		conv2dKernelBackward(kernelGrad.AsFloat32(), grad.AsFloat32(), input.AsFloat32(),
			N, CIn, H, W, COut, KH, KW, HOut, WOut, stride, padding)
	case tensor.Float64:
		conv2dKernelBackward(kernelGrad.AsFloat64(), grad.AsFloat64(), input.AsFloat64(),
			N, CIn, H, W, COut, KH, KW, HOut, WOut, stride, padding)
	default:
		panic("Conv2DKernelBackward: unsupported dtype")
	}

	return kernelGrad
}

//nolint:gocognit // Complexity inherent to convolution backprop
func conv2dKernelBackward[T tensor.DType](
	kernelGradData, gradData, inputData []T,
	N, CIn, H, W, COut, KH, KW, HOut, WOut, stride, padding int,
) {
	for i := range kernelGradData {
		kernelGradData[i] = 0
	}

	for cOut := 0; cOut < COut; cOut++ {
		for cIn := 0; cIn < CIn; cIn++ {
			for kh := 0; kh < KH; kh++ {
				for kw := 0; kw < KW; kw++ {
					var sum T

					for n := 0; n < N; n++ {
						for outH := 0; outH < HOut; outH++ {
							for outW := 0; outW < WOut; outW++ {
								h := outH*stride - padding + kh
								w := outW*stride - padding + kw

								if h >= 0 && h < H && w >= 0 && w < W {
									inputIdx := n*CIn*H*W + cIn*H*W + h*W + w
									gradIdx := n*COut*HOut*WOut + cOut*HOut*WOut + outH*WOut + outW
									sum += inputData[inputIdx] * gradData[gradIdx]
								}
							}
						}
					}

					kernelGradData[cOut*CIn*KH*KW+cIn*KH*KW+kh*KW+kw] = sum
				}
			}
		}
	}
}
