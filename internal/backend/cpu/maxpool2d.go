package cpu

import (
	"fmt"
	"math"

	"github.com/gogh-ml/gogh/internal/parallel"
	"github.com/gogh-ml/gogh/internal/tensor"
)

// MaxPool2D performs 2D max pooling.
//
// Max pooling reduces spatial dimensions by taking the maximum value in
// each pooling window. There are no learnable parameters.
//
// Input shape:  [batch, channels, height, width]
// Output shape: [batch, channels, out_height, out_width]
//
// Where:
//
//	out_height = (height - kernelSize) / stride + 1
//	out_width = (width - kernelSize) / stride + 1
func (cpu *CPUBackend) MaxPool2D(input *tensor.RawTensor, kernelSize, stride int) *tensor.RawTensor {
	inputShape := input.Shape()
	if len(inputShape) != 4 {
		panic(fmt.Sprintf("maxpool2d: expected 4D input [N,C,H,W], got %dD", len(inputShape)))
	}

	N := inputShape[0]
	C := inputShape[1]
	H := inputShape[2]
	W := inputShape[3]

	if kernelSize <= 0 {
		panic(fmt.Sprintf("maxpool2d: invalid kernel size %d", kernelSize))
	}
	if stride <= 0 {
		panic(fmt.Sprintf("maxpool2d: invalid stride %d", stride))
	}
	if kernelSize > H || kernelSize > W {
		panic(fmt.Sprintf("maxpool2d: kernel size %d too large for input %dx%d", kernelSize, H, W))
	}

	HOut := (H-kernelSize)/stride + 1
	WOut := (W-kernelSize)/stride + 1

	if HOut <= 0 || WOut <= 0 {
		panic(fmt.Sprintf("maxpool2d: invalid output dimensions %dx%d (kernel=%d, stride=%d, input=%dx%d)",
			HOut, WOut, kernelSize, stride, H, W))
	}

	output, err := tensor.NewRaw(tensor.Shape{N, C, HOut, WOut}, input.DType(), cpu.Device())
	if err != nil {
		panic(fmt.Sprintf("maxpool2d: failed to create output: %v", err))
	}

	switch input.DType() {
	case tensor.Float32:
		maxpool2d(output.AsFloat32(), input.AsFloat32(), N, C, H, W, HOut, WOut, kernelSize, stride, cpu.par)
	case tensor.Float64:
		maxpool2d(output.AsFloat64(), input.AsFloat64(), N, C, H, W, HOut, WOut, kernelSize, stride, cpu.par)
	default:
		panic(fmt.Sprintf("maxpool2d: unsupported dtype %v", input.DType()))
	}

	return output
}

func maxpool2d[T tensor.DType](outputData, inputData []T, N, C, H, W, HOut, WOut, kernelSize, stride int, par parallel.Config) {
	parallel.ForBatch(N, C, func(n, c int) {
		// Pre-slice channel plane: one bounds check instead of N*C
		channelData := inputData[(n*C+c)*H*W : (n*C+c+1)*H*W]

		for outH := 0; outH < HOut; outH++ {
			hStart := outH * stride

			for outW := 0; outW < WOut; outW++ {
				wStart := outW * stride

				maxVal := T(math.Inf(-1))

				for kh := 0; kh < kernelSize; kh++ {
					rowData := channelData[(hStart+kh)*W : (hStart+kh+1)*W]

					for kw := 0; kw < kernelSize; kw++ {
						if v := rowData[wStart+kw]; v > maxVal {
							maxVal = v
						}
					}
				}

				outputData[((n*C+c)*HOut+outH)*WOut+outW] = maxVal
			}
		}
	}, par)
}
