package cpu

import (
	"fmt"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"
	"gonum.org/v1/gonum/blas/blas64"

	"github.com/gogh-ml/gogh/internal/parallel"
	"github.com/gogh-ml/gogh/internal/tensor"
)

// Conv2D performs 2D convolution using the im2col algorithm.
//
// Input shape: [batch, in_channels, height, width]
// Kernel shape: [out_channels, in_channels, kernel_h, kernel_w]
// Output shape: [batch, out_channels, out_h, out_w]
//
// Algorithm:
//  1. Transform input patches into columns (im2col)
//  2. Multiply the flattened kernel matrix against the column matrix (GEMM)
//  3. Rearrange the output to [N, C_out, H_out, W_out]
//
// Im2col converts the convolution into a single large matrix product,
// which gonum's BLAS handles far better than a direct 7-deep loop nest.
//
// Reference: "High Performance Convolutional Neural Networks for Document
// Processing" (Chellapilla et al., 2006).
func (cpu *CPUBackend) Conv2D(input, kernel *tensor.RawTensor, stride, padding int) *tensor.RawTensor {
	inputShape := input.Shape()
	kernelShape := kernel.Shape()

	if len(inputShape) != 4 {
		panic(fmt.Sprintf("conv2d: input must be 4D [N,C,H,W], got %dD", len(inputShape)))
	}
	if len(kernelShape) != 4 {
		panic(fmt.Sprintf("conv2d: kernel must be 4D [C_out,C_in,K_h,K_w], got %dD", len(kernelShape)))
	}

	N := inputShape[0]
	CIn := inputShape[1]
	H := inputShape[2]
	W := inputShape[3]
	COut := kernelShape[0]
	CInK := kernelShape[1]
	KH := kernelShape[2]
	KW := kernelShape[3]

	if CIn != CInK {
		panic(fmt.Sprintf("conv2d: input channels %d != kernel channels %d", CIn, CInK))
	}

	HOut := (H+2*padding-KH)/stride + 1
	WOut := (W+2*padding-KW)/stride + 1

	if HOut <= 0 || WOut <= 0 {
		panic(fmt.Sprintf("conv2d: invalid output dimensions: out_h=%d, out_w=%d (check stride/padding)", HOut, WOut))
	}

	output, err := tensor.NewRaw(tensor.Shape{N, COut, HOut, WOut}, input.DType(), cpu.device)
	if err != nil {
		panic(fmt.Sprintf("conv2d: failed to create output tensor: %v", err))
	}

	switch input.DType() {
	case tensor.Float32:
		conv2dFloat32(output, input, kernel, N, CIn, H, W, COut, KH, KW, HOut, WOut, stride, padding, cpu.par)
	case tensor.Float64:
		conv2dFloat64(output, input, kernel, N, CIn, H, W, COut, KH, KW, HOut, WOut, stride, padding, cpu.par)
	default:
		panic(fmt.Sprintf("conv2d: unsupported dtype %s", input.DType()))
	}

	return output
}

func conv2dFloat32(output, input, kernel *tensor.RawTensor, N, CIn, H, W, COut, KH, KW, HOut, WOut, stride, padding int, par parallel.Config) {
	inputData := input.AsFloat32()
	kernelData := kernel.AsFloat32()
	outputData := output.AsFloat32()

	// Im2col: [N, C, H, W] -> [N * H_out * W_out, C * K_h * K_w]
	colWidth := CIn * KH * KW
	colHeight := N * HOut * WOut
	colBuf := make([]float32, colHeight*colWidth)
	im2col(colBuf, inputData, N, CIn, H, W, KH, KW, HOut, WOut, stride, padding, par)

	// GEMM: kernel [C_out, colWidth] @ colBuf^T [colWidth, colHeight]
	// kernelData is already [C_out, C_in * K_h * K_w] in row-major layout.
	gemmBuf := make([]float32, COut*colHeight)
	kMat := blas32.General{Rows: COut, Cols: colWidth, Stride: colWidth, Data: kernelData}
	colMat := blas32.General{Rows: colHeight, Cols: colWidth, Stride: colWidth, Data: colBuf}
	outMat := blas32.General{Rows: COut, Cols: colHeight, Stride: colHeight, Data: gemmBuf}
	blas32.Gemm(blas.NoTrans, blas.Trans, 1, kMat, colMat, 0, outMat)

	// Rearrange from [C_out, N*H_out*W_out] to [N, C_out, H_out, W_out].
	col2im(outputData, gemmBuf, N, COut, HOut, WOut, colHeight)
}

func conv2dFloat64(output, input, kernel *tensor.RawTensor, N, CIn, H, W, COut, KH, KW, HOut, WOut, stride, padding int, par parallel.Config) {
	inputData := input.AsFloat64()
	kernelData := kernel.AsFloat64()
	outputData := output.AsFloat64()

	colWidth := CIn * KH * KW
	colHeight := N * HOut * WOut
	colBuf := make([]float64, colHeight*colWidth)
	im2col(colBuf, inputData, N, CIn, H, W, KH, KW, HOut, WOut, stride, padding, par)

	gemmBuf := make([]float64, COut*colHeight)
	kMat := blas64.General{Rows: COut, Cols: colWidth, Stride: colWidth, Data: kernelData}
	colMat := blas64.General{Rows: colHeight, Cols: colWidth, Stride: colWidth, Data: colBuf}
	outMat := blas64.General{Rows: COut, Cols: colHeight, Stride: colHeight, Data: gemmBuf}
	blas64.Gemm(blas.NoTrans, blas.Trans, 1, kMat, colMat, 0, outMat)

	col2im(outputData, gemmBuf, N, COut, HOut, WOut, colHeight)
}

// im2col transforms the input tensor into a column matrix.
//
// Input: [N, C, H, W]
// Output: colBuf [N * H_out * W_out, C * K_h * K_w]
//
// Each row of colBuf holds one flattened input patch; out-of-bounds
// positions (padding) are filled with zero. Rows are independent, so
// the patch extraction spreads across workers.
func im2col[T tensor.DType](colBuf, inputData []T, N, C, H, W, KH, KW, HOut, WOut, stride, padding int, par parallel.Config) {
	colWidth := C * KH * KW
	plane := HOut * WOut

	parallel.For(N*plane, func(colIdx int) {
		n := colIdx / plane
		outH := (colIdx % plane) / WOut
		outW := colIdx % WOut
		hStart := outH*stride - padding
		wStart := outW*stride - padding
		bufIdx := colIdx * colWidth

		for c := 0; c < C; c++ {
			for kh := 0; kh < KH; kh++ {
				for kw := 0; kw < KW; kw++ {
					h := hStart + kh
					w := wStart + kw

					if h >= 0 && h < H && w >= 0 && w < W {
						inputIdx := n*C*H*W + c*H*W + h*W + w
						colBuf[bufIdx] = inputData[inputIdx]
					} else {
						colBuf[bufIdx] = 0
					}
					bufIdx++
				}
			}
		}
	}, par)
}

// col2im rearranges the GEMM output from [C_out, N*H_out*W_out] to
// the standard [N, C_out, H_out, W_out] layout.
func col2im[T tensor.DType](dst, src []T, N, COut, HOut, WOut, colHeight int) {
	plane := HOut * WOut
	for n := 0; n < N; n++ {
		for c := 0; c < COut; c++ {
			srcOff := c*colHeight + n*plane
			dstOff := n*COut*plane + c*plane
			copy(dst[dstOff:dstOff+plane], src[srcOff:srcOff+plane])
		}
	}
}
