package style

import (
	"fmt"

	"github.com/gogh-ml/gogh/internal/tensor"
)

// GramMatrix computes the normalized Gram matrix of a feature tensor.
//
// A [1, C, H, W] feature map is reshaped to a [C, H*W] matrix whose rows
// are the flattened per-channel responses; the product of the matrix
// with its own transpose yields a [C, C] matrix of channel correlations.
// Every entry is divided by the element count of the source tensor so
// magnitudes are comparable across depths with different channel and
// spatial sizes.
//
// All steps go through tensor ops, so gradients flow back to the
// feature map when a tape is recording.
func GramMatrix[B tensor.Backend](features *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	shape := features.Shape()
	if len(shape) != 4 || shape[0] != 1 {
		panic(fmt.Sprintf("style: gram matrix expects [1,C,H,W] features, got %v", shape))
	}

	channels, height, width := shape[1], shape[2], shape[3]
	flat := features.Reshape(channels, height*width)
	gram := flat.MatMul(flat.T())

	return gram.DivScalar(float32(channels * height * width))
}
