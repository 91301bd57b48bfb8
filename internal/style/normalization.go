// Package style implements optimization-based neural style transfer.
//
// A pretrained feature extractor is rebuilt with loss probes spliced in
// after chosen convolution depths: a content probe compares live feature
// maps against a frozen target, a style probe compares Gram matrices.
// The stylized output is produced by treating the pixels of a working
// image as the only trainable parameter and minimizing the weighted sum
// of all probe losses with L-BFGS.
//
// Typical use:
//
//	features, _ := vgg.LoadFeatures("vgg19.safetensors", backend)
//	result, _ := style.Transfer(features, content, styleImg, style.TransferConfig{}, backend)
package style

import (
	"fmt"

	"github.com/gogh-ml/gogh/internal/nn"
	"github.com/gogh-ml/gogh/internal/tensor"
)

// Normalization shifts and scales an image with per-channel constants so
// it matches the distribution the feature extractor was trained on. It
// runs as the first stage of every assembled model.
type Normalization[B tensor.Backend] struct {
	mean *tensor.Tensor[float32, B] // [1, 3, 1, 1]
	std  *tensor.Tensor[float32, B] // [1, 3, 1, 1]
}

// NewNormalization creates a normalization stage from per-channel mean
// and standard deviation constants.
func NewNormalization[B tensor.Backend](mean, std [3]float32, backend B) (*Normalization[B], error) {
	for i, s := range std {
		if s == 0 {
			return nil, fmt.Errorf("style: zero standard deviation for channel %d", i)
		}
	}

	meanT, err := tensor.FromSlice(mean[:], tensor.Shape{1, 3, 1, 1}, backend)
	if err != nil {
		return nil, fmt.Errorf("style: failed to create mean tensor: %w", err)
	}
	stdT, err := tensor.FromSlice(std[:], tensor.Shape{1, 3, 1, 1}, backend)
	if err != nil {
		return nil, fmt.Errorf("style: failed to create std tensor: %w", err)
	}

	return &Normalization[B]{mean: meanT.Detach(), std: stdT.Detach()}, nil
}

// Forward computes (input - mean) / std, broadcasting the constants
// over the spatial dimensions.
func (n *Normalization[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return input.Sub(n.mean).Div(n.std)
}

// Parameters returns an empty slice: the constants are not trainable.
func (n *Normalization[B]) Parameters() []*nn.Parameter[B] {
	return []*nn.Parameter[B]{}
}

// StateDict returns an empty map.
func (n *Normalization[B]) StateDict() map[string]*tensor.RawTensor {
	return map[string]*tensor.RawTensor{}
}

// LoadStateDict is a no-op for normalization.
func (n *Normalization[B]) LoadStateDict(_ map[string]*tensor.RawTensor) error {
	return nil
}
