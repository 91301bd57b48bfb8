// Copyright 2025 Gogh ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package style implements neural style transfer over a pretrained
// feature extractor.
//
// Example:
//
//	backend := autodiff.New(cpu.New())
//	extractor, _ := vgg.LoadFeatures("vgg19.safetensors", backend)
//	content, _ := vision.Load("dancing.jpg", vision.DefaultSize(), backend)
//	styleImg, _ := vision.Load("picasso.jpg", vision.DefaultSize(), backend)
//	result, err := style.Transfer(extractor, content, styleImg, style.TransferConfig{}, backend)
package style

import (
	"github.com/gogh-ml/gogh/internal/autodiff"
	"github.com/gogh-ml/gogh/internal/nn"
	"github.com/gogh-ml/gogh/internal/style"
	"github.com/gogh-ml/gogh/internal/tensor"
)

// Default optimization settings used when TransferConfig fields are
// left zero.
const (
	DefaultIterations    = style.DefaultIterations
	DefaultStyleWeight   = style.DefaultStyleWeight
	DefaultContentWeight = style.DefaultContentWeight
	DefaultLogEvery      = style.DefaultLogEvery
)

// Normalization shifts and scales input pixels to the statistics a
// pretrained extractor was trained with.
type Normalization[B tensor.Backend] = style.Normalization[B]

// NewNormalization creates a normalization module from per-channel
// mean and standard deviation.
func NewNormalization[B tensor.Backend](mean, std [3]float32, backend B) (*Normalization[B], error) {
	return style.NewNormalization(mean, std, backend)
}

// ContentLoss is a transparent probe recording the mean squared error
// between its input and a fixed target feature map.
type ContentLoss[B tensor.Backend] = style.ContentLoss[B]

// NewContentLoss creates a content probe with the given target
// activations.
func NewContentLoss[B tensor.Backend](target *tensor.Tensor[float32, B]) *ContentLoss[B] {
	return style.NewContentLoss(target)
}

// StyleLoss is a transparent probe recording the mean squared error
// between the Gram matrix of its input and a fixed target Gram matrix.
type StyleLoss[B tensor.Backend] = style.StyleLoss[B]

// NewStyleLoss creates a style probe with targets derived from the
// given feature map.
func NewStyleLoss[B tensor.Backend](target *tensor.Tensor[float32, B]) *StyleLoss[B] {
	return style.NewStyleLoss(target)
}

// GramMatrix computes the channel correlation matrix of a [1, C, H, W]
// feature map, normalized by the element count.
func GramMatrix[B tensor.Backend](features *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return style.GramMatrix(features)
}

// Model is an assembled style-transfer graph with its loss probes.
type Model[B tensor.Backend] = style.Model[B]

// DefaultContentLayers returns the conv layers probed for content
// loss.
func DefaultContentLayers() []string {
	return style.DefaultContentLayers()
}

// DefaultStyleLayers returns the conv layers probed for style loss.
func DefaultStyleLayers() []string {
	return style.DefaultStyleLayers()
}

// Build assembles a style-transfer graph from a pretrained extractor,
// splicing content and style probes after the named conv layers and
// truncating everything past the last probe. Nil layer lists select
// the defaults.
func Build[B autodiff.BackwardCapable](
	extractor *nn.Sequential[B],
	mean, std [3]float32,
	content, styleImg *tensor.Tensor[float32, B],
	contentLayers, styleLayers []string,
	backend B,
) (*Model[B], error) {
	return style.Build(extractor, mean, std, content, styleImg, contentLayers, styleLayers, backend)
}

// TransferConfig controls the style-transfer optimization. Zero
// values select the defaults.
type TransferConfig = style.TransferConfig

// Transfer runs style transfer starting from a copy of the content
// image and returns the stylized result.
func Transfer[B autodiff.BackwardCapable](
	extractor *nn.Sequential[B],
	content, styleImg *tensor.Tensor[float32, B],
	config TransferConfig,
	backend B,
) (*tensor.Tensor[float32, B], error) {
	return style.Transfer(extractor, content, styleImg, config, backend)
}

// TransferFrom runs style transfer starting from an explicit start
// image, typically white noise or a previous result.
func TransferFrom[B autodiff.BackwardCapable](
	extractor *nn.Sequential[B],
	content, styleImg, start *tensor.Tensor[float32, B],
	config TransferConfig,
	backend B,
) (*tensor.Tensor[float32, B], error) {
	return style.TransferFrom(extractor, content, styleImg, start, config, backend)
}
