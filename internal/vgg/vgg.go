// Package vgg builds the VGG-19 convolutional feature extractor.
//
// Only the `features` stack of VGG-19 is provided: the fully connected
// classifier head plays no role in feature extraction, so it is never
// constructed. The stack follows the standard channel plan
//
//	64, 64, M, 128, 128, M, 256, 256, 256, 256, M,
//	512, 512, 512, 512, M, 512, 512, 512, 512, M
//
// where each number is a 3x3 convolution with padding 1 followed by an
// inplace ReLU, and M is a 2x2 max pool with stride 2.
//
// Pretrained weights load from SafeTensors files keyed with torchvision
// layer indices (features.0.weight, features.0.bias, features.2.weight, ...).
package vgg

import (
	"fmt"

	"github.com/gogh-ml/gogh/internal/loader"
	"github.com/gogh-ml/gogh/internal/nn"
	"github.com/gogh-ml/gogh/internal/tensor"
)

// ImageNet channel statistics. Inputs to the extractor are expected in
// [0,1] RGB and must be normalized with these constants, matching the
// distribution the pretrained weights were trained on.
var (
	ImageNetMean = [3]float32{0.485, 0.456, 0.406}
	ImageNetStd  = [3]float32{0.229, 0.224, 0.225}
)

// pool marks a max pooling stage in the channel plan.
const pool = -1

// featuresPlan is the VGG-19 configuration ("E" in the original paper).
var featuresPlan = []int{
	64, 64, pool,
	128, 128, pool,
	256, 256, 256, 256, pool,
	512, 512, 512, 512, pool,
	512, 512, 512, 512, pool,
}

// Features builds the VGG-19 feature stack with randomly initialized
// weights. Layer ordering and indices match torchvision's
// vgg19().features, so checkpoints exported from there load directly.
func Features[B tensor.Backend](backend B) *nn.Sequential[B] {
	model := nn.NewSequential[B]()

	inChannels := 3
	for _, c := range featuresPlan {
		if c == pool {
			model.Add(nn.NewMaxPool2D(2, 2, backend))
			continue
		}
		model.Add(nn.NewConv2D(inChannels, c, 3, 3, 1, 1, true, backend))
		model.Add(nn.NewReLU[B](true))
		inChannels = c
	}

	return model
}

// LoadFeatures builds the VGG-19 feature stack and fills it from a
// SafeTensors checkpoint.
//
// Expected keys follow torchvision's state dict layout: each convolution
// at sequential index i contributes "features.<i>.weight" and
// "features.<i>.bias".
func LoadFeatures[B tensor.Backend](path string, backend B) (*nn.Sequential[B], error) {
	reader, err := loader.NewSafeTensorsReader(path)
	if err != nil {
		return nil, fmt.Errorf("vgg: failed to open checkpoint: %w", err)
	}
	defer reader.Close()

	model := Features(backend)

	for i, module := range model.Modules() {
		conv, ok := module.(*nn.Conv2D[B])
		if !ok {
			continue
		}

		weightKey := fmt.Sprintf("features.%d.weight", i)
		biasKey := fmt.Sprintf("features.%d.bias", i)

		weight, err := reader.LoadTensor(weightKey, backend)
		if err != nil {
			return nil, fmt.Errorf("vgg: failed to load %s: %w", weightKey, err)
		}
		bias, err := reader.LoadTensor(biasKey, backend)
		if err != nil {
			return nil, fmt.Errorf("vgg: failed to load %s: %w", biasKey, err)
		}

		err = conv.LoadStateDict(map[string]*tensor.RawTensor{
			"weight": weight,
			"bias":   bias,
		})
		if err != nil {
			return nil, fmt.Errorf("vgg: layer %d: %w", i, err)
		}
	}

	return model, nil
}

// NumLayers returns the number of layers in the feature stack
// (convolutions, activations and pools combined).
func NumLayers() int {
	n := 0
	for _, c := range featuresPlan {
		if c == pool {
			n++
		} else {
			n += 2 // conv + relu
		}
	}
	return n
}
