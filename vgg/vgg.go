// Copyright 2025 Gogh ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package vgg builds the VGG-19 convolutional feature extractor.
//
// Example:
//
//	backend := autodiff.New(cpu.New())
//	features, err := vgg.LoadFeatures("vgg19.safetensors", backend)
package vgg

import (
	"github.com/gogh-ml/gogh/internal/nn"
	"github.com/gogh-ml/gogh/internal/tensor"
	"github.com/gogh-ml/gogh/internal/vgg"
)

// ImageNet channel statistics the pretrained network expects its input
// normalized with.
var (
	ImageNetMean = vgg.ImageNetMean
	ImageNetStd  = vgg.ImageNetStd
)

// Features returns the VGG-19 features stack with random weights:
// sixteen 3x3 convolutions with ReLU activations and five max-pool
// stages, laid out with torchvision's sequential indices.
func Features[B tensor.Backend](backend B) *nn.Sequential[B] {
	return vgg.Features(backend)
}

// LoadFeatures builds the features stack and fills it from a
// SafeTensors checkpoint using torchvision key names
// (features.0.weight, features.0.bias, ...).
func LoadFeatures[B tensor.Backend](path string, backend B) (*nn.Sequential[B], error) {
	return vgg.LoadFeatures(path, backend)
}

// NumLayers returns the layer count of the features stack.
func NumLayers() int {
	return vgg.NumLayers()
}
