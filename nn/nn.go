// Copyright 2025 Gogh ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package nn provides neural network building blocks: the Module
// interface, trainable parameters, convolution, activation and pooling
// layers, and a Sequential container.
package nn

import (
	"github.com/gogh-ml/gogh/internal/nn"
	"github.com/gogh-ml/gogh/internal/tensor"
)

// Module is the base interface for all neural network components.
type Module[B tensor.Backend] = nn.Module[B]

// Parameter wraps a trainable tensor with its name and gradient slot.
type Parameter[B tensor.Backend] = nn.Parameter[B]

// NewParameter creates a named trainable parameter.
func NewParameter[B tensor.Backend](name string, t *tensor.Tensor[float32, B]) *Parameter[B] {
	return nn.NewParameter(name, t)
}

// Conv2D is a 2D convolutional layer.
type Conv2D[B tensor.Backend] = nn.Conv2D[B]

// NewConv2D creates a 2D convolutional layer with Xavier initialization.
//
// Example:
//
//	// VGG-style conv: 3 channels -> 64 channels, 3x3 kernel, padding 1
//	conv := nn.NewConv2D(3, 64, 3, 3, 1, 1, true, backend)
func NewConv2D[B tensor.Backend](
	inChannels, outChannels int,
	kernelH, kernelW int,
	stride, padding int,
	useBias bool,
	backend B,
) *Conv2D[B] {
	return nn.NewConv2D(inChannels, outChannels, kernelH, kernelW, stride, padding, useBias, backend)
}

// ReLU is the rectified linear activation.
type ReLU[B tensor.Backend] = nn.ReLU[B]

// NewReLU creates a ReLU activation. The inplace flag mirrors layer
// definitions imported from other frameworks; evaluation is always
// out-of-place.
func NewReLU[B tensor.Backend](inplace bool) *ReLU[B] {
	return nn.NewReLU[B](inplace)
}

// MaxPool2D is a 2D max pooling layer.
type MaxPool2D[B tensor.Backend] = nn.MaxPool2D[B]

// NewMaxPool2D creates a 2D max pooling layer.
func NewMaxPool2D[B tensor.Backend](kernelSize, stride int, backend B) *MaxPool2D[B] {
	return nn.NewMaxPool2D(kernelSize, stride, backend)
}

// Sequential chains modules, feeding each output to the next module.
type Sequential[B tensor.Backend] = nn.Sequential[B]

// NewSequential creates a sequential container from the given modules.
func NewSequential[B tensor.Backend](modules ...Module[B]) *Sequential[B] {
	return nn.NewSequential(modules...)
}
