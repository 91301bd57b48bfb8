// Copyright 2025 Gogh ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package vision converts between image files and image tensors.
//
// Example:
//
//	backend := autodiff.New(cpu.New())
//	content, err := vision.Load("dancing.jpg", vision.DefaultSize(), backend)
package vision

import (
	"image"

	"github.com/gogh-ml/gogh/internal/tensor"
	"github.com/gogh-ml/gogh/internal/vision"
)

// Default square edge lengths for loaded images.
const (
	GPUSize = vision.GPUSize
	CPUSize = vision.CPUSize
)

// DefaultSize returns GPUSize when a WebGPU adapter is available and
// CPUSize otherwise.
func DefaultSize() int {
	return vision.DefaultSize()
}

// Load decodes a PNG or JPEG file and converts it to a
// [1, 3, size, size] tensor with values in [0, 1].
func Load[B tensor.Backend](path string, size int, backend B) (*tensor.Tensor[float32, B], error) {
	return vision.Load(path, size, backend)
}

// FromImage resamples a decoded image to size x size and converts it
// to a [1, 3, size, size] tensor with values in [0, 1].
func FromImage[B tensor.Backend](img image.Image, size int, backend B) (*tensor.Tensor[float32, B], error) {
	return vision.FromImage(img, size, backend)
}

// ToImage converts a [1, 3, H, W] tensor back to an image, clamping
// values to [0, 1].
func ToImage[B tensor.Backend](t *tensor.Tensor[float32, B]) (*image.NRGBA, error) {
	return vision.ToImage(t)
}

// Save encodes an image to a PNG or JPEG file chosen by extension.
func Save(img image.Image, path string) error {
	return vision.Save(img, path)
}
