// Copyright 2025 Gogh ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package loader reads and writes model weights in SafeTensors format.
//
// Example:
//
//	reader, err := loader.NewSafeTensorsReader("vgg19.safetensors")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer reader.Close()
//
//	backend := cpu.New()
//	weight, err := reader.LoadTensor("features.0.weight", backend)
package loader

import (
	"github.com/gogh-ml/gogh/internal/loader"
	"github.com/gogh-ml/gogh/internal/tensor"
)

// SafeTensorsDType represents supported SafeTensors data types.
type SafeTensorsDType = loader.SafeTensorsDType

// Supported SafeTensors dtypes. F16 and BF16 payloads are widened to
// float32 on load.
const (
	SafeTensorsF16  SafeTensorsDType = loader.SafeTensorsF16
	SafeTensorsF32  SafeTensorsDType = loader.SafeTensorsF32
	SafeTensorsF64  SafeTensorsDType = loader.SafeTensorsF64
	SafeTensorsBF16 SafeTensorsDType = loader.SafeTensorsBF16
)

// SafeTensorInfo describes one tensor in a SafeTensors header.
type SafeTensorInfo = loader.SafeTensorInfo

// SafeTensorsReader reads SafeTensors format files.
type SafeTensorsReader = loader.SafeTensorsReader

// NewSafeTensorsReader opens a SafeTensors file and parses its header.
func NewSafeTensorsReader(path string) (*SafeTensorsReader, error) {
	return loader.NewSafeTensorsReader(path)
}

// WriteSafeTensors writes named tensors to a SafeTensors file.
func WriteSafeTensors(path string, tensors map[string]*tensor.RawTensor, metadata map[string]string) error {
	return loader.WriteSafeTensors(path, tensors, metadata)
}
