// Copyright 2025 Gogh ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package cpu provides the CPU compute backend.
package cpu

import (
	internalcpu "github.com/gogh-ml/gogh/internal/backend/cpu"
	"github.com/gogh-ml/gogh/tensor"
)

// Backend represents the CPU backend implementation.
//
// Matrix products delegate to gonum's BLAS; convolution and pooling
// kernels spread independent output rows across worker goroutines.
type Backend = internalcpu.CPUBackend

// Compile-time check that Backend implements tensor.Backend.
var _ tensor.Backend = (*Backend)(nil)

// New creates a new CPU backend.
//
// Example:
//
//	backend := cpu.New()
//	x := tensor.Zeros[float32](tensor.Shape{2, 3}, backend)
func New() *Backend {
	return internalcpu.New()
}
