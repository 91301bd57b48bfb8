// Copyright 2025 Gogh ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package webgpu probes for GPU availability through WebGPU.
//
// The probe decides the working resolution for the optimization loop:
// with a GPU present the pipeline can afford full-size images, without
// one it falls back to a small preview resolution.
package webgpu

import (
	internalwebgpu "github.com/gogh-ml/gogh/internal/backend/webgpu"
)

// IsAvailable checks if WebGPU is available on this system.
func IsAvailable() bool {
	return internalwebgpu.IsAvailable()
}

// AdapterName returns the name of the default GPU adapter.
// Returns an error when no adapter is available.
func AdapterName() (string, error) {
	return internalwebgpu.AdapterName()
}
