// Package webgpu probes for GPU availability through WebGPU.
// Uses go-webgpu (github.com/go-webgpu/webgpu) for zero-CGO WebGPU bindings.
//
// The probe decides the working resolution for the optimization loop:
// with a GPU present the pipeline can afford full-size images, without
// one it falls back to a small preview resolution.
package webgpu

import (
	"fmt"

	"github.com/go-webgpu/webgpu/wgpu"
)

// IsAvailable checks if WebGPU is available on this system.
func IsAvailable() (available bool) {
	// Recover from panic if wgpu_native library is not found.
	defer func() {
		if r := recover(); r != nil {
			available = false
		}
	}()

	instance, err := wgpu.CreateInstance(nil)
	if err != nil {
		return false
	}
	defer instance.Release()

	adapter, err := instance.RequestAdapter(nil)
	if err != nil {
		return false
	}
	adapter.Release()

	return true
}

// AdapterName returns the name of the default GPU adapter.
// Returns an error when no adapter is available.
func AdapterName() (name string, err error) {
	// Recover from panic if wgpu_native library is not found.
	defer func() {
		if r := recover(); r != nil {
			name = ""
			err = fmt.Errorf("webgpu: native library not available: %v", r)
		}
	}()

	instance, instanceErr := wgpu.CreateInstance(nil)
	if instanceErr != nil {
		return "", fmt.Errorf("webgpu: failed to create instance: %w", instanceErr)
	}
	defer instance.Release()

	adapter, adapterErr := instance.RequestAdapter(nil)
	if adapterErr != nil {
		return "", fmt.Errorf("webgpu: no adapters available: %w", adapterErr)
	}
	defer adapter.Release()

	info, infoErr := adapter.GetInfo()
	if infoErr != nil {
		return "", fmt.Errorf("webgpu: failed to get adapter info: %w", infoErr)
	}
	return info.Device, nil
}
