// Package backend provides the registry of GPU backends a gpuframe.Device
// can run on.
//
// # Backend Registration
//
// Backends are registered via init() functions and selected at runtime.
// Importing a backend package registers it:
//
//	import (
//		_ "github.com/gogpu/gpuframe/backend/native"
//		_ "github.com/gogpu/gpuframe/backend/sim"
//	)
//
// # Backend Selection
//
// Use OpenDefault to get the best available backend, or Open to request a
// specific backend by name:
//
//	// The first backend in priority order that opens successfully
//	b, err := backend.OpenDefault(logger)
//
//	// Or request a specific backend
//	b, err := backend.Open("sim", logger)
//
// # Available Backends
//
// - "native": GPU via gogpu/wgpu HAL (Vulkan unless built with -tags nogpu)
// - "sim": deterministic simulated GPU (always available)
package backend
