package gpuframe

import (
	"github.com/gogpu/gpuframe/cbuffer"
	"github.com/gogpu/gpuframe/cmdlist"
	"github.com/gogpu/gpuframe/descriptor"
)

// Backend is the native GPU surface a Device drives. It combines the
// creation interfaces of every manager with a direct queue.
//
// Implementations: backend/sim (simulated, deterministic) and
// backend/native (gogpu/wgpu HAL).
type Backend interface {
	cmdlist.Device
	descriptor.Device
	cbuffer.Device

	// Name returns the backend identifier (e.g. "sim", "native").
	Name() string

	// Queue returns the direct queue command lists are submitted to.
	Queue() cmdlist.Queue

	// Close releases the backend. The Device using it must be destroyed
	// first.
	Close()
}

// Presenter owns the swapchain. A Backend that implements Presenter is used
// as the Device presenter unless WithPresenter overrides it.
type Presenter interface {
	// AcquireNextImage returns the index of the next swapchain image.
	AcquireNextImage() (uint32, error)

	// Present queues the current image for display.
	Present() error
}
