package native

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/gpuframe/cbuffer"
)

// uniformBuffer is a constant buffer block written through the queue.
type uniformBuffer struct {
	b    *Backend
	buf  hal.Buffer
	size uint64
}

// CreateBuffer creates a uniform buffer for the constant ring.
func (b *Backend) CreateBuffer(size uint64) (cbuffer.NativeBuffer, error) {
	buf, err := b.device.CreateBuffer(&hal.BufferDescriptor{
		Label: fmt.Sprintf("gpuframe_constants_%d", size),
		Size:  size,
		Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("native: create buffer: %w", err)
	}
	return &uniformBuffer{b: b, buf: buf, size: size}, nil
}

// Write uploads data at offset. The copy is ordered before any command
// buffer submitted afterwards.
func (u *uniformBuffer) Write(offset uint64, data []byte) error {
	if offset+uint64(len(data)) > u.size {
		return fmt.Errorf("%w: write %d bytes at %d into %d", cbuffer.ErrOverflow, len(data), offset, u.size)
	}
	u.b.queue.WriteBuffer(u.buf, offset, data)
	return nil
}

// Handle returns the HAL buffer handle used in bind group entries.
func (u *uniformBuffer) Handle() uintptr { return u.buf.NativeHandle() }

// Destroy releases the buffer.
func (u *uniformBuffer) Destroy() { u.b.device.DestroyBuffer(u.buf) }
