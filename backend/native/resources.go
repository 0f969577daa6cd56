package native

import (
	"fmt"
	"sync"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/gpuframe/cmdlist"
	"github.com/gogpu/gpuframe/fence"
)

// Texture is a HAL texture with a default view that takes part in
// cmdlist state tracking.
//
// Thread Safety: Usage and SetUsage are safe for concurrent use.
type Texture struct {
	fence.Tracker

	b     *Backend
	tex   hal.Texture
	view  hal.TextureView
	owned bool

	mu    sync.Mutex
	usage cmdlist.Usage
}

var _ cmdlist.Image = (*Texture)(nil)

// TextureDescriptor describes a 2D texture created by the backend.
type TextureDescriptor struct {
	Label  string
	Width  uint32
	Height uint32
	Format gputypes.TextureFormat
	Usage  gputypes.TextureUsage
}

// CreateTexture creates a 2D texture and its default view. The texture
// starts in cmdlist.UsageUndefined.
func (b *Backend) CreateTexture(desc TextureDescriptor) (*Texture, error) {
	tex, err := b.device.CreateTexture(&hal.TextureDescriptor{
		Label:         desc.Label,
		Size:          hal.Extent3D{Width: desc.Width, Height: desc.Height, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        desc.Format,
		Usage:         desc.Usage,
	})
	if err != nil {
		return nil, fmt.Errorf("native: create texture %q: %w", desc.Label, err)
	}
	view, err := b.device.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label: desc.Label + "_view",
	})
	if err != nil {
		b.device.DestroyTexture(tex)
		return nil, fmt.Errorf("native: create texture view %q: %w", desc.Label, err)
	}
	return &Texture{b: b, tex: tex, view: view, owned: true}, nil
}

// WrapTexture adopts a texture and view created elsewhere, such as a
// swapchain image. Destroy does not release them.
func (b *Backend) WrapTexture(tex hal.Texture, view hal.TextureView, u cmdlist.Usage) *Texture {
	return &Texture{b: b, tex: tex, view: view, usage: u}
}

// Raw returns the HAL texture.
func (t *Texture) Raw() hal.Texture { return t.tex }

// View returns the default view.
func (t *Texture) View() hal.TextureView { return t.view }

// Usage returns the current usage.
func (t *Texture) Usage() cmdlist.Usage {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.usage
}

// SetUsage records a new usage.
func (t *Texture) SetUsage(u cmdlist.Usage) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.usage = u
}

// Destroy releases an owned texture. Callers defer it through
// gpuframe.Device.DeleteWhenIdle while the texture may be in flight.
func (t *Texture) Destroy() {
	if !t.owned {
		return
	}
	t.b.device.DestroyTextureView(t.view)
	t.b.device.DestroyTexture(t.tex)
	t.owned = false
}

// Buffer is a HAL vertex or index buffer tracked by command lists.
type Buffer struct {
	fence.Tracker

	buf hal.Buffer
}

var _ cmdlist.Buffer = (*Buffer)(nil)

// WrapBuffer adopts a HAL buffer for use in vertex and index state.
func WrapBuffer(buf hal.Buffer) *Buffer { return &Buffer{buf: buf} }

// Raw returns the HAL buffer.
func (b *Buffer) Raw() hal.Buffer { return b.buf }

// Pipeline wraps a HAL render or compute pipeline.
type Pipeline struct {
	render  hal.RenderPipeline
	compute hal.ComputePipeline
}

var _ cmdlist.Pipeline = (*Pipeline)(nil)

// RenderPipeline wraps a graphics pipeline.
func RenderPipeline(p hal.RenderPipeline) *Pipeline { return &Pipeline{render: p} }

// ComputePipeline wraps a compute pipeline.
func ComputePipeline(p hal.ComputePipeline) *Pipeline { return &Pipeline{compute: p} }

// Compute reports whether p is a compute pipeline.
func (p *Pipeline) Compute() bool { return p.compute != nil }

// textureUsage maps a tracked usage onto the HAL usage used in barriers.
func textureUsage(u cmdlist.Usage) gputypes.TextureUsage {
	switch u {
	case cmdlist.UsageRenderTarget, cmdlist.UsageDepthWrite, cmdlist.UsageDepthRead, cmdlist.UsagePresent:
		return gputypes.TextureUsageRenderAttachment
	case cmdlist.UsageShaderResource:
		return gputypes.TextureUsageTextureBinding
	case cmdlist.UsageUnorderedAccess:
		return gputypes.TextureUsageStorageBinding
	case cmdlist.UsageCopySrc:
		return gputypes.TextureUsageCopySrc
	case cmdlist.UsageCopyDst:
		return gputypes.TextureUsageCopyDst
	default:
		return gputypes.TextureUsage(0)
	}
}
