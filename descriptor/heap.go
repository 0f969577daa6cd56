package descriptor

import (
	"fmt"

	"github.com/gogpu/gpuframe/fence"
)

// HeapType selects the kind of descriptors a heap holds.
type HeapType uint8

const (
	// ShaderResource heaps hold constant buffer, shader resource and
	// unordered access views.
	ShaderResource HeapType = iota
	// Sampler heaps hold sampler states.
	Sampler
	// RenderTarget heaps hold color attachment views.
	RenderTarget
	// DepthStencil heaps hold depth/stencil attachment views.
	DepthStencil

	heapTypeCount
)

// HeapTypes lists every heap type in order.
var HeapTypes = [heapTypeCount]HeapType{ShaderResource, Sampler, RenderTarget, DepthStencil}

// String returns the heap type name.
func (t HeapType) String() string {
	switch t {
	case ShaderResource:
		return "ShaderResource"
	case Sampler:
		return "Sampler"
	case RenderTarget:
		return "RenderTarget"
	case DepthStencil:
		return "DepthStencil"
	default:
		return fmt.Sprintf("HeapType(%d)", t)
	}
}

func (t HeapType) valid() bool { return t < heapTypeCount }

// Default heap capacities in descriptors.
const (
	DefaultShaderResourceCapacity = 2048
	DefaultSamplerCapacity        = 2048
	DefaultRenderTargetCapacity   = 512
	DefaultDepthStencilCapacity   = 128
)

// Capacities sets the number of descriptors per heap for each type.
type Capacities struct {
	ShaderResource uint32 `toml:"shader_resource"`
	Sampler        uint32 `toml:"sampler"`
	RenderTarget   uint32 `toml:"render_target"`
	DepthStencil   uint32 `toml:"depth_stencil"`
}

// DefaultCapacities returns the default per-type capacities.
func DefaultCapacities() Capacities {
	return Capacities{
		ShaderResource: DefaultShaderResourceCapacity,
		Sampler:        DefaultSamplerCapacity,
		RenderTarget:   DefaultRenderTargetCapacity,
		DepthStencil:   DefaultDepthStencilCapacity,
	}
}

// Of returns the capacity for t. Zero fields fall back to the defaults.
func (c Capacities) Of(t HeapType) uint32 {
	var v, def uint32
	switch t {
	case ShaderResource:
		v, def = c.ShaderResource, DefaultShaderResourceCapacity
	case Sampler:
		v, def = c.Sampler, DefaultSamplerCapacity
	case RenderTarget:
		v, def = c.RenderTarget, DefaultRenderTargetCapacity
	case DepthStencil:
		v, def = c.DepthStencil, DefaultDepthStencilCapacity
	}
	if v == 0 {
		return def
	}
	return v
}

// NativeHeap is the backend descriptor storage behind a Heap.
type NativeHeap interface {
	Destroy()
}

// Heap is a fixed-capacity block of descriptor slots.
// Its embedded Tracker records the command lists that reference it.
type Heap struct {
	fence.Tracker

	id       uint64
	typ      HeapType
	capacity uint32
	native   NativeHeap
}

// ID returns a serial number unique within the owning HeapManager.
func (h *Heap) ID() uint64 { return h.id }

// Type returns the heap type.
func (h *Heap) Type() HeapType { return h.typ }

// Capacity returns the number of descriptor slots.
func (h *Heap) Capacity() uint64 { return uint64(h.capacity) }

// Native returns the backend heap.
func (h *Heap) Native() NativeHeap { return h.native }

// Region is a contiguous range of slots inside a Heap.
type Region struct {
	Heap   *Heap
	Offset uint32
	Count  uint32
}

// IsZero reports whether r is the zero Region.
func (r Region) IsZero() bool { return r.Heap == nil }

// String returns a compact description of r.
func (r Region) String() string {
	if r.Heap == nil {
		return "Region(nil)"
	}
	return fmt.Sprintf("%s#%d[%d:%d]", r.Heap.typ, r.Heap.id, r.Offset, r.Offset+r.Count)
}
