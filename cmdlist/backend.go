package cmdlist

import (
	"github.com/gogpu/gpuframe/descriptor"
	"github.com/gogpu/gpuframe/fence"
)

// Device creates the native objects behind a CommandList.
type Device interface {
	// CreateFence returns a new timeline primitive.
	CreateFence() (fence.Primitive, error)

	// CreateAllocator returns backing command memory for lists of type t.
	CreateAllocator(t Type) (Allocator, error)

	// CreateRecorder returns a native command list of type t that records
	// into a.
	CreateRecorder(t Type, a Allocator) (Recorder, error)
}

// Queue submits closed lists and signals fences after them.
type Queue interface {
	fence.Signaler

	// Submit enqueues the recorded commands of r for execution.
	Submit(r Recorder) error
}

// Allocator is native command memory. Reset reclaims everything recorded
// into it; callers guarantee no list using it is in flight.
type Allocator interface {
	Reset() error
	Destroy()
}

// Recorder is the native command list a CommandList drives.
// The CommandList validates state before forwarding any call.
type Recorder interface {
	// Reset starts a new recording into a.
	Reset(a Allocator) error

	// Close finalizes the recording.
	Close() error

	// Destroy releases the native list.
	Destroy()

	Barriers(b []Barrier)
	ClearColor(target Image, color [4]float32)
	ClearDepthStencil(target Image, depth float32, stencil uint32)
	SetRenderTarget(rt RenderTarget)
	SetViewports(v []Viewport)
	SetScissors(r []Rect)
	SetPipeline(p Pipeline)
	SetDescriptorTable(slot uint32, r descriptor.Region)
	SetVertexBuffers(start uint32, bufs []VertexBuffer)
	SetIndexBuffer(b Buffer, offset uint64, format IndexFormat)
	Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32)
	DrawIndexed(indexCount, instanceCount, firstIndex uint32, baseVertex int32, firstInstance uint32)
	Dispatch(x, y, z uint32)
}

// Usage is the access state of an image as seen by the GPU.
type Usage uint16

const (
	UsageUndefined Usage = iota
	UsageCommon
	UsageRenderTarget
	UsageDepthWrite
	UsageDepthRead
	UsageShaderResource
	UsageUnorderedAccess
	UsageCopySrc
	UsageCopyDst
	UsagePresent
)

// Image is a texture-like resource that takes part in state transitions.
// Backends implement it; the current usage lives on the image so every list
// sees the state the previous one left behind.
type Image interface {
	fence.Resource
	Usage() Usage
	SetUsage(u Usage)
}

// Buffer is a GPU buffer referenced by recorded commands.
type Buffer interface {
	fence.Resource
}

// Pipeline is a compiled pipeline state object.
type Pipeline interface {
	// Compute reports whether the pipeline is a compute pipeline.
	Compute() bool
}

// Barrier is one recorded image state transition.
type Barrier struct {
	Image  Image
	Before Usage
	After  Usage
}

// RenderTarget is the set of attachments draws write to.
type RenderTarget struct {
	Colors []Image
	Depth  Image
}

// Viewport maps normalized device coordinates to the render target.
type Viewport struct {
	X, Y, Width, Height float32
	MinDepth, MaxDepth  float32
}

// Rect is a scissor rectangle in pixels.
type Rect struct {
	X, Y, Width, Height uint32
}

// VertexBuffer binds one vertex stream.
type VertexBuffer struct {
	Buffer Buffer
	Offset uint64
	Stride uint32
}

// IndexFormat is the index element type.
type IndexFormat uint8

const (
	IndexUint16 IndexFormat = iota
	IndexUint32
)
