package sim

import (
	"fmt"
	"sync"

	"github.com/gogpu/gpuframe/cbuffer"
	"github.com/gogpu/gpuframe/cmdlist"
	"github.com/gogpu/gpuframe/descriptor"
	"github.com/gogpu/gpuframe/fence"
)

// Allocator is simulated command memory.
type Allocator struct {
	gpu       *GPU
	typ       cmdlist.Type
	resets    int
	destroyed bool
}

// Resets returns how many times the allocator was reset.
func (a *Allocator) Resets() int {
	a.gpu.mu.Lock()
	defer a.gpu.mu.Unlock()

	return a.resets
}

// Reset reclaims the allocator memory.
func (a *Allocator) Reset() error {
	a.gpu.mu.Lock()
	defer a.gpu.mu.Unlock()

	a.resets++
	a.gpu.stats.AllocatorResets++
	return nil
}

// Destroy releases the allocator.
func (a *Allocator) Destroy() {
	a.gpu.mu.Lock()
	defer a.gpu.mu.Unlock()

	a.destroyed = true
}

// CreateAllocator returns command memory for lists of type t.
func (g *GPU) CreateAllocator(t cmdlist.Type) (cmdlist.Allocator, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.checkLocked(); err != nil {
		return nil, err
	}
	g.stats.Allocators++
	return &Allocator{gpu: g, typ: t}, nil
}

// Recorder counts the commands recorded into it. The counters reset on
// every Reset and are folded into the GPU counters on submit.
type Recorder struct {
	gpu   *GPU
	typ   cmdlist.Type
	alloc cmdlist.Allocator

	recording  bool
	closed     bool
	barriers   int
	draws      int
	dispatches int
	tables     map[uint32]descriptor.Region
	destroyed  bool
}

// CreateRecorder returns a recorder of type t writing into a.
func (g *GPU) CreateRecorder(t cmdlist.Type, a cmdlist.Allocator) (cmdlist.Recorder, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.checkLocked(); err != nil {
		return nil, err
	}
	g.stats.Recorders++
	return &Recorder{gpu: g, typ: t, alloc: a}, nil
}

// Reset starts a new recording into a.
func (r *Recorder) Reset(a cmdlist.Allocator) error {
	r.gpu.mu.Lock()
	defer r.gpu.mu.Unlock()

	r.alloc = a
	r.recording = true
	r.closed = false
	r.barriers, r.draws, r.dispatches = 0, 0, 0
	clear(r.tables)
	return nil
}

// Close finalizes the recording.
func (r *Recorder) Close() error {
	r.gpu.mu.Lock()
	defer r.gpu.mu.Unlock()

	if !r.recording {
		return ErrNotRecording
	}
	r.recording = false
	r.closed = true
	return nil
}

// Destroy releases the recorder.
func (r *Recorder) Destroy() {
	r.gpu.mu.Lock()
	defer r.gpu.mu.Unlock()

	r.destroyed = true
}

// Table returns the region bound at slot in the current recording.
func (r *Recorder) Table(slot uint32) (descriptor.Region, bool) {
	r.gpu.mu.Lock()
	defer r.gpu.mu.Unlock()

	reg, ok := r.tables[slot]
	return reg, ok
}

// The recording methods below only count commands.

func (r *Recorder) Barriers(b []cmdlist.Barrier) {
	r.gpu.mu.Lock()
	r.barriers += len(b)
	r.gpu.mu.Unlock()
}

func (r *Recorder) ClearColor(cmdlist.Image, [4]float32) {}
func (r *Recorder) ClearDepthStencil(cmdlist.Image, float32, uint32) {}
func (r *Recorder) SetRenderTarget(cmdlist.RenderTarget) {}
func (r *Recorder) SetViewports([]cmdlist.Viewport) {}
func (r *Recorder) SetScissors([]cmdlist.Rect) {}
func (r *Recorder) SetPipeline(cmdlist.Pipeline) {}
func (r *Recorder) SetVertexBuffers(uint32, []cmdlist.VertexBuffer) {}
func (r *Recorder) SetIndexBuffer(cmdlist.Buffer, uint64, cmdlist.IndexFormat) {}

func (r *Recorder) SetDescriptorTable(slot uint32, reg descriptor.Region) {
	r.gpu.mu.Lock()
	defer r.gpu.mu.Unlock()

	if r.tables == nil {
		r.tables = make(map[uint32]descriptor.Region)
	}
	r.tables[slot] = reg
}

func (r *Recorder) Draw(uint32, uint32, uint32, uint32) {
	r.gpu.mu.Lock()
	r.draws++
	r.gpu.mu.Unlock()
}

func (r *Recorder) DrawIndexed(uint32, uint32, uint32, int32, uint32) {
	r.gpu.mu.Lock()
	r.draws++
	r.gpu.mu.Unlock()
}

func (r *Recorder) Dispatch(uint32, uint32, uint32) {
	r.gpu.mu.Lock()
	r.dispatches++
	r.gpu.mu.Unlock()
}

// Heap is simulated descriptor storage.
type Heap struct {
	gpu   *GPU
	typ   descriptor.HeapType
	slots []descriptor.Binding
}

// Slot returns the binding written at index i.
func (h *Heap) Slot(i uint32) descriptor.Binding {
	h.gpu.mu.Lock()
	defer h.gpu.mu.Unlock()

	return h.slots[i]
}

// Destroy releases the heap.
func (h *Heap) Destroy() {}

// CreateHeap allocates capacity descriptor slots.
func (g *GPU) CreateHeap(t descriptor.HeapType, capacity uint32) (descriptor.NativeHeap, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.checkLocked(); err != nil {
		return nil, err
	}
	g.stats.Heaps++
	return &Heap{gpu: g, typ: t, slots: make([]descriptor.Binding, capacity)}, nil
}

// WriteDescriptors copies bindings into consecutive slots.
func (g *GPU) WriteDescriptors(nh descriptor.NativeHeap, offset uint32, bindings []descriptor.Binding) error {
	h, ok := nh.(*Heap)
	if !ok {
		return fmt.Errorf("sim: foreign heap %T", nh)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if int(offset)+len(bindings) > len(h.slots) {
		return fmt.Errorf("sim: write [%d:%d] past heap capacity %d", offset, int(offset)+len(bindings), len(h.slots))
	}
	copy(h.slots[offset:], bindings)
	g.stats.DescriptorWrites++
	g.stats.Descriptors += len(bindings)
	return nil
}

// Buffer is simulated upload memory.
type Buffer struct {
	gpu       *GPU
	handle    uintptr
	data      []byte
	destroyed bool
}

// Bytes returns a copy of the buffer contents in [offset, offset+n).
func (b *Buffer) Bytes(offset, n uint64) []byte {
	b.gpu.mu.Lock()
	defer b.gpu.mu.Unlock()

	return append([]byte(nil), b.data[offset:offset+n]...)
}

// Write copies data to offset.
func (b *Buffer) Write(offset uint64, data []byte) error {
	b.gpu.mu.Lock()
	defer b.gpu.mu.Unlock()

	if offset+uint64(len(data)) > uint64(len(b.data)) {
		return fmt.Errorf("sim: write of %d bytes at %d past buffer size %d", len(data), offset, len(b.data))
	}
	copy(b.data[offset:], data)
	b.gpu.stats.BytesWritten += uint64(len(data))
	return nil
}

// Handle returns the buffer identity.
func (b *Buffer) Handle() uintptr { return b.handle }

// Destroy releases the buffer.
func (b *Buffer) Destroy() {
	b.gpu.mu.Lock()
	defer b.gpu.mu.Unlock()

	b.destroyed = true
}

// CreateBuffer allocates size bytes of upload memory.
func (g *GPU) CreateBuffer(size uint64) (cbuffer.NativeBuffer, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.checkLocked(); err != nil {
		return nil, err
	}
	g.stats.Buffers++
	return &Buffer{gpu: g, handle: g.newIDLocked(), data: make([]byte, size)}, nil
}

// Image is a simulated texture that tracks its usage state.
type Image struct {
	fence.Tracker

	mu    sync.Mutex
	name  string
	usage cmdlist.Usage
}

// NewImage returns an image in the given initial usage.
func NewImage(name string, u cmdlist.Usage) *Image {
	return &Image{name: name, usage: u}
}

// Name returns the debug name.
func (i *Image) Name() string { return i.name }

// Usage returns the current usage.
func (i *Image) Usage() cmdlist.Usage {
	i.mu.Lock()
	defer i.mu.Unlock()

	return i.usage
}

// SetUsage records a new usage.
func (i *Image) SetUsage(u cmdlist.Usage) {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.usage = u
}

// VertexBuffer is a simulated vertex or index buffer.
type VertexBuffer struct {
	fence.Tracker
}

// Pipeline is a simulated pipeline state object.
type Pipeline struct {
	compute bool
}

// NewPipeline returns a graphics or compute pipeline.
func NewPipeline(compute bool) *Pipeline { return &Pipeline{compute: compute} }

// Compute reports whether p is a compute pipeline.
func (p *Pipeline) Compute() bool { return p.compute }

var (
	_ cmdlist.Image    = (*Image)(nil)
	_ cmdlist.Buffer   = (*VertexBuffer)(nil)
	_ cmdlist.Pipeline = (*Pipeline)(nil)
)
