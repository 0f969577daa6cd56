package cmdlist

import (
	"errors"
	"sync"

	"github.com/gogpu/gpuframe/descriptor"
	"github.com/gogpu/gpuframe/fence"
)

// timeline is a fence primitive whose GPU side is advanced by the test.
// WaitFor catches the GPU up instantly, standing in for real completion.
// When gate is set, WaitFor announces itself on entered and blocks until
// gate is closed.
type timeline struct {
	mu        sync.Mutex
	retired   uint64
	signalled uint64
	destroyed bool

	entered chan struct{}
	gate    chan struct{}
}

func (p *timeline) Reached(v uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.retired >= v
}

func (p *timeline) WaitFor(v uint64) {
	if p.gate != nil {
		select {
		case p.entered <- struct{}{}:
		default:
		}
		<-p.gate
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if v > p.retired {
		p.retired = v
	}
}

func (p *timeline) Destroy() {
	p.mu.Lock()
	p.destroyed = true
	p.mu.Unlock()
}

func (p *timeline) retireAll() {
	p.mu.Lock()
	p.retired = p.signalled
	p.mu.Unlock()
}

type fakeAllocator struct {
	resets    int
	destroyed bool
}

func (a *fakeAllocator) Reset() error { a.resets++; return nil }
func (a *fakeAllocator) Destroy()     { a.destroyed = true }

type fakeRecorder struct {
	typ       Type
	alloc     Allocator
	ops       []string
	barriers  [][]Barrier
	resets    int
	closes    int
	destroyed bool
}

func (r *fakeRecorder) Reset(a Allocator) error {
	r.resets++
	r.alloc = a
	r.ops = r.ops[:0]
	r.barriers = nil
	return nil
}
func (r *fakeRecorder) Close() error { r.closes++; return nil }
func (r *fakeRecorder) Destroy()     { r.destroyed = true }
func (r *fakeRecorder) Barriers(b []Barrier) {
	r.barriers = append(r.barriers, b)
	r.ops = append(r.ops, "barriers")
}
func (r *fakeRecorder) ClearColor(Image, [4]float32) { r.ops = append(r.ops, "clear") }
func (r *fakeRecorder) ClearDepthStencil(Image, float32, uint32) {
	r.ops = append(r.ops, "clear-ds")
}
func (r *fakeRecorder) SetRenderTarget(RenderTarget) { r.ops = append(r.ops, "rt") }
func (r *fakeRecorder) SetViewports([]Viewport)      { r.ops = append(r.ops, "viewport") }
func (r *fakeRecorder) SetScissors([]Rect)           { r.ops = append(r.ops, "scissor") }
func (r *fakeRecorder) SetPipeline(Pipeline)         { r.ops = append(r.ops, "pipeline") }
func (r *fakeRecorder) SetDescriptorTable(uint32, descriptor.Region) {
	r.ops = append(r.ops, "table")
}
func (r *fakeRecorder) SetVertexBuffers(uint32, []VertexBuffer) { r.ops = append(r.ops, "vertex") }
func (r *fakeRecorder) SetIndexBuffer(Buffer, uint64, IndexFormat) {
	r.ops = append(r.ops, "index")
}
func (r *fakeRecorder) Draw(uint32, uint32, uint32, uint32) { r.ops = append(r.ops, "draw") }
func (r *fakeRecorder) DrawIndexed(uint32, uint32, uint32, int32, uint32) {
	r.ops = append(r.ops, "draw-indexed")
}
func (r *fakeRecorder) Dispatch(uint32, uint32, uint32) { r.ops = append(r.ops, "dispatch") }

type fakeDevice struct {
	prims      []*timeline
	allocs     []*fakeAllocator
	recorders  []*fakeRecorder
	failFence  bool
	failRecord bool
}

var errFake = errors.New("fake: out of memory")

func (d *fakeDevice) CreateFence() (fence.Primitive, error) {
	if d.failFence {
		return nil, errFake
	}
	p := &timeline{}
	d.prims = append(d.prims, p)
	return p, nil
}

func (d *fakeDevice) CreateAllocator(Type) (Allocator, error) {
	a := &fakeAllocator{}
	d.allocs = append(d.allocs, a)
	return a, nil
}

func (d *fakeDevice) CreateRecorder(t Type, a Allocator) (Recorder, error) {
	if d.failRecord {
		return nil, errFake
	}
	r := &fakeRecorder{typ: t, alloc: a}
	d.recorders = append(d.recorders, r)
	return r, nil
}

// retireAll completes every signalled value on every fence.
func (d *fakeDevice) retireAll() {
	for _, p := range d.prims {
		p.retireAll()
	}
}

type fakeQueue struct {
	submitted []Recorder
	submitErr error
}

func (q *fakeQueue) Submit(r Recorder) error {
	if q.submitErr != nil {
		return q.submitErr
	}
	q.submitted = append(q.submitted, r)
	return nil
}

func (q *fakeQueue) Signal(p fence.Primitive, v uint64) error {
	tl := p.(*timeline)
	tl.mu.Lock()
	tl.signalled = v
	tl.mu.Unlock()
	return nil
}

type fakeImage struct {
	fence.Tracker
	usage Usage
}

func (i *fakeImage) Usage() Usage     { return i.usage }
func (i *fakeImage) SetUsage(u Usage) { i.usage = u }

type fakeBuffer struct {
	fence.Tracker
}

type fakePipeline struct{ compute bool }

func (p fakePipeline) Compute() bool { return p.compute }
