package native

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/gpuframe/cmdlist"
	"github.com/gogpu/gpuframe/fence"
)

// fenceWaitSlice is how long one Device.Wait call may block before the
// wait is logged and retried.
const fenceWaitSlice = 5 * time.Second

// primitive is a HAL timeline fence. retired caches the highest value
// observed as complete so polling rarely reaches the driver.
type primitive struct {
	b       *Backend
	fence   hal.Fence
	retired atomic.Uint64
}

// CreateFence creates a timeline fence.
func (b *Backend) CreateFence() (fence.Primitive, error) {
	f, err := b.device.CreateFence()
	if err != nil {
		return nil, fmt.Errorf("native: create fence: %w", err)
	}
	return &primitive{b: b, fence: f}, nil
}

func (p *primitive) observe(v uint64) {
	for {
		cur := p.retired.Load()
		if cur >= v || p.retired.CompareAndSwap(cur, v) {
			return
		}
	}
}

// Reached polls the fence without blocking.
func (p *primitive) Reached(v uint64) bool {
	if p.retired.Load() >= v {
		return true
	}
	ok, err := p.b.device.Wait(p.fence, v, 0)
	if err != nil {
		p.b.log.Error("native: fence poll failed", "value", v, "err", err)
		return false
	}
	if ok {
		p.observe(v)
	}
	return ok
}

// WaitFor blocks until v retires. A driver error is treated as device loss:
// it is logged and the wait returns.
func (p *primitive) WaitFor(v uint64) {
	for p.retired.Load() < v {
		ok, err := p.b.device.Wait(p.fence, v, fenceWaitSlice)
		if err != nil {
			p.b.log.Error("native: fence wait failed, device lost", "value", v, "err", err)
			return
		}
		if ok {
			p.observe(v)
			return
		}
		p.b.log.Warn("native: fence wait still pending", "value", v, "waited", fenceWaitSlice)
	}
}

// Destroy releases the fence.
func (p *primitive) Destroy() {
	p.b.device.DestroyFence(p.fence)
}

// directQueue adapts the backend to cmdlist.Queue. Submitted command buffers are
// held until the fence signal that follows them, so each Execute maps to a
// single Queue.Submit.
type directQueue Backend

// Submit stages the command buffer recorded by r.
func (q *directQueue) Submit(r cmdlist.Recorder) error {
	rec, ok := r.(*recorder)
	if !ok || rec.b != (*Backend)(q) {
		return fmt.Errorf("%w: recorder %T", ErrForeignObject, r)
	}
	if !rec.closed {
		return ErrNotEncoding
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	q.pending = append(q.pending, rec.cmdBuf)
	return nil
}

// Signal submits the staged command buffers and signals p to value after
// them.
func (q *directQueue) Signal(p fence.Primitive, value uint64) error {
	prim, ok := p.(*primitive)
	if !ok || prim.b != (*Backend)(q) {
		return fmt.Errorf("%w: fence %T", ErrForeignObject, p)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	cmds := q.pending
	q.pending = nil
	if err := q.queue.Submit(cmds, prim.fence, value); err != nil {
		return fmt.Errorf("native: submit %d command buffers: %w", len(cmds), err)
	}
	return nil
}
