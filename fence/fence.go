package fence

import (
	"errors"
	"fmt"
	"sync/atomic"
)

// ErrSignal is returned when the queue refuses to enqueue a signal.
var ErrSignal = errors.New("fence: signal failed")

// Primitive is the backend timeline object a Fence drives.
//
// The retired counter behind a Primitive never decreases.
type Primitive interface {
	// Reached reports whether the GPU has retired value (non-blocking).
	Reached(value uint64) bool

	// WaitFor blocks until value has retired.
	WaitFor(value uint64)

	// Destroy releases the backend object.
	Destroy()
}

// Signaler enqueues a GPU-side signal of a primitive.
// Hardware queues implement it.
type Signaler interface {
	Signal(p Primitive, value uint64) error
}

// Fence is a monotonically increasing CPU/GPU synchronization counter.
//
// Thread Safety: the target value is atomic; Signal, Completed and Wait may
// be called from any goroutine.
type Fence struct {
	prim   Primitive
	target atomic.Uint64
}

// New creates a fence over p. p must not be nil.
func New(p Primitive) *Fence {
	if p == nil {
		panic("fence: nil primitive")
	}
	return &Fence{prim: p}
}

// Primitive returns the backend primitive.
func (f *Fence) Primitive() Primitive { return f.prim }

// Value returns the last target value handed out.
func (f *Fence) Value() uint64 { return f.target.Load() }

// IncrementValue atomically advances the target and returns the new value.
func (f *Fence) IncrementValue() uint64 { return f.target.Add(1) }

// Signal picks the next target value and asks q to signal it after all
// previously submitted work. It returns the signalled value.
//
// On failure the target is rolled back so Wait does not block on a value
// that will never be signalled.
func (f *Fence) Signal(q Signaler) (uint64, error) {
	v := f.target.Add(1)
	if err := q.Signal(f.prim, v); err != nil {
		f.target.CompareAndSwap(v, v-1)
		return 0, fmt.Errorf("%w: value %d: %w", ErrSignal, v, err)
	}
	return v, nil
}

// Completed reports whether the last signalled value has retired.
// A fence that was never signalled is complete.
func (f *Fence) Completed() bool {
	v := f.target.Load()
	return v == 0 || f.prim.Reached(v)
}

// CompletedValue reports whether the retired counter is greater than v.
func (f *Fence) CompletedValue(v uint64) bool {
	return f.prim.Reached(v + 1)
}

// Wait blocks until the last signalled value has retired.
func (f *Fence) Wait() {
	v := f.target.Load()
	if v == 0 || f.prim.Reached(v) {
		return
	}
	f.prim.WaitFor(v)
}

// Destroy waits for outstanding work and releases the primitive.
func (f *Fence) Destroy() {
	f.Wait()
	f.prim.Destroy()
}
