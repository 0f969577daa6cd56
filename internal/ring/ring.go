// Package ring implements the current/used/free block pool behind the
// descriptor heap and constant buffer allocators.
//
// Allocation bumps a cursor inside the current block. When the request does
// not fit, the current block is retired to the used list and a free block
// (or a newly created one) takes its place. Reclaim moves used blocks whose
// fences have all retired back to the free list, so recycling is driven
// purely by fence completion.
//
//	          Allocate (no room)            Reclaim (!InUse)
//	current ─────────────────────▶ used ─────────────────────▶ free
//	   ▲                                                          │
//	   └──────────────── Allocate (fits) ◀────────────────────────┘
package ring

import "fmt"

// Block is a fixed-capacity allocation unit.
type Block interface {
	comparable

	// Capacity is the block size in allocation units (bytes or slots).
	Capacity() uint64

	// InUse reports whether GPU work may still reference the block.
	InUse() bool
}

// Stats describes the pool occupancy.
type Stats struct {
	HasCurrent bool
	Cursor     uint64
	Used       int
	Free       int
	Created    int
}

// String returns a one-line summary.
func (s Stats) String() string {
	return fmt.Sprintf("current=%v cursor=%d used=%d free=%d created=%d",
		s.HasCurrent, s.Cursor, s.Used, s.Free, s.Created)
}

// Pool is a ring allocator over blocks of type B.
//
// Pool is not safe for concurrent use; owners provide locking.
type Pool[B Block] struct {
	create    func(capacity uint64) (B, error)
	blockSize uint64

	current    B
	hasCurrent bool
	cursor     uint64

	used    []B
	free    []B
	created int
}

// New creates a pool that creates blocks of at least blockSize units.
func New[B Block](blockSize uint64, create func(capacity uint64) (B, error)) *Pool[B] {
	return &Pool[B]{create: create, blockSize: blockSize}
}

// BlockSize returns the default block capacity.
func (p *Pool[B]) BlockSize() uint64 { return p.blockSize }

// Allocate returns a block and the offset of size free units in it.
// A request larger than the block size gets a block grown to fit.
func (p *Pool[B]) Allocate(size uint64) (B, uint64, error) {
	if p.hasCurrent && p.cursor+size <= p.current.Capacity() {
		off := p.cursor
		p.cursor += size
		return p.current, off, nil
	}

	p.Retire()

	blk, ok := p.takeFree(size)
	if !ok {
		var err error
		blk, err = p.create(max(p.blockSize, size))
		if err != nil {
			var zero B
			return zero, 0, err
		}
		p.created++
	}

	p.current = blk
	p.hasCurrent = true
	p.cursor = size
	return blk, 0, nil
}

// Retire moves the current block, if any, to the used list.
func (p *Pool[B]) Retire() {
	if !p.hasCurrent {
		return
	}
	p.used = append(p.used, p.current)
	var zero B
	p.current = zero
	p.hasCurrent = false
	p.cursor = 0
}

// Reclaim retires the current block, then moves every used block that is
// no longer in use to the free list, calling onFree (if non-nil) for each
// before it becomes allocatable again. It returns the number reclaimed.
func (p *Pool[B]) Reclaim(onFree func(B)) int {
	p.Retire()

	kept := p.used[:0]
	n := 0
	for _, b := range p.used {
		if b.InUse() {
			kept = append(kept, b)
			continue
		}
		if onFree != nil {
			onFree(b)
		}
		p.free = append(p.free, b)
		n++
	}
	clear(p.used[len(kept):])
	p.used = kept
	return n
}

// DrainFree removes every free block, passing each to fn.
func (p *Pool[B]) DrainFree(fn func(B)) {
	for _, b := range p.free {
		fn(b)
	}
	clear(p.free)
	p.free = p.free[:0]
}

// Drain removes every block the pool holds, passing each to fn.
// The caller guarantees the GPU is idle.
func (p *Pool[B]) Drain(fn func(B)) {
	p.Retire()
	for _, b := range p.used {
		fn(b)
	}
	clear(p.used)
	p.used = p.used[:0]
	p.DrainFree(fn)
}

// Stats returns the pool occupancy.
func (p *Pool[B]) Stats() Stats {
	return Stats{
		HasCurrent: p.hasCurrent,
		Cursor:     p.cursor,
		Used:       len(p.used),
		Free:       len(p.free),
		Created:    p.created,
	}
}

// takeFree pops the oldest free block with room for size units.
func (p *Pool[B]) takeFree(size uint64) (B, bool) {
	for i, b := range p.free {
		if b.Capacity() < size {
			continue
		}
		copy(p.free[i:], p.free[i+1:])
		var zero B
		p.free[len(p.free)-1] = zero
		p.free = p.free[:len(p.free)-1]
		return b, true
	}
	var zero B
	return zero, false
}
