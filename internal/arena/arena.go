// Package arena provides a slot arena addressed by generational handles.
//
// Slots are recycled through a free list. Each slot carries a generation
// that is bumped on removal, so a handle to a recycled slot is detected in
// O(1) instead of aliasing the new occupant.
package arena

import "fmt"

// Handle identifies a value stored in an Arena.
// The zero Handle is never valid.
type Handle struct {
	index uint32
	gen   uint32
}

// Index returns the slot index of h.
func (h Handle) Index() uint32 { return h.index }

// Generation returns the slot generation h was issued for.
func (h Handle) Generation() uint32 { return h.gen }

// IsZero reports whether h is the zero Handle.
func (h Handle) IsZero() bool { return h.gen == 0 }

// String returns a compact "index:generation" form.
func (h Handle) String() string {
	return fmt.Sprintf("%d:%d", h.index, h.gen)
}

type slot[T any] struct {
	value T
	gen   uint32
	used  bool
}

// Arena stores values of type T behind generational handles.
//
// Arena is not safe for concurrent use; owners provide locking.
type Arena[T any] struct {
	slots []slot[T]
	free  []uint32
	live  int
}

// Insert stores v and returns its handle.
func (a *Arena[T]) Insert(v T) Handle {
	var idx uint32
	if n := len(a.free); n > 0 {
		idx = a.free[n-1]
		a.free = a.free[:n-1]
	} else {
		idx = uint32(len(a.slots)) //nolint:gosec // G115: slot count is bounded by pool sizes
		a.slots = append(a.slots, slot[T]{})
	}

	s := &a.slots[idx]
	// Generations start at 1 so the zero Handle never resolves.
	s.gen++
	if s.gen == 0 {
		s.gen = 1
	}
	s.value = v
	s.used = true
	a.live++
	return Handle{index: idx, gen: s.gen}
}

// Get returns the value for h and whether h is still valid.
func (a *Arena[T]) Get(h Handle) (T, bool) {
	if !a.Valid(h) {
		var zero T
		return zero, false
	}
	return a.slots[h.index].value, true
}

// Valid reports whether h refers to a live value.
func (a *Arena[T]) Valid(h Handle) bool {
	if h.IsZero() || int(h.index) >= len(a.slots) {
		return false
	}
	s := &a.slots[h.index]
	return s.used && s.gen == h.gen
}

// Remove deletes the value for h and returns it.
// The slot's generation is retired so h and its copies stop resolving.
func (a *Arena[T]) Remove(h Handle) (T, bool) {
	var zero T
	if !a.Valid(h) {
		return zero, false
	}
	s := &a.slots[h.index]
	v := s.value
	s.value = zero
	s.used = false
	a.free = append(a.free, h.index)
	a.live--
	return v, true
}

// Len returns the number of live values.
func (a *Arena[T]) Len() int { return a.live }

// Range calls fn for every live value in slot order until fn returns false.
func (a *Arena[T]) Range(fn func(Handle, T) bool) {
	for i := range a.slots {
		s := &a.slots[i]
		if !s.used {
			continue
		}
		if !fn(Handle{index: uint32(i), gen: s.gen}, s.value) { //nolint:gosec // G115: see Insert
			return
		}
	}
}
