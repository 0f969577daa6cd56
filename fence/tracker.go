package fence

import "sync"

// Resource is anything whose memory must not be reused or freed while GPU
// work guarded by one of its fences is outstanding.
//
// *Tracker implements Resource and is meant to be embedded.
type Resource interface {
	// AttachFence adds f and reports whether it was not attached before.
	AttachFence(f *Fence) bool

	// DetachFence removes f and reports whether it was attached.
	// It never blocks.
	DetachFence(f *Fence) bool

	// InUse reports whether any fence is attached.
	InUse() bool

	// WaitToComplete blocks on every attached fence, then detaches them all.
	WaitToComplete()
}

// Tracker is the fence set behind a Resource. The zero value is ready to use.
//
// Thread Safety: Tracker is safe for concurrent use. WaitToComplete does not
// hold the lock while blocking.
type Tracker struct {
	mu     sync.Mutex
	fences map[*Fence]struct{}
}

var _ Resource = (*Tracker)(nil)

// AttachFence adds f to the set.
func (t *Tracker) AttachFence(f *Fence) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.fences == nil {
		t.fences = make(map[*Fence]struct{}, 2)
	}
	if _, ok := t.fences[f]; ok {
		return false
	}
	t.fences[f] = struct{}{}
	return true
}

// DetachFence removes f from the set.
func (t *Tracker) DetachFence(f *Fence) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.fences[f]; !ok {
		return false
	}
	delete(t.fences, f)
	return true
}

// InUse reports whether any fence protects the resource.
func (t *Tracker) InUse() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return len(t.fences) > 0
}

// Fences returns the number of attached fences.
func (t *Tracker) Fences() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return len(t.fences)
}

// WaitToComplete waits on every attached fence and clears the set.
// Only teardown paths should call it.
//
// A fence attached by a list that is still recording has not been signalled
// for that work yet, so the wait returns at once and the fence is detached.
// Callers must close and execute, or release, every recording list that
// references the resource first.
func (t *Tracker) WaitToComplete() {
	t.mu.Lock()
	pending := make([]*Fence, 0, len(t.fences))
	for f := range t.fences {
		pending = append(pending, f)
	}
	t.mu.Unlock()

	for _, f := range pending {
		f.Wait()
	}

	t.mu.Lock()
	for _, f := range pending {
		delete(t.fences, f)
	}
	t.mu.Unlock()
}
