package cmdlist

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/gogpu/gpuframe/fence"
	"github.com/gogpu/gpuframe/internal/arena"
	"github.com/gogpu/gpuframe/internal/logging"
)

// DefaultBufferCount is the default number of swapchain images, and hence
// of in-flight buckets.
const DefaultBufferCount = 3

// ManagerOptions configures a Manager.
type ManagerOptions struct {
	// BufferCount is the number of swapchain images (0 uses
	// DefaultBufferCount). Sync grows the bucket set if it sees a larger
	// index.
	BufferCount int

	// SharedAllocators makes every list of a type record into one
	// allocator, reset only while no list of that type is outstanding.
	SharedAllocators bool

	// Logger receives pool diagnostics. Nil is silent.
	Logger *slog.Logger
}

// Manager pools command lists per type and tracks in-flight lists per
// swapchain image index.
//
// Thread Safety: Manager is safe for concurrent use. Blocking waits run
// without the lock held.
type Manager struct {
	mu    sync.Mutex
	dev   Device
	queue Queue
	opts  ManagerOptions
	log   *slog.Logger

	lists   arena.Arena[*CommandList]
	free    [typeCount][]*CommandList
	used    [][]*CommandList
	current uint32

	shared      [typeCount]Allocator
	outstanding [typeCount]int

	created  int
	executed uint64
	recycled uint64
}

// NewManager creates a command list manager.
func NewManager(dev Device, q Queue, opts ManagerOptions) *Manager {
	if opts.BufferCount <= 0 {
		opts.BufferCount = DefaultBufferCount
	}
	return &Manager{
		dev:   dev,
		queue: q,
		opts:  opts,
		log:   logging.OrNop(opts.Logger),
		used:  make([][]*CommandList, opts.BufferCount),
	}
}

// Acquire returns a list of type t in state Initial or Finish, reusing a
// pooled one when available. It never blocks. Backend creation failures are
// logged and returned wrapped in ErrCreateFailed.
func (m *Manager) Acquire(t Type) (*CommandList, error) {
	if !t.valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidType, t)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if n := len(m.free[t]); n > 0 {
		l := m.free[t][n-1]
		m.free[t][n-1] = nil
		m.free[t] = m.free[t][:n-1]
		m.outstanding[t]++
		return l, nil
	}

	l, err := m.createLocked(t)
	if err != nil {
		m.log.Error("cmdlist: create failed", "type", t.String(), "err", err)
		return nil, fmt.Errorf("%w: %s: %w", ErrCreateFailed, t, err)
	}
	m.outstanding[t]++
	return l, nil
}

func (m *Manager) createLocked(t Type) (*CommandList, error) {
	prim, err := m.dev.CreateFence()
	if err != nil {
		return nil, fmt.Errorf("fence: %w", err)
	}
	f := fence.New(prim)

	alloc, own := m.shared[t], false
	if !m.opts.SharedAllocators || alloc == nil {
		alloc, err = m.dev.CreateAllocator(t)
		if err != nil {
			prim.Destroy()
			return nil, fmt.Errorf("allocator: %w", err)
		}
		if m.opts.SharedAllocators {
			m.shared[t] = alloc
		} else {
			own = true
		}
	}

	rec, err := m.dev.CreateRecorder(t, alloc)
	if err != nil {
		prim.Destroy()
		if own {
			alloc.Destroy()
		}
		return nil, fmt.Errorf("recorder: %w", err)
	}

	l := newCommandList(t, rec, alloc, own, f)
	l.handle = m.lists.Insert(l)
	m.created++
	m.log.Debug("cmdlist: list created", "type", t.String(), "handle", l.handle.String(), "shared", !own)
	return l, nil
}

// Lookup resolves a handle issued by this manager.
func (m *Manager) Lookup(h arena.Handle) (*CommandList, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.lists.Get(h)
}

// Execute submits a Closed list, records it in the current bucket and
// signals its fence. With wait set it blocks until the list retires and
// recycles it before returning.
func (m *Manager) Execute(l *CommandList, wait bool) error {
	m.mu.Lock()
	if owned, ok := m.lists.Get(l.handle); !ok || owned != l {
		m.mu.Unlock()
		return ErrForeignList
	}
	if l.state != Closed {
		m.mu.Unlock()
		return fmt.Errorf("%w: execute in state %s", ErrNotClosed, l.state)
	}
	if err := m.queue.Submit(l.rec); err != nil {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s list: %w", ErrSubmit, l.typ, err)
	}

	value, err := l.fence.Signal(m.queue)
	l.markExecuted(m.current, value)
	m.used[m.current] = append(m.used[m.current], l)
	m.executed++
	m.mu.Unlock()

	if err != nil {
		// The work is queued but unguarded; the list is recycled on the
		// next Update as if it had retired.
		m.log.Error("cmdlist: fence signal failed", "type", l.typ.String(), "err", err)
		return err
	}

	if wait {
		l.fence.Wait()
		m.mu.Lock()
		m.recycleOneLocked(l, value)
		m.mu.Unlock()
	}
	return nil
}

// Update moves lists whose fence retired from the current bucket (or every
// bucket when all is set) back to their free queues. It returns the number
// of lists recycled.
func (m *Manager) Update(all bool) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	if all {
		for i := range m.used {
			n += m.sweepLocked(uint32(i)) //nolint:gosec // G115: bucket count is small
		}
	} else {
		n = m.sweepLocked(m.current)
	}
	if n > 0 {
		m.resetSharedLocked()
		m.log.Debug("cmdlist: lists recycled", "count", n, "all", all)
	}
	return n
}

func (m *Manager) sweepLocked(bucket uint32) int {
	kept := m.used[bucket][:0]
	n := 0
	for _, l := range m.used[bucket] {
		if !l.fence.Completed() {
			kept = append(kept, l)
			continue
		}
		m.retireLocked(l)
		n++
	}
	clear(m.used[bucket][len(kept):])
	m.used[bucket] = kept
	return n
}

// recycleOneLocked removes l from its bucket if it is still the submission
// signalled with value and that value has retired. A list recycled by Update
// and executed again in the meantime is left alone.
func (m *Manager) recycleOneLocked(l *CommandList, value uint64) {
	if l.state != Execute || l.value != value || !l.fence.Completed() {
		return
	}
	b := m.used[l.bucket]
	for i, x := range b {
		if x != l {
			continue
		}
		m.used[l.bucket] = append(b[:i], b[i+1:]...)
		m.retireLocked(l)
		m.resetSharedLocked()
		return
	}
}

func (m *Manager) retireLocked(l *CommandList) {
	l.finish()
	m.free[l.typ] = append(m.free[l.typ], l)
	m.outstanding[l.typ]--
	m.recycled++
}

// resetSharedLocked resets shared allocators with no outstanding lists.
func (m *Manager) resetSharedLocked() {
	for _, t := range Types {
		a := m.shared[t]
		if a == nil || m.outstanding[t] != 0 {
			continue
		}
		if err := a.Reset(); err != nil {
			m.log.Warn("cmdlist: shared allocator reset failed", "type", t.String(), "err", err)
		}
	}
}

// Release returns a list that will not be executed to its free queue.
// Lists in Execute state are left to Update.
func (m *Manager) Release(l *CommandList) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if owned, ok := m.lists.Get(l.handle); !ok || owned != l {
		return ErrForeignList
	}
	switch l.state {
	case Execute:
		return fmt.Errorf("%w: release in state %s", ErrWrongState, l.state)
	case ReadyToRecord, Closed:
		if l.state == ReadyToRecord {
			// Leave the native list in a closed, reusable state.
			if err := l.rec.Close(); err != nil {
				m.log.Warn("cmdlist: close on release failed", "err", err)
			}
		}
		m.retireLocked(l)
		return nil
	default:
		for _, x := range m.free[l.typ] {
			if x == l {
				return nil
			}
		}
		m.free[l.typ] = append(m.free[l.typ], l)
		m.outstanding[l.typ]--
		return nil
	}
}

// Sync selects the bucket for swapchain image index and, with wait set,
// blocks until every list still in flight in it has retired.
func (m *Manager) Sync(index uint32, wait bool) {
	m.mu.Lock()
	for int(index) >= len(m.used) {
		m.used = append(m.used, nil)
	}
	m.current = index
	var pending []*CommandList
	if wait {
		pending = append(pending, m.used[index]...)
	}
	m.mu.Unlock()

	for _, l := range pending {
		l.fence.Wait()
	}
}

// Current returns the selected bucket index.
func (m *Manager) Current() uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.current
}

// WaitIdle blocks until every submitted list has retired, then recycles
// them all.
func (m *Manager) WaitIdle() {
	m.mu.Lock()
	var pending []*CommandList
	for _, b := range m.used {
		pending = append(pending, b...)
	}
	m.mu.Unlock()

	for _, l := range pending {
		l.fence.Wait()
	}
	m.Update(true)
}

// WaitAndClear waits for all outstanding work and destroys every list the
// manager created. The manager stays usable and starts empty.
func (m *Manager) WaitAndClear() {
	m.WaitIdle()

	m.mu.Lock()
	defer m.mu.Unlock()

	var all []*CommandList
	m.lists.Range(func(_ arena.Handle, l *CommandList) bool {
		all = append(all, l)
		return true
	})
	for _, l := range all {
		switch l.state {
		case ReadyToRecord:
			if err := l.rec.Close(); err != nil {
				m.log.Warn("cmdlist: close on clear failed", "err", err)
			}
			l.finish()
		case Closed:
			l.finish()
		}
		if err := l.destroy(); err != nil {
			m.log.Error("cmdlist: destroy failed", "handle", l.handle.String(), "err", err)
			continue
		}
		m.lists.Remove(l.handle)
	}
	for _, t := range Types {
		clear(m.free[t])
		m.free[t] = m.free[t][:0]
		m.outstanding[t] = 0
		if a := m.shared[t]; a != nil {
			a.Destroy()
			m.shared[t] = nil
		}
	}
	for i := range m.used {
		m.used[i] = nil
	}
	m.log.Debug("cmdlist: manager cleared", "destroyed", len(all))
}

// ManagerStats describes the pool state.
type ManagerStats struct {
	Free     [typeCount]int
	InFlight []int
	Live     int
	Created  int
	Executed uint64
	Recycled uint64
}

// FreeOf returns the number of pooled lists of type t.
func (s ManagerStats) FreeOf(t Type) int {
	if !t.valid() {
		return 0
	}
	return s.Free[t]
}

// TotalInFlight returns the number of submitted, unretired lists.
func (s ManagerStats) TotalInFlight() int {
	n := 0
	for _, c := range s.InFlight {
		n += c
	}
	return n
}

// String returns a one-line summary.
func (s ManagerStats) String() string {
	return fmt.Sprintf("live=%d created=%d executed=%d recycled=%d inflight=%v",
		s.Live, s.Created, s.Executed, s.Recycled, s.InFlight)
}

// Stats returns a snapshot of the pool state.
func (m *Manager) Stats() ManagerStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := ManagerStats{
		InFlight: make([]int, len(m.used)),
		Live:     m.lists.Len(),
		Created:  m.created,
		Executed: m.executed,
		Recycled: m.recycled,
	}
	for _, t := range Types {
		s.Free[t] = len(m.free[t])
	}
	for i, b := range m.used {
		s.InFlight[i] = len(b)
	}
	return s
}
