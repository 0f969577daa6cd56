package descriptor

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gogpu/gpuframe/internal/logging"
	"github.com/gogpu/gpuframe/internal/ring"
)

// Descriptor allocation errors.
var (
	// ErrInvalidHeapType is returned for an unknown HeapType.
	ErrInvalidHeapType = errors.New("descriptor: invalid heap type")

	// ErrEmptyRegion is returned when zero slots are requested.
	ErrEmptyRegion = errors.New("descriptor: empty region")

	// ErrRegionTooLarge is returned when a request exceeds the heap capacity.
	ErrRegionTooLarge = errors.New("descriptor: region larger than heap capacity")

	// ErrTooManyBindings is returned when a table exceeds MaxTableBindings.
	ErrTooManyBindings = errors.New("descriptor: too many bindings in table")

	// ErrCreateHeap wraps backend heap creation failures.
	ErrCreateHeap = errors.New("descriptor: create heap failed")

	// ErrWrite wraps backend descriptor write failures.
	ErrWrite = errors.New("descriptor: write failed")
)

// DefaultCacheLimit is the default number of content hashes the table
// cache keeps before evicting the least recently used.
const DefaultCacheLimit = 4096

// Device is the backend surface the heap manager needs.
type Device interface {
	// CreateHeap allocates native storage for capacity descriptors.
	CreateHeap(t HeapType, capacity uint32) (NativeHeap, error)

	// WriteDescriptors writes bindings into consecutive slots from offset.
	WriteDescriptors(h NativeHeap, offset uint32, bindings []Binding) error
}

// Options configures a HeapManager.
type Options struct {
	// Capacities per heap type. Zero fields use the defaults.
	Capacities Capacities

	// CacheLimit bounds the table cache (0 uses DefaultCacheLimit,
	// negative disables the bound).
	CacheLimit int

	// Logger receives allocation diagnostics. Nil is silent.
	Logger *slog.Logger
}

// HeapManager hands out descriptor regions from per-type heap rings and
// caches written tables by content.
type HeapManager struct {
	mu     sync.Mutex
	dev    Device
	caps   Capacities
	pools  [heapTypeCount]*ring.Pool[*Heap]
	tables *tableCache
	log    *slog.Logger

	nextID uint64
	writes uint64
	hits   uint64
	misses uint64
	purged uint64
}

// NewHeapManager creates a heap manager over dev.
func NewHeapManager(dev Device, opts Options) *HeapManager {
	limit := opts.CacheLimit
	switch {
	case limit == 0:
		limit = DefaultCacheLimit
	case limit < 0:
		limit = 0
	}

	m := &HeapManager{
		dev:    dev,
		caps:   opts.Capacities,
		tables: newTableCache(limit),
		log:    logging.OrNop(opts.Logger),
	}
	for _, t := range HeapTypes {
		m.pools[t] = ring.New(uint64(m.caps.Of(t)), m.heapCreator(t))
	}
	return m
}

// heapCreator returns the ring creation callback for heaps of type t.
// It runs with m.mu held.
func (m *HeapManager) heapCreator(t HeapType) func(uint64) (*Heap, error) {
	return func(capacity uint64) (*Heap, error) {
		slots := uint32(capacity) //nolint:gosec // G115: capacity comes from Capacities (uint32)
		native, err := m.dev.CreateHeap(t, slots)
		if err != nil {
			m.log.Error("descriptor: heap creation failed",
				"type", t.String(), "capacity", slots, "err", err)
			return nil, fmt.Errorf("%w: %s x%d: %w", ErrCreateHeap, t, slots, err)
		}
		m.nextID++
		m.log.Debug("descriptor: heap created", "type", t.String(), "id", m.nextID, "capacity", slots)
		return &Heap{id: m.nextID, typ: t, capacity: slots, native: native}, nil
	}
}

// Capacity returns the slot count of heaps of type t.
func (m *HeapManager) Capacity(t HeapType) uint32 { return m.caps.Of(t) }

// AcquireRegion reserves count consecutive slots in a heap of type t.
// It never blocks.
func (m *HeapManager) AcquireRegion(t HeapType, count uint32) (Region, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.acquireLocked(t, count)
}

func (m *HeapManager) acquireLocked(t HeapType, count uint32) (Region, error) {
	if !t.valid() {
		return Region{}, fmt.Errorf("%w: %d", ErrInvalidHeapType, t)
	}
	if count == 0 {
		return Region{}, ErrEmptyRegion
	}
	if c := m.caps.Of(t); count > c {
		return Region{}, fmt.Errorf("%w: %d > %d (%s)", ErrRegionTooLarge, count, c, t)
	}

	heap, off, err := m.pools[t].Allocate(uint64(count))
	if err != nil {
		return Region{}, err
	}
	return Region{Heap: heap, Offset: uint32(off), Count: count}, nil //nolint:gosec // G115: off < capacity
}

// Lookup returns the region a table with identical content was written to.
// Tables that could never be inserted (empty or over MaxTableBindings) miss.
func (m *HeapManager) Lookup(t HeapType, bindings []Binding) (Region, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(bindings) == 0 || len(bindings) > MaxTableBindings {
		m.misses++
		return Region{}, false
	}
	r, ok := m.tables.lookup(t, bindings)
	if ok {
		m.hits++
	} else {
		m.misses++
	}
	return r, ok
}

// Insert records that bindings were written to r.
func (m *HeapManager) Insert(t HeapType, bindings []Binding, r Region) {
	if r.IsZero() || len(bindings) == 0 || len(bindings) > MaxTableBindings {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.tables.insert(t, bindings, r)
}

// AcquireTable returns a region holding bindings. Identical content seen
// earlier in a still-live heap is reused without writing; otherwise a new
// region is acquired, written once and cached.
func (m *HeapManager) AcquireTable(t HeapType, bindings []Binding) (Region, error) {
	if len(bindings) == 0 {
		return Region{}, ErrEmptyRegion
	}
	if len(bindings) > MaxTableBindings {
		return Region{}, fmt.Errorf("%w: %d > %d", ErrTooManyBindings, len(bindings), MaxTableBindings)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if r, ok := m.tables.lookup(t, bindings); ok {
		m.hits++
		return r, nil
	}
	m.misses++

	r, err := m.acquireLocked(t, uint32(len(bindings))) //nolint:gosec // G115: bounded by MaxTableBindings
	if err != nil {
		return Region{}, err
	}
	if err := m.dev.WriteDescriptors(r.Heap.native, r.Offset, bindings); err != nil {
		return Region{}, fmt.Errorf("%w: %s: %w", ErrWrite, r, err)
	}
	m.writes++
	m.tables.insert(t, bindings, r)
	return r, nil
}

// UpdateRegions retires every current heap and returns heaps no longer
// referenced by in-flight work to the free lists, purging their cached
// tables first. It returns the number of heaps reclaimed.
func (m *HeapManager) UpdateRegions() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	total := 0
	for _, t := range HeapTypes {
		total += m.pools[t].Reclaim(func(h *Heap) {
			m.purged += uint64(m.tables.purge(h)) //nolint:gosec // G115: non-negative count
		})
	}
	if total > 0 {
		m.log.Debug("descriptor: heaps reclaimed", "count", total)
	}
	return total
}

// Destroy releases every heap. The caller guarantees the GPU is idle.
func (m *HeapManager) Destroy() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, t := range HeapTypes {
		m.pools[t].Drain(func(h *Heap) {
			if h.InUse() {
				m.log.Warn("descriptor: destroying heap still in use", "type", t.String(), "id", h.id)
			}
			h.native.Destroy()
		})
	}
	m.tables.clear()
}

// Stats describes heap occupancy and cache effectiveness.
type Stats struct {
	Heaps   [heapTypeCount]ring.Stats
	Tables  int
	Hits    uint64
	Misses  uint64
	Writes  uint64
	Purged  uint64
	Evicted uint64
}

// Heap returns the occupancy of heaps of type t.
func (s Stats) Heap(t HeapType) ring.Stats {
	if !t.valid() {
		return ring.Stats{}
	}
	return s.Heaps[t]
}

// String returns a one-line summary.
func (s Stats) String() string {
	return fmt.Sprintf("tables=%d hits=%d misses=%d writes=%d purged=%d srv={%s}",
		s.Tables, s.Hits, s.Misses, s.Writes, s.Purged, s.Heaps[ShaderResource])
}

// Stats returns a snapshot of the manager state.
func (m *HeapManager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := Stats{
		Tables:  m.tables.len(),
		Hits:    m.hits,
		Misses:  m.misses,
		Writes:  m.writes,
		Purged:  m.purged,
		Evicted: m.tables.stats().Evictions,
	}
	for _, t := range HeapTypes {
		s.Heaps[t] = m.pools[t].Stats()
	}
	return s
}
