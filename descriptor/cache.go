package descriptor

import (
	"github.com/gogpu/gpuframe/internal/cache"
)

// tableEntry is a written descriptor table.
type tableEntry struct {
	typ      HeapType
	count    int
	bindings [MaxTableBindings]Binding
	region   Region
}

func (e *tableEntry) matches(t HeapType, bindings []Binding) bool {
	if e.typ != t || e.count != len(bindings) {
		return false
	}
	for i := range bindings {
		if e.bindings[i] != bindings[i] {
			return false
		}
	}
	return true
}

// bucket holds every entry sharing one content hash.
type bucket struct {
	entries []*tableEntry
}

// tableCache maps binding content to the region it was written to.
type tableCache struct {
	buckets *cache.Cache[uint64, *bucket]
}

func newTableCache(limit int) *tableCache {
	return &tableCache{buckets: cache.New[uint64, *bucket](limit)}
}

func (c *tableCache) lookup(t HeapType, bindings []Binding) (Region, bool) {
	b, ok := c.buckets.Get(contentHash(t, bindings))
	if !ok {
		return Region{}, false
	}
	for _, e := range b.entries {
		if e.matches(t, bindings) {
			return e.region, true
		}
	}
	return Region{}, false
}

func (c *tableCache) insert(t HeapType, bindings []Binding, r Region) {
	e := &tableEntry{typ: t, count: len(bindings), region: r}
	copy(e.bindings[:], bindings)

	h := contentHash(t, bindings)
	b, ok := c.buckets.Peek(h)
	if !ok {
		c.buckets.Set(h, &bucket{entries: []*tableEntry{e}})
		return
	}
	for i, old := range b.entries {
		if old.matches(t, bindings) {
			b.entries[i] = e
			return
		}
	}
	b.entries = append(b.entries, e)
}

// purge drops every entry written into heap and returns how many went.
func (c *tableCache) purge(heap *Heap) int {
	removed := 0
	c.buckets.DeleteFunc(func(_ uint64, b *bucket) bool {
		kept := b.entries[:0]
		for _, e := range b.entries {
			if e.region.Heap == heap {
				removed++
				continue
			}
			kept = append(kept, e)
		}
		clear(b.entries[len(kept):])
		b.entries = kept
		return len(kept) == 0
	})
	return removed
}

func (c *tableCache) len() int {
	n := 0
	c.buckets.Range(func(_ uint64, b *bucket) bool {
		n += len(b.entries)
		return true
	})
	return n
}

func (c *tableCache) clear() { c.buckets.Clear() }

func (c *tableCache) stats() cache.Stats { return c.buckets.Stats() }
