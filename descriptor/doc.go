// Package descriptor allocates descriptor table regions from pooled heaps
// and deduplicates identical tables within their heap's lifetime.
//
// # Ring allocation
//
// Each heap type owns a ring of fixed-capacity heaps. AcquireRegion bumps a
// cursor in the current heap; when the request does not fit, the heap is
// retired and a free (or new) heap takes over. UpdateRegions, called once per
// frame, returns retired heaps whose fences have all completed to the free
// list.
//
// # Content cache
//
// AcquireTable hashes the binding set (CRC-32C over a canonical encoding),
// looks the hash up and confirms the hit with a full content compare. A hit
// reuses the region written earlier; a miss writes the bindings once and
// records the region. Entries are purged the moment their heap goes back to
// the free list, so a recycled heap can never be aliased by a stale entry.
//
// Thread Safety: HeapManager is safe for concurrent use.
package descriptor
