// Package cache provides a generic least-recently-used cache with a soft
// entry limit.
//
//	c := cache.New[uint64, *bucket](4096)
//	c.Set(h, b)
//	b, ok := c.Get(h)
//
// Entries can be purged by predicate with DeleteFunc, which is how owners
// drop every entry that refers to a resource being recycled.
//
// # Thread Safety
//
// Cache is safe for concurrent use and must not be copied after creation.
package cache
