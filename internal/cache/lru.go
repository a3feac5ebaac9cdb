// Catalogview - Catalog Derivation Engine and Telemetry Bus
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/catalogview

package cache

import "sync"

// lruEntry is a node in the recency list.
type lruEntry[V any] struct {
	key        string
	value      V
	lastAccess uint64
	prev       *lruEntry[V]
	next       *lruEntry[V]
}

// Stats is a point-in-time view of cache counters.
type Stats struct {
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Evictions int64 `json:"evictions"`
	Rejected  int64 `json:"rejected"`
	Size      int   `json:"size"`
	Capacity  int   `json:"capacity"`
	Pinned    int   `json:"pinned"`
}

// LRU is a thread-safe, bounded least-recently-used cache with pinning.
//
// Pinned keys are never chosen as eviction victims. When every resident
// entry is pinned, Add rejects the new entry instead of growing, so Len never
// exceeds the capacity.
//
// Get, Add, Remove and eviction of an unpinned tail are O(1); eviction walks
// past pinned entries at the tail.
type LRU[V any] struct {
	mu sync.Mutex

	capacity int
	items    map[string]*lruEntry[V]
	pinned   map[string]struct{}

	// head.next is the most recently used, tail.prev is the least recently used
	head *lruEntry[V]
	tail *lruEntry[V]

	// clock is the monotonic access counter stamped on entries
	clock uint64

	hits      int64
	misses    int64
	evictions int64
	rejected  int64
}

// NewLRU creates a cache holding at most capacity entries.
func NewLRU[V any](capacity int) *LRU[V] {
	if capacity <= 0 {
		capacity = 1
	}

	c := &LRU[V]{
		capacity: capacity,
		items:    make(map[string]*lruEntry[V], capacity),
		pinned:   make(map[string]struct{}),
		head:     &lruEntry[V]{},
		tail:     &lruEntry[V]{},
	}
	c.head.next = c.tail
	c.tail.prev = c.head
	return c
}

// Get returns the value for key and marks it most recently used.
func (c *LRU[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.items[key]; ok {
		c.touch(entry)
		c.hits++
		return entry.value, true
	}

	c.misses++
	var zero V
	return zero, false
}

// Peek returns the value for key without changing recency or counters.
func (c *LRU[V]) Peek(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.items[key]; ok {
		return entry.value, true
	}
	var zero V
	return zero, false
}

// Contains reports whether key is resident.
func (c *LRU[V]) Contains(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.items[key]
	return ok
}

// Add inserts or replaces key. When the cache is full the least recently
// used unpinned entry is evicted and its key returned. If no unpinned entry
// exists the insert is rejected and stored is false.
func (c *LRU[V]) Add(key string, value V) (stored bool, evicted string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.items[key]; ok {
		entry.value = value
		c.touch(entry)
		return true, ""
	}

	if len(c.items) >= c.capacity {
		victim := c.victim()
		if victim == nil {
			c.rejected++
			return false, ""
		}
		evicted = victim.key
		c.removeEntry(victim)
		c.evictions++
	}

	entry := &lruEntry[V]{key: key, value: value}
	c.addToFront(entry)
	c.items[key] = entry
	c.clock++
	entry.lastAccess = c.clock
	return true, evicted
}

// Remove deletes key. Returns true if it was resident.
func (c *LRU[V]) Remove(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.items[key]; ok {
		c.removeEntry(entry)
		return true
	}
	return false
}

// Repin replaces the pinned key set. Keys need not be resident.
func (c *LRU[V]) Repin(keys []string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.pinned = make(map[string]struct{}, len(keys))
	for _, k := range keys {
		c.pinned[k] = struct{}{}
	}
}

// IsPinned reports whether key is in the pinned set.
func (c *LRU[V]) IsPinned(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.pinned[key]
	return ok
}

// LastAccess returns the access stamp of a resident key.
func (c *LRU[V]) LastAccess(key string) (uint64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.items[key]; ok {
		return entry.lastAccess, true
	}
	return 0, false
}

// Keys returns resident keys from most to least recently used.
func (c *LRU[V]) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]string, 0, len(c.items))
	for e := c.head.next; e != c.tail; e = e.next {
		keys = append(keys, e.key)
	}
	return keys
}

// Len returns the current number of entries in the cache.
func (c *LRU[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Capacity returns the maximum number of entries.
func (c *LRU[V]) Capacity() int {
	return c.capacity
}

// Clear removes all entries. The pinned set is kept.
func (c *LRU[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*lruEntry[V], c.capacity)
	c.head.next = c.tail
	c.tail.prev = c.head
}

// Stats returns cache statistics.
func (c *LRU[V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Stats{
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
		Rejected:  c.rejected,
		Size:      len(c.items),
		Capacity:  c.capacity,
		Pinned:    len(c.pinned),
	}
}

// Internal methods (must be called with lock held)

func (c *LRU[V]) touch(entry *lruEntry[V]) {
	c.clock++
	entry.lastAccess = c.clock
	c.moveToFront(entry)
}

// victim returns the least recently used unpinned entry, or nil.
func (c *LRU[V]) victim() *lruEntry[V] {
	for e := c.tail.prev; e != c.head; e = e.prev {
		if _, pinned := c.pinned[e.key]; !pinned {
			return e
		}
	}
	return nil
}

func (c *LRU[V]) addToFront(entry *lruEntry[V]) {
	entry.prev = c.head
	entry.next = c.head.next
	c.head.next.prev = entry
	c.head.next = entry
}

func (c *LRU[V]) moveToFront(entry *lruEntry[V]) {
	entry.prev.next = entry.next
	entry.next.prev = entry.prev
	c.addToFront(entry)
}

func (c *LRU[V]) removeEntry(entry *lruEntry[V]) {
	entry.prev.next = entry.next
	entry.next.prev = entry.prev
	delete(c.items, entry.key)
}
