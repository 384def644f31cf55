// Package cache provides the bounded in-process LRU cache and the TTL
// memory cache backing the identity engine's cache tiers.
// Implements: prd004-cache-layer R2, R3; docs/ARCHITECTURE § Cache Layer.
package cache

import (
	"container/list"
	"sync"
	"time"

	"github.com/mesh-intelligence/semid/pkg/types"
)

// LRU is a bounded least-recently-used cache implementing types.Cache.
// Capacity is a tuning parameter, not a correctness requirement; eviction
// drops the coldest entry. An entry saved with a positive ttl also
// expires by time, which the redirect short-circuit relies on.
type LRU struct {
	mu       sync.Mutex
	capacity int
	order    *list.List // Front is most recently used.
	entries  map[string]*list.Element
}

type lruEntry struct {
	key     string
	value   any
	expires time.Time // Zero means no expiry.
}

// NewLRU creates a bounded cache holding at most capacity entries.
// Capacity must be positive.
func NewLRU(capacity int) *LRU {
	if capacity <= 0 {
		capacity = 1
	}
	return &LRU{
		capacity: capacity,
		order:    list.New(),
		entries:  make(map[string]*list.Element, capacity),
	}
}

// Fetch returns the cached value and whether it was present. A hit moves
// the entry to the front; an expired entry counts as a miss and is
// dropped.
func (c *LRU) Fetch(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	entry := elem.Value.(*lruEntry)
	if !entry.expires.IsZero() && time.Now().After(entry.expires) {
		c.order.Remove(elem)
		delete(c.entries, key)
		return nil, false
	}
	c.order.MoveToFront(elem)
	return entry.value, true
}

// Save stores a value, evicting the least recently used entry when the
// cache is full.
func (c *LRU) Save(key string, value any, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var expires time.Time
	if ttl > 0 {
		expires = time.Now().Add(ttl)
	}

	if elem, ok := c.entries[key]; ok {
		entry := elem.Value.(*lruEntry)
		entry.value = value
		entry.expires = expires
		c.order.MoveToFront(elem)
		return
	}

	if c.order.Len() >= c.capacity {
		oldest := c.order.Back()
		if oldest != nil {
			c.order.Remove(oldest)
			delete(c.entries, oldest.Value.(*lruEntry).key)
		}
	}
	c.entries[key] = c.order.PushFront(&lruEntry{key: key, value: value, expires: expires})
}

// Delete removes a key. Deleting an absent key is a no-op.
func (c *LRU) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[key]; ok {
		c.order.Remove(elem)
		delete(c.entries, key)
	}
}

// Contains reports whether the key is cached and not expired, without
// touching the recency order.
func (c *LRU) Contains(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[key]
	if !ok {
		return false
	}
	entry := elem.Value.(*lruEntry)
	return entry.expires.IsZero() || time.Now().Before(entry.expires)
}

// Len returns the number of live entries, expired ones included until
// their next Fetch.
func (c *LRU) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

var _ types.Cache = (*LRU)(nil)
