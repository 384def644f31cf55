package cache

import (
	"sync"
	"time"

	"github.com/mesh-intelligence/semid/pkg/types"
)

// Memory is an unbounded TTL cache implementing types.Cache. It stands in
// for the persistent cache backend (memcached, APCu and friends) in
// deployments that run without one, and in tests.
// Implements: prd004-cache-layer R4.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
}

type memoryEntry struct {
	value   any
	expires time.Time // Zero means no expiry.
}

// NewMemory creates an empty TTL cache.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]memoryEntry)}
}

func (c *Memory) Fetch(key string) (any, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		return nil, false
	}
	if !entry.expires.IsZero() && time.Now().After(entry.expires) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return nil, false
	}
	return entry.value, true
}

func (c *Memory) Save(key string, value any, ttl time.Duration) {
	var expires time.Time
	if ttl > 0 {
		expires = time.Now().Add(ttl)
	}
	c.mu.Lock()
	c.entries[key] = memoryEntry{value: value, expires: expires}
	c.mu.Unlock()
}

func (c *Memory) Delete(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

func (c *Memory) Contains(key string) bool {
	_, ok := c.Fetch(key)
	return ok
}

var _ types.Cache = (*Memory)(nil)
