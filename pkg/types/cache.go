package types

import (
	"errors"
	"time"
)

// Cache is the generic cache backend contract, used both for the
// process-local bounded caches and for the persistent semantic-data
// cache tier.
// Implements: prd004-cache-layer R1.
type Cache interface {
	// Fetch returns the cached value and whether it was present.
	Fetch(key string) (any, bool)

	// Save stores a value. ttl <= 0 means no expiry; bounded caches may
	// ignore ttl and evict by capacity instead.
	Save(key string, value any, ttl time.Duration)

	Delete(key string)

	Contains(key string) bool
}

// Named process-local caches the engine requires at construction.
// Implements: prd004-cache-layer R2.
const (
	CacheEntityID     = "entity.id"     // reference hash → surrogate ID
	CacheEntitySort   = "entity.sort"   // reference hash → sortkey
	CacheEntityLookup = "entity.lookup" // surrogate ID → cached record
	CacheTableHash    = "table.hash"    // surrogate ID → property-table hash map
	CacheSequenceMap  = "sequence.map"  // surrogate ID → sequence map
)

// RequiredCaches lists the cache names an IdCacheManager must provide.
var RequiredCaches = []string{
	CacheEntityID,
	CacheEntitySort,
	CacheEntityLookup,
	CacheTableHash,
	CacheSequenceMap,
}

// ErrCacheMissing is a configuration error: a required named cache was
// not provided at construction.
var ErrCacheMissing = errors.New("required cache missing")
