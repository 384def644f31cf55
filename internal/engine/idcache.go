package engine

import (
	"fmt"
	"time"

	"github.com/mesh-intelligence/semid/pkg/types"
)

// IdCacheManager owns the named bounded caches of one identity engine
// and the canonical hashing function. Caches are best-effort: they are
// not transactionally consistent with the backing store and every
// mutation path must invalidate them explicitly. An IdCacheManager is
// owned by exactly one EntityIdManager; sharing one across managers
// pointed at different stores is not supported.
// Implements: prd004-cache-layer R2.
type IdCacheManager struct {
	caches      map[string]types.Cache
	redirectTTL time.Duration
	reverseTTL  time.Duration
}

// cachedLookup is the entity.lookup cache entry: the full record of a
// by-ID fetch.
type cachedLookup struct {
	ref     types.EntityReference
	sortkey string
	sort    string
	rev     int64
}

// NewIdCacheManager validates that every required named cache is
// present. A missing cache is a configuration error surfaced at
// construction, not at first use.
func NewIdCacheManager(caches map[string]types.Cache, redirectTTL, reverseTTL time.Duration) (*IdCacheManager, error) {
	for _, name := range types.RequiredCaches {
		if caches[name] == nil {
			return nil, fmt.Errorf("%w: %s", types.ErrCacheMissing, name)
		}
	}
	return &IdCacheManager{caches: caches, redirectTTL: redirectTTL, reverseTTL: reverseTTL}, nil
}

// Get returns a named cache. Construction guarantees required caches
// exist; asking for an unknown name returns nil.
func (m *IdCacheManager) Get(name string) types.Cache {
	return m.caches[name]
}

// ComputeHash is the canonical content hash of an entity reference.
func (m *IdCacheManager) ComputeHash(ref types.EntityReference) string {
	return ref.Hash()
}

// GetID returns the cached surrogate ID for a reference. ok reports a
// cache hit; a hit with id 0 means "known redirect or known missing" and
// spares the caller a store round trip.
func (m *IdCacheManager) GetID(ref types.EntityReference) (int64, bool) {
	return m.GetIDByHash(ref.Hash())
}

// GetIDByHash is GetID keyed by a precomputed content hash.
func (m *IdCacheManager) GetIDByHash(hash string) (int64, bool) {
	v, ok := m.caches[types.CacheEntityID].Fetch(hash)
	if !ok {
		return 0, false
	}
	return v.(int64), true
}

// GetSort returns the cached sortkey for a content hash.
func (m *IdCacheManager) GetSort(hash string) (string, bool) {
	v, ok := m.caches[types.CacheEntitySort].Fetch(hash)
	if !ok {
		return "", false
	}
	return v.(string), true
}

// SetCache stores the (id, sortkey) pair for a reference. Caching a
// redirect-marked reference also seeds a 0-ID entry for the same
// reference under the blank interwiki, so a subsequent plain lookup
// short-circuits to "known redirect, must resolve" without touching the
// store. That entry is served for at most the configured redirect
// window; it is eventually consistent by design.
func (m *IdCacheManager) SetCache(ref types.EntityReference, id int64, sortkey string) {
	hash := ref.Hash()
	m.caches[types.CacheEntityID].Save(hash, id, 0)
	m.caches[types.CacheEntitySort].Save(hash, sortkey, 0)

	if ref.Interwiki == types.IWRedirect {
		plain := ref.WithInterwiki("")
		m.caches[types.CacheEntityID].Save(plain.Hash(), int64(0), m.redirectTTL)
	}
}

// SetLookup stores the full record of a by-ID fetch. These reverse
// (id→reference) entries are bounded in time as well as capacity: they
// are not invalidated by writes on other nodes, so the configured
// reverse-lookup window caps how stale a served record can be.
func (m *IdCacheManager) SetLookup(id int64, ref types.EntityReference, sortkey, sort string, rev int64) {
	m.caches[types.CacheEntityLookup].Save(lookupKey(id), cachedLookup{
		ref: ref, sortkey: sortkey, sort: sort, rev: rev,
	}, m.reverseTTL)
}

// GetLookup returns the cached record of a by-ID fetch.
func (m *IdCacheManager) GetLookup(id int64) (types.EntityReference, string, string, int64, bool) {
	v, ok := m.caches[types.CacheEntityLookup].Fetch(lookupKey(id))
	if !ok {
		return types.EntityReference{}, "", "", 0, false
	}
	entry := v.(cachedLookup)
	return entry.ref, entry.sortkey, entry.sort, entry.rev, true
}

// DeleteCache drops every cache entry derived from a reference: the id
// and sort entries for the reference itself and for its redirect-marked
// and plain siblings. Called on every mutation path.
func (m *IdCacheManager) DeleteCache(ref types.EntityReference) {
	for _, variant := range []types.EntityReference{
		ref,
		ref.WithInterwiki(""),
		ref.WithInterwiki(types.IWRedirect),
	} {
		hash := variant.Hash()
		m.caches[types.CacheEntityID].Delete(hash)
		m.caches[types.CacheEntitySort].Delete(hash)
	}
}

// DeleteLookup drops the by-ID entry and its dependent per-ID caches.
func (m *IdCacheManager) DeleteLookup(id int64) {
	key := lookupKey(id)
	m.caches[types.CacheEntityLookup].Delete(key)
	m.caches[types.CacheTableHash].Delete(key)
	m.caches[types.CacheSequenceMap].Delete(key)
}

func lookupKey(id int64) string {
	return fmt.Sprintf("%d", id)
}
