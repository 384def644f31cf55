package engine

import (
	"fmt"

	"github.com/mesh-intelligence/semid/pkg/types"
)

// CacheWarmer bulk pre-populates the ID cache for a batch of entities,
// replacing N per-item queries with one IN query. Warming never changes
// lookup results; it only removes store round trips.
// Implements: prd004-cache-layer R5.
type CacheWarmer struct {
	store     types.Store
	cache     *IdCacheManager
	finder    *EntityIdFinder
	threshold int
}

// NewCacheWarmer wires a warmer. Batches of at most threshold uncached
// distinct references are left to the per-item fallback path, which is
// cheap enough at that size.
func NewCacheWarmer(store types.Store, cache *IdCacheManager, finder *EntityIdFinder, threshold int) *CacheWarmer {
	return &CacheWarmer{store: store, cache: cache, finder: finder, threshold: threshold}
}

// PrepareCache warms the ID cache for a batch of references. Already
// cached members are skipped; when the remaining distinct count is at or
// below the threshold nothing happens.
func (w *CacheWarmer) PrepareCache(refs []types.EntityReference) error {
	byHash := make(map[string]struct{})
	var hashes []string
	for _, ref := range refs {
		if !ref.Valid() {
			continue
		}
		hash := ref.Hash()
		if _, seen := byHash[hash]; seen {
			continue
		}
		byHash[hash] = struct{}{}
		if _, ok := w.cache.GetIDByHash(hash); ok {
			continue
		}
		hashes = append(hashes, hash)
	}
	if len(hashes) <= w.threshold {
		return nil
	}

	rows, err := w.store.Select(tableObjectIDs, objectIDColumns,
		map[string]any{"smw_hash": hashes}, nil)
	if err != nil {
		return fmt.Errorf("warm up cache: %w", err)
	}
	for _, row := range rows {
		rec := recordFromRow(row)
		w.cache.SetLookup(rec.ID, rec.Reference, rec.Sortkey, rec.Sort, rec.Revision)
		w.cache.SetCache(rec.Reference, rec.ID, rec.Sortkey)
	}
	return nil
}

// LoadByIDs is the ID-keyed dual of PrepareCache, used before formatting
// lists that already carry surrogate IDs.
func (w *CacheWarmer) LoadByIDs(ids []int64) error {
	var missing []int64
	seen := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		if id <= 0 {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if _, _, _, _, ok := w.cache.GetLookup(id); !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) <= w.threshold {
		return nil
	}

	if _, err := w.finder.FetchByIDs(missing); err != nil {
		return fmt.Errorf("warm up by ids: %w", err)
	}
	return nil
}
