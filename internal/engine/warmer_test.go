package engine

import (
	"fmt"
	"testing"

	"github.com/mesh-intelligence/semid/pkg/types"
)

// makeEntities creates n entities and evicts them from every cache so
// warm-up behavior is observable.
func makeEntities(t *testing.T, m *EntityIdManager, n int) ([]types.EntityReference, []int64) {
	t.Helper()
	refs := make([]types.EntityReference, 0, n)
	ids := make([]int64, 0, n)
	for i := 0; i < n; i++ {
		ref := types.EntityReference{Title: fmt.Sprintf("Page_%d", i)}
		id := mustMakeID(t, m, ref, "")
		refs = append(refs, ref)
		ids = append(ids, id)
	}
	for i, ref := range refs {
		m.CacheManager().DeleteCache(ref)
		m.CacheManager().DeleteLookup(ids[i])
	}
	return refs, ids
}

func TestWarmUpCachePopulates(t *testing.T) {
	m, _, _ := newTestManager(t)
	refs, ids := makeEntities(t, m, 5) // above the default threshold of 3

	if err := m.WarmUpCache(refs); err != nil {
		t.Fatalf("warm up: %v", err)
	}
	for i, ref := range refs {
		id, ok := m.CacheManager().GetID(ref)
		if !ok || id != ids[i] {
			t.Errorf("cache for %v = (%d, %v), want (%d, true)", ref, id, ok, ids[i])
		}
	}
}

func TestWarmUpCacheSmallBatchSkipped(t *testing.T) {
	m, _, _ := newTestManager(t)
	refs, _ := makeEntities(t, m, 2) // at or below the threshold

	if err := m.WarmUpCache(refs); err != nil {
		t.Fatalf("warm up: %v", err)
	}
	for _, ref := range refs {
		if _, ok := m.CacheManager().GetID(ref); ok {
			t.Errorf("small batch warmed %v, want per-item fallback", ref)
		}
	}
}

func TestWarmUpCacheDedupesAndSkipsCached(t *testing.T) {
	m, _, _ := newTestManager(t)
	refs, ids := makeEntities(t, m, 4)

	// Pre-cache one member; duplicate the batch. The remaining distinct
	// uncached count (3) is at the threshold, so nothing is warmed.
	m.CacheManager().SetCache(refs[0], ids[0], "")
	batch := append(append([]types.EntityReference{}, refs...), refs...)

	if err := m.WarmUpCache(batch); err != nil {
		t.Fatalf("warm up: %v", err)
	}
	for _, ref := range refs[1:] {
		if _, ok := m.CacheManager().GetID(ref); ok {
			t.Errorf("threshold-sized batch warmed %v", ref)
		}
	}
}

func TestWarmUpByIDs(t *testing.T) {
	m, _, _ := newTestManager(t)
	refs, ids := makeEntities(t, m, 5)

	if err := m.WarmUpByIDs(ids); err != nil {
		t.Fatalf("warm up: %v", err)
	}
	for i, id := range ids {
		ref, _, _, _, ok := m.CacheManager().GetLookup(id)
		if !ok || ref != refs[i] {
			t.Errorf("lookup cache for %d = (%v, %v), want %v", id, ref, ok, refs[i])
		}
	}
}

func TestWarmUpByIDsIgnoresInvalid(t *testing.T) {
	m, _, _ := newTestManager(t)

	// Non-positive and unknown IDs must not fail the batch.
	if err := m.WarmUpByIDs([]int64{0, -5, 999996, 999997, 999998, 999999}); err != nil {
		t.Fatalf("warm up: %v", err)
	}
}
