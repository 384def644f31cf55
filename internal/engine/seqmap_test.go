package engine

import (
	"testing"

	"github.com/mesh-intelligence/semid/pkg/types"
)

func TestSequenceMapRoundTrip(t *testing.T) {
	m, _, _ := newTestManager(t)
	id := mustMakeID(t, m, types.EntityReference{Title: "Berlin"}, "")

	seq := types.SequenceMap{
		"Population": {"h1", "h2", "h3"},
		"Mayor":      {"h4"},
	}
	if err := m.SetSequenceMap(id, seq); err != nil {
		t.Fatalf("set map: %v", err)
	}

	// First read is a cache hit, the second comes from the store.
	for i := 0; i < 2; i++ {
		got, err := m.GetSequenceMap(id)
		if err != nil {
			t.Fatalf("get map: %v", err)
		}
		if got.Position("Population", "h2") != 1 {
			t.Fatalf("pass %d: position = %d, want 1", i, got.Position("Population", "h2"))
		}
		if got.Position("Mayor", "h1") != -1 {
			t.Fatalf("pass %d: unexpected hit for unmapped hash", i)
		}
		m.CacheManager().DeleteLookup(id)
	}
}

func TestSequenceMapAbsentIsEmpty(t *testing.T) {
	m, _, _ := newTestManager(t)
	id := mustMakeID(t, m, types.EntityReference{Title: "Berlin"}, "")

	got, err := m.GetSequenceMap(id)
	if err != nil {
		t.Fatalf("get map: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Fatalf("absent map = %v, want empty non-nil", got)
	}
}

func TestSequenceMapClear(t *testing.T) {
	m, _, store := newTestManager(t)
	id := mustMakeID(t, m, types.EntityReference{Title: "Berlin"}, "")

	if err := m.SetSequenceMap(id, types.SequenceMap{"P": {"h"}}); err != nil {
		t.Fatalf("set map: %v", err)
	}
	if err := m.SetSequenceMap(id, nil); err != nil {
		t.Fatalf("clear map: %v", err)
	}

	row, err := store.SelectRow("sem_object_aux", []string{"smw_seqmap"},
		map[string]any{"smw_id": id})
	if err != nil {
		t.Fatalf("read aux row: %v", err)
	}
	if blob := row.Bytes("smw_seqmap"); len(blob) != 0 {
		t.Fatalf("cleared blob = %v, want NULL", blob)
	}
}

func TestSequenceMapPrefetch(t *testing.T) {
	m, _, _ := newTestManager(t)

	withMap := mustMakeID(t, m, types.EntityReference{Title: "Berlin"}, "")
	without := mustMakeID(t, m, types.EntityReference{Title: "Hamburg"}, "")
	if err := m.SetSequenceMap(withMap, types.SequenceMap{"P": {"h1"}}); err != nil {
		t.Fatalf("set map: %v", err)
	}
	m.CacheManager().DeleteLookup(withMap)
	m.CacheManager().DeleteLookup(without)

	ids := []int64{withMap, without}
	if err := m.LoadSequenceMaps(ids); err != nil {
		t.Fatalf("prefetch: %v", err)
	}

	// Both members are cached afterwards, the absent one as an empty map.
	for _, id := range ids {
		if !m.CacheManager().Get(types.CacheSequenceMap).Contains(lookupKey(id)) {
			t.Errorf("id %d not cached after prefetch", id)
		}
	}

	got, err := m.GetSequenceMap(withMap)
	if err != nil {
		t.Fatalf("get map: %v", err)
	}
	if got.Position("P", "h1") != 0 {
		t.Fatalf("prefetched map = %v", got)
	}

	// The same batch in any order is memoized.
	if err := m.LoadSequenceMaps([]int64{without, withMap}); err != nil {
		t.Fatalf("repeat prefetch: %v", err)
	}
}

func TestCountMapRoundTrip(t *testing.T) {
	m, _, _ := newTestManager(t)
	id := mustMakeID(t, m, types.EntityReference{Title: "Berlin"}, "")

	counts := types.CountMap{"Population": 3, "Mayor": 1}
	if err := m.SequenceMaps().SetCountMap(id, counts); err != nil {
		t.Fatalf("set counts: %v", err)
	}
	got, err := m.SequenceMaps().FindCountMapByID(id)
	if err != nil {
		t.Fatalf("get counts: %v", err)
	}
	if got["Population"] != 3 || got["Mayor"] != 1 {
		t.Fatalf("counts = %v, want %v", got, counts)
	}

	absent, err := m.SequenceMaps().FindCountMapByID(999999)
	if err != nil {
		t.Fatalf("get absent counts: %v", err)
	}
	if len(absent) != 0 {
		t.Fatalf("absent counts = %v, want empty", absent)
	}
}

func TestSequenceMapUndecodableBlobDegrades(t *testing.T) {
	m, _, store := newTestManager(t)
	id := mustMakeID(t, m, types.EntityReference{Title: "Berlin"}, "")

	err := store.Upsert("sem_object_aux",
		types.Row{"smw_id": id, "smw_seqmap": []byte("not snappy")},
		[]string{"smw_id"},
		types.Row{"smw_seqmap": []byte("not snappy")})
	if err != nil {
		t.Fatalf("plant blob: %v", err)
	}
	m.CacheManager().DeleteLookup(id)

	got, err := m.GetSequenceMap(id)
	if err != nil {
		t.Fatalf("get map: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("undecodable blob = %v, want empty map", got)
	}
}
