package engine

import (
	"testing"

	"github.com/mesh-intelligence/semid/pkg/types"
)

func TestFindIDByReferenceUnknown(t *testing.T) {
	m, _, _ := newTestManager(t)

	id, err := m.Finder().FindIDByReference(types.EntityReference{Title: "Nowhere"})
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if id != 0 {
		t.Fatalf("unknown reference resolved to %d", id)
	}
}

func TestFetchByReferencePopulatesCache(t *testing.T) {
	m, _, _ := newTestManager(t)
	ref := types.EntityReference{Title: "Berlin"}
	id := mustMakeID(t, m, ref, "")

	m.CacheManager().DeleteCache(ref)
	got, _, err := m.Finder().FetchByReference(ref)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if got != id {
		t.Fatalf("fetch = %d, want %d", got, id)
	}
	if cached, ok := m.CacheManager().GetID(ref); !ok || cached != id {
		t.Fatalf("cache after fetch = (%d, %v), want (%d, true)", cached, ok, id)
	}
}

func TestStaleHashSchedulesRepair(t *testing.T) {
	m, jobs, store := newTestManager(t)
	ref := types.EntityReference{Title: "Berlin"}
	id := mustMakeID(t, m, ref, "")

	if err := store.Update("sem_object_ids",
		types.Row{"smw_hash": "stale"},
		map[string]any{"smw_id": id}); err != nil {
		t.Fatalf("corrupt hash: %v", err)
	}
	m.CacheManager().DeleteCache(ref)

	got, _, err := m.Finder().FetchByReference(ref)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if got != id {
		t.Fatalf("stale row not served: got %d, want %d", got, id)
	}
	repairs := jobs.byKind(types.JobHashRepair)
	if len(repairs) != 1 {
		t.Fatalf("repair jobs = %d, want 1", len(repairs))
	}
	if repairs[0].Params["id"] != id {
		t.Fatalf("repair job id = %v, want %d", repairs[0].Params["id"], id)
	}
}

func TestSentinelRowsSkipHashVerification(t *testing.T) {
	m, jobs, store := newTestManager(t)
	marker := types.EntityReference{Title: "Hauptstadt", Interwiki: types.IWRedirect}
	id := mustMakeID(t, m, marker, "")

	if err := store.Update("sem_object_ids",
		types.Row{"smw_hash": "stale"},
		map[string]any{"smw_id": id}); err != nil {
		t.Fatalf("corrupt hash: %v", err)
	}
	m.CacheManager().DeleteCache(marker)

	if _, _, err := m.Finder().FetchByReference(marker); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if n := len(jobs.byKind(types.JobHashRepair)); n != 0 {
		t.Fatalf("repair jobs for sentinel row = %d, want 0", n)
	}
}

func TestFetchByID(t *testing.T) {
	m, _, _ := newTestManager(t)
	ref := types.EntityReference{Title: "Berlin"}
	id := mustMakeID(t, m, ref, "Berlin")

	m.CacheManager().DeleteLookup(id)
	rec, ok, err := m.Finder().FetchByID(id)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if !ok || rec.Reference != ref || rec.Sortkey != "Berlin" {
		t.Fatalf("record = %+v, ok = %v", rec, ok)
	}

	if _, ok, err := m.Finder().FetchByID(999999); err != nil || ok {
		t.Fatalf("unknown id: ok = %v, err = %v", ok, err)
	}
}

func TestFetchByIDsBulk(t *testing.T) {
	m, _, _ := newTestManager(t)

	refs := []types.EntityReference{
		{Title: "Berlin"},
		{Title: "Hamburg"},
		{Title: "Munich"},
	}
	ids := make([]int64, 0, len(refs))
	for _, ref := range refs {
		ids = append(ids, mustMakeID(t, m, ref, ""))
	}
	for _, id := range ids {
		m.CacheManager().DeleteLookup(id)
	}

	records, err := m.Finder().FetchByIDs(append(ids, 999999))
	if err != nil {
		t.Fatalf("bulk fetch: %v", err)
	}
	if len(records) != len(ids) {
		t.Fatalf("records = %d, want %d", len(records), len(ids))
	}
	for i, id := range ids {
		if records[id].Reference != refs[i] {
			t.Errorf("record %d = %v, want %v", id, records[id].Reference, refs[i])
		}
	}
}

func TestFindIDsByPartialReference(t *testing.T) {
	m, _, _ := newTestManager(t)

	base := mustMakeID(t, m, types.EntityReference{Title: "Berlin"}, "")
	sub := mustMakeID(t, m, types.EntityReference{Title: "Berlin", Subobject: "coords"}, "")
	marked := mustMakeID(t, m, types.EntityReference{Title: "Berlin", Interwiki: types.IWRedirect}, "")

	all, err := m.Finder().FindIDsByPartialReference("Berlin", 0, nil, nil)
	if err != nil {
		t.Fatalf("partial lookup: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("all variants = %v, want 3 ids", all)
	}

	empty := ""
	plainOnly, err := m.Finder().FindIDsByPartialReference("Berlin", 0, &empty, &empty)
	if err != nil {
		t.Fatalf("partial lookup: %v", err)
	}
	if len(plainOnly) != 1 || plainOnly[0] != base {
		t.Fatalf("plain variant = %v, want [%d]", plainOnly, base)
	}

	subOnly := "coords"
	subs, err := m.Finder().FindIDsByPartialReference("Berlin", 0, &empty, &subOnly)
	if err != nil {
		t.Fatalf("partial lookup: %v", err)
	}
	if len(subs) != 1 || subs[0] != sub {
		t.Fatalf("subobject variant = %v, want [%d]", subs, sub)
	}
	_ = marked
}
