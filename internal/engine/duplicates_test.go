package engine

import (
	"testing"

	"github.com/mesh-intelligence/semid/pkg/types"
)

// insertDuplicateRow plants a second row for the same reference columns
// with a diverged hash, the shape legacy stores without the unique hash
// index can contain.
func insertDuplicateRow(t *testing.T, store types.Store, ref types.EntityReference, id int64) {
	t.Helper()
	err := store.Insert("sem_object_ids", types.Row{
		"smw_id":        id,
		"smw_title":     ref.Title,
		"smw_namespace": ref.Namespace,
		"smw_iw":        ref.Interwiki,
		"smw_subobject": ref.Subobject,
		"smw_sortkey":   ref.Title,
		"smw_sort":      "",
		"smw_hash":      "legacy-divergent-hash",
		"smw_rev":       int64(0),
	})
	if err != nil {
		t.Fatalf("insert duplicate row: %v", err)
	}
}

func TestFindDuplicates(t *testing.T) {
	m, _, store := newTestManager(t)

	reports, err := m.FindDuplicates()
	if err != nil {
		t.Fatalf("find duplicates: %v", err)
	}
	if len(reports) != 0 {
		t.Fatalf("fresh store reports duplicates: %v", reports)
	}

	ref := types.EntityReference{Title: "Berlin"}
	mustMakeID(t, m, ref, "")
	mustMakeID(t, m, types.EntityReference{Title: "Hamburg"}, "")
	insertDuplicateRow(t, store, ref, 9001)

	reports, err = m.FindDuplicates()
	if err != nil {
		t.Fatalf("find duplicates: %v", err)
	}
	if len(reports) != 1 {
		t.Fatalf("reports = %v, want exactly one group", reports)
	}
	got := reports[0]
	if got.Count != 2 || got.Title != "Berlin" || got.Namespace != 0 {
		t.Fatalf("report = %+v, want count 2 for Berlin", got)
	}
}

func TestIsUnique(t *testing.T) {
	m, _, store := newTestManager(t)
	ref := types.EntityReference{Title: "Berlin"}
	mustMakeID(t, m, ref, "")

	unique, err := m.IsUnique(ref)
	if err != nil {
		t.Fatalf("is unique: %v", err)
	}
	if !unique {
		t.Fatal("single row reported as duplicate")
	}

	insertDuplicateRow(t, store, ref, 9001)
	unique, err = m.IsUnique(ref)
	if err != nil {
		t.Fatalf("is unique: %v", err)
	}
	if unique {
		t.Fatal("duplicated row reported as unique")
	}
}

func TestIsUniqueSentinelRowsExempt(t *testing.T) {
	m, _, _ := newTestManager(t)

	unique, err := m.IsUnique(types.EntityReference{Title: "X", Interwiki: types.IWRedirect})
	if err != nil {
		t.Fatalf("is unique: %v", err)
	}
	if !unique {
		t.Fatal("sentinel-marked reference subject to uniqueness check")
	}
}
