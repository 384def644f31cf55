// Tests for the SQLite backing store.
// Implements: prd003-backing-store acceptance criteria (unit tests).
package sqlite

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/mesh-intelligence/semid/pkg/types"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir(), false, nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenCreatesDatabase(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, false, nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(filepath.Join(dir, dbFileName)); os.IsNotExist(err) {
		t.Error("semid.db not created")
	}

	// Border sentinel row is seeded.
	row, err := s.SelectRow("sem_object_ids", []string{"smw_id", "smw_iw"},
		map[string]any{"smw_id": types.BorderID})
	if err != nil {
		t.Fatalf("border row missing: %v", err)
	}
	if row.String("smw_iw") != types.IWBorder {
		t.Errorf("border row interwiki = %q, want %q", row.String("smw_iw"), types.IWBorder)
	}
}

func TestOpenIsReentrant(t *testing.T) {
	dir := t.TempDir()
	s1, err := Open(dir, false, nil)
	if err != nil {
		t.Fatalf("first Open failed: %v", err)
	}
	if err := s1.Insert("sem_object_ids", types.Row{
		"smw_id": int64(51), "smw_title": "Foo", "smw_namespace": 0,
		"smw_iw": "", "smw_subobject": "", "smw_sortkey": "Foo", "smw_sort": "",
		"smw_hash": types.ComputeHash("Foo", 0, "", ""), "smw_rev": 0,
	}); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	s1.Close()

	// Reopening must keep existing data (the database is the source of
	// truth, not a rebuildable cache).
	s2, err := Open(dir, false, nil)
	if err != nil {
		t.Fatalf("second Open failed: %v", err)
	}
	defer s2.Close()

	row, err := s2.SelectRow("sem_object_ids", []string{"smw_title"}, map[string]any{"smw_id": int64(51)})
	if err != nil {
		t.Fatalf("row lost across reopen: %v", err)
	}
	if row.String("smw_title") != "Foo" {
		t.Errorf("smw_title = %q, want Foo", row.String("smw_title"))
	}
}

func TestSelectRowNoRows(t *testing.T) {
	s := openTestStore(t)
	_, err := s.SelectRow("sem_object_ids", []string{"smw_id"}, map[string]any{"smw_title": "absent"})
	if !errors.Is(err, types.ErrNoRows) {
		t.Errorf("error = %v, want ErrNoRows", err)
	}
}

func TestInsertUniqueViolation(t *testing.T) {
	s := openTestStore(t)
	row := types.Row{
		"smw_id": int64(51), "smw_title": "Foo", "smw_namespace": 0,
		"smw_iw": "", "smw_subobject": "", "smw_sortkey": "Foo", "smw_sort": "",
		"smw_hash": types.ComputeHash("Foo", 0, "", ""), "smw_rev": 0,
	}
	if err := s.Insert("sem_object_ids", row); err != nil {
		t.Fatalf("first Insert failed: %v", err)
	}

	dup := types.Row{}
	for k, v := range row {
		dup[k] = v
	}
	dup["smw_id"] = int64(52)
	err := s.Insert("sem_object_ids", dup)
	if !errors.Is(err, types.ErrUniqueViolation) {
		t.Errorf("duplicate hash insert error = %v, want ErrUniqueViolation", err)
	}
}

func TestSelectInCondition(t *testing.T) {
	s := openTestStore(t)
	for i, title := range []string{"A", "B", "C"} {
		err := s.Insert("sem_object_ids", types.Row{
			"smw_id": int64(60 + i), "smw_title": title, "smw_namespace": 0,
			"smw_iw": "", "smw_subobject": "", "smw_sortkey": title, "smw_sort": "",
			"smw_hash": types.ComputeHash(title, 0, "", ""), "smw_rev": 0,
		})
		if err != nil {
			t.Fatalf("Insert %s failed: %v", title, err)
		}
	}

	rows, err := s.Select("sem_object_ids", []string{"smw_id", "smw_title"},
		map[string]any{"smw_id": []int64{60, 62}}, &types.SelectOptions{OrderBy: "smw_id"})
	if err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	if rows[0].String("smw_title") != "A" || rows[1].String("smw_title") != "C" {
		t.Errorf("unexpected rows: %v", rows)
	}

	// Empty IN set matches nothing rather than erroring.
	rows, err = s.Select("sem_object_ids", []string{"smw_id"},
		map[string]any{"smw_id": []int64{}}, nil)
	if err != nil {
		t.Fatalf("Select with empty IN failed: %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("empty IN matched %d rows, want 0", len(rows))
	}
}

func TestUpdateAndDelete(t *testing.T) {
	s := openTestStore(t)
	if err := s.Insert("sem_prop_stats", types.Row{"p_id": int64(51), "usage_count": int64(0)}); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	if err := s.Update("sem_prop_stats", types.Row{"usage_count": int64(5)},
		map[string]any{"p_id": int64(51)}); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	row, err := s.SelectRow("sem_prop_stats", []string{"usage_count"}, map[string]any{"p_id": int64(51)})
	if err != nil {
		t.Fatalf("SelectRow failed: %v", err)
	}
	if row.Int64("usage_count") != 5 {
		t.Errorf("usage_count = %d, want 5", row.Int64("usage_count"))
	}

	if err := s.Delete("sem_prop_stats", map[string]any{"p_id": int64(51)}); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := s.SelectRow("sem_prop_stats", []string{"p_id"}, map[string]any{"p_id": int64(51)}); !errors.Is(err, types.ErrNoRows) {
		t.Errorf("row survived Delete: %v", err)
	}
}

func TestUpsert(t *testing.T) {
	s := openTestStore(t)
	err := s.Upsert("sem_prop_stats",
		types.Row{"p_id": int64(51), "usage_count": int64(1)},
		[]string{"p_id"},
		types.Row{"usage_count": int64(1)})
	if err != nil {
		t.Fatalf("first Upsert failed: %v", err)
	}

	err = s.Upsert("sem_prop_stats",
		types.Row{"p_id": int64(51), "usage_count": int64(1)},
		[]string{"p_id"},
		types.Row{"usage_count": int64(9)})
	if err != nil {
		t.Fatalf("second Upsert failed: %v", err)
	}

	row, err := s.SelectRow("sem_prop_stats", []string{"usage_count"}, map[string]any{"p_id": int64(51)})
	if err != nil {
		t.Fatalf("SelectRow failed: %v", err)
	}
	if row.Int64("usage_count") != 9 {
		t.Errorf("usage_count = %d, want 9 after conflict update", row.Int64("usage_count"))
	}
}

func TestNextSequenceValueMonotonic(t *testing.T) {
	s := openTestStore(t)

	first, err := s.NextSequenceValue(types.SequenceEntityID)
	if err != nil {
		t.Fatalf("NextSequenceValue failed: %v", err)
	}
	if first != types.BorderID+1 {
		t.Errorf("first sequence value = %d, want %d", first, types.BorderID+1)
	}
	second, err := s.NextSequenceValue(types.SequenceEntityID)
	if err != nil {
		t.Fatalf("NextSequenceValue failed: %v", err)
	}
	if second != first+1 {
		t.Errorf("second value = %d, want %d", second, first+1)
	}

	// A fresh sequence starts at 1.
	v, err := s.NextSequenceValue("other")
	if err != nil {
		t.Fatalf("NextSequenceValue(other) failed: %v", err)
	}
	if v != 1 {
		t.Errorf("fresh sequence value = %d, want 1", v)
	}
}

func TestAtomicRollsBack(t *testing.T) {
	s := openTestStore(t)
	boom := errors.New("boom")

	err := s.Atomic(func(tx types.Store) error {
		if err := tx.Insert("sem_prop_stats", types.Row{"p_id": int64(70), "usage_count": int64(0)}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Atomic error = %v, want boom", err)
	}

	if _, err := s.SelectRow("sem_prop_stats", []string{"p_id"}, map[string]any{"p_id": int64(70)}); !errors.Is(err, types.ErrNoRows) {
		t.Error("insert survived rollback")
	}
}

func TestAtomicNestedJoins(t *testing.T) {
	s := openTestStore(t)
	err := s.Atomic(func(tx types.Store) error {
		return tx.Atomic(func(inner types.Store) error {
			return inner.Insert("sem_prop_stats", types.Row{"p_id": int64(71), "usage_count": int64(0)})
		})
	})
	if err != nil {
		t.Fatalf("nested Atomic failed: %v", err)
	}
	if _, err := s.SelectRow("sem_prop_stats", []string{"p_id"}, map[string]any{"p_id": int64(71)}); err != nil {
		t.Errorf("nested insert not committed: %v", err)
	}
}

func TestReadOnlyRejectsWrites(t *testing.T) {
	dir := t.TempDir()
	rw, err := Open(dir, false, nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	rw.Close()

	ro, err := Open(dir, true, nil)
	if err != nil {
		t.Fatalf("read-only Open failed: %v", err)
	}
	defer ro.Close()

	if !ro.ReadOnly() {
		t.Error("ReadOnly() = false")
	}
	if err := ro.Insert("sem_prop_stats", types.Row{"p_id": int64(1), "usage_count": int64(0)}); !errors.Is(err, types.ErrStoreReadOnly) {
		t.Errorf("Insert error = %v, want ErrStoreReadOnly", err)
	}
	if _, err := ro.NextSequenceValue(types.SequenceEntityID); !errors.Is(err, types.ErrStoreReadOnly) {
		t.Errorf("NextSequenceValue error = %v, want ErrStoreReadOnly", err)
	}
	if err := ro.Atomic(func(types.Store) error { return nil }); !errors.Is(err, types.ErrStoreReadOnly) {
		t.Errorf("Atomic error = %v, want ErrStoreReadOnly", err)
	}
}
