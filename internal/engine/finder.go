package engine

import (
	"fmt"
	"log/slog"

	"github.com/mesh-intelligence/semid/pkg/types"
)

// EntityIdFinder executes the backing-store reads that translate an
// entity reference into (id, sortkey) or a surrogate ID back into its
// record. Unknown references are not errors: they resolve to ID 0.
// Implements: prd001-entity-identity R3.
type EntityIdFinder struct {
	store  types.Store
	cache  *IdCacheManager
	jobs   types.JobQueue
	logger *slog.Logger
}

// NewEntityIdFinder wires a finder. A nil logger falls back to
// slog.Default().
func NewEntityIdFinder(store types.Store, cache *IdCacheManager, jobs types.JobQueue, logger *slog.Logger) *EntityIdFinder {
	if logger == nil {
		logger = slog.Default()
	}
	return &EntityIdFinder{store: store, cache: cache, jobs: jobs, logger: logger}
}

// refConds renders the four identity columns of a reference.
func refConds(ref types.EntityReference) map[string]any {
	return map[string]any{
		"smw_title":     ref.Title,
		"smw_namespace": ref.Namespace,
		"smw_iw":        ref.Interwiki,
		"smw_subobject": ref.Subobject,
	}
}

// FindIDByReference resolves a reference to its surrogate ID, 0 when
// unknown. Cache-first; a store hit populates the cache.
func (f *EntityIdFinder) FindIDByReference(ref types.EntityReference) (int64, error) {
	if id, ok := f.cache.GetID(ref); ok {
		return id, nil
	}
	id, _, err := f.FetchByReference(ref)
	return id, err
}

// FetchByReference reads the fixed column projection for a reference and
// returns (id, sortkey), (0, "") when unknown. The stored content hash
// is verified against the recomputed one; a mismatch on a non-redirect
// row schedules an asynchronous repair and the stale-but-present row is
// served anyway.
func (f *EntityIdFinder) FetchByReference(ref types.EntityReference) (int64, string, error) {
	row, err := f.store.SelectRow(tableObjectIDs,
		[]string{"smw_id", "smw_sortkey", "smw_hash"}, refConds(ref))
	if err == types.ErrNoRows {
		return 0, "", nil
	}
	if err != nil {
		return 0, "", fmt.Errorf("fetch id for %v: %w", ref, err)
	}

	id := row.Int64("smw_id")
	sortkey := row.String("smw_sortkey")
	f.verifyHash(id, ref, row.String("smw_hash"))
	f.cache.SetCache(ref, id, sortkey)
	return id, sortkey, nil
}

// verifyHash enqueues a hash-repair job when the stored hash disagrees
// with the recomputed one. Redirect and other sentinel rows are skipped;
// their hash legitimately differs across marker rewrites.
func (f *EntityIdFinder) verifyHash(id int64, ref types.EntityReference, stored string) {
	if types.IsSentinelInterwiki(ref.Interwiki) {
		return
	}
	expected := ref.Hash()
	if stored == expected {
		return
	}
	f.logger.Warn("stored content hash is stale, scheduling repair",
		"id", id, "stored", stored, "expected", expected)
	f.jobs.Enqueue(types.Job{
		Kind: types.JobHashRepair,
		Params: map[string]any{
			"id":   id,
			"hash": expected,
		},
	})
}

// FetchByID resolves a surrogate ID back into its record. ok is false
// for an unknown ID.
func (f *EntityIdFinder) FetchByID(id int64) (types.SurrogateRecord, bool, error) {
	if ref, sortkey, sort, rev, ok := f.cache.GetLookup(id); ok {
		return types.SurrogateRecord{
			ID: id, Reference: ref, Sortkey: sortkey, Sort: sort,
			ContentHash: ref.Hash(), Revision: rev,
		}, true, nil
	}

	row, err := f.store.SelectRow(tableObjectIDs, objectIDColumns, map[string]any{"smw_id": id})
	if err == types.ErrNoRows {
		return types.SurrogateRecord{}, false, nil
	}
	if err != nil {
		return types.SurrogateRecord{}, false, fmt.Errorf("fetch record %d: %w", id, err)
	}
	rec := recordFromRow(row)
	f.rememberRecord(rec)
	return rec, true, nil
}

// FetchByIDs is the bulk dual of FetchByID: one IN query for all the
// given IDs, cache-populating. Unknown IDs are simply absent from the
// result.
func (f *EntityIdFinder) FetchByIDs(ids []int64) (map[int64]types.SurrogateRecord, error) {
	result := make(map[int64]types.SurrogateRecord, len(ids))
	var missing []int64
	for _, id := range ids {
		if ref, sortkey, sort, rev, ok := f.cache.GetLookup(id); ok {
			result[id] = types.SurrogateRecord{
				ID: id, Reference: ref, Sortkey: sortkey, Sort: sort,
				ContentHash: ref.Hash(), Revision: rev,
			}
			continue
		}
		missing = append(missing, id)
	}
	if len(missing) == 0 {
		return result, nil
	}

	rows, err := f.store.Select(tableObjectIDs, objectIDColumns,
		map[string]any{"smw_id": missing}, nil)
	if err != nil {
		return nil, fmt.Errorf("bulk fetch records: %w", err)
	}
	for _, row := range rows {
		rec := recordFromRow(row)
		f.rememberRecord(rec)
		result[rec.ID] = rec
	}
	return result, nil
}

// FindIDsByPartialReference returns all surrogate IDs matching the given
// fields. A nil interwiki or subobject means "all variants", which
// includes redirect- and delete-marked rows.
func (f *EntityIdFinder) FindIDsByPartialReference(title string, namespace int, interwiki, subobject *string) ([]int64, error) {
	conds := map[string]any{
		"smw_title":     title,
		"smw_namespace": namespace,
	}
	if interwiki != nil {
		conds["smw_iw"] = *interwiki
	}
	if subobject != nil {
		conds["smw_subobject"] = *subobject
	}
	rows, err := f.store.Select(tableObjectIDs, []string{"smw_id"}, conds,
		&types.SelectOptions{OrderBy: "smw_id"})
	if err != nil {
		return nil, fmt.Errorf("partial lookup %q: %w", title, err)
	}
	ids := make([]int64, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.Int64("smw_id"))
	}
	return ids, nil
}

func (f *EntityIdFinder) rememberRecord(rec types.SurrogateRecord) {
	f.cache.SetLookup(rec.ID, rec.Reference, rec.Sortkey, rec.Sort, rec.Revision)
	f.cache.SetCache(rec.Reference, rec.ID, rec.Sortkey)
}

func recordFromRow(row types.Row) types.SurrogateRecord {
	return types.SurrogateRecord{
		ID: row.Int64("smw_id"),
		Reference: types.EntityReference{
			Title:     row.String("smw_title"),
			Namespace: int(row.Int64("smw_namespace")),
			Interwiki: row.String("smw_iw"),
			Subobject: row.String("smw_subobject"),
		},
		Sortkey:     row.String("smw_sortkey"),
		Sort:        row.String("smw_sort"),
		ContentHash: row.String("smw_hash"),
		Revision:    row.Int64("smw_rev"),
	}
}
