package engine

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/mesh-intelligence/semid/pkg/types"
)

// Construction errors (prd001-entity-identity R7.2). An incomplete
// configuration is fatal at construction; it never surfaces lazily.
var (
	ErrNoStore    = errors.New("backing store is required")
	ErrNoCollator = errors.New("collator is required")
	ErrNoJobQueue = errors.New("job queue is required")
	ErrNoCodec    = errors.New("map codec is required")
)

// LookupResult is the outcome of a reference lookup. Redirect true with
// ID 0 means "known redirect, unresolved", which is distinct from "no
// such entity" (Redirect false, ID 0).
type LookupResult struct {
	ID       int64
	Sortkey  string
	Redirect bool
}

// EntityIdManager is the public façade of the identity engine. It
// composes the cache manager, finder, warmer, sequence-map finder,
// duplicate finder, and changer, and implements predefined-ID
// short-circuits, redirect-aware lookup, and transactional creation of
// new surrogate IDs.
// Implements: prd001-entity-identity R3, R4, R5.
type EntityIdManager struct {
	store    types.Store
	cache    *IdCacheManager
	finder   *EntityIdFinder
	dupes    *DuplicateFinder
	warmer   *CacheWarmer
	seqmaps  *SequenceMapFinder
	changer  *IdChanger
	collator types.Collator
	jobs     types.JobQueue
	codec    types.MapCodec
	logger   *slog.Logger
}

// NewEntityIdManager validates the collaborators and wires the engine.
// Every named cache in types.RequiredCaches must be present in caches.
func NewEntityIdManager(
	store types.Store,
	caches map[string]types.Cache,
	collator types.Collator,
	jobs types.JobQueue,
	codec types.MapCodec,
	cfg types.Config,
	logger *slog.Logger,
) (*EntityIdManager, error) {
	if store == nil {
		return nil, ErrNoStore
	}
	if collator == nil {
		return nil, ErrNoCollator
	}
	if jobs == nil {
		return nil, ErrNoJobQueue
	}
	if codec == nil {
		return nil, ErrNoCodec
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	cache, err := NewIdCacheManager(caches, cfg.RedirectShortCircuitTTL, cfg.ReverseLookupTTL)
	if err != nil {
		return nil, err
	}
	finder := NewEntityIdFinder(store, cache, jobs, logger)

	return &EntityIdManager{
		store:    store,
		cache:    cache,
		finder:   finder,
		dupes:    NewDuplicateFinder(store),
		warmer:   NewCacheWarmer(store, cache, finder, cfg.WarmUpThreshold),
		seqmaps:  NewSequenceMapFinder(store, cache, codec, logger),
		changer:  NewIdChanger(store, cache, jobs, logger),
		collator: collator,
		jobs:     jobs,
		codec:    codec,
		logger:   logger,
	}, nil
}

// CacheManager exposes the named caches, mainly to the semantic-data
// lookup tier that shares them.
func (m *EntityIdManager) CacheManager() *IdCacheManager { return m.cache }

// Finder exposes the by-ID and by-reference read path.
func (m *EntityIdManager) Finder() *EntityIdFinder { return m.finder }

// normalize resolves user-entered property labels to their internal
// keys. Only plain property-namespace references are affected.
func normalize(ref types.EntityReference) types.EntityReference {
	if ref.Namespace == types.NamespaceProperty && ref.Interwiki == "" && ref.Subobject == "" {
		ref.Title = types.NormalizePropertyLabel(ref.Title)
	}
	return ref
}

// GetID resolves a reference to its surrogate ID, 0 when unknown.
// Predefined properties short-circuit to their fixed IDs without a
// store round trip.
func (m *EntityIdManager) GetID(ref types.EntityReference) (int64, error) {
	ref = normalize(ref)
	if id, ok := types.PredefinedID(ref); ok {
		return id, nil
	}
	if !ref.Valid() {
		return 0, nil
	}
	return m.finder.FindIDByReference(ref)
}

// GetIDAndSort resolves a reference to (id, sortkey). With canonical
// set, a redirect-marked row is transparently followed through the
// redirect index to its target's ID and sortkey. Resolution is one hit
// on the dedicated index, never a chain walk: a target that is itself
// redirect-marked, missing, or equal to the source comes back as
// "known redirect, unresolved" instead of looping.
func (m *EntityIdManager) GetIDAndSort(ref types.EntityReference, canonical bool) (LookupResult, error) {
	ref = normalize(ref)
	if id, ok := types.PredefinedID(ref); ok {
		return LookupResult{ID: id, Sortkey: ref.Title}, nil
	}
	if !ref.Valid() {
		return LookupResult{}, nil
	}

	id, sortkey, err := m.lookupWithCache(ref)
	if err != nil {
		return LookupResult{}, err
	}

	if id > 0 {
		return LookupResult{ID: id, Sortkey: sortkey}, nil
	}

	// A cached zero can only come from redirect short-circuit seeding;
	// plain misses are never cached. Either zero entry therefore means
	// "known redirect", even before the marker row has an ID of its own.
	knownRedirect := m.cachedZero(ref)

	// The row may exist only under the redirect marker.
	redirectRef := ref.WithInterwiki(types.IWRedirect)
	redirectID, _, err := m.lookupWithCache(redirectRef)
	if err != nil {
		return LookupResult{}, err
	}
	if redirectID == 0 && !knownRedirect && !m.cachedZero(redirectRef) {
		return LookupResult{}, nil
	}
	if !canonical {
		return LookupResult{ID: 0, Redirect: true}, nil
	}
	return m.resolveRedirect(ref, redirectID)
}

// lookupWithCache reads (id, sortkey) for an exact reference, consulting
// both caches before the store.
func (m *EntityIdManager) lookupWithCache(ref types.EntityReference) (int64, string, error) {
	hash := ref.Hash()
	if id, ok := m.cache.GetIDByHash(hash); ok {
		sortkey, _ := m.cache.GetSort(hash)
		return id, sortkey, nil
	}
	return m.finder.FetchByReference(ref)
}

// cachedZero reports an explicit zero-ID cache entry for the reference.
func (m *EntityIdManager) cachedZero(ref types.EntityReference) bool {
	id, ok := m.cache.GetID(ref)
	return ok && id == 0
}

// resolveRedirect follows one redirect-index hit for a reference known
// to carry a redirect marker.
func (m *EntityIdManager) resolveRedirect(ref types.EntityReference, sourceID int64) (LookupResult, error) {
	row, err := m.store.SelectRow(tableRedirects, []string{"o_id"}, map[string]any{
		"s_title":     ref.Title,
		"s_namespace": ref.Namespace,
	})
	if err == types.ErrNoRows {
		return LookupResult{ID: 0, Redirect: true}, nil
	}
	if err != nil {
		return LookupResult{}, fmt.Errorf("resolve redirect for %v: %w", ref, err)
	}

	targetID := row.Int64("o_id")
	if targetID <= 0 || targetID == sourceID {
		// Self-referential or corrupt index entry; unresolved, never a loop.
		return LookupResult{ID: 0, Redirect: true}, nil
	}
	rec, ok, err := m.finder.FetchByID(targetID)
	if err != nil {
		return LookupResult{}, err
	}
	if !ok || rec.Reference.Interwiki == types.IWRedirect {
		return LookupResult{ID: 0, Redirect: true}, nil
	}
	return LookupResult{ID: targetID, Sortkey: rec.Sortkey, Redirect: true}, nil
}

// MakeID is the idempotent get-or-create operation. An existing entity
// returns its ID, updating only the sort field when an explicit sortkey
// differs in collation order from the stored one. A missing entity is
// created inside one atomic transaction with a re-check against
// concurrent creators; losing the insert race to the unique hash index
// degrades to a plain lookup of the winner's row.
func (m *EntityIdManager) MakeID(ref types.EntityReference, sortkey string) (int64, error) {
	ref = normalize(ref)
	if id, ok := types.PredefinedID(ref); ok {
		return id, nil
	}
	if !ref.Valid() {
		return 0, types.ErrInvalidReference
	}

	res, err := m.GetIDAndSort(ref, true)
	if err != nil {
		return 0, err
	}
	if res.ID > 0 {
		if sortkey != "" && sortkey != res.Sortkey {
			if err := m.updateSortkey(res.ID, ref, sortkey); err != nil {
				return 0, err
			}
		}
		return res.ID, nil
	}
	if res.Redirect {
		// Known redirect without a resolvable target still needs its own
		// row's ID for bookkeeping writes; fall through to create only
		// when even the marker row is absent.
		if id, _, err := m.lookupWithCache(ref.WithInterwiki(types.IWRedirect)); err != nil {
			return 0, err
		} else if id > 0 {
			return id, nil
		}
	}

	if sortkey == "" {
		sortkey = ref.Title
	}
	var id int64
	err = m.store.Atomic(func(tx types.Store) error {
		// Race guard: somebody may have created the row between the
		// check above and this transaction.
		row, err := tx.SelectRow(tableObjectIDs, []string{"smw_id"}, refConds(ref))
		if err == nil {
			id = row.Int64("smw_id")
			return nil
		}
		if err != types.ErrNoRows {
			return err
		}

		id, err = tx.NextSequenceValue(types.SequenceEntityID)
		if err != nil {
			return err
		}
		insertErr := tx.Insert(tableObjectIDs, types.Row{
			"smw_id":        id,
			"smw_title":     ref.Title,
			"smw_namespace": ref.Namespace,
			"smw_iw":        ref.Interwiki,
			"smw_subobject": ref.Subobject,
			"smw_sortkey":   sortkey,
			"smw_sort":      m.collator.SortKey(sortkey),
			"smw_hash":      ref.Hash(),
			"smw_rev":       int64(0),
		})
		if errors.Is(insertErr, types.ErrUniqueViolation) {
			// Concurrent creator won; adopt their row.
			row, err := tx.SelectRow(tableObjectIDs, []string{"smw_id"}, refConds(ref))
			if err != nil {
				return fmt.Errorf("re-read after lost creation race: %w", err)
			}
			id = row.Int64("smw_id")
			return nil
		}
		if insertErr != nil {
			return insertErr
		}

		if ref.Namespace == types.NamespaceProperty && ref.Subobject == "" {
			return tx.Upsert(tablePropStats,
				types.Row{"p_id": id, "usage_count": int64(0)},
				[]string{"p_id"},
				types.Row{"usage_count": int64(0)})
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("make id for %v: %w", ref, err)
	}

	m.cache.SetCache(ref, id, sortkey)
	return id, nil
}

// updateSortkey rewrites the sortkey and sort field of an existing row,
// unless the new sort field collates identical to the stored one.
func (m *EntityIdManager) updateSortkey(id int64, ref types.EntityReference, sortkey string) error {
	row, err := m.store.SelectRow(tableObjectIDs, []string{"smw_sort"}, map[string]any{"smw_id": id})
	if err != nil && err != types.ErrNoRows {
		return fmt.Errorf("read sort field %d: %w", id, err)
	}
	newSort := m.collator.SortKey(sortkey)
	if err == nil && m.collator.IsIdentical(row.String("smw_sort"), newSort) {
		// Ordering unchanged; update only the display text.
		newSort = row.String("smw_sort")
	}
	if err := m.store.Update(tableObjectIDs,
		types.Row{"smw_sortkey": sortkey, "smw_sort": newSort},
		map[string]any{"smw_id": id}); err != nil {
		return fmt.Errorf("update sortkey %d: %w", id, err)
	}
	m.cache.SetCache(ref, id, sortkey)
	m.cache.DeleteLookup(id)
	return nil
}

// UpdateInterwiki rewrites the interwiki field of a row, recomputing the
// stored content hash accordingly, and invalidates caches. This is how
// rows acquire and shed redirect/outdated markers.
func (m *EntityIdManager) UpdateInterwiki(id int64, interwiki string) error {
	rec, ok, err := m.finder.FetchByID(id)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	newRef := rec.Reference.WithInterwiki(interwiki)
	if err := m.store.Update(tableObjectIDs,
		types.Row{"smw_iw": interwiki, "smw_hash": newRef.Hash()},
		map[string]any{"smw_id": id}); err != nil {
		return fmt.Errorf("update interwiki %d: %w", id, err)
	}
	m.cache.DeleteCache(rec.Reference)
	m.cache.DeleteLookup(id)
	return nil
}

// UpdateRev records the wiki revision associated with an entity.
func (m *EntityIdManager) UpdateRev(id, rev int64) error {
	if err := m.store.Update(tableObjectIDs,
		types.Row{"smw_rev": rev},
		map[string]any{"smw_id": id}); err != nil {
		return fmt.Errorf("update revision %d: %w", id, err)
	}
	m.cache.DeleteLookup(id)
	return nil
}

// FindAssociatedRev returns the revision recorded for an entity, 0 when
// unknown.
func (m *EntityIdManager) FindAssociatedRev(id int64) (int64, error) {
	rec, ok, err := m.finder.FetchByID(id)
	if err != nil || !ok {
		return 0, err
	}
	return rec.Revision, nil
}

// AddRedirect records that (title, namespace) redirects to targetID in
// the dedicated redirect index.
func (m *EntityIdManager) AddRedirect(title string, namespace int, targetID int64) error {
	err := m.store.Upsert(tableRedirects,
		types.Row{"s_title": title, "s_namespace": namespace, "o_id": targetID},
		[]string{"s_title", "s_namespace"},
		types.Row{"o_id": targetID})
	if err != nil {
		return fmt.Errorf("add redirect %s: %w", title, err)
	}
	m.cache.DeleteCache(types.EntityReference{Title: title, Namespace: namespace})
	return nil
}

// DeleteRedirect removes the redirect index entry for (title, namespace).
func (m *EntityIdManager) DeleteRedirect(title string, namespace int) error {
	err := m.store.Delete(tableRedirects, map[string]any{
		"s_title":     title,
		"s_namespace": namespace,
	})
	if err != nil {
		return fmt.Errorf("delete redirect %s: %w", title, err)
	}
	m.cache.DeleteCache(types.EntityReference{Title: title, Namespace: namespace})
	return nil
}

// GetPropertyTableHashes returns the per-table content hashes recorded
// for an entity, used by the update pipeline to diff incremental
// changes. Empty map when none are stored.
func (m *EntityIdManager) GetPropertyTableHashes(id int64) (map[string]string, error) {
	if v, ok := m.cache.Get(types.CacheTableHash).Fetch(lookupKey(id)); ok {
		return v.(map[string]string), nil
	}
	row, err := m.store.SelectRow(tableObjectAux, []string{"smw_proptable"},
		map[string]any{"smw_id": id})
	if err == types.ErrNoRows {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read table hashes %d: %w", id, err)
	}
	hashes := map[string]string{}
	if blob := row.Bytes("smw_proptable"); len(blob) > 0 {
		if err := m.codec.Uncompress(blob, &hashes); err != nil {
			m.logger.Warn("dropping undecodable table hash map", "id", id, "error", err)
			hashes = map[string]string{}
		}
	}
	m.cache.Get(types.CacheTableHash).Save(lookupKey(id), hashes, 0)
	return hashes, nil
}

// SetPropertyTableHashes stores the per-table content hashes for an
// entity; nil or empty clears them.
func (m *EntityIdManager) SetPropertyTableHashes(id int64, hashes map[string]string) error {
	var blob any
	if len(hashes) > 0 {
		compressed, err := m.codec.Compress(hashes)
		if err != nil {
			return fmt.Errorf("compress table hashes %d: %w", id, err)
		}
		blob = compressed
	}
	err := m.store.Upsert(tableObjectAux,
		types.Row{"smw_id": id, "smw_proptable": blob},
		[]string{"smw_id"},
		types.Row{"smw_proptable": blob})
	if err != nil {
		return fmt.Errorf("store table hashes %d: %w", id, err)
	}
	if hashes == nil {
		hashes = map[string]string{}
	}
	m.cache.Get(types.CacheTableHash).Save(lookupKey(id), hashes, 0)
	return nil
}

// GetSequenceMap returns the stored insertion-order map for an entity.
func (m *EntityIdManager) GetSequenceMap(id int64) (types.SequenceMap, error) {
	return m.seqmaps.FindMapByID(id)
}

// SetSequenceMap stores (or clears) the insertion-order map.
func (m *EntityIdManager) SetSequenceMap(id int64, seq types.SequenceMap) error {
	return m.seqmaps.SetMap(id, seq)
}

// LoadSequenceMaps bulk-loads the maps for a batch of IDs into cache.
func (m *EntityIdManager) LoadSequenceMaps(ids []int64) error {
	return m.seqmaps.Prefetch(ids)
}

// SequenceMaps exposes the sequence-map finder.
func (m *EntityIdManager) SequenceMaps() *SequenceMapFinder { return m.seqmaps }

// IsUnique reports whether the uniqueness invariant holds for one
// reference.
func (m *EntityIdManager) IsUnique(ref types.EntityReference) (bool, error) {
	return m.dupes.IsUnique(normalize(ref))
}

// FindDuplicates reports all reference-column collisions.
func (m *EntityIdManager) FindDuplicates() ([]DuplicateReport, error) {
	return m.dupes.FindDuplicates()
}

// MoveID migrates curID (and every row referencing it) to targetID;
// targetID 0 allocates a fresh ID.
func (m *EntityIdManager) MoveID(curID, targetID int64) (*types.SurrogateRecord, error) {
	return m.changer.Move(curID, targetID)
}

// Dispose removes an entity entirely. Maintenance only.
func (m *EntityIdManager) Dispose(id int64) error {
	return m.changer.Dispose(id)
}

// WarmUpCache bulk pre-populates the ID cache for a batch of references.
func (m *EntityIdManager) WarmUpCache(refs []types.EntityReference) error {
	return m.warmer.PrepareCache(refs)
}

// WarmUpByIDs bulk pre-populates the by-ID cache.
func (m *EntityIdManager) WarmUpByIDs(ids []int64) error {
	return m.warmer.LoadByIDs(ids)
}

// DeleteCache drops the cache entries derived from a reference.
func (m *EntityIdManager) DeleteCache(ref types.EntityReference) {
	m.cache.DeleteCache(normalize(ref))
}

// RepairHash rewrites the stored content hash of a row from its current
// reference fields. It is the handler behind the async hash-repair job.
func (m *EntityIdManager) RepairHash(id int64) error {
	row, err := m.store.SelectRow(tableObjectIDs,
		[]string{"smw_title", "smw_namespace", "smw_iw", "smw_subobject"},
		map[string]any{"smw_id": id})
	if err == types.ErrNoRows {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read row %d for hash repair: %w", id, err)
	}
	ref := types.EntityReference{
		Title:     row.String("smw_title"),
		Namespace: int(row.Int64("smw_namespace")),
		Interwiki: row.String("smw_iw"),
		Subobject: row.String("smw_subobject"),
	}
	if err := m.store.Update(tableObjectIDs,
		types.Row{"smw_hash": ref.Hash()},
		map[string]any{"smw_id": id}); err != nil {
		return fmt.Errorf("repair hash %d: %w", id, err)
	}
	m.cache.DeleteLookup(id)
	return nil
}
