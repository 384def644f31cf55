package engine

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mesh-intelligence/semid/pkg/types"
)

// CachingSemanticDataLookup is the second, independent cache tier: it
// caches whole per-entity property-table result sets. A small
// process-local map of live stubs sits above a persistent TTL cache
// keyed by (id, propertyTable); the backing store is consulted only on
// miss or staleness.
// Implements: prd008-semantic-data R1, R3.
type CachingSemanticDataLookup struct {
	store      types.Store
	finder     *EntityIdFinder
	persistent types.Cache
	ttl        time.Duration
	capacity   int
	logger     *slog.Logger

	mu        sync.Mutex
	stubs     map[int64]*StubSemanticData
	order     []int64 // insertion order for eviction
	lockCount int     // active fetches; guards against recursive clearing
}

// cachedTable is the persistent cache entry for one (id, table) pair.
type cachedTable struct {
	Kind   types.DataKind
	Tuples map[string][][]string // property key → dbkey tuples
}

// NewSemanticDataLookup wires the lookup. capacity bounds the live
// in-process stubs; persistent entries expire after ttl.
func NewSemanticDataLookup(store types.Store, finder *EntityIdFinder, persistent types.Cache, capacity int, ttl time.Duration, logger *slog.Logger) *CachingSemanticDataLookup {
	if logger == nil {
		logger = slog.Default()
	}
	if capacity <= 0 {
		capacity = 20
	}
	return &CachingSemanticDataLookup{
		store:      store,
		finder:     finder,
		persistent: persistent,
		ttl:        ttl,
		capacity:   capacity,
		logger:     logger,
		stubs:      make(map[int64]*StubSemanticData),
	}
}

func semanticDataKey(id int64, table string) string {
	return fmt.Sprintf("semid:sd:%d:%s", id, table)
}

// GetSemanticData returns the fully loaded container for a subject,
// fetching every property table through the cache tiers.
func (l *CachingSemanticDataLookup) GetSemanticData(id int64, subject types.EntityReference) (*StubSemanticData, error) {
	var stub *StubSemanticData
	for _, table := range PropertyTables() {
		var err error
		stub, err = l.FetchForTable(id, subject, table)
		if err != nil {
			return nil, err
		}
	}
	stub.MarkComplete()
	return stub, nil
}

// FetchForTable merges one property table's rows for a subject into its
// stub container. Returns immediately when that table was already
// merged; otherwise reads the persistent cache, validates freshness,
// falls back to the backing store, writes back, and folds the rows in
// as raw stub values.
func (l *CachingSemanticDataLookup) FetchForTable(id int64, subject types.EntityReference, table PropertyTable) (*StubSemanticData, error) {
	l.mu.Lock()
	l.lockCount++
	stub := l.ensureStub(id, subject)
	l.mu.Unlock()
	defer func() {
		l.mu.Lock()
		l.lockCount--
		l.mu.Unlock()
	}()

	if stub.HasTable(table.Name) {
		return stub, nil
	}

	key := semanticDataKey(id, table.Name)
	if v, ok := l.persistent.Fetch(key); ok {
		if entry, valid := v.(cachedTable); valid && l.fresh(entry) {
			for prop, tuples := range entry.Tuples {
				stub.AddStubValues(prop, entry.Kind, tuples)
			}
			stub.MarkTable(table.Name)
			return stub, nil
		}
		l.persistent.Delete(key)
	}

	entry, err := l.readTable(id, table)
	if err != nil {
		return nil, err
	}
	l.persistent.Save(key, entry, l.ttl)

	for prop, tuples := range entry.Tuples {
		stub.AddStubValues(prop, entry.Kind, tuples)
	}
	stub.MarkTable(table.Name)
	return stub, nil
}

// fresh rejects cached page rows that carry unresolved redirect,
// outdated, or deleted markers; those must be re-read so the resolved
// target is served.
func (l *CachingSemanticDataLookup) fresh(entry cachedTable) bool {
	if entry.Kind != types.KindPage {
		return true
	}
	for _, tuples := range entry.Tuples {
		for _, keys := range tuples {
			if len(keys) == 4 && types.IsSentinelInterwiki(keys[2]) {
				return false
			}
		}
	}
	return true
}

// readTable performs the backing-store read for one (id, table) pair
// and renders the rows as property→tuple groups.
func (l *CachingSemanticDataLookup) readTable(id int64, table PropertyTable) (cachedTable, error) {
	columns := append([]string{"p_id"}, table.ValueColumns...)
	rows, err := l.store.Select(table.Name, columns, map[string]any{"s_id": id}, nil)
	if err != nil {
		return cachedTable{}, fmt.Errorf("read %s for %d: %w", table.Name, id, err)
	}
	entry := cachedTable{Kind: table.Kind, Tuples: make(map[string][][]string)}
	if len(rows) == 0 {
		return entry, nil
	}

	// Resolve property IDs and, for page values, target IDs in two bulk
	// reads instead of per-row queries.
	propIDs := make(map[int64]struct{})
	targetIDs := make(map[int64]struct{})
	for _, row := range rows {
		propIDs[row.Int64("p_id")] = struct{}{}
		if table.Kind == types.KindPage {
			targetIDs[row.Int64("o_id")] = struct{}{}
		}
	}
	props, err := l.finder.FetchByIDs(setToSlice(propIDs))
	if err != nil {
		return cachedTable{}, err
	}
	var targets map[int64]types.SurrogateRecord
	if table.Kind == types.KindPage {
		targets, err = l.finder.FetchByIDs(setToSlice(targetIDs))
		if err != nil {
			return cachedTable{}, err
		}
	}

	for _, row := range rows {
		prop, ok := props[row.Int64("p_id")]
		if !ok {
			l.logger.Warn("dropping value of unknown property",
				"subject", id, "property_id", row.Int64("p_id"), "table", table.Name)
			continue
		}
		key := prop.Reference.Title

		var tuple []string
		if table.Kind == types.KindPage {
			target, ok := targets[row.Int64("o_id")]
			if !ok {
				l.logger.Warn("dropping value with unknown target",
					"subject", id, "target_id", row.Int64("o_id"))
				continue
			}
			tuple = types.PageItem{Ref: target.Reference}.DBKeys()
		} else {
			tuple = table.rowTuple(row)
		}
		entry.Tuples[key] = append(entry.Tuples[key], tuple)
	}
	return entry, nil
}

// ensureStub returns the live stub for an ID, creating and, when the
// tier is full, evicting. While nested lookups are active only the
// entry being fetched is retained, which keeps recursion from churning
// the whole tier. Callers hold l.mu.
func (l *CachingSemanticDataLookup) ensureStub(id int64, subject types.EntityReference) *StubSemanticData {
	if stub, ok := l.stubs[id]; ok {
		return stub
	}
	if len(l.stubs) >= l.capacity {
		if l.lockCount > 1 {
			for k := range l.stubs {
				delete(l.stubs, k)
			}
			l.order = l.order[:0]
		} else {
			oldest := l.order[0]
			l.order = l.order[1:]
			delete(l.stubs, oldest)
		}
	}
	stub := NewStubSemanticData(subject, id, l.logger)
	l.stubs[id] = stub
	l.order = append(l.order, id)
	return stub
}

// Invalidate drops everything cached for an entity, in both tiers.
// Called on every write path touching that entity's property data.
func (l *CachingSemanticDataLookup) Invalidate(id int64) {
	l.mu.Lock()
	if _, ok := l.stubs[id]; ok {
		delete(l.stubs, id)
		for i, v := range l.order {
			if v == id {
				l.order = append(l.order[:i], l.order[i+1:]...)
				break
			}
		}
	}
	l.mu.Unlock()

	for _, table := range PropertyTables() {
		l.persistent.Delete(semanticDataKey(id, table.Name))
	}
}

// Clear drops the whole in-process tier. A clear requested while a
// fetch is active is ignored; the fetch in flight must keep its stub.
func (l *CachingSemanticDataLookup) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.lockCount > 0 {
		return
	}
	l.stubs = make(map[int64]*StubSemanticData)
	l.order = nil
}

func setToSlice(set map[int64]struct{}) []int64 {
	out := make([]int64, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}
