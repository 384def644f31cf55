package engine

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/mesh-intelligence/semid/pkg/types"
)

// SequenceMapFinder stores and retrieves the compressed ordered-position
// maps kept per surrogate ID in the auxiliary table. The maps preserve
// the original insertion order of multi-valued properties despite
// unordered relational storage.
// Implements: prd007-sequence-maps.
type SequenceMapFinder struct {
	store  types.Store
	cache  *IdCacheManager
	codec  types.MapCodec
	logger *slog.Logger

	// lastSignature memoizes the most recent bulk prefetch so the same
	// batch is not re-read within one request.
	mu            sync.Mutex
	lastSignature string
}

// NewSequenceMapFinder wires a finder.
func NewSequenceMapFinder(store types.Store, cache *IdCacheManager, codec types.MapCodec, logger *slog.Logger) *SequenceMapFinder {
	if logger == nil {
		logger = slog.Default()
	}
	return &SequenceMapFinder{store: store, cache: cache, codec: codec, logger: logger}
}

// SetMap compresses and stores the sequence map for an ID, or clears the
// stored blob when the map is nil or empty.
func (f *SequenceMapFinder) SetMap(id int64, m types.SequenceMap) error {
	var blob any
	if len(m) > 0 {
		compressed, err := f.codec.Compress(m)
		if err != nil {
			return fmt.Errorf("compress sequence map %d: %w", id, err)
		}
		blob = compressed
	}
	err := f.store.Upsert(tableObjectAux,
		types.Row{"smw_id": id, "smw_seqmap": blob},
		[]string{"smw_id"},
		types.Row{"smw_seqmap": blob})
	if err != nil {
		return fmt.Errorf("store sequence map %d: %w", id, err)
	}
	f.cache.Get(types.CacheSequenceMap).Save(lookupKey(id), m, 0)
	return nil
}

// FindMapByID returns the sequence map for an ID, cache-first. An ID
// with no stored map returns an empty (non-nil) map.
func (f *SequenceMapFinder) FindMapByID(id int64) (types.SequenceMap, error) {
	if v, ok := f.cache.Get(types.CacheSequenceMap).Fetch(lookupKey(id)); ok {
		if m, valid := v.(types.SequenceMap); valid && m != nil {
			return m, nil
		}
		return types.SequenceMap{}, nil
	}

	row, err := f.store.SelectRow(tableObjectAux, []string{"smw_seqmap"},
		map[string]any{"smw_id": id})
	if err == types.ErrNoRows {
		m := types.SequenceMap{}
		f.cache.Get(types.CacheSequenceMap).Save(lookupKey(id), m, 0)
		return m, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read sequence map %d: %w", id, err)
	}
	m := f.decode(id, row.Bytes("smw_seqmap"))
	f.cache.Get(types.CacheSequenceMap).Save(lookupKey(id), m, 0)
	return m, nil
}

// Prefetch loads the sequence maps for a batch of IDs in one read. A
// repeated call with the same batch within one request is a no-op; the
// per-batch signature memo covers exactly that case.
func (f *SequenceMapFinder) Prefetch(ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	signature := batchSignature(ids)

	f.mu.Lock()
	if f.lastSignature == signature {
		f.mu.Unlock()
		return nil
	}
	f.mu.Unlock()

	var missing []int64
	for _, id := range ids {
		if !f.cache.Get(types.CacheSequenceMap).Contains(lookupKey(id)) {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		rows, err := f.store.Select(tableObjectAux, []string{"smw_id", "smw_seqmap"},
			map[string]any{"smw_id": missing}, nil)
		if err != nil {
			return fmt.Errorf("prefetch sequence maps: %w", err)
		}
		found := make(map[int64]struct{}, len(rows))
		for _, row := range rows {
			id := row.Int64("smw_id")
			found[id] = struct{}{}
			f.cache.Get(types.CacheSequenceMap).Save(lookupKey(id), f.decode(id, row.Bytes("smw_seqmap")), 0)
		}
		// IDs with no aux row get an empty map cached, so per-item reads
		// after a prefetch never fall through to the store.
		for _, id := range missing {
			if _, ok := found[id]; !ok {
				f.cache.Get(types.CacheSequenceMap).Save(lookupKey(id), types.SequenceMap{}, 0)
			}
		}
	}

	f.mu.Lock()
	f.lastSignature = signature
	f.mu.Unlock()
	return nil
}

// SetCountMap compresses and stores the per-property value counts.
func (f *SequenceMapFinder) SetCountMap(id int64, m types.CountMap) error {
	var blob any
	if len(m) > 0 {
		compressed, err := f.codec.Compress(m)
		if err != nil {
			return fmt.Errorf("compress count map %d: %w", id, err)
		}
		blob = compressed
	}
	err := f.store.Upsert(tableObjectAux,
		types.Row{"smw_id": id, "smw_countmap": blob},
		[]string{"smw_id"},
		types.Row{"smw_countmap": blob})
	if err != nil {
		return fmt.Errorf("store count map %d: %w", id, err)
	}
	return nil
}

// FindCountMapByID returns the count map for an ID, empty when absent.
func (f *SequenceMapFinder) FindCountMapByID(id int64) (types.CountMap, error) {
	row, err := f.store.SelectRow(tableObjectAux, []string{"smw_countmap"},
		map[string]any{"smw_id": id})
	if err == types.ErrNoRows {
		return types.CountMap{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read count map %d: %w", id, err)
	}
	blob := row.Bytes("smw_countmap")
	if len(blob) == 0 {
		return types.CountMap{}, nil
	}
	var m types.CountMap
	if err := f.codec.Uncompress(blob, &m); err != nil {
		f.logger.Warn("dropping undecodable count map", "id", id, "error", err)
		return types.CountMap{}, nil
	}
	return m, nil
}

// decode uncompresses a stored blob; an undecodable blob degrades to an
// empty map rather than failing the read.
func (f *SequenceMapFinder) decode(id int64, blob []byte) types.SequenceMap {
	if len(blob) == 0 {
		return types.SequenceMap{}
	}
	var m types.SequenceMap
	if err := f.codec.Uncompress(blob, &m); err != nil {
		f.logger.Warn("dropping undecodable sequence map", "id", id, "error", err)
		return types.SequenceMap{}
	}
	return m
}

// batchSignature hashes a sorted copy of the batch so signature equality
// is order-insensitive.
func batchSignature(ids []int64) string {
	sorted := make([]int64, len(ids))
	copy(sorted, ids)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	h := sha1.New()
	for _, id := range sorted {
		fmt.Fprintf(h, "%d,", id)
	}
	return hex.EncodeToString(h.Sum(nil))
}
