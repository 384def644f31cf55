package engine

import (
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"github.com/mesh-intelligence/semid/pkg/types"
)

// PrefetchCache batches the lookup of one property across many subjects
// into a single bulk query and demultiplexes the combined result per
// subject. A chained prefetch (traversing through a property to the
// next) reuses the previous step's flat result list as its subject set
// without re-querying.
// Implements: prd008-semantic-data R4.
type PrefetchCache struct {
	store  types.Store
	finder *EntityIdFinder
	logger *slog.Logger

	mu      sync.Mutex
	filled  map[string]bool
	buckets map[string]map[string][]types.DataItem
	more    map[string]map[string]bool
	chains  map[string][]types.EntityReference
}

// PrefetchOptions tunes one prefetch pass.
type PrefetchOptions struct {
	// ByHash keys the demultiplexed results by subject content hash
	// instead of surrogate ID.
	ByHash bool
	// Chain marks the traversal step so chained prefetches through the
	// same property stay distinct.
	Chain string
	// Limit caps values per subject. The combined query itself is never
	// limited: truncating before the per-subject split would starve
	// subjects that sort late.
	Limit int
}

// NewPrefetchCache wires a prefetch cache.
func NewPrefetchCache(store types.Store, finder *EntityIdFinder, logger *slog.Logger) *PrefetchCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &PrefetchCache{
		store:   store,
		finder:  finder,
		logger:  logger,
		filled:  make(map[string]bool),
		buckets: make(map[string]map[string][]types.DataItem),
		more:    make(map[string]map[string]bool),
		chains:  make(map[string][]types.EntityReference),
	}
}

func prefetchKey(property string, opts PrefetchOptions) string {
	return property + "#" + opts.Chain
}

func (p *PrefetchCache) subjectKey(id int64, hash string, opts PrefetchOptions) string {
	if opts.ByHash {
		return hash
	}
	return strconv.FormatInt(id, 10)
}

// Prefetch fills the cache bucket for (property, subjects) with one
// bulk query and returns the flat list of page entities found, which a
// chained call can use as its next subject set. Already filled buckets
// are not re-queried.
func (p *PrefetchCache) Prefetch(subjects []types.EntityReference, property string, kind types.DataKind, opts PrefetchOptions) ([]types.EntityReference, error) {
	key := prefetchKey(property, opts)

	p.mu.Lock()
	if p.filled[key] {
		chain := p.chains[key]
		p.mu.Unlock()
		return chain, nil
	}
	p.mu.Unlock()

	table, ok := TableForKind(kind)
	if !ok {
		return nil, types.ErrUnknownKind
	}

	propRef := types.EntityReference{
		Title:     types.NormalizePropertyLabel(property),
		Namespace: types.NamespaceProperty,
	}
	propID, err := p.finder.FindIDByReference(propRef)
	if err != nil {
		return nil, err
	}

	// Map each subject's surrogate ID back to its demux key.
	keyByID := make(map[int64]string, len(subjects))
	var subjectIDs []int64
	for _, subject := range subjects {
		id, err := p.finder.FindIDByReference(subject)
		if err != nil {
			return nil, err
		}
		if id == 0 {
			continue
		}
		subjectIDs = append(subjectIDs, id)
		keyByID[id] = p.subjectKey(id, subject.Hash(), opts)
	}

	bucket := make(map[string][]types.DataItem)
	moreBucket := make(map[string]bool)
	var chain []types.EntityReference

	if propID > 0 && len(subjectIDs) > 0 {
		columns := append([]string{"s_id"}, table.ValueColumns...)
		rows, err := p.store.Select(table.Name, columns, map[string]any{
			"s_id": subjectIDs,
			"p_id": propID,
		}, nil)
		if err != nil {
			return nil, fmt.Errorf("prefetch %s: %w", property, err)
		}

		var targets map[int64]types.SurrogateRecord
		if table.Kind == types.KindPage {
			targetIDs := make(map[int64]struct{}, len(rows))
			for _, row := range rows {
				targetIDs[row.Int64("o_id")] = struct{}{}
			}
			targets, err = p.finder.FetchByIDs(setToSlice(targetIDs))
			if err != nil {
				return nil, err
			}
		}

		for _, row := range rows {
			subjKey, ok := keyByID[row.Int64("s_id")]
			if !ok {
				continue
			}
			var item types.DataItem
			if table.Kind == types.KindPage {
				target, ok := targets[row.Int64("o_id")]
				if !ok {
					p.logger.Warn("dropping prefetched value with unknown target",
						"property", property, "target_id", row.Int64("o_id"))
					continue
				}
				item = types.PageItem{Ref: target.Reference}
				chain = append(chain, target.Reference)
			} else {
				decoded, err := types.NewDataItem(table.Kind, table.rowTuple(row))
				if err != nil {
					p.logger.Warn("dropping malformed prefetched value",
						"property", property, "error", err)
					continue
				}
				item = decoded
			}

			// Lookahead discipline: keep one value beyond the limit to
			// learn there is more, then trim.
			if opts.Limit > 0 && len(bucket[subjKey]) >= opts.Limit {
				moreBucket[subjKey] = true
				continue
			}
			bucket[subjKey] = append(bucket[subjKey], item)
		}
	}

	p.mu.Lock()
	if existing, ok := p.buckets[key]; ok {
		for k, v := range bucket {
			existing[k] = v
		}
	} else {
		p.buckets[key] = bucket
	}
	p.more[key] = moreBucket
	p.chains[key] = chain
	p.filled[key] = true
	p.mu.Unlock()

	return chain, nil
}

// GetPropertyValues returns the prefetched values of a property for one
// subject. ok is false when no prefetch covered that (property, chain)
// pair; the caller then falls back to the per-subject path.
func (p *PrefetchCache) GetPropertyValues(subject types.EntityReference, property string, opts PrefetchOptions) ([]types.DataItem, bool) {
	key := prefetchKey(property, opts)

	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.filled[key] {
		return nil, false
	}

	id, cached := p.finder.cache.GetID(subject)
	if !cached && !opts.ByHash {
		return nil, true
	}
	return p.buckets[key][p.subjectKey(id, subject.Hash(), opts)], true
}

// HasMore reports whether a subject had values beyond the prefetch
// limit.
func (p *PrefetchCache) HasMore(subject types.EntityReference, property string, opts PrefetchOptions) bool {
	key := prefetchKey(property, opts)

	p.mu.Lock()
	defer p.mu.Unlock()
	id, _ := p.finder.cache.GetID(subject)
	return p.more[key][p.subjectKey(id, subject.Hash(), opts)]
}

// Reset drops all prefetched buckets, e.g. at the end of a request.
func (p *PrefetchCache) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.filled = make(map[string]bool)
	p.buckets = make(map[string]map[string][]types.DataItem)
	p.more = make(map[string]map[string]bool)
	p.chains = make(map[string][]types.EntityReference)
}
