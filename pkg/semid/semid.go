// Package semid is the public entry point of the entity identity engine:
// it wires the SQLite store, the cache tiers, the collation service, and
// the async job queue into one Engine.
// Implements: prd001-entity-identity R1; docs/ARCHITECTURE § Public API.
package semid

import (
	"fmt"
	"log/slog"

	"github.com/mesh-intelligence/semid/internal/cache"
	"github.com/mesh-intelligence/semid/internal/codec"
	"github.com/mesh-intelligence/semid/internal/collation"
	"github.com/mesh-intelligence/semid/internal/engine"
	"github.com/mesh-intelligence/semid/internal/jobs"
	"github.com/mesh-intelligence/semid/internal/sqlite"
	"github.com/mesh-intelligence/semid/pkg/types"
)

// Version is the semid release version.
const Version = "v0.3.0"

// jobQueueBuffer bounds the async fixup queue. Dropped jobs are
// re-triggered by the next read that observes the same inconsistency.
const jobQueueBuffer = 256

// Engine is an attached identity engine. Create one with New and
// release it with Close.
type Engine struct {
	store *sqlite.Store
	queue *jobs.Queue

	ids      *engine.EntityIdManager
	data     *engine.CachingSemanticDataLookup
	prefetch *engine.PrefetchCache
}

// New opens (or creates) the store under cfg.DataDir and wires a ready
// engine. A nil logger falls back to slog.Default().
func New(cfg types.Config, logger *slog.Logger) (*Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	store, err := sqlite.Open(cfg.DataDir, false, logger)
	if err != nil {
		return nil, err
	}

	queue := jobs.NewQueue(jobQueueBuffer, logger)
	caches := map[string]types.Cache{
		types.CacheEntityID:     cache.NewLRU(cfg.IDCacheSize),
		types.CacheEntitySort:   cache.NewLRU(cfg.SortCacheSize),
		types.CacheEntityLookup: cache.NewLRU(cfg.LookupCacheSize),
		types.CacheTableHash:    cache.NewLRU(cfg.TableHashCacheSize),
		types.CacheSequenceMap:  cache.NewLRU(cfg.SequenceMapCacheSize),
	}

	ids, err := engine.NewEntityIdManager(store, caches, collation.New(cfg.Language),
		queue, codec.NewSnappy(), cfg, logger)
	if err != nil {
		queue.Close()
		store.Close()
		return nil, err
	}

	data := engine.NewSemanticDataLookup(store, ids.Finder(), cache.NewMemory(),
		cfg.SemanticDataCacheSize, cfg.SemanticDataTTL, logger)
	prefetch := engine.NewPrefetchCache(store, ids.Finder(), logger)

	queue.Register(types.JobHashRepair, func(job types.Job) error {
		id, ok := jobID(job)
		if !ok {
			return fmt.Errorf("hash repair job %s without id", job.ID)
		}
		return ids.RepairHash(id)
	})
	queue.Register(types.JobEntityUpdate, func(job types.Job) error {
		id, ok := jobID(job)
		if !ok {
			return fmt.Errorf("entity update job %s without id", job.ID)
		}
		// The rows already moved; what remains is dropping derived state.
		data.Invalidate(id)
		ids.CacheManager().DeleteLookup(id)
		return nil
	})

	return &Engine{store: store, queue: queue, ids: ids, data: data, prefetch: prefetch}, nil
}

// jobID extracts the surrogate ID parameter common to both job kinds.
func jobID(job types.Job) (int64, bool) {
	switch v := job.Params["id"].(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case float64:
		return int64(v), true
	default:
		return 0, false
	}
}

// IDs returns the identity manager: surrogate lookup, creation, redirect
// resolution, warm-up, sequence maps, migration.
func (e *Engine) IDs() *engine.EntityIdManager { return e.ids }

// Data returns the semantic-data cache tier.
func (e *Engine) Data() *engine.CachingSemanticDataLookup { return e.data }

// Prefetch returns the per-request property prefetch cache.
func (e *Engine) Prefetch() *engine.PrefetchCache { return e.prefetch }

// Store exposes the backing store for maintenance tooling.
func (e *Engine) Store() types.Store { return e.store }

// Close drains the job queue and closes the store. Idempotent closes of
// the underlying store are not supported; call Close exactly once.
func (e *Engine) Close() error {
	e.queue.Close()
	return e.store.Close()
}
