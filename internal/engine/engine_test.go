package engine

import (
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/mesh-intelligence/semid/internal/cache"
	"github.com/mesh-intelligence/semid/internal/codec"
	"github.com/mesh-intelligence/semid/internal/collation"
	"github.com/mesh-intelligence/semid/internal/sqlite"
	"github.com/mesh-intelligence/semid/pkg/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// recordingJobs captures enqueued jobs instead of running them.
type recordingJobs struct {
	mu   sync.Mutex
	jobs []types.Job
}

func (r *recordingJobs) Enqueue(job types.Job) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs = append(r.jobs, job)
}

func (r *recordingJobs) byKind(kind string) []types.Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []types.Job
	for _, j := range r.jobs {
		if j.Kind == kind {
			out = append(out, j)
		}
	}
	return out
}

func testCaches() map[string]types.Cache {
	caches := make(map[string]types.Cache, len(types.RequiredCaches))
	for _, name := range types.RequiredCaches {
		caches[name] = cache.NewLRU(256)
	}
	return caches
}

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.Open(t.TempDir(), false, testLogger())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func newTestManager(t *testing.T) (*EntityIdManager, *recordingJobs, *sqlite.Store) {
	t.Helper()
	store := newTestStore(t)
	jobs := &recordingJobs{}
	mgr, err := NewEntityIdManager(store, testCaches(), collation.New("en"),
		jobs, codec.NewSnappy(), types.DefaultConfig(), testLogger())
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return mgr, jobs, store
}

func mustMakeID(t *testing.T, m *EntityIdManager, ref types.EntityReference, sortkey string) int64 {
	t.Helper()
	id, err := m.MakeID(ref, sortkey)
	if err != nil {
		t.Fatalf("make id for %v: %v", ref, err)
	}
	if id <= 0 {
		t.Fatalf("make id for %v: got %d", ref, id)
	}
	return id
}
