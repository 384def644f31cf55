package engine

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/mesh-intelligence/semid/pkg/types"
)

// StubSemanticData is the per-subject container of property data in raw
// stub form. Tuples are materialized into typed values on first access
// per property, and sub-entity references are resolved only when asked
// for, so a cache hit never triggers cascading instantiation.
// Implements: prd008-semantic-data R2.
type StubSemanticData struct {
	subject types.EntityReference
	id      int64
	logger  *slog.Logger

	mu     sync.Mutex
	stubs  map[string][]stubTuple
	loaded map[string][]types.DataItem
	tables map[string]bool // property tables already merged into this stub
	full   bool            // fully loaded vs partially filled via the cache tier
}

// stubTuple is one not-yet-typed value: its kind and raw dbkey tuple.
type stubTuple struct {
	kind types.DataKind
	keys []string
}

// NewStubSemanticData creates an empty container for a subject.
func NewStubSemanticData(subject types.EntityReference, id int64, logger *slog.Logger) *StubSemanticData {
	if logger == nil {
		logger = slog.Default()
	}
	return &StubSemanticData{
		subject: subject,
		id:      id,
		logger:  logger,
		stubs:   make(map[string][]stubTuple),
		loaded:  make(map[string][]types.DataItem),
		tables:  make(map[string]bool),
	}
}

// Subject returns the reference this container belongs to.
func (s *StubSemanticData) Subject() types.EntityReference { return s.subject }

// ID returns the subject's surrogate ID.
func (s *StubSemanticData) ID() int64 { return s.id }

// AddStubValues appends raw tuples for a property. Any values already
// materialized for that property are invalidated so the next access
// re-materializes the union.
func (s *StubSemanticData) AddStubValues(property string, kind types.DataKind, tuples [][]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, keys := range tuples {
		s.stubs[property] = append(s.stubs[property], stubTuple{kind: kind, keys: keys})
	}
	delete(s.loaded, property)
}

// Properties returns the property keys present, sorted.
func (s *StubSemanticData) Properties() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	props := make([]string, 0, len(s.stubs))
	for p := range s.stubs {
		props = append(props, p)
	}
	sort.Strings(props)
	return props
}

// GetPropertyValues materializes and returns the typed values of one
// property. A malformed tuple is dropped with a log line and the rest
// of the property survives; a property whose type changed since storage
// must not crash the lookup.
func (s *StubSemanticData) GetPropertyValues(property string) []types.DataItem {
	s.mu.Lock()
	defer s.mu.Unlock()

	if items, ok := s.loaded[property]; ok {
		return items
	}
	tuples := s.stubs[property]
	items := make([]types.DataItem, 0, len(tuples))
	for _, t := range tuples {
		item, err := types.NewDataItem(t.kind, t.keys)
		if err != nil {
			s.logger.Warn("dropping malformed stored value",
				"subject", s.subject.String(), "property", property,
				"kind", t.kind.String(), "error", err)
			continue
		}
		items = append(items, item)
	}
	s.loaded[property] = items
	return items
}

// HasTable reports whether a property table was already merged into
// this stub, making a repeated fetch for it a no-op.
func (s *StubSemanticData) HasTable(table string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tables[table]
}

// MarkTable records that a property table has been merged.
func (s *StubSemanticData) MarkTable(table string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables[table] = true
}

// MarkComplete flags the container as fully loaded rather than
// partially filled through the cache tier.
func (s *StubSemanticData) MarkComplete() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.full = true
}

// IsComplete reports whether every property table was merged.
func (s *StubSemanticData) IsComplete() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.full
}

// SubSemanticData resolves the sub-entity references reachable from
// this subject's page values: stored values pointing at subobjects of
// the same base page. Resolution happens here, not at load time.
func (s *StubSemanticData) SubSemanticData() []types.EntityReference {
	s.mu.Lock()
	props := make([]string, 0, len(s.stubs))
	for p := range s.stubs {
		props = append(props, p)
	}
	s.mu.Unlock()
	sort.Strings(props)

	base := s.subject.Base()
	var subs []types.EntityReference
	seen := make(map[string]struct{})
	for _, p := range props {
		for _, item := range s.GetPropertyValues(p) {
			page, ok := item.(types.PageItem)
			if !ok || page.Ref.Subobject == "" {
				continue
			}
			if page.Ref.Base() != base {
				continue
			}
			if _, dup := seen[page.Ref.Hash()]; dup {
				continue
			}
			seen[page.Ref.Hash()] = struct{}{}
			subs = append(subs, page.Ref)
		}
	}
	return subs
}
