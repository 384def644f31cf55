package engine

import (
	"testing"

	"github.com/mesh-intelligence/semid/pkg/types"
)

func newTestPrefetch(t *testing.T) (*PrefetchCache, *EntityIdManager, types.Store) {
	t.Helper()
	m, _, store := newTestManager(t)
	return NewPrefetchCache(store, m.Finder(), testLogger()), m, store
}

func TestPrefetchDemultiplexesPerSubject(t *testing.T) {
	p, m, store := newTestPrefetch(t)

	berlin := types.EntityReference{Title: "Berlin"}
	hamburg := types.EntityReference{Title: "Hamburg"}
	bremen := types.EntityReference{Title: "Bremen"}
	berlinID := mustMakeID(t, m, berlin, "")
	hamburgID := mustMakeID(t, m, hamburg, "")
	mustMakeID(t, m, bremen, "")
	population := mustMakeID(t, m, types.EntityReference{
		Title: "Population", Namespace: types.NamespaceProperty,
	}, "")

	// Three values for one subject, one for another, none for the third.
	insertNumberValue(t, store, berlinID, population, "3645000")
	insertNumberValue(t, store, berlinID, population, "3664088")
	insertNumberValue(t, store, berlinID, population, "3677472")
	insertNumberValue(t, store, hamburgID, population, "1841179")

	subjects := []types.EntityReference{berlin, hamburg, bremen}
	opts := PrefetchOptions{Limit: 2}
	if _, err := p.Prefetch(subjects, "Population", types.KindNumber, opts); err != nil {
		t.Fatalf("prefetch: %v", err)
	}

	values, covered := p.GetPropertyValues(berlin, "Population", opts)
	if !covered {
		t.Fatal("prefetched property not covered")
	}
	if len(values) != 2 {
		t.Fatalf("berlin values = %d, want limit 2", len(values))
	}
	if !p.HasMore(berlin, "Population", opts) {
		t.Error("lookahead beyond the limit not reported")
	}

	values, covered = p.GetPropertyValues(hamburg, "Population", opts)
	if !covered || len(values) != 1 {
		t.Fatalf("hamburg values = (%d, %v), want (1, true)", len(values), covered)
	}
	if p.HasMore(hamburg, "Population", opts) {
		t.Error("subject within the limit reports more")
	}

	values, covered = p.GetPropertyValues(bremen, "Population", opts)
	if !covered || len(values) != 0 {
		t.Fatalf("bremen values = (%d, %v), want (0, true)", len(values), covered)
	}

	// A property never prefetched falls back to the per-subject path.
	if _, covered := p.GetPropertyValues(berlin, "Area", opts); covered {
		t.Error("unprefetched property reported as covered")
	}
}

func TestPrefetchFilledBucketNotRequeried(t *testing.T) {
	p, m, store := newTestPrefetch(t)

	berlin := types.EntityReference{Title: "Berlin"}
	berlinID := mustMakeID(t, m, berlin, "")
	population := mustMakeID(t, m, types.EntityReference{
		Title: "Population", Namespace: types.NamespaceProperty,
	}, "")
	insertNumberValue(t, store, berlinID, population, "3645000")

	opts := PrefetchOptions{}
	if _, err := p.Prefetch([]types.EntityReference{berlin}, "Population", types.KindNumber, opts); err != nil {
		t.Fatalf("prefetch: %v", err)
	}

	// A row added after the fill stays invisible to the repeated call.
	insertNumberValue(t, store, berlinID, population, "9999999")
	if _, err := p.Prefetch([]types.EntityReference{berlin}, "Population", types.KindNumber, opts); err != nil {
		t.Fatalf("repeat prefetch: %v", err)
	}
	values, _ := p.GetPropertyValues(berlin, "Population", opts)
	if len(values) != 1 {
		t.Fatalf("values after repeat = %d, want the original fill", len(values))
	}

	p.Reset()
	if _, covered := p.GetPropertyValues(berlin, "Population", opts); covered {
		t.Fatal("bucket survived Reset")
	}
}

func TestPrefetchChained(t *testing.T) {
	p, m, store := newTestPrefetch(t)

	berlin := types.EntityReference{Title: "Berlin"}
	germany := types.EntityReference{Title: "Germany"}
	berlinID := mustMakeID(t, m, berlin, "")
	germanyID := mustMakeID(t, m, germany, "")
	locatedIn := mustMakeID(t, m, types.EntityReference{
		Title: "Located_in", Namespace: types.NamespaceProperty,
	}, "")
	population := mustMakeID(t, m, types.EntityReference{
		Title: "Population", Namespace: types.NamespaceProperty,
	}, "")
	insertPageValue(t, store, berlinID, locatedIn, germanyID)
	insertNumberValue(t, store, germanyID, population, "83200000")

	// Step one traverses the page property; its flat result list is the
	// subject set of step two.
	chain, err := p.Prefetch([]types.EntityReference{berlin}, "Located_in", types.KindPage, PrefetchOptions{})
	if err != nil {
		t.Fatalf("prefetch step one: %v", err)
	}
	if len(chain) != 1 || chain[0] != germany {
		t.Fatalf("chain = %v, want [%v]", chain, germany)
	}

	step2 := PrefetchOptions{Chain: "1"}
	if _, err := p.Prefetch(chain, "Population", types.KindNumber, step2); err != nil {
		t.Fatalf("prefetch step two: %v", err)
	}
	values, covered := p.GetPropertyValues(germany, "Population", step2)
	if !covered || len(values) != 1 {
		t.Fatalf("chained values = (%d, %v), want (1, true)", len(values), covered)
	}

	// The chain marker keeps the two steps apart.
	if _, covered := p.GetPropertyValues(germany, "Population", PrefetchOptions{}); covered {
		t.Error("unchained bucket covered by the chained fill")
	}
}

func TestPrefetchByHash(t *testing.T) {
	p, m, store := newTestPrefetch(t)

	berlin := types.EntityReference{Title: "Berlin"}
	berlinID := mustMakeID(t, m, berlin, "")
	population := mustMakeID(t, m, types.EntityReference{
		Title: "Population", Namespace: types.NamespaceProperty,
	}, "")
	insertNumberValue(t, store, berlinID, population, "3645000")

	opts := PrefetchOptions{ByHash: true}
	if _, err := p.Prefetch([]types.EntityReference{berlin}, "Population", types.KindNumber, opts); err != nil {
		t.Fatalf("prefetch: %v", err)
	}
	values, covered := p.GetPropertyValues(berlin, "Population", opts)
	if !covered || len(values) != 1 {
		t.Fatalf("by-hash values = (%d, %v), want (1, true)", len(values), covered)
	}
}

func TestPrefetchUnknownProperty(t *testing.T) {
	p, m, _ := newTestPrefetch(t)

	berlin := types.EntityReference{Title: "Berlin"}
	mustMakeID(t, m, berlin, "")

	opts := PrefetchOptions{}
	if _, err := p.Prefetch([]types.EntityReference{berlin}, "Never_stored", types.KindNumber, opts); err != nil {
		t.Fatalf("prefetch: %v", err)
	}
	values, covered := p.GetPropertyValues(berlin, "Never_stored", opts)
	if !covered || len(values) != 0 {
		t.Fatalf("unknown property = (%d, %v), want empty covered bucket", len(values), covered)
	}
}
