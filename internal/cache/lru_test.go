package cache

import (
	"fmt"
	"testing"
	"time"
)

func TestLRUFetchSave(t *testing.T) {
	c := NewLRU(4)

	if _, ok := c.Fetch("missing"); ok {
		t.Error("Fetch on empty cache reported a hit")
	}

	c.Save("a", int64(1), 0)
	v, ok := c.Fetch("a")
	if !ok || v.(int64) != 1 {
		t.Errorf("Fetch(a) = (%v, %v), want (1, true)", v, ok)
	}
}

func TestLRUEviction(t *testing.T) {
	c := NewLRU(3)
	for i := 0; i < 3; i++ {
		c.Save(fmt.Sprintf("k%d", i), i, 0)
	}

	// Touch k0 so k1 becomes the eviction candidate.
	c.Fetch("k0")
	c.Save("k3", 3, 0)

	if c.Contains("k1") {
		t.Error("least recently used entry k1 survived eviction")
	}
	for _, k := range []string{"k0", "k2", "k3"} {
		if !c.Contains(k) {
			t.Errorf("entry %s evicted unexpectedly", k)
		}
	}
}

func TestLRUUpdateExisting(t *testing.T) {
	c := NewLRU(2)
	c.Save("a", 1, 0)
	c.Save("a", 2, 0)

	if c.Len() != 1 {
		t.Errorf("Len = %d after updating one key, want 1", c.Len())
	}
	v, _ := c.Fetch("a")
	if v.(int) != 2 {
		t.Errorf("Fetch(a) = %v, want 2", v)
	}
}

func TestLRUDelete(t *testing.T) {
	c := NewLRU(2)
	c.Save("a", 1, 0)
	c.Delete("a")
	c.Delete("a") // idempotent

	if c.Contains("a") {
		t.Error("deleted entry still present")
	}
}

func TestLRUTTLExpiry(t *testing.T) {
	c := NewLRU(2)
	c.Save("a", 1, time.Millisecond)
	time.Sleep(5 * time.Millisecond)

	if _, ok := c.Fetch("a"); ok {
		t.Error("expired entry served")
	}
	if c.Contains("a") {
		t.Error("Contains reports expired entry")
	}
}

func TestMemoryTTL(t *testing.T) {
	c := NewMemory()
	c.Save("a", "x", time.Millisecond)
	c.Save("b", "y", 0)
	time.Sleep(5 * time.Millisecond)

	if _, ok := c.Fetch("a"); ok {
		t.Error("expired entry served")
	}
	if v, ok := c.Fetch("b"); !ok || v.(string) != "y" {
		t.Errorf("Fetch(b) = (%v, %v), want (y, true)", v, ok)
	}

	c.Delete("b")
	if c.Contains("b") {
		t.Error("deleted entry still present")
	}
}
