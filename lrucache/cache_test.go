package lrucache

import "testing"

// TestEviction is scenario S5 from the spec: max_windows = 2, insert X, Y, Z
// in order, X must be evicted and absent, Y and Z present.
func TestEviction(t *testing.T) {
	c := New[string, int](2)
	c.Put("X", 1)
	c.Put("Y", 2)
	c.Put("Z", 3)

	if _, ok := c.Get("X"); ok {
		t.Fatalf("expected X to be evicted")
	}
	if v, ok := c.Get("Y"); !ok || v != 2 {
		t.Fatalf("expected Y present with value 2, got %v %v", v, ok)
	}
	if v, ok := c.Get("Z"); !ok || v != 3 {
		t.Fatalf("expected Z present with value 3, got %v %v", v, ok)
	}
	if c.Len() != 2 {
		t.Fatalf("expected len 2, got %d", c.Len())
	}
}

func TestGetRefreshesRecency(t *testing.T) {
	c := New[string, int](2)
	c.Put("X", 1)
	c.Put("Y", 2)
	c.Get("X") // X is now more recently used than Y
	c.Put("Z", 3)

	if _, ok := c.Get("Y"); ok {
		t.Fatalf("expected Y to be evicted since X was refreshed")
	}
	if _, ok := c.Get("X"); !ok {
		t.Fatalf("expected X to survive eviction")
	}
}

func TestOnEvictCallback(t *testing.T) {
	c := New[string, int](1)
	var evictedKey string
	var evictedValue int
	c.OnEvict(func(key string, value int) {
		evictedKey = key
		evictedValue = value
	})

	c.Put("A", 1)
	c.Put("B", 2)

	if evictedKey != "A" || evictedValue != 1 {
		t.Fatalf("expected eviction callback for A=1, got %s=%d", evictedKey, evictedValue)
	}
}

func TestDeleteWhere(t *testing.T) {
	c := New[string, int](10)
	c.Put("a", 1)
	c.Put("b", 2)
	c.Put("c", 3)

	removed := c.DeleteWhere(func(key string, value int) bool {
		return value >= 2
	})
	if removed != 2 {
		t.Fatalf("expected 2 removed, got %d", removed)
	}
	if c.Len() != 1 {
		t.Fatalf("expected 1 remaining, got %d", c.Len())
	}
	if _, ok := c.Get("a"); !ok {
		t.Fatalf("expected a to remain")
	}
}
