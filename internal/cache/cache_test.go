package cache

import (
	"fmt"
	"testing"
	"time"
)

func TestGetSetAndTTL(t *testing.T) {
	c := NewLRUCache[string](4, 20*time.Millisecond)

	c.Set("a", "1")
	if v, ok := c.Get("a"); !ok || v != "1" {
		t.Fatalf("Get = %q, %v", v, ok)
	}

	time.Sleep(30 * time.Millisecond)
	if _, ok := c.Get("a"); ok {
		t.Fatal("expired entry still readable")
	}
}

func TestLRUEviction(t *testing.T) {
	c := NewLRUCache[int](2, time.Minute)

	c.Set("a", 1)
	c.Set("b", 2)
	c.Get("a") // a becomes most recently used
	c.Set("c", 3)

	if _, ok := c.Get("b"); ok {
		t.Fatal("least recently used entry survived eviction")
	}
	if _, ok := c.Get("a"); !ok {
		t.Fatal("recently used entry was evicted")
	}
	if c.Size() != 2 {
		t.Fatalf("Size = %d", c.Size())
	}
}

func TestInvalidatePrefix(t *testing.T) {
	c := NewLRUCache[int](10, time.Minute)

	c.Set(Key("totals", "alice", "daily"), 1)
	c.Set(Key("totals", "alice", "weekly"), 2)
	c.Set(Key("totals", "bob", "daily"), 3)

	n := c.InvalidatePrefix(Key("totals", "alice"))
	if n != 2 {
		t.Fatalf("invalidated %d entries, want 2", n)
	}
	if _, ok := c.Get(Key("totals", "bob", "daily")); !ok {
		t.Fatal("other tenant's entry was dropped")
	}
}

func TestCleanExpired(t *testing.T) {
	c := NewLRUCache[int](10, 10*time.Millisecond)
	for i := 0; i < 3; i++ {
		c.Set(fmt.Sprintf("k%d", i), i)
	}
	time.Sleep(20 * time.Millisecond)
	c.Set("fresh", 9)

	if n := c.CleanExpired(); n != 3 {
		t.Fatalf("cleaned %d entries, want 3", n)
	}
	if c.Size() != 1 {
		t.Fatalf("Size = %d, want 1", c.Size())
	}
}
