package cache

import (
	"regexp"
	"testing"
	"time"
)

func TestCache_GetPut(t *testing.T) {
	c := New(4, 0)

	if _, ok := c.Get("ABC%"); ok {
		t.Fatal("Expected miss on empty cache")
	}

	re := regexp.MustCompile(`^ABC.*$`)
	c.Put("ABC%", re)

	got, ok := c.Get("ABC%")
	if !ok {
		t.Fatal("Expected hit after Put")
	}
	if got != re {
		t.Error("Expected the stored expression back")
	}

	stats := c.Stats()
	if stats.Hits != 1 || stats.Misses != 1 {
		t.Errorf("Expected 1 hit and 1 miss, got %d/%d", stats.Hits, stats.Misses)
	}
	if stats.HitRate != 0.5 {
		t.Errorf("Expected hit rate 0.5, got %f", stats.HitRate)
	}
}

func TestCache_EvictsWhenFull(t *testing.T) {
	c := New(2, 0)
	c.Put("a", regexp.MustCompile("a"))
	time.Sleep(time.Millisecond)
	c.Put("b", regexp.MustCompile("b"))
	time.Sleep(time.Millisecond)
	c.Put("c", regexp.MustCompile("c"))

	if c.Stats().Entries != 2 {
		t.Fatalf("Expected 2 entries, got %d", c.Stats().Entries)
	}
	if _, ok := c.Get("a"); ok {
		t.Error("Expected oldest entry to be evicted")
	}
	if _, ok := c.Get("c"); !ok {
		t.Error("Expected newest entry to be present")
	}
}

func TestCache_Expiry(t *testing.T) {
	c := New(2, time.Millisecond)
	c.Put("x", regexp.MustCompile("x"))
	time.Sleep(5 * time.Millisecond)

	if _, ok := c.Get("x"); ok {
		t.Error("Expected expired entry to miss")
	}
}

func TestCache_InvalidateAll(t *testing.T) {
	c := New(2, 0)
	c.Put("x", regexp.MustCompile("x"))
	c.InvalidateAll()

	if c.Stats().Entries != 0 {
		t.Error("Expected empty cache after InvalidateAll")
	}
}
