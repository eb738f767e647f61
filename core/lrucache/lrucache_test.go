// Copyright 2024 - 2026, the LinguaFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

package lrucache

import (
	"strconv"
	"strings"
	"sync"
	"testing"
)

// TestNewLRUCache checks the creation of a new LRUCache with both valid and invalid sizes.
func TestNewLRUCache(t *testing.T) {
	t.Parallel()

	t.Run("ValidSize_NoCompression", func(t *testing.T) {
		t.Parallel()

		cache, err := NewLRUCache(3, false)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if cache == nil {
			t.Fatal("expected cache to be initialized")
		}

		// Immediately after creation, the cache should be empty.
		if cache.Len() != 0 {
			t.Errorf("expected cache length to be 0, got %d", cache.Len())
		}
	})

	t.Run("ValidSize_WithCompression", func(t *testing.T) {
		t.Parallel()

		cache, err := NewLRUCache(3, true)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if cache == nil {
			t.Fatal("expected cache to be initialized")
		}
	})

	t.Run("InvalidSize", func(t *testing.T) {
		t.Parallel()

		cache, err := NewLRUCache(0, false)
		if err == nil {
			t.Fatal("expected error when creating cache of size 0, got nil")
		}

		if cache != nil {
			t.Error("expected no cache to be returned on error")
		}
	})
}

// TestLRUCache_AddAndGet verifies that adding a key to the cache and retrieving it works correctly,
// and that eviction occurs once the capacity is reached.
func TestLRUCache_AddAndGet(t *testing.T) {
	t.Parallel()

	cache, err := NewLRUCache(2, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Add first key; eviction should not occur yet.
	evicted := cache.Add("foo", "bar")
	if evicted {
		t.Error("eviction should not occur when the cache is not full")
	}

	value, ok := cache.Get("foo")
	if !ok {
		t.Error("expected to retrieve value for key 'foo'")
	}

	if value != "bar" {
		t.Errorf("expected 'bar', got %v", value)
	}

	cache.Add("hello", "world")

	if cache.Len() != 2 {
		t.Errorf("expected cache length 2, got %d", cache.Len())
	}

	// Adding a third key should cause eviction of the least recently used item.
	evicted = cache.Add("key3", "value3")
	if !evicted {
		t.Error("expected eviction when adding third key to size 2 cache")
	}

	// "foo" should be evicted because it was the oldest after the second key was used.
	_, ok = cache.Get("foo")
	if ok {
		t.Error("expected 'foo' to be evicted, but it still exists")
	}
}

// TestLRUCache_AddExistingKey ensures that adding a key that already exists
// updates the value and does not evict any item.
func TestLRUCache_AddExistingKey(t *testing.T) {
	t.Parallel()

	cache, _ := NewLRUCache(2, false)

	cache.Add("k1", "v1")
	cache.Add("k2", "v2")

	// Re-add k1 with new value; expect no eviction since the key already exists.
	evicted := cache.Add("k1", "v1-updated")
	if evicted {
		t.Error("re-adding an existing key should not evict anything")
	}

	val, ok := cache.Get("k1")
	if !ok {
		t.Error("expected to find updated key 'k1'")
	}

	if val != "v1-updated" {
		t.Errorf("expected 'v1-updated', got %v", val)
	}

	if cache.Len() != 2 {
		t.Errorf("expected cache length 2, got %d", cache.Len())
	}
}

// TestLRUCache_GetRefreshesRecency confirms that a Get promotes the key so the
// next eviction removes a different entry.
func TestLRUCache_GetRefreshesRecency(t *testing.T) {
	t.Parallel()

	cache, _ := NewLRUCache(2, false)

	cache.Add("old", 1)
	cache.Add("new", 2)

	// Touch "old", making "new" the eviction candidate.
	cache.Get("old")

	cache.Add("third", 3)

	if _, ok := cache.Get("old"); !ok {
		t.Error("expected 'old' to survive eviction after being touched")
	}

	if _, ok := cache.Get("new"); ok {
		t.Error("expected 'new' to be evicted")
	}
}

// TestLRUCache_Remove confirms that removing a key explicitly works.
func TestLRUCache_Remove(t *testing.T) {
	t.Parallel()

	cache, _ := NewLRUCache(2, false)

	cache.Add("foo", "bar")
	cache.Add("key", "value")

	removed := cache.Remove("foo")
	if !removed {
		t.Error("expected to remove existing key 'foo'")
	}

	val, ok := cache.Get("foo")
	if ok || val != nil {
		t.Error("expected 'foo' to be removed from cache")
	}

	removed = cache.Remove("not-present")
	if removed {
		t.Error("expected false when removing a non-existent key, but got true")
	}
}

// TestLRUCache_Purge verifies that Purge empties the cache but leaves it usable.
func TestLRUCache_Purge(t *testing.T) {
	t.Parallel()

	cache, _ := NewLRUCache(4, false)

	for i := range 4 {
		cache.Add("k"+strconv.Itoa(i), i)
	}

	cache.Purge()

	if cache.Len() != 0 {
		t.Errorf("expected empty cache after Purge, got length %d", cache.Len())
	}

	if _, ok := cache.Get("k0"); ok {
		t.Error("expected purged key to be gone")
	}

	cache.Add("again", "value")

	if _, ok := cache.Get("again"); !ok {
		t.Error("expected cache to be usable after Purge")
	}
}

// TestLRUCache_Compression checks transparent round-tripping of compressed values.
func TestLRUCache_Compression(t *testing.T) {
	t.Parallel()

	cache, err := NewLRUCache(2, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Highly repetitive payload compresses well, exercising the zstd path.
	long := strings.Repeat("translated text ", 512)

	cache.Add("long", long)

	got, ok := cache.Get("long")
	if !ok {
		t.Fatal("expected to retrieve compressed value")
	}

	if got != long {
		t.Error("compressed value did not round-trip")
	}

	// Short strings should also round-trip even when compression is ineffective.
	cache.Add("short", "hi")

	got, ok = cache.Get("short")
	if !ok || got != "hi" {
		t.Errorf("expected 'hi', got %v", got)
	}
}

// TestLRUCache_ConcurrentAccess hammers the cache from several goroutines to
// surface data races under the race detector.
func TestLRUCache_ConcurrentAccess(t *testing.T) {
	t.Parallel()

	cache, _ := NewLRUCache(64, false)

	var wg sync.WaitGroup

	for worker := range 8 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for i := range 200 {
				key := "key" + strconv.Itoa((worker*200+i)%100)
				cache.Add(key, i)
				cache.Get(key)
			}
		}()
	}

	wg.Wait()

	if cache.Len() > 64 {
		t.Errorf("cache exceeded capacity: %d", cache.Len())
	}
}
