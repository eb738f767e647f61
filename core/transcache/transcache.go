// Copyright 2024 - 2026, the LinguaFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

/*
Package transcache maps (source text, target language) pairs to previously
obtained translations, backed by a bounded LRU store.

Keys are a 32-bit FNV-1a hash of the language and text. Two distinct texts can
in principle collide and return the wrong cached translation; this is a known,
deliberate trade-off (a full-text comparison would cost more memory than the
cache saves) and is pinned down by a regression test rather than fixed.
*/
package transcache

import (
	"hash/fnv"
	"strconv"

	"codeberg.org/linguafe/linguafe/core/lrucache"
)

// DefaultCapacity is the number of translations kept when no capacity is configured.
const DefaultCapacity = 1000

// Cache is a bounded least-recently-used translation store.
// Construct with [New]; the zero value is not ready for use.
//
// The dispatcher is the sole writer; the cache never initiates network calls.
type Cache struct {
	lru *lrucache.LRUCache
}

// New creates a translation cache holding at most capacity entries.
// A capacity <= 0 selects [DefaultCapacity]. If compress is true, stored
// translations may be transparently zstd-compressed.
func New(capacity int, compress bool) (*Cache, error) {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	lru, err := lrucache.NewLRUCache(capacity, compress)
	if err != nil {
		return nil, err
	}

	return &Cache{lru: lru}, nil
}

// Key derives the cache key for a (text, language) pair.
func Key(text, lang string) string {
	hasher := fnv.New32a()

	_, _ = hasher.Write([]byte(lang + ":" + text))

	return strconv.FormatUint(uint64(hasher.Sum32()), 16)
}

// Get returns the cached translation for text into lang and refreshes its recency.
func (c *Cache) Get(text, lang string) (string, bool) {
	value, ok := c.lru.Get(Key(text, lang))
	if !ok {
		return "", false
	}

	translated, ok := value.(string)

	return translated, ok
}

// Set stores a translation, evicting the least recently used entry when full.
func (c *Cache) Set(text, lang, translated string) {
	c.lru.Add(Key(text, lang), translated)
}

// Clear resets the cache to empty.
func (c *Cache) Clear() {
	c.lru.Purge()
}

// Len returns the number of cached translations.
func (c *Cache) Len() int {
	return c.lru.Len()
}
