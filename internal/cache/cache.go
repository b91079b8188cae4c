// Package cache holds decoded chunks in memory so that repeated partial
// reads of the same chunk skip the store round trip and the codec pipeline.
package cache

import (
	"errors"

	"github.com/coocood/freecache"

	"github.com/scigolib/nczarr/internal/logging"
)

// ChunkCache is a byte-bounded cache of decoded chunks keyed by chunk key.
// A nil *ChunkCache is valid and caches nothing.
//
// The cache is write-through from the caller's point of view: writers update
// the store first and then Put the new decoded chunk here, so a cached chunk
// never holds data the store does not.
type ChunkCache struct {
	cache *freecache.Cache
}

// Stats is a snapshot of cache counters.
type Stats struct {
	Entries int64
	Hits    int64
	Misses  int64
}

// New creates a cache of roughly sizeBytes. freecache enforces a minimum of
// 512KB, and a single entry may use at most 1/1024 of the total. A size of
// zero or less disables caching and returns nil.
func New(sizeBytes int) *ChunkCache {
	if sizeBytes <= 0 {
		return nil
	}
	logging.Debugf("Created freecache of ~ %d MB for decoded chunks", sizeBytes>>20)
	return &ChunkCache{cache: freecache.NewCache(sizeBytes)}
}

// Get returns the cached chunk for key. The returned slice is a copy owned
// by the caller.
func (c *ChunkCache) Get(key string) ([]byte, bool) {
	if c == nil {
		return nil, false
	}
	data, err := c.cache.Get([]byte(key))
	if err != nil {
		if !errors.Is(err, freecache.ErrNotFound) {
			logging.Warningf("chunk cache get %q: %v", key, err)
		}
		return nil, false
	}
	return data, true
}

// Put stores a decoded chunk. Chunks too large for the cache are skipped.
func (c *ChunkCache) Put(key string, data []byte) {
	if c == nil {
		return
	}
	if err := c.cache.Set([]byte(key), data, 0); err != nil {
		// ErrLargeEntry is expected for chunks above the per-entry limit.
		logging.Debugf("chunk cache skipped %q (%d bytes): %v", key, len(data), err)
		c.cache.Del([]byte(key))
	}
}

// Invalidate drops key from the cache.
func (c *ChunkCache) Invalidate(key string) {
	if c == nil {
		return
	}
	c.cache.Del([]byte(key))
}

// Clear drops every entry and resets the counters.
func (c *ChunkCache) Clear() {
	if c == nil {
		return
	}
	c.cache.Clear()
}

// Stats returns the current counters.
func (c *ChunkCache) Stats() Stats {
	if c == nil {
		return Stats{}
	}
	return Stats{
		Entries: c.cache.EntryCount(),
		Hits:    c.cache.HitCount(),
		Misses:  c.cache.MissCount(),
	}
}
