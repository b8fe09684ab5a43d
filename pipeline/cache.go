package pipeline

import (
	"hash/fnv"
	"log"
	"sync"
	"time"

	"github.com/hannes/docshield/pii"
)

// ResultCache stores complete detection results keyed by a content hash of
// the input, so identical documents within the TTL window skip the whole
// pipeline. A single lock over the map is enough for the expected contention.
type ResultCache struct {
	mu      sync.RWMutex
	entries map[uint64]cacheEntry
	ttl     time.Duration
	now     func() time.Time
}

type cacheEntry struct {
	result  *pii.DetectionResult
	expires time.Time
}

// NewResultCache builds a cache with the given TTL. Entries are evicted
// lazily on read; Clear is the operator-facing full reset.
func NewResultCache(ttl time.Duration) *ResultCache {
	return &ResultCache{
		entries: make(map[uint64]cacheEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// HashContent computes the cache key for an input document. FNV-1a is enough
// here: the cache is a performance shortcut, not an integrity check.
func HashContent(content []byte) uint64 {
	h := fnv.New64a()
	_, _ = h.Write(content)
	return h.Sum64()
}

// Get returns a copy of the cached result for the key, if present and fresh.
func (c *ResultCache) Get(key uint64) (*pii.DetectionResult, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if c.now().After(entry.expires) {
		c.mu.Lock()
		if e, ok := c.entries[key]; ok && c.now().After(e.expires) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return nil, false
	}
	return entry.result.Copy(), true
}

// Put stores a result under the key. The cache keeps its own copy so later
// caller mutations cannot leak in.
func (c *ResultCache) Put(key uint64, result *pii.DetectionResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{
		result:  result.Copy(),
		expires: c.now().Add(c.ttl),
	}
}

// Clear drops every entry.
func (c *ResultCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := len(c.entries)
	c.entries = make(map[uint64]cacheEntry)
	if n > 0 {
		log.Printf("[ResultCache] Cleared %d entries", n)
	}
}

// Size reports the number of stored entries, expired ones included.
func (c *ResultCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
