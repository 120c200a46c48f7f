package extract

import (
	"crypto/sha256"
	"encoding/hex"
	"maps"
	"sync"
	"time"

	"github.com/Veraticus/dossier/internal/model"
)

// cacheEntry represents a cached field map.
type cacheEntry struct {
	expiry time.Time
	fields map[string]any
}

// fieldCache maps document content hashes to extracted field maps, so a
// document uploaded twice within the TTL is not sent to the extractor again.
// Expired entries are dropped lazily on access and on insert.
type fieldCache struct {
	entries map[string]cacheEntry
	clock   func() time.Time
	ttl     time.Duration
	mu      sync.RWMutex
}

func newFieldCache(ttl time.Duration, clock func() time.Time) *fieldCache {
	if clock == nil {
		clock = time.Now
	}
	return &fieldCache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
		clock:   clock,
	}
}

// cacheKey hashes the document content together with its type label.
func cacheKey(data []byte, docType model.DocumentType) string {
	h := sha256.New()
	h.Write([]byte(docType))
	h.Write([]byte{0})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// get retrieves a copy of the field map if it exists and hasn't expired.
func (c *fieldCache) get(key string) (map[string]any, bool) {
	c.mu.RLock()
	entry, exists := c.entries[key]
	c.mu.RUnlock()

	if !exists {
		return nil, false
	}
	if c.clock().After(entry.expiry) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return nil, false
	}
	return maps.Clone(entry.fields), true
}

// set stores a copy of fields and prunes expired entries.
func (c *fieldCache) set(key string, fields map[string]any) {
	now := c.clock()

	c.mu.Lock()
	defer c.mu.Unlock()

	for k, entry := range c.entries {
		if now.After(entry.expiry) {
			delete(c.entries, k)
		}
	}
	c.entries[key] = cacheEntry{
		fields: maps.Clone(fields),
		expiry: now.Add(c.ttl),
	}
}

// size returns the number of entries in the cache.
func (c *fieldCache) size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
