// Package cache is the in-memory translation cache (spec §4.5):
// fingerprint -> translated result, bounded by maxsize with LRU
// eviction, each entry expiring after ttl. No third-party LRU/TTL
// cache library appears anywhere in the retrieved example pack, so
// this is a deliberate stdlib implementation — container/list for the
// recency order, a map for O(1) lookup, one mutex guarding both, the
// same mutex-guarded-state idiom the teacher uses for its RateLimiter.
package cache

import (
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"
)

// Entry is the cached value: a self-contained translation result plus
// when it was stored, used to check TTL expiry on read.
type Entry struct {
	TranslatedText string
	Engine         string
	EngineVersion  string
	StoredAt       time.Time
}

type node struct {
	key   string
	value Entry
}

// Cache is a process-local fingerprint -> Entry store. The persistence
// layer remains authoritative; this exists purely to avoid redundant
// engine calls within a process's lifetime.
type Cache struct {
	mu      sync.Mutex
	maxSize int
	ttl     time.Duration
	order   *list.List
	index   map[string]*list.Element
}

// New builds a Cache bounded to maxSize entries, each valid for ttl.
func New(maxSize int, ttl time.Duration) *Cache {
	if maxSize <= 0 {
		maxSize = 1
	}
	return &Cache{
		maxSize: maxSize,
		ttl:     ttl,
		order:   list.New(),
		index:   make(map[string]*list.Element),
	}
}

// Fingerprint implements spec §4.5/glossary's cache key:
// SHA-256(lang_code || 0x1F || source_lang||"" || 0x1F || context_hash || 0x1F || text).
func Fingerprint(langCode, sourceLang, contextHash, text string) string {
	h := sha256.New()
	h.Write([]byte(langCode))
	h.Write([]byte{0x1F})
	h.Write([]byte(sourceLang))
	h.Write([]byte{0x1F})
	h.Write([]byte(contextHash))
	h.Write([]byte{0x1F})
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil))
}

// Get returns the cached entry for key, and whether it was present and
// unexpired. An expired entry is evicted on read.
func (c *Cache) Get(key string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.index[key]
	if !ok {
		return Entry{}, false
	}
	entry := elem.Value.(*node).value
	if c.ttl > 0 && time.Since(entry.StoredAt) > c.ttl {
		c.order.Remove(elem)
		delete(c.index, key)
		return Entry{}, false
	}

	c.order.MoveToFront(elem)
	return entry, true
}

// Set stores entry under key, evicting the least-recently-used entry
// if the cache is at capacity (spec §4.7 step 4: "every newly produced
// TRANSLATED result ... is inserted into the cache").
func (c *Cache) Set(key string, entry Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.index[key]; ok {
		elem.Value.(*node).value = entry
		c.order.MoveToFront(elem)
		return
	}

	elem := c.order.PushFront(&node{key: key, value: entry})
	c.index[key] = elem

	for c.order.Len() > c.maxSize {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		c.order.Remove(oldest)
		delete(c.index, oldest.Value.(*node).key)
	}
}

// Len reports the current entry count, mostly useful for tests.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
