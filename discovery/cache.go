package discovery

import (
	"encoding/json"
	"hash/fnv"
	"sync"
)

// SelectionCache memoizes a (query, options) -> selection mapping across
// concurrent queries with a sync.Map rather than a mutex-guarded map (spec
// §5's "concurrent maps, not locks" design note). Keyed by an fnv hash
// rather than the raw strings to keep entries a fixed, small size.
type SelectionCache struct {
	entries sync.Map // uint64 -> cacheEntry
}

type cacheEntry struct {
	key   string
	value interface{}
}

// NewSelectionCache returns an empty cache.
func NewSelectionCache() *SelectionCache {
	return &SelectionCache{}
}

// Get returns the cached value for (query, options), if present and not a
// hash collision against a different key.
func (c *SelectionCache) Get(query string, options interface{}) (interface{}, bool) {
	key := cacheKey(query, options)
	h := hashKey(key)
	v, ok := c.entries.Load(h)
	if !ok {
		return nil, false
	}
	entry := v.(cacheEntry)
	if entry.key != key {
		return nil, false
	}
	return entry.value, true
}

// Put stores value for (query, options).
func (c *SelectionCache) Put(query string, options interface{}, value interface{}) {
	key := cacheKey(query, options)
	c.entries.Store(hashKey(key), cacheEntry{key: key, value: value})
}

// Invalidate drops every cached entry, used when the LLM provider changes
// (spec §4.2.2 Caching).
func (c *SelectionCache) Invalidate() {
	c.entries.Range(func(k, _ interface{}) bool {
		c.entries.Delete(k)
		return true
	})
}

func cacheKey(query string, options interface{}) string {
	optsJSON, _ := json.Marshal(options)
	return query + "\x00" + string(optsJSON)
}

func hashKey(key string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(key))
	return h.Sum64()
}
