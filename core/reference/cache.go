// Package reference resolves reference-typed fields for display: it collects
// the distinct foreign ids a page of rows points at, fetches their display
// labels in one batched lookup per target schema, and caches the results for
// the lifetime of one schema view.
package reference

import (
	"sync"
)

// Key identifies one cached label: the target schema plus the record id.
type Key struct {
	Schema string
	ID     int64
}

// Entry is a cached resolution result. Found is false for ids the batch
// lookup could not find (deleted upstream records); such entries exist so
// repeated resolve cycles do not re-request them.
type Entry struct {
	Label string
	Found bool
}

// Cache holds id-to-label mappings scoped to one schema view. It is owned by
// a single orchestrator instance and invalidated by constructing a fresh
// cache on schema switch; cross-view sharing is not permitted.
type Cache struct {
	mu      sync.RWMutex
	entries map[Key]Entry
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[Key]Entry)}
}

// Lookup returns the entry for a key, if one exists.
func (c *Cache) Lookup(targetSchema string, id int64) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[Key{Schema: targetSchema, ID: id}]
	return e, ok
}

// Put stores a resolved label.
func (c *Cache) Put(targetSchema string, id int64, label string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[Key{Schema: targetSchema, ID: id}] = Entry{Label: label, Found: true}
}

// PutUnknown stores a sentinel for an id the lookup did not return, so the
// next resolve cycle will not request it again.
func (c *Cache) PutUnknown(targetSchema string, id int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[Key{Schema: targetSchema, ID: id}] = Entry{}
}

// InvalidateSchema drops every entry whose target is the given schema. Called
// after any write through the engine touching that schema, since its display
// fields may have mutated underneath the cache.
func (c *Cache) InvalidateSchema(targetSchema string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.entries {
		if k.Schema == targetSchema {
			delete(c.entries, k)
		}
	}
}

// Len reports the number of cached entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
