package smap

import "sync"

// Cache memoizes parsed SMAPs by declaring class name. SMAPs are immutable
// once parsed (§4.2), so the only concurrency concern is the map itself; a
// plain mutex is enough, the same shape as the teacher's sessionMux guarding
// shared debugger-session state.
//
// A Cache is scoped to one debugging session, never process-global: §9 warns
// that a cross-session cache risks serving stale bytes after a reconnect
// against a rebuilt target, since a rebuilt class can reuse the same name
// with different line numbers.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*entry
}

type entry struct {
	smap *SMAP // nil means "parsed, but the class carries no Kotlin/KotlinDebug stratum"
	err  error
}

// NewCache returns an empty, ready-to-use Cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]*entry)}
}

// Get returns the SMAP for className, parsing debugExtension on first
// request and memoizing the result (including a nil-SMAP or error result) so
// repeat lookups for the same class never re-parse.
func (c *Cache) Get(className, debugExtension string) (*SMAP, error) {
	c.mu.Lock()
	if e, ok := c.entries[className]; ok {
		c.mu.Unlock()
		return e.smap, e.err
	}
	c.mu.Unlock()

	var e entry
	if debugExtension == "" {
		e = entry{}
	} else {
		e.smap, e.err = Parse(debugExtension)
	}

	c.mu.Lock()
	if existing, ok := c.entries[className]; ok {
		c.mu.Unlock()
		return existing.smap, existing.err
	}
	c.entries[className] = &e
	c.mu.Unlock()
	return e.smap, e.err
}

// Invalidate drops any cached entry for className, for use when a class is
// redefined or unloaded and reloaded under a rebuilt target.
func (c *Cache) Invalidate(className string) {
	c.mu.Lock()
	delete(c.entries, className)
	c.mu.Unlock()
}
