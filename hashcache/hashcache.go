// Package hashcache implements the host-side process-wide hash cache: a
// mapping absolute_path → (digest, mtime) guarded by a reader-writer lock.
// Readers take the shared lock for a lookup; a writer takes the exclusive
// lock for a single insert. No entry is ever removed or mutated in place;
// staleness is detected at read time by comparing mtimes, and a later
// insert with a fresher mtime simply replaces the map entry.
package hashcache

import (
	"sync"
	"time"

	"github.com/fluxfile/fluxfile/hashio"
)

// Entry is one host-side memo: the digest computed the last time
// absolute_path was hashed, and the mtime observed at that time.
type Entry struct {
	Digest hashio.Digest
	MTime  time.Time
}

// Cache is safe for concurrent use by any number of sessions.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// New returns an empty cache.
func New() *Cache {
	return &Cache{entries: make(map[string]Entry)}
}

// Lookup returns the cached digest for absolutePath if present and the
// supplied currentMTime exactly matches the mtime recorded at insert time.
// A stale entry (mtime mismatch) is reported as a miss, not evicted.
func (c *Cache) Lookup(absolutePath string, currentMTime time.Time) (hashio.Digest, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[absolutePath]
	if !ok || !e.MTime.Equal(currentMTime) {
		var zero hashio.Digest
		return zero, false
	}
	return e.Digest, true
}

// Insert records digest for absolutePath under mtime, taking the exclusive
// lock for the duration of the single write. Calling Insert again for the
// same path with a fresher mtime overwrites the prior entry; it never
// mutates an existing Entry value in place.
func (c *Cache) Insert(absolutePath string, digest hashio.Digest, mtime time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[absolutePath] = Entry{Digest: digest, MTime: mtime}
}
