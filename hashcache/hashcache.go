// Package hashcache provides validated memoization of path -> digest
// lookups, bounded by a strict LRU eviction policy.
//
// The LRU core is github.com/golang/groupcache/lru, generalized here from a
// single-purpose watch-path evictor (as used by mutagen's filesystem
// watcher) into a general validated cache: a hit additionally requires the
// cached (size, mtime, algorithm) tuple to match the current file state.
package hashcache

import (
	"encoding/json"
	"os"
	"sync"
	"time"

	digest "github.com/opencontainers/go-digest"

	"github.com/golang/groupcache/lru"

	"github.com/rickhohler/snug/hash"
)

// DefaultMaxEntries is the default capacity when none is configured.
const DefaultMaxEntries = 10_000

// Entry is a single memoized path -> digest record.
type Entry struct {
	ResolvedPath string        `json:"resolvedPath"`
	Digest       digest.Digest `json:"digest"`
	Algorithm    hash.Algorithm `json:"algorithm"`
	FileSize     int64         `json:"fileSize"`
	ModTime      time.Time     `json:"modificationTime"`
	CacheTime    time.Time     `json:"cacheTime"`
}

// Stat is the subset of file metadata a cache lookup validates against.
type Stat struct {
	Size    int64
	ModTime time.Time
}

// Stats reports cache occupancy.
type Stats struct {
	Count    int
	Capacity int
}

// Cache is a validated, LRU-bounded path -> digest memoization table.
//
// Cache is safe for concurrent use; all operations are serialized behind a
// single mutex rather than routed through an actor/channel, favoring a
// plain critical section over message passing for this shape.
type Cache struct {
	mu        sync.Mutex
	lru       *lru.Cache
	algorithm hash.Algorithm
	capacity  int

	// live mirrors the set of keys currently held by lru. groupcache/lru
	// exposes no iteration API, so live is what Save walks to persist the
	// cache; it is kept in sync via lru's OnEvicted callback and every
	// mutating method below.
	live map[string]Entry
}

// Option configures a Cache.
type Option func(*Cache)

// WithMaxEntries overrides the default LRU capacity.
func WithMaxEntries(n int) Option {
	return func(c *Cache) {
		c.capacity = n
	}
}

// WithAlgorithm sets the algorithm a cache hit must match. Defaults to
// hash.SHA256.
func WithAlgorithm(algo hash.Algorithm) Option {
	return func(c *Cache) {
		c.algorithm = algo
	}
}

// New creates an empty HashCache.
func New(opts ...Option) *Cache {
	c := &Cache{
		algorithm: hash.SHA256,
		capacity:  DefaultMaxEntries,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.reset()
	return c
}

// reset installs a fresh lru.Cache and live map. Must be called with mu held
// or before the Cache is published.
func (c *Cache) reset() {
	c.live = make(map[string]Entry)
	evictedLive := c.live
	newLRU := lru.New(c.capacity)
	newLRU.OnEvicted = func(key lru.Key, _ interface{}) {
		path, _ := key.(string)
		delete(evictedLive, path)
	}
	c.lru = newLRU
}

// Get returns the cached digest for path iff a record exists and its
// (fileSize, modificationTime, algorithm) matches stat and the cache's
// configured algorithm. A mismatch is treated as a miss and removes the
// stale record.
func (c *Cache) Get(path string, stat Stat) (digest.Digest, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	v, ok := c.lru.Get(path)
	if !ok {
		return "", false
	}
	entry := v.(Entry) //nolint:errcheck // only this package inserts into the lru

	if entry.Algorithm != c.algorithm || entry.FileSize != stat.Size || !entry.ModTime.Equal(stat.ModTime) {
		c.lru.Remove(path)
		delete(c.live, path)
		return "", false
	}
	return entry.Digest, true
}

// Put inserts or replaces the record for path. It may evict the
// least-recently-used record if the cache is at capacity.
func (c *Cache) Put(path string, d digest.Digest, stat Stat) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry := Entry{
		ResolvedPath: path,
		Digest:       d,
		Algorithm:    c.algorithm,
		FileSize:     stat.Size,
		ModTime:      stat.ModTime,
		CacheTime:    time.Now(),
	}
	c.lru.Add(path, entry)
	c.live[path] = entry
}

// Remove deletes the record for path, if any.
func (c *Cache) Remove(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Remove(path)
	delete(c.live, path)
}

// Clear removes all records.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reset()
}

// Stats reports current occupancy and configured capacity.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{Count: c.lru.Len(), Capacity: c.capacity}
}

// persistedEntry is the JSON-friendly form of Entry written by Save.
type persistedEntry = Entry

// Save writes a durable JSON representation of the cache to path. Load can
// round-trip it losslessly. Persistence I/O failures are surfaced to the
// caller but do not affect in-memory operation.
func (c *Cache) Save(path string) error {
	c.mu.Lock()
	entries := make([]persistedEntry, 0, len(c.live))
	for _, entry := range c.live {
		entries = append(entries, entry)
	}
	c.mu.Unlock()

	data, err := json.Marshal(entries)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// Load replaces the cache's contents with the durable representation
// written by Save. Entries are inserted in file order; Save writes them in
// map iteration order, so the recency order of the saved cache is not
// restored.
func (c *Cache) Load(path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // path is operator-controlled cache location
	if err != nil {
		return err
	}
	var entries []persistedEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.reset()
	for _, e := range entries {
		c.lru.Add(e.ResolvedPath, e)
		c.live[e.ResolvedPath] = e
	}
	return nil
}
