// Package cache implements the read-through Parameter Cache: a
// mutex-guarded keyed store with TTL expiry, an access-count/age
// eviction priority, and wildcard-prefix invalidation, coordinated
// write-through with the Parambus Adapter.
//
// Entries are small and the critical sections short, so a single
// sync.Mutex guards the whole map rather than sharding or using an
// RWMutex per bucket.
package cache

import (
	"strings"
	"sync"
	"time"

	"github.com/tenzoki/agen/paramgw/internal/valuecodec"
)

// Config tunes cache capacity and expiry behavior.
type Config struct {
	MaxEntries             int
	DefaultTTLSeconds      int
	CleanupIntervalSeconds int
	EnableStats            bool
}

type entry struct {
	value       string
	wireType    valuecodec.WireType
	createdAt   time.Time
	ttl         time.Duration
	accessCount int64
}

func (e *entry) expired(now time.Time) bool {
	return e.ttl > 0 && now.Sub(e.createdAt) > e.ttl
}

// Cache is the Parameter Cache. Zero value is not usable; construct
// with New.
type Cache struct {
	mu          sync.Mutex
	entries     map[string]*entry
	cfg         Config
	lastCleanup time.Time
	hits        int64
	misses      int64
	timeouts    int64
	now         func() time.Time
}

// New constructs a Cache with the given tuning configuration.
func New(cfg Config) *Cache {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = 10000
	}
	if cfg.DefaultTTLSeconds <= 0 {
		cfg.DefaultTTLSeconds = 300
	}
	if cfg.CleanupIntervalSeconds <= 0 {
		cfg.CleanupIntervalSeconds = 60
	}
	return &Cache{
		entries:     make(map[string]*entry),
		cfg:         cfg,
		lastCleanup: time.Now(),
		now:         time.Now,
	}
}

// Get returns the cached string/wire-type pair for key, or ok=false on
// a miss. A present-but-expired entry is removed and counted as a miss.
func (c *Cache) Get(key string) (value string, wireType valuecodec.WireType, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, found := c.entries[key]
	if !found {
		c.misses++
		return "", 0, false
	}
	if e.expired(c.now()) {
		delete(c.entries, key)
		c.timeouts++
		c.misses++
		return "", 0, false
	}
	e.accessCount++
	c.hits++
	return e.value, e.wireType, true
}

// Set inserts or overwrites key, evicting if the cache is at capacity.
// ttlSeconds of 0 uses the configured default TTL.
func (c *Cache) Set(key, value string, wireType valuecodec.WireType, ttlSeconds int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ttl := time.Duration(ttlSeconds) * time.Second
	if ttlSeconds == 0 {
		ttl = time.Duration(c.cfg.DefaultTTLSeconds) * time.Second
	}

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.cfg.MaxEntries {
		c.evictLocked()
	}

	c.entries[key] = &entry{
		value:     value,
		wireType:  wireType,
		createdAt: c.now(),
		ttl:       ttl,
	}
}

// Delete removes key unconditionally.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// InvalidateWildcard removes every key starting with prefix, minus a
// trailing '*' if present (or equal to prefix if no wildcard).
func (c *Cache) InvalidateWildcard(prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	base := strings.TrimSuffix(prefix, "*")
	removed := 0
	for k := range c.entries {
		if k == base || (base != "" && strings.HasPrefix(k, base)) {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}

// Clear empties the cache entirely.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*entry)
}

// ExpireSweep removes all expired entries if the cleanup interval has
// elapsed since the last sweep; it is a no-op otherwise. Called lazily
// from the hot path, never on a background timer, keeping the
// single-threaded cooperative model intact.
func (c *Cache) ExpireSweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if now.Sub(c.lastCleanup) < time.Duration(c.cfg.CleanupIntervalSeconds)*time.Second {
		return 0
	}
	c.lastCleanup = now

	removed := 0
	for k, e := range c.entries {
		if e.expired(now) {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}

// Stats returns the monotone hit/miss/timeout counters, valid
// regardless of EnableStats (the flag only gates whether a caller
// bothers to read them). An expired entry removed on access counts as
// both a timeout and a miss.
func (c *Cache) Stats() (hits, misses, timeouts int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses, c.timeouts
}

// Len reports the current entry count, for tests and eviction-bound
// assertions.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// evictLocked removes ceil(maxEntries/10) entries by ascending
// eviction priority (access_count + floor(age_seconds/60)); caller
// must hold c.mu. Ties are broken by Go's unspecified map iteration
// order, which is acceptable because the formula is otherwise
// deterministic given a snapshot.
func (c *Cache) evictLocked() {
	n := (c.cfg.MaxEntries + 9) / 10
	if n < 1 {
		n = 1
	}
	now := c.now()

	type candidate struct {
		key      string
		priority int64
	}
	candidates := make([]candidate, 0, len(c.entries))
	for k, e := range c.entries {
		priority := e.accessCount + int64(now.Sub(e.createdAt)/(60*time.Second))
		candidates = append(candidates, candidate{key: k, priority: priority})
	}

	for i := 0; i < n && len(candidates) > 0; i++ {
		lowest := 0
		for j := 1; j < len(candidates); j++ {
			if candidates[j].priority < candidates[lowest].priority {
				lowest = j
			}
		}
		delete(c.entries, candidates[lowest].key)
		candidates = append(candidates[:lowest], candidates[lowest+1:]...)
	}
}
