// Package querycache implements a byte-bounded, least-recently-used cache for
// computed query results such as sorted identifier lists.
//
// The recency index is a simplelru.LRU with an effectively unlimited entry
// count; the byte budget is enforced here. Every operation, including Get,
// takes the same mutex because a hit reorders the recency list.
package querycache

import (
	"errors"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"
	"go.uber.org/zap"

	"github.com/mangoshelf/libcache/internal/cachekey"
	"github.com/mangoshelf/libcache/internal/stats"
)

// ErrInvalidLimit is returned by New for a non-positive byte budget.
var ErrInvalidLimit = errors.New("querycache: byte limit must be positive")

// Options configures a Cache. The zero value is usable.
type Options struct {
	// Collector receives hit, miss, eviction and size metrics.
	Collector stats.Collector
	// Logger is used for verbose per-operation logging.
	Logger *zap.Logger
	// Verbose enables debug logs for every hit, miss, eviction and invalidation.
	Verbose bool
}

type entry struct {
	value      any
	size       int64
	hits       uint64
	createdAt  time.Time
	lastAccess time.Time
}

// Cache is a thread-safe, byte-bounded LRU cache.
type Cache struct {
	collector stats.Collector
	logger    *zap.Logger
	verbose   bool

	mu    sync.Mutex
	index *simplelru.LRU[cachekey.Key, *entry]
	limit int64
	size  int64

	hits      uint64
	misses    uint64
	evictions uint64
	rejected  uint64
}

// New creates a cache holding at most limit bytes of values.
func New(limit int64, opts Options) (*Cache, error) {
	if limit <= 0 {
		return nil, ErrInvalidLimit
	}
	index, err := simplelru.NewLRU[cachekey.Key, *entry](math.MaxInt, nil)
	if err != nil {
		return nil, err
	}
	if opts.Collector == nil {
		opts.Collector = stats.NewNoop()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Cache{
		collector: opts.Collector,
		logger:    opts.Logger,
		verbose:   opts.Verbose,
		index:     index,
		limit:     limit,
	}, nil
}

// Get returns the value stored under key and marks it most recently used.
func (c *Cache) Get(key cachekey.Key) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.index.Get(key)
	if !ok {
		c.misses++
		c.collector.IncCounter(stats.MetricQueryMisses, 1)
		if c.verbose {
			c.logger.Debug("cache miss", zap.Stringer("key", key))
		}
		return nil, false
	}

	e.hits++
	e.lastAccess = time.Now()
	c.hits++
	c.collector.IncCounter(stats.MetricQueryHits, 1)
	if c.verbose {
		c.logger.Debug("cache hit", zap.Stringer("key", key), zap.Uint64("accessCount", e.hits))
	}
	return e.value, true
}

// Put stores value under key, replacing any previous value wholesale, and
// evicts least recently used entries until the total size fits the budget.
// A value whose size alone exceeds the budget is not stored and Put
// returns false.
func (c *Cache) Put(key cachekey.Key, value any, size int64) bool {
	if size < 0 {
		size = 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if size > c.limit {
		c.rejected++
		c.collector.IncCounter(stats.MetricQueryRejected, 1)
		if c.verbose {
			c.logger.Warn("cache entry too large to store",
				zap.Stringer("key", key),
				zap.Int64("size", size),
				zap.Int64("limit", c.limit),
			)
		}
		return false
	}

	now := time.Now()
	if old, ok := c.index.Peek(key); ok {
		c.size -= old.size
	}
	c.index.Add(key, &entry{
		value:      value,
		size:       size,
		createdAt:  now,
		lastAccess: now,
	})
	c.size += size

	c.evictLocked()
	c.reportSizeLocked()
	return true
}

// evictLocked removes the least recently used entries until the cache fits
// its budget.
func (c *Cache) evictLocked() {
	for c.size > c.limit {
		key, e, ok := c.index.RemoveOldest()
		if !ok {
			return
		}
		c.size -= e.size
		c.evictions++
		c.collector.IncCounter(stats.MetricQueryEvictions, 1)
		if c.verbose {
			c.logger.Debug("cache eviction",
				zap.Stringer("key", key),
				zap.Int64("size", e.size),
				zap.Uint64("accessCount", e.hits),
			)
		}
	}
}

// Invalidate removes the entry stored under key, if any.
func (c *Cache) Invalidate(key cachekey.Key) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := c.removeLocked(key)
	if removed {
		c.reportSizeLocked()
	}
	return removed
}

// InvalidatePrefix removes every entry whose rendered key starts with prefix
// and returns the number removed.
func (c *Cache) InvalidatePrefix(prefix string) int {
	return c.InvalidateFunc(func(k cachekey.Key) bool {
		return strings.HasPrefix(k.String(), prefix)
	})
}

// InvalidateFunc removes every entry whose key satisfies match and returns
// the number removed.
func (c *Cache) InvalidateFunc(match func(cachekey.Key) bool) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	var removed int
	for _, key := range c.index.Keys() {
		if match(key) && c.removeLocked(key) {
			removed++
		}
	}
	if removed > 0 {
		c.reportSizeLocked()
	}
	return removed
}

// Clear removes all entries and returns the number removed.
// Counters are kept.
func (c *Cache) Clear() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := c.index.Len()
	c.index.Purge()
	c.size = 0
	c.reportSizeLocked()
	if c.verbose && n > 0 {
		c.logger.Info("cache cleared", zap.Int("entries", n))
	}
	return n
}

func (c *Cache) removeLocked(key cachekey.Key) bool {
	e, ok := c.index.Peek(key)
	if !ok {
		return false
	}
	c.index.Remove(key)
	c.size -= e.size
	if c.verbose {
		c.logger.Debug("cache invalidation", zap.Stringer("key", key))
	}
	return true
}

func (c *Cache) reportSizeLocked() {
	c.collector.SetGauge(stats.MetricQueryBytes, c.size)
	c.collector.SetGauge(stats.MetricQueryEntries, int64(c.index.Len()))
}

// Stats returns current cache statistics.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Stats{
		Hits:       c.hits,
		Misses:     c.misses,
		Evictions:  c.evictions,
		Rejected:   c.rejected,
		SizeBytes:  c.size,
		LimitBytes: c.limit,
		Entries:    c.index.Len(),
	}
}

// ResetCounters zeroes hit, miss, eviction and rejection counters.
func (c *Cache) ResetCounters() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.hits, c.misses, c.evictions, c.rejected = 0, 0, 0, 0
}

// Len returns the number of entries in the cache.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.index.Len()
}

// Entries lists cached entries from most to least recently used.
func (c *Cache) Entries() []EntryInfo {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := c.index.Keys()
	infos := make([]EntryInfo, 0, len(keys))
	for i := len(keys) - 1; i >= 0; i-- {
		e, ok := c.index.Peek(keys[i])
		if !ok {
			continue
		}
		infos = append(infos, EntryInfo{
			Key:         keys[i],
			SizeBytes:   e.size,
			AccessCount: e.hits,
			LastAccess:  e.lastAccess,
			CreatedAt:   e.createdAt,
		})
	}
	return infos
}
