// Package libcache is the caching engine of a self-hosted media library.
//
// It combines two tiers. A byte-bounded LRU cache holds the results of
// expensive per-user queries such as sorted title lists, keyed by a
// fingerprint of the identifier set they were computed from. A snapshot file
// persists the scanned library collection so that a restart can skip the
// full directory scan when nothing changed.
//
// Example usage:
//
//	cache, err := libcache.New(
//	    libcache.WithRoot("/srv/manga"),
//	    libcache.WithSnapshotPath("/var/cache/mango/library.cache"),
//	    libcache.WithCounter(db),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer cache.Close(context.Background())
//
//	key := libcache.SortedTitlesKey(user, titleIDs, "title", true)
//	ids, err := libcache.SortedIDs(ctx, cache, key, func(ctx context.Context) ([]string, error) {
//	    return sortTitles(ctx, user, titleIDs)
//	})
package libcache

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/mangoshelf/libcache/internal/cachekey"
	"github.com/mangoshelf/libcache/internal/querycache"
	"github.com/mangoshelf/libcache/internal/snapshot"
	"github.com/mangoshelf/libcache/internal/stats"
)

// Sentinel errors for well-defined error conditions.
var (
	// ErrClosed indicates the cache has been closed.
	ErrClosed = errors.New("libcache: cache closed")

	// ErrNoCounter indicates snapshot persistence was requested without an item counter.
	ErrNoCounter = errors.New("libcache: snapshot path requires a counter")

	// ErrNoRoot indicates snapshot persistence was requested without a library root.
	ErrNoRoot = errors.New("libcache: snapshot path requires a library root")

	// ErrInvalidBudget indicates a non-positive query cache budget.
	ErrInvalidBudget = errors.New("libcache: budget must be positive")

	// ErrUnknownCodec indicates an unsupported snapshot codec name.
	ErrUnknownCodec = errors.New("libcache: unknown codec")

	// ErrDisabled indicates the operation needs the cache or snapshot to be enabled.
	ErrDisabled = errors.New("libcache: cache disabled")
)

// ComputeFunc produces a value on a cache miss, along with its approximate
// size in bytes.
type ComputeFunc func(ctx context.Context) (value any, size int64, err error)

// Cache is the cache facade. A Cache is safe for concurrent use by multiple
// goroutines.
type Cache struct {
	root    string
	enabled bool
	verbose bool
	dedup   bool

	query   *querycache.Cache
	store   *snapshot.Store
	counter Counter
	stats   stats.Collector
	logger  *zap.Logger
	group   singleflight.Group

	// lifecycle orders Close against new background saves.
	lifecycle sync.Mutex
	closed    atomic.Bool

	bgCtx    context.Context
	bgCancel context.CancelFunc
	bgWG     sync.WaitGroup
	pending  atomic.Pointer[Snapshot]
	saving   atomic.Bool

	snap snapshotCounters
}

// New creates a new Cache with the given options.
func New(opts ...Option) (*Cache, error) {
	cfg := defaultOptions()
	for _, opt := range opts {
		opt.apply(&cfg)
	}

	if cfg.budget <= 0 {
		return nil, ErrInvalidBudget
	}
	if cfg.snapshotPath != "" {
		if cfg.counter == nil {
			return nil, ErrNoCounter
		}
		if cfg.root == "" {
			return nil, ErrNoRoot
		}
	}
	cd, err := codecByName(cfg.codec)
	if err != nil {
		return nil, err
	}

	logger := cfg.logger.Named("libcache")
	query, err := querycache.New(cfg.budget, querycache.Options{
		Collector: cfg.stats,
		Logger:    logger.Named("query"),
		Verbose:   cfg.verbose,
	})
	if err != nil {
		return nil, fmt.Errorf("creating query cache: %w", err)
	}

	c := &Cache{
		root:    cfg.root,
		enabled: cfg.enabled,
		verbose: cfg.verbose,
		dedup:   cfg.dedup,
		query:   query,
		counter: cfg.counter,
		stats:   cfg.stats,
		logger:  logger,
	}
	if cfg.snapshotPath != "" {
		c.store = snapshot.New(cfg.snapshotPath, cd, logger.Named("snapshot"))
	}
	c.bgCtx, c.bgCancel = context.WithCancel(context.Background())

	c.logger.Debug("cache initialized",
		zap.Bool("enabled", c.enabled),
		zap.Int64("budget", cfg.budget),
		zap.String("root", c.root),
		zap.String("snapshot", cfg.snapshotPath),
		zap.String("codec", cd.Name()),
		zap.Bool("dedup", c.dedup),
	)

	return c, nil
}

// Enabled reports whether the cache stores values.
func (c *Cache) Enabled() bool {
	return c.enabled
}

// Root returns the library root the cache was configured with.
func (c *Cache) Root() string {
	return c.root
}

// GetOrCompute returns the value cached under key, or runs compute and
// caches its result. The value is stored only if compute succeeds and the
// context used to compute it was not cancelled. No cache lock is held while
// compute runs.
//
// With dedup enabled (the default), concurrent callers missing on the same
// key share one computation. A caller that stops waiting because its own
// context ends gets the context error; the computation continues for the
// others.
func (c *Cache) GetOrCompute(ctx context.Context, key Key, compute ComputeFunc) (any, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}
	if !c.enabled {
		v, _, err := compute(ctx)
		return v, err
	}

	if v, ok := c.query.Get(key); ok {
		return v, nil
	}
	if !c.dedup {
		return c.computeAndStore(ctx, key, compute)
	}
	return c.computeShared(ctx, key, compute)
}

func (c *Cache) computeShared(ctx context.Context, key Key, compute ComputeFunc) (any, error) {
	name := flightName(key)
	for {
		var led bool
		ch := c.group.DoChan(name, func() (any, error) {
			led = true
			return c.computeAndStore(ctx, key, compute)
		})

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case res := <-ch:
			if led {
				return res.Val, res.Err
			}
			// The leader's context ended; compute again under ours.
			if isContextErr(res.Err) && ctx.Err() == nil {
				if v, ok := c.query.Get(key); ok {
					return v, nil
				}
				continue
			}
			c.stats.IncCounter(stats.MetricComputeShared, 1)
			return res.Val, res.Err
		}
	}
}

func (c *Cache) computeAndStore(ctx context.Context, key Key, compute ComputeFunc) (any, error) {
	start := time.Now()
	v, size, err := compute(ctx)
	c.stats.ObserveHistogram(stats.MetricComputeSeconds, time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}
	if ctx.Err() != nil {
		return v, nil
	}
	c.query.Put(key, v, size)
	return v, nil
}

// flightName encodes every field of key with a length prefix, so unequal keys
// never share a computation even when they render to the same string.
func flightName(key Key) string {
	var b []byte
	for _, f := range [...]string{string(key.Namespace), key.Item, key.User, key.Fingerprint, key.SortField} {
		b = strconv.AppendInt(b, int64(len(f)), 10)
		b = append(b, ':')
		b = append(b, f...)
	}
	return string(strconv.AppendBool(b, key.Ascending))
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// Compute is a typed GetOrCompute. sizeOf estimates the byte size of a
// computed value.
func Compute[T any](ctx context.Context, c *Cache, key Key, sizeOf func(T) int64, fn func(context.Context) (T, error)) (T, error) {
	v, err := c.GetOrCompute(ctx, key, func(ctx context.Context) (any, int64, error) {
		t, err := fn(ctx)
		if err != nil {
			return nil, 0, err
		}
		return t, sizeOf(t), nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("libcache: value cached under %s is %T", key, v)
	}
	return t, nil
}

// SortedIDs caches an ordered identifier list. The returned slice is a copy
// the caller may modify.
func SortedIDs(ctx context.Context, c *Cache, key Key, fn func(context.Context) ([]string, error)) ([]string, error) {
	ids, err := Compute(ctx, c, key, SizeOfStrings, fn)
	if err != nil {
		return nil, err
	}
	return slices.Clone(ids), nil
}

// SizeOfStrings estimates the memory held by a string slice: the slice
// header plus each string header and its bytes.
func SizeOfStrings(ids []string) int64 {
	size := int64(24)
	for _, id := range ids {
		size += 16 + int64(len(id))
	}
	return size
}

// Invalidate removes the value cached under key.
func (c *Cache) Invalidate(key Key) bool {
	if !c.enabled {
		return false
	}
	removed := c.query.Invalidate(key)
	if removed {
		c.stats.IncCounter(stats.MetricInvalidated, 1)
	}
	return removed
}

// InvalidatePrefix removes every value whose key renders with prefix, such as
// "sorted_titles:u1:", and returns the number removed.
func (c *Cache) InvalidatePrefix(prefix string) int {
	if !c.enabled {
		return 0
	}
	return c.invalidated("prefix", prefix, c.query.InvalidatePrefix(prefix))
}

// InvalidateForUser removes every value scoped to user.
func (c *Cache) InvalidateForUser(user string) int {
	if !c.enabled {
		return 0
	}
	n := c.query.InvalidateFunc(func(k cachekey.Key) bool {
		return k.User == user
	})
	return c.invalidated("user", user, n)
}

// InvalidateForItem removes every value scoped to item, for all users.
func (c *Cache) InvalidateForItem(item string) int {
	if !c.enabled {
		return 0
	}
	n := c.query.InvalidateFunc(func(k cachekey.Key) bool {
		return k.Item == item
	})
	return c.invalidated("item", item, n)
}

// InvalidateProgress removes what a progress change by user on item makes
// stale: the user's title orderings, and the user's entry orderings and
// progress sums for item.
func (c *Cache) InvalidateProgress(item, user string) int {
	if !c.enabled {
		return 0
	}
	n := c.query.InvalidateFunc(func(k cachekey.Key) bool {
		if k.User != user {
			return false
		}
		switch k.Namespace {
		case cachekey.SortedTitles:
			return true
		case cachekey.SortedEntries, cachekey.ProgressSums:
			return k.Item == item
		default:
			return false
		}
	})
	return c.invalidated("progress", item+":"+user, n)
}

func (c *Cache) invalidated(kind, target string, n int) int {
	if n > 0 {
		c.stats.IncCounter(stats.MetricInvalidated, int64(n))
	}
	if c.verbose {
		c.logger.Debug("cache invalidated",
			zap.String("kind", kind),
			zap.String("target", target),
			zap.Int("entries", n),
		)
	}
	return n
}

// Clear removes every cached value and returns the number removed.
// Counters are kept; see ResetStats.
func (c *Cache) Clear() int {
	if !c.enabled {
		return 0
	}
	n := c.query.Clear()
	if n > 0 {
		c.stats.IncCounter(stats.MetricInvalidated, int64(n))
	}
	c.logger.Info("cache cleared", zap.Int("entries", n))
	return n
}

// EntryInfo describes one cached value.
type EntryInfo struct {
	Key         string    `json:"key"`
	SizeBytes   int64     `json:"size_bytes"`
	AccessCount uint64    `json:"access_count"`
	LastAccess  time.Time `json:"last_access"`
	CreatedAt   time.Time `json:"created_at"`
}

// Entries lists up to limit cached values, most recently used first.
// A non-positive limit lists all.
func (c *Cache) Entries(limit int) []EntryInfo {
	entries := c.query.Entries()
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	infos := make([]EntryInfo, len(entries))
	for i, e := range entries {
		infos[i] = EntryInfo{
			Key:         e.Key.String(),
			SizeBytes:   e.SizeBytes,
			AccessCount: e.AccessCount,
			LastAccess:  e.LastAccess,
			CreatedAt:   e.CreatedAt,
		}
	}
	return infos
}
