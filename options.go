package libcache

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/mangoshelf/libcache/internal/codec"
	"github.com/mangoshelf/libcache/internal/codec/gzipcodec"
	"github.com/mangoshelf/libcache/internal/codec/noopcodec"
	"github.com/mangoshelf/libcache/internal/codec/zstdcodec"
	"github.com/mangoshelf/libcache/internal/config"
	"github.com/mangoshelf/libcache/internal/stats"
)

// DefaultBudget is the query cache budget used when none is configured.
const DefaultBudget = 50 << 20

// Option configures a Cache.
type Option interface {
	apply(*options)
}

// options holds the cache configuration.
type options struct {
	root         string
	snapshotPath string
	codec        string
	budget       int64
	enabled      bool
	verbose      bool
	dedup        bool
	counter      Counter
	stats        stats.Collector
	logger       *zap.Logger
}

// defaultOptions returns the default configuration.
func defaultOptions() options {
	return options{
		codec:   "zstd",
		budget:  DefaultBudget,
		enabled: true,
		dedup:   true,
		stats:   stats.NewNoop(),
		logger:  zap.NewNop(),
	}
}

// optionFunc wraps a function to implement Option.
type optionFunc func(*options)

// Compile-time check that optionFunc implements Option.
var _ Option = optionFunc(nil)

func (f optionFunc) apply(o *options) { f(o) }

// WithRoot sets the library root directory. Snapshots record the root and
// are rejected on load if it changed.
func WithRoot(root string) Option {
	return optionFunc(func(o *options) {
		o.root = root
	})
}

// WithSnapshotPath enables snapshot persistence at path.
// Requires WithCounter.
func WithSnapshotPath(path string) Option {
	return optionFunc(func(o *options) {
		o.snapshotPath = path
	})
}

// WithCodec sets the snapshot compression: "zstd" (default), "gzip" or "none".
// Existing snapshots are readable regardless of this setting.
func WithCodec(name string) Option {
	return optionFunc(func(o *options) {
		o.codec = name
	})
}

// WithBudget sets the query cache budget in bytes.
// Default is DefaultBudget.
func WithBudget(bytes int64) Option {
	return optionFunc(func(o *options) {
		o.budget = bytes
	})
}

// WithEnabled turns the cache on or off. A disabled cache computes every
// request and never persists snapshots.
func WithEnabled(enabled bool) Option {
	return optionFunc(func(o *options) {
		o.enabled = enabled
	})
}

// WithVerbose logs every hit, miss, eviction and invalidation at debug level.
func WithVerbose(verbose bool) Option {
	return optionFunc(func(o *options) {
		o.verbose = verbose
	})
}

// WithDedup controls whether concurrent misses on one key share a single
// computation. Default is true. When false, concurrent misses each compute
// and the last one to finish is stored.
func WithDedup(dedup bool) Option {
	return optionFunc(func(o *options) {
		o.dedup = dedup
	})
}

// WithCounter sets the authoritative item counter used to validate snapshots.
func WithCounter(c Counter) Option {
	return optionFunc(func(o *options) {
		o.counter = c
	})
}

// WithStats sets the stats collector.
// If not set, a no-op collector is used.
func WithStats(c stats.Collector) Option {
	return optionFunc(func(o *options) {
		o.stats = c
	})
}

// WithLogger sets the logger.
// If not set, a no-op logger is used.
func WithLogger(l *zap.Logger) Option {
	return optionFunc(func(o *options) {
		o.logger = l
	})
}

// WithConfig applies a loaded configuration.
func WithConfig(cfg config.Config) (Option, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	budget, err := cfg.BudgetBytes()
	if err != nil {
		return nil, err
	}

	return optionFunc(func(o *options) {
		o.root = cfg.LibraryPath
		o.snapshotPath = cfg.SnapshotPath
		o.enabled = cfg.Enabled
		o.budget = budget
		o.verbose = cfg.Verbose
		o.codec = cfg.Codec
	}), nil
}

func codecByName(name string) (codec.Codec, error) {
	switch name {
	case "zstd", "":
		return zstdcodec.New(), nil
	case "gzip":
		return gzipcodec.New(), nil
	case "none":
		return noopcodec.New(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCodec, name)
	}
}
