// Package memlibcachefx provides an fx module for a memory-only cache over
// an in-memory library. Useful for testing.
package memlibcachefx

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/mangoshelf/libcache"
	"github.com/mangoshelf/libcache/internal/collection"
	"github.com/mangoshelf/libcache/internal/memlibrary"
	"github.com/mangoshelf/libcache/internal/stats"
	"github.com/mangoshelf/libcache/internal/stats/logger"
)

// Root is the library root of the in-memory library.
const Root = "/library"

// Module provides an in-memory cache for testing.
// Requires a *zap.Logger to be provided.
var Module = fx.Module("memlibcache",
	fx.Provide(
		newStatsCollector,
		newMemLibrary,
		newCache,
	),
)

func newStatsCollector(log *zap.Logger) stats.Collector {
	return logger.New(log.Named("libcache.stats"))
}

func newMemLibrary() *memlibrary.Library {
	return memlibrary.New(Root)
}

// Params holds dependencies for creating the cache.
type Params struct {
	fx.In

	Logger    *zap.Logger
	Collector stats.Collector
	Library   *memlibrary.Library
	Lifecycle fx.Lifecycle
}

// Result holds the provided cache and library.
type Result struct {
	fx.Out

	Cache          *libcache.Cache
	Control        *libcache.Control
	Library        *memlibrary.Library // Exposed for test setup
	LibraryHandle  libcache.Library
	LibraryCounter libcache.Counter
}

func newCache(p Params) (Result, error) {
	cache, err := libcache.New(
		libcache.WithRoot(Root),
		libcache.WithStats(p.Collector),
		libcache.WithLogger(p.Logger),
	)
	if err != nil {
		return Result{}, err
	}

	p.Lifecycle.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return cache.Close(ctx)
		},
	})

	return Result{
		Cache:          cache,
		Control:        libcache.NewControl(cache, p.Library),
		Library:        p.Library,
		LibraryHandle:  p.Library,
		LibraryCounter: collection.LenCounter(p.Library),
	}, nil
}
