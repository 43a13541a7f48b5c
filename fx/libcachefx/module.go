// Package libcachefx provides an fx module for a snapshot-backed cache.
//
// On start the module restores the library collection from the snapshot if
// it is still valid. On stop it optionally saves a final snapshot and then
// closes the cache, bounded by the configured shutdown timeout.
package libcachefx

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/mangoshelf/libcache"
	"github.com/mangoshelf/libcache/internal/config"
	"github.com/mangoshelf/libcache/internal/stats"
	"github.com/mangoshelf/libcache/internal/stats/logger"
	promstats "github.com/mangoshelf/libcache/internal/stats/prometheus"
)

// Module provides a *libcache.Cache and its *libcache.Control.
// Requires a config.Config, a *zap.Logger, a libcache.Library and a
// libcache.Counter. If a prometheus.Registerer is provided, metrics are
// exported through it; otherwise they are logged at debug level.
var Module = fx.Module("libcache",
	fx.Provide(
		newStatsCollector,
		newCache,
	),
)

// CollectorParams holds dependencies for creating the stats collector.
type CollectorParams struct {
	fx.In

	Logger     *zap.Logger
	Registerer prometheus.Registerer `optional:"true"`
}

func newStatsCollector(p CollectorParams) stats.Collector {
	if p.Registerer != nil {
		return promstats.New(p.Registerer)
	}
	return logger.New(p.Logger.Named("libcache.stats"))
}

// Params holds dependencies for creating the cache.
type Params struct {
	fx.In

	Config    config.Config
	Logger    *zap.Logger
	Collector stats.Collector
	Library   libcache.Library
	Counter   libcache.Counter
	Lifecycle fx.Lifecycle
}

// Result holds the provided cache and control surface.
type Result struct {
	fx.Out

	Cache   *libcache.Cache
	Control *libcache.Control
}

func newCache(p Params) (Result, error) {
	fromConfig, err := libcache.WithConfig(p.Config)
	if err != nil {
		return Result{}, err
	}

	cache, err := libcache.New(
		fromConfig,
		libcache.WithCounter(p.Counter),
		libcache.WithStats(p.Collector),
		libcache.WithLogger(p.Logger),
	)
	if err != nil {
		return Result{}, err
	}

	ctl := libcache.NewControl(cache, p.Library)
	log := p.Logger.Named("libcache")

	p.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			res := ctl.LoadNow(ctx)
			log.Debug("startup snapshot restore",
				zap.Bool("restored", res.Success),
				zap.String("result", res.Message),
			)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if timeout := p.Config.ShutdownTimeout; timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}
			if p.Config.SaveOnShutdown && cache.Enabled() {
				start := time.Now()
				res := ctl.SaveNow(ctx)
				log.Debug("shutdown snapshot save",
					zap.Bool("saved", res.Success),
					zap.String("result", res.Message),
					zap.Duration("elapsed", time.Since(start)),
				)
			}
			return cache.Close(ctx)
		},
	})

	return Result{Cache: cache, Control: ctl}, nil
}
