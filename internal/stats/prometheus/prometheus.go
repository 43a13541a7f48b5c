// Package prometheus provides a Prometheus-based stats collector.
package prometheus

import (
	"errors"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mangoshelf/libcache/internal/stats"
)

// Compile-time check that Collector implements stats.Collector.
var _ stats.Collector = (*Collector)(nil)

var help = map[string]string{
	stats.MetricQueryHits:            "Query cache lookups served from memory.",
	stats.MetricQueryMisses:          "Query cache lookups that required a computation.",
	stats.MetricQueryEvictions:       "Entries evicted to stay within the byte budget.",
	stats.MetricQueryRejected:        "Values refused because they exceed the whole budget.",
	stats.MetricQueryBytes:           "Approximate bytes held by the query cache.",
	stats.MetricQueryEntries:         "Entries held by the query cache.",
	stats.MetricComputeSeconds:       "Duration of computations run on a cache miss.",
	stats.MetricComputeShared:        "Misses that joined an in-flight computation.",
	stats.MetricInvalidated:          "Entries removed by explicit invalidation.",
	stats.MetricSnapshotSaves:        "Snapshot files written successfully.",
	stats.MetricSnapshotSaveFailures: "Snapshot writes that failed.",
	stats.MetricSnapshotSaveSeconds:  "Duration of snapshot writes.",
	stats.MetricSnapshotLoads:        "Snapshots restored successfully.",
	stats.MetricSnapshotInvalid:      "Snapshots discarded as corrupt or stale.",
	stats.MetricSnapshotBytes:        "Size of the last snapshot written.",
}

// Collector implements stats.Collector using Prometheus metrics.
// Metrics are created and registered lazily on first use.
type Collector struct {
	registry prometheus.Registerer
	buckets  []float64

	mu         sync.RWMutex
	counters   map[string]prometheus.Counter
	gauges     map[string]prometheus.Gauge
	histograms map[string]prometheus.Histogram
}

// New creates a new Prometheus collector.
// If registry is nil, prometheus.DefaultRegisterer is used.
func New(registry prometheus.Registerer) *Collector {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	return &Collector{
		registry:   registry,
		buckets:    prometheus.DefBuckets,
		counters:   make(map[string]prometheus.Counter),
		gauges:     make(map[string]prometheus.Gauge),
		histograms: make(map[string]prometheus.Histogram),
	}
}

// IncCounter increments a counter metric.
func (c *Collector) IncCounter(name string, delta int64) {
	counter := getOrRegister(c, c.counters, name, func() prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{Name: name, Help: helpFor(name)})
	})
	counter.Add(float64(delta))
}

// SetGauge sets a gauge metric.
func (c *Collector) SetGauge(name string, value int64) {
	gauge := getOrRegister(c, c.gauges, name, func() prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{Name: name, Help: helpFor(name)})
	})
	gauge.Set(float64(value))
}

// ObserveHistogram records a value in a histogram.
func (c *Collector) ObserveHistogram(name string, value float64) {
	histogram := getOrRegister(c, c.histograms, name, func() prometheus.Histogram {
		return prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    name,
			Help:    helpFor(name),
			Buckets: c.buckets,
		})
	})
	histogram.Observe(value)
}

// getOrRegister returns the metric cached under name, creating and
// registering it on first use. A metric already present in the registry
// under the same name is adopted instead of the new one.
func getOrRegister[M prometheus.Collector](c *Collector, metrics map[string]M, name string, create func() M) M {
	c.mu.RLock()
	m, ok := metrics[name]
	c.mu.RUnlock()
	if ok {
		return m
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if m, ok = metrics[name]; ok {
		return m
	}

	m = create()
	if err := c.registry.Register(m); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(M); ok {
				m = existing
			}
		}
		// Any other registration error leaves m unregistered but usable.
	}
	metrics[name] = m
	return m
}

func helpFor(name string) string {
	if h, ok := help[name]; ok {
		return h
	}
	return name
}
