// Package stats provides a unified interface for collecting metrics.
package stats

// Metric names emitted by the cache engine.
const (
	// Query cache metrics.
	MetricQueryHits      = "libcache_query_hits_total"
	MetricQueryMisses    = "libcache_query_misses_total"
	MetricQueryEvictions = "libcache_query_evictions_total"
	MetricQueryRejected  = "libcache_query_rejected_total"
	MetricQueryBytes     = "libcache_query_size_bytes"
	MetricQueryEntries   = "libcache_query_entries"

	// Facade metrics.
	MetricComputeSeconds = "libcache_compute_seconds"
	MetricComputeShared  = "libcache_compute_shared_total"
	MetricInvalidated    = "libcache_invalidated_total"

	// Snapshot metrics.
	MetricSnapshotSaves        = "libcache_snapshot_saves_total"
	MetricSnapshotSaveFailures = "libcache_snapshot_save_failures_total"
	MetricSnapshotSaveSeconds  = "libcache_snapshot_save_seconds"
	MetricSnapshotLoads        = "libcache_snapshot_loads_total"
	MetricSnapshotInvalid      = "libcache_snapshot_invalid_total"
	MetricSnapshotBytes        = "libcache_snapshot_size_bytes"
)

// Collector defines the interface for collecting metrics.
type Collector interface {
	// IncCounter increments a counter metric by delta.
	IncCounter(name string, delta int64)

	// SetGauge sets a gauge metric to value.
	SetGauge(name string, value int64)

	// ObserveHistogram records a value in a histogram metric.
	ObserveHistogram(name string, value float64)
}
