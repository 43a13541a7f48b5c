package libcache

import "time"

// Stats contains cache and snapshot statistics.
type Stats struct {
	Enabled    bool   `json:"enabled"`
	Hits       uint64 `json:"hits"`
	Misses     uint64 `json:"misses"`
	Evictions  uint64 `json:"evictions"`
	Rejected   uint64 `json:"rejected"`
	SizeBytes  int64  `json:"size_bytes"`
	LimitBytes int64  `json:"limit_bytes"`
	Entries    int    `json:"entries"`

	Snapshot         SnapshotState `json:"snapshot"`
	SnapshotSaves    uint64        `json:"snapshot_saves"`
	SnapshotFailures uint64        `json:"snapshot_failures"`
	SnapshotLoads    uint64        `json:"snapshot_loads"`
	LastSave         time.Time     `json:"last_save,omitzero"`
	LastSaveError    string        `json:"last_save_error,omitempty"`
}

// HitRate returns the query cache hit rate as a percentage.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total) * 100
}

// UsagePercent returns how much of the byte budget is in use, as a percentage.
func (s Stats) UsagePercent() float64 {
	if s.LimitBytes <= 0 {
		return 0
	}
	return float64(s.SizeBytes) / float64(s.LimitBytes) * 100
}

// Stats returns current statistics.
func (c *Cache) Stats() Stats {
	q := c.query.Stats()

	c.snap.mu.Lock()
	defer c.snap.mu.Unlock()

	return Stats{
		Enabled:          c.enabled,
		Hits:             q.Hits,
		Misses:           q.Misses,
		Evictions:        q.Evictions,
		Rejected:         q.Rejected,
		SizeBytes:        q.SizeBytes,
		LimitBytes:       q.LimitBytes,
		Entries:          q.Entries,
		Snapshot:         c.snap.state,
		SnapshotSaves:    c.snap.saves,
		SnapshotFailures: c.snap.failures,
		SnapshotLoads:    c.snap.loads,
		LastSave:         c.snap.lastSave,
		LastSaveError:    c.snap.lastError,
	}
}

// ResetStats zeroes all counters. Cached values and the snapshot state are kept.
func (c *Cache) ResetStats() {
	c.query.ResetCounters()

	c.snap.mu.Lock()
	defer c.snap.mu.Unlock()
	c.snap.saves, c.snap.failures, c.snap.loads = 0, 0, 0
	c.snap.lastError = ""
}
