package querycache

import (
	"time"

	"github.com/mangoshelf/libcache/internal/cachekey"
)

// Stats contains cache statistics.
type Stats struct {
	Hits       uint64
	Misses     uint64
	Evictions  uint64
	Rejected   uint64 // values larger than the whole budget
	SizeBytes  int64
	LimitBytes int64
	Entries    int
}

// HitRate returns the cache hit rate as a percentage.
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

// EntryInfo describes one cached entry for debugging.
type EntryInfo struct {
	Key         cachekey.Key
	SizeBytes   int64
	AccessCount uint64
	LastAccess  time.Time
	CreatedAt   time.Time
}
