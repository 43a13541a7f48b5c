package querycache

import (
	"fmt"
	"sync"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/mangoshelf/libcache/internal/cachekey"
	"github.com/mangoshelf/libcache/internal/stats"
)

// recordingCollector records counter and gauge values.
type recordingCollector struct {
	mu       sync.Mutex
	counters map[string]int64
	gauges   map[string]int64
}

var _ stats.Collector = (*recordingCollector)(nil)

func newRecordingCollector() *recordingCollector {
	return &recordingCollector{
		counters: make(map[string]int64),
		gauges:   make(map[string]int64),
	}
}

func (r *recordingCollector) IncCounter(name string, delta int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counters[name] += delta
}

func (r *recordingCollector) SetGauge(name string, value int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gauges[name] = value
}

func (r *recordingCollector) ObserveHistogram(name string, value float64) {}

func key(ns cachekey.Namespace, item, user string, ids ...string) cachekey.Key {
	return cachekey.Build(ns, cachekey.Scope{Item: item, User: user}, ids, "name", true)
}

func mustNew(t *testing.T, limit int64, opts Options) *Cache {
	t.Helper()
	c, err := New(limit, opts)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c
}

func TestNew_InvalidLimit(t *testing.T) {
	for _, limit := range []int64{0, -1} {
		if _, err := New(limit, Options{}); err != ErrInvalidLimit {
			t.Errorf("New(%d) error = %v, want ErrInvalidLimit", limit, err)
		}
	}
}

func TestCache_GetMiss(t *testing.T) {
	c := mustNew(t, 100, Options{})

	if _, ok := c.Get(key(cachekey.SortedTitles, "", "u1", "a")); ok {
		t.Error("Get() on empty cache should miss")
	}

	s := c.Stats()
	if s.Misses != 1 || s.Hits != 0 {
		t.Errorf("Stats() = %+v, want 1 miss and 0 hits", s)
	}
}

func TestCache_PutGet(t *testing.T) {
	c := mustNew(t, 100, Options{})
	k := key(cachekey.SortedTitles, "", "u1", "a", "b")

	if !c.Put(k, []string{"b", "a"}, 10) {
		t.Fatal("Put() = false, want true")
	}

	v, ok := c.Get(k)
	if !ok {
		t.Fatal("Get() after Put() should hit")
	}
	got := v.([]string)
	if len(got) != 2 || got[0] != "b" || got[1] != "a" {
		t.Errorf("Get() = %v, want [b a]", got)
	}

	s := c.Stats()
	if s.Hits != 1 || s.SizeBytes != 10 || s.Entries != 1 {
		t.Errorf("Stats() = %+v, want 1 hit, 10 bytes, 1 entry", s)
	}
	checkInvariants(t, c)
}

func TestCache_PutReplacesValue(t *testing.T) {
	c := mustNew(t, 100, Options{})
	k := key(cachekey.SortedEntries, "t1", "u1", "e1")

	c.Put(k, "old", 30)
	c.Put(k, "new", 20)

	v, _ := c.Get(k)
	if v != "new" {
		t.Errorf("Get() = %v, want new", v)
	}
	if s := c.Stats(); s.SizeBytes != 20 || s.Entries != 1 {
		t.Errorf("Stats() = %+v, want 20 bytes in 1 entry", s)
	}
	checkInvariants(t, c)
}

func TestCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c := mustNew(t, 100, Options{})
	a := key(cachekey.SortedTitles, "", "u1", "a")
	b := key(cachekey.SortedTitles, "", "u1", "b")
	d := key(cachekey.SortedTitles, "", "u1", "d")

	c.Put(a, "A", 40)
	c.Put(b, "B", 40)
	c.Put(d, "D", 40)

	if _, ok := c.Get(a); ok {
		t.Error("oldest entry should have been evicted")
	}
	for _, k := range []cachekey.Key{b, d} {
		if _, ok := c.Get(k); !ok {
			t.Errorf("Get(%s) should hit", k)
		}
	}

	s := c.Stats()
	if s.Evictions != 1 {
		t.Errorf("Stats().Evictions = %d, want 1", s.Evictions)
	}
	if s.SizeBytes != 80 {
		t.Errorf("Stats().SizeBytes = %d, want 80", s.SizeBytes)
	}
	checkInvariants(t, c)
}

func TestCache_GetProtectsFromEviction(t *testing.T) {
	c := mustNew(t, 100, Options{})
	a := key(cachekey.SortedTitles, "", "u1", "a")
	b := key(cachekey.SortedTitles, "", "u1", "b")
	d := key(cachekey.SortedTitles, "", "u1", "d")

	c.Put(a, "A", 40)
	c.Put(b, "B", 40)
	c.Get(a)
	c.Put(d, "D", 40)

	if _, ok := c.Get(a); !ok {
		t.Error("recently read entry should survive eviction")
	}
	if _, ok := c.Get(b); ok {
		t.Error("least recently used entry should have been evicted")
	}
	checkInvariants(t, c)
}

func TestCache_EvictsSeveralForLargeEntry(t *testing.T) {
	c := mustNew(t, 100, Options{})
	for i := range 5 {
		c.Put(key(cachekey.SortedTitles, "", "u1", fmt.Sprint(i)), i, 20)
	}
	big := key(cachekey.SortedTitles, "", "u2", "big")
	c.Put(big, "big", 90)

	s := c.Stats()
	if s.Entries != 1 || s.Evictions != 5 {
		t.Errorf("Stats() = %+v, want 1 entry and 5 evictions", s)
	}
	if _, ok := c.Get(big); !ok {
		t.Error("newly inserted entry should be present")
	}
	checkInvariants(t, c)
}

func TestCache_RejectsOversizeValue(t *testing.T) {
	c := mustNew(t, 100, Options{})
	small := key(cachekey.SortedTitles, "", "u1", "s")
	huge := key(cachekey.SortedTitles, "", "u1", "h")

	c.Put(small, "s", 10)
	if c.Put(huge, "h", 101) {
		t.Error("Put() of value larger than budget = true, want false")
	}

	if _, ok := c.Get(huge); ok {
		t.Error("oversize value should not be stored")
	}
	if _, ok := c.Get(small); !ok {
		t.Error("existing entries should be untouched by a rejected put")
	}
	if s := c.Stats(); s.Rejected != 1 || s.Evictions != 0 {
		t.Errorf("Stats() = %+v, want 1 rejected and 0 evictions", s)
	}
	checkInvariants(t, c)
}

func TestCache_ValueEqualToBudgetIsStored(t *testing.T) {
	c := mustNew(t, 100, Options{})
	k := key(cachekey.InfoJSONs, "", "", "dir")
	if !c.Put(k, "x", 100) {
		t.Fatal("Put() of value equal to budget = false, want true")
	}
	checkInvariants(t, c)
}

func TestCache_Invalidate(t *testing.T) {
	c := mustNew(t, 100, Options{})
	k := key(cachekey.SortedTitles, "", "u1", "a")
	c.Put(k, "A", 10)

	if !c.Invalidate(k) {
		t.Error("Invalidate() of present key = false, want true")
	}
	if c.Invalidate(k) {
		t.Error("Invalidate() of absent key = true, want false")
	}
	if s := c.Stats(); s.SizeBytes != 0 || s.Entries != 0 {
		t.Errorf("Stats() = %+v, want empty", s)
	}
	checkInvariants(t, c)
}

func TestCache_InvalidatePrefix(t *testing.T) {
	c := mustNew(t, 1000, Options{})
	u1Titles := key(cachekey.SortedTitles, "", "u1", "a")
	u1Entries := key(cachekey.SortedEntries, "t1", "u1", "e")
	u2Titles := key(cachekey.SortedTitles, "", "u2", "a")
	u10Titles := key(cachekey.SortedTitles, "", "u10", "a")

	for _, k := range []cachekey.Key{u1Titles, u1Entries, u2Titles, u10Titles} {
		c.Put(k, k.String(), 10)
	}

	n := c.InvalidatePrefix(cachekey.Prefix(cachekey.SortedTitles, cachekey.Scope{User: "u1"}))
	if n != 1 {
		t.Errorf("InvalidatePrefix() = %d, want 1", n)
	}
	if _, ok := c.Get(u1Titles); ok {
		t.Error("matching entry should be removed")
	}
	for _, k := range []cachekey.Key{u1Entries, u2Titles, u10Titles} {
		if _, ok := c.Get(k); !ok {
			t.Errorf("Get(%s) should still hit", k)
		}
	}
	checkInvariants(t, c)
}

func TestCache_InvalidatePrefixNoMatch(t *testing.T) {
	c := mustNew(t, 100, Options{})
	c.Put(key(cachekey.SortedTitles, "", "u1", "a"), "A", 10)

	if n := c.InvalidatePrefix("nonexistent_prefix:"); n != 0 {
		t.Errorf("InvalidatePrefix() = %d, want 0", n)
	}
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1", c.Len())
	}
}

func TestCache_InvalidateFunc(t *testing.T) {
	c := mustNew(t, 1000, Options{})
	c.Put(key(cachekey.SortedEntries, "t1", "u1", "a"), 1, 10)
	c.Put(key(cachekey.SortedEntries, "t1", "u2", "a"), 2, 10)
	c.Put(key(cachekey.SortedEntries, "t2", "u1", "a"), 3, 10)

	n := c.InvalidateFunc(func(k cachekey.Key) bool { return k.Item == "t1" })
	if n != 2 {
		t.Errorf("InvalidateFunc() = %d, want 2", n)
	}
	if s := c.Stats(); s.Entries != 1 || s.SizeBytes != 10 {
		t.Errorf("Stats() = %+v, want 1 entry of 10 bytes", s)
	}
	checkInvariants(t, c)
}

func TestCache_ClearKeepsCounters(t *testing.T) {
	c := mustNew(t, 100, Options{})
	k := key(cachekey.SortedTitles, "", "u1", "a")
	c.Put(k, "A", 10)
	c.Get(k)

	if n := c.Clear(); n != 1 {
		t.Errorf("Clear() = %d, want 1", n)
	}
	s := c.Stats()
	if s.Entries != 0 || s.SizeBytes != 0 {
		t.Errorf("Stats() = %+v, want empty", s)
	}
	if s.Hits != 1 {
		t.Errorf("Stats().Hits = %d, want 1", s.Hits)
	}

	c.ResetCounters()
	if s := c.Stats(); s.Hits != 0 || s.Misses != 0 {
		t.Errorf("Stats() after ResetCounters() = %+v", s)
	}
}

func TestCache_Entries(t *testing.T) {
	c := mustNew(t, 100, Options{})
	a := key(cachekey.SortedTitles, "", "u1", "a")
	b := key(cachekey.SortedTitles, "", "u1", "b")
	c.Put(a, "A", 10)
	c.Put(b, "B", 20)
	c.Get(a)
	c.Get(a)

	entries := c.Entries()
	if len(entries) != 2 {
		t.Fatalf("len(Entries()) = %d, want 2", len(entries))
	}
	if entries[0].Key != a {
		t.Errorf("Entries()[0].Key = %s, want most recently used %s", entries[0].Key, a)
	}
	if entries[0].AccessCount != 2 {
		t.Errorf("Entries()[0].AccessCount = %d, want 2", entries[0].AccessCount)
	}
	if entries[1].SizeBytes != 20 {
		t.Errorf("Entries()[1].SizeBytes = %d, want 20", entries[1].SizeBytes)
	}
}

func TestCache_ReportsMetrics(t *testing.T) {
	rec := newRecordingCollector()
	c := mustNew(t, 100, Options{Collector: rec})
	a := key(cachekey.SortedTitles, "", "u1", "a")
	b := key(cachekey.SortedTitles, "", "u1", "b")

	c.Put(a, "A", 60)
	c.Get(a)
	c.Get(b)
	c.Put(b, "B", 60)
	c.Put(b, "B", 200)

	want := map[string]int64{
		stats.MetricQueryHits:      1,
		stats.MetricQueryMisses:    1,
		stats.MetricQueryEvictions: 1,
		stats.MetricQueryRejected:  1,
	}
	for name, v := range want {
		if got := rec.counters[name]; got != v {
			t.Errorf("counter %s = %d, want %d", name, got, v)
		}
	}
	if got := rec.gauges[stats.MetricQueryBytes]; got != 60 {
		t.Errorf("gauge %s = %d, want 60", stats.MetricQueryBytes, got)
	}
	if got := rec.gauges[stats.MetricQueryEntries]; got != 1 {
		t.Errorf("gauge %s = %d, want 1", stats.MetricQueryEntries, got)
	}
}

func TestCache_VerboseLogging(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	c := mustNew(t, 50, Options{Logger: zap.New(core), Verbose: true})
	a := key(cachekey.SortedTitles, "", "u1", "a")

	c.Get(a)
	c.Put(a, "A", 40)
	c.Get(a)
	c.Put(key(cachekey.SortedTitles, "", "u1", "b"), "B", 40)

	for _, msg := range []string{"cache miss", "cache hit", "cache eviction"} {
		if logs.FilterMessage(msg).Len() != 1 {
			t.Errorf("expected one %q log, got %d", msg, logs.FilterMessage(msg).Len())
		}
	}
}

func TestCache_QuietByDefault(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	c := mustNew(t, 50, Options{Logger: zap.New(core)})
	a := key(cachekey.SortedTitles, "", "u1", "a")
	c.Get(a)
	c.Put(a, "A", 40)
	c.Get(a)

	if logs.Len() != 0 {
		t.Errorf("non-verbose cache logged %d entries", logs.Len())
	}
}

func TestStats_Rates(t *testing.T) {
	tests := []struct {
		name      string
		stats     Stats
		wantHit   float64
		wantUsage float64
	}{
		{"empty", Stats{}, 0, 0},
		{"half", Stats{Hits: 5, Misses: 5, SizeBytes: 25, LimitBytes: 100}, 50, 25},
		{"all hits", Stats{Hits: 3, SizeBytes: 100, LimitBytes: 100}, 100, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.stats.HitRate(); got != tt.wantHit {
				t.Errorf("HitRate() = %v, want %v", got, tt.wantHit)
			}
			if got := tt.stats.UsagePercent(); got != tt.wantUsage {
				t.Errorf("UsagePercent() = %v, want %v", got, tt.wantUsage)
			}
		})
	}
}

func TestCache_ConcurrentAccess(t *testing.T) {
	c := mustNew(t, 500, Options{})
	var wg sync.WaitGroup
	for w := range 8 {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := range 200 {
				k := key(cachekey.SortedTitles, "", fmt.Sprintf("u%d", w%3), fmt.Sprint(i%17))
				if _, ok := c.Get(k); !ok {
					c.Put(k, i, int64(i%40))
				}
				if i%50 == 0 {
					c.InvalidatePrefix(cachekey.Prefix(cachekey.SortedTitles, cachekey.Scope{User: "u1"}))
				}
			}
		}(w)
	}
	wg.Wait()
	checkInvariants(t, c)
}

func BenchmarkCache_GetHit(b *testing.B) {
	c, _ := New(1<<20, Options{})
	keys := make([]cachekey.Key, 256)
	for i := range keys {
		keys[i] = key(cachekey.SortedTitles, "", "u1", fmt.Sprint(i))
		c.Put(keys[i], i, 64)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.Get(keys[i%len(keys)])
	}
}

func BenchmarkCache_PutEvict(b *testing.B) {
	c, _ := New(64*128, Options{})
	keys := make([]cachekey.Key, 1024)
	for i := range keys {
		keys[i] = key(cachekey.SortedTitles, "", "u1", fmt.Sprint(i))
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.Put(keys[i%len(keys)], i, 64)
	}
}
