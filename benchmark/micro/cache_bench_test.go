package micro

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/mangoshelf/libcache"
	"github.com/mangoshelf/libcache/internal/memlibrary"
)

func newCache(b *testing.B, opts ...libcache.Option) *libcache.Cache {
	b.Helper()
	c, err := libcache.New(opts...)
	if err != nil {
		b.Fatalf("creating cache: %v", err)
	}
	b.Cleanup(func() { c.Close(context.Background()) })
	return c
}

func titleIDs(n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("title-%05d", i)
	}
	return ids
}

// BenchmarkGetOrCompute_Hit measures the cost of serving a cached listing.
func BenchmarkGetOrCompute_Hit(b *testing.B) {
	c := newCache(b)
	ctx := context.Background()
	ids := titleIDs(1000)
	key := libcache.SortedTitlesKey("alice", ids, "title", true)
	compute := func(context.Context) ([]string, error) { return ids, nil }

	if _, err := libcache.SortedIDs(ctx, c, key, compute); err != nil {
		b.Fatalf("warming cache: %v", err)
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := libcache.SortedIDs(ctx, c, key, compute); err != nil {
			b.Fatalf("lookup error: %v", err)
		}
	}
}

// BenchmarkGetOrCompute_Miss measures a miss including store and eviction.
func BenchmarkGetOrCompute_Miss(b *testing.B) {
	c := newCache(b, libcache.WithBudget(1<<20))
	ctx := context.Background()
	ids := titleIDs(100)
	compute := func(context.Context) ([]string, error) { return ids, nil }

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		key := libcache.SortedTitlesKey(strconv.Itoa(i), ids, "title", true)
		if _, err := libcache.SortedIDs(ctx, c, key, compute); err != nil {
			b.Fatalf("lookup error: %v", err)
		}
	}
}

// BenchmarkGetOrCompute_Parallel measures contention on a small hot set.
func BenchmarkGetOrCompute_Parallel(b *testing.B) {
	c := newCache(b)
	ids := titleIDs(200)
	compute := func(context.Context) ([]string, error) { return ids, nil }

	keys := make([]libcache.Key, 16)
	for i := range keys {
		keys[i] = libcache.SortedTitlesKey(strconv.Itoa(i), ids, "title", true)
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		ctx := context.Background()
		i := 0
		for pb.Next() {
			if _, err := libcache.SortedIDs(ctx, c, keys[i%len(keys)], compute); err != nil {
				b.Errorf("lookup error: %v", err)
				return
			}
			i++
		}
	})
}

// BenchmarkKey measures key construction, dominated by the id fingerprint.
func BenchmarkKey(b *testing.B) {
	for _, n := range []int{10, 1000, 10000} {
		ids := titleIDs(n)
		b.Run(strconv.Itoa(n), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				_ = libcache.SortedTitlesKey("alice", ids, "title", true)
			}
		})
	}
}

func populatedLibrary(titles, entriesPer int) *memlibrary.Library {
	lib := memlibrary.New("/library")
	for t := 0; t < titles; t++ {
		id := fmt.Sprintf("title-%05d", t)
		item := libcache.Item{
			ID:        id,
			Path:      "/library/" + id,
			Title:     "Title " + strconv.Itoa(t),
			Signature: uint64(t),
			Mtime:     int64(t),
		}
		for e := 0; e < entriesPer; e++ {
			eid := fmt.Sprintf("%s-e%03d", id, e)
			item.Entries = append(item.Entries, libcache.Entry{
				ID:        eid,
				Path:      item.Path + "/" + eid + ".cbz",
				Title:     "Vol. " + strconv.Itoa(e+1),
				Signature: uint64(e),
				Mtime:     int64(e),
				Pages:     180,
			})
		}
		lib.Set(item)
	}
	return lib
}

// BenchmarkSnapshot measures a save and load round trip per codec.
func BenchmarkSnapshot(b *testing.B) {
	lib := populatedLibrary(500, 20)

	for _, name := range []string{"zstd", "gzip", "none"} {
		b.Run(name, func(b *testing.B) {
			c := newCache(b,
				libcache.WithRoot("/library"),
				libcache.WithSnapshotPath(filepath.Join(b.TempDir(), "library.cache")),
				libcache.WithCodec(name),
				libcache.WithCounter(libcache.LenCounter(lib)),
			)
			ctx := context.Background()

			var snap *libcache.Snapshot
			if err := lib.View(func(v libcache.View) error {
				snap = libcache.Capture(v)
				return nil
			}); err != nil {
				b.Fatalf("capturing library: %v", err)
			}

			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if err := c.SaveSnapshot(ctx, snap); err != nil {
					b.Fatalf("save error: %v", err)
				}
				if _, state := c.LoadSnapshot(ctx); state != libcache.SnapshotLoaded {
					b.Fatalf("load state = %v, want %v", state, libcache.SnapshotLoaded)
				}
			}
			b.StopTimer()

			if meta, err := c.SnapshotMetadata(); err == nil {
				b.ReportMetric(float64(meta.SizeBytes), "file-bytes")
			}
		})
	}
}
