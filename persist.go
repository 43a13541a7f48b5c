package libcache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/mangoshelf/libcache/internal/snapshot"
	"github.com/mangoshelf/libcache/internal/stats"
)

// SnapshotState is the outcome of the most recent snapshot load.
type SnapshotState int

const (
	// SnapshotUnknown means no load has been attempted.
	SnapshotUnknown SnapshotState = iota
	// SnapshotLoaded means a valid snapshot was loaded.
	SnapshotLoaded
	// SnapshotMissing means there was no snapshot file.
	SnapshotMissing
	// SnapshotInvalid means the file was stale or corrupt and has been deleted.
	SnapshotInvalid
	// SnapshotFailed means the file or the item count could not be read.
	SnapshotFailed
	// SnapshotDisabled means snapshots are not configured or the cache is disabled.
	SnapshotDisabled
)

func (s SnapshotState) String() string {
	switch s {
	case SnapshotLoaded:
		return "loaded"
	case SnapshotMissing:
		return "missing"
	case SnapshotInvalid:
		return "invalid"
	case SnapshotFailed:
		return "failed"
	case SnapshotDisabled:
		return "disabled"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s SnapshotState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

type snapshotCounters struct {
	mu        sync.Mutex
	state     SnapshotState
	saves     uint64
	failures  uint64
	loads     uint64
	lastSave  time.Time
	lastError string
}

// snapshotsEnabled reports whether snapshot operations do anything.
func (c *Cache) snapshotsEnabled() bool {
	return c.enabled && c.store != nil
}

// SaveSnapshot writes snap to the snapshot file and waits for the write to
// finish. It is a no-op when snapshots are disabled.
func (c *Cache) SaveSnapshot(ctx context.Context, snap *Snapshot) error {
	if c.closed.Load() {
		return ErrClosed
	}
	if !c.snapshotsEnabled() {
		return nil
	}
	return c.save(ctx, snap)
}

func (c *Cache) save(ctx context.Context, snap *Snapshot) error {
	start := time.Now()
	meta, err := c.store.Save(ctx, snap)
	elapsed := time.Since(start)
	c.stats.ObserveHistogram(stats.MetricSnapshotSaveSeconds, elapsed.Seconds())

	c.snap.mu.Lock()
	defer c.snap.mu.Unlock()

	if err != nil {
		c.snap.failures++
		c.snap.lastError = err.Error()
		c.stats.IncCounter(stats.MetricSnapshotSaveFailures, 1)
		c.logger.Error("failed to save library snapshot",
			zap.String("path", c.store.Path()),
			zap.Int("items", snap.Count()),
			zap.Error(err),
		)
		return fmt.Errorf("saving snapshot: %w", err)
	}

	c.snap.saves++
	c.snap.lastSave = snap.SavedAt
	c.snap.lastError = ""
	c.stats.IncCounter(stats.MetricSnapshotSaves, 1)
	c.stats.SetGauge(stats.MetricSnapshotBytes, meta.SizeBytes)
	c.logger.Info("library snapshot saved",
		zap.String("path", meta.Path),
		zap.Int("items", snap.Count()),
		zap.String("size", humanize.IBytes(uint64(meta.SizeBytes))),
		zap.Duration("elapsed", elapsed),
	)
	return nil
}

// SaveSnapshotBackground captures the collection behind v and saves it
// without blocking the caller. The caller must hold the collection guard.
//
// Saves are coalesced: at most one write runs at a time and, if captures
// arrive while it runs, only the newest is written next. Failures are logged
// and never reach the caller.
func (c *Cache) SaveSnapshotBackground(v View) {
	if !c.snapshotsEnabled() {
		return
	}

	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()
	if c.closed.Load() {
		return
	}

	c.pending.Store(Capture(v))
	if c.saving.CompareAndSwap(false, true) {
		c.bgWG.Add(1)
		go c.saveLoop()
	}
}

func (c *Cache) saveLoop() {
	defer c.bgWG.Done()
	for {
		snap := c.pending.Swap(nil)
		if snap == nil {
			c.saving.Store(false)
			// A capture may have been stored after the swap but before
			// saving was cleared; whoever wins the flag writes it.
			if c.pending.Load() == nil || !c.saving.CompareAndSwap(false, true) {
				return
			}
			continue
		}
		c.save(c.bgCtx, snap)
	}
}

// LoadSnapshot reads the snapshot file and validates it against the library
// root and the item count reported by the Counter.
//
// A snapshot that is stale or corrupt is deleted so the next start does not
// trip over it. Only a SnapshotLoaded state comes with a snapshot; for every
// other state the caller should rescan the library.
func (c *Cache) LoadSnapshot(ctx context.Context) (*Snapshot, SnapshotState) {
	if c.closed.Load() || !c.snapshotsEnabled() {
		return nil, c.setState(SnapshotDisabled)
	}

	log := c.logger.With(zap.String("path", c.store.Path()))

	count, err := c.counter.ItemCount(ctx)
	if err != nil {
		log.Warn("failed to count library items, skipping snapshot", zap.Error(err))
		return nil, c.setState(SnapshotFailed)
	}

	snap, err := c.store.Load(ctx, c.root, count)
	switch {
	case err == nil:
		c.stats.IncCounter(stats.MetricSnapshotLoads, 1)
		c.snap.mu.Lock()
		c.snap.loads++
		c.snap.mu.Unlock()
		log.Info("library snapshot loaded",
			zap.Int("items", snap.Count()),
			zap.Time("savedAt", snap.SavedAt),
		)
		return snap, c.setState(SnapshotLoaded)

	case errors.Is(err, snapshot.ErrNotFound):
		log.Debug("no library snapshot")
		return nil, c.setState(SnapshotMissing)

	case errors.Is(err, snapshot.ErrMismatch):
		log.Info("library snapshot is stale, discarding", zap.Error(err))
		c.discard(log)
		return nil, c.setState(SnapshotInvalid)

	case errors.Is(err, snapshot.ErrCorrupt):
		log.Warn("library snapshot is corrupt, discarding", zap.Error(err))
		c.discard(log)
		return nil, c.setState(SnapshotInvalid)

	default:
		log.Warn("failed to read library snapshot", zap.Error(err))
		return nil, c.setState(SnapshotFailed)
	}
}

func (c *Cache) discard(log *zap.Logger) {
	c.stats.IncCounter(stats.MetricSnapshotInvalid, 1)
	if err := c.store.Delete(); err != nil {
		log.Error("failed to delete invalid library snapshot", zap.Error(err))
	}
}

func (c *Cache) setState(s SnapshotState) SnapshotState {
	c.snap.mu.Lock()
	defer c.snap.mu.Unlock()
	c.snap.state = s
	return s
}

// SnapshotState returns the outcome of the most recent LoadSnapshot.
func (c *Cache) SnapshotState() SnapshotState {
	c.snap.mu.Lock()
	defer c.snap.mu.Unlock()
	return c.snap.state
}

// SnapshotMetadata describes the snapshot file on disk.
func (c *Cache) SnapshotMetadata() (Metadata, error) {
	if c.store == nil {
		return Metadata{}, ErrDisabled
	}
	return c.store.Stat()
}

// DeleteSnapshot removes the snapshot file.
func (c *Cache) DeleteSnapshot() error {
	if c.store == nil {
		return ErrDisabled
	}
	return c.store.Delete()
}

// Close stops accepting work and waits for a pending background save until
// ctx ends. If ctx ends first the save is cancelled, the previous snapshot
// file is kept, and the context error is returned.
func (c *Cache) Close(ctx context.Context) error {
	c.lifecycle.Lock()
	if c.closed.Load() {
		c.lifecycle.Unlock()
		return ErrClosed
	}
	c.closed.Store(true)
	c.lifecycle.Unlock()

	done := make(chan struct{})
	go func() {
		c.bgWG.Wait()
		close(done)
	}()

	select {
	case <-done:
		c.bgCancel()
		c.logger.Debug("cache closed")
		return nil
	case <-ctx.Done():
		c.bgCancel()
		<-done
		c.logger.Warn("cache closed before pending snapshot save finished", zap.Error(ctx.Err()))
		return fmt.Errorf("waiting for snapshot save: %w", ctx.Err())
	}
}
