package libcache

import (
	"context"
	"fmt"
)

// ControlResult is the outcome of an operator action, shaped for a JSON
// response.
type ControlResult struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Count   int         `json:"count,omitempty"`
	Stats   *Stats      `json:"stats,omitempty"`
	Entries []EntryInfo `json:"entries,omitempty"`
}

// Control exposes operator actions on a cache and the library it persists.
type Control struct {
	cache   *Cache
	library Library
}

// NewControl creates an operator control surface.
func NewControl(cache *Cache, library Library) *Control {
	return &Control{cache: cache, library: library}
}

// Clear drops every cached query result.
func (c *Control) Clear() ControlResult {
	if !c.cache.Enabled() {
		return failure(ErrDisabled)
	}
	n := c.cache.Clear()
	return ControlResult{
		Success: true,
		Message: fmt.Sprintf("cleared %d cached entries", n),
		Count:   n,
	}
}

// InvalidatePrefix drops every cached query result whose key starts with prefix.
func (c *Control) InvalidatePrefix(prefix string) ControlResult {
	if !c.cache.Enabled() {
		return failure(ErrDisabled)
	}
	if prefix == "" {
		return ControlResult{Message: "prefix must not be empty"}
	}
	n := c.cache.InvalidatePrefix(prefix)
	return ControlResult{
		Success: true,
		Message: fmt.Sprintf("invalidated %d entries matching %q", n, prefix),
		Count:   n,
	}
}

// SaveNow captures the library and writes the snapshot synchronously.
func (c *Control) SaveNow(ctx context.Context) ControlResult {
	if !c.cache.snapshotsEnabled() {
		return failure(ErrDisabled)
	}

	var snap *Snapshot
	if err := c.library.View(func(v View) error {
		snap = Capture(v)
		return nil
	}); err != nil {
		return failure(err)
	}

	if err := c.cache.SaveSnapshot(ctx, snap); err != nil {
		return failure(err)
	}
	return ControlResult{
		Success: true,
		Message: fmt.Sprintf("saved snapshot with %d items", snap.Count()),
		Count:   snap.Count(),
	}
}

// LoadNow loads the snapshot and, if it is valid, replaces the library
// collection with it. Cached query results are dropped since they may refer
// to the previous collection.
func (c *Control) LoadNow(ctx context.Context) ControlResult {
	snap, state := c.cache.LoadSnapshot(ctx)
	if state != SnapshotLoaded {
		return ControlResult{Message: fmt.Sprintf("snapshot not loaded: %s", state)}
	}

	if err := c.library.Update(func(m Mutator) error {
		m.Replace(snap.Items)
		c.cache.Clear()
		return nil
	}); err != nil {
		return failure(err)
	}
	return ControlResult{
		Success: true,
		Message: fmt.Sprintf("loaded snapshot with %d items", snap.Count()),
		Count:   snap.Count(),
	}
}

// Statistics reports cache and snapshot statistics.
func (c *Control) Statistics() ControlResult {
	s := c.cache.Stats()
	return ControlResult{
		Success: true,
		Message: fmt.Sprintf("%d entries, %.1f%% hit rate", s.Entries, s.HitRate()),
		Count:   s.Entries,
		Stats:   &s,
	}
}

// Debug lists up to limit cached entries, most recently used first.
func (c *Control) Debug(limit int) ControlResult {
	entries := c.cache.Entries(limit)
	s := c.cache.Stats()
	return ControlResult{
		Success: true,
		Message: fmt.Sprintf("showing %d of %d entries", len(entries), s.Entries),
		Count:   len(entries),
		Stats:   &s,
		Entries: entries,
	}
}

func failure(err error) ControlResult {
	return ControlResult{Message: err.Error()}
}
