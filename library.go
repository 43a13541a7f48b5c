package libcache

import (
	"slices"

	"github.com/mangoshelf/libcache/internal/collection"
	"github.com/mangoshelf/libcache/internal/snapshot"
)

// Collection data types.
type (
	// Item is one library title.
	Item = snapshot.Item
	// Entry is one readable archive within a title.
	Entry = snapshot.Entry
	// Snapshot is the persisted form of the collection.
	Snapshot = snapshot.Snapshot
	// Metadata describes the snapshot file on disk.
	Metadata = snapshot.Metadata
)

// Collection capability. The host application owns the collection and its
// guard; the cache only reaches it through these interfaces.
type (
	View        = collection.View
	Mutator     = collection.Mutator
	Library     = collection.Library
	Counter     = collection.Counter
	CounterFunc = collection.CounterFunc
)

// Capture deep-copies the collection behind v into a snapshot.
// The caller must hold the collection guard for the duration of the call,
// typically by calling Capture inside Library.View.
func Capture(v View) *Snapshot {
	snap := &Snapshot{
		Root:  v.Root(),
		Items: make(map[string]Item, v.Len()),
	}
	v.Range(func(item Item) bool {
		item.Entries = slices.Clone(item.Entries)
		snap.Items[item.ID] = item
		return true
	})
	return snap
}

// LenCounter returns a Counter that reports the number of items in lib.
// It suits hosts whose collection is already loaded when the snapshot is
// checked.
func LenCounter(lib Library) Counter {
	return collection.LenCounter(lib)
}
