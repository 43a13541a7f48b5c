package snapshot

import (
	"maps"
	"slices"
	"time"
)

// FormatVersion is written into every snapshot. Files with another version
// are rejected on load.
const FormatVersion = 1

// Entry is one readable unit (an archive) inside a title.
type Entry struct {
	ID        string
	Path      string
	Title     string
	Signature uint64
	Mtime     int64
	Pages     int
}

// Item is one library title. Nested titles are stored flat and point at
// their parent through ParentID.
type Item struct {
	ID                string
	Path              string
	Title             string
	Signature         uint64
	ContentsSignature string
	Mtime             int64
	ParentID          string
	Entries           []Entry
}

// Snapshot is the persisted form of the library collection.
type Snapshot struct {
	// Root is the library root directory the collection was scanned from.
	Root string
	// Items maps item IDs to items.
	Items map[string]Item
	// SavedAt is set by Store.Save.
	SavedAt time.Time

	version int
}

// Count returns the number of items in the snapshot.
func (s *Snapshot) Count() int {
	return len(s.Items)
}

// Validate checks that s was written by this format version for the library
// at root holding count items. It returns a *MismatchError otherwise.
func (s *Snapshot) Validate(root string, count int) error {
	if s.version != FormatVersion {
		return &MismatchError{Field: "format version", Have: s.version, Want: FormatVersion}
	}
	if s.Root != root {
		return &MismatchError{Field: "root", Have: s.Root, Want: root}
	}
	if s.Count() != count {
		return &MismatchError{Field: "item count", Have: s.Count(), Want: count}
	}
	return nil
}

// Clone returns a deep copy of s.
func (s *Snapshot) Clone() *Snapshot {
	out := &Snapshot{
		Root:    s.Root,
		Items:   make(map[string]Item, len(s.Items)),
		SavedAt: s.SavedAt,
		version: s.version,
	}
	for id, item := range s.Items {
		item.Entries = slices.Clone(item.Entries)
		out.Items[id] = item
	}
	return out
}

// IDs returns the item IDs in sorted order.
func (s *Snapshot) IDs() []string {
	return slices.Sorted(maps.Keys(s.Items))
}
