// Package memlibrary provides an in-memory library collection for tests and
// tooling.
package memlibrary

import (
	"maps"
	"slices"
	"sync"

	"github.com/mangoshelf/libcache/internal/collection"
	"github.com/mangoshelf/libcache/internal/snapshot"
)

// Compile-time checks.
var (
	_ collection.Library = (*Library)(nil)
	_ collection.Mutator = (*guarded)(nil)
)

// Library is a collection of items guarded by a RWMutex.
type Library struct {
	mu    sync.RWMutex
	root  string
	items map[string]snapshot.Item
}

// New creates an empty library rooted at root.
func New(root string) *Library {
	return &Library{
		root:  root,
		items: make(map[string]snapshot.Item),
	}
}

// View runs fn with the read lock held.
func (l *Library) View(fn func(collection.View) error) error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return fn(&guarded{l: l})
}

// Update runs fn with the write lock held.
func (l *Library) Update(fn func(collection.Mutator) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return fn(&guarded{l: l})
}

// Set adds or replaces one item (for test setup).
// The entries are copied to prevent caller mutations from affecting the library.
func (l *Library) Set(item snapshot.Item) {
	l.mu.Lock()
	defer l.mu.Unlock()
	item.Entries = slices.Clone(item.Entries)
	l.items[item.ID] = item
}

// Remove deletes one item.
func (l *Library) Remove(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.items, id)
}

// Get returns a copy of one item.
func (l *Library) Get(id string) (snapshot.Item, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	item, ok := l.items[id]
	item.Entries = slices.Clone(item.Entries)
	return item, ok
}

// Len returns the number of items.
func (l *Library) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.items)
}

// guarded exposes the library to callbacks that already hold the lock.
type guarded struct {
	l *Library
}

func (g *guarded) Root() string { return g.l.root }

func (g *guarded) Len() int { return len(g.l.items) }

func (g *guarded) Range(fn func(snapshot.Item) bool) {
	for _, id := range slices.Sorted(maps.Keys(g.l.items)) {
		if !fn(g.l.items[id]) {
			return
		}
	}
}

func (g *guarded) Replace(items map[string]snapshot.Item) {
	g.l.items = make(map[string]snapshot.Item, len(items))
	for id, item := range items {
		item.Entries = slices.Clone(item.Entries)
		g.l.items[id] = item
	}
}
