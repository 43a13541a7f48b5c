// Package collection defines how the cache engine reaches the library's
// title collection without owning it.
//
// The collection lives in the host application behind its own guard. The
// engine only sees it through View and Mutator, which are valid for the
// duration of a Library.View or Library.Update callback.
package collection

import (
	"context"

	"github.com/mangoshelf/libcache/internal/snapshot"
)

// View is read access to the collection.
type View interface {
	// Root returns the library root directory.
	Root() string
	// Len returns the number of items.
	Len() int
	// Range calls fn for every item until fn returns false.
	Range(fn func(snapshot.Item) bool)
}

// Mutator is write access to the collection.
type Mutator interface {
	View
	// Replace swaps the whole item set.
	Replace(items map[string]snapshot.Item)
}

// Library guards a collection.
type Library interface {
	// View runs fn with the read guard held.
	View(fn func(View) error) error
	// Update runs fn with the write guard held.
	Update(fn func(Mutator) error) error
}

// Counter reports the authoritative number of items, usually from the
// record store. It is compared against the item count of a snapshot.
type Counter interface {
	ItemCount(ctx context.Context) (int, error)
}

// CounterFunc adapts a function to Counter.
type CounterFunc func(ctx context.Context) (int, error)

// Compile-time check that CounterFunc implements Counter.
var _ Counter = CounterFunc(nil)

// ItemCount calls f(ctx).
func (f CounterFunc) ItemCount(ctx context.Context) (int, error) {
	return f(ctx)
}

// LenCounter counts the items currently held by lib.
func LenCounter(lib Library) Counter {
	return CounterFunc(func(ctx context.Context) (int, error) {
		var n int
		err := lib.View(func(v View) error {
			n = v.Len()
			return nil
		})
		return n, err
	})
}
