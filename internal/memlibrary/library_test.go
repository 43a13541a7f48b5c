package memlibrary

import (
	"context"
	"errors"
	"testing"

	"github.com/mangoshelf/libcache/internal/collection"
	"github.com/mangoshelf/libcache/internal/snapshot"
)

func TestLibrary_SetAndView(t *testing.T) {
	lib := New("/lib")
	lib.Set(snapshot.Item{ID: "b", Title: "B"})
	lib.Set(snapshot.Item{ID: "a", Title: "A"})

	var ids []string
	err := lib.View(func(v collection.View) error {
		if v.Root() != "/lib" {
			t.Errorf("Root() = %q, want /lib", v.Root())
		}
		if v.Len() != 2 {
			t.Errorf("Len() = %d, want 2", v.Len())
		}
		v.Range(func(item snapshot.Item) bool {
			ids = append(ids, item.ID)
			return true
		})
		return nil
	})
	if err != nil {
		t.Fatalf("View() error = %v", err)
	}
	if len(ids) != 2 || ids[0] != "a" || ids[1] != "b" {
		t.Errorf("Range() visited %v, want [a b]", ids)
	}
}

func TestLibrary_RangeStops(t *testing.T) {
	lib := New("/lib")
	for _, id := range []string{"a", "b", "c"} {
		lib.Set(snapshot.Item{ID: id})
	}

	var visited int
	lib.View(func(v collection.View) error {
		v.Range(func(snapshot.Item) bool {
			visited++
			return false
		})
		return nil
	})
	if visited != 1 {
		t.Errorf("Range() visited %d items after stop, want 1", visited)
	}
}

func TestLibrary_UpdateReplace(t *testing.T) {
	lib := New("/lib")
	lib.Set(snapshot.Item{ID: "old"})

	items := map[string]snapshot.Item{
		"x": {ID: "x", Entries: []snapshot.Entry{{ID: "x1", Pages: 3}}},
		"y": {ID: "y"},
	}
	if err := lib.Update(func(m collection.Mutator) error {
		m.Replace(items)
		return nil
	}); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	items["x"].Entries[0].Pages = 99

	if lib.Len() != 2 {
		t.Errorf("Len() = %d, want 2", lib.Len())
	}
	if _, ok := lib.Get("old"); ok {
		t.Error("Replace() should drop previous items")
	}
	x, _ := lib.Get("x")
	if x.Entries[0].Pages != 3 {
		t.Errorf("entry pages = %d, want 3 (library must own its copy)", x.Entries[0].Pages)
	}
}

func TestLibrary_PropagatesCallbackError(t *testing.T) {
	lib := New("/lib")
	want := errors.New("boom")
	if err := lib.View(func(collection.View) error { return want }); !errors.Is(err, want) {
		t.Errorf("View() error = %v, want %v", err, want)
	}
	if err := lib.Update(func(collection.Mutator) error { return want }); !errors.Is(err, want) {
		t.Errorf("Update() error = %v, want %v", err, want)
	}
}

func TestLenCounter(t *testing.T) {
	lib := New("/lib")
	lib.Set(snapshot.Item{ID: "a"})
	lib.Set(snapshot.Item{ID: "b"})
	lib.Remove("a")

	n, err := collection.LenCounter(lib).ItemCount(context.Background())
	if err != nil {
		t.Fatalf("ItemCount() error = %v", err)
	}
	if n != 1 {
		t.Errorf("ItemCount() = %d, want 1", n)
	}
}
