// Package testing provides a conformance test suite for markerfs.IMarkerFS
// implementations. Every implementation must pass it; the atomicity subtest
// in particular checks the create-if-absent guarantee the locking protocol
// depends on.
package testing

import (
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/andy-ce-taylor/reslock/lib/markerfs"
)

// FSFactory creates a fresh IMarkerFS instance together with a root
// directory that is valid for that instance.
type FSFactory func(t *testing.T) (fs markerfs.IMarkerFS, root string)

// RunMarkerFSTests runs the conformance suite for an IMarkerFS implementation.
func RunMarkerFSTests(t *testing.T, name string, factory FSFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("MakeDir", func(t *testing.T) {
			testMakeDir(t, factory)
		})

		t.Run("MakeDirAtomicity", func(t *testing.T) {
			testMakeDirAtomicity(t, factory)
		})

		t.Run("CreationTime", func(t *testing.T) {
			testCreationTime(t, factory)
		})

		t.Run("RemoveDir", func(t *testing.T) {
			testRemoveDir(t, factory)
		})

		t.Run("ListDirs", func(t *testing.T) {
			testListDirs(t, factory)
		})
	})
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testMakeDir(t *testing.T, factory FSFactory) {
	fs, root := factory(t)
	path := filepath.Join(root, "aabbccdd")

	if err := fs.MakeDir(path); err != nil {
		t.Fatalf("first MakeDir failed: %v", err)
	}

	err := fs.MakeDir(path)
	if err == nil {
		t.Fatal("second MakeDir on the same path succeeded, want ErrExist")
	}
	if !errors.Is(err, markerfs.ErrExist) {
		t.Errorf("second MakeDir returned %v, want ErrExist", err)
	}
}

// testMakeDirAtomicity races many goroutines at one path and requires
// exactly one winner per round.
func testMakeDirAtomicity(t *testing.T, factory FSFactory) {
	fs, root := factory(t)

	const rounds = 20
	const contenders = 8

	for round := 0; round < rounds; round++ {
		path := filepath.Join(root, "race")
		var wins atomic.Int32
		var wg sync.WaitGroup

		for i := 0; i < contenders; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := fs.MakeDir(path); err == nil {
					wins.Add(1)
				} else if !errors.Is(err, markerfs.ErrExist) {
					t.Errorf("MakeDir returned unexpected error: %v", err)
				}
			}()
		}
		wg.Wait()

		if got := wins.Load(); got != 1 {
			t.Fatalf("round %d: %d goroutines won MakeDir, want exactly 1", round, got)
		}
		if err := fs.RemoveDir(path); err != nil {
			t.Fatalf("round %d: cleanup RemoveDir failed: %v", round, err)
		}
	}
}

func testCreationTime(t *testing.T, factory FSFactory) {
	fs, root := factory(t)
	path := filepath.Join(root, "11223344")

	// missing marker: found=false, no error
	_, found, err := fs.CreationTime(path)
	if err != nil {
		t.Fatalf("CreationTime on missing marker errored: %v", err)
	}
	if found {
		t.Fatal("CreationTime reported a marker that was never created")
	}

	if err := fs.MakeDir(path); err != nil {
		t.Fatalf("MakeDir failed: %v", err)
	}

	created, found, err := fs.CreationTime(path)
	if err != nil {
		t.Fatalf("CreationTime failed: %v", err)
	}
	if !found {
		t.Fatal("CreationTime did not find a marker that exists")
	}
	if created.IsZero() {
		t.Error("CreationTime returned the zero time for an existing marker")
	}

	// the timestamp must be stable across reads, release-time ownership
	// verification compares it for equality
	again, _, err := fs.CreationTime(path)
	if err != nil {
		t.Fatalf("second CreationTime failed: %v", err)
	}
	if !created.Equal(again) {
		t.Errorf("creation time changed between reads: %v then %v", created, again)
	}
}

func testRemoveDir(t *testing.T, factory FSFactory) {
	fs, root := factory(t)
	path := filepath.Join(root, "0badf00d")

	if err := fs.MakeDir(path); err != nil {
		t.Fatalf("MakeDir failed: %v", err)
	}
	if err := fs.RemoveDir(path); err != nil {
		t.Fatalf("RemoveDir failed: %v", err)
	}

	_, found, err := fs.CreationTime(path)
	if err != nil {
		t.Fatalf("CreationTime after removal errored: %v", err)
	}
	if found {
		t.Error("marker still reported present after RemoveDir")
	}

	// removing an already-removed marker errors; callers ignore it
	if err := fs.RemoveDir(path); err == nil {
		t.Error("RemoveDir on a missing marker succeeded, want error")
	}
}

func testListDirs(t *testing.T, factory FSFactory) {
	fs, root := factory(t)

	names, err := fs.ListDirs(root)
	if err != nil {
		t.Fatalf("ListDirs on empty root failed: %v", err)
	}
	if len(names) != 0 {
		t.Fatalf("empty root listed %d markers: %v", len(names), names)
	}

	want := map[string]bool{"marker-a": true, "marker-b": true, "marker-c": true}
	for name := range want {
		if err := fs.MakeDir(filepath.Join(root, name)); err != nil {
			t.Fatalf("MakeDir(%s) failed: %v", name, err)
		}
	}

	names, err = fs.ListDirs(root)
	if err != nil {
		t.Fatalf("ListDirs failed: %v", err)
	}
	if len(names) != len(want) {
		t.Fatalf("ListDirs returned %d names, want %d: %v", len(names), len(want), names)
	}
	for _, name := range names {
		if !want[name] {
			t.Errorf("ListDirs returned unexpected name %q", name)
		}
	}
}
