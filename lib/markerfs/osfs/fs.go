package osfs

import (
	"fmt"
	"os"
	"time"

	"github.com/andy-ce-taylor/reslock/lib/markerfs"
)

// markers are only ever readable by the owning user
const dirPerm = 0700

type osFS struct{}

// New returns an IMarkerFS backed by the real filesystem.
func New() markerfs.IMarkerFS {
	return osFS{}
}

// MakeDir relies on os.Mkdir mapping to a single mkdir(2) call, which
// atomically fails with EEXIST when the target is already present. This is
// the test-and-set the locking protocol requires.
func (osFS) MakeDir(path string) error {
	err := os.Mkdir(path, dirPerm)
	if err == nil {
		return nil
	}
	if os.IsExist(err) {
		return fmt.Errorf("%w: %s", markerfs.ErrExist, path)
	}
	return err
}

func (osFS) RemoveDir(path string) error {
	return os.Remove(path)
}

// CreationTime reports the marker's modification time. Markers are empty
// directories that are never written into after creation, so the mtime set
// by mkdir(2) is the creation time. Stat is used instead of a platform
// birth-time lookup because mtime behaves identically on every filesystem
// the lock store can live on.
func (osFS) CreationTime(path string) (time.Time, bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, err
	}
	return info.ModTime(), true, nil
}

func (osFS) ListDirs(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

func (osFS) EnsureRoot(root string) error {
	return os.MkdirAll(root, dirPerm)
}
