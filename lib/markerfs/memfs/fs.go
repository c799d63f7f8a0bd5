package memfs

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/andy-ce-taylor/reslock/lib/markerfs"
)

type memFS struct {
	mu      sync.Mutex
	now     func() time.Time
	markers map[string]time.Time // full path -> creation time
	roots   map[string]struct{}
}

// New returns an in-memory IMarkerFS using the wall clock.
func New() markerfs.IMarkerFS {
	return NewWithClock(time.Now)
}

// NewWithClock returns an in-memory IMarkerFS whose creation timestamps are
// drawn from the given clock. Tests use this to age markers without waiting.
func NewWithClock(now func() time.Time) markerfs.IMarkerFS {
	return &memFS{
		now:     now,
		markers: make(map[string]time.Time),
		roots:   make(map[string]struct{}),
	}
}

func (fs *memFS) MakeDir(path string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if _, ok := fs.markers[path]; ok {
		return fmt.Errorf("%w: %s", markerfs.ErrExist, path)
	}
	fs.markers[path] = fs.now()
	return nil
}

func (fs *memFS) RemoveDir(path string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if _, ok := fs.markers[path]; !ok {
		return fmt.Errorf("memfs: no such marker: %s", path)
	}
	delete(fs.markers, path)
	return nil
}

func (fs *memFS) CreationTime(path string) (time.Time, bool, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	t, ok := fs.markers[path]
	if !ok {
		return time.Time{}, false, nil
	}
	return t, true, nil
}

func (fs *memFS) ListDirs(root string) ([]string, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	prefix := strings.TrimSuffix(root, "/") + "/"
	var names []string
	for path := range fs.markers {
		if rest, ok := strings.CutPrefix(path, prefix); ok && !strings.Contains(rest, "/") {
			names = append(names, rest)
		}
	}
	return names, nil
}

func (fs *memFS) EnsureRoot(root string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.roots[root] = struct{}{}
	return nil
}
