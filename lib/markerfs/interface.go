package markerfs

import (
	"errors"
	"time"
)

// ErrExist is returned by MakeDir when the target already exists.
// Callers losing an acquisition race check for this sentinel with errors.Is.
var ErrExist = errors.New("markerfs: marker already exists")

// IMarkerFS is the minimal filesystem capability the locking core depends on.
// The single guarantee the whole design rests on is MakeDir: it must be an
// atomic create-if-absent operation. An implementation that checks for
// existence and then creates in two steps is not a valid IMarkerFS.
type IMarkerFS interface {
	// MakeDir atomically creates the marker directory at path with
	// owner-only permissions. It returns ErrExist (possibly wrapped) if the
	// marker already exists; exactly one concurrent caller may succeed.
	MakeDir(path string) (err error)

	// RemoveDir removes the marker directory at path. Removing a marker
	// that has already vanished is an error, but callers are expected to
	// ignore it.
	RemoveDir(path string) (err error)

	// CreationTime returns the creation timestamp of the marker at path.
	// The boolean return value indicates whether the marker exists; a
	// missing marker is not an error.
	CreationTime(path string) (t time.Time, found bool, err error)

	// ListDirs returns the names (not full paths) of all marker directories
	// directly under root. The listing is a snapshot and may race with
	// concurrent creation and removal.
	ListDirs(root string) (names []string, err error)

	// EnsureRoot creates the lock store root directory (and any missing
	// parents) with owner-only permissions if it does not exist.
	EnsureRoot(root string) (err error)
}
