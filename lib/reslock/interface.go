package reslock

import (
	"os"
	"path/filepath"
	"time"
)

// Defaults used when the corresponding Config field is zero.
const (
	DefaultMaxPause    = 500 * time.Millisecond
	DefaultMaxAttempts = 20
	DefaultMaxHold     = 60 * time.Second
)

// DefaultStoreDir is the lock store root used when Config.StoreDir is empty.
func DefaultStoreDir() string {
	return filepath.Join(os.TempDir(), "reslock")
}

// ILocker is the interface for an advisory cross-process lock provider.
// All cooperating processes must share one lock store (same filesystem,
// same root directory) and agree on resource names verbatim.
type ILocker interface {
	// Lock acquires the lock for the given resource name. It blocks,
	// polling with jittered backoff, until the lock is acquired or the
	// total time budget (MaxPause × MaxAttempts) is exhausted. The boolean
	// return value indicates whether the lock was acquired; running out of
	// budget under contention is a normal outcome, not an error.
	Lock(resource string) (h Handle, ok bool)

	// Unlock releases a previously acquired lock. It is a no-op for the
	// zero Handle, for handles issued by another instance, and for handles
	// that were already released; it never fails observably. The marker is
	// only removed if it still carries the creation timestamp observed at
	// acquisition time, so a lock that was reclaimed as stale and re-taken
	// by somebody else is left alone.
	Unlock(h Handle)

	// Sweep removes every marker in the lock store whose age has reached
	// the configured maximum hold duration. Best effort: markers may vanish
	// or be recreated concurrently, and such races are silently tolerated.
	Sweep()

	// Close releases every handle this instance still tracks. After Close
	// the instance can still be used, but the usual pattern is
	// defer locker.Close() right after construction.
	Close()
}

// Handle is the opaque token returned by a successful acquisition. It binds
// the resource identifier to the exact marker creation timestamp observed,
// which is what release-time ownership verification compares against.
// The zero Handle is not valid and is ignored by Unlock.
type Handle struct {
	id      string // resource identifier (digest)
	created int64  // marker creation time, unix nanoseconds
	seq     uint64 // per-instance issue number
}

// ID returns the resource identifier the handle is bound to. Two distinct
// resource names can digest to the same identifier; they then contend for
// the same lock (see Identify).
func (h Handle) ID() string {
	return h.id
}

// Config carries the construction-time tuning of a locker. The zero value
// selects all defaults.
type Config struct {
	// StoreDir is the lock store root directory, created (owner-only
	// permissions) if absent. Empty selects DefaultStoreDir().
	StoreDir string

	// MaxPause is the upper bound of a single randomized wait between
	// acquisition attempts. Each wait is drawn uniformly from
	// [MaxPause/10, MaxPause].
	MaxPause time.Duration

	// MaxAttempts bounds the total acquisition time budget as
	// MaxPause × MaxAttempts.
	MaxAttempts int

	// MaxHold is the age at which a marker is considered abandoned and may
	// be reclaimed by any contender. A marker exactly at the boundary is
	// stale.
	MaxHold time.Duration
}

// withDefaults returns a copy of c with zero fields replaced by defaults.
func (c Config) withDefaults() Config {
	if c.StoreDir == "" {
		c.StoreDir = DefaultStoreDir()
	}
	if c.MaxPause <= 0 {
		c.MaxPause = DefaultMaxPause
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.MaxHold <= 0 {
		c.MaxHold = DefaultMaxHold
	}
	return c
}
