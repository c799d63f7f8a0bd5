package reslock

import (
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/andy-ce-taylor/reslock/lib/markerfs"
	"github.com/andy-ce-taylor/reslock/lib/markerfs/osfs"
	"github.com/puzpuzpuz/xsync/v3"
)

// marker is the per-handle bookkeeping kept for release-time ownership
// verification and for Close.
type marker struct {
	path    string
	created time.Time
}

type lockerImpl struct {
	fs      markerfs.IMarkerFS
	cfg     Config
	handles *xsync.MapOf[Handle, marker]
	seq     atomic.Uint64

	// seams for deterministic tests
	now   func() time.Time
	sleep func(time.Duration)
}

// New creates a locker over the given filesystem capability. The lock store
// root is created if absent; that is the only operation that can fail here.
func New(fs markerfs.IMarkerFS, cfg Config) (ILocker, error) {
	cfg = cfg.withDefaults()
	if err := fs.EnsureRoot(cfg.StoreDir); err != nil {
		return nil, err
	}
	return &lockerImpl{
		fs:      fs,
		cfg:     cfg,
		handles: xsync.NewMapOf[Handle, marker](),
		now:     time.Now,
		sleep:   time.Sleep,
	}, nil
}

// NewOS creates a locker over the real filesystem. This is the constructor
// cooperating processes use in production.
func NewOS(cfg Config) (ILocker, error) {
	return New(osfs.New(), cfg)
}

// --------------------------------------------------------------------------
// Interface Methods (docu see interface.go)
// --------------------------------------------------------------------------

func (l *lockerImpl) Lock(resource string) (Handle, bool) {
	id := Identify(resource)
	path := filepath.Join(l.cfg.StoreDir, id)

	// total time budget for this call
	budget := l.cfg.MaxPause * time.Duration(l.cfg.MaxAttempts)
	swept := false

	for {
		// Reclaim the contended marker inline if its holder sat on it past
		// MaxHold. Removal is best effort: another contender may reclaim
		// and re-acquire between our removal and our create, in which case
		// the create below simply fails and we retry.
		if created, found, err := l.fs.CreationTime(path); err == nil && found {
			if l.now().Sub(created) >= l.cfg.MaxHold {
				if l.fs.RemoveDir(path) == nil {
					mReclaimed.Inc()
				}
			}
		}

		// The atomic test-and-set. Exactly one contender per round gets nil.
		if err := l.fs.MakeDir(path); err == nil {
			created, found, err := l.fs.CreationTime(path)
			if err != nil || !found {
				// our fresh marker was reclaimed before we could stat it,
				// which takes a clock far ahead of ours; the observed time
				// is then the best ownership evidence we have
				created = l.now()
			}
			h := Handle{id: id, created: created.UnixNano(), seq: l.seq.Add(1)}
			l.handles.Store(h, marker{path: path, created: created})
			mAcquired.Inc()
			return h, true
		}

		// Somebody else holds the lock. Clean up unrelated abandoned
		// markers once per acquisition, on the first failed attempt.
		if !swept {
			swept = true
			l.Sweep()
		}

		// Jittered backoff. A fixed interval would march every waiter in
		// lockstep behind the first one to wake.
		pause := nextPause(l.cfg.MaxPause)
		l.sleep(pause)

		budget -= pause
		if budget <= 0 {
			mTimeout.Inc()
			return Handle{}, false
		}
	}
}

func (l *lockerImpl) Unlock(h Handle) {
	m, tracked := l.handles.LoadAndDelete(h)
	if !tracked {
		// unknown, foreign or already-released handle
		return
	}

	created, found, err := l.fs.CreationTime(m.path)
	if err != nil || !found {
		// marker already gone (reclaimed as stale, or swept)
		return
	}
	if created.UnixNano() != h.created {
		// the marker was reclaimed and re-created by a third party since
		// our acquisition; it is their lock now, leave it alone
		return
	}

	// best effort, a concurrent reclaimer may have beaten us to it
	_ = l.fs.RemoveDir(m.path)
	mReleased.Inc()
}

func (l *lockerImpl) Sweep() {
	names, err := l.fs.ListDirs(l.cfg.StoreDir)
	if err != nil {
		return
	}
	for _, name := range names {
		path := filepath.Join(l.cfg.StoreDir, name)
		created, found, err := l.fs.CreationTime(path)
		if err != nil || !found {
			// vanished between listing and stat
			continue
		}
		if l.now().Sub(created) < l.cfg.MaxHold {
			continue
		}
		if l.fs.RemoveDir(path) == nil {
			mSwept.Inc()
		}
	}
}

func (l *lockerImpl) Close() {
	l.handles.Range(func(h Handle, _ marker) bool {
		l.Unlock(h)
		return true
	})
}
