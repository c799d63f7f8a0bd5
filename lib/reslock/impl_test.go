package reslock

import (
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/andy-ce-taylor/reslock/lib/markerfs"
	"github.com/andy-ce-taylor/reslock/lib/markerfs/memfs"
)

const testStore = "/locks"

// fakeClock drives the locker's time seams: sleeping advances the clock
// instead of blocking, so contention and staleness scenarios run instantly.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) sleep(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func (c *fakeClock) advance(d time.Duration) {
	c.sleep(d)
}

// newFakeLocker builds a locker over memfs whose clock and sleep are both
// driven by the returned fakeClock.
func newFakeLocker(t *testing.T, cfg Config) (*lockerImpl, markerfs.IMarkerFS, *fakeClock) {
	t.Helper()
	clk := newFakeClock()
	fs := memfs.NewWithClock(clk.now)

	cfg.StoreDir = testStore
	locker, err := New(fs, cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	impl := locker.(*lockerImpl)
	impl.now = clk.now
	impl.sleep = clk.sleep
	return impl, fs, clk
}

func markerPath(resource string) string {
	return filepath.Join(testStore, Identify(resource))
}

func mustExist(t *testing.T, fs markerfs.IMarkerFS, path string) time.Time {
	t.Helper()
	created, found, err := fs.CreationTime(path)
	if err != nil {
		t.Fatalf("CreationTime(%s) errored: %v", path, err)
	}
	if !found {
		t.Fatalf("marker %s does not exist", path)
	}
	return created
}

func mustNotExist(t *testing.T, fs markerfs.IMarkerFS, path string) {
	t.Helper()
	_, found, err := fs.CreationTime(path)
	if err != nil {
		t.Fatalf("CreationTime(%s) errored: %v", path, err)
	}
	if found {
		t.Fatalf("marker %s exists, want absent", path)
	}
}

// --------------------------------------------------------------------------
// Acquisition
// --------------------------------------------------------------------------

func TestLockUncontended(t *testing.T) {
	locker, fs, _ := newFakeLocker(t, Config{})

	h, ok := locker.Lock("accounts.db")
	if !ok {
		t.Fatal("uncontended Lock failed")
	}
	if h.ID() != Identify("accounts.db") {
		t.Errorf("handle bound to %q, want %q", h.ID(), Identify("accounts.db"))
	}

	created := mustExist(t, fs, markerPath("accounts.db"))
	if created.UnixNano() != h.created {
		t.Errorf("handle timestamp %d differs from marker timestamp %d",
			h.created, created.UnixNano())
	}
}

func TestLockTimesOutUnderContention(t *testing.T) {
	cfg := Config{MaxPause: time.Second, MaxAttempts: 5, MaxHold: time.Hour}
	locker, _, _ := newFakeLocker(t, cfg)

	if _, ok := locker.Lock("R"); !ok {
		t.Fatal("initial Lock failed")
	}

	var slept time.Duration
	innerSleep := locker.sleep
	locker.sleep = func(d time.Duration) {
		slept += d
		innerSleep(d)
	}

	start := time.Now()
	_, ok := locker.Lock("R")
	elapsed := time.Since(start)

	if ok {
		t.Fatal("Lock succeeded while the resource was held and fresh")
	}

	budget := cfg.MaxPause * time.Duration(cfg.MaxAttempts)
	if slept > budget+cfg.MaxPause {
		t.Errorf("waiter slept %v, want at most budget %v plus one final pause %v",
			slept, budget, cfg.MaxPause)
	}
	if slept < budget {
		t.Errorf("waiter gave up after only %v of a %v budget", slept, budget)
	}
	// all waiting happens through the sleep seam, never by real blocking
	if elapsed > time.Second {
		t.Errorf("fake-clock Lock took %v of real time", elapsed)
	}
}

func TestEverySleepWithinJitterBounds(t *testing.T) {
	cfg := Config{MaxPause: time.Second, MaxAttempts: 30, MaxHold: time.Hour}
	locker, _, _ := newFakeLocker(t, cfg)

	if _, ok := locker.Lock("R"); !ok {
		t.Fatal("initial Lock failed")
	}

	innerSleep := locker.sleep
	locker.sleep = func(d time.Duration) {
		if d < cfg.MaxPause/10 || d > cfg.MaxPause {
			t.Errorf("sleep %v outside [%v, %v]", d, cfg.MaxPause/10, cfg.MaxPause)
		}
		innerSleep(d)
	}

	if _, ok := locker.Lock("R"); ok {
		t.Fatal("Lock succeeded while the resource was held and fresh")
	}
}

// Crash recovery: a marker abandoned by a dead holder becomes acquirable
// once its age reaches MaxHold, never sooner.
func TestStaleMarkerIsReclaimed(t *testing.T) {
	cfg := Config{MaxPause: time.Second, MaxAttempts: 20, MaxHold: 6 * time.Second}
	locker, fs, clk := newFakeLocker(t, cfg)

	// a previous holder crashed without releasing
	abandoned := markerPath("R")
	if err := fs.MakeDir(abandoned); err != nil {
		t.Fatalf("planting abandoned marker failed: %v", err)
	}
	born := clk.now()

	h, ok := locker.Lock("R")
	if !ok {
		t.Fatal("Lock never reclaimed the abandoned marker")
	}

	if waited := clk.now().Sub(born); waited < cfg.MaxHold {
		t.Errorf("lock acquired after %v, sooner than MaxHold %v", waited, cfg.MaxHold)
	}
	if created := mustExist(t, fs, abandoned); created.UnixNano() != h.created {
		t.Error("acquired handle does not own the current marker")
	}
}

// A marker exactly at the staleness boundary counts as stale.
func TestStalenessBoundaryIsInclusive(t *testing.T) {
	cfg := Config{MaxPause: time.Second, MaxAttempts: 3, MaxHold: 6 * time.Second}
	locker, fs, clk := newFakeLocker(t, cfg)

	if err := fs.MakeDir(markerPath("R")); err != nil {
		t.Fatalf("planting marker failed: %v", err)
	}
	clk.advance(cfg.MaxHold) // age == MaxHold exactly

	if _, ok := locker.Lock("R"); !ok {
		t.Error("marker at exactly MaxHold age was not reclaimed")
	}
}

// Contended acquisition sweeps the whole store once, so abandoned markers of
// unrelated resources get cleaned up too.
func TestContendedLockSweepsUnrelatedMarkers(t *testing.T) {
	cfg := Config{MaxPause: time.Second, MaxAttempts: 3, MaxHold: 6 * time.Second}
	locker, fs, clk := newFakeLocker(t, cfg)

	stale := markerPath("abandoned-elsewhere")
	if err := fs.MakeDir(stale); err != nil {
		t.Fatalf("planting stale marker failed: %v", err)
	}
	clk.advance(10 * time.Second)

	if _, ok := locker.Lock("R"); !ok {
		t.Fatal("Lock failed")
	}
	// uncontended success never sweeps
	mustExist(t, fs, stale)

	if _, ok := locker.Lock("R"); ok {
		t.Fatal("second Lock succeeded while the resource was held and fresh")
	}
	mustNotExist(t, fs, stale)
}

// Two resource names digesting to the same identifier share one lock. This
// is the documented collision behavior: mutual blocking, not corruption.
func TestCollidingResourcesShareOneLock(t *testing.T) {
	cfg := Config{MaxPause: 100 * time.Millisecond, MaxAttempts: 3, MaxHold: time.Hour}
	locker, _, _ := newFakeLocker(t, cfg)

	h, ok := locker.Lock("costarring")
	if !ok {
		t.Fatal("Lock(costarring) failed")
	}

	if _, ok := locker.Lock("liquid"); ok {
		t.Fatal("Lock(liquid) succeeded while the colliding name was held")
	}

	locker.Unlock(h)

	h2, ok := locker.Lock("liquid")
	if !ok {
		t.Fatal("Lock(liquid) failed after the colliding holder released")
	}
	locker.Unlock(h2)
}

// --------------------------------------------------------------------------
// Release
// --------------------------------------------------------------------------

func TestUnlockRemovesMarker(t *testing.T) {
	locker, fs, _ := newFakeLocker(t, Config{})

	h, ok := locker.Lock("R")
	if !ok {
		t.Fatal("Lock failed")
	}
	locker.Unlock(h)
	mustNotExist(t, fs, markerPath("R"))

	// the resource is immediately acquirable again
	h2, ok := locker.Lock("R")
	if !ok {
		t.Fatal("re-Lock after Unlock failed")
	}
	locker.Unlock(h2)
}

func TestUnlockIsIdempotent(t *testing.T) {
	locker, fs, _ := newFakeLocker(t, Config{})

	h, ok := locker.Lock("R")
	if !ok {
		t.Fatal("Lock failed")
	}

	locker.Unlock(h)
	locker.Unlock(h) // second release of the same handle: no-op
	mustNotExist(t, fs, markerPath("R"))
}

func TestUnlockUnknownHandleIsNoOp(t *testing.T) {
	locker, fs, _ := newFakeLocker(t, Config{})

	locker.Unlock(Handle{}) // zero handle
	locker.Unlock(Handle{id: "deadbeef", created: 42, seq: 7})

	// a handle issued by a different instance over the same store must not
	// be honored either
	other, err := New(fs, Config{StoreDir: testStore})
	if err != nil {
		t.Fatalf("New(second instance) failed: %v", err)
	}
	h, ok := other.Lock("R")
	if !ok {
		t.Fatal("Lock on second instance failed")
	}
	locker.Unlock(h)

	// the first instance holds no record of h, so their lock is untouched
	mustExist(t, fs, markerPath("R"))
}

// The original holder must not destroy a lock that was reclaimed as stale
// and re-created by a third party in the meantime.
func TestUnlockLeavesRecreatedMarkerAlone(t *testing.T) {
	cfg := Config{MaxHold: time.Hour}
	locker, fs, clk := newFakeLocker(t, cfg)

	h, ok := locker.Lock("R")
	if !ok {
		t.Fatal("Lock failed")
	}

	// another process reclaims our marker and takes the lock itself
	path := markerPath("R")
	if err := fs.RemoveDir(path); err != nil {
		t.Fatalf("simulated reclaim failed: %v", err)
	}
	clk.advance(5 * time.Second)
	if err := fs.MakeDir(path); err != nil {
		t.Fatalf("simulated re-acquisition failed: %v", err)
	}
	theirs := mustExist(t, fs, path)

	locker.Unlock(h)

	// their fresh lock survives our release
	current := mustExist(t, fs, path)
	if !current.Equal(theirs) {
		t.Errorf("marker timestamp changed from %v to %v across foreign Unlock",
			theirs, current)
	}
}

// --------------------------------------------------------------------------
// Sweep
// --------------------------------------------------------------------------

func TestSweepRemovesOnlyStaleMarkers(t *testing.T) {
	cfg := Config{MaxHold: 6 * time.Second}
	locker, fs, clk := newFakeLocker(t, cfg)

	old1 := filepath.Join(testStore, "aaaa0001")
	old2 := filepath.Join(testStore, "aaaa0002")
	for _, p := range []string{old1, old2} {
		if err := fs.MakeDir(p); err != nil {
			t.Fatalf("MakeDir(%s) failed: %v", p, err)
		}
	}

	clk.advance(10 * time.Second)

	fresh := filepath.Join(testStore, "bbbb0001")
	if err := fs.MakeDir(fresh); err != nil {
		t.Fatalf("MakeDir(%s) failed: %v", fresh, err)
	}

	locker.Sweep()

	mustNotExist(t, fs, old1)
	mustNotExist(t, fs, old2)
	mustExist(t, fs, fresh)
}

func TestSweepOnEmptyStore(t *testing.T) {
	locker, _, _ := newFakeLocker(t, Config{})
	locker.Sweep() // must not panic or error
}

// --------------------------------------------------------------------------
// Scoped cleanup
// --------------------------------------------------------------------------

func TestCloseReleasesAllHandles(t *testing.T) {
	locker, fs, _ := newFakeLocker(t, Config{})

	if _, ok := locker.Lock("one"); !ok {
		t.Fatal("Lock(one) failed")
	}
	if _, ok := locker.Lock("two"); !ok {
		t.Fatal("Lock(two) failed")
	}
	if _, ok := locker.Lock("three"); !ok {
		t.Fatal("Lock(three) failed")
	}

	locker.Close()

	for _, resource := range []string{"one", "two", "three"} {
		mustNotExist(t, fs, markerPath(resource))
	}

	locker.Close() // idempotent
}

func TestCloseSkipsUnownedMarkers(t *testing.T) {
	locker, fs, clk := newFakeLocker(t, Config{MaxHold: time.Hour})

	h, ok := locker.Lock("R")
	if !ok {
		t.Fatal("Lock failed")
	}
	_ = h

	// the marker is stolen and re-created before we shut down
	path := markerPath("R")
	if err := fs.RemoveDir(path); err != nil {
		t.Fatalf("simulated reclaim failed: %v", err)
	}
	clk.advance(time.Second)
	if err := fs.MakeDir(path); err != nil {
		t.Fatalf("simulated re-acquisition failed: %v", err)
	}

	locker.Close()
	mustExist(t, fs, path)
}

// --------------------------------------------------------------------------
// Defaults
// --------------------------------------------------------------------------

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()

	if cfg.StoreDir != DefaultStoreDir() {
		t.Errorf("StoreDir = %q, want %q", cfg.StoreDir, DefaultStoreDir())
	}
	if cfg.MaxPause != DefaultMaxPause {
		t.Errorf("MaxPause = %v, want %v", cfg.MaxPause, DefaultMaxPause)
	}
	if cfg.MaxAttempts != DefaultMaxAttempts {
		t.Errorf("MaxAttempts = %d, want %d", cfg.MaxAttempts, DefaultMaxAttempts)
	}
	if cfg.MaxHold != DefaultMaxHold {
		t.Errorf("MaxHold = %v, want %v", cfg.MaxHold, DefaultMaxHold)
	}

	// explicit values survive
	set := Config{StoreDir: "/x", MaxPause: time.Second, MaxAttempts: 3, MaxHold: time.Minute}
	if got := set.withDefaults(); got != set {
		t.Errorf("withDefaults changed explicit config: %+v", got)
	}
}

// --------------------------------------------------------------------------
// Real filesystem
// --------------------------------------------------------------------------

func TestNewOSRoundTrip(t *testing.T) {
	store := filepath.Join(t.TempDir(), "locks")
	locker, err := NewOS(Config{StoreDir: store})
	if err != nil {
		t.Fatalf("NewOS failed: %v", err)
	}
	defer locker.Close()

	h, ok := locker.Lock("accounts.db")
	if !ok {
		t.Fatal("Lock failed")
	}

	info, err := os.Stat(filepath.Join(store, Identify("accounts.db")))
	if err != nil {
		t.Fatalf("marker missing on disk: %v", err)
	}
	if !info.IsDir() {
		t.Error("marker is not a directory")
	}
	if perm := info.Mode().Perm(); perm != 0700 {
		t.Errorf("marker permissions = %o, want 0700", perm)
	}

	locker.Unlock(h)
	if _, err := os.Stat(filepath.Join(store, Identify("accounts.db"))); !os.IsNotExist(err) {
		t.Errorf("marker still on disk after Unlock (err = %v)", err)
	}
}

// Scenario: P1 holds the lock and releases after a while; a waiter polling
// with jittered backoff picks it up shortly after the release.
func TestWaiterAcquiresAfterRelease(t *testing.T) {
	if testing.Short() {
		t.Skip("timing test skipped in short mode")
	}

	store := filepath.Join(t.TempDir(), "locks")
	cfg := Config{StoreDir: store, MaxPause: 40 * time.Millisecond, MaxAttempts: 100, MaxHold: time.Minute}

	holder, err := NewOS(cfg)
	if err != nil {
		t.Fatalf("NewOS(holder) failed: %v", err)
	}
	defer holder.Close()
	waiter, err := NewOS(cfg)
	if err != nil {
		t.Fatalf("NewOS(waiter) failed: %v", err)
	}
	defer waiter.Close()

	h, ok := holder.Lock("R")
	if !ok {
		t.Fatal("holder failed to take a free lock")
	}

	const holdFor = 200 * time.Millisecond
	go func() {
		time.Sleep(holdFor)
		holder.Unlock(h)
	}()

	start := time.Now()
	h2, ok := waiter.Lock("R")
	elapsed := time.Since(start)

	if !ok {
		t.Fatal("waiter never acquired the lock")
	}
	waiter.Unlock(h2)

	if elapsed < holdFor-20*time.Millisecond {
		t.Errorf("waiter acquired after %v, before the holder released at %v", elapsed, holdFor)
	}
	// release plus at most a few backoff intervals
	if elapsed > holdFor+10*cfg.MaxPause {
		t.Errorf("waiter took %v, expected roughly %v plus one backoff", elapsed, holdFor)
	}
}

// Mutual exclusion hammer: concurrent lockers over one real store, each
// marking a critical section. Any overlap is a correctness failure.
func TestConcurrentLockersEnforceExclusivity(t *testing.T) {
	if testing.Short() {
		t.Skip("timing test skipped in short mode")
	}

	store := filepath.Join(t.TempDir(), "locks")
	cfg := Config{StoreDir: store, MaxPause: 10 * time.Millisecond, MaxAttempts: 300, MaxHold: time.Minute}

	const (
		lockers    = 6
		iterations = 10
	)

	var inCritical atomic.Int32
	var acquired atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < lockers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()

			locker, err := NewOS(cfg)
			if err != nil {
				t.Errorf("locker %d: NewOS failed: %v", id, err)
				return
			}
			defer locker.Close()

			for n := 0; n < iterations; n++ {
				h, ok := locker.Lock("shared")
				if !ok {
					// contention timeout is a normal outcome
					continue
				}
				if !inCritical.CompareAndSwap(0, 1) {
					t.Errorf("locker %d: entered the critical section while occupied", id)
				}
				time.Sleep(time.Millisecond)
				inCritical.Store(0)
				acquired.Add(1)
				locker.Unlock(h)
			}
		}(i)
	}
	wg.Wait()

	if acquired.Load() == 0 {
		t.Error("no locker ever acquired the lock")
	}
}
