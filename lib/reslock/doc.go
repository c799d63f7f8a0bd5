// Package reslock implements an advisory, cross-process mutual-exclusion
// primitive for arbitrary named resources (files, tables, or any identifier
// the cooperating processes agree on), using the filesystem as the
// coordination medium.
//
// Core Functionality:
//   - Lock acquisition with a bounded, jitter-backed retry loop
//   - Automatic reclamation of abandoned locks after a maximum hold duration
//   - Release operations that verify ownership before removing anything
//   - Scoped cleanup: Close releases every lock an instance still holds
//
// Implementation Approach:
//
//	A lock is a marker directory under a shared lock store root, named by a
//	short digest of the resource name. Directory creation is the atomic
//	test-and-set: creating a directory is a single filesystem call that both
//	detects absence and claims presence, so exactly one of any number of
//	racing processes wins each round. A separate check-then-create sequence
//	would reintroduce exactly the race this package exists to eliminate and
//	is therefore never used.
//
//	- Acquisition: the engine attempts the atomic create; on failure it
//	  sleeps a duration drawn uniformly from [MaxPause/10, MaxPause] and
//	  retries, until the total budget of MaxPause × MaxAttempts is spent.
//	  The jitter is mandatory: fixed intervals would synchronize competing
//	  waiters into retry storms.
//
//	- Staleness: a marker whose age has reached MaxHold is considered
//	  abandoned (its holder presumably crashed) and is removed by whoever
//	  notices, both inline on the contended path and via a store-wide sweep
//	  performed once per acquisition, on the first failed attempt.
//
//	- Safe Release: a successful acquisition records the marker's creation
//	  timestamp in the returned Handle. Release removes the marker only if
//	  it still exists with that exact timestamp, which detects the case
//	  where the lock was reclaimed as stale and re-created by a third party
//	  in the meantime.
//
// Ordering and Fairness:
//
//	None. Waiters race on every retry; there is no queue and release does
//	not wake anybody. The only guarantee is at most one holder at a time
//	per resource identifier.
//
// Error Philosophy:
//
//	Filesystem races (losing a create, a marker vanishing before removal)
//	are expected, frequent, and harmless, so they are silently absorbed
//	rather than surfaced. Contention timeout is reported as ok == false,
//	never as an error. The only operation that can fail observably is
//	construction, when the lock store root cannot be created.
//
// Known Limitation:
//
//	Resource names are mapped to marker names through a short digest, so
//	distinct names can collide and then block each other. Collisions cause
//	mutual exclusion across unrelated resources, never corruption. The
//	digest (and with it the on-disk layout) is kept for compatibility with
//	existing lock stores.
//
// Usage Example:
//
//	locker, err := reslock.NewOS(reslock.Config{})
//	if err != nil {
//	    // lock store root could not be created
//	}
//	defer locker.Close()
//
//	if h, ok := locker.Lock("accounts.db"); ok {
//	    // resource is ours until Unlock (or until we hold it past MaxHold)
//	    defer locker.Unlock(h)
//	    // ...
//	} else {
//	    // could not acquire within budget; caller decides retry/abort
//	}
//
// Security Considerations:
//
//	The lock is advisory only. Any process with access to the lock store
//	can remove markers; the protocol protects cooperating processes from
//	each other, not from adversaries.
package reslock
