package reslock

import (
	"fmt"
	"hash/fnv"
	"math/rand"
	"time"
)

// Identify derives the marker name for a resource name: the FNV-1a 32-bit
// digest of the name, rendered as 8 lowercase hex characters. It is a pure
// function, so cooperating processes that agree on the resource name agree
// on the marker path.
//
// The digest is short by design and can collide; distinct resource names
// that digest to the same identifier share one lock and block each other.
func Identify(resource string) string {
	h := fnv.New32a()
	// fnv.Write never returns an error
	_, _ = h.Write([]byte(resource))
	return fmt.Sprintf("%08x", h.Sum32())
}

// nextPause draws one randomized backoff interval, uniform over
// [maxPause/10, maxPause]. Randomization keeps competing waiters from
// retrying in lockstep after a release.
func nextPause(maxPause time.Duration) time.Duration {
	min := maxPause / 10
	return min + time.Duration(rand.Int63n(int64(maxPause-min)+1))
}
