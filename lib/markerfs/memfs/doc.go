// Package memfs implements markerfs.IMarkerFS as an in-memory, mutex-guarded
// map. It exists for tests: the clock that stamps marker creation times is
// injectable, so staleness scenarios can be constructed instantly instead of
// by sleeping through a real hold duration.
//
// MakeDir is atomic with respect to other goroutines on the same instance,
// matching the cross-process guarantee the osfs implementation gets from the
// kernel. memfs obviously provides no cross-process coordination.
package memfs
