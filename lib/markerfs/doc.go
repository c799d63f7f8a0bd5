// Package markerfs defines the filesystem capability used by the reslock
// package to coordinate across processes.
//
// A lock store is a single root directory; a lock marker is a subdirectory
// whose mere existence means "this resource is held". Markers carry no
// content. Their only meaningful attributes are existence and creation time.
//
// The interface is deliberately tiny: atomic create-if-absent, removal,
// creation-time lookup, enumeration, and root creation. Directory creation
// is the synchronization primitive: the operating system dispatches a single
// atomic call that both detects absence and claims presence, so exactly one
// of any number of racing creators wins. This property is what makes the
// locking protocol in the reslock package correct, and it is why MakeDir is
// specified as atomic rather than as a check followed by a create.
//
// Two implementations are provided:
//
//   - osfs: backed by the real filesystem via os.Mkdir. This is the
//     implementation cooperating processes share in production.
//   - memfs: an in-memory map with an injectable clock. It exists for tests
//     that need to manufacture marker ages without waiting in real time.
//
// All implementations must pass the conformance suite in
// lib/markerfs/testing.
package markerfs
