// Package osfs implements markerfs.IMarkerFS on the real filesystem.
//
// Atomicity of MakeDir comes directly from mkdir(2) (CreateDirectoryW on
// Windows): the call fails when the target exists, and the kernel serializes
// concurrent creators so exactly one wins. All cooperating processes must
// point their lock store at the same mount; the guarantee does not extend
// across machines unless the shared filesystem itself provides it.
package osfs
