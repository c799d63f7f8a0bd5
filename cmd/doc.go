// Package cmd implements the command-line interface for the reslock
// advisory locking tool. It provides a hierarchical command structure for
// inspecting a lock store and for running commands under a lock.
//
// The package is organized into several subpackages:
//
//   - lock: Commands operating on a lock store (run, ls, sweep, perf)
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// See reslock -help for a list of all commands.
package cmd
