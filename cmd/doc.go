// Package cmd implements the command-line interface of pxKV. It provides a
// hierarchical command structure to run store commands and the composite
// session operations against the configured backend.
//
// The package is organized into several subpackages:
//
//   - kv: Commands for key-value operations (get, set, search, delsearch, multi, perf ...)
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// See pxkv -help for a list of all commands.
package cmd
