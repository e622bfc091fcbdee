package xmap

// errors.go holds the package's error values. Caller errors (§7 of the
// spec this package implements) are reported synchronously as a wrapped
// ErrInvalidArgument; protocol invariant violations are bugs, not
// recoverable conditions, and are reported by panicking instead, matching
// the teacher's own treatment of internal-invariant failures in
// genring.New ("genring: capBytes must be positive").
//
// © 2025 xmap authors. MIT License.

import "errors"

// ErrInvalidArgument is returned, wrapped with details, whenever a caller
// passes a non-positive key or an out-of-range value to Get, Put, or
// Remove. No state is mutated when this error is returned.
var ErrInvalidArgument = errors.New("xmap: invalid argument")

// errNeedsRehash is the internal "probe budget exhausted" sentinel from
// §4.1/§4.2 of the spec. It never escapes the package: Map.Put and
// Map.Remove catch it, rehash the observed core, and retry.
var errNeedsRehash = errors.New("xmap: needs rehash")
