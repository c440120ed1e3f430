// Copyright 2026 the objectiv-analytics authors.
// Licensed under Apache 2.0, see LICENCE file for details.

package bach

import "errors"

// The sentinel errors below classify the failures this package produces.
// They are always wrapped with operation-specific detail; match them with
// errors.Is.
var (
	// ErrTypeMismatch indicates an operation between incompatible dtypes, an
	// unknown dtype name, or a Go value no dtype can represent.
	ErrTypeMismatch = errors.New("type mismatch")

	// ErrIncompatibleContext indicates operands from different query
	// contexts (base node or grouping) that cannot be correlated.
	ErrIncompatibleContext = errors.New("incompatible query context")

	// ErrIllegalReaggregation indicates an attempt to aggregate a series
	// that already contains an aggregate or window function.
	ErrIllegalReaggregation = errors.New("illegal re-aggregation")

	// ErrConfigurationConflict indicates two settings on the same operation
	// that contradict each other.
	ErrConfigurationConflict = errors.New("conflicting configuration")

	// ErrNotImplemented indicates an operation this dtype or partition type
	// does not support.
	ErrNotImplemented = errors.New("not implemented")
)
