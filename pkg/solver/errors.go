package solver

import "errors"

// ErrInnerSolverFailed is returned when the inner solver reports a
// non-success summary. Per spec.md §4.4's failure policy, the outer
// round terminates and no partial primals are published — the driver
// never commits its working buffer copies back into the registry when
// this error is returned.
var ErrInnerSolverFailed = errors.New("solver: inner solve did not succeed")
