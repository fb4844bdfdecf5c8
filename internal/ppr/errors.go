package ppr

import "errors"

// Sentinel errors for the solver.
var (
	// ErrNonConvergence indicates the iteration cap was reached before the
	// distance fell below the threshold. The rank vector is still usable but
	// unvalidated.
	ErrNonConvergence = errors.New("ppr: max iterations reached without convergence")
	// ErrNotReset indicates Run or Step was called before Reset, or Run was
	// called again on a finished trial.
	ErrNotReset = errors.New("ppr: solver must be reset before iterating")
	// ErrInvalidOptions indicates out-of-range solver options.
	ErrInvalidOptions = errors.New("ppr: invalid options")
)
