package ppr

import (
	"fmt"

	"github.com/montiglio/graphbench/internal/device"
)

// Options configures a Solver.
type Options struct {
	Alpha         float64 // damping factor in (0, 1)
	Threshold     float64 // convergence threshold on the Euclidean distance
	MaxIterations int     // iteration cap per trial
	// HostWorkers splits the host SpMV over private accumulators that are
	// folded in a fixed order. 1 runs it inline.
	HostWorkers int
	Device      device.Config
	// OnIteration, if set, is called after every completed iteration.
	OnIteration func(Iteration)
}

// DefaultOptions returns alpha 0.85, threshold 1e-6, 50 iterations and the
// default launch geometry.
func DefaultOptions() Options {
	return Options{
		Alpha:         0.85,
		Threshold:     1e-6,
		MaxIterations: 50,
		HostWorkers:   1,
		Device:        device.Config{Geometry: device.DefaultGeometry()},
	}
}

func (o Options) validate() error {
	switch {
	case !(o.Alpha > 0 && o.Alpha < 1):
		return fmt.Errorf("%w: alpha %v not in (0, 1)", ErrInvalidOptions, o.Alpha)
	case !(o.Threshold > 0):
		return fmt.Errorf("%w: threshold %v must be positive", ErrInvalidOptions, o.Threshold)
	case o.MaxIterations < 1:
		return fmt.Errorf("%w: max iterations %d < 1", ErrInvalidOptions, o.MaxIterations)
	case o.HostWorkers < 1:
		return fmt.Errorf("%w: host workers %d < 1", ErrInvalidOptions, o.HostWorkers)
	}
	return nil
}

// Status is the solver state.
type Status int

const (
	StatusInit          Status = iota // reset, no iteration run yet
	StatusIterating                   // at least one iteration run
	StatusConverged                   // distance fell to the threshold
	StatusMaxIterations               // cap reached without converging
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusInit:
		return "init"
	case StatusIterating:
		return "iterating"
	case StatusConverged:
		return "converged"
	case StatusMaxIterations:
		return "max_iterations_reached"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// Iteration describes one completed iteration.
type Iteration struct {
	Number       int
	Distance     float64 // Euclidean distance between consecutive vectors
	DanglingMass float64 // rank held by dangling vertices before the update
}

// Result is the outcome of a trial.
type Result struct {
	Source     int
	Status     Status
	Iterations int
	Distance   float64
	Rank       []float64
}

// Converged reports whether the trial met the threshold.
func (r Result) Converged() bool {
	return r.Status == StatusConverged
}

// Err returns ErrNonConvergence when the trial hit the iteration cap.
func (r Result) Err() error {
	if r.Status == StatusMaxIterations {
		return ErrNonConvergence
	}
	return nil
}
