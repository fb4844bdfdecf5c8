package bench

import (
	"errors"

	"github.com/montiglio/graphbench/internal/ppr"
	"github.com/montiglio/graphbench/internal/reference"
)

// ErrInvalidOptions indicates run options outside their valid range.
var ErrInvalidOptions = errors.New("bench: invalid options")

// Options configures a benchmark run.
type Options struct {
	Solver    ppr.Options
	Reference reference.Options
	TopK      int
	MinScore  float64 // accuracy below this is recorded as a mismatch
	Trials    int
	Seed      uint64
	// Debug reports every iteration with the vector's mass and prints a
	// rank-by-rank comparison for mismatched trials.
	Debug bool
}

// DefaultOptions returns five trials scored on the top 10 with bound 0.9.
func DefaultOptions() Options {
	return Options{
		Solver:    ppr.DefaultOptions(),
		Reference: reference.DefaultOptions(),
		TopK:      10,
		MinScore:  0.9,
		Trials:    5,
		Seed:      1,
	}
}

// compareTolerance is the value tolerance used by debug rank comparisons.
const compareTolerance = 1e-6
