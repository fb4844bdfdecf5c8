package bench

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/montiglio/graphbench/internal/device"
	"github.com/montiglio/graphbench/internal/graph"
	"github.com/montiglio/graphbench/internal/ppr"
	"github.com/montiglio/graphbench/internal/reference"
)

// PreviewLen is the number of rank values in the long-form output.
const PreviewLen = 20

// Trial is the outcome of one trial.
type Trial struct {
	Number     int
	Source     int
	Status     ppr.Status
	Iterations int
	Distance   float64
	Elapsed    time.Duration
	Score      float64
	// ReferenceConverged is false when the golden vector was cut off by the
	// reference iteration cap.
	ReferenceConverged  bool
	ReferenceIterations int
	// Err is set when the trial was aborted by a device failure. The other
	// result fields are then zero.
	Err error
	// Mismatch is a *score.MismatchError when Score fell below the bound.
	Mismatch error
}

// Failed reports whether the trial was aborted.
func (t Trial) Failed() bool {
	return t.Err != nil
}

// NonConvergence returns ppr.ErrNonConvergence if the trial hit the
// iteration cap.
func (t Trial) NonConvergence() error {
	if t.Status == ppr.StatusMaxIterations {
		return ppr.ErrNonConvergence
	}
	return nil
}

// ReferenceErr returns reference.ErrNonConvergence if a completed trial
// was scored against an unconverged reference.
func (t Trial) ReferenceErr() error {
	if !t.Failed() && !t.ReferenceConverged {
		return reference.ErrNonConvergence
	}
	return nil
}

// Report is the outcome of a run.
type Report struct {
	RunID     string
	Graph     string
	Stats     graph.Stats
	StartedAt time.Time
	Elapsed   time.Duration
	Trials    []Trial
	Device    device.Stats
	// Rank is the vector of the last completed trial.
	Rank []float64
}

// Summary aggregates the completed trials of a run.
type Summary struct {
	Completed  int
	Failed     int
	Converged  int
	Mismatched int
	// Unverified counts trials scored against an unconverged reference.
	Unverified  int
	MeanElapsed time.Duration
	MinElapsed  time.Duration
	MaxElapsed  time.Duration
	MeanScore   float64
	MinScore    float64
}

// Summary computes aggregate timing and accuracy. Failed trials are counted
// but excluded from the averages.
func (r *Report) Summary() Summary {
	var s Summary
	var total time.Duration
	for _, t := range r.Trials {
		if t.Failed() {
			s.Failed++
			continue
		}
		if s.Completed == 0 || t.Elapsed < s.MinElapsed {
			s.MinElapsed = t.Elapsed
		}
		if s.Completed == 0 || t.Score < s.MinScore {
			s.MinScore = t.Score
		}
		s.Completed++
		s.MaxElapsed = max(s.MaxElapsed, t.Elapsed)
		total += t.Elapsed
		s.MeanScore += t.Score
		if t.Status == ppr.StatusConverged {
			s.Converged++
		}
		if t.Mismatch != nil {
			s.Mismatched++
		}
		if !t.ReferenceConverged {
			s.Unverified++
		}
	}
	if s.Completed > 0 {
		s.MeanElapsed = total / time.Duration(s.Completed)
		s.MeanScore /= float64(s.Completed)
	}
	return s
}

// Err joins every trial failure, mismatch and non-convergence of either
// solver. It is nil when every trial converged above the bound against a
// converged reference.
func (r *Report) Err() error {
	var errs []error
	for _, t := range r.Trials {
		if t.Err != nil {
			errs = append(errs, fmt.Errorf("trial %d: %w", t.Number, t.Err))
			continue
		}
		for _, err := range []error{t.Mismatch, t.NonConvergence(), t.ReferenceErr()} {
			if err != nil {
				errs = append(errs, fmt.Errorf("trial %d: %w", t.Number, err))
			}
		}
	}
	return errors.Join(errs...)
}

// Short returns the mean accuracy score formatted with six decimals.
func (r *Report) Short() string {
	return fmt.Sprintf("%.6f", r.Summary().MeanScore)
}

// Long returns the first PreviewLen values of the last rank vector.
func (r *Report) Long() string {
	return Preview(r.Rank, PreviewLen)
}

// Preview formats the first min(n, len(rank)) values comma-delimited.
func Preview(rank []float64, n int) string {
	n = min(max(n, 0), len(rank))
	parts := make([]string, n)
	for i, v := range rank[:n] {
		parts[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return strings.Join(parts, ",")
}
