// Package bench drives benchmark runs: it times repeated PageRank trials on
// the device solver and scores each one against the host reference.
package bench

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"github.com/montiglio/graphbench/internal/device"
	"github.com/montiglio/graphbench/internal/graph"
	"github.com/montiglio/graphbench/internal/ppr"
	"github.com/montiglio/graphbench/internal/reference"
	"github.com/montiglio/graphbench/internal/score"
	"github.com/montiglio/graphbench/internal/telemetry"
)

// UI receives progress from a run. Implementations must tolerate being
// called from the goroutine that called Run only.
type UI interface {
	RunStart(runID string, stats graph.Stats, trials int)
	TrialStart(trial, source int)
	Iteration(trial int, it ppr.Iteration, mass float64)
	TrialDone(t Trial)
	TrialFailed(trial int, err error)
	Mismatch(trial int, rows []score.RankComparison)
}

// Runner runs trials against a loaded graph.
type Runner struct {
	Graph     *graph.Graph
	Options   Options
	UI        UI                 // Optional; nil discards progress.
	Telemetry *telemetry.Emitter // Optional; nil disables the event log.
	RunID     string             // Optional; a UUID is generated when empty.
}

// Run executes Options.Trials trials. A device failure aborts only the
// trial it happened in; allocation failures and invalid options abort the
// run. The context is checked between trials. The returned report is
// non-nil whenever the solver was created, even if the run was cancelled.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	opts := r.Options
	if opts.Trials < 1 {
		return nil, fmt.Errorf("%w: trials %d < 1", ErrInvalidOptions, opts.Trials)
	}
	if opts.TopK < 1 {
		return nil, fmt.Errorf("%w: top k %d < 1", ErrInvalidOptions, opts.TopK)
	}

	rep := &Report{
		RunID:     r.RunID,
		Graph:     r.Graph.Source,
		Stats:     r.Graph.Stats(),
		StartedAt: time.Now().UTC(),
	}
	if rep.RunID == "" {
		rep.RunID = uuid.NewString()
	}

	var solver *ppr.Solver
	trial := 0
	solverOpts := opts.Solver
	solverOpts.OnIteration = func(it ppr.Iteration) {
		r.iteration(rep.RunID, trial, solver, it)
	}
	solver, err := ppr.NewSolver(r.Graph, solverOpts)
	if err != nil {
		return nil, fmt.Errorf("bench: %w", err)
	}
	defer solver.Close()

	r.emit(telemetry.Event{Kind: telemetry.KindRunStart, RunID: rep.RunID, Data: map[string]any{
		"graph":    rep.Graph,
		"vertices": rep.Stats.Vertices,
		"edges":    rep.Stats.Edges,
		"alpha":    opts.Solver.Alpha,
		"trials":   opts.Trials,
	}})
	if r.UI != nil {
		r.UI.RunStart(rep.RunID, rep.Stats, opts.Trials)
	}

	rng := rand.New(rand.NewPCG(opts.Seed, opts.Seed))
	var runErr error
	for trial = 1; trial <= opts.Trials; trial++ {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		t, err := r.trial(rep, solver, rng, trial)
		if err != nil {
			runErr = err
			break
		}
		rep.Trials = append(rep.Trials, t)
	}

	rep.Elapsed = time.Since(rep.StartedAt)
	rep.Device = solver.Device().Stats()
	sum := rep.Summary()
	r.emit(telemetry.Event{Kind: telemetry.KindRunDone, RunID: rep.RunID, Data: map[string]any{
		"completed":  sum.Completed,
		"failed":     sum.Failed,
		"mean_score": sum.MeanScore,
		"mean_ms":    sum.MeanElapsed.Milliseconds(),
	}})
	return rep, runErr
}

// trial runs one trial. Device failures are recorded on the returned Trial;
// any other error aborts the run.
func (r *Runner) trial(rep *Report, solver *ppr.Solver, rng *rand.Rand, n int) (Trial, error) {
	opts := r.Options
	t := Trial{Number: n}

	if err := solver.Reset(rng); err != nil {
		return r.failed(rep.RunID, t, err)
	}
	t.Source = solver.Source()
	r.emit(telemetry.Event{Kind: telemetry.KindTrialStart, RunID: rep.RunID, Trial: n, Data: map[string]int{"source": t.Source}})
	if r.UI != nil {
		r.UI.TrialStart(n, t.Source)
	}

	start := time.Now()
	res, err := solver.Run()
	t.Elapsed = time.Since(start)
	if err != nil {
		return r.failed(rep.RunID, t, err)
	}
	t.Status = res.Status
	t.Iterations = res.Iterations
	t.Distance = res.Distance
	rep.Rank = res.Rank

	golden, err := reference.Solve(r.Graph, opts.Solver.Alpha, t.Source, opts.Reference)
	if err != nil {
		return t, fmt.Errorf("bench: trial %d: %w", n, err)
	}
	t.ReferenceConverged = golden.Converged
	t.ReferenceIterations = golden.Iterations
	t.Score, err = score.Score(res.Rank, golden.Rank, opts.TopK)
	if err != nil {
		return t, fmt.Errorf("bench: trial %d: %w", n, err)
	}
	t.Mismatch = score.Check(t.Score, opts.MinScore)
	if t.Mismatch != nil && opts.Debug && r.UI != nil {
		rows, err := score.Compare(res.Rank, golden.Rank, opts.TopK, compareTolerance)
		if err == nil {
			r.UI.Mismatch(n, rows)
		}
	}

	r.emit(telemetry.Event{Kind: telemetry.KindTrialDone, RunID: rep.RunID, Trial: n, Data: map[string]any{
		"source":               t.Source,
		"status":               t.Status.String(),
		"iterations":           t.Iterations,
		"distance":             t.Distance,
		"elapsed_ms":           float64(t.Elapsed.Microseconds()) / 1000,
		"score":                t.Score,
		"mismatch":             t.Mismatch != nil,
		"reference_converged":  t.ReferenceConverged,
		"reference_iterations": t.ReferenceIterations,
	}})
	if r.UI != nil {
		r.UI.TrialDone(t)
	}
	return t, nil
}

// failed records a device failure on t. Errors other than device failures
// are returned to abort the run.
func (r *Runner) failed(runID string, t Trial, err error) (Trial, error) {
	var accErr *device.AcceleratorError
	if !errors.As(err, &accErr) {
		return t, fmt.Errorf("bench: trial %d: %w", t.Number, err)
	}
	t.Err = err
	r.emit(telemetry.Event{Kind: telemetry.KindTrialFailed, RunID: runID, Trial: t.Number, Data: map[string]string{
		"op":     string(accErr.Op),
		"target": accErr.Target,
		"error":  err.Error(),
	}})
	if r.UI != nil {
		r.UI.TrialFailed(t.Number, err)
	}
	return t, nil
}

// iteration forwards per-iteration diagnostics in debug mode.
func (r *Runner) iteration(runID string, trial int, solver *ppr.Solver, it ppr.Iteration) {
	if !r.Options.Debug {
		return
	}
	mass := -1.0
	if rank, err := solver.Rank(); err == nil {
		mass = reference.Mass(rank)
	}
	r.emit(telemetry.Event{Kind: telemetry.KindIteration, RunID: runID, Trial: trial, Data: map[string]any{
		"n":        it.Number,
		"distance": it.Distance,
		"dangling": it.DanglingMass,
		"mass":     mass,
	}})
	if r.UI != nil {
		r.UI.Iteration(trial, it, mass)
	}
}

// emit drops telemetry write errors; the event log never fails a run.
func (r *Runner) emit(evt telemetry.Event) {
	_ = r.Telemetry.Emit(evt)
}
