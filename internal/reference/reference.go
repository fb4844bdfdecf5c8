// Package reference computes personalized PageRank on the host only. It is
// the golden vector the accelerator result is scored against, so it shares
// no buffers or kernels with package ppr.
package reference

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/floats"

	"github.com/montiglio/graphbench/internal/graph"
)

var (
	// ErrInvalidArgument indicates an out-of-range alpha, source or option.
	ErrInvalidArgument = errors.New("reference: invalid argument")

	// ErrNonConvergence indicates the reference hit its iteration cap. Scores
	// computed against such a vector are still reported.
	ErrNonConvergence = errors.New("reference: max iterations reached without convergence")
)

// Options bounds the reference iteration.
type Options struct {
	Tolerance     float64 // stop when the Euclidean step is at most this
	MaxIterations int
}

// DefaultOptions returns tolerance 1e-6 and at most 100 iterations.
func DefaultOptions() Options {
	return Options{Tolerance: 1e-6, MaxIterations: 100}
}

// Result is a reference rank vector.
type Result struct {
	Rank       []float64
	Iterations int
	Delta      float64 // last Euclidean step
	Converged  bool
}

// Solve runs the personalized PageRank recurrence from the uniform vector
// until the step size is within tolerance or the iteration cap is reached.
// An unconverged reference is returned without error; callers check
// Converged.
func Solve(g *graph.Graph, alpha float64, source int, opts Options) (Result, error) {
	n := g.NumVertices
	switch {
	case !(alpha > 0 && alpha < 1):
		return Result{}, fmt.Errorf("%w: alpha %v", ErrInvalidArgument, alpha)
	case source < 0 || source >= n:
		return Result{}, fmt.Errorf("%w: source %d not in [0, %d)", ErrInvalidArgument, source, n)
	case !(opts.Tolerance > 0) || opts.MaxIterations < 1:
		return Result{}, fmt.Errorf("%w: tolerance %v, max iterations %d", ErrInvalidArgument, opts.Tolerance, opts.MaxIterations)
	}

	in := pullIndex(g)
	mask := g.DanglingMask()
	pr := make([]float64, n)
	next := make([]float64, n)
	floats.AddConst(1/float64(n), pr)

	var res Result
	for res.Iterations < opts.MaxIterations {
		base := alpha * floats.Dot(mask, pr) / float64(n)
		for v := range n {
			var acc float64
			for _, e := range in.edges[in.start[v]:in.start[v+1]] {
				acc += e.Weight * pr[e.Col]
			}
			next[v] = alpha*acc + base
		}
		next[source] += 1 - alpha

		res.Iterations++
		res.Delta = floats.Distance(pr, next, 2)
		pr, next = next, pr
		if res.Delta <= opts.Tolerance {
			res.Converged = true
			break
		}
	}
	res.Rank = pr
	return res, nil
}

// incoming groups edges by destination so each vertex pulls its rank.
type incoming struct {
	start []int
	edges []graph.Edge
}

func pullIndex(g *graph.Graph) incoming {
	n := g.NumVertices
	start := make([]int, n+1)
	for _, e := range g.Edges {
		start[e.Row+1]++
	}
	for v := range n {
		start[v+1] += start[v]
	}
	edges := make([]graph.Edge, len(g.Edges))
	fill := make([]int, n)
	copy(fill, start[:n])
	for _, e := range g.Edges {
		edges[fill[e.Row]] = e
		fill[e.Row]++
	}
	return incoming{start: start, edges: edges}
}

// Mass returns the total rank, which is 1 for a correct vector.
func Mass(rank []float64) float64 {
	return floats.Sum(rank)
}
