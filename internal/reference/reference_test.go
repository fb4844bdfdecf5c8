package reference

import (
	"errors"
	"math"
	"slices"
	"testing"

	"github.com/montiglio/graphbench/internal/graph"
)

func mustGraph(t *testing.T, n int, arcs []graph.Arc) *graph.Graph {
	t.Helper()
	g, err := graph.FromArcs(n, arcs, graph.DefaultLoadOptions())
	if err != nil {
		t.Fatal(err)
	}
	return g
}

func TestSolve_Cycle(t *testing.T) {
	t.Parallel()

	g := mustGraph(t, 4, []graph.Arc{{From: 0, To: 1, Weight: 1}, {From: 1, To: 2, Weight: 1}, {From: 2, To: 3, Weight: 1}, {From: 3, To: 0, Weight: 1}})
	res, err := Solve(g, 0.85, 0, Options{Tolerance: 1e-12, MaxIterations: 500})
	if err != nil {
		t.Fatal(err)
	}
	if !res.Converged {
		t.Fatalf("not converged after %d iterations, delta %v", res.Iterations, res.Delta)
	}

	// Closed form: pr[k] = (1-a)·a^k / (1-a^4).
	a := 0.85
	for k := range 4 {
		want := (1 - a) * math.Pow(a, float64(k)) / (1 - math.Pow(a, 4))
		if math.Abs(res.Rank[k]-want) > 1e-10 {
			t.Errorf("rank[%d] = %v, want %v", k, res.Rank[k], want)
		}
	}
	if m := Mass(res.Rank); math.Abs(m-1) > 1e-12 {
		t.Errorf("mass = %v", m)
	}
}

func TestSolve_DanglingStar(t *testing.T) {
	t.Parallel()

	// Every leaf points at the hub; the hub is dangling.
	g := mustGraph(t, 5, []graph.Arc{{From: 1, To: 0, Weight: 1}, {From: 2, To: 0, Weight: 1}, {From: 3, To: 0, Weight: 1}, {From: 4, To: 0, Weight: 1}})
	res, err := Solve(g, 0.85, 2, Options{Tolerance: 1e-12, MaxIterations: 500})
	if err != nil {
		t.Fatal(err)
	}
	if m := Mass(res.Rank); math.Abs(m-1) > 1e-12 {
		t.Errorf("mass = %v", m)
	}
	if res.Rank[0] <= res.Rank[2] {
		t.Errorf("hub %v should outrank source %v", res.Rank[0], res.Rank[2])
	}
	// Leaves other than the source only receive dangling mass.
	if res.Rank[1] != res.Rank[3] || res.Rank[3] != res.Rank[4] {
		t.Errorf("symmetric leaves differ: %v", res.Rank)
	}
}

func TestSolve_IterationCap(t *testing.T) {
	t.Parallel()

	g := mustGraph(t, 3, []graph.Arc{{From: 0, To: 1, Weight: 1}, {From: 1, To: 2, Weight: 1}, {From: 2, To: 0, Weight: 1}})
	res, err := Solve(g, 0.85, 1, Options{Tolerance: 1e-15, MaxIterations: 3})
	if err != nil {
		t.Fatal(err)
	}
	if res.Converged || res.Iterations != 3 {
		t.Errorf("converged %v after %d iterations", res.Converged, res.Iterations)
	}
	if m := Mass(res.Rank); math.Abs(m-1) > 1e-12 {
		t.Errorf("mass = %v", m)
	}
}

func TestSolve_InvalidArguments(t *testing.T) {
	t.Parallel()

	g := mustGraph(t, 2, []graph.Arc{{From: 0, To: 1, Weight: 1}})
	tests := []struct {
		name   string
		alpha  float64
		source int
		opts   Options
	}{
		{"alpha", 1, 0, DefaultOptions()},
		{"negative source", 0.85, -1, DefaultOptions()},
		{"source past end", 0.85, 2, DefaultOptions()},
		{"tolerance", 0.85, 0, Options{MaxIterations: 1}},
		{"iterations", 0.85, 0, Options{Tolerance: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := Solve(g, tt.alpha, tt.source, tt.opts); !errors.Is(err, ErrInvalidArgument) {
				t.Errorf("err = %v, want ErrInvalidArgument", err)
			}
		})
	}
}

func TestPullIndex(t *testing.T) {
	t.Parallel()

	g := mustGraph(t, 3, []graph.Arc{{From: 0, To: 2, Weight: 1}, {From: 1, To: 2, Weight: 1}, {From: 2, To: 0, Weight: 1}})
	in := pullIndex(g)
	if got, want := in.start, []int{0, 1, 1, 3}; !slices.Equal(got, want) {
		t.Fatalf("start = %v, want %v", got, want)
	}
	for v := range 3 {
		for _, e := range in.edges[in.start[v]:in.start[v+1]] {
			if int(e.Row) != v {
				t.Errorf("edge %+v grouped under %d", e, v)
			}
		}
	}
}
