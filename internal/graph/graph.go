// Package graph loads directed graphs into the transposed, column-stochastic
// edge list consumed by the PageRank solvers.
package graph

import (
	"cmp"
	"fmt"
	"math"
	"slices"
)

// Edge is a stored edge in transposed form: an edge u→v has Row v and Col u.
// Weight is the transition probability from Col to Row.
type Edge struct {
	Row    int32
	Col    int32
	Weight float64
}

// Src returns the source vertex of the original edge.
func (e Edge) Src() int { return int(e.Col) }

// Dst returns the destination vertex of the original edge.
func (e Edge) Dst() int { return int(e.Row) }

// Arc is an untransposed, unnormalized edge used to build a graph in memory.
type Arc struct {
	From   int
	To     int
	Weight float64
}

// LoadOptions controls how entries are read and stored.
type LoadOptions struct {
	// Transpose reads entries as (source, destination) and stores them
	// transposed. When false the entries are already (destination, source).
	Transpose bool
	// DiscardWeights replaces every weight with 1 before normalization.
	DiscardWeights bool
	// IndexBase is the index of the first vertex in the input, 0 or 1.
	IndexBase int
	// Sort orders the stored edges by (Row, Col).
	Sort bool
}

// DefaultLoadOptions returns options for 1-based Matrix Market adjacency
// files with unit weights.
func DefaultLoadOptions() LoadOptions {
	return LoadOptions{
		Transpose:      true,
		DiscardWeights: true,
		IndexBase:      1,
	}
}

// Graph is an immutable directed graph. Edges are stored transposed and their
// weights are normalized so the outgoing weights of every non-dangling vertex
// sum to 1.
type Graph struct {
	Source      string
	NumVertices int
	Edges       []Edge
	// Dangling[v] is true iff v has no outgoing edge other than self-loops.
	Dangling []bool
	// OutDegree counts the stored outgoing edges of each vertex.
	OutDegree []int
	// SelfLoops counts self-loop entries seen in the input, including the
	// ones dropped from dangling vertices.
	SelfLoops int
}

// Stats summarizes a graph.
type Stats struct {
	Vertices  int
	Edges     int
	Dangling  int
	SelfLoops int
}

// Stats returns vertex, edge, dangling and self-loop counts.
func (g *Graph) Stats() Stats {
	s := Stats{Vertices: g.NumVertices, Edges: len(g.Edges), SelfLoops: g.SelfLoops}
	for _, d := range g.Dangling {
		if d {
			s.Dangling++
		}
	}
	return s
}

// DanglingMask returns the dangling set as 0/1 values for vector kernels.
func (g *Graph) DanglingMask() []float64 {
	mask := make([]float64, g.NumVertices)
	for v, d := range g.Dangling {
		if d {
			mask[v] = 1
		}
	}
	return mask
}

// FromArcs builds a graph with n vertices from 0-based arcs. IndexBase and
// Transpose in opts are ignored; arcs are always (from, to).
func FromArcs(n int, arcs []Arc, opts LoadOptions) (*Graph, error) {
	const source = "arcs"
	if n <= 0 {
		return nil, formatErr(source, 0, ErrEmpty)
	}
	if n > math.MaxInt32 {
		return nil, formatErr(source, 0, fmt.Errorf("%d vertices exceeds %d: %w", n, math.MaxInt32, ErrUnsupported))
	}
	for i, a := range arcs {
		if a.From < 0 || a.From >= n || a.To < 0 || a.To >= n {
			return nil, formatErr(source, 0, fmt.Errorf("arc %d (%d→%d): %w", i, a.From, a.To, ErrIndexOutOfRange))
		}
	}
	return build(source, n, slices.Clone(arcs), opts)
}

// build normalizes arcs into a Graph. It runs two passes: the first counts
// outgoing edges and weight per source once the whole list is known, the
// second divides.
func build(source string, n int, arcs []Arc, opts LoadOptions) (*Graph, error) {
	outWeight := make([]float64, n)
	nonSelf := make([]int, n)
	selfLoops := 0
	for i := range arcs {
		if opts.DiscardWeights {
			arcs[i].Weight = 1
		}
		w := arcs[i].Weight
		if !(w > 0) || math.IsInf(w, 0) {
			return nil, formatErr(source, 0, fmt.Errorf("arc %d→%d weight %v: %w", arcs[i].From, arcs[i].To, w, ErrBadWeight))
		}
		outWeight[arcs[i].From] += w
		if arcs[i].From == arcs[i].To {
			selfLoops++
		} else {
			nonSelf[arcs[i].From]++
		}
	}

	g := &Graph{
		Source:      source,
		NumVertices: n,
		Edges:       make([]Edge, 0, len(arcs)),
		Dangling:    make([]bool, n),
		OutDegree:   make([]int, n),
		SelfLoops:   selfLoops,
	}
	for v := range n {
		g.Dangling[v] = nonSelf[v] == 0
	}
	for _, a := range arcs {
		// A dangling vertex's mass is redistributed uniformly; keeping its
		// self-loops would count that mass twice.
		if g.Dangling[a.From] {
			continue
		}
		g.Edges = append(g.Edges, Edge{
			Row:    int32(a.To),
			Col:    int32(a.From),
			Weight: a.Weight / outWeight[a.From],
		})
		g.OutDegree[a.From]++
	}

	if opts.Sort {
		slices.SortFunc(g.Edges, func(a, b Edge) int {
			if c := cmp.Compare(a.Row, b.Row); c != 0 {
				return c
			}
			return cmp.Compare(a.Col, b.Col)
		})
	}
	return g, nil
}
