// Package ppr runs personalized PageRank as a host/device power iteration.
//
// Each iteration does the sparse matrix-vector multiply on the host, then the
// dangling dot product, the affine restart update and the convergence
// distance on the device:
//
//	next[v] = alpha·(A·pr)[v] + alpha·d/V + (1−alpha)·[v == source]
//	d       = Σ dangling[v]·pr[v]
package ppr

import (
	"fmt"
	"math/rand/v2"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/montiglio/graphbench/internal/device"
	"github.com/montiglio/graphbench/internal/graph"
)

// Solver owns a device context and the buffers of one PPR computation. It
// runs one trial at a time and is not safe for concurrent use.
type Solver struct {
	g    *graph.Graph
	opts Options
	dev  *device.Device

	pr   *device.Vector
	next *device.Vector
	tmp  *device.Vector
	mask *device.Vector
	red  *device.Reducer

	maskHost []float64
	accum    [][]float64

	ready     bool
	status    Status
	source    int
	iteration int
	distance  float64

	closeOnce sync.Once
}

// NewSolver opens a device and allocates every buffer the solver will use.
// Buffers are reused across trials and released by Close.
func NewSolver(g *graph.Graph, opts Options) (*Solver, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	dev, err := device.Open(opts.Device)
	if err != nil {
		return nil, fmt.Errorf("ppr: open device: %w", err)
	}
	s := &Solver{g: g, opts: opts, dev: dev, maskHost: g.DanglingMask()}
	if err := s.alloc(); err != nil {
		dev.Close()
		return nil, err
	}
	if opts.HostWorkers > 1 {
		s.accum = make([][]float64, opts.HostWorkers)
		for w := range s.accum {
			s.accum[w] = make([]float64, g.NumVertices)
		}
	}
	return s, nil
}

func (s *Solver) alloc() error {
	n := s.g.NumVertices
	bufs := []struct {
		name string
		dst  **device.Vector
	}{
		{"pr", &s.pr},
		{"pr.next", &s.next},
		{"spmv.out", &s.tmp},
		{"dangling", &s.mask},
	}
	for _, b := range bufs {
		v, err := s.dev.Alloc(b.name, n)
		if err != nil {
			return err
		}
		*b.dst = v
	}
	red, err := s.dev.NewReducer()
	if err != nil {
		return err
	}
	s.red = red
	return nil
}

// Close releases the device. Calling Close more than once is a no-op.
func (s *Solver) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.dev.Close()
	})
	return err
}

// Device returns the solver's device, for statistics.
func (s *Solver) Device() *device.Device {
	return s.dev
}

// Status returns the current state.
func (s *Solver) Status() Status {
	return s.status
}

// Source returns the personalization vertex of the current trial.
func (s *Solver) Source() int {
	return s.source
}

// Reset starts a new trial with a personalization vertex drawn uniformly
// from rng.
func (s *Solver) Reset(rng *rand.Rand) error {
	return s.ResetAt(rng.IntN(s.g.NumVertices))
}

// ResetAt starts a new trial personalized at source: the rank vector is set
// to 1/V and it and the dangling mask are transferred to the device.
func (s *Solver) ResetAt(source int) error {
	n := s.g.NumVertices
	if source < 0 || source >= n {
		return fmt.Errorf("%w: source %d not in [0, %d)", ErrInvalidOptions, source, n)
	}
	s.ready = false
	pr := s.pr.HostMut()
	uniform := 1 / float64(n)
	for i := range pr {
		pr[i] = uniform
	}
	if err := s.pr.EnsureDevice(); err != nil {
		return err
	}
	if err := s.mask.Upload(s.maskHost); err != nil {
		return err
	}
	s.source = source
	s.iteration = 0
	s.distance = 0
	s.status = StatusInit
	s.ready = true
	return nil
}

// Step runs one iteration. It may be called after Run to check that the
// fixed point is stable; a terminal status is kept. Any error leaves the
// solver needing Reset.
func (s *Solver) Step() (Iteration, error) {
	if !s.ready {
		return Iteration{}, ErrNotReset
	}
	it, err := s.step()
	if err != nil {
		s.ready = false
		return Iteration{}, err
	}
	if s.status == StatusInit {
		s.status = StatusIterating
	}
	if s.opts.OnIteration != nil {
		s.opts.OnIteration(it)
	}
	return it, nil
}

func (s *Solver) step() (Iteration, error) {
	alpha := s.opts.Alpha

	if err := s.pr.EnsureHost(); err != nil {
		return Iteration{}, err
	}
	s.spmv(s.pr.Host(), s.tmp.HostMut())
	if err := s.tmp.EnsureDevice(); err != nil {
		return Iteration{}, err
	}

	dangling, err := s.red.Dot(s.mask, s.pr)
	if err != nil {
		return Iteration{}, err
	}

	beta := alpha * dangling / float64(s.g.NumVertices)
	if err := s.dev.Affine(s.next, s.tmp, alpha, beta, s.source, 1-alpha); err != nil {
		return Iteration{}, err
	}

	dist, err := s.red.Distance(s.pr, s.next)
	if err != nil {
		return Iteration{}, err
	}

	s.pr, s.next = s.next, s.pr
	s.iteration++
	s.distance = dist
	return Iteration{Number: s.iteration, Distance: dist, DanglingMass: dangling}, nil
}

// Run iterates until the distance is at most the threshold or the iteration
// cap is hit. A device failure aborts the trial; call Reset before retrying.
func (s *Solver) Run() (Result, error) {
	if !s.ready || s.status == StatusConverged || s.status == StatusMaxIterations {
		return Result{}, ErrNotReset
	}
	for s.iteration < s.opts.MaxIterations {
		it, err := s.Step()
		if err != nil {
			return Result{}, err
		}
		if it.Distance <= s.opts.Threshold {
			s.status = StatusConverged
			break
		}
	}
	if s.status != StatusConverged {
		s.status = StatusMaxIterations
	}

	rank, err := s.Rank()
	if err != nil {
		s.ready = false
		return Result{}, err
	}
	return Result{
		Source:     s.source,
		Status:     s.status,
		Iterations: s.iteration,
		Distance:   s.distance,
		Rank:       rank,
	}, nil
}

// Rank copies the current rank vector to the host and returns a copy of it.
func (s *Solver) Rank() ([]float64, error) {
	if err := s.pr.EnsureHost(); err != nil {
		return nil, err
	}
	return slices.Clone(s.pr.Host()), nil
}

// spmv computes tmp = A·pr over the transposed edge list.
func (s *Solver) spmv(pr, tmp []float64) {
	edges := s.g.Edges
	if len(s.accum) == 0 {
		clear(tmp)
		for _, e := range edges {
			tmp[e.Row] += e.Weight * pr[e.Col]
		}
		return
	}

	chunk := (len(edges) + len(s.accum) - 1) / len(s.accum)
	var eg errgroup.Group
	for w, acc := range s.accum {
		lo := min(w*chunk, len(edges))
		hi := min(lo+chunk, len(edges))
		eg.Go(func() error {
			clear(acc)
			for _, e := range edges[lo:hi] {
				acc[e.Row] += e.Weight * pr[e.Col]
			}
			return nil
		})
	}
	_ = eg.Wait() // workers never fail

	clear(tmp)
	for _, acc := range s.accum {
		for i, v := range acc {
			tmp[i] += v
		}
	}
}
