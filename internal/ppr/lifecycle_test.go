package ppr_test

import (
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/montiglio/graphbench/internal/device"
	"github.com/montiglio/graphbench/internal/ppr"
)

func TestRun_AcceleratorFaultAbortsTrial(t *testing.T) {
	t.Parallel()

	var launches, failAt int
	opts := smallGeometry()
	opts.MaxIterations = 200
	opts.Device.Faults = func(op device.Op, target string) error {
		if op == device.OpLaunch && target == "distance.partial" {
			launches++
			if launches == failAt {
				return errors.New("device lost")
			}
		}
		return nil
	}
	s := newSolver(t, cycle(t, 8), opts)

	failAt = 3
	if err := s.ResetAt(0); err != nil {
		t.Fatal(err)
	}
	_, err := s.Run()
	var accErr *device.AcceleratorError
	if !errors.As(err, &accErr) {
		t.Fatalf("err = %v, want AcceleratorError", err)
	}
	if accErr.Op != device.OpLaunch || accErr.Target != "distance.partial" {
		t.Errorf("error = %+v", accErr)
	}
	if _, err := s.Step(); !errors.Is(err, ppr.ErrNotReset) {
		t.Errorf("Step after fault: err = %v, want ErrNotReset", err)
	}
	if _, err := s.Run(); !errors.Is(err, ppr.ErrNotReset) {
		t.Errorf("Run after fault: err = %v, want ErrNotReset", err)
	}

	// A fresh trial on the same solver succeeds.
	if err := s.ResetAt(0); err != nil {
		t.Fatal(err)
	}
	res, err := s.Run()
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if !res.Converged() {
		t.Errorf("retry status = %v", res.Status)
	}
}

func TestStep_FaultAtEachStageNeedsReset(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		op     device.Op
		target string
	}{
		{"spmv upload", device.OpCopyToDevice, "spmv.out"},
		{"dot partials", device.OpLaunch, "dot.partial"},
		{"affine", device.OpLaunch, "affine"},
		{"distance combine", device.OpLaunch, "distance.combine"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			armed := false
			opts := smallGeometry()
			opts.Device.Faults = func(op device.Op, target string) error {
				if armed && op == tt.op && target == tt.target {
					return errors.New("injected")
				}
				return nil
			}
			s := newSolver(t, cycle(t, 8), opts)
			if err := s.ResetAt(2); err != nil {
				t.Fatal(err)
			}
			armed = true
			if _, err := s.Step(); err == nil {
				t.Fatal("Step succeeded despite fault")
			}
			armed = false
			if _, err := s.Step(); !errors.Is(err, ppr.ErrNotReset) {
				t.Errorf("second Step: err = %v, want ErrNotReset", err)
			}
			if err := s.ResetAt(2); err != nil {
				t.Fatal(err)
			}
			if _, err := s.Step(); err != nil {
				t.Errorf("Step after Reset: %v", err)
			}
		})
	}
}

func TestNewSolver_AllocationFailure(t *testing.T) {
	t.Parallel()

	opts := smallGeometry()
	opts.Device.MemoryBytes = 3 * 100 * 8
	_, err := ppr.NewSolver(randomGraph(t, 1, 100, 300), opts)
	var allocErr *device.AllocationError
	if !errors.As(err, &allocErr) {
		t.Fatalf("err = %v, want AllocationError", err)
	}
	if allocErr.Name != "dangling" || !errors.Is(err, device.ErrOutOfMemory) {
		t.Errorf("error = %+v", allocErr)
	}
}

func TestNewSolver_InvalidOptions(t *testing.T) {
	t.Parallel()

	g := cycle(t, 3)
	tests := []struct {
		name string
		mod  func(*ppr.Options)
	}{
		{"alpha zero", func(o *ppr.Options) { o.Alpha = 0 }},
		{"alpha one", func(o *ppr.Options) { o.Alpha = 1 }},
		{"threshold", func(o *ppr.Options) { o.Threshold = 0 }},
		{"iterations", func(o *ppr.Options) { o.MaxIterations = 0 }},
		{"workers", func(o *ppr.Options) { o.HostWorkers = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			opts := ppr.DefaultOptions()
			tt.mod(&opts)
			if _, err := ppr.NewSolver(g, opts); !errors.Is(err, ppr.ErrInvalidOptions) {
				t.Errorf("err = %v, want ErrInvalidOptions", err)
			}
		})
	}

	opts := ppr.DefaultOptions()
	opts.Device.Geometry.GroupSize = 3
	if _, err := ppr.NewSolver(g, opts); !errors.Is(err, device.ErrInvalidGeometry) {
		t.Errorf("bad geometry err = %v", err)
	}
}

func TestSolver_ResetRequired(t *testing.T) {
	t.Parallel()

	s := newSolver(t, cycle(t, 3), smallGeometry())
	if _, err := s.Step(); !errors.Is(err, ppr.ErrNotReset) {
		t.Errorf("Step err = %v", err)
	}
	if _, err := s.Run(); !errors.Is(err, ppr.ErrNotReset) {
		t.Errorf("Run err = %v", err)
	}
	if err := s.ResetAt(3); !errors.Is(err, ppr.ErrInvalidOptions) {
		t.Errorf("ResetAt out of range err = %v", err)
	}
}

func TestReset_SeededSource(t *testing.T) {
	t.Parallel()

	g := randomGraph(t, 2, 1000, 2000)
	a := newSolver(t, g, smallGeometry())
	b := newSolver(t, g, smallGeometry())
	ra := rand.New(rand.NewPCG(9, 9))
	rb := rand.New(rand.NewPCG(9, 9))
	for range 5 {
		if err := a.Reset(ra); err != nil {
			t.Fatal(err)
		}
		if err := b.Reset(rb); err != nil {
			t.Fatal(err)
		}
		if a.Source() != b.Source() {
			t.Fatalf("sources differ: %d vs %d", a.Source(), b.Source())
		}
		if a.Status() != ppr.StatusInit {
			t.Errorf("status after reset = %v", a.Status())
		}
	}
}

func TestSolver_OnIterationAndClose(t *testing.T) {
	t.Parallel()

	var seen []ppr.Iteration
	opts := smallGeometry()
	opts.OnIteration = func(it ppr.Iteration) { seen = append(seen, it) }
	s, err := ppr.NewSolver(cycle(t, 4), opts)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.ResetAt(0); err != nil {
		t.Fatal(err)
	}
	res, err := s.Run()
	if err != nil {
		t.Fatal(err)
	}
	if len(seen) != res.Iterations {
		t.Fatalf("callbacks = %d, iterations = %d", len(seen), res.Iterations)
	}
	if last := seen[len(seen)-1]; last.Distance != res.Distance {
		t.Errorf("last distance %v, result %v", last.Distance, res.Distance)
	}
	if s.Device().Stats().AllocatedBytes == 0 {
		t.Error("no device memory accounted")
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if s.Device().Stats().AllocatedBytes != 0 {
		t.Error("device memory not released")
	}
}

func TestStatus_String(t *testing.T) {
	t.Parallel()

	tests := map[ppr.Status]string{
		ppr.StatusInit:          "init",
		ppr.StatusIterating:     "iterating",
		ppr.StatusConverged:     "converged",
		ppr.StatusMaxIterations: "max_iterations_reached",
		ppr.Status(9):           "status(9)",
	}
	for s, want := range tests {
		if got := s.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", int(s), got, want)
		}
	}
}
