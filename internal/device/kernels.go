package device

import (
	"fmt"
	"math"
)

// checkInputs verifies that kernel inputs are current on the device and have
// matching lengths.
func checkInputs(kernel string, vs ...*Vector) error {
	for _, v := range vs {
		if !v.devValid {
			return &AcceleratorError{Op: OpLaunch, Target: kernel, Err: fmt.Errorf("%w: %s is %s", ErrStale, v.name, v.Residency())}
		}
		if len(v.mem) != len(vs[0].mem) {
			return &AcceleratorError{Op: OpLaunch, Target: kernel, Err: fmt.Errorf("%w: %s has %d, %s has %d", ErrShape, v.name, len(v.mem), vs[0].name, len(vs[0].mem))}
		}
	}
	return nil
}

// Affine computes out[i] = alpha·x[i] + beta + inject·[i == index] on the
// device. Each lane walks the vector with a grid stride, so any geometry
// covers any length. out may not alias x.
func (d *Device) Affine(out, x *Vector, alpha, beta float64, index int, inject float64) error {
	const kernel = "affine"
	if err := checkInputs(kernel, x); err != nil {
		return err
	}
	if len(out.mem) != len(x.mem) {
		return &AcceleratorError{Op: OpLaunch, Target: kernel, Err: fmt.Errorf("%w: out %d, x %d", ErrShape, len(out.mem), len(x.mem))}
	}
	n := len(x.mem)
	src, dst := x.mem, out.mem
	size := d.geom.GroupSize
	stride := d.geom.Workers()
	err := d.launch(kernel, d.geom.Groups, func(group int, _ []float64) {
		for lane := range size {
			for i := group*size + lane; i < n; i += stride {
				v := alpha*src[i] + beta
				if i == index {
					v += inject
				}
				dst[i] = v
			}
		}
	})
	if err != nil {
		return err
	}
	out.markDevice()
	return nil
}

// Reducer owns the scratch buffers of the two-phase reduction: one partial
// per worker group and the final scalar.
type Reducer struct {
	dev      *Device
	partials *Vector
	result   *Vector
}

// NewReducer allocates reduction scratch on the device.
func (d *Device) NewReducer() (*Reducer, error) {
	partials, err := d.Alloc("reduce.partials", d.geom.Groups)
	if err != nil {
		return nil, err
	}
	result, err := d.Alloc("reduce.result", 1)
	if err != nil {
		return nil, err
	}
	return &Reducer{dev: d, partials: partials, result: result}, nil
}

// Dot returns Σ x[i]·y[i].
func (r *Reducer) Dot(x, y *Vector) (float64, error) {
	const kernel = "dot"
	if err := checkInputs(kernel, x, y); err != nil {
		return 0, err
	}
	a, b := x.mem, y.mem
	return r.reduce(kernel, len(a), func(i int) float64 { return a[i] * b[i] }, nil)
}

// Distance returns the Euclidean distance between x and y. The square root
// is taken once, after the group partials are combined.
func (r *Reducer) Distance(x, y *Vector) (float64, error) {
	const kernel = "distance"
	if err := checkInputs(kernel, x, y); err != nil {
		return 0, err
	}
	a, b := x.mem, y.mem
	return r.reduce(kernel, len(a), func(i int) float64 {
		d := a[i] - b[i]
		return d * d
	}, math.Sqrt)
}

// reduce runs both reduction phases and reads the scalar back.
//
// Phase 1 launches every group: each lane sums a strided slice of the input,
// then the group tree-reduces its lanes and writes one partial. Phase 2
// launches a single group that tree-reduces the partials into the result.
// The scalar is only copied to the host after phase 2 has completed.
func (r *Reducer) reduce(kernel string, n int, elem func(i int) float64, finish func(float64) float64) (float64, error) {
	geom := r.dev.geom
	size := geom.GroupSize
	stride := geom.Workers()
	partials := r.partials.mem

	err := r.dev.launch(kernel+".partial", geom.Groups, func(group int, shared []float64) {
		for lane := range size {
			var sum float64
			for i := group*size + lane; i < n; i += stride {
				sum += elem(i)
			}
			shared[lane] = sum
		}
		treeReduce(shared)
		partials[group] = shared[0]
	})
	if err != nil {
		return 0, err
	}
	r.partials.markDevice()

	result := r.result.mem
	groups := len(partials)
	err = r.dev.launch(kernel+".combine", 1, func(_ int, shared []float64) {
		for lane := range size {
			var sum float64
			for i := lane; i < groups; i += size {
				sum += partials[i]
			}
			shared[lane] = sum
		}
		treeReduce(shared)
		total := shared[0]
		if finish != nil {
			total = finish(total)
		}
		result[0] = total
	})
	if err != nil {
		return 0, err
	}
	r.result.markDevice()

	if err := r.result.EnsureHost(); err != nil {
		return 0, err
	}
	return r.result.host[0], nil
}

// treeReduce folds shared into shared[0] by repeated halving. len(shared) is
// a power of two. Each halving step finishes for every lane before the next
// begins, which is the barrier between steps.
func treeReduce(shared []float64) {
	for s := len(shared) / 2; s > 0; s >>= 1 {
		for lane := range s {
			shared[lane] += shared[lane+s]
		}
	}
}
