// Package device is a software data-parallel accelerator. Device memory is
// kept apart from host memory and every host↔device transfer, kernel launch
// and synchronization is an explicit, checked operation.
//
// A kernel runs as Groups worker groups of GroupSize lanes. Each group is a
// goroutine; the lanes of a group execute in lockstep over a private shared
// scratch array, so every step of an in-group tree reduction completes for
// all lanes before the next step starts.
package device

import (
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

const maxGroupSize = 1024

// Geometry is the kernel launch geometry. It affects scheduling only.
type Geometry struct {
	Groups    int
	GroupSize int
}

// DefaultGeometry returns 32 groups of 256 lanes.
func DefaultGeometry() Geometry {
	return Geometry{Groups: 32, GroupSize: 256}
}

// Workers returns the total number of lanes launched per kernel.
func (g Geometry) Workers() int {
	return g.Groups * g.GroupSize
}

// Validate checks that the geometry can run tree reductions.
func (g Geometry) Validate() error {
	if g.Groups < 1 {
		return fmt.Errorf("%w: groups %d < 1", ErrInvalidGeometry, g.Groups)
	}
	if g.GroupSize < 1 || g.GroupSize > maxGroupSize || g.GroupSize&(g.GroupSize-1) != 0 {
		return fmt.Errorf("%w: group size %d is not a power of two in [1, %d]", ErrInvalidGeometry, g.GroupSize, maxGroupSize)
	}
	return nil
}

// FaultFunc is consulted before every device operation; a non-nil return
// makes that operation fail. target is the kernel or buffer name.
type FaultFunc func(op Op, target string) error

// Config configures a Device.
type Config struct {
	Geometry Geometry
	// MemoryBytes caps device allocations. Zero means unlimited.
	MemoryBytes int64
	// Faults injects failures, for testing error paths.
	Faults FaultFunc
}

// Stats counts device activity since Open.
type Stats struct {
	Launches       int
	Transfers      int
	BytesToDevice  int64
	BytesToHost    int64
	AllocatedBytes int64
}

// Device is an owned accelerator context. It is not safe for concurrent use
// by multiple callers; kernels parallelize internally.
type Device struct {
	geom   Geometry
	limit  int64
	faults FaultFunc

	// shared is the per-group scratch used by reductions.
	shared [][]float64

	mu      sync.Mutex
	vectors []*Vector
	stats   Stats
	closed  bool
}

// Open validates cfg and creates a device.
func Open(cfg Config) (*Device, error) {
	if err := cfg.Geometry.Validate(); err != nil {
		return nil, err
	}
	d := &Device{
		geom:   cfg.Geometry,
		limit:  cfg.MemoryBytes,
		faults: cfg.Faults,
		shared: make([][]float64, cfg.Geometry.Groups),
	}
	for g := range d.shared {
		d.shared[g] = make([]float64, cfg.Geometry.GroupSize)
	}
	return d, nil
}

// Geometry returns the launch geometry.
func (d *Device) Geometry() Geometry {
	return d.geom
}

// Stats returns a snapshot of the activity counters.
func (d *Device) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stats
}

// Close releases every buffer allocated on the device. Calling Close more
// than once is a no-op.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	for _, v := range d.vectors {
		v.release()
	}
	d.vectors = nil
	d.shared = nil
	d.stats.AllocatedBytes = 0
	d.closed = true
	return nil
}

// Alloc allocates a zeroed vector of n elements on both host and device.
func (d *Device) Alloc(name string, n int) (*Vector, error) {
	bytes := int64(n) * 8
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, &AllocationError{Name: name, Bytes: bytes, Err: ErrClosed}
	}
	if err := d.fault(OpAlloc, name); err != nil {
		return nil, &AllocationError{Name: name, Bytes: bytes, Used: d.stats.AllocatedBytes, Limit: d.limit, Err: err}
	}
	if d.limit > 0 && d.stats.AllocatedBytes+bytes > d.limit {
		return nil, &AllocationError{Name: name, Bytes: bytes, Used: d.stats.AllocatedBytes, Limit: d.limit, Err: ErrOutOfMemory}
	}
	v := &Vector{
		dev:       d,
		name:      name,
		host:      make([]float64, n),
		mem:       make([]float64, n),
		hostValid: true,
		devValid:  true,
	}
	d.vectors = append(d.vectors, v)
	d.stats.AllocatedBytes += bytes
	return v, nil
}

func (d *Device) fault(op Op, target string) error {
	if d.faults == nil {
		return nil
	}
	return d.faults(op, target)
}

// checkOpen must be called with d.mu held.
func (d *Device) checkOpen(op Op, target string) error {
	if d.closed {
		return &AcceleratorError{Op: op, Target: target, Err: ErrClosed}
	}
	return nil
}

// transfer accounts for a copy and applies fault injection.
func (d *Device) transfer(op Op, target string, n int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkOpen(op, target); err != nil {
		return err
	}
	if err := d.fault(op, target); err != nil {
		return &AcceleratorError{Op: op, Target: target, Err: err}
	}
	d.stats.Transfers++
	if op == OpCopyToDevice {
		d.stats.BytesToDevice += int64(n) * 8
	} else {
		d.stats.BytesToHost += int64(n) * 8
	}
	return nil
}

// launch runs body once per worker group and waits for all groups. Panics in
// a group are recovered and reported as launch failures. The launch is
// followed by a synchronize, which is also checked.
func (d *Device) launch(name string, groups int, body func(group int, shared []float64)) error {
	d.mu.Lock()
	if err := d.checkOpen(OpLaunch, name); err != nil {
		d.mu.Unlock()
		return err
	}
	if err := d.fault(OpLaunch, name); err != nil {
		d.mu.Unlock()
		return &AcceleratorError{Op: OpLaunch, Target: name, Err: err}
	}
	d.stats.Launches++
	shared := d.shared
	d.mu.Unlock()

	var eg errgroup.Group
	for g := range groups {
		eg.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("%w: group %d: %v", ErrKernelPanic, g, r)
				}
			}()
			body(g, shared[g])
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return &AcceleratorError{Op: OpLaunch, Target: name, Err: err}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.fault(OpSynchronize, name); err != nil {
		return &AcceleratorError{Op: OpSynchronize, Target: name, Err: err}
	}
	return nil
}
