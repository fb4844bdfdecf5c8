package device

import (
	"errors"
	"fmt"
)

// Sentinel errors for device operations.
var (
	// ErrClosed indicates an operation on a device that has been closed.
	ErrClosed = errors.New("device closed")
	// ErrOutOfMemory indicates an allocation would exceed the device memory limit.
	ErrOutOfMemory = errors.New("out of device memory")
	// ErrStale indicates a kernel input whose device copy is not current.
	ErrStale = errors.New("device copy is stale")
	// ErrShape indicates kernel operands of different lengths.
	ErrShape = errors.New("operand length mismatch")
	// ErrKernelPanic indicates a worker group panicked during a kernel.
	ErrKernelPanic = errors.New("kernel panicked")
	// ErrInvalidGeometry indicates an unusable launch geometry.
	ErrInvalidGeometry = errors.New("invalid launch geometry")
)

// Op names a device operation that can fail.
type Op string

// Device operations checked for failure.
const (
	OpAlloc        Op = "alloc"
	OpCopyToDevice Op = "copy_to_device"
	OpCopyToHost   Op = "copy_to_host"
	OpLaunch       Op = "launch"
	OpSynchronize  Op = "synchronize"
)

// AcceleratorError reports a failed launch, transfer or synchronization.
// Target names the kernel or buffer involved.
type AcceleratorError struct {
	Op     Op
	Target string
	Err    error
}

// Error returns the failing operation, its target and the cause.
func (e *AcceleratorError) Error() string {
	return fmt.Sprintf("device: %s %s: %v", e.Op, e.Target, e.Err)
}

// Unwrap returns the underlying error for use with errors.Is/As.
func (e *AcceleratorError) Unwrap() error {
	return e.Err
}

// AllocationError reports a device buffer that could not be allocated.
type AllocationError struct {
	Name  string
	Bytes int64
	Used  int64
	Limit int64
	Err   error
}

// Error returns the buffer, the requested size and the cause.
func (e *AllocationError) Error() string {
	if e.Limit > 0 {
		return fmt.Sprintf("device: alloc %s (%d bytes, %d/%d in use): %v", e.Name, e.Bytes, e.Used, e.Limit, e.Err)
	}
	return fmt.Sprintf("device: alloc %s (%d bytes): %v", e.Name, e.Bytes, e.Err)
}

// Unwrap returns the underlying error for use with errors.Is/As.
func (e *AllocationError) Unwrap() error {
	return e.Err
}
