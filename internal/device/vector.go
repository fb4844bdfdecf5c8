package device

import "fmt"

// Residency tells where the current value of a Vector lives.
type Residency int

const (
	ResidentNone   Residency = iota // released
	ResidentHost                    // host copy is current, device copy is stale
	ResidentDevice                  // device copy is current, host copy is stale
	ResidentBoth                    // both copies agree
)

// String returns the residency name.
func (r Residency) String() string {
	switch r {
	case ResidentHost:
		return "host"
	case ResidentDevice:
		return "device"
	case ResidentBoth:
		return "both"
	}
	return "none"
}

// Vector is one logical float64 vector with a host copy and a device copy.
// EnsureHost and EnsureDevice are the only points where the copies are
// synchronized; kernels read and write the device copy only.
type Vector struct {
	dev       *Device
	name      string
	host      []float64
	mem       []float64
	hostValid bool
	devValid  bool
}

// Name returns the buffer name used in errors.
func (v *Vector) Name() string { return v.name }

// Len returns the number of elements.
func (v *Vector) Len() int { return len(v.host) }

// Residency reports which copy is current.
func (v *Vector) Residency() Residency {
	switch {
	case v.hostValid && v.devValid:
		return ResidentBoth
	case v.hostValid:
		return ResidentHost
	case v.devValid:
		return ResidentDevice
	}
	return ResidentNone
}

// Host returns the host copy for reading. Call EnsureHost first when the
// device copy may be newer.
func (v *Vector) Host() []float64 {
	return v.host
}

// HostMut returns the host copy for writing and marks the device copy stale.
func (v *Vector) HostMut() []float64 {
	v.hostValid = true
	v.devValid = false
	return v.host
}

// EnsureHost copies device memory to the host if the host copy is stale.
func (v *Vector) EnsureHost() error {
	if v.hostValid {
		return nil
	}
	if !v.devValid {
		return &AcceleratorError{Op: OpCopyToHost, Target: v.name, Err: ErrClosed}
	}
	if err := v.dev.transfer(OpCopyToHost, v.name, len(v.mem)); err != nil {
		return err
	}
	copy(v.host, v.mem)
	v.hostValid = true
	return nil
}

// EnsureDevice copies host memory to the device if the device copy is stale.
func (v *Vector) EnsureDevice() error {
	if v.devValid {
		return nil
	}
	if !v.hostValid {
		return &AcceleratorError{Op: OpCopyToDevice, Target: v.name, Err: ErrClosed}
	}
	if err := v.dev.transfer(OpCopyToDevice, v.name, len(v.host)); err != nil {
		return err
	}
	copy(v.mem, v.host)
	v.devValid = true
	return nil
}

// Upload writes src into the host copy and transfers it to the device.
func (v *Vector) Upload(src []float64) error {
	if len(src) != len(v.host) {
		return &AcceleratorError{Op: OpCopyToDevice, Target: v.name, Err: fmt.Errorf("%w: %d into %d", ErrShape, len(src), len(v.host))}
	}
	copy(v.HostMut(), src)
	return v.EnsureDevice()
}

// markDevice records a kernel write to device memory.
func (v *Vector) markDevice() {
	v.devValid = true
	v.hostValid = false
}

func (v *Vector) release() {
	v.host = nil
	v.mem = nil
	v.hostValid = false
	v.devValid = false
}
