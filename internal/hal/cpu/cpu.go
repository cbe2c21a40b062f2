// Package cpu implements a host-CPU HAL driver. Devices are logical
// lanes over the local machine; dense math executes through gonum.
package cpu

import (
	"fmt"
	"sync"

	"gonum.org/v1/gonum/mat"

	"github.com/GriffinCanCode/InferOS/runtime/internal/hal"
)

// Driver exposes a fixed set of logical CPU devices (cpu:0..cpu:N-1).
type Driver struct {
	mu      sync.Mutex
	open    map[string]*Device // Protected by mu
	devices []hal.Device       // creation order, immutable after New
	closed  bool
}

// New creates a CPU driver with count logical devices. count < 1 is
// clamped to 1.
func New(count int) *Driver {
	if count < 1 {
		count = 1
	}
	d := &Driver{
		open: make(map[string]*Device, count),
	}
	for i := 0; i < count; i++ {
		dev := &Device{
			name:   fmt.Sprintf("cpu:%d", i),
			driver: d,
		}
		d.open[dev.name] = dev
		d.devices = append(d.devices, dev)
	}
	return d
}

// Devices returns the driver's devices in creation order.
func (d *Driver) Devices() []hal.Device {
	out := make([]hal.Device, len(d.devices))
	copy(out, d.devices)
	return out
}

// Close releases the driver. Devices must be closed first; closing a
// driver with live devices reports them as leaked.
func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}
	d.closed = true
	if len(d.open) > 0 {
		return fmt.Errorf("cpu driver closed with %d live device(s)", len(d.open))
	}
	return nil
}

// release detaches a device from the driver's live set.
func (d *Driver) release(name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return fmt.Errorf("device %q closed after its driver", name)
	}
	delete(d.open, name)
	return nil
}

// Device is one logical CPU execution device.
type Device struct {
	name   string
	driver *Driver

	mu     sync.Mutex
	closed bool
}

// Name returns the stable device name.
func (dev *Device) Name() string {
	return dev.name
}

// MatMul multiplies a (m x k) by b (k x n) and returns the m x n product.
func (dev *Device) MatMul(a, b *mat.Dense) (*mat.Dense, error) {
	dev.mu.Lock()
	if dev.closed {
		dev.mu.Unlock()
		return nil, fmt.Errorf("device %q is closed", dev.name)
	}
	dev.mu.Unlock()

	ar, ac := a.Dims()
	br, bc := b.Dims()
	if ac != br {
		return nil, fmt.Errorf("dimension mismatch: %dx%d * %dx%d", ar, ac, br, bc)
	}

	out := mat.NewDense(ar, bc, nil)
	out.Mul(a, b)
	return out, nil
}

// Close detaches the device from its driver. Idempotent.
func (dev *Device) Close() error {
	dev.mu.Lock()
	if dev.closed {
		dev.mu.Unlock()
		return nil
	}
	dev.closed = true
	dev.mu.Unlock()

	return dev.driver.release(dev.name)
}
