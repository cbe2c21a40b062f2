// Package hal defines the hardware abstraction boundary consumed by the
// runtime System: opaque driver handles and the devices they expose.
//
// Ownership transfers to the System on registration. The System closes
// devices before drivers during shutdown because a device may reference
// its originating driver in its own teardown path.
package hal

// Driver is an owned handle to a device backend, registered under a
// string moniker. Close releases backend resources; it is called by the
// System after every device sourced from the driver has been closed.
type Driver interface {
	Close() error
}

// Device is a single addressable execution device. Name must be stable
// and unique across the System for the device's lifetime.
type Device interface {
	Name() string
	Close() error
}
