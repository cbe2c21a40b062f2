package runtime

import (
	"fmt"

	"github.com/GriffinCanCode/InferOS/runtime/internal/hal"
	"github.com/GriffinCanCode/InferOS/runtime/internal/shared/id"
)

// Scope binds a worker to a device subset under a shared reference to
// the System. Scopes are constructed only via System.CreateScope; the
// System never retains a reference back, so no cycle forms.
type Scope struct {
	id      id.ScopeID
	system  *System
	worker  *Worker
	devices []hal.Device
	byName  map[string]hal.Device
}

func newScope(system *System, worker *Worker, devices []hal.Device) *Scope {
	s := &Scope{
		id:      id.NewScopeID(),
		system:  system,
		worker:  worker,
		devices: make([]hal.Device, len(devices)),
		byName:  make(map[string]hal.Device, len(devices)),
	}
	copy(s.devices, devices)
	for _, d := range devices {
		s.byName[d.Name()] = d
	}
	return s
}

// ID returns the scope's instance id.
func (s *Scope) ID() id.ScopeID { return s.id }

// System returns the owning System.
func (s *Scope) System() *System { return s.system }

// Worker returns the bound worker.
func (s *Scope) Worker() *Worker { return s.worker }

// Devices returns the scope's device subset in binding order.
func (s *Scope) Devices() []hal.Device {
	out := make([]hal.Device, len(s.devices))
	copy(out, s.devices)
	return out
}

// Device returns a bound device by name.
func (s *Scope) Device(name string) (hal.Device, error) {
	d, ok := s.byName[name]
	if !ok {
		return nil, fmt.Errorf("device %q not bound to scope: %w", name, ErrInvalidArgument)
	}
	return d, nil
}
