// Package vm provides the script VM instance owned by the runtime
// System. One instance is created at System construction and destroyed
// first during shutdown, after all workers have drained.
package vm

import (
	"fmt"
	"sync"
	"time"

	"github.com/dop251/goja"
)

// Instance wraps a single goja runtime. Access is serialized; the
// System owns the instance exclusively and consumers only evaluate
// against it, never reconfigure it.
type Instance struct {
	mu     sync.Mutex
	rt     *goja.Runtime
	closed bool
}

// New creates a VM instance and registers the host builtins. A partial
// instance is never returned: any registration failure fails creation.
func New() (*Instance, error) {
	inst := &Instance{rt: goja.New()}
	if err := inst.registerBuiltins(); err != nil {
		return nil, fmt.Errorf("failed to register vm builtins: %w", err)
	}
	return inst, nil
}

// registerBuiltins installs the host functions every embedded script
// can rely on.
func (i *Instance) registerBuiltins() error {
	if err := i.rt.Set("millis", func() int64 {
		return time.Now().UnixMilli()
	}); err != nil {
		return err
	}
	if err := i.rt.Set("hostVersion", Version); err != nil {
		return err
	}
	return nil
}

// Version is the host API version exposed to scripts.
const Version = "1"

// Eval runs src and returns the exported result.
func (i *Instance) Eval(src string) (interface{}, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.closed {
		return nil, fmt.Errorf("vm instance is closed")
	}
	value, err := i.rt.RunString(src)
	if err != nil {
		return nil, err
	}
	if value == nil {
		return nil, nil
	}
	return value.Export(), nil
}

// Close tears the instance down. Idempotent; evaluation after Close
// fails.
func (i *Instance) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.closed {
		return nil
	}
	i.closed = true
	i.rt = nil
	return nil
}
