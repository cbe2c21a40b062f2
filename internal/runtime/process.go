package runtime

import "sync"

// Process is an opaque, pointer-identity handle registered in the
// process table. The System assigns and revokes pids only; it never
// inspects the value.
type Process interface{}

// BaseProcess is a minimal embeddable process bound to a Scope. It
// manages its own pid through the owning System's process table.
type BaseProcess struct {
	scope *Scope

	mu  sync.Mutex
	pid int64 // 0 while not launched
}

// NewBaseProcess creates an unlaunched process bound to scope.
func NewBaseProcess(scope *Scope) *BaseProcess {
	return &BaseProcess{scope: scope}
}

// Scope returns the bound scope.
func (p *BaseProcess) Scope() *Scope { return p.scope }

// PID returns the assigned pid, or 0 if the process is not live.
func (p *BaseProcess) PID() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pid
}

// Launch registers the process and returns its pid. Relaunching a live
// process returns the existing pid.
func (p *BaseProcess) Launch() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.pid == 0 {
		p.pid = p.scope.System().AllocateProcess(p)
	}
	return p.pid
}

// Terminate deregisters the process. A no-op when not live.
func (p *BaseProcess) Terminate() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.pid != 0 {
		p.scope.System().DeallocateProcess(p.pid)
		p.pid = 0
	}
}
