// Package runtime implements the local execution runtime root: a single
// process-wide System that owns the HAL driver and device registries,
// the worker pool, named queues, and the table of live logical
// processes.
//
// Lifecycle is two-phase. Drivers, devices, and nodes register before
// FinishInitialization seals configuration; queues, workers, scopes,
// and processes are created afterwards, until Shutdown tears everything
// down in strict dependency order.
package runtime

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/InferOS/runtime/internal/hal"
	"github.com/GriffinCanCode/InferOS/runtime/internal/infrastructure/logging"
	"github.com/GriffinCanCode/InferOS/runtime/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/InferOS/runtime/internal/vm"
)

// Node describes one topology node. Fixed once InitializeNodes runs.
type Node struct {
	ID int
}

// System is the root aggregate. One mutex serializes all registry
// mutation and lookup; it is never held across a blocking call (thread
// join, initializer callback, VM or driver teardown).
type System struct {
	id       string
	log      *logging.Logger
	metrics  *monitoring.Metrics
	executor *blockingExecutor

	mu          sync.Mutex
	vmInstance  *vm.Instance // Protected by mu; exclusively owned
	initialized bool
	shutdown    bool

	nodes []Node

	halDrivers   map[string]hal.Driver
	devices      []hal.Device // registration order, stable after sealing
	namedDevices map[string]hal.Device

	queues       []*Queue
	queuesByName map[string]*Queue

	workers            []*Worker
	workersByName      map[string]*Worker
	workerInitializers []func(*Worker) // frozen once any worker exists

	processesByPID map[int64]Process
	nextPID        int64 // monotonic, never reused
}

// New constructs a System with its owned VM instance and blocking
// executor. Construction failure never returns a partial System.
func New(log *logging.Logger) (*System, error) {
	if log == nil {
		log = logging.NewDefault()
	}

	inst, err := vm.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create vm instance: %w", err)
	}

	return &System{
		id:             uuid.New().String(),
		log:            log,
		executor:       newBlockingExecutor(),
		vmInstance:     inst,
		halDrivers:     make(map[string]hal.Driver),
		namedDevices:   make(map[string]hal.Device),
		queuesByName:   make(map[string]*Queue),
		workersByName:  make(map[string]*Worker),
		processesByPID: make(map[int64]Process),
		nextPID:        1,
	}, nil
}

// WithMetrics attaches a metrics collector.
func (s *System) WithMetrics(m *monitoring.Metrics) *System {
	s.metrics = m
	return s
}

// ID returns the System instance id.
func (s *System) ID() string { return s.id }

// VM returns the owned VM instance, or nil after shutdown.
func (s *System) VM() *vm.Instance {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.vmInstance
}

// requireConfigPhase fails once configuration has been sealed.
// Caller must hold mu.
func (s *System) requireConfigPhase(op string) error {
	if s.initialized {
		return fmt.Errorf("%s after FinishInitialization: %w", op, ErrLogic)
	}
	return nil
}

// InitializeNodes populates node descriptors 0..count-1. Pre-init only;
// callable at most once.
func (s *System) InitializeNodes(count int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireConfigPhase("InitializeNodes"); err != nil {
		return err
	}
	if len(s.nodes) != 0 {
		return fmt.Errorf("InitializeNodes called more than once: %w", ErrLogic)
	}
	s.nodes = make([]Node, 0, count)
	for i := 0; i < count; i++ {
		s.nodes = append(s.nodes, Node{ID: i})
	}
	return nil
}

// InitializeHALDriver takes ownership of a driver under moniker.
// Pre-init only; duplicate monikers fail.
func (s *System) InitializeHALDriver(moniker string, driver hal.Driver) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireConfigPhase("InitializeHALDriver"); err != nil {
		return err
	}
	if _, ok := s.halDrivers[moniker]; ok {
		return fmt.Errorf("cannot register multiple hal drivers with moniker %q: %w", moniker, ErrLogic)
	}
	s.halDrivers[moniker] = driver
	return nil
}

// InitializeHALDevice takes ownership of a device, indexing it by name
// and by registration order. Pre-init only; duplicate names fail.
func (s *System) InitializeHALDevice(device hal.Device) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireConfigPhase("InitializeHALDevice"); err != nil {
		return err
	}
	name := device.Name()
	if _, ok := s.namedDevices[name]; ok {
		return fmt.Errorf("cannot register device %q multiple times: %w", name, ErrLogic)
	}
	s.namedDevices[name] = device
	s.devices = append(s.devices, device)
	return nil
}

// FinishInitialization seals configuration. Irreversible; a second call
// fails.
func (s *System) FinishInitialization() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireConfigPhase("FinishInitialization"); err != nil {
		return err
	}
	s.initialized = true
	s.log.Info("system initialization sealed",
		zap.String("system", s.id),
		zap.Int("nodes", len(s.nodes)),
		zap.Int("drivers", len(s.halDrivers)),
		zap.Int("devices", len(s.devices)),
	)
	return nil
}

// AddWorkerInitializer appends a callback run against every worker at
// creation. Fails once any worker exists, so every worker sees the same
// initializer set.
func (s *System) AddWorkerInitializer(fn func(*Worker)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.workers) != 0 {
		return fmt.Errorf("AddWorkerInitializer can only be called before workers are created: %w", ErrLogic)
	}
	s.workerInitializers = append(s.workerInitializers, fn)
	return nil
}

// CreateWorker constructs and registers a worker. The initializer
// callbacks and the thread start run outside the lock. The System
// retains ownership of the returned worker.
func (s *System) CreateWorker(opts WorkerOptions) (*Worker, error) {
	s.mu.Lock()
	if opts.Name == InitWorkerName {
		s.mu.Unlock()
		return nil, fmt.Errorf("cannot create worker %q (reserved name): %w", InitWorkerName, ErrInvalidArgument)
	}
	if _, ok := s.workersByName[opts.Name]; ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("cannot create worker with duplicate name %q: %w", opts.Name, ErrInvalidArgument)
	}
	w := newWorker(opts)
	s.workers = append(s.workers, w)
	s.workersByName[opts.Name] = w
	inits := s.workerInitializers
	s.mu.Unlock()

	for _, fn := range inits {
		fn(w)
	}
	if opts.OwnedThread {
		w.Start()
	}

	if s.metrics != nil {
		s.metrics.WorkersTotal.Inc()
		s.metrics.WorkersActive.Inc()
	}
	s.log.Debug("worker created",
		zap.String("worker", opts.Name),
		zap.Bool("owned_thread", opts.OwnedThread),
	)
	return w, nil
}

// InitWorker returns the reserved init worker, creating it lazily on
// first use. The init worker never owns a thread; callbacks submitted
// to it run inline.
func (s *System) InitWorker() *Worker {
	s.mu.Lock()
	if w, ok := s.workersByName[InitWorkerName]; ok {
		s.mu.Unlock()
		return w
	}
	w := newWorker(WorkerOptions{Name: InitWorkerName, OwnedThread: false})
	s.workers = append(s.workers, w)
	s.workersByName[InitWorkerName] = w
	inits := s.workerInitializers
	s.mu.Unlock()

	for _, fn := range inits {
		fn(w)
	}
	if s.metrics != nil {
		s.metrics.WorkersTotal.Inc()
		s.metrics.WorkersActive.Inc()
	}
	return w
}

// NamedWorker returns a registered worker by name.
func (s *System) NamedWorker(name string) (*Worker, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.workersByName[name]
	if !ok {
		return nil, fmt.Errorf("worker %q not found: %w", name, ErrInvalidArgument)
	}
	return w, nil
}

// CreateQueue constructs and registers a named queue. The System
// retains ownership of the returned queue.
func (s *System) CreateQueue(opts QueueOptions) (*Queue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.queuesByName[opts.Name]; ok {
		return nil, fmt.Errorf("cannot create queue with duplicate name %q: %w", opts.Name, ErrInvalidArgument)
	}
	q := newQueue(opts)
	s.queues = append(s.queues, q)
	s.queuesByName[opts.Name] = q

	if s.metrics != nil {
		s.metrics.QueuesActive.Inc()
	}
	return q, nil
}

// NamedQueue returns a registered queue by name.
func (s *System) NamedQueue(name string) (*Queue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q, ok := s.queuesByName[name]
	if !ok {
		return nil, fmt.Errorf("queue %q not found: %w", name, ErrInvalidArgument)
	}
	return q, nil
}

// CreateScope binds worker and a device subset under a shared reference
// to this System. The System never retains the Scope.
func (s *System) CreateScope(worker *Worker, devices []hal.Device) *Scope {
	s.mu.Lock()
	defer s.mu.Unlock()

	sc := newScope(s, worker, devices)
	if s.metrics != nil {
		s.metrics.ScopesTotal.Inc()
	}
	return sc
}

// AllocateProcess assigns the next pid to p. Pids only increase and are
// never reissued.
func (s *System) AllocateProcess(p Process) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	pid := s.nextPID
	s.nextPID++
	s.processesByPID[pid] = p

	if s.metrics != nil {
		s.metrics.ProcessesTotal.Inc()
		s.metrics.ProcessesLive.Inc()
	}
	return pid
}

// DeallocateProcess releases a pid. The pid is retired, not recycled.
func (s *System) DeallocateProcess(pid int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.processesByPID[pid]; ok {
		delete(s.processesByPID, pid)
		if s.metrics != nil {
			s.metrics.ProcessesLive.Dec()
		}
	}
}

// RunBlocking executes fn on the shared blocking-task executor, used
// for blocking calls that must not occupy a worker.
func (s *System) RunBlocking(fn func()) error {
	return s.executor.Submit(fn)
}

// Shutdown tears the System down. Idempotent and infallible; a no-op
// when never initialized or already shut down.
//
// Order is a hard contract: workers are killed and drained first, then
// the blocking executor stops, then the VM instance is destroyed, then
// devices close, and drivers close last because a device may reference
// its originating driver during teardown. There is no timeout on the
// worker drain.
func (s *System) Shutdown() {
	var local []*Worker
	s.mu.Lock()
	if !s.initialized || s.shutdown {
		s.mu.Unlock()
		return
	}
	s.shutdown = true
	s.workersByName = make(map[string]*Worker)
	local = s.workers
	s.workers = nil
	s.mu.Unlock()

	start := time.Now()

	s.log.Debug("shutdown: stopping workers", zap.Int("count", len(local)))
	for _, w := range local {
		w.Kill()
	}
	s.log.Debug("shutdown: draining workers")
	for _, w := range local {
		if w.Options().OwnedThread {
			w.WaitForShutdown()
		}
	}
	s.log.Debug("shutdown: stopping blocking executor")
	s.executor.Kill()

	// Swap the heavyweight registries out under the lock, then tear
	// down on the local snapshots without the lock held.
	s.mu.Lock()
	inst := s.vmInstance
	s.vmInstance = nil
	devices := s.devices
	s.devices = nil
	s.namedDevices = make(map[string]hal.Device)
	drivers := s.halDrivers
	s.halDrivers = make(map[string]hal.Driver)
	s.mu.Unlock()

	s.log.Debug("shutdown: destroying vm instance")
	if inst != nil {
		if err := inst.Close(); err != nil {
			s.log.Warn("vm instance teardown failed", zap.Error(err))
		}
	}

	s.log.Debug("shutdown: clearing devices")
	for _, d := range devices {
		if err := d.Close(); err != nil {
			s.log.Warn("device teardown failed", zap.String("device", d.Name()), zap.Error(err))
		}
	}

	s.log.Debug("shutdown: clearing hal drivers")
	for moniker, drv := range drivers {
		if err := drv.Close(); err != nil {
			s.log.Warn("driver teardown failed", zap.String("moniker", moniker), zap.Error(err))
		}
	}

	if s.metrics != nil {
		s.metrics.ShutdownSeconds.Set(time.Since(start).Seconds())
		s.metrics.WorkersActive.Set(0)
		s.metrics.QueuesActive.Set(0)
	}
	s.log.Info("system shutdown complete",
		zap.String("system", s.id),
		zap.Duration("elapsed", time.Since(start)),
	)
}

// Close shuts the System down if the embedder has not already done so.
// Implicit shutdown works but cannot be sequenced by the application,
// so it emits a warning.
func (s *System) Close() error {
	s.mu.Lock()
	needsShutdown := s.initialized && !s.shutdown
	s.mu.Unlock()

	if needsShutdown {
		s.log.Warn("implicit Shutdown from Close; call Shutdown explicitly for maximum stability")
		s.Shutdown()
	}
	return nil
}

// Nodes returns the node topology.
func (s *System) Nodes() []Node {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Node, len(s.nodes))
	copy(out, s.nodes)
	return out
}

// Devices returns registered devices in registration order.
func (s *System) Devices() []hal.Device {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]hal.Device, len(s.devices))
	copy(out, s.devices)
	return out
}

// NamedDevice returns a registered device by name.
func (s *System) NamedDevice(name string) (hal.Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.namedDevices[name]
	if !ok {
		return nil, fmt.Errorf("device %q not found: %w", name, ErrInvalidArgument)
	}
	return d, nil
}

// HALDriver returns a registered driver by moniker.
func (s *System) HALDriver(moniker string) (hal.Driver, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.halDrivers[moniker]
	if !ok {
		return nil, fmt.Errorf("hal driver %q not found: %w", moniker, ErrInvalidArgument)
	}
	return d, nil
}

// Stats is a point-in-time registry snapshot for diagnostics.
type Stats struct {
	ID            string `json:"id"`
	Initialized   bool   `json:"initialized"`
	Shutdown      bool   `json:"shutdown"`
	Nodes         int    `json:"nodes"`
	Drivers       int    `json:"drivers"`
	Devices       int    `json:"devices"`
	Queues        int    `json:"queues"`
	Workers       int    `json:"workers"`
	LiveProcesses int    `json:"live_processes"`
	NextPID       int64  `json:"next_pid"`
}

// Stats returns a snapshot of the System's registries.
func (s *System) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Stats{
		ID:            s.id,
		Initialized:   s.initialized,
		Shutdown:      s.shutdown,
		Nodes:         len(s.nodes),
		Drivers:       len(s.halDrivers),
		Devices:       len(s.devices),
		Queues:        len(s.queues),
		Workers:       len(s.workers),
		LiveProcesses: len(s.processesByPID),
		NextPID:       s.nextPID,
	}
}
