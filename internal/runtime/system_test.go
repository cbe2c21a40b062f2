package runtime

import (
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/GriffinCanCode/InferOS/runtime/internal/infrastructure/logging"
)

// recorder collects teardown events from instrumented fakes.
type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) add(event string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	copy(out, r.events)
	return out
}

type fakeDriver struct {
	rec     *recorder
	moniker string
}

func (d *fakeDriver) Close() error {
	d.rec.add("driver:" + d.moniker)
	return nil
}

type fakeDevice struct {
	rec  *recorder
	name string
}

func (d *fakeDevice) Name() string { return d.name }

func (d *fakeDevice) Close() error {
	d.rec.add("device:" + d.name)
	return nil
}

func newTestSystem(t *testing.T) *System {
	t.Helper()
	sys, err := New(logging.NewNop())
	require.NoError(t, err)
	return sys
}

func TestPhaseGating(t *testing.T) {
	sys := newTestSystem(t)
	rec := &recorder{}

	require.NoError(t, sys.InitializeNodes(2))
	require.NoError(t, sys.InitializeHALDriver("gpu0", &fakeDriver{rec: rec, moniker: "gpu0"}))
	require.NoError(t, sys.InitializeHALDevice(&fakeDevice{rec: rec, name: "gpu0:0"}))
	require.NoError(t, sys.FinishInitialization())

	err := sys.InitializeNodes(2)
	assert.ErrorIs(t, err, ErrLogic)
	err = sys.InitializeHALDriver("gpu1", &fakeDriver{rec: rec, moniker: "gpu1"})
	assert.ErrorIs(t, err, ErrLogic)
	err = sys.InitializeHALDevice(&fakeDevice{rec: rec, name: "gpu1:0"})
	assert.ErrorIs(t, err, ErrLogic)
	err = sys.FinishInitialization()
	assert.ErrorIs(t, err, ErrLogic)

	sys.Shutdown()
}

func TestInitializeNodesTwice(t *testing.T) {
	sys := newTestSystem(t)

	require.NoError(t, sys.InitializeNodes(4))
	assert.ErrorIs(t, sys.InitializeNodes(4), ErrLogic)
	assert.Len(t, sys.Nodes(), 4)
}

func TestDuplicateDriverAndDevice(t *testing.T) {
	sys := newTestSystem(t)
	rec := &recorder{}

	require.NoError(t, sys.InitializeHALDriver("cpu", &fakeDriver{rec: rec, moniker: "cpu"}))
	err := sys.InitializeHALDriver("cpu", &fakeDriver{rec: rec, moniker: "cpu"})
	assert.ErrorIs(t, err, ErrLogic)

	dev := &fakeDevice{rec: rec, name: "cpu:0"}
	require.NoError(t, sys.InitializeHALDevice(dev))
	err = sys.InitializeHALDevice(&fakeDevice{rec: rec, name: "cpu:0"})
	assert.ErrorIs(t, err, ErrLogic)

	// The loser left no trace: the original registration is intact.
	got, err := sys.NamedDevice("cpu:0")
	require.NoError(t, err)
	assert.Same(t, dev, got)
	assert.Len(t, sys.Devices(), 1)
}

func TestDuplicateQueueLeavesStateUnchanged(t *testing.T) {
	sys := newTestSystem(t)

	q, err := sys.CreateQueue(QueueOptions{Name: "work"})
	require.NoError(t, err)

	_, err = sys.CreateQueue(QueueOptions{Name: "work"})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	got, err := sys.NamedQueue("work")
	require.NoError(t, err)
	assert.Same(t, q, got)
}

func TestNamedQueueMiss(t *testing.T) {
	sys := newTestSystem(t)

	q, err := sys.NamedQueue("missing")
	assert.Nil(t, q)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestMonotonicPIDs(t *testing.T) {
	sys := newTestSystem(t)

	p1 := struct{ name string }{"p1"}
	p2 := struct{ name string }{"p2"}

	pid1 := sys.AllocateProcess(&p1)
	pid2 := sys.AllocateProcess(&p2)
	assert.Greater(t, pid2, pid1)

	sys.DeallocateProcess(pid1)
	sys.DeallocateProcess(pid2)

	pid3 := sys.AllocateProcess(&p1)
	assert.Greater(t, pid3, pid2, "pids must never be reissued")
}

func TestInitializerFreeze(t *testing.T) {
	sys := newTestSystem(t)

	require.NoError(t, sys.AddWorkerInitializer(func(*Worker) {}))

	_, err := sys.CreateWorker(WorkerOptions{Name: "w1"})
	require.NoError(t, err)

	err = sys.AddWorkerInitializer(func(*Worker) {})
	assert.ErrorIs(t, err, ErrLogic)
}

func TestInitializerFreezeAfterInitWorker(t *testing.T) {
	sys := newTestSystem(t)

	sys.InitWorker()
	err := sys.AddWorkerInitializer(func(*Worker) {})
	assert.ErrorIs(t, err, ErrLogic)
}

func TestInitializersRunOnEveryWorker(t *testing.T) {
	sys := newTestSystem(t)

	var mu sync.Mutex
	seen := make(map[string]int)
	require.NoError(t, sys.AddWorkerInitializer(func(w *Worker) {
		mu.Lock()
		seen[w.Name()]++
		mu.Unlock()
	}))

	_, err := sys.CreateWorker(WorkerOptions{Name: "a"})
	require.NoError(t, err)
	sys.InitWorker()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, seen["a"])
	assert.Equal(t, 1, seen[InitWorkerName])
}

func TestReservedWorkerName(t *testing.T) {
	sys := newTestSystem(t)

	_, err := sys.CreateWorker(WorkerOptions{Name: InitWorkerName})
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestInitWorkerIdempotent(t *testing.T) {
	sys := newTestSystem(t)

	w1 := sys.InitWorker()
	w2 := sys.InitWorker()
	assert.Same(t, w1, w2)
	assert.False(t, w1.Options().OwnedThread)
	assert.Equal(t, InitWorkerName, w1.Name())
}

func TestDuplicateWorkerName(t *testing.T) {
	sys := newTestSystem(t)

	_, err := sys.CreateWorker(WorkerOptions{Name: "w1"})
	require.NoError(t, err)
	_, err = sys.CreateWorker(WorkerOptions{Name: "w1"})
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestShutdownIdempotent(t *testing.T) {
	sys := newTestSystem(t)
	rec := &recorder{}

	require.NoError(t, sys.InitializeHALDriver("cpu", &fakeDriver{rec: rec, moniker: "cpu"}))
	require.NoError(t, sys.InitializeHALDevice(&fakeDevice{rec: rec, name: "cpu:0"}))
	require.NoError(t, sys.FinishInitialization())

	_, err := sys.CreateWorker(WorkerOptions{Name: "w1", OwnedThread: true})
	require.NoError(t, err)

	sys.Shutdown()
	sys.Shutdown()
	sys.Shutdown()

	stats := sys.Stats()
	assert.True(t, stats.Shutdown)
	assert.Zero(t, stats.Workers)
	assert.Zero(t, stats.Devices)
	assert.Zero(t, stats.Drivers)

	// Teardown hooks fired exactly once.
	assert.Equal(t, []string{"device:cpu:0", "driver:cpu"}, rec.snapshot())
}

func TestShutdownBeforeInitializeIsNoop(t *testing.T) {
	sys := newTestSystem(t)
	sys.Shutdown()

	// Configuration is still open.
	assert.NoError(t, sys.InitializeNodes(1))
}

func TestShutdownOrdering(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	sys, err := New(logging.Wrap(zap.New(core)))
	require.NoError(t, err)

	rec := &recorder{}
	require.NoError(t, sys.InitializeHALDriver("gpu0", &fakeDriver{rec: rec, moniker: "gpu0"}))
	require.NoError(t, sys.InitializeHALDevice(&fakeDevice{rec: rec, name: "gpu0:0"}))
	require.NoError(t, sys.FinishInitialization())

	w, err := sys.CreateWorker(WorkerOptions{Name: "w1", OwnedThread: true})
	require.NoError(t, err)

	started := make(chan struct{})
	require.NoError(t, w.Submit(func() {
		close(started)
		<-w.kill
		rec.add("worker:kill-observed")
	}))
	<-started

	sys.Shutdown()

	// Kill signal reached the worker before any heavyweight teardown,
	// and devices cleared before their driver.
	assert.Equal(t, []string{"worker:kill-observed", "device:gpu0:0", "driver:gpu0"}, rec.snapshot())

	// Phase log order: drain workers -> stop executor -> destroy vm ->
	// clear devices -> clear drivers.
	var phases []string
	for _, entry := range logs.All() {
		if entry.Level == zap.DebugLevel && strings.HasPrefix(entry.Message, "shutdown:") {
			phases = append(phases, entry.Message)
		}
	}
	assert.Equal(t, []string{
		"shutdown: stopping workers",
		"shutdown: draining workers",
		"shutdown: stopping blocking executor",
		"shutdown: destroying vm instance",
		"shutdown: clearing devices",
		"shutdown: clearing hal drivers",
	}, phases)

	assert.Nil(t, sys.VM())
}

func TestConcurrentCreateQueue(t *testing.T) {
	sys := newTestSystem(t)

	const n = 16
	var wg sync.WaitGroup
	errs := make([]error, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = sys.CreateQueue(QueueOptions{Name: "contested"})
		}(i)
	}
	wg.Wait()

	var successes, collisions int
	for _, err := range errs {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, ErrInvalidArgument):
			collisions++
		default:
			t.Fatalf("unexpected error kind: %v", err)
		}
	}
	assert.Equal(t, 1, successes)
	assert.Equal(t, n-1, collisions)
}

func TestCreateScope(t *testing.T) {
	sys := newTestSystem(t)
	rec := &recorder{}

	devA := &fakeDevice{rec: rec, name: "cpu:0"}
	devB := &fakeDevice{rec: rec, name: "cpu:1"}
	require.NoError(t, sys.InitializeHALDevice(devA))
	require.NoError(t, sys.InitializeHALDevice(devB))
	require.NoError(t, sys.FinishInitialization())

	w, err := sys.CreateWorker(WorkerOptions{Name: "w1"})
	require.NoError(t, err)

	scope := sys.CreateScope(w, sys.Devices())
	assert.NotEmpty(t, scope.ID())
	assert.Same(t, sys, scope.System())
	assert.Same(t, w, scope.Worker())
	assert.Len(t, scope.Devices(), 2)

	got, err := scope.Device("cpu:1")
	require.NoError(t, err)
	assert.Same(t, devB, got)

	_, err = scope.Device("cpu:7")
	assert.ErrorIs(t, err, ErrInvalidArgument)

	sys.Shutdown()
}

func TestBaseProcessLifecycle(t *testing.T) {
	sys := newTestSystem(t)
	require.NoError(t, sys.FinishInitialization())

	w, err := sys.CreateWorker(WorkerOptions{Name: "w1"})
	require.NoError(t, err)
	scope := sys.CreateScope(w, nil)

	p := NewBaseProcess(scope)
	assert.Zero(t, p.PID())

	pid := p.Launch()
	assert.Equal(t, pid, p.PID())
	assert.Equal(t, pid, p.Launch(), "relaunch returns the live pid")
	assert.Equal(t, 1, sys.Stats().LiveProcesses)

	p.Terminate()
	assert.Zero(t, p.PID())
	assert.Zero(t, sys.Stats().LiveProcesses)

	// A relaunched process gets a fresh, larger pid.
	assert.Greater(t, p.Launch(), pid)

	sys.Shutdown()
}

func TestRunBlocking(t *testing.T) {
	sys := newTestSystem(t)
	require.NoError(t, sys.FinishInitialization())

	done := make(chan struct{})
	require.NoError(t, sys.RunBlocking(func() { close(done) }))
	<-done

	sys.Shutdown()
	assert.ErrorIs(t, sys.RunBlocking(func() {}), ErrLogic)
}

func TestImplicitShutdownWarns(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	sys, err := New(logging.Wrap(zap.New(core)))
	require.NoError(t, err)

	require.NoError(t, sys.FinishInitialization())
	require.NoError(t, sys.Close())

	warned := false
	for _, entry := range logs.All() {
		if entry.Level == zap.WarnLevel {
			warned = true
		}
	}
	assert.True(t, warned, "implicit shutdown must emit a warning")
	assert.True(t, sys.Stats().Shutdown)

	// Close after explicit shutdown stays quiet.
	before := len(logs.All())
	require.NoError(t, sys.Close())
	assert.Equal(t, before, len(logs.All()))
}

func TestNamedWorker(t *testing.T) {
	sys := newTestSystem(t)

	w, err := sys.CreateWorker(WorkerOptions{Name: "w1"})
	require.NoError(t, err)

	got, err := sys.NamedWorker("w1")
	require.NoError(t, err)
	assert.Same(t, w, got)

	_, err = sys.NamedWorker("nope")
	assert.ErrorIs(t, err, ErrInvalidArgument)
}
