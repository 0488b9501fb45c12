package supervisor

import (
	"context"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentswarm/core"
	"github.com/hupe1980/agentswarm/internal/testutil"
	"github.com/hupe1980/agentswarm/mailbox"
	"github.com/hupe1980/agentswarm/store"
)

// fakeHandle is a scriptable core.WorkerHandle. The echo loop replies to
// every envelope; crash injection happens through exit.
type fakeHandle struct {
	ready    chan struct{}
	outbound chan core.ResponseEnvelope
	errs     chan error
	exited   chan int
	inbound  chan core.Envelope
	quit     chan struct{}
	die      chan int
	quitOnce sync.Once
}

var _ core.WorkerHandle = (*fakeHandle)(nil)

func newFakeHandle() *fakeHandle {
	return &fakeHandle{
		ready:    make(chan struct{}),
		outbound: make(chan core.ResponseEnvelope, 16),
		errs:     make(chan error, 1),
		exited:   make(chan int, 1),
		inbound:  make(chan core.Envelope, 16),
		quit:     make(chan struct{}),
		die:      make(chan int),
	}
}

func (h *fakeHandle) Ready() <-chan struct{}                 { return h.ready }
func (h *fakeHandle) Outbound() <-chan core.ResponseEnvelope { return h.outbound }
func (h *fakeHandle) Errors() <-chan error                   { return h.errs }
func (h *fakeHandle) Exited() <-chan int                     { return h.exited }

func (h *fakeHandle) Post(env core.Envelope) error {
	select {
	case <-h.quit:
		return core.ErrWorkerCrash
	case h.inbound <- env:
		return nil
	}
}

func (h *fakeHandle) Terminate() { h.quitOnce.Do(func() { close(h.quit) }) }

// echoLoop signals ready and answers every envelope until terminated.
func (h *fakeHandle) echoLoop() {
	close(h.ready)
	for {
		select {
		case <-h.quit:
			h.exited <- 0
			close(h.outbound)
			return
		case code := <-h.die:
			h.exited <- code
			close(h.outbound)
			return
		case env := <-h.inbound:
			h.outbound <- core.ResponseEnvelope{
				MessageID: env.MessageID,
				Response:  core.MessageResponse{Success: true, Response: "echo: " + env.Message.Content},
			}
		}
	}
}

// exit makes the echo loop die on its own with the given code.
func (h *fakeHandle) exit(code int) { h.die <- code }

// fakeFactory spawns fakeHandles. With silent=true the handle never signals
// ready, simulating a hung worker.
type fakeFactory struct {
	silent bool

	mu      sync.Mutex
	handles map[string]*fakeHandle
}

var _ core.WorkerFactory = (*fakeFactory)(nil)

func newFakeFactory(silent bool) *fakeFactory {
	return &fakeFactory{silent: silent, handles: make(map[string]*fakeHandle)}
}

func (f *fakeFactory) Spawn(payload core.InitPayload) (core.WorkerHandle, error) {
	h := newFakeHandle()
	f.mu.Lock()
	f.handles[payload.Definition.ID] = h
	f.mu.Unlock()
	if !f.silent {
		go h.echoLoop()
	}
	return h, nil
}

func (f *fakeFactory) handle(id string) *fakeHandle {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.handles[id]
}

func testDef(id string) core.AgentDefinition {
	return testutil.NewDefinitionBuilder(id).Build()
}

func TestSupervisor_StartAndSend(t *testing.T) {
	st := store.NewInMemoryStore()
	sup := New(st, newFakeFactory(false))
	ctx := context.Background()

	require.NoError(t, sup.Start(ctx, testDef("a")))
	assert.True(t, sup.IsActive("a"))
	assert.Equal(t, 1, sup.ActiveCount())

	record, err := st.GetAgent(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, core.StatusRunning, record.Status)

	resp, err := sup.SendMessage(ctx, "a", core.Message{Type: "task", Content: "hi"})
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, "echo: hi", resp.Response)
}

func TestSupervisor_StartDuplicateFails(t *testing.T) {
	st := store.NewInMemoryStore()
	sup := New(st, newFakeFactory(false))
	ctx := context.Background()

	require.NoError(t, sup.Start(ctx, testDef("a")))
	err := sup.Start(ctx, testDef("a"))
	assert.ErrorIs(t, err, core.ErrAlreadyRunning)

	// The failed attempt changes neither the active set nor persistence.
	assert.Equal(t, 1, sup.ActiveCount())
	record, err := st.GetAgent(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, core.StatusRunning, record.Status)
}

func TestSupervisor_StartupTimeout(t *testing.T) {
	st := store.NewInMemoryStore()
	sup := New(st, newFakeFactory(true), func(o *Options) {
		o.StartupTimeout = 50 * time.Millisecond
	})
	ctx := context.Background()

	err := sup.Start(ctx, testDef("a"))
	assert.ErrorIs(t, err, core.ErrStartupTimeout)
	assert.False(t, sup.IsActive("a"))
	assert.Zero(t, sup.ActiveCount())

	record, err := st.GetAgent(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, core.StatusError, record.Status)

	// The timed-out unit stays tracked until an explicit Stop; only then
	// is a retry permitted.
	assert.ErrorIs(t, sup.Start(ctx, testDef("a")), core.ErrAlreadyRunning)
	require.NoError(t, sup.Stop(ctx, "a"))
	assert.ErrorIs(t, sup.Start(ctx, testDef("a")), core.ErrStartupTimeout)
}

func TestSupervisor_SendToInactiveAgent(t *testing.T) {
	st := store.NewInMemoryStore()
	mb := mailbox.New()
	sup := New(st, newFakeFactory(false), func(o *Options) { o.Mailbox = mb })

	_, err := sup.SendMessage(context.Background(), "ghost", core.Message{Type: "task"})
	assert.ErrorIs(t, err, core.ErrAgentNotActive)
	// The gate fires before the mailbox is touched.
	assert.Zero(t, mb.PendingCount())
}

func TestSupervisor_StopIsIdempotent(t *testing.T) {
	st := store.NewInMemoryStore()
	sup := New(st, newFakeFactory(false))
	ctx := context.Background()

	require.NoError(t, sup.Start(ctx, testDef("a")))
	require.NoError(t, sup.Stop(ctx, "a"))
	assert.False(t, sup.IsActive("a"))

	record, err := st.GetAgent(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, core.StatusStopped, record.Status)

	// Second stop and stop of a never-started agent are no-ops.
	assert.NoError(t, sup.Stop(ctx, "a"))
	assert.NoError(t, sup.Stop(ctx, "never-started"))
}

func TestSupervisor_WorkerExitNonZeroTripsCrashPath(t *testing.T) {
	st := store.NewInMemoryStore()
	factory := newFakeFactory(false)
	sup := New(st, factory)
	ctx := context.Background()

	require.NoError(t, sup.Start(ctx, testDef("b")))
	require.True(t, sup.IsActive("b"))

	// Unit dies on its own with exit code 1; no API-layer call involved.
	factory.handle("b").exit(1)

	require.Eventually(t, func() bool { return !sup.IsActive("b") }, 2*time.Second, 10*time.Millisecond)

	record, err := st.GetAgent(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, core.StatusError, record.Status)
	assert.NotEmpty(t, record.LastError)

	logs, err := st.Logs(ctx, "b", time.Time{}, time.Time{})
	require.NoError(t, err)
	var sawCrash bool
	for _, entry := range logs {
		if entry.Severity == core.SeverityWarn {
			sawCrash = true
		}
	}
	assert.True(t, sawCrash, "expected a warn-level crash log entry")
}

func TestSupervisor_ShutdownAll(t *testing.T) {
	st := store.NewInMemoryStore()
	sup := New(st, newFakeFactory(false))
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, sup.Start(ctx, testDef(id)))
	}
	require.Equal(t, 3, sup.ActiveCount())

	sup.ShutdownAll(ctx)
	assert.Zero(t, sup.ActiveCount())

	for _, id := range []string{"a", "b", "c"} {
		record, err := st.GetAgent(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, core.StatusStopped, record.Status)
	}
}

func TestSupervisor_StartStopCyclesDoNotLeakGoroutines(t *testing.T) {
	st := store.NewInMemoryStore()
	sup := New(st, newFakeFactory(false))
	ctx := context.Background()

	before := runtime.NumGoroutine()

	for i := 0; i < 40; i++ {
		require.NoError(t, sup.Start(ctx, testDef("a")))
		require.NoError(t, sup.Stop(ctx, "a"))
	}

	// The inbound forwarder of each cycle must wind down with its unit.
	require.Eventually(t, func() bool {
		return runtime.NumGoroutine() <= before+3
	}, 2*time.Second, 10*time.Millisecond, "goroutines before=%d after=%d", before, runtime.NumGoroutine())
}

func TestSupervisor_StopDuringPendingStart(t *testing.T) {
	st := store.NewInMemoryStore()
	factory := newFakeFactory(true)
	sup := New(st, factory)
	ctx := context.Background()

	startErr := make(chan error, 1)
	go func() { startErr <- sup.Start(ctx, testDef("a")) }()

	// Wait until the worker is spawned but still silent, then stop the
	// agent out from under the pending start.
	require.Eventually(t, func() bool { return factory.handle("a") != nil }, 2*time.Second, time.Millisecond)
	require.NoError(t, sup.Stop(ctx, "a"))

	// A late ready signal must not resurrect the stopped unit.
	go factory.handle("a").echoLoop()

	err := <-startErr
	assert.ErrorIs(t, err, core.ErrAgentNotActive)
	assert.False(t, sup.IsActive("a"))
	assert.Zero(t, sup.ActiveCount())

	record, err := st.GetAgent(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, core.StatusStopped, record.Status)
}

func TestSupervisor_IndependentAgentLifecycles(t *testing.T) {
	st := store.NewInMemoryStore()
	factory := newFakeFactory(false)
	sup := New(st, factory)
	ctx := context.Background()

	require.NoError(t, sup.Start(ctx, testDef("a")))
	require.NoError(t, sup.Start(ctx, testDef("b")))

	// Crashing one agent leaves the other untouched.
	factory.handle("a").exit(1)
	require.Eventually(t, func() bool { return !sup.IsActive("a") }, 2*time.Second, 10*time.Millisecond)

	assert.True(t, sup.IsActive("b"))
	resp, err := sup.SendMessage(ctx, "b", core.Message{Type: "task", Content: "still alive"})
	require.NoError(t, err)
	assert.True(t, resp.Success)
}
