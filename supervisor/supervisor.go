package supervisor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hupe1980/agentswarm/core"
	"github.com/hupe1980/agentswarm/logging"
	"github.com/hupe1980/agentswarm/mailbox"
)

// DefaultStartupTimeout bounds the wait for a spawned unit's ready signal.
const DefaultStartupTimeout = 30 * time.Second

// Options configures a Supervisor.
type Options struct {
	// StartupTimeout bounds the wait for a unit's ready signal. Defaults
	// to DefaultStartupTimeout.
	StartupTimeout time.Duration

	// Mailbox routes messages between callers and units. A fresh mailbox
	// is created if nil.
	Mailbox *mailbox.Mailbox

	// Logger receives lifecycle diagnostics. Defaults to NoOp logger.
	Logger logging.Logger
}

// unit is the supervisor-side bookkeeping for one spawned worker.
type unit struct {
	def    core.AgentDefinition
	handle core.WorkerHandle

	// active flips true once the unit signalled ready; a unit that timed
	// out during startup stays tracked but inactive until an explicit Stop.
	active bool

	// pumpDone is closed when the event pump finished cleanup. Nil if the
	// pump never started (startup failure).
	pumpDone chan struct{}
}

// Supervisor creates and destroys isolated worker units, enforces the
// startup deadline and keeps persistence in sync with its decisions. All
// public methods are safe for concurrent use; operations on different agents
// never block each other beyond map access.
type Supervisor struct {
	startupTimeout time.Duration
	store          core.Store
	factory        core.WorkerFactory
	mailbox        *mailbox.Mailbox
	logger         logging.Logger

	mu    sync.RWMutex
	units map[string]*unit
}

// New constructs a Supervisor over the given store and worker factory.
func New(store core.Store, factory core.WorkerFactory, optFns ...func(o *Options)) *Supervisor {
	opts := Options{
		StartupTimeout: DefaultStartupTimeout,
		Logger:         logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Mailbox == nil {
		opts.Mailbox = mailbox.New(func(o *mailbox.Options) { o.Logger = opts.Logger })
	}

	return &Supervisor{
		startupTimeout: opts.StartupTimeout,
		store:          store,
		factory:        factory,
		mailbox:        opts.Mailbox,
		logger:         opts.Logger,
		units:          make(map[string]*unit),
	}
}

// Start spawns the worker unit for def and waits for its ready signal.
//
// Fails with core.ErrAlreadyRunning if the id is already tracked — including
// a unit stuck after a startup timeout, which must be cleared with Stop
// first. On timeout the status is persisted as error and
// core.ErrStartupTimeout is returned; the unit stays spawned but is never
// added to the active set.
func (s *Supervisor) Start(ctx context.Context, def core.AgentDefinition) error {
	s.mu.Lock()
	if _, ok := s.units[def.ID]; ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", core.ErrAlreadyRunning, def.ID)
	}
	u := &unit{def: def}
	s.units[def.ID] = u
	s.mu.Unlock()

	if err := s.store.UpsertAgent(ctx, core.AgentRecord{
		ID:         def.ID,
		OwnerID:    def.OwnerID,
		Status:     core.StatusStarting,
		LastActive: time.Now().UTC(),
		Metadata:   def.Config,
		CreatedAt:  time.Now().UTC(),
		UpdatedAt:  time.Now().UTC(),
	}); err != nil {
		s.untrack(def.ID)
		return fmt.Errorf("supervisor: persisting starting status: %w", err)
	}

	handle, err := s.factory.Spawn(core.InitPayload{Definition: def})
	if err != nil {
		s.untrack(def.ID)
		s.updateStatus(ctx, def.ID, core.StatusError, err.Error())
		return fmt.Errorf("supervisor: spawning worker: %w", err)
	}

	// A concurrent Stop may untrack the unit at any point from here on;
	// the handle is published and later activated under the lock so Stop
	// always sees a consistent unit.
	s.mu.Lock()
	if s.units[def.ID] != u {
		s.mu.Unlock()
		handle.Terminate()
		return fmt.Errorf("%w: %s stopped during startup", core.ErrAgentNotActive, def.ID)
	}
	u.handle = handle
	s.mu.Unlock()
	s.mailbox.Register(def.ID)

	select {
	case <-handle.Ready():
	case spawnErr := <-handle.Errors():
		s.updateStatus(ctx, def.ID, core.StatusError, spawnErr.Error())
		s.appendLog(def.ID, core.SeverityWarn, "worker failed during startup", map[string]string{"error": spawnErr.Error()})
		return fmt.Errorf("supervisor: worker failed during startup: %w", spawnErr)
	case <-time.After(s.startupTimeout):
		s.updateStatus(ctx, def.ID, core.StatusError, "startup timeout")
		s.appendLog(def.ID, core.SeverityWarn, "worker startup timed out", nil)
		return fmt.Errorf("%w: %s", core.ErrStartupTimeout, def.ID)
	case <-ctx.Done():
		s.updateStatus(ctx, def.ID, core.StatusError, ctx.Err().Error())
		return ctx.Err()
	}

	s.mu.Lock()
	if s.units[def.ID] != u {
		s.mu.Unlock()
		handle.Terminate()
		s.mailbox.Unregister(def.ID)
		return fmt.Errorf("%w: %s stopped during startup", core.ErrAgentNotActive, def.ID)
	}
	u.active = true
	u.pumpDone = make(chan struct{})
	s.mu.Unlock()

	go s.pump(u)

	s.updateStatus(ctx, def.ID, core.StatusRunning, "")
	s.appendLog(def.ID, core.SeverityInfo, "agent started", nil)
	s.logger.Info("agent started agent_id=%s", def.ID)
	return nil
}

// Stop terminates the agent's unit, removes it from the tracked set,
// unregisters its mailbox queue and persists the stopped status. Idempotent:
// stopping an unknown or already-stopped agent is a no-op.
func (s *Supervisor) Stop(ctx context.Context, agentID string) error {
	// handle and pumpDone are snapshotted under the lock: a Stop racing an
	// in-flight Start may observe a unit whose handle is not published yet,
	// in which case Start itself terminates the spawned worker when it sees
	// the unit untracked.
	s.mu.Lock()
	u, ok := s.units[agentID]
	var handle core.WorkerHandle
	var pumpDone chan struct{}
	if ok {
		delete(s.units, agentID)
		handle = u.handle
		pumpDone = u.pumpDone
	}
	s.mu.Unlock()
	if !ok {
		return nil
	}

	if handle != nil {
		handle.Terminate()
	}
	if pumpDone != nil {
		select {
		case <-pumpDone:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	s.mailbox.Unregister(agentID)

	s.updateStatus(ctx, agentID, core.StatusStopped, "")
	s.appendLog(agentID, core.SeverityInfo, "agent stopped", nil)
	s.logger.Info("agent stopped agent_id=%s", agentID)
	return nil
}

// SendMessage routes msg to the agent's unit and blocks until its response
// arrives or ctx expires. Fails with core.ErrAgentNotActive before touching
// the mailbox if the agent is not in the active set.
func (s *Supervisor) SendMessage(ctx context.Context, agentID string, msg core.Message) (core.MessageResponse, error) {
	if !s.IsActive(agentID) {
		return core.MessageResponse{}, fmt.Errorf("%w: %s", core.ErrAgentNotActive, agentID)
	}
	return s.mailbox.Send(ctx, agentID, msg)
}

// IsActive reports whether the agent is in the active set. Pure in-memory
// query.
func (s *Supervisor) IsActive(agentID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.units[agentID]
	return ok && u.active
}

// ActiveCount returns the number of agents in the active set.
func (s *Supervisor) ActiveCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, u := range s.units {
		if u.active {
			n++
		}
	}
	return n
}

// ShutdownAll stops every tracked unit concurrently and waits for all stops
// to finish. Safe to call from a signal handler: internal errors are
// swallowed and logged, nothing escapes this boundary.
func (s *Supervisor) ShutdownAll(ctx context.Context) {
	s.mu.RLock()
	ids := make([]string, 0, len(s.units))
	for id := range s.units {
		ids = append(ids, id)
	}
	s.mu.RUnlock()

	var wg sync.WaitGroup
	for _, id := range ids {
		s.logger.Info("shutting down agent agent_id=%s", id)
		wg.Add(1)
		go func(agentID string) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					s.logger.Error("shutdown panic agent_id=%s: %v", agentID, r)
				}
			}()
			if err := s.Stop(ctx, agentID); err != nil {
				s.logger.Warn("shutdown stop failed agent_id=%s error=%v", agentID, err)
			}
		}(id)
	}
	wg.Wait()
}

// pump is the sole consumer of one unit's handle events once it is active.
// Replies flow back into the mailbox; a fatal error or non-zero exit trips
// the crash path. It also forwards the agent's inbound mailbox queue to the
// unit.
func (s *Supervisor) pump(u *unit) {
	defer close(u.pumpDone)

	inbound, err := s.mailbox.Subscribe(u.def.ID)
	if err != nil {
		s.logger.Warn("pump subscribe failed agent_id=%s error=%v", u.def.ID, err)
		return
	}

	// Inbound forwarder: mailbox queue -> worker. Unregister leaves the
	// queue open, so the forwarder must not block on it forever: it exits
	// when Post fails or when the pump finished cleanup, never outliving
	// the unit.
	go func() {
		for {
			select {
			case <-u.pumpDone:
				return
			case env, ok := <-inbound:
				if !ok {
					return
				}
				if err := u.handle.Post(env); err != nil {
					return
				}
			}
		}
	}()

	outbound := u.handle.Outbound()
	for {
		select {
		case resp, ok := <-outbound:
			if !ok {
				outbound = nil
				continue
			}
			s.mailbox.Resolve(resp.MessageID, resp.Response)

		case err := <-u.handle.Errors():
			s.crash(u, 1, err)
			return

		case code := <-u.handle.Exited():
			if code != 0 {
				s.crash(u, code, fmt.Errorf("%w: exit code %d", core.ErrWorkerCrash, code))
				return
			}
			// Clean self-exit or supervisor-driven terminate. Stop handles
			// persistence when it initiated the exit; otherwise mirror the
			// cleanup here.
			s.cleanupAfterExit(u)
			return
		}
	}
}

// crash handles a fatal unit error or non-zero exit: warn log, removal from
// the tracked set, mailbox teardown, and an error status carrying the cause
// for a higher layer's restart decision.
func (s *Supervisor) crash(u *unit, code int, cause error) {
	s.logger.Warn("worker crashed agent_id=%s exit_code=%d error=%v", u.def.ID, code, cause)

	s.untrack(u.def.ID)
	u.handle.Terminate()
	s.mailbox.Unregister(u.def.ID)

	ctx := context.Background()
	s.updateStatus(ctx, u.def.ID, core.StatusError, cause.Error())
	s.appendLog(u.def.ID, core.SeverityWarn, "worker crashed", map[string]string{
		"error":     cause.Error(),
		"exit_code": fmt.Sprintf("%d", code),
	})
}

// cleanupAfterExit mirrors Stop's bookkeeping for units that exited on their
// own. If Stop already untracked the unit this reduces to a mailbox
// unregister that is itself idempotent.
func (s *Supervisor) cleanupAfterExit(u *unit) {
	tracked := s.untrack(u.def.ID)
	s.mailbox.Unregister(u.def.ID)
	if tracked {
		ctx := context.Background()
		s.updateStatus(ctx, u.def.ID, core.StatusStopped, "")
		s.appendLog(u.def.ID, core.SeverityInfo, "worker exited", nil)
	}
}

// untrack removes the unit from the map, reporting whether it was present.
func (s *Supervisor) untrack(agentID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.units[agentID]
	delete(s.units, agentID)
	return ok
}

// updateStatus persists a lifecycle status change. Failures are logged, not
// propagated: persistence mirrors supervisor decisions, it does not gate
// them outside of Start's initial upsert.
func (s *Supervisor) updateStatus(ctx context.Context, agentID string, status core.AgentStatus, lastError string) {
	if err := s.store.UpdateStatus(ctx, agentID, status, lastError); err != nil {
		s.logger.Warn("status update failed agent_id=%s status=%s error=%v", agentID, status, err)
	}
}

// appendLog writes a lifecycle log entry on a best-effort basis.
func (s *Supervisor) appendLog(agentID string, severity core.Severity, message string, metadata map[string]string) {
	entry := core.LogEntry{
		ID:        uuid.NewString(),
		AgentID:   agentID,
		Severity:  severity,
		Message:   message,
		Metadata:  metadata,
		Timestamp: time.Now().UTC(),
	}
	if err := s.store.AppendLog(context.Background(), entry); err != nil {
		s.logger.Warn("lifecycle log append failed agent_id=%s error=%v", agentID, err)
	}
}
