// Package agentswarm provides a high-level façade over the supervisor,
// mailbox, worker and ledger packages enabling rapid construction of
// supervised agent swarms with verifiable state-transition histories. Most
// applications interact with this package by:
//  1. Creating a Swarm via New() (optionally overriding the in-memory store)
//  2. Starting agents from their definitions (StartAgent)
//  3. Sending messages and collecting responses (SendMessage)
//  4. Recovering previously active agents after a restart (RecoverAll)
//
// The façade delegates lifecycle decisions to supervisor.Supervisor while
// keeping setup and usage ergonomics concise. All defaults are safe for local
// development and testing; production deployments typically supply the
// SQLite-backed store, an external agent lookup and a structured logger.
package agentswarm

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/agentswarm/config"
	"github.com/hupe1980/agentswarm/core"
	"github.com/hupe1980/agentswarm/logging"
	"github.com/hupe1980/agentswarm/mailbox"
	"github.com/hupe1980/agentswarm/store"
	"github.com/hupe1980/agentswarm/store/sqlite"
	"github.com/hupe1980/agentswarm/supervisor"
	"github.com/hupe1980/agentswarm/worker"
)

// Options configures the Swarm instance.
type Options struct {
	// StartupTimeout bounds the wait for a worker's ready signal.
	// Defaults to supervisor.DefaultStartupTimeout.
	StartupTimeout time.Duration

	// QueueSize is the per-agent inbound mailbox capacity.
	QueueSize int

	// Store persists agent records, lifecycle logs and proofs. Defaults to
	// the in-memory implementation.
	Store core.Store

	// Factory spawns worker units. Defaults to the goroutine-isolated
	// worker factory with the goal-cycle handler.
	Factory core.WorkerFactory

	// Lookup resolves agent ids to definitions during recovery. When nil,
	// definitions passed to StartAgent are remembered in-process, which is
	// enough for tests and single-process restarts of the in-memory store.
	Lookup core.AgentLookup

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// Swarm is the high-level façade aggregating the supervisor and its
// collaborators.
type Swarm struct {
	opts       Options
	supervisor *supervisor.Supervisor
	recovery   *supervisor.Recovery
	defs       *defRegistry
}

// New creates a new Swarm instance with optional overrides. Any unset
// collaborator is initialized with an in-memory implementation.
func New(optFns ...func(o *Options)) *Swarm {
	opts := Options{
		StartupTimeout: supervisor.DefaultStartupTimeout,
		QueueSize:      16,
		Store:          store.NewInMemoryStore(),
		Logger:         logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Factory == nil {
		opts.Factory = worker.NewFactory(func(o *worker.Options) {
			o.Store = opts.Store
			o.QueueSize = opts.QueueSize
			o.Logger = opts.Logger
		})
	}

	defs := newDefRegistry()
	lookup := opts.Lookup
	if lookup == nil {
		lookup = defs
	}

	mb := mailbox.New(func(o *mailbox.Options) {
		o.QueueSize = opts.QueueSize
		o.Logger = opts.Logger
	})

	sup := supervisor.New(opts.Store, opts.Factory, func(o *supervisor.Options) {
		o.StartupTimeout = opts.StartupTimeout
		o.Mailbox = mb
		o.Logger = opts.Logger
	})

	return &Swarm{
		opts:       opts,
		supervisor: sup,
		recovery:   supervisor.NewRecovery(sup, opts.Store, lookup, func(o *supervisor.RecoveryOptions) { o.Logger = opts.Logger }),
		defs:       defs,
	}
}

// NewFromConfig creates a Swarm from a loaded configuration file. The
// returned close function releases the store when the sqlite driver is
// configured; it is a no-op otherwise.
func NewFromConfig(cfg *config.Config, optFns ...func(o *Options)) (*Swarm, func() error, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	timeout, err := cfg.StartupTimeout()
	if err != nil {
		return nil, nil, err
	}

	var (
		st      core.Store
		closeFn func() error
	)
	switch cfg.Store.Driver {
	case "sqlite":
		s, err := sqlite.Open(cfg.Store.Path, func(o *sqlite.Options) { o.PoolSize = cfg.Store.PoolSize })
		if err != nil {
			return nil, nil, fmt.Errorf("agentswarm: opening sqlite store: %w", err)
		}
		st = s
		closeFn = s.Close
	default:
		st = store.NewInMemoryStore()
		closeFn = func() error { return nil }
	}

	swarm := New(append([]func(o *Options){func(o *Options) {
		o.StartupTimeout = timeout
		o.QueueSize = cfg.Mailbox.QueueSize
		o.Store = st
		o.Logger = logging.NewSlogLogger(logLevel(cfg.Logging.Level), "", false)
	}}, optFns...)...)

	return swarm, closeFn, nil
}

func logLevel(level string) logging.LogLevel {
	switch level {
	case "debug":
		return logging.LogLevelDebug
	case "warn":
		return logging.LogLevelWarn
	case "error":
		return logging.LogLevelError
	default:
		return logging.LogLevelInfo
	}
}

// StartAgent spawns and supervises the worker unit for def.
func (s *Swarm) StartAgent(ctx context.Context, def core.AgentDefinition) error {
	if err := s.supervisor.Start(ctx, def); err != nil {
		return err
	}
	s.defs.put(def)
	return nil
}

// StopAgent terminates the agent's worker unit. Idempotent.
func (s *Swarm) StopAgent(ctx context.Context, agentID string) error {
	return s.supervisor.Stop(ctx, agentID)
}

// SendMessage routes msg to the agent and blocks until its response arrives
// or ctx expires.
func (s *Swarm) SendMessage(ctx context.Context, agentID string, msg core.Message) (core.MessageResponse, error) {
	return s.supervisor.SendMessage(ctx, agentID, msg)
}

// IsActive reports whether the agent is in the active set.
func (s *Swarm) IsActive(agentID string) bool { return s.supervisor.IsActive(agentID) }

// ActiveCount returns the number of active agents.
func (s *Swarm) ActiveCount() int { return s.supervisor.ActiveCount() }

// RecoverAll restarts every agent persisted as previously active, returning
// the number successfully recovered.
func (s *Swarm) RecoverAll(ctx context.Context) (int, error) {
	return s.recovery.RecoverAll(ctx)
}

// Shutdown stops all active agents and waits for their cleanup.
func (s *Swarm) Shutdown(ctx context.Context) { s.supervisor.ShutdownAll(ctx) }

// defRegistry is the fallback core.AgentLookup remembering definitions that
// passed through StartAgent.
type defRegistry struct {
	mu   sync.RWMutex
	defs map[string]core.AgentDefinition
}

var _ core.AgentLookup = (*defRegistry)(nil)

func newDefRegistry() *defRegistry {
	return &defRegistry{defs: make(map[string]core.AgentDefinition)}
}

func (r *defRegistry) put(def core.AgentDefinition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defs[def.ID] = def
}

// GetByID implements core.AgentLookup.
func (r *defRegistry) GetByID(id, ownerID string) (core.AgentDefinition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.defs[id]
	if !ok || def.OwnerID != ownerID {
		return core.AgentDefinition{}, fmt.Errorf("%w: %s", core.ErrAgentNotFound, id)
	}
	return def, nil
}
