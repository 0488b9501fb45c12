package worker

import (
	"encoding/json"
	"fmt"

	"github.com/hupe1980/agentswarm/core"
	"github.com/hupe1980/agentswarm/ledger"
	"github.com/hupe1980/agentswarm/logging"
)

// Runtime is the handler's view of the executing agent: its immutable
// definition and its transition ledger.
type Runtime struct {
	// Definition is the initialization payload's agent definition.
	Definition core.AgentDefinition

	// Ledger is the agent's transition log. Handlers drive it through the
	// behavioral cycle; it must only be written from the handler goroutine.
	Ledger *ledger.TransitionLog
}

// Handler processes one inbound message and returns the reply. A panicking
// handler crashes the worker: the panic is recovered at the runtime
// boundary and surfaces as an error plus exit code 1 on the handle.
type Handler func(rt *Runtime, msg core.Message) core.MessageResponse

// Options configures a Factory.
type Options struct {
	// Store receives transition proofs from every spawned runtime's
	// ledger. Nil disables proof persistence.
	Store core.Store

	// Handler processes messages. Defaults to GoalCycleHandler.
	Handler Handler

	// QueueSize buffers each runtime's inbound and outbound channels.
	// Defaults to 16.
	QueueSize int

	// Logger receives runtime diagnostics. Defaults to NoOp logger.
	Logger logging.Logger
}

// Factory spawns goroutine-isolated worker runtimes. It implements
// core.WorkerFactory.
type Factory struct {
	store     core.Store
	handler   Handler
	queueSize int
	logger    logging.Logger
}

var _ core.WorkerFactory = (*Factory)(nil)

// NewFactory constructs a Factory with optional overrides.
func NewFactory(optFns ...func(o *Options)) *Factory {
	opts := Options{
		Handler:   GoalCycleHandler,
		QueueSize: 16,
		Logger:    logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Factory{
		store:     opts.Store,
		handler:   opts.Handler,
		queueSize: opts.QueueSize,
		logger:    opts.Logger,
	}
}

// Spawn starts one runtime goroutine for the payload and returns its handle.
// The payload is copied in; the runtime shares no mutable memory with the
// caller.
func (f *Factory) Spawn(payload core.InitPayload) (core.WorkerHandle, error) {
	var signer *ledger.Signer
	var err error
	if payload.PrivateKey != nil {
		signer, err = ledger.NewSignerFromKey(payload.PrivateKey)
	} else {
		signer, err = ledger.NewSigner()
	}
	if err != nil {
		return nil, fmt.Errorf("worker: spawn %s: %w", payload.Definition.ID, err)
	}

	h := newHandle(f.queueSize)
	go f.run(payload.Definition, signer, h)
	return h, nil
}

// run is the runtime goroutine. The deferred recover is the isolation
// boundary required of every worker implementation: a panic anywhere in the
// message loop or handler becomes an error event and exit code 1.
func (f *Factory) run(def core.AgentDefinition, signer *ledger.Signer, h *handle) {
	exitCode := 0
	var log *ledger.TransitionLog

	defer func() {
		if r := recover(); r != nil {
			h.reportError(fmt.Errorf("%w: agent %s: %v", core.ErrWorkerCrash, def.ID, r))
			exitCode = 1
		}
		if log != nil {
			log.Flush()
		}
		h.exited <- exitCode
		close(h.outbound)
	}()

	log = ledger.NewTransitionLog(def.ID, signer, func(o *ledger.Options) {
		o.Store = f.store
		o.Logger = f.logger
	})

	if _, err := log.Transition(core.StateInit, "boot", map[string]any{
		"agent": def.Name,
	}); err != nil {
		panic(err)
	}

	rt := &Runtime{Definition: def, Ledger: log}
	close(h.ready)

	for {
		select {
		case <-h.quit:
			// Reach the terminal state when the current one allows it;
			// mid-cycle terminations leave the chain where it stopped.
			if core.CanTransition(log.CurrentState(), core.StateTerminated) {
				if _, err := log.Transition(core.StateTerminated, "terminate", nil); err != nil {
					f.logger.Warn("terminate transition failed agent_id=%s error=%v", def.ID, err)
				}
			}
			return

		case env := <-h.inbound:
			resp := f.handler(rt, env.Message)
			select {
			case h.outbound <- core.ResponseEnvelope{MessageID: env.MessageID, Response: resp}:
			case <-h.quit:
				return
			}
		}
	}
}

// GoalCycleHandler is the default behavior: task messages drive the ledger
// through the full goal cycle, status and proof messages answer queries over
// it, anything else is rejected.
func GoalCycleHandler(rt *Runtime, msg core.Message) core.MessageResponse {
	switch msg.Type {
	case "task", "goal":
		return runGoalCycle(rt, msg)

	case "status":
		return core.MessageResponse{
			Success:  true,
			Response: string(rt.Ledger.CurrentState()),
		}

	case "proof":
		history := rt.Ledger.History()
		if len(history) == 0 {
			return core.MessageResponse{Success: false, Error: "no transitions recorded"}
		}
		data, err := json.Marshal(history[len(history)-1])
		if err != nil {
			return core.MessageResponse{Success: false, Error: err.Error()}
		}
		return core.MessageResponse{Success: true, Response: string(data)}

	default:
		return core.MessageResponse{
			Success: false,
			Error:   fmt.Sprintf("unknown message type %q", msg.Type),
		}
	}
}

// runGoalCycle walks GOAL_PARSE through COMPLETED for one goal. Each step is
// a committed transition; a rejected edge aborts into ERROR so the failure
// itself is part of the auditable chain.
func runGoalCycle(rt *Runtime, msg core.Message) core.MessageResponse {
	params := map[string]any{"goal": msg.Content}

	// A previous cycle may have aborted; re-enter the cycle through INIT.
	if rt.Ledger.CurrentState() == core.StateError {
		if _, err := rt.Ledger.Transition(core.StateInit, "recover", nil); err != nil {
			return core.MessageResponse{Success: false, Error: err.Error()}
		}
	}

	steps := []struct {
		state  core.AgentState
		action string
	}{
		{core.StateGoalParse, "parse_goal"},
		{core.StatePlanning, "plan"},
		{core.StateExecuting, "execute"},
		{core.StateValidating, "validate"},
		{core.StateReporting, "report"},
		{core.StateCompleted, "complete"},
	}

	for _, step := range steps {
		if _, err := rt.Ledger.Transition(step.state, step.action, params); err != nil {
			if _, errTransition := rt.Ledger.Transition(core.StateError, "abort", map[string]any{
				"cause": err.Error(),
			}); errTransition != nil {
				return core.MessageResponse{Success: false, Error: err.Error()}
			}
			return core.MessageResponse{Success: false, Error: err.Error()}
		}
	}

	return core.MessageResponse{
		Success:  true,
		Response: fmt.Sprintf("goal completed, merkle root %s", rt.Ledger.Root()),
	}
}
