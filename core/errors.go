package core

import "errors"

var (
	// ErrInvalidTransition is returned when the requested edge is not in
	// the adjacency table for the current state. Caller error,
	// non-retryable; the current state is left unchanged.
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrAgentNotActive is returned when a message targets an agent that
	// is not in the supervisor's active set. The caller must start the
	// agent first.
	ErrAgentNotActive = errors.New("agent not active")

	// ErrAlreadyRunning is returned when starting an agent whose id is
	// already tracked live.
	ErrAlreadyRunning = errors.New("agent already running")

	// ErrStartupTimeout is returned when a spawned unit fails to signal
	// ready within the deadline. Retryable after an explicit stop.
	ErrStartupTimeout = errors.New("worker startup timeout")

	// ErrWorkerCrash marks a unit that reported a fatal error or exited
	// non-zero. Surfaced via lifecycle logs; not auto-retried.
	ErrWorkerCrash = errors.New("worker crashed")

	// ErrAgentNotFound is returned by stores and lookups for unknown ids.
	ErrAgentNotFound = errors.New("agent not found")

	// ErrMailboxClosed is returned when posting to an unregistered or
	// shut-down mailbox queue.
	ErrMailboxClosed = errors.New("mailbox closed")
)
