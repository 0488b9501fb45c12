package core

// WorkerHandle is the supervisor's view of one isolated execution unit. The
// unit communicates exclusively through the handle's channels; no memory is
// shared with the supervisor, so a crashing unit cannot corrupt supervisor
// bookkeeping.
//
// Event channels follow a strict lifecycle: Ready fires at most once, then
// Outbound carries replies until the unit stops, then Exited delivers the
// final exit code and all channels are closed. Errors may fire at any point
// before exit.
type WorkerHandle interface {
	// Ready is closed once the unit finished initialization and can accept
	// messages.
	Ready() <-chan struct{}

	// Outbound streams correlated replies produced by the unit.
	Outbound() <-chan ResponseEnvelope

	// Errors surfaces fatal unit errors (including recovered panics).
	Errors() <-chan error

	// Exited delivers the unit's exit code exactly once. Zero means clean
	// shutdown; anything else is a crash.
	Exited() <-chan int

	// Post delivers an envelope to the unit's inbound queue. Returns an
	// error if the unit already stopped.
	Post(env Envelope) error

	// Terminate asks the unit to stop. Idempotent; the exit code arrives on
	// Exited.
	Terminate()
}

// WorkerFactory spawns isolated execution units. Implementations must give
// true fault isolation: a panic inside one unit is converted into an error
// plus non-zero exit on its handle instead of propagating.
type WorkerFactory interface {
	Spawn(payload InitPayload) (WorkerHandle, error)
}
