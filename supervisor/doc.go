// Package supervisor manages the swarm: it spawns one isolated worker unit
// per agent, wires the unit through the mailbox, persists every lifecycle
// decision and reacts to crash and exit signals.
//
// The Supervisor exclusively owns the set of live units and the mailbox
// registrations. Persistence is the durable mirror of its decisions,
// consulted in bulk only by the boot-time Recovery sweep — never polled
// during steady-state operation. A crashed unit is logged and cleaned up but
// not auto-restarted; restart policy belongs to a higher layer that decides
// based on the persisted last error.
package supervisor
