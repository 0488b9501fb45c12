// Package worker provides the built-in core.WorkerFactory: each agent runs
// in its own goroutine behind a panic boundary, communicating with the
// supervisor exclusively through its handle's channels.
//
// A recovered panic is converted into an error event plus a non-zero exit
// code on the handle, so one agent's crash can never corrupt another agent's
// state or the supervisor's bookkeeping. The runtime owns the agent's
// transition ledger and processes one message at a time, which keeps the
// per-agent proof chain strictly sequential.
package worker
