// Package core provides the foundational domain types, interfaces and error
// taxonomy used by AgentSwarm. It defines the core abstractions for:
//
//   - Agent behavioral states and the legal-transition table
//   - StateTransition / Proof records forming the verifiable ledger
//   - Agent runtime records and lifecycle log entries
//   - Messages, responses and correlation envelopes
//   - Pluggable collaborator contracts (Store, AgentLookup, WorkerFactory)
//
// The package intentionally keeps implementation concerns (persistence,
// supervision, worker runtimes) out of scope, exposing small interfaces to
// enable custom backends and extensions.
package core
