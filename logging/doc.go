// Package logging provides a minimal logging interface and adapters for
// AgentSwarm.
//
// The Logger interface defines the standard logging methods (Debug, Info,
// Warn, Error) that the supervisor, mailbox, ledger and worker runtimes use
// for observability. This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping Go's structured logging
//   - NoOpLogger for silent operation (testing, minimal setups)
//   - SwarmLogger with agent/component context helpers and domain specific
//     helpers for lifecycle and ledger events
//
// The design intentionally keeps the interface minimal to avoid vendor
// lock-in while supporting structured logging where available.
package logging
