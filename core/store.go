package core

import (
	"context"
	"time"
)

// Store persists agent runtime records, lifecycle logs and transition
// proofs. The supervisor is the only writer of lifecycle status for a given
// agent, so last-writer-wins upsert semantics are sufficient; the store must
// still serialize concurrent writes to the same record.
//
// Proof writes happen on a fire-and-forget path: a failed write is logged
// and never rolls back the in-memory transition. The audit trail may lag
// behind true state — an accepted tradeoff favoring liveness.
type Store interface {
	// UpsertAgent creates or replaces the runtime record for record.ID.
	UpsertAgent(ctx context.Context, record AgentRecord) error

	// GetAgent returns the runtime record for id, or ErrAgentNotFound.
	GetAgent(ctx context.Context, id string) (AgentRecord, error)

	// ActiveAgents returns every record whose status is starting or
	// running. Read in bulk only by boot recovery.
	ActiveAgents(ctx context.Context) ([]AgentRecord, error)

	// UpdateStatus sets the lifecycle status (and optional last error) for
	// id, refreshing LastActive and UpdatedAt.
	UpdateStatus(ctx context.Context, id string, status AgentStatus, lastError string) error

	// AppendLog appends one lifecycle log entry.
	AppendLog(ctx context.Context, entry LogEntry) error

	// Logs returns entries for agentID within [from, to], oldest first.
	// Zero bounds are open-ended.
	Logs(ctx context.Context, agentID string, from, to time.Time) ([]LogEntry, error)

	// AppendProof appends one transition proof to the agent's audit trail.
	AppendProof(ctx context.Context, agentID string, proof Proof) error

	// Proofs returns the agent's persisted proof chain in append order.
	Proofs(ctx context.Context, agentID string) ([]Proof, error)
}
