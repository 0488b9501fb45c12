package core

import "time"

// AgentStatus is the persisted lifecycle status of an agent. It mirrors
// supervisor decisions and is the single source of truth for which agents
// should be running after a process restart.
type AgentStatus string

const (
	// StatusStarting is persisted before the worker is spawned.
	StatusStarting AgentStatus = "starting"
	// StatusRunning is persisted once the worker signalled ready.
	StatusRunning AgentStatus = "running"
	// StatusStopping is persisted while a stop is in flight.
	StatusStopping AgentStatus = "stopping"
	// StatusStopped is persisted after the worker terminated cleanly.
	StatusStopped AgentStatus = "stopped"
	// StatusError is persisted after a startup timeout or worker crash.
	StatusError AgentStatus = "error"
)

// AgentRecord is the persisted runtime record for one agent. The supervisor
// exclusively owns it; persistence is consulted in bulk only during boot
// recovery, never polled during steady-state operation.
type AgentRecord struct {
	ID         string            `json:"id"`
	OwnerID    string            `json:"owner_id"`
	Status     AgentStatus       `json:"status"`
	LastActive time.Time         `json:"last_active"`
	LastError  string            `json:"last_error,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

// Clone returns a deep copy safe for independent mutation.
func (r AgentRecord) Clone() AgentRecord {
	clone := r
	if r.Metadata != nil {
		clone.Metadata = make(map[string]string, len(r.Metadata))
		for k, v := range r.Metadata {
			clone.Metadata[k] = v
		}
	}
	return clone
}

// Severity classifies a lifecycle log entry.
type Severity string

const (
	// SeverityInfo marks routine lifecycle events (start, stop, recover).
	SeverityInfo Severity = "info"
	// SeverityWarn marks degraded but non-fatal events (crash, timeout).
	SeverityWarn Severity = "warn"
	// SeverityError marks failures the caller should investigate.
	SeverityError Severity = "error"
)

// LogEntry is one append-only lifecycle event written by the supervisor or
// recovery path. Entries are never updated or deleted.
type LogEntry struct {
	ID        string            `json:"id"`
	AgentID   string            `json:"agent_id"`
	Severity  Severity          `json:"severity"`
	Message   string            `json:"message"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}
