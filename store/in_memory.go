package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/agentswarm/core"
)

// InMemoryStore is a volatile core.Store implementation keeping all records
// in process-local maps. It is safe for concurrent access. Returned records
// are cloned to prevent external mutation of internal state.
type InMemoryStore struct {
	mu     sync.RWMutex
	agents map[string]core.AgentRecord
	logs   map[string][]core.LogEntry
	proofs map[string][]core.Proof
}

var _ core.Store = (*InMemoryStore)(nil)

// NewInMemoryStore constructs an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		agents: make(map[string]core.AgentRecord),
		logs:   make(map[string][]core.LogEntry),
		proofs: make(map[string][]core.Proof),
	}
}

// UpsertAgent creates or replaces the runtime record for record.ID. The
// original CreatedAt survives a replace; UpdatedAt is refreshed.
func (s *InMemoryStore) UpsertAgent(_ context.Context, record core.AgentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.agents[record.ID]; ok {
		record.CreatedAt = existing.CreatedAt
	}
	record.UpdatedAt = time.Now().UTC()
	s.agents[record.ID] = record.Clone()
	return nil
}

// GetAgent returns the record for id or core.ErrAgentNotFound.
func (s *InMemoryStore) GetAgent(_ context.Context, id string) (core.AgentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.agents[id]
	if !ok {
		return core.AgentRecord{}, fmt.Errorf("%w: %s", core.ErrAgentNotFound, id)
	}
	return record.Clone(), nil
}

// ActiveAgents returns every record with status starting or running.
func (s *InMemoryStore) ActiveAgents(_ context.Context) ([]core.AgentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var active []core.AgentRecord
	for _, record := range s.agents {
		if record.Status == core.StatusStarting || record.Status == core.StatusRunning {
			active = append(active, record.Clone())
		}
	}
	return active, nil
}

// UpdateStatus sets the lifecycle status and last error for id, refreshing
// LastActive and UpdatedAt. Unknown ids return core.ErrAgentNotFound.
func (s *InMemoryStore) UpdateStatus(_ context.Context, id string, status core.AgentStatus, lastError string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.agents[id]
	if !ok {
		return fmt.Errorf("%w: %s", core.ErrAgentNotFound, id)
	}
	record.Status = status
	record.LastError = lastError
	record.LastActive = time.Now().UTC()
	record.UpdatedAt = time.Now().UTC()
	s.agents[id] = record
	return nil
}

// AppendLog appends one lifecycle log entry.
func (s *InMemoryStore) AppendLog(_ context.Context, entry core.LogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs[entry.AgentID] = append(s.logs[entry.AgentID], entry)
	return nil
}

// Logs returns entries for agentID within [from, to], oldest first. Zero
// bounds are open-ended.
func (s *InMemoryStore) Logs(_ context.Context, agentID string, from, to time.Time) ([]core.LogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.LogEntry
	for _, entry := range s.logs[agentID] {
		if !from.IsZero() && entry.Timestamp.Before(from) {
			continue
		}
		if !to.IsZero() && entry.Timestamp.After(to) {
			continue
		}
		out = append(out, entry)
	}
	return out, nil
}

// AppendProof appends one transition proof to the agent's audit trail.
func (s *InMemoryStore) AppendProof(_ context.Context, agentID string, proof core.Proof) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.proofs[agentID] = append(s.proofs[agentID], proof)
	return nil
}

// Proofs returns the persisted proof chain for agentID in append order.
func (s *InMemoryStore) Proofs(_ context.Context, agentID string) ([]core.Proof, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]core.Proof(nil), s.proofs[agentID]...), nil
}
