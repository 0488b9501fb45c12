package supervisor

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentswarm/core"
	"github.com/hupe1980/agentswarm/store"
)

// fakeLookup resolves agent ids to definitions from a fixed map; ids listed
// in failing return an error instead.
type fakeLookup struct {
	defs    map[string]core.AgentDefinition
	failing map[string]bool
}

var _ core.AgentLookup = (*fakeLookup)(nil)

func (l *fakeLookup) GetByID(id, ownerID string) (core.AgentDefinition, error) {
	if l.failing[id] {
		return core.AgentDefinition{}, errors.New("lookup backend unavailable")
	}
	def, ok := l.defs[id]
	if !ok || def.OwnerID != ownerID {
		return core.AgentDefinition{}, core.ErrAgentNotFound
	}
	return def, nil
}

func TestRecovery_RestartsActiveAgents(t *testing.T) {
	st := store.NewInMemoryStore()
	ctx := context.Background()

	// Simulate a previous process: two running agents, one stopped.
	require.NoError(t, st.UpsertAgent(ctx, core.AgentRecord{ID: "a", OwnerID: "owner-1", Status: core.StatusRunning}))
	require.NoError(t, st.UpsertAgent(ctx, core.AgentRecord{ID: "b", OwnerID: "owner-1", Status: core.StatusStarting}))
	require.NoError(t, st.UpsertAgent(ctx, core.AgentRecord{ID: "c", OwnerID: "owner-1", Status: core.StatusStopped}))

	sup := New(st, newFakeFactory(false))
	lookup := &fakeLookup{defs: map[string]core.AgentDefinition{
		"a": testDef("a"),
		"b": testDef("b"),
		"c": testDef("c"),
	}}

	recovered, err := NewRecovery(sup, st, lookup).RecoverAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, recovered)

	assert.True(t, sup.IsActive("a"))
	assert.True(t, sup.IsActive("b"))
	assert.False(t, sup.IsActive("c"))
}

func TestRecovery_LookupFailureDoesNotAbortSweep(t *testing.T) {
	st := store.NewInMemoryStore()
	ctx := context.Background()

	require.NoError(t, st.UpsertAgent(ctx, core.AgentRecord{ID: "a", OwnerID: "owner-1", Status: core.StatusRunning}))
	require.NoError(t, st.UpsertAgent(ctx, core.AgentRecord{ID: "b", OwnerID: "owner-1", Status: core.StatusRunning}))

	sup := New(st, newFakeFactory(false))
	lookup := &fakeLookup{
		defs:    map[string]core.AgentDefinition{"a": testDef("a"), "b": testDef("b")},
		failing: map[string]bool{"b": true},
	}

	recovered, err := NewRecovery(sup, st, lookup).RecoverAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, recovered)
	assert.True(t, sup.IsActive("a"))
	assert.False(t, sup.IsActive("b"))
}

func TestRecovery_NothingToRecover(t *testing.T) {
	st := store.NewInMemoryStore()
	sup := New(st, newFakeFactory(false))

	recovered, err := NewRecovery(sup, st, &fakeLookup{}).RecoverAll(context.Background())
	require.NoError(t, err)
	assert.Zero(t, recovered)
}

func TestRecovery_RecoveredAgentAnswersMessages(t *testing.T) {
	st := store.NewInMemoryStore()
	ctx := context.Background()
	require.NoError(t, st.UpsertAgent(ctx, core.AgentRecord{ID: "a", OwnerID: "owner-1", Status: core.StatusRunning}))

	sup := New(st, newFakeFactory(false))
	lookup := &fakeLookup{defs: map[string]core.AgentDefinition{"a": testDef("a")}}

	recovered, err := NewRecovery(sup, st, lookup).RecoverAll(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, recovered)

	resp, err := sup.SendMessage(ctx, "a", core.Message{Type: "task", Content: "resume"})
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, "echo: resume", resp.Response)
}
