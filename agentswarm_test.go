package agentswarm

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentswarm/core"
	"github.com/hupe1980/agentswarm/store"
)

func TestSwarm_EndToEnd(t *testing.T) {
	swarm := New()
	ctx := context.Background()

	def := core.AgentDefinition{ID: "agent-1", OwnerID: "owner-1", Name: "researcher"}
	require.NoError(t, swarm.StartAgent(ctx, def))
	assert.True(t, swarm.IsActive("agent-1"))
	assert.Equal(t, 1, swarm.ActiveCount())

	resp, err := swarm.SendMessage(ctx, "agent-1", core.Message{Type: "task", Content: "summarize"})
	require.NoError(t, err)
	assert.True(t, resp.Success)

	// After a completed goal cycle the worker serves its latest proof.
	resp, err = swarm.SendMessage(ctx, "agent-1", core.Message{Type: "proof"})
	require.NoError(t, err)
	require.True(t, resp.Success)

	var proof core.Proof
	require.NoError(t, json.Unmarshal([]byte(resp.Response), &proof))
	assert.NotEmpty(t, proof.StateHash)
	assert.NotEmpty(t, proof.Signature)

	require.NoError(t, swarm.StopAgent(ctx, "agent-1"))
	assert.False(t, swarm.IsActive("agent-1"))

	_, err = swarm.SendMessage(ctx, "agent-1", core.Message{Type: "task"})
	assert.ErrorIs(t, err, core.ErrAgentNotActive)
}

func TestSwarm_RecoverAllAcrossInstances(t *testing.T) {
	st := store.NewInMemoryStore()
	ctx := context.Background()

	// First process starts an agent and vanishes without stopping it.
	first := New(func(o *Options) { o.Store = st })
	def := core.AgentDefinition{ID: "agent-1", OwnerID: "owner-1", Name: "researcher"}
	require.NoError(t, first.StartAgent(ctx, def))

	// Second process sees the running record and recovers the agent.
	second := New(func(o *Options) {
		o.Store = st
		o.Lookup = staticLookup{def.ID: def}
	})
	recovered, err := second.RecoverAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, recovered)
	assert.True(t, second.IsActive("agent-1"))

	resp, err := second.SendMessage(ctx, "agent-1", core.Message{Type: "status"})
	require.NoError(t, err)
	assert.True(t, resp.Success)
}

func TestSwarm_Shutdown(t *testing.T) {
	swarm := New(func(o *Options) { o.StartupTimeout = 5 * time.Second })
	ctx := context.Background()

	for _, id := range []string{"a", "b"} {
		require.NoError(t, swarm.StartAgent(ctx, core.AgentDefinition{ID: id, OwnerID: "owner-1"}))
	}
	require.Equal(t, 2, swarm.ActiveCount())

	swarm.Shutdown(ctx)
	assert.Zero(t, swarm.ActiveCount())
}

func TestSwarm_DefRegistryLookup(t *testing.T) {
	swarm := New()
	ctx := context.Background()
	def := core.AgentDefinition{ID: "agent-1", OwnerID: "owner-1", Name: "researcher"}
	require.NoError(t, swarm.StartAgent(ctx, def))

	got, err := swarm.defs.GetByID("agent-1", "owner-1")
	require.NoError(t, err)
	assert.Equal(t, def, got)

	_, err = swarm.defs.GetByID("agent-1", "someone-else")
	assert.ErrorIs(t, err, core.ErrAgentNotFound)

	_, err = swarm.defs.GetByID("unknown", "owner-1")
	assert.ErrorIs(t, err, core.ErrAgentNotFound)
}

// staticLookup resolves definitions from a fixed map.
type staticLookup map[string]core.AgentDefinition

func (l staticLookup) GetByID(id, ownerID string) (core.AgentDefinition, error) {
	def, ok := l[id]
	if !ok || def.OwnerID != ownerID {
		return core.AgentDefinition{}, core.ErrAgentNotFound
	}
	return def, nil
}
