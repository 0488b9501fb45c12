package testutil

import (
	"time"

	"github.com/hupe1980/agentswarm/core"
)

// TransitionBuilder provides a fluent helper for constructing state
// transitions in tests. Example:
//
//	t := NewTransitionBuilder().From(core.StateIdle).To(core.StateInit).Action("boot").Build()
//
// Chain only the parts you need; sensible defaults are applied.
type TransitionBuilder struct {
	from      core.AgentState
	to        core.AgentState
	action    string
	params    map[string]any
	timestamp time.Time
}

// NewTransitionBuilder creates a builder defaulting to the boot edge
// IDLE -> INIT at a fixed timestamp, keeping hashes deterministic unless a
// test overrides them.
func NewTransitionBuilder() *TransitionBuilder {
	return &TransitionBuilder{
		from:      core.StateIdle,
		to:        core.StateInit,
		action:    "boot",
		timestamp: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// From sets the source state (chainable).
func (b *TransitionBuilder) From(s core.AgentState) *TransitionBuilder { b.from = s; return b }

// To sets the destination state (chainable).
func (b *TransitionBuilder) To(s core.AgentState) *TransitionBuilder { b.to = s; return b }

// Action sets the action label (chainable).
func (b *TransitionBuilder) Action(a string) *TransitionBuilder { b.action = a; return b }

// Param sets one params entry (chainable).
func (b *TransitionBuilder) Param(key string, val any) *TransitionBuilder {
	if b.params == nil {
		b.params = map[string]any{}
	}
	b.params[key] = val
	return b
}

// At overrides the timestamp (chainable).
func (b *TransitionBuilder) At(ts time.Time) *TransitionBuilder { b.timestamp = ts; return b }

// Build returns the assembled core.StateTransition.
func (b *TransitionBuilder) Build() core.StateTransition {
	return core.StateTransition{
		From:      b.from,
		To:        b.to,
		Action:    b.action,
		Params:    b.params,
		Timestamp: b.timestamp,
	}
}
