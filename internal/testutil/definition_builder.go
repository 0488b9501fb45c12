package testutil

import (
	"github.com/hupe1980/agentswarm/core"
)

// DefinitionBuilder helps construct agent definitions with fluent chaining
// for tests. Example:
//
//	def := NewDefinitionBuilder("agent-1").Owner("owner-1").Config("k","v").Build()
type DefinitionBuilder struct {
	id      string
	ownerID string
	name    string
	persona string
	config  map[string]string
}

// NewDefinitionBuilder creates a new builder for a definition with the given
// id. Use chainable methods (Owner, Name, Persona, Config) then call Build.
func NewDefinitionBuilder(id string) *DefinitionBuilder {
	return &DefinitionBuilder{
		id:      id,
		ownerID: "owner-1",
		name:    "agent-" + id,
		config:  map[string]string{},
	}
}

// Owner sets the owner id (chainable).
func (b *DefinitionBuilder) Owner(ownerID string) *DefinitionBuilder {
	b.ownerID = ownerID
	return b
}

// Name sets the display name (chainable).
func (b *DefinitionBuilder) Name(name string) *DefinitionBuilder {
	b.name = name
	return b
}

// Persona sets the persona text (chainable).
func (b *DefinitionBuilder) Persona(persona string) *DefinitionBuilder {
	b.persona = persona
	return b
}

// Config sets or overwrites a config key/value pair (chainable).
func (b *DefinitionBuilder) Config(key, val string) *DefinitionBuilder {
	b.config[key] = val
	return b
}

// Build returns the assembled core.AgentDefinition.
func (b *DefinitionBuilder) Build() core.AgentDefinition {
	cfg := make(map[string]string, len(b.config))
	for k, v := range b.config {
		cfg[k] = v
	}
	return core.AgentDefinition{
		ID:      b.id,
		OwnerID: b.ownerID,
		Name:    b.name,
		Persona: b.persona,
		Config:  cfg,
	}
}
