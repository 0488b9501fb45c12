package core

import "crypto/ed25519"

// AgentDefinition is the full description of an agent: identity, owner,
// persona and arbitrary configuration. The supervisor hands it to the worker
// factory as part of an immutable initialization payload; workers never share
// mutable memory with the supervisor.
type AgentDefinition struct {
	ID      string            `json:"id"`
	OwnerID string            `json:"owner_id"`
	Name    string            `json:"name"`
	Persona string            `json:"persona,omitempty"`
	Config  map[string]string `json:"config,omitempty"`
}

// InitPayload is everything a worker runtime needs to boot. It is copied
// into the worker on spawn and not referenced afterwards.
//
// PrivateKey binds the agent's transition ledger to a keypair. If nil the
// worker generates an ephemeral keypair; supplying one lets auditors verify
// proofs across restarts.
type InitPayload struct {
	Definition AgentDefinition
	PrivateKey ed25519.PrivateKey
}

// AgentLookup resolves a persisted agent id back to its full definition.
// Used only by the recovery coordinator at boot.
type AgentLookup interface {
	// GetByID returns the definition for id owned by ownerID, or
	// ErrAgentNotFound if no such agent exists.
	GetByID(id, ownerID string) (AgentDefinition, error)
}
