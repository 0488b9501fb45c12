package core

import "time"

// StateTransition records one behavioral state change of an agent. It is
// created when a transition is requested and never mutated after hashing —
// the transition hash is only meaningful over a frozen record.
type StateTransition struct {
	From      AgentState     `json:"from"`
	To        AgentState     `json:"to"`
	Action    string         `json:"action"`
	Params    map[string]any `json:"params,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Proof is the signed, Merkle-anchored attestation that a specific state
// transition occurred at a specific time. All hash fields are lowercase hex;
// Timestamp is epoch milliseconds. This shape is consumed by external
// auditors and must remain stable.
//
// MerkleRoot is recomputed over the entire ordered hash history after each
// append, so MerkleProof for a given StateHash is valid against the root in
// effect at verification time, not a historical one. Auditors re-verify
// proofs against the current root.
type Proof struct {
	StateHash   string   `json:"state_hash"`
	PrevHash    string   `json:"prev_hash"`
	MerkleRoot  string   `json:"merkle_root"`
	MerkleProof []string `json:"merkle_proof"`
	Signature   string   `json:"signature"`
	Timestamp   int64    `json:"timestamp"`
}
