// Package ledger implements the verifiable state-transition log: a per-agent
// append-only chain of BLAKE3 transition hashes, anchored by a Merkle tree
// over the full hash history and signed with the agent's Ed25519 key.
//
// The TransitionLog is the state machine. It validates each requested
// transition against the adjacency table in core, produces a core.Proof for
// every committed transition and hands the proof to persistence on a
// best-effort background path. The in-memory chain is the behavioral source
// of truth; persistence is for audit.
//
// The Merkle tree is rebuilt over the entire history on every append, which
// is O(n) per transition and O(n²) over a session. That matches the audit
// contract (proofs are always valid against the current root) and is
// acceptable for short-lived agent sessions; long-running agents would want
// an incremental structure.
package ledger
