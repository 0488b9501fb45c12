package ledger

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/agentswarm/core"
	"github.com/hupe1980/agentswarm/logging"
)

// Options configures a TransitionLog.
type Options struct {
	// Initial is the state the log starts in. Defaults to core.StateIdle.
	Initial core.AgentState

	// Store receives committed proofs on a best-effort background path.
	// Nil disables persistence; the in-memory chain still advances.
	Store core.Store

	// Logger receives persistence failures and transition debug output.
	// Defaults to NoOp logger if nil.
	Logger logging.Logger
}

// TransitionLog is the per-agent state machine and proof chain. It holds the
// current behavioral state, validates every requested transition against
// core.Transitions and produces a signed, Merkle-anchored core.Proof for
// each committed one.
//
// The log is not designed for concurrent writers: the owning worker runtime
// processes one message at a time, giving each agent's chain a strictly
// sequential history. All methods are nevertheless mutex-guarded so read
// paths (CurrentState, History) are safe from other goroutines.
type TransitionLog struct {
	agentID string
	signer  *Signer
	store   core.Store
	logger  logging.Logger

	mu      sync.Mutex
	current core.AgentState
	history []Hash
	proofs  []core.Proof

	// persistWG tracks in-flight background proof writes so Flush can
	// bound shutdown.
	persistWG sync.WaitGroup
}

// NewTransitionLog creates a log for one agent bound to the given signer.
func NewTransitionLog(agentID string, signer *Signer, optFns ...func(o *Options)) *TransitionLog {
	opts := Options{
		Initial: core.StateIdle,
		Logger:  logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &TransitionLog{
		agentID: agentID,
		signer:  signer,
		store:   opts.Store,
		logger:  opts.Logger,
		current: opts.Initial,
	}
}

// Transition moves the agent to state 'to', recording the action that caused
// it. Returns core.ErrInvalidTransition (wrapped with the offending edge) if
// the move is not in the adjacency table; the current state is unchanged in
// that case.
//
// On success the transition commits in memory immediately — hash appended,
// Merkle tree rebuilt over the full history, proof signed, state advanced —
// and the proof is handed to the store on a fire-and-forget goroutine.
// A persistence failure is logged, never propagated: the audit trail may lag
// behind true state.
func (l *TransitionLog) Transition(to core.AgentState, action string, params map[string]any) (core.Proof, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	from := l.current
	if !core.CanTransition(from, to) {
		return core.Proof{}, fmt.Errorf("%w: %s -> %s", core.ErrInvalidTransition, from, to)
	}

	now := time.Now().UTC()
	record := core.StateTransition{
		From:      from,
		To:        to,
		Action:    action,
		Params:    params,
		Timestamp: now,
	}

	stateHash, err := HashTransition(record)
	if err != nil {
		return core.Proof{}, err
	}

	prevHash := ""
	if n := len(l.history); n > 0 {
		prevHash = FormatHash(l.history[n-1])
	}

	l.history = append(l.history, stateHash)
	root := MerkleRoot(l.history)
	path := InclusionProof(l.history, len(l.history)-1)

	proof := core.Proof{
		StateHash:   FormatHash(stateHash),
		PrevHash:    prevHash,
		MerkleRoot:  FormatHash(root),
		MerkleProof: formatHashes(path),
		Signature:   l.signer.Sign(stateHash),
		Timestamp:   now.UnixMilli(),
	}

	l.current = to
	l.proofs = append(l.proofs, proof)
	l.logger.Debug("transition committed agent_id=%s from=%s to=%s state_hash=%s", l.agentID, from, to, proof.StateHash)

	if l.store != nil {
		l.persistWG.Add(1)
		go func() {
			defer l.persistWG.Done()
			if err := l.store.AppendProof(context.Background(), l.agentID, proof); err != nil {
				l.logger.Warn("proof persistence failed agent_id=%s state_hash=%s error=%v", l.agentID, proof.StateHash, err)
			}
		}()
	}

	return proof, nil
}

// CurrentState returns the agent's current behavioral state.
func (l *TransitionLog) CurrentState() core.AgentState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.current
}

// History returns a defensive copy of the committed proof chain in append
// order.
func (l *TransitionLog) History() []core.Proof {
	l.mu.Lock()
	defer l.mu.Unlock()
	proofs := make([]core.Proof, len(l.proofs))
	copy(proofs, l.proofs)
	return proofs
}

// Root returns the current Merkle root in hex, or the empty string before
// the first transition.
func (l *TransitionLog) Root() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.history) == 0 {
		return ""
	}
	return FormatHash(MerkleRoot(l.history))
}

// VerifyChain audits the full in-memory chain: the PrevHash link of every
// proof, the Ed25519 signature of every state hash, the binding of every
// proof to its hash-history leaf, and the inclusion of every leaf against
// the current root. Returns the first discrepancy found.
//
// Inclusion is checked against the root in effect now, not the root stored
// when the proof was created — earlier roots are superseded on every append.
func (l *TransitionLog) VerifyChain() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.history) == 0 {
		return nil
	}
	root := MerkleRoot(l.history)

	for i, proof := range l.proofs {
		want := ""
		if i > 0 {
			want = l.proofs[i-1].StateHash
		}
		if proof.PrevHash != want {
			return fmt.Errorf("ledger: proof %d prev_hash mismatch", i)
		}
		if !Verify(proof.StateHash, proof.Signature, l.signer.PublicKey()) {
			return fmt.Errorf("ledger: proof %d signature invalid", i)
		}
		leaf, err := ParseHash(proof.StateHash)
		if err != nil || leaf != l.history[i] {
			return fmt.Errorf("ledger: proof %d state hash diverges from history", i)
		}
		path := InclusionProof(l.history, i)
		if !VerifyInclusion(l.history[i], i, len(l.history), path, root) {
			return fmt.Errorf("ledger: proof %d not included in current root", i)
		}
	}
	return nil
}

// Flush blocks until all in-flight background proof writes finished. Called
// by worker runtimes on shutdown so the audit trail catches up before exit.
func (l *TransitionLog) Flush() { l.persistWG.Wait() }

// PublicKey returns the verifying key for this agent's signatures.
func (l *TransitionLog) PublicKey() ed25519.PublicKey { return l.signer.PublicKey() }

func formatHashes(hashes []Hash) []string {
	out := make([]string, len(hashes))
	for i, h := range hashes {
		out[i] = FormatHash(h)
	}
	return out
}
