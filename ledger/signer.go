package ledger

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// Signer binds a transition log to an Ed25519 keypair. Signatures cover the
// raw 32 hash bytes, not the hex encoding.
type Signer struct {
	priv ed25519.PrivateKey
	pub  ed25519.PublicKey
}

// NewSigner generates a fresh keypair. Suitable for ephemeral agents whose
// proofs only need to verify within one session.
func NewSigner() (*Signer, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("ledger: generating keypair: %w", err)
	}
	return &Signer{priv: priv, pub: pub}, nil
}

// NewSignerFromKey wraps an existing private key so proofs stay verifiable
// across restarts of the same agent.
func NewSignerFromKey(priv ed25519.PrivateKey) (*Signer, error) {
	if len(priv) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("ledger: private key is %d bytes, want %d", len(priv), ed25519.PrivateKeySize)
	}
	return &Signer{priv: priv, pub: priv.Public().(ed25519.PublicKey)}, nil
}

// Sign returns the hex-encoded Ed25519 signature of the hash.
func (s *Signer) Sign(h Hash) string {
	return hex.EncodeToString(ed25519.Sign(s.priv, h[:]))
}

// PublicKey returns the verifying key.
func (s *Signer) PublicKey() ed25519.PublicKey { return s.pub }

// Verify reports whether signature is a valid Ed25519 signature of stateHash
// under pub. Both inputs are hex as they appear in a Proof. Pure function
// with no side effects; any decoding failure verifies false.
func Verify(stateHash, signature string, pub ed25519.PublicKey) bool {
	if len(pub) != ed25519.PublicKeySize {
		return false
	}
	h, err := ParseHash(stateHash)
	if err != nil {
		return false
	}
	sig, err := hex.DecodeString(signature)
	if err != nil || len(sig) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(pub, h[:], sig)
}
