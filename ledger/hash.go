package ledger

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/zeebo/blake3"

	"github.com/hupe1980/agentswarm/core"
)

// Hash is a 32-byte BLAKE3 digest of a canonical transition record.
type Hash [32]byte

// transitionDomainKey is the fixed 32-byte key for BLAKE3 keyed hashing of
// transition records. Domain separation ensures the same bytes hashed in a
// different context produce a different digest. The value is the ASCII
// encoding of the domain name, zero-padded to 32 bytes, so it stays
// inspectable in hex dumps without losing any cryptographic property.
var transitionDomainKey = [32]byte{
	'a', 'g', 'e', 'n', 't', 's', 'w', 'a', 'r', 'm', '.', 'l', 'e', 'd', 'g', 'e',
	'r', '.', 't', 'r', 'a', 'n', 's', 'i', 't', 'i', 'o', 'n', 0, 0, 0, 0,
}

// HashTransition computes the canonical hash of a transition record. The
// canonical form is the JSON encoding of the record: Go serializes struct
// fields in declaration order and map keys sorted, so equal records always
// produce equal bytes. The record must not be mutated after hashing.
func HashTransition(t core.StateTransition) (Hash, error) {
	data, err := json.Marshal(t)
	if err != nil {
		return Hash{}, fmt.Errorf("ledger: canonical serialization: %w", err)
	}
	return keyedHash(data), nil
}

// FormatHash returns the lowercase hex encoding of a hash. This is the
// canonical format used in proofs, logs and persistence.
func FormatHash(h Hash) string { return hex.EncodeToString(h[:]) }

// ParseHash parses a 64-character hex string into a Hash.
func ParseHash(s string) (Hash, error) {
	var h Hash
	decoded, err := hex.DecodeString(s)
	if err != nil {
		return h, fmt.Errorf("ledger: parsing hash: %w", err)
	}
	if len(decoded) != len(h) {
		return h, fmt.Errorf("ledger: hash is %d bytes, want %d", len(decoded), len(h))
	}
	copy(h[:], decoded)
	return h, nil
}

// keyedHash computes the transition-domain BLAKE3 keyed hash of data.
func keyedHash(data []byte) Hash {
	// NewKeyed requires exactly 32 bytes, which the fixed-size key
	// guarantees, so the error path is unreachable.
	hasher, err := blake3.NewKeyed(transitionDomainKey[:])
	if err != nil {
		panic("ledger: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write(data)
	var h Hash
	copy(h[:], hasher.Sum(nil))
	return h
}

// hashPair concatenates two hashes and computes the keyed hash of the
// result. Used by the Merkle tree when combining sibling nodes.
func hashPair(left, right Hash) Hash {
	var combined [64]byte
	copy(combined[:32], left[:])
	copy(combined[32:], right[:])
	return keyedHash(combined[:])
}
