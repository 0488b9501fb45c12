package ledger

// MerkleRoot computes a binary Merkle tree over the given hashes and returns
// the root. The tree is built bottom-up: adjacent pairs are concatenated and
// hashed with the transition domain key. If a level has an odd number of
// nodes, the last node is promoted to the next level without hashing (it is
// NOT duplicated — duplicating would let two different inputs produce the
// same root when one is a prefix of the other).
//
// Panics if hashes is empty; the transition log never calls it before the
// first append.
func MerkleRoot(hashes []Hash) Hash {
	if len(hashes) == 0 {
		panic("ledger.MerkleRoot: empty hash list")
	}

	// Work on a copy to avoid mutating the caller's slice.
	level := make([]Hash, len(hashes))
	copy(level, hashes)

	for len(level) > 1 {
		next := make([]Hash, (len(level)+1)/2)
		for i := 0; i < len(level)-1; i += 2 {
			next[i/2] = hashPair(level[i], level[i+1])
		}
		if len(level)%2 == 1 {
			// Odd node: promote without hashing.
			next[len(next)-1] = level[len(level)-1]
		}
		level = next
	}

	return level[0]
}

// InclusionProof returns the sibling path for the leaf at index, bottom-up.
// A leaf that is promoted at some level contributes no sibling for that
// level, so the path can be shorter than ceil(log2(n)). Verification
// reconstructs the promotion pattern from the leaf index and history size.
//
// Panics if index is out of range.
func InclusionProof(hashes []Hash, index int) []Hash {
	if index < 0 || index >= len(hashes) {
		panic("ledger.InclusionProof: index out of range")
	}

	level := make([]Hash, len(hashes))
	copy(level, hashes)

	var proof []Hash
	for len(level) > 1 {
		if index%2 == 0 {
			if index+1 < len(level) {
				proof = append(proof, level[index+1])
			}
			// else: promoted node, no sibling at this level.
		} else {
			proof = append(proof, level[index-1])
		}

		next := make([]Hash, (len(level)+1)/2)
		for i := 0; i < len(level)-1; i += 2 {
			next[i/2] = hashPair(level[i], level[i+1])
		}
		if len(level)%2 == 1 {
			next[len(next)-1] = level[len(level)-1]
		}
		level = next
		index /= 2
	}

	return proof
}

// VerifyInclusion checks that leaf sits at index within a history of size
// leaves whose Merkle root is root, using the sibling path from
// InclusionProof. The promotion pattern is re-derived from index and size,
// so the proof slice carries no direction flags.
func VerifyInclusion(leaf Hash, index, size int, proof []Hash, root Hash) bool {
	if index < 0 || index >= size || size <= 0 {
		return false
	}

	node := leaf
	next := 0
	for size > 1 {
		switch {
		case index%2 == 0 && index+1 < size:
			if next >= len(proof) {
				return false
			}
			node = hashPair(node, proof[next])
			next++
		case index%2 == 1:
			if next >= len(proof) {
				return false
			}
			node = hashPair(proof[next], node)
			next++
		default:
			// Promoted node: carried up unchanged.
		}
		index /= 2
		size = (size + 1) / 2
	}

	return next == len(proof) && node == root
}
