// Package consensus implements proposer election (EDFM) and the
// prevote/precommit voting rounds that finalize each block.
package consensus

import (
	"encoding/hex"

	"github.com/aldera-network/aldera/core"
	"github.com/aldera-network/aldera/crypto"
)

// SelectProposer runs the stake-weighted deterministic proposer election
// (EDFM): hash the seed, fold the first 16 hex digits of the digest into a
// uint64, reduce it modulo the validator set's total stake, then walk
// validators in address-sorted order accumulating stake until the running
// total exceeds that target. Every honest node that shares the same seed
// and the same validator set reaches the same answer -- the sorted walk is
// what makes that true; iterating a map directly does not, since Go (like
// the reference implementation's HashMap) does not guarantee iteration
// order.
//
// Returns "" if there are no validators or the total stake is zero.
func SelectProposer(seed string, validators *core.ValidatorSet) string {
	ordered := validators.Sorted()
	if len(ordered) == 0 {
		return ""
	}
	total := validators.TotalStake()
	if total == 0 {
		return ""
	}

	digest := crypto.Hash([]byte(seed))
	target := hashPrefixToUint64(digest) % total

	var cumulative uint64
	for _, v := range ordered {
		cumulative += v.Stake
		if cumulative > target {
			return v.Address
		}
	}
	// Unreachable when total == sum(stakes), kept as a defensive fallback
	// matching the reference implementation's own fallback branch.
	return ordered[0].Address
}

// hashPrefixToUint64 parses the first 16 hex characters (64 bits) of digest
// as a big-endian uint64. digest is always a lowercase SHA-256 hex string
// (64 chars), so it always has at least 16.
func hashPrefixToUint64(digest string) uint64 {
	raw, err := hex.DecodeString(digest[:16])
	if err != nil {
		return 0
	}
	var n uint64
	for _, b := range raw {
		n = n<<8 | uint64(b)
	}
	return n
}
