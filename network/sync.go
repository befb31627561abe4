package network

import (
	"errors"

	"github.com/aldera-network/aldera/core"
)

// Synchronizer decides when a node is behind and whether a candidate chain
// offered by a peer is acceptable. It holds no goroutines of its own --
// Session calls it inline on the connection that produced the data -- so
// its decisions are trivial to unit test in isolation.
type Synchronizer struct {
	bc *core.Blockchain
}

// NewSynchronizer wraps a Blockchain for sync decisions.
func NewSynchronizer(bc *core.Blockchain) *Synchronizer {
	return &Synchronizer{bc: bc}
}

// ShouldRequest reports whether, given a peer's reported height, this node
// should ask that peer for its full chain. A node with only the genesis
// block always asks; otherwise it asks only when the peer claims to be
// ahead.
func (s *Synchronizer) ShouldRequest(peerHeight int64) bool {
	return s.bc.Len() <= 1 || peerHeight > s.bc.Height()
}

// Accept validates and, if longer and valid, installs candidate as the local
// chain. It never partially splices: either the whole candidate replaces
// the local chain, or the local chain is left untouched.
func (s *Synchronizer) Accept(candidate []*core.Block) error {
	if len(candidate) == 0 {
		return errEmptyCandidate
	}
	return s.bc.Replace(candidate)
}

var errEmptyCandidate = errors.New("empty candidate chain")
