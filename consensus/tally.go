package consensus

import (
	"sync"

	"github.com/aldera-network/aldera/core"
)

// Quorum returns the minimum number of distinct validator votes needed to
// finalize a round out of n registered validators: floor(2n/3)+1.
func Quorum(n int) int {
	return (2*n)/3 + 1
}

// Tally tracks pending candidate blocks and prevote/precommit vote sets per
// block hash for the height currently being voted on, and reports when each
// phase crosses quorum. It is the in-memory bookkeeping that sits above the
// persistent chain: once a height finalizes (precommit quorum reached), its
// pending and vote sets are cleared and the tally moves on to the next
// height.
//
// Lock ordering: callers that also hold a Blockchain lock must acquire it
// before calling into Tally, never after -- the module-wide discipline is
// chain before pending before prevotes before precommits.
type Tally struct {
	mu sync.Mutex

	height     int64
	pending    map[string]*core.Block     // block hash -> candidate awaiting quorum
	prevotes   map[string]map[string]bool // block hash -> voter address -> voted
	precommits map[string]map[string]bool

	// prevoteAnnounced and precommitAnnounced guard against re-announcing a
	// quorum the caller has already been told about for this height.
	prevoteAnnounced   map[string]bool
	precommitAnnounced map[string]bool
}

// NewTally creates an empty Tally for the given height.
func NewTally(height int64) *Tally {
	return &Tally{
		height:             height,
		pending:            make(map[string]*core.Block),
		prevotes:           make(map[string]map[string]bool),
		precommits:         make(map[string]map[string]bool),
		prevoteAnnounced:   make(map[string]bool),
		precommitAnnounced: make(map[string]bool),
	}
}

// AddPending records a candidate block awaiting quorum at this tally's
// height. Candidates proposed for any other height are ignored -- by the
// time a later height's tally exists, an earlier one has already finalized
// or been abandoned.
func (t *Tally) AddPending(height int64, block *core.Block) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if height != t.height {
		return
	}
	t.pending[block.Hash] = block
}

// Pending returns the candidate block recorded under hash at the current
// height, if any.
func (t *Tally) Pending(hash string) (*core.Block, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	b, ok := t.pending[hash]
	return b, ok
}

// Height returns the height this tally is currently collecting votes for.
func (t *Tally) Height() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.height
}

// AddPreVote records a prevote for blockHash from voter at this tally's
// height. It returns true the moment the running count for blockHash first
// reaches quorum out of validatorCount validators; subsequent votes after
// quorum return false even though they are still recorded, so callers never
// re-trigger the same transition twice.
func (t *Tally) AddPreVote(height int64, blockHash, voter string, validatorCount int) bool {
	return t.add(t.prevotes, t.prevoteAnnounced, height, blockHash, voter, validatorCount)
}

// AddPreCommit records a precommit for blockHash from voter at this tally's
// height, with the same first-time-quorum semantics as AddPreVote.
func (t *Tally) AddPreCommit(height int64, blockHash, voter string, validatorCount int) bool {
	return t.add(t.precommits, t.precommitAnnounced, height, blockHash, voter, validatorCount)
}

func (t *Tally) add(set map[string]map[string]bool, announced map[string]bool,
	height int64, blockHash, voter string, validatorCount int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if height != t.height {
		return false
	}
	voters, ok := set[blockHash]
	if !ok {
		voters = make(map[string]bool)
		set[blockHash] = voters
	}
	voters[voter] = true

	if announced[blockHash] {
		return false
	}
	if len(voters) >= Quorum(validatorCount) {
		announced[blockHash] = true
		return true
	}
	return false
}

// PreVoteCount returns how many distinct validators have prevoted for
// blockHash at the current height.
func (t *Tally) PreVoteCount(blockHash string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.prevotes[blockHash])
}

// PreCommitCount returns how many distinct validators have precommitted for
// blockHash at the current height.
func (t *Tally) PreCommitCount(blockHash string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.precommits[blockHash])
}

// Advance resets the tally to collect votes for the next height, discarding
// every pending block and vote set recorded so far. Called once a block at
// t.height commits.
func (t *Tally) Advance(nextHeight int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.height = nextHeight
	t.pending = make(map[string]*core.Block)
	t.prevotes = make(map[string]map[string]bool)
	t.precommits = make(map[string]map[string]bool)
	t.prevoteAnnounced = make(map[string]bool)
	t.precommitAnnounced = make(map[string]bool)
}
