package consensus

import (
	"encoding/json"
	"log"

	"github.com/aldera-network/aldera/core"
	"github.com/aldera-network/aldera/events"
)

// Engine glues the Tally and Producer to incoming network events: it is the
// network.VoteHandler and the callback consensus-core wiring point that
// cmd/aldera-node passes to network.NewSession.
type Engine struct {
	bc         *core.Blockchain
	validators *core.ValidatorSet
	tally      *Tally
	producer   *Producer
	emitter    *events.Emitter
}

// NewEngine builds an Engine over an already-constructed Producer and Tally.
func NewEngine(bc *core.Blockchain, validators *core.ValidatorSet, tally *Tally, producer *Producer, emitter *events.Emitter) *Engine {
	return &Engine{bc: bc, validators: validators, tally: tally, producer: producer, emitter: emitter}
}

// OnProposeBlock is the network.Session callback for an incoming
// ProposeBlock (including this node's own, wired through
// Producer.SetProposalHandler). It does NOT append the block to the chain:
// per the two-phase protocol, a proposal only becomes a candidate awaiting
// quorum. It validates the block against the current tip, records it in the
// tally's pending table under its hash, and casts this validator's own
// prevote. The block is only appended once precommit quorum is reached --
// see HandlePreCommit.
func (e *Engine) OnProposeBlock(block *core.Block) {
	if existing, err := e.bc.GetBlock(block.Hash); err == nil && existing != nil {
		return // already committed, e.g. via sync racing the proposal
	}
	if _, known := e.tally.Pending(block.Hash); known {
		return // already validated and prevoted
	}
	tip := e.bc.Tip()
	if block.Index != tip.Index+1 {
		log.Printf("[consensus] drop out-of-order proposed block %d (tip %d)", block.Index, tip.Index)
		return
	}
	if err := core.ValidateBlock(block, tip); err != nil {
		log.Printf("[consensus] reject proposed block %d: %v", block.Index, err)
		return
	}
	e.tally.AddPending(block.Index, block)
	e.producer.castPreVote(block)
}

// HandlePreVote satisfies network.VoteHandler. It records the vote in the
// tally and, the first time prevote quorum is crossed for blockHash, emits
// the milestone event and triggers this node's own precommit.
func (e *Engine) HandlePreVote(height int64, blockHash, voter string) bool {
	if !e.tally.AddPreVote(height, blockHash, voter, e.validators.Len()) {
		return false
	}
	e.emitter.Emit(events.Event{
		Type:        events.EventPreVoteQuorum,
		BlockHeight: height,
		Data:        map[string]any{"hash": blockHash},
	})
	e.producer.OnPreVoteQuorum(height, blockHash)
	return true
}

// HandlePreCommit satisfies network.VoteHandler. It records the vote and,
// the first time precommit quorum is crossed, looks the block up in the
// tally's pending table, appends it to the chain (this is the ONLY path
// that commits a block), emits the milestone events, and advances the tally
// to the next height -- which also clears the pending/vote tables for the
// height that just finalized.
func (e *Engine) HandlePreCommit(height int64, blockHash, voter string) bool {
	if !e.tally.AddPreCommit(height, blockHash, voter, e.validators.Len()) {
		return false
	}
	if block, ok := e.tally.Pending(blockHash); ok {
		if existing, err := e.bc.GetBlock(block.Hash); err != nil || existing == nil {
			if err := e.bc.AddBlock(block); err != nil {
				log.Printf("[consensus] commit block %d: %v", block.Index, err)
			} else {
				var payload blockPayload
				if json.Unmarshal(block.Payload, &payload) == nil {
					ids := make([]string, 0, len(payload.Transactions))
					for _, tx := range payload.Transactions {
						if tx != nil {
							ids = append(ids, tx.ID)
						}
					}
					e.producer.mempool.Remove(ids)
				}
				e.emitter.Emit(events.Event{
					Type:        events.EventBlockCommitted,
					BlockHeight: block.Index,
					Data:        map[string]any{"hash": block.Hash, "proposer": block.Validator},
				})
			}
		}
	} else {
		// Precommit quorum raced ahead of this node's own ProposeBlock
		// delivery. The tally still advances below so the height does not
		// wedge; a subsequent sync will pick up the committed block.
		log.Printf("[consensus] precommit quorum for unseen block %s at height %d", blockHash, height)
	}
	e.emitter.Emit(events.Event{
		Type:        events.EventPreCommitQuorum,
		BlockHeight: height,
		Data:        map[string]any{"hash": blockHash},
	})
	e.producer.OnPreCommitQuorum(height, blockHash)
	return true
}
