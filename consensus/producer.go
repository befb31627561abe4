package consensus

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/aldera-network/aldera/core"
	"github.com/aldera-network/aldera/crypto"
	"github.com/aldera-network/aldera/events"
	"github.com/aldera-network/aldera/network"
)

// BootstrapGrace is how long a freshly-started node waits before it first
// checks whether it is the elected proposer, giving bootstrap peer dials
// time to complete so the validator set is populated before voting begins.
const BootstrapGrace = 15 * time.Second

// TickInterval is how often the producer loop re-evaluates proposer
// election once past the bootstrap grace period.
const TickInterval = 5 * time.Second

// maxBlockTxs bounds how many pending transactions a proposer bundles into
// one block's payload.
const maxBlockTxs = 500

// blockPayload is the JSON shape carried in Block.Payload: a batch of
// mempool transactions. The consensus core never interprets it further.
type blockPayload struct {
	Transactions []*core.Transaction `json:"transactions"`
}

// Producer runs the block-production loop: on every tick, if EDFM elects
// this node's address as proposer for the next height, it drains the
// mempool, builds and signs a block, and broadcasts it as a ProposeBlock.
// Its own proposal is also run through the local proposal handler (see
// SetProposalHandler) exactly as a peer's incoming proposal would be, so a
// lone validator with no peers still votes itself to quorum. It casts this
// node's own prevote once a proposal (its own or a peer's) is accepted into
// the pending table, and its own precommit once prevote quorum is reached
// -- the two-phase voting round that actually finalizes a height.
type Producer struct {
	bc         *core.Blockchain
	validators *core.ValidatorSet
	mempool    *core.Mempool
	tally      *Tally
	node       *network.Node
	emitter    *events.Emitter

	priv    crypto.PrivateKey
	address string

	onPropose func(block *core.Block)
}

// NewProducer builds a Producer for the local validator identified by priv.
func NewProducer(bc *core.Blockchain, validators *core.ValidatorSet, mempool *core.Mempool,
	tally *Tally, node *network.Node, emitter *events.Emitter, priv crypto.PrivateKey) *Producer {
	return &Producer{
		bc:         bc,
		validators: validators,
		mempool:    mempool,
		tally:      tally,
		node:       node,
		emitter:    emitter,
		priv:       priv,
		address:    priv.Public().Address(),
	}
}

// SetProposalHandler installs the callback run locally, immediately after
// broadcasting this node's own proposal. Wired to engine.OnProposeBlock so a
// self-produced block enters the same pending/prevote path as a peer's
// incoming ProposeBlock -- without this, a validator with zero peers could
// never advance its own chain past genesis, since commitment only happens
// via precommit quorum on a pending candidate.
func (p *Producer) SetProposalHandler(fn func(block *core.Block)) {
	p.onPropose = fn
}

// Run blocks until done is closed, producing at most one block per tick.
func (p *Producer) Run(done <-chan struct{}) {
	time.Sleep(BootstrapGrace)
	ticker := time.NewTicker(TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			p.tick()
		}
	}
}

func (p *Producer) tick() {
	tip := p.bc.Tip()
	seed := tip.Hash
	proposer := SelectProposer(seed, p.validators)
	if proposer == "" {
		return
	}
	p.emitter.Emit(events.Event{
		Type:        events.EventProposerElected,
		BlockHeight: tip.Index + 1,
		Data:        map[string]any{"proposer": proposer, "seed": seed},
	})
	if proposer != p.address {
		return
	}
	block, err := p.produceBlock(tip)
	if err != nil {
		log.Printf("[consensus] produce block: %v", err)
		return
	}
	p.broadcastProposal(block)
	if p.onPropose != nil {
		p.onPropose(block)
	}
}

func (p *Producer) produceBlock(tip *core.Block) (*core.Block, error) {
	txs := p.mempool.Pending(maxBlockTxs)
	payload, err := json.Marshal(blockPayload{Transactions: txs})
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	block := core.NewBlock(tip.Index+1, payload, tip.Hash, p.priv)
	return block, nil
}

func (p *Producer) broadcastProposal(block *core.Block) {
	data, err := json.Marshal(network.ProposeBlockPayload{Block: block})
	if err != nil {
		log.Printf("[consensus] marshal proposal: %v", err)
		return
	}
	p.node.Broadcast(network.Message{Type: network.MsgProposeBlock, Payload: data})
	p.emitter.Emit(events.Event{
		Type:        events.EventBlockProposed,
		BlockHeight: block.Index,
		Data:        map[string]any{"hash": block.Hash, "proposer": block.Validator},
	})
}

// castPreVote signs and broadcasts this validator's prevote for block, and
// records it in the local tally immediately so a lone validator (or one
// whose own gossip beats the network back to it) does not wait on its own
// message to arrive over the wire.
func (p *Producer) castPreVote(block *core.Block) {
	p.vote(block, network.VoteKindPre, network.MsgPreVote)
	p.tally.AddPreVote(block.Index, block.Hash, p.address, p.validators.Len())
}

// castPreCommit signs and broadcasts this validator's precommit for block.
func (p *Producer) castPreCommit(block *core.Block) {
	p.vote(block, network.VoteKindPreCommit, network.MsgPreCommit)
	p.tally.AddPreCommit(block.Index, block.Hash, p.address, p.validators.Len())
}

func (p *Producer) vote(block *core.Block, kind network.VoteKind, msgType network.MsgType) {
	preimage := network.VotePreimage(block.Index, block.Hash, kind)
	sig := crypto.Sign(p.priv, preimage)
	vote := network.VotePayload{
		Height:    block.Index,
		BlockHash: block.Hash,
		Voter:     p.address,
		PubKey:    p.priv.Public().Hex(),
		Signature: sig,
		Kind:      kind,
	}
	data, err := json.Marshal(vote)
	if err != nil {
		log.Printf("[consensus] marshal vote: %v", err)
		return
	}
	p.node.Broadcast(network.Message{Type: msgType, Payload: data})
}

// OnPreVoteQuorum is called (by the node's VoteHandler wiring) the first
// time prevote quorum is reached for blockHash at height; it casts this
// validator's own precommit in response. The candidate is looked up in the
// tally's pending table, not the chain -- it is not committed yet.
func (p *Producer) OnPreVoteQuorum(height int64, blockHash string) {
	block, ok := p.tally.Pending(blockHash)
	if !ok {
		// Quorum reached for a block we have not seen yet (e.g. its
		// ProposeBlock is still in flight); nothing to precommit to yet.
		return
	}
	p.castPreCommit(block)
}

// OnPreCommitQuorum is called the first time precommit quorum is reached
// for blockHash at height, after the caller (Engine.HandlePreCommit) has
// already appended the pending block to the chain; it advances the tally to
// the next round, which also clears the pending/vote tables for the height
// that just finalized.
func (p *Producer) OnPreCommitQuorum(height int64, blockHash string) {
	p.tally.Advance(height + 1)
}
