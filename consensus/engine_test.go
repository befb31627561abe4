package consensus

import (
	"testing"

	"github.com/aldera-network/aldera/core"
)

func newTestEngine(t *testing.T) (*Engine, *core.Blockchain, *Producer) {
	t.Helper()
	producer, bc, _ := newTestProducer(t)
	validators := producer.validators
	tally := producer.tally
	emitter := producer.emitter
	engine := NewEngine(bc, validators, tally, producer, emitter)
	producer.SetProposalHandler(engine.OnProposeBlock)
	return engine, bc, producer
}

func TestEngineOnProposeBlockRecordsPendingAndPreVotesWithoutCommitting(t *testing.T) {
	engine, bc, producer := newTestEngine(t)
	block := core.NewBlock(bc.Tip().Index+1, nil, bc.Tip().Hash, producer.priv)

	engine.OnProposeBlock(block)

	if bc.Height() != 0 {
		t.Errorf("a bare proposal must not be committed, height is %d", bc.Height())
	}
	if got, ok := engine.tally.Pending(block.Hash); !ok || got.Hash != block.Hash {
		t.Error("expected the proposal to be recorded in the pending table")
	}
	if count := engine.tally.PreVoteCount(block.Hash); count != 1 {
		t.Error("expected OnProposeBlock to cast this validator's own prevote")
	}
}

func TestEngineOnProposeBlockIgnoresAlreadyPendingBlock(t *testing.T) {
	engine, bc, producer := newTestEngine(t)
	block := core.NewBlock(bc.Tip().Index+1, nil, bc.Tip().Hash, producer.priv)

	engine.OnProposeBlock(block)
	engine.OnProposeBlock(block) // duplicate delivery, e.g. via more than one peer

	if count := engine.tally.PreVoteCount(block.Hash); count != 1 {
		t.Errorf("a duplicate proposal must not cast a second prevote, got count %d", count)
	}
}

func TestEngineOnProposeBlockIgnoresAlreadyCommittedBlock(t *testing.T) {
	engine, bc, producer := newTestEngine(t)
	block := core.NewBlock(bc.Tip().Index+1, nil, bc.Tip().Hash, producer.priv)
	if err := bc.AddBlock(block); err != nil {
		t.Fatal(err)
	}

	engine.OnProposeBlock(block) // already the tip; must be a no-op, not an error

	if bc.Height() != block.Index {
		t.Errorf("height should remain %d, got %d", block.Index, bc.Height())
	}
	if _, ok := engine.tally.Pending(block.Hash); ok {
		t.Error("an already-committed block must not be re-added to the pending table")
	}
}

func TestEngineOnProposeBlockRejectsInvalidBlock(t *testing.T) {
	engine, bc, producer := newTestEngine(t)
	bad := core.NewBlock(99, nil, "wrong-parent", producer.priv)

	engine.OnProposeBlock(bad)

	if bc.Height() != 0 {
		t.Error("an invalid proposed block must not be appended")
	}
	if _, ok := engine.tally.Pending(bad.Hash); ok {
		t.Error("an invalid proposed block must not enter the pending table")
	}
}

func TestEngineHandlePreVoteTriggersPreCommitOnQuorumWithoutCommitting(t *testing.T) {
	engine, bc, producer := newTestEngine(t)
	block := core.NewBlock(bc.Tip().Index+1, nil, bc.Tip().Hash, producer.priv)
	engine.OnProposeBlock(block) // records pending + this node's own prevote

	// Single validator registered (the producer's own address) means quorum is 1.
	crossed := engine.HandlePreVote(block.Index, block.Hash, producer.address)
	if !crossed {
		t.Fatal("expected prevote quorum to be crossed with a single registered validator")
	}
	if count := engine.tally.PreCommitCount(block.Hash); count != 1 {
		t.Error("expected prevote quorum to trigger this validator's own precommit")
	}
	if bc.Height() != 0 {
		t.Error("prevote quorum must not itself commit the block")
	}
}

func TestEngineHandlePreCommitCommitsPendingBlockAndAdvancesTally(t *testing.T) {
	engine, bc, producer := newTestEngine(t)
	block := core.NewBlock(bc.Tip().Index+1, nil, bc.Tip().Hash, producer.priv)
	engine.OnProposeBlock(block)
	startHeight := engine.tally.Height()

	crossed := engine.HandlePreCommit(block.Index, block.Hash, producer.address)
	if !crossed {
		t.Fatal("expected precommit quorum to be crossed with a single registered validator")
	}
	if bc.Height() != block.Index {
		t.Errorf("expected precommit quorum to commit the block, height is %d want %d", bc.Height(), block.Index)
	}
	got, err := bc.GetBlock(block.Hash)
	if err != nil || got.Hash != block.Hash {
		t.Errorf("committed block not found on chain: %v", err)
	}
	if engine.tally.Height() != startHeight+1 {
		t.Errorf("expected tally to advance past height %d, got %d", startHeight, engine.tally.Height())
	}
	if _, ok := engine.tally.Pending(block.Hash); ok {
		t.Error("pending table must be cleared once the height finalizes")
	}
}

func TestEngineHandlePreCommitQuorumForUnseenBlockStillAdvancesTally(t *testing.T) {
	engine, bc, _ := newTestEngine(t)
	startHeight := engine.tally.Height()

	crossed := engine.HandlePreCommit(startHeight, "hash-never-proposed-here", "0xfeedfacefeedfacefeedfacefeedfacefeedface")
	if !crossed {
		t.Fatal("expected precommit quorum to be crossed with a single registered validator")
	}
	if bc.Height() != 0 {
		t.Error("a precommit quorum for a block never seen locally must not append anything")
	}
	if engine.tally.Height() != startHeight+1 {
		t.Error("the tally must still advance so the height does not wedge")
	}
}
