package network

import (
	"encoding/json"
	"log"

	"github.com/aldera-network/aldera/core"
	"github.com/aldera-network/aldera/crypto"
)

// Dispatcher handles the lifecycle of one peer connection: the initial
// handshake and every subsequent message on that connection.
type Dispatcher interface {
	Greet(peer *Peer)
	Handle(peer *Peer, msg Message)
}

// VoteHandler receives an authenticated vote once its signature has been
// checked. Kept as a narrow interface so Session does not need to know
// about tally internals.
type VoteHandler interface {
	HandlePreVote(height int64, blockHash, voter string) bool
	HandlePreCommit(height int64, blockHash, voter string) bool
}

// Session is the consensus node's Dispatcher: it answers Status/RequestChain
// handshakes, accepts chain replacements, admits gossiped validators, and
// authenticates votes before handing them to the tally.
type Session struct {
	bc         *core.Blockchain
	validators *core.ValidatorSet
	store      core.Store
	sync       *Synchronizer
	node       *Node
	votes      VoteHandler

	onProposeBlock func(block *core.Block)
	onOutOfSync    func(peer *Peer)
}

// NewSession builds a Dispatcher bound to the local chain and validator set.
// store is used to persist the validator set after every gossiped mutation,
// per the rule that validator state is durable across a restart, not just
// in-memory for the lifetime of one process. onProposeBlock is invoked for
// every syntactically-valid incoming ProposeBlock at most one height ahead
// of the local tip (the caller decides whether to accept it into the
// pending table and whether to prevote for it). onOutOfSync fires whenever
// the session sends a peer a RequestChain: after a Status that
// Synchronizer.ShouldRequest says warrants a catch-up, and after a
// ProposeBlock more than one height ahead of the local tip.
func NewSession(bc *core.Blockchain, validators *core.ValidatorSet, store core.Store, node *Node, votes VoteHandler,
	onProposeBlock func(block *core.Block), onOutOfSync func(peer *Peer)) *Session {
	return &Session{
		bc:             bc,
		validators:     validators,
		store:          store,
		sync:           NewSynchronizer(bc),
		node:           node,
		votes:          votes,
		onProposeBlock: onProposeBlock,
		onOutOfSync:    onOutOfSync,
	}
}

// Greet sends our current tip height immediately on connect, per the
// handshake convention every peer on this network follows.
func (s *Session) Greet(peer *Peer) {
	status := StatusPayload{BlockNumber: s.bc.Height()}
	if err := peer.Send(Message{Type: MsgStatus, Payload: encode(status)}); err != nil {
		log.Printf("[session] greet %s: %v", peer.ID, err)
	}
}

// Handle dispatches one inbound message by type.
func (s *Session) Handle(peer *Peer, msg Message) {
	switch msg.Type {
	case MsgStatus:
		s.handleStatus(peer, msg)
	case MsgRequestChain:
		s.handleRequestChain(peer)
	case MsgRespondChain:
		s.handleRespondChain(peer, msg)
	case MsgRegisterValidator:
		s.handleRegisterValidator(msg)
	case MsgProposeBlock:
		s.handleProposeBlock(peer, msg)
	case MsgPreVote:
		s.handleVote(msg, VoteKindPre)
	case MsgPreCommit:
		s.handleVote(msg, VoteKindPreCommit)
	default:
		log.Printf("[session] unknown message type %q from %s", msg.Type, peer.ID)
	}
}

func (s *Session) handleStatus(peer *Peer, msg Message) {
	var status StatusPayload
	if err := json.Unmarshal(msg.Payload, &status); err != nil {
		log.Printf("[session] decode status from %s: %v", peer.ID, err)
		return
	}
	if s.sync.ShouldRequest(status.BlockNumber) {
		if err := peer.Send(Message{Type: MsgRequestChain}); err != nil {
			log.Printf("[session] request chain from %s: %v", peer.ID, err)
		}
		if s.onOutOfSync != nil {
			s.onOutOfSync(peer)
		}
	}
}

func (s *Session) handleRequestChain(peer *Peer) {
	resp := RespondChainPayload{Blocks: s.bc.Blocks()}
	if err := peer.Send(Message{Type: MsgRespondChain, Payload: encode(resp)}); err != nil {
		log.Printf("[session] respond chain to %s: %v", peer.ID, err)
	}
}

func (s *Session) handleRespondChain(peer *Peer, msg Message) {
	var resp RespondChainPayload
	if err := json.Unmarshal(msg.Payload, &resp); err != nil {
		log.Printf("[session] decode chain response from %s: %v", peer.ID, err)
		return
	}
	if err := s.sync.Accept(resp.Blocks); err != nil {
		log.Printf("[session] chain from %s rejected: %v", peer.ID, err)
		return
	}
	log.Printf("[session] synced to height %d via %s", s.bc.Height(), peer.ID)
}

func (s *Session) handleRegisterValidator(msg Message) {
	var reg RegisterValidatorPayload
	if err := json.Unmarshal(msg.Payload, &reg); err != nil {
		log.Printf("[session] decode register-validator: %v", err)
		return
	}
	pub, err := crypto.PubKeyFromHex(reg.PubKey)
	if err != nil {
		log.Printf("[session] register-validator invalid pubkey: %v", err)
		return
	}
	if pub.Address() != reg.Address {
		log.Printf("[session] register-validator address %s does not match pubkey", reg.Address)
		return
	}
	if s.validators.Register(reg.Address, reg.Stake) {
		log.Printf("[session] registered validator %s (stake %d)", reg.Address, reg.Stake)
		if err := s.persistValidators(); err != nil {
			log.Printf("[session] persist validator state: %v", err)
		}
		if s.node != nil {
			s.node.Broadcast(msg)
		}
	}
}

// persistValidators serializes the current validator set and writes it
// under the "state" key, so a gossiped registration survives a restart
// instead of only the node's own self-registration (written separately at
// startup) sticking around.
func (s *Session) persistValidators() error {
	if s.store == nil {
		return nil
	}
	data, err := s.validators.Marshal()
	if err != nil {
		return err
	}
	return s.store.PutValidatorState(data)
}

func (s *Session) handleProposeBlock(peer *Peer, msg Message) {
	var prop ProposeBlockPayload
	if err := json.Unmarshal(msg.Payload, &prop); err != nil {
		log.Printf("[session] decode propose-block from %s: %v", peer.ID, err)
		return
	}
	if prop.Block == nil {
		return
	}
	if prop.Block.Index > s.bc.Height()+1 {
		// We are missing blocks this proposal builds on; request a catch-up
		// from the proposing peer instead of silently dropping the proposal.
		if err := peer.Send(Message{Type: MsgRequestChain}); err != nil {
			log.Printf("[session] request chain from %s: %v", peer.ID, err)
		}
		if s.onOutOfSync != nil {
			s.onOutOfSync(peer)
		}
		return
	}
	if s.onProposeBlock != nil {
		s.onProposeBlock(prop.Block)
	}
}

func (s *Session) handleVote(msg Message, kind VoteKind) {
	var vote VotePayload
	if err := json.Unmarshal(msg.Payload, &vote); err != nil {
		log.Printf("[session] decode vote: %v", err)
		return
	}
	pub, err := crypto.PubKeyFromHex(vote.PubKey)
	if err != nil {
		log.Printf("[session] vote invalid pubkey: %v", err)
		return
	}
	if pub.Address() != vote.Voter {
		log.Printf("[session] vote address %s does not match pubkey", vote.Voter)
		return
	}
	preimage := VotePreimage(vote.Height, vote.BlockHash, vote.Kind)
	if err := crypto.Verify(pub, preimage, vote.Signature); err != nil {
		log.Printf("[session] vote signature invalid from %s: %v", vote.Voter, err)
		return
	}
	if s.votes == nil {
		return
	}
	switch kind {
	case VoteKindPre:
		s.votes.HandlePreVote(vote.Height, vote.BlockHash, vote.Voter)
	case VoteKindPreCommit:
		s.votes.HandlePreCommit(vote.Height, vote.BlockHash, vote.Voter)
	}
}
