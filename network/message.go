// Package network implements the peer-to-peer mesh: a newline-framed JSON
// wire protocol, per-peer session handling (handshake, gossip dispatch),
// and the chain synchronizer that brings a lagging node up to the longest
// valid chain.
package network

import (
	"encoding/json"

	"github.com/aldera-network/aldera/core"
)

// MsgType labels a wire message. Names are part of the wire contract and
// must stay stable across nodes.
type MsgType string

const (
	MsgStatus            MsgType = "Status"
	MsgRequestChain      MsgType = "RequestChain"
	MsgRespondChain      MsgType = "RespondChain"
	MsgRegisterValidator MsgType = "RegisterValidator"
	MsgProposeBlock      MsgType = "ProposeBlock"
	MsgPreVote           MsgType = "PreVote"
	MsgPreCommit         MsgType = "PreCommit"
)

// Message is the envelope for every P2P communication. It is serialized as
// one line of UTF-8 JSON terminated with "\n"; there is no length prefix.
type Message struct {
	Type    MsgType         `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// StatusPayload is sent immediately on handshake by both sides of a
// connection. It is not re-sent later when the tip changes.
type StatusPayload struct {
	BlockNumber int64 `json:"block_number"`
}

// RespondChainPayload carries a full-chain dump for catch-up.
type RespondChainPayload struct {
	Blocks []*core.Block `json:"blocks"`
}

// RegisterValidatorPayload gossips a new validator's address, stake, and
// the public key the address was derived from (so peers need not trust an
// arbitrary claimed address-to-stake binding).
type RegisterValidatorPayload struct {
	Address string `json:"address"`
	Stake   uint64 `json:"stake"`
	PubKey  string `json:"pubkey"`
}

// ProposeBlockPayload carries a full candidate block.
type ProposeBlockPayload struct {
	Block *core.Block `json:"block"`
}

// VoteKind distinguishes a prevote from a precommit in the signed preimage.
type VoteKind string

const (
	VoteKindPre       VoteKind = "prevote"
	VoteKindPreCommit VoteKind = "precommit"
)

// VotePayload is shared by PreVote and PreCommit. Voter is the validator's
// address; Signature covers the canonical preimage built by VotePreimage,
// so a vote cannot be forged or replayed for a different height/hash/kind
// and the tally can key its sets by validator address instead of by the
// unauthenticated TCP peer address.
type VotePayload struct {
	Height    int64    `json:"height"`
	BlockHash string   `json:"block_hash"`
	Voter     string   `json:"voter"`
	PubKey    string   `json:"pubkey"`
	Signature string   `json:"signature"`
	Kind      VoteKind `json:"kind"`
}

// VotePreimage returns the exact bytes a vote's Signature is computed over.
func VotePreimage(height int64, blockHash string, kind VoteKind) []byte {
	return []byte(string(kind) + "|" + itoa(height) + "|" + blockHash)
}

func itoa(n int64) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

func encode(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		// Every payload type here is a plain struct of JSON-safe fields;
		// Marshal can only fail on unsupported types, so this is
		// unreachable in practice.
		return json.RawMessage("null")
	}
	return data
}
