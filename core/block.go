// Package core implements the consensus-and-replication data model: blocks,
// the in-memory chain, the validator set, the mempool, and the persistent
// store contract. The pending/vote bookkeeping lives in consensus.Tally.
package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aldera-network/aldera/crypto"
)

// MaxClockSkew is the maximum amount a block's timestamp may sit in the
// future of the validating node's clock before it is rejected.
const MaxClockSkew = 10 * time.Second

// hashPreimage holds exactly the fields that are hashed to produce a
// block's identity. Signature is deliberately excluded -- hashing it would
// make the signature self-referential.
type hashPreimage struct {
	Index        int64           `json:"index"`
	Timestamp    int64           `json:"timestamp"`
	Payload      json.RawMessage `json:"payload"`
	PreviousHash string          `json:"previous_hash"`
	Validator    string          `json:"validator"`
}

// Block is a signed, hash-chained record at a specific height. A block's
// identity is its Hash; two blocks are equal iff their hashes are equal.
type Block struct {
	Index        int64           `json:"index"`
	Timestamp    int64           `json:"timestamp"` // unix seconds
	Payload      json.RawMessage `json:"payload"`
	PreviousHash string          `json:"previous_hash"`
	Hash         string          `json:"hash"`
	Validator    string          `json:"validator"` // hex ed25519 public key of the proposer
	Signature    string          `json:"signature"`
}

// CalculateHash returns the SHA-256 hex digest of the block's canonical
// header-and-payload preimage. Pure function: it never reads b.Hash.
func CalculateHash(b *Block) string {
	data, err := json.Marshal(hashPreimage{
		Index:        b.Index,
		Timestamp:    b.Timestamp,
		Payload:      b.Payload,
		PreviousHash: b.PreviousHash,
		Validator:    b.Validator,
	})
	if err != nil {
		// json.Marshal only fails on unsupported types (channels, funcs);
		// none appear in hashPreimage, so this is unreachable in practice.
		return ""
	}
	return crypto.Hash(data)
}

// NewBlock builds a fully signed block in one step: it computes the
// timestamp, the hash, and the proposer's signature, so the value it
// returns is always internally consistent.
func NewBlock(index int64, payload json.RawMessage, previousHash string, priv crypto.PrivateKey) *Block {
	if payload == nil {
		payload = json.RawMessage("null")
	}
	b := &Block{
		Index:        index,
		Timestamp:    time.Now().Unix(),
		Payload:      payload,
		PreviousHash: previousHash,
		Validator:    priv.Public().Hex(),
	}
	b.Hash = CalculateHash(b)
	b.Signature = crypto.Sign(priv, []byte(b.Hash))
	return b
}

// ValidateBlock checks newBlock against prev in the order specified by the
// consensus rules: height continuity, previous-hash linkage, timestamp
// monotonicity and skew, hash recomputation, and proposer signature. It
// never panics; every failure is a plain error for the caller to log.
func ValidateBlock(newBlock, prev *Block) error {
	if newBlock.Index != prev.Index+1 {
		return fmt.Errorf("height %d does not follow %d", newBlock.Index, prev.Index)
	}
	if newBlock.PreviousHash != CalculateHash(prev) {
		return fmt.Errorf("previous_hash mismatch: got %s want %s", newBlock.PreviousHash, CalculateHash(prev))
	}
	if newBlock.Timestamp < prev.Timestamp {
		return fmt.Errorf("timestamp %d precedes previous block's %d", newBlock.Timestamp, prev.Timestamp)
	}
	if maxFuture := time.Now().Add(MaxClockSkew).Unix(); newBlock.Timestamp > maxFuture {
		return fmt.Errorf("timestamp %d too far in the future (max %d)", newBlock.Timestamp, maxFuture)
	}
	if computed := CalculateHash(newBlock); newBlock.Hash != computed {
		return fmt.Errorf("hash mismatch: stored %s computed %s", newBlock.Hash, computed)
	}
	pub, err := crypto.PubKeyFromHex(newBlock.Validator)
	if err != nil {
		return fmt.Errorf("invalid validator pubkey: %w", err)
	}
	if err := crypto.Verify(pub, []byte(newBlock.Hash), newBlock.Signature); err != nil {
		return fmt.Errorf("signature invalid: %w", err)
	}
	return nil
}

// IsChainValid applies ValidateBlock pairwise from height 1 upward and
// checks that block 0 is byte-identical to the network genesis.
func IsChainValid(chain []*Block) error {
	if len(chain) == 0 {
		return errors.New("empty chain")
	}
	if chain[0].Hash != Genesis.Hash {
		return fmt.Errorf("genesis mismatch: got %s want %s", chain[0].Hash, Genesis.Hash)
	}
	for i := 1; i < len(chain); i++ {
		if err := ValidateBlock(chain[i], chain[i-1]); err != nil {
			return fmt.Errorf("block %d: %w", chain[i].Index, err)
		}
	}
	return nil
}
