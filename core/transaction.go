package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aldera-network/aldera/crypto"
)

// Transaction is a signed envelope around an opaque payload. The consensus
// core never interprets Payload -- transaction validity and state
// transitions are out of scope here -- it only verifies the envelope's
// signature before letting a proposer bundle the payload into a block.
// From holds the sender's full hex-encoded ed25519 public key (64 chars).
// Signature covers every field except ID and Signature itself; ID is the
// hash of the signed fields.
type Transaction struct {
	ID        string          `json:"id"`
	From      string          `json:"from"`
	Nonce     uint64          `json:"nonce"`
	Timestamp int64           `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
	Signature string          `json:"signature"`
}

// signingBody holds the fields that are covered by the signature.
type signingBody struct {
	From      string          `json:"from"`
	Nonce     uint64          `json:"nonce"`
	Timestamp int64           `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// Hash returns a deterministic hash of the transaction (sans ID and Signature).
// Returns an empty string if marshalling fails (which cannot happen in
// practice: signingBody only carries JSON-marshalable fields).
func (tx *Transaction) Hash() string {
	body := signingBody{
		From:      tx.From,
		Nonce:     tx.Nonce,
		Timestamp: tx.Timestamp,
		Payload:   tx.Payload,
	}
	data, err := json.Marshal(body)
	if err != nil {
		return ""
	}
	return crypto.Hash(data)
}

// Sign computes the signature and sets ID.
func (tx *Transaction) Sign(priv crypto.PrivateKey) {
	hash := tx.Hash()
	tx.Signature = crypto.Sign(priv, []byte(hash))
	tx.ID = hash
}

// Verify checks the signature and that From is a valid public key.
func (tx *Transaction) Verify() error {
	if tx.From == "" {
		return errors.New("missing from field")
	}
	pub, err := crypto.PubKeyFromHex(tx.From)
	if err != nil {
		return fmt.Errorf("invalid from (must be ed25519 pubkey hex): %w", err)
	}
	return crypto.Verify(pub, []byte(tx.Hash()), tx.Signature)
}

// NewTransaction creates an unsigned transaction with the current timestamp.
func NewTransaction(from string, nonce uint64, payload []byte) *Transaction {
	if payload == nil {
		payload = []byte("null")
	}
	return &Transaction{
		From:      from,
		Nonce:     nonce,
		Timestamp: time.Now().UnixNano(),
		Payload:   payload,
	}
}
