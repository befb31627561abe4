package core

import "errors"

// ErrNotFound is returned when a requested object does not exist in storage.
var ErrNotFound = errors.New("not found")

// Store is the persistence contract the consensus core depends on. It uses
// exactly three key shapes: "block:<hash>" for block bodies, the fixed key
// "tip" for the current highest block's hash, and the fixed key "state" for
// the serialized validator set. Writes are single-key and need not be
// atomic across keys: the tip is only updated after its block has been
// durably written, so a crash between the two writes leaves the tip
// pointing at the previous (still valid) block.
type Store interface {
	GetBlock(hash string) (*Block, error)
	PutBlock(block *Block) error

	// GetTip returns the hash of the current chain tip, or ("", nil) if the
	// store is fresh (no block has ever been committed).
	GetTip() (string, error)
	SetTip(hash string) error

	// GetValidatorState returns the raw serialized validator set, or
	// (nil, nil) if none has ever been persisted.
	GetValidatorState() ([]byte, error)
	PutValidatorState(data []byte) error
}
