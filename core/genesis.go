package core

import "encoding/json"

// GenesisTimestamp is the fixed unix-seconds timestamp embedded in the
// network-wide genesis block.
const GenesisTimestamp = 1728151993

// GenesisPreviousHash is the canonical placeholder previous-hash for height
// zero: there is no block before genesis.
const GenesisPreviousHash = "0000000000000000000000000000000000000000000000000000000000000000"

// GenesisValidator is the placeholder proposer identity for the genesis
// block. Genesis has no real signer -- it is a network-wide constant agreed
// out of band, not produced by EDFM -- so this is the all-zero pubkey hex
// rather than any live validator's key.
const GenesisValidator = "0000000000000000000000000000000000000000000000000000000000000000"

// GenesisSignature is the placeholder signature accompanying GenesisValidator.
const GenesisSignature = "00"

// Genesis is the byte-identical, network-wide block at height 0. Every node
// must agree on this value; Blockchain.Init compares the first stored block
// against it and refuses to start on a mismatch (see IsChainValid).
var Genesis = buildGenesis()

func buildGenesis() *Block {
	b := &Block{
		Index:        0,
		Timestamp:    GenesisTimestamp,
		Payload:      json.RawMessage("null"),
		PreviousHash: GenesisPreviousHash,
		Validator:    GenesisValidator,
		Signature:    GenesisSignature,
	}
	b.Hash = CalculateHash(b)
	return b
}
