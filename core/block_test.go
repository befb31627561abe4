package core

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/aldera-network/aldera/crypto"
)

func TestBlockHashDeterministic(t *testing.T) {
	priv, _, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	block := NewBlock(1, json.RawMessage(`{"x":1}`), Genesis.Hash, priv)
	if block.Hash == "" {
		t.Fatal("hash should be set after NewBlock")
	}
	if CalculateHash(block) != block.Hash {
		t.Error("CalculateHash(block) does not match stored hash")
	}
}

func TestValidateBlockAcceptsGoodSuccessor(t *testing.T) {
	priv, _, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	next := NewBlock(Genesis.Index+1, nil, Genesis.Hash, priv)
	if err := ValidateBlock(next, Genesis); err != nil {
		t.Fatalf("expected valid successor block, got: %v", err)
	}
}

func TestValidateBlockRejectsWrongHeight(t *testing.T) {
	priv, _, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	next := NewBlock(Genesis.Index+2, nil, Genesis.Hash, priv)
	if err := ValidateBlock(next, Genesis); err == nil {
		t.Error("expected error for non-contiguous height")
	}
}

func TestValidateBlockRejectsBadPreviousHash(t *testing.T) {
	priv, _, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	next := NewBlock(Genesis.Index+1, nil, "not-the-genesis-hash", priv)
	if err := ValidateBlock(next, Genesis); err == nil {
		t.Error("expected error for mismatched previous_hash")
	}
}

func TestValidateBlockRejectsTimestampRegression(t *testing.T) {
	priv, _, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	next := NewBlock(Genesis.Index+1, nil, Genesis.Hash, priv)
	next.Timestamp = Genesis.Timestamp - 1
	next.Hash = CalculateHash(next)
	next.Signature = crypto.Sign(priv, []byte(next.Hash))
	if err := ValidateBlock(next, Genesis); err == nil {
		t.Error("expected error for timestamp preceding previous block")
	}
}

func TestValidateBlockRejectsFutureSkew(t *testing.T) {
	priv, _, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	next := NewBlock(Genesis.Index+1, nil, Genesis.Hash, priv)
	next.Timestamp = time.Now().Add(2 * MaxClockSkew).Unix()
	next.Hash = CalculateHash(next)
	next.Signature = crypto.Sign(priv, []byte(next.Hash))
	if err := ValidateBlock(next, Genesis); err == nil {
		t.Error("expected error for timestamp too far in the future")
	}
}

func TestValidateBlockRejectsTamperedSignature(t *testing.T) {
	priv, _, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	next := NewBlock(Genesis.Index+1, nil, Genesis.Hash, priv)
	next.Signature = "00" + next.Signature[2:]
	if err := ValidateBlock(next, Genesis); err == nil {
		t.Error("expected error for tampered signature")
	}
}

func TestIsChainValid(t *testing.T) {
	priv, _, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	b1 := NewBlock(1, nil, Genesis.Hash, priv)
	b2 := NewBlock(2, nil, b1.Hash, priv)
	if err := IsChainValid([]*Block{Genesis, b1, b2}); err != nil {
		t.Fatalf("expected valid chain, got: %v", err)
	}

	bad := []*Block{b1, b2} // missing genesis root
	if err := IsChainValid(bad); err == nil {
		t.Error("expected error for chain not rooted at genesis")
	}
}
