package core_test

import (
	"testing"

	"github.com/aldera-network/aldera/core"
	"github.com/aldera-network/aldera/crypto"
)

func newSignedTx(t *testing.T, nonce uint64) *core.Transaction {
	t.Helper()
	priv, pub, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	tx := core.NewTransaction(pub.Hex(), nonce, []byte(`{"op":"noop"}`))
	tx.Sign(priv)
	return tx
}

func TestMempoolAddAndPending(t *testing.T) {
	mp := core.NewMempool()
	tx := newSignedTx(t, 0)
	if err := mp.Add(tx); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if mp.Size() != 1 {
		t.Errorf("size: got %d want 1", mp.Size())
	}
	if err := mp.Add(tx); err == nil {
		t.Error("adding duplicate tx should fail")
	}
	pending := mp.Pending(10)
	if len(pending) != 1 || pending[0].ID != tx.ID {
		t.Errorf("pending: got %+v", pending)
	}
}

func TestMempoolRejectsBadSignature(t *testing.T) {
	mp := core.NewMempool()
	tx := newSignedTx(t, 0)
	tx.Signature = "00" + tx.Signature[2:]
	if err := mp.Add(tx); err == nil {
		t.Error("expected Add to reject a tx with a tampered signature")
	}
}

func TestMempoolRemove(t *testing.T) {
	mp := core.NewMempool()
	tx := newSignedTx(t, 0)
	if err := mp.Add(tx); err != nil {
		t.Fatal(err)
	}
	mp.Remove([]string{tx.ID})
	if mp.Size() != 0 {
		t.Error("pool should be empty after Remove")
	}
	if _, ok := mp.Get(tx.ID); ok {
		t.Error("removed tx should no longer be retrievable")
	}
}

func TestMempoolPendingRespectsLimit(t *testing.T) {
	mp := core.NewMempool()
	for i := uint64(0); i < 5; i++ {
		if err := mp.Add(newSignedTx(t, i)); err != nil {
			t.Fatal(err)
		}
	}
	if got := mp.Pending(3); len(got) != 3 {
		t.Errorf("Pending(3): got %d items want 3", len(got))
	}
}
