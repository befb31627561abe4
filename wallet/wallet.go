package wallet

import (
	"encoding/json"

	"github.com/aldera-network/aldera/core"
	"github.com/aldera-network/aldera/crypto"
)

// Wallet holds a key pair and provides transaction-building helpers.
type Wallet struct {
	priv crypto.PrivateKey
	pub  crypto.PublicKey
}

// New creates a Wallet from an existing private key.
func New(priv crypto.PrivateKey) *Wallet {
	return &Wallet{priv: priv, pub: priv.Public()}
}

// Generate creates a Wallet with a freshly generated key pair.
func Generate() (*Wallet, error) {
	priv, _, err := crypto.GenerateKeyPair()
	if err != nil {
		return nil, err
	}
	return New(priv), nil
}

// PrivKey returns the raw private key (handle with care).
func (w *Wallet) PrivKey() crypto.PrivateKey {
	return w.priv
}

// PubKey returns the hex-encoded ed25519 public key (used as "from" field).
func (w *Wallet) PubKey() string {
	return w.pub.Hex()
}

// Address returns the validator address derived from the public key.
func (w *Wallet) Address() string {
	return w.pub.Address()
}

// NewTx builds and signs a transaction wrapping an arbitrary payload. nonce
// should match the account's current nonce as tracked by the caller; the
// consensus core does not itself track per-account nonces.
func (w *Wallet) NewTx(nonce uint64, payload any) (*core.Transaction, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	tx := core.NewTransaction(w.pub.Hex(), nonce, data)
	tx.Sign(w.priv)
	return tx, nil
}
