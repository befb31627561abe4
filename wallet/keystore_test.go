package wallet

import (
	"path/filepath"
	"testing"
)

func TestSaveAndLoadKeyRoundTrip(t *testing.T) {
	w, err := Generate()
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "validator.key")

	if err := SaveKey(path, "correct horse battery staple", w.PrivKey()); err != nil {
		t.Fatalf("SaveKey: %v", err)
	}
	loaded, err := LoadKey(path, "correct horse battery staple")
	if err != nil {
		t.Fatalf("LoadKey: %v", err)
	}
	if loaded.Public().Hex() != w.PubKey() {
		t.Error("loaded key's public key does not match the saved wallet's")
	}
}

func TestLoadKeyRejectsWrongPassword(t *testing.T) {
	w, err := Generate()
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "validator.key")
	if err := SaveKey(path, "right-password", w.PrivKey()); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadKey(path, "wrong-password"); err == nil {
		t.Error("expected LoadKey to fail with the wrong password")
	}
}
