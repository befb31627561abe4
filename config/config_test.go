package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfigIsValid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Errorf("DefaultConfig() should validate cleanly: %v", err)
	}
}

func TestValidateRejectsMissingFields(t *testing.T) {
	cases := []struct {
		name string
		fn   func(*Config)
	}{
		{"empty node id", func(c *Config) { c.NodeID = "" }},
		{"empty data dir", func(c *Config) { c.DataDir = "" }},
		{"empty listen address", func(c *Config) { c.ListenAddress = "" }},
		{"empty rpc address", func(c *Config) { c.RPCAddress = "" }},
		{"zero self stake", func(c *Config) { c.SelfStake = 0 }},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			cfg := DefaultConfig()
			c.fn(cfg)
			if err := cfg.Validate(); err == nil {
				t.Errorf("expected Validate to reject config with %s", c.name)
			}
		})
	}
}

func TestValidateRejectsSameRPCAndListenAddress(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RPCAddress = cfg.ListenAddress
	if err := cfg.Validate(); err == nil {
		t.Error("expected Validate to reject identical rpc_address and listen_address")
	}
}

func TestValidateRejectsPartialTLS(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TLS = &TLSConfig{CACert: "ca.crt"}
	if err := cfg.Validate(); err == nil {
		t.Error("expected Validate to reject a partially-specified TLS config")
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	cfg := DefaultConfig()
	cfg.NodeID = "node-under-test"
	cfg.BootstrapNodes = []string{"127.0.0.1:30304"}
	if err := Save(cfg, path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.NodeID != cfg.NodeID {
		t.Errorf("node_id: got %q want %q", loaded.NodeID, cfg.NodeID)
	}
	if len(loaded.BootstrapNodes) != 1 || loaded.BootstrapNodes[0] != "127.0.0.1:30304" {
		t.Errorf("bootstrap_nodes: got %v", loaded.BootstrapNodes)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.json")); !os.IsNotExist(err) {
		t.Errorf("expected os.IsNotExist error, got %v", err)
	}
}
