package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// TLSConfig holds paths to the PEM files needed for mTLS.
// When nil or all paths empty, the node falls back to plain TCP.
type TLSConfig struct {
	CACert   string `json:"ca_cert"`   // CA certificate PEM path
	NodeCert string `json:"node_cert"` // node certificate PEM path
	NodeKey  string `json:"node_key"`  // node private key PEM path
}

// Config holds all node configuration.
type Config struct {
	NodeID         string     `json:"node_id"`
	ListenAddress  string     `json:"listen_address"`
	BootstrapNodes []string   `json:"bootstrap_nodes,omitempty"` // host:port addresses dialed on startup
	DataDir        string     `json:"data_dir"`
	RPCAddress     string     `json:"rpc_address"`
	SelfStake      uint64     `json:"self_stake"` // this validator's own stake weight
	MaxBlockTxs    int        `json:"max_block_txs"` // not read by the node: the block producer always bundles at most 500 txs
	TLS            *TLSConfig `json:"tls,omitempty"` // nil → plain TCP
}

// DefaultConfig returns a single-node development configuration.
func DefaultConfig() *Config {
	return &Config{
		NodeID:        "node0",
		ListenAddress: "127.0.0.1:30303",
		DataDir:       "./data",
		RPCAddress:    "127.0.0.1:8545",
		SelfStake:     100,
		MaxBlockTxs:   500,
	}
}

// Load reads a JSON config file from path and validates required fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// Validate checks that all required fields are present and well-formed.
func (c *Config) Validate() error {
	if c.NodeID == "" {
		return fmt.Errorf("node_id must not be empty")
	}
	if c.DataDir == "" {
		return fmt.Errorf("data_dir must not be empty")
	}
	if c.ListenAddress == "" {
		return fmt.Errorf("listen_address must not be empty")
	}
	if c.RPCAddress == "" {
		return fmt.Errorf("rpc_address must not be empty")
	}
	if c.RPCAddress == c.ListenAddress {
		return fmt.Errorf("rpc_address and listen_address must not be the same (%s)", c.RPCAddress)
	}
	if c.SelfStake == 0 {
		return fmt.Errorf("self_stake must be greater than zero")
	}
	if c.TLS != nil {
		t := c.TLS
		allSet := t.CACert != "" && t.NodeCert != "" && t.NodeKey != ""
		allEmpty := t.CACert == "" && t.NodeCert == "" && t.NodeKey == ""
		if !allSet && !allEmpty {
			return fmt.Errorf("tls: all three paths (ca_cert, node_cert, node_key) must be set or all empty")
		}
	}
	return nil
}

// Save writes the config to path as formatted JSON.
func Save(cfg *Config, path string) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}
