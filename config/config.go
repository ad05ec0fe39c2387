// Package config holds the JSON-tagged configuration a supervisor loads
// once at network bootstrap, mirroring the shape (Default/Load/Validate/
// Save) used across this codebase's services.
package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// TLSConfig holds paths to the PEM files needed for mTLS between peers.
// Validate checks that the three paths are set together or not at all;
// nothing else reads them, since the only transport is the in-process bus.
type TLSConfig struct {
	CACert   string `json:"ca_cert"`
	PeerCert string `json:"peer_cert"`
	PeerKey  string `json:"peer_key"`
}

// SeedPeer identifies a remote peer by ID and address. Nothing reads it:
// the only transport is the in-process bus.
type SeedPeer struct {
	ID   int    `json:"id"`
	Addr string `json:"addr"`
}

// NetworkConfig describes parameters fixed once at network bootstrap and
// immutable afterward, playing the role a genesis configuration plays for
// a blockchain: every peer in the run must agree on it.
type NetworkConfig struct {
	Size        int `json:"size"`         // number of peers; bounds peer_id in Validate (supervisor.Bootstrap sizes the network from the trace's authors)
	StashSlack  int `json:"stash_slack"`  // override of document.StashSlack; 0 -> default
	MailboxSize int `json:"mailbox_size"` // per-peer buffered mailbox capacity; 0 -> default
}

// Config holds all supervisor/peer configuration for one run.
type Config struct {
	PeerID       int           `json:"peer_id"`
	DataDir      string        `json:"data_dir"`
	RPCAddr      string        `json:"rpc_addr"`
	P2PAddr      string        `json:"p2p_addr"`
	Network      NetworkConfig `json:"network"`
	SeedPeers    []SeedPeer    `json:"seed_peers,omitempty"`
	TLS          *TLSConfig    `json:"tls,omitempty"`
	RPCAuthToken string        `json:"rpc_auth_token,omitempty"`
	TracePath    string        `json:"trace_path,omitempty"`
}

// Default returns a single-peer development configuration.
func Default() *Config {
	return &Config{
		PeerID:  0,
		DataDir: "./data",
		RPCAddr: ":8545",
		P2PAddr: ":30303",
		Network: NetworkConfig{
			Size:        1,
			StashSlack:  2,
			MailboxSize: 256,
		},
	}
}

// Load reads a JSON config file from path and validates required fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := Default()
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
	if c.DataDir == "" {
		return fmt.Errorf("data_dir must not be empty")
	}
	if c.Network.Size <= 0 {
		return fmt.Errorf("network.size must be positive, got %d", c.Network.Size)
	}
	if c.PeerID < 0 || c.PeerID >= c.Network.Size {
		return fmt.Errorf("peer_id %d out of range [0,%d)", c.PeerID, c.Network.Size)
	}
	if c.TLS != nil {
		t := c.TLS
		allSet := t.CACert != "" && t.PeerCert != "" && t.PeerKey != ""
		allEmpty := t.CACert == "" && t.PeerCert == "" && t.PeerKey == ""
		if !allSet && !allEmpty {
			return fmt.Errorf("tls: all three paths (ca_cert, peer_cert, peer_key) must be set or all empty")
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
