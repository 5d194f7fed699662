// Package nodebuilder assembles a runnable DAL node out of its components:
// configuration, the on-disk store, the libp2p host with the gossip mesh,
// the host-chain crawler and the HTTP gateway.
package nodebuilder

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/imdario/mergo"

	"github.com/cantina-forks/dal-node/store"
)

// ConfigLoader defines a function that loads a config from any source.
type ConfigLoader func() (*Config, error)

// Config is the main configuration structure for the node, combining the
// configuration units of all subsystems.
type Config struct {
	P2P     P2PConfig
	Chain   ChainConfig
	Gateway GatewayConfig
	Store   StoreConfig
}

// P2PConfig configures the libp2p host and the gossip mesh.
type P2PConfig struct {
	// ListenAddresses are the multiaddresses the host listens on.
	ListenAddresses []string
	// BootstrapPeers are dialed on startup to seed the mesh.
	BootstrapPeers []string
	// ConnectTimeout bounds a single dial attempt.
	ConnectTimeout time.Duration
}

// ChainConfig configures host-chain access.
type ChainConfig struct {
	// RPCAddress is the base URL of the host-chain RPC.
	RPCAddress string
	// RetryDelay is the crawl-loop resubscription delay.
	RetryDelay time.Duration
}

// GatewayConfig configures the HTTP gateway.
type GatewayConfig struct {
	Enabled bool
	Address string
	Port    string
}

// StoreConfig configures persistence cache capacities.
type StoreConfig struct {
	SlotCacheSize  int
	ShardCacheSize int
	ProofCacheSize int
}

// DefaultConfig provides a default Config.
func DefaultConfig() *Config {
	storeDefaults := store.DefaultParameters()
	return &Config{
		P2P: P2PConfig{
			ListenAddresses: []string{
				"/ip4/0.0.0.0/tcp/2021",
				"/ip6/::/tcp/2021",
			},
			ConnectTimeout: time.Minute,
		},
		Chain: ChainConfig{
			RPCAddress: "http://localhost:8732",
			RetryDelay: 5 * time.Second,
		},
		Gateway: GatewayConfig{
			Enabled: true,
			Address: "localhost",
			Port:    "10732",
		},
		Store: StoreConfig{
			SlotCacheSize:  storeDefaults.SlotCacheSize,
			ShardCacheSize: storeDefaults.ShardCacheSize,
			ProofCacheSize: storeDefaults.ProofCacheSize,
		},
	}
}

// Validate performs basic validation of the whole config.
func (cfg *Config) Validate() error {
	if len(cfg.P2P.ListenAddresses) == 0 {
		return fmt.Errorf("nodebuilder: no p2p listen addresses")
	}
	if cfg.Chain.RPCAddress == "" {
		return fmt.Errorf("nodebuilder: empty chain rpc address")
	}
	params := store.Parameters{
		SlotCacheSize:  cfg.Store.SlotCacheSize,
		ShardCacheSize: cfg.Store.ShardCacheSize,
		ProofCacheSize: cfg.Store.ProofCacheSize,
	}
	return params.Validate()
}

// StoreParameters converts the config section into store parameters.
func (cfg *Config) StoreParameters() store.Parameters {
	return store.Parameters{
		SlotCacheSize:  cfg.Store.SlotCacheSize,
		ShardCacheSize: cfg.Store.ShardCacheSize,
		ProofCacheSize: cfg.Store.ProofCacheSize,
	}
}

// SaveConfig saves Config 'cfg' under the given 'path'.
func SaveConfig(path string, cfg *Config) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return cfg.Encode(f)
}

// LoadConfig loads Config from the given 'path', filling any missing
// fields from the defaults.
func LoadConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	if _, err := toml.NewDecoder(f).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("nodebuilder: decoding config: %w", err)
	}
	if err := mergo.Merge(&cfg, DefaultConfig()); err != nil {
		return nil, fmt.Errorf("nodebuilder: merging config defaults: %w", err)
	}
	return &cfg, cfg.Validate()
}

// Encode writes the TOML form of the config.
func (cfg *Config) Encode(w io.Writer) error {
	return toml.NewEncoder(w).Encode(cfg)
}
