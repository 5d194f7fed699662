package nodebuilder

import (
	"sync"
	"testing"

	"github.com/ipfs/go-datastore"
	dssync "github.com/ipfs/go-datastore/sync"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
)

// NewMemStore builds an in-memory Store for testing purposes.
func NewMemStore() Store {
	return &memStore{data: dssync.MutexWrap(datastore.NewMapDatastore())}
}

type memStore struct {
	mu   sync.Mutex
	cfg  *Config
	data datastore.Batching
}

func (m *memStore) Path() string { return "" }

func (m *memStore) Datastore() (datastore.Batching, error) {
	return m.data, nil
}

func (m *memStore) Config() (*Config, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cfg == nil {
		return nil, ErrNotInited
	}
	return m.cfg, nil
}

func (m *memStore) PutConfig(cfg *Config) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cfg = cfg
	return nil
}

func (m *memStore) Close() error {
	return m.data.Close()
}

// MockStore provides a mock in-memory Store for testing purposes.
func MockStore(t *testing.T, cfg *Config) Store {
	t.Helper()
	store := NewMemStore()

	err := store.PutConfig(cfg)
	require.NoError(t, err)
	return store
}

// TestNode assembles a Node over an in-memory store and random ports.
func TestNode(t *testing.T, opts ...fx.Option) *Node {
	return TestNodeWithConfig(t, testConfig(), opts...)
}

// TestNodeWithConfig assembles a Node over an in-memory store with a
// custom config.
func TestNodeWithConfig(t *testing.T, cfg *Config, opts ...fx.Option) *Node {
	t.Helper()
	store := MockStore(t, cfg)

	nd, err := New(store, opts...)
	require.NoError(t, err)
	return nd
}

// testConfig avoids port conflicts between parallel tests.
func testConfig() *Config {
	cfg := DefaultConfig()
	cfg.P2P.ListenAddresses = []string{"/ip4/127.0.0.1/tcp/0"}
	cfg.Gateway.Port = "0"
	return cfg
}
