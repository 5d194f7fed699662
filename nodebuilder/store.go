package nodebuilder

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
	"github.com/ipfs/go-datastore"
	dsbadger "github.com/ipfs/go-ds-badger4"
)

var (
	// ErrOpened is thrown on an attempt to open an already in-use Store.
	ErrOpened = errors.New("nodebuilder: store is in use")
	// ErrNotInited is thrown on an attempt to open an uninitialized Store.
	ErrNotInited = errors.New("nodebuilder: store is not initialized")
)

// Store gives access to the node's root directory: its config and the
// on-disk datastore backing the slot/shard store.
type Store interface {
	// Path reports the filesystem path of the Store.
	Path() string
	// Datastore provides the on-disk key-value store.
	Datastore() (datastore.Batching, error)
	// Config loads the stored node config.
	Config() (*Config, error)
	// PutConfig alters the stored node config.
	PutConfig(*Config) error
	// Close frees acquired resources and locks.
	Close() error
}

// OpenStore opens an initialized Store under the given 'path', taking a
// file lock so only one process uses the directory at a time.
func OpenStore(path string) (Store, error) {
	lock := flock.New(lockPath(path))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("nodebuilder: locking store: %w", err)
	}
	if !ok {
		return nil, ErrOpened
	}

	if !IsInit(path) {
		_ = lock.Unlock()
		return nil, ErrNotInited
	}

	return &fsStore{path: path, dirLock: lock}, nil
}

type fsStore struct {
	path    string
	dirLock *flock.Flock

	dataMu sync.Mutex
	data   datastore.Batching
}

func (f *fsStore) Path() string {
	return f.path
}

func (f *fsStore) Config() (*Config, error) {
	cfg, err := LoadConfig(configPath(f.path))
	if err != nil {
		return nil, fmt.Errorf("nodebuilder: loading config: %w", err)
	}
	return cfg, nil
}

func (f *fsStore) PutConfig(cfg *Config) error {
	if err := SaveConfig(configPath(f.path), cfg); err != nil {
		return fmt.Errorf("nodebuilder: saving config: %w", err)
	}
	return nil
}

func (f *fsStore) Datastore() (datastore.Batching, error) {
	f.dataMu.Lock()
	defer f.dataMu.Unlock()
	if f.data != nil {
		return f.data, nil
	}

	opts := dsbadger.DefaultOptions
	ds, err := dsbadger.NewDatastore(dataPath(f.path), &opts)
	if err != nil {
		return nil, fmt.Errorf("nodebuilder: opening datastore: %w", err)
	}
	f.data = ds
	return ds, nil
}

func (f *fsStore) Close() error {
	defer f.dirLock.Unlock() //nolint:errcheck

	f.dataMu.Lock()
	defer f.dataMu.Unlock()
	if f.data == nil {
		return nil
	}
	return f.data.Close()
}

func configPath(base string) string {
	return filepath.Join(base, "config.toml")
}

func lockPath(base string) string {
	return filepath.Join(base, ".lock")
}

func dataPath(base string) string {
	return filepath.Join(base, "data")
}

// IsInit checks whether a node directory was initialized under 'path'.
func IsInit(path string) bool {
	info, err := os.Stat(configPath(path))
	return err == nil && !info.IsDir()
}

// Init sets up a new node directory under 'path' with the given config.
// Initializing an already initialized directory keeps the existing config.
func Init(cfg *Config, path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("nodebuilder: creating node directory: %w", err)
	}
	if IsInit(path) {
		log.Infow("node directory already initialized", "path", path)
		return nil
	}
	if err := SaveConfig(configPath(path), cfg); err != nil {
		return err
	}
	log.Infow("node directory initialized", "path", path)
	return nil
}
