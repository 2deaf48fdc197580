package subscription

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/nats-io/nats.go/jetstream"
	"sigs.k8s.io/yaml"
)

// StorageKey is the key under which subscriber names are persisted.
const StorageKey = "subscriberNames"

// Store persists the ordered list of subscriber names.
type Store interface {
	// Load returns the persisted names, or none if nothing was saved yet.
	Load(ctx context.Context) ([]string, error)

	// Save overwrites the persisted names.
	Save(ctx context.Context, names []string) error
}

type storage struct {
	SubscriberNames []string `json:"subscriberNames"`
}

// FileStore keeps the names in a YAML file, replaced atomically on save.
type FileStore struct {
	path string
}

// NewFileStore returns a store backed by path. The file need not exist.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load implements Store.
func (f *FileStore) Load(context.Context) ([]string, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.path, err)
	}
	var s storage
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse %s: %w", f.path, err)
	}
	return s.SubscriberNames, nil
}

// Save implements Store.
func (f *FileStore) Save(_ context.Context, names []string) error {
	data, err := yaml.Marshal(storage{SubscriberNames: nonNil(names)})
	if err != nil {
		return fmt.Errorf("marshal subscribers: %w", err)
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("replace %s: %w", f.path, err)
	}
	return nil
}

// KVStore keeps the names as JSON under StorageKey in a JetStream KV bucket.
type KVStore struct {
	kv jetstream.KeyValue
}

// NewKVStore returns a store backed by bucket.
func NewKVStore(bucket jetstream.KeyValue) *KVStore {
	return &KVStore{kv: bucket}
}

// Load implements Store.
func (k *KVStore) Load(ctx context.Context) ([]string, error) {
	entry, err := k.kv.Get(ctx, StorageKey)
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("kv get %s: %w", StorageKey, err)
	}
	var names []string
	if err := json.Unmarshal(entry.Value(), &names); err != nil {
		return nil, fmt.Errorf("parse %s: %w", StorageKey, err)
	}
	return names, nil
}

// Save implements Store.
func (k *KVStore) Save(ctx context.Context, names []string) error {
	data, err := json.Marshal(nonNil(names))
	if err != nil {
		return fmt.Errorf("marshal subscribers: %w", err)
	}
	if _, err := k.kv.Put(ctx, StorageKey, data); err != nil {
		return fmt.Errorf("kv put %s: %w", StorageKey, err)
	}
	return nil
}

// MemoryStore keeps the names in memory.
type MemoryStore struct {
	mu    sync.Mutex
	names []string
	saves int
	err   error
}

// NewMemoryStore returns a store preloaded with names.
func NewMemoryStore(names ...string) *MemoryStore {
	return &MemoryStore{names: names}
}

// Load implements Store.
func (m *MemoryStore) Load(context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.names), nil
}

// Save implements Store.
func (m *MemoryStore) Save(_ context.Context, names []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.names = slices.Clone(names)
	m.saves++
	return nil
}

// FailWith makes subsequent saves fail with err.
func (m *MemoryStore) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Saves returns how many saves succeeded.
func (m *MemoryStore) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

func nonNil(names []string) []string {
	if names == nil {
		return []string{}
	}
	return names
}
