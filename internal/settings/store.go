package settings

import (
	"context"
	"errors"
	"strings"
	"sync"
)

// ErrNotFound signals that a settings key has no persisted value.
var ErrNotFound = errors.New("setting not found")

// Store defines the minimal persisted key-value operations the monitor needs.
// The only key consulted by the core is the lean-mode flag, read once at startup.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Close() error
}

// MemoryStore implements Store with an in-process map. It backs sessions that
// run without a settings backend, and test setups.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryStore creates an empty in-memory settings store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

// Get returns the stored value or ErrNotFound.
func (m *MemoryStore) Get(_ context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	value, ok := m.values[key]
	if !ok {
		return "", ErrNotFound
	}
	return value, nil
}

// Set stores a value under the key.
func (m *MemoryStore) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

// Close is a no-op for the in-memory store.
func (m *MemoryStore) Close() error { return nil }

// LeanModeEnabled reads the persisted lean-mode flag. Missing keys and lookup
// failures default to monitoring enabled; a settings outage must never keep
// the monitor from running.
func LeanModeEnabled(ctx context.Context, store Store, key string) bool {
	if store == nil || key == "" {
		return false
	}
	value, err := store.Get(ctx, key)
	if err != nil {
		return false
	}
	value = strings.TrimSpace(strings.ToLower(value))
	return value == "true" || value == "1" || value == "on"
}
