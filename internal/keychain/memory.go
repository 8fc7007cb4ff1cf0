package keychain

import (
	"context"
	"fmt"
	"sync"

	"github.com/desertthunder/nowplaying/internal/shared"
)

// MemoryStore is an in-process [Store]. Values are copied on the way in and out.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string][]byte
}

// NewMemoryStore creates an empty [MemoryStore].
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string][]byte)}
}

func (m *MemoryStore) Save(_ context.Context, key string, data []byte) error {
	if key == "" {
		return fmt.Errorf("%w: empty key", shared.ErrInvalidArgument)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = append([]byte(nil), data...)
	return nil
}

func (m *MemoryStore) Load(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.items[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", shared.ErrItemNotFound, key)
	}
	return append([]byte(nil), data...), nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, key)
	return nil
}

func (m *MemoryStore) Exists(_ context.Context, key string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.items[key]
	return ok, nil
}
