// Package storage provides the persistence layer for the simulation server.
// This package implements the repository pattern to keep the domain pure:
// stores move opaque blobs, SaveManager knows what is inside them.
package storage

import (
	"context"
	"errors"
	"sync"
)

// SaveKey is the single key progress is stored under.
const SaveKey = "medsim.save.part2"

// ErrNotFound is returned when a key holds nothing.
var ErrNotFound = errors.New("save not found")

// SaveStore defines the interface for blob persistence.
// The engine never sees this; it talks to SaveManager.
type SaveStore interface {
	// Load returns the blob under key or ErrNotFound.
	Load(ctx context.Context, key string) ([]byte, error)

	// Save replaces the blob under key.
	Save(ctx context.Context, key string, blob []byte) error

	// Clear removes the blob under key. Clearing a missing key is not an error.
	Clear(ctx context.Context, key string) error
}

// MemorySaveStore keeps blobs in process memory. Used by tests and by
// MEDSIM_STORE=memory.
type MemorySaveStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

func NewMemorySaveStore() *MemorySaveStore {
	return &MemorySaveStore{blobs: make(map[string][]byte)}
}

func (m *MemorySaveStore) Load(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.blobs[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), b...), nil
}

func (m *MemorySaveStore) Save(ctx context.Context, key string, blob []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[key] = append([]byte(nil), blob...)
	return nil
}

func (m *MemorySaveStore) Clear(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blobs, key)
	return nil
}

var _ SaveStore = (*MemorySaveStore)(nil)
