package storage

import (
	"context"
	"errors"
	"sync"
)

var ErrNotFound = errors.New("blob not found")

// BlobStore persists opaque envelope bytes. Implementations never see
// plaintext; encryption happens before Put and after Get.
type BlobStore interface {
	Put(ctx context.Context, id string, data []byte) error
	Get(ctx context.Context, id string) ([]byte, error)
	Delete(ctx context.Context, id string) error
}

type memoryBlobStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// NewMemoryBlobStore backs the dev gateway and tests.
func NewMemoryBlobStore() BlobStore {
	return &memoryBlobStore{blobs: map[string][]byte{}}
}

func (m *memoryBlobStore) Put(ctx context.Context, id string, data []byte) error {
	if id == "" {
		return errors.New("empty id")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[id] = append([]byte(nil), data...)
	return nil
}

func (m *memoryBlobStore) Get(ctx context.Context, id string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.blobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), data...), nil
}

func (m *memoryBlobStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blobs, id)
	return nil
}
