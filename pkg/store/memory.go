package store

import (
	"context"
	"sync"

	// Packages
	mcp "github.com/mutablelogic/go-mcp"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

// memoryBlobStore is an in-process, mutex-guarded map of key to encrypted
// blob. Safe for concurrent use.
type memoryBlobStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

///////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

// NewMemoryStorage creates a new empty in-memory Storage. The passphrase
// encrypts every entity at rest; it does not need to survive process
// restarts since the backing map doesn't either, but it still means a core
// dump of the process doesn't leak tokens in plaintext.
func NewMemoryStorage(passphrase string) (*Storage, error) {
	return newStorage(passphrase, &memoryBlobStore{data: make(map[string][]byte)})
}

///////////////////////////////////////////////////////////////////////////////
// blobStore

func (m *memoryBlobStore) get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	blob, ok := m.data[key]
	return blob, ok, nil
}

func (m *memoryBlobStore) set(_ context.Context, key string, blob []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = blob
	return nil
}

func (m *memoryBlobStore) delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[key]; !ok {
		return mcp.ErrNotFound.Withf("no entry for key %q", key)
	}
	delete(m.data, key)
	return nil
}
