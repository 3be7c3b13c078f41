package mocks

import (
	"context"
	"sync"

	"github.com/atelierhq/design-api/internal/store"
)

// MockBlobStore implements store.BlobStore with an in-memory map.
type MockBlobStore struct {
	// PutFn and GetFn allow test cases to override behavior
	PutFn func(ctx context.Context, key string, data []byte, contentType string) error
	GetFn func(ctx context.Context, key string) ([]byte, error)

	// PutErr and GetErr are returned unconditionally when set
	PutErr error
	GetErr error

	mu           sync.Mutex
	objects      map[string][]byte
	contentTypes map[string]string
	putCalls     int
}

func NewMockBlobStore() *MockBlobStore {
	return &MockBlobStore{
		objects:      make(map[string][]byte),
		contentTypes: make(map[string]string),
	}
}

// Put implements store.BlobStore.
func (m *MockBlobStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	m.mu.Lock()
	m.putCalls++
	m.mu.Unlock()

	if m.PutFn != nil {
		return m.PutFn(ctx, key, data, contentType)
	}
	if m.PutErr != nil {
		return m.PutErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	stored := make([]byte, len(data))
	copy(stored, data)
	m.objects[key] = stored
	m.contentTypes[key] = contentType
	return nil
}

// Get implements store.BlobStore.
func (m *MockBlobStore) Get(ctx context.Context, key string) ([]byte, error) {
	if m.GetFn != nil {
		return m.GetFn(ctx, key)
	}
	if m.GetErr != nil {
		return nil, m.GetErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, store.ErrBlobNotFound
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// PutCount returns how many times Put was called.
func (m *MockBlobStore) PutCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.putCalls
}

// ContentType returns the content type recorded for a stored key.
func (m *MockBlobStore) ContentType(key string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.contentTypes[key]
}
