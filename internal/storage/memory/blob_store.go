// Package memory stores documents and issues in-memory for development and tests.
package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// BlobStore stores documents in-memory.
type BlobStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewBlobStore creates a new in-memory object store.
func NewBlobStore() *BlobStore {
	return &BlobStore{
		data: make(map[string][]byte),
	}
}

// Put persists a copy of data under key.
func (s *BlobStore) Put(_ context.Context, key string, _ string, data []byte) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("key is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = append([]byte(nil), data...)
	return nil
}

// Exists reports whether key has been stored.
func (s *BlobStore) Exists(_ context.Context, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.data[key]
	return ok, nil
}

// Get returns a copy of the stored bytes.
func (s *BlobStore) Get(key string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.data[key]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), data...), true
}

// Delete removes key. Used to simulate lost objects.
func (s *BlobStore) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
}

// Len returns the number of stored objects.
func (s *BlobStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}
