// storage/memory_store.go
package storage

import (
	"context"
	"sync"
)

type memoryEntry struct {
	value []byte
	rev   Revision
}

type MemoryStorage struct {
	entries map[string]memoryEntry
	mu      sync.RWMutex
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		entries: make(map[string]memoryEntry),
	}
}

func (s *MemoryStorage) Get(ctx context.Context, key string) ([]byte, Revision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, exists := s.entries[key]
	if !exists {
		return nil, 0, ErrKeyNotFound
	}
	return append([]byte(nil), e.value...), e.rev, nil
}

func (s *MemoryStorage) Put(ctx context.Context, key string, value []byte, expected Revision) (Revision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.entries[key].rev
	if current != expected {
		return current, ErrRevisionConflict
	}
	next := current + 1
	s.entries[key] = memoryEntry{value: append([]byte(nil), value...), rev: next}
	return next, nil
}

func (s *MemoryStorage) Close() error {
	return nil // 无需关闭操作
}
