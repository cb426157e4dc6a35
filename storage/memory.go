// File: storage/memory.go
package storage

import (
	"context"
	"sync"

	"dao-governance/models"
)

// MemoryStore is an in-process AccountStore. It copies buffers on the way
// in and out so callers can never alias stored state.
type MemoryStore struct {
	mu       sync.RWMutex
	accounts map[models.Address][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts: make(map[models.Address][]byte),
	}
}

func (s *MemoryStore) Get(_ context.Context, addr models.Address) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.accounts[addr]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (s *MemoryStore) Put(_ context.Context, addr models.Address, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.put(addr, data)
	return nil
}

func (s *MemoryStore) PutBatch(_ context.Context, records []Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range records {
		s.put(rec.Address, rec.Data)
	}
	return nil
}

func (s *MemoryStore) put(addr models.Address, data []byte) {
	stored := make([]byte, len(data))
	copy(stored, data)
	s.accounts[addr] = stored
}
