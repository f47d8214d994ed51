package storage

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// MemoryStore implements Store with an in-process map. It backs tests and
// single-node deployments that can afford to lose the cache on restart.
type MemoryStore struct {
	mu        sync.RWMutex
	contracts map[string]Contract
	logger    *slog.Logger
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore(logger *slog.Logger) *MemoryStore {
	return &MemoryStore{
		contracts: make(map[string]Contract),
		logger:    logger,
	}
}

func memoryKey(chainID uint64, address string) string {
	return fmt.Sprintf("%d/%s", chainID, address)
}

// Close is a no-op for the in-memory store
func (s *MemoryStore) Close() error {
	return nil
}

// Migrate is a no-op for the in-memory store
func (s *MemoryStore) Migrate(ctx context.Context) error {
	return nil
}

// Ping is a no-op for the in-memory store
func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

// UpsertContract inserts or replaces the cached record for an address.
// Records arriving without an id get one assigned here.
func (s *MemoryStore) UpsertContract(ctx context.Context, c *Contract) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.ID == "" {
		c.ID = generateID()
	}
	stored := *c
	stored.ABIHash = computeHash(c.ABI)
	s.contracts[memoryKey(c.ChainID, c.Address)] = stored
	return nil
}

// GetContract retrieves the cached record for an address
func (s *MemoryStore) GetContract(ctx context.Context, chainID uint64, address string) (*Contract, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.contracts[memoryKey(chainID, address)]
	if !ok {
		return nil, ErrNotFound
	}
	out := c
	return &out, nil
}

// DeleteContract removes the cached record for an address
func (s *MemoryStore) DeleteContract(ctx context.Context, chainID uint64, address string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := memoryKey(chainID, address)
	if _, ok := s.contracts[key]; !ok {
		return ErrNotFound
	}
	delete(s.contracts, key)
	return nil
}

// CountContracts returns the number of cached records
func (s *MemoryStore) CountContracts(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.contracts)), nil
}
