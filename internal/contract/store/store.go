package store

import (
	"context"
	"sync"

	"claimdesk/internal/contract/models"
	id "claimdesk/pkg/domain"
	"claimdesk/pkg/platform/sentinel"
)

// Provider resolves contract references. Backed by the external contract
// subsystem in production; in-memory for tests and dev.
type Provider interface {
	FindByID(ctx context.Context, contractID id.ContractID) (*models.Contract, error)
}

// InMemory is a seedable contract provider.
type InMemory struct {
	mu        sync.RWMutex
	contracts map[id.ContractID]*models.Contract
}

func NewInMemory() *InMemory {
	return &InMemory{contracts: make(map[id.ContractID]*models.Contract)}
}

func (s *InMemory) FindByID(_ context.Context, contractID id.ContractID) (*models.Contract, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if c, ok := s.contracts[contractID]; ok {
		copied := *c
		return &copied, nil
	}
	return nil, sentinel.ErrNotFound
}

// Seed registers a contract. Existing entries with the same id are replaced.
func (s *InMemory) Seed(contracts ...*models.Contract) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range contracts {
		copied := *c
		s.contracts[c.ID] = &copied
	}
}
