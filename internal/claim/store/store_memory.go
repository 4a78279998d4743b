package store

import (
	"context"
	"sort"
	"sync"

	"claimdesk/internal/claim/models"
	id "claimdesk/pkg/domain"
	"claimdesk/pkg/platform/sentinel"
)

// InMemory keeps claims in a mutex-guarded map. It favors clarity over
// performance and backs unit tests and dev mode.
type InMemory struct {
	mu     sync.RWMutex
	claims map[id.ClaimID]*models.Claim
}

func NewInMemory() *InMemory {
	return &InMemory{claims: make(map[id.ClaimID]*models.Claim)}
}

func (s *InMemory) Create(_ context.Context, claim *models.Claim) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.claims[claim.ID]; exists {
		return sentinel.ErrConflict
	}
	claim.Version = 1
	s.claims[claim.ID] = cloneClaim(claim)
	return nil
}

func (s *InMemory) FindByID(_ context.Context, claimID id.ClaimID) (*models.Claim, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if claim, ok := s.claims[claimID]; ok {
		return cloneClaim(claim), nil
	}
	return nil, sentinel.ErrNotFound
}

// Update applies a compare-and-swap on Version. The caller's copy gets the
// incremented version on success.
func (s *InMemory) Update(_ context.Context, claim *models.Claim) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.claims[claim.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if current.Version != claim.Version {
		return sentinel.ErrConflict
	}
	claim.Version++
	s.claims[claim.ID] = cloneClaim(claim)
	return nil
}

func (s *InMemory) List(_ context.Context, filter Filter) ([]*models.Claim, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Claim, 0, len(s.claims))
	for _, claim := range s.claims {
		if filter.Status != "" && claim.Status != filter.Status {
			continue
		}
		out = append(out, cloneClaim(claim))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// cloneClaim deep-copies mutable members so callers can't reach into the map.
func cloneClaim(c *models.Claim) *models.Claim {
	copied := *c
	if c.Payment != nil {
		payment := *c.Payment
		copied.Payment = &payment
	}
	if c.GrantedAmount != nil {
		granted := *c.GrantedAmount
		copied.GrantedAmount = &granted
	}
	copied.History = append([]models.StatusChange(nil), c.History...)
	return &copied
}
