package store

import (
	"context"
	"sort"
	"sync"

	"claimdesk/internal/receipt/models"
	id "claimdesk/pkg/domain"
	"claimdesk/pkg/platform/sentinel"
)

// InMemory keeps receipts in a mutex-guarded map for tests and dev mode.
type InMemory struct {
	mu       sync.RWMutex
	receipts map[id.ReceiptID]*models.Receipt
}

func NewInMemory() *InMemory {
	return &InMemory{receipts: make(map[id.ReceiptID]*models.Receipt)}
}

// CreateBatch inserts all receipts or none. The single lock makes the check
// plus insert atomic against concurrent batches.
func (s *InMemory) CreateBatch(_ context.Context, receipts []*models.Receipt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range receipts {
		if _, exists := s.receipts[r.ID]; exists {
			return sentinel.ErrConflict
		}
	}
	for _, r := range receipts {
		r.Version = 1
		s.receipts[r.ID] = cloneReceipt(r)
	}
	return nil
}

func (s *InMemory) Create(ctx context.Context, receipt *models.Receipt) error {
	return s.CreateBatch(ctx, []*models.Receipt{receipt})
}

func (s *InMemory) FindByID(_ context.Context, receiptID id.ReceiptID) (*models.Receipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if r, ok := s.receipts[receiptID]; ok {
		return cloneReceipt(r), nil
	}
	return nil, sentinel.ErrNotFound
}

// Update applies a compare-and-swap on Version.
func (s *InMemory) Update(_ context.Context, receipt *models.Receipt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.receipts[receipt.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if current.Version != receipt.Version {
		return sentinel.ErrConflict
	}
	receipt.Version++
	s.receipts[receipt.ID] = cloneReceipt(receipt)
	return nil
}

func (s *InMemory) ListByClaim(_ context.Context, claimID id.ClaimID) ([]*models.Receipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Receipt
	for _, r := range s.receipts {
		if r.ClaimID == claimID {
			out = append(out, cloneReceipt(r))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func cloneReceipt(r *models.Receipt) *models.Receipt {
	copied := *r
	if r.ValidatedAt != nil {
		validatedAt := *r.ValidatedAt
		copied.ValidatedAt = &validatedAt
	}
	return &copied
}

var _ Store = (*InMemory)(nil)
