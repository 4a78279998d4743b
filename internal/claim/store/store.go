package store

import (
	"context"

	"claimdesk/internal/claim/models"
	id "claimdesk/pkg/domain"
)

// Filter narrows List results.
type Filter struct {
	Status models.ClaimStatus
}

// Store persists claims. Implementations must honor optimistic versioning on
// Update: a write with a stale Version fails with sentinel.ErrConflict so
// read-modify-write races surface instead of silently losing a transition.
type Store interface {
	Create(ctx context.Context, claim *models.Claim) error
	FindByID(ctx context.Context, claimID id.ClaimID) (*models.Claim, error)
	Update(ctx context.Context, claim *models.Claim) error
	List(ctx context.Context, filter Filter) ([]*models.Claim, error)
}
