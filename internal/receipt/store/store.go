package store

import (
	"context"

	"claimdesk/internal/receipt/models"
	id "claimdesk/pkg/domain"
)

// Store persists receipts. CreateBatch must be all-or-nothing: on any
// failure no receipt of the batch is persisted. Update must honor optimistic
// versioning and fail with sentinel.ErrConflict on a stale Version.
type Store interface {
	CreateBatch(ctx context.Context, receipts []*models.Receipt) error
	Create(ctx context.Context, receipt *models.Receipt) error
	FindByID(ctx context.Context, receiptID id.ReceiptID) (*models.Receipt, error)
	Update(ctx context.Context, receipt *models.Receipt) error
	ListByClaim(ctx context.Context, claimID id.ClaimID) ([]*models.Receipt, error)
}
