package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"claimdesk/internal/receipt/models"
	id "claimdesk/pkg/domain"
	"claimdesk/pkg/platform/sentinel"
)

type ReceiptStoreSuite struct {
	suite.Suite
	store   *InMemory
	ctx     context.Context
	claimID id.ClaimID
	now     time.Time
}

func (s *ReceiptStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
	s.claimID = id.NewClaimID()
	s.now = time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
}

func TestReceiptStoreSuite(t *testing.T) {
	suite.Run(t, new(ReceiptStoreSuite))
}

func (s *ReceiptStoreSuite) newReceipt(kind models.ReceiptKind) *models.Receipt {
	receipt, err := models.NewReceipt(id.NewReceiptID(), s.claimID, kind,
		"Partner Bank", models.BeneficiaryAdult, 1_500_000, s.now)
	s.Require().NoError(err)
	return receipt
}

func (s *ReceiptStoreSuite) TestCreateBatch() {
	s.Run("creates all receipts", func() {
		batch := []*models.Receipt{
			s.newReceipt(models.KindCapitalReimbursement),
			s.newReceipt(models.KindLumpSum),
		}
		s.Require().NoError(s.store.CreateBatch(s.ctx, batch))

		all, err := s.store.ListByClaim(s.ctx, s.claimID)
		s.Require().NoError(err)
		s.Len(all, 2)
		for _, r := range all {
			s.Equal(int64(1), r.Version)
		}
	})

	s.Run("rejects a batch containing an existing id", func() {
		receipt := s.newReceipt(models.KindCapitalReimbursement)
		s.Require().NoError(s.store.Create(s.ctx, receipt))

		fresh := s.newReceipt(models.KindLumpSum)
		err := s.store.CreateBatch(s.ctx, []*models.Receipt{fresh, receipt})
		s.Require().ErrorIs(err, sentinel.ErrConflict)

		// Nothing from the failed batch persists.
		_, findErr := s.store.FindByID(s.ctx, fresh.ID)
		s.Require().ErrorIs(findErr, sentinel.ErrNotFound)
	})
}

func (s *ReceiptStoreSuite) TestFindReturnsACopy() {
	receipt := s.newReceipt(models.KindLumpSum)
	s.Require().NoError(s.store.Create(s.ctx, receipt))

	found, err := s.store.FindByID(s.ctx, receipt.ID)
	s.Require().NoError(err)
	found.ApplyValidate(s.now)

	again, err := s.store.FindByID(s.ctx, receipt.ID)
	s.Require().NoError(err)
	s.Equal(models.ReceiptPending, again.Status)
	s.Nil(again.ValidatedAt)
}

func (s *ReceiptStoreSuite) TestOptimisticVersioning() {
	receipt := s.newReceipt(models.KindCapitalReimbursement)
	s.Require().NoError(s.store.Create(s.ctx, receipt))

	loaded, err := s.store.FindByID(s.ctx, receipt.ID)
	s.Require().NoError(err)
	loaded.ApplyValidate(s.now)
	s.Require().NoError(s.store.Update(s.ctx, loaded))
	s.Equal(int64(2), loaded.Version)

	stale, err := s.store.FindByID(s.ctx, receipt.ID)
	s.Require().NoError(err)
	stale.Version = 1
	s.Require().ErrorIs(s.store.Update(s.ctx, stale), sentinel.ErrConflict)

	ghost := s.newReceipt(models.KindLumpSum)
	ghost.Version = 1
	s.Require().ErrorIs(s.store.Update(s.ctx, ghost), sentinel.ErrNotFound)
}

func (s *ReceiptStoreSuite) TestListByClaimIsScoped() {
	mine := s.newReceipt(models.KindCapitalReimbursement)
	s.Require().NoError(s.store.Create(s.ctx, mine))

	other, err := models.NewReceipt(id.NewReceiptID(), id.NewClaimID(),
		models.KindCapitalReimbursement, "x", models.BeneficiaryAdult, 100, s.now)
	s.Require().NoError(err)
	s.Require().NoError(s.store.Create(s.ctx, other))

	listed, err := s.store.ListByClaim(s.ctx, s.claimID)
	s.Require().NoError(err)
	s.Require().Len(listed, 1)
	s.Equal(mine.ID, listed[0].ID)
}
