//go:build integration

package store

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	claimmodels "claimdesk/internal/claim/models"
	claimstore "claimdesk/internal/claim/store"
	"claimdesk/internal/receipt/models"
	id "claimdesk/pkg/domain"
	"claimdesk/pkg/platform/sentinel"
	"claimdesk/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *Postgres
	claims   *claimstore.Postgres
	now      time.Time
	claimID  id.ClaimID
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = NewPostgres(s.postgres.DB)
	s.claims = claimstore.NewPostgres(s.postgres.DB)
	s.now = time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
}

// SetupTest resets the tables and seeds one claim for the receipts to hang off.
func (s *PostgresStoreSuite) SetupTest() {
	ctx := context.Background()
	err := s.postgres.TruncateTables(ctx, "receipts", "claims")
	s.Require().NoError(err)

	claim, err := claimmodels.NewClaim(
		id.NewClaimID(),
		id.NewContractID(),
		claimmodels.ClaimTypeDeath,
		s.now.AddDate(0, 0, -10),
		1_500_000,
		1_500_000,
		s.now,
	)
	s.Require().NoError(err)
	s.Require().NoError(s.claims.Create(ctx, claim))
	s.claimID = claim.ID
}

func (s *PostgresStoreSuite) newReceipt(kind models.ReceiptKind, amount int64) *models.Receipt {
	receipt, err := models.NewReceipt(
		id.NewReceiptID(),
		s.claimID,
		kind,
		"Awa Diallo",
		models.BeneficiaryAdult,
		amount,
		s.now,
	)
	s.Require().NoError(err)
	return receipt
}

func (s *PostgresStoreSuite) TestCreateBatchAndList() {
	ctx := context.Background()
	capital := s.newReceipt(models.KindCapitalReimbursement, 1_500_000)
	lump := s.newReceipt(models.KindLumpSum, 500_000)
	lump.CreatedAt = s.now.Add(time.Second)

	s.Require().NoError(s.store.CreateBatch(ctx, []*models.Receipt{capital, lump}))

	listed, err := s.store.ListByClaim(ctx, s.claimID)
	s.Require().NoError(err)
	s.Require().Len(listed, 2)
	s.Equal(capital.ID, listed[0].ID)
	s.Equal(models.KindCapitalReimbursement, listed[0].Kind)
	s.Equal(models.ReceiptPending, listed[0].Status)
	s.Nil(listed[0].ValidatedAt)
	s.Equal(lump.ID, listed[1].ID)
	s.Equal(int64(500_000), listed[1].Amount)
}

func (s *PostgresStoreSuite) TestFindMissing() {
	_, err := s.store.FindByID(context.Background(), id.NewReceiptID())
	s.ErrorIs(err, sentinel.ErrNotFound)
}

// TestBatchIsAtomic verifies that one bad row rolls back the whole batch.
func (s *PostgresStoreSuite) TestBatchIsAtomic() {
	ctx := context.Background()
	first := s.newReceipt(models.KindCapitalReimbursement, 1_500_000)
	// Same kind on the same claim trips the active-kind unique index.
	second := s.newReceipt(models.KindCapitalReimbursement, 200_000)

	err := s.store.CreateBatch(ctx, []*models.Receipt{first, second})
	s.ErrorIs(err, sentinel.ErrConflict)

	listed, listErr := s.store.ListByClaim(ctx, s.claimID)
	s.Require().NoError(listErr)
	s.Empty(listed, "failed batch must leave no rows behind")
}

// TestCancelledReceiptFreesKindSlot exercises the partial unique index: one
// active receipt per kind per claim, cancelled rows do not count.
func (s *PostgresStoreSuite) TestCancelledReceiptFreesKindSlot() {
	ctx := context.Background()
	first := s.newReceipt(models.KindLumpSum, 500_000)
	s.Require().NoError(s.store.Create(ctx, first))

	duplicate := s.newReceipt(models.KindLumpSum, 500_000)
	s.ErrorIs(s.store.Create(ctx, duplicate), sentinel.ErrConflict)

	first.ApplyCancel("wrong beneficiary", s.now)
	s.Require().NoError(s.store.Update(ctx, first))

	replacement := s.newReceipt(models.KindLumpSum, 500_000)
	s.NoError(s.store.Create(ctx, replacement))
}

func (s *PostgresStoreSuite) TestValidationRoundTrip() {
	ctx := context.Background()
	receipt := s.newReceipt(models.KindCapitalReimbursement, 1_500_000)
	s.Require().NoError(s.store.Create(ctx, receipt))

	receipt.ApplyValidate(s.now.Add(time.Hour))
	s.Require().NoError(s.store.Update(ctx, receipt))
	s.Equal(int64(2), receipt.Version)

	found, err := s.store.FindByID(ctx, receipt.ID)
	s.Require().NoError(err)
	s.Equal(models.ReceiptValidated, found.Status)
	s.Require().NotNil(found.ValidatedAt)
	s.True(found.ValidatedAt.Equal(s.now.Add(time.Hour)))
}

func (s *PostgresStoreSuite) TestOptimisticVersioning() {
	ctx := context.Background()
	receipt := s.newReceipt(models.KindCapitalReimbursement, 1_500_000)
	s.Require().NoError(s.store.Create(ctx, receipt))

	stale, err := s.store.FindByID(ctx, receipt.ID)
	s.Require().NoError(err)

	receipt.ApplyValidate(s.now)
	s.Require().NoError(s.store.Update(ctx, receipt))

	stale.ApplyValidate(s.now)
	s.ErrorIs(s.store.Update(ctx, stale), sentinel.ErrConflict)
}

func (s *PostgresStoreSuite) TestUpdateMissingReceipt() {
	ctx := context.Background()
	ghost := s.newReceipt(models.KindLumpSum, 500_000)
	ghost.Version = 1
	s.ErrorIs(s.store.Update(ctx, ghost), sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestListScopedToClaim() {
	ctx := context.Background()
	mine := s.newReceipt(models.KindCapitalReimbursement, 1_500_000)
	s.Require().NoError(s.store.Create(ctx, mine))

	other, err := claimmodels.NewClaim(
		id.NewClaimID(),
		id.NewContractID(),
		claimmodels.ClaimTypeDisability,
		s.now.AddDate(0, 0, -5),
		800_000,
		800_000,
		s.now,
	)
	s.Require().NoError(err)
	s.Require().NoError(s.claims.Create(ctx, other))

	theirs, err := models.NewReceipt(
		id.NewReceiptID(), other.ID, models.KindCapitalReimbursement,
		"Moussa Traore", models.BeneficiaryAdult, 800_000, s.now)
	s.Require().NoError(err)
	s.Require().NoError(s.store.Create(ctx, theirs))

	listed, err := s.store.ListByClaim(ctx, s.claimID)
	s.Require().NoError(err)
	s.Require().Len(listed, 1)
	s.Equal(mine.ID, listed[0].ID)
}

// TestConcurrentSameKindCreation verifies that racing inserts of the same
// receipt kind on one claim result in exactly one success.
func (s *PostgresStoreSuite) TestConcurrentSameKindCreation() {
	ctx := context.Background()
	const goroutines = 20

	var wg sync.WaitGroup
	var successCount, conflictCount atomic.Int32

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			receipt, err := models.NewReceipt(
				id.NewReceiptID(), s.claimID, models.KindLumpSum,
				"Awa Diallo", models.BeneficiaryAdult, 500_000, s.now)
			if err != nil {
				return
			}
			switch err := s.store.Create(ctx, receipt); {
			case err == nil:
				successCount.Add(1)
			case errors.Is(err, sentinel.ErrConflict):
				conflictCount.Add(1)
			}
		}()
	}

	wg.Wait()

	s.Equal(int32(1), successCount.Load(), "exactly one create should succeed")
	s.Equal(int32(goroutines-1), conflictCount.Load(), "all others should conflict")

	listed, err := s.store.ListByClaim(ctx, s.claimID)
	s.Require().NoError(err)
	s.Len(listed, 1)
}
