package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"golang.org/x/sync/errgroup"

	"claimdesk/internal/audit"
	auditstore "claimdesk/internal/audit/store"
	claimmodels "claimdesk/internal/claim/models"
	claimstore "claimdesk/internal/claim/store"
	contractmodels "claimdesk/internal/contract/models"
	contractstore "claimdesk/internal/contract/store"
	"claimdesk/internal/receipt/models"
	"claimdesk/internal/receipt/store"
	id "claimdesk/pkg/domain"
	dErrors "claimdesk/pkg/domain-errors"
	"claimdesk/pkg/platform/locks"
	"claimdesk/pkg/requestcontext"
	"claimdesk/pkg/testutil"
)

type ReceiptServiceSuite struct {
	suite.Suite
	service    *Service
	receipts   *store.InMemory
	claims     *claimstore.InMemory
	auditStore *auditstore.InMemory
	contractID id.ContractID
	claimID    id.ClaimID
	now        time.Time
}

func (s *ReceiptServiceSuite) SetupTest() {
	s.now = time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
	s.receipts = store.NewInMemory()
	s.claims = claimstore.NewInMemory()
	s.auditStore = auditstore.NewInMemory()

	s.contractID = id.NewContractID()
	contracts := contractstore.NewInMemory()
	contracts.Seed(&contractmodels.Contract{
		ID:            s.contractID,
		Reference:     "CT-2026-TEST0001",
		InsuredName:   "Test Insured",
		LoanAmount:    1_500_000,
		BenefitOption: contractmodels.BenefitOptionA,
	})

	claim, err := claimmodels.NewClaim(id.NewClaimID(), s.contractID,
		claimmodels.ClaimTypeDeath, s.now.AddDate(0, 0, -5), 1_500_000, 1_500_000, s.now)
	s.Require().NoError(err)
	s.Require().NoError(s.claims.Create(context.Background(), claim))
	s.claimID = claim.ID

	s.service = New(s.receipts, s.claims, contracts, locks.NewKeyed(0),
		WithAuditPublisher(audit.NewPublisher(s.auditStore)),
	)
}

func TestReceiptServiceSuite(t *testing.T) {
	suite.Run(t, new(ReceiptServiceSuite))
}

func (s *ReceiptServiceSuite) ctx(caps ...requestcontext.Capability) context.Context {
	return testutil.FrozenContext("agent", s.now, caps...)
}

func amount(v int64) *int64 { return &v }

func (s *ReceiptServiceSuite) standardBatch() []models.CreateRequest {
	return []models.CreateRequest{
		{Kind: models.KindCapitalReimbursement, Beneficiary: "Partner Bank", Amount: amount(1_500_000)},
		{Kind: models.KindLumpSum, Beneficiary: "Awa Diallo", BeneficiaryClass: models.BeneficiaryAdult},
	}
}

func (s *ReceiptServiceSuite) TestCreateBatch() {
	s.Run("creates both kinds with lump sum defaulted from contract", func() {
		result, err := s.service.CreateBatch(s.ctx(), s.claimID, s.standardBatch())
		s.Require().NoError(err)
		s.Require().Len(result.Receipts, 2)
		s.Empty(result.Warnings)

		s.Equal(int64(1_500_000), result.Receipts[0].Amount)
		// Option A adult from the contract schedule.
		s.Equal(int64(500_000), result.Receipts[1].Amount)
		for _, r := range result.Receipts {
			s.Equal(models.ReceiptPending, r.Status)
		}
	})

	s.Run("empty batch fails validation", func() {
		_, err := s.service.CreateBatch(s.ctx(), s.claimID, nil)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("unknown claim is not found", func() {
		_, err := s.service.CreateBatch(s.ctx(), id.NewClaimID(), s.standardBatch())
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *ReceiptServiceSuite) TestCreateBatchCapitalMismatchWarning() {
	result, err := s.service.CreateBatch(s.ctx(), s.claimID, []models.CreateRequest{
		{Kind: models.KindCapitalReimbursement, Beneficiary: "Partner Bank", Amount: amount(1_400_000)},
	})
	s.Require().NoError(err)
	s.Require().Len(result.Receipts, 1)
	s.Equal(int64(1_400_000), result.Receipts[0].Amount)
	s.Require().Len(result.Warnings, 1)
	s.Contains(result.Warnings[0], "1400000")
	s.Contains(result.Warnings[0], "1500000")
}

func (s *ReceiptServiceSuite) TestCreateBatchCapitalRequiresAmount() {
	_, err := s.service.CreateBatch(s.ctx(), s.claimID, []models.CreateRequest{
		{Kind: models.KindCapitalReimbursement, Beneficiary: "Partner Bank"},
	})
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *ReceiptServiceSuite) TestDuplicateKindFailsWholeBatch() {
	s.Run("against an existing active receipt", func() {
		_, err := s.service.CreateBatch(s.ctx(), s.claimID, []models.CreateRequest{
			{Kind: models.KindCapitalReimbursement, Beneficiary: "Partner Bank", Amount: amount(1_500_000)},
		})
		s.Require().NoError(err)

		_, err = s.service.CreateBatch(s.ctx(), s.claimID, []models.CreateRequest{
			{Kind: models.KindCapitalReimbursement, Beneficiary: "Other Bank", Amount: amount(100)},
			{Kind: models.KindLumpSum, Beneficiary: "Awa Diallo"},
		})
		s.True(dErrors.HasCode(err, dErrors.CodeDuplicateReceipt))

		// The lump-sum entry of the failed batch must not exist.
		all, listErr := s.receipts.ListByClaim(s.ctx(), s.claimID)
		s.Require().NoError(listErr)
		s.Len(all, 1)
	})
}

func (s *ReceiptServiceSuite) TestDuplicateKindWithinOneBatch() {
	_, err := s.service.CreateBatch(s.ctx(), s.claimID, []models.CreateRequest{
		{Kind: models.KindLumpSum, Beneficiary: "Awa Diallo"},
		{Kind: models.KindLumpSum, Beneficiary: "Moussa Traore"},
	})
	s.True(dErrors.HasCode(err, dErrors.CodeDuplicateReceipt))

	all, listErr := s.receipts.ListByClaim(s.ctx(), s.claimID)
	s.Require().NoError(listErr)
	s.Empty(all)
}

func (s *ReceiptServiceSuite) TestCancelledReceiptFreesKindSlot() {
	result, err := s.service.CreateBatch(s.ctx(), s.claimID, []models.CreateRequest{
		{Kind: models.KindLumpSum, Beneficiary: "Awa Diallo"},
	})
	s.Require().NoError(err)

	_, err = s.service.Cancel(s.ctx(), result.Receipts[0].ID, "wrong beneficiary")
	s.Require().NoError(err)

	replacement, err := s.service.CreateBatch(s.ctx(), s.claimID, []models.CreateRequest{
		{Kind: models.KindLumpSum, Beneficiary: "Correct Beneficiary"},
	})
	s.Require().NoError(err)
	s.Len(replacement.Receipts, 1)
}

func (s *ReceiptServiceSuite) TestRejectedClaimAcceptsNoReceipts() {
	claim, err := s.claims.FindByID(s.ctx(), s.claimID)
	s.Require().NoError(err)
	claim.ApplyAcknowledgeDocuments("agent", "", s.now)
	claim.ApplyReject("fraud", "manager", s.now)
	s.Require().NoError(s.claims.Update(s.ctx(), claim))

	_, err = s.service.CreateBatch(s.ctx(), s.claimID, s.standardBatch())
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
}

func (s *ReceiptServiceSuite) TestCreateSequential() {
	s.Run("creates receipts one at a time", func() {
		result, err := s.service.CreateSequential(s.ctx(), s.claimID, s.standardBatch())
		s.Require().NoError(err)
		s.Len(result.Receipts, 2)
	})

	s.Run("keeps earlier receipts on mid-batch failure", func() {
		claimB, err := claimmodels.NewClaim(id.NewClaimID(), s.contractID,
			claimmodels.ClaimTypeDeath, s.now, 1_000_000, 1_000_000, s.now)
		s.Require().NoError(err)
		s.Require().NoError(s.claims.Create(context.Background(), claimB))

		partial, err := s.service.CreateSequential(s.ctx(), claimB.ID, []models.CreateRequest{
			{Kind: models.KindLumpSum, Beneficiary: "Awa Diallo"},
			{Kind: models.KindLumpSum, Beneficiary: "Moussa Traore"},
		})
		s.True(dErrors.HasCode(err, dErrors.CodeDuplicateReceipt))
		s.Require().NotNil(partial)
		s.Len(partial.Receipts, 1)

		kept, listErr := s.receipts.ListByClaim(s.ctx(), claimB.ID)
		s.Require().NoError(listErr)
		s.Len(kept, 1)
	})
}

func (s *ReceiptServiceSuite) createPendingReceipt() *models.Receipt {
	result, err := s.service.CreateBatch(s.ctx(), s.claimID, []models.CreateRequest{
		{Kind: models.KindCapitalReimbursement, Beneficiary: "Partner Bank", Amount: amount(1_500_000)},
	})
	s.Require().NoError(err)
	return result.Receipts[0]
}

func (s *ReceiptServiceSuite) TestValidateRequiresApprover() {
	receipt := s.createPendingReceipt()

	s.Run("without capability", func() {
		_, err := s.service.Validate(s.ctx(), receipt.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("with approver capability", func() {
		validated, err := s.service.Validate(s.ctx(requestcontext.CapabilityApprover), receipt.ID)
		s.Require().NoError(err)
		s.Equal(models.ReceiptValidated, validated.Status)
		s.Require().NotNil(validated.ValidatedAt)
		s.Equal(s.now, *validated.ValidatedAt)
	})
}

func (s *ReceiptServiceSuite) TestPayRequiresDisburser() {
	receipt := s.createPendingReceipt()
	_, err := s.service.Validate(s.ctx(requestcontext.CapabilityApprover), receipt.ID)
	s.Require().NoError(err)

	s.Run("approver alone cannot pay", func() {
		_, err := s.service.Pay(s.ctx(requestcontext.CapabilityApprover), receipt.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("disburser pays", func() {
		paid, err := s.service.Pay(s.ctx(requestcontext.CapabilityDisburser), receipt.ID)
		s.Require().NoError(err)
		s.Equal(models.ReceiptPaid, paid.Status)
	})

	s.Run("paid is immutable", func() {
		_, err := s.service.Cancel(s.ctx(), receipt.ID, "too late")
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
	})
}

func (s *ReceiptServiceSuite) TestPayBeforeValidation() {
	receipt := s.createPendingReceipt()
	_, err := s.service.Pay(s.ctx(requestcontext.CapabilityDisburser), receipt.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
}

func (s *ReceiptServiceSuite) TestRevertToPending() {
	receipt := s.createPendingReceipt()
	_, err := s.service.Validate(s.ctx(requestcontext.CapabilityApprover), receipt.ID)
	s.Require().NoError(err)

	reverted, err := s.service.RevertToPending(s.ctx(), receipt.ID, "amount disputed")
	s.Require().NoError(err)
	s.Equal(models.ReceiptPending, reverted.Status)
	s.Nil(reverted.ValidatedAt)
}

func (s *ReceiptServiceSuite) TestReactivate() {
	receipt := s.createPendingReceipt()
	_, err := s.service.Validate(s.ctx(requestcontext.CapabilityApprover), receipt.ID)
	s.Require().NoError(err)
	_, err = s.service.Cancel(s.ctx(), receipt.ID, "hold")
	s.Require().NoError(err)

	reactivated, err := s.service.Reactivate(s.ctx(), receipt.ID, "hold lifted")
	s.Require().NoError(err)
	s.Equal(models.ReceiptPending, reactivated.Status)
	s.Nil(reactivated.ValidatedAt, "reactivation must not restore validation")
}

func (s *ReceiptServiceSuite) TestConcurrentValidation() {
	receipt := s.createPendingReceipt()
	ctx := s.ctx(requestcontext.CapabilityApprover)

	var g errgroup.Group
	results := make([]error, 2)
	for i := 0; i < 2; i++ {
		g.Go(func() error {
			_, err := s.service.Validate(ctx, receipt.ID)
			results[i] = err
			return nil
		})
	}
	s.Require().NoError(g.Wait())

	var successes, invalidState int
	for _, err := range results {
		switch {
		case err == nil:
			successes++
		case dErrors.HasCode(err, dErrors.CodeInvalidState):
			invalidState++
		default:
			s.Failf("unexpected error", "%v", err)
		}
	}
	s.Equal(1, successes)
	s.Equal(1, invalidState)
}

func (s *ReceiptServiceSuite) TestListByClaim() {
	batch, err := s.service.CreateBatch(s.ctx(), s.claimID, s.standardBatch())
	s.Require().NoError(err)
	_, err = s.service.Validate(s.ctx(requestcontext.CapabilityApprover), batch.Receipts[0].ID)
	s.Require().NoError(err)

	list, err := s.service.ListByClaim(s.ctx(), s.claimID)
	s.Require().NoError(err)
	s.Len(list.Receipts, 2)
	s.Equal(2, list.Summary.CountTotal)
	s.Equal(1, list.Summary.CountPending)
	s.Equal(1, list.Summary.CountValidated)
	s.Equal(int64(2_000_000), list.Summary.SumAllNonCancelled)

	s.Run("unknown claim is not found", func() {
		_, err := s.service.ListByClaim(s.ctx(), id.NewClaimID())
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *ReceiptServiceSuite) TestAuditTrail() {
	batch, err := s.service.CreateBatch(s.ctx(), s.claimID, s.standardBatch())
	s.Require().NoError(err)
	_, err = s.service.Validate(s.ctx(requestcontext.CapabilityApprover), batch.Receipts[0].ID)
	s.Require().NoError(err)

	events := s.auditStore.All()
	// 1 batch event + 2 per-receipt events + 1 transition.
	s.Require().Len(events, 4)
	s.Equal(audit.ActionReceiptBatchCreated, events[0].Action)
	s.Equal(audit.ActionReceiptTransitioned, events[3].Action)
	s.Equal("agent", events[3].Actor)
}
