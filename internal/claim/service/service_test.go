package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"claimdesk/internal/audit"
	auditstore "claimdesk/internal/audit/store"
	"claimdesk/internal/claim/models"
	"claimdesk/internal/claim/store"
	contractmodels "claimdesk/internal/contract/models"
	contractstore "claimdesk/internal/contract/store"
	id "claimdesk/pkg/domain"
	dErrors "claimdesk/pkg/domain-errors"
	"claimdesk/pkg/platform/locks"
	"claimdesk/pkg/testutil"
)

type ClaimServiceSuite struct {
	suite.Suite
	service    *Service
	claims     *store.InMemory
	auditStore *auditstore.InMemory
	contractID id.ContractID
	now        time.Time
}

func (s *ClaimServiceSuite) SetupTest() {
	s.now = time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
	s.claims = store.NewInMemory()
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

	s.service = New(s.claims, contracts, locks.NewKeyed(0),
		WithAuditPublisher(audit.NewPublisher(s.auditStore)),
	)
}

func TestClaimServiceSuite(t *testing.T) {
	suite.Run(t, new(ClaimServiceSuite))
}

func (s *ClaimServiceSuite) ctx() context.Context {
	return testutil.FrozenContext("agent", s.now)
}

func (s *ClaimServiceSuite) createClaim() *models.Claim {
	claim, err := s.service.Create(s.ctx(), CreateParams{
		ContractID:         s.contractID,
		Type:               models.ClaimTypeDeath,
		DeclaredDate:       s.now.AddDate(0, 0, -5),
		OutstandingCapital: 1_500_000,
		ClaimedAmount:      1_500_000,
	})
	s.Require().NoError(err)
	return claim
}

func (s *ClaimServiceSuite) TestCreate() {
	s.Run("persists a declared claim and audits it", func() {
		claim := s.createClaim()
		s.Equal(models.StatusDeclared, claim.Status)

		stored, err := s.claims.FindByID(s.ctx(), claim.ID)
		s.Require().NoError(err)
		s.Equal(claim.Reference, stored.Reference)

		events := s.auditStore.All()
		s.Require().Len(events, 1)
		s.Equal(audit.ActionClaimCreated, events[0].Action)
		s.Equal("agent", events[0].Actor)
	})

	s.Run("unknown contract is not found", func() {
		_, err := s.service.Create(s.ctx(), CreateParams{
			ContractID:   id.NewContractID(),
			Type:         models.ClaimTypeDeath,
			DeclaredDate: s.now,
		})
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *ClaimServiceSuite) TestGet() {
	claim := s.createClaim()

	details, err := s.service.Get(s.ctx(), claim.ID)
	s.Require().NoError(err)
	s.Equal(claim.ID, details.Claim.ID)
	s.Equal(5, details.ElapsedDays)
	s.False(details.DocumentsComplete)

	_, err = s.service.Get(s.ctx(), id.NewClaimID())
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ClaimServiceSuite) TestList() {
	first := s.createClaim()
	second := s.createClaim()
	_, err := s.service.AcknowledgeDocuments(s.ctx(), second.ID, "")
	s.Require().NoError(err)

	s.Run("unfiltered returns all", func() {
		all, err := s.service.List(s.ctx(), "")
		s.Require().NoError(err)
		s.Len(all, 2)
	})

	s.Run("filters by status", func() {
		declared, err := s.service.List(s.ctx(), models.StatusDeclared)
		s.Require().NoError(err)
		s.Require().Len(declared, 1)
		s.Equal(first.ID, declared[0].ID)
	})

	s.Run("rejects unknown status", func() {
		_, err := s.service.List(s.ctx(), models.ClaimStatus("bogus"))
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *ClaimServiceSuite) TestFullLifecycle() {
	claim := s.createClaim()
	ctx := s.ctx()

	updated, err := s.service.AcknowledgeDocuments(ctx, claim.ID, "dossier complete")
	s.Require().NoError(err)
	s.Equal(models.StatusUnderInstruction, updated.Status)

	updated, err = s.service.StartSettlement(ctx, claim.ID, "")
	s.Require().NoError(err)
	s.Equal(models.StatusInSettlement, updated.Status)

	updated, err = s.service.Approve(ctx, claim.ID, 1_500_000, "full grant")
	s.Require().NoError(err)
	s.Equal(models.StatusInPayment, updated.Status)
	s.Require().NotNil(updated.GrantedAmount)

	updated, err = s.service.RecordPayment(ctx, claim.ID, "transfer", "PAY-77", s.now)
	s.Require().NoError(err)
	s.Equal(models.StatusPaid, updated.Status)

	updated, err = s.service.Close(ctx, claim.ID, "settled", true)
	s.Require().NoError(err)
	s.Equal(models.StatusClosed, updated.Status)

	s.Run("history carries the audit trail", func() {
		s.Len(updated.History, 5)
		s.Equal("agent", updated.History[0].Actor)
	})

	s.Run("audit store saw every transition", func() {
		events := s.auditStore.All()
		// 1 creation + 5 transitions.
		s.Len(events, 6)
	})
}

func (s *ClaimServiceSuite) TestTransitionDispatch() {
	claim := s.createClaim()
	ctx := s.ctx()

	updated, err := s.service.Transition(ctx, claim.ID, models.StatusUnderInstruction, models.TransitionPayload{})
	s.Require().NoError(err)
	s.Equal(models.StatusUnderInstruction, updated.Status)

	s.Run("unknown target fails validation", func() {
		_, err := s.service.Transition(ctx, claim.ID, models.ClaimStatus("archived"), models.TransitionPayload{})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("illegal transition carries its code", func() {
		_, err := s.service.Transition(ctx, claim.ID, models.StatusPaid, models.TransitionPayload{
			PaymentMode: "transfer", PaymentReference: "PAY-1", PaymentDate: s.now,
		})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidTransition))
	})
}

func (s *ClaimServiceSuite) TestRejectThenClose() {
	claim := s.createClaim()
	ctx := s.ctx()

	_, err := s.service.AcknowledgeDocuments(ctx, claim.ID, "")
	s.Require().NoError(err)

	s.Run("reject requires a reason", func() {
		_, err := s.service.Reject(ctx, claim.ID, " ")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	updated, err := s.service.Reject(ctx, claim.ID, "exclusion clause")
	s.Require().NoError(err)
	s.Equal(models.StatusRejected, updated.Status)
	s.Equal("exclusion clause", updated.RejectionReason)

	s.Run("close requires confirmation", func() {
		_, err := s.service.Close(ctx, claim.ID, "", false)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	updated, err = s.service.Close(ctx, claim.ID, "done", true)
	s.Require().NoError(err)
	s.Equal(models.StatusClosed, updated.Status)
}

func (s *ClaimServiceSuite) TestDoublePayment() {
	claim := s.createClaim()
	ctx := s.ctx()

	_, err := s.service.AcknowledgeDocuments(ctx, claim.ID, "")
	s.Require().NoError(err)
	_, err = s.service.Approve(ctx, claim.ID, 1_500_000, "")
	s.Require().NoError(err)
	_, err = s.service.RecordPayment(ctx, claim.ID, "transfer", "PAY-1", s.now)
	s.Require().NoError(err)

	_, err = s.service.RecordPayment(ctx, claim.ID, "transfer", "PAY-2", s.now)
	s.True(dErrors.HasCode(err, dErrors.CodeAlreadyPaid))
}

func (s *ClaimServiceSuite) TestTransitionOnMissingClaim() {
	_, err := s.service.AcknowledgeDocuments(s.ctx(), id.NewClaimID(), "")
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}
