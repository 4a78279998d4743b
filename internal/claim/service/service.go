package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"claimdesk/internal/audit"
	claimmetrics "claimdesk/internal/claim/metrics"
	"claimdesk/internal/claim/models"
	"claimdesk/internal/claim/store"
	contractstore "claimdesk/internal/contract/store"
	id "claimdesk/pkg/domain"
	dErrors "claimdesk/pkg/domain-errors"
	"claimdesk/pkg/platform/locks"
	"claimdesk/pkg/platform/sentinel"
	"claimdesk/pkg/requestcontext"
)

// AuditPublisher records workflow events for compliance consumers.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service orchestrates the claim lifecycle. All mutations of one claim run
// under that claim's lock shard so concurrent transitions serialize.
type Service struct {
	claims    store.Store
	contracts contractstore.Provider
	locks     *locks.Keyed
	logger    *slog.Logger
	audit     AuditPublisher
	metrics   *claimmetrics.Metrics
	tracer    trace.Tracer
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) { s.audit = publisher }
}

func WithMetrics(m *claimmetrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// New constructs a Service.
func New(claims store.Store, contracts contractstore.Provider, keyed *locks.Keyed, opts ...Option) *Service {
	s := &Service{
		claims:    claims,
		contracts: contracts,
		locks:     keyed,
		tracer:    otel.Tracer("claimdesk/claim"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateParams are the inputs to claim registration.
type CreateParams struct {
	ContractID         id.ContractID
	Type               models.ClaimType
	DeclaredDate       time.Time
	OutstandingCapital int64
	ClaimedAmount      int64
}

// Create registers a claim in the Declared state against an existing contract.
func (s *Service) Create(ctx context.Context, params CreateParams) (*models.Claim, error) {
	ctx, span := s.tracer.Start(ctx, "claim.Create")
	defer span.End()

	if _, err := s.contracts.FindByID(ctx, params.ContractID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "contract not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve contract")
	}

	now := requestcontext.Now(ctx)
	claim, err := models.NewClaim(id.NewClaimID(), params.ContractID, params.Type,
		params.DeclaredDate, params.OutstandingCapital, params.ClaimedAmount, now)
	if err != nil {
		return nil, err
	}

	if err := s.claims.Create(ctx, claim); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create claim")
	}
	span.SetAttributes(attribute.String("claim.id", claim.ID.String()))

	s.emitAudit(ctx, audit.Event{
		Action:  audit.ActionClaimCreated,
		ClaimID: claim.ID.String(),
		To:      string(claim.Status),
	})
	if s.metrics != nil {
		s.metrics.IncrementCreated()
	}
	s.logInfo(ctx, "claim created",
		"claim_id", claim.ID.String(),
		"contract_id", params.ContractID.String(),
		"type", string(params.Type),
	)
	return claim, nil
}

// ClaimDetails is a claim plus its derived read-side fields.
type ClaimDetails struct {
	Claim             *models.Claim `json:"claim"`
	DocumentsComplete bool          `json:"documents_complete"`
	ElapsedDays       int           `json:"elapsed_days"`
}

// Get fetches a claim with derived fields.
func (s *Service) Get(ctx context.Context, claimID id.ClaimID) (*ClaimDetails, error) {
	claim, err := s.claims.FindByID(ctx, claimID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "claim not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load claim")
	}
	return &ClaimDetails{
		Claim:             claim,
		DocumentsComplete: claim.DocumentsComplete(),
		ElapsedDays:       claim.ElapsedDays(requestcontext.Now(ctx)),
	}, nil
}

// List returns claims, optionally narrowed by status.
func (s *Service) List(ctx context.Context, status models.ClaimStatus) ([]*models.Claim, error) {
	if status != "" && !status.Valid() {
		return nil, dErrors.Newf(dErrors.CodeValidation, "unknown claim status %q", status)
	}
	claims, err := s.claims.List(ctx, store.Filter{Status: status})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list claims")
	}
	return claims, nil
}

// Transition dispatches on the target state. This is the single external
// entry point for claim state changes; each target maps to one guarded
// operation on the aggregate.
func (s *Service) Transition(ctx context.Context, claimID id.ClaimID, target models.ClaimStatus, payload models.TransitionPayload) (*models.Claim, error) {
	payload.Normalize()
	switch target {
	case models.StatusUnderInstruction:
		return s.AcknowledgeDocuments(ctx, claimID, payload.Notes)
	case models.StatusInSettlement:
		return s.StartSettlement(ctx, claimID, payload.Notes)
	case models.StatusInPayment:
		return s.Approve(ctx, claimID, payload.Amount, payload.Notes)
	case models.StatusPaid:
		return s.RecordPayment(ctx, claimID, payload.PaymentMode, payload.PaymentReference, payload.PaymentDate)
	case models.StatusRejected:
		return s.Reject(ctx, claimID, payload.Reason)
	case models.StatusClosed:
		return s.Close(ctx, claimID, payload.Reason, payload.Confirm)
	default:
		return nil, dErrors.Newf(dErrors.CodeValidation, "unknown target state %q", target)
	}
}

// AcknowledgeDocuments records receipt of the supporting documents.
func (s *Service) AcknowledgeDocuments(ctx context.Context, claimID id.ClaimID, notes string) (*models.Claim, error) {
	return s.transition(ctx, claimID, models.StatusUnderInstruction, func(c *models.Claim, actor string, now time.Time) error {
		if err := c.CanAcknowledgeDocuments(); err != nil {
			return err
		}
		c.ApplyAcknowledgeDocuments(actor, notes, now)
		return nil
	})
}

// StartSettlement marks the dossier complete and under analysis.
func (s *Service) StartSettlement(ctx context.Context, claimID id.ClaimID, notes string) (*models.Claim, error) {
	return s.transition(ctx, claimID, models.StatusInSettlement, func(c *models.Claim, actor string, now time.Time) error {
		if err := c.CanStartSettlement(); err != nil {
			return err
		}
		c.ApplyStartSettlement(actor, notes, now)
		return nil
	})
}

// Approve grants the indemnity and moves the claim into payment.
func (s *Service) Approve(ctx context.Context, claimID id.ClaimID, amount int64, notes string) (*models.Claim, error) {
	return s.transition(ctx, claimID, models.StatusInPayment, func(c *models.Claim, actor string, now time.Time) error {
		if err := c.CanApprove(amount); err != nil {
			return err
		}
		c.ApplyApprove(amount, actor, notes, now)
		return nil
	})
}

// RecordPayment stores the settlement execution details.
func (s *Service) RecordPayment(ctx context.Context, claimID id.ClaimID, mode, reference string, date time.Time) (*models.Claim, error) {
	return s.transition(ctx, claimID, models.StatusPaid, func(c *models.Claim, actor string, now time.Time) error {
		if err := c.CanRecordPayment(mode, reference, date); err != nil {
			return err
		}
		c.ApplyRecordPayment(mode, reference, date, actor, now)
		return nil
	})
}

// Reject refuses the claim with a mandatory reason.
func (s *Service) Reject(ctx context.Context, claimID id.ClaimID, reason string) (*models.Claim, error) {
	return s.transition(ctx, claimID, models.StatusRejected, func(c *models.Claim, actor string, now time.Time) error {
		if err := c.CanReject(reason); err != nil {
			return err
		}
		c.ApplyReject(reason, actor, now)
		return nil
	})
}

// Close soft-closes a settled or rejected claim. Irreversible.
func (s *Service) Close(ctx context.Context, claimID id.ClaimID, reason string, confirm bool) (*models.Claim, error) {
	return s.transition(ctx, claimID, models.StatusClosed, func(c *models.Claim, actor string, now time.Time) error {
		if err := c.CanClose(confirm); err != nil {
			return err
		}
		c.ApplyClose(reason, actor, now)
		return nil
	})
}

// transition runs one guarded read-modify-write under the claim's lock shard.
func (s *Service) transition(ctx context.Context, claimID id.ClaimID, target models.ClaimStatus, mutate func(c *models.Claim, actor string, now time.Time) error) (*models.Claim, error) {
	ctx, span := s.tracer.Start(ctx, "claim.Transition",
		trace.WithAttributes(
			attribute.String("claim.id", claimID.String()),
			attribute.String("claim.target", string(target)),
		))
	defer span.End()

	var claim *models.Claim
	err := s.locks.Run(ctx, claimID.String(), func(ctx context.Context) error {
		loaded, err := s.claims.FindByID(ctx, claimID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "claim not found")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load claim")
		}

		actor := requestcontext.Actor(ctx)
		now := requestcontext.Now(ctx)
		from := loaded.Status
		if err := mutate(loaded, actor, now); err != nil {
			return err
		}

		if err := s.claims.Update(ctx, loaded); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return dErrors.New(dErrors.CodeConflict, "claim was modified concurrently")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist claim")
		}

		s.emitAudit(ctx, audit.Event{
			Action:  audit.ActionClaimTransitioned,
			ClaimID: claimID.String(),
			From:    string(from),
			To:      string(loaded.Status),
		})
		claim = loaded
		return nil
	})
	if err != nil {
		if s.metrics != nil {
			s.metrics.IncrementTransitionFailure(string(target))
		}
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.IncrementTransition(string(target))
	}
	s.logInfo(ctx, "claim transitioned",
		"claim_id", claimID.String(),
		"to", string(claim.Status),
		"log_type", "audit",
	)
	return claim, nil
}

func (s *Service) emitAudit(ctx context.Context, event audit.Event) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Emit(ctx, event); err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "failed to emit audit event",
			"action", string(event.Action),
			"error", err,
		)
	}
}

func (s *Service) logInfo(ctx context.Context, msg string, args ...any) {
	if s.logger == nil {
		return
	}
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		args = append(args, "request_id", requestID)
	}
	s.logger.InfoContext(ctx, msg, args...)
}
