package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"claimdesk/internal/audit"
	claimmodels "claimdesk/internal/claim/models"
	claimstore "claimdesk/internal/claim/store"
	contractstore "claimdesk/internal/contract/store"
	receiptmetrics "claimdesk/internal/receipt/metrics"
	"claimdesk/internal/receipt/models"
	"claimdesk/internal/receipt/store"
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

// Service orchestrates the receipt lifecycle. Receipt mutations take the
// owning claim's lock shard, which serializes them against each other and
// gives CreateBatch its exclusive intent over the claim's kind set.
type Service struct {
	receipts  store.Store
	claims    claimstore.Store
	contracts contractstore.Provider
	locks     *locks.Keyed
	logger    *slog.Logger
	audit     AuditPublisher
	metrics   *receiptmetrics.Metrics
	tracer    trace.Tracer
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) { s.audit = publisher }
}

func WithMetrics(m *receiptmetrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// New constructs a Service. The locks instance must be the one shared with
// the claim service so claim and receipt mutations of the same claim
// serialize against each other.
func New(receipts store.Store, claims claimstore.Store, contracts contractstore.Provider, keyed *locks.Keyed, opts ...Option) *Service {
	s := &Service{
		receipts:  receipts,
		claims:    claims,
		contracts: contracts,
		locks:     keyed,
		tracer:    otel.Tracer("claimdesk/receipt"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateBatch creates all requested receipts atomically. One conflicting kind
// voids the entire batch: a caller cannot safely retry individual entries of
// a partial batch without risking duplicates.
func (s *Service) CreateBatch(ctx context.Context, claimID id.ClaimID, requests []models.CreateRequest) (*models.BatchResult, error) {
	ctx, span := s.tracer.Start(ctx, "receipt.CreateBatch",
		trace.WithAttributes(
			attribute.String("claim.id", claimID.String()),
			attribute.Int("batch.size", len(requests)),
		))
	defer span.End()

	if len(requests) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "at least one receipt request is required")
	}

	var result *models.BatchResult
	err := s.locks.Run(ctx, claimID.String(), func(ctx context.Context) error {
		prepared, warnings, err := s.prepareBatch(ctx, claimID, requests)
		if err != nil {
			return err
		}
		if err := s.receipts.CreateBatch(ctx, prepared); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return dErrors.New(dErrors.CodeConflict, "receipt batch conflicts with existing receipts")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist receipt batch")
		}

		s.emitAudit(ctx, audit.Event{
			Action:  audit.ActionReceiptBatchCreated,
			ClaimID: claimID.String(),
			Notes:   fmt.Sprintf("%d receipts", len(prepared)),
		})
		for _, r := range prepared {
			s.emitAudit(ctx, audit.Event{
				Action:    audit.ActionReceiptCreated,
				ClaimID:   claimID.String(),
				ReceiptID: r.ID.String(),
				To:        string(r.Status),
			})
			if s.metrics != nil {
				s.metrics.IncrementCreated(string(r.Kind))
			}
		}
		result = &models.BatchResult{Receipts: prepared, Warnings: warnings}
		return nil
	})
	if err != nil {
		if s.metrics != nil {
			s.metrics.IncrementBatchRejected()
		}
		return nil, err
	}

	s.logInfo(ctx, "receipt batch created",
		"claim_id", claimID.String(),
		"count", len(result.Receipts),
		"warnings", len(result.Warnings),
	)
	return result, nil
}

// CreateSequential is the best-effort fallback when the atomic batch path is
// unavailable. Receipts are created one at a time; on a mid-sequence failure
// the already-created receipts are NOT rolled back. The partial result is
// returned alongside the error and every partial outcome is audited, which is
// the accepted weaker guarantee of this path.
func (s *Service) CreateSequential(ctx context.Context, claimID id.ClaimID, requests []models.CreateRequest) (*models.BatchResult, error) {
	if len(requests) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "at least one receipt request is required")
	}

	result := &models.BatchResult{}
	for i := range requests {
		var created *models.BatchResult
		err := s.locks.Run(ctx, claimID.String(), func(ctx context.Context) error {
			prepared, warnings, err := s.prepareBatch(ctx, claimID, requests[i:i+1])
			if err != nil {
				return err
			}
			if err := s.receipts.Create(ctx, prepared[0]); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist receipt")
			}
			s.emitAudit(ctx, audit.Event{
				Action:    audit.ActionReceiptCreated,
				ClaimID:   claimID.String(),
				ReceiptID: prepared[0].ID.String(),
				To:        string(prepared[0].Status),
				Notes:     "sequential fallback",
			})
			if s.metrics != nil {
				s.metrics.IncrementCreated(string(prepared[0].Kind))
			}
			created = &models.BatchResult{Receipts: prepared, Warnings: warnings}
			return nil
		})
		if err != nil {
			s.logInfo(ctx, "sequential receipt creation stopped mid-batch",
				"claim_id", claimID.String(),
				"created", len(result.Receipts),
				"failed_index", i,
				"log_type", "audit",
			)
			return result, err
		}
		result.Receipts = append(result.Receipts, created.Receipts...)
		result.Warnings = append(result.Warnings, created.Warnings...)
	}
	return result, nil
}

// prepareBatch validates the claim, enforces the one-active-receipt-per-kind
// invariant, and materializes the receipts. Must run under the claim's lock.
func (s *Service) prepareBatch(ctx context.Context, claimID id.ClaimID, requests []models.CreateRequest) ([]*models.Receipt, []string, error) {
	claim, err := s.claims.FindByID(ctx, claimID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, nil, dErrors.New(dErrors.CodeNotFound, "claim not found")
		}
		return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load claim")
	}
	if !claim.AcceptsReceipts() {
		return nil, nil, dErrors.Newf(dErrors.CodeInvalidState, "claim is %s", claim.Status)
	}

	existing, err := s.receipts.ListByClaim(ctx, claimID)
	if err != nil {
		return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list existing receipts")
	}
	activeKinds := make(map[models.ReceiptKind]bool)
	for _, r := range existing {
		if r.Active() {
			activeKinds[r.Kind] = true
		}
	}

	now := requestcontext.Now(ctx)
	var (
		prepared []*models.Receipt
		warnings []string
	)
	for i := range requests {
		req := requests[i]
		req.Normalize()

		if activeKinds[req.Kind] {
			return nil, nil, dErrors.Newf(dErrors.CodeDuplicateReceipt, "active %s receipt already exists for claim", req.Kind)
		}

		amount, warning, err := s.resolveAmount(ctx, claim, req)
		if err != nil {
			return nil, nil, err
		}
		if warning != "" {
			warnings = append(warnings, warning)
		}

		receipt, err := models.NewReceipt(id.NewReceiptID(), claimID, req.Kind, req.Beneficiary, req.BeneficiaryClass, amount, now)
		if err != nil {
			return nil, nil, err
		}
		prepared = append(prepared, receipt)
		// Marks the kind taken so a duplicate inside the same batch fails too.
		activeKinds[req.Kind] = true
	}
	return prepared, warnings, nil
}

// resolveAmount applies the per-kind amount rules.
func (s *Service) resolveAmount(ctx context.Context, claim *claimmodels.Claim, req models.CreateRequest) (int64, string, error) {
	switch req.Kind {
	case models.KindCapitalReimbursement:
		if req.Amount == nil {
			return 0, "", dErrors.New(dErrors.CodeValidation, "capital reimbursement amount is required")
		}
		// A mismatch against the outstanding capital is a legitimate manual
		// override, recorded rather than rejected.
		if *req.Amount != claim.OutstandingCapital {
			return *req.Amount, fmt.Sprintf(
				"capital reimbursement amount %d differs from outstanding capital %d",
				*req.Amount, claim.OutstandingCapital), nil
		}
		return *req.Amount, "", nil

	case models.KindLumpSum:
		if req.Amount != nil {
			return *req.Amount, "", nil
		}
		contract, err := s.contracts.FindByID(ctx, claim.ContractID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return 0, "", dErrors.New(dErrors.CodeNotFound, "contract not found")
			}
			return 0, "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve contract")
		}
		amount, err := models.DefaultLumpSumAmount(contract.BenefitOption, req.BeneficiaryClass)
		if err != nil {
			return 0, "", err
		}
		return amount, "", nil

	default:
		return 0, "", dErrors.Newf(dErrors.CodeValidation, "unknown receipt kind %q", req.Kind)
	}
}

// Validate moves a Pending receipt to Validated. Requires the approver
// capability: validation asserts the receipt is legitimate, payment is a
// separate act by a possibly different actor.
func (s *Service) Validate(ctx context.Context, receiptID id.ReceiptID) (*models.Receipt, error) {
	if err := requireCapability(ctx, requestcontext.CapabilityApprover); err != nil {
		return nil, err
	}
	return s.transition(ctx, receiptID, models.ReceiptValidated, func(r *models.Receipt, now time.Time) error {
		if err := r.CanValidate(); err != nil {
			return err
		}
		r.ApplyValidate(now)
		return nil
	})
}

// Pay records disbursement of a Validated receipt. Requires the disburser
// capability. Paid is terminal.
func (s *Service) Pay(ctx context.Context, receiptID id.ReceiptID) (*models.Receipt, error) {
	if err := requireCapability(ctx, requestcontext.CapabilityDisburser); err != nil {
		return nil, err
	}
	return s.transition(ctx, receiptID, models.ReceiptPaid, func(r *models.Receipt, now time.Time) error {
		if err := r.CanPay(); err != nil {
			return err
		}
		r.ApplyPay(now)
		return nil
	})
}

// Cancel retires a Pending or Validated receipt. The record is retained.
func (s *Service) Cancel(ctx context.Context, receiptID id.ReceiptID, reason string) (*models.Receipt, error) {
	return s.transition(ctx, receiptID, models.ReceiptCancelled, func(r *models.Receipt, now time.Time) error {
		if err := r.CanCancel(); err != nil {
			return err
		}
		r.ApplyCancel(reason, now)
		return nil
	})
}

// Reactivate returns a Cancelled receipt to Pending, never to Validated.
func (s *Service) Reactivate(ctx context.Context, receiptID id.ReceiptID, reason string) (*models.Receipt, error) {
	return s.transition(ctx, receiptID, models.ReceiptPending, func(r *models.Receipt, now time.Time) error {
		if err := r.CanReactivate(); err != nil {
			return err
		}
		r.ApplyReactivate(reason, now)
		return nil
	})
}

// RevertToPending retracts a validation before disbursement.
func (s *Service) RevertToPending(ctx context.Context, receiptID id.ReceiptID, reason string) (*models.Receipt, error) {
	return s.transition(ctx, receiptID, models.ReceiptPending, func(r *models.Receipt, now time.Time) error {
		if err := r.CanRevertToPending(); err != nil {
			return err
		}
		r.ApplyRevertToPending(reason, now)
		return nil
	})
}

// ReceiptList is a claim's receipts plus the recomputed aggregate.
type ReceiptList struct {
	Receipts []*models.Receipt `json:"receipts"`
	Summary  models.Summary    `json:"summary"`
}

// ListByClaim loads the claim and its receipts in parallel and computes the
// aggregate on the fly.
func (s *Service) ListByClaim(ctx context.Context, claimID id.ClaimID) (*ReceiptList, error) {
	g, gctx := errgroup.WithContext(ctx)

	var receipts []*models.Receipt
	g.Go(func() error {
		var err error
		receipts, err = s.receipts.ListByClaim(gctx, claimID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to list receipts")
		}
		return nil
	})
	g.Go(func() error {
		if _, err := s.claims.FindByID(gctx, claimID); err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "claim not found")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load claim")
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &ReceiptList{Receipts: receipts, Summary: models.Summarize(receipts)}, nil
}

// Get fetches one receipt.
func (s *Service) Get(ctx context.Context, receiptID id.ReceiptID) (*models.Receipt, error) {
	receipt, err := s.receipts.FindByID(ctx, receiptID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "receipt not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load receipt")
	}
	return receipt, nil
}

// transition runs one guarded read-modify-write under the owning claim's lock
// shard. Mutating one receipt never touches sibling receipts or the claim.
func (s *Service) transition(ctx context.Context, receiptID id.ReceiptID, target models.ReceiptStatus, mutate func(r *models.Receipt, now time.Time) error) (*models.Receipt, error) {
	ctx, span := s.tracer.Start(ctx, "receipt.Transition",
		trace.WithAttributes(
			attribute.String("receipt.id", receiptID.String()),
			attribute.String("receipt.target", string(target)),
		))
	defer span.End()

	// The claim id is needed for the lock key, so resolve the receipt first;
	// the authoritative read happens again under the lock.
	peek, err := s.Get(ctx, receiptID)
	if err != nil {
		return nil, err
	}

	var receipt *models.Receipt
	err = s.locks.Run(ctx, peek.ClaimID.String(), func(ctx context.Context) error {
		loaded, err := s.receipts.FindByID(ctx, receiptID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "receipt not found")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load receipt")
		}

		now := requestcontext.Now(ctx)
		from := loaded.Status
		if err := mutate(loaded, now); err != nil {
			return err
		}

		if err := s.receipts.Update(ctx, loaded); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return dErrors.New(dErrors.CodeConflict, "receipt was modified concurrently")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist receipt")
		}

		s.emitAudit(ctx, audit.Event{
			Action:    audit.ActionReceiptTransitioned,
			ClaimID:   loaded.ClaimID.String(),
			ReceiptID: receiptID.String(),
			From:      string(from),
			To:        string(loaded.Status),
			Notes:     loaded.Note,
		})
		receipt = loaded
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
	s.logInfo(ctx, "receipt transitioned",
		"receipt_id", receiptID.String(),
		"to", string(receipt.Status),
		"log_type", "audit",
	)
	return receipt, nil
}

func requireCapability(ctx context.Context, want requestcontext.Capability) error {
	if !requestcontext.HasCapability(ctx, want) {
		return dErrors.Newf(dErrors.CodeUnauthorized, "actor %q lacks capability %q",
			requestcontext.Actor(ctx), want)
	}
	return nil
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
