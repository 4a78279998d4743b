package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"claimdesk/internal/platform/metrics"
	"claimdesk/internal/platform/middleware"
	receiptmodels "claimdesk/internal/receipt/models"
	"claimdesk/internal/receipt/service"
	"claimdesk/internal/transport/http/shared"
	id "claimdesk/pkg/domain"
	dErrors "claimdesk/pkg/domain-errors"
)

// Service defines the interface for receipt operations.
type Service interface {
	CreateBatch(ctx context.Context, claimID id.ClaimID, requests []receiptmodels.CreateRequest) (*receiptmodels.BatchResult, error)
	CreateSequential(ctx context.Context, claimID id.ClaimID, requests []receiptmodels.CreateRequest) (*receiptmodels.BatchResult, error)
	ListByClaim(ctx context.Context, claimID id.ClaimID) (*service.ReceiptList, error)
	Get(ctx context.Context, receiptID id.ReceiptID) (*receiptmodels.Receipt, error)
	Validate(ctx context.Context, receiptID id.ReceiptID) (*receiptmodels.Receipt, error)
	Pay(ctx context.Context, receiptID id.ReceiptID) (*receiptmodels.Receipt, error)
	Cancel(ctx context.Context, receiptID id.ReceiptID, reason string) (*receiptmodels.Receipt, error)
	Reactivate(ctx context.Context, receiptID id.ReceiptID, reason string) (*receiptmodels.Receipt, error)
	RevertToPending(ctx context.Context, receiptID id.ReceiptID, reason string) (*receiptmodels.Receipt, error)
}

// Handler handles receipt endpoints.
type Handler struct {
	logger       *slog.Logger
	receipts     Service
	metrics      *metrics.Metrics
	jwtValidator middleware.JWTValidator
}

// New creates a receipt Handler.
func New(
	receipts Service,
	logger *slog.Logger,
	m *metrics.Metrics,
	jwtValidator middleware.JWTValidator) *Handler {
	return &Handler{
		logger:       logger,
		receipts:     receipts,
		metrics:      m,
		jwtValidator: jwtValidator,
	}
}

// Register registers the receipt routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(receiptRouter chi.Router) {
		receiptRouter.Use(middleware.Recovery(h.logger))
		receiptRouter.Use(middleware.RequestID)
		receiptRouter.Use(middleware.RequestTime)
		receiptRouter.Use(middleware.Logger(h.logger))
		receiptRouter.Use(middleware.Timeout(30 * time.Second))
		receiptRouter.Use(middleware.ContentTypeJSON)
		receiptRouter.Use(middleware.Latency(h.metrics))
		receiptRouter.Use(middleware.RequireAuth(h.jwtValidator, h.logger))
		receiptRouter.Post("/claims/{claimID}/receipts", h.handleCreateBatch)
		receiptRouter.Get("/claims/{claimID}/receipts", h.handleListByClaim)
		receiptRouter.Get("/receipts/{receiptID}", h.handleGet)
		receiptRouter.Post("/receipts/{receiptID}/validate", h.handleValidate)
		receiptRouter.Post("/receipts/{receiptID}/pay", h.handlePay)
		receiptRouter.Post("/receipts/{receiptID}/cancel", h.handleCancel)
		receiptRouter.Post("/receipts/{receiptID}/reactivate", h.handleReactivate)
		receiptRouter.Post("/receipts/{receiptID}/revert", h.handleRevert)
	})
}

type createBatchRequest struct {
	Receipts []receiptmodels.CreateRequest `json:"receipts"`
	// Sequential opts into the best-effort one-at-a-time path, which does not
	// roll back on mid-batch failure.
	Sequential bool `json:"sequential,omitempty"`
}

// handleCreateBatch creates the receipts of a claim in one atomic batch, or
// sequentially when the caller opts into the weaker mode.
func (h *Handler) handleCreateBatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	claimID, err := id.ParseClaimID(chi.URLParam(r, "claimID"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid claim id"))
		return
	}

	var req createBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "invalid receipt batch request",
			"request_id", requestID,
			"claim_id", claimID.String(),
			"error", err.Error(),
		)
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	var result *receiptmodels.BatchResult
	if req.Sequential {
		result, err = h.receipts.CreateSequential(ctx, claimID, req.Receipts)
	} else {
		result, err = h.receipts.CreateBatch(ctx, claimID, req.Receipts)
	}
	if err != nil {
		// The sequential path may have created some receipts before failing;
		// surface the partial result next to the error so the caller can see
		// what exists.
		if req.Sequential && result != nil && len(result.Receipts) > 0 {
			h.logger.WarnContext(ctx, "sequential receipt creation partially failed",
				"request_id", requestID,
				"claim_id", claimID.String(),
				"created", len(result.Receipts),
				"error", err.Error(),
			)
			shared.WriteJSON(w, dErrors.ToHTTPStatus(dErrors.CodeOf(err)), map[string]any{
				"error":    string(dErrors.CodeOf(err)),
				"receipts": result.Receipts,
				"warnings": result.Warnings,
			})
			return
		}
		h.writeServiceError(ctx, w, "failed to create receipts", err)
		return
	}

	shared.WriteJSON(w, http.StatusCreated, result)
}

// handleListByClaim returns a claim's receipts with the recomputed summary.
func (h *Handler) handleListByClaim(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	claimID, err := id.ParseClaimID(chi.URLParam(r, "claimID"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid claim id"))
		return
	}

	list, err := h.receipts.ListByClaim(ctx, claimID)
	if err != nil {
		h.writeServiceError(ctx, w, "failed to list receipts", err)
		return
	}

	shared.WriteJSON(w, http.StatusOK, list)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	receiptID, err := id.ParseReceiptID(chi.URLParam(r, "receiptID"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid receipt id"))
		return
	}

	receipt, err := h.receipts.Get(ctx, receiptID)
	if err != nil {
		h.writeServiceError(ctx, w, "failed to load receipt", err)
		return
	}

	shared.WriteJSON(w, http.StatusOK, receipt)
}

func (h *Handler) handleValidate(w http.ResponseWriter, r *http.Request) {
	h.handleTransition(w, r, "failed to validate receipt",
		func(ctx context.Context, receiptID id.ReceiptID, _ string) (*receiptmodels.Receipt, error) {
			return h.receipts.Validate(ctx, receiptID)
		})
}

func (h *Handler) handlePay(w http.ResponseWriter, r *http.Request) {
	h.handleTransition(w, r, "failed to pay receipt",
		func(ctx context.Context, receiptID id.ReceiptID, _ string) (*receiptmodels.Receipt, error) {
			return h.receipts.Pay(ctx, receiptID)
		})
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	h.handleTransition(w, r, "failed to cancel receipt", h.receipts.Cancel)
}

func (h *Handler) handleReactivate(w http.ResponseWriter, r *http.Request) {
	h.handleTransition(w, r, "failed to reactivate receipt", h.receipts.Reactivate)
}

func (h *Handler) handleRevert(w http.ResponseWriter, r *http.Request) {
	h.handleTransition(w, r, "failed to revert receipt", h.receipts.RevertToPending)
}

type transitionRequest struct {
	Reason string `json:"reason,omitempty"`
}

// handleTransition is the shared plumbing of the five transition endpoints.
// The body is optional; an absent body means no reason.
func (h *Handler) handleTransition(w http.ResponseWriter, r *http.Request, failMsg string, op func(ctx context.Context, receiptID id.ReceiptID, reason string) (*receiptmodels.Receipt, error)) {
	ctx := r.Context()

	receiptID, err := id.ParseReceiptID(chi.URLParam(r, "receiptID"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid receipt id"))
		return
	}

	var req transitionRequest
	if decodeErr := json.NewDecoder(r.Body).Decode(&req); decodeErr != nil && !errors.Is(decodeErr, io.EOF) {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	receipt, err := op(ctx, receiptID, req.Reason)
	if err != nil {
		h.writeServiceError(ctx, w, failMsg, err)
		return
	}

	shared.WriteJSON(w, http.StatusOK, receipt)
}

func (h *Handler) writeServiceError(ctx context.Context, w http.ResponseWriter, msg string, err error) {
	requestID := middleware.GetRequestID(ctx)
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, msg,
			"request_id", requestID,
			"error", err.Error(),
		)
	} else {
		h.logger.WarnContext(ctx, msg,
			"request_id", requestID,
			"error", err.Error(),
		)
	}
	shared.WriteError(w, err)
}
