package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	claimmodels "claimdesk/internal/claim/models"
	"claimdesk/internal/claim/service"
	"claimdesk/internal/platform/metrics"
	"claimdesk/internal/platform/middleware"
	"claimdesk/internal/transport/http/shared"
	id "claimdesk/pkg/domain"
	dErrors "claimdesk/pkg/domain-errors"
)

// Service defines the interface for claim operations.
type Service interface {
	Create(ctx context.Context, params service.CreateParams) (*claimmodels.Claim, error)
	Get(ctx context.Context, claimID id.ClaimID) (*service.ClaimDetails, error)
	List(ctx context.Context, status claimmodels.ClaimStatus) ([]*claimmodels.Claim, error)
	Transition(ctx context.Context, claimID id.ClaimID, target claimmodels.ClaimStatus, payload claimmodels.TransitionPayload) (*claimmodels.Claim, error)
}

// Handler handles claim endpoints.
type Handler struct {
	logger       *slog.Logger
	claims       Service
	metrics      *metrics.Metrics
	jwtValidator middleware.JWTValidator
}

// New creates a claim Handler.
func New(
	claims Service,
	logger *slog.Logger,
	m *metrics.Metrics,
	jwtValidator middleware.JWTValidator) *Handler {
	return &Handler{
		logger:       logger,
		claims:       claims,
		metrics:      m,
		jwtValidator: jwtValidator,
	}
}

// Register registers the claim routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(claimRouter chi.Router) {
		claimRouter.Use(middleware.Recovery(h.logger))
		claimRouter.Use(middleware.RequestID)
		claimRouter.Use(middleware.RequestTime)
		claimRouter.Use(middleware.Logger(h.logger))
		claimRouter.Use(middleware.Timeout(30 * time.Second))
		claimRouter.Use(middleware.ContentTypeJSON)
		claimRouter.Use(middleware.Latency(h.metrics))
		claimRouter.Use(middleware.RequireAuth(h.jwtValidator, h.logger))
		claimRouter.Post("/claims", h.handleCreate)
		claimRouter.Get("/claims", h.handleList)
		claimRouter.Get("/claims/{claimID}", h.handleGet)
		claimRouter.Post("/claims/{claimID}/transition", h.handleTransition)
	})
}

type createClaimRequest struct {
	ContractID         id.ContractID         `json:"contract_id"`
	Type               claimmodels.ClaimType `json:"type"`
	DeclaredDate       time.Time             `json:"declared_date"`
	OutstandingCapital int64                 `json:"outstanding_capital"`
	ClaimedAmount      int64                 `json:"claimed_amount"`
}

// handleCreate registers a new claim in the Declared state.
func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	var req createClaimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "invalid create claim request",
			"request_id", requestID,
			"error", err.Error(),
		)
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	claim, err := h.claims.Create(ctx, service.CreateParams{
		ContractID:         req.ContractID,
		Type:               req.Type,
		DeclaredDate:       req.DeclaredDate,
		OutstandingCapital: req.OutstandingCapital,
		ClaimedAmount:      req.ClaimedAmount,
	})
	if err != nil {
		h.writeServiceError(ctx, w, "failed to create claim", err)
		return
	}

	shared.WriteJSON(w, http.StatusCreated, claim)
}

// handleList returns claims, optionally filtered with ?status=.
func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	status := claimmodels.ClaimStatus(r.URL.Query().Get("status"))
	claims, err := h.claims.List(ctx, status)
	if err != nil {
		h.writeServiceError(ctx, w, "failed to list claims", err)
		return
	}

	shared.WriteJSON(w, http.StatusOK, map[string]any{"claims": claims})
}

// handleGet returns one claim with its derived read-side fields.
func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	claimID, err := id.ParseClaimID(chi.URLParam(r, "claimID"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid claim id"))
		return
	}

	details, err := h.claims.Get(ctx, claimID)
	if err != nil {
		h.writeServiceError(ctx, w, "failed to load claim", err)
		return
	}

	shared.WriteJSON(w, http.StatusOK, details)
}

type transitionRequest struct {
	Target claimmodels.ClaimStatus `json:"target"`
	claimmodels.TransitionPayload
}

// handleTransition applies one state change to the claim.
func (h *Handler) handleTransition(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	claimID, err := id.ParseClaimID(chi.URLParam(r, "claimID"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid claim id"))
		return
	}

	var req transitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "invalid transition request",
			"request_id", requestID,
			"claim_id", claimID.String(),
			"error", err.Error(),
		)
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	claim, err := h.claims.Transition(ctx, claimID, req.Target, req.TransitionPayload)
	if err != nil {
		h.writeServiceError(ctx, w, "failed to transition claim", err)
		return
	}

	shared.WriteJSON(w, http.StatusOK, claim)
}

// writeServiceError logs with a severity matched to the error class, then
// writes the uniform envelope. Business failures are expected traffic, not
// server faults.
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
