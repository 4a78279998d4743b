package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/mock/gomock"

	"github.com/stretchr/testify/suite"

	"claimdesk/internal/claim/handler/mocks"
	claimmodels "claimdesk/internal/claim/models"
	"claimdesk/internal/claim/service"
	id "claimdesk/pkg/domain"
	dErrors "claimdesk/pkg/domain-errors"
	"claimdesk/pkg/testutil"
)

//go:generate mockgen -source=handler.go -destination=mocks/claim-mocks.go -package=mocks Service
type ClaimHandlerSuite struct {
	suite.Suite
	now time.Time
}

func (s *ClaimHandlerSuite) SetupSuite() {
	s.now = time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
}

func TestClaimHandlerSuite(t *testing.T) {
	suite.Run(t, new(ClaimHandlerSuite))
}

func newTestHandler(t *testing.T) (*Handler, *mocks.MockService) {
	t.Helper()
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)
	mockService := mocks.NewMockService(ctrl)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	return New(mockService, logger, nil, nil), mockService
}

// withURLParam injects a chi route parameter, standing in for the router.
func withURLParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func (s *ClaimHandlerSuite) newClaim() *claimmodels.Claim {
	claim, err := claimmodels.NewClaim(id.NewClaimID(), id.NewContractID(),
		claimmodels.ClaimTypeDeath, s.now, 1_500_000, 1_500_000, s.now)
	s.Require().NoError(err)
	return claim
}

func (s *ClaimHandlerSuite) TestHandleCreate() {
	handler, mockService := newTestHandler(s.T())
	claim := s.newClaim()
	mockService.EXPECT().Create(gomock.Any(), gomock.Any()).Return(claim, nil)

	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/claims", map[string]any{
		"contract_id":         claim.ContractID.String(),
		"type":                "death",
		"declared_date":       s.now.Format(time.RFC3339),
		"outstanding_capital": 1_500_000,
		"claimed_amount":      1_500_000,
	})
	w := httptest.NewRecorder()
	handler.handleCreate(w, req)

	testutil.AssertStatus(s.T(), w, http.StatusCreated)
	resp := testutil.UnmarshalResponse[claimmodels.Claim](s.T(), w)
	s.Equal(claim.Reference, resp.Reference)
}

func (s *ClaimHandlerSuite) TestHandleCreateBadBody() {
	handler, _ := newTestHandler(s.T())

	req := httptest.NewRequest(http.MethodPost, "/claims", strings.NewReader("{"))
	w := httptest.NewRecorder()
	handler.handleCreate(w, req)

	testutil.AssertStatus(s.T(), w, http.StatusBadRequest)
	testutil.AssertErrorCode(s.T(), w, string(dErrors.CodeBadRequest))
}

func (s *ClaimHandlerSuite) TestHandleCreateServiceError() {
	handler, mockService := newTestHandler(s.T())
	mockService.EXPECT().Create(gomock.Any(), gomock.Any()).
		Return(nil, dErrors.New(dErrors.CodeNotFound, "contract not found"))

	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/claims", map[string]any{
		"contract_id": id.NewContractID().String(),
		"type":        "death",
	})
	w := httptest.NewRecorder()
	handler.handleCreate(w, req)

	testutil.AssertStatus(s.T(), w, http.StatusNotFound)
	testutil.AssertErrorCode(s.T(), w, string(dErrors.CodeNotFound))
}

func (s *ClaimHandlerSuite) TestHandleGet() {
	handler, mockService := newTestHandler(s.T())
	claim := s.newClaim()
	mockService.EXPECT().Get(gomock.Any(), claim.ID).
		Return(&service.ClaimDetails{Claim: claim, ElapsedDays: 3}, nil)

	req := withURLParam(
		testutil.NewJSONRequest(s.T(), http.MethodGet, "/claims/"+claim.ID.String(), nil),
		"claimID", claim.ID.String())
	w := httptest.NewRecorder()
	handler.handleGet(w, req)

	testutil.AssertStatus(s.T(), w, http.StatusOK)
	resp := testutil.UnmarshalResponse[service.ClaimDetails](s.T(), w)
	s.Equal(3, resp.ElapsedDays)
}

func (s *ClaimHandlerSuite) TestHandleGetBadID() {
	handler, _ := newTestHandler(s.T())

	req := withURLParam(
		testutil.NewJSONRequest(s.T(), http.MethodGet, "/claims/not-a-uuid", nil),
		"claimID", "not-a-uuid")
	w := httptest.NewRecorder()
	handler.handleGet(w, req)

	testutil.AssertStatus(s.T(), w, http.StatusBadRequest)
}

func (s *ClaimHandlerSuite) TestHandleList() {
	handler, mockService := newTestHandler(s.T())
	mockService.EXPECT().List(gomock.Any(), claimmodels.StatusDeclared).
		Return([]*claimmodels.Claim{s.newClaim()}, nil)

	req := testutil.NewJSONRequest(s.T(), http.MethodGet, "/claims?status=declared", nil)
	w := httptest.NewRecorder()
	handler.handleList(w, req)

	testutil.AssertStatus(s.T(), w, http.StatusOK)
	resp := testutil.UnmarshalResponse[map[string][]claimmodels.Claim](s.T(), w)
	s.Len((*resp)["claims"], 1)
}

func (s *ClaimHandlerSuite) TestHandleTransition() {
	handler, mockService := newTestHandler(s.T())
	claim := s.newClaim()
	claim.ApplyAcknowledgeDocuments("agent", "", s.now)
	mockService.EXPECT().
		Transition(gomock.Any(), claim.ID, claimmodels.StatusUnderInstruction, gomock.Any()).
		Return(claim, nil)

	req := withURLParam(
		testutil.NewJSONRequest(s.T(), http.MethodPost, "/claims/"+claim.ID.String()+"/transition",
			map[string]any{"target": "under_instruction", "notes": "dossier received"}),
		"claimID", claim.ID.String())
	w := httptest.NewRecorder()
	handler.handleTransition(w, req)

	testutil.AssertStatus(s.T(), w, http.StatusOK)
	resp := testutil.UnmarshalResponse[claimmodels.Claim](s.T(), w)
	s.Equal(claimmodels.StatusUnderInstruction, resp.Status)
}

func (s *ClaimHandlerSuite) TestHandleTransitionBusinessError() {
	handler, mockService := newTestHandler(s.T())
	claim := s.newClaim()
	mockService.EXPECT().
		Transition(gomock.Any(), claim.ID, claimmodels.StatusPaid, gomock.Any()).
		Return(nil, dErrors.Newf(dErrors.CodeInvalidTransition, "invalid transition from %s to %s",
			claimmodels.StatusDeclared, claimmodels.StatusPaid))

	req := withURLParam(
		testutil.NewJSONRequest(s.T(), http.MethodPost, "/claims/"+claim.ID.String()+"/transition",
			map[string]any{"target": "paid"}),
		"claimID", claim.ID.String())
	w := httptest.NewRecorder()
	handler.handleTransition(w, req)

	testutil.AssertStatus(s.T(), w, http.StatusUnprocessableEntity)
	testutil.AssertErrorCode(s.T(), w, string(dErrors.CodeInvalidTransition))
}
