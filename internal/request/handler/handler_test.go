package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"accessops/internal/identity"
	"accessops/internal/request"
	"accessops/internal/request/handler/mocks"
	"accessops/internal/request/service"
	id "accessops/pkg/domain"
	dErrors "accessops/pkg/domain-errors"
	"accessops/pkg/requestcontext"
)

//go:generate mockgen -source=handler.go -destination=mocks/request-mocks.go -package=mocks Service
type RequestHandlerSuite struct {
	suite.Suite
}

func TestRequestHandlerSuite(t *testing.T) {
	suite.Run(t, new(RequestHandlerSuite))
}

func newTestHandler(t *testing.T) (*Handler, *mocks.MockService) {
	t.Helper()
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)
	mockService := mocks.NewMockService(ctrl)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	handler := New(mockService, logger, nil)
	r := chi.NewRouter()
	handler.Register(r)
	return handler, mockService
}

func authenticated(req *http.Request, userID id.UserID, role identity.Role) *http.Request {
	ctx := requestcontext.WithUserID(req.Context(), userID)
	ctx = requestcontext.WithRole(ctx, string(role))
	return req.WithContext(ctx)
}

func pendingRequest(requesterID id.UserID) request.AccessRequest {
	return request.AccessRequest{
		ID:          id.NewRequestID(),
		RequesterID: requesterID,
		Resource:    "prod-db",
		Action:      "read",
		Status:      request.StatusPending,
		CreatedAt:   time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
}

func (s *RequestHandlerSuite) TestHandleCreate() {
	handler, mockService := newTestHandler(s.T())
	requesterID := id.NewUserID()
	created := pendingRequest(requesterID)

	mockService.EXPECT().Create(
		gomock.Any(),
		service.Actor{ID: requesterID, Role: "REQUESTER"},
		"prod-db", "read", "oncall",
	).Return(created, nil)

	body, err := json.Marshal(CreateRequest{Resource: "prod-db", Action: "read", Justification: "oncall"})
	require.NoError(s.T(), err)

	req := httptest.NewRequest(http.MethodPost, "/requests", bytes.NewReader(body))
	req = authenticated(req, requesterID, identity.RoleRequester)

	w := httptest.NewRecorder()
	handler.handleCreate(w, req)

	assert.Equal(s.T(), http.StatusCreated, w.Code, w.Body.String())
	var resp AccessRequestResponse
	require.NoError(s.T(), json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(s.T(), created.ID.String(), resp.ID)
	assert.Equal(s.T(), "PENDING", resp.Status)
	assert.Nil(s.T(), resp.DecidedBy)
}

func (s *RequestHandlerSuite) TestHandleCreateValidation() {
	testCases := []struct {
		name string
		body CreateRequest
	}{
		{"missing resource", CreateRequest{Action: "read"}},
		{"missing action", CreateRequest{Resource: "prod-db"}},
		{"whitespace only", CreateRequest{Resource: "   ", Action: "read"}},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			handler, _ := newTestHandler(s.T())
			body, err := json.Marshal(tc.body)
			require.NoError(s.T(), err)

			req := httptest.NewRequest(http.MethodPost, "/requests", bytes.NewReader(body))
			req = authenticated(req, id.NewUserID(), identity.RoleRequester)

			w := httptest.NewRecorder()
			handler.handleCreate(w, req)

			assert.Equal(s.T(), http.StatusBadRequest, w.Code, w.Body.String())
		})
	}
}

func (s *RequestHandlerSuite) TestHandleCreateMissingAuthContext() {
	handler, _ := newTestHandler(s.T())
	body, err := json.Marshal(CreateRequest{Resource: "prod-db", Action: "read"})
	require.NoError(s.T(), err)

	req := httptest.NewRequest(http.MethodPost, "/requests", bytes.NewReader(body))

	w := httptest.NewRecorder()
	handler.handleCreate(w, req)

	assert.Equal(s.T(), http.StatusInternalServerError, w.Code)
}

func (s *RequestHandlerSuite) TestHandleApprove() {
	handler, mockService := newTestHandler(s.T())
	approverID := id.NewUserID()
	decided := pendingRequest(id.NewUserID())
	decided.Status = request.StatusApproved
	decided.DecidedBy = &approverID
	decidedAt := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	decided.DecidedAt = &decidedAt

	mockService.EXPECT().Decide(
		gomock.Any(),
		service.Actor{ID: approverID, Role: "APPROVER"},
		decided.ID,
		request.StatusApproved,
	).Return(decided, nil)

	req := httptest.NewRequest(http.MethodPatch, "/requests/"+decided.ID.String()+"/approve", nil)
	req = authenticated(req, approverID, identity.RoleApprover)
	req = withURLParam(req, "id", decided.ID.String())

	w := httptest.NewRecorder()
	handler.handleApprove(w, req)

	assert.Equal(s.T(), http.StatusOK, w.Code, w.Body.String())
	var resp AccessRequestResponse
	require.NoError(s.T(), json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(s.T(), "APPROVED", resp.Status)
	require.NotNil(s.T(), resp.DecidedBy)
	assert.Equal(s.T(), approverID.String(), *resp.DecidedBy)
}

func (s *RequestHandlerSuite) TestHandleRejectUsesRejectedOutcome() {
	handler, mockService := newTestHandler(s.T())
	approverID := id.NewUserID()
	decided := pendingRequest(id.NewUserID())
	decided.Status = request.StatusRejected

	mockService.EXPECT().Decide(
		gomock.Any(), gomock.Any(), decided.ID, request.StatusRejected,
	).Return(decided, nil)

	req := httptest.NewRequest(http.MethodPatch, "/requests/"+decided.ID.String()+"/reject", nil)
	req = authenticated(req, approverID, identity.RoleApprover)
	req = withURLParam(req, "id", decided.ID.String())

	w := httptest.NewRecorder()
	handler.handleReject(w, req)

	assert.Equal(s.T(), http.StatusOK, w.Code, w.Body.String())
}

func (s *RequestHandlerSuite) TestDecideErrorMapping() {
	testCases := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"forbidden", dErrors.New(dErrors.CodeForbidden, "Forbidden"), http.StatusForbidden},
		{"not pending", dErrors.New(dErrors.CodeInvalidState, "Request not pending"), http.StatusBadRequest},
		{"not found", dErrors.New(dErrors.CodeNotFound, "Request not found"), http.StatusNotFound},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			handler, mockService := newTestHandler(s.T())
			requestID := id.NewRequestID()
			mockService.EXPECT().Decide(
				gomock.Any(), gomock.Any(), requestID, request.StatusApproved,
			).Return(request.AccessRequest{}, tc.err)

			req := httptest.NewRequest(http.MethodPatch, "/requests/"+requestID.String()+"/approve", nil)
			req = authenticated(req, id.NewUserID(), identity.RoleApprover)
			req = withURLParam(req, "id", requestID.String())

			w := httptest.NewRecorder()
			handler.handleApprove(w, req)

			assert.Equal(s.T(), tc.wantStatus, w.Code, w.Body.String())
		})
	}
}

func (s *RequestHandlerSuite) TestHandleApproveBadID() {
	handler, _ := newTestHandler(s.T())

	req := httptest.NewRequest(http.MethodPatch, "/requests/not-a-uuid/approve", nil)
	req = authenticated(req, id.NewUserID(), identity.RoleApprover)
	req = withURLParam(req, "id", "not-a-uuid")

	w := httptest.NewRecorder()
	handler.handleApprove(w, req)

	assert.Equal(s.T(), http.StatusBadRequest, w.Code)
}

func (s *RequestHandlerSuite) TestHandleCancel() {
	handler, mockService := newTestHandler(s.T())
	requesterID := id.NewUserID()
	cancelled := pendingRequest(requesterID)
	cancelled.Status = request.StatusCancelled

	mockService.EXPECT().Cancel(
		gomock.Any(),
		service.Actor{ID: requesterID, Role: "REQUESTER"},
		cancelled.ID,
	).Return(cancelled, nil)

	req := httptest.NewRequest(http.MethodPatch, "/requests/"+cancelled.ID.String()+"/cancel", nil)
	req = authenticated(req, requesterID, identity.RoleRequester)
	req = withURLParam(req, "id", cancelled.ID.String())

	w := httptest.NewRecorder()
	handler.handleCancel(w, req)

	assert.Equal(s.T(), http.StatusOK, w.Code, w.Body.String())
	var resp AccessRequestResponse
	require.NoError(s.T(), json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(s.T(), "CANCELLED", resp.Status)
}

func (s *RequestHandlerSuite) TestHandleList() {
	handler, mockService := newTestHandler(s.T())
	requesterID := id.NewUserID()
	reqs := []request.AccessRequest{pendingRequest(requesterID), pendingRequest(requesterID)}

	mockService.EXPECT().List(
		gomock.Any(),
		service.Actor{ID: requesterID, Role: "REQUESTER"},
	).Return(reqs, nil)

	req := httptest.NewRequest(http.MethodGet, "/requests", nil)
	req = authenticated(req, requesterID, identity.RoleRequester)

	w := httptest.NewRecorder()
	handler.handleList(w, req)

	assert.Equal(s.T(), http.StatusOK, w.Code, w.Body.String())
	var resp ListResponse
	require.NoError(s.T(), json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(s.T(), resp.Requests, 2)
}

func (s *RequestHandlerSuite) TestHandleListEmptyIsArray() {
	handler, mockService := newTestHandler(s.T())
	requesterID := id.NewUserID()

	mockService.EXPECT().List(gomock.Any(), gomock.Any()).Return(nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/requests", nil)
	req = authenticated(req, requesterID, identity.RoleRequester)

	w := httptest.NewRecorder()
	handler.handleList(w, req)

	assert.Equal(s.T(), http.StatusOK, w.Code)
	assert.JSONEq(s.T(), `{"requests":[]}`, w.Body.String())
}

func (s *RequestHandlerSuite) TestHandleListPendingForbidden() {
	handler, mockService := newTestHandler(s.T())
	requesterID := id.NewUserID()

	mockService.EXPECT().ListPending(
		gomock.Any(),
		service.Actor{ID: requesterID, Role: "REQUESTER"},
	).Return(nil, dErrors.New(dErrors.CodeForbidden, "Forbidden"))

	req := httptest.NewRequest(http.MethodGet, "/requests/pending", nil)
	req = authenticated(req, requesterID, identity.RoleRequester)

	w := httptest.NewRecorder()
	handler.handleListPending(w, req)

	assert.Equal(s.T(), http.StatusForbidden, w.Code)
}

// withURLParam injects a chi route parameter for direct handler invocation.
func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}
