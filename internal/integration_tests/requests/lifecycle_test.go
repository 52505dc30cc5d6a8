// Package requests exercises the full HTTP surface end to end: register and
// login through the auth endpoints, then drive a request through its
// lifecycle with real services, in-memory stores, and real JWT validation.
package requests

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

	"accessops/internal/audit"
	auditstore "accessops/internal/audit/store"
	identityhandler "accessops/internal/identity/handler"
	identityservice "accessops/internal/identity/service"
	identitystore "accessops/internal/identity/store"
	"accessops/internal/jwttoken"
	requesthandler "accessops/internal/request/handler"
	requestservice "accessops/internal/request/service"
	requeststore "accessops/internal/request/store"
)

type testEnv struct {
	router *chi.Mux
	audit  *auditstore.MemoryStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	jwtService := jwttoken.NewJWTService("integration-test-key", "accessops-test", 15*time.Minute)
	identitySvc := identityservice.New(identitystore.NewMemory(), jwtService, logger)

	auditMem := auditstore.NewMemory()
	recorder := audit.NewRecorder(auditMem, logger)
	requestSvc := requestservice.New(
		requeststore.NewMemory(),
		requestservice.NewMemoryTx(),
		recorder,
		logger,
		nil,
	)

	r := chi.NewRouter()
	identityhandler.New(identitySvc, logger).Register(r)
	requesthandler.New(requestSvc, logger, jwtService).Register(r)

	return &testEnv{router: r, audit: auditMem}
}

// do sends a JSON request through the full router, middleware included.
func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

// signup registers a user and logs in, returning the user ID and token.
func (e *testEnv) signup(t *testing.T, email, role string) (string, string) {
	t.Helper()

	w := e.do(t, http.MethodPost, "/auth/register", "", map[string]string{
		"email":    email,
		"password": "Passw0rd1",
		"role":     role,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var user struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &user))

	w = e.do(t, http.MethodPost, "/auth/login", "", map[string]string{
		"email":    email,
		"password": "Passw0rd1",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var login struct {
		AccessToken string `json:"access_token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &login))
	require.NotEmpty(t, login.AccessToken)

	return user.ID, login.AccessToken
}

func (e *testEnv) createRequest(t *testing.T, token string) string {
	t.Helper()

	w := e.do(t, http.MethodPost, "/requests", token, map[string]string{
		"resource":      "prod-db",
		"action":        "read",
		"justification": "oncall shift",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	require.Equal(t, "PENDING", created.Status)
	return created.ID
}

func TestRequestLifecycle_ApprovalHappyPath(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	requesterID, requesterToken := env.signup(t, "requester@example.com", "")
	approverID, approverToken := env.signup(t, "approver@example.com", "APPROVER")

	requestID := env.createRequest(t, requesterToken)

	// The approver sees the request in the pending queue.
	w := env.do(t, http.MethodGet, "/requests/pending", approverToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), requestID)

	// The requester cannot see the pending queue.
	w = env.do(t, http.MethodGet, "/requests/pending", requesterToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(t, http.MethodPatch, "/requests/"+requestID+"/approve", approverToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var decided struct {
		Status    string  `json:"status"`
		DecidedBy *string `json:"decided_by"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &decided))
	assert.Equal(t, "APPROVED", decided.Status)
	require.NotNil(t, decided.DecidedBy)
	assert.Equal(t, approverID, *decided.DecidedBy)

	// Exactly one audit event, with the original request fields in details.
	events, err := env.audit.ListByEntity(ctx, audit.EntityTypeAccessRequest, requestID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, audit.ActionRequestApproved, events[0].Action)
	assert.Equal(t, requesterID, events[0].Details["requester_id"])
	assert.Equal(t, "prod-db", events[0].Details["resource"])
	assert.Equal(t, "read", events[0].Details["action"])
	assert.Equal(t, "PENDING", events[0].Details["previous_status"])
	assert.Equal(t, "APPROVED", events[0].Details["new_status"])

	// A second decision attempt fails and emits no further event.
	w = env.do(t, http.MethodPatch, "/requests/"+requestID+"/reject", approverToken, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Request not pending")

	events, err = env.audit.ListByEntity(ctx, audit.EntityTypeAccessRequest, requestID)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestRequestLifecycle_PolicyDenials(t *testing.T) {
	env := newTestEnv(t)

	_, requesterToken := env.signup(t, "requester@example.com", "")
	_, approverToken := env.signup(t, "approver@example.com", "APPROVER")

	requestID := env.createRequest(t, requesterToken)

	t.Run("requester cannot approve", func(t *testing.T) {
		w := env.do(t, http.MethodPatch, "/requests/"+requestID+"/approve", requesterToken, nil)
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Contains(t, w.Body.String(), "Forbidden")
	})

	t.Run("approver cannot approve own request", func(t *testing.T) {
		ownRequestID := env.createRequest(t, approverToken)

		w := env.do(t, http.MethodPatch, "/requests/"+ownRequestID+"/approve", approverToken, nil)
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Contains(t, w.Body.String(), "Self-approval is not allowed")
	})

	t.Run("unauthenticated requests are rejected", func(t *testing.T) {
		w := env.do(t, http.MethodGet, "/requests", "", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestRequestLifecycle_CancelAndVisibility(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, aliceToken := env.signup(t, "alice@example.com", "")
	_, bobToken := env.signup(t, "bob@example.com", "")
	_, approverToken := env.signup(t, "approver@example.com", "APPROVER")

	aliceRequestID := env.createRequest(t, aliceToken)
	env.createRequest(t, bobToken)

	// Each requester sees only their own requests.
	w := env.do(t, http.MethodGet, "/requests", aliceToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Requests []struct {
			ID string `json:"id"`
		} `json:"requests"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list.Requests, 1)
	assert.Equal(t, aliceRequestID, list.Requests[0].ID)

	// The approver sees all of them.
	w = env.do(t, http.MethodGet, "/requests", approverToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Len(t, list.Requests, 2)

	// Bob cannot cancel Alice's request.
	w = env.do(t, http.MethodPatch, "/requests/"+aliceRequestID+"/cancel", bobToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	// Alice cancels her own, which emits the cancellation audit event.
	w = env.do(t, http.MethodPatch, "/requests/"+aliceRequestID+"/cancel", aliceToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "CANCELLED")

	events, err := env.audit.ListByEntity(ctx, audit.EntityTypeAccessRequest, aliceRequestID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, audit.ActionRequestCancelled, events[0].Action)
}
