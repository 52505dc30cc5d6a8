package handler

import (
	"bytes"
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
	"accessops/internal/identity/handler/mocks"
	id "accessops/pkg/domain"
	dErrors "accessops/pkg/domain-errors"
)

//go:generate mockgen -source=handler.go -destination=mocks/identity-mocks.go -package=mocks Service
type IdentityHandlerSuite struct {
	suite.Suite
}

func TestIdentityHandlerSuite(t *testing.T) {
	suite.Run(t, new(IdentityHandlerSuite))
}

func newTestHandler(t *testing.T) (*Handler, *mocks.MockService) {
	t.Helper()
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)
	mockService := mocks.NewMockService(ctrl)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	handler := New(mockService, logger)
	r := chi.NewRouter()
	handler.Register(r)
	return handler, mockService
}

func testUser(email string, role identity.Role) identity.User {
	return identity.User{
		ID:        id.NewUserID(),
		Email:     email,
		Role:      role,
		CreatedAt: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
}

func (s *IdentityHandlerSuite) TestHandleRegister() {
	handler, mockService := newTestHandler(s.T())
	user := testUser("r@example.com", identity.RoleRequester)
	user.PasswordHash = "$2a$10$secret"

	mockService.EXPECT().Register(
		gomock.Any(), "r@example.com", "Passw0rd1", "Riley", "",
	).Return(user, nil)

	body, err := json.Marshal(RegisterRequest{Email: "r@example.com", Password: "Passw0rd1", DisplayName: "Riley"})
	require.NoError(s.T(), err)

	req := httptest.NewRequest(http.MethodPost, "/auth/register", bytes.NewReader(body))
	w := httptest.NewRecorder()
	handler.handleRegister(w, req)

	assert.Equal(s.T(), http.StatusCreated, w.Code, w.Body.String())
	var resp UserResponse
	require.NoError(s.T(), json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(s.T(), user.ID.String(), resp.ID)
	assert.Equal(s.T(), "REQUESTER", resp.Role)
	assert.NotContains(s.T(), w.Body.String(), "secret", "password hash must not leak")
}

func (s *IdentityHandlerSuite) TestHandleRegisterDuplicateEmail() {
	handler, mockService := newTestHandler(s.T())

	mockService.EXPECT().Register(
		gomock.Any(), "r@example.com", "Passw0rd1", "", "",
	).Return(identity.User{}, dErrors.New(dErrors.CodeConflict, "Email already registered"))

	body, err := json.Marshal(RegisterRequest{Email: "r@example.com", Password: "Passw0rd1"})
	require.NoError(s.T(), err)

	req := httptest.NewRequest(http.MethodPost, "/auth/register", bytes.NewReader(body))
	w := httptest.NewRecorder()
	handler.handleRegister(w, req)

	assert.Equal(s.T(), http.StatusConflict, w.Code)
	assert.Contains(s.T(), w.Body.String(), "Email already registered")
}

func (s *IdentityHandlerSuite) TestHandleRegisterValidation() {
	testCases := []struct {
		name string
		body RegisterRequest
	}{
		{"missing email", RegisterRequest{Password: "Passw0rd1"}},
		{"short password", RegisterRequest{Email: "r@example.com", Password: "short"}},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			handler, _ := newTestHandler(s.T())
			body, err := json.Marshal(tc.body)
			require.NoError(s.T(), err)

			req := httptest.NewRequest(http.MethodPost, "/auth/register", bytes.NewReader(body))
			w := httptest.NewRecorder()
			handler.handleRegister(w, req)

			assert.Equal(s.T(), http.StatusBadRequest, w.Code, w.Body.String())
		})
	}
}

func (s *IdentityHandlerSuite) TestHandleRegisterMalformedBody() {
	handler, _ := newTestHandler(s.T())

	req := httptest.NewRequest(http.MethodPost, "/auth/register", bytes.NewReader([]byte("{not json")))
	w := httptest.NewRecorder()
	handler.handleRegister(w, req)

	assert.Equal(s.T(), http.StatusBadRequest, w.Code)
}

func (s *IdentityHandlerSuite) TestHandleLogin() {
	handler, mockService := newTestHandler(s.T())
	user := testUser("a@example.com", identity.RoleApprover)

	mockService.EXPECT().Authenticate(
		gomock.Any(), "a@example.com", "Passw0rd1",
	).Return(user, "signed.jwt.token", nil)

	body, err := json.Marshal(LoginRequest{Email: "a@example.com", Password: "Passw0rd1"})
	require.NoError(s.T(), err)

	req := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewReader(body))
	w := httptest.NewRecorder()
	handler.handleLogin(w, req)

	assert.Equal(s.T(), http.StatusOK, w.Code, w.Body.String())
	var resp LoginResponse
	require.NoError(s.T(), json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(s.T(), "signed.jwt.token", resp.AccessToken)
	assert.Equal(s.T(), "Bearer", resp.TokenType)
	assert.Equal(s.T(), "APPROVER", resp.User.Role)
}

func (s *IdentityHandlerSuite) TestHandleLoginInvalidCredentials() {
	handler, mockService := newTestHandler(s.T())

	mockService.EXPECT().Authenticate(
		gomock.Any(), "a@example.com", "WrongPass1",
	).Return(identity.User{}, "", dErrors.New(dErrors.CodeUnauthorized, "Invalid credentials"))

	body, err := json.Marshal(LoginRequest{Email: "a@example.com", Password: "WrongPass1"})
	require.NoError(s.T(), err)

	req := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewReader(body))
	w := httptest.NewRecorder()
	handler.handleLogin(w, req)

	assert.Equal(s.T(), http.StatusUnauthorized, w.Code)
	assert.Contains(s.T(), w.Body.String(), "Invalid credentials")
}
