// Package handler exposes registration and login over HTTP. Both endpoints
// are public; everything else in the API requires the token issued here.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"accessops/internal/identity"
	"accessops/internal/platform/middleware"
	"accessops/pkg/platform/httputil"
	"accessops/pkg/requestcontext"
)

// Service defines the interface for identity operations.
type Service interface {
	Register(ctx context.Context, email, password, displayName, role string) (identity.User, error)
	Authenticate(ctx context.Context, email, password string) (identity.User, string, error)
}

// Handler handles authentication endpoints.
type Handler struct {
	logger   *slog.Logger
	identity Service
}

// New creates a new identity Handler.
func New(identitySvc Service, logger *slog.Logger) *Handler {
	return &Handler{
		logger:   logger,
		identity: identitySvc,
	}
}

// Register registers the auth routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	authRouter := chi.NewRouter()
	authRouter.Use(middleware.Recovery(h.logger))
	authRouter.Use(middleware.RequestID)
	authRouter.Use(middleware.RequestTime)
	authRouter.Use(middleware.Logger(h.logger))
	authRouter.Use(middleware.Timeout(30 * time.Second))
	authRouter.Use(middleware.ContentTypeJSON)
	authRouter.Post("/register", h.handleRegister)
	authRouter.Post("/login", h.handleLogin)

	r.Mount("/auth", authRouter)
}

// handleRegister creates a new user account.
func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[RegisterRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	user, err := h.identity.Register(ctx, req.Email, req.Password, req.DisplayName, req.Role)
	if err != nil {
		h.logger.WarnContext(ctx, "registration failed",
			"request_id", requestID,
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, toUserResponse(user))
}

// handleLogin verifies credentials and returns an access token.
func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[LoginRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	user, token, err := h.identity.Authenticate(ctx, req.Email, req.Password)
	if err != nil {
		h.logger.WarnContext(ctx, "login failed",
			"request_id", requestID,
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, LoginResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		User:        toUserResponse(user),
	})
}
