// Package handler exposes the access request lifecycle over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"accessops/internal/platform/middleware"
	"accessops/internal/request"
	"accessops/internal/request/service"
	id "accessops/pkg/domain"
	dErrors "accessops/pkg/domain-errors"
	"accessops/pkg/platform/httputil"
	"accessops/pkg/requestcontext"
)

// Service defines the interface for request lifecycle operations.
type Service interface {
	Create(ctx context.Context, actor service.Actor, resource, action, justification string) (request.AccessRequest, error)
	Decide(ctx context.Context, actor service.Actor, requestID id.RequestID, outcome request.Status) (request.AccessRequest, error)
	Cancel(ctx context.Context, actor service.Actor, requestID id.RequestID) (request.AccessRequest, error)
	List(ctx context.Context, actor service.Actor) ([]request.AccessRequest, error)
	ListPending(ctx context.Context, actor service.Actor) ([]request.AccessRequest, error)
}

// Handler handles access request endpoints.
type Handler struct {
	logger       *slog.Logger
	requests     Service
	jwtValidator middleware.JWTValidator
}

// New creates a new request Handler.
func New(requests Service, logger *slog.Logger, jwtValidator middleware.JWTValidator) *Handler {
	return &Handler{
		logger:       logger,
		requests:     requests,
		jwtValidator: jwtValidator,
	}
}

// Register registers the request routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	requestRouter := chi.NewRouter()
	requestRouter.Use(middleware.Recovery(h.logger))
	requestRouter.Use(middleware.RequestID)
	requestRouter.Use(middleware.RequestTime)
	requestRouter.Use(middleware.Logger(h.logger))
	requestRouter.Use(middleware.Timeout(30 * time.Second))
	requestRouter.Use(middleware.ContentTypeJSON)
	requestRouter.Use(middleware.ClientMetadata)
	requestRouter.Use(middleware.RequireAuth(h.jwtValidator, h.logger))
	requestRouter.Post("/", h.handleCreate)
	requestRouter.Get("/", h.handleList)
	requestRouter.Get("/pending", h.handleListPending)
	requestRouter.Patch("/{id}/approve", h.handleApprove)
	requestRouter.Patch("/{id}/reject", h.handleReject)
	requestRouter.Patch("/{id}/cancel", h.handleCancel)

	r.Mount("/requests", requestRouter)
}

// handleCreate submits a new access request for the authenticated caller.
func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	actor, ok := h.requireActor(w, ctx, requestID)
	if !ok {
		return
	}

	req, ok := httputil.DecodeAndPrepare[CreateRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	created, err := h.requests.Create(ctx, actor, req.Resource, req.Action, req.Justification)
	if err != nil {
		h.writeServiceError(w, ctx, "create request failed", requestID, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, toAccessRequestResponse(created))
}

// handleList returns the requests visible to the caller, newest first.
func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	actor, ok := h.requireActor(w, ctx, requestID)
	if !ok {
		return
	}

	reqs, err := h.requests.List(ctx, actor)
	if err != nil {
		h.writeServiceError(w, ctx, "list requests failed", requestID, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, toListResponse(reqs))
}

// handleListPending returns the pending queue for approvers and admins.
func (h *Handler) handleListPending(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	actor, ok := h.requireActor(w, ctx, requestID)
	if !ok {
		return
	}

	reqs, err := h.requests.ListPending(ctx, actor)
	if err != nil {
		h.writeServiceError(w, ctx, "list pending requests failed", requestID, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, toListResponse(reqs))
}

func (h *Handler) handleApprove(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, request.StatusApproved)
}

func (h *Handler) handleReject(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, request.StatusRejected)
}

func (h *Handler) decide(w http.ResponseWriter, r *http.Request, outcome request.Status) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	actor, ok := h.requireActor(w, ctx, requestID)
	if !ok {
		return
	}

	accessRequestID, err := id.ParseRequestID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request ID"))
		return
	}

	decided, err := h.requests.Decide(ctx, actor, accessRequestID, outcome)
	if err != nil {
		h.writeServiceError(w, ctx, "decide request failed", requestID, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, toAccessRequestResponse(decided))
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	actor, ok := h.requireActor(w, ctx, requestID)
	if !ok {
		return
	}

	accessRequestID, err := id.ParseRequestID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request ID"))
		return
	}

	cancelled, err := h.requests.Cancel(ctx, actor, accessRequestID)
	if err != nil {
		h.writeServiceError(w, ctx, "cancel request failed", requestID, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, toAccessRequestResponse(cancelled))
}

// requireActor extracts the authenticated caller from the context set by the
// auth middleware.
func (h *Handler) requireActor(w http.ResponseWriter, ctx context.Context, requestID string) (service.Actor, bool) {
	actor := service.ActorFromContext(ctx)
	if actor.ID.IsNil() {
		h.logger.ErrorContext(ctx, "userID missing from context despite auth middleware",
			"request_id", requestID,
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return service.Actor{}, false
	}
	return actor, true
}

// writeServiceError logs and translates a service error. Expected denials log
// at warn, everything else at error.
func (h *Handler) writeServiceError(w http.ResponseWriter, ctx context.Context, msg, requestID string, err error) {
	if dErrors.HasCode(err, dErrors.CodeInternal) {
		h.logger.ErrorContext(ctx, msg, "request_id", requestID, "error", err.Error())
	} else {
		h.logger.WarnContext(ctx, msg, "request_id", requestID, "error", err.Error())
	}
	httputil.WriteError(w, err)
}
