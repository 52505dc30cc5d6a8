// Package service orchestrates the request lifecycle: policy checks, the
// conditional state transition, and the audit append, with the mutating parts
// of a decision held inside one transaction.
package service

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel"

	"accessops/internal/audit"
	"accessops/internal/identity"
	"accessops/internal/policy"
	"accessops/internal/request"
	"accessops/internal/request/store"
	id "accessops/pkg/domain"
	dErrors "accessops/pkg/domain-errors"
	"accessops/pkg/platform/sentinel"
	"accessops/pkg/requestcontext"
)

var tracer = otel.Tracer("accessops/internal/request/service")

// Actor identifies the authenticated caller of an operation.
type Actor struct {
	ID   id.UserID
	Role string
}

// ActorFromContext builds an Actor from the values the auth middleware put in
// the context.
func ActorFromContext(ctx context.Context) Actor {
	return Actor{
		ID:   requestcontext.UserID(ctx),
		Role: requestcontext.Role(ctx),
	}
}

// Auditor appends audit events. Emit must be called inside the decision
// transaction; its failure aborts the decision.
type Auditor interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service implements the request lifecycle operations.
type Service struct {
	store   store.Store
	tx      StoreTx
	auditor Auditor
	logger  *slog.Logger
	metrics *Metrics
}

func New(s store.Store, tx StoreTx, auditor Auditor, logger *slog.Logger, metrics *Metrics) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:   s,
		tx:      tx,
		auditor: auditor,
		logger:  logger,
		metrics: metrics,
	}
}

// Create submits a new PENDING request on behalf of the actor. Creation emits
// no audit event; only terminal transitions do.
func (s *Service) Create(ctx context.Context, actor Actor, resource, action, justification string) (request.AccessRequest, error) {
	ctx, span := tracer.Start(ctx, "request.create")
	defer span.End()

	if !identity.HasAction(actor.Role, identity.ActionRequestCreate) {
		s.metrics.IncDenied("create")
		return request.AccessRequest{}, dErrors.New(dErrors.CodeForbidden, "Forbidden")
	}

	req, err := request.New(actor.ID, resource, action, justification, requestcontext.Now(ctx))
	if err != nil {
		return request.AccessRequest{}, err
	}

	if err := s.store.Create(ctx, req); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return request.AccessRequest{}, dErrors.New(dErrors.CodeConflict, "Request already exists")
		}
		return request.AccessRequest{}, dErrors.Wrap(err, dErrors.CodeInternal, "create request")
	}

	s.metrics.IncCreated()
	s.logger.InfoContext(ctx, "access request created",
		"request_id", requestcontext.RequestID(ctx),
		"access_request_id", req.ID.String(),
		"resource", req.Resource,
		"action", req.Action,
	)
	return req, nil
}

// Decide moves a PENDING request to APPROVED or REJECTED. The load, policy
// check, conditional update, and audit append run in one transaction; exactly
// one concurrent decision can commit.
func (s *Service) Decide(ctx context.Context, actor Actor, requestID id.RequestID, outcome request.Status) (request.AccessRequest, error) {
	ctx, span := tracer.Start(ctx, "request.decide")
	defer span.End()

	if _, ok := request.ActionForOutcome(outcome); !ok {
		return request.AccessRequest{}, dErrors.New(dErrors.CodeInvalidInput, "outcome must be APPROVED or REJECTED")
	}

	var decided request.AccessRequest
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		req, err := s.findForUpdate(txCtx, requestID)
		if err != nil {
			return err
		}

		res := policy.CanDecideRequest(actor.Role, actor.ID, req.RequesterID, string(req.Status))
		if !res.Allowed {
			s.metrics.IncDenied("decide")
			return res.Err()
		}

		decidedAt := requestcontext.Now(txCtx)
		if err := s.store.Decide(txCtx, requestID, outcome, actor.ID, decidedAt); err != nil {
			return translateDecideErr(err)
		}

		decided, err = req.ApplyDecision(outcome, actor.ID, decidedAt)
		if err != nil {
			return err
		}

		return s.emitLifecycleEvent(txCtx, actor, req, decided)
	})
	if err != nil {
		return request.AccessRequest{}, err
	}

	s.metrics.IncDecision(string(outcome))
	s.logger.InfoContext(ctx, "access request decided",
		"request_id", requestcontext.RequestID(ctx),
		"access_request_id", requestID.String(),
		"outcome", string(outcome),
	)
	return decided, nil
}

// Cancel moves the actor's own PENDING request to CANCELLED, with the same
// transactional discipline as Decide.
func (s *Service) Cancel(ctx context.Context, actor Actor, requestID id.RequestID) (request.AccessRequest, error) {
	ctx, span := tracer.Start(ctx, "request.cancel")
	defer span.End()

	var cancelled request.AccessRequest
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		req, err := s.findForUpdate(txCtx, requestID)
		if err != nil {
			return err
		}

		res := policy.CanCancelRequest(actor.Role, actor.ID, req.RequesterID, string(req.Status))
		if !res.Allowed {
			s.metrics.IncDenied("cancel")
			return res.Err()
		}

		decidedAt := requestcontext.Now(txCtx)
		if err := s.store.Decide(txCtx, requestID, request.StatusCancelled, actor.ID, decidedAt); err != nil {
			return translateDecideErr(err)
		}

		cancelled, err = req.ApplyCancellation(actor.ID, decidedAt)
		if err != nil {
			return err
		}

		return s.emitLifecycleEvent(txCtx, actor, req, cancelled)
	})
	if err != nil {
		return request.AccessRequest{}, err
	}

	s.metrics.IncDecision(string(request.StatusCancelled))
	s.logger.InfoContext(ctx, "access request cancelled",
		"request_id", requestcontext.RequestID(ctx),
		"access_request_id", requestID.String(),
	)
	return cancelled, nil
}

// List returns requests visible to the actor: requesters see their own,
// approvers and admins see all. Newest first.
func (s *Service) List(ctx context.Context, actor Actor) ([]request.AccessRequest, error) {
	switch {
	case identity.HasAction(actor.Role, identity.ActionRequestReadAny):
		reqs, err := s.store.ListAll(ctx)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list requests")
		}
		return reqs, nil
	case identity.HasAction(actor.Role, identity.ActionRequestReadOwn):
		reqs, err := s.store.ListByRequester(ctx, actor.ID)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list requests")
		}
		return reqs, nil
	default:
		s.metrics.IncDenied("list")
		return nil, dErrors.New(dErrors.CodeForbidden, "Forbidden")
	}
}

// ListPending returns the PENDING queue for approvers and admins.
func (s *Service) ListPending(ctx context.Context, actor Actor) ([]request.AccessRequest, error) {
	if res := policy.CanAccessPendingQueue(actor.Role); !res.Allowed {
		s.metrics.IncDenied("list_pending")
		return nil, res.Err()
	}

	reqs, err := s.store.ListPending(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list pending requests")
	}
	return reqs, nil
}

func (s *Service) findForUpdate(ctx context.Context, requestID id.RequestID) (request.AccessRequest, error) {
	req, err := s.store.FindByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return request.AccessRequest{}, dErrors.New(dErrors.CodeNotFound, "Request not found")
		}
		return request.AccessRequest{}, dErrors.Wrap(err, dErrors.CodeInternal, "find request")
	}
	return req, nil
}

// emitLifecycleEvent appends the audit event for a terminal transition.
// Details always carry the five contract keys; client metadata is added when
// the middleware resolved it.
func (s *Service) emitLifecycleEvent(ctx context.Context, actor Actor, before, after request.AccessRequest) error {
	var action string
	switch after.Status {
	case request.StatusApproved:
		action = audit.ActionRequestApproved
	case request.StatusRejected:
		action = audit.ActionRequestRejected
	case request.StatusCancelled:
		action = audit.ActionRequestCancelled
	default:
		return dErrors.New(dErrors.CodeInternal, "no audit action for status "+string(after.Status))
	}

	details := audit.DecisionDetails(before.RequesterID, before.Resource, before.Action, string(before.Status), string(after.Status))
	if ip := requestcontext.ClientIP(ctx); ip != "" {
		details["client_ip"] = ip
	}
	if ua := requestcontext.UserAgent(ctx); ua != "" {
		details["user_agent"] = ua
	}

	actorID := actor.ID
	return s.auditor.Emit(ctx, audit.Event{
		ActorID:    &actorID,
		Action:     action,
		EntityType: audit.EntityTypeAccessRequest,
		EntityID:   before.ID.String(),
		Details:    details,
	})
}

// translateDecideErr maps store sentinels from the conditional update into
// domain errors. A lost race surfaces as "Request not pending", same as a
// request that was already decided when loaded.
func translateDecideErr(err error) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "Request not found")
	case errors.Is(err, sentinel.ErrInvalidState):
		return dErrors.New(dErrors.CodeInvalidState, "Request not pending")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "decide request")
	}
}
