package store

import (
	"context"
	"time"

	"accessops/internal/request"
	id "accessops/pkg/domain"
)

// Store persists access requests. Implementations must keep Decide atomic:
// the status may only leave PENDING once, even under concurrent callers, and
// DecidedBy/DecidedAt are written together with the terminal status.
//
// Stores return sentinel errors (pkg/platform/sentinel); services translate
// them into domain errors.
type Store interface {
	Create(ctx context.Context, req request.AccessRequest) error
	FindByID(ctx context.Context, requestID id.RequestID) (request.AccessRequest, error)

	// ListAll returns every request, newest first (created_at descending
	// with a deterministic ID tie-break).
	ListAll(ctx context.Context) ([]request.AccessRequest, error)

	// ListByRequester returns the given user's requests, newest first.
	ListByRequester(ctx context.Context, requesterID id.UserID) ([]request.AccessRequest, error)

	// ListPending returns only PENDING requests, newest first.
	ListPending(ctx context.Context) ([]request.AccessRequest, error)

	// Decide conditionally moves a request to the given terminal status,
	// only if it is still PENDING. Exactly one concurrent caller can
	// succeed; losers get sentinel.ErrInvalidState, and an unknown ID gets
	// sentinel.ErrNotFound.
	Decide(ctx context.Context, requestID id.RequestID, outcome request.Status, deciderID id.UserID, decidedAt time.Time) error
}
