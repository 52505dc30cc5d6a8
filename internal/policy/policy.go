// Package policy holds the pure authorization decisions for the request
// lifecycle. Functions here have no side effects and no storage access: given
// an actor and the current state of a request, they answer "may this happen"
// with enough detail for the transport layer to respond without re-deriving
// the reason.
package policy

import (
	"net/http"
	"strings"

	"accessops/internal/identity"
	id "accessops/pkg/domain"
	dErrors "accessops/pkg/domain-errors"
)

// Result is a structured policy decision. StatusCode and Detail are only set
// on denial so callers can translate directly into a protocol-level response.
type Result struct {
	Allowed    bool
	StatusCode int
	Detail     string
}

func allow() Result {
	return Result{Allowed: true}
}

func deny(status int, detail string) Result {
	return Result{Allowed: false, StatusCode: status, Detail: detail}
}

// Err converts a denial into a domain error. Returns nil when allowed.
func (r Result) Err() error {
	if r.Allowed {
		return nil
	}
	switch r.StatusCode {
	case http.StatusForbidden:
		return dErrors.New(dErrors.CodeForbidden, r.Detail)
	case http.StatusBadRequest:
		return dErrors.New(dErrors.CodeInvalidState, r.Detail)
	default:
		return dErrors.New(dErrors.CodeInternal, r.Detail)
	}
}

// StatusPending is the only state decisions may act on. It is matched after
// trim + uppercase so stored and wire representations compare equal.
const StatusPending = "PENDING"

func normalizeStatus(status string) string {
	return strings.ToUpper(strings.TrimSpace(status))
}

// CanAccessPendingQueue gates the pending-queue listing: approvers and admins
// only.
func CanAccessPendingQueue(role string) Result {
	r := identity.NormalizeRole(role)
	if r == identity.RoleApprover || r == identity.RoleAdmin {
		return allow()
	}
	return deny(http.StatusForbidden, "Forbidden")
}

// CanDecideRequest gates approve/reject decisions. Checks run in a fixed
// order and the first failing check wins; this ordering is a contract:
//
//  1. actor role must be APPROVER or ADMIN          -> 403 "Forbidden"
//  2. request must still be PENDING                 -> 400 "Request not pending"
//  3. actor must not be the requester               -> 403 "Self-approval is not allowed"
//
// A non-approver acting on their own already-decided request therefore gets
// 403 (role check dominates), not 400. The self-approval ban is universal;
// ADMIN does not bypass it.
func CanDecideRequest(actorRole string, actorID, requesterID id.UserID, currentStatus string) Result {
	role := identity.NormalizeRole(actorRole)
	if role != identity.RoleApprover && role != identity.RoleAdmin {
		return deny(http.StatusForbidden, "Forbidden")
	}

	if normalizeStatus(currentStatus) != StatusPending {
		return deny(http.StatusBadRequest, "Request not pending")
	}

	if actorID == requesterID {
		return deny(http.StatusForbidden, "Self-approval is not allowed")
	}

	return allow()
}

// CanCancelRequest gates requester-initiated cancellation. Check order mirrors
// CanDecideRequest: capability first, then state, then ownership.
func CanCancelRequest(actorRole string, actorID, requesterID id.UserID, currentStatus string) Result {
	if !identity.HasAction(actorRole, identity.ActionRequestCancelOwn) {
		return deny(http.StatusForbidden, "Forbidden")
	}

	if normalizeStatus(currentStatus) != StatusPending {
		return deny(http.StatusBadRequest, "Request not pending")
	}

	if actorID != requesterID {
		return deny(http.StatusForbidden, "Forbidden")
	}

	return allow()
}
