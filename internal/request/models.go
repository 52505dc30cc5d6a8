// Package request owns the AccessRequest entity and its lifecycle state
// machine. An AccessRequest is treated as an immutable value: transitions
// produce a new value via the Apply functions, and persistence enforces the
// same transition guard with a conditional update so concurrent deciders
// cannot both win.
package request

import (
	"fmt"
	"time"

	id "accessops/pkg/domain"
	dErrors "accessops/pkg/domain-errors"
)

// Status enumerates the lifecycle states. PENDING is initial; the other three
// are terminal. Stored values are uppercase strings.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusApproved  Status = "APPROVED"
	StatusRejected  Status = "REJECTED"
	StatusCancelled Status = "CANCELLED"
)

// allStatuses is used by the init-time transition table check.
var allStatuses = []Status{StatusPending, StatusApproved, StatusRejected, StatusCancelled}

// Terminal reports whether no further transition is defined out of the status.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected || s == StatusCancelled
}

func (s Status) String() string { return string(s) }

// LifecycleAction enumerates the operations that move a request between states.
type LifecycleAction string

const (
	ActionApprove LifecycleAction = "approve"
	ActionReject  LifecycleAction = "reject"
	ActionCancel  LifecycleAction = "cancel"
)

// transitions is the state machine: state x action -> next state. An absent
// entry means the transition is rejected. This table is the source of truth;
// no status comparison outside it may authorize a transition.
var transitions = map[Status]map[LifecycleAction]Status{
	StatusPending: {
		ActionApprove: StatusApproved,
		ActionReject:  StatusRejected,
		ActionCancel:  StatusCancelled,
	},
	StatusApproved:  {},
	StatusRejected:  {},
	StatusCancelled: {},
}

func init() {
	// The table must be exhaustive over statuses, terminal rows must be
	// empty, and every target must be terminal. Catch drift at startup
	// rather than at decision time.
	for _, s := range allStatuses {
		row, ok := transitions[s]
		if !ok {
			panic(fmt.Sprintf("request: transition table missing row for status %s", s))
		}
		if s.Terminal() && len(row) > 0 {
			panic(fmt.Sprintf("request: terminal status %s must have no outgoing transitions", s))
		}
		for action, next := range row {
			if !next.Terminal() {
				panic(fmt.Sprintf("request: transition %s/%s targets non-terminal status %s", s, action, next))
			}
		}
	}
}

// NextStatus resolves a transition from the table. The second return value is
// false when the transition is not defined.
func NextStatus(from Status, action LifecycleAction) (Status, bool) {
	next, ok := transitions[from][action]
	return next, ok
}

// ActionForOutcome maps a terminal decision outcome back to its lifecycle
// action. Only APPROVED and REJECTED are decision outcomes.
func ActionForOutcome(outcome Status) (LifecycleAction, bool) {
	switch outcome {
	case StatusApproved:
		return ActionApprove, true
	case StatusRejected:
		return ActionReject, true
	}
	return "", false
}

// Field limits, enforced at construction and mirrored by column widths.
const (
	MaxResourceLen = 255
	MaxActionLen   = 64
)

// AccessRequest is a single resource-access request. Once the status leaves
// PENDING the record is frozen: DecidedBy and DecidedAt are set exactly once,
// together with the terminal status.
type AccessRequest struct {
	ID            id.RequestID
	RequesterID   id.UserID
	Resource      string
	Action        string
	Justification string
	Status        Status
	DecidedBy     *id.UserID
	DecidedAt     *time.Time
	CreatedAt     time.Time
}

// New validates inputs and returns a fresh PENDING request.
func New(requesterID id.UserID, resource, action, justification string, now time.Time) (AccessRequest, error) {
	if requesterID.IsNil() {
		return AccessRequest{}, dErrors.New(dErrors.CodeInvalidInput, "requester ID is required")
	}
	if resource == "" || len(resource) > MaxResourceLen {
		return AccessRequest{}, dErrors.New(dErrors.CodeValidation, "resource must be 1-255 characters")
	}
	if action == "" || len(action) > MaxActionLen {
		return AccessRequest{}, dErrors.New(dErrors.CodeValidation, "action must be 1-64 characters")
	}
	return AccessRequest{
		ID:            id.NewRequestID(),
		RequesterID:   requesterID,
		Resource:      resource,
		Action:        action,
		Justification: justification,
		Status:        StatusPending,
		CreatedAt:     now,
	}, nil
}

// ApplyDecision returns a copy of the request with the decision outcome
// applied. The receiver is not mutated. Outcome must be APPROVED or REJECTED;
// any transition not in the table fails with an invalid-state error.
func (r AccessRequest) ApplyDecision(outcome Status, actorID id.UserID, at time.Time) (AccessRequest, error) {
	action, ok := ActionForOutcome(outcome)
	if !ok {
		return AccessRequest{}, dErrors.New(dErrors.CodeInvalidInput, "outcome must be APPROVED or REJECTED")
	}
	return r.apply(action, actorID, at)
}

// ApplyCancellation returns a copy of the request moved to CANCELLED.
func (r AccessRequest) ApplyCancellation(actorID id.UserID, at time.Time) (AccessRequest, error) {
	return r.apply(ActionCancel, actorID, at)
}

func (r AccessRequest) apply(action LifecycleAction, actorID id.UserID, at time.Time) (AccessRequest, error) {
	next, ok := NextStatus(r.Status, action)
	if !ok {
		return AccessRequest{}, dErrors.New(dErrors.CodeInvalidState, "Request not pending")
	}
	decidedBy := actorID
	decidedAt := at
	r.Status = next
	r.DecidedBy = &decidedBy
	r.DecidedAt = &decidedAt
	return r, nil
}
