package identity

import "strings"

// Role classifies a user into exactly one of three canonical values.
// Roles are immutable after registration; there is no role-change flow.
type Role string

const (
	RoleRequester Role = "REQUESTER"
	RoleApprover  Role = "APPROVER"
	RoleAdmin     Role = "ADMIN"
)

// NormalizeRole canonicalizes a raw role string (trim + uppercase). The result
// is not guaranteed to be a known role; check Valid() before trusting it.
func NormalizeRole(raw string) Role {
	return Role(strings.ToUpper(strings.TrimSpace(raw)))
}

// Valid reports whether the role is one of the canonical values.
func (r Role) Valid() bool {
	switch r {
	case RoleRequester, RoleApprover, RoleAdmin:
		return true
	}
	return false
}

func (r Role) String() string { return string(r) }

// Action names form the capability namespace. Keep these stable; they are part
// of the RBAC contract.
const (
	ActionRequestCreate    = "request:create"
	ActionRequestReadOwn   = "request:read_own"
	ActionRequestReadAny   = "request:read_any"
	ActionRequestCancelOwn = "request:cancel_own"
	ActionRequestApprove   = "request:approve"
	ActionRequestReject    = "request:reject"

	// ActionRequestOverride is reserved for ADMIN. No endpoint exercises it
	// yet; the self-approval ban applies to every role including ADMIN.
	ActionRequestOverride = "request:override"
)

// roleActions maps each role to its permitted action set. Every role can own
// requests; the self-approval ban in the policy engine depends on that.
var roleActions = map[Role]map[string]struct{}{
	RoleRequester: {
		ActionRequestCreate:    {},
		ActionRequestReadOwn:   {},
		ActionRequestCancelOwn: {},
	},
	RoleApprover: {
		ActionRequestCreate:    {},
		ActionRequestReadOwn:   {},
		ActionRequestCancelOwn: {},
		ActionRequestReadAny:   {},
		ActionRequestApprove:   {},
		ActionRequestReject:    {},
	},
	RoleAdmin: {
		ActionRequestCreate:    {},
		ActionRequestReadOwn:   {},
		ActionRequestCancelOwn: {},
		ActionRequestReadAny:   {},
		ActionRequestApprove:   {},
		ActionRequestReject:    {},
		ActionRequestOverride:  {},
	},
}

// HasAction reports whether the given role may perform the given action.
// Pure function: unknown roles and unknown actions yield false, never an error.
// The role input is normalized before lookup; actions are matched verbatim.
func HasAction(role, action string) bool {
	actions, ok := roleActions[NormalizeRole(role)]
	if !ok {
		return false
	}
	_, ok = actions[action]
	return ok
}
