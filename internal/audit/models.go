// Package audit records immutable events for every decision made on an
// access request. Events are appended in the same transaction as the state
// change they describe and relayed to Kafka through the outbox table.
package audit

import (
	"time"

	id "accessops/pkg/domain"
)

// Audit action tags. The "access_request." prefix namespaces them so other
// entity types can be audited later without collisions.
const (
	ActionRequestApproved  = "access_request.approved"
	ActionRequestRejected  = "access_request.rejected"
	ActionRequestCancelled = "access_request.cancelled"
)

// EntityTypeAccessRequest is the entity type recorded for request lifecycle events.
const EntityTypeAccessRequest = "access_request"

// Event is a single immutable audit record. ActorID is a pointer so the row
// survives actor deletion (the FK nulls it out).
type Event struct {
	ID         id.EventID
	ActorID    *id.UserID
	Action     string
	EntityType string
	EntityID   string
	Details    map[string]any
	CreatedAt  time.Time
}

// DecisionDetails builds the details payload for a lifecycle event. Keys are
// stable; consumers index on them.
func DecisionDetails(requesterID id.UserID, resource, action string, previousStatus, newStatus string) map[string]any {
	return map[string]any{
		"requester_id":    requesterID.String(),
		"resource":        resource,
		"action":          action,
		"previous_status": previousStatus,
		"new_status":      newStatus,
	}
}
