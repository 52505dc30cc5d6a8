package audit

import (
	"context"
	"log/slog"

	id "accessops/pkg/domain"
	dErrors "accessops/pkg/domain-errors"
	"accessops/pkg/requestcontext"
)

// Store appends audit events. Implementations must honor a transaction
// carried in the context so the event commits with the state change.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByEntity(ctx context.Context, entityType, entityID string) ([]Event, error)
	ListRecent(ctx context.Context, limit int) ([]Event, error)
}

// Recorder validates and persists audit events.
type Recorder struct {
	store  Store
	logger *slog.Logger
}

func NewRecorder(store Store, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{store: store, logger: logger}
}

// Emit appends the event, assigning an ID and timestamp when unset. The
// timestamp comes from the request context clock so it matches the decision
// it describes. Emit must be called inside the decision's transaction; a
// failure here fails the whole operation.
func (r *Recorder) Emit(ctx context.Context, event Event) error {
	if event.Action == "" || event.EntityType == "" || event.EntityID == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "audit event missing action or entity")
	}

	if event.ID.IsNil() {
		event.ID = id.NewEventID()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = requestcontext.Now(ctx)
	}
	if event.Details == nil {
		event.Details = map[string]any{}
	}

	if err := r.store.Append(ctx, event); err != nil {
		r.logger.ErrorContext(ctx, "audit append failed",
			"action", event.Action,
			"entity_type", event.EntityType,
			"entity_id", event.EntityID,
			"error", err,
		)
		return dErrors.Wrap(err, dErrors.CodeInternal, "append audit event")
	}
	return nil
}

// ListByEntity returns the audit trail for one entity, newest first.
func (r *Recorder) ListByEntity(ctx context.Context, entityType, entityID string) ([]Event, error) {
	events, err := r.store.ListByEntity(ctx, entityType, entityID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list audit events")
	}
	return events, nil
}

// ListRecent returns the most recent events across all entities.
func (r *Recorder) ListRecent(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	events, err := r.store.ListRecent(ctx, limit)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list audit events")
	}
	return events, nil
}
