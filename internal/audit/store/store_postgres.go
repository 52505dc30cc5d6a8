package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"accessops/internal/audit"
	id "accessops/pkg/domain"
	txcontext "accessops/pkg/platform/tx"
)

// DefaultTopic is the Kafka topic outbox entries are tagged with.
const DefaultTopic = "accessops.audit.events"

// PostgresStore writes audit events with the transactional outbox pattern:
// each Append inserts the immutable audit_events row plus an outbox row, both
// on the caller's transaction when the context carries one. The outbox
// publisher relays rows to Kafka after commit.
type PostgresStore struct {
	db    *sql.DB
	topic string
}

// NewPostgres builds the store. Outbox rows are tagged with topic so the
// publisher relays them to the same topic the process ensured at startup;
// an empty topic falls back to DefaultTopic.
func NewPostgres(db *sql.DB, topic string) *PostgresStore {
	if topic == "" {
		topic = DefaultTopic
	}
	return &PostgresStore{db: db, topic: topic}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// outboxPayload is the JSON structure published to Kafka.
type outboxPayload struct {
	ID         string         `json:"id"`
	ActorID    string         `json:"actor_id,omitempty"`
	Action     string         `json:"action"`
	EntityType string         `json:"entity_type"`
	EntityID   string         `json:"entity_id"`
	Details    map[string]any `json:"details"`
	CreatedAt  string         `json:"created_at"`
}

func (s *PostgresStore) Append(ctx context.Context, event audit.Event) error {
	details, err := json.Marshal(event.Details)
	if err != nil {
		return fmt.Errorf("marshal audit details: %w", err)
	}

	query := `
		INSERT INTO audit_events (id, actor_id, action, entity_type, entity_id, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(event.ID),
		nullActorID(event.ActorID),
		event.Action,
		event.EntityType,
		event.EntityID,
		details,
		event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}

	payload := outboxPayload{
		ID:         event.ID.String(),
		Action:     event.Action,
		EntityType: event.EntityType,
		EntityID:   event.EntityID,
		Details:    event.Details,
		CreatedAt:  event.CreatedAt.Format(time.RFC3339Nano),
	}
	if event.ActorID != nil {
		payload.ActorID = event.ActorID.String()
	}
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal outbox payload: %w", err)
	}

	outboxQuery := `
		INSERT INTO outbox (event_id, topic, payload, created_at)
		VALUES ($1, $2, $3, $4)
	`
	_, err = s.execer(ctx).ExecContext(ctx, outboxQuery,
		uuid.UUID(event.ID),
		s.topic,
		payloadBytes,
		event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert outbox entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByEntity(ctx context.Context, entityType, entityID string) ([]audit.Event, error) {
	query := `
		SELECT id, actor_id, action, entity_type, entity_id, details, created_at
		FROM audit_events
		WHERE entity_type = $1 AND entity_id = $2
		ORDER BY created_at DESC, id DESC
	`
	return s.query(ctx, query, entityType, entityID)
}

func (s *PostgresStore) ListRecent(ctx context.Context, limit int) ([]audit.Event, error) {
	query := `
		SELECT id, actor_id, action, entity_type, entity_id, details, created_at
		FROM audit_events
		ORDER BY created_at DESC, id DESC
		LIMIT $1
	`
	return s.query(ctx, query, limit)
}

func (s *PostgresStore) query(ctx context.Context, query string, args ...any) ([]audit.Event, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	var events []audit.Event
	for rows.Next() {
		var (
			event   audit.Event
			eventID uuid.UUID
			actorID uuid.NullUUID
			details []byte
		)
		err := rows.Scan(&eventID, &actorID, &event.Action, &event.EntityType, &event.EntityID, &details, &event.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}

		event.ID = id.EventID(eventID)
		if actorID.Valid {
			actor := id.UserID(actorID.UUID)
			event.ActorID = &actor
		}
		if err := json.Unmarshal(details, &event.Details); err != nil {
			return nil, fmt.Errorf("unmarshal audit details: %w", err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}

func nullActorID(actorID *id.UserID) uuid.NullUUID {
	if actorID == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: uuid.UUID(*actorID), Valid: true}
}
