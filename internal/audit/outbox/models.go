// Package outbox holds the relay queue between committed audit events and
// Kafka. Rows are inserted by the audit store inside the decision transaction
// and published by the worker after commit.
package outbox

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Entry is one unpublished (or published) outbox row.
type Entry struct {
	ID          int64
	EventID     uuid.UUID
	Topic       string
	Payload     []byte
	CreatedAt   time.Time
	PublishedAt *time.Time
}

// Store reads and marks outbox rows for the publisher worker.
type Store interface {
	// FetchUnpublished returns up to limit rows not yet published, oldest
	// first so Kafka sees events in commit order.
	FetchUnpublished(ctx context.Context, limit int) ([]*Entry, error)

	// MarkPublished records a successful publish.
	MarkPublished(ctx context.Context, entryID int64, publishedAt time.Time) error

	// CountPending returns the number of unpublished rows.
	CountPending(ctx context.Context) (int64, error)

	// DeletePublishedBefore prunes old published rows and returns how many
	// were removed.
	DeletePublishedBefore(ctx context.Context, before time.Time) (int64, error)
}
