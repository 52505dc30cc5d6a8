package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"accessops/internal/request"
	id "accessops/pkg/domain"
	"accessops/pkg/platform/sentinel"
	txcontext "accessops/pkg/platform/tx"
)

// PostgresStore persists access requests in PostgreSQL. When the context
// carries a transaction (pkg/platform/tx), all statements join it so a
// decision and its audit event share one commit.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) querier(ctx context.Context) dbQuerier {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

const requestColumns = `id, requester_id, resource, action, justification, status, decided_by, decided_at, created_at`

func (s *PostgresStore) Create(ctx context.Context, req request.AccessRequest) error {
	query := `
		INSERT INTO access_requests (` + requestColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := s.querier(ctx).ExecContext(ctx, query,
		uuid.UUID(req.ID),
		uuid.UUID(req.RequesterID),
		req.Resource,
		req.Action,
		nullString(req.Justification),
		string(req.Status),
		nullUserID(req.DecidedBy),
		nullTime(req.DecidedAt),
		req.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert access request: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, requestID id.RequestID) (request.AccessRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM access_requests WHERE id = $1`
	row := s.querier(ctx).QueryRowContext(ctx, query, uuid.UUID(requestID))

	req, err := scanRequest(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return request.AccessRequest{}, sentinel.ErrNotFound
		}
		return request.AccessRequest{}, fmt.Errorf("find access request: %w", err)
	}
	return req, nil
}

func (s *PostgresStore) ListAll(ctx context.Context) ([]request.AccessRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM access_requests ORDER BY created_at DESC, id DESC`
	return s.list(ctx, query)
}

func (s *PostgresStore) ListByRequester(ctx context.Context, requesterID id.UserID) ([]request.AccessRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM access_requests WHERE requester_id = $1 ORDER BY created_at DESC, id DESC`
	return s.list(ctx, query, uuid.UUID(requesterID))
}

func (s *PostgresStore) ListPending(ctx context.Context) ([]request.AccessRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM access_requests WHERE status = $1 ORDER BY created_at DESC, id DESC`
	return s.list(ctx, query, string(request.StatusPending))
}

// Decide uses a conditional update so only the first committer wins: the
// UPDATE matches only while status is still PENDING, and a zero row count
// means another decision got there first (or the ID is unknown).
func (s *PostgresStore) Decide(ctx context.Context, requestID id.RequestID, outcome request.Status, deciderID id.UserID, decidedAt time.Time) error {
	if !outcome.Terminal() {
		return sentinel.ErrInvalidState
	}

	query := `
		UPDATE access_requests
		SET status = $1, decided_by = $2, decided_at = $3
		WHERE id = $4 AND status = $5
	`
	res, err := s.querier(ctx).ExecContext(ctx, query,
		string(outcome),
		uuid.UUID(deciderID),
		decidedAt,
		uuid.UUID(requestID),
		string(request.StatusPending),
	)
	if err != nil {
		return fmt.Errorf("decide access request: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("decide access request: %w", err)
	}
	if affected == 1 {
		return nil
	}

	// Distinguish "never existed" from "already decided".
	var exists bool
	err = s.querier(ctx).QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM access_requests WHERE id = $1)`,
		uuid.UUID(requestID),
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check access request existence: %w", err)
	}
	if !exists {
		return sentinel.ErrNotFound
	}
	return sentinel.ErrInvalidState
}

func (s *PostgresStore) list(ctx context.Context, query string, args ...any) ([]request.AccessRequest, error) {
	rows, err := s.querier(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query access requests: %w", err)
	}
	defer rows.Close()

	var out []request.AccessRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan access request: %w", err)
		}
		out = append(out, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate access requests: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner) (request.AccessRequest, error) {
	var (
		req           request.AccessRequest
		reqID         uuid.UUID
		requesterID   uuid.UUID
		justification sql.NullString
		status        string
		decidedBy     uuid.NullUUID
		decidedAt     sql.NullTime
	)
	err := row.Scan(
		&reqID,
		&requesterID,
		&req.Resource,
		&req.Action,
		&justification,
		&status,
		&decidedBy,
		&decidedAt,
		&req.CreatedAt,
	)
	if err != nil {
		return request.AccessRequest{}, err
	}

	req.ID = id.RequestID(reqID)
	req.RequesterID = id.UserID(requesterID)
	req.Justification = justification.String
	req.Status = request.Status(status)
	if decidedBy.Valid {
		decider := id.UserID(decidedBy.UUID)
		req.DecidedBy = &decider
	}
	if decidedAt.Valid {
		at := decidedAt.Time
		req.DecidedAt = &at
	}
	return req, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullUserID(userID *id.UserID) uuid.NullUUID {
	if userID == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: uuid.UUID(*userID), Valid: true}
}
