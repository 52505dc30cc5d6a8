package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"accessops/internal/identity"
	id "accessops/pkg/domain"
	"accessops/pkg/platform/sentinel"
	txcontext "accessops/pkg/platform/tx"
)

// PostgresStore persists users in PostgreSQL. Email uniqueness rides on the
// users_email_key constraint; racing registrations lose with ErrConflict.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) querier(ctx context.Context) dbQuerier {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresStore) Create(ctx context.Context, user identity.User) error {
	query := `
		INSERT INTO users (id, email, password_hash, display_name, role, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := s.querier(ctx).ExecContext(ctx, query,
		uuid.UUID(user.ID),
		user.Email,
		user.PasswordHash,
		user.DisplayName,
		string(user.Role),
		user.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, userID id.UserID) (identity.User, error) {
	query := `SELECT id, email, password_hash, display_name, role, created_at FROM users WHERE id = $1`
	return s.scanUser(s.querier(ctx).QueryRowContext(ctx, query, uuid.UUID(userID)))
}

func (s *PostgresStore) FindByEmail(ctx context.Context, email string) (identity.User, error) {
	query := `SELECT id, email, password_hash, display_name, role, created_at FROM users WHERE email = $1`
	return s.scanUser(s.querier(ctx).QueryRowContext(ctx, query, email))
}

func (s *PostgresStore) scanUser(row *sql.Row) (identity.User, error) {
	var (
		user   identity.User
		userID uuid.UUID
		role   string
	)
	err := row.Scan(&userID, &user.Email, &user.PasswordHash, &user.DisplayName, &role, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return identity.User{}, sentinel.ErrNotFound
		}
		return identity.User{}, fmt.Errorf("find user: %w", err)
	}
	user.ID = id.UserID(userID)
	user.Role = identity.Role(role)
	return user, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
