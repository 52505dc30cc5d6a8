package store

import (
	"context"

	"accessops/internal/identity"
	id "accessops/pkg/domain"
)

// Store persists users. Email uniqueness is enforced by the store: Create
// returns sentinel.ErrConflict when the email is already registered, even
// under concurrent callers.
type Store interface {
	Create(ctx context.Context, user identity.User) error
	FindByID(ctx context.Context, userID id.UserID) (identity.User, error)
	FindByEmail(ctx context.Context, email string) (identity.User, error)
}
