package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"accessops/internal/identity"
	id "accessops/pkg/domain"
	"accessops/pkg/platform/sentinel"
)

func newUser(email string) identity.User {
	return identity.User{
		ID:           id.NewUserID(),
		Email:        email,
		PasswordHash: "$2a$10$fake",
		DisplayName:  "Test User",
		Role:         identity.RoleRequester,
		CreatedAt:    time.Now().UTC(),
	}
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	user := newUser("r@example.com")

	require.NoError(t, s.Create(ctx, user))

	t.Run("find by ID", func(t *testing.T) {
		got, err := s.FindByID(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, user, got)
	})

	t.Run("find by email", func(t *testing.T) {
		got, err := s.FindByEmail(ctx, "r@example.com")
		require.NoError(t, err)
		assert.Equal(t, user.ID, got.ID)
	})

	t.Run("duplicate email conflicts", func(t *testing.T) {
		err := s.Create(ctx, newUser("r@example.com"))
		assert.ErrorIs(t, err, sentinel.ErrConflict)
	})

	t.Run("unknown lookups are not found", func(t *testing.T) {
		_, err := s.FindByID(ctx, id.NewUserID())
		assert.ErrorIs(t, err, sentinel.ErrNotFound)

		_, err = s.FindByEmail(ctx, "missing@example.com")
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})
}
