package store

import (
	"context"
	"sync"

	"accessops/internal/identity"
	id "accessops/pkg/domain"
	"accessops/pkg/platform/sentinel"
)

// MemoryStore is an in-memory Store for unit tests and local development.
type MemoryStore struct {
	mu      sync.RWMutex
	byID    map[id.UserID]identity.User
	byEmail map[string]id.UserID
}

func NewMemory() *MemoryStore {
	return &MemoryStore{
		byID:    make(map[id.UserID]identity.User),
		byEmail: make(map[string]id.UserID),
	}
}

func (s *MemoryStore) Create(ctx context.Context, user identity.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byEmail[user.Email]; exists {
		return sentinel.ErrConflict
	}
	if _, exists := s.byID[user.ID]; exists {
		return sentinel.ErrConflict
	}
	s.byID[user.ID] = user
	s.byEmail[user.Email] = user.ID
	return nil
}

func (s *MemoryStore) FindByID(ctx context.Context, userID id.UserID) (identity.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.byID[userID]
	if !ok {
		return identity.User{}, sentinel.ErrNotFound
	}
	return user, nil
}

func (s *MemoryStore) FindByEmail(ctx context.Context, email string) (identity.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	userID, ok := s.byEmail[email]
	if !ok {
		return identity.User{}, sentinel.ErrNotFound
	}
	return s.byID[userID], nil
}
