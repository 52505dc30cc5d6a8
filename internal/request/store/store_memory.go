package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"accessops/internal/request"
	id "accessops/pkg/domain"
	"accessops/pkg/platform/sentinel"
)

// MemoryStore is an in-memory Store for unit tests and local development.
// The mutex makes Decide atomic, mirroring the conditional UPDATE the
// PostgreSQL store uses.
type MemoryStore struct {
	mu       sync.RWMutex
	requests map[id.RequestID]request.AccessRequest
}

func NewMemory() *MemoryStore {
	return &MemoryStore{requests: make(map[id.RequestID]request.AccessRequest)}
}

func (s *MemoryStore) Create(ctx context.Context, req request.AccessRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.requests[req.ID]; exists {
		return sentinel.ErrConflict
	}
	s.requests[req.ID] = req
	return nil
}

func (s *MemoryStore) FindByID(ctx context.Context, requestID id.RequestID) (request.AccessRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	req, ok := s.requests[requestID]
	if !ok {
		return request.AccessRequest{}, sentinel.ErrNotFound
	}
	return req, nil
}

func (s *MemoryStore) ListAll(ctx context.Context) ([]request.AccessRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collect(func(request.AccessRequest) bool { return true }), nil
}

func (s *MemoryStore) ListByRequester(ctx context.Context, requesterID id.UserID) ([]request.AccessRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collect(func(r request.AccessRequest) bool { return r.RequesterID == requesterID }), nil
}

func (s *MemoryStore) ListPending(ctx context.Context) ([]request.AccessRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collect(func(r request.AccessRequest) bool { return r.Status == request.StatusPending }), nil
}

func (s *MemoryStore) Decide(ctx context.Context, requestID id.RequestID, outcome request.Status, deciderID id.UserID, decidedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.requests[requestID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if req.Status != request.StatusPending {
		return sentinel.ErrInvalidState
	}
	if !outcome.Terminal() {
		return sentinel.ErrInvalidState
	}

	req.Status = outcome
	req.DecidedBy = &deciderID
	req.DecidedAt = &decidedAt
	s.requests[requestID] = req
	return nil
}

// collect filters and orders newest-first with an ID tie-break, matching the
// ORDER BY used by the PostgreSQL store.
func (s *MemoryStore) collect(keep func(request.AccessRequest) bool) []request.AccessRequest {
	out := make([]request.AccessRequest, 0, len(s.requests))
	for _, req := range s.requests {
		if keep(req) {
			out = append(out, req)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID.String() > out[j].ID.String()
	})
	return out
}
