package store

import (
	"context"
	"sort"
	"sync"

	"accessops/internal/audit"
	"accessops/pkg/platform/sentinel"
)

// MemoryStore is an append-only in-memory audit store for unit tests and
// local development.
type MemoryStore struct {
	mu     sync.RWMutex
	events []audit.Event
}

func NewMemory() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Append(ctx context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.events {
		if existing.ID == event.ID {
			return sentinel.ErrConflict
		}
	}
	s.events = append(s.events, copyEvent(event))
	return nil
}

func (s *MemoryStore) ListByEntity(ctx context.Context, entityType, entityID string) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collect(func(e audit.Event) bool {
		return e.EntityType == entityType && e.EntityID == entityID
	}, 0), nil
}

func (s *MemoryStore) ListRecent(ctx context.Context, limit int) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collect(func(audit.Event) bool { return true }, limit), nil
}

func (s *MemoryStore) collect(keep func(audit.Event) bool, limit int) []audit.Event {
	var out []audit.Event
	for _, e := range s.events {
		if keep(e) {
			out = append(out, copyEvent(e))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID.String() > out[j].ID.String()
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// copyEvent clones the details map so stored events cannot be mutated
// through a retained reference.
func copyEvent(e audit.Event) audit.Event {
	if e.Details != nil {
		details := make(map[string]any, len(e.Details))
		for k, v := range e.Details {
			details[k] = v
		}
		e.Details = details
	}
	return e
}
