package store

import (
	"context"
	"sync"

	"claimdesk/internal/audit"
)

// InMemory is an append-only in-process audit sink for tests and dev mode.
type InMemory struct {
	mu     sync.RWMutex
	events []audit.Event
}

func NewInMemory() *InMemory {
	return &InMemory{}
}

func (s *InMemory) Append(_ context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *InMemory) ListByClaim(_ context.Context, claimID string) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []audit.Event
	for _, e := range s.events {
		if e.ClaimID == claimID {
			out = append(out, e)
		}
	}
	return out, nil
}

// All returns every captured event, oldest first. Test helper.
func (s *InMemory) All() []audit.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]audit.Event(nil), s.events...)
}
