package memory

import (
	"context"
	"sync"

	id "crewpulse/pkg/domain"
	audit "crewpulse/pkg/platform/audit"
)

// Store keeps audit events in memory for tests and Kafka-less deployments.
type Store struct {
	mu     sync.RWMutex
	events map[id.OrgID][]audit.Event
}

func New() *Store {
	return &Store{events: make(map[id.OrgID][]audit.Event)}
}

func (s *Store) Append(_ context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[event.OrgID] = append(s.events[event.OrgID], event)
	return nil
}

func (s *Store) ListByOrg(_ context.Context, orgID id.OrgID, limit int) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := s.events[orgID]
	// newest first
	out := make([]audit.Event, 0, len(all))
	for i := len(all) - 1; i >= 0; i-- {
		out = append(out, all[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}
