package recognition

import (
	"context"
	"sort"
	"sync"

	"github.com/samber/lo"

	id "crewpulse/pkg/domain"
)

// InMemory keeps kudos in a mutex-guarded per-org slice.
type InMemory struct {
	mu    sync.RWMutex
	kudos map[id.OrgID][]*Kudos
}

func NewInMemory() *InMemory {
	return &InMemory{kudos: make(map[id.OrgID][]*Kudos)}
}

func (s *InMemory) CreateKudos(_ context.Context, k *Kudos) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := *k
	s.kudos[k.OrgID] = append(s.kudos[k.OrgID], &clone)
	return nil
}

func (s *InMemory) ListReceived(_ context.Context, orgID id.OrgID, employee id.EmployeeID, limit int) ([]*Kudos, error) {
	return s.list(orgID, limit, func(k *Kudos) bool { return k.To == employee }), nil
}

func (s *InMemory) ListGiven(_ context.Context, orgID id.OrgID, employee id.EmployeeID, limit int) ([]*Kudos, error) {
	return s.list(orgID, limit, func(k *Kudos) bool { return k.From == employee }), nil
}

func (s *InMemory) CountBadges(_ context.Context, orgID id.OrgID, employee id.EmployeeID) (map[Badge]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[Badge]int)
	for _, k := range s.kudos[orgID] {
		if k.To == employee {
			counts[k.Badge]++
		}
	}
	return counts, nil
}

func (s *InMemory) list(orgID id.OrgID, limit int, match func(*Kudos) bool) []*Kudos {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matches := lo.FilterMap(s.kudos[orgID], func(k *Kudos, _ int) (*Kudos, bool) {
		if !match(k) {
			return nil, false
		}
		clone := *k
		return &clone, true
	})
	sort.Slice(matches, func(i, j int) bool { return matches[i].CreatedAt.After(matches[j].CreatedAt) })
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}
