package notification

import (
	"context"
	"sort"
	"sync"

	"github.com/samber/lo"

	id "crewpulse/pkg/domain"
	"crewpulse/pkg/platform/sentinel"
)

// InMemory keeps inboxes in a mutex-guarded per-org map.
type InMemory struct {
	mu            sync.RWMutex
	notifications map[id.OrgID]map[id.NotificationID]*Notification
}

func NewInMemory() *InMemory {
	return &InMemory{notifications: make(map[id.OrgID]map[id.NotificationID]*Notification)}
}

func (s *InMemory) Create(_ context.Context, n *Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	byID, ok := s.notifications[n.OrgID]
	if !ok {
		byID = make(map[id.NotificationID]*Notification)
		s.notifications[n.OrgID] = byID
	}
	clone := *n
	byID[n.ID] = &clone
	return nil
}

func (s *InMemory) Exists(_ context.Context, orgID id.OrgID, recipient id.EmployeeID, kind Kind, subject string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, n := range s.notifications[orgID] {
		if n.Recipient == recipient && n.Kind == kind && n.Subject == subject {
			return true, nil
		}
	}
	return false, nil
}

func (s *InMemory) ListByRecipient(_ context.Context, orgID id.OrgID, recipient id.EmployeeID,
	unreadOnly bool, limit int) ([]*Notification, error) {

	s.mu.RLock()
	defer s.mu.RUnlock()

	matches := lo.FilterMap(lo.Values(s.notifications[orgID]), func(n *Notification, _ int) (*Notification, bool) {
		if n.Recipient != recipient || (unreadOnly && n.Read) {
			return nil, false
		}
		clone := *n
		return &clone, true
	})
	sort.Slice(matches, func(i, j int) bool { return matches[i].CreatedAt.After(matches[j].CreatedAt) })
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

func (s *InMemory) MarkRead(_ context.Context, orgID id.OrgID, recipient id.EmployeeID, notifID id.NotificationID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.notifications[orgID][notifID]
	if !ok || n.Recipient != recipient {
		return sentinel.ErrNotFound
	}
	n.Read = true
	return nil
}

func (s *InMemory) MarkAllRead(_ context.Context, orgID id.OrgID, recipient id.EmployeeID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	marked := 0
	for _, n := range s.notifications[orgID] {
		if n.Recipient == recipient && !n.Read {
			n.Read = true
			marked++
		}
	}
	return marked, nil
}
