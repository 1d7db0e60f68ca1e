package leave

import (
	"context"
	"sort"
	"sync"

	"github.com/samber/lo"

	id "crewpulse/pkg/domain"
	"crewpulse/pkg/platform/sentinel"
)

// InMemory keeps leave requests in mutex-guarded maps. The overlap check and
// insert run under one lock so concurrent submissions cannot both pass.
type InMemory struct {
	mu       sync.RWMutex
	requests map[id.OrgID]map[id.LeaveRequestID]*Request
}

func NewInMemory() *InMemory {
	return &InMemory{requests: make(map[id.OrgID]map[id.LeaveRequestID]*Request)}
}

func (s *InMemory) CreateIfNoOverlap(_ context.Context, r *Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	byID, ok := s.requests[r.OrgID]
	if !ok {
		byID = make(map[id.LeaveRequestID]*Request)
		s.requests[r.OrgID] = byID
	}
	for _, existing := range byID {
		if existing.Employee == r.Employee && existing.Overlaps(r.From, r.To) {
			return sentinel.ErrConflict
		}
	}
	byID[r.ID] = cloneRequest(r)
	return nil
}

func (s *InMemory) FindRequest(_ context.Context, orgID id.OrgID, reqID id.LeaveRequestID) (*Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	req, ok := s.requests[orgID][reqID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneRequest(req), nil
}

func (s *InMemory) ExecuteRequest(_ context.Context, orgID id.OrgID, reqID id.LeaveRequestID,
	validate func(*Request) error, mutate func(*Request) error) (*Request, error) {

	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.requests[orgID][reqID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	work := cloneRequest(stored)
	if err := validate(work); err != nil {
		return nil, err
	}
	if err := mutate(work); err != nil {
		return nil, err
	}
	s.requests[orgID][reqID] = work
	return cloneRequest(work), nil
}

func (s *InMemory) ListByEmployee(_ context.Context, orgID id.OrgID, employee id.EmployeeID) ([]*Request, error) {
	return s.list(orgID, func(r *Request) bool { return r.Employee == employee }), nil
}

func (s *InMemory) ListPending(_ context.Context, orgID id.OrgID) ([]*Request, error) {
	return s.list(orgID, func(r *Request) bool { return r.Status == StatusRequested }), nil
}

func (s *InMemory) list(orgID id.OrgID, match func(*Request) bool) []*Request {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matches := lo.FilterMap(lo.Values(s.requests[orgID]), func(r *Request, _ int) (*Request, bool) {
		if !match(r) {
			return nil, false
		}
		return cloneRequest(r), true
	})
	sort.Slice(matches, func(i, j int) bool { return matches[i].CreatedAt.After(matches[j].CreatedAt) })
	return matches
}

func cloneRequest(r *Request) *Request {
	clone := *r
	if r.DecidedAt != nil {
		at := *r.DecidedAt
		clone.DecidedAt = &at
	}
	return &clone
}
