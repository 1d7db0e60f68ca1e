package store

import (
	"context"
	"strings"
	"sync"

	"crewpulse/internal/org/models"
	id "crewpulse/pkg/domain"
	"crewpulse/pkg/platform/sentinel"
)

// InMemory keeps organizations in a mutex-guarded map. It backs tests and
// single-node development runs; semantics mirror the postgres store.
type InMemory struct {
	mu     sync.RWMutex
	orgs   map[id.OrgID]*models.Organization
	byName map[string]id.OrgID // lowercased name -> id
}

func NewInMemory() *InMemory {
	return &InMemory{
		orgs:   make(map[id.OrgID]*models.Organization),
		byName: make(map[string]id.OrgID),
	}
}

func (s *InMemory) CreateIfNameAvailable(_ context.Context, org *models.Organization) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.ToLower(org.Name)
	if _, taken := s.byName[key]; taken {
		return sentinel.ErrConflict
	}
	clone := *org
	s.orgs[org.ID] = &clone
	s.byName[key] = org.ID
	return nil
}

func (s *InMemory) FindByID(_ context.Context, orgID id.OrgID) (*models.Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	org, ok := s.orgs[orgID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	clone := *org
	return &clone, nil
}

func (s *InMemory) FindByName(_ context.Context, name string) (*models.Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	orgID, ok := s.byName[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	clone := *s.orgs[orgID]
	return &clone, nil
}

// Execute holds the write lock across validate and mutate so status
// transitions cannot interleave.
func (s *InMemory) Execute(_ context.Context, orgID id.OrgID,
	validate func(*models.Organization) error,
	mutate func(*models.Organization)) (*models.Organization, error) {

	s.mu.Lock()
	defer s.mu.Unlock()

	org, ok := s.orgs[orgID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if err := validate(org); err != nil {
		return nil, err
	}
	mutate(org)
	clone := *org
	return &clone, nil
}
