package market

import (
	"context"
	"sort"
	"sync"

	"github.com/samber/lo"

	id "crewpulse/pkg/domain"
	"crewpulse/pkg/platform/sentinel"
)

// InMemory keeps listings in mutex-guarded per-org maps.
type InMemory struct {
	mu       sync.RWMutex
	listings map[id.OrgID]map[id.ListingID]*Listing
}

func NewInMemory() *InMemory {
	return &InMemory{listings: make(map[id.OrgID]map[id.ListingID]*Listing)}
}

func (s *InMemory) CreateListing(_ context.Context, l *Listing) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	byID, ok := s.listings[l.OrgID]
	if !ok {
		byID = make(map[id.ListingID]*Listing)
		s.listings[l.OrgID] = byID
	}
	clone := *l
	byID[l.ID] = &clone
	return nil
}

func (s *InMemory) FindListing(_ context.Context, orgID id.OrgID, listingID id.ListingID) (*Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	listing, ok := s.listings[orgID][listingID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	clone := *listing
	return &clone, nil
}

func (s *InMemory) ExecuteListing(_ context.Context, orgID id.OrgID, listingID id.ListingID,
	validate func(*Listing) error, mutate func(*Listing) error) (*Listing, error) {

	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.listings[orgID][listingID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	work := *stored
	if err := validate(&work); err != nil {
		return nil, err
	}
	if err := mutate(&work); err != nil {
		return nil, err
	}
	s.listings[orgID][listingID] = &work
	clone := work
	return &clone, nil
}

func (s *InMemory) ListOpen(_ context.Context, orgID id.OrgID, limit int) ([]*Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matches := lo.FilterMap(lo.Values(s.listings[orgID]), func(l *Listing, _ int) (*Listing, bool) {
		if l.Status != StatusOpen {
			return nil, false
		}
		clone := *l
		return &clone, true
	})
	sort.Slice(matches, func(i, j int) bool { return matches[i].CreatedAt.After(matches[j].CreatedAt) })
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}
