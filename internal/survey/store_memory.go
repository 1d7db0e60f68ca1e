package survey

import (
	"context"
	"sort"
	"sync"

	"github.com/samber/lo"

	id "crewpulse/pkg/domain"
	"crewpulse/pkg/platform/sentinel"
)

// InMemory keeps surveys and responses in mutex-guarded maps.
type InMemory struct {
	mu        sync.RWMutex
	surveys   map[id.OrgID]map[id.SurveyID]*Survey
	responses map[id.SurveyID]map[id.EmployeeID]*Response
}

func NewInMemory() *InMemory {
	return &InMemory{
		surveys:   make(map[id.OrgID]map[id.SurveyID]*Survey),
		responses: make(map[id.SurveyID]map[id.EmployeeID]*Response),
	}
}

func (s *InMemory) CreateSurvey(_ context.Context, sv *Survey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	byID, ok := s.surveys[sv.OrgID]
	if !ok {
		byID = make(map[id.SurveyID]*Survey)
		s.surveys[sv.OrgID] = byID
	}
	byID[sv.ID] = cloneSurvey(sv)
	return nil
}

func (s *InMemory) FindSurvey(_ context.Context, orgID id.OrgID, surveyID id.SurveyID) (*Survey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sv, ok := s.surveys[orgID][surveyID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneSurvey(sv), nil
}

func (s *InMemory) ExecuteSurvey(_ context.Context, orgID id.OrgID, surveyID id.SurveyID,
	validate func(*Survey) error, mutate func(*Survey) error) (*Survey, error) {

	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.surveys[orgID][surveyID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	work := cloneSurvey(stored)
	if err := validate(work); err != nil {
		return nil, err
	}
	if err := mutate(work); err != nil {
		return nil, err
	}
	s.surveys[orgID][surveyID] = work
	return cloneSurvey(work), nil
}

func (s *InMemory) ListSurveys(_ context.Context, orgID id.OrgID) ([]*Survey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := lo.Map(lo.Values(s.surveys[orgID]), func(sv *Survey, _ int) *Survey {
		return cloneSurvey(sv)
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *InMemory) SaveResponse(_ context.Context, r *Response) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.surveys[r.OrgID][r.SurveyID]; !ok {
		return sentinel.ErrNotFound
	}
	byEmployee, ok := s.responses[r.SurveyID]
	if !ok {
		byEmployee = make(map[id.EmployeeID]*Response)
		s.responses[r.SurveyID] = byEmployee
	}
	if _, exists := byEmployee[r.Employee]; exists {
		return sentinel.ErrConflict
	}
	byEmployee[r.Employee] = cloneResponse(r)
	return nil
}

func (s *InMemory) ListResponses(_ context.Context, orgID id.OrgID, surveyID id.SurveyID) ([]*Response, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.surveys[orgID][surveyID]; !ok {
		return nil, sentinel.ErrNotFound
	}
	return lo.Map(lo.Values(s.responses[surveyID]), func(r *Response, _ int) *Response {
		return cloneResponse(r)
	}), nil
}

func cloneSurvey(sv *Survey) *Survey {
	clone := *sv
	clone.Questions = make([]Question, len(sv.Questions))
	for i, q := range sv.Questions {
		q.Options = append([]string(nil), q.Options...)
		clone.Questions[i] = q
	}
	if sv.OpenedAt != nil {
		at := *sv.OpenedAt
		clone.OpenedAt = &at
	}
	if sv.ClosedAt != nil {
		at := *sv.ClosedAt
		clone.ClosedAt = &at
	}
	return &clone
}

func cloneResponse(r *Response) *Response {
	clone := *r
	clone.Answers = append([]Answer(nil), r.Answers...)
	return &clone
}
