package survey

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"crewpulse/internal/directory"
	"crewpulse/internal/events"
	"crewpulse/internal/platform/metrics"
	id "crewpulse/pkg/domain"
	dErrors "crewpulse/pkg/domain-errors"
	"crewpulse/pkg/platform/sentinel"
	"crewpulse/pkg/requestcontext"
)

// Store is the survey persistence contract. SaveResponse must reject a
// second response from the same employee with sentinel.ErrConflict.
type Store interface {
	CreateSurvey(ctx context.Context, s *Survey) error
	FindSurvey(ctx context.Context, orgID id.OrgID, surveyID id.SurveyID) (*Survey, error)
	ExecuteSurvey(ctx context.Context, orgID id.OrgID, surveyID id.SurveyID,
		validate func(*Survey) error, mutate func(*Survey) error) (*Survey, error)
	ListSurveys(ctx context.Context, orgID id.OrgID) ([]*Survey, error)
	SaveResponse(ctx context.Context, r *Response) error
	ListResponses(ctx context.Context, orgID id.OrgID, surveyID id.SurveyID) ([]*Response, error)
}

type DirectoryResolver interface {
	RequireActiveEmployee(ctx context.Context, orgID id.OrgID, employeeID id.EmployeeID) (*directory.Employee, error)
}

type Publisher interface {
	Publish(ctx context.Context, event events.Event)
}

type Service struct {
	store     Store
	directory DirectoryResolver
	publisher Publisher
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

type Option func(*Service)

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func NewService(store Store, dir DirectoryResolver, publisher Publisher, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{store: store, directory: dir, publisher: publisher, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Create(ctx context.Context, orgID id.OrgID, creator id.EmployeeID, title string) (*Survey, error) {
	if _, err := s.directory.RequireActiveEmployee(ctx, orgID, creator); err != nil {
		return nil, err
	}
	survey, err := NewSurvey(id.SurveyID(uuid.New()), orgID, creator, title, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	if err := s.store.CreateSurvey(ctx, survey); err != nil {
		return nil, wrapSurveyErr(err)
	}
	return survey, nil
}

func (s *Service) AddQuestion(ctx context.Context, orgID id.OrgID, surveyID id.SurveyID,
	qType QuestionType, prompt string, options []string) (*Survey, error) {

	now := requestcontext.Now(ctx)
	survey, err := s.store.ExecuteSurvey(ctx, orgID, surveyID,
		func(*Survey) error { return nil },
		func(sv *Survey) error {
			_, err := sv.AddQuestion(qType, prompt, options, now)
			return err
		},
	)
	if err != nil {
		return nil, wrapSurveyErr(err)
	}
	return survey, nil
}

func (s *Service) RemoveQuestion(ctx context.Context, orgID id.OrgID, surveyID id.SurveyID, questionID int) (*Survey, error) {
	now := requestcontext.Now(ctx)
	survey, err := s.store.ExecuteSurvey(ctx, orgID, surveyID,
		func(*Survey) error { return nil },
		func(sv *Survey) error { return sv.RemoveQuestion(questionID, now) },
	)
	if err != nil {
		return nil, wrapSurveyErr(err)
	}
	return survey, nil
}

func (s *Service) Open(ctx context.Context, orgID id.OrgID, actor id.EmployeeID, surveyID id.SurveyID) (*Survey, error) {
	now := requestcontext.Now(ctx)
	survey, err := s.store.ExecuteSurvey(ctx, orgID, surveyID,
		func(sv *Survey) error { return sv.CanOpen() },
		func(sv *Survey) error { sv.ApplyOpen(now); return nil },
	)
	if err != nil {
		return nil, wrapSurveyErr(err)
	}
	s.publisher.Publish(ctx, events.SurveyOpened{
		Base:     events.Base{OrgID: orgID, Actor: actor, At: now},
		SurveyID: survey.ID,
		Title:    survey.Title,
	})
	return survey, nil
}

func (s *Service) Close(ctx context.Context, orgID id.OrgID, surveyID id.SurveyID) (*Survey, error) {
	now := requestcontext.Now(ctx)
	survey, err := s.store.ExecuteSurvey(ctx, orgID, surveyID,
		func(sv *Survey) error { return sv.CanClose() },
		func(sv *Survey) error { sv.ApplyClose(now); return nil },
	)
	if err != nil {
		return nil, wrapSurveyErr(err)
	}
	return survey, nil
}

func (s *Service) Get(ctx context.Context, orgID id.OrgID, surveyID id.SurveyID) (*Survey, error) {
	survey, err := s.store.FindSurvey(ctx, orgID, surveyID)
	if err != nil {
		return nil, wrapSurveyErr(err)
	}
	return survey, nil
}

func (s *Service) List(ctx context.Context, orgID id.OrgID) ([]*Survey, error) {
	surveys, err := s.store.ListSurveys(ctx, orgID)
	if err != nil {
		return nil, wrapSurveyErr(err)
	}
	return surveys, nil
}

// SubmitResponse accepts one response per employee while the survey is open.
func (s *Service) SubmitResponse(ctx context.Context, orgID id.OrgID, employee id.EmployeeID,
	surveyID id.SurveyID, answers []Answer) (*Response, error) {

	if _, err := s.directory.RequireActiveEmployee(ctx, orgID, employee); err != nil {
		return nil, err
	}
	survey, err := s.store.FindSurvey(ctx, orgID, surveyID)
	if err != nil {
		return nil, wrapSurveyErr(err)
	}
	if survey.Status != StatusOpen {
		return nil, dErrors.Newf(dErrors.CodeConflict, "survey is %s, not accepting responses", survey.Status)
	}
	if err := survey.ValidateAnswers(answers); err != nil {
		return nil, err
	}

	resp := &Response{
		SurveyID:    surveyID,
		OrgID:       orgID,
		Employee:    employee,
		Answers:     answers,
		SubmittedAt: requestcontext.Now(ctx),
	}
	if err := s.store.SaveResponse(ctx, resp); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "survey already answered")
		}
		return nil, wrapSurveyErr(err)
	}
	if s.metrics != nil {
		s.metrics.SurveyResponse.Inc()
	}
	return resp, nil
}

func (s *Service) Results(ctx context.Context, orgID id.OrgID, surveyID id.SurveyID) (*Results, error) {
	survey, err := s.store.FindSurvey(ctx, orgID, surveyID)
	if err != nil {
		return nil, wrapSurveyErr(err)
	}
	responses, err := s.store.ListResponses(ctx, orgID, surveyID)
	if err != nil {
		return nil, wrapSurveyErr(err)
	}
	return survey.Aggregate(responses), nil
}

func wrapSurveyErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "survey not found")
	default:
		var de *dErrors.Error
		if errors.As(err, &de) {
			return err
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "survey store failure")
	}
}
