// Package survey implements pulse surveys: drafted question sets that open
// for responses and close for good. Questions are typed and answers are
// validated against them at submission time.
package survey

import (
	"strings"
	"time"

	"github.com/samber/lo"

	id "crewpulse/pkg/domain"
	dErrors "crewpulse/pkg/domain-errors"
)

const (
	maxQuestions     = 20
	minChoiceOptions = 2
	maxChoiceOptions = 8
	scaleMin         = 1
	scaleMax         = 5
)

type Status string

const (
	StatusDraft  Status = "draft"
	StatusOpen   Status = "open"
	StatusClosed Status = "closed"
)

type QuestionType string

const (
	QuestionText         QuestionType = "text"
	QuestionScale        QuestionType = "scale"
	QuestionSingleChoice QuestionType = "single_choice"
)

// Question ids are survey-local and stable across removals.
type Question struct {
	ID      int          `json:"id"`
	Type    QuestionType `json:"type"`
	Prompt  string       `json:"prompt"`
	Options []string     `json:"options,omitempty"`
}

type Survey struct {
	ID         id.SurveyID   `json:"id"`
	OrgID      id.OrgID      `json:"org_id"`
	Title      string        `json:"title"`
	Status     Status        `json:"status"`
	Questions  []Question    `json:"questions"`
	NextQID    int           `json:"-"`
	CreatedBy  id.EmployeeID `json:"created_by"`
	CreatedAt  time.Time     `json:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at"`
	OpenedAt   *time.Time    `json:"opened_at,omitempty"`
	ClosedAt   *time.Time    `json:"closed_at,omitempty"`
}

func NewSurvey(surveyID id.SurveyID, orgID id.OrgID, creator id.EmployeeID, title string, now time.Time) (*Survey, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "survey title cannot be empty")
	}
	if len(title) > 200 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "survey title must be 200 characters or less")
	}
	return &Survey{
		ID:        surveyID,
		OrgID:     orgID,
		Title:     title,
		Status:    StatusDraft,
		NextQID:   1,
		CreatedBy: creator,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *Survey) requireDraft() error {
	if s.Status != StatusDraft {
		return dErrors.Newf(dErrors.CodeConflict, "survey is %s, questions are frozen", s.Status)
	}
	return nil
}

func (s *Survey) AddQuestion(qType QuestionType, prompt string, options []string, now time.Time) (*Question, error) {
	if err := s.requireDraft(); err != nil {
		return nil, err
	}
	if len(s.Questions) >= maxQuestions {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "survey cannot have more than 20 questions")
	}
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "question prompt cannot be empty")
	}

	q := Question{ID: s.NextQID, Type: qType, Prompt: prompt}
	switch qType {
	case QuestionText, QuestionScale:
		if len(options) > 0 {
			return nil, dErrors.Newf(dErrors.CodeValidation, "%s questions take no options", qType)
		}
	case QuestionSingleChoice:
		trimmed := lo.FilterMap(options, func(opt string, _ int) (string, bool) {
			opt = strings.TrimSpace(opt)
			return opt, opt != ""
		})
		if len(trimmed) < minChoiceOptions || len(trimmed) > maxChoiceOptions {
			return nil, dErrors.New(dErrors.CodeInvariantViolation, "choice questions need between 2 and 8 options")
		}
		if len(lo.Uniq(trimmed)) != len(trimmed) {
			return nil, dErrors.New(dErrors.CodeInvariantViolation, "choice options must be distinct")
		}
		q.Options = trimmed
	default:
		return nil, dErrors.Newf(dErrors.CodeValidation, "unknown question type %q", qType)
	}

	s.Questions = append(s.Questions, q)
	s.NextQID++
	s.UpdatedAt = now
	return &q, nil
}

func (s *Survey) RemoveQuestion(questionID int, now time.Time) error {
	if err := s.requireDraft(); err != nil {
		return err
	}
	kept := lo.Filter(s.Questions, func(q Question, _ int) bool { return q.ID != questionID })
	if len(kept) == len(s.Questions) {
		return dErrors.New(dErrors.CodeNotFound, "question not found")
	}
	s.Questions = kept
	s.UpdatedAt = now
	return nil
}

func (s *Survey) CanOpen() error {
	if s.Status != StatusDraft {
		return dErrors.Newf(dErrors.CodeConflict, "survey is already %s", s.Status)
	}
	if len(s.Questions) == 0 {
		return dErrors.New(dErrors.CodeInvariantViolation, "survey needs at least one question to open")
	}
	return nil
}

func (s *Survey) ApplyOpen(now time.Time) {
	s.Status = StatusOpen
	s.OpenedAt = &now
	s.UpdatedAt = now
}

func (s *Survey) CanClose() error {
	if s.Status != StatusOpen {
		return dErrors.Newf(dErrors.CodeConflict, "survey is %s, not open", s.Status)
	}
	return nil
}

func (s *Survey) ApplyClose(now time.Time) {
	s.Status = StatusClosed
	s.ClosedAt = &now
	s.UpdatedAt = now
}

func (s *Survey) question(questionID int) (*Question, bool) {
	for i := range s.Questions {
		if s.Questions[i].ID == questionID {
			return &s.Questions[i], true
		}
	}
	return nil, false
}

// Answer addresses one question. Scale and Choice are pointers so zero
// values stay distinguishable from absent ones.
type Answer struct {
	QuestionID int    `json:"question_id"`
	Text       string `json:"text,omitempty"`
	Scale      *int   `json:"scale,omitempty"`
	Choice     *int   `json:"choice,omitempty"`
}

type Response struct {
	SurveyID    id.SurveyID   `json:"survey_id"`
	OrgID       id.OrgID      `json:"org_id"`
	Employee    id.EmployeeID `json:"employee_id"`
	Answers     []Answer      `json:"answers"`
	SubmittedAt time.Time     `json:"submitted_at"`
}

// ValidateAnswers requires exactly one well-typed answer per question.
func (s *Survey) ValidateAnswers(answers []Answer) error {
	if len(answers) != len(s.Questions) {
		return dErrors.New(dErrors.CodeValidation, "every question needs exactly one answer")
	}
	seen := make(map[int]bool, len(answers))
	for _, a := range answers {
		q, ok := s.question(a.QuestionID)
		if !ok {
			return dErrors.Newf(dErrors.CodeValidation, "answer references unknown question %d", a.QuestionID)
		}
		if seen[a.QuestionID] {
			return dErrors.Newf(dErrors.CodeValidation, "question %d answered twice", a.QuestionID)
		}
		seen[a.QuestionID] = true

		switch q.Type {
		case QuestionText:
			if strings.TrimSpace(a.Text) == "" {
				return dErrors.Newf(dErrors.CodeValidation, "question %d needs a text answer", q.ID)
			}
		case QuestionScale:
			if a.Scale == nil || *a.Scale < scaleMin || *a.Scale > scaleMax {
				return dErrors.Newf(dErrors.CodeValidation, "question %d needs a scale answer between 1 and 5", q.ID)
			}
		case QuestionSingleChoice:
			if a.Choice == nil || *a.Choice < 0 || *a.Choice >= len(q.Options) {
				return dErrors.Newf(dErrors.CodeValidation, "question %d needs a valid choice", q.ID)
			}
		}
	}
	return nil
}

type ChoiceCount struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
	Votes int    `json:"votes"`
}

type QuestionResult struct {
	QuestionID int           `json:"question_id"`
	Prompt     string        `json:"prompt"`
	Type       QuestionType  `json:"type"`
	Choices    []ChoiceCount `json:"choices,omitempty"`
	Mean       float64       `json:"mean,omitempty"`
	Texts      []string      `json:"texts,omitempty"`
}

type Results struct {
	SurveyID      id.SurveyID      `json:"survey_id"`
	Title         string           `json:"title"`
	Status        Status           `json:"status"`
	ResponseCount int              `json:"response_count"`
	Questions     []QuestionResult `json:"questions"`
}

// Aggregate folds responses into per-question results: counts per choice,
// mean for scales, free text verbatim.
func (s *Survey) Aggregate(responses []*Response) *Results {
	res := &Results{
		SurveyID:      s.ID,
		Title:         s.Title,
		Status:        s.Status,
		ResponseCount: len(responses),
	}
	byQuestion := make(map[int][]Answer)
	for _, r := range responses {
		for _, a := range r.Answers {
			byQuestion[a.QuestionID] = append(byQuestion[a.QuestionID], a)
		}
	}

	for _, q := range s.Questions {
		qr := QuestionResult{QuestionID: q.ID, Prompt: q.Prompt, Type: q.Type}
		answers := byQuestion[q.ID]
		switch q.Type {
		case QuestionText:
			for _, a := range answers {
				qr.Texts = append(qr.Texts, a.Text)
			}
		case QuestionScale:
			sum := 0
			n := 0
			for _, a := range answers {
				if a.Scale != nil {
					sum += *a.Scale
					n++
				}
			}
			if n > 0 {
				qr.Mean = float64(sum) / float64(n)
			}
		case QuestionSingleChoice:
			qr.Choices = make([]ChoiceCount, len(q.Options))
			for i, text := range q.Options {
				qr.Choices[i] = ChoiceCount{Index: i, Text: text}
			}
			for _, a := range answers {
				if a.Choice != nil && *a.Choice >= 0 && *a.Choice < len(qr.Choices) {
					qr.Choices[*a.Choice].Votes++
				}
			}
		}
		res.Questions = append(res.Questions, qr)
	}
	return res
}
