package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"crewpulse/internal/survey"
	"crewpulse/internal/transport/http/shared"
	id "crewpulse/pkg/domain"
	"crewpulse/pkg/requestcontext"
)

// Service defines the survey operations the handler needs.
type Service interface {
	Create(ctx context.Context, orgID id.OrgID, creator id.EmployeeID, title string) (*survey.Survey, error)
	AddQuestion(ctx context.Context, orgID id.OrgID, surveyID id.SurveyID, qType survey.QuestionType, prompt string, options []string) (*survey.Survey, error)
	RemoveQuestion(ctx context.Context, orgID id.OrgID, surveyID id.SurveyID, questionID int) (*survey.Survey, error)
	Open(ctx context.Context, orgID id.OrgID, actor id.EmployeeID, surveyID id.SurveyID) (*survey.Survey, error)
	Close(ctx context.Context, orgID id.OrgID, surveyID id.SurveyID) (*survey.Survey, error)
	Get(ctx context.Context, orgID id.OrgID, surveyID id.SurveyID) (*survey.Survey, error)
	List(ctx context.Context, orgID id.OrgID) ([]*survey.Survey, error)
	SubmitResponse(ctx context.Context, orgID id.OrgID, employee id.EmployeeID, surveyID id.SurveyID, answers []survey.Answer) (*survey.Response, error)
	Results(ctx context.Context, orgID id.OrgID, surveyID id.SurveyID) (*survey.Results, error)
}

type Handler struct {
	surveys Service
	logger  *slog.Logger
}

func New(svc Service, logger *slog.Logger) *Handler {
	return &Handler{surveys: svc, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Route("/surveys", func(r chi.Router) {
		r.Post("/", h.handleCreate)
		r.Get("/", h.handleList)
		r.Get("/{surveyID}", h.handleGet)
		r.Post("/{surveyID}/questions", h.handleAddQuestion)
		r.Delete("/{surveyID}/questions/{questionID}", h.handleRemoveQuestion)
		r.Post("/{surveyID}/open", h.handleOpen)
		r.Post("/{surveyID}/close", h.handleClose)
		r.Post("/{surveyID}/responses", h.handleSubmitResponse)
		r.Get("/{surveyID}/results", h.handleResults)
	})
}

type createSurveyRequest struct {
	Title string `json:"title" validate:"required,max=200"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createSurveyRequest
	if err := shared.DecodeValid(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}
	ctx := r.Context()
	sv, err := h.surveys.Create(ctx, requestcontext.OrgID(ctx), requestcontext.EmployeeID(ctx), req.Title)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, sv)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	surveys, err := h.surveys.List(r.Context(), requestcontext.OrgID(r.Context()))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"surveys": surveys})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	surveyID, err := id.ParseSurveyID(chi.URLParam(r, "surveyID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	sv, err := h.surveys.Get(r.Context(), requestcontext.OrgID(r.Context()), surveyID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, sv)
}

type addQuestionRequest struct {
	Type    string   `json:"type" validate:"required"`
	Prompt  string   `json:"prompt" validate:"required,max=500"`
	Options []string `json:"options" validate:"omitempty,max=8"`
}

func (h *Handler) handleAddQuestion(w http.ResponseWriter, r *http.Request) {
	surveyID, err := id.ParseSurveyID(chi.URLParam(r, "surveyID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	var req addQuestionRequest
	if err := shared.DecodeValid(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}
	sv, err := h.surveys.AddQuestion(r.Context(), requestcontext.OrgID(r.Context()), surveyID,
		survey.QuestionType(req.Type), req.Prompt, req.Options)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, sv)
}

func (h *Handler) handleRemoveQuestion(w http.ResponseWriter, r *http.Request) {
	surveyID, err := id.ParseSurveyID(chi.URLParam(r, "surveyID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	questionID, err := strconv.Atoi(chi.URLParam(r, "questionID"))
	if err != nil {
		shared.WriteError(w, shared.ValidationError("question id must be an integer"))
		return
	}
	sv, err := h.surveys.RemoveQuestion(r.Context(), requestcontext.OrgID(r.Context()), surveyID, questionID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, sv)
}

func (h *Handler) handleOpen(w http.ResponseWriter, r *http.Request) {
	surveyID, err := id.ParseSurveyID(chi.URLParam(r, "surveyID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	ctx := r.Context()
	sv, err := h.surveys.Open(ctx, requestcontext.OrgID(ctx), requestcontext.EmployeeID(ctx), surveyID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, sv)
}

func (h *Handler) handleClose(w http.ResponseWriter, r *http.Request) {
	surveyID, err := id.ParseSurveyID(chi.URLParam(r, "surveyID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	sv, err := h.surveys.Close(r.Context(), requestcontext.OrgID(r.Context()), surveyID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, sv)
}

type submitResponseRequest struct {
	Answers []survey.Answer `json:"answers" validate:"required,min=1"`
}

func (h *Handler) handleSubmitResponse(w http.ResponseWriter, r *http.Request) {
	surveyID, err := id.ParseSurveyID(chi.URLParam(r, "surveyID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	var req submitResponseRequest
	if err := shared.DecodeValid(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}
	ctx := r.Context()
	resp, err := h.surveys.SubmitResponse(ctx, requestcontext.OrgID(ctx), requestcontext.EmployeeID(ctx), surveyID, req.Answers)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, resp)
}

func (h *Handler) handleResults(w http.ResponseWriter, r *http.Request) {
	surveyID, err := id.ParseSurveyID(chi.URLParam(r, "surveyID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	results, err := h.surveys.Results(r.Context(), requestcontext.OrgID(r.Context()), surveyID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, results)
}
