package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"crewpulse/internal/recognition"
	"crewpulse/internal/transport/http/shared"
	id "crewpulse/pkg/domain"
	"crewpulse/pkg/requestcontext"
)

// Service defines the recognition operations the handler needs.
type Service interface {
	GiveKudos(ctx context.Context, orgID id.OrgID, from, to id.EmployeeID, badge recognition.Badge, message string) (*recognition.Kudos, error)
	ListReceived(ctx context.Context, orgID id.OrgID, employee id.EmployeeID, limit int) ([]*recognition.Kudos, error)
	ListGiven(ctx context.Context, orgID id.OrgID, employee id.EmployeeID, limit int) ([]*recognition.Kudos, error)
	Tally(ctx context.Context, orgID id.OrgID, employee id.EmployeeID) (*recognition.BadgeTally, error)
}

type Handler struct {
	kudos  Service
	logger *slog.Logger
}

func New(svc Service, logger *slog.Logger) *Handler {
	return &Handler{kudos: svc, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Route("/kudos", func(r chi.Router) {
		r.Post("/", h.handleGiveKudos)
		r.Get("/received", h.handleListReceived)
		r.Get("/given", h.handleListGiven)
		r.Get("/tally/{employeeID}", h.handleTally)
	})
}

type giveKudosRequest struct {
	To      string `json:"to_id" validate:"required"`
	Badge   string `json:"badge" validate:"required"`
	Message string `json:"message" validate:"omitempty,max=500"`
}

func (h *Handler) handleGiveKudos(w http.ResponseWriter, r *http.Request) {
	var req giveKudosRequest
	if err := shared.DecodeValid(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}
	to, err := id.ParseEmployeeID(req.To)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	ctx := r.Context()
	kudos, err := h.kudos.GiveKudos(ctx, requestcontext.OrgID(ctx), requestcontext.EmployeeID(ctx),
		to, recognition.Badge(req.Badge), req.Message)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, kudos)
}

func (h *Handler) handleListReceived(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.kudos.ListReceived)
}

func (h *Handler) handleListGiven(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.kudos.ListGiven)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request,
	op func(context.Context, id.OrgID, id.EmployeeID, int) ([]*recognition.Kudos, error)) {

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			shared.WriteError(w, shared.ValidationError("limit must be an integer"))
			return
		}
		limit = n
	}
	ctx := r.Context()
	kudos, err := op(ctx, requestcontext.OrgID(ctx), requestcontext.EmployeeID(ctx), limit)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"kudos": kudos})
}

func (h *Handler) handleTally(w http.ResponseWriter, r *http.Request) {
	employeeID, err := id.ParseEmployeeID(chi.URLParam(r, "employeeID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	tally, err := h.kudos.Tally(r.Context(), requestcontext.OrgID(r.Context()), employeeID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, tally)
}
