package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"crewpulse/internal/org/models"
	"crewpulse/internal/transport/http/shared"
	id "crewpulse/pkg/domain"
	dErrors "crewpulse/pkg/domain-errors"
)

// Service defines the org operations the handler needs.
type Service interface {
	Create(ctx context.Context, name string) (*models.Organization, error)
	Get(ctx context.Context, orgID id.OrgID) (*models.OrgDetails, error)
	Suspend(ctx context.Context, orgID id.OrgID) (*models.Organization, error)
	Reinstate(ctx context.Context, orgID id.OrgID) (*models.Organization, error)
}

// Handler exposes org lifecycle endpoints. These sit behind the operator
// admin token, not org auth: they manage tenants, they do not act inside one.
type Handler struct {
	orgs   Service
	logger *slog.Logger
}

func New(orgs Service, logger *slog.Logger) *Handler {
	return &Handler{orgs: orgs, logger: logger}
}

// Register mounts the org routes onto the admin router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/orgs", h.handleCreate)
	r.Get("/orgs/{orgID}", h.handleGet)
	r.Post("/orgs/{orgID}/suspend", h.handleSuspend)
	r.Post("/orgs/{orgID}/reinstate", h.handleReinstate)
}

type createOrgRequest struct {
	Name string `json:"name" validate:"required,max=128"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createOrgRequest
	if err := shared.DecodeValid(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}

	org, err := h.orgs.Create(r.Context(), req.Name)
	if err != nil {
		h.logger.WarnContext(r.Context(), "create org failed", "error", err.Error())
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, org)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	orgID, err := id.ParseOrgID(chi.URLParam(r, "orgID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	details, err := h.orgs.Get(r.Context(), orgID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, details)
}

func (h *Handler) handleSuspend(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.orgs.Suspend)
}

func (h *Handler) handleReinstate(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.orgs.Reinstate)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request,
	op func(context.Context, id.OrgID) (*models.Organization, error)) {

	orgID, err := id.ParseOrgID(chi.URLParam(r, "orgID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	org, err := op(r.Context(), orgID)
	if err != nil {
		if !dErrors.HasCode(err, dErrors.CodeConflict) && !dErrors.HasCode(err, dErrors.CodeNotFound) {
			h.logger.ErrorContext(r.Context(), "org transition failed",
				"org_id", orgID.String(), "error", err.Error())
		}
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, org)
}
