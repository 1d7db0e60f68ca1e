package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"crewpulse/internal/notification"
	"crewpulse/internal/transport/http/shared"
	id "crewpulse/pkg/domain"
	"crewpulse/pkg/requestcontext"
)

// Service defines the inbox operations the handler needs.
type Service interface {
	List(ctx context.Context, orgID id.OrgID, recipient id.EmployeeID, unreadOnly bool, limit int) ([]*notification.Notification, error)
	MarkRead(ctx context.Context, orgID id.OrgID, recipient id.EmployeeID, notifID id.NotificationID) error
	MarkAllRead(ctx context.Context, orgID id.OrgID, recipient id.EmployeeID) (int, error)
}

type Handler struct {
	inbox  Service
	logger *slog.Logger
}

func New(svc Service, logger *slog.Logger) *Handler {
	return &Handler{inbox: svc, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Route("/notifications", func(r chi.Router) {
		r.Get("/", h.handleList)
		r.Post("/{notificationID}/read", h.handleMarkRead)
		r.Post("/read-all", h.handleMarkAllRead)
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	unreadOnly := r.URL.Query().Get("unread") == "true"
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
	list, err := h.inbox.List(ctx, requestcontext.OrgID(ctx), requestcontext.EmployeeID(ctx), unreadOnly, limit)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"notifications": list})
}

func (h *Handler) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	notifID, err := id.ParseNotificationID(chi.URLParam(r, "notificationID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	ctx := r.Context()
	if err := h.inbox.MarkRead(ctx, requestcontext.OrgID(ctx), requestcontext.EmployeeID(ctx), notifID); err != nil {
		shared.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleMarkAllRead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	marked, err := h.inbox.MarkAllRead(ctx, requestcontext.OrgID(ctx), requestcontext.EmployeeID(ctx))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]int{"marked": marked})
}
