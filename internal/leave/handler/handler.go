package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"crewpulse/internal/leave"
	"crewpulse/internal/transport/http/shared"
	id "crewpulse/pkg/domain"
	"crewpulse/pkg/requestcontext"
)

// Service defines the leave operations the handler needs.
type Service interface {
	Submit(ctx context.Context, orgID id.OrgID, employee id.EmployeeID, leaveType leave.LeaveType, from, to time.Time, note string) (*leave.Request, error)
	Approve(ctx context.Context, orgID id.OrgID, manager id.EmployeeID, reqID id.LeaveRequestID) (*leave.Request, error)
	Reject(ctx context.Context, orgID id.OrgID, manager id.EmployeeID, reqID id.LeaveRequestID, reason string) (*leave.Request, error)
	Cancel(ctx context.Context, orgID id.OrgID, actor id.EmployeeID, reqID id.LeaveRequestID) (*leave.Request, error)
	Get(ctx context.Context, orgID id.OrgID, reqID id.LeaveRequestID) (*leave.Request, error)
	ListByEmployee(ctx context.Context, orgID id.OrgID, employee id.EmployeeID) ([]*leave.Request, error)
	ListPending(ctx context.Context, orgID id.OrgID) ([]*leave.Request, error)
}

type Handler struct {
	leave  Service
	logger *slog.Logger
}

func New(svc Service, logger *slog.Logger) *Handler {
	return &Handler{leave: svc, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Route("/leave", func(r chi.Router) {
		r.Post("/requests", h.handleSubmit)
		r.Get("/requests", h.handleListMine)
		r.Get("/requests/pending", h.handleListPending)
		r.Get("/requests/{requestID}", h.handleGet)
		r.Post("/requests/{requestID}/approve", h.handleApprove)
		r.Post("/requests/{requestID}/reject", h.handleReject)
		r.Post("/requests/{requestID}/cancel", h.handleCancel)
	})
}

type submitRequest struct {
	Type string `json:"type" validate:"required"`
	From string `json:"from" validate:"required"`
	To   string `json:"to" validate:"required"`
	Note string `json:"note" validate:"omitempty,max=1000"`
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := shared.DecodeValid(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}
	from, err := time.Parse(time.DateOnly, req.From)
	if err != nil {
		shared.WriteError(w, shared.ValidationError("from must be a YYYY-MM-DD date"))
		return
	}
	to, err := time.Parse(time.DateOnly, req.To)
	if err != nil {
		shared.WriteError(w, shared.ValidationError("to must be a YYYY-MM-DD date"))
		return
	}

	ctx := r.Context()
	request, err := h.leave.Submit(ctx, requestcontext.OrgID(ctx), requestcontext.EmployeeID(ctx),
		leave.LeaveType(req.Type), from, to, req.Note)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, request)
}

func (h *Handler) handleListMine(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requests, err := h.leave.ListByEmployee(ctx, requestcontext.OrgID(ctx), requestcontext.EmployeeID(ctx))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"requests": requests})
}

func (h *Handler) handleListPending(w http.ResponseWriter, r *http.Request) {
	requests, err := h.leave.ListPending(r.Context(), requestcontext.OrgID(r.Context()))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"requests": requests})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	reqID, err := id.ParseLeaveRequestID(chi.URLParam(r, "requestID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	request, err := h.leave.Get(r.Context(), requestcontext.OrgID(r.Context()), reqID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, request)
}

func (h *Handler) handleApprove(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(ctx context.Context, orgID id.OrgID, actor id.EmployeeID, reqID id.LeaveRequestID) (*leave.Request, error) {
		return h.leave.Approve(ctx, orgID, actor, reqID)
	})
}

type rejectRequest struct {
	Reason string `json:"reason" validate:"required,max=1000"`
}

func (h *Handler) handleReject(w http.ResponseWriter, r *http.Request) {
	reqID, err := id.ParseLeaveRequestID(chi.URLParam(r, "requestID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	var req rejectRequest
	if err := shared.DecodeValid(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}
	ctx := r.Context()
	request, err := h.leave.Reject(ctx, requestcontext.OrgID(ctx), requestcontext.EmployeeID(ctx), reqID, req.Reason)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, request)
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(ctx context.Context, orgID id.OrgID, actor id.EmployeeID, reqID id.LeaveRequestID) (*leave.Request, error) {
		return h.leave.Cancel(ctx, orgID, actor, reqID)
	})
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request,
	op func(context.Context, id.OrgID, id.EmployeeID, id.LeaveRequestID) (*leave.Request, error)) {

	reqID, err := id.ParseLeaveRequestID(chi.URLParam(r, "requestID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	ctx := r.Context()
	request, err := op(ctx, requestcontext.OrgID(ctx), requestcontext.EmployeeID(ctx), reqID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, request)
}
