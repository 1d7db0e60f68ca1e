package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"crewpulse/internal/market"
	"crewpulse/internal/transport/http/shared"
	id "crewpulse/pkg/domain"
	"crewpulse/pkg/requestcontext"
)

// Service defines the marketplace operations the handler needs.
type Service interface {
	Create(ctx context.Context, orgID id.OrgID, seller id.EmployeeID, title, description string, price int64, currency string) (*market.Listing, error)
	Get(ctx context.Context, orgID id.OrgID, listingID id.ListingID) (*market.Listing, error)
	ListOpen(ctx context.Context, orgID id.OrgID, limit int) ([]*market.Listing, error)
	Reserve(ctx context.Context, orgID id.OrgID, buyer id.EmployeeID, listingID id.ListingID) (*market.Listing, error)
	Release(ctx context.Context, orgID id.OrgID, actor id.EmployeeID, listingID id.ListingID) (*market.Listing, error)
	CompleteSale(ctx context.Context, orgID id.OrgID, seller id.EmployeeID, listingID id.ListingID) (*market.Listing, error)
	Withdraw(ctx context.Context, orgID id.OrgID, seller id.EmployeeID, listingID id.ListingID) (*market.Listing, error)
}

type Handler struct {
	market Service
	logger *slog.Logger
}

func New(svc Service, logger *slog.Logger) *Handler {
	return &Handler{market: svc, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Route("/market/listings", func(r chi.Router) {
		r.Post("/", h.handleCreate)
		r.Get("/", h.handleListOpen)
		r.Get("/{listingID}", h.handleGet)
		r.Post("/{listingID}/reserve", h.handleReserve)
		r.Post("/{listingID}/release", h.handleRelease)
		r.Post("/{listingID}/complete", h.handleComplete)
		r.Post("/{listingID}/withdraw", h.handleWithdraw)
	})
}

type createListingRequest struct {
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description" validate:"omitempty,max=2000"`
	Price       int64  `json:"price" validate:"required,gt=0"`
	Currency    string `json:"currency" validate:"required,len=3,uppercase"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createListingRequest
	if err := shared.DecodeValid(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}
	ctx := r.Context()
	listing, err := h.market.Create(ctx, requestcontext.OrgID(ctx), requestcontext.EmployeeID(ctx),
		req.Title, req.Description, req.Price, req.Currency)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, listing)
}

func (h *Handler) handleListOpen(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			shared.WriteError(w, shared.ValidationError("limit must be an integer"))
			return
		}
		limit = n
	}
	listings, err := h.market.ListOpen(r.Context(), requestcontext.OrgID(r.Context()), limit)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"listings": listings})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	listingID, err := id.ParseListingID(chi.URLParam(r, "listingID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	listing, err := h.market.Get(r.Context(), requestcontext.OrgID(r.Context()), listingID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, listing)
}

func (h *Handler) handleReserve(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.market.Reserve)
}

func (h *Handler) handleRelease(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.market.Release)
}

func (h *Handler) handleComplete(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.market.CompleteSale)
}

func (h *Handler) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.market.Withdraw)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request,
	op func(context.Context, id.OrgID, id.EmployeeID, id.ListingID) (*market.Listing, error)) {

	listingID, err := id.ParseListingID(chi.URLParam(r, "listingID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	ctx := r.Context()
	listing, err := op(ctx, requestcontext.OrgID(ctx), requestcontext.EmployeeID(ctx), listingID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, listing)
}
