package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"crewpulse/internal/feed"
	"crewpulse/internal/transport/http/shared"
	id "crewpulse/pkg/domain"
	"crewpulse/pkg/requestcontext"
)

// Service defines the feed operations the handler needs.
type Service interface {
	PublishPost(ctx context.Context, orgID id.OrgID, author id.EmployeeID, body string, poll *feed.PollInput) (*feed.Post, error)
	EditPost(ctx context.Context, orgID id.OrgID, actor id.EmployeeID, postID id.PostID, body string) (*feed.Post, error)
	DeletePost(ctx context.Context, orgID id.OrgID, actor id.EmployeeID, postID id.PostID) error
	GetPost(ctx context.Context, orgID id.OrgID, postID id.PostID) (*feed.PostDetails, error)
	ListFeed(ctx context.Context, orgID id.OrgID, cursor string, limit int) (*feed.FeedPage, error)
	AddComment(ctx context.Context, orgID id.OrgID, author id.EmployeeID, postID id.PostID, body string) (*feed.Comment, error)
	ListComments(ctx context.Context, orgID id.OrgID, postID id.PostID) ([]*feed.Comment, error)
	SetReaction(ctx context.Context, orgID id.OrgID, employee id.EmployeeID, postID id.PostID, kind feed.ReactionKind) error
	ClearReaction(ctx context.Context, orgID id.OrgID, employee id.EmployeeID, postID id.PostID) error
	Vote(ctx context.Context, orgID id.OrgID, employee id.EmployeeID, postID id.PostID, choices []int) error
	PollResults(ctx context.Context, orgID id.OrgID, postID id.PostID) (*feed.PollResults, error)
}

type Handler struct {
	feed   Service
	logger *slog.Logger
}

func New(svc Service, logger *slog.Logger) *Handler {
	return &Handler{feed: svc, logger: logger}
}

// Register mounts feed routes onto the authenticated org router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/feed", func(r chi.Router) {
		r.Get("/", h.handleListFeed)
		r.Post("/posts", h.handlePublishPost)
		r.Get("/posts/{postID}", h.handleGetPost)
		r.Patch("/posts/{postID}", h.handleEditPost)
		r.Delete("/posts/{postID}", h.handleDeletePost)

		r.Post("/posts/{postID}/comments", h.handleAddComment)
		r.Get("/posts/{postID}/comments", h.handleListComments)

		r.Put("/posts/{postID}/reaction", h.handleSetReaction)
		r.Delete("/posts/{postID}/reaction", h.handleClearReaction)

		r.Post("/posts/{postID}/poll/votes", h.handleVote)
		r.Get("/posts/{postID}/poll/results", h.handlePollResults)
	})
}

type pollRequest struct {
	Question    string   `json:"question" validate:"required,max=500"`
	Options     []string `json:"options" validate:"required,min=2,max=6"`
	MultiChoice bool     `json:"multi_choice"`
	ClosesAt    string   `json:"closes_at" validate:"required"`
}

type publishPostRequest struct {
	Body string       `json:"body" validate:"required,max=4000"`
	Poll *pollRequest `json:"poll"`
}

func (h *Handler) handlePublishPost(w http.ResponseWriter, r *http.Request) {
	var req publishPostRequest
	if err := shared.DecodeValid(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}

	var poll *feed.PollInput
	if req.Poll != nil {
		closesAt, err := time.Parse(time.RFC3339, req.Poll.ClosesAt)
		if err != nil {
			shared.WriteError(w, shared.ValidationError("closes_at must be an RFC 3339 timestamp"))
			return
		}
		poll = &feed.PollInput{
			Question:    req.Poll.Question,
			Options:     req.Poll.Options,
			MultiChoice: req.Poll.MultiChoice,
			ClosesAt:    closesAt,
		}
	}

	ctx := r.Context()
	post, err := h.feed.PublishPost(ctx, requestcontext.OrgID(ctx), requestcontext.EmployeeID(ctx), req.Body, poll)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, post)
}

func (h *Handler) handleListFeed(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			shared.WriteError(w, shared.ValidationError("limit must be an integer"))
			return
		}
		limit = n
	}

	page, err := h.feed.ListFeed(r.Context(), requestcontext.OrgID(r.Context()), r.URL.Query().Get("cursor"), limit)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, page)
}

func (h *Handler) handleGetPost(w http.ResponseWriter, r *http.Request) {
	postID, err := id.ParsePostID(chi.URLParam(r, "postID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	details, err := h.feed.GetPost(r.Context(), requestcontext.OrgID(r.Context()), postID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, details)
}

type editPostRequest struct {
	Body string `json:"body" validate:"required,max=4000"`
}

func (h *Handler) handleEditPost(w http.ResponseWriter, r *http.Request) {
	postID, err := id.ParsePostID(chi.URLParam(r, "postID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	var req editPostRequest
	if err := shared.DecodeValid(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}
	ctx := r.Context()
	post, err := h.feed.EditPost(ctx, requestcontext.OrgID(ctx), requestcontext.EmployeeID(ctx), postID, req.Body)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, post)
}

func (h *Handler) handleDeletePost(w http.ResponseWriter, r *http.Request) {
	postID, err := id.ParsePostID(chi.URLParam(r, "postID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	ctx := r.Context()
	if err := h.feed.DeletePost(ctx, requestcontext.OrgID(ctx), requestcontext.EmployeeID(ctx), postID); err != nil {
		shared.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type commentRequest struct {
	Body string `json:"body" validate:"required,max=2000"`
}

func (h *Handler) handleAddComment(w http.ResponseWriter, r *http.Request) {
	postID, err := id.ParsePostID(chi.URLParam(r, "postID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	var req commentRequest
	if err := shared.DecodeValid(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}
	ctx := r.Context()
	comment, err := h.feed.AddComment(ctx, requestcontext.OrgID(ctx), requestcontext.EmployeeID(ctx), postID, req.Body)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, comment)
}

func (h *Handler) handleListComments(w http.ResponseWriter, r *http.Request) {
	postID, err := id.ParsePostID(chi.URLParam(r, "postID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	comments, err := h.feed.ListComments(r.Context(), requestcontext.OrgID(r.Context()), postID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"comments": comments})
}

type reactionRequest struct {
	Kind string `json:"kind" validate:"required"`
}

func (h *Handler) handleSetReaction(w http.ResponseWriter, r *http.Request) {
	postID, err := id.ParsePostID(chi.URLParam(r, "postID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	var req reactionRequest
	if err := shared.DecodeValid(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}
	ctx := r.Context()
	err = h.feed.SetReaction(ctx, requestcontext.OrgID(ctx), requestcontext.EmployeeID(ctx), postID, feed.ReactionKind(req.Kind))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleClearReaction(w http.ResponseWriter, r *http.Request) {
	postID, err := id.ParsePostID(chi.URLParam(r, "postID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	ctx := r.Context()
	if err := h.feed.ClearReaction(ctx, requestcontext.OrgID(ctx), requestcontext.EmployeeID(ctx), postID); err != nil {
		shared.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type voteRequest struct {
	Choices []int `json:"choices" validate:"required,min=1"`
}

func (h *Handler) handleVote(w http.ResponseWriter, r *http.Request) {
	postID, err := id.ParsePostID(chi.URLParam(r, "postID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	var req voteRequest
	if err := shared.DecodeValid(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}
	ctx := r.Context()
	if err := h.feed.Vote(ctx, requestcontext.OrgID(ctx), requestcontext.EmployeeID(ctx), postID, req.Choices); err != nil {
		shared.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handlePollResults(w http.ResponseWriter, r *http.Request) {
	postID, err := id.ParsePostID(chi.URLParam(r, "postID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	results, err := h.feed.PollResults(r.Context(), requestcontext.OrgID(r.Context()), postID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, results)
}
