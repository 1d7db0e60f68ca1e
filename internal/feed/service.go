package feed

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"crewpulse/internal/directory"
	"crewpulse/internal/events"
	"crewpulse/internal/platform/metrics"
	id "crewpulse/pkg/domain"
	dErrors "crewpulse/pkg/domain-errors"
	"crewpulse/pkg/platform/sentinel"
	"crewpulse/pkg/requestcontext"
)

const defaultPageSize = 20

// Store is the feed persistence contract. Every lookup takes the acting org
// so the store can refuse cross-org ids with sentinel.ErrNotFound.
type Store interface {
	CreatePost(ctx context.Context, p *Post) error
	FindPost(ctx context.Context, orgID id.OrgID, postID id.PostID) (*Post, error)
	// ExecutePost loads the post under a write lock, runs validate, and
	// persists the result of mutate when both succeed.
	ExecutePost(ctx context.Context, orgID id.OrgID, postID id.PostID,
		validate func(*Post) error, mutate func(*Post) error) (*Post, error)
	ListPosts(ctx context.Context, orgID id.OrgID, before Cursor, limit int) ([]*Post, error)
	// DuePolls returns posts whose poll is past its deadline but not yet
	// marked closed, across all orgs.
	DuePolls(ctx context.Context, now time.Time, limit int) ([]*Post, error)

	CreateComment(ctx context.Context, c *Comment) error
	ListComments(ctx context.Context, orgID id.OrgID, postID id.PostID) ([]*Comment, error)
	CountComments(ctx context.Context, orgID id.OrgID, postIDs []id.PostID) (map[id.PostID]int, error)

	// SetReaction upserts and returns the kind it replaced, "" when the
	// employee had no reaction on the post.
	SetReaction(ctx context.Context, rx *Reaction) (ReactionKind, error)
	ClearReaction(ctx context.Context, orgID id.OrgID, postID id.PostID, employee id.EmployeeID) error
	ReactionCounts(ctx context.Context, orgID id.OrgID, postIDs []id.PostID) (map[id.PostID]map[ReactionKind]int, error)

	// SaveBallot replaces the employee's previous ballot on the poll.
	SaveBallot(ctx context.Context, orgID id.OrgID, postID id.PostID, b *Ballot) error
	ListBallots(ctx context.Context, orgID id.OrgID, postID id.PostID) ([]*Ballot, error)
}

type Publisher interface {
	Publish(ctx context.Context, event events.Event)
}

type Service struct {
	store     Store
	directory DirectoryResolver
	publisher Publisher
	cache     *PageCache
	logger    *slog.Logger
	metrics   *metrics.Metrics
	pageSize  int
}

// DirectoryResolver is the slice of the directory service the feed needs:
// mention resolution and actor checks.
type DirectoryResolver interface {
	ResolveHandles(ctx context.Context, orgID id.OrgID, handles []string) ([]id.EmployeeID, error)
	RequireActiveEmployee(ctx context.Context, orgID id.OrgID, employeeID id.EmployeeID) (*directory.Employee, error)
}

type Option func(*Service)

func WithCache(cache *PageCache) Option {
	return func(s *Service) { s.cache = cache }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithPageSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.pageSize = n
		}
	}
}

func NewService(store Store, directory DirectoryResolver, publisher Publisher, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		store:     store,
		directory: directory,
		publisher: publisher,
		logger:    logger,
		pageSize:  defaultPageSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PollInput is the optional poll attached at publish time.
type PollInput struct {
	Question    string
	Options     []string
	MultiChoice bool
	ClosesAt    time.Time
}

func (s *Service) PublishPost(ctx context.Context, orgID id.OrgID, author id.EmployeeID, body string, pollIn *PollInput) (*Post, error) {
	if _, err := s.directory.RequireActiveEmployee(ctx, orgID, author); err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)

	var poll *Poll
	if pollIn != nil {
		var err error
		poll, err = NewPoll(pollIn.Question, pollIn.Options, pollIn.MultiChoice, pollIn.ClosesAt, now)
		if err != nil {
			return nil, err
		}
	}

	post, err := NewPost(id.PostID(uuid.New()), orgID, author, body, poll, now)
	if err != nil {
		return nil, err
	}
	if err := s.store.CreatePost(ctx, post); err != nil {
		return nil, wrapFeedErr(err, "post")
	}
	if s.metrics != nil {
		s.metrics.PostsPublished.Inc()
	}
	s.cache.Invalidate(ctx, orgID)

	base := events.Base{OrgID: orgID, Actor: author, At: now}
	s.publisher.Publish(ctx, events.PostPublished{Base: base, PostID: post.ID, HasPoll: poll != nil})
	s.notifyMentions(ctx, post, author, post.Body, now)
	return post, nil
}

func (s *Service) EditPost(ctx context.Context, orgID id.OrgID, actor id.EmployeeID, postID id.PostID, body string) (*Post, error) {
	now := requestcontext.Now(ctx)
	post, err := s.store.ExecutePost(ctx, orgID, postID,
		func(p *Post) error { return p.CanEdit(actor) },
		func(p *Post) error { return p.ApplyEdit(body, now) },
	)
	if err != nil {
		return nil, wrapFeedErr(err, "post")
	}
	s.cache.Invalidate(ctx, orgID)
	return post, nil
}

func (s *Service) DeletePost(ctx context.Context, orgID id.OrgID, actor id.EmployeeID, postID id.PostID) error {
	now := requestcontext.Now(ctx)
	_, err := s.store.ExecutePost(ctx, orgID, postID,
		func(p *Post) error { return p.CanDelete(actor) },
		func(p *Post) error { p.ApplyDelete(now); return nil },
	)
	if err != nil {
		return wrapFeedErr(err, "post")
	}
	s.cache.Invalidate(ctx, orgID)
	return nil
}

func (s *Service) GetPost(ctx context.Context, orgID id.OrgID, postID id.PostID) (*PostDetails, error) {
	post, err := s.visiblePost(ctx, orgID, postID)
	if err != nil {
		return nil, err
	}
	details, err := s.assemble(ctx, orgID, []*Post{post})
	if err != nil {
		return nil, err
	}
	return details[0], nil
}

func (s *Service) AddComment(ctx context.Context, orgID id.OrgID, author id.EmployeeID, postID id.PostID, body string) (*Comment, error) {
	if _, err := s.directory.RequireActiveEmployee(ctx, orgID, author); err != nil {
		return nil, err
	}
	post, err := s.visiblePost(ctx, orgID, postID)
	if err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)

	comment, err := NewComment(id.CommentID(uuid.New()), post, author, body, now)
	if err != nil {
		return nil, err
	}
	if err := s.store.CreateComment(ctx, comment); err != nil {
		return nil, wrapFeedErr(err, "comment")
	}
	if s.metrics != nil {
		s.metrics.CommentsAdded.Inc()
	}

	base := events.Base{OrgID: orgID, Actor: author, At: now}
	s.publisher.Publish(ctx, events.CommentAdded{
		Base: base, PostID: post.ID, CommentID: comment.ID, PostAuthor: post.Author,
	})
	s.notifyMentions(ctx, post, author, comment.Body, now)
	return comment, nil
}

func (s *Service) ListComments(ctx context.Context, orgID id.OrgID, postID id.PostID) ([]*Comment, error) {
	if _, err := s.visiblePost(ctx, orgID, postID); err != nil {
		return nil, err
	}
	comments, err := s.store.ListComments(ctx, orgID, postID)
	if err != nil {
		return nil, wrapFeedErr(err, "comment")
	}
	return comments, nil
}

// ListFeed returns one newest-first page. The first page (empty cursor,
// default size) is served from the cache when possible.
func (s *Service) ListFeed(ctx context.Context, orgID id.OrgID, cursorToken string, limit int) (*FeedPage, error) {
	cursor, err := DecodeCursor(cursorToken)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 100 {
		limit = s.pageSize
	}

	cacheable := cursor.IsZero() && limit == s.pageSize
	if cacheable {
		if page, ok := s.cache.Get(ctx, orgID); ok {
			return page, nil
		}
	}

	posts, err := s.store.ListPosts(ctx, orgID, cursor, limit+1)
	if err != nil {
		return nil, wrapFeedErr(err, "post")
	}

	page := &FeedPage{}
	if len(posts) > limit {
		last := posts[limit-1]
		page.NextCursor = Cursor{CreatedAt: last.CreatedAt, PostID: last.ID}.Encode()
		posts = posts[:limit]
	}
	page.Items, err = s.assemble(ctx, orgID, posts)
	if err != nil {
		return nil, err
	}

	if cacheable {
		s.cache.Set(ctx, orgID, page)
	}
	return page, nil
}

// SetReaction enforces the one-reaction-per-employee rule: a second reaction
// replaces the first, and re-setting the same kind is a no-op.
func (s *Service) SetReaction(ctx context.Context, orgID id.OrgID, employee id.EmployeeID, postID id.PostID, kind ReactionKind) error {
	if !kind.Valid() {
		return dErrors.Newf(dErrors.CodeValidation, "unknown reaction kind %q", kind)
	}
	if _, err := s.directory.RequireActiveEmployee(ctx, orgID, employee); err != nil {
		return err
	}
	post, err := s.visiblePost(ctx, orgID, postID)
	if err != nil {
		return err
	}
	now := requestcontext.Now(ctx)

	previous, err := s.store.SetReaction(ctx, &Reaction{
		PostID: post.ID, OrgID: orgID, Employee: employee, Kind: kind, SetAt: now,
	})
	if err != nil {
		return wrapFeedErr(err, "reaction")
	}
	if previous == kind {
		return nil
	}
	if s.metrics != nil {
		s.metrics.ReactionsSet.Inc()
	}
	s.publisher.Publish(ctx, events.ReactionSet{
		Base:     events.Base{OrgID: orgID, Actor: employee, At: now},
		PostID:   post.ID,
		Reaction: string(kind),
		Replaced: previous != "",
	})
	return nil
}

func (s *Service) ClearReaction(ctx context.Context, orgID id.OrgID, employee id.EmployeeID, postID id.PostID) error {
	if _, err := s.visiblePost(ctx, orgID, postID); err != nil {
		return err
	}
	if err := s.store.ClearReaction(ctx, orgID, postID, employee); err != nil {
		return wrapFeedErr(err, "reaction")
	}
	return nil
}

// Vote casts or replaces the employee's ballot. Votes strictly after the
// poll's deadline are rejected.
func (s *Service) Vote(ctx context.Context, orgID id.OrgID, employee id.EmployeeID, postID id.PostID, choices []int) error {
	if _, err := s.directory.RequireActiveEmployee(ctx, orgID, employee); err != nil {
		return err
	}
	post, err := s.visiblePost(ctx, orgID, postID)
	if err != nil {
		return err
	}
	if post.Poll == nil {
		return dErrors.New(dErrors.CodeBadRequest, "post has no poll")
	}
	now := requestcontext.Now(ctx)
	if !post.Poll.AcceptsVotes(now) {
		return dErrors.New(dErrors.CodeConflict, "poll is closed")
	}
	if err := post.Poll.ValidateChoices(choices); err != nil {
		return err
	}

	err = s.store.SaveBallot(ctx, orgID, postID, &Ballot{Employee: employee, Choices: choices, CastAt: now})
	if err != nil {
		return wrapFeedErr(err, "ballot")
	}
	if s.metrics != nil {
		s.metrics.PollVotesCast.Inc()
	}
	return nil
}

// PollResults is readable whether the poll is open or closed.
func (s *Service) PollResults(ctx context.Context, orgID id.OrgID, postID id.PostID) (*PollResults, error) {
	post, err := s.visiblePost(ctx, orgID, postID)
	if err != nil {
		return nil, err
	}
	if post.Poll == nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "post has no poll")
	}
	ballots, err := s.store.ListBallots(ctx, orgID, postID)
	if err != nil {
		return nil, wrapFeedErr(err, "ballot")
	}
	return post.Poll.Tally(ballots), nil
}

// CloseDuePolls marks expired polls closed and publishes PollClosed for each.
// It runs from a ticker; failures on one poll do not stop the sweep.
func (s *Service) CloseDuePolls(ctx context.Context, limit int) (int, error) {
	now := requestcontext.Now(ctx)
	due, err := s.store.DuePolls(ctx, now, limit)
	if err != nil {
		return 0, wrapFeedErr(err, "poll")
	}

	closed := 0
	for _, post := range due {
		_, err := s.store.ExecutePost(ctx, post.OrgID, post.ID,
			func(p *Post) error {
				if p.Poll == nil || p.Poll.Closed || !p.Poll.Expired(now) {
					return sentinel.ErrInvalidState
				}
				return nil
			},
			func(p *Post) error { p.Poll.Closed = true; p.UpdatedAt = now; return nil },
		)
		if errors.Is(err, sentinel.ErrInvalidState) {
			continue
		}
		if err != nil {
			s.logger.Error("close poll", "post_id", post.ID, "error", err)
			continue
		}
		closed++
		if s.metrics != nil {
			s.metrics.PollsClosed.Inc()
		}
		s.publisher.Publish(ctx, events.PollClosed{
			Base:   events.Base{OrgID: post.OrgID, Actor: post.Author, At: now},
			PostID: post.ID,
		})
	}
	return closed, nil
}

// visiblePost resolves through the acting org and hides soft-deleted posts.
// A post belonging to another org surfaces as not_found, never forbidden.
func (s *Service) visiblePost(ctx context.Context, orgID id.OrgID, postID id.PostID) (*Post, error) {
	post, err := s.store.FindPost(ctx, orgID, postID)
	if err != nil {
		return nil, wrapFeedErr(err, "post")
	}
	if post.Deleted {
		return nil, dErrors.New(dErrors.CodeNotFound, "post not found")
	}
	return post, nil
}

// notifyMentions extracts handles from the body, resolves them against the
// directory, drops the author, and publishes at most one MembersMentioned.
func (s *Service) notifyMentions(ctx context.Context, post *Post, author id.EmployeeID, body string, now time.Time) {
	handles := ExtractMentions(body)
	if len(handles) == 0 {
		return
	}
	mentioned, err := s.directory.ResolveHandles(ctx, post.OrgID, handles)
	if err != nil {
		s.logger.Warn("resolve mentions", "post_id", post.ID, "error", err)
		return
	}
	mentioned = lo.Filter(mentioned, func(e id.EmployeeID, _ int) bool { return e != author })
	if len(mentioned) == 0 {
		return
	}
	s.publisher.Publish(ctx, events.MembersMentioned{
		Base:      events.Base{OrgID: post.OrgID, Actor: author, At: now},
		PostID:    post.ID,
		Mentioned: mentioned,
	})
}

func (s *Service) assemble(ctx context.Context, orgID id.OrgID, posts []*Post) ([]*PostDetails, error) {
	if len(posts) == 0 {
		return []*PostDetails{}, nil
	}
	ids := lo.Map(posts, func(p *Post, _ int) id.PostID { return p.ID })

	comments, err := s.store.CountComments(ctx, orgID, ids)
	if err != nil {
		return nil, wrapFeedErr(err, "comment")
	}
	reactions, err := s.store.ReactionCounts(ctx, orgID, ids)
	if err != nil {
		return nil, wrapFeedErr(err, "reaction")
	}

	return lo.Map(posts, func(p *Post, _ int) *PostDetails {
		return &PostDetails{Post: p, CommentCount: comments[p.ID], Reactions: reactions[p.ID]}
	}), nil
}

func wrapFeedErr(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, what+" not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.New(dErrors.CodeConflict, what+" conflicts with existing state")
	default:
		var de *dErrors.Error
		if errors.As(err, &de) {
			return err
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "feed store failure")
	}
}
