// Package feed implements the social feed: posts with optional polls,
// comments, reactions and mention extraction. All reads and writes resolve
// through the post's org, so an id leaked across orgs behaves as missing.
package feed

import (
	"strings"
	"time"

	"github.com/samber/lo"

	id "crewpulse/pkg/domain"
	dErrors "crewpulse/pkg/domain-errors"
)

const (
	maxPostBody    = 4000
	maxCommentBody = 2000
	maxPollOptions = 6
	minPollOptions = 2
)

type ReactionKind string

const (
	ReactionLike       ReactionKind = "like"
	ReactionCelebrate  ReactionKind = "celebrate"
	ReactionSupport    ReactionKind = "support"
	ReactionLove       ReactionKind = "love"
	ReactionInsightful ReactionKind = "insightful"
	ReactionLaugh      ReactionKind = "laugh"
)

func (k ReactionKind) Valid() bool {
	switch k {
	case ReactionLike, ReactionCelebrate, ReactionSupport, ReactionLove, ReactionInsightful, ReactionLaugh:
		return true
	}
	return false
}

// Post is the feed aggregate. Deleted posts stay stored for audit but are
// invisible to every read path.
type Post struct {
	ID        id.PostID     `json:"id"`
	OrgID     id.OrgID      `json:"org_id"`
	Author    id.EmployeeID `json:"author_id"`
	Body      string        `json:"body"`
	Poll      *Poll         `json:"poll,omitempty"`
	Edited    bool          `json:"edited"`
	Deleted   bool          `json:"-"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

func NewPost(postID id.PostID, orgID id.OrgID, author id.EmployeeID, body string, poll *Poll, now time.Time) (*Post, error) {
	body = strings.TrimSpace(body)
	if err := validateBody(body, maxPostBody, "post"); err != nil {
		return nil, err
	}
	return &Post{
		ID:        postID,
		OrgID:     orgID,
		Author:    author,
		Body:      body,
		Poll:      poll,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (p *Post) CanEdit(actor id.EmployeeID) error {
	if p.Deleted {
		return dErrors.New(dErrors.CodeNotFound, "post not found")
	}
	if p.Author != actor {
		return dErrors.New(dErrors.CodeForbidden, "only the author can edit a post")
	}
	return nil
}

func (p *Post) ApplyEdit(body string, now time.Time) error {
	body = strings.TrimSpace(body)
	if err := validateBody(body, maxPostBody, "post"); err != nil {
		return err
	}
	p.Body = body
	p.Edited = true
	p.UpdatedAt = now
	return nil
}

func (p *Post) CanDelete(actor id.EmployeeID) error {
	if p.Deleted {
		return dErrors.New(dErrors.CodeNotFound, "post not found")
	}
	if p.Author != actor {
		return dErrors.New(dErrors.CodeForbidden, "only the author can delete a post")
	}
	return nil
}

func (p *Post) ApplyDelete(now time.Time) {
	p.Deleted = true
	p.UpdatedAt = now
}

// Poll is embedded in its post. ClosesAt is the voting deadline; a vote
// arriving strictly after it is rejected, a vote at the instant itself still
// counts. Closed is flipped by the sweep, not by the deadline passing.
type Poll struct {
	Question    string    `json:"question"`
	Options     []string  `json:"options"`
	MultiChoice bool      `json:"multi_choice"`
	ClosesAt    time.Time `json:"closes_at"`
	Closed      bool      `json:"closed"`
}

func NewPoll(question string, options []string, multiChoice bool, closesAt, now time.Time) (*Poll, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "poll question cannot be empty")
	}
	if len(question) > 500 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "poll question must be 500 characters or less")
	}

	trimmed := lo.FilterMap(options, func(opt string, _ int) (string, bool) {
		opt = strings.TrimSpace(opt)
		return opt, opt != ""
	})
	if len(trimmed) < minPollOptions || len(trimmed) > maxPollOptions {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "poll needs between 2 and 6 options")
	}
	if len(lo.Uniq(trimmed)) != len(trimmed) {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "poll options must be distinct")
	}
	if !closesAt.After(now) {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "poll must close in the future")
	}
	return &Poll{
		Question:    question,
		Options:     trimmed,
		MultiChoice: multiChoice,
		ClosesAt:    closesAt,
	}, nil
}

// AcceptsVotes reports whether a ballot cast at now is still valid.
func (p *Poll) AcceptsVotes(now time.Time) bool {
	return !p.Closed && !now.After(p.ClosesAt)
}

// Expired reports whether the deadline has passed, independent of Closed.
func (p *Poll) Expired(now time.Time) bool {
	return now.After(p.ClosesAt)
}

// ValidateChoices checks ballot option indexes against this poll.
func (p *Poll) ValidateChoices(choices []int) error {
	if len(choices) == 0 {
		return dErrors.New(dErrors.CodeValidation, "ballot needs at least one option")
	}
	if !p.MultiChoice && len(choices) > 1 {
		return dErrors.New(dErrors.CodeValidation, "poll accepts a single choice")
	}
	if len(lo.Uniq(choices)) != len(choices) {
		return dErrors.New(dErrors.CodeValidation, "ballot options must be distinct")
	}
	for _, c := range choices {
		if c < 0 || c >= len(p.Options) {
			return dErrors.Newf(dErrors.CodeValidation, "option index %d out of range", c)
		}
	}
	return nil
}

// Ballot is one employee's current vote on a poll. Re-voting before the
// deadline replaces it wholesale.
type Ballot struct {
	Employee id.EmployeeID `json:"employee_id"`
	Choices  []int         `json:"choices"`
	CastAt   time.Time     `json:"cast_at"`
}

// PollResults is visible at any time, open or closed.
type PollResults struct {
	Question     string        `json:"question"`
	Closed       bool          `json:"closed"`
	ClosesAt     time.Time     `json:"closes_at"`
	Options      []OptionCount `json:"options"`
	TotalBallots int           `json:"total_ballots"`
}

type OptionCount struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
	Votes int    `json:"votes"`
}

// Tally aggregates ballots against this poll's options.
func (p *Poll) Tally(ballots []*Ballot) *PollResults {
	res := &PollResults{
		Question:     p.Question,
		Closed:       p.Closed,
		ClosesAt:     p.ClosesAt,
		Options:      make([]OptionCount, len(p.Options)),
		TotalBallots: len(ballots),
	}
	for i, text := range p.Options {
		res.Options[i] = OptionCount{Index: i, Text: text}
	}
	for _, b := range ballots {
		for _, c := range b.Choices {
			if c >= 0 && c < len(res.Options) {
				res.Options[c].Votes++
			}
		}
	}
	return res
}

type Comment struct {
	ID        id.CommentID  `json:"id"`
	PostID    id.PostID     `json:"post_id"`
	OrgID     id.OrgID      `json:"org_id"`
	Author    id.EmployeeID `json:"author_id"`
	Body      string        `json:"body"`
	CreatedAt time.Time     `json:"created_at"`
}

func NewComment(commentID id.CommentID, post *Post, author id.EmployeeID, body string, now time.Time) (*Comment, error) {
	body = strings.TrimSpace(body)
	if err := validateBody(body, maxCommentBody, "comment"); err != nil {
		return nil, err
	}
	return &Comment{
		ID:        commentID,
		PostID:    post.ID,
		OrgID:     post.OrgID,
		Author:    author,
		Body:      body,
		CreatedAt: now,
	}, nil
}

// Reaction is the single per-employee reaction on a post. Setting a new kind
// replaces the old one.
type Reaction struct {
	PostID   id.PostID     `json:"post_id"`
	OrgID    id.OrgID      `json:"org_id"`
	Employee id.EmployeeID `json:"employee_id"`
	Kind     ReactionKind  `json:"kind"`
	SetAt    time.Time     `json:"set_at"`
}

// PostDetails is a feed page entry: the post plus cheap aggregates.
type PostDetails struct {
	*Post
	CommentCount int                  `json:"comment_count"`
	Reactions    map[ReactionKind]int `json:"reactions,omitempty"`
}

// FeedPage is one org-scoped page, newest first. NextCursor is empty on the
// last page.
type FeedPage struct {
	Items      []*PostDetails `json:"items"`
	NextCursor string         `json:"next_cursor,omitempty"`
}

func validateBody(body string, max int, what string) error {
	if body == "" {
		return dErrors.Newf(dErrors.CodeInvariantViolation, "%s body cannot be empty", what)
	}
	if len(body) > max {
		return dErrors.Newf(dErrors.CodeInvariantViolation, "%s body must be %d characters or less", what, max)
	}
	return nil
}
