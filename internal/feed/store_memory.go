package feed

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/samber/lo"

	id "crewpulse/pkg/domain"
	"crewpulse/pkg/platform/sentinel"
)

// InMemory keeps the feed in mutex-guarded maps, keyed by org first so
// cross-org ids never resolve. Secondary records (comments, reactions,
// ballots) hang off the post id but every access re-checks the post's org.
type InMemory struct {
	mu        sync.RWMutex
	posts     map[id.OrgID]map[id.PostID]*Post
	comments  map[id.PostID][]*Comment
	reactions map[id.PostID]map[id.EmployeeID]*Reaction
	ballots   map[id.PostID]map[id.EmployeeID]*Ballot
}

func NewInMemory() *InMemory {
	return &InMemory{
		posts:     make(map[id.OrgID]map[id.PostID]*Post),
		comments:  make(map[id.PostID][]*Comment),
		reactions: make(map[id.PostID]map[id.EmployeeID]*Reaction),
		ballots:   make(map[id.PostID]map[id.EmployeeID]*Ballot),
	}
}

func (s *InMemory) CreatePost(_ context.Context, p *Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	byID, ok := s.posts[p.OrgID]
	if !ok {
		byID = make(map[id.PostID]*Post)
		s.posts[p.OrgID] = byID
	}
	if _, exists := byID[p.ID]; exists {
		return sentinel.ErrConflict
	}
	byID[p.ID] = clonePost(p)
	return nil
}

func (s *InMemory) FindPost(_ context.Context, orgID id.OrgID, postID id.PostID) (*Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	post, ok := s.posts[orgID][postID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return clonePost(post), nil
}

func (s *InMemory) ExecutePost(_ context.Context, orgID id.OrgID, postID id.PostID,
	validate func(*Post) error, mutate func(*Post) error) (*Post, error) {

	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.posts[orgID][postID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	work := clonePost(stored)
	if err := validate(work); err != nil {
		return nil, err
	}
	if err := mutate(work); err != nil {
		return nil, err
	}
	s.posts[orgID][postID] = work
	return clonePost(work), nil
}

func (s *InMemory) ListPosts(_ context.Context, orgID id.OrgID, before Cursor, limit int) ([]*Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matches := lo.FilterMap(lo.Values(s.posts[orgID]), func(p *Post, _ int) (*Post, bool) {
		if p.Deleted || !before.Before(p) {
			return nil, false
		}
		return clonePost(p), true
	})
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].CreatedAt.Equal(matches[j].CreatedAt) {
			return matches[i].ID.String() > matches[j].ID.String()
		}
		return matches[i].CreatedAt.After(matches[j].CreatedAt)
	})
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

func (s *InMemory) DuePolls(_ context.Context, now time.Time, limit int) ([]*Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var due []*Post
	for _, byID := range s.posts {
		for _, p := range byID {
			if p.Deleted || p.Poll == nil || p.Poll.Closed || !p.Poll.Expired(now) {
				continue
			}
			due = append(due, clonePost(p))
			if len(due) == limit {
				return due, nil
			}
		}
	}
	return due, nil
}

func (s *InMemory) CreateComment(_ context.Context, c *Comment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.posts[c.OrgID][c.PostID]; !ok {
		return sentinel.ErrNotFound
	}
	clone := *c
	s.comments[c.PostID] = append(s.comments[c.PostID], &clone)
	return nil
}

func (s *InMemory) ListComments(_ context.Context, orgID id.OrgID, postID id.PostID) ([]*Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.posts[orgID][postID]; !ok {
		return nil, sentinel.ErrNotFound
	}
	return lo.Map(s.comments[postID], func(c *Comment, _ int) *Comment {
		clone := *c
		return &clone
	}), nil
}

func (s *InMemory) CountComments(_ context.Context, orgID id.OrgID, postIDs []id.PostID) (map[id.PostID]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[id.PostID]int, len(postIDs))
	for _, postID := range postIDs {
		if _, ok := s.posts[orgID][postID]; ok {
			counts[postID] = len(s.comments[postID])
		}
	}
	return counts, nil
}

func (s *InMemory) SetReaction(_ context.Context, rx *Reaction) (ReactionKind, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.posts[rx.OrgID][rx.PostID]; !ok {
		return "", sentinel.ErrNotFound
	}
	byEmployee, ok := s.reactions[rx.PostID]
	if !ok {
		byEmployee = make(map[id.EmployeeID]*Reaction)
		s.reactions[rx.PostID] = byEmployee
	}

	var previous ReactionKind
	if existing, ok := byEmployee[rx.Employee]; ok {
		previous = existing.Kind
	}
	clone := *rx
	byEmployee[rx.Employee] = &clone
	return previous, nil
}

func (s *InMemory) ClearReaction(_ context.Context, orgID id.OrgID, postID id.PostID, employee id.EmployeeID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.posts[orgID][postID]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.reactions[postID], employee)
	return nil
}

func (s *InMemory) ReactionCounts(_ context.Context, orgID id.OrgID, postIDs []id.PostID) (map[id.PostID]map[ReactionKind]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[id.PostID]map[ReactionKind]int, len(postIDs))
	for _, postID := range postIDs {
		if _, ok := s.posts[orgID][postID]; !ok {
			continue
		}
		byEmployee := s.reactions[postID]
		if len(byEmployee) == 0 {
			continue
		}
		perKind := make(map[ReactionKind]int)
		for _, rx := range byEmployee {
			perKind[rx.Kind]++
		}
		counts[postID] = perKind
	}
	return counts, nil
}

func (s *InMemory) SaveBallot(_ context.Context, orgID id.OrgID, postID id.PostID, b *Ballot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.posts[orgID][postID]; !ok {
		return sentinel.ErrNotFound
	}
	byEmployee, ok := s.ballots[postID]
	if !ok {
		byEmployee = make(map[id.EmployeeID]*Ballot)
		s.ballots[postID] = byEmployee
	}
	clone := *b
	clone.Choices = append([]int(nil), b.Choices...)
	byEmployee[b.Employee] = &clone
	return nil
}

func (s *InMemory) ListBallots(_ context.Context, orgID id.OrgID, postID id.PostID) ([]*Ballot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.posts[orgID][postID]; !ok {
		return nil, sentinel.ErrNotFound
	}
	return lo.Map(lo.Values(s.ballots[postID]), func(b *Ballot, _ int) *Ballot {
		clone := *b
		clone.Choices = append([]int(nil), b.Choices...)
		return &clone
	}), nil
}

func clonePost(p *Post) *Post {
	clone := *p
	if p.Poll != nil {
		poll := *p.Poll
		poll.Options = append([]string(nil), p.Poll.Options...)
		clone.Poll = &poll
	}
	return &clone
}
