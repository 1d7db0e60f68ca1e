package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"

	id "crewpulse/pkg/domain"
	"crewpulse/pkg/platform/sentinel"
)

// Badger is the embedded document-store backend. Every record is a JSON
// document under a composite key that starts with the org, so org scoping is
// a key prefix rather than a query predicate.
//
//	post:<org>:<post>
//	comment:<org>:<post>:<comment>
//	reaction:<org>:<post>:<employee>
//	ballot:<org>:<post>:<employee>
type Badger struct {
	db *badger.DB
}

func NewBadger(db *badger.DB) *Badger {
	return &Badger{db: db}
}

// postDoc restores the deleted flag that the API representation hides.
type postDoc struct {
	*Post
	DeletedFlag bool `json:"deleted"`
}

func postKey(orgID id.OrgID, postID id.PostID) []byte {
	return []byte("post:" + orgID.String() + ":" + postID.String())
}

func commentKey(c *Comment) []byte {
	return []byte("comment:" + c.OrgID.String() + ":" + c.PostID.String() + ":" + c.ID.String())
}

func commentPrefix(orgID id.OrgID, postID id.PostID) []byte {
	return []byte("comment:" + orgID.String() + ":" + postID.String() + ":")
}

func reactionKey(orgID id.OrgID, postID id.PostID, employee id.EmployeeID) []byte {
	return []byte("reaction:" + orgID.String() + ":" + postID.String() + ":" + employee.String())
}

func reactionPrefix(orgID id.OrgID, postID id.PostID) []byte {
	return []byte("reaction:" + orgID.String() + ":" + postID.String() + ":")
}

func ballotKey(orgID id.OrgID, postID id.PostID, employee id.EmployeeID) []byte {
	return []byte("ballot:" + orgID.String() + ":" + postID.String() + ":" + employee.String())
}

func ballotPrefix(orgID id.OrgID, postID id.PostID) []byte {
	return []byte("ballot:" + orgID.String() + ":" + postID.String() + ":")
}

func (s *Badger) CreatePost(_ context.Context, p *Post) error {
	return s.db.Update(func(txn *badger.Txn) error {
		key := postKey(p.OrgID, p.ID)
		if _, err := txn.Get(key); err == nil {
			return sentinel.ErrConflict
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("check post: %w", err)
		}
		return putJSON(txn, key, postDoc{Post: p, DeletedFlag: p.Deleted})
	})
}

func (s *Badger) FindPost(_ context.Context, orgID id.OrgID, postID id.PostID) (*Post, error) {
	var post *Post
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		post, err = getPost(txn, orgID, postID)
		return err
	})
	return post, err
}

func (s *Badger) ExecutePost(_ context.Context, orgID id.OrgID, postID id.PostID,
	validate func(*Post) error, mutate func(*Post) error) (*Post, error) {

	var post *Post
	err := s.db.Update(func(txn *badger.Txn) error {
		var err error
		post, err = getPost(txn, orgID, postID)
		if err != nil {
			return err
		}
		if err := validate(post); err != nil {
			return err
		}
		if err := mutate(post); err != nil {
			return err
		}
		return putJSON(txn, postKey(orgID, postID), postDoc{Post: post, DeletedFlag: post.Deleted})
	})
	if err != nil {
		return nil, err
	}
	return post, nil
}

func (s *Badger) ListPosts(_ context.Context, orgID id.OrgID, before Cursor, limit int) ([]*Post, error) {
	var matches []*Post
	err := s.db.View(func(txn *badger.Txn) error {
		return scanPrefix(txn, []byte("post:"+orgID.String()+":"), func(raw []byte) error {
			post, err := decodePost(raw)
			if err != nil {
				return err
			}
			if post.Deleted || !before.Before(post) {
				return nil
			}
			matches = append(matches, post)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

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

func (s *Badger) DuePolls(_ context.Context, now time.Time, limit int) ([]*Post, error) {
	var due []*Post
	err := s.db.View(func(txn *badger.Txn) error {
		return scanPrefix(txn, []byte("post:"), func(raw []byte) error {
			if len(due) == limit {
				return nil
			}
			post, err := decodePost(raw)
			if err != nil {
				return err
			}
			if post.Deleted || post.Poll == nil || post.Poll.Closed || !post.Poll.Expired(now) {
				return nil
			}
			due = append(due, post)
			return nil
		})
	})
	return due, err
}

func (s *Badger) CreateComment(_ context.Context, c *Comment) error {
	return s.db.Update(func(txn *badger.Txn) error {
		if err := requirePost(txn, c.OrgID, c.PostID); err != nil {
			return err
		}
		return putJSON(txn, commentKey(c), c)
	})
}

func (s *Badger) ListComments(_ context.Context, orgID id.OrgID, postID id.PostID) ([]*Comment, error) {
	var out []*Comment
	err := s.db.View(func(txn *badger.Txn) error {
		if err := requirePost(txn, orgID, postID); err != nil {
			return err
		}
		return scanPrefix(txn, commentPrefix(orgID, postID), func(raw []byte) error {
			var c Comment
			if err := json.Unmarshal(raw, &c); err != nil {
				return fmt.Errorf("decode comment: %w", err)
			}
			out = append(out, &c)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Badger) CountComments(_ context.Context, orgID id.OrgID, postIDs []id.PostID) (map[id.PostID]int, error) {
	counts := make(map[id.PostID]int, len(postIDs))
	err := s.db.View(func(txn *badger.Txn) error {
		for _, postID := range postIDs {
			n, err := countPrefix(txn, commentPrefix(orgID, postID))
			if err != nil {
				return err
			}
			if n > 0 {
				counts[postID] = n
			}
		}
		return nil
	})
	return counts, err
}

func (s *Badger) SetReaction(_ context.Context, rx *Reaction) (ReactionKind, error) {
	var previous ReactionKind
	err := s.db.Update(func(txn *badger.Txn) error {
		if err := requirePost(txn, rx.OrgID, rx.PostID); err != nil {
			return err
		}
		key := reactionKey(rx.OrgID, rx.PostID, rx.Employee)
		item, err := txn.Get(key)
		if err == nil {
			var existing Reaction
			if err := item.Value(func(raw []byte) error { return json.Unmarshal(raw, &existing) }); err != nil {
				return fmt.Errorf("decode reaction: %w", err)
			}
			previous = existing.Kind
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("read reaction: %w", err)
		}
		return putJSON(txn, key, rx)
	})
	if err != nil {
		return "", err
	}
	return previous, nil
}

func (s *Badger) ClearReaction(_ context.Context, orgID id.OrgID, postID id.PostID, employee id.EmployeeID) error {
	return s.db.Update(func(txn *badger.Txn) error {
		if err := requirePost(txn, orgID, postID); err != nil {
			return err
		}
		return txn.Delete(reactionKey(orgID, postID, employee))
	})
}

func (s *Badger) ReactionCounts(_ context.Context, orgID id.OrgID, postIDs []id.PostID) (map[id.PostID]map[ReactionKind]int, error) {
	counts := make(map[id.PostID]map[ReactionKind]int)
	err := s.db.View(func(txn *badger.Txn) error {
		for _, postID := range postIDs {
			perKind := make(map[ReactionKind]int)
			err := scanPrefix(txn, reactionPrefix(orgID, postID), func(raw []byte) error {
				var rx Reaction
				if err := json.Unmarshal(raw, &rx); err != nil {
					return fmt.Errorf("decode reaction: %w", err)
				}
				perKind[rx.Kind]++
				return nil
			})
			if err != nil {
				return err
			}
			if len(perKind) > 0 {
				counts[postID] = perKind
			}
		}
		return nil
	})
	return counts, err
}

func (s *Badger) SaveBallot(_ context.Context, orgID id.OrgID, postID id.PostID, b *Ballot) error {
	return s.db.Update(func(txn *badger.Txn) error {
		if err := requirePost(txn, orgID, postID); err != nil {
			return err
		}
		return putJSON(txn, ballotKey(orgID, postID, b.Employee), b)
	})
}

func (s *Badger) ListBallots(_ context.Context, orgID id.OrgID, postID id.PostID) ([]*Ballot, error) {
	var out []*Ballot
	err := s.db.View(func(txn *badger.Txn) error {
		if err := requirePost(txn, orgID, postID); err != nil {
			return err
		}
		return scanPrefix(txn, ballotPrefix(orgID, postID), func(raw []byte) error {
			var b Ballot
			if err := json.Unmarshal(raw, &b); err != nil {
				return fmt.Errorf("decode ballot: %w", err)
			}
			out = append(out, &b)
			return nil
		})
	})
	return out, err
}

func getPost(txn *badger.Txn, orgID id.OrgID, postID id.PostID) (*Post, error) {
	item, err := txn.Get(postKey(orgID, postID))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read post: %w", err)
	}
	var post *Post
	err = item.Value(func(raw []byte) error {
		post, err = decodePost(raw)
		return err
	})
	return post, err
}

func decodePost(raw []byte) (*Post, error) {
	doc := postDoc{Post: &Post{}}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode post: %w", err)
	}
	doc.Post.Deleted = doc.DeletedFlag
	return doc.Post, nil
}

func requirePost(txn *badger.Txn, orgID id.OrgID, postID id.PostID) error {
	_, err := txn.Get(postKey(orgID, postID))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return sentinel.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("check post: %w", err)
	}
	return nil
}

func putJSON(txn *badger.Txn, key []byte, doc any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	return txn.Set(key, raw)
}

func scanPrefix(txn *badger.Txn, prefix []byte, fn func(raw []byte) error) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	it := txn.NewIterator(opts)
	defer it.Close()

	for it.Rewind(); it.Valid(); it.Next() {
		if err := it.Item().Value(func(raw []byte) error { return fn(raw) }); err != nil {
			return err
		}
	}
	return nil
}

func countPrefix(txn *badger.Txn, prefix []byte) (int, error) {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	opts.PrefetchValues = false
	it := txn.NewIterator(opts)
	defer it.Close()

	n := 0
	for it.Rewind(); it.Valid(); it.Next() {
		n++
	}
	return n, nil
}
