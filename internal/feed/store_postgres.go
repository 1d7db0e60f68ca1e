package feed

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/samber/lo"

	id "crewpulse/pkg/domain"
	"crewpulse/pkg/platform/sentinel"
)

const uniqueViolation = "23505"

// Postgres persists the feed. The poll lives as a JSONB column on the post
// row so post and poll state always change atomically; reactions and ballots
// get their own tables with a (post, employee) primary key that makes
// replacement a plain upsert.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (s *Postgres) CreatePost(ctx context.Context, p *Post) error {
	pollJSON, err := marshalPoll(p.Poll)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO posts (id, org_id, author_id, body, poll, edited, deleted, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, uuid.UUID(p.ID), uuid.UUID(p.OrgID), uuid.UUID(p.Author), p.Body,
		pollJSON, p.Edited, p.Deleted, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert post: %w", err)
	}
	return nil
}

func (s *Postgres) FindPost(ctx context.Context, orgID id.OrgID, postID id.PostID) (*Post, error) {
	row := s.db.QueryRowContext(ctx, postSelect+` WHERE id = $1 AND org_id = $2`,
		uuid.UUID(postID), uuid.UUID(orgID))
	return scanPost(row)
}

// ExecutePost loads the row FOR UPDATE, runs validate and mutate, and writes
// the result back inside one transaction.
func (s *Postgres) ExecutePost(ctx context.Context, orgID id.OrgID, postID id.PostID,
	validate func(*Post) error, mutate func(*Post) error) (*Post, error) {

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, postSelect+` WHERE id = $1 AND org_id = $2 FOR UPDATE`,
		uuid.UUID(postID), uuid.UUID(orgID))
	post, err := scanPost(row)
	if err != nil {
		return nil, err
	}

	if err := validate(post); err != nil {
		return nil, err
	}
	if err := mutate(post); err != nil {
		return nil, err
	}

	pollJSON, err := marshalPoll(post.Poll)
	if err != nil {
		return nil, err
	}
	_, err = tx.ExecContext(ctx, `
		UPDATE posts SET body = $2, poll = $3, edited = $4, deleted = $5, updated_at = $6
		WHERE id = $1
	`, uuid.UUID(post.ID), post.Body, pollJSON, post.Edited, post.Deleted, post.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("update post: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit post update: %w", err)
	}
	return post, nil
}

func (s *Postgres) ListPosts(ctx context.Context, orgID id.OrgID, before Cursor, limit int) ([]*Post, error) {
	query := postSelect + ` WHERE org_id = $1 AND NOT deleted`
	args := []any{uuid.UUID(orgID)}

	if !before.IsZero() {
		args = append(args, before.CreatedAt, uuid.UUID(before.PostID).String())
		query += fmt.Sprintf(" AND (created_at < $%d OR (created_at = $%d AND id::text < $%d))",
			len(args)-1, len(args)-1, len(args))
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY created_at DESC, id::text DESC LIMIT $%d", len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query posts: %w", err)
	}
	defer rows.Close()
	return collectPosts(rows)
}

func (s *Postgres) DuePolls(ctx context.Context, now time.Time, limit int) ([]*Post, error) {
	rows, err := s.db.QueryContext(ctx, postSelect+`
		WHERE NOT deleted
		  AND poll IS NOT NULL
		  AND NOT (poll->>'closed')::boolean
		  AND (poll->>'closes_at')::timestamptz < $1
		LIMIT $2
	`, now, limit)
	if err != nil {
		return nil, fmt.Errorf("query due polls: %w", err)
	}
	defer rows.Close()
	return collectPosts(rows)
}

func (s *Postgres) CreateComment(ctx context.Context, c *Comment) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO comments (id, post_id, org_id, author_id, body, created_at)
		SELECT $1, $2, $3, $4, $5, $6
		WHERE EXISTS (SELECT 1 FROM posts WHERE id = $2 AND org_id = $3)
	`, uuid.UUID(c.ID), uuid.UUID(c.PostID), uuid.UUID(c.OrgID), uuid.UUID(c.Author), c.Body, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert comment: %w", err)
	}
	return requireRow(res)
}

func (s *Postgres) ListComments(ctx context.Context, orgID id.OrgID, postID id.PostID) ([]*Comment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, post_id, org_id, author_id, body, created_at
		FROM comments WHERE post_id = $1 AND org_id = $2
		ORDER BY created_at, id::text
	`, uuid.UUID(postID), uuid.UUID(orgID))
	if err != nil {
		return nil, fmt.Errorf("query comments: %w", err)
	}
	defer rows.Close()

	var out []*Comment
	for rows.Next() {
		var (
			c                        Comment
			rawID, rawPost, rawOrg   uuid.UUID
			rawAuthor                uuid.UUID
		)
		if err := rows.Scan(&rawID, &rawPost, &rawOrg, &rawAuthor, &c.Body, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		c.ID = id.CommentID(rawID)
		c.PostID = id.PostID(rawPost)
		c.OrgID = id.OrgID(rawOrg)
		c.Author = id.EmployeeID(rawAuthor)
		out = append(out, &c)
	}
	return out, rows.Err()
}

func (s *Postgres) CountComments(ctx context.Context, orgID id.OrgID, postIDs []id.PostID) (map[id.PostID]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT post_id, count(*) FROM comments
		WHERE org_id = $1 AND post_id = ANY($2)
		GROUP BY post_id
	`, uuid.UUID(orgID), pq.Array(rawPostIDs(postIDs)))
	if err != nil {
		return nil, fmt.Errorf("count comments: %w", err)
	}
	defer rows.Close()

	counts := make(map[id.PostID]int, len(postIDs))
	for rows.Next() {
		var (
			rawPost uuid.UUID
			n       int
		)
		if err := rows.Scan(&rawPost, &n); err != nil {
			return nil, fmt.Errorf("scan comment count: %w", err)
		}
		counts[id.PostID(rawPost)] = n
	}
	return counts, rows.Err()
}

func (s *Postgres) SetReaction(ctx context.Context, rx *Reaction) (ReactionKind, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var exists bool
	err = tx.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM posts WHERE id = $1 AND org_id = $2)`,
		uuid.UUID(rx.PostID), uuid.UUID(rx.OrgID)).Scan(&exists)
	if err != nil {
		return "", fmt.Errorf("check post: %w", err)
	}
	if !exists {
		return "", sentinel.ErrNotFound
	}

	var previous ReactionKind
	err = tx.QueryRowContext(ctx, `
		SELECT kind FROM reactions WHERE post_id = $1 AND employee_id = $2 FOR UPDATE
	`, uuid.UUID(rx.PostID), uuid.UUID(rx.Employee)).Scan(&previous)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("read reaction: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO reactions (post_id, org_id, employee_id, kind, set_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (post_id, employee_id) DO UPDATE SET kind = $4, set_at = $5
	`, uuid.UUID(rx.PostID), uuid.UUID(rx.OrgID), uuid.UUID(rx.Employee), string(rx.Kind), rx.SetAt)
	if err != nil {
		return "", fmt.Errorf("upsert reaction: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit reaction: %w", err)
	}
	return previous, nil
}

func (s *Postgres) ClearReaction(ctx context.Context, orgID id.OrgID, postID id.PostID, employee id.EmployeeID) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM reactions WHERE post_id = $1 AND org_id = $2 AND employee_id = $3
	`, uuid.UUID(postID), uuid.UUID(orgID), uuid.UUID(employee))
	if err != nil {
		return fmt.Errorf("delete reaction: %w", err)
	}
	return nil
}

func (s *Postgres) ReactionCounts(ctx context.Context, orgID id.OrgID, postIDs []id.PostID) (map[id.PostID]map[ReactionKind]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT post_id, kind, count(*) FROM reactions
		WHERE org_id = $1 AND post_id = ANY($2)
		GROUP BY post_id, kind
	`, uuid.UUID(orgID), pq.Array(rawPostIDs(postIDs)))
	if err != nil {
		return nil, fmt.Errorf("count reactions: %w", err)
	}
	defer rows.Close()

	counts := make(map[id.PostID]map[ReactionKind]int)
	for rows.Next() {
		var (
			rawPost uuid.UUID
			kind    string
			n       int
		)
		if err := rows.Scan(&rawPost, &kind, &n); err != nil {
			return nil, fmt.Errorf("scan reaction count: %w", err)
		}
		postID := id.PostID(rawPost)
		if counts[postID] == nil {
			counts[postID] = make(map[ReactionKind]int)
		}
		counts[postID][ReactionKind(kind)] = n
	}
	return counts, rows.Err()
}

func (s *Postgres) SaveBallot(ctx context.Context, orgID id.OrgID, postID id.PostID, b *Ballot) error {
	choices := lo.Map(b.Choices, func(c int, _ int) int64 { return int64(c) })
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO poll_ballots (post_id, org_id, employee_id, choices, cast_at)
		SELECT $1, $2, $3, $4, $5
		WHERE EXISTS (SELECT 1 FROM posts WHERE id = $1 AND org_id = $2)
		ON CONFLICT (post_id, employee_id) DO UPDATE SET choices = $4, cast_at = $5
	`, uuid.UUID(postID), uuid.UUID(orgID), uuid.UUID(b.Employee), pq.Array(choices), b.CastAt)
	if err != nil {
		return fmt.Errorf("upsert ballot: %w", err)
	}
	return requireRow(res)
}

func (s *Postgres) ListBallots(ctx context.Context, orgID id.OrgID, postID id.PostID) ([]*Ballot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT employee_id, choices, cast_at
		FROM poll_ballots WHERE post_id = $1 AND org_id = $2
	`, uuid.UUID(postID), uuid.UUID(orgID))
	if err != nil {
		return nil, fmt.Errorf("query ballots: %w", err)
	}
	defer rows.Close()

	var out []*Ballot
	for rows.Next() {
		var (
			b           Ballot
			rawEmployee uuid.UUID
			choices     pq.Int64Array
		)
		if err := rows.Scan(&rawEmployee, &choices, &b.CastAt); err != nil {
			return nil, fmt.Errorf("scan ballot: %w", err)
		}
		b.Employee = id.EmployeeID(rawEmployee)
		b.Choices = lo.Map(choices, func(c int64, _ int) int { return int(c) })
		out = append(out, &b)
	}
	return out, rows.Err()
}

const postSelect = `
	SELECT id, org_id, author_id, body, poll, edited, deleted, created_at, updated_at
	FROM posts`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPost(row rowScanner) (*Post, error) {
	var (
		p                 Post
		rawID, rawOrg     uuid.UUID
		rawAuthor         uuid.UUID
		pollJSON          []byte
	)
	err := row.Scan(&rawID, &rawOrg, &rawAuthor, &p.Body, &pollJSON,
		&p.Edited, &p.Deleted, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan post: %w", err)
	}
	p.ID = id.PostID(rawID)
	p.OrgID = id.OrgID(rawOrg)
	p.Author = id.EmployeeID(rawAuthor)
	if len(pollJSON) > 0 {
		var poll Poll
		if err := json.Unmarshal(pollJSON, &poll); err != nil {
			return nil, fmt.Errorf("decode poll: %w", err)
		}
		p.Poll = &poll
	}
	return &p, nil
}

func collectPosts(rows *sql.Rows) ([]*Post, error) {
	var out []*Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, post)
	}
	return out, rows.Err()
}

func marshalPoll(p *Poll) ([]byte, error) {
	if p == nil {
		return nil, nil
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode poll: %w", err)
	}
	return raw, nil
}

func rawPostIDs(postIDs []id.PostID) []uuid.UUID {
	return lo.Map(postIDs, func(p id.PostID, _ int) uuid.UUID { return uuid.UUID(p) })
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}
