package survey

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	id "crewpulse/pkg/domain"
	"crewpulse/pkg/platform/sentinel"
)

const uniqueViolation = "23505"

// Postgres persists surveys. The question set lives as a JSONB column so the
// draft edits and the status flip are atomic with it; responses get their own
// table with a (survey, employee) primary key enforcing one response each.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (s *Postgres) CreateSurvey(ctx context.Context, sv *Survey) error {
	questions, err := json.Marshal(sv.Questions)
	if err != nil {
		return fmt.Errorf("encode questions: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO surveys (id, org_id, title, status, questions, next_qid,
			created_by, created_at, updated_at, opened_at, closed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, uuid.UUID(sv.ID), uuid.UUID(sv.OrgID), sv.Title, string(sv.Status), questions,
		sv.NextQID, uuid.UUID(sv.CreatedBy), sv.CreatedAt, sv.UpdatedAt, sv.OpenedAt, sv.ClosedAt)
	if err != nil {
		return fmt.Errorf("insert survey: %w", err)
	}
	return nil
}

func (s *Postgres) FindSurvey(ctx context.Context, orgID id.OrgID, surveyID id.SurveyID) (*Survey, error) {
	row := s.db.QueryRowContext(ctx, surveySelect+` WHERE id = $1 AND org_id = $2`,
		uuid.UUID(surveyID), uuid.UUID(orgID))
	return scanSurvey(row)
}

// ExecuteSurvey loads the row FOR UPDATE, runs validate and mutate, and
// writes the result back inside one transaction.
func (s *Postgres) ExecuteSurvey(ctx context.Context, orgID id.OrgID, surveyID id.SurveyID,
	validate func(*Survey) error, mutate func(*Survey) error) (*Survey, error) {

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, surveySelect+` WHERE id = $1 AND org_id = $2 FOR UPDATE`,
		uuid.UUID(surveyID), uuid.UUID(orgID))
	sv, err := scanSurvey(row)
	if err != nil {
		return nil, err
	}

	if err := validate(sv); err != nil {
		return nil, err
	}
	if err := mutate(sv); err != nil {
		return nil, err
	}

	questions, err := json.Marshal(sv.Questions)
	if err != nil {
		return nil, fmt.Errorf("encode questions: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		UPDATE surveys
		SET title = $2, status = $3, questions = $4, next_qid = $5,
		    updated_at = $6, opened_at = $7, closed_at = $8
		WHERE id = $1
	`, uuid.UUID(sv.ID), sv.Title, string(sv.Status), questions, sv.NextQID,
		sv.UpdatedAt, sv.OpenedAt, sv.ClosedAt)
	if err != nil {
		return nil, fmt.Errorf("update survey: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit survey update: %w", err)
	}
	return sv, nil
}

func (s *Postgres) ListSurveys(ctx context.Context, orgID id.OrgID) ([]*Survey, error) {
	rows, err := s.db.QueryContext(ctx, surveySelect+`
		WHERE org_id = $1 ORDER BY created_at DESC
	`, uuid.UUID(orgID))
	if err != nil {
		return nil, fmt.Errorf("query surveys: %w", err)
	}
	defer rows.Close()

	var out []*Survey
	for rows.Next() {
		sv, err := scanSurvey(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sv)
	}
	return out, rows.Err()
}

func (s *Postgres) SaveResponse(ctx context.Context, r *Response) error {
	answers, err := json.Marshal(r.Answers)
	if err != nil {
		return fmt.Errorf("encode answers: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO survey_responses (survey_id, org_id, employee_id, answers, submitted_at)
		SELECT $1, $2, $3, $4, $5
		WHERE EXISTS (SELECT 1 FROM surveys WHERE id = $1 AND org_id = $2)
	`, uuid.UUID(r.SurveyID), uuid.UUID(r.OrgID), uuid.UUID(r.Employee), answers, r.SubmittedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert response: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Postgres) ListResponses(ctx context.Context, orgID id.OrgID, surveyID id.SurveyID) ([]*Response, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT survey_id, org_id, employee_id, answers, submitted_at
		FROM survey_responses WHERE survey_id = $1 AND org_id = $2
	`, uuid.UUID(surveyID), uuid.UUID(orgID))
	if err != nil {
		return nil, fmt.Errorf("query responses: %w", err)
	}
	defer rows.Close()

	var out []*Response
	for rows.Next() {
		var (
			r                 Response
			rawSurvey, rawOrg uuid.UUID
			rawEmployee       uuid.UUID
			answers           []byte
		)
		if err := rows.Scan(&rawSurvey, &rawOrg, &rawEmployee, &answers, &r.SubmittedAt); err != nil {
			return nil, fmt.Errorf("scan response: %w", err)
		}
		if err := json.Unmarshal(answers, &r.Answers); err != nil {
			return nil, fmt.Errorf("decode answers: %w", err)
		}
		r.SurveyID = id.SurveyID(rawSurvey)
		r.OrgID = id.OrgID(rawOrg)
		r.Employee = id.EmployeeID(rawEmployee)
		out = append(out, &r)
	}
	return out, rows.Err()
}

const surveySelect = `
	SELECT id, org_id, title, status, questions, next_qid,
	       created_by, created_at, updated_at, opened_at, closed_at
	FROM surveys`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSurvey(row rowScanner) (*Survey, error) {
	var (
		sv            Survey
		rawID, rawOrg uuid.UUID
		rawCreator    uuid.UUID
		status        string
		questions     []byte
	)
	err := row.Scan(&rawID, &rawOrg, &sv.Title, &status, &questions, &sv.NextQID,
		&rawCreator, &sv.CreatedAt, &sv.UpdatedAt, &sv.OpenedAt, &sv.ClosedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan survey: %w", err)
	}
	if err := json.Unmarshal(questions, &sv.Questions); err != nil {
		return nil, fmt.Errorf("decode questions: %w", err)
	}
	sv.ID = id.SurveyID(rawID)
	sv.OrgID = id.OrgID(rawOrg)
	sv.CreatedBy = id.EmployeeID(rawCreator)
	sv.Status = Status(status)
	return &sv, nil
}
