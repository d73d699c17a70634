package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/jarida/core/decision"
)

type decisionRow struct {
	ID           string      `db:"id"`
	SubmissionID string      `db:"submission_id"`
	EditorID     null.String `db:"editor_id"`
	Round        int         `db:"round"`
	Kind         string      `db:"kind"`
	Comments     string      `db:"comments"`
	CreatedAt    time.Time   `db:"created_at"`
}

type decisionRepository struct {
	exec sqlx.ExtContext
}

var _ decision.Repository = (*decisionRepository)(nil) // interface compliance check

func NewDecisionRepository(exec sqlx.ExtContext) decision.Repository {
	return &decisionRepository{exec: exec}
}

func (repo decisionRepository) CreateDecision(ctx context.Context, d decision.Decision) (decision.Decision, error) {
	d.ID = uuid.New().String()
	row := decisionRow{
		ID:           d.ID,
		SubmissionID: d.SubmissionID,
		EditorID:     nullID(d.EditorID),
		Round:        d.Round,
		Kind:         string(d.Kind),
		Comments:     d.Comments,
		CreatedAt:    d.CreatedAt.UTC(),
	}
	q := `INSERT INTO decision (id, submission_id, editor_id, round, kind, comments, created_at)
		VALUES (:id, :submission_id, :editor_id, :round, :kind, :comments, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, repo.exec, q, row); err != nil {
		return decision.Decision{}, errors.Wrap(err, "inserting decision")
	}
	return d, nil
}

func (repo decisionRepository) QueryDecisions(ctx context.Context, submissionID string) ([]decision.Decision, error) {
	if !validID(submissionID) {
		return nil, nil
	}
	var rows []decisionRow
	q := `SELECT id, submission_id, editor_id, round, kind, comments, created_at
		FROM decision WHERE submission_id = ? ORDER BY created_at ASC, id ASC`
	if err := selectRows(ctx, repo.exec, &rows, q, submissionID); err != nil {
		return nil, errors.Wrap(err, "querying decisions")
	}
	decisions := make([]decision.Decision, 0, len(rows))
	for _, row := range rows {
		decisions = append(decisions, decision.Decision{
			ID:           row.ID,
			SubmissionID: row.SubmissionID,
			EditorID:     row.EditorID.String,
			Round:        row.Round,
			Kind:         decision.Kind(row.Kind),
			Comments:     row.Comments,
			CreatedAt:    row.CreatedAt.UTC(),
		})
	}
	return decisions, nil
}
