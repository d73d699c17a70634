package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/jarida/core/production"
)

const jobColumns = `submission_id, stage, assignee_id, notes, created_at, updated_at`

type jobRow struct {
	SubmissionID string      `db:"submission_id"`
	Stage        string      `db:"stage"`
	AssigneeID   null.String `db:"assignee_id"`
	Notes        string      `db:"notes"`
	CreatedAt    time.Time   `db:"created_at"`
	UpdatedAt    time.Time   `db:"updated_at"`
}

type productionRepository struct {
	exec sqlx.ExtContext
}

var _ production.Repository = (*productionRepository)(nil) // interface compliance check

func NewProductionRepository(exec sqlx.ExtContext) production.Repository {
	return &productionRepository{exec: exec}
}

func (repo productionRepository) boil(job production.Job) jobRow {
	return jobRow{
		SubmissionID: job.SubmissionID,
		Stage:        string(job.Stage),
		AssigneeID:   nullID(job.AssigneeID),
		Notes:        job.Notes,
		CreatedAt:    job.CreatedAt.UTC(),
		UpdatedAt:    job.UpdatedAt.UTC(),
	}
}

func (repo productionRepository) CreateJob(ctx context.Context, job production.Job) (production.Job, error) {
	q := `INSERT INTO production_job (` + jobColumns + `)
		VALUES (:submission_id, :stage, :assignee_id, :notes, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, repo.exec, q, repo.boil(job)); err != nil {
		if isUniqueViolation(err) {
			return production.Job{}, production.ErrJobExists
		}
		return production.Job{}, errors.Wrap(err, "inserting production job")
	}
	return job, nil
}

func (repo productionRepository) GetJob(ctx context.Context, submissionID string) (production.Job, error) {
	if !validID(submissionID) {
		return production.Job{}, production.ErrNotFound
	}
	var row jobRow
	q := `SELECT ` + jobColumns + ` FROM production_job WHERE submission_id = ?`
	if err := getRow(ctx, repo.exec, &row, q, submissionID); err != nil {
		return production.Job{}, trapNoRowsErr(err, production.ErrNotFound, "finding production job")
	}
	return production.Job{
		SubmissionID: row.SubmissionID,
		Stage:        production.Stage(row.Stage),
		AssigneeID:   row.AssigneeID.String,
		Notes:        row.Notes,
		CreatedAt:    row.CreatedAt.UTC(),
		UpdatedAt:    row.UpdatedAt.UTC(),
	}, nil
}

func (repo productionRepository) UpdateJob(ctx context.Context, job production.Job) (production.Job, error) {
	if !validID(job.SubmissionID) {
		return production.Job{}, production.ErrNotFound
	}
	q := `UPDATE production_job SET stage = :stage, assignee_id = :assignee_id, notes = :notes,
		updated_at = :updated_at
		WHERE submission_id = :submission_id`
	cnt, err := namedExecAffected(ctx, repo.exec, q, repo.boil(job))
	if err != nil {
		return production.Job{}, errors.Wrap(err, "updating production job")
	}
	if cnt == 0 {
		return production.Job{}, production.ErrNotFound
	}
	return job, nil
}
