package inmemdb

import (
	"context"

	"github.com/trezcool/jarida/core/production"
)

type productionRepository struct {
	db *DB
}

var _ production.Repository = (*productionRepository)(nil) // interface compliance check

func NewProductionRepository(db *DB) production.Repository {
	return &productionRepository{db: db}
}

func (repo *productionRepository) CreateJob(_ context.Context, job production.Job) (production.Job, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	repo.db.jobs[job.SubmissionID] = job
	return job, nil
}

func (repo *productionRepository) GetJob(_ context.Context, submissionID string) (production.Job, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	job, ok := repo.db.jobs[submissionID]
	if !ok {
		return production.Job{}, production.ErrNotFound
	}
	return job, nil
}

func (repo *productionRepository) UpdateJob(_ context.Context, job production.Job) (production.Job, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.jobs[job.SubmissionID]; !ok {
		return production.Job{}, production.ErrNotFound
	}
	repo.db.jobs[job.SubmissionID] = job
	return job, nil
}
