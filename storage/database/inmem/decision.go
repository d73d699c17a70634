package inmemdb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/trezcool/jarida/core/decision"
)

type decisionRepository struct {
	db *DB
}

var _ decision.Repository = (*decisionRepository)(nil) // interface compliance check

func NewDecisionRepository(db *DB) decision.Repository {
	return &decisionRepository{db: db}
}

func (repo *decisionRepository) CreateDecision(_ context.Context, d decision.Decision) (decision.Decision, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	d.ID = uuid.New().String()
	repo.db.decisions[d.ID] = d
	return d, nil
}

func (repo *decisionRepository) QueryDecisions(_ context.Context, submissionID string) ([]decision.Decision, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var decisions []decision.Decision
	for _, d := range repo.db.decisions {
		if d.SubmissionID == submissionID {
			decisions = append(decisions, d)
		}
	}
	sort.Slice(decisions, func(i, j int) bool { return decisions[i].CreatedAt.Before(decisions[j].CreatedAt) })
	return decisions, nil
}
