package inmemdb

import (
	"context"

	"github.com/google/uuid"

	"github.com/trezcool/jarida/core"
	"github.com/trezcool/jarida/core/submission"
)

type submissionRepository struct {
	db *DB
}

var _ submission.Repository = (*submissionRepository)(nil) // interface compliance check

func NewSubmissionRepository(db *DB) submission.Repository {
	return &submissionRepository{db: db}
}

func (repo *submissionRepository) CreateSubmission(_ context.Context, s submission.Submission) (submission.Submission, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	s.ID = uuid.New().String()
	repo.db.submissions[s.ID] = s
	return s, nil
}

func (repo *submissionRepository) GetSubmission(_ context.Context, id string) (submission.Submission, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	s, ok := repo.db.submissions[id]
	if !ok {
		return submission.Submission{}, submission.ErrNotFound
	}
	return s, nil
}

func (repo *submissionRepository) QuerySubmissions(
	_ context.Context,
	filter *submission.QueryFilter,
	ordering []core.DBOrdering,
	page core.Page,
) ([]submission.Submission, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	subs := make([]submission.Submission, 0, len(repo.db.submissions))
	for _, s := range repo.db.submissions {
		if filter.Match(s) {
			subs = append(subs, s)
		}
	}

	sortByOrderings(len(subs), func(i, j int) { subs[i], subs[j] = subs[j], subs[i] }, func(i int, field string) interface{} {
		s := subs[i]
		switch field {
		case "title":
			return s.Title
		case "status":
			return string(s.Status)
		case "subject_area":
			return s.SubjectArea
		case "submitted_at":
			return s.SubmittedAt
		case "updated_at":
			return s.UpdatedAt
		case "id":
			return s.ID
		default:
			return s.CreatedAt
		}
	}, withIDTiebreak(ordering))

	start, end := paginate(len(subs), page)
	return subs[start:end], nil
}

func (repo *submissionRepository) UpdateSubmission(_ context.Context, s submission.Submission) (submission.Submission, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.submissions[s.ID]; !ok {
		return submission.Submission{}, submission.ErrNotFound
	}
	repo.db.submissions[s.ID] = s
	return s, nil
}

func (repo *submissionRepository) CreateStatusChange(_ context.Context, sc submission.StatusChange) (submission.StatusChange, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	sc.ID = uuid.New().String()
	repo.db.statusChanges = append(repo.db.statusChanges, sc)
	return sc, nil
}

func (repo *submissionRepository) QueryStatusChanges(_ context.Context, submissionID string) ([]submission.StatusChange, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var changes []submission.StatusChange
	for _, sc := range repo.db.statusChanges {
		if sc.SubmissionID == submissionID {
			changes = append(changes, sc)
		}
	}
	return changes, nil
}
