package inmemdb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/trezcool/jarida/core/review"
)

type reviewRepository struct {
	db *DB
}

var _ review.Repository = (*reviewRepository)(nil) // interface compliance check

func NewReviewRepository(db *DB) review.Repository {
	return &reviewRepository{db: db}
}

func (repo *reviewRepository) CreateAssignment(_ context.Context, a review.Assignment) (review.Assignment, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	a.ID = uuid.New().String()
	repo.db.assignments[a.ID] = a
	return a, nil
}

func (repo *reviewRepository) GetAssignment(_ context.Context, id string) (review.Assignment, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	a, ok := repo.db.assignments[id]
	if !ok {
		return review.Assignment{}, review.ErrAssignmentNotFound
	}
	return a, nil
}

func (repo *reviewRepository) QueryAssignments(_ context.Context, filter review.AssignmentFilter) ([]review.Assignment, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var assignments []review.Assignment
	for _, a := range repo.db.assignments {
		if filter.Match(a) {
			assignments = append(assignments, a)
		}
	}
	sort.Slice(assignments, func(i, j int) bool {
		if !assignments[i].CreatedAt.Equal(assignments[j].CreatedAt) {
			return assignments[i].CreatedAt.Before(assignments[j].CreatedAt)
		}
		return assignments[i].ID < assignments[j].ID
	})
	return assignments, nil
}

func (repo *reviewRepository) UpdateAssignment(_ context.Context, a review.Assignment) (review.Assignment, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.assignments[a.ID]; !ok {
		return review.Assignment{}, review.ErrAssignmentNotFound
	}
	repo.db.assignments[a.ID] = a
	return a, nil
}

func (repo *reviewRepository) CreateReview(_ context.Context, r review.Review) (review.Review, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	r.ID = uuid.New().String()
	repo.db.reviews[r.ID] = r
	return r, nil
}

func (repo *reviewRepository) GetReview(_ context.Context, id string) (review.Review, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	r, ok := repo.db.reviews[id]
	if !ok {
		return review.Review{}, review.ErrReviewNotFound
	}
	return r, nil
}

func (repo *reviewRepository) QueryReviews(_ context.Context, filter review.ReviewFilter) ([]review.Review, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var reviews []review.Review
	for _, r := range repo.db.reviews {
		if filter.Match(r) {
			reviews = append(reviews, r)
		}
	}
	sort.Slice(reviews, func(i, j int) bool {
		if !reviews[i].SubmittedAt.Equal(reviews[j].SubmittedAt) {
			return reviews[i].SubmittedAt.Before(reviews[j].SubmittedAt)
		}
		return reviews[i].ID < reviews[j].ID
	})
	return reviews, nil
}

func (repo *reviewRepository) UpdateReview(_ context.Context, r review.Review) (review.Review, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.reviews[r.ID]; !ok {
		return review.Review{}, review.ErrReviewNotFound
	}
	repo.db.reviews[r.ID] = r
	return r, nil
}
