package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/jarida/core/review"
)

const (
	assignmentColumns = `id, submission_id, reviewer_id, round, status, invited_by, due_at, responded_at,
		completed_at, reminded_at, created_at`
	reviewColumns = `id, assignment_id, submission_id, reviewer_id, round, recommendation, score_originality,
		score_methodology, score_clarity, score_significance, comments_to_author, comments_to_editor, rating, submitted_at`
)

type assignmentRow struct {
	ID           string      `db:"id"`
	SubmissionID string      `db:"submission_id"`
	ReviewerID   string      `db:"reviewer_id"`
	Round        int         `db:"round"`
	Status       string      `db:"status"`
	InvitedBy    null.String `db:"invited_by"`
	DueAt        null.Time   `db:"due_at"`
	RespondedAt  null.Time   `db:"responded_at"`
	CompletedAt  null.Time   `db:"completed_at"`
	RemindedAt   null.Time   `db:"reminded_at"`
	CreatedAt    time.Time   `db:"created_at"`
}

type reviewRow struct {
	ID                string    `db:"id"`
	AssignmentID      string    `db:"assignment_id"`
	SubmissionID      string    `db:"submission_id"`
	ReviewerID        string    `db:"reviewer_id"`
	Round             int       `db:"round"`
	Recommendation    string    `db:"recommendation"`
	ScoreOriginality  int       `db:"score_originality"`
	ScoreMethodology  int       `db:"score_methodology"`
	ScoreClarity      int       `db:"score_clarity"`
	ScoreSignificance int       `db:"score_significance"`
	CommentsToAuthor  string    `db:"comments_to_author"`
	CommentsToEditor  string    `db:"comments_to_editor"`
	Rating            int       `db:"rating"`
	SubmittedAt       time.Time `db:"submitted_at"`
}

type reviewRepository struct {
	exec sqlx.ExtContext
}

var _ review.Repository = (*reviewRepository)(nil) // interface compliance check

func NewReviewRepository(exec sqlx.ExtContext) review.Repository {
	return &reviewRepository{exec: exec}
}

func (repo reviewRepository) boilAssignment(a review.Assignment) assignmentRow {
	return assignmentRow{
		ID:           a.ID,
		SubmissionID: a.SubmissionID,
		ReviewerID:   a.ReviewerID,
		Round:        a.Round,
		Status:       string(a.Status),
		InvitedBy:    nullID(a.InvitedBy),
		DueAt:        nullTime(a.DueAt),
		RespondedAt:  nullTime(a.RespondedAt),
		CompletedAt:  nullTime(a.CompletedAt),
		RemindedAt:   nullTime(a.RemindedAt),
		CreatedAt:    a.CreatedAt.UTC(),
	}
}

func (repo reviewRepository) unboilAssignment(row assignmentRow) review.Assignment {
	return review.Assignment{
		ID:           row.ID,
		SubmissionID: row.SubmissionID,
		ReviewerID:   row.ReviewerID,
		Round:        row.Round,
		Status:       review.AssignmentStatus(row.Status),
		InvitedBy:    row.InvitedBy.String,
		DueAt:        row.DueAt.Time.UTC(),
		RespondedAt:  row.RespondedAt.Time.UTC(),
		CompletedAt:  row.CompletedAt.Time.UTC(),
		RemindedAt:   row.RemindedAt.Time.UTC(),
		CreatedAt:    row.CreatedAt.UTC(),
	}
}

func (repo reviewRepository) boilReview(r review.Review) reviewRow {
	return reviewRow{
		ID:                r.ID,
		AssignmentID:      r.AssignmentID,
		SubmissionID:      r.SubmissionID,
		ReviewerID:        r.ReviewerID,
		Round:             r.Round,
		Recommendation:    string(r.Recommendation),
		ScoreOriginality:  r.Scores.Originality,
		ScoreMethodology:  r.Scores.Methodology,
		ScoreClarity:      r.Scores.Clarity,
		ScoreSignificance: r.Scores.Significance,
		CommentsToAuthor:  r.CommentsToAuthor,
		CommentsToEditor:  r.CommentsToEditor,
		Rating:            r.Rating,
		SubmittedAt:       r.SubmittedAt.UTC(),
	}
}

func (repo reviewRepository) unboilReview(row reviewRow) review.Review {
	return review.Review{
		ID:             row.ID,
		AssignmentID:   row.AssignmentID,
		SubmissionID:   row.SubmissionID,
		ReviewerID:     row.ReviewerID,
		Round:          row.Round,
		Recommendation: review.Recommendation(row.Recommendation),
		Scores: review.Scores{
			Originality:  row.ScoreOriginality,
			Methodology:  row.ScoreMethodology,
			Clarity:      row.ScoreClarity,
			Significance: row.ScoreSignificance,
		},
		CommentsToAuthor: row.CommentsToAuthor,
		CommentsToEditor: row.CommentsToEditor,
		Rating:           row.Rating,
		SubmittedAt:      row.SubmittedAt.UTC(),
	}
}

func (repo reviewRepository) CreateAssignment(ctx context.Context, a review.Assignment) (review.Assignment, error) {
	a.ID = uuid.New().String()
	q := `INSERT INTO review_assignment (` + assignmentColumns + `) VALUES (
		:id, :submission_id, :reviewer_id, :round, :status, :invited_by, :due_at, :responded_at,
		:completed_at, :reminded_at, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, repo.exec, q, repo.boilAssignment(a)); err != nil {
		return review.Assignment{}, errors.Wrap(err, "inserting assignment")
	}
	return a, nil
}

func (repo reviewRepository) GetAssignment(ctx context.Context, id string) (review.Assignment, error) {
	if !validID(id) {
		return review.Assignment{}, review.ErrAssignmentNotFound
	}
	var row assignmentRow
	q := `SELECT ` + assignmentColumns + ` FROM review_assignment WHERE id = ?`
	if err := getRow(ctx, repo.exec, &row, q, id); err != nil {
		return review.Assignment{}, trapNoRowsErr(err, review.ErrAssignmentNotFound, "finding assignment by ID")
	}
	return repo.unboilAssignment(row), nil
}

func (repo reviewRepository) QueryAssignments(ctx context.Context, filter review.AssignmentFilter) ([]review.Assignment, error) {
	var where whereClause
	if filter.IDs != nil {
		where.and("id = ANY(?::uuid[])", validIDs(filter.IDs))
	}
	if filter.SubmissionID != "" {
		if !validID(filter.SubmissionID) {
			return nil, nil
		}
		where.and("submission_id = ?", filter.SubmissionID)
	}
	if filter.ReviewerIDs != nil {
		where.and("reviewer_id = ANY(?::uuid[])", validIDs(filter.ReviewerIDs))
	}
	if filter.Round > 0 {
		where.and("round = ?", filter.Round)
	}
	if len(filter.Statuses) > 0 {
		statuses := make(pq.StringArray, 0, len(filter.Statuses))
		for _, st := range filter.Statuses {
			statuses = append(statuses, string(st))
		}
		where.and("status = ANY(?)", statuses)
	}

	var rows []assignmentRow
	q := `SELECT ` + assignmentColumns + ` FROM review_assignment` + where.String() + ` ORDER BY created_at ASC, id ASC`
	if err := selectRows(ctx, repo.exec, &rows, q, where.args...); err != nil {
		return nil, errors.Wrap(err, "querying assignments")
	}
	assignments := make([]review.Assignment, 0, len(rows))
	for _, row := range rows {
		assignments = append(assignments, repo.unboilAssignment(row))
	}
	return assignments, nil
}

func (repo reviewRepository) UpdateAssignment(ctx context.Context, a review.Assignment) (review.Assignment, error) {
	if !validID(a.ID) {
		return review.Assignment{}, review.ErrAssignmentNotFound
	}
	q := `UPDATE review_assignment SET status = :status, due_at = :due_at, responded_at = :responded_at,
		completed_at = :completed_at, reminded_at = :reminded_at
		WHERE id = :id`
	cnt, err := namedExecAffected(ctx, repo.exec, q, repo.boilAssignment(a))
	if err != nil {
		return review.Assignment{}, errors.Wrap(err, "updating assignment")
	}
	if cnt == 0 {
		return review.Assignment{}, review.ErrAssignmentNotFound
	}
	return a, nil
}

func (repo reviewRepository) CreateReview(ctx context.Context, r review.Review) (review.Review, error) {
	r.ID = uuid.New().String()
	q := `INSERT INTO review (` + reviewColumns + `) VALUES (
		:id, :assignment_id, :submission_id, :reviewer_id, :round, :recommendation, :score_originality,
		:score_methodology, :score_clarity, :score_significance, :comments_to_author, :comments_to_editor, :rating,
		:submitted_at)`
	if _, err := sqlx.NamedExecContext(ctx, repo.exec, q, repo.boilReview(r)); err != nil {
		return review.Review{}, errors.Wrap(err, "inserting review")
	}
	return r, nil
}

func (repo reviewRepository) GetReview(ctx context.Context, id string) (review.Review, error) {
	if !validID(id) {
		return review.Review{}, review.ErrReviewNotFound
	}
	var row reviewRow
	q := `SELECT ` + reviewColumns + ` FROM review WHERE id = ?`
	if err := getRow(ctx, repo.exec, &row, q, id); err != nil {
		return review.Review{}, trapNoRowsErr(err, review.ErrReviewNotFound, "finding review by ID")
	}
	return repo.unboilReview(row), nil
}

func (repo reviewRepository) QueryReviews(ctx context.Context, filter review.ReviewFilter) ([]review.Review, error) {
	var where whereClause
	if filter.SubmissionID != "" {
		if !validID(filter.SubmissionID) {
			return nil, nil
		}
		where.and("submission_id = ?", filter.SubmissionID)
	}
	if filter.ReviewerIDs != nil {
		where.and("reviewer_id = ANY(?::uuid[])", validIDs(filter.ReviewerIDs))
	}
	if filter.Round > 0 {
		where.and("round = ?", filter.Round)
	}

	var rows []reviewRow
	q := `SELECT ` + reviewColumns + ` FROM review` + where.String() + ` ORDER BY submitted_at ASC, id ASC`
	if err := selectRows(ctx, repo.exec, &rows, q, where.args...); err != nil {
		return nil, errors.Wrap(err, "querying reviews")
	}
	reviews := make([]review.Review, 0, len(rows))
	for _, row := range rows {
		reviews = append(reviews, repo.unboilReview(row))
	}
	return reviews, nil
}

func (repo reviewRepository) UpdateReview(ctx context.Context, r review.Review) (review.Review, error) {
	if !validID(r.ID) {
		return review.Review{}, review.ErrReviewNotFound
	}
	q := `UPDATE review SET recommendation = :recommendation, score_originality = :score_originality,
		score_methodology = :score_methodology, score_clarity = :score_clarity,
		score_significance = :score_significance, comments_to_author = :comments_to_author,
		comments_to_editor = :comments_to_editor, rating = :rating
		WHERE id = :id`
	cnt, err := namedExecAffected(ctx, repo.exec, q, repo.boilReview(r))
	if err != nil {
		return review.Review{}, errors.Wrap(err, "updating review")
	}
	if cnt == 0 {
		return review.Review{}, review.ErrReviewNotFound
	}
	return r, nil
}
