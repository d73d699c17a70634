package sqlxrepos

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/jarida/core"
	"github.com/trezcool/jarida/core/submission"
)

const subID = "0f3c2a8e-6f1e-4d0a-9a57-3b0a3c1e9d11"

var submissionRowColumns = []string{
	"id", "title", "abstract", "keywords", "subject_area", "article_type", "cover_letter", "authors",
	"corresponding_author", "submitter_id", "handling_editor_id", "status", "round", "submitted_at", "decided_at",
	"created_at", "updated_at",
}

func TestSubmissionRepository_GetSubmission(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSubmissionRepository(db)
	created := time.Date(2024, 5, 2, 8, 30, 0, 0, time.UTC)
	authors := `[{"name":"Ada Lovelace","email":"ada@example.com","affiliation":"UCL","orcid":""}]`

	mock.ExpectQuery(`SELECT .+ FROM submission WHERE id = \$1`).
		WithArgs(subID).
		WillReturnRows(sqlmock.NewRows(submissionRowColumns).AddRow(
			subID, "On analytical engines", "abstract", "{computing,engines}", "computer_science", "research", "",
			[]byte(authors), "ada@example.com", "4a7e5fd7-08b4-4a50-9d6c-28bb3d3e3b6f", nil, "submitted", 1,
			created, nil, created, created,
		))

	s, err := repo.GetSubmission(context.Background(), subID)
	require.NoError(t, err)
	assert.Equal(t, submission.StatusSubmitted, s.Status)
	assert.Equal(t, submission.TypeResearch, s.ArticleType)
	assert.Equal(t, []string{"computing", "engines"}, s.Keywords)
	require.Len(t, s.Authors, 1)
	assert.Equal(t, "Ada Lovelace", s.Authors[0].Name)
	corresponding, ok := s.Corresponding()
	assert.True(t, ok)
	assert.Equal(t, "UCL", corresponding.Affiliation)
	assert.Empty(t, s.HandlingEditorID)
	assert.True(t, s.DecidedAt.IsZero())
	assert.Equal(t, created, s.SubmittedAt)
}

func TestSubmissionRepository_GetSubmission_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSubmissionRepository(db)

	mock.ExpectQuery(`SELECT .+ FROM submission WHERE id = \$1`).
		WithArgs(subID).
		WillReturnRows(sqlmock.NewRows(submissionRowColumns))
	_, err := repo.GetSubmission(context.Background(), subID)
	assert.Equal(t, submission.ErrNotFound, err)
	assert.True(t, core.IsNotFound(err))
}

func TestSubmissionRepository_QuerySubmissions(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSubmissionRepository(db)
	userID := "4a7e5fd7-08b4-4a50-9d6c-28bb3d3e3b6f"

	mock.ExpectQuery(`SELECT .+ FROM submission WHERE status = ANY\(\$1\) ` +
		`AND \(submitter_id = \$2 OR authors @> \$3::jsonb OR authors @> \$4::jsonb\) ` +
		`ORDER BY created_at DESC, id ASC LIMIT \$5 OFFSET \$6`).
		WithArgs(
			"{\"submitted\",\"under_review\"}",
			userID,
			`[{"user_id":"`+userID+`"}]`,
			`[{"email":"ada@example.com"}]`,
			10, 20,
		).
		WillReturnRows(sqlmock.NewRows(submissionRowColumns))

	filter := &submission.QueryFilter{
		Statuses:     []submission.Status{submission.StatusSubmitted, submission.StatusUnderReview},
		AuthorUserID: userID,
		AuthorEmail:  "ada@example.com",
	}
	subs, err := repo.QuerySubmissions(context.Background(), filter, nil, core.Page{Limit: 10, Offset: 20})
	require.NoError(t, err)
	assert.Empty(t, subs)
}

func TestSubmissionRepository_QuerySubmissions_Assigned(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSubmissionRepository(db)
	userID := "4a7e5fd7-08b4-4a50-9d6c-28bb3d3e3b6f"

	mock.ExpectQuery(`SELECT .+ FROM submission ` +
		`WHERE \(submitter_id = \$1 OR authors @> \$2::jsonb OR id = ANY\(\$3::uuid\[\]\)\) ` +
		`ORDER BY created_at DESC, id ASC`).
		WithArgs(userID, `[{"user_id":"`+userID+`"}]`, `{"`+subID+`"}`).
		WillReturnRows(sqlmock.NewRows(submissionRowColumns))

	filter := &submission.QueryFilter{AuthorUserID: userID, AssignedIDs: []string{subID, "not-a-uuid"}}
	subs, err := repo.QuerySubmissions(context.Background(), filter, nil, core.Page{})
	require.NoError(t, err)
	assert.Empty(t, subs)
}

func TestSubmissionRepository_QuerySubmissions_InvalidSubmitter(t *testing.T) {
	db, _ := newMockDB(t)
	repo := NewSubmissionRepository(db)

	subs, err := repo.QuerySubmissions(context.Background(), &submission.QueryFilter{SubmitterID: "nope"}, nil, core.Page{})
	require.NoError(t, err)
	assert.Empty(t, subs)
}

func TestSubmissionRepository_CreateAndUpdate(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSubmissionRepository(db)
	ctx := context.Background()
	now := core.Now()

	s := submission.Submission{
		Title:       "On analytical engines",
		Authors:     []submission.Author{{Name: "Ada Lovelace", Email: "ada@example.com"}},
		SubmitterID: "4a7e5fd7-08b4-4a50-9d6c-28bb3d3e3b6f",
		Status:      submission.StatusDraft,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	mock.ExpectExec(`INSERT INTO submission`).WillReturnResult(sqlmock.NewResult(0, 1))
	created, err := repo.CreateSubmission(ctx, s)
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)

	mock.ExpectExec(`UPDATE submission SET .+ WHERE id = \$\d+`).WillReturnResult(sqlmock.NewResult(0, 1))
	created.Status = submission.StatusSubmitted
	updated, err := repo.UpdateSubmission(ctx, created)
	require.NoError(t, err)
	assert.Equal(t, submission.StatusSubmitted, updated.Status)

	mock.ExpectExec(`UPDATE submission`).WillReturnResult(sqlmock.NewResult(0, 0))
	_, err = repo.UpdateSubmission(ctx, created)
	assert.Equal(t, submission.ErrNotFound, err)
}

func TestSubmissionRepository_QueryStatusChanges(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSubmissionRepository(db)
	at := time.Date(2024, 5, 2, 8, 30, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT .+ FROM status_change WHERE submission_id = \$1 ORDER BY created_at ASC, id ASC`).
		WithArgs(subID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "submission_id", "from_status", "to_status", "actor_id", "note", "created_at"}).
			AddRow("6c1d0d6e-5d7b-4d4c-8d1e-6b7f1b2b9c01", subID, "draft", "submitted", nil, "", at))

	changes, err := repo.QueryStatusChanges(context.Background(), subID)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, submission.StatusDraft, changes[0].From)
	assert.Equal(t, submission.StatusSubmitted, changes[0].To)
	assert.Empty(t, changes[0].ActorID)
}
