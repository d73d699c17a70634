package submission_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/jarida/core"
	"github.com/trezcool/jarida/core/file"
	"github.com/trezcool/jarida/core/submission"
	"github.com/trezcool/jarida/core/user"
	testutil "github.com/trezcool/jarida/tests"
)

func TestService_Submit_revision(t *testing.T) {
	decidedAt := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	defer func() { core.NowFunc = time.Now }() // reset

	env := testutil.NewEnv()
	ctx := context.Background()
	author := testutil.CreateUser(t, env.UserRepo, "Ada Lovelace", "adalovelace", "ada@journal.test", "",
		[]string{user.RoleAuthor}, true)
	other := testutil.CreateUser(t, env.UserRepo, "Grace Hopper", "ghopper", "grace@navy.test", "",
		[]string{user.RoleAuthor}, true)

	// a revision uploaded before the decision does not count
	core.NowFunc = func() time.Time { return decidedAt.Add(-time.Hour) }
	s := testutil.CreateSubmission(t, env.SubmissionRepo, author, submission.StatusRevisionRequested)
	submittedAt := s.SubmittedAt
	testutil.StoreFile(t, env.FileSvc, s.ID, file.KindRevision, author)

	core.NowFunc = func() time.Time { return decidedAt }
	s.DecidedAt = core.Now()
	_, err := env.SubmissionRepo.UpdateSubmission(ctx, s)
	require.NoError(t, err)

	_, err = env.SubmissionSvc.Submit(ctx, s.ID, author)
	assert.Equal(t, submission.ErrRevisionRequired, err)

	// uploaded at the very instant of the decision
	testutil.StoreFile(t, env.FileSvc, s.ID, file.KindRevision, author)

	_, err = env.SubmissionSvc.Submit(ctx, s.ID, other)
	assert.Equal(t, core.ErrPermissionDenied, err)

	resubmitted, err := env.SubmissionSvc.Submit(ctx, s.ID, author)
	require.NoError(t, err)
	assert.Equal(t, submission.StatusSubmitted, resubmitted.Status)
	assert.Equal(t, 2, resubmitted.Round)
	assert.Equal(t, submittedAt, resubmitted.SubmittedAt)

	stored, err := env.SubmissionSvc.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.Round)

	// a submitted submission can't be submitted again
	_, err = env.SubmissionSvc.Submit(ctx, s.ID, author)
	assert.Error(t, err)
}

func TestService_Submit_manuscriptRequired(t *testing.T) {
	env := testutil.NewEnv()
	ctx := context.Background()
	author := testutil.CreateUser(t, env.UserRepo, "Ada Lovelace", "adalovelace", "ada@journal.test", "",
		[]string{user.RoleAuthor}, true)
	s := testutil.CreateSubmission(t, env.SubmissionRepo, author, submission.StatusDraft)

	_, err := env.SubmissionSvc.Submit(ctx, s.ID, author)
	assert.Equal(t, submission.ErrManuscriptRequired, err)

	testutil.StoreFile(t, env.FileSvc, s.ID, file.KindManuscript, author)
	submitted, err := env.SubmissionSvc.Submit(ctx, s.ID, author)
	require.NoError(t, err)
	assert.Equal(t, submission.StatusSubmitted, submitted.Status)
	assert.Equal(t, 1, submitted.Round)
	assert.False(t, submitted.SubmittedAt.IsZero())
}
