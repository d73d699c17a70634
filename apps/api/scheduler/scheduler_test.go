package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/jarida/core"
	"github.com/trezcool/jarida/core/review"
	"github.com/trezcool/jarida/core/submission"
	"github.com/trezcool/jarida/core/user"
	testutil "github.com/trezcool/jarida/tests"
)

type jobRun struct {
	job     string
	success bool
}

type recorderMock struct {
	mu   sync.Mutex
	runs []jobRun
}

func (r *recorderMock) RecordJob(job string, _ time.Duration, success bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, jobRun{job: job, success: success})
}

func newScheduler(t *testing.T, env *testutil.Env) (*Scheduler, *recorderMock) {
	t.Helper()
	rec := new(recorderMock)
	s, err := New(env.Conf, core.NopLogger{}, rec, env.ReviewSvc, env.PublicationSvc)
	require.NoError(t, err)
	return s, rec
}

func TestNew(t *testing.T) {
	env := testutil.NewEnv()

	s, _ := newScheduler(t, env)
	assert.Equal(t, 2, s.Entries())

	conf := *env.Conf
	conf.Review.ReminderSchedule = "every tuesday"
	_, err := New(&conf, core.NopLogger{}, nil, env.ReviewSvc, env.PublicationSvc)
	assert.Error(t, err)
}

func TestScheduler_remindReviewers(t *testing.T) {
	env := testutil.NewEnv()
	s, rec := newScheduler(t, env)
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	author := testutil.CreateUser(t, env.UserRepo, "Ada Lovelace", "adalovelace", "ada@journal.test", "", []string{user.RoleAuthor}, true)
	reviewer := testutil.CreateReviewer(t, env.UserRepo, "Rita Levi", "rita@lab.test", "Lab of Soil", "microbiome")
	sub := testutil.CreateSubmission(t, env.SubmissionRepo, author, submission.StatusUnderReview)

	newAssignment := func(due time.Time) review.Assignment {
		a, err := env.ReviewRepo.CreateAssignment(context.Background(), review.Assignment{
			SubmissionID: sub.ID,
			ReviewerID:   reviewer.ID,
			Round:        1,
			Status:       review.AssignmentAccepted,
			DueAt:        due,
			CreatedAt:    now.AddDate(0, 0, -20),
		})
		require.NoError(t, err)
		return a
	}
	dueSoon := newAssignment(now.AddDate(0, 0, 2))
	notDue := newAssignment(now.AddDate(0, 0, 10))

	s.remindReviewers()
	require.Len(t, rec.runs, 1)
	assert.Equal(t, jobRun{job: JobRemindReviewers, success: true}, rec.runs[0])
	assert.Len(t, env.Mail.Messages(), 1)

	a, err := env.ReviewRepo.GetAssignment(context.Background(), dueSoon.ID)
	require.NoError(t, err)
	assert.True(t, a.RemindedAt.Equal(now))
	a, err = env.ReviewRepo.GetAssignment(context.Background(), notDue.ID)
	require.NoError(t, err)
	assert.True(t, a.RemindedAt.IsZero())

	// reminded less than a day ago
	s.remindReviewers()
	assert.Len(t, env.Mail.Messages(), 1)
	assert.Len(t, rec.runs, 2)
}

func TestScheduler_redeposit(t *testing.T) {
	env := testutil.NewEnv()
	s, rec := newScheduler(t, env)

	s.redeposit()
	require.Len(t, rec.runs, 1)
	assert.Equal(t, jobRun{job: JobRedeposit, success: true}, rec.runs[0])
	assert.Empty(t, env.Registrar.Requests())
}

func TestScheduler_Stop(t *testing.T) {
	env := testutil.NewEnv()
	s, _ := newScheduler(t, env)

	s.Start()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
	assert.NoError(t, ctx.Err())
}
