package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"

	"github.com/trezcool/jarida/core"
	"github.com/trezcool/jarida/core/publication"
	"github.com/trezcool/jarida/core/review"
)

const (
	JobRemindReviewers = "remind_reviewers"
	JobRedeposit       = "redeposit_failed"

	redepositSchedule = "@hourly"
	jobTimeout        = 10 * time.Minute
)

// JobRecorder records each run of a job.
type JobRecorder interface {
	RecordJob(job string, duration time.Duration, success bool)
}

// Scheduler runs the periodic jobs of the API process.
type Scheduler struct {
	cron           *cron.Cron
	logger         core.Logger
	recorder       JobRecorder
	reviewSvc      review.Service
	publicationSvc publication.Service
	now            func() time.Time
}

func New(
	conf *core.Config,
	logger core.Logger,
	recorder JobRecorder,
	reviewSvc review.Service,
	publicationSvc publication.Service,
) (*Scheduler, error) {
	s := &Scheduler{
		cron:           cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		logger:         logger,
		recorder:       recorder,
		reviewSvc:      reviewSvc,
		publicationSvc: publicationSvc,
		now:            core.Now,
	}
	if _, err := s.cron.AddFunc(conf.Review.ReminderSchedule, s.remindReviewers); err != nil {
		return nil, errors.Wrapf(err, "scheduling %s (%q)", JobRemindReviewers, conf.Review.ReminderSchedule)
	}
	if _, err := s.cron.AddFunc(redepositSchedule, s.redeposit); err != nil {
		return nil, errors.Wrapf(err, "scheduling %s", JobRedeposit)
	}
	return s, nil
}

func (s *Scheduler) Start() { s.cron.Start() }

// Stop prevents new runs and waits for the running ones, at most until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}

// Entries returns the number of scheduled jobs.
func (s *Scheduler) Entries() int { return len(s.cron.Entries()) }

func (s *Scheduler) remindReviewers() {
	s.run(JobRemindReviewers, func(ctx context.Context) (int, error) {
		return s.reviewSvc.SendReminders(ctx, s.now())
	})
}

func (s *Scheduler) redeposit() {
	s.run(JobRedeposit, s.publicationSvc.RedepositFailed)
}

func (s *Scheduler) run(job string, fn func(ctx context.Context) (int, error)) {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	start := time.Now()
	cnt, err := fn(ctx)
	if s.recorder != nil {
		s.recorder.RecordJob(job, time.Since(start), err == nil)
	}
	if err != nil {
		s.logger.Error(fmt.Sprintf("scheduler: %s failed", job), err, map[string]interface{}{"processed": cnt})
		return
	}
	s.logger.Info(fmt.Sprintf("scheduler: %s done", job), map[string]interface{}{"processed": cnt})
}
