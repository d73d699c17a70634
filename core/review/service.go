package review

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/jarida/core"
	"github.com/trezcool/jarida/core/notification"
	"github.com/trezcool/jarida/core/submission"
	"github.com/trezcool/jarida/core/user"
)

var (
	// errors
	ErrAssignmentNotFound = core.NewNotFoundError("assignment not found")
	ErrReviewNotFound     = core.NewNotFoundError("review not found")
	ErrConflictOfInterest = errors.New("reviewer has a conflict of interest")
	ErrAlreadyAssigned    = core.NewConflictError(errors.New("reviewer is already assigned to this submission"))
	ErrNotReviewable      = core.NewConflictError(errors.New("submission is not open for review"))
	ErrAssignmentState    = core.NewConflictError(errors.New("assignment does not allow this action in its current state"))
	ErrNotReviewer        = core.NewValidationError(nil, core.FieldError{Field: "reviewer_id", Error: "user is not an active reviewer"})
)

const reminderInterval = 24 * time.Hour

type (
	Repository interface {
		CreateAssignment(ctx context.Context, a Assignment) (Assignment, error)
		GetAssignment(ctx context.Context, id string) (Assignment, error)
		// QueryAssignments returns assignments ordered by creation date.
		QueryAssignments(ctx context.Context, filter AssignmentFilter) ([]Assignment, error)
		UpdateAssignment(ctx context.Context, a Assignment) (Assignment, error)
		CreateReview(ctx context.Context, r Review) (Review, error)
		GetReview(ctx context.Context, id string) (Review, error)
		// QueryReviews returns reviews ordered by submission date.
		QueryReviews(ctx context.Context, filter ReviewFilter) ([]Review, error)
		UpdateReview(ctx context.Context, r Review) (Review, error)
	}

	Service interface {
		Conflicts(ctx context.Context, s submission.Submission, reviewer user.User) ([]Conflict, error)
		// MatchReviewers ranks the reviewers who may review `s`; limit <= 0 returns every candidate.
		MatchReviewers(ctx context.Context, s submission.Submission, limit int) ([]Candidate, error)
		Invite(ctx context.Context, submissionID string, inv Invitation, editor user.User) (Assignment, error)
		Respond(ctx context.Context, assignmentID string, reviewer user.User, accept bool) (Assignment, error)
		Cancel(ctx context.Context, assignmentID string, editor user.User) (Assignment, error)
		// CancelOutstanding cancels the invited and accepted assignments of a round.
		CancelOutstanding(ctx context.Context, submissionID string, round int) (int, error)
		SubmitReview(ctx context.Context, assignmentID string, reviewer user.User, nr NewReview) (Review, error)
		RateReview(ctx context.Context, reviewID string, editor user.User, rating Rating) (Review, error)
		GetAssignment(ctx context.Context, id string) (Assignment, error)
		ListAssignments(ctx context.Context, filter AssignmentFilter) ([]Assignment, error)
		ListReviews(ctx context.Context, filter ReviewFilter) ([]Review, error)
		// IsAssigned reports whether the user was ever asked to review the submission (declined excluded).
		IsAssigned(ctx context.Context, submissionID, reviewerID string) (bool, error)
		// AssignedSubmissions returns the IDs of the submissions the user was asked to review (declined excluded).
		AssignedSubmissions(ctx context.Context, reviewerID string) ([]string, error)
		Summary(ctx context.Context, submissionID string, round int) (Summary, error)
		// SendReminders emails reviewers whose accepted assignments are due soon or overdue.
		SendReminders(ctx context.Context, now time.Time) (int, error)
	}

	service struct {
		repo          Repository
		submissionSvc submission.Service
		userSvc       user.Service
		notifier      notification.Service
		validate      *validator.Validate
		metrics       core.Metrics
		logger        core.Logger
		conf          core.ReviewConfig
	}
)

var _ Service = (*service)(nil)

func NewService(
	repo Repository,
	submissionSvc submission.Service,
	userSvc user.Service,
	notifier notification.Service,
	validate *validator.Validate,
	metrics core.Metrics,
	logger core.Logger,
	conf *core.Config,
) Service {
	return &service{
		repo:          repo,
		submissionSvc: submissionSvc,
		userSvc:       userSvc,
		notifier:      notifier,
		validate:      validate,
		metrics:       metrics,
		logger:        logger,
		conf:          conf.Review,
	}
}

func link(submissionID string) string { return "/submissions/" + submissionID }

// coauthored returns the non-draft submissions created within the co-authorship lookback window.
func (svc *service) coauthored(ctx context.Context, exclude string) ([]submission.Submission, error) {
	filter := &submission.QueryFilter{
		Statuses: []submission.Status{
			submission.StatusSubmitted, submission.StatusUnderReview, submission.StatusRevisionRequested,
			submission.StatusAccepted, submission.StatusRejected, submission.StatusInProduction, submission.StatusPublished,
		},
		CreatedFrom: core.Now().AddDate(-svc.conf.CoauthorLookbackYears, 0, 0),
	}
	subs, err := svc.submissionSvc.Query(ctx, filter, nil, core.Page{Limit: core.MaxPageLimit})
	if err != nil {
		return nil, errors.Wrap(err, "querying co-authored submissions")
	}
	out := subs[:0]
	for _, s := range subs {
		if s.ID != exclude {
			out = append(out, s)
		}
	}
	return out, nil
}

func (svc *service) Conflicts(ctx context.Context, s submission.Submission, reviewer user.User) ([]Conflict, error) {
	authorUsers, err := svc.submissionSvc.AuthorUsers(ctx, s)
	if err != nil {
		return nil, err
	}
	coauthored, err := svc.coauthored(ctx, s.ID)
	if err != nil {
		return nil, err
	}
	return DetectConflicts(ConflictInput{
		Reviewer:    reviewer,
		Authors:     s.Authors,
		AuthorUsers: authorUsers,
		Coauthored:  coauthored,
	}), nil
}

// stats computes the review history of every reviewer in `ids`.
func (svc *service) stats(ctx context.Context, ids []string) (map[string]ReviewerStats, error) {
	stats := make(map[string]ReviewerStats, len(ids))
	if len(ids) == 0 {
		return stats, nil
	}

	assignments, err := svc.repo.QueryAssignments(ctx, AssignmentFilter{ReviewerIDs: ids})
	if err != nil {
		return nil, errors.Wrap(err, "querying assignments")
	}
	now := core.Now()
	for _, a := range assignments {
		st := stats[a.ReviewerID]
		switch {
		case a.Status == AssignmentCompleted:
			st.Completed++
		case a.Status == AssignmentDeclined:
			st.Declined++
		case a.Overdue(now):
			st.Overdue++
		}
		if a.Status.In(ActiveStatuses...) {
			st.Active++
		}
		stats[a.ReviewerID] = st
	}

	reviews, err := svc.repo.QueryReviews(ctx, ReviewFilter{ReviewerIDs: ids})
	if err != nil {
		return nil, errors.Wrap(err, "querying reviews")
	}
	for _, r := range reviews {
		if r.Rating > 0 {
			st := stats[r.ReviewerID]
			st.RatingSum += r.Rating
			st.Rated++
			stats[r.ReviewerID] = st
		}
	}
	return stats, nil
}

func (svc *service) MatchReviewers(ctx context.Context, s submission.Submission, limit int) ([]Candidate, error) {
	reviewers, err := svc.userSvc.Query(ctx, &user.QueryFilter{Roles: []string{user.RoleReviewer}, IsActive: core.BoolPtr(true)}, nil)
	if err != nil {
		return nil, errors.Wrap(err, "querying reviewers")
	}

	current, err := svc.repo.QueryAssignments(ctx, AssignmentFilter{
		SubmissionID: s.ID,
		Round:        s.Round,
		Statuses:     []AssignmentStatus{AssignmentInvited, AssignmentAccepted, AssignmentCompleted},
	})
	if err != nil {
		return nil, errors.Wrap(err, "querying current assignments")
	}
	assigned := make(map[string]struct{}, len(current))
	for _, a := range current {
		assigned[a.ReviewerID] = struct{}{}
	}

	authorUsers, err := svc.submissionSvc.AuthorUsers(ctx, s)
	if err != nil {
		return nil, err
	}
	coauthored, err := svc.coauthored(ctx, s.ID)
	if err != nil {
		return nil, err
	}

	eligible := make([]user.User, 0, len(reviewers))
	ids := make([]string, 0, len(reviewers))
	for _, rev := range reviewers {
		if _, ok := assigned[rev.ID]; ok || s.IsAuthor(rev) {
			continue
		}
		eligible = append(eligible, rev)
		ids = append(ids, rev.ID)
	}
	stats, err := svc.stats(ctx, ids)
	if err != nil {
		return nil, err
	}

	cands := make([]Candidate, 0, len(eligible))
	for _, rev := range eligible {
		conflicts := DetectConflicts(ConflictInput{Reviewer: rev, Authors: s.Authors, AuthorUsers: authorUsers, Coauthored: coauthored})
		if HasHard(conflicts) {
			continue
		}
		st := stats[rev.ID]
		breakdown, matched := ScoreReviewer(s, rev, st)
		cands = append(cands, Candidate{
			Reviewer:          rev,
			Score:             round2(breakdown.Total()),
			Breakdown:         breakdown,
			MatchedKeywords:   matched,
			Conflicts:         soft(conflicts),
			ActiveAssignments: st.Active,
			Available:         svc.conf.MaxActiveAssignments <= 0 || st.Active < svc.conf.MaxActiveAssignments,
		})
	}

	SortCandidates(cands)
	if limit > 0 && len(cands) > limit {
		cands = cands[:limit]
	}
	return cands, nil
}

func (svc *service) Invite(ctx context.Context, submissionID string, inv Invitation, editor user.User) (Assignment, error) {
	if !editor.IsEditor() {
		return Assignment{}, core.ErrPermissionDenied
	}
	if err := svc.validate.Struct(inv); err != nil {
		return Assignment{}, err
	}

	s, err := svc.submissionSvc.Get(ctx, submissionID)
	if err != nil {
		return Assignment{}, err
	}
	if !s.Status.In(submission.StatusSubmitted, submission.StatusUnderReview) {
		return Assignment{}, ErrNotReviewable
	}

	reviewer, err := svc.userSvc.GetByID(ctx, inv.ReviewerID)
	if err != nil {
		if core.IsNotFound(err) {
			return Assignment{}, ErrNotReviewer
		}
		return Assignment{}, errors.Wrap(err, "getting reviewer")
	}
	if !reviewer.IsReviewer() || !reviewer.Active() {
		return Assignment{}, ErrNotReviewer
	}

	conflicts, err := svc.Conflicts(ctx, s, reviewer)
	if err != nil {
		return Assignment{}, err
	}
	if s.IsAuthor(reviewer) || HasHard(conflicts) {
		return Assignment{}, core.NewConflictError(ErrConflictOfInterest)
	}

	existing, err := svc.repo.QueryAssignments(ctx, AssignmentFilter{
		SubmissionID: s.ID,
		ReviewerIDs:  []string{reviewer.ID},
		Round:        s.Round,
		Statuses:     []AssignmentStatus{AssignmentInvited, AssignmentAccepted, AssignmentCompleted},
	})
	if err != nil {
		return Assignment{}, errors.Wrap(err, "querying assignments")
	}
	if len(existing) > 0 {
		return Assignment{}, ErrAlreadyAssigned
	}

	dueDays := inv.DueDays
	if dueDays <= 0 {
		dueDays = svc.conf.DueDays
	}
	now := core.Now()
	a, err := svc.repo.CreateAssignment(ctx, Assignment{
		SubmissionID: s.ID,
		ReviewerID:   reviewer.ID,
		Round:        s.Round,
		Status:       AssignmentInvited,
		InvitedBy:    editor.ID,
		DueAt:        now.AddDate(0, 0, dueDays),
		CreatedAt:    now,
	})
	if err != nil {
		return Assignment{}, errors.Wrap(err, "creating assignment")
	}

	if s.Status == submission.StatusSubmitted {
		if _, err = svc.submissionSvc.Transition(ctx, s, submission.StatusUnderReview, editor.ID, "first reviewer invited"); err != nil {
			return Assignment{}, err
		}
	}

	err = svc.notifier.Notify(ctx, []user.User{reviewer}, notification.Message{
		Kind:     notification.KindReviewInvitation,
		Title:    "Invitation to review",
		Body:     fmt.Sprintf("You are invited to review %q.", s.Title),
		Link:     "/assignments/" + a.ID,
		Template: "review_invitation",
		Data: map[string]interface{}{
			"SubmissionTitle": s.Title,
			"Abstract":        s.Abstract,
			"DueAt":           a.DueAt.Format("2006-01-02"),
		},
	})
	if err != nil {
		svc.logger.Error("review.Invite: notifying reviewer", err)
	}
	return a, nil
}

func (svc *service) Respond(ctx context.Context, assignmentID string, reviewer user.User, accept bool) (Assignment, error) {
	a, err := svc.repo.GetAssignment(ctx, assignmentID)
	if err != nil {
		return Assignment{}, err
	}
	if a.ReviewerID != reviewer.ID {
		return Assignment{}, core.ErrPermissionDenied
	}
	if a.Status != AssignmentInvited {
		return Assignment{}, ErrAssignmentState
	}

	a.Status = AssignmentDeclined
	if accept {
		a.Status = AssignmentAccepted
	}
	a.RespondedAt = core.Now()
	if a, err = svc.repo.UpdateAssignment(ctx, a); err != nil {
		return Assignment{}, errors.Wrap(err, "updating assignment")
	}

	if inviter, err := svc.userSvc.GetByID(ctx, a.InvitedBy); err == nil {
		verb := "declined"
		if accept {
			verb = "accepted"
		}
		err = svc.notifier.Notify(ctx, []user.User{inviter}, notification.Message{
			Kind:    notification.KindReviewResponse,
			Title:   "Review invitation " + verb,
			Body:    fmt.Sprintf("%s %s to review.", reviewer.Name, verb),
			Link:    link(a.SubmissionID),
			NoEmail: accept,
		})
		if err != nil {
			svc.logger.Error("review.Respond: notifying editor", err)
		}
	}
	return a, nil
}

func (svc *service) Cancel(ctx context.Context, assignmentID string, editor user.User) (Assignment, error) {
	if !editor.IsEditor() {
		return Assignment{}, core.ErrPermissionDenied
	}
	a, err := svc.repo.GetAssignment(ctx, assignmentID)
	if err != nil {
		return Assignment{}, err
	}
	if !a.Status.In(ActiveStatuses...) {
		return Assignment{}, ErrAssignmentState
	}
	a.Status = AssignmentCancelled
	return svc.repo.UpdateAssignment(ctx, a)
}

func (svc *service) CancelOutstanding(ctx context.Context, submissionID string, round int) (int, error) {
	outstanding, err := svc.repo.QueryAssignments(ctx, AssignmentFilter{
		SubmissionID: submissionID,
		Round:        round,
		Statuses:     ActiveStatuses,
	})
	if err != nil {
		return 0, errors.Wrap(err, "querying outstanding assignments")
	}
	for _, a := range outstanding {
		a.Status = AssignmentCancelled
		if _, err = svc.repo.UpdateAssignment(ctx, a); err != nil {
			return 0, errors.Wrap(err, "cancelling assignment")
		}
	}
	return len(outstanding), nil
}

func (svc *service) SubmitReview(ctx context.Context, assignmentID string, reviewer user.User, nr NewReview) (Review, error) {
	a, err := svc.repo.GetAssignment(ctx, assignmentID)
	if err != nil {
		return Review{}, err
	}
	if a.ReviewerID != reviewer.ID {
		return Review{}, core.ErrPermissionDenied
	}
	if a.Status != AssignmentAccepted {
		return Review{}, ErrAssignmentState
	}
	if err = nr.Validate(svc.validate); err != nil {
		return Review{}, err
	}

	now := core.Now()
	r, err := svc.repo.CreateReview(ctx, Review{
		AssignmentID:     a.ID,
		SubmissionID:     a.SubmissionID,
		ReviewerID:       reviewer.ID,
		Round:            a.Round,
		Recommendation:   nr.Recommendation,
		Scores:           nr.Scores,
		CommentsToAuthor: nr.CommentsToAuthor,
		CommentsToEditor: nr.CommentsToEditor,
		SubmittedAt:      now,
	})
	if err != nil {
		return Review{}, errors.Wrap(err, "creating review")
	}

	a.Status = AssignmentCompleted
	a.CompletedAt = now
	if _, err = svc.repo.UpdateAssignment(ctx, a); err != nil {
		return Review{}, errors.Wrap(err, "completing assignment")
	}
	svc.metrics.ReviewCompleted()

	svc.notifyReviewSubmitted(ctx, a, reviewer)
	return r, nil
}

func (svc *service) notifyReviewSubmitted(ctx context.Context, a Assignment, reviewer user.User) {
	s, err := svc.submissionSvc.Get(ctx, a.SubmissionID)
	if err != nil {
		svc.logger.Error("review.SubmitReview: getting submission", err)
		return
	}
	editorID := s.HandlingEditorID
	if editorID == "" {
		editorID = a.InvitedBy
	}
	editor, err := svc.userSvc.GetByID(ctx, editorID)
	if err != nil {
		svc.logger.Error("review.SubmitReview: getting editor", err)
		return
	}
	err = svc.notifier.Notify(ctx, []user.User{editor}, notification.Message{
		Kind:     notification.KindReviewSubmitted,
		Title:    "Review submitted",
		Body:     fmt.Sprintf("%s submitted a review of %q.", reviewer.Name, s.Title),
		Link:     link(s.ID),
		Template: "review_submitted",
		Data:     map[string]interface{}{"SubmissionTitle": s.Title, "Reviewer": reviewer.Name},
	})
	if err != nil {
		svc.logger.Error("review.SubmitReview: notifying editor", err)
	}
}

func (svc *service) RateReview(ctx context.Context, reviewID string, editor user.User, rating Rating) (Review, error) {
	if !editor.IsEditor() {
		return Review{}, core.ErrPermissionDenied
	}
	if err := svc.validate.Struct(rating); err != nil {
		return Review{}, err
	}
	r, err := svc.repo.GetReview(ctx, reviewID)
	if err != nil {
		return Review{}, err
	}
	r.Rating = rating.Rating
	return svc.repo.UpdateReview(ctx, r)
}

func (svc *service) GetAssignment(ctx context.Context, id string) (Assignment, error) {
	return svc.repo.GetAssignment(ctx, id)
}

func (svc *service) ListAssignments(ctx context.Context, filter AssignmentFilter) ([]Assignment, error) {
	return svc.repo.QueryAssignments(ctx, filter)
}

func (svc *service) ListReviews(ctx context.Context, filter ReviewFilter) ([]Review, error) {
	return svc.repo.QueryReviews(ctx, filter)
}

func (svc *service) IsAssigned(ctx context.Context, submissionID, reviewerID string) (bool, error) {
	assignments, err := svc.repo.QueryAssignments(ctx, AssignmentFilter{
		SubmissionID: submissionID,
		ReviewerIDs:  []string{reviewerID},
		Statuses:     visibleStatuses,
	})
	if err != nil {
		return false, err
	}
	return len(assignments) > 0, nil
}

func (svc *service) AssignedSubmissions(ctx context.Context, reviewerID string) ([]string, error) {
	assignments, err := svc.repo.QueryAssignments(ctx, AssignmentFilter{
		ReviewerIDs: []string{reviewerID},
		Statuses:    visibleStatuses,
	})
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(assignments))
	for _, a := range assignments {
		if !core.StringInSlice(a.SubmissionID, ids) {
			ids = append(ids, a.SubmissionID)
		}
	}
	return ids, nil
}

func (svc *service) Summary(ctx context.Context, submissionID string, round int) (Summary, error) {
	s, err := svc.submissionSvc.Get(ctx, submissionID)
	if err != nil {
		return Summary{}, err
	}
	if round <= 0 {
		round = s.Round
	}

	reviews, err := svc.repo.QueryReviews(ctx, ReviewFilter{SubmissionID: s.ID, Round: round})
	if err != nil {
		return Summary{}, errors.Wrap(err, "querying reviews")
	}
	pending, err := svc.repo.QueryAssignments(ctx, AssignmentFilter{SubmissionID: s.ID, Round: round, Statuses: ActiveStatuses})
	if err != nil {
		return Summary{}, errors.Wrap(err, "querying pending assignments")
	}
	return Summarize(s.ID, round, reviews, len(pending)), nil
}

func (svc *service) SendReminders(ctx context.Context, now time.Time) (int, error) {
	now = now.UTC()
	accepted, err := svc.repo.QueryAssignments(ctx, AssignmentFilter{Statuses: []AssignmentStatus{AssignmentAccepted}})
	if err != nil {
		return 0, errors.Wrap(err, "querying accepted assignments")
	}

	horizon := now.AddDate(0, 0, svc.conf.ReminderLeadDays)
	var sent int
	for _, a := range accepted {
		if a.DueAt.IsZero() || a.DueAt.After(horizon) {
			continue
		}
		if !a.RemindedAt.IsZero() && now.Sub(a.RemindedAt) < reminderInterval {
			continue
		}

		reviewer, err := svc.userSvc.GetByID(ctx, a.ReviewerID)
		if err != nil {
			svc.logger.Error("review.SendReminders: getting reviewer "+a.ReviewerID, err)
			continue
		}
		s, err := svc.submissionSvc.Get(ctx, a.SubmissionID)
		if err != nil {
			svc.logger.Error("review.SendReminders: getting submission "+a.SubmissionID, err)
			continue
		}

		title := "Review due soon"
		if a.Overdue(now) {
			title = "Review overdue"
		}
		err = svc.notifier.Notify(ctx, []user.User{reviewer}, notification.Message{
			Kind:     notification.KindReviewReminder,
			Title:    title,
			Body:     fmt.Sprintf("Your review of %q is due on %s.", s.Title, a.DueAt.Format("2006-01-02")),
			Link:     "/assignments/" + a.ID,
			Template: "review_reminder",
			Data: map[string]interface{}{
				"SubmissionTitle": s.Title,
				"DueAt":           a.DueAt.Format("2006-01-02"),
				"Overdue":         a.Overdue(now),
			},
		})
		if err != nil {
			svc.logger.Error("review.SendReminders: notifying reviewer", err)
			continue
		}

		a.RemindedAt = now
		if _, err = svc.repo.UpdateAssignment(ctx, a); err != nil {
			return sent, errors.Wrap(err, "updating assignment")
		}
		sent++
	}
	return sent, nil
}
