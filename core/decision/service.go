package decision

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/jarida/core"
	"github.com/trezcool/jarida/core/notification"
	"github.com/trezcool/jarida/core/review"
	"github.com/trezcool/jarida/core/submission"
	"github.com/trezcool/jarida/core/user"
)

var titles = map[Kind]string{
	KindAccept:        "Your submission has been accepted",
	KindMinorRevision: "Minor revisions requested",
	KindMajorRevision: "Major revisions requested",
	KindReject:        "Decision on your submission",
	KindDeskReject:    "Decision on your submission",
}

type (
	Repository interface {
		CreateDecision(ctx context.Context, d Decision) (Decision, error)
		// QueryDecisions returns the decisions of a submission, oldest first.
		QueryDecisions(ctx context.Context, submissionID string) ([]Decision, error)
	}

	Service interface {
		Make(ctx context.Context, submissionID string, editor user.User, nd NewDecision) (Decision, error)
		List(ctx context.Context, submissionID string) ([]Decision, error)
	}

	service struct {
		repo          Repository
		submissionSvc submission.Service
		reviewSvc     review.Service
		notifier      notification.Service
		validate      *validator.Validate
		logger        core.Logger
	}
)

var _ Service = (*service)(nil)

func NewService(
	repo Repository,
	submissionSvc submission.Service,
	reviewSvc review.Service,
	notifier notification.Service,
	validate *validator.Validate,
	logger core.Logger,
) Service {
	return &service{
		repo:          repo,
		submissionSvc: submissionSvc,
		reviewSvc:     reviewSvc,
		notifier:      notifier,
		validate:      validate,
		logger:        logger,
	}
}

func (svc *service) Make(ctx context.Context, submissionID string, editor user.User, nd NewDecision) (Decision, error) {
	if !editor.IsEditor() {
		return Decision{}, core.ErrPermissionDenied
	}
	if err := nd.Validate(svc.validate); err != nil {
		return Decision{}, err
	}

	s, err := svc.submissionSvc.Get(ctx, submissionID)
	if err != nil {
		return Decision{}, err
	}
	if s.Status != nd.Kind.RequiredStatus() {
		return Decision{}, core.NewConflictError(errors.Wrap(submission.ErrInvalidTransition,
			fmt.Sprintf("%s decisions require a submission %s", nd.Kind, nd.Kind.RequiredStatus())))
	}

	note := "decision: " + string(nd.Kind)
	if s, err = svc.submissionSvc.Transition(ctx, s, nd.Kind.Status(), editor.ID, note); err != nil {
		return Decision{}, err
	}

	d, err := svc.repo.CreateDecision(ctx, Decision{
		SubmissionID: s.ID,
		EditorID:     editor.ID,
		Round:        s.Round,
		Kind:         nd.Kind,
		Comments:     nd.Comments,
		CreatedAt:    core.Now(),
	})
	if err != nil {
		return Decision{}, errors.Wrap(err, "creating decision")
	}

	if _, err = svc.reviewSvc.CancelOutstanding(ctx, s.ID, s.Round); err != nil {
		return Decision{}, err
	}

	svc.notifyAuthors(ctx, s, d)
	return d, nil
}

// Letter is the decision letter sent to the authors: the editor's comments followed by the reviewers' comments.
func Letter(d Decision, reviews []review.Review) string {
	var b strings.Builder
	if d.Comments != "" {
		b.WriteString(d.Comments)
		b.WriteString("\n")
	}
	for i, r := range reviews {
		fmt.Fprintf(&b, "\nReviewer %d:\n%s\n", i+1, r.ForAuthors().CommentsToAuthor)
	}
	return strings.TrimSpace(b.String())
}

func (svc *service) notifyAuthors(ctx context.Context, s submission.Submission, d Decision) {
	reviews, err := svc.reviewSvc.ListReviews(ctx, review.ReviewFilter{SubmissionID: s.ID, Round: d.Round})
	if err != nil {
		svc.logger.Error("decision.Make: listing reviews", err)
	}
	authors, err := svc.submissionSvc.AuthorUsers(ctx, s)
	if err != nil {
		svc.logger.Error("decision.Make: getting authors", err)
		return
	}

	letter := Letter(d, reviews)
	err = svc.notifier.Notify(ctx, authors, notification.Message{
		Kind:     notification.KindDecision,
		Title:    titles[d.Kind],
		Body:     letter,
		Link:     "/submissions/" + s.ID,
		Template: "decision",
		Data: map[string]interface{}{
			"SubmissionTitle": s.Title,
			"Decision":        strings.ReplaceAll(string(d.Kind), "_", " "),
			"Letter":          letter,
		},
	})
	if err != nil {
		svc.logger.Error("decision.Make: notifying authors", err)
	}
}

func (svc *service) List(ctx context.Context, submissionID string) ([]Decision, error) {
	if _, err := svc.submissionSvc.Get(ctx, submissionID); err != nil {
		return nil, err
	}
	return svc.repo.QueryDecisions(ctx, submissionID)
}
