package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/jarida/core"
	"github.com/trezcool/jarida/core/submission"
	"github.com/trezcool/jarida/core/user"
)

// role of a user towards a submission, lowest first
type access int

const (
	accessNone access = iota
	accessReviewer
	accessProduction
	accessAuthor
	accessEditor
)

func submissionAccess(ctx echo.Context, deps ServerDeps, s submission.Submission, usr user.User) (access, error) {
	switch {
	case usr.IsEditor():
		return accessEditor, nil
	case s.IsAuthor(usr):
		return accessAuthor, nil
	}
	if usr.IsProduction() && s.Status.In(submission.StatusInProduction, submission.StatusPublished) {
		return accessProduction, nil
	}
	assigned, err := deps.ReviewSvc.IsAssigned(ctx.Request().Context(), s.ID, usr.ID)
	if err != nil {
		return accessNone, errors.Wrap(err, "checking reviewer assignment")
	}
	if assigned {
		return accessReviewer, nil
	}
	return accessNone, nil
}

// loadSubmission returns the submission `:id` along with the context user and their access to it.
// Submissions the user may not see (below `min`) are reported as not found.
func loadSubmission(ctx echo.Context, deps ServerDeps, min access) (submission.Submission, user.User, access, error) {
	usr, err := getContextUser(ctx, deps.UserSvc)
	if err != nil {
		return submission.Submission{}, user.User{}, accessNone, err
	}
	s, err := deps.SubmissionSvc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		if core.IsNotFound(err) {
			return submission.Submission{}, user.User{}, accessNone, errHttpNotFound
		}
		return submission.Submission{}, user.User{}, accessNone, errors.Wrap(err, "finding submission by ID")
	}
	acc, err := submissionAccess(ctx, deps, s, usr)
	if err != nil {
		return submission.Submission{}, user.User{}, accessNone, err
	}
	if acc == accessNone {
		return submission.Submission{}, user.User{}, accessNone, errHttpNotFound
	}
	if acc < min {
		return submission.Submission{}, user.User{}, accessNone, errHttpForbidden
	}
	return s, usr, acc, nil
}
