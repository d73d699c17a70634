package echoapi

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/jarida/core/review"
)

const defaultCandidatesLimit = 20

type reviewApi struct {
	deps ServerDeps
	svc  review.Service
}

func registerReviewAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := reviewApi{deps: deps, svc: deps.ReviewSvc}
	editorOnly := editorMiddleware(deps.UserSvc)

	g.GET("/submissions/:id/reviewer-candidates", api.candidates, jwt, editorOnly)
	g.POST("/submissions/:id/assignments", api.invite, jwt, editorOnly)
	g.GET("/submissions/:id/assignments", api.submissionAssignments, jwt, editorOnly)
	g.GET("/submissions/:id/reviews", api.submissionReviews, jwt)
	g.GET("/submissions/:id/review-summary", api.summary, jwt, editorOnly)

	g.GET("/assignments", api.myAssignments, jwt)
	g.POST("/assignments/:id/respond", api.respond, jwt)
	g.POST("/assignments/:id/cancel", api.cancel, jwt, editorOnly)
	g.POST("/assignments/:id/review", api.submitReview, jwt)

	g.POST("/reviews/:id/rating", api.rate, jwt, editorOnly)
}

func (api *reviewApi) candidates(ctx echo.Context) error {
	s, _, _, err := loadSubmission(ctx, api.deps, accessEditor)
	if err != nil {
		return err
	}
	limit := defaultCandidatesLimit
	if v, err := strconv.Atoi(ctx.QueryParam(limitParam)); err == nil {
		limit = v
	}

	candidates, err := api.svc.MatchReviewers(ctx.Request().Context(), s, limit)
	if err != nil {
		return errors.Wrap(err, "matching reviewers")
	}
	if candidates == nil {
		candidates = []review.Candidate{}
	}
	return ctx.JSON(http.StatusOK, candidates)
}

func (api *reviewApi) invite(ctx echo.Context) error {
	s, usr, _, err := loadSubmission(ctx, api.deps, accessEditor)
	if err != nil {
		return err
	}
	var data review.Invitation
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Invitation")
	}

	a, err := api.svc.Invite(ctx.Request().Context(), s.ID, data, usr)
	if err != nil {
		return errors.Wrap(err, "inviting reviewer")
	}
	return ctx.JSON(http.StatusCreated, a)
}

func (api *reviewApi) submissionAssignments(ctx echo.Context) error {
	s, _, _, err := loadSubmission(ctx, api.deps, accessEditor)
	if err != nil {
		return err
	}
	filter := review.AssignmentFilter{SubmissionID: s.ID}
	if round, err := strconv.Atoi(ctx.QueryParam("round")); err == nil {
		filter.Round = round
	}

	assignments, err := api.svc.ListAssignments(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "listing assignments")
	}
	if assignments == nil {
		assignments = []review.Assignment{}
	}
	return ctx.JSON(http.StatusOK, assignments)
}

// submissionReviews lists all the reviews to editors, their own to reviewers,
// and the reviews of decided rounds (without confidential comments) to authors.
func (api *reviewApi) submissionReviews(ctx echo.Context) error {
	s, usr, acc, err := loadSubmission(ctx, api.deps, accessReviewer)
	if err != nil {
		return err
	}
	filter := review.ReviewFilter{SubmissionID: s.ID}
	if round, err := strconv.Atoi(ctx.QueryParam("round")); err == nil {
		filter.Round = round
	}
	if acc < accessAuthor {
		filter.ReviewerIDs = []string{usr.ID}
	}

	reviews, err := api.svc.ListReviews(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "listing reviews")
	}

	out := make([]review.Review, 0, len(reviews))
	for _, r := range reviews {
		if acc == accessAuthor {
			if s.DecidedAt.IsZero() || r.SubmittedAt.After(s.DecidedAt) {
				continue // not yet decided upon
			}
			r = r.ForAuthors()
		}
		out = append(out, r)
	}
	return ctx.JSON(http.StatusOK, out)
}

func (api *reviewApi) summary(ctx echo.Context) error {
	s, _, _, err := loadSubmission(ctx, api.deps, accessEditor)
	if err != nil {
		return err
	}
	round := s.Round
	if v, err := strconv.Atoi(ctx.QueryParam("round")); err == nil {
		round = v
	}

	summary, err := api.svc.Summary(ctx.Request().Context(), s.ID, round)
	if err != nil {
		return errors.Wrap(err, "summarizing reviews")
	}
	return ctx.JSON(http.StatusOK, summary)
}

func (api *reviewApi) myAssignments(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.deps.UserSvc)
	if err != nil {
		return err
	}
	filter := review.AssignmentFilter{ReviewerIDs: []string{usr.ID}}
	for _, st := range ctx.QueryParams()["status"] {
		filter.Statuses = append(filter.Statuses, review.AssignmentStatus(st))
	}

	assignments, err := api.svc.ListAssignments(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "listing assignments")
	}
	if assignments == nil {
		assignments = []review.Assignment{}
	}
	return ctx.JSON(http.StatusOK, assignments)
}

func (api *reviewApi) respond(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.deps.UserSvc)
	if err != nil {
		return err
	}
	var data RespondRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to RespondRequest")
	}
	if err = api.deps.Validate.Struct(data); err != nil {
		return err
	}

	a, err := api.svc.Respond(ctx.Request().Context(), ctx.Param("id"), usr, *data.Accept)
	if err != nil {
		return errors.Wrap(err, "responding to invitation")
	}
	return ctx.JSON(http.StatusOK, a)
}

func (api *reviewApi) cancel(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.deps.UserSvc)
	if err != nil {
		return err
	}
	a, err := api.svc.Cancel(ctx.Request().Context(), ctx.Param("id"), usr)
	if err != nil {
		return errors.Wrap(err, "cancelling assignment")
	}
	return ctx.JSON(http.StatusOK, a)
}

func (api *reviewApi) submitReview(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.deps.UserSvc)
	if err != nil {
		return err
	}
	var data review.NewReview
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewReview")
	}

	r, err := api.svc.SubmitReview(ctx.Request().Context(), ctx.Param("id"), usr, data)
	if err != nil {
		return errors.Wrap(err, "submitting review")
	}
	return ctx.JSON(http.StatusCreated, r)
}

func (api *reviewApi) rate(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.deps.UserSvc)
	if err != nil {
		return err
	}
	var data review.Rating
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Rating")
	}

	r, err := api.svc.RateReview(ctx.Request().Context(), ctx.Param("id"), usr, data)
	if err != nil {
		return errors.Wrap(err, "rating review")
	}
	return ctx.JSON(http.StatusOK, r)
}

type RespondRequest struct {
	Accept *bool `json:"accept" validate:"required"`
}
