package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/jarida/core/decision"
)

type decisionApi struct {
	deps ServerDeps
	svc  decision.Service
}

func registerDecisionAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := decisionApi{deps: deps, svc: deps.DecisionSvc}

	g.POST("/submissions/:id/decisions", api.create, jwt, editorMiddleware(deps.UserSvc))
	g.GET("/submissions/:id/decisions", api.list, jwt)
}

func (api *decisionApi) create(ctx echo.Context) error {
	s, usr, _, err := loadSubmission(ctx, api.deps, accessEditor)
	if err != nil {
		return err
	}
	var data decision.NewDecision
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewDecision")
	}

	d, err := api.svc.Make(ctx.Request().Context(), s.ID, usr, data)
	if err != nil {
		return errors.Wrap(err, "making decision")
	}
	return ctx.JSON(http.StatusCreated, d)
}

// list shows the decisions to the editors and the authors of the submission.
func (api *decisionApi) list(ctx echo.Context) error {
	s, _, _, err := loadSubmission(ctx, api.deps, accessAuthor)
	if err != nil {
		return err
	}
	decisions, err := api.svc.List(ctx.Request().Context(), s.ID)
	if err != nil {
		return errors.Wrap(err, "listing decisions")
	}
	if decisions == nil {
		decisions = []decision.Decision{}
	}
	return ctx.JSON(http.StatusOK, decisions)
}
