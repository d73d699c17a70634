package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/jarida/core/production"
)

type productionApi struct {
	deps ServerDeps
	svc  production.Service
}

func registerProductionAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := productionApi{deps: deps, svc: deps.ProductionSvc}

	g.POST("/submissions/:id/production", api.start, jwt, editorMiddleware(deps.UserSvc))
	g.GET("/submissions/:id/production", api.retrieve, jwt)
	g.POST("/submissions/:id/production/advance", api.advance, jwt)
	g.POST("/submissions/:id/production/assign", api.assign, jwt, editorMiddleware(deps.UserSvc))
}

func (api *productionApi) start(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.deps.UserSvc)
	if err != nil {
		return err
	}
	job, err := api.svc.StartProduction(ctx.Request().Context(), ctx.Param("id"), usr)
	if err != nil {
		return errors.Wrap(err, "starting production")
	}
	return ctx.JSON(http.StatusCreated, job)
}

func (api *productionApi) retrieve(ctx echo.Context) error {
	s, _, _, err := loadSubmission(ctx, api.deps, accessProduction)
	if err != nil {
		return err
	}
	job, err := api.svc.GetJob(ctx.Request().Context(), s.ID)
	if err != nil {
		return errors.Wrap(err, "getting production job")
	}
	return ctx.JSON(http.StatusOK, job)
}

func (api *productionApi) advance(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.deps.UserSvc)
	if err != nil {
		return err
	}
	var data production.Advance
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Advance")
	}

	job, err := api.svc.Advance(ctx.Request().Context(), ctx.Param("id"), usr, data)
	if err != nil {
		return errors.Wrap(err, "advancing production")
	}
	return ctx.JSON(http.StatusOK, job)
}

func (api *productionApi) assign(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.deps.UserSvc)
	if err != nil {
		return err
	}
	var data production.Assign
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Assign")
	}

	job, err := api.svc.Assign(ctx.Request().Context(), ctx.Param("id"), usr, data)
	if err != nil {
		return errors.Wrap(err, "assigning production job")
	}
	return ctx.JSON(http.StatusOK, job)
}
