package echoapi

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/jarida/core"
	"github.com/trezcool/jarida/core/publication"
)

const dateLayout = "2006-01-02"

type publicationApi struct {
	deps ServerDeps
}

func registerPublicationAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := publicationApi{deps: deps}
	editorOnly := editorMiddleware(deps.UserSvc)

	g.GET("/issues", api.listIssues)
	g.GET("/issues/:id", api.retrieveIssue)
	g.POST("/issues", api.createIssue, jwt, editorOnly)
	g.POST("/issues/:id/publish", api.publishIssue, jwt, editorOnly)

	g.POST("/submissions/:id/publish", api.publish, jwt, editorOnly)

	g.GET("/articles", api.listArticles)
	g.GET("/articles/:id", api.retrieveArticle)
	g.GET("/articles/:id/metadata", api.metadata)
	g.POST("/articles/:id/deposit", api.redeposit, jwt, editorOnly)
}

func (api *publicationApi) svc() publication.Service { return api.deps.PublicationSvc }

func (api *publicationApi) createIssue(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.deps.UserSvc)
	if err != nil {
		return err
	}
	var data publication.NewIssue
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewIssue")
	}

	issue, err := api.svc().CreateIssue(ctx.Request().Context(), data, usr)
	if err != nil {
		return errors.Wrap(err, "creating issue")
	}
	return ctx.JSON(http.StatusCreated, issue)
}

func (api *publicationApi) listIssues(ctx echo.Context) error {
	issues, err := api.svc().ListIssues(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "listing issues")
	}
	if issues == nil {
		issues = []publication.Issue{}
	}
	return ctx.JSON(http.StatusOK, issues)
}

func (api *publicationApi) retrieveIssue(ctx echo.Context) error {
	issue, err := api.svc().GetIssue(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting issue")
	}
	return ctx.JSON(http.StatusOK, issue)
}

func (api *publicationApi) publishIssue(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.deps.UserSvc)
	if err != nil {
		return err
	}
	issue, err := api.svc().PublishIssue(ctx.Request().Context(), ctx.Param("id"), usr)
	if err != nil {
		return errors.Wrap(err, "publishing issue")
	}
	return ctx.JSON(http.StatusOK, issue)
}

func (api *publicationApi) publish(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.deps.UserSvc)
	if err != nil {
		return err
	}
	var data publication.PublishArticle
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PublishArticle")
	}

	a, err := api.svc().Publish(ctx.Request().Context(), ctx.Param("id"), data, usr)
	if err != nil {
		return errors.Wrap(err, "publishing article")
	}
	return ctx.JSON(http.StatusCreated, a)
}

// bindArticleFilter reads `?id=&issue=&deposit_status=&from=&until=&search=`; dates are YYYY-MM-DD.
func bindArticleFilter(ctx echo.Context) (publication.ArticleFilter, error) {
	filter := publication.ArticleFilter{
		IDs:           ctx.QueryParams()["id"],
		IssueID:       ctx.QueryParam("issue"),
		DepositStatus: publication.DepositStatus(ctx.QueryParam("deposit_status")),
		Search:        ctx.QueryParam("search"),
	}
	for param, dst := range map[string]*time.Time{"from": &filter.PublishedFrom, "until": &filter.PublishedUntil} {
		val := ctx.QueryParam(param)
		if val == "" {
			continue
		}
		t, err := time.Parse(dateLayout, val)
		if err != nil {
			return filter, core.NewValidationError(nil, core.FieldError{Field: param, Error: "expected a YYYY-MM-DD date"})
		}
		*dst = t
	}
	return filter, nil
}

func (api *publicationApi) listArticles(ctx echo.Context) error {
	filter, err := bindArticleFilter(ctx)
	if err != nil {
		return err
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	articles, err := api.svc().ListArticles(ctx.Request().Context(), filter, ordering.Orderings, bindPage(ctx))
	if err != nil {
		return errors.Wrap(err, "listing articles")
	}
	if articles == nil {
		articles = []publication.Article{}
	}
	return ctx.JSON(http.StatusOK, articles)
}

func (api *publicationApi) retrieveArticle(ctx echo.Context) error {
	a, err := api.svc().GetArticle(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting article")
	}
	return ctx.JSON(http.StatusOK, a)
}

func (api *publicationApi) metadata(ctx echo.Context) error {
	out, ct, err := api.svc().Metadata(ctx.Request().Context(), ctx.Param("id"), ctx.QueryParam("format"))
	if err != nil {
		return errors.Wrap(err, "exporting metadata")
	}
	return ctx.Blob(http.StatusOK, ct, out)
}

func (api *publicationApi) redeposit(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.deps.UserSvc)
	if err != nil {
		return err
	}
	a, err := api.svc().Redeposit(ctx.Request().Context(), ctx.Param("id"), usr)
	if err != nil {
		return errors.Wrap(err, "redepositing article")
	}
	return ctx.JSON(http.StatusOK, a)
}

// oai serves the OAI-PMH provider; protocol errors are part of a 200 response.
func (api *publicationApi) oai(ctx echo.Context) error {
	args := ctx.QueryParams()
	if ctx.Request().Method == http.MethodPost {
		form, err := ctx.FormParams()
		if err != nil {
			return core.NewValidationError(errors.Wrap(err, "parsing OAI-PMH form"))
		}
		args = form
	}

	out, err := api.svc().OAI(ctx.Request().Context(), args)
	if err != nil {
		return errors.Wrap(err, "handling OAI-PMH request")
	}
	return ctx.Blob(http.StatusOK, echo.MIMETextXMLCharsetUTF8, out)
}
