package echoapi

import (
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/jarida/core"
	"github.com/trezcool/jarida/core/file"
	"github.com/trezcool/jarida/core/production"
	"github.com/trezcool/jarida/core/submission"
)

type submissionApi struct {
	deps ServerDeps
	svc  submission.Service
}

func registerSubmissionAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := submissionApi{deps: deps, svc: deps.SubmissionSvc}

	// sub-resources of a submission are registered by their own APIs, hence no (catch-all) group here
	g.POST("/submissions", api.create, jwt)
	g.GET("/submissions", api.query, jwt)
	g.GET("/submissions/:id", api.retrieve, jwt)
	g.PUT("/submissions/:id", api.update, jwt)
	g.POST("/submissions/:id/submit", api.submit, jwt)
	g.POST("/submissions/:id/withdraw", api.withdraw, jwt)
	g.POST("/submissions/:id/editor", api.assignEditor, jwt, editorMiddleware(deps.UserSvc))
	g.GET("/submissions/:id/history", api.history, jwt)
	g.GET("/submissions/:id/quality", api.quality, jwt)
	g.POST("/submissions/:id/files", api.upload, jwt)
	g.GET("/submissions/:id/files", api.listFiles, jwt)
	g.GET("/files/:id/download", api.download, jwt)
}

func (api *submissionApi) create(ctx echo.Context) error {
	var data submission.NewSubmission
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSubmission")
	}
	usr, err := getContextUser(ctx, api.deps.UserSvc)
	if err != nil {
		return err
	}

	s, err := api.svc.Create(ctx.Request().Context(), data, usr)
	if err != nil {
		return errors.Wrap(err, "creating submission")
	}
	return ctx.JSON(http.StatusCreated, s)
}

func (api *submissionApi) query(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.deps.UserSvc)
	if err != nil {
		return err
	}
	filter := new(submission.QueryFilter)
	if err = ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []submission.Submission{})
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	if !usr.IsEditor() {
		if filter.AssignedIDs, err = api.deps.ReviewSvc.AssignedSubmissions(ctx.Request().Context(), usr.ID); err != nil {
			return errors.Wrap(err, "listing assigned submissions")
		}
	}
	subs, err := api.svc.Visible(ctx.Request().Context(), usr, filter, ordering.Orderings, bindPage(ctx))
	if err != nil {
		return errors.Wrap(err, "querying submissions")
	}
	if subs == nil {
		subs = []submission.Submission{}
	}
	return ctx.JSON(http.StatusOK, subs)
}

func (api *submissionApi) retrieve(ctx echo.Context) error {
	s, _, _, err := loadSubmission(ctx, api.deps, accessReviewer)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *submissionApi) update(ctx echo.Context) error {
	s, usr, _, err := loadSubmission(ctx, api.deps, accessAuthor)
	if err != nil {
		return err
	}
	var data submission.UpdateSubmission
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateSubmission")
	}

	s, err = api.svc.Update(ctx.Request().Context(), s, data, usr)
	if err != nil {
		return errors.Wrap(err, "updating submission")
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *submissionApi) submit(ctx echo.Context) error {
	s, usr, _, err := loadSubmission(ctx, api.deps, accessAuthor)
	if err != nil {
		return err
	}
	s, err = api.svc.Submit(ctx.Request().Context(), s.ID, usr)
	if err != nil {
		return errors.Wrap(err, "submitting submission")
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *submissionApi) withdraw(ctx echo.Context) error {
	s, usr, _, err := loadSubmission(ctx, api.deps, accessAuthor)
	if err != nil {
		return err
	}
	var data NoteRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NoteRequest")
	}
	if err = api.deps.Validate.Struct(data); err != nil {
		return err
	}

	s, err = api.svc.Withdraw(ctx.Request().Context(), s.ID, usr, data.Note)
	if err != nil {
		return errors.Wrap(err, "withdrawing submission")
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *submissionApi) assignEditor(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.deps.UserSvc)
	if err != nil {
		return err
	}
	var data AssignEditorRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AssignEditorRequest")
	}
	if err = api.deps.Validate.Struct(data); err != nil {
		return err
	}

	s, err := api.svc.AssignEditor(ctx.Request().Context(), ctx.Param("id"), data.EditorID, usr)
	if err != nil {
		return errors.Wrap(err, "assigning editor")
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *submissionApi) history(ctx echo.Context) error {
	s, _, _, err := loadSubmission(ctx, api.deps, accessAuthor)
	if err != nil {
		return err
	}
	changes, err := api.svc.History(ctx.Request().Context(), s.ID)
	if err != nil {
		return errors.Wrap(err, "getting submission history")
	}
	if changes == nil {
		changes = []submission.StatusChange{}
	}
	return ctx.JSON(http.StatusOK, changes)
}

func (api *submissionApi) quality(ctx echo.Context) error {
	s, _, _, err := loadSubmission(ctx, api.deps, accessAuthor)
	if err != nil {
		return err
	}
	score, err := api.svc.Quality(ctx.Request().Context(), s)
	if err != nil {
		return errors.Wrap(err, "scoring submission")
	}
	return ctx.JSON(http.StatusOK, score)
}

// upload expects a multipart form with a `kind` field and a `file` part.
func (api *submissionApi) upload(ctx echo.Context) error {
	s, usr, _, err := loadSubmission(ctx, api.deps, accessReviewer)
	if err != nil {
		return err
	}
	kind := file.Kind(core.CleanString(ctx.FormValue("kind"), true /* lower */))
	if !kind.Valid() {
		return core.NewValidationError(nil, core.FieldError{Field: "kind", Error: "invalid file kind"})
	}
	fh, err := ctx.FormFile("file")
	if err != nil {
		return core.NewValidationError(nil, core.FieldError{Field: "file", Error: "a file is required"})
	}
	f, err := fh.Open()
	if err != nil {
		return errors.Wrap(err, "opening uploaded file")
	}
	defer f.Close()

	v, err := api.deps.ProductionSvc.Upload(ctx.Request().Context(), production.Upload{
		SubmissionID: s.ID,
		Kind:         kind,
		Filename:     fh.Filename,
		ContentType:  fh.Header.Get(echo.HeaderContentType),
		Body:         f,
	}, usr)
	if err != nil {
		return errors.Wrap(err, "uploading file")
	}
	return ctx.JSON(http.StatusCreated, v)
}

func (api *submissionApi) listFiles(ctx echo.Context) error {
	s, _, acc, err := loadSubmission(ctx, api.deps, accessReviewer)
	if err != nil {
		return err
	}
	kinds := make([]file.Kind, 0, len(ctx.QueryParams()["kind"]))
	for _, k := range ctx.QueryParams()["kind"] {
		kinds = append(kinds, file.Kind(k))
	}
	if acc == accessReviewer {
		kinds = reviewerKinds(kinds)
	}

	files, err := api.deps.ProductionSvc.ListFiles(ctx.Request().Context(), s.ID, kinds...)
	if err != nil {
		return errors.Wrap(err, "listing files")
	}
	if files == nil {
		files = []file.Version{}
	}
	return ctx.JSON(http.StatusOK, files)
}

// reviewerKinds restricts `kinds` to the files reviewers may read.
func reviewerKinds(kinds []file.Kind) []file.Kind {
	if len(kinds) == 0 {
		return file.AuthorKinds
	}
	out := []file.Kind{""} // matches nothing
	for _, k := range kinds {
		if k.In(file.AuthorKinds...) {
			out = append(out, k)
		}
	}
	return out
}

func (api *submissionApi) download(ctx echo.Context) error {
	rctx := ctx.Request().Context()
	v, err := api.deps.ProductionSvc.GetFile(rctx, ctx.Param("id"))
	if err != nil {
		if core.IsNotFound(err) {
			return errHttpNotFound
		}
		return errors.Wrap(err, "finding file by ID")
	}
	usr, err := getContextUser(ctx, api.deps.UserSvc)
	if err != nil {
		return err
	}
	s, err := api.svc.Get(rctx, v.SubmissionID)
	if err != nil {
		return errors.Wrap(err, "finding file submission")
	}
	acc, err := submissionAccess(ctx, api.deps, s, usr)
	if err != nil {
		return err
	}
	if acc == accessNone || (acc == accessReviewer && !v.Kind.In(file.AuthorKinds...)) {
		return errHttpNotFound
	}

	rc, err := api.deps.FileSvc.Open(rctx, v)
	if err != nil {
		return errors.Wrap(err, "opening file")
	}
	defer rc.Close()

	res := ctx.Response()
	res.Header().Set(echo.HeaderContentDisposition, mime.FormatMediaType("attachment", map[string]string{"filename": v.Filename}))
	res.Header().Set(echo.HeaderContentLength, strconv.FormatInt(v.Size, 10))
	res.Header().Set("X-Checksum-Sha256", v.Checksum)
	res.Header().Set(echo.HeaderContentType, v.ContentType)
	res.WriteHeader(http.StatusOK)
	_, err = io.Copy(res, rc)
	return err
}

type AssignEditorRequest struct {
	EditorID string `json:"editor_id" validate:"required"`
}
