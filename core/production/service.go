package production

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/jarida/core"
	"github.com/trezcool/jarida/core/file"
	"github.com/trezcool/jarida/core/notification"
	"github.com/trezcool/jarida/core/submission"
	"github.com/trezcool/jarida/core/user"
)

var (
	// errors
	ErrNotFound       = core.NewNotFoundError("production job not found")
	ErrJobExists      = core.NewConflictError(errors.New("submission is already in production"))
	ErrInvalidStage   = core.NewConflictError(errors.New("production can only advance one stage at a time"))
	ErrGalleyRequired = core.NewValidationError(nil, core.FieldError{Field: "stage", Error: "a galley file is required before the article is ready"})
	ErrUploadClosed   = core.NewConflictError(errors.New("files of this kind cannot be uploaded at this stage"))
)

type (
	Repository interface {
		CreateJob(ctx context.Context, job Job) (Job, error)
		GetJob(ctx context.Context, submissionID string) (Job, error)
		UpdateJob(ctx context.Context, job Job) (Job, error)
	}

	Service interface {
		Upload(ctx context.Context, up Upload, uploader user.User) (file.Version, error)
		ListFiles(ctx context.Context, submissionID string, kinds ...file.Kind) ([]file.Version, error)
		GetFile(ctx context.Context, id string) (file.Version, error)
		StartProduction(ctx context.Context, submissionID string, actor user.User) (Job, error)
		Advance(ctx context.Context, submissionID string, actor user.User, adv Advance) (Job, error)
		Assign(ctx context.Context, submissionID string, actor user.User, asg Assign) (Job, error)
		GetJob(ctx context.Context, submissionID string) (Job, error)
	}

	service struct {
		repo          Repository
		fileSvc       file.Service
		submissionSvc submission.Service
		userSvc       user.Service
		notifier      notification.Service
		validate      *validator.Validate
		logger        core.Logger
	}
)

var _ Service = (*service)(nil)

func NewService(
	repo Repository,
	fileSvc file.Service,
	submissionSvc submission.Service,
	userSvc user.Service,
	notifier notification.Service,
	validate *validator.Validate,
	logger core.Logger,
) Service {
	return &service{
		repo:          repo,
		fileSvc:       fileSvc,
		submissionSvc: submissionSvc,
		userSvc:       userSvc,
		notifier:      notifier,
		validate:      validate,
		logger:        logger,
	}
}

// canUpload checks who may upload which kind of file, and when.
func canUpload(s submission.Submission, kind file.Kind, uploader user.User) error {
	switch {
	case kind.In(file.AuthorKinds...):
		if s.SubmitterID != uploader.ID {
			return core.ErrPermissionDenied
		}
		if !s.Editable() {
			return ErrUploadClosed
		}
		if kind == file.KindRevision && s.Status != submission.StatusRevisionRequested {
			return ErrUploadClosed
		}
		if kind == file.KindManuscript && s.Status != submission.StatusDraft {
			return ErrUploadClosed
		}
	case kind.In(file.ProductionKinds...):
		if !uploader.IsProduction() {
			return core.ErrPermissionDenied
		}
		if s.Status != submission.StatusInProduction {
			return ErrUploadClosed
		}
	default:
		return core.NewValidationError(nil, core.FieldError{Field: "kind", Error: "invalid file kind"})
	}
	return nil
}

func (svc *service) Upload(ctx context.Context, up Upload, uploader user.User) (file.Version, error) {
	s, err := svc.submissionSvc.Get(ctx, up.SubmissionID)
	if err != nil {
		return file.Version{}, err
	}
	if err = canUpload(s, up.Kind, uploader); err != nil {
		return file.Version{}, err
	}
	return svc.fileSvc.Store(ctx, file.NewVersion{
		SubmissionID: s.ID,
		Kind:         up.Kind,
		Filename:     up.Filename,
		ContentType:  up.ContentType,
		UploadedBy:   uploader.ID,
	}, up.Body)
}

func (svc *service) ListFiles(ctx context.Context, submissionID string, kinds ...file.Kind) ([]file.Version, error) {
	return svc.fileSvc.List(ctx, submissionID, kinds...)
}

func (svc *service) GetFile(ctx context.Context, id string) (file.Version, error) {
	return svc.fileSvc.Get(ctx, id)
}

func (svc *service) StartProduction(ctx context.Context, submissionID string, actor user.User) (Job, error) {
	if !actor.IsEditor() {
		return Job{}, core.ErrPermissionDenied
	}
	s, err := svc.submissionSvc.Get(ctx, submissionID)
	if err != nil {
		return Job{}, err
	}
	if _, err = svc.repo.GetJob(ctx, s.ID); err == nil {
		return Job{}, ErrJobExists
	} else if !core.IsNotFound(err) {
		return Job{}, errors.Wrap(err, "getting job")
	}

	if s, err = svc.submissionSvc.Transition(ctx, s, submission.StatusInProduction, actor.ID, "production started"); err != nil {
		return Job{}, err
	}

	now := core.Now()
	job, err := svc.repo.CreateJob(ctx, Job{
		SubmissionID: s.ID,
		Stage:        StageCopyediting,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return Job{}, errors.Wrap(err, "creating job")
	}
	svc.notifyAuthors(ctx, s, job)
	return job, nil
}

func (svc *service) Advance(ctx context.Context, submissionID string, actor user.User, adv Advance) (Job, error) {
	if !actor.IsProduction() {
		return Job{}, core.ErrPermissionDenied
	}
	adv.Stage = Stage(core.CleanString(string(adv.Stage), true /* lower */))
	adv.Notes = core.CleanString(adv.Notes)
	if err := svc.validate.Struct(adv); err != nil {
		return Job{}, err
	}
	if !adv.Stage.Valid() {
		return Job{}, core.NewValidationError(nil, core.FieldError{Field: "stage", Error: "unknown production stage"})
	}

	job, err := svc.repo.GetJob(ctx, submissionID)
	if err != nil {
		return Job{}, err
	}
	next, ok := job.Stage.Next()
	if !ok || next != adv.Stage {
		return Job{}, ErrInvalidStage
	}
	if next == StageReady {
		hasGalley, err := svc.fileSvc.Has(ctx, submissionID, file.GalleyKinds...)
		if err != nil {
			return Job{}, errors.Wrap(err, "checking galleys")
		}
		if !hasGalley {
			return Job{}, ErrGalleyRequired
		}
	}

	job.Stage = next
	if adv.Notes != "" {
		job.Notes = adv.Notes
	}
	job.UpdatedAt = core.Now()
	if job, err = svc.repo.UpdateJob(ctx, job); err != nil {
		return Job{}, errors.Wrap(err, "updating job")
	}

	if s, err := svc.submissionSvc.Get(ctx, submissionID); err == nil {
		svc.notifyAuthors(ctx, s, job)
	}
	return job, nil
}

func (svc *service) Assign(ctx context.Context, submissionID string, actor user.User, asg Assign) (Job, error) {
	if !actor.IsEditor() {
		return Job{}, core.ErrPermissionDenied
	}
	if err := svc.validate.Struct(asg); err != nil {
		return Job{}, err
	}
	job, err := svc.repo.GetJob(ctx, submissionID)
	if err != nil {
		return Job{}, err
	}

	assignee, err := svc.userSvc.GetByID(ctx, asg.AssigneeID)
	if err != nil && !core.IsNotFound(err) {
		return Job{}, errors.Wrap(err, "getting assignee")
	}
	if err != nil || !assignee.RoleStartsWith(user.RoleProduction) || !assignee.Active() {
		return Job{}, core.NewValidationError(nil, core.FieldError{Field: "assignee_id", Error: "user is not active production staff"})
	}

	job.AssigneeID = assignee.ID
	job.UpdatedAt = core.Now()
	if job, err = svc.repo.UpdateJob(ctx, job); err != nil {
		return Job{}, errors.Wrap(err, "updating job")
	}

	err = svc.notifier.Notify(ctx, []user.User{assignee}, notification.Message{
		Kind:  notification.KindProductionUpdate,
		Title: "Production job assigned to you",
		Body:  fmt.Sprintf("A submission is waiting at the %s stage.", job.Stage),
		Link:  "/submissions/" + submissionID,
	})
	if err != nil {
		svc.logger.Error("production.Assign: notifying assignee", err)
	}
	return job, nil
}

func (svc *service) GetJob(ctx context.Context, submissionID string) (Job, error) {
	return svc.repo.GetJob(ctx, submissionID)
}

func (svc *service) notifyAuthors(ctx context.Context, s submission.Submission, job Job) {
	authors, err := svc.submissionSvc.AuthorUsers(ctx, s)
	if err != nil {
		svc.logger.Error("production: getting authors", err)
		return
	}
	err = svc.notifier.Notify(ctx, authors, notification.Message{
		Kind:    notification.KindProductionUpdate,
		Title:   "Production update",
		Body:    fmt.Sprintf("%q is now at the %s stage.", s.Title, job.Stage),
		Link:    "/submissions/" + s.ID,
		NoEmail: job.Stage != StageProofing,
	})
	if err != nil {
		svc.logger.Error("production: notifying authors", err)
	}
}
