package submission

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/jarida/core"
	"github.com/trezcool/jarida/core/file"
	"github.com/trezcool/jarida/core/notification"
	"github.com/trezcool/jarida/core/user"
)

var (
	// errors
	ErrNotFound           = core.NewNotFoundError("submission not found")
	ErrNotEditable        = core.NewConflictError(errors.New("submission can no longer be edited"))
	ErrManuscriptRequired = core.NewValidationError(nil, core.FieldError{Field: "files", Error: "a manuscript file is required"})
	ErrRevisionRequired   = core.NewValidationError(nil, core.FieldError{Field: "files", Error: "a revised manuscript is required"})
)

type (
	Repository interface {
		CreateSubmission(ctx context.Context, s Submission) (Submission, error)
		GetSubmission(ctx context.Context, id string) (Submission, error)
		// QuerySubmissions applies AND operation on available QueryFilter fields.
		QuerySubmissions(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, page core.Page) ([]Submission, error)
		UpdateSubmission(ctx context.Context, s Submission) (Submission, error)
		CreateStatusChange(ctx context.Context, sc StatusChange) (StatusChange, error)
		// QueryStatusChanges returns the history of a submission, oldest first.
		QueryStatusChanges(ctx context.Context, submissionID string) ([]StatusChange, error)
	}

	Service interface {
		Create(ctx context.Context, ns NewSubmission, submitter user.User) (Submission, error)
		Get(ctx context.Context, id string) (Submission, error)
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, page core.Page) ([]Submission, error)
		// Visible lists the submissions `usr` may see: all for editors, otherwise their own and those in filter.AssignedIDs.
		Visible(ctx context.Context, usr user.User, filter *QueryFilter, ordering []core.DBOrdering, page core.Page) ([]Submission, error)
		Update(ctx context.Context, s Submission, us UpdateSubmission, actor user.User) (Submission, error)
		Submit(ctx context.Context, id string, actor user.User) (Submission, error)
		Withdraw(ctx context.Context, id string, actor user.User, note string) (Submission, error)
		// Transition moves `s` to `to` if the workflow allows it, recording the change.
		Transition(ctx context.Context, s Submission, to Status, actorID, note string) (Submission, error)
		AssignEditor(ctx context.Context, id, editorID string, actor user.User) (Submission, error)
		History(ctx context.Context, id string) ([]StatusChange, error)
		Quality(ctx context.Context, s Submission) (Score, error)
		// AuthorUsers returns the active accounts of the submitter and the authors of `s`.
		AuthorUsers(ctx context.Context, s Submission) ([]user.User, error)
	}

	service struct {
		repo     Repository
		userSvc  user.Service
		fileSvc  file.Service
		notifier notification.Service
		validate *validator.Validate
		metrics  core.Metrics
		logger   core.Logger
	}
)

var _ Service = (*service)(nil)

func NewService(
	repo Repository,
	userSvc user.Service,
	fileSvc file.Service,
	notifier notification.Service,
	validate *validator.Validate,
	metrics core.Metrics,
	logger core.Logger,
) Service {
	return &service{
		repo:     repo,
		userSvc:  userSvc,
		fileSvc:  fileSvc,
		notifier: notifier,
		validate: validate,
		metrics:  metrics,
		logger:   logger,
	}
}

func link(id string) string { return "/submissions/" + id }

func (svc *service) Create(ctx context.Context, ns NewSubmission, submitter user.User) (Submission, error) {
	if err := ns.Validate(svc.validate); err != nil {
		return Submission{}, err
	}

	// link authors to their accounts
	for i, a := range ns.Authors {
		if a.Email == "" {
			continue
		}
		if a.Email == submitter.Email {
			ns.Authors[i].UserID = submitter.ID
			continue
		}
		if usr, err := svc.userSvc.GetByEmail(ctx, a.Email); err == nil {
			ns.Authors[i].UserID = usr.ID
		}
	}

	now := core.Now()
	s, err := svc.repo.CreateSubmission(ctx, Submission{
		Title:               ns.Title,
		Abstract:            ns.Abstract,
		Keywords:            ns.Keywords,
		SubjectArea:         ns.SubjectArea,
		ArticleType:         ns.ArticleType,
		CoverLetter:         ns.CoverLetter,
		Authors:             ns.Authors,
		CorrespondingAuthor: ns.CorrespondingAuthor,
		SubmitterID:         submitter.ID,
		Status:              StatusDraft,
		CreatedAt:           now,
		UpdatedAt:           now,
	})
	if err != nil {
		return Submission{}, errors.Wrap(err, "creating submission")
	}
	svc.metrics.SubmissionCreated()
	return s, nil
}

func (svc *service) Get(ctx context.Context, id string) (Submission, error) {
	return svc.repo.GetSubmission(ctx, id)
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, page core.Page) ([]Submission, error) {
	if filter == nil {
		filter = new(QueryFilter)
	}
	filter.Clean()
	page.Clean()
	return svc.repo.QuerySubmissions(ctx, filter, core.CleanOrderings(ordering, OrderingFields...), page)
}

func (svc *service) Visible(ctx context.Context, usr user.User, filter *QueryFilter, ordering []core.DBOrdering, page core.Page) ([]Submission, error) {
	if filter == nil {
		filter = new(QueryFilter)
	}
	if usr.IsEditor() {
		filter.AssignedIDs = nil
	} else {
		filter.AuthorUserID = usr.ID
		filter.AuthorEmail = usr.Email
	}
	return svc.Query(ctx, filter, ordering, page)
}

func (svc *service) Update(ctx context.Context, s Submission, us UpdateSubmission, actor user.User) (Submission, error) {
	if s.SubmitterID != actor.ID {
		return Submission{}, core.ErrPermissionDenied
	}
	if !s.Editable() {
		return Submission{}, ErrNotEditable
	}
	if err := us.Validate(ctx, svc.validate); err != nil {
		return Submission{}, err
	}

	updated := us.apply(s)
	if _, ok := updated.Corresponding(); !ok {
		return Submission{}, core.NewValidationError(nil, core.FieldError{Field: "corresponding_author", Error: correspondingText})
	}
	updated.UpdatedAt = core.Now()
	return svc.repo.UpdateSubmission(ctx, updated)
}

func (svc *service) Submit(ctx context.Context, id string, actor user.User) (Submission, error) {
	s, err := svc.Get(ctx, id)
	if err != nil {
		return Submission{}, err
	}
	if s.SubmitterID != actor.ID {
		return Submission{}, core.ErrPermissionDenied
	}
	if !CanTransition(s.Status, StatusSubmitted) {
		return Submission{}, transitionError(s.Status, StatusSubmitted)
	}

	resubmission := s.Status == StatusRevisionRequested
	if resubmission {
		revisions, err := svc.fileSvc.List(ctx, s.ID, file.KindRevision)
		if err != nil {
			return Submission{}, errors.Wrap(err, "listing revisions")
		}
		var revised bool
		for _, v := range revisions {
			if !v.CreatedAt.Before(s.DecidedAt) {
				revised = true
				break
			}
		}
		if !revised {
			return Submission{}, ErrRevisionRequired
		}
		s.Round++
	} else {
		ok, err := svc.fileSvc.Has(ctx, s.ID, file.KindManuscript)
		if err != nil {
			return Submission{}, errors.Wrap(err, "checking manuscript")
		}
		if !ok {
			return Submission{}, ErrManuscriptRequired
		}
		s.Round = 1
		s.SubmittedAt = core.Now()
	}

	note := "submitted"
	if resubmission {
		note = fmt.Sprintf("revision submitted (round %d)", s.Round)
	}
	s, err = svc.Transition(ctx, s, StatusSubmitted, actor.ID, note)
	if err != nil {
		return Submission{}, err
	}

	svc.notifySubmitted(ctx, s, actor, resubmission)
	return s, nil
}

func (svc *service) notifySubmitted(ctx context.Context, s Submission, submitter user.User, resubmission bool) {
	if !resubmission {
		err := svc.notifier.Notify(ctx, []user.User{submitter}, notification.Message{
			Kind:     notification.KindSubmissionReceived,
			Title:    "Submission received",
			Body:     fmt.Sprintf("We have received your submission %q.", s.Title),
			Link:     link(s.ID),
			Template: "submission_received",
			Data:     map[string]interface{}{"SubmissionTitle": s.Title},
		})
		if err != nil {
			svc.logger.Error("submission.Submit: notifying submitter", err)
		}
	}

	var editors []user.User
	if s.HandlingEditorID != "" {
		if editor, err := svc.userSvc.GetByID(ctx, s.HandlingEditorID); err == nil {
			editors = append(editors, editor)
		}
	} else {
		var err error
		editors, err = svc.userSvc.Query(ctx, &user.QueryFilter{Roles: []string{user.RoleEditorChief}, IsActive: core.BoolPtr(true)}, nil)
		if err != nil {
			svc.logger.Error("submission.Submit: querying editors", err)
			return
		}
	}
	title := "New submission"
	if resubmission {
		title = "Revised submission"
	}
	err := svc.notifier.Notify(ctx, editors, notification.Message{
		Kind:  notification.KindStatusChanged,
		Title: title,
		Body:  fmt.Sprintf("%q is ready for editorial screening.", s.Title),
		Link:  link(s.ID),
	})
	if err != nil {
		svc.logger.Error("submission.Submit: notifying editors", err)
	}
}

func (svc *service) Withdraw(ctx context.Context, id string, actor user.User, note string) (Submission, error) {
	s, err := svc.Get(ctx, id)
	if err != nil {
		return Submission{}, err
	}
	if s.SubmitterID != actor.ID && !actor.IsEditor() {
		return Submission{}, core.ErrPermissionDenied
	}
	return svc.Transition(ctx, s, StatusWithdrawn, actor.ID, core.CleanString(note))
}

func (svc *service) Transition(ctx context.Context, s Submission, to Status, actorID, note string) (Submission, error) {
	from := s.Status
	if !CanTransition(from, to) {
		return Submission{}, transitionError(from, to)
	}

	now := core.Now()
	s.Status = to
	s.UpdatedAt = now
	if to.In(StatusAccepted, StatusRejected, StatusRevisionRequested) {
		s.DecidedAt = now
	}
	s, err := svc.repo.UpdateSubmission(ctx, s)
	if err != nil {
		return Submission{}, errors.Wrap(err, "updating submission status")
	}

	_, err = svc.repo.CreateStatusChange(ctx, StatusChange{
		SubmissionID: s.ID,
		From:         from,
		To:           to,
		ActorID:      actorID,
		Note:         note,
		CreatedAt:    now,
	})
	if err != nil {
		return Submission{}, errors.Wrap(err, "recording status change")
	}
	svc.metrics.StatusChanged(string(from), string(to))
	return s, nil
}

func (svc *service) AssignEditor(ctx context.Context, id, editorID string, actor user.User) (Submission, error) {
	if !actor.IsEditor() {
		return Submission{}, core.ErrPermissionDenied
	}
	s, err := svc.Get(ctx, id)
	if err != nil {
		return Submission{}, err
	}
	if s.Status.Terminal() || s.Status == StatusDraft {
		return Submission{}, ErrNotEditable
	}

	editor, err := svc.userSvc.GetByID(ctx, editorID)
	if err != nil {
		if core.IsNotFound(err) {
			return Submission{}, core.NewValidationError(nil, core.FieldError{Field: "editor_id", Error: "user not found"})
		}
		return Submission{}, errors.Wrap(err, "getting editor")
	}
	if !editor.IsEditor() || !editor.Active() {
		return Submission{}, core.NewValidationError(nil, core.FieldError{Field: "editor_id", Error: "user is not an active editor"})
	}

	s.HandlingEditorID = editor.ID
	s.UpdatedAt = core.Now()
	if s, err = svc.repo.UpdateSubmission(ctx, s); err != nil {
		return Submission{}, errors.Wrap(err, "updating submission")
	}

	err = svc.notifier.Notify(ctx, []user.User{editor}, notification.Message{
		Kind:  notification.KindEditorAssigned,
		Title: "Submission assigned to you",
		Body:  fmt.Sprintf("You are the handling editor of %q.", s.Title),
		Link:  link(s.ID),
	})
	if err != nil {
		svc.logger.Error("submission.AssignEditor: notifying editor", err)
	}
	return s, nil
}

func (svc *service) History(ctx context.Context, id string) ([]StatusChange, error) {
	if _, err := svc.Get(ctx, id); err != nil {
		return nil, err
	}
	return svc.repo.QueryStatusChanges(ctx, id)
}

func (svc *service) Quality(ctx context.Context, s Submission) (Score, error) {
	files, err := svc.fileSvc.List(ctx, s.ID, file.KindManuscript)
	if err != nil {
		return Score{}, errors.Wrap(err, "listing files")
	}
	return QualityScore(s, files), nil
}

func (svc *service) AuthorUsers(ctx context.Context, s Submission) ([]user.User, error) {
	ids := []string{s.SubmitterID}
	for _, a := range s.Authors {
		if a.UserID != "" {
			ids = append(ids, a.UserID)
		}
	}
	users, err := svc.userSvc.GetByIDs(ctx, core.CleanStrings(ids)...)
	if err != nil {
		return nil, errors.Wrap(err, "getting author users")
	}
	active := users[:0]
	for _, usr := range users {
		if usr.Active() {
			active = append(active, usr)
		}
	}
	return active, nil
}
