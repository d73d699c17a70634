package testutil

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/jarida/core"
	"github.com/trezcool/jarida/core/decision"
	"github.com/trezcool/jarida/core/file"
	"github.com/trezcool/jarida/core/notification"
	"github.com/trezcool/jarida/core/production"
	"github.com/trezcool/jarida/core/publication"
	"github.com/trezcool/jarida/core/review"
	"github.com/trezcool/jarida/core/submission"
	"github.com/trezcool/jarida/core/user"
	appfs "github.com/trezcool/jarida/fs"
	emailsvc "github.com/trezcool/jarida/services/email"
	metricsvc "github.com/trezcool/jarida/services/metrics"
	storagesvc "github.com/trezcool/jarida/services/storage"
	inmemdb "github.com/trezcool/jarida/storage/database/inmem"
)

var assetsOnce sync.Once

// Env wires every service on top of in-memory repositories.
type Env struct {
	Conf       *core.Config
	DB         *inmemdb.DB
	Mail       *emailsvc.ServiceMock
	Store      *storagesvc.MemoryStore
	Registrar  *RegistrarMock
	Metrics    *metricsvc.Prometheus
	Validate   *validator.Validate
	Translator ut.Translator

	UserRepo       user.Repository
	SubmissionRepo submission.Repository
	ReviewRepo     review.Repository

	UserSvc         user.Service
	SubmissionSvc   submission.Service
	FileSvc         file.Service
	ReviewSvc       review.Service
	DecisionSvc     decision.Service
	ProductionSvc   production.Service
	PublicationSvc  publication.Service
	NotificationSvc notification.Service
}

func NewEnv() *Env {
	assetsOnce.Do(func() {
		core.ParseEmailTemplates(appfs.FS, appfs.EmailTemplatesDir, true, core.NopLogger{})
		user.LoadCommonPasswords(appfs.FS, appfs.CommonPasswordsGz, core.NopLogger{})
	})

	conf := core.NewTestConfig()
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	submission.InitValidators(validate, translator, conf.Journal.SubjectAreas)
	review.InitValidators(validate, translator)
	decision.InitValidators(validate, translator)
	publication.InitValidators(validate, translator)

	env := &Env{
		Conf:       conf,
		DB:         inmemdb.Open(),
		Mail:       emailsvc.NewServiceMock(conf),
		Store:      storagesvc.NewMemoryStore(),
		Registrar:  new(RegistrarMock),
		Metrics:    metricsvc.NewPrometheus(),
		Validate:   validate,
		Translator: translator,
	}
	logger := core.NopLogger{}

	env.UserRepo = inmemdb.NewUserRepository(env.DB)
	env.SubmissionRepo = inmemdb.NewSubmissionRepository(env.DB)
	env.ReviewRepo = inmemdb.NewReviewRepository(env.DB)

	env.NotificationSvc = notification.NewService(inmemdb.NewNotificationRepository(env.DB), env.Mail)
	env.UserSvc = user.NewService(env.UserRepo, env.Mail, conf)
	env.FileSvc = file.NewService(inmemdb.NewFileRepository(env.DB), env.Store, conf)
	env.SubmissionSvc = submission.NewService(env.SubmissionRepo, env.UserSvc, env.FileSvc, env.NotificationSvc,
		validate, env.Metrics, logger)
	env.ReviewSvc = review.NewService(env.ReviewRepo, env.SubmissionSvc, env.UserSvc, env.NotificationSvc,
		validate, env.Metrics, logger, conf)
	env.DecisionSvc = decision.NewService(inmemdb.NewDecisionRepository(env.DB), env.SubmissionSvc, env.ReviewSvc,
		env.NotificationSvc, validate, logger)
	env.ProductionSvc = production.NewService(inmemdb.NewProductionRepository(env.DB), env.FileSvc, env.SubmissionSvc,
		env.UserSvc, env.NotificationSvc, validate, logger)
	env.PublicationSvc = publication.NewService(inmemdb.NewPublicationRepository(env.DB), env.SubmissionSvc,
		env.ProductionSvc, env.Registrar, env.NotificationSvc, validate, env.Metrics, logger, conf)
	return env
}

// Reset empties the database and forgets the sent emails.
func (env *Env) Reset() {
	env.DB.Reset()
	env.Mail.Reset()
	env.Registrar.Reset()
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()
	tstamp := core.Now()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:      name,
		Username:  uname,
		Email:     email,
		Roles:     roles,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	usr.SetActive(isActive)
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("createUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("createUser() failed: %v", err)
	}
	return usr
}

// CreateReviewer creates an active reviewer with some expertise.
func CreateReviewer(t *testing.T, repo user.Repository, name, email, affiliation string, expertise ...string) user.User {
	t.Helper()
	usr := user.User{
		Name:         name,
		Username:     strings.SplitN(email, "@", 2)[0],
		Email:        email,
		Affiliation:  affiliation,
		Expertise:    expertise,
		SubjectAreas: []string{"biology"},
		Roles:        []string{user.RoleReviewer},
		CreatedAt:    core.Now(),
		UpdatedAt:    core.Now(),
	}
	usr.SetActive(true)
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("createReviewer() failed: %v", err)
	}
	return usr
}

// NewSubmission returns a valid submission authored by `usr`.
func NewSubmission(usr user.User) submission.NewSubmission {
	return submission.NewSubmission{
		Title:       "Soil microbiome shifts under prolonged drought",
		Abstract:    strings.Repeat("We measured how soil bacterial communities respond to drought. ", 3),
		Keywords:    []string{"microbiome", "drought", "soil"},
		SubjectArea: "biology",
		ArticleType: submission.TypeResearch,
		CoverLetter: "Please consider our manuscript.",
		Authors: []submission.Author{
			{Name: usr.Name, Email: usr.Email, Affiliation: "University of Kinshasa", UserID: usr.ID},
			{Name: "Grace Hopper", Email: "grace@navy.test", Affiliation: "US Navy"},
		},
		CorrespondingAuthor: usr.Email,
	}
}

// CreateSubmission stores a submission of `usr` in the given status, bypassing the workflow.
func CreateSubmission(t *testing.T, repo submission.Repository, usr user.User, status submission.Status) submission.Submission {
	t.Helper()
	ns := NewSubmission(usr)
	now := core.Now()
	s := submission.Submission{
		Title:               ns.Title,
		Abstract:            ns.Abstract,
		Keywords:            ns.Keywords,
		SubjectArea:         ns.SubjectArea,
		ArticleType:         ns.ArticleType,
		CoverLetter:         ns.CoverLetter,
		Authors:             ns.Authors,
		CorrespondingAuthor: ns.CorrespondingAuthor,
		SubmitterID:         usr.ID,
		Status:              status,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if status != submission.StatusDraft {
		s.Round = 1
		s.SubmittedAt = now
	}
	s, err := repo.CreateSubmission(context.Background(), s)
	if err != nil {
		t.Fatalf("createSubmission() failed: %v", err)
	}
	return s
}

// StoreFile stores a file version directly, bypassing the upload rules.
func StoreFile(t *testing.T, svc file.Service, submissionID string, kind file.Kind, uploader user.User) file.Version {
	t.Helper()
	name, ct := "manuscript.pdf", "application/pdf"
	if kind == file.KindGalleyHTML {
		name, ct = "article.html", "text/html"
	}
	v, err := svc.Store(context.Background(), file.NewVersion{
		SubmissionID: submissionID,
		Kind:         kind,
		Filename:     name,
		ContentType:  ct,
		UploadedBy:   uploader.ID,
	}, bytes.NewBufferString("%PDF-1.4 test content"))
	if err != nil {
		t.Fatalf("storeFile() failed: %v", err)
	}
	return v
}

// RegistrarMock records deposits; it fails them while Fail is set.
type RegistrarMock struct {
	mu       sync.Mutex
	Fail     bool
	requests []publication.DepositRequest
}

var _ publication.Registrar = (*RegistrarMock)(nil)

func (r *RegistrarMock) Deposit(_ context.Context, req publication.DepositRequest) (publication.DepositResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = append(r.requests, req)
	if r.Fail {
		return publication.DepositResult{}, errors.New("registrar unavailable")
	}
	return publication.DepositResult{BatchID: req.BatchID, Status: "success"}, nil
}

func (r *RegistrarMock) Requests() []publication.DepositRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]publication.DepositRequest(nil), r.requests...)
}

func (r *RegistrarMock) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Fail = false
	r.requests = nil
}
