package publication

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/jarida/core"
	"github.com/trezcool/jarida/core/notification"
	"github.com/trezcool/jarida/core/production"
	"github.com/trezcool/jarida/core/submission"
	"github.com/trezcool/jarida/core/user"
)

var (
	// errors
	ErrIssueNotFound   = core.NewNotFoundError("issue not found")
	ErrArticleNotFound = core.NewNotFoundError("article not found")
	ErrIssueExists     = core.NewConflictError(errors.New("an issue with this volume and number already exists"))
	ErrNotReady        = core.NewConflictError(errors.New("the submission is not ready for publication"))
	ErrUnknownFormat   = core.NewValidationError(nil, core.FieldError{Field: "format", Error: "format must be one of crossref, dc or csl"})
)

// ArticleOrderingFields are the fields articles may be ordered by.
var ArticleOrderingFields = []string{"published_at", "title", "doi"}

type (
	Repository interface {
		CreateIssue(ctx context.Context, issue Issue) (Issue, error)
		GetIssue(ctx context.Context, id string) (Issue, error)
		// QueryIssues returns the most recent issues first.
		QueryIssues(ctx context.Context) ([]Issue, error)
		UpdateIssue(ctx context.Context, issue Issue) (Issue, error)
		CreateArticle(ctx context.Context, a Article) (Article, error)
		GetArticle(ctx context.Context, filter ArticleGetFilter) (Article, error)
		QueryArticles(ctx context.Context, filter ArticleFilter, ordering []core.DBOrdering, page core.Page) ([]Article, error)
		CountArticles(ctx context.Context, filter ArticleFilter) (int, error)
		UpdateArticle(ctx context.Context, a Article) (Article, error)
	}

	Service interface {
		CreateIssue(ctx context.Context, ni NewIssue, actor user.User) (Issue, error)
		GetIssue(ctx context.Context, id string) (Issue, error)
		ListIssues(ctx context.Context) ([]Issue, error)
		PublishIssue(ctx context.Context, id string, actor user.User) (Issue, error)
		// Publish mints the DOI of an accepted submission, publishes it and deposits its metadata.
		// A failed deposit is recorded on the article, not returned.
		Publish(ctx context.Context, submissionID string, pa PublishArticle, actor user.User) (Article, error)
		Redeposit(ctx context.Context, articleID string, actor user.User) (Article, error)
		// RedepositFailed retries every failed deposit, returning how many got registered.
		RedepositFailed(ctx context.Context) (int, error)
		GetArticle(ctx context.Context, id string) (Article, error)
		ListArticles(ctx context.Context, filter ArticleFilter, ordering []core.DBOrdering, page core.Page) ([]Article, error)
		// Metadata renders an article in one of the export formats, returning the content type.
		Metadata(ctx context.Context, articleID, format string) ([]byte, string, error)
		OAI(ctx context.Context, args url.Values) ([]byte, error)
	}

	service struct {
		repo          Repository
		submissionSvc submission.Service
		productionSvc production.Service
		registrar     Registrar
		notifier      notification.Service
		validate      *validator.Validate
		metrics       core.Metrics
		logger        core.Logger
		conf          core.JournalConfig
		oai           *OAIProvider
	}
)

var _ Service = (*service)(nil)

func NewService(
	repo Repository,
	submissionSvc submission.Service,
	productionSvc production.Service,
	registrar Registrar,
	notifier notification.Service,
	validate *validator.Validate,
	metrics core.Metrics,
	logger core.Logger,
	conf *core.Config,
) Service {
	return &service{
		repo:          repo,
		submissionSvc: submissionSvc,
		productionSvc: productionSvc,
		registrar:     registrar,
		notifier:      notifier,
		validate:      validate,
		metrics:       metrics,
		logger:        logger,
		conf:          conf.Journal,
		oai:           NewOAIProvider(repo, conf),
	}
}

func (svc *service) CreateIssue(ctx context.Context, ni NewIssue, actor user.User) (Issue, error) {
	if !actor.IsEditor() {
		return Issue{}, core.ErrPermissionDenied
	}
	ni.Title = core.CleanString(ni.Title)
	if err := svc.validate.Struct(ni); err != nil {
		return Issue{}, err
	}

	issues, err := svc.repo.QueryIssues(ctx)
	if err != nil {
		return Issue{}, errors.Wrap(err, "querying issues")
	}
	for _, issue := range issues {
		if issue.Volume == ni.Volume && issue.Number == ni.Number {
			return Issue{}, ErrIssueExists
		}
	}

	return svc.repo.CreateIssue(ctx, Issue{
		Volume:    ni.Volume,
		Number:    ni.Number,
		Year:      ni.Year,
		Title:     ni.Title,
		CreatedAt: core.Now(),
	})
}

func (svc *service) GetIssue(ctx context.Context, id string) (Issue, error) {
	return svc.repo.GetIssue(ctx, id)
}

func (svc *service) ListIssues(ctx context.Context) ([]Issue, error) {
	return svc.repo.QueryIssues(ctx)
}

func (svc *service) PublishIssue(ctx context.Context, id string, actor user.User) (Issue, error) {
	if !actor.IsEditor() {
		return Issue{}, core.ErrPermissionDenied
	}
	issue, err := svc.repo.GetIssue(ctx, id)
	if err != nil {
		return Issue{}, err
	}
	if issue.Published() {
		return issue, nil
	}
	issue.PublishedAt = core.Now()
	return svc.repo.UpdateIssue(ctx, issue)
}

// articleFor returns the article of `s`, minting its DOI on first use.
// An article left behind by an interrupted Publish is reused so that the DOI is never minted twice.
func (svc *service) articleFor(ctx context.Context, s submission.Submission, issue Issue, pa PublishArticle) (Article, error) {
	now := core.Now()
	a, err := svc.repo.GetArticle(ctx, ArticleGetFilter{SubmissionID: s.ID})
	if err == nil {
		a.IssueID = issue.ID
		a.Pages = pa.Pages
		a.UpdatedAt = now
		if a, err = svc.repo.UpdateArticle(ctx, a); err != nil {
			return Article{}, errors.Wrap(err, "updating article")
		}
		return a, nil
	}
	if !core.IsNotFound(err) {
		return Article{}, errors.Wrap(err, "getting article")
	}

	doi, err := svc.mintDOI(ctx, now)
	if err != nil {
		return Article{}, err
	}
	a, err = svc.repo.CreateArticle(ctx, Article{
		SubmissionID:  s.ID,
		IssueID:       issue.ID,
		DOI:           doi,
		Title:         s.Title,
		Abstract:      s.Abstract,
		Keywords:      s.Keywords,
		SubjectArea:   s.SubjectArea,
		ArticleType:   string(s.ArticleType),
		Authors:       s.Authors,
		Pages:         pa.Pages,
		PublishedAt:   now,
		DepositStatus: DepositPending,
		UpdatedAt:     now,
	})
	if err != nil {
		return Article{}, errors.Wrap(err, "creating article")
	}
	return a, nil
}

func (svc *service) Publish(ctx context.Context, submissionID string, pa PublishArticle, actor user.User) (Article, error) {
	if !actor.IsEditor() {
		return Article{}, core.ErrPermissionDenied
	}
	pa.Pages = core.CleanString(pa.Pages)
	if err := svc.validate.Struct(pa); err != nil {
		return Article{}, err
	}

	s, err := svc.submissionSvc.Get(ctx, submissionID)
	if err != nil {
		return Article{}, err
	}
	if s.Status != submission.StatusInProduction {
		return Article{}, ErrNotReady
	}
	job, err := svc.productionSvc.GetJob(ctx, s.ID)
	if err != nil {
		if core.IsNotFound(err) {
			return Article{}, ErrNotReady
		}
		return Article{}, err
	}
	if job.Stage != production.StageReady {
		return Article{}, ErrNotReady
	}

	issue, err := svc.repo.GetIssue(ctx, pa.IssueID)
	if err != nil {
		if core.IsNotFound(err) {
			return Article{}, core.NewValidationError(nil, core.FieldError{Field: "issue_id", Error: "issue not found"})
		}
		return Article{}, errors.Wrap(err, "getting issue")
	}

	a, err := svc.articleFor(ctx, s, issue, pa)
	if err != nil {
		return Article{}, err
	}
	if s, err = svc.submissionSvc.Transition(ctx, s, submission.StatusPublished, actor.ID, "published as "+a.DOI); err != nil {
		return Article{}, err
	}

	if a, err = svc.deposit(ctx, a, issue); err != nil {
		return Article{}, err
	}
	svc.notifyAuthors(ctx, s, a)
	return a, nil
}

// mintDOI builds the DOI of the next article published in the year of `now`.
func (svc *service) mintDOI(ctx context.Context, now time.Time) (string, error) {
	start := time.Date(now.Year(), 1, 1, 0, 0, 0, 0, time.UTC)
	count, err := svc.repo.CountArticles(ctx, ArticleFilter{PublishedFrom: start, PublishedUntil: start.AddDate(1, 0, 0)})
	if err != nil {
		return "", errors.Wrap(err, "counting articles")
	}
	doi := MintDOI(svc.conf.DOIPrefix, svc.conf.Abbreviation, now.Year(), count+1)
	if !ValidateDOI(doi) {
		return "", errors.Errorf("minted an invalid DOI %q, check the journal DOI prefix and abbreviation", doi)
	}
	return doi, nil
}

// deposit sends the Crossref metadata of `a` to the registrar and records the outcome on the article.
func (svc *service) deposit(ctx context.Context, a Article, issue Issue) (Article, error) {
	now := core.Now()
	batchID := fmt.Sprintf("%s-%s", now.Format("20060102150405"), uuid.New().String()[:8])
	body, err := CrossrefXML(svc.conf, a, issue, batchID, now)
	if err != nil {
		return Article{}, errors.Wrap(err, "rendering crossref metadata")
	}

	res, err := svc.registrar.Deposit(ctx, DepositRequest{
		BatchID:  batchID,
		DOI:      a.DOI,
		Filename: batchID + ".xml",
		XML:      body,
	})
	if err != nil {
		svc.logger.Warn("publication: deposit of "+a.DOI+" failed", err)
		a.DepositStatus = DepositFailed
		a.DepositBatchID = batchID
		a.DepositMessage = err.Error()
	} else {
		a.DepositStatus = DepositRegistered
		a.DepositBatchID = res.BatchID
		if a.DepositBatchID == "" {
			a.DepositBatchID = batchID
		}
		a.DepositMessage = res.Message
	}
	svc.metrics.Deposited(string(a.DepositStatus))

	a.UpdatedAt = core.Now()
	if a, err = svc.repo.UpdateArticle(ctx, a); err != nil {
		return Article{}, errors.Wrap(err, "recording deposit")
	}
	return a, nil
}

func (svc *service) issueOf(ctx context.Context, a Article) (Issue, error) {
	if a.IssueID == "" {
		return Issue{}, nil
	}
	issue, err := svc.repo.GetIssue(ctx, a.IssueID)
	if err != nil && !core.IsNotFound(err) {
		return Issue{}, errors.Wrap(err, "getting issue")
	}
	return issue, nil
}

func (svc *service) Redeposit(ctx context.Context, articleID string, actor user.User) (Article, error) {
	if !actor.IsEditor() {
		return Article{}, core.ErrPermissionDenied
	}
	a, err := svc.GetArticle(ctx, articleID)
	if err != nil {
		return Article{}, err
	}
	issue, err := svc.issueOf(ctx, a)
	if err != nil {
		return Article{}, err
	}
	return svc.deposit(ctx, a, issue)
}

func (svc *service) RedepositFailed(ctx context.Context) (int, error) {
	failed, err := svc.repo.QueryArticles(ctx, ArticleFilter{DepositStatus: DepositFailed}, nil, core.Page{Limit: core.MaxPageLimit})
	if err != nil {
		return 0, errors.Wrap(err, "querying failed deposits")
	}
	var registered int
	for _, a := range failed {
		issue, err := svc.issueOf(ctx, a)
		if err != nil {
			return registered, err
		}
		if a, err = svc.deposit(ctx, a, issue); err != nil {
			return registered, err
		}
		if a.DepositStatus == DepositRegistered {
			registered++
		}
	}
	return registered, nil
}

func (svc *service) GetArticle(ctx context.Context, id string) (Article, error) {
	return svc.repo.GetArticle(ctx, ArticleGetFilter{ID: id})
}

func (svc *service) ListArticles(ctx context.Context, filter ArticleFilter, ordering []core.DBOrdering, page core.Page) ([]Article, error) {
	filter.Search = core.CleanString(filter.Search)
	page.Clean()
	return svc.repo.QueryArticles(ctx, filter, core.CleanOrderings(ordering, ArticleOrderingFields...), page)
}

func (svc *service) Metadata(ctx context.Context, articleID, format string) ([]byte, string, error) {
	a, err := svc.GetArticle(ctx, articleID)
	if err != nil {
		return nil, "", err
	}
	issue, err := svc.issueOf(ctx, a)
	if err != nil {
		return nil, "", err
	}

	var (
		out []byte
		ct  string
	)
	switch format {
	case FormatCrossref:
		out, err = CrossrefXML(svc.conf, a, issue, a.DepositBatchID, a.UpdatedAt)
		ct = "application/vnd.crossref.unixsd+xml"
	case FormatDublinCore:
		out, err = DublinCoreXML(svc.conf, a, issue)
		ct = "application/xml"
	case FormatCSL, "":
		out, err = CSLJSON(svc.conf, a, issue)
		ct = "application/vnd.citationstyles.csl+json"
	default:
		return nil, "", ErrUnknownFormat
	}
	if err != nil {
		return nil, "", errors.Wrapf(err, "rendering %s metadata", format)
	}
	return out, ct, nil
}

func (svc *service) OAI(ctx context.Context, args url.Values) ([]byte, error) {
	resp, err := svc.oai.Handle(ctx, args, core.Now())
	if err != nil {
		return nil, err
	}
	return MarshalOAI(resp)
}

func (svc *service) notifyAuthors(ctx context.Context, s submission.Submission, a Article) {
	authors, err := svc.submissionSvc.AuthorUsers(ctx, s)
	if err != nil {
		svc.logger.Error("publication.Publish: getting authors", err)
		return
	}
	err = svc.notifier.Notify(ctx, authors, notification.Message{
		Kind:     notification.KindArticlePublished,
		Title:    "Your article has been published",
		Body:     fmt.Sprintf("%q is published with the DOI %s.", a.Title, a.DOI),
		Link:     "/articles/" + a.ID,
		Template: "article_published",
		Data: map[string]interface{}{
			"ArticleTitle": a.Title,
			"DOI":          a.DOI,
			"DOIURL":       DOIURL(a.DOI),
		},
	})
	if err != nil {
		svc.logger.Error("publication.Publish: notifying authors", err)
	}
}
