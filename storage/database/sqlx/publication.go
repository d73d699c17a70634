package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/jarida/core"
	"github.com/trezcool/jarida/core/publication"
)

const (
	issueColumns   = `id, volume, number, year, title, published_at, created_at`
	articleColumns = `id, submission_id, issue_id, doi, title, abstract, keywords, subject_area, article_type, authors,
		pages, published_at, deposit_status, deposit_batch_id, deposit_message, updated_at`
)

type issueRow struct {
	ID          string    `db:"id"`
	Volume      int       `db:"volume"`
	Number      int       `db:"number"`
	Year        int       `db:"year"`
	Title       string    `db:"title"`
	PublishedAt null.Time `db:"published_at"`
	CreatedAt   time.Time `db:"created_at"`
}

type articleRow struct {
	ID             string         `db:"id"`
	SubmissionID   string         `db:"submission_id"`
	IssueID        null.String    `db:"issue_id"`
	DOI            string         `db:"doi"`
	Title          string         `db:"title"`
	Abstract       string         `db:"abstract"`
	Keywords       pq.StringArray `db:"keywords"`
	SubjectArea    string         `db:"subject_area"`
	ArticleType    string         `db:"article_type"`
	Authors        null.JSON      `db:"authors"`
	Pages          string         `db:"pages"`
	PublishedAt    time.Time      `db:"published_at"`
	DepositStatus  string         `db:"deposit_status"`
	DepositBatchID string         `db:"deposit_batch_id"`
	DepositMessage string         `db:"deposit_message"`
	UpdatedAt      time.Time      `db:"updated_at"`
}

type publicationRepository struct {
	exec sqlx.ExtContext
}

var _ publication.Repository = (*publicationRepository)(nil) // interface compliance check

func NewPublicationRepository(exec sqlx.ExtContext) publication.Repository {
	return &publicationRepository{exec: exec}
}

func (repo publicationRepository) boilIssue(issue publication.Issue) issueRow {
	return issueRow{
		ID:          issue.ID,
		Volume:      issue.Volume,
		Number:      issue.Number,
		Year:        issue.Year,
		Title:       issue.Title,
		PublishedAt: nullTime(issue.PublishedAt),
		CreatedAt:   issue.CreatedAt.UTC(),
	}
}

func (repo publicationRepository) unboilIssue(row issueRow) publication.Issue {
	return publication.Issue{
		ID:          row.ID,
		Volume:      row.Volume,
		Number:      row.Number,
		Year:        row.Year,
		Title:       row.Title,
		PublishedAt: row.PublishedAt.Time.UTC(),
		CreatedAt:   row.CreatedAt.UTC(),
	}
}

func (repo publicationRepository) boilArticle(a publication.Article) (articleRow, error) {
	authors, err := marshalAuthors(a.Authors)
	if err != nil {
		return articleRow{}, err
	}
	return articleRow{
		ID:             a.ID,
		SubmissionID:   a.SubmissionID,
		IssueID:        nullID(a.IssueID),
		DOI:            a.DOI,
		Title:          a.Title,
		Abstract:       a.Abstract,
		Keywords:       textArray(a.Keywords),
		SubjectArea:    a.SubjectArea,
		ArticleType:    a.ArticleType,
		Authors:        authors,
		Pages:          a.Pages,
		PublishedAt:    a.PublishedAt.UTC(),
		DepositStatus:  string(a.DepositStatus),
		DepositBatchID: a.DepositBatchID,
		DepositMessage: a.DepositMessage,
		UpdatedAt:      a.UpdatedAt.UTC(),
	}, nil
}

func (repo publicationRepository) unboilArticle(row articleRow) (publication.Article, error) {
	authors, err := unmarshalAuthors(row.Authors)
	if err != nil {
		return publication.Article{}, err
	}
	return publication.Article{
		ID:             row.ID,
		SubmissionID:   row.SubmissionID,
		IssueID:        row.IssueID.String,
		DOI:            row.DOI,
		Title:          row.Title,
		Abstract:       row.Abstract,
		Keywords:       row.Keywords,
		SubjectArea:    row.SubjectArea,
		ArticleType:    row.ArticleType,
		Authors:        authors,
		Pages:          row.Pages,
		PublishedAt:    row.PublishedAt.UTC(),
		DepositStatus:  publication.DepositStatus(row.DepositStatus),
		DepositBatchID: row.DepositBatchID,
		DepositMessage: row.DepositMessage,
		UpdatedAt:      row.UpdatedAt.UTC(),
	}, nil
}

func (repo publicationRepository) CreateIssue(ctx context.Context, issue publication.Issue) (publication.Issue, error) {
	issue.ID = uuid.New().String()
	q := `INSERT INTO issue (` + issueColumns + `)
		VALUES (:id, :volume, :number, :year, :title, :published_at, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, repo.exec, q, repo.boilIssue(issue)); err != nil {
		if isUniqueViolation(err) {
			return publication.Issue{}, publication.ErrIssueExists
		}
		return publication.Issue{}, errors.Wrap(err, "inserting issue")
	}
	return issue, nil
}

func (repo publicationRepository) GetIssue(ctx context.Context, id string) (publication.Issue, error) {
	if !validID(id) {
		return publication.Issue{}, publication.ErrIssueNotFound
	}
	var row issueRow
	if err := getRow(ctx, repo.exec, &row, `SELECT `+issueColumns+` FROM issue WHERE id = ?`, id); err != nil {
		return publication.Issue{}, trapNoRowsErr(err, publication.ErrIssueNotFound, "finding issue by ID")
	}
	return repo.unboilIssue(row), nil
}

func (repo publicationRepository) QueryIssues(ctx context.Context) ([]publication.Issue, error) {
	var rows []issueRow
	q := `SELECT ` + issueColumns + ` FROM issue ORDER BY volume DESC, number DESC`
	if err := selectRows(ctx, repo.exec, &rows, q); err != nil {
		return nil, errors.Wrap(err, "querying issues")
	}
	issues := make([]publication.Issue, 0, len(rows))
	for _, row := range rows {
		issues = append(issues, repo.unboilIssue(row))
	}
	return issues, nil
}

func (repo publicationRepository) UpdateIssue(ctx context.Context, issue publication.Issue) (publication.Issue, error) {
	if !validID(issue.ID) {
		return publication.Issue{}, publication.ErrIssueNotFound
	}
	q := `UPDATE issue SET title = :title, published_at = :published_at WHERE id = :id`
	cnt, err := namedExecAffected(ctx, repo.exec, q, repo.boilIssue(issue))
	if err != nil {
		return publication.Issue{}, errors.Wrap(err, "updating issue")
	}
	if cnt == 0 {
		return publication.Issue{}, publication.ErrIssueNotFound
	}
	return issue, nil
}

func (repo publicationRepository) CreateArticle(ctx context.Context, a publication.Article) (publication.Article, error) {
	a.ID = uuid.New().String()
	row, err := repo.boilArticle(a)
	if err != nil {
		return publication.Article{}, err
	}
	q := `INSERT INTO article (` + articleColumns + `) VALUES (
		:id, :submission_id, :issue_id, :doi, :title, :abstract, :keywords, :subject_area, :article_type, :authors,
		:pages, :published_at, :deposit_status, :deposit_batch_id, :deposit_message, :updated_at)`
	if _, err = sqlx.NamedExecContext(ctx, repo.exec, q, row); err != nil {
		return publication.Article{}, errors.Wrap(err, "inserting article")
	}
	return a, nil
}

func (repo publicationRepository) GetArticle(ctx context.Context, filter publication.ArticleGetFilter) (publication.Article, error) {
	var where whereClause
	switch {
	case filter.ID != "":
		if !validID(filter.ID) {
			return publication.Article{}, publication.ErrArticleNotFound
		}
		where.and("id = ?", filter.ID)
	case filter.SubmissionID != "":
		if !validID(filter.SubmissionID) {
			return publication.Article{}, publication.ErrArticleNotFound
		}
		where.and("submission_id = ?", filter.SubmissionID)
	case filter.DOI != "":
		where.and("LOWER(doi) = LOWER(?)", filter.DOI)
	default:
		return publication.Article{}, publication.ErrArticleNotFound
	}

	var row articleRow
	if err := getRow(ctx, repo.exec, &row, `SELECT `+articleColumns+` FROM article`+where.String(), where.args...); err != nil {
		return publication.Article{}, trapNoRowsErr(err, publication.ErrArticleNotFound, "finding article")
	}
	return repo.unboilArticle(row)
}

func (repo publicationRepository) articleWhere(filter publication.ArticleFilter) whereClause {
	var where whereClause
	if filter.IDs != nil {
		where.and("id = ANY(?::uuid[])", validIDs(filter.IDs))
	}
	if filter.IssueID != "" {
		if validID(filter.IssueID) {
			where.and("issue_id = ?", filter.IssueID)
		} else {
			where.and("FALSE")
		}
	}
	if filter.DepositStatus != "" {
		where.and("deposit_status = ?", string(filter.DepositStatus))
	}
	if !filter.PublishedFrom.IsZero() {
		where.and("published_at >= ?", filter.PublishedFrom.UTC())
	}
	if !filter.PublishedUntil.IsZero() {
		where.and("published_at < ?", filter.PublishedUntil.UTC())
	}
	// articles with Title or DOI matching the search keyword, or having it as keyword
	if filter.Search != "" {
		val := "%" + filter.Search + "%"
		where.and("(title ILIKE ? OR doi ILIKE ? OR LOWER(?) = ANY(keywords))", val, val, filter.Search)
	}
	return where
}

func (repo publicationRepository) QueryArticles(
	ctx context.Context,
	filter publication.ArticleFilter,
	ordering []core.DBOrdering,
	page core.Page,
) ([]publication.Article, error) {
	where := repo.articleWhere(filter)
	limit, limitArgs := paginate(page)
	q := `SELECT ` + articleColumns + ` FROM article` + where.String() + orderBy(ordering, "published_at DESC") + limit

	var rows []articleRow
	if err := selectRows(ctx, repo.exec, &rows, q, append(where.args, limitArgs...)...); err != nil {
		return nil, errors.Wrap(err, "querying articles")
	}
	articles := make([]publication.Article, 0, len(rows))
	for _, row := range rows {
		a, err := repo.unboilArticle(row)
		if err != nil {
			return nil, err
		}
		articles = append(articles, a)
	}
	return articles, nil
}

func (repo publicationRepository) CountArticles(ctx context.Context, filter publication.ArticleFilter) (int, error) {
	where := repo.articleWhere(filter)
	var cnt int
	if err := getRow(ctx, repo.exec, &cnt, `SELECT COUNT(*) FROM article`+where.String(), where.args...); err != nil {
		return 0, errors.Wrap(err, "counting articles")
	}
	return cnt, nil
}

func (repo publicationRepository) UpdateArticle(ctx context.Context, a publication.Article) (publication.Article, error) {
	if !validID(a.ID) {
		return publication.Article{}, publication.ErrArticleNotFound
	}
	row, err := repo.boilArticle(a)
	if err != nil {
		return publication.Article{}, err
	}
	q := `UPDATE article SET issue_id = :issue_id, title = :title, abstract = :abstract, keywords = :keywords,
		authors = :authors, pages = :pages, deposit_status = :deposit_status, deposit_batch_id = :deposit_batch_id,
		deposit_message = :deposit_message, updated_at = :updated_at
		WHERE id = :id`
	cnt, err := namedExecAffected(ctx, repo.exec, q, row)
	if err != nil {
		return publication.Article{}, errors.Wrap(err, "updating article")
	}
	if cnt == 0 {
		return publication.Article{}, publication.ErrArticleNotFound
	}
	return a, nil
}
