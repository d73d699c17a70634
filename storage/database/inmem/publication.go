package inmemdb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/trezcool/jarida/core"
	"github.com/trezcool/jarida/core/publication"
)

type publicationRepository struct {
	db *DB
}

var _ publication.Repository = (*publicationRepository)(nil) // interface compliance check

func NewPublicationRepository(db *DB) publication.Repository {
	return &publicationRepository{db: db}
}

func (repo *publicationRepository) CreateIssue(_ context.Context, issue publication.Issue) (publication.Issue, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	issue.ID = uuid.New().String()
	repo.db.issues[issue.ID] = issue
	return issue, nil
}

func (repo *publicationRepository) GetIssue(_ context.Context, id string) (publication.Issue, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	issue, ok := repo.db.issues[id]
	if !ok {
		return publication.Issue{}, publication.ErrIssueNotFound
	}
	return issue, nil
}

func (repo *publicationRepository) QueryIssues(_ context.Context) ([]publication.Issue, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	issues := make([]publication.Issue, 0, len(repo.db.issues))
	for _, issue := range repo.db.issues {
		issues = append(issues, issue)
	}
	sort.Slice(issues, func(i, j int) bool {
		if issues[i].Volume != issues[j].Volume {
			return issues[i].Volume > issues[j].Volume
		}
		return issues[i].Number > issues[j].Number
	})
	return issues, nil
}

func (repo *publicationRepository) UpdateIssue(_ context.Context, issue publication.Issue) (publication.Issue, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.issues[issue.ID]; !ok {
		return publication.Issue{}, publication.ErrIssueNotFound
	}
	repo.db.issues[issue.ID] = issue
	return issue, nil
}

func (repo *publicationRepository) CreateArticle(_ context.Context, a publication.Article) (publication.Article, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	a.ID = uuid.New().String()
	repo.db.articles[a.ID] = a
	return a, nil
}

func (repo *publicationRepository) GetArticle(_ context.Context, filter publication.ArticleGetFilter) (publication.Article, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if filter.ID != "" {
		if a, ok := repo.db.articles[filter.ID]; ok {
			return a, nil
		}
		return publication.Article{}, publication.ErrArticleNotFound
	}
	for _, a := range repo.db.articles {
		if (filter.SubmissionID != "" && a.SubmissionID == filter.SubmissionID) || (filter.DOI != "" && a.DOI == filter.DOI) {
			return a, nil
		}
	}
	return publication.Article{}, publication.ErrArticleNotFound
}

func (repo *publicationRepository) filterArticles(filter publication.ArticleFilter) []publication.Article {
	var articles []publication.Article
	for _, a := range repo.db.articles {
		if filter.Match(a) {
			articles = append(articles, a)
		}
	}
	return articles
}

func (repo *publicationRepository) QueryArticles(
	_ context.Context,
	filter publication.ArticleFilter,
	ordering []core.DBOrdering,
	page core.Page,
) ([]publication.Article, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "published_at"}}
	}
	articles := repo.filterArticles(filter)
	sortByOrderings(len(articles), func(i, j int) { articles[i], articles[j] = articles[j], articles[i] }, func(i int, field string) interface{} {
		a := articles[i]
		switch field {
		case "title":
			return a.Title
		case "doi":
			return a.DOI
		case "id":
			return a.ID
		default:
			return a.PublishedAt
		}
	}, withIDTiebreak(ordering))

	start, end := paginate(len(articles), page)
	return articles[start:end], nil
}

func (repo *publicationRepository) CountArticles(_ context.Context, filter publication.ArticleFilter) (int, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	return len(repo.filterArticles(filter)), nil
}

func (repo *publicationRepository) UpdateArticle(_ context.Context, a publication.Article) (publication.Article, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.articles[a.ID]; !ok {
		return publication.Article{}, publication.ErrArticleNotFound
	}
	repo.db.articles[a.ID] = a
	return a, nil
}
