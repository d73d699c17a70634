package sqlxrepos

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/jarida/core"
	"github.com/trezcool/jarida/core/publication"
)

func TestPublicationRepository_CreateIssue_Duplicate(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPublicationRepository(db)

	mock.ExpectExec(`INSERT INTO issue`).WillReturnError(&pq.Error{Code: uniqueViolation})
	_, err := repo.CreateIssue(context.Background(), publication.Issue{Volume: 1, Number: 1, Year: 2024, CreatedAt: core.Now()})
	assert.Equal(t, publication.ErrIssueExists, err)
	assert.True(t, core.IsConflict(err))
}

func TestPublicationRepository_GetArticle_ByDOI(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPublicationRepository(db)

	mock.ExpectQuery(`SELECT .+ FROM article WHERE LOWER\(doi\) = LOWER\(\$1\)`).
		WithArgs("10.5555/JJS.2024.00001").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	_, err := repo.GetArticle(context.Background(), publication.ArticleGetFilter{DOI: "10.5555/JJS.2024.00001"})
	assert.Equal(t, publication.ErrArticleNotFound, err)

	_, err = repo.GetArticle(context.Background(), publication.ArticleGetFilter{})
	assert.Equal(t, publication.ErrArticleNotFound, err)
}

func TestPublicationRepository_CountArticles(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPublicationRepository(db)
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	until := from.AddDate(1, 0, 0)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM article WHERE published_at >= \$1 AND published_at < \$2`).
		WithArgs(from, until).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(41))

	cnt, err := repo.CountArticles(context.Background(), publication.ArticleFilter{PublishedFrom: from, PublishedUntil: until})
	require.NoError(t, err)
	assert.Equal(t, 41, cnt)
}

func TestPublicationRepository_QueryArticles(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPublicationRepository(db)
	published := time.Date(2024, 2, 3, 0, 0, 0, 0, time.UTC)
	cols := []string{
		"id", "submission_id", "issue_id", "doi", "title", "abstract", "keywords", "subject_area", "article_type",
		"authors", "pages", "published_at", "deposit_status", "deposit_batch_id", "deposit_message", "updated_at",
	}

	mock.ExpectQuery(`SELECT .+ FROM article WHERE deposit_status = \$1 ORDER BY published_at ASC, id ASC LIMIT \$2`).
		WithArgs("failed", 100).
		WillReturnRows(sqlmock.NewRows(cols).AddRow(
			"7d8e9f00-1a2b-4c3d-8e4f-5a6b7c8d9e0f", subID, nil, "10.5555/JJS.2024.00001", "On engines", "abs",
			"{engines}", "computer_science", "research", []byte(`[{"name":"Ada Lovelace"}]`), "1-12",
			published, "failed", "b-1", "timeout", published,
		))

	articles, err := repo.QueryArticles(context.Background(),
		publication.ArticleFilter{DepositStatus: publication.DepositFailed},
		[]core.DBOrdering{{Field: "published_at", Ascending: true}},
		core.Page{Limit: 100})
	require.NoError(t, err)
	require.Len(t, articles, 1)
	assert.Equal(t, publication.DepositFailed, articles[0].DepositStatus)
	assert.Empty(t, articles[0].IssueID)
	require.Len(t, articles[0].Authors, 1)
	assert.Equal(t, "Ada Lovelace", articles[0].Authors[0].Name)
}
