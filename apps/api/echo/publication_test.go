package echoapi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/jarida/core/file"
	"github.com/trezcool/jarida/core/production"
	"github.com/trezcool/jarida/core/publication"
	testutil "github.com/trezcool/jarida/tests"
)

func TestPublicationApi(t *testing.T) {
	env.Reset()
	_, editor, author, _ := createUsers(t)
	s, typesetter := startProduction(t, editor, author)
	editorToken := getToken(t, editor)
	publishPath := "/v1/submissions/" + s.ID + "/publish"

	t.Run("not ready", func(t *testing.T) {
		rec := do(http.MethodPost, publishPath, editorToken, marchallObj(t, publication.PublishArticle{IssueID: "none"}))
		assert.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())
	})

	testutil.StoreFile(t, env.FileSvc, s.ID, file.KindGalleyPDF, typesetter)
	for _, stage := range []production.Stage{production.StageTypesetting, production.StageProofing, production.StageReady} {
		_, err := env.ProductionSvc.Advance(context.Background(), s.ID, typesetter, production.Advance{Stage: stage})
		require.NoError(t, err)
	}

	var issueID string
	t.Run("issues", func(t *testing.T) {
		ni := publication.NewIssue{Volume: 3, Number: 2, Year: 2026, Title: "Drylands"}
		rec := do(http.MethodPost, "/v1/issues", getToken(t, author), marchallObj(t, ni))
		assert.Equal(t, http.StatusForbidden, rec.Code)

		rec = do(http.MethodPost, "/v1/issues", editorToken, marchallObj(t, publication.NewIssue{Volume: 0, Number: 1, Year: 2026}))
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		rec = do(http.MethodPost, "/v1/issues", editorToken, marchallObj(t, ni))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		issueID = field(rec, "id").String()

		rec = do(http.MethodPost, "/v1/issues", editorToken, marchallObj(t, ni))
		assert.Equal(t, http.StatusConflict, rec.Code)

		rec = do(http.MethodPost, "/v1/issues/"+issueID+"/publish", editorToken)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.False(t, field(rec, "published_at").Time().IsZero())

		// public listing
		rec = do(http.MethodGet, "/v1/issues", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Len(t, field(rec, "@this").Array(), 1)
	})

	t.Run("invalid pages", func(t *testing.T) {
		rec := do(http.MethodPost, publishPath, editorToken, marchallObj(t, publication.PublishArticle{IssueID: issueID, Pages: "12 to 25"}))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.JSONEq(t, `{"pages":"pages must look like 12 or 12-25"}`, rec.Body.String())
	})

	var articleID, doi string
	t.Run("publish", func(t *testing.T) {
		rec := do(http.MethodPost, publishPath, editorToken, marchallObj(t, publication.PublishArticle{IssueID: issueID, Pages: "12-25"}))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		articleID = field(rec, "id").String()
		doi = field(rec, "doi").String()

		assert.Equal(t, fmt.Sprintf("10.5555/JJS.%d.00001", time.Now().UTC().Year()), doi)
		assert.Equal(t, string(publication.DepositRegistered), field(rec, "deposit_status").String())
		requests := env.Registrar.Requests()
		require.Len(t, requests, 1)
		assert.Equal(t, doi, requests[0].DOI)
		assert.Contains(t, string(requests[0].XML), doi)

		rec = do(http.MethodGet, "/v1/submissions/"+s.ID, editorToken)
		assert.Equal(t, "published", field(rec, "status").String())
	})

	runHTTPTests(t, []httpTest{
		{
			name:     "unknown article",
			path:     "/v1/articles/4c4f4b3c-0d3c-4c4e-9a6f-1f1f1f1f1f1f",
			wantCode: http.StatusNotFound,
		},
		{
			name:     "bad date filter",
			path:     "/v1/articles?from=yesterday",
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"from":"expected a YYYY-MM-DD date"}`),
		},
		{
			name:     "published before",
			path:     "/v1/articles?until=2000-01-01",
			wantData: marchallList(t),
		},
		{
			name:     "unknown metadata format",
			path:     "/v1/articles/" + articleID + "/metadata?format=bibtex",
			wantCode: http.StatusBadRequest,
		},
	})

	t.Run("articles", func(t *testing.T) {
		rec := do(http.MethodGet, "/v1/articles?search=microbiome&from=2000-01-01", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, articleID, field(rec, "0.id").String())

		rec = do(http.MethodGet, "/v1/articles/"+articleID, "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "12-25", field(rec, "pages").String())
	})

	t.Run("metadata", func(t *testing.T) {
		rec := do(http.MethodGet, "/v1/articles/"+articleID+"/metadata", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/vnd.citationstyles.csl+json", rec.Header().Get("Content-Type"))
		assert.Equal(t, doi, field(rec, "0.DOI").String())
		assert.Equal(t, "12-25", field(rec, "0.page").String())

		rec = do(http.MethodGet, "/v1/articles/"+articleID+"/metadata?format=crossref", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/vnd.crossref.unixsd+xml", rec.Header().Get("Content-Type"))
		assert.Contains(t, rec.Body.String(), "<doi>"+doi+"</doi>")

		rec = do(http.MethodGet, "/v1/articles/"+articleID+"/metadata?format=dc", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "Soil microbiome shifts under prolonged drought")
	})

	t.Run("redeposit", func(t *testing.T) {
		env.Registrar.Fail = true
		rec := do(http.MethodPost, "/v1/articles/"+articleID+"/deposit", editorToken)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, string(publication.DepositFailed), field(rec, "deposit_status").String())
		assert.Equal(t, "registrar unavailable", field(rec, "deposit_message").String())

		rec = do(http.MethodGet, "/v1/articles?deposit_status=failed", "")
		assert.Len(t, field(rec, "@this").Array(), 1)

		env.Registrar.Fail = false
		rec = do(http.MethodPost, "/v1/articles/"+articleID+"/deposit", editorToken)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, string(publication.DepositRegistered), field(rec, "deposit_status").String())
		assert.Len(t, env.Registrar.Requests(), 3)
	})

	t.Run("oai", func(t *testing.T) {
		rec := do(http.MethodGet, "/oai?verb=Identify", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "text/xml; charset=UTF-8", rec.Header().Get("Content-Type"))
		assert.Contains(t, rec.Body.String(), "<repositoryName>Jarida Journal of Science</repositoryName>")

		rec = do(http.MethodGet, "/oai?verb=Dance", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `code="badVerb"`)

		form := url.Values{"verb": {"ListIdentifiers"}, "metadataPrefix": {"oai_dc"}}
		r, rec := newRequest(http.MethodPost, "/oai", []byte(form.Encode()))
		r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		app.ServeHTTP(rec, r)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 1, strings.Count(rec.Body.String(), "<identifier>"))
	})
}
