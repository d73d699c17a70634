package publication

import (
	"context"
	"fmt"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/jarida/core"
	"github.com/trezcool/jarida/core/submission"
)

// oaiRepoMock keeps articles sorted by publication date.
type oaiRepoMock struct {
	articles []Article
	issues   map[string]Issue
}

func (r *oaiRepoMock) match(filter ArticleFilter) []Article {
	var out []Article
	for _, a := range r.articles {
		if !filter.PublishedFrom.IsZero() && a.PublishedAt.Before(filter.PublishedFrom) {
			continue
		}
		if !filter.PublishedUntil.IsZero() && !a.PublishedAt.Before(filter.PublishedUntil) {
			continue
		}
		out = append(out, a)
	}
	return out
}

func (r *oaiRepoMock) QueryArticles(_ context.Context, filter ArticleFilter, _ []core.DBOrdering, page core.Page) ([]Article, error) {
	all := r.match(filter)
	if page.Offset >= len(all) {
		return nil, nil
	}
	all = all[page.Offset:]
	if page.Limit > 0 && len(all) > page.Limit {
		all = all[:page.Limit]
	}
	return all, nil
}

func (r *oaiRepoMock) CountArticles(_ context.Context, filter ArticleFilter) (int, error) {
	return len(r.match(filter)), nil
}

func (r *oaiRepoMock) GetArticle(_ context.Context, filter ArticleGetFilter) (Article, error) {
	for _, a := range r.articles {
		if a.ID == filter.ID {
			return a, nil
		}
	}
	return Article{}, ErrArticleNotFound
}

func (r *oaiRepoMock) GetIssue(_ context.Context, id string) (Issue, error) {
	if issue, ok := r.issues[id]; ok {
		return issue, nil
	}
	return Issue{}, ErrIssueNotFound
}

func newOAIProvider(n int) *OAIProvider {
	repo := &oaiRepoMock{issues: map[string]Issue{"iss-1": {ID: "iss-1", Volume: 3, Number: 1, Year: 2026}}}
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		repo.articles = append(repo.articles, Article{
			ID:          fmt.Sprintf("art-%03d", i),
			IssueID:     "iss-1",
			DOI:         MintDOI("10.5555", "JJS", 2026, i+1),
			Title:       fmt.Sprintf("Article %d", i),
			Authors:     []submission.Author{{Name: "Ada King Lovelace"}},
			Keywords:    []string{"soil"},
			PublishedAt: start.AddDate(0, 0, i),
		})
	}
	return NewOAIProvider(repo, core.NewTestConfig())
}

func oaiArgs(pairs ...string) url.Values {
	args := make(url.Values)
	for i := 0; i+1 < len(pairs); i += 2 {
		args.Add(pairs[i], pairs[i+1])
	}
	return args
}

func TestOAIProvider_errors(t *testing.T) {
	p := newOAIProvider(3)

	tests := []struct {
		name     string
		args     url.Values
		wantCode string
	}{
		{name: "no verb", args: oaiArgs(), wantCode: OAIBadVerb},
		{name: "unknown verb", args: oaiArgs("verb", "Harvest"), wantCode: OAIBadVerb},
		{name: "repeated verb", args: oaiArgs("verb", "Identify", "verb", "Identify"), wantCode: OAIBadVerb},
		{name: "illegal argument", args: oaiArgs("verb", "Identify", "from", "2026-01-01"), wantCode: OAIBadArgument},
		{name: "missing prefix", args: oaiArgs("verb", "ListRecords"), wantCode: OAIBadArgument},
		{name: "repeated argument", args: oaiArgs("verb", "ListRecords", "metadataPrefix", "oai_dc", "metadataPrefix", "oai_dc"), wantCode: OAIBadArgument},
		{name: "exclusive token", args: oaiArgs("verb", "ListRecords", "metadataPrefix", "oai_dc", "resumptionToken", "abc"), wantCode: OAIBadArgument},
		{name: "bad token", args: oaiArgs("verb", "ListRecords", "resumptionToken", "!!"), wantCode: OAIBadResumptionToken},
		{name: "unknown format", args: oaiArgs("verb", "ListIdentifiers", "metadataPrefix", "marc21"), wantCode: OAICannotDisseminateFormat},
		{name: "sets", args: oaiArgs("verb", "ListSets"), wantCode: OAINoSetHierarchy},
		{name: "bad from", args: oaiArgs("verb", "ListRecords", "metadataPrefix", "oai_dc", "from", "01/02/2026"), wantCode: OAIBadArgument},
		{name: "from after until", args: oaiArgs("verb", "ListRecords", "metadataPrefix", "oai_dc", "from", "2026-02-01", "until", "2026-01-01"), wantCode: OAIBadArgument},
		{name: "no records", args: oaiArgs("verb", "ListRecords", "metadataPrefix", "oai_dc", "from", "2027-01-01"), wantCode: OAINoRecordsMatch},
		{name: "unknown record", args: oaiArgs("verb", "GetRecord", "metadataPrefix", "oai_dc", "identifier", "oai:journal.test:nope"), wantCode: OAIIDDoesNotExist},
		{name: "foreign identifier", args: oaiArgs("verb", "GetRecord", "metadataPrefix", "oai_dc", "identifier", "oai:elsewhere.org:art-000"), wantCode: OAIIDDoesNotExist},
		{name: "formats of unknown record", args: oaiArgs("verb", "ListMetadataFormats", "identifier", "oai:journal.test:nope"), wantCode: OAIIDDoesNotExist},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := p.Handle(context.Background(), tt.args, time.Now())
			require.NoError(t, err)
			require.Len(t, resp.Errors, 1)
			assert.Equal(t, tt.wantCode, resp.Errors[0].Code)
		})
	}
}

func TestOAIProvider_Identify(t *testing.T) {
	p := newOAIProvider(2)

	resp, err := p.Handle(context.Background(), oaiArgs("verb", "Identify"), time.Now())
	require.NoError(t, err)
	require.NotNil(t, resp.Identify)
	assert.Equal(t, "Jarida Journal of Science", resp.Identify.RepositoryName)
	assert.Equal(t, "https://journal.test/oai", resp.Identify.BaseURL)
	assert.Equal(t, "2026-01-01", resp.Identify.EarliestDatestamp)
	assert.Equal(t, "Identify", resp.Request.Verb)

	out, err := MarshalOAI(resp)
	require.NoError(t, err)
	assert.Contains(t, string(out), "<repositoryName>Jarida Journal of Science</repositoryName>")
}

func TestOAIProvider_GetRecord(t *testing.T) {
	p := newOAIProvider(2)
	ctx := context.Background()

	resp, err := p.Handle(ctx, oaiArgs("verb", "GetRecord", "metadataPrefix", "oai_dc", "identifier", p.Identifier("art-001")), time.Now())
	require.NoError(t, err)
	require.Empty(t, resp.Errors)
	rec := resp.GetRecord.Record
	assert.Equal(t, "oai:journal.test:art-001", rec.Header.Identifier)
	assert.Equal(t, "2026-01-02", rec.Header.Datestamp)
	assert.Equal(t, []string{"Lovelace, Ada King"}, rec.Metadata.Creators)
	assert.Equal(t, "Jarida Journal of Science; Vol. 3 No. 1 (2026); ISSN 1234-5679", rec.Metadata.Source)
	assert.Equal(t, []string{"https://doi.org/10.5555/JJS.2026.00002", "https://journal.test/articles/art-001"}, rec.Metadata.Identifiers)

	resp, err = p.Handle(ctx, oaiArgs("verb", "ListMetadataFormats", "identifier", p.Identifier("art-001")), time.Now())
	require.NoError(t, err)
	require.Empty(t, resp.Errors)
	assert.Equal(t, "oai_dc", resp.ListMetadataFormats.Formats[0].MetadataPrefix)
}

func TestOAIProvider_list(t *testing.T) {
	p := newOAIProvider(oaiPageSize + 5)
	ctx := context.Background()

	resp, err := p.Handle(ctx, oaiArgs("verb", "ListIdentifiers", "metadataPrefix", "oai_dc"), time.Now())
	require.NoError(t, err)
	require.Empty(t, resp.Errors)
	list := resp.ListIdentifiers
	assert.Len(t, list.Headers, oaiPageSize)
	require.NotNil(t, list.ResumptionToken)
	assert.Equal(t, oaiPageSize+5, list.ResumptionToken.CompleteListSize)
	assert.Equal(t, 0, list.ResumptionToken.Cursor)
	require.NotEmpty(t, list.ResumptionToken.Token)

	// tokens are bound to their verb
	resp, err = p.Handle(ctx, oaiArgs("verb", "ListRecords", "resumptionToken", list.ResumptionToken.Token), time.Now())
	require.NoError(t, err)
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, OAIBadResumptionToken, resp.Errors[0].Code)

	resp, err = p.Handle(ctx, oaiArgs("verb", "ListIdentifiers", "resumptionToken", list.ResumptionToken.Token), time.Now())
	require.NoError(t, err)
	require.Empty(t, resp.Errors)
	last := resp.ListIdentifiers
	assert.Len(t, last.Headers, 5)
	require.NotNil(t, last.ResumptionToken)
	assert.Equal(t, oaiPageSize, last.ResumptionToken.Cursor)
	assert.Empty(t, last.ResumptionToken.Token)

	// date range, inclusive
	resp, err = p.Handle(ctx, oaiArgs("verb", "ListRecords", "metadataPrefix", "oai_dc", "from", "2026-01-02", "until", "2026-01-04"), time.Now())
	require.NoError(t, err)
	require.Empty(t, resp.Errors)
	require.Len(t, resp.ListRecords.Records, 3)
	assert.Nil(t, resp.ListRecords.ResumptionToken)
	assert.Equal(t, "oai:journal.test:art-001", resp.ListRecords.Records[0].Header.Identifier)
}

func Test_oaiToken(t *testing.T) {
	tok := oaiToken{verb: "ListRecords", offset: 200, from: "2026-01-01"}
	got, err := decodeOAIToken(tok.encode())
	require.NoError(t, err)
	assert.Equal(t, tok, got)

	for _, raw := range []string{"%%%", "TGlzdFJlY29yZHM", oaiToken{verb: "ListRecords", offset: -1}.encode()} {
		_, err = decodeOAIToken(raw)
		assert.Error(t, err, raw)
	}
}
