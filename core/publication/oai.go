package publication

import (
	"context"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/jarida/core"
)

const (
	oaiNamespace   = "http://www.openarchives.org/OAI/2.0/"
	oaiSchema      = "http://www.openarchives.org/OAI/2.0/ http://www.openarchives.org/OAI/2.0/OAI-PMH.xsd"
	oaiDatestamp   = "2006-01-02"
	oaiPageSize    = 100
	oaiMetadataDC  = "oai_dc"
	oaiEarliestDay = "1970-01-01"
)

// OAI-PMH error codes
const (
	OAIBadVerb                 = "badVerb"
	OAIBadArgument             = "badArgument"
	OAICannotDisseminateFormat = "cannotDisseminateFormat"
	OAIIDDoesNotExist          = "idDoesNotExist"
	OAINoRecordsMatch          = "noRecordsMatch"
	OAIBadResumptionToken      = "badResumptionToken"
	OAINoSetHierarchy          = "noSetHierarchy"
)

var oaiOrdering = []core.DBOrdering{{Field: "published_at", Ascending: true}}

var oaiVerbArgs = map[string]struct{ required, optional []string }{
	"Identify":            {},
	"ListMetadataFormats": {optional: []string{"identifier"}},
	"ListSets":            {optional: []string{"resumptionToken"}},
	"ListIdentifiers":     {required: []string{"metadataPrefix"}, optional: []string{"from", "until", "set"}},
	"ListRecords":         {required: []string{"metadataPrefix"}, optional: []string{"from", "until", "set"}},
	"GetRecord":           {required: []string{"identifier", "metadataPrefix"}},
}

type (
	OAIResponse struct {
		XMLName             xml.Name                `xml:"OAI-PMH"`
		Xmlns               string                  `xml:"xmlns,attr"`
		XmlnsXSI            string                  `xml:"xmlns:xsi,attr"`
		SchemaLocation      string                  `xml:"xsi:schemaLocation,attr"`
		ResponseDate        string                  `xml:"responseDate"`
		Request             OAIRequest              `xml:"request"`
		Errors              []OAIError              `xml:"error,omitempty"`
		Identify            *OAIIdentify            `xml:"Identify,omitempty"`
		ListMetadataFormats *OAIListMetadataFormats `xml:"ListMetadataFormats,omitempty"`
		ListIdentifiers     *OAIListIdentifiers     `xml:"ListIdentifiers,omitempty"`
		ListRecords         *OAIListRecords         `xml:"ListRecords,omitempty"`
		GetRecord           *OAIGetRecord           `xml:"GetRecord,omitempty"`
	}

	OAIRequest struct {
		Verb            string `xml:"verb,attr,omitempty"`
		Identifier      string `xml:"identifier,attr,omitempty"`
		MetadataPrefix  string `xml:"metadataPrefix,attr,omitempty"`
		From            string `xml:"from,attr,omitempty"`
		Until           string `xml:"until,attr,omitempty"`
		Set             string `xml:"set,attr,omitempty"`
		ResumptionToken string `xml:"resumptionToken,attr,omitempty"`
		URL             string `xml:",chardata"`
	}

	OAIError struct {
		Code    string `xml:"code,attr"`
		Message string `xml:",chardata"`
	}

	OAIIdentify struct {
		RepositoryName    string `xml:"repositoryName"`
		BaseURL           string `xml:"baseURL"`
		ProtocolVersion   string `xml:"protocolVersion"`
		AdminEmail        string `xml:"adminEmail"`
		EarliestDatestamp string `xml:"earliestDatestamp"`
		DeletedRecord     string `xml:"deletedRecord"`
		Granularity       string `xml:"granularity"`
	}

	OAIMetadataFormat struct {
		MetadataPrefix    string `xml:"metadataPrefix"`
		Schema            string `xml:"schema"`
		MetadataNamespace string `xml:"metadataNamespace"`
	}

	OAIListMetadataFormats struct {
		Formats []OAIMetadataFormat `xml:"metadataFormat"`
	}

	OAIHeader struct {
		Identifier string `xml:"identifier"`
		Datestamp  string `xml:"datestamp"`
	}

	OAIRecord struct {
		Header   OAIHeader   `xml:"header"`
		Metadata *DublinCore `xml:"metadata>oai_dc:dc"`
	}

	OAIResumptionToken struct {
		CompleteListSize int    `xml:"completeListSize,attr"`
		Cursor           int    `xml:"cursor,attr"`
		Token            string `xml:",chardata"`
	}

	OAIListIdentifiers struct {
		Headers         []OAIHeader         `xml:"header"`
		ResumptionToken *OAIResumptionToken `xml:"resumptionToken,omitempty"`
	}

	OAIListRecords struct {
		Records         []OAIRecord         `xml:"record"`
		ResumptionToken *OAIResumptionToken `xml:"resumptionToken,omitempty"`
	}

	OAIGetRecord struct {
		Record OAIRecord `xml:"record"`
	}
)

// oaiRepository is what the OAI-PMH provider reads.
type oaiRepository interface {
	QueryArticles(ctx context.Context, filter ArticleFilter, ordering []core.DBOrdering, page core.Page) ([]Article, error)
	CountArticles(ctx context.Context, filter ArticleFilter) (int, error)
	GetArticle(ctx context.Context, filter ArticleGetFilter) (Article, error)
	GetIssue(ctx context.Context, id string) (Issue, error)
}

// OAIProvider answers OAI-PMH 2.0 requests over the published articles.
type OAIProvider struct {
	repo oaiRepository
	conf core.JournalConfig
	host string
}

func NewOAIProvider(repo oaiRepository, conf *core.Config) *OAIProvider {
	host := conf.Server.Host
	if u, err := url.Parse(conf.Journal.BaseURL); err == nil && u.Hostname() != "" {
		host = u.Hostname()
	}
	return &OAIProvider{repo: repo, conf: conf.Journal, host: host}
}

func (p *OAIProvider) baseURL() string { return p.conf.BaseURL + "/oai" }

// Identifier is the OAI identifier of an article.
func (p *OAIProvider) Identifier(articleID string) string {
	return fmt.Sprintf("oai:%s:%s", p.host, articleID)
}

func (p *OAIProvider) articleID(identifier string) (string, bool) {
	prefix := fmt.Sprintf("oai:%s:", p.host)
	if !strings.HasPrefix(identifier, prefix) || len(identifier) == len(prefix) {
		return "", false
	}
	return strings.TrimPrefix(identifier, prefix), true
}

// oaiToken is the state carried by a resumption token.
type oaiToken struct {
	verb   string
	offset int
	from   string
	until  string
}

func (t oaiToken) encode() string {
	raw := strings.Join([]string{t.verb, strconv.Itoa(t.offset), t.from, t.until}, "|")
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

func decodeOAIToken(s string) (oaiToken, error) {
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return oaiToken{}, err
	}
	parts := strings.Split(string(raw), "|")
	if len(parts) != 4 {
		return oaiToken{}, errors.New("malformed token")
	}
	offset, err := strconv.Atoi(parts[1])
	if err != nil || offset < 0 {
		return oaiToken{}, errors.New("malformed offset")
	}
	return oaiToken{verb: parts[0], offset: offset, from: parts[2], until: parts[3]}, nil
}

// Handle answers an OAI-PMH request. OAI-PMH errors are part of the response; err is only set on failures.
func (p *OAIProvider) Handle(ctx context.Context, args url.Values, now time.Time) (*OAIResponse, error) {
	resp := &OAIResponse{
		Xmlns:          oaiNamespace,
		XmlnsXSI:       xsiNamespace,
		SchemaLocation: oaiSchema,
		ResponseDate:   now.UTC().Format(time.RFC3339),
		Request:        OAIRequest{URL: p.baseURL()},
	}
	fail := func(code, msg string) (*OAIResponse, error) {
		resp.Errors = append(resp.Errors, OAIError{Code: code, Message: msg})
		return resp, nil
	}

	verb := args.Get("verb")
	spec, ok := oaiVerbArgs[verb]
	if !ok || len(args["verb"]) > 1 {
		return fail(OAIBadVerb, "illegal OAI verb")
	}
	resp.Request.Verb = verb

	// arguments are echoed back only when valid
	token := args.Get("resumptionToken")
	for name, values := range args {
		if name == "verb" {
			continue
		}
		if len(values) > 1 {
			return fail(OAIBadArgument, "repeated argument "+name)
		}
		allowed := core.StringInSlice(name, spec.required) || core.StringInSlice(name, spec.optional)
		if name == "resumptionToken" && (verb == "ListIdentifiers" || verb == "ListRecords") {
			allowed = true
		}
		if !allowed {
			return fail(OAIBadArgument, "illegal argument "+name)
		}
	}
	if token != "" {
		if len(args) > 2 {
			return fail(OAIBadArgument, "resumptionToken is an exclusive argument")
		}
	} else {
		for _, name := range spec.required {
			if args.Get(name) == "" {
				return fail(OAIBadArgument, "missing argument "+name)
			}
		}
	}

	resp.Request.Identifier = args.Get("identifier")
	resp.Request.MetadataPrefix = args.Get("metadataPrefix")
	resp.Request.From = args.Get("from")
	resp.Request.Until = args.Get("until")
	resp.Request.Set = args.Get("set")
	resp.Request.ResumptionToken = token

	switch verb {
	case "Identify":
		resp.Identify = p.identify(ctx)
	case "ListMetadataFormats":
		if id := args.Get("identifier"); id != "" {
			if code, msg := p.checkIdentifier(ctx, id); code != "" {
				return fail(code, msg)
			}
		}
		resp.ListMetadataFormats = &OAIListMetadataFormats{Formats: []OAIMetadataFormat{{
			MetadataPrefix:    oaiMetadataDC,
			Schema:            oaiDCSchema,
			MetadataNamespace: oaiDCNamespace,
		}}}
	case "ListSets":
		if token != "" {
			return fail(OAIBadResumptionToken, "sets are not paginated")
		}
		return fail(OAINoSetHierarchy, "this repository does not support sets")
	case "GetRecord":
		if args.Get("metadataPrefix") != oaiMetadataDC {
			return fail(OAICannotDisseminateFormat, "only oai_dc is supported")
		}
		id, ok := p.articleID(args.Get("identifier"))
		if !ok {
			return fail(OAIIDDoesNotExist, "unknown identifier")
		}
		a, err := p.repo.GetArticle(ctx, ArticleGetFilter{ID: id})
		if err != nil {
			if core.IsNotFound(err) {
				return fail(OAIIDDoesNotExist, "unknown identifier")
			}
			return nil, errors.Wrap(err, "getting article")
		}
		rec, err := p.record(ctx, a)
		if err != nil {
			return nil, err
		}
		resp.GetRecord = &OAIGetRecord{Record: rec}
	case "ListIdentifiers", "ListRecords":
		return p.list(ctx, resp, verb, args)
	}
	return resp, nil
}

func (p *OAIProvider) identify(ctx context.Context) *OAIIdentify {
	earliest := oaiEarliestDay
	if first, err := p.repo.QueryArticles(ctx, ArticleFilter{}, oaiOrdering, core.Page{Limit: 1}); err == nil && len(first) > 0 {
		earliest = first[0].PublishedAt.Format(oaiDatestamp)
	}
	return &OAIIdentify{
		RepositoryName:    p.conf.Name,
		BaseURL:           p.baseURL(),
		ProtocolVersion:   "2.0",
		AdminEmail:        p.conf.ContactEmail,
		EarliestDatestamp: earliest,
		DeletedRecord:     "no",
		Granularity:       "YYYY-MM-DD",
	}
}

func (p *OAIProvider) checkIdentifier(ctx context.Context, identifier string) (code, msg string) {
	id, ok := p.articleID(identifier)
	if !ok {
		return OAIIDDoesNotExist, "unknown identifier"
	}
	if _, err := p.repo.GetArticle(ctx, ArticleGetFilter{ID: id}); err != nil {
		return OAIIDDoesNotExist, "unknown identifier"
	}
	return "", ""
}

func (p *OAIProvider) record(ctx context.Context, a Article) (OAIRecord, error) {
	var issue Issue
	if a.IssueID != "" {
		var err error
		if issue, err = p.repo.GetIssue(ctx, a.IssueID); err != nil && !core.IsNotFound(err) {
			return OAIRecord{}, errors.Wrap(err, "getting issue")
		}
	}
	dc := NewDublinCore(p.conf, a, issue)
	return OAIRecord{
		Header:   OAIHeader{Identifier: p.Identifier(a.ID), Datestamp: a.PublishedAt.Format(oaiDatestamp)},
		Metadata: &dc,
	}, nil
}

func parseOAIDay(s string) (time.Time, error) {
	return time.ParseInLocation(oaiDatestamp, s, time.UTC)
}

func (p *OAIProvider) list(ctx context.Context, resp *OAIResponse, verb string, args url.Values) (*OAIResponse, error) {
	fail := func(code, msg string) (*OAIResponse, error) {
		resp.Errors = append(resp.Errors, OAIError{Code: code, Message: msg})
		return resp, nil
	}

	tok := oaiToken{verb: verb, from: args.Get("from"), until: args.Get("until")}
	if raw := args.Get("resumptionToken"); raw != "" {
		var err error
		if tok, err = decodeOAIToken(raw); err != nil || tok.verb != verb {
			return fail(OAIBadResumptionToken, "invalid or expired resumption token")
		}
	} else {
		if args.Get("metadataPrefix") != oaiMetadataDC {
			return fail(OAICannotDisseminateFormat, "only oai_dc is supported")
		}
		if args.Get("set") != "" {
			return fail(OAINoSetHierarchy, "this repository does not support sets")
		}
	}

	var filter ArticleFilter
	if tok.from != "" {
		from, err := parseOAIDay(tok.from)
		if err != nil {
			return fail(OAIBadArgument, "from must be a YYYY-MM-DD date")
		}
		filter.PublishedFrom = from
	}
	if tok.until != "" {
		until, err := parseOAIDay(tok.until)
		if err != nil {
			return fail(OAIBadArgument, "until must be a YYYY-MM-DD date")
		}
		filter.PublishedUntil = until.AddDate(0, 0, 1)
	}
	if !filter.PublishedFrom.IsZero() && !filter.PublishedUntil.IsZero() && !filter.PublishedFrom.Before(filter.PublishedUntil) {
		return fail(OAIBadArgument, "from must not be after until")
	}

	total, err := p.repo.CountArticles(ctx, filter)
	if err != nil {
		return nil, errors.Wrap(err, "counting articles")
	}
	if tok.offset > 0 && tok.offset >= total {
		return fail(OAIBadResumptionToken, "invalid or expired resumption token")
	}
	articles, err := p.repo.QueryArticles(ctx, filter, oaiOrdering, core.Page{Limit: oaiPageSize, Offset: tok.offset})
	if err != nil {
		return nil, errors.Wrap(err, "querying articles")
	}
	if len(articles) == 0 {
		return fail(OAINoRecordsMatch, "no records match the request")
	}

	var rt *OAIResumptionToken
	if next := tok.offset + len(articles); next < total || tok.offset > 0 {
		rt = &OAIResumptionToken{CompleteListSize: total, Cursor: tok.offset}
		if next < total {
			rt.Token = oaiToken{verb: verb, offset: next, from: tok.from, until: tok.until}.encode()
		}
	}

	if verb == "ListIdentifiers" {
		list := &OAIListIdentifiers{ResumptionToken: rt}
		for _, a := range articles {
			list.Headers = append(list.Headers, OAIHeader{Identifier: p.Identifier(a.ID), Datestamp: a.PublishedAt.Format(oaiDatestamp)})
		}
		resp.ListIdentifiers = list
		return resp, nil
	}

	list := &OAIListRecords{ResumptionToken: rt}
	for _, a := range articles {
		rec, err := p.record(ctx, a)
		if err != nil {
			return nil, err
		}
		list.Records = append(list.Records, rec)
	}
	resp.ListRecords = list
	return resp, nil
}

// MarshalOAI renders an OAI-PMH response document.
func MarshalOAI(resp *OAIResponse) ([]byte, error) {
	out, err := xml.MarshalIndent(resp, "", "  ")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), out...), nil
}
