package publication

import (
	"encoding/xml"
	"strings"
	"time"

	"github.com/trezcool/jarida/core"
)

const (
	crossrefVersion   = "4.4.2"
	crossrefNamespace = "http://www.crossref.org/schema/4.4.2"
	crossrefSchema    = "http://www.crossref.org/schema/4.4.2 http://www.crossref.org/schemas/crossref4.4.2.xsd"
	xsiNamespace      = "http://www.w3.org/2001/XMLSchema-instance"
)

type (
	crossrefBatch struct {
		XMLName        xml.Name        `xml:"doi_batch"`
		Version        string          `xml:"version,attr"`
		Xmlns          string          `xml:"xmlns,attr"`
		XmlnsXSI       string          `xml:"xmlns:xsi,attr"`
		SchemaLocation string          `xml:"xsi:schemaLocation,attr"`
		Head           crossrefHead    `xml:"head"`
		Journal        crossrefJournal `xml:"body>journal"`
	}

	crossrefHead struct {
		BatchID    string `xml:"doi_batch_id"`
		Timestamp  string `xml:"timestamp"`
		Depositor  string `xml:"depositor>depositor_name"`
		Email      string `xml:"depositor>email_address"`
		Registrant string `xml:"registrant"`
	}

	crossrefJournal struct {
		Metadata crossrefJournalMetadata `xml:"journal_metadata"`
		Issue    *crossrefIssue          `xml:"journal_issue,omitempty"`
		Article  crossrefArticle         `xml:"journal_article"`
	}

	crossrefJournalMetadata struct {
		Language    string         `xml:"language,attr"`
		FullTitle   string         `xml:"full_title"`
		AbbrevTitle string         `xml:"abbrev_title,omitempty"`
		ISSNs       []crossrefISSN `xml:"issn"`
	}

	crossrefISSN struct {
		MediaType string `xml:"media_type,attr"`
		Value     string `xml:",chardata"`
	}

	crossrefIssue struct {
		PublicationDate crossrefDate `xml:"publication_date"`
		Volume          string       `xml:"journal_volume>volume,omitempty"`
		Issue           string       `xml:"issue,omitempty"`
	}

	crossrefDate struct {
		MediaType string `xml:"media_type,attr"`
		Month     string `xml:"month"`
		Day       string `xml:"day"`
		Year      string `xml:"year"`
	}

	crossrefArticle struct {
		PublicationType string           `xml:"publication_type,attr"`
		Title           string           `xml:"titles>title"`
		Contributors    []crossrefPerson `xml:"contributors>person_name"`
		PublicationDate crossrefDate     `xml:"publication_date"`
		Pages           *crossrefPages   `xml:"pages,omitempty"`
		DOI             string           `xml:"doi_data>doi"`
		Resource        string           `xml:"doi_data>resource"`
	}

	crossrefPerson struct {
		Sequence    string         `xml:"sequence,attr"`
		Role        string         `xml:"contributor_role,attr"`
		GivenName   string         `xml:"given_name,omitempty"`
		Surname     string         `xml:"surname"`
		Affiliation string         `xml:"affiliation,omitempty"`
		ORCID       *crossrefORCID `xml:"ORCID,omitempty"`
	}

	crossrefORCID struct {
		Authenticated bool   `xml:"authenticated,attr"`
		Value         string `xml:",chardata"`
	}

	crossrefPages struct {
		First string `xml:"first_page"`
		Last  string `xml:"last_page,omitempty"`
	}
)

func newCrossrefDate(t time.Time) crossrefDate {
	return crossrefDate{
		MediaType: "online",
		Month:     t.Format("01"),
		Day:       t.Format("02"),
		Year:      t.Format("2006"),
	}
}

// CrossrefXML renders the Crossref deposit (schema 4.4.2) of an article.
func CrossrefXML(conf core.JournalConfig, a Article, issue Issue, batchID string, now time.Time) ([]byte, error) {
	batch := crossrefBatch{
		Version:        crossrefVersion,
		Xmlns:          crossrefNamespace,
		XmlnsXSI:       xsiNamespace,
		SchemaLocation: crossrefSchema,
		Head: crossrefHead{
			BatchID:    batchID,
			Timestamp:  now.UTC().Format("20060102150405"),
			Depositor:  conf.Publisher,
			Email:      conf.ContactEmail,
			Registrant: conf.Publisher,
		},
	}

	meta := crossrefJournalMetadata{Language: "en", FullTitle: conf.Name, AbbrevTitle: conf.Abbreviation}
	if conf.ISSN != "" {
		meta.ISSNs = append(meta.ISSNs, crossrefISSN{MediaType: "print", Value: conf.ISSN})
	}
	if conf.EISSN != "" {
		meta.ISSNs = append(meta.ISSNs, crossrefISSN{MediaType: "electronic", Value: conf.EISSN})
	}
	batch.Journal.Metadata = meta

	if issue.ID != "" {
		issueDate := issue.PublishedAt
		if issueDate.IsZero() {
			issueDate = a.PublishedAt
		}
		batch.Journal.Issue = &crossrefIssue{
			PublicationDate: newCrossrefDate(issueDate),
			Volume:          itoa(issue.Volume),
			Issue:           itoa(issue.Number),
		}
	}

	article := crossrefArticle{
		PublicationType: "full_text",
		Title:           a.Title,
		PublicationDate: newCrossrefDate(a.PublishedAt),
		DOI:             a.DOI,
		Resource:        ArticleURL(conf, a),
	}
	for i, au := range a.Authors {
		given, family := splitName(au.Name)
		p := crossrefPerson{
			Sequence:    "additional",
			Role:        "author",
			GivenName:   given,
			Surname:     family,
			Affiliation: au.Affiliation,
		}
		if i == 0 {
			p.Sequence = "first"
		}
		if au.ORCID != "" {
			p.ORCID = &crossrefORCID{Value: "https://orcid.org/" + au.ORCID}
		}
		article.Contributors = append(article.Contributors, p)
	}
	if first, last := a.PageRange(); first != "" {
		article.Pages = &crossrefPages{First: first, Last: last}
	}
	batch.Journal.Article = article

	out, err := xml.MarshalIndent(batch, "", "  ")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), out...), nil
}

// ArticleURL is the landing page of an article on the journal website.
func ArticleURL(conf core.JournalConfig, a Article) string {
	return strings.TrimSuffix(conf.BaseURL, "/") + "/articles/" + a.ID
}
