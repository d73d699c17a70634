package publication

import (
	"encoding/json"
	"strings"

	"github.com/trezcool/jarida/core"
)

type (
	// CSLItem is a CSL-JSON item, as read by citation managers.
	CSLItem struct {
		ID                  string    `json:"id"`
		Type                string    `json:"type"`
		Title               string    `json:"title"`
		ContainerTitle      string    `json:"container-title"`
		ContainerTitleShort string    `json:"container-title-short,omitempty"`
		Author              []CSLName `json:"author"`
		Issued              CSLDate   `json:"issued"`
		Volume              string    `json:"volume,omitempty"`
		Issue               string    `json:"issue,omitempty"`
		Page                string    `json:"page,omitempty"`
		DOI                 string    `json:"DOI"`
		URL                 string    `json:"URL"`
		ISSN                string    `json:"ISSN,omitempty"`
		Abstract            string    `json:"abstract,omitempty"`
		Keyword             string    `json:"keyword,omitempty"`
		Publisher           string    `json:"publisher,omitempty"`
	}

	CSLName struct {
		Family string `json:"family"`
		Given  string `json:"given,omitempty"`
		ORCID  string `json:"ORCID,omitempty"`
	}

	CSLDate struct {
		DateParts [][]int `json:"date-parts"`
	}
)

// NewCSLItem maps an article to its CSL-JSON item.
func NewCSLItem(conf core.JournalConfig, a Article, issue Issue) CSLItem {
	item := CSLItem{
		ID:                  a.DOI,
		Type:                "article-journal",
		Title:               a.Title,
		ContainerTitle:      conf.Name,
		ContainerTitleShort: conf.Abbreviation,
		Issued:              CSLDate{DateParts: [][]int{{a.PublishedAt.Year(), int(a.PublishedAt.Month()), a.PublishedAt.Day()}}},
		Page:                a.Pages,
		DOI:                 a.DOI,
		URL:                 DOIURL(a.DOI),
		ISSN:                conf.ISSN,
		Abstract:            a.Abstract,
		Keyword:             strings.Join(a.Keywords, ", "),
		Publisher:           conf.Publisher,
	}
	if issue.ID != "" {
		item.Volume = itoa(issue.Volume)
		item.Issue = itoa(issue.Number)
	}
	for _, au := range a.Authors {
		given, family := splitName(au.Name)
		name := CSLName{Family: family, Given: given}
		if au.ORCID != "" {
			name.ORCID = "https://orcid.org/" + au.ORCID
		}
		item.Author = append(item.Author, name)
	}
	return item
}

// CSLJSON renders the CSL-JSON of an article (a list with one item).
func CSLJSON(conf core.JournalConfig, a Article, issue Issue) ([]byte, error) {
	return json.MarshalIndent([]CSLItem{NewCSLItem(conf, a, issue)}, "", "  ")
}
