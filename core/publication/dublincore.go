package publication

import (
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/trezcool/jarida/core"
)

const (
	oaiDCNamespace = "http://www.openarchives.org/OAI/2.0/oai_dc/"
	oaiDCSchema    = "http://www.openarchives.org/OAI/2.0/oai_dc.xsd"
	dcNamespace    = "http://purl.org/dc/elements/1.1/"
)

// DublinCore is an `oai_dc` record.
type DublinCore struct {
	XMLName        xml.Name `xml:"oai_dc:dc"`
	XmlnsOAIDC     string   `xml:"xmlns:oai_dc,attr"`
	XmlnsDC        string   `xml:"xmlns:dc,attr"`
	XmlnsXSI       string   `xml:"xmlns:xsi,attr"`
	SchemaLocation string   `xml:"xsi:schemaLocation,attr"`
	Titles         []string `xml:"dc:title"`
	Creators       []string `xml:"dc:creator"`
	Subjects       []string `xml:"dc:subject"`
	Description    string   `xml:"dc:description,omitempty"`
	Publisher      string   `xml:"dc:publisher,omitempty"`
	Date           string   `xml:"dc:date"`
	Type           string   `xml:"dc:type"`
	Identifiers    []string `xml:"dc:identifier"`
	Source         string   `xml:"dc:source,omitempty"`
	Language       string   `xml:"dc:language"`
}

// NewDublinCore maps an article to its Dublin Core record.
func NewDublinCore(conf core.JournalConfig, a Article, issue Issue) DublinCore {
	dc := DublinCore{
		XmlnsOAIDC:     oaiDCNamespace,
		XmlnsDC:        dcNamespace,
		XmlnsXSI:       xsiNamespace,
		SchemaLocation: oaiDCNamespace + " " + oaiDCSchema,
		Titles:         []string{a.Title},
		Subjects:       a.Keywords,
		Description:    a.Abstract,
		Publisher:      conf.Publisher,
		Date:           a.PublishedAt.Format("2006-01-02"),
		Type:           "Text",
		Identifiers:    []string{DOIURL(a.DOI), ArticleURL(conf, a)},
		Language:       "en",
	}
	for _, au := range a.Authors {
		given, family := splitName(au.Name)
		if given != "" {
			dc.Creators = append(dc.Creators, family+", "+given)
		} else {
			dc.Creators = append(dc.Creators, family)
		}
	}

	source := []string{conf.Name}
	if issue.ID != "" {
		source = append(source, fmt.Sprintf("Vol. %d No. %d (%d)", issue.Volume, issue.Number, issue.Year))
	}
	if a.Pages != "" {
		source = append(source, a.Pages)
	}
	if conf.ISSN != "" {
		source = append(source, "ISSN "+conf.ISSN)
	}
	dc.Source = strings.Join(source, "; ")
	return dc
}

// DublinCoreXML renders the `oai_dc` record of an article.
func DublinCoreXML(conf core.JournalConfig, a Article, issue Issue) ([]byte, error) {
	out, err := xml.MarshalIndent(NewDublinCore(conf, a, issue), "", "  ")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), out...), nil
}
