package file

import (
	"mime"
	"path"
	"strings"
	"time"
)

type Kind string

const (
	KindManuscript     Kind = "manuscript"
	KindRevision       Kind = "revision"
	KindSupplementary  Kind = "supplementary"
	KindResponseLetter Kind = "response_letter"
	KindCopyedit       Kind = "copyedit"
	KindGalleyPDF      Kind = "galley_pdf"
	KindGalleyHTML     Kind = "galley_html"
)

// AuthorKinds may be uploaded by the submitter, ProductionKinds by production staff.
var (
	AuthorKinds     = []Kind{KindManuscript, KindRevision, KindSupplementary, KindResponseLetter}
	ProductionKinds = []Kind{KindCopyedit, KindGalleyPDF, KindGalleyHTML}
	GalleyKinds     = []Kind{KindGalleyPDF, KindGalleyHTML}
)

const (
	ctPDF  = "application/pdf"
	ctDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	ctODT  = "application/vnd.oasis.opendocument.text"
	ctTeX  = "application/x-tex"
	ctZIP  = "application/zip"
	ctHTML = "text/html"
)

var (
	allowedContentTypes = map[Kind][]string{
		KindManuscript:     {ctPDF, ctDOCX, ctODT, ctTeX},
		KindRevision:       {ctPDF, ctDOCX, ctODT, ctTeX},
		KindSupplementary:  {ctPDF, ctDOCX, ctODT, ctTeX, ctZIP},
		KindResponseLetter: {ctPDF, ctDOCX, ctODT},
		KindCopyedit:       {ctDOCX, ctODT, ctTeX},
		KindGalleyPDF:      {ctPDF},
		KindGalleyHTML:     {ctHTML},
	}

	extContentTypes = map[string]string{
		".pdf":  ctPDF,
		".docx": ctDOCX,
		".odt":  ctODT,
		".tex":  ctTeX,
		".zip":  ctZIP,
		".html": ctHTML,
		".htm":  ctHTML,
	}

	contentTypeAliases = map[string]string{
		"text/x-tex":                   ctTeX,
		"application/x-zip-compressed": ctZIP,
	}
)

func (k Kind) Valid() bool {
	_, ok := allowedContentTypes[k]
	return ok
}

func (k Kind) In(kinds ...Kind) bool {
	for _, kind := range kinds {
		if k == kind {
			return true
		}
	}
	return false
}

// AllowedContentTypes returns the content types accepted for the kind.
func (k Kind) AllowedContentTypes() []string {
	return allowedContentTypes[k]
}

// NormalizeContentType strips parameters from `ct` and falls back to the filename extension
// when the client sent no useful content type.
func NormalizeContentType(ct, filename string) string {
	if mt, _, err := mime.ParseMediaType(ct); err == nil {
		ct = strings.ToLower(mt)
	} else {
		ct = ""
	}
	if alias, ok := contentTypeAliases[ct]; ok {
		return alias
	}
	if ct == "" || ct == "application/octet-stream" {
		return extContentTypes[strings.ToLower(path.Ext(filename))]
	}
	return ct
}

type Version struct {
	ID           string    `json:"id"`
	SubmissionID string    `json:"submission_id"`
	Kind         Kind      `json:"kind"`
	Version      int       `json:"version"`
	Filename     string    `json:"filename"`
	ContentType  string    `json:"content_type"`
	Size         int64     `json:"size"`
	Checksum     string    `json:"checksum"` // sha256 hex
	StorageKey   string    `json:"-"`
	UploadedBy   string    `json:"uploaded_by"`
	CreatedAt    time.Time `json:"created_at"` // UTC
}

// NewVersion contains information needed to store a new file Version.
type NewVersion struct {
	SubmissionID string
	Kind         Kind
	Filename     string
	ContentType  string
	UploadedBy   string
}

type QueryFilter struct {
	SubmissionID string
	Kinds        []Kind
}

// Match applies the filter to a single version (used by in-memory repositories).
func (qf QueryFilter) Match(v Version) bool {
	if qf.SubmissionID != "" && v.SubmissionID != qf.SubmissionID {
		return false
	}
	if len(qf.Kinds) > 0 && !v.Kind.In(qf.Kinds...) {
		return false
	}
	return true
}
