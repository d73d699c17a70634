package publication

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/trezcool/jarida/core"
	"github.com/trezcool/jarida/core/submission"
)

type DepositStatus string

const (
	DepositPending    DepositStatus = "pending"
	DepositRegistered DepositStatus = "registered"
	DepositFailed     DepositStatus = "failed"
)

type Issue struct {
	ID          string    `json:"id"`
	Volume      int       `json:"volume"`
	Number      int       `json:"number"`
	Year        int       `json:"year"`
	Title       string    `json:"title"`
	PublishedAt time.Time `json:"published_at"` // UTC, zero until published
	CreatedAt   time.Time `json:"created_at"`   // UTC
}

func (i Issue) Published() bool { return !i.PublishedAt.IsZero() }

// NewIssue contains information needed to create a new Issue.
type NewIssue struct {
	Volume int    `json:"volume" validate:"min=1,max=10000"`
	Number int    `json:"number" validate:"min=1,max=1000"`
	Year   int    `json:"year" validate:"min=1900,max=3000"`
	Title  string `json:"title" validate:"max=300"`
}

type Article struct {
	ID             string              `json:"id"`
	SubmissionID   string              `json:"submission_id"`
	IssueID        string              `json:"issue_id"`
	DOI            string              `json:"doi"`
	Title          string              `json:"title"`
	Abstract       string              `json:"abstract"`
	Keywords       []string            `json:"keywords"`
	SubjectArea    string              `json:"subject_area"`
	ArticleType    string              `json:"article_type"`
	Authors        []submission.Author `json:"authors"`
	Pages          string              `json:"pages"`
	PublishedAt    time.Time           `json:"published_at"` // UTC
	DepositStatus  DepositStatus       `json:"deposit_status"`
	DepositBatchID string              `json:"deposit_batch_id"`
	DepositMessage string              `json:"deposit_message"`
	UpdatedAt      time.Time           `json:"updated_at"` // UTC
}

// PageRange splits Pages into its first and last page.
func (a Article) PageRange() (first, last string) {
	parts := strings.SplitN(a.Pages, "-", 2)
	first = strings.TrimSpace(parts[0])
	if len(parts) == 2 {
		last = strings.TrimSpace(parts[1])
	}
	return first, last
}

// PublishArticle contains information needed to publish an accepted submission.
type PublishArticle struct {
	IssueID string `json:"issue_id" validate:"required"`
	Pages   string `json:"pages" validate:"omitempty,pages"`
}

type ArticleFilter struct {
	IDs            []string      `query:"id"`
	IssueID        string        `query:"issue"`
	DepositStatus  DepositStatus `query:"deposit_status"`
	PublishedFrom  time.Time     `query:"from"`  // inclusive
	PublishedUntil time.Time     `query:"until"` // exclusive
	Search         string        `query:"search"`
}

// Match applies the filter to a single article (used by in-memory repositories).
func (af ArticleFilter) Match(a Article) bool {
	if af.IDs != nil && !core.StringInSlice(a.ID, af.IDs) {
		return false
	}
	if af.IssueID != "" && a.IssueID != af.IssueID {
		return false
	}
	if af.DepositStatus != "" && a.DepositStatus != af.DepositStatus {
		return false
	}
	if !af.PublishedFrom.IsZero() && a.PublishedAt.Before(af.PublishedFrom) {
		return false
	}
	if !af.PublishedUntil.IsZero() && !a.PublishedAt.Before(af.PublishedUntil) {
		return false
	}
	if af.Search != "" {
		q := strings.ToLower(af.Search)
		if !(strings.Contains(strings.ToLower(a.Title), q) || strings.Contains(strings.ToLower(a.DOI), q) ||
			core.StringInSlice(q, a.Keywords)) {
			return false
		}
	}
	return true
}

type ArticleGetFilter struct {
	ID           string
	SubmissionID string
	DOI          string
}

// DepositRequest is a metadata deposit sent to the DOI registrar.
type DepositRequest struct {
	BatchID  string
	DOI      string
	Filename string
	XML      []byte
}

type DepositResult struct {
	BatchID string
	Status  string
	Message string
}

// Registrar registers DOIs with a third-party archive.
type Registrar interface {
	Deposit(ctx context.Context, req DepositRequest) (DepositResult, error)
}

// Metadata formats.
const (
	FormatCrossref   = "crossref"
	FormatDublinCore = "dc"
	FormatCSL        = "csl"
)

// splitName splits a full name into given names and surname.
func splitName(name string) (given, family string) {
	fields := strings.Fields(name)
	switch len(fields) {
	case 0:
		return "", ""
	case 1:
		return "", fields[0]
	}
	return strings.Join(fields[:len(fields)-1], " "), fields[len(fields)-1]
}

func itoa(i int) string {
	if i == 0 {
		return ""
	}
	return strconv.Itoa(i)
}
