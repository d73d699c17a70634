package submission

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/jarida/core"
	"github.com/trezcool/jarida/core/user"
)

type ArticleType string

const (
	TypeResearch           ArticleType = "research"
	TypeReview             ArticleType = "review"
	TypeShortCommunication ArticleType = "short_communication"
	TypeCaseReport         ArticleType = "case_report"
	TypeEditorial          ArticleType = "editorial"
)

var ArticleTypes = []ArticleType{TypeResearch, TypeReview, TypeShortCommunication, TypeCaseReport, TypeEditorial}

type Author struct {
	Name        string `json:"name" validate:"required,max=200"`
	Email       string `json:"email" validate:"omitempty,email"`
	Affiliation string `json:"affiliation" validate:"max=300"`
	ORCID       string `json:"orcid" validate:"omitempty,orcid"`
	UserID      string `json:"user_id,omitempty"`
}

func (a *Author) clean() {
	a.Name = core.CleanString(a.Name)
	a.Email = core.CleanString(a.Email, true /* lower */)
	a.Affiliation = core.CleanString(a.Affiliation)
	a.ORCID = strings.ToUpper(core.CleanString(a.ORCID))
}

// Is reports whether the author is `usr`, by user ID or email.
func (a Author) Is(usr user.User) bool {
	return (a.UserID != "" && a.UserID == usr.ID) || (a.Email != "" && a.Email == usr.Email)
}

type Submission struct {
	ID                  string      `json:"id"`
	Title               string      `json:"title"`
	Abstract            string      `json:"abstract"`
	Keywords            []string    `json:"keywords"`
	SubjectArea         string      `json:"subject_area"`
	ArticleType         ArticleType `json:"article_type"`
	CoverLetter         string      `json:"cover_letter"`
	Authors             []Author    `json:"authors"`
	CorrespondingAuthor string      `json:"corresponding_author"` // email of one of Authors
	SubmitterID         string      `json:"submitter_id"`
	HandlingEditorID    string      `json:"handling_editor_id"`
	Status              Status      `json:"status"`
	Round               int         `json:"round"`
	SubmittedAt         time.Time   `json:"submitted_at"` // UTC
	DecidedAt           time.Time   `json:"decided_at"`   // UTC
	CreatedAt           time.Time   `json:"created_at"`   // UTC
	UpdatedAt           time.Time   `json:"updated_at"`   // UTC
}

// Corresponding returns the corresponding author.
func (s Submission) Corresponding() (Author, bool) {
	for _, a := range s.Authors {
		if a.Email != "" && a.Email == s.CorrespondingAuthor {
			return a, true
		}
	}
	return Author{}, false
}

// IsAuthor reports whether `usr` submitted or co-authored the submission.
func (s Submission) IsAuthor(usr user.User) bool {
	if s.SubmitterID == usr.ID {
		return true
	}
	for _, a := range s.Authors {
		if a.Is(usr) {
			return true
		}
	}
	return false
}

// Editable reports whether the submitter may still change the submission.
func (s Submission) Editable() bool {
	return s.Status == StatusDraft || s.Status == StatusRevisionRequested
}

// NewSubmission contains information needed to create a new Submission.
type NewSubmission struct {
	Title               string      `json:"title" validate:"required,min=10,max=300"`
	Abstract            string      `json:"abstract" validate:"required,min=100,max=5000"`
	Keywords            []string    `json:"keywords" validate:"required,min=1,max=10,dive,min=2,max=50"`
	SubjectArea         string      `json:"subject_area" validate:"required,subject_area"`
	ArticleType         ArticleType `json:"article_type" validate:"required,article_type"`
	CoverLetter         string      `json:"cover_letter" validate:"max=5000"`
	Authors             []Author    `json:"authors" validate:"required,min=1,max=50,dive"`
	CorrespondingAuthor string      `json:"corresponding_author" validate:"required,email"`
}

func (ns *NewSubmission) clean() {
	ns.Title = core.CleanString(ns.Title)
	ns.Abstract = core.CleanString(ns.Abstract)
	ns.Keywords = core.CleanStrings(ns.Keywords, true /* lower */)
	ns.SubjectArea = core.CleanString(ns.SubjectArea, true /* lower */)
	ns.ArticleType = ArticleType(core.CleanString(string(ns.ArticleType), true /* lower */))
	ns.CoverLetter = core.CleanString(ns.CoverLetter)
	for i := range ns.Authors {
		ns.Authors[i].clean()
	}
	ns.CorrespondingAuthor = core.CleanString(ns.CorrespondingAuthor, true /* lower */)
}

func (ns *NewSubmission) Validate(validate *validator.Validate) error {
	ns.clean()
	return validate.Struct(ns)
}

// UpdateSubmission defines what information may be provided to modify an existing Submission.
// Empty fields are left untouched.
type UpdateSubmission struct {
	Title               string      `json:"title" validate:"omitempty,min=10,max=300"`
	Abstract            string      `json:"abstract" validate:"omitempty,min=100,max=5000"`
	Keywords            []string    `json:"keywords" validate:"omitempty,min=1,max=10,dive,min=2,max=50"`
	SubjectArea         string      `json:"subject_area" validate:"omitempty,subject_area"`
	ArticleType         ArticleType `json:"article_type" validate:"omitempty,article_type"`
	CoverLetter         *string     `json:"cover_letter" validate:"omitempty,max=5000"`
	Authors             []Author    `json:"authors" validate:"omitempty,min=1,max=50,dive"`
	CorrespondingAuthor string      `json:"corresponding_author" validate:"omitempty,email"`
}

func (us *UpdateSubmission) Validate(ctx context.Context, validate *validator.Validate) error {
	ns := NewSubmission{
		Title:               us.Title,
		Abstract:            us.Abstract,
		Keywords:            us.Keywords,
		SubjectArea:         us.SubjectArea,
		ArticleType:         us.ArticleType,
		Authors:             us.Authors,
		CorrespondingAuthor: us.CorrespondingAuthor,
	}
	if us.CoverLetter != nil {
		ns.CoverLetter = *us.CoverLetter
	}
	ns.clean()

	us.Title = ns.Title
	us.Abstract = ns.Abstract
	us.Keywords = ns.Keywords
	us.SubjectArea = ns.SubjectArea
	us.ArticleType = ns.ArticleType
	us.Authors = ns.Authors
	us.CorrespondingAuthor = ns.CorrespondingAuthor
	if us.CoverLetter != nil {
		us.CoverLetter = &ns.CoverLetter
	}
	return validate.StructCtx(ctx, us)
}

// apply returns `s` with the provided fields updated.
func (us UpdateSubmission) apply(s Submission) Submission {
	if us.Title != "" {
		s.Title = us.Title
	}
	if us.Abstract != "" {
		s.Abstract = us.Abstract
	}
	if us.Keywords != nil {
		s.Keywords = us.Keywords
	}
	if us.SubjectArea != "" {
		s.SubjectArea = us.SubjectArea
	}
	if us.ArticleType != "" {
		s.ArticleType = us.ArticleType
	}
	if us.CoverLetter != nil {
		s.CoverLetter = *us.CoverLetter
	}
	if us.Authors != nil {
		s.Authors = us.Authors
	}
	if us.CorrespondingAuthor != "" {
		s.CorrespondingAuthor = us.CorrespondingAuthor
	}
	return s
}

type StatusChange struct {
	ID           string    `json:"id"`
	SubmissionID string    `json:"submission_id"`
	From         Status    `json:"from"`
	To           Status    `json:"to"`
	ActorID      string    `json:"actor_id"`
	Note         string    `json:"note"`
	CreatedAt    time.Time `json:"created_at"` // UTC
}

type QueryFilter struct {
	IDs              []string  `query:"id"`
	Statuses         []Status  `query:"status"`
	SubmitterID      string    `query:"submitter"`
	HandlingEditorID string    `query:"editor"`
	SubjectArea      string    `query:"subject_area"`
	Search           string    `query:"search"`
	CreatedFrom      time.Time `query:"created_from"`

	// AuthorUserID and AuthorEmail match submissions where the user is the submitter or an author.
	// AssignedIDs adds the submissions the user reviews. When several are set, any may match.
	AuthorUserID string   `query:"-"`
	AuthorEmail  string   `query:"-"`
	AssignedIDs  []string `query:"-"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.SubjectArea = core.CleanString(qf.SubjectArea, true /* lower */)
	qf.AuthorEmail = core.CleanString(qf.AuthorEmail, true /* lower */)
}

// Match applies the filter to a single submission (used by in-memory repositories).
func (qf *QueryFilter) Match(s Submission) bool {
	if qf == nil {
		return true
	}
	if qf.IDs != nil && !core.StringInSlice(s.ID, qf.IDs) {
		return false
	}
	if len(qf.Statuses) > 0 && !s.Status.In(qf.Statuses...) {
		return false
	}
	if qf.SubmitterID != "" && s.SubmitterID != qf.SubmitterID {
		return false
	}
	if qf.HandlingEditorID != "" && s.HandlingEditorID != qf.HandlingEditorID {
		return false
	}
	if qf.SubjectArea != "" && s.SubjectArea != qf.SubjectArea {
		return false
	}
	if qf.Search != "" {
		q := strings.ToLower(qf.Search)
		if !(strings.Contains(strings.ToLower(s.Title), q) ||
			strings.Contains(strings.ToLower(s.Abstract), q) ||
			core.StringInSlice(q, s.Keywords)) {
			return false
		}
	}
	if !qf.CreatedFrom.IsZero() && s.CreatedAt.Before(qf.CreatedFrom.UTC()) {
		return false
	}
	byAuthor := qf.AuthorUserID != "" || qf.AuthorEmail != ""
	if byAuthor || len(qf.AssignedIDs) > 0 {
		authored := byAuthor && s.IsAuthor(user.User{ID: qf.AuthorUserID, Email: qf.AuthorEmail})
		if !authored && !core.StringInSlice(s.ID, qf.AssignedIDs) {
			return false
		}
	}
	return true
}

// OrderingFields are the fields submissions may be ordered by.
var OrderingFields = []string{"title", "status", "subject_area", "submitted_at", "created_at", "updated_at"}
