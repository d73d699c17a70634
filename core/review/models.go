package review

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/jarida/core"
	"github.com/trezcool/jarida/core/user"
)

type AssignmentStatus string

const (
	AssignmentInvited   AssignmentStatus = "invited"
	AssignmentAccepted  AssignmentStatus = "accepted"
	AssignmentDeclined  AssignmentStatus = "declined"
	AssignmentCompleted AssignmentStatus = "completed"
	AssignmentCancelled AssignmentStatus = "cancelled"
)

// ActiveStatuses are the statuses of assignments still waiting on the reviewer.
var ActiveStatuses = []AssignmentStatus{AssignmentInvited, AssignmentAccepted}

// reviewers keep access to the submissions of these assignments.
var visibleStatuses = []AssignmentStatus{AssignmentInvited, AssignmentAccepted, AssignmentCompleted}

func (s AssignmentStatus) In(statuses ...AssignmentStatus) bool {
	for _, status := range statuses {
		if s == status {
			return true
		}
	}
	return false
}

type Assignment struct {
	ID           string           `json:"id"`
	SubmissionID string           `json:"submission_id"`
	ReviewerID   string           `json:"reviewer_id"`
	Round        int              `json:"round"`
	Status       AssignmentStatus `json:"status"`
	InvitedBy    string           `json:"invited_by"`
	DueAt        time.Time        `json:"due_at"`       // UTC
	RespondedAt  time.Time        `json:"responded_at"` // UTC
	CompletedAt  time.Time        `json:"completed_at"` // UTC
	RemindedAt   time.Time        `json:"reminded_at"`  // UTC
	CreatedAt    time.Time        `json:"created_at"`   // UTC
}

// Overdue reports whether the reviewer accepted but missed the due date.
func (a Assignment) Overdue(now time.Time) bool {
	return a.Status == AssignmentAccepted && !a.DueAt.IsZero() && a.DueAt.Before(now)
}

type Recommendation string

const (
	RecommendAccept        Recommendation = "accept"
	RecommendMinorRevision Recommendation = "minor_revision"
	RecommendMajorRevision Recommendation = "major_revision"
	RecommendReject        Recommendation = "reject"
)

var recommendationWeights = map[Recommendation]float64{
	RecommendAccept:        4,
	RecommendMinorRevision: 3,
	RecommendMajorRevision: 2,
	RecommendReject:        1,
}

func (r Recommendation) Valid() bool {
	_, ok := recommendationWeights[r]
	return ok
}

type Scores struct {
	Originality  int `json:"originality" validate:"min=1,max=5"`
	Methodology  int `json:"methodology" validate:"min=1,max=5"`
	Clarity      int `json:"clarity" validate:"min=1,max=5"`
	Significance int `json:"significance" validate:"min=1,max=5"`
}

type Review struct {
	ID               string         `json:"id"`
	AssignmentID     string         `json:"assignment_id"`
	SubmissionID     string         `json:"submission_id"`
	ReviewerID       string         `json:"reviewer_id"`
	Round            int            `json:"round"`
	Recommendation   Recommendation `json:"recommendation"`
	Scores           Scores         `json:"scores"`
	CommentsToAuthor string         `json:"comments_to_author"`
	CommentsToEditor string         `json:"comments_to_editor,omitempty"`
	Rating           int            `json:"rating"`       // editor rating of the review, 0 when unrated
	SubmittedAt      time.Time      `json:"submitted_at"` // UTC
}

// ForAuthors hides what authors may not see.
func (r Review) ForAuthors() Review {
	return Review{
		ID:               r.ID,
		SubmissionID:     r.SubmissionID,
		Round:            r.Round,
		Recommendation:   r.Recommendation,
		Scores:           r.Scores,
		CommentsToAuthor: r.CommentsToAuthor,
		SubmittedAt:      r.SubmittedAt,
	}
}

// NewReview contains information needed to submit a Review.
type NewReview struct {
	Recommendation   Recommendation `json:"recommendation" validate:"required,recommendation"`
	Scores           Scores         `json:"scores"`
	CommentsToAuthor string         `json:"comments_to_author" validate:"required,min=50,max=20000"`
	CommentsToEditor string         `json:"comments_to_editor" validate:"max=20000"`
}

func (nr *NewReview) Validate(validate *validator.Validate) error {
	nr.Recommendation = Recommendation(core.CleanString(string(nr.Recommendation), true /* lower */))
	nr.CommentsToAuthor = core.CleanString(nr.CommentsToAuthor)
	nr.CommentsToEditor = core.CleanString(nr.CommentsToEditor)
	return validate.Struct(nr)
}

type Rating struct {
	Rating int `json:"rating" validate:"min=1,max=5"`
}

type Invitation struct {
	ReviewerID string `json:"reviewer_id" validate:"required"`
	DueDays    int    `json:"due_days" validate:"min=0,max=120"`
}

type ConflictKind string

const (
	ConflictSelf        ConflictKind = "self"
	ConflictCoauthor    ConflictKind = "coauthor"
	ConflictInstitution ConflictKind = "institution"
	ConflictEmailDomain ConflictKind = "email_domain"
	ConflictDeclared    ConflictKind = "declared"
)

type Severity string

const (
	SeverityHard Severity = "hard"
	SeveritySoft Severity = "soft"
)

type Conflict struct {
	Kind     ConflictKind `json:"kind"`
	Severity Severity     `json:"severity"`
	Detail   string       `json:"detail"`
}

type Breakdown struct {
	KeywordOverlap float64 `json:"keyword_overlap"`
	SubjectArea    float64 `json:"subject_area"`
	Workload       float64 `json:"workload"`
	Completion     float64 `json:"completion"`
	Quality        float64 `json:"quality"`
}

func (b Breakdown) Total() float64 {
	return b.KeywordOverlap + b.SubjectArea + b.Workload + b.Completion + b.Quality
}

// Candidate is a potential reviewer of a submission.
type Candidate struct {
	Reviewer          user.User  `json:"reviewer"`
	Score             float64    `json:"score"`
	Breakdown         Breakdown  `json:"breakdown"`
	MatchedKeywords   []string   `json:"matched_keywords"`
	Conflicts         []Conflict `json:"conflicts"` // soft ones only, hard conflicts exclude the candidate
	ActiveAssignments int        `json:"active_assignments"`
	Available         bool       `json:"available"`
}

// Summary aggregates the completed reviews of a round.
type Summary struct {
	SubmissionID      string                 `json:"submission_id"`
	Round             int                    `json:"round"`
	Completed         int                    `json:"completed"`
	Pending           int                    `json:"pending"`
	Recommendations   map[Recommendation]int `json:"recommendations"`
	MeanScore         float64                `json:"mean_score"`
	SuggestedDecision Recommendation         `json:"suggested_decision,omitempty"`
	Consensus         bool                   `json:"consensus"`
}

type AssignmentFilter struct {
	IDs          []string
	SubmissionID string
	ReviewerIDs  []string
	Round        int
	Statuses     []AssignmentStatus
}

// Match applies the filter to a single assignment (used by in-memory repositories).
func (af AssignmentFilter) Match(a Assignment) bool {
	if af.IDs != nil && !core.StringInSlice(a.ID, af.IDs) {
		return false
	}
	if af.SubmissionID != "" && a.SubmissionID != af.SubmissionID {
		return false
	}
	if af.ReviewerIDs != nil && !core.StringInSlice(a.ReviewerID, af.ReviewerIDs) {
		return false
	}
	if af.Round > 0 && a.Round != af.Round {
		return false
	}
	if len(af.Statuses) > 0 && !a.Status.In(af.Statuses...) {
		return false
	}
	return true
}

type ReviewFilter struct {
	SubmissionID string
	ReviewerIDs  []string
	Round        int
}

// Match applies the filter to a single review (used by in-memory repositories).
func (rf ReviewFilter) Match(r Review) bool {
	if rf.SubmissionID != "" && r.SubmissionID != rf.SubmissionID {
		return false
	}
	if rf.ReviewerIDs != nil && !core.StringInSlice(r.ReviewerID, rf.ReviewerIDs) {
		return false
	}
	if rf.Round > 0 && r.Round != rf.Round {
		return false
	}
	return true
}
