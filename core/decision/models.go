package decision

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/jarida/core"
	"github.com/trezcool/jarida/core/submission"
)

type Kind string

const (
	KindAccept        Kind = "accept"
	KindMinorRevision Kind = "minor_revision"
	KindMajorRevision Kind = "major_revision"
	KindReject        Kind = "reject"
	KindDeskReject    Kind = "desk_reject"
)

var kindStatuses = map[Kind]submission.Status{
	KindAccept:        submission.StatusAccepted,
	KindMinorRevision: submission.StatusRevisionRequested,
	KindMajorRevision: submission.StatusRevisionRequested,
	KindReject:        submission.StatusRejected,
	KindDeskReject:    submission.StatusRejected,
}

func (k Kind) Valid() bool {
	_, ok := kindStatuses[k]
	return ok
}

// Status is the submission status the decision leads to.
func (k Kind) Status() submission.Status {
	return kindStatuses[k]
}

// RequiredStatus is the submission status the decision can be made from.
func (k Kind) RequiredStatus() submission.Status {
	if k == KindDeskReject {
		return submission.StatusSubmitted
	}
	return submission.StatusUnderReview
}

type Decision struct {
	ID           string    `json:"id"`
	SubmissionID string    `json:"submission_id"`
	EditorID     string    `json:"editor_id"`
	Round        int       `json:"round"`
	Kind         Kind      `json:"kind"`
	Comments     string    `json:"comments"`
	CreatedAt    time.Time `json:"created_at"` // UTC
}

// NewDecision contains information needed to record a Decision.
type NewDecision struct {
	Kind     Kind   `json:"kind" validate:"required,decision_kind"`
	Comments string `json:"comments" validate:"max=20000"`
}

func (nd *NewDecision) Validate(validate *validator.Validate) error {
	nd.Kind = Kind(core.CleanString(string(nd.Kind), true /* lower */))
	nd.Comments = core.CleanString(nd.Comments)
	return validate.Struct(nd)
}
