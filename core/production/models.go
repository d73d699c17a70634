package production

import (
	"io"
	"time"

	"github.com/trezcool/jarida/core/file"
)

type Stage string

const (
	StageCopyediting Stage = "copyediting"
	StageTypesetting Stage = "typesetting"
	StageProofing    Stage = "proofing"
	StageReady       Stage = "ready"
)

var Stages = []Stage{StageCopyediting, StageTypesetting, StageProofing, StageReady}

func (s Stage) index() int {
	for i, stage := range Stages {
		if s == stage {
			return i
		}
	}
	return -1
}

func (s Stage) Valid() bool { return s.index() >= 0 }

// Next returns the stage following `s`.
func (s Stage) Next() (Stage, bool) {
	i := s.index()
	if i < 0 || i == len(Stages)-1 {
		return "", false
	}
	return Stages[i+1], true
}

type Job struct {
	SubmissionID string    `json:"submission_id"`
	Stage        Stage     `json:"stage"`
	AssigneeID   string    `json:"assignee_id"`
	Notes        string    `json:"notes"`
	CreatedAt    time.Time `json:"created_at"` // UTC
	UpdatedAt    time.Time `json:"updated_at"` // UTC
}

type Advance struct {
	Stage Stage  `json:"stage" validate:"required"`
	Notes string `json:"notes" validate:"max=5000"`
}

type Assign struct {
	AssigneeID string `json:"assignee_id" validate:"required"`
}

// Upload is a file sent by a user.
type Upload struct {
	SubmissionID string
	Kind         file.Kind
	Filename     string
	ContentType  string
	Body         io.Reader
}
