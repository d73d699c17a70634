package submission

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/trezcool/jarida/core"
)

type Status string

const (
	StatusDraft             Status = "draft"
	StatusSubmitted         Status = "submitted"
	StatusUnderReview       Status = "under_review"
	StatusRevisionRequested Status = "revision_requested"
	StatusAccepted          Status = "accepted"
	StatusRejected          Status = "rejected"
	StatusInProduction      Status = "in_production"
	StatusPublished         Status = "published"
	StatusWithdrawn         Status = "withdrawn"
)

var (
	Statuses = []Status{
		StatusDraft, StatusSubmitted, StatusUnderReview, StatusRevisionRequested, StatusAccepted,
		StatusRejected, StatusInProduction, StatusPublished, StatusWithdrawn,
	}

	// ErrInvalidTransition is the cause of every refused status change.
	ErrInvalidTransition = errors.New("invalid status transition")

	transitions = map[Status][]Status{
		StatusDraft:             {StatusSubmitted, StatusWithdrawn},
		StatusSubmitted:         {StatusUnderReview, StatusRejected, StatusWithdrawn},
		StatusUnderReview:       {StatusRevisionRequested, StatusAccepted, StatusRejected, StatusWithdrawn},
		StatusRevisionRequested: {StatusSubmitted, StatusWithdrawn},
		StatusAccepted:          {StatusInProduction},
		StatusInProduction:      {StatusPublished},
	}
)

func (s Status) Valid() bool {
	for _, status := range Statuses {
		if s == status {
			return true
		}
	}
	return false
}

func (s Status) In(statuses ...Status) bool {
	for _, status := range statuses {
		if s == status {
			return true
		}
	}
	return false
}

// Terminal statuses have no way out.
func (s Status) Terminal() bool {
	return len(transitions[s]) == 0
}

// CanTransition reports whether the workflow allows moving from `from` to `to`.
func CanTransition(from, to Status) bool {
	return to.In(transitions[from]...)
}

// NextStatuses lists the statuses reachable from `s`.
func NextStatuses(s Status) []Status {
	return append([]Status(nil), transitions[s]...)
}

func transitionError(from, to Status) error {
	return core.NewConflictError(errors.Wrap(ErrInvalidTransition, fmt.Sprintf("%s -> %s", from, to)))
}

// IsInvalidTransition reports whether err was caused by a refused status change.
func IsInvalidTransition(err error) bool {
	return errors.Cause(err) == ErrInvalidTransition
}
