package submission

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/trezcool/jarida/core"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusDraft, StatusSubmitted, true},
		{StatusDraft, StatusUnderReview, false},
		{StatusSubmitted, StatusUnderReview, true},
		{StatusSubmitted, StatusAccepted, false},
		{StatusUnderReview, StatusRevisionRequested, true},
		{StatusUnderReview, StatusAccepted, true},
		{StatusRevisionRequested, StatusSubmitted, true},
		{StatusRevisionRequested, StatusAccepted, false},
		{StatusAccepted, StatusInProduction, true},
		{StatusAccepted, StatusWithdrawn, false},
		{StatusInProduction, StatusPublished, true},
		{StatusPublished, StatusWithdrawn, false},
		{StatusRejected, StatusSubmitted, false},
		{StatusWithdrawn, StatusDraft, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestStatus_Terminal(t *testing.T) {
	for _, s := range Statuses {
		want := s.In(StatusRejected, StatusPublished, StatusWithdrawn)
		assert.Equal(t, want, s.Terminal(), s)
	}
	assert.True(t, StatusDraft.Valid())
	assert.False(t, Status("archived").Valid())
}

func TestNextStatuses(t *testing.T) {
	next := NextStatuses(StatusSubmitted)
	assert.Equal(t, []Status{StatusUnderReview, StatusRejected, StatusWithdrawn}, next)

	// the copy does not alias the workflow table
	next[0] = StatusPublished
	assert.True(t, CanTransition(StatusSubmitted, StatusUnderReview))
	assert.Empty(t, NextStatuses(StatusPublished))
}

func Test_transitionError(t *testing.T) {
	err := transitionError(StatusPublished, StatusDraft)
	assert.True(t, IsInvalidTransition(err))
	assert.Contains(t, err.Error(), "published -> draft")

	var conflict *core.ConflictError
	assert.True(t, errors.As(err, &conflict))
	assert.False(t, IsInvalidTransition(errors.New("boom")))
}
