package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIDSet(t *testing.T) {
	tests := []struct {
		name string
		a, b IDSet
		want bool
	}{
		{"same order", NewIDSet(1, 2), NewIDSet(1, 2), true},
		{"different order", IDSet{2, 1}, NewIDSet(1, 2), true},
		{"duplicates", NewIDSet(1, 1, 2), NewIDSet(2, 1), true},
		{"different members", NewIDSet(1, 2), NewIDSet(2, 3), false},
		{"nil and empty", nil, IDSet{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.a.Equal(tt.b))
		})
	}
}

func TestParseIDSetRoundTrip(t *testing.T) {
	set := ParseIDSet("3, 1,2,x")
	assert.Equal(t, IDSet{1, 2, 3}, set)
	assert.Equal(t, "1,2,3", set.String())
	assert.Nil(t, ParseIDSet(""))
}

func TestCheckOrdering(t *testing.T) {
	assert.Less(t, CheckStatusNone, CheckStatusQueued)
	assert.Less(t, CheckStatusQueued, CheckStatusInProgress)
	assert.Less(t, CheckStatusInProgress, CheckStatusCompleted)
	assert.Less(t, CheckStatusCompleted, CheckStatusUnknown)

	for _, c := range []CheckConclusion{
		CheckConclusionFailure,
		CheckConclusionStartupFailure,
		CheckConclusionTimedOut,
		CheckConclusionCancelled,
		CheckConclusionActionRequired,
	} {
		assert.True(t, c.IsFailure(), c.String())
	}
	for _, c := range []CheckConclusion{
		CheckConclusionNone,
		CheckConclusionStale,
		CheckConclusionNeutral,
		CheckConclusionSkipped,
		CheckConclusionSuccess,
		CheckConclusionUnknown,
	} {
		assert.False(t, c.IsFailure(), c.String())
	}
}

func TestParseCheckValues(t *testing.T) {
	assert.Equal(t, CheckStatusInProgress, ParseCheckStatus("IN_PROGRESS"))
	assert.Equal(t, CheckStatusQueued, ParseCheckStatus("waiting"))
	assert.Equal(t, CheckStatusUnknown, ParseCheckStatus("bogus"))
	assert.Equal(t, CheckConclusionTimedOut, ParseCheckConclusion("timed_out"))
	assert.Equal(t, CommitStateError, ParseCommitState("error"))
	assert.True(t, CommitStateFailure.IsFailure())
	assert.False(t, CommitStatePending.IsFailure())
}

func TestRepositoryFullName(t *testing.T) {
	repo := &Repository{Owner: "octo", Name: "hello"}
	assert.Equal(t, "octo/hello", repo.FullName())
}
