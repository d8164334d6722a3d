package models

import "strings"

// CheckStatus is the progress of a check run or suite.
//
// The numeric values form a total order used by aggregation: the composite
// status of a set of checks is the minimum value in the set, so a set is only
// Completed when every member is Completed. Do not reorder.
//
//	None(0) < Queued(1) < InProgress(2) < Completed(3) < Unknown(4)
type CheckStatus int

const (
	CheckStatusNone       CheckStatus = 0
	CheckStatusQueued     CheckStatus = 1
	CheckStatusInProgress CheckStatus = 2
	CheckStatusCompleted  CheckStatus = 3
	CheckStatusUnknown    CheckStatus = 4
)

// ParseCheckStatus maps a GitHub check status string to a CheckStatus.
func ParseCheckStatus(s string) CheckStatus {
	switch strings.ToLower(s) {
	case "":
		return CheckStatusNone
	case "queued", "requested", "waiting", "pending":
		return CheckStatusQueued
	case "in_progress":
		return CheckStatusInProgress
	case "completed":
		return CheckStatusCompleted
	default:
		return CheckStatusUnknown
	}
}

func (s CheckStatus) String() string {
	switch s {
	case CheckStatusNone:
		return "none"
	case CheckStatusQueued:
		return "queued"
	case CheckStatusInProgress:
		return "in_progress"
	case CheckStatusCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// CheckConclusion is the outcome of a completed check run or suite.
//
// Lower values are more severe. The composite conclusion of a set of
// completed checks is the minimum value in the set. Values in the band
// [Failure, ActionRequired] count as failed.
//
//	None(0) < Failure(1) < StartupFailure(2) < TimedOut(3) < Cancelled(4) <
//	ActionRequired(5) < Stale(6) < Neutral(7) < Skipped(8) < Success(9) <
//	Unknown(10)
type CheckConclusion int

const (
	CheckConclusionNone           CheckConclusion = 0
	CheckConclusionFailure        CheckConclusion = 1
	CheckConclusionStartupFailure CheckConclusion = 2
	CheckConclusionTimedOut       CheckConclusion = 3
	CheckConclusionCancelled      CheckConclusion = 4
	CheckConclusionActionRequired CheckConclusion = 5
	CheckConclusionStale          CheckConclusion = 6
	CheckConclusionNeutral        CheckConclusion = 7
	CheckConclusionSkipped        CheckConclusion = 8
	CheckConclusionSuccess        CheckConclusion = 9
	CheckConclusionUnknown        CheckConclusion = 10
)

// ParseCheckConclusion maps a GitHub conclusion string to a CheckConclusion.
func ParseCheckConclusion(s string) CheckConclusion {
	switch strings.ToLower(s) {
	case "":
		return CheckConclusionNone
	case "failure":
		return CheckConclusionFailure
	case "startup_failure":
		return CheckConclusionStartupFailure
	case "timed_out":
		return CheckConclusionTimedOut
	case "cancelled":
		return CheckConclusionCancelled
	case "action_required":
		return CheckConclusionActionRequired
	case "stale":
		return CheckConclusionStale
	case "neutral":
		return CheckConclusionNeutral
	case "skipped":
		return CheckConclusionSkipped
	case "success":
		return CheckConclusionSuccess
	default:
		return CheckConclusionUnknown
	}
}

// IsFailure reports whether c falls in the failed severity band.
func (c CheckConclusion) IsFailure() bool {
	return c >= CheckConclusionFailure && c <= CheckConclusionActionRequired
}

func (c CheckConclusion) String() string {
	switch c {
	case CheckConclusionNone:
		return "none"
	case CheckConclusionFailure:
		return "failure"
	case CheckConclusionStartupFailure:
		return "startup_failure"
	case CheckConclusionTimedOut:
		return "timed_out"
	case CheckConclusionCancelled:
		return "cancelled"
	case CheckConclusionActionRequired:
		return "action_required"
	case CheckConclusionStale:
		return "stale"
	case CheckConclusionNeutral:
		return "neutral"
	case CheckConclusionSkipped:
		return "skipped"
	case CheckConclusionSuccess:
		return "success"
	default:
		return "unknown"
	}
}

// CommitState is the combined commit status state.
type CommitState int

const (
	CommitStateNone    CommitState = 0
	CommitStatePending CommitState = 1
	CommitStateSuccess CommitState = 2
	CommitStateFailure CommitState = 3
	CommitStateError   CommitState = 4
	CommitStateUnknown CommitState = 5
)

// ParseCommitState maps a GitHub combined status state to a CommitState.
func ParseCommitState(s string) CommitState {
	switch strings.ToLower(s) {
	case "":
		return CommitStateNone
	case "pending":
		return CommitStatePending
	case "success":
		return CommitStateSuccess
	case "failure":
		return CommitStateFailure
	case "error":
		return CommitStateError
	default:
		return CommitStateUnknown
	}
}

// IsFailure reports whether the combined state is failure or error.
func (s CommitState) IsFailure() bool {
	return s == CommitStateFailure || s == CommitStateError
}

func (s CommitState) String() string {
	switch s {
	case CommitStateNone:
		return "none"
	case CommitStatePending:
		return "pending"
	case CommitStateSuccess:
		return "success"
	case CommitStateFailure:
		return "failure"
	case CommitStateError:
		return "error"
	default:
		return "unknown"
	}
}

// NotificationType identifies what a notification is about.
type NotificationType int

const (
	NotificationUnknown           NotificationType = 0
	NotificationCheckRunFailed    NotificationType = 1
	NotificationCheckRunSucceeded NotificationType = 2
	NotificationNewReview         NotificationType = 3
)

func (t NotificationType) String() string {
	switch t {
	case NotificationCheckRunFailed:
		return "check_run_failed"
	case NotificationCheckRunSucceeded:
		return "check_run_succeeded"
	case NotificationNewReview:
		return "new_review"
	default:
		return "unknown"
	}
}
