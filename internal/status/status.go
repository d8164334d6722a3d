// Package status derives the composite check status of a pull request from
// its stored check runs, check suites and combined commit status.
package status

import (
	"context"
	"fmt"
	"time"

	"github.com/wesm/pr-watch/internal/db"
	"github.com/wesm/pr-watch/internal/log"
	"github.com/wesm/pr-watch/internal/models"
)

// DependabotAppID is the GitHub App whose check suites are left out of
// every aggregate.
const DependabotAppID int64 = 29110

// Composite is the tri-state shown to users, plus Unknown for aggregation gaps
type Composite int

const (
	CompositePending Composite = iota
	CompositeFailed
	CompositeSuccess
	CompositeUnknown
)

func (c Composite) String() string {
	switch c {
	case CompositePending:
		return "pending"
	case CompositeFailed:
		return "failed"
	case CompositeSuccess:
		return "success"
	default:
		return "unknown"
	}
}

// Summary is the derived status of one head commit
type Summary struct {
	HeadSHA string
	// Status is the least complete status across check runs and suites.
	Status models.CheckStatus
	// Conclusion is the composite conclusion. It stays None until Status is
	// Completed, so a finished run never speaks for siblings still running.
	Conclusion models.CheckConclusion
	// FailureConclusion is the most severe conclusion among the completed
	// checks only. It is the failure reason compared between snapshots.
	FailureConclusion models.CheckConclusion
	State             models.CommitState
	Failed            bool
	Succeeded         bool
	Composite         Composite
	DetailsURL        string
	Result            string
	TimeOccurred      time.Time
}

// Snapshot converts the summary into a status row for pr
func (s *Summary) Snapshot(pr *models.PullRequest, created time.Time) *models.PullRequestStatus {
	return &models.PullRequestStatus{
		PullRequestID: pr.ID,
		HeadSHA:       s.HeadSHA,
		Status:        s.Status,
		Conclusion:    s.FailureConclusion,
		State:         s.State,
		Failed:        s.Failed,
		Succeeded:     s.Succeeded,
		DetailsURL:    s.DetailsURL,
		Result:        s.Result,
		TimeOccurred:  s.TimeOccurred,
		TimeCreated:   created,
	}
}

// Aggregator computes summaries from the store
type Aggregator struct {
	q            *db.Queries
	excludeAppID int64
}

// New creates an aggregator reading through q. Check suites of excludeAppID
// are ignored.
func New(q *db.Queries, excludeAppID int64) *Aggregator {
	return &Aggregator{q: q, excludeAppID: excludeAppID}
}

// ComputeStatus returns the composite status and conclusion of the check
// runs of headSHA alone
func (a *Aggregator) ComputeStatus(ctx context.Context, headSHA string) (models.CheckStatus, models.CheckConclusion, error) {
	runs, err := a.q.CheckRunAggregate(ctx, headSHA)
	if err != nil {
		return models.CheckStatusNone, models.CheckConclusionNone, err
	}
	return runs.Status, gate(runs.Status, runs.Conclusion), nil
}

// Compute derives the full summary for the head commit of pr
func (a *Aggregator) Compute(ctx context.Context, pr *models.PullRequest) (*Summary, error) {
	runs, err := a.q.CheckRunAggregate(ctx, pr.HeadSHA)
	if err != nil {
		return nil, err
	}
	suites, err := a.q.CheckSuiteAggregate(ctx, pr.HeadSHA, a.excludeAppID)
	if err != nil {
		return nil, err
	}
	combined, err := a.q.GetCommitCombinedStatus(ctx, pr.HeadSHA)
	if err != nil {
		return nil, err
	}

	s := &Summary{
		HeadSHA:           pr.HeadSHA,
		Status:            combineStatus(runs, suites),
		FailureConclusion: combineConclusion(runs, suites),
		State:             models.CommitStateNone,
		TimeOccurred:      pr.TimeUpdated,
	}
	if combined != nil {
		s.State = combined.State
	}
	s.Conclusion = gate(s.Status, s.FailureConclusion)
	s.Failed = s.State.IsFailure() || s.FailureConclusion.IsFailure()
	s.Succeeded = s.Status == models.CheckStatusCompleted && !s.Failed &&
		(s.State == models.CommitStateSuccess || s.State == models.CommitStateNone)
	s.Composite = composite(s)

	if s.Composite == CompositeUnknown {
		log.Warn(ctx, "Unknown composite check status",
			"pull_request", pr.Number, "head_sha", pr.HeadSHA,
			"status", s.Status, "conclusion", s.FailureConclusion, "state", s.State)
	}

	if err := a.describe(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

// describe fills the details url and result text from the most relevant
// check run: the most severe completed one, else the first pending one.
func (a *Aggregator) describe(ctx context.Context, s *Summary) error {
	runs, err := a.q.ListCheckRunsForHeadSHA(ctx, s.HeadSHA)
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		if s.State != models.CommitStateNone {
			s.Result = fmt.Sprintf("commit status: %s", s.State)
		}
		return nil
	}

	run := runs[0]
	s.DetailsURL = run.DetailsURL
	if s.DetailsURL == "" {
		s.DetailsURL = run.HTMLURL
	}
	if run.Status == models.CheckStatusCompleted {
		s.Result = fmt.Sprintf("%s: %s", run.Name, run.Conclusion)
		if !run.TimeCompleted.IsZero() && run.TimeCompleted.After(s.TimeOccurred) {
			s.TimeOccurred = run.TimeCompleted
		}
	} else {
		s.Result = fmt.Sprintf("%s: %s", run.Name, run.Status)
	}
	return nil
}

// gate hides the conclusion until every check has completed
func gate(status models.CheckStatus, conclusion models.CheckConclusion) models.CheckConclusion {
	if status != models.CheckStatusCompleted {
		return models.CheckConclusionNone
	}
	return conclusion
}

// combineStatus takes the minimum status over the series that have rows
func combineStatus(series ...db.Aggregate) models.CheckStatus {
	status := models.CheckStatusNone
	found := false
	for _, agg := range series {
		if agg.Count == 0 {
			continue
		}
		if !found || agg.Status < status {
			status = agg.Status
			found = true
		}
	}
	return status
}

// combineConclusion takes the minimum conclusion over the series that have
// completed rows
func combineConclusion(series ...db.Aggregate) models.CheckConclusion {
	conclusion := models.CheckConclusionNone
	for _, agg := range series {
		if agg.Conclusion == models.CheckConclusionNone {
			continue
		}
		if conclusion == models.CheckConclusionNone || agg.Conclusion < conclusion {
			conclusion = agg.Conclusion
		}
	}
	return conclusion
}

func composite(s *Summary) Composite {
	switch {
	case s.Failed:
		return CompositeFailed
	case s.Succeeded:
		return CompositeSuccess
	case s.Status == models.CheckStatusUnknown || s.State == models.CommitStateUnknown ||
		s.FailureConclusion == models.CheckConclusionUnknown:
		return CompositeUnknown
	case s.Status < models.CheckStatusCompleted || s.State == models.CommitStatePending:
		return CompositePending
	default:
		return CompositeUnknown
	}
}
