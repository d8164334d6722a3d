package reconcile

import (
	"context"

	"github.com/google/go-github/v57/github"

	"github.com/wesm/pr-watch/internal/api"
	"github.com/wesm/pr-watch/internal/log"
	"github.com/wesm/pr-watch/internal/models"
)

// CheckRun upserts a check run. An existing row is rewritten only when its
// status or conclusion changed.
func (r *Reconciler) CheckRun(ctx context.Context, remote *github.CheckRun) (*models.CheckRun, error) {
	if remote.GetID() == 0 {
		log.Warn(ctx, "Skipping check run without remote id", "name", remote.GetName())
		return nil, nil
	}

	run := api.ConvertCheckRun(remote)
	run.TimeLastObserved = r.observed()

	existing, err := r.q.GetCheckRunByInternalID(ctx, run.InternalID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		if err := r.q.InsertCheckRun(ctx, run); err != nil {
			return nil, err
		}
		return run, nil
	}

	if existing.Status == run.Status && existing.Conclusion == run.Conclusion {
		return existing, nil
	}

	run.ID = existing.ID
	if err := r.q.UpdateCheckRun(ctx, run); err != nil {
		return nil, err
	}
	return run, nil
}

// CheckSuite upserts a check suite with the same policy as CheckRun
func (r *Reconciler) CheckSuite(ctx context.Context, remote *github.CheckSuite) (*models.CheckSuite, error) {
	if remote.GetID() == 0 {
		log.Warn(ctx, "Skipping check suite without remote id", "head_sha", remote.GetHeadSHA())
		return nil, nil
	}

	suite := api.ConvertCheckSuite(remote)
	suite.TimeLastObserved = r.observed()

	existing, err := r.q.GetCheckSuiteByInternalID(ctx, suite.InternalID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		if err := r.q.InsertCheckSuite(ctx, suite); err != nil {
			return nil, err
		}
		return suite, nil
	}

	if existing.Status == suite.Status && existing.Conclusion == suite.Conclusion {
		return existing, nil
	}

	suite.ID = existing.ID
	if err := r.q.UpdateCheckSuite(ctx, suite); err != nil {
		return nil, err
	}
	return suite, nil
}

// CombinedStatus upserts the combined commit status of headSHA. A combined
// status with no individual statuses is stored as CommitStateNone, since
// GitHub reports those as pending forever.
func (r *Reconciler) CombinedStatus(ctx context.Context, remote *github.CombinedStatus, headSHA string) (*models.CommitCombinedStatus, error) {
	status := api.ConvertCombinedStatus(remote)
	if status.HeadSHA == "" {
		status.HeadSHA = headSHA
	}
	if status.HeadSHA == "" {
		log.Warn(ctx, "Skipping combined status without head sha")
		return nil, nil
	}
	if status.TotalCount == 0 {
		status.State = models.CommitStateNone
	}
	status.TimeLastObserved = r.observed()

	existing, err := r.q.GetCommitCombinedStatus(ctx, status.HeadSHA)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		if err := r.q.InsertCommitCombinedStatus(ctx, status); err != nil {
			return nil, err
		}
		return status, nil
	}

	if existing.State == status.State {
		return existing, nil
	}

	status.ID = existing.ID
	if err := r.q.UpdateCommitCombinedStatus(ctx, status); err != nil {
		return nil, err
	}
	return status, nil
}
