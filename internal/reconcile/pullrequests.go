package reconcile

import (
	"context"

	"github.com/google/go-github/v57/github"

	"github.com/wesm/pr-watch/internal/api"
	"github.com/wesm/pr-watch/internal/log"
	"github.com/wesm/pr-watch/internal/models"
)

// PullRequest upserts a pull request of repo together with its author,
// labels and assignees. The stored row is only rewritten when the remote
// updated time is newer; the association tables are rebuilt when the label
// or assignee set changed. A record without a remote id yields nil.
func (r *Reconciler) PullRequest(ctx context.Context, remote *github.PullRequest, repo *models.Repository) (*models.PullRequest, error) {
	if remote.GetID() == 0 {
		log.Warn(ctx, "Skipping pull request without remote id", "number", remote.GetNumber())
		return nil, nil
	}

	authorID, err := r.userKey(ctx, remote.GetUser())
	if err != nil {
		return nil, err
	}
	labelKeys, err := r.labelKeys(ctx, remote.Labels)
	if err != nil {
		return nil, err
	}
	assigneeKeys, err := r.userKeys(ctx, remote.Assignees)
	if err != nil {
		return nil, err
	}

	pr := api.ConvertPullRequest(remote)
	pr.RepositoryID = repo.ID
	pr.AuthorID = authorID
	pr.TimeLastObserved = r.observed()

	existing, err := r.q.GetPullRequestByInternalID(ctx, pr.InternalID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		if err := r.q.InsertPullRequest(ctx, pr); err != nil {
			return nil, err
		}
		if err := r.q.ReplacePullRequestLabels(ctx, pr.ID, labelKeys); err != nil {
			return nil, err
		}
		if err := r.q.ReplacePullRequestAssignees(ctx, pr.ID, assigneeKeys); err != nil {
			return nil, err
		}
		return pr, nil
	}

	if !pr.TimeUpdated.After(existing.TimeUpdated) {
		if err := r.q.TouchPullRequest(ctx, existing.ID, pr.TimeLastObserved); err != nil {
			return nil, err
		}
		existing.TimeLastObserved = pr.TimeLastObserved
		return existing, nil
	}

	pr.ID = existing.ID
	if err := r.q.UpdatePullRequest(ctx, pr); err != nil {
		return nil, err
	}
	if !pr.LabelIDs.Equal(existing.LabelIDs) {
		if err := r.q.ReplacePullRequestLabels(ctx, pr.ID, labelKeys); err != nil {
			return nil, err
		}
	}
	if !pr.AssigneeIDs.Equal(existing.AssigneeIDs) {
		if err := r.q.ReplacePullRequestAssignees(ctx, pr.ID, assigneeKeys); err != nil {
			return nil, err
		}
	}
	return pr, nil
}

// Issue upserts an issue of repo with the same policy as PullRequest.
// Search results that are pull requests are skipped.
func (r *Reconciler) Issue(ctx context.Context, remote *github.Issue, repo *models.Repository) (*models.Issue, error) {
	if remote.GetID() == 0 {
		log.Warn(ctx, "Skipping issue without remote id", "number", remote.GetNumber())
		return nil, nil
	}
	if remote.IsPullRequest() {
		log.Debug(ctx, "Skipping pull request in issue results", "number", remote.GetNumber())
		return nil, nil
	}

	authorID, err := r.userKey(ctx, remote.GetUser())
	if err != nil {
		return nil, err
	}
	labelKeys, err := r.labelKeys(ctx, remote.Labels)
	if err != nil {
		return nil, err
	}
	assigneeKeys, err := r.userKeys(ctx, remote.Assignees)
	if err != nil {
		return nil, err
	}

	issue := api.ConvertIssue(remote)
	issue.RepositoryID = repo.ID
	issue.AuthorID = authorID
	issue.TimeLastObserved = r.observed()

	existing, err := r.q.GetIssueByInternalID(ctx, issue.InternalID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		if err := r.q.InsertIssue(ctx, issue); err != nil {
			return nil, err
		}
		if err := r.q.ReplaceIssueLabels(ctx, issue.ID, labelKeys); err != nil {
			return nil, err
		}
		if err := r.q.ReplaceIssueAssignees(ctx, issue.ID, assigneeKeys); err != nil {
			return nil, err
		}
		return issue, nil
	}

	if !issue.TimeUpdated.After(existing.TimeUpdated) {
		if err := r.q.TouchIssue(ctx, existing.ID, issue.TimeLastObserved); err != nil {
			return nil, err
		}
		existing.TimeLastObserved = issue.TimeLastObserved
		return existing, nil
	}

	issue.ID = existing.ID
	if err := r.q.UpdateIssue(ctx, issue); err != nil {
		return nil, err
	}
	if !issue.LabelIDs.Equal(existing.LabelIDs) {
		if err := r.q.ReplaceIssueLabels(ctx, issue.ID, labelKeys); err != nil {
			return nil, err
		}
	}
	if !issue.AssigneeIDs.Equal(existing.AssigneeIDs) {
		if err := r.q.ReplaceIssueAssignees(ctx, issue.ID, assigneeKeys); err != nil {
			return nil, err
		}
	}
	return issue, nil
}

// Label upserts a label. Existing labels are rewritten at most once per
// LabelDebounce.
func (r *Reconciler) Label(ctx context.Context, remote *github.Label) (*models.Label, error) {
	if remote.GetID() == 0 {
		log.Warn(ctx, "Skipping label without remote id", "name", remote.GetName())
		return nil, nil
	}

	label := api.ConvertLabel(remote)
	label.TimeUpdated = r.observed()

	existing, err := r.q.GetLabelByInternalID(ctx, label.InternalID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		if err := r.q.InsertLabel(ctx, label); err != nil {
			return nil, err
		}
		return label, nil
	}

	if label.TimeUpdated.Sub(existing.TimeUpdated) < r.opts.LabelDebounce {
		return existing, nil
	}

	label.ID = existing.ID
	if err := r.q.UpdateLabel(ctx, label); err != nil {
		return nil, err
	}
	return label, nil
}

func (r *Reconciler) labelKeys(ctx context.Context, labels []*github.Label) ([]int64, error) {
	keys := make([]int64, 0, len(labels))
	for _, l := range labels {
		label, err := r.Label(ctx, l)
		if err != nil {
			return nil, err
		}
		if label != nil {
			keys = append(keys, label.ID)
		}
	}
	return keys, nil
}

func (r *Reconciler) userKeys(ctx context.Context, users []*github.User) ([]int64, error) {
	keys := make([]int64, 0, len(users))
	for _, u := range users {
		key, err := r.userKey(ctx, u)
		if err != nil {
			return nil, err
		}
		if key != models.NoKey {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

// Review upserts a review of pr. Reviews are always rewritten to refresh
// their last-observed time. isNew reports whether the review was inserted.
func (r *Reconciler) Review(ctx context.Context, remote *github.PullRequestReview, pr *models.PullRequest) (review *models.Review, isNew bool, err error) {
	if remote.GetID() == 0 {
		log.Warn(ctx, "Skipping review without remote id", "pull_request", pr.Number)
		return nil, false, nil
	}

	authorID, err := r.userKey(ctx, remote.GetUser())
	if err != nil {
		return nil, false, err
	}

	review = api.ConvertReview(remote)
	review.PullRequestID = pr.ID
	review.AuthorID = authorID
	review.TimeLastObserved = r.observed()

	existing, err := r.q.GetReviewByInternalID(ctx, review.InternalID)
	if err != nil {
		return nil, false, err
	}
	if existing == nil {
		if err := r.q.InsertReview(ctx, review); err != nil {
			return nil, false, err
		}
		return review, true, nil
	}

	review.ID = existing.ID
	if err := r.q.UpdateReview(ctx, review); err != nil {
		return nil, false, err
	}
	return review, false, nil
}

// Release upserts a release of repo, always refreshing it
func (r *Reconciler) Release(ctx context.Context, remote *github.RepositoryRelease, repo *models.Repository) (*models.Release, error) {
	if remote.GetID() == 0 {
		log.Warn(ctx, "Skipping release without remote id", "tag", remote.GetTagName())
		return nil, nil
	}

	release := api.ConvertRelease(remote)
	release.RepositoryID = repo.ID
	release.TimeLastObserved = r.observed()

	existing, err := r.q.GetReleaseByInternalID(ctx, release.InternalID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		if err := r.q.InsertRelease(ctx, release); err != nil {
			return nil, err
		}
		return release, nil
	}

	release.ID = existing.ID
	if err := r.q.UpdateRelease(ctx, release); err != nil {
		return nil, err
	}
	return release, nil
}
