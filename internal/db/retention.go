package db

import (
	"context"
	"time"
)

// The delete-by-predicate operations used by the retention sweep. None of
// them cascade; the sweep calls them in dependency order.

// DeleteOrphanCheckRuns removes check runs whose head SHA matches no pull request
func (q *Queries) DeleteOrphanCheckRuns(ctx context.Context) (int64, error) {
	return q.deleteWhere(ctx, `DELETE FROM check_runs WHERE head_sha NOT IN (SELECT head_sha FROM pull_requests)`)
}

// DeleteOrphanCheckSuites removes check suites whose head SHA matches no pull request
func (q *Queries) DeleteOrphanCheckSuites(ctx context.Context) (int64, error) {
	return q.deleteWhere(ctx, `DELETE FROM check_suites WHERE head_sha NOT IN (SELECT head_sha FROM pull_requests)`)
}

// DeleteOrphanCommitCombinedStatuses removes combined statuses whose head SHA
// matches no pull request
func (q *Queries) DeleteOrphanCommitCombinedStatuses(ctx context.Context) (int64, error) {
	return q.deleteWhere(ctx,
		`DELETE FROM commit_combined_statuses WHERE head_sha NOT IN (SELECT head_sha FROM pull_requests)`)
}

// DeleteOrphanPullRequestStatuses removes snapshots whose head SHA or pull
// request no longer exists
func (q *Queries) DeleteOrphanPullRequestStatuses(ctx context.Context) (int64, error) {
	return q.deleteWhere(ctx, `
	DELETE FROM pull_request_statuses
	WHERE head_sha NOT IN (SELECT head_sha FROM pull_requests)
		OR pull_request_id NOT IN (SELECT id FROM pull_requests)`)
}

// DeleteOrphanSearchIssues removes search links whose search or issue no
// longer exists
func (q *Queries) DeleteOrphanSearchIssues(ctx context.Context) (int64, error) {
	return q.deleteWhere(ctx, `
	DELETE FROM search_issues
	WHERE search_id NOT IN (SELECT id FROM searches) OR issue_id NOT IN (SELECT id FROM issues)`)
}

// DeletePullRequestsNotObservedSince removes pull requests of a repository
// last seen before cutoff
func (q *Queries) DeletePullRequestsNotObservedSince(ctx context.Context, repositoryID int64, cutoff time.Time) (int64, error) {
	return q.deleteWhere(ctx, `DELETE FROM pull_requests WHERE repository_id = ? AND time_last_observed < ?`,
		repositoryID, toMillis(cutoff))
}

// DeleteIssuesNotObservedSince removes issues of a repository last seen before cutoff
func (q *Queries) DeleteIssuesNotObservedSince(ctx context.Context, repositoryID int64, cutoff time.Time) (int64, error) {
	return q.deleteWhere(ctx, `DELETE FROM issues WHERE repository_id = ? AND time_last_observed < ?`,
		repositoryID, toMillis(cutoff))
}

// DeleteOrphanPullRequestChildren removes label links, assignee links and
// reviews whose pull request no longer exists
func (q *Queries) DeleteOrphanPullRequestChildren(ctx context.Context) (int64, error) {
	var total int64
	for _, stmt := range []string{
		`DELETE FROM pull_request_labels WHERE pull_request_id NOT IN (SELECT id FROM pull_requests)`,
		`DELETE FROM pull_request_assignees WHERE pull_request_id NOT IN (SELECT id FROM pull_requests)`,
		`DELETE FROM reviews WHERE pull_request_id NOT IN (SELECT id FROM pull_requests)`,
	} {
		n, err := q.deleteWhere(ctx, stmt)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// DeleteOrphanIssueChildren removes label and assignee links whose issue no
// longer exists
func (q *Queries) DeleteOrphanIssueChildren(ctx context.Context) (int64, error) {
	var total int64
	for _, stmt := range []string{
		`DELETE FROM issue_labels WHERE issue_id NOT IN (SELECT id FROM issues)`,
		`DELETE FROM issue_assignees WHERE issue_id NOT IN (SELECT id FROM issues)`,
	} {
		n, err := q.deleteWhere(ctx, stmt)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// DeleteNotificationsCreatedBefore removes notifications created before cutoff
func (q *Queries) DeleteNotificationsCreatedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return q.deleteWhere(ctx, `DELETE FROM notifications WHERE time_created < ?`, toMillis(cutoff))
}

// DeleteSearchesUpdatedBefore removes searches last refreshed before cutoff
func (q *Queries) DeleteSearchesUpdatedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return q.deleteWhere(ctx, `DELETE FROM searches WHERE time_updated < ?`, toMillis(cutoff))
}
