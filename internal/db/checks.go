package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/wesm/pr-watch/internal/models"
)

const checkRunColumns = `id, internal_id, name, head_sha, status_id, conclusion_id, details_url, html_url, summary,
	time_started, time_completed, time_last_observed`

func scanCheckRun(s scanner) (*models.CheckRun, error) {
	var c models.CheckRun
	var started, completed, observed int64
	err := s.Scan(&c.ID, &c.InternalID, &c.Name, &c.HeadSHA, &c.Status, &c.Conclusion, &c.DetailsURL, &c.HTMLURL,
		&c.Summary, &started, &completed, &observed)
	if err != nil {
		return nil, err
	}
	c.TimeStarted = fromMillis(started)
	c.TimeCompleted = fromMillis(completed)
	c.TimeLastObserved = fromMillis(observed)
	return &c, nil
}

// GetCheckRunByInternalID gets a check run by remote id
func (q *Queries) GetCheckRunByInternalID(ctx context.Context, internalID int64) (*models.CheckRun, error) {
	return getOne(ctx, q, scanCheckRun, `SELECT `+checkRunColumns+` FROM check_runs WHERE internal_id = ?`, internalID)
}

// ListCheckRunsForHeadSHA lists the check runs of a commit, most severe
// completed conclusion first
func (q *Queries) ListCheckRunsForHeadSHA(ctx context.Context, headSHA string) ([]*models.CheckRun, error) {
	return getAll(ctx, q, scanCheckRun, `
	SELECT `+checkRunColumns+` FROM check_runs WHERE head_sha = ?
	ORDER BY CASE WHEN status_id = ? THEN 0 ELSE 1 END, conclusion_id, time_completed DESC, id`,
		headSHA, models.CheckStatusCompleted)
}

// InsertCheckRun inserts a check run and sets its surrogate id
func (q *Queries) InsertCheckRun(ctx context.Context, c *models.CheckRun) error {
	id, err := q.insertID(ctx, `
	INSERT INTO check_runs (internal_id, name, head_sha, status_id, conclusion_id, details_url, html_url, summary,
		time_started, time_completed, time_last_observed)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.InternalID, c.Name, c.HeadSHA, c.Status, c.Conclusion, c.DetailsURL, c.HTMLURL, c.Summary,
		toMillis(c.TimeStarted), toMillis(c.TimeCompleted), toMillis(c.TimeLastObserved))
	if err != nil {
		return fmt.Errorf("failed to insert check run %s: %w", c.Name, err)
	}
	c.ID = id
	return nil
}

// UpdateCheckRun updates an existing check run row
func (q *Queries) UpdateCheckRun(ctx context.Context, c *models.CheckRun) error {
	_, err := q.exec(ctx, `
	UPDATE check_runs SET name = ?, head_sha = ?, status_id = ?, conclusion_id = ?, details_url = ?, html_url = ?,
		summary = ?, time_started = ?, time_completed = ?, time_last_observed = ?
	WHERE id = ?`,
		c.Name, c.HeadSHA, c.Status, c.Conclusion, c.DetailsURL, c.HTMLURL,
		c.Summary, toMillis(c.TimeStarted), toMillis(c.TimeCompleted), toMillis(c.TimeLastObserved), c.ID)
	if err != nil {
		return fmt.Errorf("failed to update check run %s: %w", c.Name, err)
	}
	return nil
}

// DeleteCheckRunsForHeadSHANotIn deletes the check runs of a commit whose
// remote id is not in keep. A re-run job is listed under a new id, so the
// attempt it replaced disappears from the listing.
func (q *Queries) DeleteCheckRunsForHeadSHANotIn(ctx context.Context, headSHA string, keep []int64) (int64, error) {
	return q.deleteForHeadSHANotIn(ctx, "check_runs", headSHA, keep)
}

// DeleteCheckSuitesForHeadSHANotIn is DeleteCheckRunsForHeadSHANotIn for check suites
func (q *Queries) DeleteCheckSuitesForHeadSHANotIn(ctx context.Context, headSHA string, keep []int64) (int64, error) {
	return q.deleteForHeadSHANotIn(ctx, "check_suites", headSHA, keep)
}

func (q *Queries) deleteForHeadSHANotIn(ctx context.Context, table, headSHA string, keep []int64) (int64, error) {
	query := `DELETE FROM ` + table + ` WHERE head_sha = ?`
	args := []any{headSHA}
	if len(keep) > 0 {
		query += ` AND internal_id NOT IN (?` + strings.Repeat(", ?", len(keep)-1) + `)`
		for _, id := range keep {
			args = append(args, id)
		}
	}
	n, err := q.deleteWhere(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete stale %s for %s: %w", table, headSHA, err)
	}
	return n, nil
}

const checkSuiteColumns = `id, internal_id, name, head_sha, app_id, status_id, conclusion_id, html_url,
	time_created, time_updated, time_last_observed`

func scanCheckSuite(s scanner) (*models.CheckSuite, error) {
	var c models.CheckSuite
	var created, updated, observed int64
	err := s.Scan(&c.ID, &c.InternalID, &c.Name, &c.HeadSHA, &c.AppID, &c.Status, &c.Conclusion, &c.HTMLURL,
		&created, &updated, &observed)
	if err != nil {
		return nil, err
	}
	c.TimeCreated = fromMillis(created)
	c.TimeUpdated = fromMillis(updated)
	c.TimeLastObserved = fromMillis(observed)
	return &c, nil
}

// GetCheckSuiteByInternalID gets a check suite by remote id
func (q *Queries) GetCheckSuiteByInternalID(ctx context.Context, internalID int64) (*models.CheckSuite, error) {
	return getOne(ctx, q, scanCheckSuite, `SELECT `+checkSuiteColumns+` FROM check_suites WHERE internal_id = ?`, internalID)
}

// InsertCheckSuite inserts a check suite and sets its surrogate id
func (q *Queries) InsertCheckSuite(ctx context.Context, c *models.CheckSuite) error {
	id, err := q.insertID(ctx, `
	INSERT INTO check_suites (internal_id, name, head_sha, app_id, status_id, conclusion_id, html_url,
		time_created, time_updated, time_last_observed)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.InternalID, c.Name, c.HeadSHA, c.AppID, c.Status, c.Conclusion, c.HTMLURL,
		toMillis(c.TimeCreated), toMillis(c.TimeUpdated), toMillis(c.TimeLastObserved))
	if err != nil {
		return fmt.Errorf("failed to insert check suite %d: %w", c.InternalID, err)
	}
	c.ID = id
	return nil
}

// UpdateCheckSuite updates an existing check suite row
func (q *Queries) UpdateCheckSuite(ctx context.Context, c *models.CheckSuite) error {
	_, err := q.exec(ctx, `
	UPDATE check_suites SET name = ?, head_sha = ?, app_id = ?, status_id = ?, conclusion_id = ?, html_url = ?,
		time_created = ?, time_updated = ?, time_last_observed = ?
	WHERE id = ?`,
		c.Name, c.HeadSHA, c.AppID, c.Status, c.Conclusion, c.HTMLURL,
		toMillis(c.TimeCreated), toMillis(c.TimeUpdated), toMillis(c.TimeLastObserved), c.ID)
	if err != nil {
		return fmt.Errorf("failed to update check suite %d: %w", c.InternalID, err)
	}
	return nil
}

const combinedStatusColumns = `id, head_sha, state_id, total_count, time_last_observed`

func scanCombinedStatus(s scanner) (*models.CommitCombinedStatus, error) {
	var c models.CommitCombinedStatus
	var observed int64
	if err := s.Scan(&c.ID, &c.HeadSHA, &c.State, &c.TotalCount, &observed); err != nil {
		return nil, err
	}
	c.TimeLastObserved = fromMillis(observed)
	return &c, nil
}

// GetCommitCombinedStatus gets the combined status of a head SHA
func (q *Queries) GetCommitCombinedStatus(ctx context.Context, headSHA string) (*models.CommitCombinedStatus, error) {
	return getOne(ctx, q, scanCombinedStatus,
		`SELECT `+combinedStatusColumns+` FROM commit_combined_statuses WHERE head_sha = ?`, headSHA)
}

// InsertCommitCombinedStatus inserts a combined status and sets its surrogate id
func (q *Queries) InsertCommitCombinedStatus(ctx context.Context, c *models.CommitCombinedStatus) error {
	id, err := q.insertID(ctx, `
	INSERT INTO commit_combined_statuses (head_sha, state_id, total_count, time_last_observed)
	VALUES (?, ?, ?, ?)`,
		c.HeadSHA, c.State, c.TotalCount, toMillis(c.TimeLastObserved))
	if err != nil {
		return fmt.Errorf("failed to insert combined status for %s: %w", c.HeadSHA, err)
	}
	c.ID = id
	return nil
}

// UpdateCommitCombinedStatus updates an existing combined status row
func (q *Queries) UpdateCommitCombinedStatus(ctx context.Context, c *models.CommitCombinedStatus) error {
	_, err := q.exec(ctx, `
	UPDATE commit_combined_statuses SET state_id = ?, total_count = ?, time_last_observed = ? WHERE id = ?`,
		c.State, c.TotalCount, toMillis(c.TimeLastObserved), c.ID)
	if err != nil {
		return fmt.Errorf("failed to update combined status for %s: %w", c.HeadSHA, err)
	}
	return nil
}

// Aggregate is the composite of a set of check rows sharing a head SHA.
type Aggregate struct {
	Status     models.CheckStatus
	Conclusion models.CheckConclusion
	Count      int
}

// CheckRunAggregate computes the minimum status over every check run of the
// commit and the minimum conclusion over only its completed check runs. A
// completed run without a known conclusion does not count toward the
// conclusion. A commit without rows yields None for both.
func (q *Queries) CheckRunAggregate(ctx context.Context, headSHA string) (Aggregate, error) {
	return q.aggregate(ctx, "check_runs", headSHA, "")
}

// CheckSuiteAggregate is CheckRunAggregate over check suites, skipping the
// suites created by excludeAppID. Zero excludes nothing.
func (q *Queries) CheckSuiteAggregate(ctx context.Context, headSHA string, excludeAppID int64) (Aggregate, error) {
	if excludeAppID == 0 {
		return q.aggregate(ctx, "check_suites", headSHA, "")
	}
	return q.aggregate(ctx, "check_suites", headSHA, fmt.Sprintf(" AND app_id != %d", excludeAppID))
}

func (q *Queries) aggregate(ctx context.Context, table, headSHA, extra string) (Aggregate, error) {
	var agg Aggregate
	var status sql.NullInt64
	err := q.queryRow(ctx, `SELECT MIN(status_id), COUNT(*) FROM `+table+` WHERE head_sha = ?`+extra, headSHA).
		Scan(&status, &agg.Count)
	if err != nil {
		return agg, fmt.Errorf("failed to aggregate %s status: %w", table, err)
	}
	if status.Valid {
		agg.Status = models.CheckStatus(status.Int64)
	}

	var conclusion sql.NullInt64
	err = q.queryRow(ctx, `SELECT MIN(conclusion_id) FROM `+table+` WHERE head_sha = ? AND status_id = ? AND conclusion_id != 0`+extra,
		headSHA, models.CheckStatusCompleted).Scan(&conclusion)
	if err != nil {
		return agg, fmt.Errorf("failed to aggregate %s conclusion: %w", table, err)
	}
	if conclusion.Valid {
		agg.Conclusion = models.CheckConclusion(conclusion.Int64)
	}
	return agg, nil
}
