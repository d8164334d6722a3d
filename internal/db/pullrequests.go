package db

import (
	"context"
	"fmt"
	"time"

	"github.com/wesm/pr-watch/internal/models"
)

const pullRequestColumns = `id, internal_id, number, repository_id, author_id, title, body, state, html_url,
	head_sha, head_ref, merged, locked, draft, label_ids, assignee_ids,
	time_created, time_updated, time_merged, time_closed, time_last_observed`

func scanPullRequest(s scanner) (*models.PullRequest, error) {
	var pr models.PullRequest
	var labels, assignees string
	var created, updated, merged, closed, observed int64
	err := s.Scan(&pr.ID, &pr.InternalID, &pr.Number, &pr.RepositoryID, &pr.AuthorID, &pr.Title, &pr.Body,
		&pr.State, &pr.HTMLURL, &pr.HeadSHA, &pr.HeadRef, &pr.Merged, &pr.Locked, &pr.Draft, &labels, &assignees,
		&created, &updated, &merged, &closed, &observed)
	if err != nil {
		return nil, err
	}
	pr.LabelIDs = models.ParseIDSet(labels)
	pr.AssigneeIDs = models.ParseIDSet(assignees)
	pr.TimeCreated = fromMillis(created)
	pr.TimeUpdated = fromMillis(updated)
	pr.TimeMerged = fromMillis(merged)
	pr.TimeClosed = fromMillis(closed)
	pr.TimeLastObserved = fromMillis(observed)
	return &pr, nil
}

// GetPullRequest gets a pull request by surrogate id
func (q *Queries) GetPullRequest(ctx context.Context, id int64) (*models.PullRequest, error) {
	return getOne(ctx, q, scanPullRequest, `SELECT `+pullRequestColumns+` FROM pull_requests WHERE id = ?`, id)
}

// GetPullRequestByInternalID gets a pull request by remote id
func (q *Queries) GetPullRequestByInternalID(ctx context.Context, internalID int64) (*models.PullRequest, error) {
	return getOne(ctx, q, scanPullRequest, `SELECT `+pullRequestColumns+` FROM pull_requests WHERE internal_id = ?`, internalID)
}

// GetPullRequestByNumber gets a pull request of a repository by its number
func (q *Queries) GetPullRequestByNumber(ctx context.Context, repositoryID int64, number int) (*models.PullRequest, error) {
	return getOne(ctx, q, scanPullRequest,
		`SELECT `+pullRequestColumns+` FROM pull_requests WHERE repository_id = ? AND number = ?`, repositoryID, number)
}

// ListPullRequests lists the pull requests of a repository, newest update first
func (q *Queries) ListPullRequests(ctx context.Context, repositoryID int64) ([]*models.PullRequest, error) {
	return getAll(ctx, q, scanPullRequest,
		`SELECT `+pullRequestColumns+` FROM pull_requests WHERE repository_id = ? ORDER BY time_updated DESC`, repositoryID)
}

// InsertPullRequest inserts a pull request and sets its surrogate id
func (q *Queries) InsertPullRequest(ctx context.Context, pr *models.PullRequest) error {
	id, err := q.insertID(ctx, `
	INSERT INTO pull_requests (internal_id, number, repository_id, author_id, title, body, state, html_url,
		head_sha, head_ref, merged, locked, draft, label_ids, assignee_ids,
		time_created, time_updated, time_merged, time_closed, time_last_observed)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		pr.InternalID, pr.Number, pr.RepositoryID, pr.AuthorID, pr.Title, pr.Body, pr.State, pr.HTMLURL,
		pr.HeadSHA, pr.HeadRef, pr.Merged, pr.Locked, pr.Draft, pr.LabelIDs.String(), pr.AssigneeIDs.String(),
		toMillis(pr.TimeCreated), toMillis(pr.TimeUpdated), toMillis(pr.TimeMerged), toMillis(pr.TimeClosed),
		toMillis(pr.TimeLastObserved))
	if err != nil {
		return fmt.Errorf("failed to insert pull request #%d: %w", pr.Number, err)
	}
	pr.ID = id
	return nil
}

// UpdatePullRequest updates an existing pull request row
func (q *Queries) UpdatePullRequest(ctx context.Context, pr *models.PullRequest) error {
	_, err := q.exec(ctx, `
	UPDATE pull_requests SET number = ?, repository_id = ?, author_id = ?, title = ?, body = ?, state = ?,
		html_url = ?, head_sha = ?, head_ref = ?, merged = ?, locked = ?, draft = ?, label_ids = ?, assignee_ids = ?,
		time_created = ?, time_updated = ?, time_merged = ?, time_closed = ?, time_last_observed = ?
	WHERE id = ?`,
		pr.Number, pr.RepositoryID, pr.AuthorID, pr.Title, pr.Body, pr.State,
		pr.HTMLURL, pr.HeadSHA, pr.HeadRef, pr.Merged, pr.Locked, pr.Draft, pr.LabelIDs.String(), pr.AssigneeIDs.String(),
		toMillis(pr.TimeCreated), toMillis(pr.TimeUpdated), toMillis(pr.TimeMerged), toMillis(pr.TimeClosed),
		toMillis(pr.TimeLastObserved), pr.ID)
	if err != nil {
		return fmt.Errorf("failed to update pull request #%d: %w", pr.Number, err)
	}
	return nil
}

// TouchPullRequest records that the pull request was seen at t without
// changing any remote field
func (q *Queries) TouchPullRequest(ctx context.Context, id int64, t time.Time) error {
	if _, err := q.exec(ctx, `UPDATE pull_requests SET time_last_observed = ? WHERE id = ?`, toMillis(t), id); err != nil {
		return fmt.Errorf("failed to touch pull request %d: %w", id, err)
	}
	return nil
}

// ReplacePullRequestLabels drops every label link of the pull request and
// inserts the given ones
func (q *Queries) ReplacePullRequestLabels(ctx context.Context, pullRequestID int64, labelIDs []int64) error {
	return q.replaceLinks(ctx, "pull_request_labels", "pull_request_id", "label_id", pullRequestID, labelIDs)
}

// ReplacePullRequestAssignees drops every assignee link of the pull request
// and inserts the given ones
func (q *Queries) ReplacePullRequestAssignees(ctx context.Context, pullRequestID int64, userIDs []int64) error {
	return q.replaceLinks(ctx, "pull_request_assignees", "pull_request_id", "user_id", pullRequestID, userIDs)
}

// ListPullRequestLabels lists the labels linked to a pull request
func (q *Queries) ListPullRequestLabels(ctx context.Context, pullRequestID int64) ([]*models.Label, error) {
	return getAll(ctx, q, scanLabel, `
	SELECT `+labelColumnsPrefixed+` FROM labels l
	JOIN pull_request_labels pl ON pl.label_id = l.id
	WHERE pl.pull_request_id = ? ORDER BY l.name`, pullRequestID)
}

// ListPullRequestAssignees lists the users assigned to a pull request
func (q *Queries) ListPullRequestAssignees(ctx context.Context, pullRequestID int64) ([]*models.User, error) {
	return getAll(ctx, q, scanUser, `
	SELECT u.id, u.internal_id, u.login, u.avatar_url, u.html_url, u.type, u.time_updated FROM users u
	JOIN pull_request_assignees pa ON pa.user_id = u.id
	WHERE pa.pull_request_id = ? ORDER BY u.login`, pullRequestID)
}

// replaceLinks rebuilds the association rows of one owner in a join table.
func (q *Queries) replaceLinks(ctx context.Context, table, ownerCol, targetCol string, ownerID int64, targetIDs []int64) error {
	if _, err := q.exec(ctx, `DELETE FROM `+table+` WHERE `+ownerCol+` = ?`, ownerID); err != nil {
		return fmt.Errorf("failed to clear %s for %d: %w", table, ownerID, err)
	}
	for _, id := range targetIDs {
		if id == models.NoKey {
			continue
		}
		_, err := q.exec(ctx, `INSERT OR IGNORE INTO `+table+` (`+ownerCol+`, `+targetCol+`) VALUES (?, ?)`, ownerID, id)
		if err != nil {
			return fmt.Errorf("failed to insert %s row: %w", table, err)
		}
	}
	return nil
}
