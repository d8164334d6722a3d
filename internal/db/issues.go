package db

import (
	"context"
	"fmt"
	"time"

	"github.com/wesm/pr-watch/internal/models"
)

const issueColumns = `id, internal_id, number, repository_id, author_id, title, body, state, html_url, locked,
	label_ids, assignee_ids, time_created, time_updated, time_closed, time_last_observed`

func scanIssue(s scanner) (*models.Issue, error) {
	var is models.Issue
	var labels, assignees string
	var created, updated, closed, observed int64
	err := s.Scan(&is.ID, &is.InternalID, &is.Number, &is.RepositoryID, &is.AuthorID, &is.Title, &is.Body,
		&is.State, &is.HTMLURL, &is.Locked, &labels, &assignees, &created, &updated, &closed, &observed)
	if err != nil {
		return nil, err
	}
	is.LabelIDs = models.ParseIDSet(labels)
	is.AssigneeIDs = models.ParseIDSet(assignees)
	is.TimeCreated = fromMillis(created)
	is.TimeUpdated = fromMillis(updated)
	is.TimeClosed = fromMillis(closed)
	is.TimeLastObserved = fromMillis(observed)
	return &is, nil
}

// GetIssue gets an issue by surrogate id
func (q *Queries) GetIssue(ctx context.Context, id int64) (*models.Issue, error) {
	return getOne(ctx, q, scanIssue, `SELECT `+issueColumns+` FROM issues WHERE id = ?`, id)
}

// GetIssueByInternalID gets an issue by remote id
func (q *Queries) GetIssueByInternalID(ctx context.Context, internalID int64) (*models.Issue, error) {
	return getOne(ctx, q, scanIssue, `SELECT `+issueColumns+` FROM issues WHERE internal_id = ?`, internalID)
}

// ListIssues lists the issues of a repository, newest update first
func (q *Queries) ListIssues(ctx context.Context, repositoryID int64) ([]*models.Issue, error) {
	return getAll(ctx, q, scanIssue,
		`SELECT `+issueColumns+` FROM issues WHERE repository_id = ? ORDER BY time_updated DESC`, repositoryID)
}

// InsertIssue inserts an issue and sets its surrogate id
func (q *Queries) InsertIssue(ctx context.Context, is *models.Issue) error {
	id, err := q.insertID(ctx, `
	INSERT INTO issues (internal_id, number, repository_id, author_id, title, body, state, html_url, locked,
		label_ids, assignee_ids, time_created, time_updated, time_closed, time_last_observed)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		is.InternalID, is.Number, is.RepositoryID, is.AuthorID, is.Title, is.Body, is.State, is.HTMLURL, is.Locked,
		is.LabelIDs.String(), is.AssigneeIDs.String(), toMillis(is.TimeCreated), toMillis(is.TimeUpdated),
		toMillis(is.TimeClosed), toMillis(is.TimeLastObserved))
	if err != nil {
		return fmt.Errorf("failed to insert issue #%d: %w", is.Number, err)
	}
	is.ID = id
	return nil
}

// UpdateIssue updates an existing issue row
func (q *Queries) UpdateIssue(ctx context.Context, is *models.Issue) error {
	_, err := q.exec(ctx, `
	UPDATE issues SET number = ?, repository_id = ?, author_id = ?, title = ?, body = ?, state = ?, html_url = ?,
		locked = ?, label_ids = ?, assignee_ids = ?, time_created = ?, time_updated = ?, time_closed = ?,
		time_last_observed = ?
	WHERE id = ?`,
		is.Number, is.RepositoryID, is.AuthorID, is.Title, is.Body, is.State, is.HTMLURL,
		is.Locked, is.LabelIDs.String(), is.AssigneeIDs.String(), toMillis(is.TimeCreated), toMillis(is.TimeUpdated),
		toMillis(is.TimeClosed), toMillis(is.TimeLastObserved), is.ID)
	if err != nil {
		return fmt.Errorf("failed to update issue #%d: %w", is.Number, err)
	}
	return nil
}

// TouchIssue records that the issue was seen at t
func (q *Queries) TouchIssue(ctx context.Context, id int64, t time.Time) error {
	if _, err := q.exec(ctx, `UPDATE issues SET time_last_observed = ? WHERE id = ?`, toMillis(t), id); err != nil {
		return fmt.Errorf("failed to touch issue %d: %w", id, err)
	}
	return nil
}

// ReplaceIssueLabels rebuilds the label links of an issue
func (q *Queries) ReplaceIssueLabels(ctx context.Context, issueID int64, labelIDs []int64) error {
	return q.replaceLinks(ctx, "issue_labels", "issue_id", "label_id", issueID, labelIDs)
}

// ReplaceIssueAssignees rebuilds the assignee links of an issue
func (q *Queries) ReplaceIssueAssignees(ctx context.Context, issueID int64, userIDs []int64) error {
	return q.replaceLinks(ctx, "issue_assignees", "issue_id", "user_id", issueID, userIDs)
}

// ListIssueAssignees lists the users assigned to an issue
func (q *Queries) ListIssueAssignees(ctx context.Context, issueID int64) ([]*models.User, error) {
	return getAll(ctx, q, scanUser, `
	SELECT u.id, u.internal_id, u.login, u.avatar_url, u.html_url, u.type, u.time_updated FROM users u
	JOIN issue_assignees ia ON ia.user_id = u.id
	WHERE ia.issue_id = ? ORDER BY u.login`, issueID)
}
