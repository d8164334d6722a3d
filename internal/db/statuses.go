package db

import (
	"context"
	"fmt"

	"github.com/wesm/pr-watch/internal/models"
)

// StatusSnapshotsRetained is how many snapshots are kept per pull request:
// the current one and the one it is diffed against.
const StatusSnapshotsRetained = 2

const pullRequestStatusColumns = `id, pull_request_id, head_sha, status_id, conclusion_id, state_id, failed, succeeded,
	details_url, result, time_occurred, time_created`

func scanPullRequestStatus(s scanner) (*models.PullRequestStatus, error) {
	var st models.PullRequestStatus
	var occurred, created int64
	err := s.Scan(&st.ID, &st.PullRequestID, &st.HeadSHA, &st.Status, &st.Conclusion, &st.State, &st.Failed,
		&st.Succeeded, &st.DetailsURL, &st.Result, &occurred, &created)
	if err != nil {
		return nil, err
	}
	st.TimeOccurred = fromMillis(occurred)
	st.TimeCreated = fromMillis(created)
	return &st, nil
}

// InsertPullRequestStatus stores a new snapshot and drops the ones older than
// the retained window for the same pull request
func (q *Queries) InsertPullRequestStatus(ctx context.Context, st *models.PullRequestStatus) error {
	id, err := q.insertID(ctx, `
	INSERT INTO pull_request_statuses (pull_request_id, head_sha, status_id, conclusion_id, state_id, failed,
		succeeded, details_url, result, time_occurred, time_created)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		st.PullRequestID, st.HeadSHA, st.Status, st.Conclusion, st.State, st.Failed,
		st.Succeeded, st.DetailsURL, st.Result, toMillis(st.TimeOccurred), toMillis(st.TimeCreated))
	if err != nil {
		return fmt.Errorf("failed to insert status for pull request %d: %w", st.PullRequestID, err)
	}
	st.ID = id

	_, err = q.exec(ctx, `
	DELETE FROM pull_request_statuses
	WHERE pull_request_id = ? AND id NOT IN (
		SELECT id FROM pull_request_statuses WHERE pull_request_id = ? ORDER BY id DESC LIMIT ?
	)`, st.PullRequestID, st.PullRequestID, StatusSnapshotsRetained)
	if err != nil {
		return fmt.Errorf("failed to trim statuses for pull request %d: %w", st.PullRequestID, err)
	}
	return nil
}

// GetLatestPullRequestStatus gets the newest snapshot of a pull request
func (q *Queries) GetLatestPullRequestStatus(ctx context.Context, pullRequestID int64) (*models.PullRequestStatus, error) {
	return getOne(ctx, q, scanPullRequestStatus, `
	SELECT `+pullRequestStatusColumns+` FROM pull_request_statuses
	WHERE pull_request_id = ? ORDER BY id DESC LIMIT 1`, pullRequestID)
}

// GetPreviousPullRequestStatus gets the snapshot taken just before the one
// with id currentID
func (q *Queries) GetPreviousPullRequestStatus(ctx context.Context, pullRequestID, currentID int64) (*models.PullRequestStatus, error) {
	return getOne(ctx, q, scanPullRequestStatus, `
	SELECT `+pullRequestStatusColumns+` FROM pull_request_statuses
	WHERE pull_request_id = ? AND id < ? ORDER BY id DESC LIMIT 1`, pullRequestID, currentID)
}

// ListPullRequestStatuses lists the retained snapshots of a pull request, newest first
func (q *Queries) ListPullRequestStatuses(ctx context.Context, pullRequestID int64) ([]*models.PullRequestStatus, error) {
	return getAll(ctx, q, scanPullRequestStatus, `
	SELECT `+pullRequestStatusColumns+` FROM pull_request_statuses
	WHERE pull_request_id = ? ORDER BY id DESC`, pullRequestID)
}
