package db

import (
	"context"
	"fmt"
	"time"

	"github.com/wesm/pr-watch/internal/models"
)

const reviewColumns = `id, internal_id, pull_request_id, author_id, body, state, html_url, commit_id,
	time_submitted, time_last_observed`

func scanReview(s scanner) (*models.Review, error) {
	var r models.Review
	var submitted, observed int64
	err := s.Scan(&r.ID, &r.InternalID, &r.PullRequestID, &r.AuthorID, &r.Body, &r.State, &r.HTMLURL, &r.CommitID,
		&submitted, &observed)
	if err != nil {
		return nil, err
	}
	r.TimeSubmitted = fromMillis(submitted)
	r.TimeLastObserved = fromMillis(observed)
	return &r, nil
}

// GetReviewByInternalID gets a review by remote id
func (q *Queries) GetReviewByInternalID(ctx context.Context, internalID int64) (*models.Review, error) {
	return getOne(ctx, q, scanReview, `SELECT `+reviewColumns+` FROM reviews WHERE internal_id = ?`, internalID)
}

// ListReviews lists the reviews of a pull request in submission order
func (q *Queries) ListReviews(ctx context.Context, pullRequestID int64) ([]*models.Review, error) {
	return getAll(ctx, q, scanReview,
		`SELECT `+reviewColumns+` FROM reviews WHERE pull_request_id = ? ORDER BY time_submitted`, pullRequestID)
}

// InsertReview inserts a review and sets its surrogate id
func (q *Queries) InsertReview(ctx context.Context, r *models.Review) error {
	id, err := q.insertID(ctx, `
	INSERT INTO reviews (internal_id, pull_request_id, author_id, body, state, html_url, commit_id,
		time_submitted, time_last_observed)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.InternalID, r.PullRequestID, r.AuthorID, r.Body, r.State, r.HTMLURL, r.CommitID,
		toMillis(r.TimeSubmitted), toMillis(r.TimeLastObserved))
	if err != nil {
		return fmt.Errorf("failed to insert review %d: %w", r.InternalID, err)
	}
	r.ID = id
	return nil
}

// UpdateReview updates an existing review row
func (q *Queries) UpdateReview(ctx context.Context, r *models.Review) error {
	_, err := q.exec(ctx, `
	UPDATE reviews SET pull_request_id = ?, author_id = ?, body = ?, state = ?, html_url = ?, commit_id = ?,
		time_submitted = ?, time_last_observed = ?
	WHERE id = ?`,
		r.PullRequestID, r.AuthorID, r.Body, r.State, r.HTMLURL, r.CommitID,
		toMillis(r.TimeSubmitted), toMillis(r.TimeLastObserved), r.ID)
	if err != nil {
		return fmt.Errorf("failed to update review %d: %w", r.InternalID, err)
	}
	return nil
}

const releaseColumns = `id, internal_id, repository_id, tag_name, name, html_url, draft, prerelease,
	time_created, time_published, time_last_observed`

func scanRelease(s scanner) (*models.Release, error) {
	var r models.Release
	var created, published, observed int64
	err := s.Scan(&r.ID, &r.InternalID, &r.RepositoryID, &r.TagName, &r.Name, &r.HTMLURL, &r.Draft, &r.Prerelease,
		&created, &published, &observed)
	if err != nil {
		return nil, err
	}
	r.TimeCreated = fromMillis(created)
	r.TimePublished = fromMillis(published)
	r.TimeLastObserved = fromMillis(observed)
	return &r, nil
}

// GetReleaseByInternalID gets a release by remote id
func (q *Queries) GetReleaseByInternalID(ctx context.Context, internalID int64) (*models.Release, error) {
	return getOne(ctx, q, scanRelease, `SELECT `+releaseColumns+` FROM releases WHERE internal_id = ?`, internalID)
}

// ListReleases lists the releases of a repository, newest first
func (q *Queries) ListReleases(ctx context.Context, repositoryID int64) ([]*models.Release, error) {
	return getAll(ctx, q, scanRelease,
		`SELECT `+releaseColumns+` FROM releases WHERE repository_id = ? ORDER BY time_published DESC`, repositoryID)
}

// InsertRelease inserts a release and sets its surrogate id
func (q *Queries) InsertRelease(ctx context.Context, r *models.Release) error {
	id, err := q.insertID(ctx, `
	INSERT INTO releases (internal_id, repository_id, tag_name, name, html_url, draft, prerelease,
		time_created, time_published, time_last_observed)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.InternalID, r.RepositoryID, r.TagName, r.Name, r.HTMLURL, r.Draft, r.Prerelease,
		toMillis(r.TimeCreated), toMillis(r.TimePublished), toMillis(r.TimeLastObserved))
	if err != nil {
		return fmt.Errorf("failed to insert release %s: %w", r.TagName, err)
	}
	r.ID = id
	return nil
}

// UpdateRelease updates an existing release row
func (q *Queries) UpdateRelease(ctx context.Context, r *models.Release) error {
	_, err := q.exec(ctx, `
	UPDATE releases SET repository_id = ?, tag_name = ?, name = ?, html_url = ?, draft = ?, prerelease = ?,
		time_created = ?, time_published = ?, time_last_observed = ?
	WHERE id = ?`,
		r.RepositoryID, r.TagName, r.Name, r.HTMLURL, r.Draft, r.Prerelease,
		toMillis(r.TimeCreated), toMillis(r.TimePublished), toMillis(r.TimeLastObserved), r.ID)
	if err != nil {
		return fmt.Errorf("failed to update release %s: %w", r.TagName, err)
	}
	return nil
}

// DeleteReleasesNotObservedSince removes releases of a repository that were
// last seen before cutoff
func (q *Queries) DeleteReleasesNotObservedSince(ctx context.Context, repositoryID int64, cutoff time.Time) (int64, error) {
	return q.deleteWhere(ctx, `DELETE FROM releases WHERE repository_id = ? AND time_last_observed < ?`,
		repositoryID, toMillis(cutoff))
}
