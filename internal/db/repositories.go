package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/wesm/pr-watch/internal/models"
)

const repositorySelect = `
SELECT r.id, r.internal_id, r.owner_id, COALESCE(u.login, ''), r.name, r.description, r.html_url,
	r.default_branch, r.private, r.fork, r.archived, r.time_updated, r.time_pushed, r.time_last_observed
FROM repositories r
LEFT JOIN users u ON u.id = r.owner_id`

func scanRepository(s scanner) (*models.Repository, error) {
	var r models.Repository
	var updated, pushed, observed int64
	err := s.Scan(&r.ID, &r.InternalID, &r.OwnerID, &r.Owner, &r.Name, &r.Description, &r.HTMLURL,
		&r.DefaultBranch, &r.Private, &r.Fork, &r.Archived, &updated, &pushed, &observed)
	if err != nil {
		return nil, err
	}
	r.TimeUpdated = fromMillis(updated)
	r.TimePushed = fromMillis(pushed)
	r.TimeLastObserved = fromMillis(observed)
	return &r, nil
}

// GetRepository gets a repository by surrogate id
func (q *Queries) GetRepository(ctx context.Context, id int64) (*models.Repository, error) {
	return getOne(ctx, q, scanRepository, repositorySelect+` WHERE r.id = ?`, id)
}

// GetRepositoryByInternalID gets a repository by remote id
func (q *Queries) GetRepositoryByInternalID(ctx context.Context, internalID int64) (*models.Repository, error) {
	return getOne(ctx, q, scanRepository, repositorySelect+` WHERE r.internal_id = ?`, internalID)
}

// GetRepositoryByFullName gets a repository by its "owner/name" full name
func (q *Queries) GetRepositoryByFullName(ctx context.Context, fullName string) (*models.Repository, error) {
	owner, name, ok := strings.Cut(fullName, "/")
	if !ok {
		return nil, fmt.Errorf("invalid repository full name %q", fullName)
	}
	return getOne(ctx, q, scanRepository,
		repositorySelect+` WHERE u.login = ? COLLATE NOCASE AND r.name = ? COLLATE NOCASE`, owner, name)
}

// ListRepositories lists all mirrored repositories
func (q *Queries) ListRepositories(ctx context.Context) ([]*models.Repository, error) {
	return getAll(ctx, q, scanRepository, repositorySelect+` ORDER BY r.id`)
}

// InsertRepository inserts a repository and sets its surrogate id
func (q *Queries) InsertRepository(ctx context.Context, r *models.Repository) error {
	id, err := q.insertID(ctx, `
	INSERT INTO repositories (internal_id, owner_id, name, description, html_url, default_branch,
		private, fork, archived, time_updated, time_pushed, time_last_observed)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.InternalID, r.OwnerID, r.Name, r.Description, r.HTMLURL, r.DefaultBranch,
		r.Private, r.Fork, r.Archived, toMillis(r.TimeUpdated), toMillis(r.TimePushed), toMillis(r.TimeLastObserved))
	if err != nil {
		return fmt.Errorf("failed to insert repository %s: %w", r.FullName(), err)
	}
	r.ID = id
	return nil
}

// UpdateRepository updates an existing repository row
func (q *Queries) UpdateRepository(ctx context.Context, r *models.Repository) error {
	_, err := q.exec(ctx, `
	UPDATE repositories SET owner_id = ?, name = ?, description = ?, html_url = ?, default_branch = ?,
		private = ?, fork = ?, archived = ?, time_updated = ?, time_pushed = ?, time_last_observed = ?
	WHERE id = ?`,
		r.OwnerID, r.Name, r.Description, r.HTMLURL, r.DefaultBranch,
		r.Private, r.Fork, r.Archived, toMillis(r.TimeUpdated), toMillis(r.TimePushed), toMillis(r.TimeLastObserved),
		r.ID)
	if err != nil {
		return fmt.Errorf("failed to update repository %s: %w", r.FullName(), err)
	}
	return nil
}

// TouchRepository records that the repository was seen at t
func (q *Queries) TouchRepository(ctx context.Context, id int64, t time.Time) error {
	if _, err := q.exec(ctx, `UPDATE repositories SET time_last_observed = ? WHERE id = ?`, toMillis(t), id); err != nil {
		return fmt.Errorf("failed to touch repository %d: %w", id, err)
	}
	return nil
}
