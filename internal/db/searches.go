package db

import (
	"context"
	"fmt"
	"time"

	"github.com/wesm/pr-watch/internal/models"
)

const searchColumns = `id, query, repository_id, time_updated`

func scanSearch(s scanner) (*models.Search, error) {
	var se models.Search
	var updated int64
	if err := s.Scan(&se.ID, &se.Query, &se.RepositoryID, &updated); err != nil {
		return nil, err
	}
	se.TimeUpdated = fromMillis(updated)
	return &se, nil
}

// GetSearch gets a cached search by query and repository
func (q *Queries) GetSearch(ctx context.Context, query string, repositoryID int64) (*models.Search, error) {
	return getOne(ctx, q, scanSearch,
		`SELECT `+searchColumns+` FROM searches WHERE query = ? AND repository_id = ?`, query, repositoryID)
}

// InsertSearch inserts a search and sets its surrogate id
func (q *Queries) InsertSearch(ctx context.Context, se *models.Search) error {
	id, err := q.insertID(ctx, `INSERT INTO searches (query, repository_id, time_updated) VALUES (?, ?, ?)`,
		se.Query, se.RepositoryID, toMillis(se.TimeUpdated))
	if err != nil {
		return fmt.Errorf("failed to insert search %q: %w", se.Query, err)
	}
	se.ID = id
	return nil
}

// UpdateSearch updates an existing search row
func (q *Queries) UpdateSearch(ctx context.Context, se *models.Search) error {
	_, err := q.exec(ctx, `UPDATE searches SET time_updated = ? WHERE id = ?`, toMillis(se.TimeUpdated), se.ID)
	if err != nil {
		return fmt.Errorf("failed to update search %q: %w", se.Query, err)
	}
	return nil
}

// UpsertSearchIssue links an issue to a search, refreshing the link time
func (q *Queries) UpsertSearchIssue(ctx context.Context, si *models.SearchIssue) error {
	_, err := q.exec(ctx, `
	INSERT INTO search_issues (search_id, issue_id, time_updated) VALUES (?, ?, ?)
	ON CONFLICT(search_id, issue_id) DO UPDATE SET time_updated = excluded.time_updated`,
		si.SearchID, si.IssueID, toMillis(si.TimeUpdated))
	if err != nil {
		return fmt.Errorf("failed to link issue %d to search %d: %w", si.IssueID, si.SearchID, err)
	}
	return nil
}

// ListSearchIssues lists the issues linked to a search, newest update first
func (q *Queries) ListSearchIssues(ctx context.Context, searchID int64) ([]*models.Issue, error) {
	return getAll(ctx, q, scanIssue, `
	SELECT i.id, i.internal_id, i.number, i.repository_id, i.author_id, i.title, i.body, i.state, i.html_url,
		i.locked, i.label_ids, i.assignee_ids, i.time_created, i.time_updated, i.time_closed, i.time_last_observed
	FROM issues i JOIN search_issues si ON si.issue_id = i.id
	WHERE si.search_id = ? ORDER BY i.time_updated DESC`, searchID)
}

// DeleteSearchIssuesNotUpdatedSince drops links of a search that were not
// refreshed since cutoff
func (q *Queries) DeleteSearchIssuesNotUpdatedSince(ctx context.Context, searchID int64, cutoff time.Time) (int64, error) {
	return q.deleteWhere(ctx, `DELETE FROM search_issues WHERE search_id = ? AND time_updated < ?`,
		searchID, toMillis(cutoff))
}
