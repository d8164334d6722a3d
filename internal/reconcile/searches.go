package reconcile

import (
	"context"
	"strings"

	"github.com/wesm/pr-watch/internal/log"
	"github.com/wesm/pr-watch/internal/models"
)

// Search upserts the cached search for query in repo. An existing search is
// rewritten at most once per SearchDebounce; refreshed reports whether this
// call rewrote it.
func (r *Reconciler) Search(ctx context.Context, query string, repo *models.Repository) (search *models.Search, refreshed bool, err error) {
	query = strings.TrimSpace(query)
	if query == "" {
		log.Warn(ctx, "Skipping empty search query")
		return nil, false, nil
	}

	search = &models.Search{
		Query:        query,
		RepositoryID: repo.ID,
		TimeUpdated:  r.observed(),
	}

	existing, err := r.q.GetSearch(ctx, query, repo.ID)
	if err != nil {
		return nil, false, err
	}
	if existing == nil {
		if err := r.q.InsertSearch(ctx, search); err != nil {
			return nil, false, err
		}
		return search, true, nil
	}

	if search.TimeUpdated.Sub(existing.TimeUpdated) < r.opts.SearchDebounce {
		return existing, false, nil
	}

	search.ID = existing.ID
	if err := r.q.UpdateSearch(ctx, search); err != nil {
		return nil, false, err
	}
	return search, true, nil
}

// SearchIssue links issue to search, refreshing the link's freshness time
func (r *Reconciler) SearchIssue(ctx context.Context, search *models.Search, issue *models.Issue) error {
	return r.q.UpsertSearchIssue(ctx, &models.SearchIssue{
		SearchID:    search.ID,
		IssueID:     issue.ID,
		TimeUpdated: r.observed(),
	})
}
