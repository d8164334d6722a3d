package sync

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/go-github/v57/github"

	"github.com/wesm/pr-watch/internal/api"
	"github.com/wesm/pr-watch/internal/events"
	"github.com/wesm/pr-watch/internal/log"
	"github.com/wesm/pr-watch/internal/models"
	"github.com/wesm/pr-watch/internal/retention"
)

// UpdateRepository refreshes the repository row and its owner
func (s *Syncer) UpdateRepository(ctx context.Context, owner, name string) error {
	return s.runBatch(ctx, events.KindRepository, owner+"/"+name, func(ctx context.Context, b *batch) (retention.Scope, error) {
		repo, err := b.repository(ctx, owner, name)
		if err != nil {
			return retention.Scope{}, err
		}
		return retention.Scope{RepositoryID: repo.ID}, nil
	})
}

// UpdatePullRequests refreshes the pull requests of a repository matching
// filter, together with their check runs, check suites, combined status and
// reviews, and derives notifications from the result. Pull requests no longer
// listed are removed once they fall out of the grace window.
func (s *Syncer) UpdatePullRequests(ctx context.Context, owner, name string, filter api.PullRequestFilter) error {
	return s.runBatch(ctx, events.KindPullRequests, owner+"/"+name, func(ctx context.Context, b *batch) (retention.Scope, error) {
		repo, err := b.repository(ctx, owner, name)
		if err != nil {
			return retention.Scope{}, err
		}

		remotes, err := b.client.GetPullRequests(ctx, owner, name, filter)
		if err != nil {
			return retention.Scope{}, err
		}
		log.Debug(ctx, "Fetched pull requests", "count", len(remotes))

		for _, remote := range remotes {
			pr, err := b.rec.PullRequest(ctx, remote, repo)
			if err != nil {
				return retention.Scope{}, err
			}
			if pr == nil {
				continue
			}
			if err := b.pullRequestDetails(ctx, repo, pr); err != nil {
				return retention.Scope{}, err
			}
		}
		return retention.Scope{RepositoryID: repo.ID, PullRequests: true}, nil
	})
}

// IssuesQuery is the search used to list the open issues of a repository
func IssuesQuery(owner, name string) string {
	return fmt.Sprintf("repo:%s/%s is:issue is:open", owner, name)
}

// UpdateIssues refreshes the open issues of a repository
func (s *Syncer) UpdateIssues(ctx context.Context, owner, name string) error {
	return s.runBatch(ctx, events.KindIssues, owner+"/"+name, func(ctx context.Context, b *batch) (retention.Scope, error) {
		repo, err := b.repository(ctx, owner, name)
		if err != nil {
			return retention.Scope{}, err
		}

		remotes, err := b.client.SearchIssues(ctx, IssuesQuery(owner, name))
		if err != nil {
			return retention.Scope{}, err
		}
		for _, remote := range remotes {
			if _, err := b.rec.Issue(ctx, remote, repo); err != nil {
				return retention.Scope{}, err
			}
		}
		return retention.Scope{RepositoryID: repo.ID, Issues: true}, nil
	})
}

// UpdateSearch runs query against a repository and caches the matching
// issues. The query is limited to the repository unless it names one itself.
func (s *Syncer) UpdateSearch(ctx context.Context, owner, name, query string) error {
	query = strings.TrimSpace(query)
	scope := fmt.Sprintf("%s/%s?%s", owner, name, query)
	return s.runBatch(ctx, events.KindSearch, scope, func(ctx context.Context, b *batch) (retention.Scope, error) {
		repo, err := b.repository(ctx, owner, name)
		if err != nil {
			return retention.Scope{}, err
		}

		search, refreshed, err := b.rec.Search(ctx, query, repo)
		if err != nil {
			return retention.Scope{}, err
		}
		if search == nil {
			return retention.Scope{RepositoryID: repo.ID}, nil
		}

		full := query
		if !strings.Contains(query, "repo:") {
			full = fmt.Sprintf("repo:%s %s", repo.FullName(), query)
		}
		remotes, err := b.client.SearchIssues(ctx, full)
		if err != nil {
			return retention.Scope{}, err
		}

		start := b.rec.Now()
		for _, remote := range remotes {
			issue, err := b.rec.Issue(ctx, remote, repo)
			if err != nil {
				return retention.Scope{}, err
			}
			if issue == nil {
				continue
			}
			if err := b.rec.SearchIssue(ctx, search, issue); err != nil {
				return retention.Scope{}, err
			}
		}

		// Links not refreshed by this run are no longer search results.
		dropped, err := b.tx.DeleteSearchIssuesNotUpdatedSince(ctx, search.ID, start)
		if err != nil {
			return retention.Scope{}, err
		}
		log.Debug(ctx, "Search refreshed",
			"results", len(remotes), "dropped", dropped, "rewritten", refreshed)
		return retention.Scope{RepositoryID: repo.ID}, nil
	})
}

// UpdateReleases refreshes the releases of a repository
func (s *Syncer) UpdateReleases(ctx context.Context, owner, name string) error {
	return s.runBatch(ctx, events.KindReleases, owner+"/"+name, func(ctx context.Context, b *batch) (retention.Scope, error) {
		repo, err := b.repository(ctx, owner, name)
		if err != nil {
			return retention.Scope{}, err
		}

		remotes, err := b.client.GetReleases(ctx, owner, name)
		if err != nil {
			return retention.Scope{}, err
		}
		for _, remote := range remotes {
			if _, err := b.rec.Release(ctx, remote, repo); err != nil {
				return retention.Scope{}, err
			}
		}
		return retention.Scope{RepositoryID: repo.ID, Releases: true}, nil
	})
}

// repository fetches and reconciles the batch repository. A repository the
// remote reports without an id is treated as not found.
func (b *batch) repository(ctx context.Context, owner, name string) (*models.Repository, error) {
	remote, err := b.client.GetRepository(ctx, owner, name)
	if err != nil {
		return nil, err
	}
	repo, err := b.rec.Repository(ctx, remote)
	if err != nil {
		return nil, err
	}
	if repo == nil {
		return nil, fmt.Errorf("%w: repository %s/%s has no id", api.ErrNotFound, owner, name)
	}
	return repo, nil
}

// pullRequestDetails fetches the children of one pull request, computes its
// status summary and derives notifications. A failed sub-fetch is logged and
// skipped so one broken pull request does not fail the batch; rate limiting
// and cancellation still abort it.
func (b *batch) pullRequestDetails(ctx context.Context, repo *models.Repository, pr *models.PullRequest) error {
	ctx = log.WithFields(ctx, log.Fields{"pull_request": pr.Number})

	if pr.HeadSHA != "" {
		suites, fetchErr := b.client.GetCheckSuites(ctx, repo.Owner, repo.Name, pr.HeadSHA)
		if err := skipOrAbort(ctx, "check suites", fetchErr); err != nil {
			return err
		}
		if fetchErr == nil {
			var listed []int64
			for _, remote := range suites {
				suite, err := b.rec.CheckSuite(ctx, remote)
				if err != nil {
					return err
				}
				if suite != nil {
					listed = append(listed, suite.InternalID)
				}
			}
			if _, err := b.tx.DeleteCheckSuitesForHeadSHANotIn(ctx, pr.HeadSHA, listed); err != nil {
				return err
			}
		}

		runs, fetchErr := b.client.GetCheckRuns(ctx, repo.Owner, repo.Name, pr.HeadSHA)
		if err := skipOrAbort(ctx, "check runs", fetchErr); err != nil {
			return err
		}
		if fetchErr == nil {
			// Superseded attempts of re-run jobs are no longer listed.
			var listed []int64
			for _, remote := range runs {
				run, err := b.rec.CheckRun(ctx, remote)
				if err != nil {
					return err
				}
				if run != nil {
					listed = append(listed, run.InternalID)
				}
			}
			if _, err := b.tx.DeleteCheckRunsForHeadSHANotIn(ctx, pr.HeadSHA, listed); err != nil {
				return err
			}
		}

		combined, err := b.client.GetCombinedStatus(ctx, repo.Owner, repo.Name, pr.HeadSHA)
		if err := skipOrAbort(ctx, "combined status", err); err != nil {
			return err
		}
		if combined != nil {
			if _, err := b.rec.CombinedStatus(ctx, combined, pr.HeadSHA); err != nil {
				return err
			}
		}
	}

	reviews, err := b.client.GetReviews(ctx, repo.Owner, repo.Name, pr.Number)
	if err := skipOrAbort(ctx, "reviews", err); err != nil {
		return err
	}
	if err := b.reviews(ctx, repo, pr, reviews); err != nil {
		return err
	}

	summary, err := b.agg.Compute(ctx, pr)
	if err != nil {
		return err
	}
	result, err := b.deriver.Derive(ctx, repo, pr, summary)
	if err != nil {
		return err
	}
	b.result.Created = append(b.result.Created, result.Created...)
	b.result.Superseded += result.Superseded
	return nil
}

func (b *batch) reviews(ctx context.Context, repo *models.Repository, pr *models.PullRequest, remotes []*github.PullRequestReview) error {
	for _, remote := range remotes {
		review, isNew, err := b.rec.Review(ctx, remote, pr)
		if err != nil {
			return err
		}
		if review == nil || !isNew {
			continue
		}
		result, err := b.deriver.Review(ctx, repo, pr, review)
		if err != nil {
			return err
		}
		b.result.Created = append(b.result.Created, result.Created...)
		b.result.Superseded += result.Superseded
	}
	return nil
}

// skipOrAbort returns err when it must fail the batch and logs it otherwise
func skipOrAbort(ctx context.Context, what string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, api.ErrRateLimited) || ctx.Err() != nil {
		return err
	}
	log.Warn(ctx, "Failed to fetch "+what+", skipping", "error", err)
	return nil
}
