package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/go-github/v57/github"
	"golang.org/x/oauth2"
)

// Client is the remote fetch capability used by the sync engine. Every
// method fails with an error matching one of ErrNotFound, ErrForbidden,
// ErrRateLimited or ErrTransport.
type Client interface {
	GetRepository(ctx context.Context, owner, name string) (*github.Repository, error)
	SearchIssues(ctx context.Context, query string) ([]*github.Issue, error)
	GetPullRequests(ctx context.Context, owner, name string, filter PullRequestFilter) ([]*github.PullRequest, error)
	GetCheckRuns(ctx context.Context, owner, name, sha string) ([]*github.CheckRun, error)
	GetCheckSuites(ctx context.Context, owner, name, sha string) ([]*github.CheckSuite, error)
	GetCombinedStatus(ctx context.Context, owner, name, sha string) (*github.CombinedStatus, error)
	GetReviews(ctx context.Context, owner, name string, number int) ([]*github.PullRequestReview, error)
	GetReleases(ctx context.Context, owner, name string) ([]*github.RepositoryRelease, error)
}

// PullRequestFilter narrows a pull request listing
type PullRequestFilter struct {
	// State is open, closed or all. Empty means open.
	State string
	// Author keeps only pull requests opened by this login when set.
	Author string
}

const perPage = 100

// GitHubClient represents a client for the GitHub REST API
type GitHubClient struct {
	client *github.Client
}

var _ Client = (*GitHubClient)(nil)

// NewGitHubClient creates a new GitHub API client. An empty token yields an
// unauthenticated client.
func NewGitHubClient(token string) *GitHubClient {
	var tc *http.Client

	if token != "" {
		ts := oauth2.StaticTokenSource(
			&oauth2.Token{AccessToken: token},
		)
		tc = oauth2.NewClient(context.Background(), ts)
	}

	return NewGitHubClientWithHTTP(tc)
}

// NewGitHubClientWithHTTP creates a GitHub API client on top of an existing
// HTTP client
func NewGitHubClientWithHTTP(httpClient *http.Client) *GitHubClient {
	return &GitHubClient{client: github.NewClient(httpClient)}
}

// GetRepository gets a repository by owner and name
func (c *GitHubClient) GetRepository(ctx context.Context, owner, name string) (*github.Repository, error) {
	repo, _, err := c.client.Repositories.Get(ctx, owner, name)
	if err != nil {
		return nil, classify(err, "get repository %s/%s", owner, name)
	}
	return repo, nil
}

// SearchIssues runs an issue search query and returns every page of results
func (c *GitHubClient) SearchIssues(ctx context.Context, query string) ([]*github.Issue, error) {
	var all []*github.Issue
	opts := &github.SearchOptions{
		Sort:        "updated",
		Order:       "desc",
		ListOptions: github.ListOptions{PerPage: perPage},
	}

	for {
		result, resp, err := c.client.Search.Issues(ctx, query, opts)
		if err != nil {
			return nil, classify(err, "search issues %q", query)
		}

		all = append(all, result.Issues...)

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return all, nil
}

// GetPullRequests lists the pull requests of a repository
func (c *GitHubClient) GetPullRequests(ctx context.Context, owner, name string, filter PullRequestFilter) ([]*github.PullRequest, error) {
	state := filter.State
	if state == "" {
		state = "open"
	}

	var all []*github.PullRequest
	opts := &github.PullRequestListOptions{
		State:       state,
		Sort:        "updated",
		Direction:   "desc",
		ListOptions: github.ListOptions{PerPage: perPage},
	}

	for {
		prs, resp, err := c.client.PullRequests.List(ctx, owner, name, opts)
		if err != nil {
			return nil, classify(err, "list pull requests for %s/%s", owner, name)
		}

		for _, pr := range prs {
			// The list endpoint has no author parameter.
			if filter.Author != "" && !strings.EqualFold(pr.GetUser().GetLogin(), filter.Author) {
				continue
			}
			all = append(all, pr)
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return all, nil
}

// GetCheckRuns lists the check runs reported for a commit
func (c *GitHubClient) GetCheckRuns(ctx context.Context, owner, name, sha string) ([]*github.CheckRun, error) {
	var all []*github.CheckRun
	opts := &github.ListCheckRunsOptions{
		ListOptions: github.ListOptions{PerPage: perPage},
	}

	for {
		result, resp, err := c.client.Checks.ListCheckRunsForRef(ctx, owner, name, sha, opts)
		if err != nil {
			return nil, classify(err, "list check runs for %s", sha)
		}

		all = append(all, result.CheckRuns...)

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return all, nil
}

// GetCheckSuites lists the check suites reported for a commit
func (c *GitHubClient) GetCheckSuites(ctx context.Context, owner, name, sha string) ([]*github.CheckSuite, error) {
	var all []*github.CheckSuite
	opts := &github.ListCheckSuiteOptions{
		ListOptions: github.ListOptions{PerPage: perPage},
	}

	for {
		result, resp, err := c.client.Checks.ListCheckSuitesForRef(ctx, owner, name, sha, opts)
		if err != nil {
			return nil, classify(err, "list check suites for %s", sha)
		}

		all = append(all, result.CheckSuites...)

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return all, nil
}

// GetCombinedStatus gets the legacy combined commit status for a commit
func (c *GitHubClient) GetCombinedStatus(ctx context.Context, owner, name, sha string) (*github.CombinedStatus, error) {
	status, _, err := c.client.Repositories.GetCombinedStatus(ctx, owner, name, sha, &github.ListOptions{PerPage: perPage})
	if err != nil {
		return nil, classify(err, "get combined status for %s", sha)
	}
	return status, nil
}

// GetReviews lists the reviews of a pull request
func (c *GitHubClient) GetReviews(ctx context.Context, owner, name string, number int) ([]*github.PullRequestReview, error) {
	var all []*github.PullRequestReview
	opts := &github.ListOptions{PerPage: perPage}

	for {
		reviews, resp, err := c.client.PullRequests.ListReviews(ctx, owner, name, number, opts)
		if err != nil {
			return nil, classify(err, "list reviews for %s/%s#%d", owner, name, number)
		}

		all = append(all, reviews...)

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return all, nil
}

// GetReleases lists the releases of a repository
func (c *GitHubClient) GetReleases(ctx context.Context, owner, name string) ([]*github.RepositoryRelease, error) {
	var all []*github.RepositoryRelease
	opts := &github.ListOptions{PerPage: perPage}

	for {
		releases, resp, err := c.client.Repositories.ListReleases(ctx, owner, name, opts)
		if err != nil {
			return nil, classify(err, "list releases for %s/%s", owner, name)
		}

		all = append(all, releases...)

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return all, nil
}
