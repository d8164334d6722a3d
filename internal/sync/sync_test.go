package sync

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-github/v57/github"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wesm/pr-watch/internal/api"
	"github.com/wesm/pr-watch/internal/db"
	"github.com/wesm/pr-watch/internal/events"
	"github.com/wesm/pr-watch/internal/metrics"
	"github.com/wesm/pr-watch/internal/models"
)

type fakeClient struct {
	repo      *github.Repository
	repoErr   error
	prs       []*github.PullRequest
	prsErr    error
	runs      map[string][]*github.CheckRun
	runsErr   map[string]error
	suitesErr map[string]error
	reviews   map[int][]*github.PullRequestReview
	issues    []*github.Issue
	releases  []*github.RepositoryRelease
	queries   []string
	calls     int
}

var _ api.Client = (*fakeClient)(nil)

func (c *fakeClient) GetRepository(ctx context.Context, owner, name string) (*github.Repository, error) {
	c.calls++
	if c.repoErr != nil {
		return nil, c.repoErr
	}
	if c.repo != nil {
		return c.repo, nil
	}
	return remoteRepo(100), nil
}

func (c *fakeClient) SearchIssues(ctx context.Context, query string) ([]*github.Issue, error) {
	c.calls++
	c.queries = append(c.queries, query)
	return c.issues, nil
}

func (c *fakeClient) GetPullRequests(ctx context.Context, owner, name string, filter api.PullRequestFilter) ([]*github.PullRequest, error) {
	c.calls++
	return c.prs, c.prsErr
}

func (c *fakeClient) GetCheckRuns(ctx context.Context, owner, name, sha string) ([]*github.CheckRun, error) {
	c.calls++
	if err := c.runsErr[sha]; err != nil {
		return nil, err
	}
	return c.runs[sha], nil
}

func (c *fakeClient) GetCheckSuites(ctx context.Context, owner, name, sha string) ([]*github.CheckSuite, error) {
	c.calls++
	if err := c.suitesErr[sha]; err != nil {
		return nil, err
	}
	return nil, nil
}

func (c *fakeClient) GetCombinedStatus(ctx context.Context, owner, name, sha string) (*github.CombinedStatus, error) {
	c.calls++
	return nil, nil
}

func (c *fakeClient) GetReviews(ctx context.Context, owner, name string, number int) ([]*github.PullRequestReview, error) {
	c.calls++
	return c.reviews[number], nil
}

func (c *fakeClient) GetReleases(ctx context.Context, owner, name string) ([]*github.RepositoryRelease, error) {
	c.calls++
	return c.releases, nil
}

func remoteRepo(id int64) *github.Repository {
	return &github.Repository{
		ID:    github.Int64(id),
		Name:  github.String("hello"),
		Owner: &github.User{ID: github.Int64(1), Login: github.String("octo")},
	}
}

func remotePR(id int64, sha string, updated time.Time) *github.PullRequest {
	return &github.PullRequest{
		ID:        github.Int64(id),
		Number:    github.Int(int(id)),
		Title:     github.String(fmt.Sprintf("Change %d", id)),
		UpdatedAt: &github.Timestamp{Time: updated},
		Head:      &github.PullRequestBranch{SHA: github.String(sha)},
		User:      &github.User{ID: github.Int64(2), Login: github.String("alice")},
	}
}

func remoteIssue(id int64) *github.Issue {
	return &github.Issue{
		ID:     github.Int64(id),
		Number: github.Int(int(id)),
		Title:  github.String(fmt.Sprintf("Issue %d", id)),
		User:   &github.User{ID: github.Int64(2), Login: github.String("alice")},
	}
}

type fixture struct {
	db     *db.DB
	syncer *Syncer
	bus    *events.Bus
	reg    *prometheus.Registry
	clock  time.Time
}

func newFixture(t *testing.T, clients ...*fakeClient) *fixture {
	t.Helper()
	store, err := db.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.Initialize())

	var identities []api.Identity
	for i, c := range clients {
		identities = append(identities, api.Identity{Name: fmt.Sprintf("id-%d", i), Client: c})
	}

	f := &fixture{
		db:    store,
		bus:   events.New(),
		reg:   prometheus.NewRegistry(),
		clock: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
	f.syncer = New(store, api.NewStaticProvider(identities, nil), DefaultOptions())
	f.syncer.SetClock(func() time.Time { return f.clock })
	f.syncer.SetEvents(f.bus)
	f.syncer.SetMetrics(metrics.New(f.reg))
	return f
}

func (f *fixture) repository(t *testing.T) *models.Repository {
	t.Helper()
	repo, err := f.db.GetRepositoryByFullName(context.Background(), "octo/hello")
	require.NoError(t, err)
	require.NotNil(t, repo)
	return repo
}

func TestFallsBackToNextIdentity(t *testing.T) {
	denied := &fakeClient{
		repo:   remoteRepo(999),
		prsErr: fmt.Errorf("failed to list pull requests: %w", api.ErrForbidden),
	}
	allowed := &fakeClient{prs: []*github.PullRequest{remotePR(1, "s1", time.Now())}}
	f := newFixture(t, denied, allowed)
	ctx := context.Background()

	require.NoError(t, f.syncer.UpdatePullRequests(ctx, "octo", "hello", api.PullRequestFilter{}))

	repos, err := f.db.ListRepositories(ctx)
	require.NoError(t, err)
	require.Len(t, repos, 1, "writes of the denied identity are rolled back")
	assert.EqualValues(t, 100, repos[0].InternalID)

	prs, err := f.db.ListPullRequests(ctx, repos[0].ID)
	require.NoError(t, err)
	assert.Len(t, prs, 1)

	series, err := testutil.GatherAndCount(f.reg, "prwatch_identity_attempts_total")
	require.NoError(t, err)
	assert.Equal(t, 2, series, "one skipped attempt and one successful attempt")
}

func TestRateLimitAbortsBatch(t *testing.T) {
	reset := time.Date(2024, 5, 1, 13, 0, 0, 0, time.UTC)
	limited := &fakeClient{repoErr: &api.RateLimitError{ResetTime: reset, Err: errors.New("quota exhausted")}}
	next := &fakeClient{}
	f := newFixture(t, limited, next)
	ctx := context.Background()

	err := f.syncer.UpdateRepository(ctx, "octo", "hello")
	require.Error(t, err)
	assert.ErrorIs(t, err, api.ErrRateLimited)
	var rateErr *api.RateLimitError
	require.ErrorAs(t, err, &rateErr)
	assert.Equal(t, reset, rateErr.ResetTime)

	assert.Zero(t, next.calls, "rate limiting does not try other identities")
	repos, err := f.db.ListRepositories(ctx)
	require.NoError(t, err)
	assert.Empty(t, repos)
}

func TestNotAccessible(t *testing.T) {
	f := newFixture(t,
		&fakeClient{repoErr: fmt.Errorf("get repository: %w", api.ErrNotFound)},
		&fakeClient{repoErr: fmt.Errorf("get repository: %w", api.ErrForbidden)},
	)
	ctx := context.Background()
	sub, unsubscribe := f.bus.Subscribe(events.Filter{Kind: events.KindRepository})
	defer unsubscribe()

	err := f.syncer.UpdateRepository(ctx, "octo", "hello")
	assert.ErrorIs(t, err, ErrRepositoryNotAccessible)

	select {
	case e := <-sub:
		assert.Equal(t, "octo/hello", e.Scope)
		assert.ErrorIs(t, e.Err, ErrRepositoryNotAccessible)
	case <-time.After(time.Second):
		t.Fatal("no event published")
	}

	last, err := f.syncer.LastBatchTime(ctx, "", "")
	require.NoError(t, err)
	assert.True(t, last.IsZero())
}

func TestBatchIsAtomic(t *testing.T) {
	client := &fakeClient{
		runsErr: map[string]error{"s4": &api.RateLimitError{Err: errors.New("secondary rate limit")}},
	}
	for i := int64(1); i <= 5; i++ {
		client.prs = append(client.prs, remotePR(i, fmt.Sprintf("s%d", i), time.Now()))
	}
	f := newFixture(t, client)
	ctx := context.Background()

	err := f.syncer.UpdatePullRequests(ctx, "octo", "hello", api.PullRequestFilter{})
	require.ErrorIs(t, err, api.ErrRateLimited)

	repos, err := f.db.ListRepositories(ctx)
	require.NoError(t, err)
	assert.Empty(t, repos)
	for i := int64(1); i <= 3; i++ {
		pr, err := f.db.GetPullRequestByInternalID(ctx, i)
		require.NoError(t, err)
		assert.Nil(t, pr, "pull request %d must not be visible", i)
	}
}

func TestSubFetchFailureIsSkipped(t *testing.T) {
	client := &fakeClient{
		prs:       []*github.PullRequest{remotePR(1, "s1", time.Now())},
		suitesErr: map[string]error{"s1": fmt.Errorf("list check suites: %w", api.ErrTransport)},
		runs: map[string][]*github.CheckRun{"s1": {{
			ID: github.Int64(11), Name: github.String("build"), HeadSHA: github.String("s1"),
			Status: github.String("in_progress"),
		}}},
	}
	f := newFixture(t, client)
	ctx := context.Background()

	require.NoError(t, f.syncer.UpdatePullRequests(ctx, "octo", "hello", api.PullRequestFilter{}))

	run, err := f.db.GetCheckRunByInternalID(ctx, 11)
	require.NoError(t, err)
	assert.NotNil(t, run)
}

func TestFailedChecksNotify(t *testing.T) {
	f := newFixture(t)
	client := &fakeClient{
		prs: []*github.PullRequest{remotePR(1, "s1", f.clock)},
		runs: map[string][]*github.CheckRun{"s1": {{
			ID: github.Int64(11), Name: github.String("build"), HeadSHA: github.String("s1"),
			Status: github.String("completed"), Conclusion: github.String("failure"),
			CompletedAt: &github.Timestamp{Time: f.clock},
		}}},
	}
	f.syncer.identities = api.NewStaticProvider([]api.Identity{{Name: "a", Client: client}}, nil)
	ctx := context.Background()
	sub, unsubscribe := f.bus.Subscribe(events.Filter{})
	defer unsubscribe()

	require.NoError(t, f.syncer.UpdatePullRequests(ctx, "octo", "hello", api.PullRequestFilter{}))

	pending, err := f.db.ListUndisplayedNotifications(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, models.NotificationCheckRunFailed, pending[0].Type)
	assert.Equal(t, "1", pending[0].Identifier)

	select {
	case e := <-sub:
		assert.Equal(t, events.KindPullRequests, e.Kind)
		assert.NoError(t, e.Err)
		assert.NotEmpty(t, e.BatchID)
	case <-time.After(time.Second):
		t.Fatal("no event published")
	}

	last, err := f.syncer.LastBatchTime(ctx, events.KindPullRequests, "octo/hello")
	require.NoError(t, err)
	assert.True(t, last.Equal(f.clock))
	last, err = f.syncer.LastBatchTime(ctx, "", "")
	require.NoError(t, err)
	assert.True(t, last.Equal(f.clock))

	// A second sync of the same state does not notify again.
	f.clock = f.clock.Add(time.Minute)
	require.NoError(t, f.syncer.UpdatePullRequests(ctx, "octo", "hello", api.PullRequestFilter{}))
	pending, err = f.db.ListUndisplayedNotifications(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestRerunReplacesFailedAttempt(t *testing.T) {
	f := newFixture(t)
	attempt := func(id int64, conclusion string) []*github.CheckRun {
		return []*github.CheckRun{{
			ID: github.Int64(id), Name: github.String("build"), HeadSHA: github.String("s1"),
			Status: github.String("completed"), Conclusion: github.String(conclusion),
			CompletedAt: &github.Timestamp{Time: f.clock},
		}}
	}
	client := &fakeClient{
		prs:  []*github.PullRequest{remotePR(1, "s1", f.clock)},
		runs: map[string][]*github.CheckRun{"s1": attempt(10, "failure")},
	}
	f.syncer.identities = api.NewStaticProvider([]api.Identity{{Name: "a", Client: client}}, nil)
	ctx := context.Background()

	require.NoError(t, f.syncer.UpdatePullRequests(ctx, "octo", "hello", api.PullRequestFilter{}))

	f.clock = f.clock.Add(time.Minute)
	client.runs["s1"] = attempt(11, "success")
	require.NoError(t, f.syncer.UpdatePullRequests(ctx, "octo", "hello", api.PullRequestFilter{}))

	runs, err := f.db.ListCheckRunsForHeadSHA(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, runs, 1, "the replaced attempt is removed")
	assert.EqualValues(t, 11, runs[0].InternalID)

	pr, err := f.db.GetPullRequestByNumber(ctx, f.repository(t).ID, 1)
	require.NoError(t, err)
	require.NotNil(t, pr)
	latest, err := f.db.GetLatestPullRequestStatus(ctx, pr.ID)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.False(t, latest.Failed)
	assert.True(t, latest.Succeeded)

	pending, err := f.db.ListUndisplayedNotifications(ctx)
	require.NoError(t, err)
	var succeeded int
	for _, n := range pending {
		if n.Type == models.NotificationCheckRunSucceeded {
			succeeded++
		}
	}
	assert.Equal(t, 1, succeeded)
}

func TestFailedFetchKeepsCheckRuns(t *testing.T) {
	client := &fakeClient{
		prs: []*github.PullRequest{remotePR(1, "s1", time.Now())},
		runs: map[string][]*github.CheckRun{"s1": {{
			ID: github.Int64(10), Name: github.String("build"), HeadSHA: github.String("s1"),
			Status: github.String("in_progress"),
		}}},
	}
	f := newFixture(t, client)
	ctx := context.Background()

	require.NoError(t, f.syncer.UpdatePullRequests(ctx, "octo", "hello", api.PullRequestFilter{}))

	client.runsErr = map[string]error{"s1": fmt.Errorf("list check runs: %w", api.ErrTransport)}
	require.NoError(t, f.syncer.UpdatePullRequests(ctx, "octo", "hello", api.PullRequestFilter{}))

	run, err := f.db.GetCheckRunByInternalID(ctx, 10)
	require.NoError(t, err)
	assert.NotNil(t, run)
}

func TestRemovesPullRequestsNoLongerListed(t *testing.T) {
	f := newFixture(t)
	client := &fakeClient{prs: []*github.PullRequest{
		remotePR(1, "s1", f.clock.Add(-48*time.Hour)),
		remotePR(2, "s2", f.clock.Add(-48*time.Hour)),
	}}
	f.syncer.identities = api.NewStaticProvider([]api.Identity{{Name: "a", Client: client}}, nil)
	ctx := context.Background()

	require.NoError(t, f.syncer.UpdatePullRequests(ctx, "octo", "hello", api.PullRequestFilter{}))

	f.clock = f.clock.Add(10 * time.Minute)
	client.prs = client.prs[:1]
	require.NoError(t, f.syncer.UpdatePullRequests(ctx, "octo", "hello", api.PullRequestFilter{}))

	prs, err := f.db.ListPullRequests(ctx, f.repository(t).ID)
	require.NoError(t, err)
	require.Len(t, prs, 1)
	assert.EqualValues(t, 1, prs[0].InternalID)
}

func TestUpdateIssuesSkipsPullRequests(t *testing.T) {
	pr := remoteIssue(3)
	pr.PullRequestLinks = &github.PullRequestLinks{URL: github.String("https://api.github.com/repos/octo/hello/pulls/3")}
	client := &fakeClient{issues: []*github.Issue{remoteIssue(1), pr}}
	f := newFixture(t, client)
	ctx := context.Background()

	require.NoError(t, f.syncer.UpdateIssues(ctx, "octo", "hello"))

	assert.Equal(t, []string{"repo:octo/hello is:issue is:open"}, client.queries)
	issues, err := f.db.ListIssues(ctx, f.repository(t).ID)
	require.NoError(t, err)
	require.Len(t, issues, 1)
	assert.EqualValues(t, 1, issues[0].InternalID)
}

func TestUpdateSearchTracksResults(t *testing.T) {
	client := &fakeClient{issues: []*github.Issue{remoteIssue(1), remoteIssue(2)}}
	f := newFixture(t, client)
	ctx := context.Background()

	require.NoError(t, f.syncer.UpdateSearch(ctx, "octo", "hello", "label:bug"))
	assert.Equal(t, "repo:octo/hello label:bug", client.queries[0])

	repo := f.repository(t)
	search, err := f.db.GetSearch(ctx, "label:bug", repo.ID)
	require.NoError(t, err)
	require.NotNil(t, search)
	results, err := f.db.ListSearchIssues(ctx, search.ID)
	require.NoError(t, err)
	assert.Len(t, results, 2)

	f.clock = f.clock.Add(3 * time.Minute)
	client.issues = client.issues[1:]
	require.NoError(t, f.syncer.UpdateSearch(ctx, "octo", "hello", "label:bug"))

	results, err = f.db.ListSearchIssues(ctx, search.ID)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.EqualValues(t, 2, results[0].InternalID)
}

func TestUpdateReleases(t *testing.T) {
	client := &fakeClient{releases: []*github.RepositoryRelease{
		{ID: github.Int64(7), TagName: github.String("v1.0.0")},
	}}
	f := newFixture(t, client)
	ctx := context.Background()

	require.NoError(t, f.syncer.UpdateReleases(ctx, "octo", "hello"))

	releases, err := f.db.ListReleases(ctx, f.repository(t).ID)
	require.NoError(t, err)
	require.Len(t, releases, 1)
	assert.Equal(t, "v1.0.0", releases[0].TagName)
}

func TestParseRepositoryString(t *testing.T) {
	tests := []struct {
		input     string
		owner     string
		name      string
		expectErr bool
	}{
		{"octo/hello", "octo", "hello", false},
		{"octo", "", "", true},
		{"octo/hello/extra", "", "", true},
		{"/hello", "", "", true},
		{"octo/", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			owner, name, err := ParseRepositoryString(tt.input)
			if tt.expectErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.owner, owner)
			assert.Equal(t, tt.name, name)
		})
	}
}
