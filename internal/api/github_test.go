package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wesm/pr-watch/internal/models"
)

const apiBase = "https://api.github.com"

func newMockedClient(t *testing.T) (*GitHubClient, *httpmock.MockTransport) {
	t.Helper()
	mt := httpmock.NewMockTransport()
	return NewGitHubClientWithHTTP(&http.Client{Transport: mt}), mt
}

func TestGetRepository(t *testing.T) {
	client, mt := newMockedClient(t)
	mt.RegisterResponder("GET", apiBase+"/repos/octo/hello",
		httpmock.NewJsonResponderOrPanic(200, map[string]any{
			"id":             1296269,
			"name":           "hello",
			"default_branch": "main",
			"private":        true,
			"updated_at":     "2024-03-01T10:00:00Z",
			"owner":          map[string]any{"id": 1, "login": "octo"},
		}))

	repo, err := client.GetRepository(context.Background(), "octo", "hello")
	require.NoError(t, err)

	m := ConvertRepository(repo)
	assert.EqualValues(t, 1296269, m.InternalID)
	assert.Equal(t, "octo/hello", m.FullName())
	assert.Equal(t, "main", m.DefaultBranch)
	assert.True(t, m.Private)
	assert.Equal(t, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), m.TimeUpdated)
}

func TestErrorClassification(t *testing.T) {
	reset := time.Now().Add(time.Hour).Unix()

	tests := []struct {
		name      string
		responder httpmock.Responder
		want      error
		notWant   []error
	}{
		{
			name:      "not found",
			responder: httpmock.NewJsonResponderOrPanic(404, map[string]any{"message": "Not Found"}),
			want:      ErrNotFound,
			notWant:   []error{ErrForbidden, ErrRateLimited},
		},
		{
			name: "saml forbidden",
			responder: httpmock.NewJsonResponderOrPanic(403, map[string]any{
				"message": "Resource protected by organization SAML enforcement.",
			}),
			want:    ErrForbidden,
			notWant: []error{ErrNotFound, ErrRateLimited},
		},
		{
			name: "rate limited",
			responder: httpmock.NewJsonResponderOrPanic(403, map[string]any{
				"message": "API rate limit exceeded",
			}).HeaderSet(http.Header{
				"X-Ratelimit-Limit":     []string{"5000"},
				"X-Ratelimit-Remaining": []string{"0"},
				"X-Ratelimit-Reset":     []string{strconv.FormatInt(reset, 10)},
			}),
			want:    ErrRateLimited,
			notWant: []error{ErrForbidden, ErrTransport},
		},
		{
			name:      "server error",
			responder: httpmock.NewJsonResponderOrPanic(502, map[string]any{"message": "Bad Gateway"}),
			want:      ErrTransport,
			notWant:   []error{ErrNotFound, ErrForbidden, ErrRateLimited},
		},
		{
			name:      "connection failure",
			responder: httpmock.NewErrorResponder(errors.New("connection reset")),
			want:      ErrTransport,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, mt := newMockedClient(t)
			mt.RegisterResponder("GET", apiBase+"/repos/octo/hello", tt.responder)

			_, err := client.GetRepository(context.Background(), "octo", "hello")
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			for _, other := range tt.notWant {
				assert.NotErrorIs(t, err, other)
			}
		})
	}
}

func TestRateLimitErrorCarriesResetTime(t *testing.T) {
	reset := time.Now().Add(30 * time.Minute).Truncate(time.Second)
	client, mt := newMockedClient(t)
	mt.RegisterResponder("GET", apiBase+"/repos/octo/hello",
		httpmock.NewJsonResponderOrPanic(403, map[string]any{"message": "API rate limit exceeded"}).
			HeaderSet(http.Header{
				"X-Ratelimit-Remaining": []string{"0"},
				"X-Ratelimit-Reset":     []string{strconv.FormatInt(reset.Unix(), 10)},
			}))

	_, err := client.GetRepository(context.Background(), "octo", "hello")

	var rateErr *RateLimitError
	require.ErrorAs(t, err, &rateErr)
	assert.True(t, reset.Equal(rateErr.ResetTime))
	assert.False(t, IsSkippable(err))
}

func TestGetPullRequestsPaginatesAndFiltersAuthor(t *testing.T) {
	client, mt := newMockedClient(t)
	mt.RegisterResponder("GET", apiBase+"/repos/octo/hello/pulls",
		func(req *http.Request) (*http.Response, error) {
			assert.Equal(t, "all", req.URL.Query().Get("state"))
			if req.URL.Query().Get("page") == "2" {
				return httpmock.NewJsonResponse(200, []map[string]any{
					{"id": 3, "number": 3, "user": map[string]any{"login": "Alice"}},
				})
			}
			resp, err := httpmock.NewJsonResponse(200, []map[string]any{
				{"id": 1, "number": 1, "user": map[string]any{"login": "alice"}},
				{"id": 2, "number": 2, "user": map[string]any{"login": "bob"}},
			})
			if err == nil {
				resp.Header.Set("Link", fmt.Sprintf(`<%s/repos/octo/hello/pulls?page=2>; rel="next"`, apiBase))
			}
			return resp, err
		})

	prs, err := client.GetPullRequests(context.Background(), "octo", "hello",
		PullRequestFilter{State: "all", Author: "alice"})
	require.NoError(t, err)
	require.Len(t, prs, 2)
	assert.Equal(t, 1, prs[0].GetNumber())
	assert.Equal(t, 3, prs[1].GetNumber())
}

func TestGetCheckRunsConvertsOrdinals(t *testing.T) {
	client, mt := newMockedClient(t)
	mt.RegisterResponder("GET", apiBase+"/repos/octo/hello/commits/abc/check-runs",
		httpmock.NewJsonResponderOrPanic(200, map[string]any{
			"total_count": 2,
			"check_runs": []map[string]any{
				{"id": 10, "name": "build", "head_sha": "abc", "status": "completed", "conclusion": "timed_out"},
				{"id": 11, "name": "lint", "head_sha": "abc", "status": "in_progress"},
			},
		}))

	runs, err := client.GetCheckRuns(context.Background(), "octo", "hello", "abc")
	require.NoError(t, err)
	require.Len(t, runs, 2)

	first := ConvertCheckRun(runs[0])
	assert.Equal(t, models.CheckStatusCompleted, first.Status)
	assert.Equal(t, models.CheckConclusionTimedOut, first.Conclusion)
	assert.True(t, first.Conclusion.IsFailure())

	second := ConvertCheckRun(runs[1])
	assert.Equal(t, models.CheckStatusInProgress, second.Status)
	assert.Equal(t, models.CheckConclusionNone, second.Conclusion)
}

func TestGetCheckSuitesKeepsAppID(t *testing.T) {
	client, mt := newMockedClient(t)
	mt.RegisterResponder("GET", apiBase+"/repos/octo/hello/commits/abc/check-suites",
		httpmock.NewJsonResponderOrPanic(200, map[string]any{
			"total_count": 1,
			"check_suites": []map[string]any{
				{"id": 5, "head_sha": "abc", "status": "queued", "app": map[string]any{"id": 29110, "name": "Dependabot"}},
			},
		}))

	suites, err := client.GetCheckSuites(context.Background(), "octo", "hello", "abc")
	require.NoError(t, err)
	require.Len(t, suites, 1)

	suite := ConvertCheckSuite(suites[0])
	assert.EqualValues(t, 29110, suite.AppID)
	assert.Equal(t, "Dependabot", suite.Name)
	assert.Equal(t, models.CheckStatusQueued, suite.Status)
}

func TestGetCombinedStatus(t *testing.T) {
	client, mt := newMockedClient(t)
	mt.RegisterResponder("GET", apiBase+"/repos/octo/hello/commits/abc/status",
		httpmock.NewJsonResponderOrPanic(200, map[string]any{
			"state": "failure", "sha": "abc", "total_count": 3,
		}))

	status, err := client.GetCombinedStatus(context.Background(), "octo", "hello", "abc")
	require.NoError(t, err)

	m := ConvertCombinedStatus(status)
	assert.Equal(t, models.CommitStateFailure, m.State)
	assert.Equal(t, "abc", m.HeadSHA)
	assert.Equal(t, 3, m.TotalCount)
}

func TestSearchIssues(t *testing.T) {
	client, mt := newMockedClient(t)
	mt.RegisterResponder("GET", apiBase+"/search/issues",
		func(req *http.Request) (*http.Response, error) {
			assert.Equal(t, "repo:octo/hello is:issue is:open", req.URL.Query().Get("q"))
			return httpmock.NewJsonResponse(200, map[string]any{
				"total_count": 1,
				"items": []map[string]any{{
					"id": 77, "number": 12, "title": "crash",
					"labels":    []map[string]any{{"id": 9}, {"id": 4}},
					"assignees": []map[string]any{{"id": 2}},
				}},
			})
		})

	issues, err := client.SearchIssues(context.Background(), "repo:octo/hello is:issue is:open")
	require.NoError(t, err)
	require.Len(t, issues, 1)

	m := ConvertIssue(issues[0])
	assert.EqualValues(t, 77, m.InternalID)
	assert.Equal(t, "4,9", m.LabelIDs.String())
	assert.Equal(t, "2", m.AssigneeIDs.String())
}

func TestReviewsAndReleases(t *testing.T) {
	client, mt := newMockedClient(t)
	mt.RegisterResponder("GET", apiBase+"/repos/octo/hello/pulls/4/reviews",
		httpmock.NewJsonResponderOrPanic(200, []map[string]any{
			{"id": 1, "state": "APPROVED", "submitted_at": "2024-03-01T10:00:00.123456Z", "user": map[string]any{"id": 8}},
		}))
	mt.RegisterResponder("GET", apiBase+"/repos/octo/hello/releases",
		httpmock.NewJsonResponderOrPanic(200, []map[string]any{
			{"id": 3, "tag_name": "v1.0.0", "prerelease": true},
		}))

	reviews, err := client.GetReviews(context.Background(), "octo", "hello", 4)
	require.NoError(t, err)
	require.Len(t, reviews, 1)
	review := ConvertReview(reviews[0])
	assert.Equal(t, "APPROVED", review.State)
	assert.Equal(t, 123*time.Millisecond, time.Duration(review.TimeSubmitted.Nanosecond()),
		"times are truncated to milliseconds")

	releases, err := client.GetReleases(context.Background(), "octo", "hello")
	require.NoError(t, err)
	require.Len(t, releases, 1)
	release := ConvertRelease(releases[0])
	assert.Equal(t, "v1.0.0", release.TagName)
	assert.True(t, release.Prerelease)
}

func TestCandidates(t *testing.T) {
	a := Identity{Name: "a"}
	b := Identity{Name: "b"}

	p := NewStaticProvider([]Identity{a, b}, nil)
	assert.Equal(t, []string{"a", "b"}, names(Candidates(p)))

	p = NewStaticProvider([]Identity{a}, &Identity{Name: "anon", Anonymous: true})
	got := Candidates(p)
	assert.Equal(t, []string{"a", "anon"}, names(got))
	assert.True(t, got[1].Anonymous)

	tp := NewTokenProvider([]string{"t1", "t2"}, false)
	assert.Equal(t, []string{"token-1", "token-2"}, names(Candidates(tp)))
	tp.Rename(1, "octocat")
	assert.Equal(t, []string{"token-1", "octocat"}, names(Candidates(tp)))
}

func names(ids []Identity) []string {
	var out []string
	for _, id := range ids {
		out = append(out, id.Name)
	}
	return out
}

func TestViewer(t *testing.T) {
	mt := httpmock.NewMockTransport()
	mt.RegisterResponder("POST", apiBase+"/graphql",
		httpmock.NewJsonResponderOrPanic(200, map[string]any{
			"data": map[string]any{
				"viewer":    map[string]any{"login": "octocat"},
				"rateLimit": map[string]any{"limit": 5000, "remaining": 4321, "resetAt": "2024-03-01T11:00:00Z"},
			},
		}))

	client := NewGraphQLClientWithHTTP(&http.Client{Transport: mt})
	v, err := client.Viewer(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "octocat", v.Login)
	assert.Equal(t, 4321, v.RateLimit.Remaining)
	assert.Equal(t, time.Date(2024, 3, 1, 11, 0, 0, 0, time.UTC), v.RateLimit.ResetAt)
}
