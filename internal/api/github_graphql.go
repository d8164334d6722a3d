package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/shurcooL/githubv4"
	"golang.org/x/oauth2"
)

// GraphQLClient represents a client for the GitHub GraphQL API
type GraphQLClient struct {
	client *githubv4.Client
}

// NewGraphQLClient creates a new GraphQL client
func NewGraphQLClient(token string) *GraphQLClient {
	src := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: token},
	)
	httpClient := oauth2.NewClient(context.Background(), src)
	return NewGraphQLClientWithHTTP(httpClient)
}

// NewGraphQLClientWithHTTP creates a GraphQL client on top of an existing
// HTTP client
func NewGraphQLClientWithHTTP(httpClient *http.Client) *GraphQLClient {
	return &GraphQLClient{client: githubv4.NewClient(httpClient)}
}

// RateLimit is the GraphQL request budget of one identity
type RateLimit struct {
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// Viewer describes the account behind a token
type Viewer struct {
	Login     string
	RateLimit RateLimit
}

// Viewer resolves the login and remaining budget of the authenticated token
func (c *GraphQLClient) Viewer(ctx context.Context) (*Viewer, error) {
	var query struct {
		Viewer struct {
			Login githubv4.String
		}
		RateLimit struct {
			Limit     githubv4.Int
			Remaining githubv4.Int
			ResetAt   githubv4.DateTime
		}
	}

	if err := c.client.Query(ctx, &query, nil); err != nil {
		return nil, fmt.Errorf("failed to query viewer: %w: %w", ErrTransport, err)
	}

	return &Viewer{
		Login: string(query.Viewer.Login),
		RateLimit: RateLimit{
			Limit:     int(query.RateLimit.Limit),
			Remaining: int(query.RateLimit.Remaining),
			ResetAt:   query.RateLimit.ResetAt.Time.UTC(),
		},
	}, nil
}
