// Package retention prunes local rows that are no longer observed remotely
// or whose parent row is gone. The store does not cascade deletes, so the
// sweep keeps references consistent itself.
package retention

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/wesm/pr-watch/internal/db"
	"github.com/wesm/pr-watch/internal/log"
)

// Options holds the retention windows
type Options struct {
	// GraceWindow is how long a pull request, issue or release may go
	// unobserved before it is deleted. Independent sync jobs touch
	// overlapping rows at slightly different times.
	GraceWindow time.Duration
	// RetentionWindow bounds the age of notifications and cached searches.
	RetentionWindow time.Duration
}

// DefaultOptions returns the standard windows
func DefaultOptions() Options {
	return Options{
		GraceWindow:     6 * time.Minute,
		RetentionWindow: 7 * 24 * time.Hour,
	}
}

// Scope says which repository rows the finished batch refreshed. Only those
// kinds are checked against the grace window.
type Scope struct {
	RepositoryID int64
	PullRequests bool
	Issues       bool
	Releases     bool
}

// Report counts deleted rows per table
type Report map[string]int64

// Total returns the number of deleted rows
func (r Report) Total() int64 {
	var total int64
	for _, n := range r {
		total += n
	}
	return total
}

func (r Report) String() string {
	tables := make([]string, 0, len(r))
	for table, n := range r {
		if n > 0 {
			tables = append(tables, table)
		}
	}
	sort.Strings(tables)
	parts := make([]string, len(tables))
	for i, table := range tables {
		parts[i] = fmt.Sprintf("%s=%d", table, r[table])
	}
	return strings.Join(parts, " ")
}

// Sweeper runs the retention sweep
type Sweeper struct {
	opts Options
}

// New creates a sweeper
func New(opts Options) *Sweeper {
	return &Sweeper{opts: opts}
}

type step struct {
	table string
	run   func(ctx context.Context) (int64, error)
}

// Sweep deletes stale and orphaned rows through q, normally inside the batch
// transaction. Orphaned children are removed first, then stale parents, then
// the children those parents left behind.
func (s *Sweeper) Sweep(ctx context.Context, q *db.Queries, scope Scope, now time.Time) (Report, error) {
	grace := now.Add(-s.opts.GraceWindow)
	retained := now.Add(-s.opts.RetentionWindow)

	var steps []step
	steps = append(steps, orphanSteps(q)...)

	if scope.RepositoryID != 0 && scope.PullRequests {
		steps = append(steps, step{"pull_requests", func(ctx context.Context) (int64, error) {
			return q.DeletePullRequestsNotObservedSince(ctx, scope.RepositoryID, grace)
		}})
	}
	if scope.RepositoryID != 0 && scope.Issues {
		steps = append(steps, step{"issues", func(ctx context.Context) (int64, error) {
			return q.DeleteIssuesNotObservedSince(ctx, scope.RepositoryID, grace)
		}})
	}
	if scope.RepositoryID != 0 && scope.Releases {
		steps = append(steps, step{"releases", func(ctx context.Context) (int64, error) {
			return q.DeleteReleasesNotObservedSince(ctx, scope.RepositoryID, grace)
		}})
	}

	steps = append(steps,
		step{"notifications", func(ctx context.Context) (int64, error) {
			return q.DeleteNotificationsCreatedBefore(ctx, retained)
		}},
		step{"searches", func(ctx context.Context) (int64, error) {
			return q.DeleteSearchesUpdatedBefore(ctx, retained)
		}},
	)
	steps = append(steps, orphanSteps(q)...)

	report := Report{}
	for _, st := range steps {
		n, err := st.run(ctx)
		if err != nil {
			return report, fmt.Errorf("failed to prune %s: %w", st.table, err)
		}
		report[st.table] += n
	}

	if report.Total() > 0 {
		log.Info(ctx, "Retention sweep removed rows", "deleted", report.Total(), "tables", report.String())
	}
	return report, nil
}

func orphanSteps(q *db.Queries) []step {
	return []step{
		{"check_runs", q.DeleteOrphanCheckRuns},
		{"check_suites", q.DeleteOrphanCheckSuites},
		{"commit_combined_statuses", q.DeleteOrphanCommitCombinedStatuses},
		{"pull_request_statuses", q.DeleteOrphanPullRequestStatuses},
		{"pull_request_children", q.DeleteOrphanPullRequestChildren},
		{"issue_children", q.DeleteOrphanIssueChildren},
		{"search_issues", q.DeleteOrphanSearchIssues},
	}
}
