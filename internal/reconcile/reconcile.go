// Package reconcile upserts remote GitHub records into the local store.
//
// Each entity type has its own update policy:
//
//   - always: Repository, PullRequest, Issue, Review, Release. Pull requests
//     and issues are only rewritten when the remote updated time moves
//     forward; unchanged rows just have their last-observed time refreshed.
//   - debounced: Label and Search rows are rewritten at most once per
//     configured interval.
//   - state change: CheckRun, CheckSuite and CommitCombinedStatus rows are
//     rewritten only when their status, conclusion or state differs.
//
// Parents are always reconciled before the child that references them.
// Records without a remote id are skipped with a warning and never abort
// the surrounding batch.
package reconcile

import (
	"context"
	"time"

	"github.com/google/go-github/v57/github"

	"github.com/wesm/pr-watch/internal/api"
	"github.com/wesm/pr-watch/internal/db"
	"github.com/wesm/pr-watch/internal/log"
	"github.com/wesm/pr-watch/internal/models"
)

// Options holds the debounce intervals
type Options struct {
	LabelDebounce  time.Duration
	SearchDebounce time.Duration
}

// DefaultOptions returns the standard debounce intervals
func DefaultOptions() Options {
	return Options{
		LabelDebounce:  4 * time.Hour,
		SearchDebounce: 2 * time.Minute,
	}
}

// Reconciler writes remote records through one set of store queries,
// normally those of the open batch transaction.
type Reconciler struct {
	q    *db.Queries
	opts Options
	now  func() time.Time
}

// New creates a reconciler writing through q
func New(q *db.Queries, opts Options) *Reconciler {
	return &Reconciler{q: q, opts: opts, now: time.Now}
}

// WithClock replaces the time source used for observation and debounce times
func (r *Reconciler) WithClock(now func() time.Time) *Reconciler {
	r.now = now
	return r
}

func (r *Reconciler) observed() time.Time {
	return r.now().UTC().Truncate(time.Millisecond)
}

// Now returns the observation time the next write would be stamped with
func (r *Reconciler) Now() time.Time {
	return r.observed()
}

// User upserts a user. A nil user or one without a remote id yields nil;
// callers store models.NoKey for the reference.
func (r *Reconciler) User(ctx context.Context, remote *github.User) (*models.User, error) {
	if remote == nil {
		return nil, nil
	}
	if remote.GetID() == 0 {
		log.Warn(ctx, "Skipping user without remote id", "login", remote.GetLogin())
		return nil, nil
	}

	u := api.ConvertUser(remote)
	u.TimeUpdated = r.observed()

	existing, err := r.q.GetUserByInternalID(ctx, u.InternalID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		if err := r.q.InsertUser(ctx, u); err != nil {
			return nil, err
		}
		return u, nil
	}

	if existing.Login == u.Login && existing.AvatarURL == u.AvatarURL &&
		existing.HTMLURL == u.HTMLURL && existing.Type == u.Type {
		return existing, nil
	}

	u.ID = existing.ID
	if err := r.q.UpdateUser(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// userKey reconciles remote and returns its surrogate id or NoKey
func (r *Reconciler) userKey(ctx context.Context, remote *github.User) (int64, error) {
	u, err := r.User(ctx, remote)
	if err != nil || u == nil {
		return models.NoKey, err
	}
	return u.ID, nil
}

// Repository upserts a repository and its owner. A record without a remote
// id yields nil.
func (r *Reconciler) Repository(ctx context.Context, remote *github.Repository) (*models.Repository, error) {
	if remote.GetID() == 0 {
		log.Warn(ctx, "Skipping repository without remote id", "full_name", remote.GetFullName())
		return nil, nil
	}

	ownerID, err := r.userKey(ctx, remote.GetOwner())
	if err != nil {
		return nil, err
	}

	repo := api.ConvertRepository(remote)
	repo.OwnerID = ownerID
	repo.TimeLastObserved = r.observed()

	existing, err := r.q.GetRepositoryByInternalID(ctx, repo.InternalID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		if err := r.q.InsertRepository(ctx, repo); err != nil {
			return nil, err
		}
		return repo, nil
	}

	if !repo.TimeUpdated.After(existing.TimeUpdated) && !repo.TimePushed.After(existing.TimePushed) &&
		repo.OwnerID == existing.OwnerID && repo.Name == existing.Name {
		if err := r.q.TouchRepository(ctx, existing.ID, repo.TimeLastObserved); err != nil {
			return nil, err
		}
		existing.TimeLastObserved = repo.TimeLastObserved
		return existing, nil
	}

	repo.ID = existing.ID
	if err := r.q.UpdateRepository(ctx, repo); err != nil {
		return nil, err
	}
	return repo, nil
}
