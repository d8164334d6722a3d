// Package notify decides when a pull request change is worth telling its
// author about, and delivers undisplayed notifications to a presenter.
package notify

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/wesm/pr-watch/internal/db"
	"github.com/wesm/pr-watch/internal/log"
	"github.com/wesm/pr-watch/internal/models"
	"github.com/wesm/pr-watch/internal/status"
)

// DefaultStaleness is how long after its last update a pull request stops
// producing notifications
const DefaultStaleness = 24 * time.Hour

// Result lists what one derivation wrote
type Result struct {
	Created    []*models.Notification
	Superseded int64
}

func (r *Result) add(other Result) {
	r.Created = append(r.Created, other.Created...)
	r.Superseded += other.Superseded
}

// Deriver writes status snapshots and the notifications they imply
type Deriver struct {
	q         *db.Queries
	staleness time.Duration
	now       func() time.Time
}

// NewDeriver creates a deriver writing through q
func NewDeriver(q *db.Queries, staleness time.Duration) *Deriver {
	return &Deriver{q: q, staleness: staleness, now: time.Now}
}

// WithClock replaces the time source
func (d *Deriver) WithClock(now func() time.Time) *Deriver {
	d.now = now
	return d
}

func (d *Deriver) stale(t time.Time) bool {
	return d.now().Sub(t) > d.staleness
}

// Derive stores the snapshot for summary and compares it with the previous
// snapshot of the same pull request. A failure is reported when the commit
// is new, the previous snapshot did not fail, or the failure reason changed.
// A success is reported when the commit is new or the previous snapshot did
// not succeed. Pull requests not updated within the staleness window only
// get the snapshot.
func (d *Deriver) Derive(ctx context.Context, repo *models.Repository, pr *models.PullRequest, summary *status.Summary) (Result, error) {
	now := d.now().UTC().Truncate(time.Millisecond)

	current := summary.Snapshot(pr, now)
	if err := d.q.InsertPullRequestStatus(ctx, current); err != nil {
		return Result{}, err
	}

	previous, err := d.q.GetPreviousPullRequestStatus(ctx, pr.ID, current.ID)
	if err != nil {
		return Result{}, err
	}

	if d.stale(pr.TimeUpdated) {
		log.Debug(ctx, "Skipping notifications for stale pull request",
			"pull_request", pr.Number, "updated", pr.TimeUpdated)
		return Result{}, nil
	}

	newCommit := previous == nil || previous.HeadSHA != current.HeadSHA

	var result Result
	if current.Failed && (newCommit || !previous.Failed || previous.Conclusion != current.Conclusion) {
		n := d.checkNotification(models.NotificationCheckRunFailed, repo, pr, current, now)
		r, err := d.emit(ctx, n)
		if err != nil {
			return result, err
		}
		result.add(r)
	}

	if current.Succeeded && (newCommit || !previous.Succeeded) {
		n := d.checkNotification(models.NotificationCheckRunSucceeded, repo, pr, current, now)
		r, err := d.emit(ctx, n)
		if err != nil {
			return result, err
		}
		result.add(r)
	}

	return result, nil
}

// Review reports a newly reconciled review to the pull request author.
// Reviews by the author, reviews still pending and reviews older than the
// staleness window are ignored.
func (d *Deriver) Review(ctx context.Context, repo *models.Repository, pr *models.PullRequest, review *models.Review) (Result, error) {
	if review.AuthorID != models.NoKey && review.AuthorID == pr.AuthorID {
		return Result{}, nil
	}
	if review.TimeSubmitted.IsZero() || strings.EqualFold(review.State, "PENDING") {
		return Result{}, nil
	}
	if d.stale(review.TimeSubmitted) {
		return Result{}, nil
	}

	reviewer := "someone"
	if review.AuthorID != models.NoKey {
		u, err := d.q.GetUser(ctx, review.AuthorID)
		if err != nil {
			return Result{}, err
		}
		if u != nil {
			reviewer = u.Login
		}
	}

	now := d.now().UTC().Truncate(time.Millisecond)
	n := &models.Notification{
		Type:         models.NotificationNewReview,
		UserID:       pr.AuthorID,
		RepositoryID: repo.ID,
		Identifier:   strconv.Itoa(pr.Number),
		Title:        fmt.Sprintf("%s #%d: %s", repo.FullName(), pr.Number, reviewState(review.State)),
		Description:  fmt.Sprintf("%s reviewed %q", reviewer, pr.Title),
		DetailsURL:   review.HTMLURL,
		HTMLURL:      pr.HTMLURL,
		Result:       strings.ToLower(review.State),
		TimeOccurred: review.TimeSubmitted,
		TimeCreated:  now,
	}
	return d.emit(ctx, n)
}

func (d *Deriver) checkNotification(typ models.NotificationType, repo *models.Repository, pr *models.PullRequest,
	st *models.PullRequestStatus, now time.Time) *models.Notification {
	verb := "Checks failed"
	if typ == models.NotificationCheckRunSucceeded {
		verb = "Checks passed"
	}
	return &models.Notification{
		Type:         typ,
		UserID:       pr.AuthorID,
		RepositoryID: repo.ID,
		Identifier:   strconv.Itoa(pr.Number),
		Title:        fmt.Sprintf("%s #%d: %s", repo.FullName(), pr.Number, verb),
		Description:  pr.Title,
		DetailsURL:   st.DetailsURL,
		HTMLURL:      pr.HTMLURL,
		Result:       st.Result,
		TimeOccurred: st.TimeOccurred,
		TimeCreated:  now,
	}
}

// emit inserts n and force-toasts the older undisplayed notifications it
// supersedes
func (d *Deriver) emit(ctx context.Context, n *models.Notification) (Result, error) {
	if err := d.q.InsertNotification(ctx, n); err != nil {
		return Result{}, err
	}
	superseded, err := d.q.SupersedeNotifications(ctx, n)
	if err != nil {
		return Result{}, err
	}

	log.Info(ctx, "Created notification", "type", n.Type, "identifier", n.Identifier, "superseded", superseded)
	return Result{Created: []*models.Notification{n}, Superseded: superseded}, nil
}

func reviewState(state string) string {
	switch strings.ToUpper(state) {
	case "APPROVED":
		return "Approved"
	case "CHANGES_REQUESTED":
		return "Changes requested"
	case "COMMENTED":
		return "New review comment"
	case "DISMISSED":
		return "Review dismissed"
	default:
		return "New review"
	}
}
