// Package sync runs sync batches: one store transaction per batch, the
// identity fallback loop, reconciliation, notification derivation and the
// retention sweep.
package sync

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wesm/pr-watch/internal/api"
	"github.com/wesm/pr-watch/internal/db"
	"github.com/wesm/pr-watch/internal/events"
	"github.com/wesm/pr-watch/internal/log"
	"github.com/wesm/pr-watch/internal/metrics"
	"github.com/wesm/pr-watch/internal/notify"
	"github.com/wesm/pr-watch/internal/reconcile"
	"github.com/wesm/pr-watch/internal/retention"
	"github.com/wesm/pr-watch/internal/status"
)

// ErrRepositoryNotAccessible is returned when no identity could read the
// repository of a batch.
var ErrRepositoryNotAccessible = errors.New("repository not accessible")

// LastUpdatedKey is the metadata key holding the completion time of the
// last committed batch of any kind.
const LastUpdatedKey = "LastUpdated"

// Options tunes a Syncer
type Options struct {
	Reconcile reconcile.Options
	Retention retention.Options
	// Staleness is how long after its last update a pull request stops
	// producing notifications.
	Staleness time.Duration
	// ExcludeAppID is the app whose check suites are ignored by status
	// aggregation.
	ExcludeAppID int64
}

// DefaultOptions returns the standard tuning
func DefaultOptions() Options {
	return Options{
		Reconcile:    reconcile.DefaultOptions(),
		Retention:    retention.DefaultOptions(),
		Staleness:    notify.DefaultStaleness,
		ExcludeAppID: status.DependabotAppID,
	}
}

// Syncer handles syncing GitHub state to the local database
type Syncer struct {
	db         *db.DB
	identities api.Provider
	opts       Options
	sweeper    *retention.Sweeper
	bus        *events.Bus
	metrics    *metrics.Metrics
	now        func() time.Time
}

// New creates a new syncer
func New(db *db.DB, identities api.Provider, opts Options) *Syncer {
	return &Syncer{
		db:         db,
		identities: identities,
		opts:       opts,
		sweeper:    retention.New(opts.Retention),
		now:        time.Now,
	}
}

// SetEvents sets the bus that receives an event after every batch
func (s *Syncer) SetEvents(bus *events.Bus) {
	s.bus = bus
}

// SetMetrics sets the metrics recorder
func (s *Syncer) SetMetrics(m *metrics.Metrics) {
	s.metrics = m
}

// SetClock replaces the time source used for observation times
func (s *Syncer) SetClock(now func() time.Time) {
	s.now = now
}

// batch is the state of one identity attempt inside a batch transaction
type batch struct {
	tx       *db.Tx
	client   api.Client
	identity api.Identity
	rec      *reconcile.Reconciler
	agg      *status.Aggregator
	deriver  *notify.Deriver
	result   notify.Result
}

type work func(ctx context.Context, b *batch) (retention.Scope, error)

// runBatch runs fn inside one transaction, trying each identity in turn.
// NotFound and Forbidden move on to the next identity after discarding the
// attempt's writes; any other error aborts the batch and rolls back
// everything.
func (s *Syncer) runBatch(ctx context.Context, kind events.Kind, scope string, fn work) error {
	start := time.Now()
	batchID := uuid.NewString()
	ctx = log.WithFields(ctx, log.Fields{
		"batch_id":  batchID,
		"operation": string(kind),
		"scope":     scope,
	})

	log.Debug(ctx, "Starting batch")
	result, err := s.execute(ctx, kind, scope, fn)

	s.metrics.ObserveBatch(string(kind), batchResult(err), time.Since(start))
	s.bus.Publish(ctx, events.Event{
		Kind:    kind,
		Scope:   scope,
		BatchID: batchID,
		Time:    s.now(),
		Err:     err,
	})

	if err != nil {
		log.Error(ctx, "Batch failed", "error", err, "duration", time.Since(start))
		return err
	}

	for _, n := range result.Created {
		s.metrics.NotificationCreated(n.Type.String())
	}
	s.metrics.NotificationsSuperseded(result.Superseded)

	log.Info(ctx, "Batch committed",
		"duration", time.Since(start), "notifications", len(result.Created))
	return nil
}

func (s *Syncer) execute(ctx context.Context, kind events.Kind, scope string, fn work) (notify.Result, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return notify.Result{}, err
	}
	// No-op once committed.
	defer tx.Rollback()

	now := s.now().UTC().Truncate(time.Millisecond)

	var (
		won        *batch
		sweepScope retention.Scope
	)
	for i, identity := range api.Candidates(s.identities) {
		idCtx := log.WithFields(ctx, log.Fields{"identity": identity.Name})
		savepoint := fmt.Sprintf("identity_%d", i)
		if err := tx.Savepoint(idCtx, savepoint); err != nil {
			return notify.Result{}, err
		}

		b := s.newBatch(tx, identity)
		sweepScope, err = fn(idCtx, b)
		if err == nil {
			if err := tx.ReleaseSavepoint(idCtx, savepoint); err != nil {
				return notify.Result{}, err
			}
			s.metrics.IdentityAttempt(metrics.OutcomeSuccess)
			won = b
			break
		}

		switch {
		case api.IsSkippable(err):
			log.Warn(idCtx, "Identity cannot access target, trying next", "error", err)
			s.metrics.IdentityAttempt(metrics.OutcomeSkipped)
			if err := tx.RollbackTo(idCtx, savepoint); err != nil {
				return notify.Result{}, err
			}
			continue
		case errors.Is(err, api.ErrRateLimited):
			log.Error(idCtx, "Rate limited, aborting batch", "error", err)
			s.metrics.IdentityAttempt(metrics.OutcomeRateLimited)
		default:
			s.metrics.IdentityAttempt(metrics.OutcomeError)
		}
		return notify.Result{}, err
	}

	if won == nil {
		return notify.Result{}, fmt.Errorf("%w: %s", ErrRepositoryNotAccessible, scope)
	}

	report, err := s.sweeper.Sweep(ctx, tx.Queries, sweepScope, now)
	if err != nil {
		return notify.Result{}, err
	}

	if err := tx.SetMetaDataTime(ctx, LastUpdatedKey, now); err != nil {
		return notify.Result{}, err
	}
	if err := tx.SetMetaDataTime(ctx, batchKey(kind, scope), now); err != nil {
		return notify.Result{}, err
	}

	if err := tx.Commit(); err != nil {
		return notify.Result{}, err
	}

	for table, n := range report {
		s.metrics.RetentionDeleted(table, n)
	}
	return won.result, nil
}

func (s *Syncer) newBatch(tx *db.Tx, identity api.Identity) *batch {
	return &batch{
		tx:       tx,
		client:   identity.Client,
		identity: identity,
		rec:      reconcile.New(tx.Queries, s.opts.Reconcile).WithClock(s.now),
		agg:      status.New(tx.Queries, s.opts.ExcludeAppID),
		deriver:  notify.NewDeriver(tx.Queries, s.opts.Staleness).WithClock(s.now),
	}
}

// LastBatchTime returns when a batch of kind last committed for scope. An
// empty kind returns the completion time of the last batch of any kind. The
// zero time means never.
func (s *Syncer) LastBatchTime(ctx context.Context, kind events.Kind, scope string) (time.Time, error) {
	key := LastUpdatedKey
	if kind != "" {
		key = batchKey(kind, scope)
	}
	return s.db.GetMetaDataTime(ctx, key)
}

func batchKey(kind events.Kind, scope string) string {
	return fmt.Sprintf("%s:%s:%s", LastUpdatedKey, kind, scope)
}

func batchResult(err error) string {
	switch {
	case err == nil:
		return metrics.ResultSuccess
	case errors.Is(err, api.ErrRateLimited):
		return metrics.ResultRateLimited
	case errors.Is(err, ErrRepositoryNotAccessible):
		return metrics.ResultNotAccessible
	default:
		return metrics.ResultError
	}
}

// ParseRepositoryString parses a repository string in the format "owner/name"
func ParseRepositoryString(repoStr string) (string, string, error) {
	parts := strings.Split(repoStr, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid repository format, expected 'owner/name', got '%s'", repoStr)
	}
	return parts[0], parts[1], nil
}
