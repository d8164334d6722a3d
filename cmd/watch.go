package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wesm/pr-watch/internal/events"
	"github.com/wesm/pr-watch/internal/log"
	"github.com/wesm/pr-watch/internal/metrics"
	"github.com/wesm/pr-watch/internal/notify"
	"github.com/wesm/pr-watch/internal/scheduler"
	"github.com/wesm/pr-watch/internal/sync"
)

const shutdownTimeout = 30 * time.Second

var (
	watchDeliver   bool
	watchPauseFile string
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Sync every configured repository and search on the configured interval",
	Long: `Run one scheduler per configured repository and search until interrupted.
Pending notifications are printed after every batch unless --deliver=false.
While the pause file exists, scheduled ticks are skipped.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().BoolVar(&watchDeliver, "deliver", true, "Print pending notifications after each batch")
	watchCmd.Flags().StringVar(&watchPauseFile, "pause-file", "", "Skip scheduled syncs while this file exists")
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	interval := time.Duration(a.cfg.Sync.Interval)
	paused := func() bool {
		if watchPauseFile == "" {
			return false
		}
		_, err := os.Stat(watchPauseFile)
		return err == nil
	}

	var schedulers []*scheduler.Scheduler
	for _, repoStr := range a.cfg.Repositories {
		owner, name, err := sync.ParseRepositoryString(repoStr)
		if err != nil {
			return err
		}
		schedulers = append(schedulers, scheduler.New(
			func(ctx context.Context) error { return syncRepository(ctx, a, owner, name) },
			scheduler.Options{
				Name:     repoStr,
				Interval: interval,
				Paused:   paused,
				LastRun: func(ctx context.Context) (time.Time, error) {
					return a.syncer.LastBatchTime(ctx, events.KindPullRequests, repoStr)
				},
			}))
	}
	for _, search := range a.cfg.Searches {
		scope := fmt.Sprintf("%s?%s", search.Repository, strings.TrimSpace(search.Query))
		schedulers = append(schedulers, scheduler.New(
			func(ctx context.Context) error { return syncSearch(ctx, a, search) },
			scheduler.Options{
				Name:     scope,
				Interval: interval,
				Paused:   paused,
				LastRun: func(ctx context.Context) (time.Time, error) {
					return a.syncer.LastBatchTime(ctx, events.KindSearch, scope)
				},
			}))
	}
	if len(schedulers) == 0 {
		return errors.New("nothing to watch: no repositories or searches configured")
	}

	updates, unsubscribe := a.bus.Subscribe(events.Filter{})
	defer unsubscribe()
	go logEvents(ctx, a, updates)

	var server *http.Server
	if a.cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler(a.registry))
		server = &http.Server{
			Addr:        a.cfg.MetricsAddr,
			Handler:     mux,
			ReadTimeout: 30 * time.Second,
			IdleTimeout: 120 * time.Second,
		}
		go func() {
			log.Info(ctx, "Serving metrics", "addr", a.cfg.MetricsAddr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error(ctx, "Metrics server failed", "error", err)
			}
		}()
	}

	for _, s := range schedulers {
		if err := s.Start(ctx); err != nil {
			return err
		}
	}
	log.Info(ctx, "Watching", "schedulers", len(schedulers), "interval", interval)

	<-ctx.Done()
	log.Info(context.Background(), "Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	var errs []error
	for _, s := range schedulers {
		errs = append(errs, s.Stop(shutdownCtx))
	}
	if server != nil {
		errs = append(errs, server.Shutdown(shutdownCtx))
	}
	return errors.Join(errs...)
}

func logEvents(ctx context.Context, a *app, updates <-chan events.Event) {
	presenter := logPresenter(os.Stdout)
	for e := range updates {
		if e.Err != nil {
			log.Warn(ctx, "Batch failed", "kind", e.Kind, "scope", e.Scope, "batch_id", e.BatchID, "error", e.Err)
			continue
		}
		log.Debug(ctx, "Batch finished", "kind", e.Kind, "scope", e.Scope, "batch_id", e.BatchID)

		if !watchDeliver || e.Kind != events.KindPullRequests {
			continue
		}
		if _, err := notify.Deliver(context.WithoutCancel(ctx), a.db, presenter); err != nil {
			log.Warn(ctx, "Failed to deliver notifications", "error", err)
		}
	}
}
