package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/wesm/pr-watch/config"
	"github.com/wesm/pr-watch/internal/api"
	"github.com/wesm/pr-watch/internal/db"
	"github.com/wesm/pr-watch/internal/events"
	"github.com/wesm/pr-watch/internal/log"
	"github.com/wesm/pr-watch/internal/metrics"
	"github.com/wesm/pr-watch/internal/sync"
)

const identifyTimeout = 10 * time.Second

// app is everything a command needs once the config is loaded
type app struct {
	cfg      *config.Config
	db       *db.DB
	syncer   *sync.Syncer
	bus      *events.Bus
	registry *prometheus.Registry
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	level := cfg.LogLevel
	if logLevel != "" {
		level = logLevel
	}
	if err := log.Setup(level, os.Stderr); err != nil {
		return nil, err
	}
	return cfg, nil
}

func openDatabase(cfg *config.Config) (*db.DB, error) {
	database, err := db.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := database.Initialize(); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return database, nil
}

// openApp loads the configuration, opens the database and builds the syncer
// with one identity per configured token.
func openApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if len(cfg.GitHubTokens) == 0 && !cfg.AnonymousFallback {
		return nil, fmt.Errorf("no GitHub tokens configured; set %s or enable anonymous_fallback", config.EnvGithubTokens)
	}

	database, err := openDatabase(cfg)
	if err != nil {
		return nil, err
	}

	provider := api.NewTokenProvider(cfg.GitHubTokens, cfg.AnonymousFallback)
	identify(ctx, provider, cfg.GitHubTokens)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	bus := events.New()

	syncer := sync.New(database, provider, cfg.SyncOptions())
	syncer.SetMetrics(metrics.New(registry))
	syncer.SetEvents(bus)

	return &app{
		cfg:      cfg,
		db:       database,
		syncer:   syncer,
		bus:      bus,
		registry: registry,
	}, nil
}

func (a *app) Close() error {
	return a.db.Close()
}

// identify names each token identity after its GitHub login. Failures only
// leave the generic name in place.
func identify(ctx context.Context, provider *api.StaticProvider, tokens []string) {
	ctx, cancel := context.WithTimeout(ctx, identifyTimeout)
	defer cancel()

	for i, token := range tokens {
		viewer, err := api.NewGraphQLClient(token).Viewer(ctx)
		if err != nil {
			log.Warn(ctx, "Failed to resolve token login", "index", i, "error", err)
			continue
		}
		provider.Rename(i, viewer.Login)
		log.Info(ctx, "Resolved identity",
			"login", viewer.Login,
			"graphql_remaining", viewer.RateLimit.Remaining,
			"graphql_reset", viewer.RateLimit.ResetAt)
	}
}

// syncRepository runs every batch for one repository. A rate limit stops the
// sequence since the remaining batches would fail the same way.
func syncRepository(ctx context.Context, a *app, owner, name string) error {
	steps := []func() error{
		func() error { return a.syncer.UpdatePullRequests(ctx, owner, name, a.cfg.PullRequestFilter()) },
		func() error { return a.syncer.UpdateIssues(ctx, owner, name) },
		func() error { return a.syncer.UpdateReleases(ctx, owner, name) },
	}

	var errs []error
	for _, step := range steps {
		if err := step(); err != nil {
			if errors.Is(err, api.ErrRateLimited) {
				return err
			}
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// syncSearch runs one configured search
func syncSearch(ctx context.Context, a *app, search config.Search) error {
	owner, name, err := sync.ParseRepositoryString(search.Repository)
	if err != nil {
		return err
	}
	return a.syncer.UpdateSearch(ctx, owner, name, search.Query)
}
