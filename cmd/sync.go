package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wesm/pr-watch/internal/api"
	"github.com/wesm/pr-watch/internal/log"
	"github.com/wesm/pr-watch/internal/sync"
)

var (
	syncRepo string
	syncAll  bool
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Sync repositories once",
	Long: `Sync pull requests, issues and releases of one repository, or of every
configured repository and search with --all.

Examples:
  pr-watch sync --repo octo/hello
  pr-watch sync --all`,
	Args: cobra.NoArgs,
	RunE: runSync,
}

func init() {
	syncCmd.Flags().StringVar(&syncRepo, "repo", "", "Sync a specific repository (format: owner/name)")
	syncCmd.Flags().BoolVar(&syncAll, "all", false, "Sync all repositories and searches in the configuration")
	syncCmd.MarkFlagsMutuallyExclusive("repo", "all")
	syncCmd.MarkFlagsOneRequired("repo", "all")
}

func runSync(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	startTime := time.Now()

	if syncRepo != "" {
		owner, name, err := sync.ParseRepositoryString(syncRepo)
		if err != nil {
			return fmt.Errorf("invalid repository format: %w", err)
		}
		log.Info(ctx, "Syncing repository", "repository", syncRepo)
		if err := syncRepository(ctx, a, owner, name); err != nil {
			return fmt.Errorf("failed to sync repository %s: %w", syncRepo, err)
		}
		log.Info(ctx, "Sync completed", "duration", time.Since(startTime))
		return nil
	}

	log.Info(ctx, "Syncing repositories", "count", len(a.cfg.Repositories), "searches", len(a.cfg.Searches))
	var failed int
	for _, repoStr := range a.cfg.Repositories {
		owner, name, err := sync.ParseRepositoryString(repoStr)
		if err != nil {
			log.Warn(ctx, "Skipping invalid repository", "repository", repoStr, "error", err)
			continue
		}

		log.Info(ctx, "Syncing repository", "repository", repoStr)
		if err := syncRepository(ctx, a, owner, name); err != nil {
			if errors.Is(err, api.ErrRateLimited) {
				return err
			}
			// Continue with other repositories even if one fails
			log.Error(ctx, "Failed to sync repository", "repository", repoStr, "error", err)
			failed++
		}
	}

	for _, search := range a.cfg.Searches {
		if err := syncSearch(ctx, a, search); err != nil {
			if errors.Is(err, api.ErrRateLimited) {
				return err
			}
			log.Error(ctx, "Failed to sync search", "repository", search.Repository, "query", search.Query, "error", err)
			failed++
		}
	}

	log.Info(ctx, "Sync completed", "duration", time.Since(startTime), "failed", failed)
	if failed > 0 {
		return fmt.Errorf("%d sync targets failed", failed)
	}
	return nil
}
