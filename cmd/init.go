package main

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/wesm/pr-watch/config"
	"github.com/wesm/pr-watch/internal/sync"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a default configuration file if it doesn't exist",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.CreateDefaultConfig(configPath); err != nil {
			return fmt.Errorf("failed to create default configuration: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created default configuration at %s\n", configPath)
		fmt.Fprintf(cmd.OutOrStdout(), "GitHub tokens can be provided via the %s environment variable\n", config.EnvGithubTokens)
		return nil
	},
}

var addRepoCmd = &cobra.Command{
	Use:   "add-repo owner/name",
	Short: "Add a repository to the configuration",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		repo := args[0]
		if _, _, err := sync.ParseRepositoryString(repo); err != nil {
			return fmt.Errorf("invalid repository format: %w", err)
		}

		// Edit the file as written so overrides from the environment are
		// not persisted.
		cfg, err := config.LoadFile(configPath)
		if err != nil {
			return err
		}

		if slices.Contains(cfg.Repositories, repo) {
			fmt.Fprintf(cmd.OutOrStdout(), "Repository %s already exists in configuration\n", repo)
			return nil
		}

		cfg.Repositories = append(cfg.Repositories, repo)
		if err := config.SaveConfig(cfg, configPath); err != nil {
			return fmt.Errorf("failed to save configuration: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Added repository %s to configuration\n", repo)
		return nil
	},
}
