// Package main provides the pr-watch CLI: it mirrors GitHub pull requests,
// issues and releases into a local SQLite database and derives check and
// review notifications from the changes.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Global flags
var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "pr-watch",
	Short: "Mirror GitHub pull requests locally and notify on check and review changes",
	Long: `pr-watch keeps a local SQLite mirror of the GitHub repositories listed in
its configuration file and records a notification whenever the checks of a
pull request fail or recover, or a new review arrives.

Examples:
  pr-watch init                     # Write a default config.yaml
  pr-watch add-repo octo/hello      # Track a repository
  pr-watch sync --all               # Sync every configured repository once
  pr-watch watch                    # Sync on the configured interval
  pr-watch notifications --deliver  # Show pending notifications`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "Path to configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); overrides the configuration file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(addRepoCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(notificationsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error: "+err.Error())
		os.Exit(1)
	}
}
