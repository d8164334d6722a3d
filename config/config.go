package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/wesm/pr-watch/internal/api"
	"github.com/wesm/pr-watch/internal/reconcile"
	"github.com/wesm/pr-watch/internal/retention"
	"github.com/wesm/pr-watch/internal/status"
	"github.com/wesm/pr-watch/internal/sync"
)

const (
	// EnvGithubTokens is the environment variable holding a comma separated,
	// ordered list of GitHub API tokens
	EnvGithubTokens = "PRWATCH_GITHUB_TOKENS"
	// EnvDatabasePath overrides the database path
	EnvDatabasePath = "PRWATCH_DATABASE_PATH"
	// EnvLogLevel overrides the log level
	EnvLogLevel = "PRWATCH_LOG_LEVEL"

	defaultDatabasePath = "pr-watch.db"
)

// Duration is a time.Duration written as a Go duration string, e.g. "4h"
type Duration time.Duration

func (d Duration) String() string {
	return time.Duration(d).String()
}

func (d Duration) MarshalYAML() (any, error) {
	return d.String(), nil
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("duration must be a string: %w", err)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Config represents the application configuration
type Config struct {
	// GitHub API tokens, tried in order (optional, can be set via
	// PRWATCH_GITHUB_TOKENS)
	GitHubTokens []string `yaml:"github_tokens,omitempty"`

	// AnonymousFallback adds an unauthenticated identity after the tokens
	AnonymousFallback bool `yaml:"anonymous_fallback"`

	// Path to the SQLite database file
	DatabasePath string `yaml:"database_path"`

	LogLevel string `yaml:"log_level"`

	// MetricsAddr is where watch serves /metrics. Empty disables it.
	MetricsAddr string `yaml:"metrics_addr,omitempty"`

	// List of repositories to sync in the format "owner/name"
	Repositories []string `yaml:"repositories"`

	Searches []Search `yaml:"searches,omitempty"`

	PullRequests PullRequests `yaml:"pull_requests"`

	Sync Sync `yaml:"sync"`
}

// Search is a cached free-text query scoped to a repository
type Search struct {
	Repository string `yaml:"repository"`
	Query      string `yaml:"query"`
}

// PullRequests selects which pull requests are mirrored
type PullRequests struct {
	// State is open, closed or all
	State  string `yaml:"state"`
	Author string `yaml:"author,omitempty"`
}

// Sync holds the sync tunables
type Sync struct {
	Interval              Duration `yaml:"interval"`
	LabelDebounce         Duration `yaml:"label_debounce"`
	SearchDebounce        Duration `yaml:"search_debounce"`
	NotificationStaleness Duration `yaml:"notification_staleness"`
	GraceWindow           Duration `yaml:"grace_window"`
	RetentionWindow       Duration `yaml:"retention_window"`
	// DependabotAppID is the app whose check suites are left out of status
	// aggregation. Zero means the default; -1 disables the exclusion.
	DependabotAppID int64 `yaml:"dependabot_app_id"`
}

// Default returns the configuration written by CreateDefaultConfig
func Default() *Config {
	cfg := &Config{
		DatabasePath: defaultDatabasePath,
		Repositories: []string{"example/repo"},
	}
	cfg.applyDefaults()
	return cfg
}

// LoadConfig loads the configuration from a YAML file, applies the
// environment overrides and defaults, and resolves the database path
// relative to the file
func LoadConfig(path string) (*Config, error) {
	config, err := LoadFile(path)
	if err != nil {
		return nil, err
	}

	config.applyEnv()
	config.applyDefaults()

	// Make database path absolute if it's relative
	if !filepath.IsAbs(config.DatabasePath) {
		configDir := filepath.Dir(path)
		config.DatabasePath = filepath.Join(configDir, config.DatabasePath)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return config, nil
}

// LoadFile parses the YAML file alone, as it would be written back by
// SaveConfig. Environment overrides and defaults are not applied.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return &config, nil
}

func (c *Config) applyEnv() {
	if env := os.Getenv(EnvGithubTokens); env != "" {
		c.GitHubTokens = splitTokens(env)
	}
	if env := os.Getenv(EnvDatabasePath); env != "" {
		c.DatabasePath = env
	}
	if env := os.Getenv(EnvLogLevel); env != "" {
		c.LogLevel = env
	}
}

func splitTokens(s string) []string {
	var tokens []string
	for _, token := range strings.Split(s, ",") {
		if token = strings.TrimSpace(token); token != "" {
			tokens = append(tokens, token)
		}
	}
	return tokens
}

func (c *Config) applyDefaults() {
	if c.DatabasePath == "" {
		c.DatabasePath = defaultDatabasePath
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.PullRequests.State == "" {
		c.PullRequests.State = "open"
	}

	reconcileDefaults := reconcile.DefaultOptions()
	retentionDefaults := retention.DefaultOptions()
	setDefault(&c.Sync.Interval, 5*time.Minute)
	setDefault(&c.Sync.LabelDebounce, reconcileDefaults.LabelDebounce)
	setDefault(&c.Sync.SearchDebounce, reconcileDefaults.SearchDebounce)
	setDefault(&c.Sync.NotificationStaleness, sync.DefaultOptions().Staleness)
	setDefault(&c.Sync.GraceWindow, retentionDefaults.GraceWindow)
	setDefault(&c.Sync.RetentionWindow, retentionDefaults.RetentionWindow)
	if c.Sync.DependabotAppID == 0 {
		c.Sync.DependabotAppID = status.DependabotAppID
	}
}

func setDefault(d *Duration, def time.Duration) {
	if *d == 0 {
		*d = Duration(def)
	}
}

// Validate reports the first invalid setting
func (c *Config) Validate() error {
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.LogLevel)
	}

	switch c.PullRequests.State {
	case "open", "closed", "all":
	default:
		return fmt.Errorf("pull_requests.state must be open, closed or all, got %q", c.PullRequests.State)
	}

	for _, repo := range c.Repositories {
		if _, _, err := sync.ParseRepositoryString(repo); err != nil {
			return err
		}
	}
	for _, search := range c.Searches {
		if _, _, err := sync.ParseRepositoryString(search.Repository); err != nil {
			return fmt.Errorf("search %q: %w", search.Query, err)
		}
		if strings.TrimSpace(search.Query) == "" {
			return fmt.Errorf("search for %s has an empty query", search.Repository)
		}
	}

	durations := map[string]Duration{
		"interval":               c.Sync.Interval,
		"label_debounce":         c.Sync.LabelDebounce,
		"search_debounce":        c.Sync.SearchDebounce,
		"notification_staleness": c.Sync.NotificationStaleness,
		"grace_window":           c.Sync.GraceWindow,
		"retention_window":       c.Sync.RetentionWindow,
	}
	for name, d := range durations {
		if d < 0 {
			return fmt.Errorf("sync.%s must not be negative, got %s", name, d)
		}
	}
	return nil
}

// SyncOptions converts the tunables for the syncer
func (c *Config) SyncOptions() sync.Options {
	opts := sync.Options{
		Reconcile: reconcile.Options{
			LabelDebounce:  time.Duration(c.Sync.LabelDebounce),
			SearchDebounce: time.Duration(c.Sync.SearchDebounce),
		},
		Retention: retention.Options{
			GraceWindow:     time.Duration(c.Sync.GraceWindow),
			RetentionWindow: time.Duration(c.Sync.RetentionWindow),
		},
		Staleness:    time.Duration(c.Sync.NotificationStaleness),
		ExcludeAppID: c.Sync.DependabotAppID,
	}
	if opts.ExcludeAppID < 0 {
		opts.ExcludeAppID = 0
	}
	return opts
}

// PullRequestFilter returns the configured pull request filter
func (c *Config) PullRequestFilter() api.PullRequestFilter {
	return api.PullRequestFilter{State: c.PullRequests.State, Author: c.PullRequests.Author}
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(config *Config, path string) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// CreateDefaultConfig creates a default configuration file if it doesn't exist
func CreateDefaultConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil // File exists, don't overwrite
	}

	// Ensure the directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	return SaveConfig(Default(), path)
}
