package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv(EnvGithubTokens, "")
	t.Setenv(EnvDatabasePath, "")
	t.Setenv(EnvLogLevel, "")
	path := writeConfig(t, "repositories:\n  - octo/hello\n")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(filepath.Dir(path), defaultDatabasePath), cfg.DatabasePath)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "open", cfg.PullRequests.State)
	assert.Equal(t, Duration(5*time.Minute), cfg.Sync.Interval)
	assert.Equal(t, Duration(4*time.Hour), cfg.Sync.LabelDebounce)
	assert.Equal(t, Duration(2*time.Minute), cfg.Sync.SearchDebounce)
	assert.Equal(t, Duration(24*time.Hour), cfg.Sync.NotificationStaleness)
	assert.Equal(t, Duration(6*time.Minute), cfg.Sync.GraceWindow)
	assert.Equal(t, Duration(7*24*time.Hour), cfg.Sync.RetentionWindow)
	assert.EqualValues(t, 29110, cfg.Sync.DependabotAppID)
}

func TestLoadConfigValues(t *testing.T) {
	t.Setenv(EnvGithubTokens, "")
	t.Setenv(EnvDatabasePath, "")
	t.Setenv(EnvLogLevel, "")
	path := writeConfig(t, `
github_tokens: [a, b]
anonymous_fallback: true
database_path: /var/lib/pr-watch/state.db
log_level: debug
repositories: [octo/hello]
searches:
  - repository: octo/hello
    query: label:bug
pull_requests:
  state: all
  author: alice
sync:
  interval: 90s
  label_debounce: 1h
  dependabot_app_id: -1
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b"}, cfg.GitHubTokens)
	assert.True(t, cfg.AnonymousFallback)
	assert.Equal(t, "/var/lib/pr-watch/state.db", cfg.DatabasePath)
	assert.Equal(t, []Search{{Repository: "octo/hello", Query: "label:bug"}}, cfg.Searches)
	assert.Equal(t, Duration(90*time.Second), cfg.Sync.Interval)

	opts := cfg.SyncOptions()
	assert.Equal(t, time.Hour, opts.Reconcile.LabelDebounce)
	assert.Equal(t, 2*time.Minute, opts.Reconcile.SearchDebounce)
	assert.Zero(t, opts.ExcludeAppID)

	filter := cfg.PullRequestFilter()
	assert.Equal(t, "all", filter.State)
	assert.Equal(t, "alice", filter.Author)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv(EnvGithubTokens, " t1 , ,t2")
	t.Setenv(EnvDatabasePath, "/tmp/override.db")
	t.Setenv(EnvLogLevel, "warn")
	path := writeConfig(t, "github_tokens: [file]\nrepositories: []\n")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"t1", "t2"}, cfg.GitHubTokens)
	assert.Equal(t, "/tmp/override.db", cfg.DatabasePath)
	assert.Equal(t, "warn", cfg.LogLevel)
}

func TestLoadConfigInvalid(t *testing.T) {
	t.Setenv(EnvGithubTokens, "")
	t.Setenv(EnvDatabasePath, "")
	t.Setenv(EnvLogLevel, "")

	tests := []struct {
		name string
		body string
	}{
		{"bad repository", "repositories: [nope]\n"},
		{"bad duration", "sync:\n  interval: soon\n"},
		{"negative duration", "sync:\n  grace_window: -1m\n"},
		{"bad state", "pull_requests:\n  state: merged\n"},
		{"bad log level", "log_level: loud\n"},
		{"empty search", "searches:\n  - repository: octo/hello\n    query: ' '\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestCreateDefaultConfigRoundTrip(t *testing.T) {
	t.Setenv(EnvGithubTokens, "")
	t.Setenv(EnvDatabasePath, "")
	t.Setenv(EnvLogLevel, "")
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	require.NoError(t, CreateDefaultConfig(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "interval: 5m0s")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"example/repo"}, cfg.Repositories)

	// An existing file is left alone.
	cfg.Repositories = []string{"octo/hello"}
	require.NoError(t, SaveConfig(cfg, path))
	require.NoError(t, CreateDefaultConfig(path))
	again, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"octo/hello"}, again.Repositories)
}

func TestSaveLoadFileKeepsEnvironmentOut(t *testing.T) {
	t.Setenv(EnvGithubTokens, "ghp_one, ghp_two")
	t.Setenv(EnvDatabasePath, "")
	t.Setenv(EnvLogLevel, "")
	path := writeConfig(t, "database_path: data/pr-watch.db\nrepositories:\n  - octo/hello\n")

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Empty(t, cfg.GitHubTokens)
	assert.Equal(t, "data/pr-watch.db", cfg.DatabasePath)

	cfg.Repositories = append(cfg.Repositories, "octo/world")
	require.NoError(t, SaveConfig(cfg, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "ghp_one")
	assert.Contains(t, string(data), "database_path: data/pr-watch.db")

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"ghp_one", "ghp_two"}, loaded.GitHubTokens)
	assert.Equal(t, []string{"octo/hello", "octo/world"}, loaded.Repositories)
	assert.Equal(t, 5*time.Minute, time.Duration(loaded.Sync.Interval))
}
