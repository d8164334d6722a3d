package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wesm/pr-watch/config"
	"github.com/wesm/pr-watch/internal/models"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestInitAndAddRepo(t *testing.T) {
	t.Setenv(config.EnvGithubTokens, "")
	t.Setenv(config.EnvDatabasePath, "")
	t.Setenv(config.EnvLogLevel, "")
	path := filepath.Join(t.TempDir(), "config.yaml")

	out, err := execute(t, "init", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Created default configuration")

	out, err = execute(t, "add-repo", "octo/hello", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Added repository octo/hello")

	out, err = execute(t, "add-repo", "octo/hello", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "already exists")

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"example/repo", "octo/hello"}, cfg.Repositories)

	_, err = execute(t, "add-repo", "not-a-repo", "--config", path)
	assert.Error(t, err)
}

func TestAddRepoKeepsEnvironmentOutOfFile(t *testing.T) {
	t.Setenv(config.EnvGithubTokens, "ghp_secret")
	t.Setenv(config.EnvDatabasePath, "")
	t.Setenv(config.EnvLogLevel, "debug")
	path := filepath.Join(t.TempDir(), "config.yaml")

	_, err := execute(t, "init", "--config", path)
	require.NoError(t, err)
	_, err = execute(t, "add-repo", "octo/hello", "--config", path)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.NotContains(t, text, "ghp_secret")
	assert.NotContains(t, text, "debug")
	assert.Contains(t, text, "database_path: pr-watch.db")
	assert.Contains(t, text, "octo/hello")

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"ghp_secret"}, cfg.GitHubTokens)
	assert.Equal(t, filepath.Join(filepath.Dir(path), "pr-watch.db"), cfg.DatabasePath)
}

func TestPrintNotification(t *testing.T) {
	var out bytes.Buffer
	printNotification(&out, &models.Notification{
		Type:         models.NotificationCheckRunFailed,
		Title:        "octo/hello #7: Checks failed",
		Result:       "build: failure",
		DetailsURL:   "https://github.com/octo/hello/runs/1",
		HTMLURL:      "https://github.com/octo/hello/pull/7",
		TimeOccurred: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	})

	text := out.String()
	assert.Contains(t, text, "octo/hello #7: Checks failed")
	assert.Contains(t, text, "build: failure")
	assert.Contains(t, text, "https://github.com/octo/hello/runs/1")
	assert.NotContains(t, text, "/pull/7")
}
