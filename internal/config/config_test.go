package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tgienger/cronocelda/internal/config"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	dataDir := t.TempDir()
	t.Setenv("CRONO_DATA_DIR", dataDir)

	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, dataDir, cfg.DataDir)
	assert.Equal(t, filepath.Join(dataDir, "cronocelda.log"), cfg.LogFile)
	assert.Equal(t, filepath.Join(dataDir, "cronocelda.db"), cfg.DBPath())
	assert.Equal(t, "https://api.trello.com/1", cfg.Trello.BaseURL)
	assert.Equal(t, 60*time.Second, cfg.AI.Timeout)
	assert.Equal(t, []string{"General"}, cfg.Categories)
}

func TestLoadFileThenEnv(t *testing.T) {
	path := writeConfig(t, `
data_dir: /tmp/crono
log_level: debug
trello:
  key: file-key
  board_id: board-from-file
ai:
  model: gpt-test
  timeout: 5s
palette: ["#000", "#ffffff"]
categories: [Design, Build]
allowed_emails: "a@example.com, B@example.com ,"
`)
	t.Setenv("TRELLO_BOARD_ID", "board-from-env")

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/crono", cfg.DataDir)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "file-key", cfg.Trello.Key)
	assert.Equal(t, "board-from-env", cfg.Trello.BoardID)
	assert.Equal(t, "gpt-test", cfg.AI.Model)
	assert.Equal(t, 5*time.Second, cfg.AI.Timeout)
	assert.Equal(t, []string{"#000", "#ffffff"}, cfg.Palette)
	assert.Equal(t, []string{"Design", "Build"}, cfg.Categories)
	assert.Equal(t, []string{"a@example.com", "B@example.com"}, cfg.AllowList())
}

func TestLoadRejectsBadPalette(t *testing.T) {
	path := writeConfig(t, "data_dir: /tmp/x\npalette: [\"red\"]\n")
	_, err := config.Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsBadYAML(t *testing.T) {
	path := writeConfig(t, "trello: [unclosed\n")
	_, err := config.Load(path)
	assert.Error(t, err)
}

func TestSplitList(t *testing.T) {
	assert.Nil(t, config.SplitList(""))
	assert.Equal(t, []string{"a", "b"}, config.SplitList(" a ,, b "))
}
