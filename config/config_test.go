package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/JonnyShabli/registry-mailer/internal/Service/fetcher"
	"github.com/JonnyShabli/registry-mailer/internal/Service/spreadsheet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadConfig_Full(t *testing.T) {
	t.Setenv("TEST_REGISTRY_URL", "http://registry.local/api/search")
	path := writeConfig(t, `
logger:
  level: warn
  format: json
httpServer:
  addr: 0.0.0.0
  port: "9000"
  read_timeout: 15s
registry:
  api_url: ${TEST_REGISTRY_URL}
  page_delay: 1s
  headers:
    X-Trace: abc
storage:
  export_dir: /var/lib/rm/exports
  upload_dir: /var/lib/rm/uploads
jobs:
  num_workers: 4
  queue_size: 16
  timeout: 10m
tasks:
  ttl: 24h
  sweep_interval: 1h
smtp:
  dial_timeout: 5s
`)

	var cfg Config
	require.NoError(t, LoadConfig(path, &cfg))

	assert.Equal(t, "warn", cfg.Logger.Level)
	assert.Equal(t, "json", cfg.Logger.Format)
	assert.Equal(t, defaultProject, cfg.Logger.Project)
	assert.Equal(t, "0.0.0.0:9000", cfg.HttpServer.Address())
	assert.Equal(t, 15*time.Second, cfg.HttpServer.ReadTimeout)

	assert.Equal(t, "http://registry.local/api/search", cfg.Registry.APIURL)
	assert.Equal(t, time.Second, cfg.Registry.PageDelay)
	assert.Equal(t, fetcher.DefaultTimeout, cfg.Registry.Timeout)
	assert.Equal(t, map[string]string{"X-Trace": "abc"}, cfg.Registry.Headers)

	assert.Equal(t, "/var/lib/rm/exports", cfg.Storage.ExportDir)
	assert.Equal(t, 4, cfg.Jobs.Pool.NumWorkers)
	assert.Equal(t, 16, cfg.Jobs.Pool.QueueSize)
	assert.Equal(t, 10*time.Minute, cfg.Jobs.Runner.Timeout)
	assert.Equal(t, 24*time.Hour, cfg.Tasks.TTL)
	assert.Equal(t, time.Hour, cfg.Tasks.SweepInterval)
	assert.Equal(t, 5*time.Second, cfg.Smtp.DialTimeout)
}

func TestLoadConfig_MinimalGetsDefaults(t *testing.T) {
	path := writeConfig(t, "logger:\n  level: info\n")

	var cfg Config
	require.NoError(t, LoadConfig(path, &cfg))

	assert.Equal(t, defaultPort, cfg.HttpServer.Port)
	assert.Equal(t, fetcher.DefaultAPIURL, cfg.Registry.APIURL)
	assert.Equal(t, fetcher.DefaultMembersType, cfg.Registry.MembersType)
	assert.Equal(t, fetcher.DefaultPageDelay, cfg.Registry.PageDelay)
	assert.Equal(t, defaultExportDir, cfg.Storage.ExportDir)
	assert.Equal(t, defaultUploadDir, cfg.Storage.UploadDir)
	assert.Equal(t, spreadsheet.DefaultSheetName, cfg.Storage.SheetName)
	assert.EqualValues(t, spreadsheet.DefaultMaxUploadSize, cfg.Storage.MaxUploadSize)
	assert.Zero(t, cfg.Jobs.Pool.NumWorkers)
	assert.Zero(t, cfg.Tasks.TTL)
}

func TestLoadConfig_UnsetVariableFallsBackToDefault(t *testing.T) {
	path := writeConfig(t, "registry:\n  api_url: ${TEST_REGISTRY_URL_UNSET}\n")

	var cfg Config
	require.NoError(t, LoadConfig(path, &cfg))
	assert.Equal(t, fetcher.DefaultAPIURL, cfg.Registry.APIURL)
}

func TestLoadConfig_Errors(t *testing.T) {
	var cfg Config
	assert.Error(t, LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"), &cfg))

	path := writeConfig(t, "jobs:\n  num_workers: [1, 2]\n")
	assert.Error(t, LoadConfig(path, &cfg))
}

func TestLoadConfig_LocalFileParses(t *testing.T) {
	var cfg Config
	require.NoError(t, LoadConfig("config_local.yaml", &cfg))
	assert.Equal(t, "127.0.0.1:8080", cfg.HttpServer.Address())
	assert.Equal(t, "CECCAR Data", cfg.Storage.SheetName)
}
