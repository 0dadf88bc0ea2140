package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bioweaver.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_OverlaysDefaults(t *testing.T) {
	path := writeConfig(t, `
threads: 8
databases:
  kneaddata: /db/hg38
report:
  format: html
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.Threads)
	assert.Equal(t, DefaultJobs, cfg.Jobs)
	assert.Equal(t, DefaultInputExtension, cfg.InputExtension)
	assert.Equal(t, "/db/hg38", cfg.Databases.Kneaddata)
	assert.Equal(t, "html", cfg.Report.Format)
	assert.Equal(t, DefaultMaxRows, cfg.Report.MaxRows)
	assert.Equal(t, path, cfg.Path)
}

func TestLoad_MissingDefaultFileIsNotAnError(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err, "explicit missing file")

	_, err = Load(writeConfig(t, "threads: 0\n"))
	assert.ErrorContains(t, err, "threads")

	_, err = Load(writeConfig(t, "thread: 4\n"))
	assert.Error(t, err, "unknown keys are rejected")

	_, err = Load(writeConfig(t, "log_level: loud\n"))
	assert.ErrorContains(t, err, "log_level")
}

func TestLoad_EmptyFile(t *testing.T) {
	cfg, err := Load(writeConfig(t, ""))
	require.NoError(t, err)
	assert.Equal(t, DefaultThreads, cfg.Threads)
}

func TestCachePath(t *testing.T) {
	cfg := Default()
	assert.Equal(t, filepath.Join("out", ".bioweaver", "tasks.db"), cfg.CachePath("out"))
	cfg.CacheDB = "/var/cache/tasks.db"
	assert.Equal(t, "/var/cache/tasks.db", cfg.CachePath("out"))
}
