package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "finsight", cfg.Name)
	assert.Equal(t, "sample_data", cfg.Data.Dir)
	assert.Equal(t, "calendar", cfg.Dates.Anchor)
	assert.True(t, cfg.Data.WatchFiles)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	require.NoError(t, cfg.Validate())
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Data.Dir, cfg.Data.Dir)
}

func TestLoadParsesYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte(`
name: finsight
data:
  dir: /srv/finsight/data
  watch_files: false
storage:
  database_path: /srv/finsight/state.db
dates:
  anchor: rolling
`)
	require.NoError(t, os.WriteFile(path, content, 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/srv/finsight/data", cfg.Data.Dir)
	assert.False(t, cfg.Data.WatchFiles)
	assert.Equal(t, "/srv/finsight/state.db", cfg.Storage.DatabasePath)
	assert.Equal(t, "rolling", cfg.Dates.Anchor)
}

func TestLoadRejectsBadAnchor(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("dates:\n  anchor: fortnight\n"), 0644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dates.anchor")
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("FINSIGHT_DATA_DIR", "/env/data")
	t.Setenv("FINSIGHT_DB", "/env/state.db")
	t.Setenv("FINSIGHT_DATE_ANCHOR", "rolling")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "/env/data", cfg.Data.Dir)
	assert.Equal(t, "/env/state.db", cfg.Storage.DatabasePath)
	assert.Equal(t, "rolling", cfg.Dates.Anchor)
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.Data.Dir = "custom_data"
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "custom_data", loaded.Data.Dir)
}
