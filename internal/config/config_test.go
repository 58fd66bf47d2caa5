package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsNeedDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	_, err := Load(New(), "")
	assert.ErrorContains(t, err, "database_url")
}

func TestEnvironment(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/canvas")
	t.Setenv("CANVAS_LISTEN", ":8080")
	t.Setenv("CANVAS_MONITOR_CACHE_SIZE", "16")

	c, err := Load(New(), "")
	require.NoError(t, err)
	assert.Equal(t, DriverPostgres, c.Driver)
	assert.Equal(t, "postgres://localhost/canvas", c.DatabaseURL)
	assert.Equal(t, ":8080", c.Listen)
	assert.Equal(t, 16, c.MonitorCacheSize)
	assert.Equal(t, "info", c.LogLevel)
}

func TestConfigFile(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	path := filepath.Join(t.TempDir(), "canvas.yaml")
	require.NoError(t, os.WriteFile(path, []byte("driver: sqlite\nsqlite_path: /tmp/x.db\nshortcuts_file: keys.yaml\nlog_level: debug\n"), 0o644))

	c, err := Load(New(), path)
	require.NoError(t, err)
	assert.Equal(t, DriverSQLite, c.Driver)
	assert.Equal(t, "/tmp/x.db", c.SQLitePath)
	assert.Equal(t, "keys.yaml", c.ShortcutsFile)
	assert.Equal(t, "debug", c.LogLevel)
	assert.Equal(t, ":3000", c.Listen)
}

func TestValidate(t *testing.T) {
	ok := Config{Driver: DriverSQLite, SQLitePath: "a.db", MonitorCacheSize: 1}
	assert.NoError(t, ok.Validate())

	bad := ok
	bad.Driver = "mysql"
	assert.ErrorContains(t, bad.Validate(), "unknown driver")

	bad = ok
	bad.MonitorCacheSize = 0
	assert.ErrorContains(t, bad.Validate(), "monitor_cache_size")
}

func TestMissingFile(t *testing.T) {
	_, err := Load(New(), filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
