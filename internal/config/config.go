// Package config loads runtime settings for the canvas server and CLI.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Drivers understood by Open helpers in cmd and server.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config holds the resolved settings.
type Config struct {
	Driver           string `mapstructure:"driver"`
	DatabaseURL      string `mapstructure:"database_url"`
	SQLitePath       string `mapstructure:"sqlite_path"`
	Listen           string `mapstructure:"listen"`
	MonitorCacheSize int    `mapstructure:"monitor_cache_size"`
	ShortcutsFile    string `mapstructure:"shortcuts_file"`
	LogLevel         string `mapstructure:"log_level"`
}

// New returns a viper instance with defaults and environment bindings set.
// Environment variables use the CANVAS_ prefix (CANVAS_LISTEN, ...);
// DATABASE_URL is also honoured.
func New() *viper.Viper {
	v := viper.New()
	v.SetDefault("driver", DriverPostgres)
	v.SetDefault("database_url", "")
	v.SetDefault("sqlite_path", "canvas.db")
	v.SetDefault("listen", ":3000")
	v.SetDefault("monitor_cache_size", 1024)
	v.SetDefault("shortcuts_file", "")
	v.SetDefault("log_level", "info")

	v.SetEnvPrefix("canvas")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("database_url", "CANVAS_DATABASE_URL", "DATABASE_URL")
	return v
}

// Load reads the optional config file at path (any format viper supports)
// and resolves the settings. An empty path skips the file.
func Load(v *viper.Viper, path string) (Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("config: decode: %w", err)
	}
	return c, c.Validate()
}

// Validate checks the settings that would otherwise fail late.
func (c Config) Validate() error {
	switch c.Driver {
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return errors.New("config: database_url (or DATABASE_URL) is required for the postgres driver")
		}
	case DriverSQLite:
		if c.SQLitePath == "" {
			return errors.New("config: sqlite_path is required for the sqlite driver")
		}
	default:
		return fmt.Errorf("config: unknown driver %q", c.Driver)
	}
	if c.MonitorCacheSize <= 0 {
		return fmt.Errorf("config: monitor_cache_size must be positive, got %d", c.MonitorCacheSize)
	}
	return nil
}
