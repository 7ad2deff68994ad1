package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix for environment overrides.
const EnvPrefix = "INSURATASK"

// Load reads configuration from path. An empty path falls back to
// DefaultPath and tolerates the file being absent; an explicit path must exist.
func Load(path string) (*Config, error) {
	cfg := Default()

	v := viper.New()
	setDefaults(v, cfg)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}

	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	} else if explicit || !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to stat config %s: %w", path, err)
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}

// setDefaults registers every key so AutomaticEnv can override it.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("server.addr", cfg.Server.Addr)
	v.SetDefault("server.cors_origins", cfg.Server.CORSOrigins)
	v.SetDefault("server.read_timeout", cfg.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", cfg.Server.WriteTimeout)
	v.SetDefault("server.shutdown_timeout", cfg.Server.ShutdownTimeout)

	v.SetDefault("database.path", cfg.Database.Path)

	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)

	v.SetDefault("google.client_id", cfg.Google.ClientID)
	v.SetDefault("google.client_secret", cfg.Google.ClientSecret)
	v.SetDefault("google.redirect_url", cfg.Google.RedirectURL)

	v.SetDefault("sync.calendar_id", cfg.Sync.CalendarID)
	v.SetDefault("sync.direction", cfg.Sync.Direction)
	v.SetDefault("sync.conflict_resolution", cfg.Sync.ConflictResolution)
	v.SetDefault("sync.import_events", cfg.Sync.ImportEvents)
	v.SetDefault("sync.interval_minutes", cfg.Sync.IntervalMinutes)
	v.SetDefault("sync.lookback_days", cfg.Sync.LookbackDays)
	v.SetDefault("sync.lookahead_days", cfg.Sync.LookaheadDays)
	v.SetDefault("sync.event_duration_minutes", cfg.Sync.EventDurationMinutes)

	v.SetDefault("scheduler.enabled", cfg.Scheduler.Enabled)
	v.SetDefault("scheduler.timezone", cfg.Scheduler.Timezone)
	v.SetDefault("scheduler.overdue_sweep", cfg.Scheduler.OverdueSweep)

	v.SetDefault("metrics.enabled", cfg.Metrics.Enabled)
	v.SetDefault("metrics.addr", cfg.Metrics.Addr)
}

// Dir returns the InsuraTask configuration directory.
func Dir() string {
	base, err := os.UserConfigDir()
	if err != nil {
		base = "."
	}
	return filepath.Join(base, "insuratask")
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	return filepath.Join(Dir(), "config.yaml")
}

// DefaultDatabasePath returns the default SQLite database location.
func DefaultDatabasePath() string {
	return filepath.Join(Dir(), "insuratask.db")
}

// Write serialises cfg as YAML to path, creating parent directories.
// The file may contain the OAuth client secret, so it is written 0600.
func Write(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config %s: %w", path, err)
	}
	return nil
}
