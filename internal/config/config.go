package config

import (
	"fmt"
	"net"
	"time"

	"github.com/insuratask/insuratask/internal/logging"
)

// Config is the root configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
	Database  DatabaseConfig  `mapstructure:"database" yaml:"database"`
	Log       LogConfig       `mapstructure:"log" yaml:"log"`
	Google    GoogleConfig    `mapstructure:"google" yaml:"google"`
	Sync      SyncConfig      `mapstructure:"sync" yaml:"sync"`
	Scheduler SchedulerConfig `mapstructure:"scheduler" yaml:"scheduler"`
	Metrics   MetricsConfig   `mapstructure:"metrics" yaml:"metrics"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr" yaml:"addr"`
	CORSOrigins     []string      `mapstructure:"cors_origins" yaml:"cors_origins"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// GoogleConfig holds the OAuth client used for Google Calendar sync.
// Sync is disabled unless both ClientID and ClientSecret are set.
type GoogleConfig struct {
	ClientID     string `mapstructure:"client_id" yaml:"client_id"`
	ClientSecret string `mapstructure:"client_secret" yaml:"client_secret"`
	RedirectURL  string `mapstructure:"redirect_url" yaml:"redirect_url"`
}

// Configured reports whether OAuth credentials are present.
func (g GoogleConfig) Configured() bool {
	return g.ClientID != "" && g.ClientSecret != ""
}

// SyncConfig seeds the persisted calendar sync settings on first start.
type SyncConfig struct {
	CalendarID           string `mapstructure:"calendar_id" yaml:"calendar_id"`
	Direction            string `mapstructure:"direction" yaml:"direction"`
	ConflictResolution   string `mapstructure:"conflict_resolution" yaml:"conflict_resolution"`
	ImportEvents         bool   `mapstructure:"import_events" yaml:"import_events"`
	IntervalMinutes      int    `mapstructure:"interval_minutes" yaml:"interval_minutes"`
	LookbackDays         int    `mapstructure:"lookback_days" yaml:"lookback_days"`
	LookaheadDays        int    `mapstructure:"lookahead_days" yaml:"lookahead_days"`
	EventDurationMinutes int    `mapstructure:"event_duration_minutes" yaml:"event_duration_minutes"`
}

type SchedulerConfig struct {
	Enabled      bool   `mapstructure:"enabled" yaml:"enabled"`
	Timezone     string `mapstructure:"timezone" yaml:"timezone"`
	OverdueSweep string `mapstructure:"overdue_sweep" yaml:"overdue_sweep"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Addr    string `mapstructure:"addr" yaml:"addr"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":3001",
			CORSOrigins:     []string{"http://localhost:5173"},
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			Path: DefaultDatabasePath(),
		},
		Log: LogConfig{
			Level:  "info",
			Format: logging.FormatText,
		},
		Google: GoogleConfig{
			RedirectURL: "http://localhost:3001/api/calendar/callback",
		},
		Sync: SyncConfig{
			CalendarID:           "primary",
			Direction:            "both",
			ConflictResolution:   "manual",
			ImportEvents:         false,
			IntervalMinutes:      0,
			LookbackDays:         30,
			LookaheadDays:        90,
			EventDurationMinutes: 30,
		},
		Scheduler: SchedulerConfig{
			Enabled:  true,
			Timezone: "Local",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Addr:    ":9090",
		},
	}
}

// Validate checks values that would otherwise fail late at startup.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path must not be empty")
	}
	if _, _, err := net.SplitHostPort(c.Server.Addr); err != nil {
		return fmt.Errorf("invalid server.addr %q: %w", c.Server.Addr, err)
	}
	if c.Metrics.Enabled {
		if _, _, err := net.SplitHostPort(c.Metrics.Addr); err != nil {
			return fmt.Errorf("invalid metrics.addr %q: %w", c.Metrics.Addr, err)
		}
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	if _, err := c.Scheduler.Location(); err != nil {
		return err
	}
	if c.Sync.IntervalMinutes < 0 {
		return fmt.Errorf("sync.interval_minutes must be >= 0, got %d", c.Sync.IntervalMinutes)
	}
	if c.Sync.EventDurationMinutes <= 0 {
		return fmt.Errorf("sync.event_duration_minutes must be > 0, got %d", c.Sync.EventDurationMinutes)
	}
	return nil
}

// Location resolves the scheduler timezone.
func (s SchedulerConfig) Location() (*time.Location, error) {
	if s.Timezone == "" || s.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid scheduler.timezone %q: %w", s.Timezone, err)
	}
	return loc, nil
}
