package calsync

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/insuratask/insuratask/internal/config"
	"github.com/insuratask/insuratask/internal/logging"
	"github.com/insuratask/insuratask/internal/store"
	"github.com/insuratask/insuratask/internal/task"
)

// Direction selects which side a pass writes to.
type Direction string

const (
	DirectionBoth Direction = "both"
	DirectionPush Direction = "push"
	DirectionPull Direction = "pull"
)

// ConflictRule decides conflicts without user input.
type ConflictRule string

const (
	// RuleManual leaves conflicts flagged until Resolve is called.
	RuleManual ConflictRule = "manual"
	// RuleLocal keeps the task.
	RuleLocal ConflictRule = "local"
	// RuleRemote keeps the event.
	RuleRemote ConflictRule = "remote"
	// RuleNewest keeps whichever side changed last.
	RuleNewest ConflictRule = "newest"
)

// Settings are the persisted sync preferences.
type Settings struct {
	// Enabled turns on the periodic pass. Manual passes run regardless.
	Enabled              bool         `json:"enabled"`
	CalendarID           string       `json:"calendarId"`
	Direction            Direction    `json:"direction"`
	ConflictResolution   ConflictRule `json:"conflictResolution"`
	ImportEvents         bool         `json:"importEvents"`
	IntervalMinutes      int          `json:"intervalMinutes"`
	LookbackDays         int          `json:"lookbackDays"`
	LookaheadDays        int          `json:"lookaheadDays"`
	EventDurationMinutes int          `json:"eventDurationMinutes"`
	LastSyncAt           *time.Time   `json:"lastSyncAt"`
}

// DefaultSettings derives the initial settings from configuration.
func DefaultSettings(cfg config.SyncConfig) Settings {
	s := Settings{
		Enabled:              cfg.IntervalMinutes > 0,
		CalendarID:           cfg.CalendarID,
		Direction:            Direction(cfg.Direction),
		ConflictResolution:   ConflictRule(cfg.ConflictResolution),
		ImportEvents:         cfg.ImportEvents,
		IntervalMinutes:      cfg.IntervalMinutes,
		LookbackDays:         cfg.LookbackDays,
		LookaheadDays:        cfg.LookaheadDays,
		EventDurationMinutes: cfg.EventDurationMinutes,
	}
	if s.CalendarID == "" {
		s.CalendarID = "primary"
	}
	if s.Direction == "" {
		s.Direction = DirectionBoth
	}
	if s.ConflictResolution == "" {
		s.ConflictResolution = RuleManual
	}
	if s.EventDurationMinutes <= 0 {
		s.EventDurationMinutes = 30
	}
	return s
}

// Validate reports invalid fields as a *task.ValidationError.
func (s Settings) Validate() error {
	verr := &task.ValidationError{Fields: map[string]string{}}

	if strings.TrimSpace(s.CalendarID) == "" {
		verr.Fields["calendarId"] = "is required"
	}
	switch s.Direction {
	case DirectionBoth, DirectionPush, DirectionPull:
	default:
		verr.Fields["direction"] = "must be one of both, push, pull"
	}
	switch s.ConflictResolution {
	case RuleManual, RuleLocal, RuleRemote, RuleNewest:
	default:
		verr.Fields["conflictResolution"] = "must be one of manual, local, remote, newest"
	}
	if s.IntervalMinutes < 0 {
		verr.Fields["intervalMinutes"] = "must not be negative"
	}
	if s.Enabled && s.IntervalMinutes == 0 {
		verr.Fields["intervalMinutes"] = "must be positive when periodic sync is enabled"
	}
	if s.LookbackDays < 0 {
		verr.Fields["lookbackDays"] = "must not be negative"
	}
	if s.LookaheadDays <= 0 {
		verr.Fields["lookaheadDays"] = "must be positive"
	}
	if s.EventDurationMinutes <= 0 || s.EventDurationMinutes > 24*60 {
		verr.Fields["eventDurationMinutes"] = "must be between 1 and 1440"
	}

	if len(verr.Fields) > 0 {
		return verr
	}
	return nil
}

func (s Settings) canPush() bool { return s.Direction != DirectionPull }
func (s Settings) canPull() bool { return s.Direction != DirectionPush }

func (s Settings) eventDuration() time.Duration {
	return time.Duration(s.EventDurationMinutes) * time.Minute
}

// Settings returns the persisted settings, or the configured defaults when
// none were saved yet.
func (s *Service) Settings(ctx context.Context) (Settings, error) {
	settings := s.defaults
	ok, err := s.repo.GetSetting(ctx, store.SettingCalendarSync, &settings)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to load sync settings: %w", err)
	}
	if !ok {
		return s.defaults, nil
	}
	return settings, nil
}

// EventDuration returns the length of timed events written by the sync. The
// configured default is used when the settings cannot be read.
func (s *Service) EventDuration(ctx context.Context) time.Duration {
	settings, err := s.Settings(ctx)
	if err != nil {
		s.logger.Warn("falling back to the default event duration", logging.Err(err))
		return s.defaults.eventDuration()
	}
	return settings.eventDuration()
}

// UpdateSettings validates and stores settings. LastSyncAt is owned by the
// sync pass and cannot be changed here.
func (s *Service) UpdateSettings(ctx context.Context, settings Settings) (Settings, error) {
	if err := settings.Validate(); err != nil {
		return Settings{}, err
	}

	current, err := s.Settings(ctx)
	if err != nil {
		return Settings{}, err
	}
	settings.LastSyncAt = current.LastSyncAt

	if err := s.repo.PutSetting(ctx, store.SettingCalendarSync, settings); err != nil {
		return Settings{}, fmt.Errorf("failed to save sync settings: %w", err)
	}

	s.logger.Info("sync settings updated",
		slog.String("calendar_id", settings.CalendarID),
		slog.String("direction", string(settings.Direction)),
		slog.Bool("periodic", settings.Enabled),
		slog.Int("interval_minutes", settings.IntervalMinutes))

	s.hookMu.Lock()
	hooks := append([]func(Settings){}, s.hooks...)
	s.hookMu.Unlock()
	for _, fn := range hooks {
		fn(settings)
	}
	return settings, nil
}

// OnSettingsChange registers fn to run after every successful UpdateSettings.
func (s *Service) OnSettingsChange(fn func(Settings)) {
	s.hookMu.Lock()
	defer s.hookMu.Unlock()
	s.hooks = append(s.hooks, fn)
}

func (s *Service) recordLastSync(ctx context.Context, at time.Time) error {
	settings, err := s.Settings(ctx)
	if err != nil {
		return err
	}
	at = at.UTC()
	settings.LastSyncAt = &at
	return s.repo.PutSetting(ctx, store.SettingCalendarSync, settings)
}
