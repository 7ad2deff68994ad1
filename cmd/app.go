package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/giantswarm/mcp-oauth/storage/memory"
	"github.com/spf13/cobra"

	"github.com/insuratask/insuratask/internal/calendar"
	"github.com/insuratask/insuratask/internal/calsync"
	"github.com/insuratask/insuratask/internal/config"
	"github.com/insuratask/insuratask/internal/export"
	"github.com/insuratask/insuratask/internal/google"
	"github.com/insuratask/insuratask/internal/instrumentation"
	"github.com/insuratask/insuratask/internal/logging"
	"github.com/insuratask/insuratask/internal/scheduler"
	"github.com/insuratask/insuratask/internal/store"
	"github.com/insuratask/insuratask/internal/task"
	"github.com/insuratask/insuratask/internal/templates"
)

// app holds the services every command is built from.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	loc      *time.Location
	db       *store.DB
	provider *instrumentation.Provider
	audit    *instrumentation.AuditLogger

	// oauthStore caches Google tokens and holds pending OAuth states.
	oauthStore *memory.Store

	tokens    *google.TokenProvider
	tasks     *task.Service
	templates *templates.Service
	export    *export.Service
	sync      *calsync.Service
	scheduler *scheduler.Scheduler

	closers []func() error
}

// appOptions selects the optional parts of an app.
type appOptions struct {
	// instrumentation starts the OpenTelemetry provider. One-shot commands
	// leave it off and record into no-op instruments.
	instrumentation bool
}

// newApp opens the database and wires the services.
func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts appOptions) (*app, error) {
	loc, err := cfg.Scheduler.Location()
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger, loc: loc}

	instrConfig := instrumentation.DefaultConfig()
	instrConfig.ServiceVersion = version
	if !opts.instrumentation {
		instrConfig.Enabled = false
	}
	provider, err := instrumentation.NewProvider(ctx, instrConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create instrumentation provider: %w", err)
	}
	a.provider = provider
	a.closers = append(a.closers, func() error {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return provider.Shutdown(shutdownCtx)
	})
	a.audit = instrumentation.NewAuditLogger(logger, instrConfig.AuditEnabled)
	metrics := provider.Metrics()

	db, err := store.Open(ctx, cfg.Database.Path)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.db = db
	a.closers = append(a.closers, db.Close)

	oauthConf, err := google.NewOAuthConfig(cfg.Google)
	if err != nil && !errors.Is(err, google.ErrNotConfigured) {
		a.Close()
		return nil, err
	}
	cache := memory.New()
	a.closers = append(a.closers, func() error {
		cache.Stop()
		return nil
	})
	a.oauthStore = cache
	a.tokens = google.NewTokenProvider(db, cache, oauthConf, logger)

	a.tasks = task.NewService(db, task.Config{
		Logger:   logger,
		Metrics:  metrics,
		Audit:    a.audit,
		Location: loc,
	})
	a.templates = templates.NewService(db, a.tasks, templates.Config{
		Logger:   logger,
		Metrics:  metrics,
		Location: loc,
	})
	a.export = export.NewService(a.tasks, loc)

	events := func(ctx context.Context) (calendar.EventService, error) {
		httpClient, err := a.tokens.HTTPClient(ctx)
		if err != nil {
			return nil, err
		}
		client, err := calendar.NewClient(ctx, httpClient, metrics)
		if err != nil {
			return nil, err
		}
		return client, nil
	}
	a.sync = calsync.NewService(db, a.tasks, a.tokens, events, calsync.Config{
		Logger:   logger,
		Metrics:  metrics,
		Location: loc,
		Defaults: cfg.Sync,
	})

	a.export.SetEventDuration(a.sync.EventDuration)

	a.scheduler = scheduler.New(a.templates, a.templates, scheduler.Config{
		Logger:     logger,
		Location:   loc,
		JobTimeout: 10 * time.Minute,
	})
	a.templates.SetScheduler(a.scheduler)

	logger.Debug("application initialised",
		slog.String("database", cfg.Database.Path),
		slog.String("timezone", loc.String()),
		slog.Bool("google_configured", a.tokens.Configured()))
	return a, nil
}

// Close releases everything newApp opened, last opened first.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	if err := errors.Join(errs...); err != nil {
		a.logger.Warn("shutdown finished with errors", logging.Err(err))
		return err
	}
	return nil
}

// withApp loads configuration, builds an app for the duration of fn and
// closes it afterwards.
func withApp(cmd *cobra.Command, opts appOptions, fn func(ctx context.Context, a *app) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := setupLogger(cfg)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := newApp(ctx, cfg, logger, opts)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}
