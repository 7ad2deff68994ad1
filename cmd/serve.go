package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/insuratask/insuratask/internal/api"
	"github.com/insuratask/insuratask/internal/calsync"
	"github.com/insuratask/insuratask/internal/config"
	"github.com/insuratask/insuratask/internal/logging"
	"github.com/insuratask/insuratask/internal/scheduler"
	"github.com/insuratask/insuratask/internal/server"
)

// Names of the scheduler jobs owned by serve.
const (
	jobCalendarSync = "calendar-sync"
	jobOverdueSweep = "overdue-sweep"
)

// serveFlags are the serve-only overrides of the config file.
type serveFlags struct {
	addr           string
	corsOrigins    string
	metricsEnabled bool
	metricsAddr    string
	noScheduler    bool
}

func newServeCmd() *cobra.Command {
	var sf serveFlags

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		Long: `Start the InsuraTask HTTP API used by the web frontend.

The server also runs:
  - the recurring template scheduler (disable with --no-scheduler)
  - periodic Google Calendar sync when enabled in the sync settings
  - the optional overdue sweep (scheduler.overdue_sweep cron spec)
  - a Prometheus metrics endpoint on a dedicated port (--metrics-enabled)

Health endpoints: /healthz, /readyz, /healthz/detailed`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			applyServeFlags(cmd, cfg, sf)
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			return runServe(cfg)
		},
	}

	cmd.Flags().StringVar(&sf.addr, "addr", "", "HTTP listen address, e.g. :3001. Overrides server.addr.")
	cmd.Flags().StringVar(&sf.corsOrigins, "cors-origins", "", "Comma-separated allowed CORS origins, or * for any. Overrides server.cors_origins.")
	cmd.Flags().BoolVar(&sf.metricsEnabled, "metrics-enabled", false, "Serve Prometheus metrics on a dedicated port. Overrides metrics.enabled.")
	cmd.Flags().StringVar(&sf.metricsAddr, "metrics-addr", "", "Metrics server address, e.g. :9090. Overrides metrics.addr.")
	cmd.Flags().BoolVar(&sf.noScheduler, "no-scheduler", false, "Do not run recurring templates or scheduled jobs.")

	return cmd
}

// applyServeFlags applies only the flags that were set explicitly so the
// config file and environment keep their say otherwise.
func applyServeFlags(cmd *cobra.Command, cfg *config.Config, sf serveFlags) {
	if cmd.Flags().Changed("addr") {
		cfg.Server.Addr = sf.addr
	}
	if cmd.Flags().Changed("cors-origins") {
		cfg.Server.CORSOrigins = parseCommaSeparatedList(sf.corsOrigins)
	}
	if cmd.Flags().Changed("metrics-enabled") {
		cfg.Metrics.Enabled = sf.metricsEnabled
	}
	if cmd.Flags().Changed("metrics-addr") {
		cfg.Metrics.Addr = sf.metricsAddr
	}
	if cmd.Flags().Changed("no-scheduler") {
		cfg.Scheduler.Enabled = !sf.noScheduler
	}
}

func runServe(cfg *config.Config) error {
	// Setup graceful shutdown
	shutdownCtx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger, err := setupLogger(cfg)
	if err != nil {
		return err
	}
	if strings.EqualFold(cfg.Log.Level, "debug") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	a, err := newApp(shutdownCtx, cfg, logger, appOptions{instrumentation: true})
	if err != nil {
		return err
	}
	defer a.Close()

	if cfg.Scheduler.Enabled {
		if err := startScheduler(shutdownCtx, a); err != nil {
			return err
		}
	} else {
		logger.Info("scheduler disabled; recurring templates and periodic sync will not run")
	}

	// Start metrics server if enabled
	var metricsServer *server.MetricsServer
	if cfg.Metrics.Enabled {
		metricsServer, err = server.NewMetricsServer(server.MetricsServerConfig{
			Addr:                    cfg.Metrics.Addr,
			InstrumentationProvider: a.provider,
			Logger:                  logger,
		})
		if err != nil {
			return fmt.Errorf("failed to create metrics server: %w", err)
		}
		go func() {
			if err := metricsServer.Start(); err != nil {
				logger.Error("metrics server stopped", logging.Err(err))
			}
		}()
	}

	router := api.NewRouter(api.Services{
		Tasks:     a.tasks,
		Templates: a.templates,
		Export:    a.export,
		Sync:      a.sync,
		Auth:      a.tokens,
	}, api.Config{
		Logger:      logger,
		Metrics:     a.provider.Metrics(),
		CORSOrigins: cfg.Server.CORSOrigins,
		States:      a.oauthStore,
	})

	health := server.NewHealthChecker(a.db, version)
	httpServer := server.NewHTTPServer(cfg.Server, router, health, logger)

	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := httpServer.Start(); err != nil {
			serverDone <- err
		}
	}()

	logger.Info("insuratask API listening",
		slog.String("addr", cfg.Server.Addr),
		slog.String("version", version),
		slog.Bool("metrics", cfg.Metrics.Enabled),
		slog.Bool("google_configured", a.tokens.Configured()))

	var runErr error
	select {
	case <-shutdownCtx.Done():
		logger.Info("shutdown signal received, stopping server")
	case err := <-serverDone:
		if err != nil {
			runErr = fmt.Errorf("HTTP server stopped with error: %w", err)
		}
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer stopCancel()

	var errs []error
	if runErr != nil {
		errs = append(errs, runErr)
	}
	if err := httpServer.Shutdown(stopCtx); err != nil {
		errs = append(errs, fmt.Errorf("error shutting down HTTP server: %w", err))
	}
	if cfg.Scheduler.Enabled {
		if err := a.scheduler.Stop(stopCtx); err != nil {
			errs = append(errs, err)
		}
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(stopCtx); err != nil {
			errs = append(errs, fmt.Errorf("error shutting down metrics server: %w", err))
		}
	}

	if err := errors.Join(errs...); err != nil {
		return err
	}
	logger.Info("server gracefully stopped")
	return nil
}

// startScheduler loads the enabled templates, registers the background
// jobs and starts the cron loop.
func startScheduler(ctx context.Context, a *app) error {
	n, err := a.scheduler.Reload(ctx)
	if err != nil {
		// A template with a bad recurrence must not keep the others from running.
		a.logger.Warn("some templates could not be scheduled", logging.Err(err), slog.Int("registered", n))
	}

	if spec := a.cfg.Scheduler.OverdueSweep; spec != "" {
		err := a.scheduler.AddJob(jobOverdueSweep, spec, func(ctx context.Context) error {
			n, err := a.tasks.SweepOverdue(ctx)
			if err != nil {
				return err
			}
			if n > 0 {
				a.logger.Info("overdue tasks marked", slog.Int64("count", n))
			}
			return nil
		})
		if err != nil {
			return err
		}
	}

	settings, err := a.sync.Settings(ctx)
	if err != nil {
		return err
	}
	if err := scheduleSync(a.scheduler, a.sync, settings); err != nil {
		return err
	}
	a.sync.OnSettingsChange(func(s calsync.Settings) {
		if err := scheduleSync(a.scheduler, a.sync, s); err != nil {
			a.logger.Error("failed to reschedule calendar sync", logging.Err(err))
		}
	})

	a.scheduler.Start()
	return nil
}

// syncJobs is the part of the scheduler scheduleSync drives.
type syncJobs interface {
	AddJob(name, spec string, fn func(ctx context.Context) error) error
	RemoveJob(name string)
}

// scheduleSync keeps the periodic sync job in step with settings: it runs
// every IntervalMinutes while periodic sync is enabled and is removed
// otherwise.
func scheduleSync(jobs syncJobs, svc *calsync.Service, settings calsync.Settings) error {
	if !settings.Enabled || settings.IntervalMinutes <= 0 {
		jobs.RemoveJob(jobCalendarSync)
		return nil
	}
	return jobs.AddJob(jobCalendarSync, scheduler.EveryMinutes(settings.IntervalMinutes), svc.RunScheduled)
}

// parseCommaSeparatedList parses a comma-separated string into a slice,
// trimming whitespace from each element and filtering out empty strings.
// Returns nil if the input is empty or contains only whitespace/commas.
func parseCommaSeparatedList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	if len(result) == 0 {
		return nil
	}
	return result
}
