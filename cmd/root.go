package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/insuratask/insuratask/internal/config"
	"github.com/insuratask/insuratask/internal/logging"
)

// rootCmd represents the base command for the insuratask application
var rootCmd = &cobra.Command{
	Use:   "insuratask",
	Short: "Task manager for insurance agents",
	Long: `insuratask keeps an insurance agent's tasks: policy renewals, claims,
client meetings and follow-ups.

It can run as:
  - An HTTP API server with recurring templates and Google Calendar sync (serve)
  - An MCP (Model Context Protocol) server for AI assistants (mcp)
  - A set of one-shot commands (export, sync, calendar, templates)`,
	SilenceUsage: true,
}

// version will be set by main
var version = "dev"

// globalFlags are the persistent flags shared by every command.
type globalFlags struct {
	configPath string
	logLevel   string
	logFormat  string
	dbPath     string
}

var flags globalFlags

// SetVersion sets the version for the root command
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "insuratask version %s\n" .Version}}`)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	cancel()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "", "Path to the YAML config file (default: "+config.DefaultPath()+")")
	pf.StringVar(&flags.logLevel, "log-level", "", "Log level: debug, info, warn or error. Overrides log.level.")
	pf.StringVar(&flags.logFormat, "log-format", "", "Log format: text or json. Overrides log.format.")
	pf.StringVar(&flags.dbPath, "db", "", "Path to the SQLite database. Overrides database.path.")

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newMCPCmd())
	rootCmd.AddCommand(newExportCmd())
	rootCmd.AddCommand(newSyncCmd())
	rootCmd.AddCommand(newCalendarCmd())
	rootCmd.AddCommand(newTemplatesCmd())
	rootCmd.AddCommand(newGenerateDocsCmd())
	rootCmd.AddCommand(newVersionCmd())
}

// loadConfig reads the config file and environment, then applies the flags
// the user set explicitly on cmd.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, err
	}
	applyGlobalFlags(cmd, cfg, flags)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func applyGlobalFlags(cmd *cobra.Command, cfg *config.Config, f globalFlags) {
	if cmd.Flags().Changed("log-level") {
		cfg.Log.Level = f.logLevel
	}
	if cmd.Flags().Changed("log-format") {
		cfg.Log.Format = f.logFormat
	}
	if cmd.Flags().Changed("db") {
		cfg.Database.Path = f.dbPath
	}
}

// setupLogger installs the configured logger as the slog default. Logs go to
// stderr so they never mix with stdio MCP traffic or exported files.
func setupLogger(cfg *config.Config) (*slog.Logger, error) {
	logger, err := logging.NewLogger(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)
	return logger, nil
}
