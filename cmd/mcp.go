package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/insuratask/insuratask/internal/tools/calendar_tools"
	"github.com/insuratask/insuratask/internal/tools/common"
	"github.com/insuratask/insuratask/internal/tools/tasks_tools"
	"github.com/insuratask/insuratask/internal/tools/templates_tools"
)

func newMCPCmd() *cobra.Command {
	var (
		transport string
		httpAddr  string
		readWrite bool
	)

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start the MCP server",
		Long: `Start the Model Context Protocol (MCP) server so AI assistants can read
and manage tasks, run templates and trigger a calendar sync.

Supports multiple transport types:
  - stdio: Standard input/output (default)
  - streamable-http: Streamable HTTP transport on --http-addr

Safety Mode:
  By default the server only registers read tools. Use --read-write to
  enable tools that create, change or delete tasks.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, appOptions{instrumentation: transport != "stdio"}, func(ctx context.Context, a *app) error {
				return runMCP(ctx, a, transport, httpAddr, !readWrite)
			})
		},
	}

	cmd.Flags().StringVar(&transport, "transport", "stdio", "Transport type: stdio or streamable-http")
	cmd.Flags().StringVar(&httpAddr, "http-addr", ":8080", "HTTP server address (for streamable-http transport)")
	cmd.Flags().BoolVar(&readWrite, "read-write", false, "Enable write tools (create, update, delete, execute, sync). Default is read-only mode.")

	return cmd
}

func runMCP(ctx context.Context, a *app, transport, httpAddr string, readOnly bool) error {
	mcpSrv := newMCPServer()

	// Log the mode for visibility (only for non-stdio transports)
	if transport != "stdio" {
		if readOnly {
			a.logger.Info("starting MCP server in READ-ONLY mode (use --read-write to enable write tools)")
		} else {
			a.logger.Info("starting MCP server with WRITE tools enabled")
		}
	}

	if err := registerAllTools(mcpSrv, a, toolsInstrumentation(a), readOnly); err != nil {
		return err
	}

	switch transport {
	case "stdio":
		return runStdioServer(mcpSrv)
	case "streamable-http":
		return runStreamableHTTPServer(ctx, mcpSrv, httpAddr, a.logger)
	default:
		return fmt.Errorf("unsupported transport type: %s (supported: stdio, streamable-http)", transport)
	}
}

func newMCPServer() *mcpserver.MCPServer {
	return mcpserver.NewMCPServer("insuratask", version,
		mcpserver.WithToolCapabilities(true),
	)
}

func runStdioServer(mcpSrv *mcpserver.MCPServer) error {
	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := mcpserver.ServeStdio(mcpSrv); err != nil {
			serverDone <- err
		}
	}()

	err := <-serverDone
	if err != nil {
		return fmt.Errorf("server stopped with error: %w", err)
	}
	return nil
}

func runStreamableHTTPServer(ctx context.Context, mcpSrv *mcpserver.MCPServer, addr string, logger *slog.Logger) error {
	httpSrv := mcpserver.NewStreamableHTTPServer(mcpSrv)

	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := httpSrv.Start(addr); err != nil {
			serverDone <- err
		}
	}()
	logger.Info("MCP streamable HTTP server listening", slog.String("addr", addr), slog.String("endpoint", "/mcp"))

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received, stopping MCP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("error shutting down MCP server: %w", err)
		}
	case err := <-serverDone:
		if err != nil {
			return fmt.Errorf("MCP server stopped with error: %w", err)
		}
	}
	return nil
}

// registerAllTools registers every MCP tool group.
func registerAllTools(mcpSrv *mcpserver.MCPServer, a *app, inst common.Instrumentation, readOnly bool) error {
	// Define all tool registrations
	type toolRegistration struct {
		name     string
		register func() error
	}

	registrations := []toolRegistration{
		{
			name: "Tasks",
			register: func() error {
				return tasks_tools.RegisterTasksTools(mcpSrv, a.tasks, inst, readOnly)
			},
		},
		{
			name: "Templates",
			register: func() error {
				return templates_tools.RegisterTemplatesTools(mcpSrv, a.templates, inst, readOnly)
			},
		},
		{
			name: "Calendar",
			register: func() error {
				return calendar_tools.RegisterCalendarTools(mcpSrv, a.sync, inst, readOnly)
			},
		},
	}

	// Register all tools
	for _, reg := range registrations {
		if err := reg.register(); err != nil {
			return fmt.Errorf("failed to register %s: %w", reg.name, err)
		}
	}

	return nil
}
