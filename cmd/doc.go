// Package cmd implements the command-line interface for insuratask.
//
// This package provides the following commands:
//   - serve: Start the HTTP API with the template scheduler and periodic calendar sync
//   - mcp: Start the MCP server to provide task tools for AI assistants
//   - export: Write a PDF, Excel, CSV or iCalendar task report
//   - sync: Run one Google Calendar sync pass
//   - calendar: Connect, inspect and disconnect the Google account
//   - templates: List, run, import and export recurring templates
//   - version: Display version information
package cmd
