// Package templates_tools provides MCP tools for recurring task templates.
//
//   - templates_list: List templates with their schedule and next run
//   - templates_execute: Run a template now (write)
package templates_tools
