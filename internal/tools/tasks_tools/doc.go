// Package tasks_tools provides MCP tools for managing InsuraTask tasks.
//
// # Available Tools
//
// Read-only (always registered):
//   - tasks_list: List tasks with optional filters
//   - tasks_get: Get a single task
//   - tasks_stats: Dashboard statistics
//   - tasks_overdue: Incomplete tasks past their due date
//
// Write (registered with --read-write):
//   - tasks_create: Create a task
//   - tasks_update: Change fields of a task
//   - tasks_toggle_complete: Flip the completed flag
//   - tasks_delete: Delete a task
package tasks_tools
