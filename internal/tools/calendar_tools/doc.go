// Package calendar_tools provides MCP tools for the Google Calendar sync.
//
//   - calendar_status: Connection state, sync settings and mapping counts
//   - calendar_conflicts: Tasks whose calendar event diverged
//   - calendar_sync: Run one sync pass now (write)
package calendar_tools
