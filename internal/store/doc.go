// Package store persists InsuraTask data in SQLite.
//
// The schema is bootstrapped with CREATE TABLE IF NOT EXISTS on open; there is
// no migration framework. Every method is a single statement, so atomicity
// never spans more than one row change. Callers needing read-modify-write
// semantics (task updates, sync bookkeeping) accept that another writer may
// interleave.
//
// Tables:
//
//   - tasks: the agent's to-do items
//   - templates / template_instances: recurring task definitions and their
//     execution audit trail
//   - task_calendar_mappings: links a task to its Google Calendar event
//   - settings: JSON key/value rows (calendar sync settings, OAuth token)
package store
