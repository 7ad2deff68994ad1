// Package templates manages recurring task templates.
//
// A template carries a title and description with {{name}} placeholders, a
// set of default variables and a recurrence. Executing a template renders the
// placeholders, creates one task and writes one TemplateInstance audit row.
// Recurrences compile to standard 5-field cron expressions that the scheduler
// package fires.
//
// Built-in variables available to every template:
//
//	{{date}}     run date, YYYY-MM-DD
//	{{time}}     run time, HH:MM
//	{{weekday}}  e.g. Monday
//	{{month}}    e.g. June
//	{{year}}     e.g. 2024
//	{{dueDate}}  run date plus the template's due offset
//
// Template variables override built-ins, and per-execution overrides win
// over both. Unknown placeholders are left untouched.
package templates
