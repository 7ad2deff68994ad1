// Package task implements the task service: validation, defaults, the
// completed/completedAt invariant, partial updates, completion toggling,
// query-time overdue detection, statistics and the monthly calendar view.
//
// Persistence is delegated to a Repository (implemented by internal/store).
package task
