// Package calsync keeps tasks and Google Calendar events in step.
//
// A sync pass is a single linear walk: local tasks with a due date are pushed
// to the calendar, remote changes are pulled back, tasks and events changed on
// both sides since the last pass are flagged as conflicts, and mappings whose
// task is gone are removed together with their event. Optionally, events that
// were not created by this program are imported as tasks.
//
// Passes are serialised. A pass started while another one runs fails with
// ErrSyncInProgress rather than waiting.
package calsync
