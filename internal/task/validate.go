package task

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/insuratask/insuratask/internal/store"
)

// ValidDate reports whether s is a YYYY-MM-DD calendar date.
func ValidDate(s string) bool {
	_, err := time.Parse(DateLayout, s)
	return err == nil
}

// ValidTime reports whether s is an HH:MM clock time.
func ValidTime(s string) bool {
	_, err := time.Parse(TimeLayout, s)
	return err == nil
}

// validate checks a fully-populated task after defaults have been applied.
func validate(t *store.Task) error {
	verr := &ValidationError{}

	if strings.TrimSpace(t.Title) == "" {
		verr.add("title", "is required")
	} else if utf8.RuneCountInString(t.Title) > maxTitleLength {
		verr.add("title", fmt.Sprintf("must be at most %d characters", maxTitleLength))
	}
	if utf8.RuneCountInString(t.Description) > maxDescriptionLength {
		verr.add("description", fmt.Sprintf("must be at most %d characters", maxDescriptionLength))
	}
	if !t.Category.Valid() {
		verr.add("category", fmt.Sprintf("must be one of %v", store.Categories))
	}
	if !t.Priority.Valid() {
		verr.add("priority", fmt.Sprintf("must be one of %v", store.Priorities))
	}
	if !t.Status.Valid() {
		verr.add("status", fmt.Sprintf("must be one of %v", store.Statuses))
	}
	if t.DueDate != "" && !ValidDate(t.DueDate) {
		verr.add("dueDate", "must be a date in YYYY-MM-DD format")
	}
	if t.DueTime != "" {
		if !ValidTime(t.DueTime) {
			verr.add("dueTime", "must be a time in HH:MM format")
		} else if t.DueDate == "" {
			verr.add("dueTime", "requires dueDate")
		}
	}
	return verr.orNil()
}
