package templates

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/valyala/fasttemplate"

	"github.com/insuratask/insuratask/internal/store"
	"github.com/insuratask/insuratask/internal/task"
)

const (
	startTag = "{{"
	endTag   = "}}"
)

// Render replaces {{name}} placeholders in text with values from vars.
// Whitespace inside the braces is ignored. Placeholders without a value are
// written back unchanged. An unterminated placeholder is an error.
func Render(text string, vars map[string]string) (string, error) {
	if i := strings.LastIndex(text, startTag); i >= 0 && !strings.Contains(text[i:], endTag) {
		return "", fmt.Errorf("invalid template: unterminated placeholder at offset %d", i)
	}
	out, err := fasttemplate.ExecuteFuncStringWithErr(text, startTag, endTag, func(w io.Writer, tag string) (int, error) {
		if v, ok := vars[strings.TrimSpace(tag)]; ok {
			return io.WriteString(w, v)
		}
		return io.WriteString(w, startTag+tag+endTag)
	})
	if err != nil {
		return "", fmt.Errorf("invalid template: %w", err)
	}
	return out, nil
}

// Placeholders returns the distinct placeholder names used in text.
func Placeholders(text string) []string {
	seen := map[string]bool{}
	var names []string
	_, _ = fasttemplate.ExecuteFuncStringWithErr(text, startTag, endTag, func(w io.Writer, tag string) (int, error) {
		name := strings.TrimSpace(tag)
		if name != "" && !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
		return 0, nil
	})
	return names
}

// Variables builds the variable set for a run at now: built-ins, then the
// template's variables, then overrides.
func Variables(t *store.Template, now time.Time, overrides map[string]string) map[string]string {
	vars := map[string]string{
		"date":    now.Format(task.DateLayout),
		"time":    now.Format(task.TimeLayout),
		"weekday": now.Weekday().String(),
		"month":   now.Month().String(),
		"year":    strconv.Itoa(now.Year()),
		"dueDate": DueDate(t, now),
	}
	for k, v := range t.Variables {
		vars[k] = v
	}
	for k, v := range overrides {
		vars[k] = v
	}
	return vars
}

// DueDate returns the due date of a task created by t at now.
func DueDate(t *store.Template, now time.Time) string {
	return now.AddDate(0, 0, t.DueOffsetDays).Format(task.DateLayout)
}
