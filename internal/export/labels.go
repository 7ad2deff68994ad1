package export

import (
	"strings"

	"github.com/insuratask/insuratask/internal/store"
)

var categoryLabels = map[store.Category]string{
	store.CategoryPolicyRenewal:  "Policy Renewal",
	store.CategoryClaims:         "Claims",
	store.CategoryClientMeeting:  "Client Meeting",
	store.CategoryFollowUp:       "Follow-up",
	store.CategoryAdministrative: "Administrative",
}

func categoryLabel(c store.Category) string {
	if l, ok := categoryLabels[c]; ok {
		return l
	}
	return string(c)
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func dueLabel(t store.Task) string {
	if t.DueDate == "" {
		return "-"
	}
	if t.DueTime != "" {
		return t.DueDate + " " + t.DueTime
	}
	return t.DueDate
}
