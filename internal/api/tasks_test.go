package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insuratask/insuratask/internal/store"
	"github.com/insuratask/insuratask/internal/task"
)

func TestTasks_ListOverdueOnly(t *testing.T) {
	f := newFixture(t)

	late := f.createTask(t, task.CreateInput{Title: "Chase Acme claim", Category: store.CategoryClaims, DueDate: "2024-06-10"})
	f.createTask(t, task.CreateInput{Title: "Call Globex", Category: store.CategoryFollowUp, DueDate: "2024-06-15"})
	f.createTask(t, task.CreateInput{Title: "Renew Initech", Category: store.CategoryPolicyRenewal, DueDate: "2024-06-20"})
	f.createTask(t, task.CreateInput{Title: "Tidy files", Category: store.CategoryAdministrative})
	done := f.createTask(t, task.CreateInput{Title: "Old renewal", Category: store.CategoryPolicyRenewal, DueDate: "2024-06-01"})
	rec := f.do(t, http.MethodPatch, "/api/tasks/"+itoa(done.ID)+"/toggle", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{"overdue", "?overdue=true", []string{"Chase Acme claim"}},
		{"overdue with other filters", "?overdue=true&category=follow_up", nil},
		{"not overdue", "?overdue=false", []string{"Old renewal", "Chase Acme claim", "Call Globex", "Renew Initech", "Tidy files"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodGet, "/api/tasks"+tt.query, nil)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			body := decode[listBody[store.Task]](t, rec)

			var got []string
			for _, tk := range body.Data {
				got = append(got, tk.Title)
			}
			assert.Equal(t, tt.want, got)
			assert.Equal(t, len(tt.want), body.Count)
		})
	}

	rec = f.do(t, http.MethodGet, "/api/tasks?overdue=true", nil)
	body := decode[listBody[store.Task]](t, rec)
	require.Len(t, body.Data, 1)
	assert.Equal(t, late.ID, body.Data[0].ID)

	rec = f.do(t, http.MethodGet, "/api/tasks?overdue=maybe", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
