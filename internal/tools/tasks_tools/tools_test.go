package tasks_tools

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insuratask/insuratask/internal/store"
	"github.com/insuratask/insuratask/internal/task"
	"github.com/insuratask/insuratask/internal/tools/common"
)

var fixedNow = time.Date(2024, 6, 15, 9, 30, 0, 0, time.UTC)

func newService(t *testing.T) *task.Service {
	t.Helper()
	db, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "tools.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	svc := task.NewService(db, task.Config{Location: time.UTC})
	svc.SetClock(func() time.Time { return fixedNow })
	return svc
}

func toolsByName(tools []mcpserver.ServerTool) map[string]mcpserver.ServerTool {
	out := map[string]mcpserver.ServerTool{}
	for _, t := range tools {
		out[t.Tool.Name] = t
	}
	return out
}

func call(t *testing.T, tools map[string]mcpserver.ServerTool, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	tl, ok := tools[name]
	require.True(t, ok, "tool %s not registered", name)
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	res, err := tl.Handler(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, res)
	return res
}

func text(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, res.Content)
	tc, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return tc.Text
}

func TestTools_ReadOnly(t *testing.T) {
	tools := toolsByName(Tools(newService(t), common.Instrumentation{}, true))

	assert.Contains(t, tools, "tasks_list")
	assert.Contains(t, tools, "tasks_get")
	assert.Contains(t, tools, "tasks_stats")
	assert.Contains(t, tools, "tasks_overdue")
	assert.NotContains(t, tools, "tasks_create")
	assert.NotContains(t, tools, "tasks_delete")
}

func TestTools_Lifecycle(t *testing.T) {
	tools := toolsByName(Tools(newService(t), common.Instrumentation{}, false))

	res := call(t, tools, "tasks_create", map[string]interface{}{
		"title":    "Renew Acme fleet policy",
		"category": "policy_renewal",
		"priority": "high",
		"dueDate":  "2024-06-14",
	})
	require.False(t, res.IsError, text(t, res))
	var created store.Task
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &created))
	assert.Equal(t, store.PriorityHigh, created.Priority)

	res = call(t, tools, "tasks_get", map[string]interface{}{"id": float64(created.ID)})
	require.False(t, res.IsError)
	assert.Contains(t, text(t, res), "Renew Acme fleet policy")

	res = call(t, tools, "tasks_overdue", nil)
	assert.Contains(t, text(t, res), `"count": 1`)

	res = call(t, tools, "tasks_update", map[string]interface{}{"id": float64(created.ID), "client": "Acme"})
	require.False(t, res.IsError, text(t, res))
	assert.Contains(t, text(t, res), `"client": "Acme"`)

	res = call(t, tools, "tasks_toggle_complete", map[string]interface{}{"id": "1"})
	require.False(t, res.IsError, text(t, res))
	assert.Contains(t, text(t, res), `"completed": true`)

	res = call(t, tools, "tasks_list", map[string]interface{}{"completed": true})
	assert.Contains(t, text(t, res), `"count": 1`)

	res = call(t, tools, "tasks_stats", nil)
	assert.Contains(t, text(t, res), `"completionRate": 1`)

	res = call(t, tools, "tasks_delete", map[string]interface{}{"id": float64(created.ID)})
	require.False(t, res.IsError)

	res = call(t, tools, "tasks_get", map[string]interface{}{"id": float64(created.ID)})
	assert.True(t, res.IsError)
	assert.Contains(t, text(t, res), "not found")
}

func TestTools_Errors(t *testing.T) {
	tools := toolsByName(Tools(newService(t), common.Instrumentation{}, false))

	tests := []struct {
		name string
		tool string
		args map[string]interface{}
		want string
	}{
		{"missing title", "tasks_create", map[string]interface{}{"category": "claims"}, "title is required"},
		{"invalid category", "tasks_create", map[string]interface{}{"title": "x", "category": "marine"}, "Invalid input"},
		{"missing id", "tasks_get", nil, "id must be a positive integer"},
		{"fractional id", "tasks_delete", map[string]interface{}{"id": 1.5}, "id must be an integer"},
		{"empty update", "tasks_update", map[string]interface{}{"id": float64(1)}, "no fields to update"},
		{"bad completed", "tasks_list", map[string]interface{}{"completed": "maybe"}, "completed must be a boolean"},
		{"bad date", "tasks_list", map[string]interface{}{"dueFrom": "soon"}, "dueFrom must be a date"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := call(t, tools, tt.tool, tt.args)
			assert.True(t, res.IsError)
			assert.Contains(t, text(t, res), tt.want)
		})
	}
}

func TestRegisterTasksTools(t *testing.T) {
	s := mcpserver.NewMCPServer("test", "0.0.0", mcpserver.WithToolCapabilities(true))
	require.NoError(t, RegisterTasksTools(s, newService(t), common.Instrumentation{}, true))
	assert.Error(t, RegisterTasksTools(s, nil, common.Instrumentation{}, true))
}
