package tasks_tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/insuratask/insuratask/internal/store"
	"github.com/insuratask/insuratask/internal/task"
	"github.com/insuratask/insuratask/internal/tools/common"
)

func categoryNames() []string {
	out := make([]string, len(store.Categories))
	for i, c := range store.Categories {
		out[i] = string(c)
	}
	return out
}

func priorityNames() []string {
	out := make([]string, len(store.Priorities))
	for i, p := range store.Priorities {
		out[i] = string(p)
	}
	return out
}

func statusNames() []string {
	out := make([]string, len(store.Statuses))
	for i, s := range store.Statuses {
		out[i] = string(s)
	}
	return out
}

// Tools returns the task tools. Write tools are left out when readOnly is set.
func Tools(svc *task.Service, inst common.Instrumentation, readOnly bool) []mcpserver.ServerTool {
	tools := []mcpserver.ServerTool{
		listTool(svc, inst),
		getTool(svc, inst),
		statsTool(svc, inst),
		overdueTool(svc, inst),
	}
	if !readOnly {
		tools = append(tools,
			createTool(svc, inst),
			updateTool(svc, inst),
			toggleTool(svc, inst),
			deleteTool(svc, inst),
		)
	}
	return tools
}

// RegisterTasksTools registers the task tools with the MCP server.
func RegisterTasksTools(s *mcpserver.MCPServer, svc *task.Service, inst common.Instrumentation, readOnly bool) error {
	if svc == nil {
		return fmt.Errorf("task service is required")
	}
	s.AddTools(Tools(svc, inst, readOnly)...)
	return nil
}

func tool(name string, inst common.Instrumentation, t mcp.Tool, h mcpserver.ToolHandlerFunc) mcpserver.ServerTool {
	return mcpserver.ServerTool{Tool: t, Handler: common.InstrumentedToolHandler(name, inst, h)}
}

func listTool(svc *task.Service, inst common.Instrumentation) mcpserver.ServerTool {
	t := mcp.NewTool("tasks_list",
		mcp.WithDescription("List tasks. All filters are optional and combined with AND."),
		mcp.WithString("status", mcp.Description("Filter by status"), mcp.Enum(statusNames()...)),
		mcp.WithString("category", mcp.Description("Filter by category"), mcp.Enum(categoryNames()...)),
		mcp.WithString("priority", mcp.Description("Filter by priority"), mcp.Enum(priorityNames()...)),
		mcp.WithString("client", mcp.Description("Filter by client name (exact, case-insensitive)")),
		mcp.WithBoolean("completed", mcp.Description("Filter by completion")),
		mcp.WithString("search", mcp.Description("Substring to look for in title, description and client")),
		mcp.WithString("dueFrom", mcp.Description("Earliest due date, YYYY-MM-DD")),
		mcp.WithString("dueTo", mcp.Description("Latest due date, YYYY-MM-DD")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of tasks to return")),
	)
	return tool("tasks_list", inst, t, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := request.GetArguments()

		f := store.TaskFilter{}
		if v, ok := common.StringArg(args, "status"); ok {
			f.Status = store.Status(v)
		}
		if v, ok := common.StringArg(args, "category"); ok {
			f.Category = store.Category(v)
		}
		if v, ok := common.StringArg(args, "priority"); ok {
			f.Priority = store.Priority(v)
		}
		f.Client, _ = common.StringArg(args, "client")
		f.Search, _ = common.StringArg(args, "search")
		f.DueFrom, _ = common.StringArg(args, "dueFrom")
		f.DueTo, _ = common.StringArg(args, "dueTo")

		completed, err := common.BoolArg(args, "completed")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		f.Completed = completed

		limit, _, err := common.IntArg(args, "limit")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		f.Limit = int(limit)

		for key, date := range map[string]string{"dueFrom": f.DueFrom, "dueTo": f.DueTo} {
			if date != "" && !task.ValidDate(date) {
				return mcp.NewToolResultError(fmt.Sprintf("%s must be a date in YYYY-MM-DD format", key)), nil
			}
		}

		tasks, err := svc.List(ctx, f)
		if err != nil {
			return common.ErrorResult("list tasks", err), nil
		}
		return common.JSONResult(map[string]interface{}{"tasks": nonNil(tasks), "count": len(tasks)})
	})
}

func getTool(svc *task.Service, inst common.Instrumentation) mcpserver.ServerTool {
	t := mcp.NewTool("tasks_get",
		mcp.WithDescription("Get a task by id"),
		mcp.WithNumber("id", mcp.Required(), mcp.Description("Task id")),
	)
	return tool("tasks_get", inst, t, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := common.RequiredID(request.GetArguments(), "id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		found, err := svc.Get(ctx, id)
		if err != nil {
			return common.ErrorResult(fmt.Sprintf("get task %d", id), err), nil
		}
		return common.JSONResult(found)
	})
}

func statsTool(svc *task.Service, inst common.Instrumentation) mcpserver.ServerTool {
	t := mcp.NewTool("tasks_stats",
		mcp.WithDescription("Task statistics: totals, overdue, due today, completion rate and breakdowns by category, priority and status"),
	)
	return tool("tasks_stats", inst, t, func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		st, err := svc.Stats(ctx)
		if err != nil {
			return common.ErrorResult("compute stats", err), nil
		}
		return common.JSONResult(st)
	})
}

func overdueTool(svc *task.Service, inst common.Instrumentation) mcpserver.ServerTool {
	t := mcp.NewTool("tasks_overdue",
		mcp.WithDescription("List incomplete tasks whose due date has passed"),
	)
	return tool("tasks_overdue", inst, t, func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		tasks, err := svc.Overdue(ctx)
		if err != nil {
			return common.ErrorResult("list overdue tasks", err), nil
		}
		return common.JSONResult(map[string]interface{}{"tasks": nonNil(tasks), "count": len(tasks)})
	})
}

func createTool(svc *task.Service, inst common.Instrumentation) mcpserver.ServerTool {
	t := mcp.NewTool("tasks_create",
		mcp.WithDescription("Create a task"),
		mcp.WithString("title", mcp.Required(), mcp.Description("Short summary of the work")),
		mcp.WithString("category", mcp.Required(), mcp.Description("Line of work"), mcp.Enum(categoryNames()...)),
		mcp.WithString("description", mcp.Description("Details")),
		mcp.WithString("client", mcp.Description("Client name")),
		mcp.WithString("priority", mcp.Description("Defaults to medium"), mcp.Enum(priorityNames()...)),
		mcp.WithString("status", mcp.Description("Defaults to pending"), mcp.Enum(statusNames()...)),
		mcp.WithString("dueDate", mcp.Description("Due date, YYYY-MM-DD")),
		mcp.WithString("dueTime", mcp.Description("Due time, HH:MM (requires dueDate)")),
	)
	return tool("tasks_create", inst, t, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := request.GetArguments()
		title, err := common.RequiredString(args, "title")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		in := task.CreateInput{Title: title}
		if v, ok := common.StringArg(args, "category"); ok {
			in.Category = store.Category(v)
		}
		if v, ok := common.StringArg(args, "priority"); ok {
			in.Priority = store.Priority(v)
		}
		if v, ok := common.StringArg(args, "status"); ok {
			in.Status = store.Status(v)
		}
		in.Description, _ = common.StringArg(args, "description")
		in.Client, _ = common.StringArg(args, "client")
		in.DueDate, _ = common.StringArg(args, "dueDate")
		in.DueTime, _ = common.StringArg(args, "dueTime")

		created, err := svc.Create(ctx, in)
		if err != nil {
			return common.ErrorResult("create task", err), nil
		}
		return common.JSONResult(created)
	})
}

func updateTool(svc *task.Service, inst common.Instrumentation) mcpserver.ServerTool {
	t := mcp.NewTool("tasks_update",
		mcp.WithDescription("Update a task. Only the given fields change; pass an empty string to clear description, client, dueDate or dueTime."),
		mcp.WithNumber("id", mcp.Required(), mcp.Description("Task id")),
		mcp.WithString("title", mcp.Description("New title")),
		mcp.WithString("description", mcp.Description("New description")),
		mcp.WithString("category", mcp.Enum(categoryNames()...)),
		mcp.WithString("client", mcp.Description("New client")),
		mcp.WithString("priority", mcp.Enum(priorityNames()...)),
		mcp.WithString("status", mcp.Enum(statusNames()...)),
		mcp.WithString("dueDate", mcp.Description("YYYY-MM-DD")),
		mcp.WithString("dueTime", mcp.Description("HH:MM")),
		mcp.WithBoolean("completed", mcp.Description("Completion flag")),
	)
	return tool("tasks_update", inst, t, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := request.GetArguments()
		id, err := common.RequiredID(args, "id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		var in task.UpdateInput
		str := func(key string) *string {
			if v, ok := common.StringArg(args, key); ok {
				return &v
			}
			return nil
		}
		in.Title = str("title")
		in.Description = str("description")
		in.Client = str("client")
		in.DueDate = str("dueDate")
		in.DueTime = str("dueTime")
		if v := str("category"); v != nil {
			c := store.Category(*v)
			in.Category = &c
		}
		if v := str("priority"); v != nil {
			p := store.Priority(*v)
			in.Priority = &p
		}
		if v := str("status"); v != nil {
			s := store.Status(*v)
			in.Status = &s
		}
		if in.Completed, err = common.BoolArg(args, "completed"); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if in.Empty() {
			return mcp.NewToolResultError("no fields to update"), nil
		}

		updated, err := svc.Update(ctx, id, in)
		if err != nil {
			return common.ErrorResult(fmt.Sprintf("update task %d", id), err), nil
		}
		return common.JSONResult(updated)
	})
}

func toggleTool(svc *task.Service, inst common.Instrumentation) mcpserver.ServerTool {
	t := mcp.NewTool("tasks_toggle_complete",
		mcp.WithDescription("Flip a task between completed and pending"),
		mcp.WithNumber("id", mcp.Required(), mcp.Description("Task id")),
	)
	return tool("tasks_toggle_complete", inst, t, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := common.RequiredID(request.GetArguments(), "id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		toggled, err := svc.ToggleComplete(ctx, id)
		if err != nil {
			return common.ErrorResult(fmt.Sprintf("toggle task %d", id), err), nil
		}
		return common.JSONResult(toggled)
	})
}

func deleteTool(svc *task.Service, inst common.Instrumentation) mcpserver.ServerTool {
	t := mcp.NewTool("tasks_delete",
		mcp.WithDescription("Delete a task permanently"),
		mcp.WithNumber("id", mcp.Required(), mcp.Description("Task id")),
	)
	return tool("tasks_delete", inst, t, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := common.RequiredID(request.GetArguments(), "id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if err := svc.Delete(ctx, id); err != nil {
			return common.ErrorResult(fmt.Sprintf("delete task %d", id), err), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("Task %d deleted", id)), nil
	})
}

func nonNil(tasks []store.Task) []store.Task {
	if tasks == nil {
		return []store.Task{}
	}
	return tasks
}
