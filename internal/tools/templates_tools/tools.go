package templates_tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/insuratask/insuratask/internal/store"
	"github.com/insuratask/insuratask/internal/templates"
	"github.com/insuratask/insuratask/internal/tools/common"
)

// Tools returns the template tools. templates_execute is left out when
// readOnly is set.
func Tools(svc *templates.Service, inst common.Instrumentation, readOnly bool) []mcpserver.ServerTool {
	tools := []mcpserver.ServerTool{listTool(svc, inst)}
	if !readOnly {
		tools = append(tools, executeTool(svc, inst))
	}
	return tools
}

// RegisterTemplatesTools registers the template tools with the MCP server.
func RegisterTemplatesTools(s *mcpserver.MCPServer, svc *templates.Service, inst common.Instrumentation, readOnly bool) error {
	if svc == nil {
		return fmt.Errorf("template service is required")
	}
	s.AddTools(Tools(svc, inst, readOnly)...)
	return nil
}

type templateSummary struct {
	store.Template
	CronSpec string `json:"cronSpec"`
}

func listTool(svc *templates.Service, inst common.Instrumentation) mcpserver.ServerTool {
	t := mcp.NewTool("templates_list",
		mcp.WithDescription("List recurring task templates with their cron schedule and next run"),
		mcp.WithBoolean("enabledOnly", mcp.Description("Only list enabled templates")),
	)
	handler := func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		enabledOnly, err := common.BoolArg(request.GetArguments(), "enabledOnly")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		var list []store.Template
		if enabledOnly != nil && *enabledOnly {
			list, err = svc.ListEnabled(ctx)
		} else {
			list, err = svc.List(ctx)
		}
		if err != nil {
			return common.ErrorResult("list templates", err), nil
		}

		out := make([]templateSummary, 0, len(list))
		for _, tpl := range list {
			spec, _ := templates.CronSpec(tpl.Recurrence)
			out = append(out, templateSummary{Template: tpl, CronSpec: spec})
		}
		return common.JSONResult(map[string]interface{}{"templates": out, "count": len(out)})
	}
	return mcpserver.ServerTool{Tool: t, Handler: common.InstrumentedToolHandler("templates_list", inst, handler)}
}

func executeTool(svc *templates.Service, inst common.Instrumentation) mcpserver.ServerTool {
	t := mcp.NewTool("templates_execute",
		mcp.WithDescription("Run a template now and create its task. Variables override the template's own values for this run only."),
		mcp.WithNumber("id", mcp.Required(), mcp.Description("Template id")),
		mcp.WithObject("variables", mcp.Description("Placeholder values, e.g. {\"client\": \"Acme\"}")),
	)
	handler := func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := request.GetArguments()
		id, err := common.RequiredID(args, "id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		vars, err := common.StringMapArg(args, "variables")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		exec, err := svc.Execute(ctx, id, vars, templates.TriggerManual)
		if err != nil {
			return common.ErrorResult(fmt.Sprintf("execute template %d", id), err), nil
		}
		return common.JSONResult(exec)
	}
	return mcpserver.ServerTool{Tool: t, Handler: common.InstrumentedToolHandler("templates_execute", inst, handler)}
}
