package calendar_tools

import (
	"context"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/insuratask/insuratask/internal/calsync"
	"github.com/insuratask/insuratask/internal/tools/common"
)

// Syncer is the part of the sync service the tools use.
type Syncer interface {
	Status(ctx context.Context) (*calsync.Status, error)
	Conflicts(ctx context.Context) ([]calsync.Conflict, error)
	Sync(ctx context.Context) (*calsync.Result, error)
}

// Tools returns the calendar tools. calendar_sync is left out when readOnly
// is set.
func Tools(svc Syncer, inst common.Instrumentation, readOnly bool) []mcpserver.ServerTool {
	tools := []mcpserver.ServerTool{statusTool(svc, inst), conflictsTool(svc, inst)}
	if !readOnly {
		tools = append(tools, syncTool(svc, inst))
	}
	return tools
}

// RegisterCalendarTools registers the calendar tools with the MCP server.
func RegisterCalendarTools(s *mcpserver.MCPServer, svc Syncer, inst common.Instrumentation, readOnly bool) error {
	if svc == nil {
		return fmt.Errorf("calendar sync service is required")
	}
	s.AddTools(Tools(svc, inst, readOnly)...)
	return nil
}

func statusTool(svc Syncer, inst common.Instrumentation) mcpserver.ServerTool {
	t := mcp.NewTool("calendar_status",
		mcp.WithDescription("Show whether Google Calendar is connected, the sync settings and how many tasks are synced or in conflict"),
	)
	handler := func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		st, err := svc.Status(ctx)
		if err != nil {
			return common.ErrorResult("read calendar status", err), nil
		}
		return common.JSONResult(st)
	}
	return mcpserver.ServerTool{Tool: t, Handler: common.InstrumentedToolHandler("calendar_status", inst, handler)}
}

func conflictsTool(svc Syncer, inst common.Instrumentation) mcpserver.ServerTool {
	t := mcp.NewTool("calendar_conflicts",
		mcp.WithDescription("List tasks whose calendar event changed on both sides since the last sync"),
	)
	handler := func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		conflicts, err := svc.Conflicts(ctx)
		if err != nil {
			return common.ErrorResult("list conflicts", err), nil
		}
		if conflicts == nil {
			conflicts = []calsync.Conflict{}
		}
		return common.JSONResult(map[string]interface{}{"conflicts": conflicts, "count": len(conflicts)})
	}
	return mcpserver.ServerTool{Tool: t, Handler: common.InstrumentedToolHandler("calendar_conflicts", inst, handler)}
}

func syncTool(svc Syncer, inst common.Instrumentation) mcpserver.ServerTool {
	t := mcp.NewTool("calendar_sync",
		mcp.WithDescription("Run one Google Calendar sync pass now and report what changed"),
	)
	handler := func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		res, err := svc.Sync(ctx)
		if errors.Is(err, calsync.ErrSyncInProgress) {
			return mcp.NewToolResultError("A sync pass is already running; try again shortly."), nil
		}
		if err != nil {
			return common.ErrorResult("sync calendar", err), nil
		}
		return common.JSONResult(res)
	}
	return mcpserver.ServerTool{Tool: t, Handler: common.InstrumentedToolHandler("calendar_sync", inst, handler)}
}
