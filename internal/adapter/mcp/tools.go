package mcp

import (
	"context"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/gridsage/gridsage/internal/domain/conversation"
	"github.com/gridsage/gridsage/internal/port/toolcall"
)

// registerTools mirrors the tool registry onto the MCP server. The registry
// stays the single source of truth for names, schemas, and containment.
func (s *Server) registerTools() {
	specs := s.registry.Specs()
	tools := make([]mcpserver.ServerTool, 0, len(specs))
	for _, spec := range specs {
		tools = append(tools, mcpserver.ServerTool{
			Tool:    toMCPTool(spec),
			Handler: s.toolHandler(spec.Name),
		})
	}
	s.mcpServer.AddTools(tools...)
}

func toMCPTool(spec toolcall.Spec) mcplib.Tool {
	opts := []mcplib.ToolOption{mcplib.WithDescription(spec.Description)}
	for _, a := range spec.Args {
		propOpts := []mcplib.PropertyOption{mcplib.Description(a.Description)}
		if a.Required {
			propOpts = append(propOpts, mcplib.Required())
		}
		switch a.Type {
		case toolcall.ArgNumber:
			opts = append(opts, mcplib.WithNumber(a.Name, propOpts...))
		default:
			opts = append(opts, mcplib.WithString(a.Name, propOpts...))
		}
	}
	return mcplib.NewTool(spec.Name, opts...)
}

func (s *Server) toolHandler(name string) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
		res := s.registry.Invoke(ctx, conversation.ToolRequest{
			CallID:    "mcp",
			Name:      name,
			Arguments: req.GetArguments(),
		})
		if res.IsError {
			return mcplib.NewToolResultError(res.Content), nil
		}
		return mcplib.NewToolResultText(res.Content), nil
	}
}
