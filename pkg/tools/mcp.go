package tools

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/comigor/gemini-chat/internal/logger"
)

// NewMCPServer exposes every tool in m over the Model Context Protocol.
func NewMCPServer(m *ToolManager, version string) *server.MCPServer {
	s := server.NewMCPServer("gemini-chat", version, server.WithToolCapabilities(false))
	for _, t := range m.List() {
		s.AddTool(mcpTool(t), mcpHandler(m, t.Name()))
	}
	return s
}

func mcpTool(t Tool) mcp.Tool {
	opts := []mcp.ToolOption{mcp.WithDescription(t.Description())}
	for _, p := range t.Params() {
		popts := []mcp.PropertyOption{mcp.Description(p.Description)}
		if p.Required {
			popts = append(popts, mcp.Required())
		}
		opts = append(opts, mcp.WithString(p.Name, popts...))
	}
	return mcp.NewTool(t.Name(), opts...)
}

// mcpHandler reports tool failures as error results, not protocol errors.
func mcpHandler(m *ToolManager, name string) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, err := json.Marshal(request.GetArguments())
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		out, err := m.Run(ctx, name, string(args))
		if err != nil {
			logger.For("mcp").Warn("tool failed", "tool", name, "error", err)
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(out), nil
	}
}
