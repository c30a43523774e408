// Package mcpadapter exposes the tool registry as an MCP server.
package mcpadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/isa-knowledge-base/internal/adapters/toolkit"
)

const serverName = "ISA Knowledge Base"

// NewServer registers every registry tool with a schema generated from its
// parameters.
func NewServer(tools *toolkit.Registry, version string) (*server.MCPServer, error) {
	s := server.NewMCPServer(serverName, version, server.WithToolCapabilities(false))
	for _, tool := range tools.Tools() {
		schema, err := json.Marshal(tool.InputSchema())
		if err != nil {
			return nil, fmt.Errorf("tool %s schema: %w", tool.Name, err)
		}
		s.AddTool(mcp.NewToolWithRawSchema(tool.Name, tool.Description, schema), handlerFor(tools, tool.Name))
	}
	return s, nil
}

func handlerFor(tools *toolkit.Registry, name string) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := req.GetArguments()
		if args == nil {
			args = map[string]any{}
		}
		result, err := tools.Call(ctx, name, args)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		payload, err := json.Marshal(result)
		if err != nil {
			return nil, fmt.Errorf("encode %s result: %w", name, err)
		}
		return mcp.NewToolResultText(string(payload)), nil
	}
}

// ServeStdio runs the server over in/out until ctx is cancelled or in closes.
func ServeStdio(ctx context.Context, s *server.MCPServer, in io.Reader, out io.Writer) error {
	stdio := server.NewStdioServer(s)
	slog.Info("mcp_serving", "transport", "stdio")
	if err := stdio.Listen(ctx, in, out); err != nil && ctx.Err() == nil {
		return fmt.Errorf("mcp stdio: %w", err)
	}
	return nil
}
