// Package mcpserver advertises compiled tools over MCP and routes their
// invocations to the dispatcher.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	jsonschema "github.com/google/jsonschema-go/jsonschema"
	"github.com/kolah/argo-mcp/internal/compiler"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"
)

// Invoker executes a compiled tool by name.
type Invoker interface {
	Dispatch(ctx context.Context, name string, args map[string]any) (any, error)
}

// ServerTools builds one MCP tool per compiled tool. Tools whose input schema
// cannot be encoded are skipped with a warning.
func ServerTools(tools []compiler.Tool, invoker Invoker, logger *zap.Logger) []server.ServerTool {
	if logger == nil {
		logger = zap.NewNop()
	}

	out := make([]server.ServerTool, 0, len(tools))
	for _, t := range tools {
		st, err := serverTool(t, invoker, logger)
		if err != nil {
			logger.Warn("skipping tool", zap.String("tool", t.Name), zap.Error(err))
			continue
		}
		out = append(out, st)
	}
	return out
}

func serverTool(t compiler.Tool, invoker Invoker, logger *zap.Logger) (server.ServerTool, error) {
	raw, err := json.Marshal(t.InputSchema)
	if err != nil {
		return server.ServerTool{}, fmt.Errorf("encoding input schema: %w", err)
	}

	tool := mcp.NewToolWithRawSchema(t.Name, t.Description, raw)
	tool.Annotations.ReadOnlyHint = mcp.ToBoolPtr(t.Annotations.ReadOnly)
	tool.Annotations.DestructiveHint = mcp.ToBoolPtr(t.Annotations.Destructive)
	tool.Annotations.IdempotentHint = mcp.ToBoolPtr(t.Annotations.Idempotent)
	tool.Annotations.OpenWorldHint = mcp.ToBoolPtr(true)

	resolved, err := compileSchema(raw)
	if err != nil {
		logger.Warn("input schema not validated", zap.String("tool", t.Name), zap.Error(err))
	}

	return server.ServerTool{
		Tool:    tool,
		Handler: invokeHandler(t.Name, resolved, invoker),
	}, nil
}

func compileSchema(raw []byte) (*jsonschema.Resolved, error) {
	var schema jsonschema.Schema
	if err := json.Unmarshal(raw, &schema); err != nil {
		return nil, err
	}
	return schema.Resolve(nil)
}

func invokeHandler(name string, resolved *jsonschema.Resolved, invoker Invoker) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := req.GetArguments()
		if args == nil {
			args = map[string]any{}
		}

		if resolved != nil {
			if err := resolved.Validate(args); err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
			}
		}

		result, err := invoker.Dispatch(ctx, name, args)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return resultText(result), nil
	}
}

// resultText renders a decoded response: strings as they are, everything
// else as indented JSON.
func resultText(v any) *mcp.CallToolResult {
	switch t := v.(type) {
	case nil:
		return mcp.NewToolResultText("{}")
	case string:
		return mcp.NewToolResultText(t)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encoding result: %v", err))
	}
	return mcp.NewToolResultText(string(data))
}
