package mcp

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"DotPilot/internal/tool"
	"DotPilot/pkg/logger"
)

// Implementation 是本服务对外声明的 MCP 实现名称。
const Implementation = "dotpilot"

// NewServer 创建一个 MCP 服务端，并把 registry 中的全部工具注册进去。
//
// 工具调用统一走 Registry.Invoke，参数校验与本地调用一致；
// 工具返回错误时结果标记为 IsError，而不是协议级错误。
func NewServer(registry *tool.Registry, version string) *mcpsdk.Server {
	if version == "" {
		version = "dev"
	}
	server := mcpsdk.NewServer(&mcpsdk.Implementation{Name: Implementation, Version: version}, nil)
	log := logger.Named("mcp.server")
	for _, desc := range registry.Descriptors() {
		server.AddTool(&mcpsdk.Tool{
			Name:        desc.Name,
			Description: desc.Description,
			InputSchema: inputSchema(desc),
			Annotations: &mcpsdk.ToolAnnotations{ReadOnlyHint: !desc.SideEffects},
		}, invoker(registry, desc.Name, log))
	}
	return server
}

// Handler 返回 Streamable HTTP 形式的 MCP 端点。
func Handler(server *mcpsdk.Server) http.Handler {
	return mcpsdk.NewStreamableHTTPHandler(func(*http.Request) *mcpsdk.Server { return server }, nil)
}

func inputSchema(desc tool.Descriptor) any {
	if desc.Schema == nil {
		return map[string]any{"type": "object", "properties": map[string]any{}}
	}
	return desc.Schema
}

func invoker(registry *tool.Registry, name string, log *slog.Logger) mcpsdk.ToolHandler {
	return func(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
		var args json.RawMessage
		if req != nil && req.Params != nil {
			args = req.Params.Arguments
		}
		result, err := registry.Invoke(ctx, name, args)
		if err != nil {
			log.Warn("MCP 工具调用失败", slog.String("tool", name), slog.Any("error", err))
			return errorResult(err.Error()), nil
		}
		encoded, err := json.Marshal(result)
		if err != nil {
			return errorResult("failed to encode result: " + err.Error()), nil
		}
		return &mcpsdk.CallToolResult{
			Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: string(encoded)}},
		}, nil
	}
}

func errorResult(message string) *mcpsdk.CallToolResult {
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: message}},
		IsError: true,
	}
}
