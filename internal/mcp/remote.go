package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"DotPilot/internal/config"
	"DotPilot/internal/tool"
	"DotPilot/pkg/logger"
)

// Remote 是一个已连接的远端 MCP 服务。
type Remote struct {
	name    string
	session *mcpsdk.ClientSession
}

// Connect 通过 transport 连接远端服务。
func Connect(ctx context.Context, name string, transport mcpsdk.Transport) (*Remote, error) {
	client := mcpsdk.NewClient(&mcpsdk.Implementation{Name: Implementation, Version: "dev"}, nil)
	session, err := client.Connect(ctx, transport, nil)
	if err != nil {
		return nil, fmt.Errorf("连接 MCP 服务 %s 失败: %w", name, err)
	}
	return &Remote{name: name, session: session}, nil
}

// ConnectAll 按配置连接全部 Streamable HTTP 服务。任一失败时关闭已建立的连接。
func ConnectAll(ctx context.Context, servers []config.MCPServerConfig) ([]*Remote, error) {
	remotes := make([]*Remote, 0, len(servers))
	for _, srv := range servers {
		if strings.TrimSpace(srv.URL) == "" {
			CloseAll(remotes)
			return nil, fmt.Errorf("MCP 服务 %q 缺少 url", srv.Name)
		}
		remote, err := Connect(ctx, srv.Name, &mcpsdk.StreamableClientTransport{Endpoint: srv.URL})
		if err != nil {
			CloseAll(remotes)
			return nil, err
		}
		remotes = append(remotes, remote)
	}
	return remotes, nil
}

// CloseAll 关闭全部远端连接。
func CloseAll(remotes []*Remote) {
	for _, r := range remotes {
		_ = r.Close()
	}
}

// Name 返回远端服务名称。
func (r *Remote) Name() string { return r.name }

// Close 关闭会话。
func (r *Remote) Close() error {
	if r == nil || r.session == nil {
		return nil
	}
	return r.session.Close()
}

// Tools 列出远端工具并转换为本地工具描述。未声明 readOnlyHint 的远端工具按有副作用处理。
func (r *Remote) Tools(ctx context.Context) ([]tool.Descriptor, error) {
	log := logger.Named("mcp.remote").With(slog.String("server", r.name))
	var descs []tool.Descriptor
	for remote, err := range r.session.Tools(ctx, nil) {
		if err != nil {
			return nil, fmt.Errorf("列出 MCP 服务 %s 的工具失败: %w", r.name, err)
		}
		schema, err := convertSchema(remote.InputSchema)
		if err != nil {
			log.Warn("忽略 Schema 无法解析的远端工具", slog.String("tool", remote.Name), slog.Any("error", err))
			continue
		}
		descs = append(descs, tool.Descriptor{
			Name:        remote.Name,
			Description: remote.Description,
			Schema:      schema,
			Handler:     r.caller(remote.Name),
			SideEffects: remote.Annotations == nil || !remote.Annotations.ReadOnlyHint,
		})
	}
	log.Info("已导入远端工具", slog.Int("count", len(descs)))
	return descs, nil
}

func convertSchema(raw any) (*jsonschema.Schema, error) {
	if raw == nil {
		return nil, nil
	}
	encoded, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	var schema jsonschema.Schema
	if err := json.Unmarshal(encoded, &schema); err != nil {
		return nil, err
	}
	return &schema, nil
}

// caller 调用远端工具。文本内容为 JSON 时解码后返回，否则返回原文。
func (r *Remote) caller(name string) tool.Handler {
	return func(ctx context.Context, args json.RawMessage) (any, error) {
		if len(args) == 0 {
			args = json.RawMessage("{}")
		}
		result, err := r.session.CallTool(ctx, &mcpsdk.CallToolParams{Name: name, Arguments: args})
		if err != nil {
			return nil, err
		}
		text := joinText(result.Content)
		if result.IsError {
			if text == "" {
				text = fmt.Sprintf("tool %s failed", name)
			}
			return nil, errors.New(text)
		}
		var decoded any
		if err := json.Unmarshal([]byte(text), &decoded); err == nil {
			return decoded, nil
		}
		return text, nil
	}
}

func joinText(content []mcpsdk.Content) string {
	var sb strings.Builder
	for _, c := range content {
		if tc, ok := c.(*mcpsdk.TextContent); ok {
			if sb.Len() > 0 {
				sb.WriteString("\n")
			}
			sb.WriteString(tc.Text)
		}
	}
	return sb.String()
}
