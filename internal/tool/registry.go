package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"

	xerrors "DotPilot/internal/errors"
	"DotPilot/internal/llm"
	"DotPilot/pkg/logger"
)

type entry struct {
	desc     Descriptor
	params   map[string]any
	resolved *jsonschema.Resolved
}

// Registry 保存工具名称到描述的映射，构造后不可修改，可被多个运行并发读取。
type Registry struct {
	order   []string
	entries map[string]entry
}

// NewRegistry 注册全部工具；名称重复或 Schema 无法解析时返回错误。
func NewRegistry(descs ...Descriptor) (*Registry, error) {
	r := &Registry{entries: make(map[string]entry, len(descs))}
	for _, d := range descs {
		if err := d.validate(); err != nil {
			return nil, xerrors.Wrap(xerrors.CodeConfiguration, err, "工具定义非法")
		}
		if _, exists := r.entries[d.Name]; exists {
			return nil, xerrors.New(xerrors.CodeConfiguration, fmt.Sprintf("工具 %s 重复注册", d.Name))
		}
		params, err := d.parameters()
		if err != nil {
			return nil, xerrors.Wrap(xerrors.CodeConfiguration, err, "工具定义非法")
		}
		e := entry{desc: d, params: params}
		if d.Schema != nil {
			resolved, err := d.Schema.Resolve(nil)
			if err != nil {
				return nil, xerrors.Wrap(xerrors.CodeConfiguration, err, fmt.Sprintf("解析工具 %s 的 Schema 失败", d.Name))
			}
			e.resolved = resolved
		}
		r.entries[d.Name] = e
		r.order = append(r.order, d.Name)
	}
	return r, nil
}

// Len 返回已注册工具数量。
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.order)
}

// Names 按注册顺序返回工具名称。
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	return append([]string(nil), r.order...)
}

// Get 按名称查找工具。
func (r *Registry) Get(name string) (Descriptor, bool) {
	if r == nil {
		return Descriptor{}, false
	}
	e, ok := r.entries[name]
	return e.desc, ok
}

// Descriptors 按注册顺序返回全部工具描述。
func (r *Registry) Descriptors() []Descriptor {
	if r == nil {
		return nil
	}
	out := make([]Descriptor, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.entries[name].desc)
	}
	return out
}

// Definitions 生成发送给模型的工具定义。
func (r *Registry) Definitions() []llm.ToolDefinition {
	if r == nil {
		return nil
	}
	defs := make([]llm.ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		e := r.entries[name]
		defs = append(defs, llm.ToolDefinition{
			Name:        e.desc.Name,
			Description: e.desc.Description,
			Parameters:  e.params,
		})
	}
	return defs
}

// Parameters 返回工具的 JSON Schema（map 形式）。
func (r *Registry) Parameters(name string) (map[string]any, bool) {
	if r == nil {
		return nil, false
	}
	e, ok := r.entries[name]
	return e.params, ok
}

// SideEffects 报告工具是否会改变外部状态，未注册的工具返回 false。
func (r *Registry) SideEffects(name string) bool {
	if r == nil {
		return false
	}
	return r.entries[name].desc.SideEffects
}

// Invoke 校验参数并执行工具。
//
// 未注册的工具返回 CodeToolNotFound；参数不是合法 JSON、违反 Schema 或处理函数
// panic 时返回 CodeToolInvocation；处理函数返回的错误原样透传。
func (r *Registry) Invoke(ctx context.Context, name string, args json.RawMessage) (out any, err error) {
	if r == nil {
		return nil, xerrors.New(xerrors.CodeToolNotFound, fmt.Sprintf("Tool %s not found", name))
	}
	e, ok := r.entries[name]
	if !ok {
		return nil, xerrors.New(xerrors.CodeToolNotFound, fmt.Sprintf("Tool %s not found", name),
			xerrors.WithMetadata("tool", name))
	}

	if strings.TrimSpace(string(args)) == "" {
		args = json.RawMessage("{}")
	}
	var instance any
	if err := json.Unmarshal(args, &instance); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeToolInvocation, err, fmt.Sprintf("invalid arguments for %s", name))
	}
	if e.resolved != nil {
		if err := e.resolved.Validate(instance); err != nil {
			return nil, xerrors.Wrap(xerrors.CodeToolInvocation, err, fmt.Sprintf("invalid arguments for %s", name))
		}
	}
	defer func() {
		if p := recover(); p != nil {
			logger.L().Error("工具执行 panic",
				slog.String("tool", name),
				slog.Any("panic", p),
				slog.String("stack", string(debug.Stack())),
			)
			out = nil
			err = xerrors.New(xerrors.CodeToolInvocation, fmt.Sprintf("tool %s panicked: %v", name, p),
				xerrors.WithMetadata("tool", name))
		}
	}()
	return e.desc.Handler(ctx, args)
}
