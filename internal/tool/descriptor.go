package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
)

// Handler 执行一次工具调用，args 为已通过 Schema 校验的 JSON。
type Handler func(ctx context.Context, args json.RawMessage) (any, error)

// Descriptor 描述一个可供模型调用的工具。
// SideEffects 为 true 表示调用会改变外部状态（例如提交链上交易）。
type Descriptor struct {
	Name        string
	Description string
	Schema      *jsonschema.Schema
	Handler     Handler
	SideEffects bool
}

// WithSideEffects 返回标记为有副作用的副本。
func (d Descriptor) WithSideEffects() Descriptor {
	d.SideEffects = true
	return d
}

// New 由参数结构体 T 生成输入 Schema，并把 JSON 参数解码成 T 后交给 fn。
// 顶层允许出现未声明的参数，解码时忽略。
func New[T, R any](name, description string, fn func(ctx context.Context, args T) (R, error)) (Descriptor, error) {
	schema, err := jsonschema.For[T](nil)
	if err != nil {
		return Descriptor{}, fmt.Errorf("生成工具 %s 的参数 Schema 失败: %w", name, err)
	}
	schema.AdditionalProperties = nil
	return Descriptor{
		Name:        name,
		Description: description,
		Schema:      schema,
		Handler: func(ctx context.Context, raw json.RawMessage) (any, error) {
			var args T
			if err := json.Unmarshal(raw, &args); err != nil {
				return nil, fmt.Errorf("解析参数失败: %w", err)
			}
			return fn(ctx, args)
		},
	}, nil
}

// MustNew 与 New 相同，生成 Schema 失败时 panic，仅用于包级别的静态工具定义。
func MustNew[T, R any](name, description string, fn func(ctx context.Context, args T) (R, error)) Descriptor {
	d, err := New(name, description, fn)
	if err != nil {
		panic(err)
	}
	return d
}

func (d Descriptor) validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("工具名称为空")
	}
	if d.Handler == nil {
		return fmt.Errorf("工具 %s 缺少处理函数", d.Name)
	}
	return nil
}

// parameters 将 Schema 转换为模型 API 需要的通用 map 结构。
func (d Descriptor) parameters() (map[string]any, error) {
	if d.Schema == nil {
		return map[string]any{"type": "object", "properties": map[string]any{}}, nil
	}
	encoded, err := json.Marshal(d.Schema)
	if err != nil {
		return nil, fmt.Errorf("序列化工具 %s 的 Schema 失败: %w", d.Name, err)
	}
	var params map[string]any
	if err := json.Unmarshal(encoded, &params); err != nil {
		return nil, fmt.Errorf("转换工具 %s 的 Schema 失败: %w", d.Name, err)
	}
	return params, nil
}
