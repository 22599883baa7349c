package task

import (
	"slices"
	"strings"
	"time"
)

// SortOrder 控制列表按更新时间排序的方向。
type SortOrder int

const (
	SortByUpdatedDesc SortOrder = iota
	SortByUpdatedAsc
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// ListOptions 描述任务查询条件。时间字段为 Unix 秒，0 表示不限制。
type ListOptions struct {
	Limit      int
	Offset     int
	Statuses   []Status
	UpdatedGTE int64
	UpdatedLTE int64
	HasResult  *bool
	Order      SortOrder
	Search     string
}

func (opts *ListOptions) applyDefaults() {
	switch {
	case opts.Limit <= 0:
		opts.Limit = defaultListLimit
	case opts.Limit > maxListLimit:
		opts.Limit = maxListLimit
	}
	opts.Offset = max(opts.Offset, 0)
	opts.Statuses = normalizeStatuses(opts.Statuses)
	if opts.Order != SortByUpdatedAsc {
		opts.Order = SortByUpdatedDesc
	}
	opts.Search = strings.TrimSpace(opts.Search)
}

// matches 在内存中复现 SQL 过滤条件。
func (opts ListOptions) matches(t *Task) bool {
	if len(opts.Statuses) > 0 && !slices.Contains(opts.Statuses, t.Status) {
		return false
	}
	if opts.UpdatedGTE > 0 && t.UpdatedAt < opts.UpdatedGTE {
		return false
	}
	if opts.UpdatedLTE > 0 && t.UpdatedAt > opts.UpdatedLTE {
		return false
	}
	if opts.HasResult != nil && (t.Result != nil) != *opts.HasResult {
		return false
	}
	if opts.Search != "" {
		needle := strings.ToLower(opts.Search)
		haystack := []string{t.ID, t.Query, t.LastError}
		if t.Result != nil {
			haystack = append(haystack, t.Result.Output)
		}
		if !slices.ContainsFunc(haystack, func(s string) bool { return strings.Contains(strings.ToLower(s), needle) }) {
			return false
		}
	}
	return true
}

// ListOption 修改 ListOptions。
type ListOption func(*ListOptions)

func WithLimit(limit int) ListOption {
	return func(opts *ListOptions) { opts.Limit = limit }
}

func WithOffset(offset int) ListOption {
	return func(opts *ListOptions) { opts.Offset = offset }
}

// WithStatuses 只返回指定状态的任务，无效状态会被忽略。
func WithStatuses(statuses ...Status) ListOption {
	return func(opts *ListOptions) { opts.Statuses = append(opts.Statuses[:0], statuses...) }
}

// WithUpdatedSince 只返回在 ts 之后（含）更新的任务。
func WithUpdatedSince(ts time.Time) ListOption {
	return func(opts *ListOptions) { opts.UpdatedGTE = unixOrZero(ts) }
}

// WithUpdatedUntil 只返回在 ts 之前（含）更新的任务。
func WithUpdatedUntil(ts time.Time) ListOption {
	return func(opts *ListOptions) { opts.UpdatedLTE = unixOrZero(ts) }
}

// WithResultPresence 按是否已有运行结果过滤。
func WithResultPresence(hasResult bool) ListOption {
	return func(opts *ListOptions) { opts.HasResult = &hasResult }
}

func WithSortOrder(order SortOrder) ListOption {
	return func(opts *ListOptions) { opts.Order = order }
}

// WithSearch 在任务 ID、查询、错误信息与输出中做不区分大小写的子串匹配。
func WithSearch(search string) ListOption {
	return func(opts *ListOptions) { opts.Search = search }
}

func buildListOptions(opts []ListOption) ListOptions {
	options := ListOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}
	options.applyDefaults()
	return options
}

func unixOrZero(ts time.Time) int64 {
	if ts.IsZero() {
		return 0
	}
	return ts.Unix()
}

func normalizeStatuses(input []Status) []Status {
	var result []Status
	for _, status := range input {
		if IsValidStatus(status) && !slices.Contains(result, status) {
			result = append(result, status)
		}
	}
	return result
}
