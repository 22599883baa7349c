package knowledge

import (
	"cmp"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// Provider 定义知识库检索的通用接口。
type Provider interface {
	Query(query string, limit int) []Snippet
}

// Snippet 描述可供大模型引用的一段知识。
type Snippet struct {
	Title    string   `json:"title"`
	Content  string   `json:"content"`
	Keywords []string `json:"keywords,omitempty"`
	Tags     []string `json:"tags,omitempty"`
}

// StaticProvider 通过加载 JSON 文件提供静态知识检索能力。
type StaticProvider struct {
	items      []Snippet
	maxResults int
}

// NewStaticProvider 创建静态知识库实例。
func NewStaticProvider(items []Snippet, maxResults int) *StaticProvider {
	if maxResults <= 0 {
		maxResults = 3
	}
	return &StaticProvider{
		items:      items,
		maxResults: maxResults,
	}
}

// LoadStaticProvider 从 JSON 文件加载知识条目。
func LoadStaticProvider(path string, maxResults int) (*StaticProvider, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("知识库文件路径不能为空")
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("解析知识库路径失败: %w", err)
	}

	file, err := os.Open(absPath)
	if err != nil {
		return nil, fmt.Errorf("读取知识库文件失败: %w", err)
	}
	defer file.Close()

	var entries []Snippet
	if err := json.NewDecoder(file).Decode(&entries); err != nil {
		return nil, fmt.Errorf("解析知识库文件失败: %w", err)
	}

	return NewStaticProvider(entries, maxResults), nil
}

// Len 返回条目数量。
func (p *StaticProvider) Len() int {
	if p == nil {
		return 0
	}
	return len(p.items)
}

// Query 按命中次数排序返回匹配的条目，limit 非正或超过上限时取 maxResults。
//
// 关键词与标签命中计 2 分，标题中出现的查询词计 1 分，同分保持文件中的顺序。
func (p *StaticProvider) Query(query string, limit int) []Snippet {
	if p == nil {
		return nil
	}
	if limit <= 0 || limit > p.maxResults {
		limit = p.maxResults
	}
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return nil
	}

	type scored struct {
		snippet Snippet
		score   int
		index   int
	}
	var hits []scored
	for i, item := range p.items {
		if s := score(item, query); s > 0 {
			hits = append(hits, scored{snippet: item, score: s, index: i})
		}
	}
	slices.SortStableFunc(hits, func(a, b scored) int {
		return cmp.Or(cmp.Compare(b.score, a.score), cmp.Compare(a.index, b.index))
	})

	results := make([]Snippet, 0, min(limit, len(hits)))
	for _, h := range hits[:min(limit, len(hits))] {
		results = append(results, h.snippet)
	}
	return results
}

func score(snippet Snippet, query string) int {
	total := 0
	for _, term := range append(slices.Clone(snippet.Keywords), snippet.Tags...) {
		normalized := strings.ToLower(strings.TrimSpace(term))
		if normalized != "" && strings.Contains(query, normalized) {
			total += 2
		}
	}
	title := strings.ToLower(snippet.Title)
	for _, word := range strings.Fields(query) {
		if len(word) > 3 && strings.Contains(title, word) {
			total++
		}
	}
	return total
}

// Ensure StaticProvider 实现 Provider 接口。
var _ Provider = (*StaticProvider)(nil)
