package knowledge

import (
	"context"
	"fmt"
	"strings"

	"DotPilot/internal/tool"
)

type searchArgs struct {
	Query string `json:"query" jsonschema:"Keywords describing the staking topic to look up (e.g., 'unbonding period', 'pool commission')"`
	Limit int    `json:"limit,omitempty" jsonschema:"Maximum number of snippets to return"`
}

// SearchResult 是 search_staking_docs 的返回结构。
type SearchResult struct {
	Query    string    `json:"query"`
	Snippets []Snippet `json:"snippets"`
	Message  string    `json:"message,omitempty"`
}

// SearchTool 把 provider 包装为 search_staking_docs 工具。
func SearchTool(provider Provider) tool.Descriptor {
	return tool.MustNew("search_staking_docs",
		"Search the built-in Polkadot staking documentation for background on nomination pools, unbonding, rewards and chain naming. Use it to explain concepts, not to read live chain state.",
		func(_ context.Context, args searchArgs) (SearchResult, error) {
			query := strings.TrimSpace(args.Query)
			if query == "" {
				return SearchResult{}, fmt.Errorf("query is required")
			}
			snippets := provider.Query(query, args.Limit)
			result := SearchResult{Query: query, Snippets: snippets}
			if len(snippets) == 0 {
				result.Snippets = []Snippet{}
				result.Message = "No matching documentation found."
			}
			return result, nil
		})
}
