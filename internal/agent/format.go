package agent

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const poolListingTool = "list_nomination_pools"

// 交易类工具的成功标题。
var txHeadlines = map[string]string{
	"join_pool":         "**Pool Joined Successfully!**",
	"bond_extra":        "**Bond Extra Successful!**",
	"unbond":            "**Unbond Initiated!**",
	"withdraw_unbonded": "**Withdrawal Successful!**",
	"claim_rewards":     "**Rewards Claimed!**",
}

var titleCaser = cases.Title(language.English, cases.NoLower)

// OutputContainsToolData 判断模型回答是否已经提到工具返回的关键数据。
//
// 目前只检查成功且非空的 list_nomination_pools 结果：只要有一个池子的 id 或
// memberCount 以字面量形式出现在小写化的回答中即视为已提及。任意一条记录未
// 通过检查就返回 false，其余工具不参与判断。
func OutputContainsToolData(output string, records []ToolInvocationRecord) bool {
	lower := strings.ToLower(output)
	for _, rec := range records {
		if !rec.Success || rec.Tool != poolListingTool || rec.Result == nil {
			continue
		}
		payload, ok := generic(rec.Result).(map[string]any)
		if !ok {
			continue
		}
		pools, ok := payload["pools"].([]any)
		if !ok || len(pools) == 0 {
			continue
		}
		mentioned := false
		for _, p := range pools {
			pool, _ := p.(map[string]any)
			if mentions(lower, pool["id"]) || mentions(lower, pool["memberCount"]) {
				mentioned = true
				break
			}
		}
		if !mentioned {
			return false
		}
	}
	return true
}

func mentions(lower string, v any) bool {
	text := display(v)
	return text != "" && strings.Contains(lower, text)
}

// FormatToolResults 把工具调用记录渲染成 Markdown，段落之间空一行。
func FormatToolResults(records []ToolInvocationRecord) string {
	parts := make([]string, 0, len(records))
	for _, rec := range records {
		if !rec.Success {
			parts = append(parts, fmt.Sprintf("**Error in %s:** %s", rec.Tool, rec.Error))
			continue
		}
		if rec.Tool == poolListingTool {
			parts = append(parts, formatPoolInfo(rec.Result))
			continue
		}
		if headline, ok := txHeadlines[rec.Tool]; ok {
			parts = append(parts, headline+"\n"+formatTransactionResult(rec.Result))
			continue
		}
		title := titleCaser.String(strings.ReplaceAll(rec.Tool, "_", " "))
		parts = append(parts, fmt.Sprintf("**%s Result:**\n%s", title, jsonBlock(rec.Result)))
	}
	return strings.Join(parts, "\n\n")
}

func formatPoolInfo(result any) string {
	if result == nil {
		return "No pool information available."
	}
	var b strings.Builder
	b.WriteString("**Nomination Pools Information**\n\n")

	payload, isObject := generic(result).(map[string]any)
	pools, hasPools := payload["pools"].([]any)
	switch {
	case hasPools && len(pools) == 0:
		fmt.Fprintf(&b, "No nomination pools found on %s.", display(payload["chain"]))
		return b.String()

	case hasPools:
		count := display(payload["poolCount"])
		if !truthy(payload["poolCount"]) {
			count = strconv.Itoa(len(pools))
		}
		fmt.Fprintf(&b, "Found **%s** pool(s) on **%s**:\n\n", count, display(payload["chain"]))
		for _, p := range pools {
			pool, _ := p.(map[string]any)
			b.WriteString("---\n")
			fmt.Fprintf(&b, "**Pool #%s**\n", display(pool["id"]))
			if truthy(pool["state"]) {
				fmt.Fprintf(&b, "- State: %s\n", display(pool["state"]))
			}
			if v, ok := pool["memberCount"]; ok && v != nil {
				fmt.Fprintf(&b, "- Members: %s\n", display(v))
			}
			if truthy(pool["points"]) {
				fmt.Fprintf(&b, "- Points: %s\n", display(pool["points"]))
			}
			if roles, ok := pool["roles"].(map[string]any); ok {
				fmt.Fprintf(&b, "- Depositor: %s\n", truncateAddress(display(roles["depositor"])))
				if truthy(roles["root"]) {
					fmt.Fprintf(&b, "- Root: %s\n", truncateAddress(display(roles["root"])))
				}
				if truthy(roles["nominator"]) {
					fmt.Fprintf(&b, "- Nominator: %s\n", truncateAddress(display(roles["nominator"])))
				}
			}
			b.WriteString("\n")
		}
		if truthy(payload["message"]) {
			fmt.Fprintf(&b, "*%s*\n", display(payload["message"]))
		}

	case isObject && truthy(payload["error"]):
		fmt.Fprintf(&b, "**Error:** %s\n", display(payload["error"]))
		if truthy(payload["hint"]) {
			fmt.Fprintf(&b, "*Hint: %s*\n", display(payload["hint"]))
		}

	case isObject:
		b.WriteString(jsonBlock(result))
	}
	return b.String()
}

func formatTransactionResult(result any) string {
	if result == nil {
		return "Transaction completed."
	}
	payload, _ := generic(result).(map[string]any)

	var b strings.Builder
	if truthy(payload["status"]) {
		fmt.Fprintf(&b, "- Status: %s\n", display(payload["status"]))
	}
	if truthy(payload["blockHash"]) {
		fmt.Fprintf(&b, "- Block Hash: %s\n", truncateAddress(display(payload["blockHash"])))
	}
	if truthy(payload["txHash"]) {
		fmt.Fprintf(&b, "- Tx Hash: %s\n", truncateAddress(display(payload["txHash"])))
	}
	if events, ok := payload["events"].([]any); ok {
		fmt.Fprintf(&b, "- Events: %d event(s)\n", len(events))
	}
	if b.Len() == 0 {
		return jsonBlock(result)
	}
	return b.String()
}

// truncateAddress 将长度不小于 16 的地址或哈希缩写为前 8 位...后 6 位。
func truncateAddress(addr string) string {
	if len(addr) < 16 {
		return addr
	}
	return addr[:8] + "..." + addr[len(addr)-6:]
}

func jsonBlock(v any) string {
	encoded, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		encoded = []byte(fmt.Sprintf("%q", fmt.Sprint(v)))
	}
	return "```json\n" + string(encoded) + "\n```"
}

// generic 通过 JSON 往返把任意结果转换成 map/slice/基本类型，便于按字段读取。
func generic(v any) any {
	switch v.(type) {
	case nil, string, float64, bool:
		return v
	}
	encoded, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(encoded, &out); err != nil {
		return v
	}
	return out
}

// display 以接近 JSON 的方式把值转换为文本，整数不带小数点。
func display(v any) string {
	switch x := generic(v).(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		encoded, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(encoded)
	}
}

func truthy(v any) bool {
	switch x := generic(v).(type) {
	case nil:
		return false
	case string:
		return x != ""
	case float64:
		return x != 0
	case bool:
		return x
	default:
		return true
	}
}
