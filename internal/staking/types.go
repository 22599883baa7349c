package staking

import "fmt"

// MaxListedPools 是一次列表结果中最多返回的池数量。
const MaxListedPools = 20

// Roles 是提名池的角色账户，除 Depositor 外均可为空。
type Roles struct {
	Depositor string  `json:"depositor" yaml:"depositor"`
	Root      *string `json:"root" yaml:"root"`
	Nominator *string `json:"nominator" yaml:"nominator"`
	Bouncer   *string `json:"bouncer" yaml:"bouncer"`
}

// Pool 描述一个提名池。Points 为十进制字符串，避免精度丢失。
type Pool struct {
	ID          uint32 `json:"id" yaml:"id"`
	State       string `json:"state" yaml:"state"`
	Points      string `json:"points" yaml:"points"`
	MemberCount int    `json:"memberCount" yaml:"member_count"`
	Roles       Roles  `json:"roles" yaml:"roles"`
}

// PoolListing 是 list_nomination_pools 的返回结构。
type PoolListing struct {
	Chain     string `json:"chain"`
	PoolCount int    `json:"poolCount"`
	Pools     []Pool `json:"pools"`
	Message   string `json:"message"`
}

// NewPoolListing 补齐缺省字段并截取前 MaxListedPools 个池。
func NewPoolListing(chain string, pools []Pool) PoolListing {
	listing := PoolListing{Chain: chain, PoolCount: len(pools), Pools: []Pool{}}
	if len(pools) == 0 {
		listing.Message = "No nomination pools found on this chain."
		return listing
	}
	shown := pools
	if len(shown) > MaxListedPools {
		shown = shown[:MaxListedPools]
	}
	for _, p := range shown {
		listing.Pools = append(listing.Pools, p.withDefaults())
	}
	if len(pools) > MaxListedPools {
		listing.Message = fmt.Sprintf("Showing first %d of %d pools.", MaxListedPools, len(pools))
	} else {
		listing.Message = fmt.Sprintf("Found %d nomination pool(s).", len(pools))
	}
	return listing
}

func (p Pool) withDefaults() Pool {
	if p.State == "" {
		p.State = "Unknown"
	}
	if p.Points == "" {
		p.Points = "0"
	}
	if p.Roles.Depositor == "" {
		p.Roles.Depositor = "Unknown"
	}
	return p
}

// Membership 是 check_user_pool 的返回结构。
type Membership struct {
	Chain   string  `json:"chain"`
	Account string  `json:"account"`
	Joined  bool    `json:"joined"`
	PoolID  *uint32 `json:"poolId,omitempty"`
	Message string  `json:"message,omitempty"`
}

// TxResult 描述一次已提交的交易。
type TxResult struct {
	Status    string   `json:"status"`
	BlockHash string   `json:"blockHash"`
	TxHash    string   `json:"txHash"`
	Events    []string `json:"events"`
}

// ChainAPIStatus 是 ensure_chain_api 的返回结构。
type ChainAPIStatus struct {
	Success bool   `json:"success"`
	ChainID string `json:"chainId"`
	Message string `json:"message"`
}
