package staking

import (
	"cmp"
	"context"
	"encoding/binary"
	"fmt"
	"math/big"
	"os"
	"slices"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/crypto"
	"gopkg.in/yaml.v3"
)

// Fixtures 描述 MemoryBackend 的初始链上状态，对应 configs/staking.yaml。
type Fixtures struct {
	Signer string                  `yaml:"signer"`
	Chains map[string]ChainFixture `yaml:"chains"`
}

// ChainFixture 是单条链的池与成员数据。
type ChainFixture struct {
	Token    string          `yaml:"token"`
	Decimals *uint8          `yaml:"decimals"`
	Pools    []Pool          `yaml:"pools"`
	Members  []MemberFixture `yaml:"members"`
}

// MemberFixture 是池成员的初始余额，金额均为最小单位的十进制字符串。
type MemberFixture struct {
	Account        string `yaml:"account"`
	PoolID         uint32 `yaml:"pool_id"`
	Bonded         string `yaml:"bonded"`
	Unbonding      string `yaml:"unbonding"`
	PendingRewards string `yaml:"pending_rewards"`
}

// LoadFixtures 读取 YAML 文件。path 为空时返回空数据。
func LoadFixtures(path string) (Fixtures, error) {
	if strings.TrimSpace(path) == "" {
		return Fixtures{}, nil
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return Fixtures{}, fmt.Errorf("读取质押数据失败: %w", err)
	}
	return ParseFixtures(content)
}

// ParseFixtures 解析 YAML 内容。
func ParseFixtures(content []byte) (Fixtures, error) {
	var f Fixtures
	if err := yaml.Unmarshal(content, &f); err != nil {
		return Fixtures{}, fmt.Errorf("解析质押数据失败: %w", err)
	}
	return f, nil
}

type member struct {
	poolID    uint32
	bonded    *big.Int
	unbonding *big.Int
	rewards   *big.Int
}

type chainState struct {
	decimals uint8
	pallet   bool
	pools    []Pool
	members  map[string]*member
}

func (s *chainState) pool(id uint32) (*Pool, bool) {
	for i := range s.pools {
		if s.pools[i].ID == id {
			return &s.pools[i], true
		}
	}
	return nil, false
}

// MemoryBackend 在内存中模拟 NominationPools 模块，交易由 Fixtures.Signer 发起。
type MemoryBackend struct {
	mu     sync.Mutex
	signer string
	chains map[string]*chainState
	ready  map[string]bool
	nonce  uint64
}

// NewMemoryBackend 根据 Fixtures 构造后端。
func NewMemoryBackend(f Fixtures) (*MemoryBackend, error) {
	b := &MemoryBackend{
		signer: strings.TrimSpace(f.Signer),
		chains: make(map[string]*chainState, len(f.Chains)),
		ready:  make(map[string]bool),
	}
	for id, fixture := range f.Chains {
		state := newChainState(id)
		if fixture.Decimals != nil {
			state.decimals = *fixture.Decimals
		}
		state.pallet = state.pallet || len(fixture.Pools) > 0
		state.pools = slices.Clone(fixture.Pools)
		slices.SortFunc(state.pools, func(a, b Pool) int { return cmp.Compare(a.ID, b.ID) })
		for _, m := range fixture.Members {
			account := strings.TrimSpace(m.Account)
			if account == "" {
				return nil, fmt.Errorf("链 %s 存在空的成员账户", id)
			}
			if _, ok := state.pool(m.PoolID); !ok {
				return nil, fmt.Errorf("链 %s 的成员 %s 引用了不存在的池 %d", id, account, m.PoolID)
			}
			entry := &member{poolID: m.PoolID}
			var err error
			if entry.bonded, err = parsePlanck(m.Bonded); err != nil {
				return nil, fmt.Errorf("成员 %s bonded: %w", account, err)
			}
			if entry.unbonding, err = parsePlanck(m.Unbonding); err != nil {
				return nil, fmt.Errorf("成员 %s unbonding: %w", account, err)
			}
			if entry.rewards, err = parsePlanck(m.PendingRewards); err != nil {
				return nil, fmt.Errorf("成员 %s pending_rewards: %w", account, err)
			}
			state.members[account] = entry
		}
		b.chains[id] = state
	}
	return b, nil
}

func newChainState(id string) *chainState {
	decimals := uint8(10)
	if RelayChain(id) == "kusama" {
		decimals = 12
	}
	return &chainState{
		decimals: decimals,
		pallet:   IsRelayChain(id),
		members:  make(map[string]*member),
	}
}

func parsePlanck(text string) (*big.Int, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return new(big.Int), nil
	}
	v, ok := new(big.Int).SetString(text, 10)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("非法金额 %q", text)
	}
	return v, nil
}

// Signer 返回发起交易的账户。
func (b *MemoryBackend) Signer() string { return b.signer }

// EnsureAPI 初始化链连接，重复调用无副作用。
func (b *MemoryBackend) EnsureAPI(_ context.Context, chain string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.chains[chain]; !ok {
		if !IsKnownChain(chain) {
			return fmt.Errorf("%w: %s", ErrUnknownChain, chain)
		}
		b.chains[chain] = newChainState(chain)
	}
	b.ready[chain] = true
	return nil
}

// state 要求调用方持有锁。
func (b *MemoryBackend) state(chain string, needPallet bool) (*chainState, error) {
	if !b.ready[chain] {
		return nil, ErrChainNotInitialized
	}
	s := b.chains[chain]
	if needPallet && !s.pallet {
		return nil, ErrPalletUnavailable
	}
	return s, nil
}

// ListPools 返回按 ID 升序排列的池副本。
func (b *MemoryBackend) ListPools(_ context.Context, chain string) ([]Pool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, err := b.state(chain, true)
	if err != nil {
		return nil, err
	}
	return slices.Clone(s.pools), nil
}

// MemberPool 查询账户加入的池。
func (b *MemoryBackend) MemberPool(_ context.Context, chain, account string) (uint32, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, err := b.state(chain, true)
	if err != nil {
		return 0, false, err
	}
	m, ok := s.members[strings.TrimSpace(account)]
	if !ok {
		return 0, false, nil
	}
	return m.poolID, true, nil
}

// Decimals 返回链原生代币的精度。
func (b *MemoryBackend) Decimals(_ context.Context, chain string) (uint8, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, err := b.state(chain, false)
	if err != nil {
		return 0, err
	}
	return s.decimals, nil
}

// JoinPool 以 amount 加入一个开放状态的池。
func (b *MemoryBackend) JoinPool(_ context.Context, chain string, poolID uint32, amount *big.Int) (TxResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, err := b.txState(chain, amount)
	if err != nil {
		return TxResult{}, err
	}
	if m, ok := s.members[b.signer]; ok {
		return TxResult{}, fmt.Errorf("account already belongs to pool %d", m.poolID)
	}
	pool, ok := s.pool(poolID)
	if !ok {
		return TxResult{}, fmt.Errorf("pool %d not found on %s", poolID, chain)
	}
	if pool.State != "Open" {
		return TxResult{}, fmt.Errorf("pool %d is not open (state: %s)", poolID, pool.State)
	}
	s.members[b.signer] = &member{
		poolID:    poolID,
		bonded:    new(big.Int).Set(amount),
		unbonding: new(big.Int),
		rewards:   new(big.Int),
	}
	pool.MemberCount++
	addPoints(pool, amount)
	return b.receipt(chain, "join_pool", amount, "NominationPools.Bonded"), nil
}

// BondExtra 向已加入的池追加质押。
func (b *MemoryBackend) BondExtra(_ context.Context, chain string, amount *big.Int) (TxResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, m, err := b.memberState(chain, amount)
	if err != nil {
		return TxResult{}, err
	}
	m.bonded.Add(m.bonded, amount)
	pool, _ := s.pool(m.poolID)
	addPoints(pool, amount)
	return b.receipt(chain, "bond_extra", amount, "NominationPools.Bonded"), nil
}

// Unbond 把部分质押转入解绑中。
func (b *MemoryBackend) Unbond(_ context.Context, chain string, amount *big.Int) (TxResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, m, err := b.memberState(chain, amount)
	if err != nil {
		return TxResult{}, err
	}
	if amount.Cmp(m.bonded) > 0 {
		return TxResult{}, fmt.Errorf("unbond amount exceeds bonded balance of %s", FormatAmount(m.bonded, s.decimals))
	}
	m.bonded.Sub(m.bonded, amount)
	m.unbonding.Add(m.unbonding, amount)
	pool, _ := s.pool(m.poolID)
	addPoints(pool, new(big.Int).Neg(amount))
	return b.receipt(chain, "unbond", amount, "NominationPools.Unbonded"), nil
}

// WithdrawUnbonded 提取全部解绑中的余额；质押清零后账户离开该池。
func (b *MemoryBackend) WithdrawUnbonded(_ context.Context, chain string) (TxResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, m, err := b.memberState(chain, nil)
	if err != nil {
		return TxResult{}, err
	}
	if m.unbonding.Sign() == 0 {
		return TxResult{}, fmt.Errorf("no unbonded funds to withdraw")
	}
	withdrawn := new(big.Int).Set(m.unbonding)
	m.unbonding.SetInt64(0)
	events := []string{"NominationPools.Withdrawn"}
	if m.bonded.Sign() == 0 {
		delete(s.members, b.signer)
		if pool, ok := s.pool(m.poolID); ok && pool.MemberCount > 0 {
			pool.MemberCount--
		}
		events = append(events, "NominationPools.MemberRemoved")
	}
	return b.receipt(chain, "withdraw_unbonded", withdrawn, events...), nil
}

// ClaimRewards 领取待发放的奖励。
func (b *MemoryBackend) ClaimRewards(_ context.Context, chain string) (TxResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, m, err := b.memberState(chain, nil)
	if err != nil {
		return TxResult{}, err
	}
	if m.rewards.Sign() == 0 {
		return TxResult{}, fmt.Errorf("no pending rewards to claim")
	}
	paid := new(big.Int).Set(m.rewards)
	m.rewards.SetInt64(0)
	return b.receipt(chain, "claim_rewards", paid, "NominationPools.PaidOut"), nil
}

func (b *MemoryBackend) txState(chain string, amount *big.Int) (*chainState, error) {
	s, err := b.state(chain, true)
	if err != nil {
		return nil, err
	}
	if b.signer == "" {
		return nil, fmt.Errorf("no signer account configured")
	}
	if amount != nil && amount.Sign() <= 0 {
		return nil, fmt.Errorf("amount must be positive")
	}
	return s, nil
}

func (b *MemoryBackend) memberState(chain string, amount *big.Int) (*chainState, *member, error) {
	s, err := b.txState(chain, amount)
	if err != nil {
		return nil, nil, err
	}
	m, ok := s.members[b.signer]
	if !ok {
		return nil, nil, ErrNotMember
	}
	return s, m, nil
}

func addPoints(pool *Pool, delta *big.Int) {
	if pool == nil {
		return
	}
	points, ok := new(big.Int).SetString(pool.Points, 10)
	if !ok {
		points = new(big.Int)
	}
	points.Add(points, delta)
	if points.Sign() < 0 {
		points.SetInt64(0)
	}
	pool.Points = points.String()
}

// receipt 生成交易回执，哈希由链、调用、签名账户、金额与递增 nonce 计算。
func (b *MemoryBackend) receipt(chain, call string, amount *big.Int, events ...string) TxResult {
	b.nonce++
	var nonce [8]byte
	binary.BigEndian.PutUint64(nonce[:], b.nonce)
	var value []byte
	if amount != nil {
		value = amount.Bytes()
	}
	txHash := crypto.Keccak256Hash([]byte(chain), []byte(call), []byte(b.signer), value, nonce[:])
	blockHash := crypto.Keccak256Hash(txHash.Bytes(), nonce[:])
	return TxResult{
		Status:    "Finalized",
		BlockHash: blockHash.Hex(),
		TxHash:    txHash.Hex(),
		Events:    append(events, "System.ExtrinsicSuccess"),
	}
}
