package market

import (
	"fmt"
	"sort"
	"strings"
)

// Market 表示一个交易市场，BASE-QUOTE 形式，配置后不可变。
type Market struct {
	Pair       string // 例如 "ETH-USDT"
	BaseAsset  string
	QuoteAsset string
}

// ParsePair 解析 "BASE-QUOTE" 交易对。
func ParsePair(pair string) (Market, error) {
	parts := strings.Split(strings.ToUpper(strings.TrimSpace(pair)), "-")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return Market{}, fmt.Errorf("invalid market pair %q, expect BASE-QUOTE", pair)
	}
	if parts[0] == parts[1] {
		return Market{}, fmt.Errorf("invalid market pair %q, base equals quote", pair)
	}
	return Market{Pair: parts[0] + "-" + parts[1], BaseAsset: parts[0], QuoteAsset: parts[1]}, nil
}

// Registry 维护已配置市场的静态映射。
type Registry struct {
	markets map[string]Market
	order   []string // 保持配置顺序，状态输出用
}

// NewRegistry 从交易对列表构建注册表，重复的交易对视为配置错误。
func NewRegistry(pairs []string) (*Registry, error) {
	if len(pairs) == 0 {
		return nil, fmt.Errorf("at least one market is required")
	}
	r := &Registry{markets: make(map[string]Market, len(pairs))}
	for _, p := range pairs {
		m, err := ParsePair(p)
		if err != nil {
			return nil, err
		}
		if _, ok := r.markets[m.Pair]; ok {
			return nil, fmt.Errorf("duplicate market %s", m.Pair)
		}
		r.markets[m.Pair] = m
		r.order = append(r.order, m.Pair)
	}
	return r, nil
}

// Get 返回指定交易对的市场。
func (r *Registry) Get(pair string) (Market, bool) {
	m, ok := r.markets[pair]
	return m, ok
}

// Pairs 按配置顺序返回全部交易对。
func (r *Registry) Pairs() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Markets 按配置顺序返回全部市场。
func (r *Registry) Markets() []Market {
	out := make([]Market, 0, len(r.order))
	for _, p := range r.order {
		out = append(out, r.markets[p])
	}
	return out
}

func (r *Registry) Len() int { return len(r.order) }

// BaseAssets 返回全部 base 资产集合（有序）。
func (r *Registry) BaseAssets() []string {
	set := make(map[string]struct{})
	for _, m := range r.markets {
		set[m.BaseAsset] = struct{}{}
	}
	return sortedKeys(set)
}

// QuoteAssets 返回全部 quote 资产集合（有序）。
func (r *Registry) QuoteAssets() []string {
	set := make(map[string]struct{})
	for _, m := range r.markets {
		set[m.QuoteAsset] = struct{}{}
	}
	return sortedKeys(set)
}

// AllAssets 返回出现过的全部资产集合（有序）。
func (r *Registry) AllAssets() []string {
	set := make(map[string]struct{})
	for _, m := range r.markets {
		set[m.BaseAsset] = struct{}{}
		set[m.QuoteAsset] = struct{}{}
	}
	return sortedKeys(set)
}

// TokenIsQuote 判断参考 token 是否为所有市场的统一 quote 资产。
// token 必须统一地是所有市场的 quote 或统一地是所有市场的 base，否则返回错误。
func (r *Registry) TokenIsQuote(token string) (bool, error) {
	token = strings.ToUpper(strings.TrimSpace(token))
	quotes := r.QuoteAssets()
	if len(quotes) == 1 && quotes[0] == token {
		return true, nil
	}
	bases := r.BaseAssets()
	if len(bases) == 1 && bases[0] == token {
		return false, nil
	}
	return false, fmt.Errorf("token %s must be the quote asset of every market or the base asset of every market", token)
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
