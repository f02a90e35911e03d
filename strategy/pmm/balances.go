package pmm

import "github.com/shopspring/decimal"

// adjustedAvailableBalances 计算预算约束阶段使用的可用余额快照：
// 交易所可用余额加回自身挂单占用的部分（挂单即将被刷新，其资金视为可用），
// 参考 token 受 max_available_token_amount 上限约束（先截断再加回占用）。
func (s *Strategy) adjustedAvailableBalances() map[string]decimal.Decimal {
	adjusted := make(map[string]decimal.Decimal)
	for _, asset := range s.registry.AllAssets() {
		avail := s.exchange.GetAvailableBalance(asset)
		if asset == s.cfg.Token && !s.cfg.MaxAvailableTokenAmount.IsNegative() &&
			avail.GreaterThan(s.cfg.MaxAvailableTokenAmount) {
			avail = s.cfg.MaxAvailableTokenAmount
		}
		adjusted[asset] = avail
	}
	for _, o := range s.exchange.OpenOrders() {
		m, ok := s.registry.Get(o.Market)
		if !ok {
			continue
		}
		if o.IsBuy {
			adjusted[m.QuoteAsset] = adjusted[m.QuoteAsset].Add(o.Size.Mul(o.Price))
		} else {
			adjusted[m.BaseAsset] = adjusted[m.BaseAsset].Add(o.Size)
		}
	}
	return adjusted
}
