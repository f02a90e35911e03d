package pmm

import (
	"github.com/shopspring/decimal"

	"mmaker-go/inventory"
)

// applyInventorySkew 按市场预算相对目标占比的偏离缩放双边数量。
// 预算（而非账户余额）代表该市场的库存：卖出预算是 base 持仓，
// 买入预算是 quote 持仓。
func (s *Strategy) applyInventorySkew(proposals []*Proposal) {
	for _, p := range proposals {
		mid, ok := s.lastMids[p.Market.Pair]
		if !ok || !mid.IsPositive() {
			continue
		}
		baseAmount, _ := s.budget(s.sellBudgets, p.Market.Pair).Float64()
		quoteAmount, _ := s.budget(s.buyBudgets, p.Market.Pair).Float64()
		price, _ := mid.Float64()
		target, _ := s.cfg.InventoryTargetBasePct.Float64()
		totalSize := p.Buy.Size.Add(p.Sell.Size).Mul(s.cfg.InventoryRangeMultiplier)
		baseRange, _ := totalSize.Float64()

		ratios := inventory.CalculateBidAskRatios(baseAmount, quoteAmount, price, target, baseRange)
		p.Buy.Size = p.Buy.Size.Mul(decimal.NewFromFloat(ratios.BidRatio))
		p.Sell.Size = p.Sell.Size.Mul(decimal.NewFromFloat(ratios.AskRatio))
	}
}
