package pmm

import (
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// createBaseProposals 按配置价差在中间价两侧生成初始报价。
// 中间价不可得或非正的市场跳过本周期，不影响其他市场。
func (s *Strategy) createBaseProposals() []*Proposal {
	spread := s.cfg.effectiveSpread()
	proposals := make([]*Proposal, 0, s.registry.Len())
	for _, m := range s.registry.Markets() {
		mid, err := s.exchange.GetMidPrice(m.Pair)
		if err != nil || !mid.IsPositive() {
			s.log.Debug("skip market without usable mid price",
				zap.String("market", m.Pair), zap.Error(err))
			s.metrics.MarketSkipped()
			if s.alerts != nil {
				_ = s.alerts.SendWarning(fmt.Sprintf("no usable mid price for %s", m.Pair), nil)
			}
			continue
		}
		s.lastMids[m.Pair] = mid
		midF, _ := mid.Float64()
		s.metrics.SetMidPrice(m.Pair, midF)

		buyPrice := s.exchange.QuantizeOrderPrice(m.Pair, mid.Mul(one.Sub(spread)))
		buySize := s.baseOrderSize(buyPrice)
		sellPrice := s.exchange.QuantizeOrderPrice(m.Pair, mid.Mul(one.Add(spread)))
		sellSize := s.baseOrderSize(sellPrice)

		proposals = append(proposals, &Proposal{
			Market: m,
			Buy:    PriceSize{Price: buyPrice, Size: buySize},
			Sell:   PriceSize{Price: sellPrice, Size: sellSize},
		})
	}
	return proposals
}

// baseOrderSize 把以 token 计的下单量换算成 base 单位。
// token 是 base 时直接返回配置量，否则按给定价格折算。
func (s *Strategy) baseOrderSize(price decimal.Decimal) decimal.Decimal {
	if !s.tokenIsQuote {
		return s.cfg.OrderAmount
	}
	if !price.IsPositive() {
		return decimal.Zero
	}
	return s.cfg.OrderAmount.Div(price)
}
