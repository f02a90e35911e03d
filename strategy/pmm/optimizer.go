package pmm

import (
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// applyOrderOptimization 盘口优化：忽略盘口前端一定深度（含自身挂单）后，
// 将报价贴到剩余深度的最优档外侧一个最小价位。只会把买价向上、卖价向下
// 收紧，绝不越过基准价差之外，也绝不产生交叉报价。
func (s *Strategy) applyOrderOptimization(proposals []*Proposal) {
	for _, p := range proposals {
		mid, ok := s.lastMids[p.Market.Pair]
		if !ok || !mid.IsPositive() {
			continue
		}
		ownBuy, ownSell := s.ownOrderSizes(p.Market.Pair)
		depth := s.baseOrderSize(mid).Mul(s.cfg.OrderOptimizationDepthPct)

		s.optimizeBuy(p, mid, depth.Add(ownBuy))
		s.optimizeSell(p, mid, depth.Add(ownSell))

		// 交叉守护：优化后买价必须严格低于卖价
		if p.Buy.Size.IsPositive() && p.Sell.Size.IsPositive() &&
			p.Buy.Price.GreaterThanOrEqual(p.Sell.Price) {
			quantum := s.exchange.OrderPriceQuantum(p.Market.Pair, p.Sell.Price)
			clamped := p.Sell.Price.Sub(quantum)
			if clamped.IsPositive() {
				p.Buy.Price = clamped
			} else {
				p.Buy.Size = decimal.Zero
			}
		}
	}
}

func (s *Strategy) optimizeBuy(p *Proposal, mid, ignoredDepth decimal.Decimal) {
	pair := p.Market.Pair
	topBid, err := s.exchange.GetPriceForVolume(pair, false, ignoredDepth)
	if err != nil {
		s.log.Debug("buy optimization skipped", zap.String("market", pair), zap.Error(err))
		return
	}
	quantum := s.exchange.OrderPriceQuantum(pair, topBid)
	priceAboveBid := topBid.Div(quantum).Ceil().Add(one).Mul(quantum)

	price := p.Buy.Price
	if priceAboveBid.LessThan(price) {
		price = priceAboveBid
	} else if s.cfg.OrderOptimizationFailsafe {
		// 基准价已落在被忽略的深度内：贴到不高于基准价的档位上方
		next, err := s.exchange.GetNextPrice(pair, false, p.Buy.Price)
		if err != nil {
			s.log.Debug("buy failsafe skipped", zap.String("market", pair), zap.Error(err))
			return
		}
		nq := s.exchange.OrderPriceQuantum(pair, next)
		price = next.Div(nq).Ceil().Add(one).Mul(nq)
	}
	if s.cfg.MaxSpread.IsPositive() {
		floor := mid.Mul(one.Sub(s.cfg.MaxSpread))
		if price.LessThan(floor) {
			price = floor
		}
	}
	p.Buy.Price = s.exchange.QuantizeOrderPrice(pair, price)
}

func (s *Strategy) optimizeSell(p *Proposal, mid, ignoredDepth decimal.Decimal) {
	pair := p.Market.Pair
	topAsk, err := s.exchange.GetPriceForVolume(pair, true, ignoredDepth)
	if err != nil {
		s.log.Debug("sell optimization skipped", zap.String("market", pair), zap.Error(err))
		return
	}
	quantum := s.exchange.OrderPriceQuantum(pair, topAsk)
	priceBelowAsk := topAsk.Div(quantum).Floor().Sub(one).Mul(quantum)

	price := p.Sell.Price
	if priceBelowAsk.GreaterThan(price) {
		price = priceBelowAsk
	} else if s.cfg.OrderOptimizationFailsafe {
		next, err := s.exchange.GetNextPrice(pair, true, p.Sell.Price)
		if err != nil {
			s.log.Debug("sell failsafe skipped", zap.String("market", pair), zap.Error(err))
			return
		}
		nq := s.exchange.OrderPriceQuantum(pair, next)
		price = next.Div(nq).Floor().Sub(one).Mul(nq)
	}
	if s.cfg.MaxSpread.IsPositive() {
		ceil := mid.Mul(one.Add(s.cfg.MaxSpread))
		if price.GreaterThan(ceil) {
			price = ceil
		}
	}
	p.Sell.Price = s.exchange.QuantizeOrderPrice(pair, price)
}

// ownOrderSizes 返回自身在该市场两侧的挂单总量。
func (s *Strategy) ownOrderSizes(pair string) (buy, sell decimal.Decimal) {
	for _, o := range s.activeOrders(pair) {
		if o.IsBuy {
			buy = buy.Add(o.Size)
		} else {
			sell = sell.Add(o.Size)
		}
	}
	return buy, sell
}
