package pmm

import (
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// totalPortValueInToken 以参考 token 计价的组合总值：token 自身余额加上
// 每个市场的对侧资产按中间价折算。任一市场中间价不可得则整体失败，
// 由调用方下个周期重试。
func (s *Strategy) totalPortValueInToken() (decimal.Decimal, error) {
	bals := s.adjustedAvailableBalances()
	total := bals[s.cfg.Token]
	for _, m := range s.registry.Markets() {
		mid, err := s.exchange.GetMidPrice(m.Pair)
		if err != nil {
			return decimal.Zero, fmt.Errorf("mid price for %s: %w", m.Pair, err)
		}
		if !mid.IsPositive() {
			return decimal.Zero, fmt.Errorf("mid price for %s is not positive", m.Pair)
		}
		if s.tokenIsQuote {
			total = total.Add(bals[m.BaseAsset].Mul(mid))
		} else {
			total = total.Add(bals[m.QuoteAsset].Div(mid))
		}
	}
	return total, nil
}

// createBudgetAllocation 一次性预算分配：组合总值按市场数均分，
// 非 token 侧余额原样归入对应方向，token 侧补足到均分额度。
// 只在策略就绪时执行一次，此后预算仅随成交迁移。
func (s *Strategy) createBudgetAllocation() error {
	total, err := s.totalPortValueInToken()
	if err != nil {
		return err
	}
	portion := total.Div(decimal.NewFromInt(int64(s.registry.Len())))
	bals := s.adjustedAvailableBalances()

	s.sellBudgets = make(map[string]decimal.Decimal)
	s.buyBudgets = make(map[string]decimal.Decimal)
	for _, m := range s.registry.Markets() {
		mid, err := s.exchange.GetMidPrice(m.Pair)
		if err != nil {
			return fmt.Errorf("mid price for %s: %w", m.Pair, err)
		}
		if s.tokenIsQuote {
			// token 是 quote：现有 base 全部作为卖出预算，买入预算补足均分额
			s.sellBudgets[m.Pair] = bals[m.BaseAsset]
			s.buyBudgets[m.Pair] = clampZero(portion.Sub(bals[m.BaseAsset].Mul(mid)))
		} else {
			// token 是 base：现有 quote 全部作为买入预算，卖出预算补足均分额
			s.buyBudgets[m.Pair] = bals[m.QuoteAsset]
			s.sellBudgets[m.Pair] = clampZero(portion.Sub(bals[m.QuoteAsset].Div(mid)))
		}
		s.log.Info("budget allocated",
			zap.String("market", m.Pair),
			zap.String("buy_budget", s.buyBudgets[m.Pair].String()),
			zap.String("sell_budget", s.sellBudgets[m.Pair].String()))
	}
	return nil
}

// applyBudgetConstraint 将报价数量压到共享余额快照允许的范围内。
// 按市场顺序逐个扣减快照，先卖后买；买侧以含费名义额约束，
// 费用预留在余额里，重复应用结果不变。
func (s *Strategy) applyBudgetConstraint(proposals []*Proposal) {
	balances := make(map[string]decimal.Decimal, len(s.tokenBalances))
	for k, v := range s.tokenBalances {
		balances[k] = v
	}

	for _, p := range proposals {
		base, quote := p.Base(), p.Quote()

		sellSize := p.Sell.Size
		if balances[base].LessThan(sellSize) {
			sellSize = balances[base]
		}
		p.Sell.Size = s.exchange.QuantizeOrderAmount(p.Market.Pair, sellSize)
		balances[base] = clampZero(balances[base].Sub(p.Sell.Size))

		buySize := p.Buy.Size
		if p.Buy.Price.IsPositive() {
			buyFee := s.exchange.EstimateFeePct(true)
			denom := p.Buy.Price.Mul(one.Add(buyFee))
			required := buySize.Mul(denom)
			if balances[quote].LessThan(required) {
				buySize = balances[quote].Div(denom)
				required = buySize.Mul(denom)
			}
			p.Buy.Size = s.exchange.QuantizeOrderAmount(p.Market.Pair, buySize)
			balances[quote] = clampZero(balances[quote].Sub(p.Buy.Size.Mul(denom)))
		} else {
			p.Buy.Size = decimal.Zero
		}
	}
}
