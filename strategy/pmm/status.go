package pmm

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"
)

// FormatStatus 生成面向运维的状态报告：预算、市场行情与当前挂单三张表。
func (s *Strategy) FormatStatus(now time.Time) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var b strings.Builder
	if !s.ready {
		fmt.Fprintf(&b, "Strategy is not ready, waiting for exchange %s...\n", s.exchange.Name())
		return b.String()
	}

	fmt.Fprintf(&b, "Budgets (token %s):\n", s.cfg.Token)
	w := tabwriter.NewWriter(&b, 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "  Market\tBuy budget\tSell budget")
	for _, pair := range s.registry.Pairs() {
		fmt.Fprintf(w, "  %s\t%s\t%s\n", pair,
			s.budget(s.buyBudgets, pair).StringFixed(6),
			s.budget(s.sellBudgets, pair).StringFixed(6))
	}
	w.Flush()

	fmt.Fprintln(&b, "\nMarkets:")
	w = tabwriter.NewWriter(&b, 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "  Market\tMid\tBest bid\tBest ask")
	for _, pair := range s.registry.Pairs() {
		mid := "-"
		if m, ok := s.lastMids[pair]; ok {
			mid = m.StringFixed(6)
		}
		bid := priceOrDash(s.exchange.GetPrice(pair, false))
		ask := priceOrDash(s.exchange.GetPrice(pair, true))
		fmt.Fprintf(w, "  %s\t%s\t%s\t%s\n", pair, mid, bid, ask)
	}
	w.Flush()

	orders := s.exchange.OpenOrders()
	if len(orders) == 0 {
		fmt.Fprintln(&b, "\nNo active maker orders.")
		return b.String()
	}
	fmt.Fprintln(&b, "\nOrders:")
	w = tabwriter.NewWriter(&b, 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "  Market\tSide\tPrice\tSpread\tAmount\tAge")
	for _, o := range orders {
		side := "sell"
		if o.IsBuy {
			side = "buy"
		}
		spread := "-"
		if mid, ok := s.lastMids[o.Market]; ok && mid.IsPositive() {
			pct := mid.Sub(o.Price).Abs().Div(mid).Mul(decimal.New(100, 0))
			spread = pct.StringFixed(2) + "%"
		}
		age := "n/a"
		if d := orderAge(o, now); d >= 0 {
			age = d.Truncate(time.Second).String()
		}
		fmt.Fprintf(w, "  %s\t%s\t%s\t%s\t%s\t%s\n",
			o.Market, side, o.Price.String(), spread, o.Size.String(), age)
	}
	w.Flush()
	return b.String()
}

func priceOrDash(p decimal.Decimal, err error) string {
	if err != nil {
		return "-"
	}
	return p.StringFixed(6)
}
